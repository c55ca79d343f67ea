package services

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"gradient/utils"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

const remindersDueKey = "reminders:due"

type Reminder struct {
	ID     string
	Title  string
	Body   string
	FireAt time.Time
}

// RedisReminders keeps scheduled task reminders in Redis: one hash per
// reminder plus a sorted set of fire times.
type RedisReminders struct {
	client *redis.Client
	log    *logrus.Entry
}

// NewRedisClient parses redisURL and checks the connection
func NewRedisClient(ctx context.Context, redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	client := redis.NewClient(opts)

	// Test connection
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return client, nil
}

func NewRedisReminders(client *redis.Client) *RedisReminders {
	return &RedisReminders{client: client, log: utils.Component("reminders")}
}

func reminderKey(id string) string {
	return fmt.Sprintf("reminder:%s", id)
}

// Schedule stores a reminder, replacing any earlier one with the same id.
func (r *RedisReminders) Schedule(ctx context.Context, id, title, body string, fireAt time.Time) error {
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		key := reminderKey(id)
		pipe.Del(ctx, key)
		pipe.HSet(ctx, key, "title", title, "body", body, "fireAt", fireAt.Unix())
		pipe.ZAdd(ctx, remindersDueKey, redis.Z{Score: float64(fireAt.Unix()), Member: id})
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to schedule reminder %s: %w", id, err)
	}
	r.log.WithFields(logrus.Fields{"id": id, "fireAt": fireAt}).Debug("reminder scheduled")
	return nil
}

func (r *RedisReminders) Cancel(ctx context.Context, id string) error {
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZRem(ctx, remindersDueKey, id)
		pipe.Del(ctx, reminderKey(id))
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to cancel reminder %s: %w", id, err)
	}
	return nil
}

// Due removes and returns every reminder whose fire time is at or before
// now. A reminder claimed by a concurrent caller is not returned twice.
func (r *RedisReminders) Due(ctx context.Context, now time.Time) ([]Reminder, error) {
	ids, err := r.client.ZRangeByScore(ctx, remindersDueKey, &redis.ZRangeBy{
		Min: "-inf",
		Max: strconv.FormatInt(now.Unix(), 10),
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list due reminders: %w", err)
	}

	due := make([]Reminder, 0, len(ids))
	for _, id := range ids {
		removed, err := r.client.ZRem(ctx, remindersDueKey, id).Result()
		if err != nil {
			return due, fmt.Errorf("failed to claim reminder %s: %w", id, err)
		}
		if removed == 0 {
			continue
		}

		key := reminderKey(id)
		fields, err := r.client.HGetAll(ctx, key).Result()
		if err != nil {
			return due, fmt.Errorf("failed to load reminder %s: %w", id, err)
		}
		r.dropHash(ctx, id)

		fireAt, _ := strconv.ParseInt(fields["fireAt"], 10, 64)
		due = append(due, Reminder{
			ID:     id,
			Title:  fields["title"],
			Body:   fields["body"],
			FireAt: time.Unix(fireAt, 0),
		})
	}
	return due, nil
}

// dropHash removes the hash of a claimed reminder. Failures are only logged.
func (r *RedisReminders) dropHash(ctx context.Context, id string) {
	if err := r.client.Del(ctx, reminderKey(id)).Err(); err != nil {
		r.log.WithError(err).WithField("id", id).Warn("failed to delete claimed reminder")
	}
}
