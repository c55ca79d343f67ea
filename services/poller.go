package services

import (
	"context"
	"fmt"
	"time"

	"gradient/utils"

	"github.com/go-co-op/gocron/v2"
	"github.com/sirupsen/logrus"
)

// ReminderSource hands out reminders whose fire time has passed. Each
// reminder is returned once.
type ReminderSource interface {
	Due(ctx context.Context, now time.Time) ([]Reminder, error)
}

// ReminderPoller checks a ReminderSource on a fixed interval and passes due
// reminders to deliver.
type ReminderPoller struct {
	scheduler gocron.Scheduler
	source    ReminderSource
	deliver   func(Reminder)
	ctx       context.Context
	cancel    context.CancelFunc
	log       *logrus.Entry
}

func NewReminderPoller(source ReminderSource, interval time.Duration, deliver func(Reminder)) (*ReminderPoller, error) {
	scheduler, err := gocron.NewScheduler(gocron.WithLocation(time.UTC))
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	p := &ReminderPoller{
		scheduler: scheduler,
		source:    source,
		deliver:   deliver,
		ctx:       ctx,
		cancel:    cancel,
		log:       utils.Component("reminders"),
	}

	_, err = scheduler.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(p.poll),
		gocron.WithName("reminder_poll"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to create reminder job: %w", err)
	}
	return p, nil
}

func (p *ReminderPoller) Start() {
	p.scheduler.Start()
	p.log.Info("reminder polling started")
}

// Stop cancels an in-flight poll and waits for the scheduler to exit.
func (p *ReminderPoller) Stop() error {
	p.cancel()
	return p.scheduler.Shutdown()
}

func (p *ReminderPoller) poll() {
	due, err := p.source.Due(p.ctx, time.Now())
	if err != nil {
		p.log.WithError(err).Warn("polling due reminders failed")
	}
	// Reminders claimed before a failure are still delivered
	for _, reminder := range due {
		p.deliver(reminder)
	}
}
