package usecase

import (
	"context"
	"errors"
	"sync"

	"gradient/model"
	"gradient/repository"
	"gradient/utils"

	"github.com/sirupsen/logrus"
)

type CollectionState int

const (
	StateUninitialized CollectionState = iota
	StateSubscribed
	StateUnsubscribed
)

func (s CollectionState) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateSubscribed:
		return "subscribed"
	case StateUnsubscribed:
		return "unsubscribed"
	}
	return "unknown"
}

var ErrAlreadyStarted = errors.New("live collection already started")

// LiveCollection is an in-memory list of entities kept in step with a store
// watch. Each snapshot replaces the list; subscribers receive the filtered
// list after every change.
type LiveCollection[T any] struct {
	store      repository.Store
	collection string
	filter     repository.Filter
	decode     func(model.Document) (T, error)
	less       func(a, b T) bool
	log        *logrus.Entry

	mu          sync.RWMutex
	state       CollectionState
	match       func(T) bool
	items       []T
	view        []T
	applied     bool
	lastSeq     uint64
	skipped     int
	err         error
	subscribers map[int]chan []T
	nextID      int
	sub         *repository.Subscription
	done        chan struct{}
}

func NewLiveCollection[T any](store repository.Store, collection string, filter repository.Filter,
	decode func(model.Document) (T, error), less func(a, b T) bool) *LiveCollection[T] {
	return &LiveCollection[T]{
		store:       store,
		collection:  collection,
		filter:      filter,
		decode:      decode,
		less:        less,
		log:         utils.Component("live").WithField("collection", collection),
		subscribers: make(map[int]chan []T),
	}
}

// Start attaches the collection to the store. It can be called once.
func (c *LiveCollection[T]) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateUninitialized {
		return ErrAlreadyStarted
	}

	sub, err := c.store.Watch(ctx, c.collection, c.filter)
	if err != nil {
		c.state = StateUnsubscribed
		c.err = err
		return err
	}
	c.sub = sub
	c.state = StateSubscribed
	c.done = make(chan struct{})
	utils.LiveCollections.Inc()
	go c.run(sub, c.done)
	return nil
}

func (c *LiveCollection[T]) run(sub *repository.Subscription, done chan struct{}) {
	defer close(done)
	for {
		select {
		case <-sub.Done():
			c.detach(sub.Err())
			return
		case snap := <-sub.Snapshots():
			c.apply(snap)
		}
	}
}

// Stop detaches from the store and closes every subscriber channel. The
// last list stays readable. Stop is terminal.
func (c *LiveCollection[T]) Stop() {
	c.mu.Lock()
	if c.state != StateSubscribed {
		c.state = StateUnsubscribed
		c.mu.Unlock()
		return
	}
	c.state = StateUnsubscribed
	sub, done := c.sub, c.done
	subscribers := c.subscribers
	c.subscribers = make(map[int]chan []T)
	c.mu.Unlock()

	sub.Close()
	<-done
	for _, ch := range subscribers {
		close(ch)
	}
	utils.LiveCollections.Dec()
}

// detach handles the end of the store watch that was not asked for by Stop.
func (c *LiveCollection[T]) detach(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateSubscribed {
		return
	}
	if err == nil {
		err = repository.ErrSubscriptionEnd
	}
	c.log.WithError(err).Warn("store watch ended")
	c.state = StateUnsubscribed
	c.err = err
	for id, ch := range c.subscribers {
		close(ch)
		delete(c.subscribers, id)
	}
	utils.LiveCollections.Dec()
}

// apply replaces the list with the content of snap unless snap is older
// than the last one applied.
func (c *LiveCollection[T]) apply(snap repository.Snapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateSubscribed {
		return
	}
	if c.applied && snap.Seq <= c.lastSeq {
		c.log.WithFields(logrus.Fields{"seq": snap.Seq, "last": c.lastSeq}).Debug("discarding stale snapshot")
		utils.TrackSnapshot(c.collection, "stale")
		return
	}

	items, skipped := decodeAll(snap.Documents, c.decode, c.log)
	sortSlice(items, c.less)
	utils.TrackSkippedDocuments(c.collection, skipped)
	utils.TrackSnapshot(c.collection, "applied")

	c.items = items
	c.skipped = skipped
	c.lastSeq = snap.Seq
	c.applied = true
	c.refreshLocked()
}

// SetFilter narrows the published list to items for which match returns
// true. A nil match shows everything. The store is not queried again.
func (c *LiveCollection[T]) SetFilter(match func(T) bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.match = match
	if c.applied {
		c.refreshLocked()
	}
}

func (c *LiveCollection[T]) refreshLocked() {
	view := make([]T, 0, len(c.items))
	for _, item := range c.items {
		if c.match == nil || c.match(item) {
			view = append(view, item)
		}
	}
	c.view = view
	for _, ch := range c.subscribers {
		offer(ch, c.copyView())
	}
}

// offer delivers list without blocking, replacing an unread older list.
func offer[T any](ch chan []T, list []T) {
	select {
	case ch <- list:
		return
	default:
	}
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- list:
	default:
	}
}

func (c *LiveCollection[T]) copyView() []T {
	return append([]T{}, c.view...)
}

// Subscribe returns a channel that receives the current list and every
// later one. Slow readers only see the latest list. The channel is closed
// when the collection stops or cancel is called.
func (c *LiveCollection[T]) Subscribe() (<-chan []T, func()) {
	c.mu.Lock()
	defer c.mu.Unlock()

	ch := make(chan []T, 1)
	if c.state == StateUnsubscribed {
		if c.applied {
			ch <- c.copyView()
		}
		close(ch)
		return ch, func() {}
	}

	id := c.nextID
	c.nextID++
	c.subscribers[id] = ch
	if c.applied {
		ch <- c.copyView()
	}

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			if existing, ok := c.subscribers[id]; ok {
				delete(c.subscribers, id)
				close(existing)
			}
		})
	}
	return ch, cancel
}

// Items returns a copy of the current filtered list.
func (c *LiveCollection[T]) Items() []T {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.copyView()
}

func (c *LiveCollection[T]) State() CollectionState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// Err returns the failure that ended the store watch, if any.
func (c *LiveCollection[T]) Err() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.err
}

// Skipped is the number of documents in the last snapshot that could not
// be decoded.
func (c *LiveCollection[T]) Skipped() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.skipped
}

func decodeAll[T any](docs []model.Document, decode func(model.Document) (T, error), log *logrus.Entry) ([]T, int) {
	items := make([]T, 0, len(docs))
	skipped := 0
	for _, doc := range docs {
		item, err := decode(doc)
		if err != nil {
			skipped++
			log.WithError(err).WithField("id", doc["id"]).Warn("skipping document that failed to decode")
			continue
		}
		items = append(items, item)
	}
	return items, skipped
}
