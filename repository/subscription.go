package repository

import (
	"context"
	"sync"

	"gradient/model"
)

// Subscription delivers snapshots from a Store watch. The channel holds at
// most one pending snapshot; a newer snapshot replaces an unread one.
type Subscription struct {
	ctx    context.Context
	cancel context.CancelFunc

	snapshots chan Snapshot
	done      chan struct{}

	mu      sync.Mutex
	seq     uint64
	err     error
	closed  bool
	onClose func()
}

// NewSubscription returns a subscription that ends when ctx is cancelled or
// Close is called.
func NewSubscription(ctx context.Context) *Subscription {
	ctx, cancel := context.WithCancel(ctx)
	s := &Subscription{
		ctx:       ctx,
		cancel:    cancel,
		snapshots: make(chan Snapshot, 1),
		done:      make(chan struct{}),
	}
	go func() {
		<-ctx.Done()
		s.end(nil)
	}()
	return s
}

func (s *Subscription) Snapshots() <-chan Snapshot {
	return s.snapshots
}

func (s *Subscription) Done() <-chan struct{} {
	return s.done
}

// Context is cancelled when the subscription ends.
func (s *Subscription) Context() context.Context {
	return s.ctx
}

// Err returns the failure that ended the subscription, or nil if it was
// closed by its consumer.
func (s *Subscription) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Publish delivers docs as the next snapshot. It never blocks and reports
// false once the subscription has ended.
func (s *Subscription) Publish(docs []model.Document) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.seq++
	snap := Snapshot{Seq: s.seq, Documents: docs}
	for {
		select {
		case s.snapshots <- snap:
			return true
		default:
		}
		select {
		case stale := <-s.snapshots:
			if stale.Seq > snap.Seq {
				snap = stale
			}
		default:
		}
	}
}

// Fail ends the subscription with err.
func (s *Subscription) Fail(err error) {
	s.end(err)
}

// Close ends the subscription. It is safe to call more than once.
func (s *Subscription) Close() {
	s.end(nil)
}

func (s *Subscription) end(err error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.err = err
	onClose := s.onClose
	s.mu.Unlock()

	s.cancel()
	close(s.done)
	if onClose != nil {
		onClose()
	}
}

// setOnClose registers fn to run when the subscription ends. It reports
// false without registering if the subscription already ended.
func (s *Subscription) setOnClose(fn func()) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.onClose = fn
	return true
}
