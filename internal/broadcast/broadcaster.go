// Package broadcast is an in-process fan-out topic. Every subscriber owns a
// bounded ring buffer; a subscriber that falls behind loses its oldest
// events and is told how many it missed on its next receive.
package broadcast

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/alone-wolf/rutify/internal/observability/metrics"
)

const DefaultCapacity = 200

var ErrClosed = errors.New("broadcast: closed")

// Payload is the user-visible content of a notification.
type Payload struct {
	Message string `json:"message"`
	Title   string `json:"title"`
	Device  string `json:"device"`
}

// Event is what subscribers receive and what gets written to websockets.
type Event struct {
	Event     string    `json:"event"`
	Data      Payload   `json:"data"`
	Timestamp time.Time `json:"timestamp"`
}

// LagError reports events dropped for one subscriber since its last receive.
type LagError struct {
	Skipped uint64
}

func (e *LagError) Error() string {
	return fmt.Sprintf("broadcast: subscriber lagged, %d events skipped", e.Skipped)
}

type Broadcaster struct {
	capacity int

	mu     sync.Mutex
	subs   map[uint64]*Subscription
	nextID uint64
	closed bool
}

func New(capacity int) *Broadcaster {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Broadcaster{capacity: capacity, subs: make(map[uint64]*Subscription)}
}

func (b *Broadcaster) Subscribe() (*Subscription, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, ErrClosed
	}
	b.nextID++
	s := &Subscription{
		b:      b,
		id:     b.nextID,
		buf:    make([]Event, b.capacity),
		notify: make(chan struct{}, 1),
	}
	b.subs[s.id] = s
	return s, nil
}

// Publish hands ev to every current subscriber without blocking and returns
// how many received it. Publishing with no subscribers is a no-op.
func (b *Broadcaster) Publish(ev Event) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return 0
	}
	metrics.BroadcastPublishedTotal.Inc()
	for _, s := range b.subs {
		if s.push(ev) {
			metrics.BroadcastDroppedTotal.Inc()
		}
	}
	return len(b.subs)
}

func (b *Broadcaster) SubscriberCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

// Close detaches all subscribers. They drain what is buffered, then get ErrClosed.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	subs := b.subs
	b.subs = make(map[uint64]*Subscription)
	b.mu.Unlock()

	for _, s := range subs {
		s.markClosed()
	}
}

func (b *Broadcaster) remove(id uint64) {
	b.mu.Lock()
	delete(b.subs, id)
	b.mu.Unlock()
}

type Subscription struct {
	b  *Broadcaster
	id uint64

	mu      sync.Mutex
	buf     []Event
	head    int
	count   int
	skipped uint64
	closed  bool

	notify chan struct{}
}

// push appends ev, evicting the oldest buffered event when full. It reports
// whether an event was dropped.
func (s *Subscription) push(ev Event) bool {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return false
	}
	dropped := false
	if s.count == len(s.buf) {
		s.buf[s.head] = Event{}
		s.head = (s.head + 1) % len(s.buf)
		s.count--
		s.skipped++
		dropped = true
	}
	s.buf[(s.head+s.count)%len(s.buf)] = ev
	s.count++
	s.mu.Unlock()
	s.wake()
	return dropped
}

func (s *Subscription) wake() {
	select {
	case s.notify <- struct{}{}:
	default:
	}
}

// Recv blocks for the next event. A pending lag is reported first as a
// *LagError; the following call resumes with the oldest retained event.
func (s *Subscription) Recv(ctx context.Context) (Event, error) {
	for {
		s.mu.Lock()
		if s.skipped > 0 {
			n := s.skipped
			s.skipped = 0
			s.mu.Unlock()
			return Event{}, &LagError{Skipped: n}
		}
		if s.count > 0 {
			ev := s.buf[s.head]
			s.buf[s.head] = Event{}
			s.head = (s.head + 1) % len(s.buf)
			s.count--
			s.mu.Unlock()
			return ev, nil
		}
		if s.closed {
			s.mu.Unlock()
			return Event{}, ErrClosed
		}
		s.mu.Unlock()

		select {
		case <-s.notify:
		case <-ctx.Done():
			return Event{}, ctx.Err()
		}
	}
}

// Close releases the subscription. Safe to call more than once.
func (s *Subscription) Close() {
	s.b.remove(s.id)
	s.markClosed()
}

func (s *Subscription) markClosed() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.wake()
}
