package bus

import (
	"errors"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"
)

// ErrClosed is returned when operating on a closed bus or subscription.
var ErrClosed = errors.New("bus closed")

// Subscriber receives events of one Kind, invoked synchronously on the
// publisher's goroutine. An error from a subscriber is logged; it never
// stops subsequent subscribers from running (spec.md §4.8).
type Subscriber func(event Event) error

// Subscription lets a caller stop receiving events.
type Subscription interface {
	Unsubscribe()
}

// Bus is the Event Bus contract: publish-subscribe with synchronous,
// registration-ordered delivery.
type Bus interface {
	// Subscribe registers handler for events of the given kind. Multiple
	// subscribers on the same kind are invoked in the order they
	// subscribed.
	Subscribe(kind Kind, handler Subscriber) Subscription

	// Publish delivers event to every subscriber of its Kind, in
	// registration order, on the calling goroutine. A subscriber error
	// is logged and does not prevent later subscribers from running.
	Publish(event Event)

	// Close releases bus resources. Implementations backed by an
	// external transport (e.g. Kafka) flush pending sends first.
	Close() error
}

// InProc is the primary Bus implementation: pure in-process, ordered,
// synchronous delivery with no external transport. This is the bus
// every component should use unless cross-process fan-out is required.
type InProc struct {
	mu     sync.Mutex
	subs   map[Kind][]*subscription
	nextID uint64
	closed atomic.Bool
	log    zerolog.Logger
}

// NewInProc builds an in-process Event Bus.
func NewInProc(log zerolog.Logger) *InProc {
	return &InProc{subs: make(map[Kind][]*subscription), log: log}
}

type subscription struct {
	bus     *InProc
	kind    Kind
	id      uint64
	handler Subscriber
}

func (s *subscription) Unsubscribe() {
	s.bus.mu.Lock()
	defer s.bus.mu.Unlock()
	list := s.bus.subs[s.kind]
	for i, sub := range list {
		if sub.id == s.id {
			s.bus.subs[s.kind] = append(list[:i], list[i+1:]...)
			return
		}
	}
}

func (b *InProc) Subscribe(kind Kind, handler Subscriber) Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	sub := &subscription{bus: b, kind: kind, id: b.nextID, handler: handler}
	b.subs[kind] = append(b.subs[kind], sub)
	return sub
}

// Publish delivers event to each subscriber of its kind in registration
// order, on the calling goroutine. The subscriber list is snapshotted
// under lock before delivery so a handler that subscribes or
// unsubscribes mid-publish cannot corrupt iteration or deadlock against
// Subscribe/Unsubscribe.
func (b *InProc) Publish(event Event) {
	if b.closed.Load() {
		return
	}

	b.mu.Lock()
	subs := append([]*subscription(nil), b.subs[event.Kind()]...)
	b.mu.Unlock()

	for _, sub := range subs {
		if err := sub.handler(event); err != nil {
			b.log.Error().Err(err).Str("event_kind", string(event.Kind())).Msg("bus subscriber returned error")
		}
	}
}

func (b *InProc) Close() error {
	b.closed.Store(true)
	return nil
}
