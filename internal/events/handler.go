// internal/events/handler.go
package events

import (
	"context"

	"github.com/gagliardetto/solana-go"
)

// Handler processes events. Handlers run on the bus goroutine and should
// not block.
type Handler interface {
	Handle(ctx context.Context, event Event) error
}

// HandlerFunc is an adapter to allow the use of ordinary functions as event handlers.
type HandlerFunc func(ctx context.Context, event Event) error

// Handle calls f(ctx, event).
func (f HandlerFunc) Handle(ctx context.Context, event Event) error {
	return f(ctx, event)
}

// ForMint wraps h so it only sees events of one asset.
func ForMint(mint solana.PublicKey, h Handler) Handler {
	return HandlerFunc(func(ctx context.Context, e Event) error {
		if m, ok := MintOf(e); ok && m.Equals(mint) {
			return h.Handle(ctx, e)
		}
		return nil
	})
}

// Stream forwards events into a buffered channel. Slow readers lose
// events rather than stall the bus.
type Stream struct {
	C       chan Event
	dropped uint64
}

// NewStream creates a stream with the given buffer.
func NewStream(size int) *Stream {
	return &Stream{C: make(chan Event, size)}
}

// Handle implements Handler.
func (s *Stream) Handle(_ context.Context, e Event) error {
	select {
	case s.C <- e:
	default:
		s.dropped++
	}
	return nil
}

// Dropped returns how many events the stream discarded. It must only be
// read from the bus goroutine or after unsubscribing.
func (s *Stream) Dropped() uint64 {
	return s.dropped
}

// Subscription represents a subscription to events.
type Subscription interface {
	Unsubscribe()
}

type subscription struct {
	id       string
	eventBus *Bus
	typ      EventType
}

// Unsubscribe removes this subscription from the event bus.
func (s *subscription) Unsubscribe() {
	s.eventBus.unsubscribe(s.id, s.typ)
}
