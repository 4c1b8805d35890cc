package ws

import (
	"context"
	"fmt"

	"veilchat/contract"
	"veilchat/domain/event"
)

var errSinkClosed = fmt.Errorf("sink closed")

// Sink buffers events for a single websocket connection. The write
// pump drains Events; Consume is what the relay engine calls during
// fan-out. The events channel is never closed: teardown closes done
// instead, so a fan-out racing a disconnect fails cleanly rather than
// panicking on a closed channel.
type Sink struct {
	Events chan event.DomainEvent
	done   chan struct{}
}

var _ contract.EventSink = (*Sink)(nil)

func NewSink(bufferSize int) *Sink {
	return &Sink{
		Events: make(chan event.DomainEvent, bufferSize),
		done:   make(chan struct{}),
	}
}

// Consume hands the event to the connection's write pump. When the
// buffer is full it waits up to the caller's deadline, then reports
// backpressure; the engine drops the event rather than stall other
// connections.
func (s *Sink) Consume(ctx context.Context, e event.DomainEvent) error {
	select {
	case s.Events <- e:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-s.done:
		return errSinkClosed
	}
}

// Close stops the sink. Call once, after the connection has left the
// presence registry.
func (s *Sink) Close() {
	close(s.done)
}

func (s *Sink) Done() <-chan struct{} {
	return s.done
}
