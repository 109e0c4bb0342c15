package nats

import (
	"context"
	"sync"
)

// Recorder keeps published transfer events in memory. Tests use it in place
// of a JetStream publisher.
type Recorder struct {
	mu     sync.Mutex
	events []*TransferEvent
	err    error
}

// PublishTransfer records event unless FailWith set an error.
func (r *Recorder) PublishTransfer(ctx context.Context, event *TransferEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.events = append(r.events, event)
	return nil
}

// FailWith makes every later PublishTransfer return err. A nil err clears it.
func (r *Recorder) FailWith(err error) {
	r.mu.Lock()
	r.err = err
	r.mu.Unlock()
}

// Events returns a copy of what has been recorded, oldest first.
func (r *Recorder) Events() []*TransferEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*TransferEvent(nil), r.events...)
}
