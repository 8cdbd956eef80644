// Package mock provides an in-memory [device.Transport] for tests and for
// running the pipeline without a console.
package mock

import (
	"context"
	"sync"

	"github.com/faderpilot/mixctl/internal/command"
	"github.com/faderpilot/mixctl/internal/device"
)

// Transport records every dispatched command and yields scripted outcomes.
type Transport struct {
	mu        sync.Mutex
	sent      []command.Command
	outcomes  []device.Outcome
	connected bool
	closed    bool
}

var _ device.Transport = (*Transport)(nil)

// NewTransport returns a connected transport that acknowledges everything.
func NewTransport() *Transport {
	return &Transport{connected: true}
}

// Script queues outcomes to yield in order; once exhausted, sends are
// acknowledged again.
func (t *Transport) Script(outcomes ...device.Outcome) {
	t.mu.Lock()
	t.outcomes = append(t.outcomes, outcomes...)
	t.mu.Unlock()
}

// SetConnected flips the connectivity probe.
func (t *Transport) SetConnected(connected bool) {
	t.mu.Lock()
	t.connected = connected
	t.mu.Unlock()
}

// Sent returns a copy of every command dispatched so far.
func (t *Transport) Sent() []command.Command {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]command.Command, len(t.sent))
	copy(out, t.sent)
	return out
}

// Send implements [device.Transport].
func (t *Transport) Send(_ context.Context, cmd command.Command) <-chan device.Outcome {
	t.mu.Lock()
	t.sent = append(t.sent, cmd)
	outcome := device.OutcomeAcknowledged
	if !t.connected {
		outcome = device.OutcomeTimeout
	} else if len(t.outcomes) > 0 {
		outcome = t.outcomes[0]
		t.outcomes = t.outcomes[1:]
	}
	t.mu.Unlock()

	out := make(chan device.Outcome, 1)
	out <- outcome
	return out
}

// Connected implements [device.Transport].
func (t *Transport) Connected() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.connected && !t.closed
}

// Close implements [device.Transport].
func (t *Transport) Close() error {
	t.mu.Lock()
	t.closed = true
	t.connected = false
	t.mu.Unlock()
	return nil
}
