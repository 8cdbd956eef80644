// Package device defines the dispatch seam between compiled commands and the
// mixing console.
//
// Dispatch is asynchronous and fire-and-forget from the compiler's point of
// view: [Transport.Send] returns immediately with a channel that later
// yields the console's verdict. A failed dispatch never blocks parsing; the
// outcome is folded into attempt history whenever it arrives.
package device

import (
	"context"

	"github.com/faderpilot/mixctl/internal/command"
)

// Outcome is the console's verdict on a dispatched command.
type Outcome int

const (
	// OutcomeTimeout means no verdict arrived within the transport's
	// deadline, or no console link existed.
	OutcomeTimeout Outcome = iota

	// OutcomeAcknowledged means the console confirmed the command.
	OutcomeAcknowledged

	// OutcomeRejected means the console refused the command.
	OutcomeRejected
)

func (o Outcome) String() string {
	switch o {
	case OutcomeAcknowledged:
		return "acknowledged"
	case OutcomeRejected:
		return "rejected"
	default:
		return "timeout"
	}
}

// Transport delivers commands to a console.
//
// Implementations must be safe for concurrent use.
type Transport interface {
	// Send dispatches cmd and returns a channel that yields exactly one
	// outcome. Send itself never blocks on the console.
	Send(ctx context.Context, cmd command.Command) <-chan Outcome

	// Connected is a fast connectivity probe, no command round-trip. Used
	// to tag accept events as hardware-verified.
	Connected() bool

	// Close tears the link down.
	Close() error
}
