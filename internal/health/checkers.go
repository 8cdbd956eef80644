package health

import (
	"context"
	"errors"

	"github.com/faderpilot/mixctl/internal/device"
)

// Console returns a [Checker] that fails while the console link is down.
// The transport reconnects on its own, so a failure here is transient.
func Console(t device.Transport) Checker {
	return Checker{
		Name: "console",
		Check: func(_ context.Context) error {
			if !t.Connected() {
				return errors.New("console link down")
			}
			return nil
		},
	}
}

// pinger is the subset of a connection pool needed for a readiness probe.
// *pgxpool.Pool satisfies it.
type pinger interface {
	Ping(ctx context.Context) error
}

// Database returns a [Checker] that pings the candidate store.
func Database(p pinger) Checker {
	return Checker{
		Name:  "database",
		Check: p.Ping,
	}
}
