// Package mock provides test doubles for the global learning interfaces.
package mock

import (
	"context"
	"sync"

	"github.com/faderpilot/mixctl/internal/learn/global"
)

// Reporter is a recording [global.Reporter].
type Reporter struct {
	// Err, when set, is returned by every ReportAccept call.
	Err error

	mu      sync.Mutex
	reports []global.Accept
}

var _ global.Reporter = (*Reporter)(nil)

// ReportAccept implements [global.Reporter].
func (r *Reporter) ReportAccept(_ context.Context, a global.Accept) error {
	if r.Err != nil {
		return r.Err
	}
	r.mu.Lock()
	r.reports = append(r.reports, a)
	r.mu.Unlock()
	return nil
}

// Reports returns a copy of every event reported so far.
func (r *Reporter) Reports() []global.Accept {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]global.Accept, len(r.reports))
	copy(out, r.reports)
	return out
}
