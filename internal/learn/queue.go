package learn

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

const defaultDisplayWindow = 3 * time.Second

// QueueOption is a functional option for configuring a [Queue].
type QueueOption func(*Queue)

// WithDisplayWindow sets how long a candidate stays on display awaiting a
// decision before it expires. Default: 3s.
func WithDisplayWindow(d time.Duration) QueueOption {
	return func(q *Queue) {
		q.window = d
	}
}

// WithDisplayFunc sets the callback invoked when a candidate goes on
// display. The default does nothing; the ingress layer typically pushes the
// candidate to the confirmation surface here.
func WithDisplayFunc(fn func(Candidate)) QueueOption {
	return func(q *Queue) {
		q.display = fn
	}
}

// WithDecisionFunc sets the callback invoked with the candidate's final
// state (accepted, rejected, or expired) once it leaves display.
func WithDecisionFunc(fn func(Candidate)) QueueOption {
	return func(q *Queue) {
		q.decided = fn
	}
}

// WithLogger sets the queue's logger. Default: [slog.Default].
func WithLogger(log *slog.Logger) QueueOption {
	return func(q *Queue) {
		q.log = log
	}
}

// Queue shows correction candidates to the user one at a time.
//
// Candidates queue strictly FIFO and are never dropped for being stale: if
// several accumulate during continuous dictation they display sequentially,
// each holding the screen for the display window unless the user decides
// sooner. A single consumer goroutine ([Queue.Run]) owns the display slot.
type Queue struct {
	window  time.Duration
	display func(Candidate)
	decided func(Candidate)
	log     *slog.Logger

	mu      sync.Mutex
	pending []Candidate
	wake    chan struct{}

	// current is the candidate on display, guarded by mu. decisions carries
	// the user's verdict for it.
	current   uuid.UUID
	decisions chan bool
}

// NewQueue returns a Queue configured with the supplied options.
func NewQueue(opts ...QueueOption) *Queue {
	q := &Queue{
		window:    defaultDisplayWindow,
		display:   func(Candidate) {},
		decided:   func(Candidate) {},
		log:       slog.Default(),
		wake:      make(chan struct{}, 1),
		decisions: make(chan bool),
	}
	for _, o := range opts {
		o(q)
	}
	return q
}

// Enqueue appends candidates to the tail of the queue.
func (q *Queue) Enqueue(candidates ...Candidate) {
	if len(candidates) == 0 {
		return
	}
	q.mu.Lock()
	q.pending = append(q.pending, candidates...)
	q.mu.Unlock()

	select {
	case q.wake <- struct{}{}:
	default:
	}
}

// Pending returns the number of candidates waiting behind the display slot.
func (q *Queue) Pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// Resolve records the user's decision for the candidate currently on
// display. It reports false when id does not match the displayed candidate,
// which happens when the decision arrives after expiry; stale decisions are
// logged and ignored.
func (q *Queue) Resolve(id uuid.UUID, accepted bool) bool {
	q.mu.Lock()
	match := q.current == id
	q.mu.Unlock()
	if !match {
		q.log.Warn("learn: decision for candidate not on display", "candidate_id", id)
		return false
	}
	select {
	case q.decisions <- accepted:
		return true
	default:
		// The display window closed between the check and the send.
		q.log.Warn("learn: decision raced display expiry", "candidate_id", id)
		return false
	}
}

// Run consumes the queue until ctx is done, displaying one candidate at a
// time. It always returns nil so it can sit directly in an errgroup.
func (q *Queue) Run(ctx context.Context) error {
	for {
		c, ok := q.pop()
		if !ok {
			select {
			case <-ctx.Done():
				return nil
			case <-q.wake:
				continue
			}
		}
		q.show(ctx, c)
		if ctx.Err() != nil {
			return nil
		}
	}
}

// pop removes the queue head, if any.
func (q *Queue) pop() (Candidate, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.pending) == 0 {
		return Candidate{}, false
	}
	c := q.pending[0]
	q.pending = q.pending[1:]
	return c, true
}

// show holds c in the display slot until a decision arrives, the window
// lapses, or ctx is done. The final state is delivered to the decision
// callback; context shutdown counts as expiry.
func (q *Queue) show(ctx context.Context, c Candidate) {
	q.mu.Lock()
	q.current = c.ID
	q.mu.Unlock()
	defer func() {
		q.mu.Lock()
		q.current = uuid.Nil
		q.mu.Unlock()
	}()

	q.display(c)

	timer := time.NewTimer(q.window)
	defer timer.Stop()

	select {
	case accepted := <-q.decisions:
		if accepted {
			c.State = StateAccepted
		} else {
			c.State = StateRejected
		}
	case <-timer.C:
		c.State = StateExpired
	case <-ctx.Done():
		c.State = StateExpired
	}
	q.decided(c)
}
