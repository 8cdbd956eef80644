package app

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/faderpilot/mixctl/internal/command"
	"github.com/faderpilot/mixctl/internal/device"
	"github.com/faderpilot/mixctl/internal/dictionary"
	"github.com/faderpilot/mixctl/internal/history"
	"github.com/faderpilot/mixctl/internal/learn"
	"github.com/faderpilot/mixctl/internal/learn/global"
	"github.com/faderpilot/mixctl/internal/observe"
	"github.com/faderpilot/mixctl/internal/transcript"
)

// turnBacklog is the number of finalized turns a session buffers ahead of its
// processor. EndTurn blocks once the backlog is full so turns are never lost.
const turnBacklog = 16

// ProposalRecorder feeds the denominator of the shared acceptance-rate stats.
// *global.Aggregator satisfies it.
type ProposalRecorder interface {
	RecordProposal(ctx context.Context, key global.PairKey) error
}

// SessionDeps holds the shared collaborators every session uses. The
// dictionary, transport, and queue are application-wide; the compiler,
// attempt history, and detector are per session.
type SessionDeps struct {
	Dictionary dictionary.Store
	Transport  device.Transport
	Queue      *learn.Queue

	// Proposals is optional; nil disables proposal counting.
	Proposals ProposalRecorder

	Metrics *observe.Metrics
	Logger  *slog.Logger
}

// Session runs the compile pipeline for one transcript stream.
//
// Tokens arrive via [Session.Append] and buffer in the aggregator until
// [Session.EndTurn] snapshots them into one attempt. A single processor
// goroutine compiles attempts in order; dispatch to the console happens
// asynchronously so a slow device never stalls the next turn.
type Session struct {
	id       string
	agg      *transcript.Aggregator
	compiler *command.Compiler
	history  *history.Log
	detector *learn.Detector
	deps     SessionDeps
	log      *slog.Logger

	turns  chan []string
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// newSession creates a session and starts its processor goroutine.
func newSession(id string, deps SessionDeps) *Session {
	log := deps.Logger
	if log == nil {
		log = slog.Default()
	}
	log = log.With("session_id", id)

	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		id:       id,
		agg:      transcript.NewAggregator(),
		compiler: command.New(),
		history:  history.NewLog(id, log),
		detector: learn.NewDetector(learn.NewProposer()),
		deps:     deps,
		log:      log,
		turns:    make(chan []string, turnBacklog),
		ctx:      ctx,
		cancel:   cancel,
	}
	s.wg.Add(1)
	go s.run()
	return s
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// History returns the session's attempt log.
func (s *Session) History() *history.Log { return s.history }

// Append adds a recognized token to the in-progress turn.
func (s *Session) Append(t transcript.Token) {
	s.agg.Append(t)
}

// EndTurn finalizes the in-progress turn and hands it to the processor.
// Empty turns are discarded. Blocks while the turn backlog is full.
func (s *Session) EndTurn() {
	tokens := s.agg.FinalizeTurn()
	if len(tokens) == 0 {
		return
	}
	texts := make([]string, len(tokens))
	for i, t := range tokens {
		texts[i] = t.Text
	}
	select {
	case s.turns <- texts:
	case <-s.ctx.Done():
	}
}

// Close stops the processor and drops the session's history. Buffered turns
// that have not started processing are discarded.
func (s *Session) Close() {
	s.cancel()
	s.wg.Wait()
	s.history.Clear()
}

// run is the single processor goroutine: one turn at a time, in order.
func (s *Session) run() {
	defer s.wg.Done()
	for {
		select {
		case tokens := <-s.turns:
			s.process(tokens)
		case <-s.ctx.Done():
			return
		}
	}
}

// process compiles one turn, records the attempt, and on success dispatches
// the commands and scans for retry corrections.
func (s *Session) process(tokens []string) {
	ctx, span := observe.StartSpan(s.ctx, "turn.process",
		trace.WithAttributes(
			attribute.String("session.id", s.id),
			attribute.Int("turn.tokens", len(tokens)),
		))
	defer span.End()

	start := time.Now()
	res := s.compiler.Compile(tokens, s.deps.Dictionary)

	att := history.Attempt{
		ID:        uuid.New(),
		Tokens:    tokens,
		Timestamp: time.Now(),
	}

	if !res.OK() {
		att.Outcome = history.OutcomeFailed
		att.Reason = res.Reason
		s.history.Record(att)
		s.deps.Metrics.RecordAttempt(ctx, "failed", time.Since(start))
		span.SetAttributes(attribute.String("turn.outcome", "failed"))
		s.log.Debug("turn did not compile", "reason", res.Reason.String(), "tokens", len(tokens))
		return
	}

	att.Outcome = history.OutcomeCompiled
	att.Commands = res.Commands
	s.history.Record(att)
	s.deps.Metrics.RecordAttempt(ctx, "compiled", time.Since(start))
	span.SetAttributes(attribute.String("turn.outcome", "compiled"))

	s.wg.Add(1)
	go s.dispatch(ctx, att.ID, res.Commands)

	s.scanRetries(ctx, att)
}

// dispatch sends the attempt's commands to the console in order and records
// the combined outcome. Any rejection wins over any timeout wins over all
// acknowledged.
func (s *Session) dispatch(ctx context.Context, attemptID uuid.UUID, cmds []command.Command) {
	defer s.wg.Done()

	ctx, span := observe.StartSpan(ctx, "turn.dispatch",
		trace.WithAttributes(attribute.Int("turn.commands", len(cmds))))
	defer span.End()

	state := history.DispatchAcknowledged
	for _, cmd := range cmds {
		start := time.Now()
		outcome := <-s.deps.Transport.Send(ctx, cmd)
		s.deps.Metrics.RecordDispatch(ctx, outcome.String(), time.Since(start))

		switch outcome {
		case device.OutcomeRejected:
			state = history.DispatchRejected
		case device.OutcomeTimeout:
			if state != history.DispatchRejected {
				state = history.DispatchTimedOut
			}
		}
	}
	s.history.MarkDispatched(attemptID, state, s.deps.Transport.Connected())
}

// scanRetries compares the compiled attempt against prior failures and queues
// any correction candidates it finds.
func (s *Session) scanRetries(ctx context.Context, compiled history.Attempt) {
	candidates := s.detector.Scan(s.history, compiled)
	if len(candidates) == 0 {
		return
	}
	for _, c := range candidates {
		s.deps.Metrics.RecordCorrection(ctx, "proposed")
		if s.deps.Proposals != nil {
			key := global.PairKey{Original: c.From, Replacement: c.To}
			if err := s.deps.Proposals.RecordProposal(ctx, key); err != nil {
				s.log.Warn("recording proposal failed", "err", err)
			}
		}
		s.log.Info("correction candidate proposed",
			"from", c.From, "to", c.To, "score", c.Score)
	}
	s.deps.Queue.Enqueue(candidates...)
}
