// Package app wires all mixctl subsystems into a running application.
//
// The App struct owns the full lifecycle: New creates and connects all
// subsystems, Run executes them under one errgroup, and Shutdown tears
// everything down in reverse-init order.
//
// For testing, inject mock implementations via functional options
// (WithTransport, WithReporter, etc.). When an option is not provided, New
// creates real implementations from the config.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/faderpilot/mixctl/internal/command"
	"github.com/faderpilot/mixctl/internal/config"
	"github.com/faderpilot/mixctl/internal/device"
	devmock "github.com/faderpilot/mixctl/internal/device/mock"
	"github.com/faderpilot/mixctl/internal/device/rcp"
	"github.com/faderpilot/mixctl/internal/dictionary"
	"github.com/faderpilot/mixctl/internal/health"
	"github.com/faderpilot/mixctl/internal/ingress"
	"github.com/faderpilot/mixctl/internal/learn"
	"github.com/faderpilot/mixctl/internal/learn/global"
	"github.com/faderpilot/mixctl/internal/observe"
)

// shutdownGrace bounds how long the HTTP servers may take to drain.
const shutdownGrace = 5 * time.Second

// reportTimeout bounds one accept-event delivery to the learning backend.
const reportTimeout = 5 * time.Second

// App owns all subsystem lifetimes.
type App struct {
	cfg     *config.Config
	log     *slog.Logger
	metrics *observe.Metrics

	dict      dictionary.Store
	transport device.Transport
	rcpClient *rcp.Client
	queue     *learn.Queue
	sessions  *SessionManager

	display func(learn.Candidate)

	reporter   global.Reporter
	aggregator *global.Aggregator
	pgStore    *global.PostgresStore
	syncer     *global.Syncer
	consumer   *global.AcceptConsumer

	// closers are called in reverse order during Shutdown.
	closers []func() error

	stopOnce sync.Once
}

// Option is a functional option for New. Use these to inject test doubles.
type Option func(*App)

// WithDictionary injects a dictionary store instead of creating one from config.
func WithDictionary(d dictionary.Store) Option {
	return func(a *App) { a.dict = d }
}

// WithTransport injects a device transport instead of creating one from config.
func WithTransport(t device.Transport) Option {
	return func(a *App) { a.transport = t }
}

// WithReporter injects an accept-event reporter instead of the Kafka one.
func WithReporter(r global.Reporter) Option {
	return func(a *App) { a.reporter = r }
}

// WithMetrics injects a metrics instance instead of [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(a *App) { a.metrics = m }
}

// WithLogger sets the application logger. Default: [slog.Default].
func WithLogger(log *slog.Logger) Option {
	return func(a *App) { a.log = log }
}

// WithDisplay sets the callback invoked when a correction candidate goes on
// display. This is the confirmation surface seam; the default logs the
// suggestion.
func WithDisplay(fn func(learn.Candidate)) Option {
	return func(a *App) { a.display = fn }
}

// New creates an App by wiring all subsystems together from cfg. Use Option
// functions to inject test doubles for any subsystem.
func New(ctx context.Context, cfg *config.Config, opts ...Option) (*App, error) {
	a := &App{cfg: cfg}
	for _, o := range opts {
		o(a)
	}
	if a.log == nil {
		a.log = slog.Default()
	}
	if a.metrics == nil {
		a.metrics = observe.DefaultMetrics()
	}

	// ── 1. Personal dictionary ───────────────────────────────────────────
	if err := a.initDictionary(); err != nil {
		return nil, fmt.Errorf("app: init dictionary: %w", err)
	}

	// ── 2. Console transport ─────────────────────────────────────────────
	a.initTransport()

	// ── 3. Shared learning backend ───────────────────────────────────────
	if err := a.initLearning(ctx); err != nil {
		return nil, fmt.Errorf("app: init learning: %w", err)
	}

	// ── 4. Candidate queue + sessions ────────────────────────────────────
	if a.display == nil {
		a.display = func(c learn.Candidate) {
			a.log.Info("did you mean?", "candidate_id", c.ID, "from", c.From, "to", c.To)
		}
	}
	a.queue = learn.NewQueue(
		learn.WithDisplayWindow(cfg.Learning.DisplayWindow),
		learn.WithDisplayFunc(a.display),
		learn.WithDecisionFunc(a.onDecision),
		learn.WithLogger(a.log),
	)
	deps := SessionDeps{
		Dictionary: a.dict,
		Transport:  a.transport,
		Queue:      a.queue,
		Metrics:    a.metrics,
		Logger:     a.log,
	}
	if a.aggregator != nil {
		deps.Proposals = a.aggregator
	}
	a.sessions = NewSessionManager(deps)

	return a, nil
}

// ─── Init helpers ────────────────────────────────────────────────────────────

// initDictionary opens the file-backed dictionary, or keeps it in memory when
// no path is configured.
func (a *App) initDictionary() error {
	if a.dict != nil {
		return nil
	}
	if path := a.cfg.Dictionary.Path; path != "" {
		f, err := dictionary.OpenFile(path)
		if err != nil {
			return err
		}
		a.dict = f
		a.log.Info("dictionary loaded", "path", path, "entries", f.Len())
	} else {
		a.dict = dictionary.NewMemory()
	}
	a.metrics.DictionarySize.Add(context.Background(), int64(a.dict.Len()))
	return nil
}

// initTransport creates the console link: the RCP client, or the in-memory
// mock when configured without hardware.
func (a *App) initTransport() {
	if a.transport != nil {
		return
	}
	if a.cfg.Device.Mock {
		a.transport = devmock.NewTransport()
		a.log.Warn("device.mock is set; commands are acknowledged without a console")
		return
	}

	rcpOpts := []rcp.Option{rcp.WithLogger(a.log)}
	if a.cfg.Device.ResponseTimeout > 0 {
		rcpOpts = append(rcpOpts, rcp.WithResponseTimeout(a.cfg.Device.ResponseTimeout))
	}
	c := rcp.New(a.cfg.Device.Addr, rcpOpts...)
	a.rcpClient = c
	a.transport = c
	a.closers = append(a.closers, c.Close)
}

// initLearning sets up the aggregation side when this node runs it, plus the
// outbound reporter and the promoted-pair syncer when the account is entitled.
func (a *App) initLearning(ctx context.Context) error {
	lc := a.cfg.Learning

	// Aggregation store: PostgreSQL when a DSN is configured, in-memory when
	// shared learning runs without one.
	var aggStore global.Store
	if lc.PostgresDSN != "" {
		store, err := global.NewPostgresStore(ctx, lc.PostgresDSN)
		if err != nil {
			return err
		}
		a.pgStore = store
		a.closers = append(a.closers, func() error {
			store.Close()
			return nil
		})
		aggStore = store
	} else if lc.SharedLearning {
		aggStore = global.NewMemoryStore()
	}
	if aggStore != nil {
		ann := global.NewPromotedAnnouncer(a.cfg.Kafka.Brokers, a.cfg.Kafka.PromotedTopic, a.log)
		a.closers = append(a.closers, ann.Close)
		a.aggregator = global.NewAggregator(aggStore,
			global.WithPromotionThreshold(lc.PromotionThreshold),
			global.WithAnnouncer(ann),
			global.WithAggregatorLogger(a.log),
		)
	}

	if a.aggregator != nil && len(a.cfg.Kafka.Brokers) > 0 {
		a.consumer = global.NewAcceptConsumer(
			a.cfg.Kafka.Brokers, a.cfg.Kafka.AcceptTopic, a.cfg.Kafka.ConsumerGroup,
			a.aggregator, a.log,
		)
		a.closers = append(a.closers, a.consumer.Close)
	}

	if !lc.SharedLearning {
		return nil
	}

	if a.reporter == nil {
		kr := global.NewKafkaReporter(a.cfg.Kafka.Brokers, a.cfg.Kafka.AcceptTopic, a.log)
		a.reporter = kr
		a.closers = append(a.closers, kr.Close)
	}
	if a.aggregator != nil {
		a.syncer = global.NewSyncer(a.aggregator, a.dict,
			global.WithSyncInterval(lc.SyncInterval),
			global.WithSyncLogger(a.log),
		)
	}
	return nil
}

// ─── Candidate decisions ─────────────────────────────────────────────────────

// onDecision receives each candidate's final state from the queue. An accept
// lands in the personal dictionary immediately and is reported to the shared
// backend; reject and expiry store nothing.
func (a *App) onDecision(c learn.Candidate) {
	ctx := context.Background()
	a.metrics.RecordCorrection(ctx, c.State.String())
	if c.State != learn.StateAccepted {
		return
	}

	before := a.dict.Len()
	entry, err := a.dict.Accept(c.From, c.To)
	if err != nil {
		a.log.Error("storing accepted correction failed", "from", c.From, "to", c.To, "err", err)
		return
	}
	if a.dict.Len() > before {
		a.metrics.DictionarySize.Add(ctx, 1)
	}
	a.log.Info("correction accepted", "from", entry.Original, "to", entry.Replacement)

	if a.reporter == nil {
		return
	}
	acc := global.Accept{
		Original:         command.FoldToken(c.From),
		Replacement:      command.FoldToken(c.To),
		UserID:           a.cfg.Server.UserID,
		HardwareVerified: a.transport.Connected(),
		AcceptedAt:       time.Now(),
	}
	go func() {
		rctx, cancel := context.WithTimeout(context.Background(), reportTimeout)
		defer cancel()
		if err := a.reporter.ReportAccept(rctx, acc); err != nil {
			a.log.Warn("reporting accept failed", "from", acc.Original, "to", acc.Replacement, "err", err)
		}
	}()
}

// ─── ingress.Hub ─────────────────────────────────────────────────────────────

// OpenSession implements [ingress.Hub].
func (a *App) OpenSession(id string) (ingress.TurnSink, error) {
	s, err := a.sessions.Open(id)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// CloseSession implements [ingress.Hub].
func (a *App) CloseSession(id string) {
	a.sessions.Close(id)
}

// ResolveCandidate implements [ingress.Hub].
func (a *App) ResolveCandidate(id uuid.UUID, accepted bool) bool {
	return a.queue.Resolve(id, accepted)
}

// Sessions returns the session manager.
func (a *App) Sessions() *SessionManager { return a.sessions }

// ─── Run ─────────────────────────────────────────────────────────────────────

// Run starts every long-lived component and blocks until ctx is cancelled or
// a component fails: the candidate queue, the console link, the learning
// consumers, the transcript ingress, and the admin endpoints.
func (a *App) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error { return a.queue.Run(ctx) })
	if a.rcpClient != nil {
		g.Go(func() error { return a.rcpClient.Run(ctx) })
	}
	if a.syncer != nil {
		g.Go(func() error { return a.syncer.Run(ctx) })
	}
	if a.consumer != nil {
		g.Go(func() error { return a.consumer.Run(ctx) })
	}

	ingressSrv := &http.Server{
		Addr: a.cfg.Server.ListenAddr,
		Handler: observe.Middleware(a.metrics)(
			ingress.NewServer(a, ingress.WithLogger(a.log)).Handler(),
		),
	}
	adminSrv := &http.Server{
		Addr:    a.cfg.Server.AdminAddr,
		Handler: a.adminHandler(),
	}
	g.Go(func() error { return serve(ingressSrv, "ingress", a.log) })
	g.Go(func() error { return serve(adminSrv, "admin", a.log) })

	g.Go(func() error {
		<-ctx.Done()
		drain, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		_ = ingressSrv.Shutdown(drain)
		_ = adminSrv.Shutdown(drain)
		a.sessions.CloseAll()
		return nil
	})

	a.log.Info("mixctl running",
		"listen_addr", a.cfg.Server.ListenAddr,
		"admin_addr", a.cfg.Server.AdminAddr,
		"mock_device", a.cfg.Device.Mock,
		"shared_learning", a.cfg.Learning.SharedLearning,
	)
	return g.Wait()
}

// adminHandler builds the admin mux: health probes and Prometheus metrics.
func (a *App) adminHandler() http.Handler {
	checkers := []health.Checker{health.Console(a.transport)}
	if a.pgStore != nil {
		checkers = append(checkers, health.Database(a.pgStore.Pool()))
	}

	mux := http.NewServeMux()
	health.New(checkers...).Register(mux)
	mux.Handle("GET /metrics", promhttp.Handler())
	return mux
}

// serve runs an HTTP server until Shutdown; a clean close is not an error.
func serve(srv *http.Server, name string, log *slog.Logger) error {
	log.Info("http server listening", "server", name, "addr", srv.Addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("app: %s server: %w", name, err)
	}
	return nil
}

// ─── Shutdown ────────────────────────────────────────────────────────────────

// Shutdown tears down all subsystems in reverse-init order. It respects the
// context deadline: if ctx expires before all closers finish, remaining
// closers are skipped and the context error is returned.
func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error
	a.stopOnce.Do(func() {
		a.log.Info("shutting down", "closers", len(a.closers))
		a.sessions.CloseAll()

		for i := len(a.closers) - 1; i >= 0; i-- {
			select {
			case <-ctx.Done():
				a.log.Warn("shutdown deadline exceeded", "remaining", i+1)
				shutdownErr = ctx.Err()
				return
			default:
			}
			if err := a.closers[i](); err != nil {
				a.log.Warn("closer error", "index", i, "err", err)
			}
		}
		a.log.Info("shutdown complete")
	})
	return shutdownErr
}
