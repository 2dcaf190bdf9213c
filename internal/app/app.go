// Package app wires the kirtan subsystems into a running server.
//
// The App struct owns the full lifecycle: New loads corpora and builds the
// HTTP surface, Run serves it (plus the config watcher and an optional
// recognizer-driven follower) until the context is cancelled, and Shutdown
// releases what New acquired.
//
// For testing, inject doubles via functional options (WithCorpusSource,
// WithMetrics, etc.). When an option is not provided, New creates real
// implementations from the config.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/kirtan/internal/api"
	"github.com/MrWong99/kirtan/internal/config"
	"github.com/MrWong99/kirtan/internal/corpus"
	"github.com/MrWong99/kirtan/internal/follow"
	"github.com/MrWong99/kirtan/internal/health"
	"github.com/MrWong99/kirtan/internal/observe"
	"github.com/MrWong99/kirtan/internal/resilience"
	"github.com/MrWong99/kirtan/pkg/lang"
	"github.com/MrWong99/kirtan/pkg/provider/stt"
)

// shutdownTimeout bounds the graceful HTTP shutdown at the end of Run.
const shutdownTimeout = 10 * time.Second

// Providers holds one interface value per provider slot. Nil means the
// provider is not configured. Populated by main.go via the config registry.
type Providers struct {
	// STT, when set, feeds a follower that runs for the lifetime of Run.
	STT stt.Provider
}

// App owns all subsystem lifetimes.
type App struct {
	cfgPath   string
	providers *Providers

	registry   *config.Registry
	corpora    *corpus.Registry
	source     corpus.Source
	metrics    *observe.Metrics
	gatherer   prometheus.Gatherer
	logLevel   *slog.LevelVar
	onUpdate   func(follow.Update)
	listenHook func(net.Addr)

	api    *api.Server
	health *health.Handler

	// mu guards cfg and lines.
	mu    sync.Mutex
	cfg   *config.Config
	lines map[lang.Tag]int

	// closers are called in order during Shutdown.
	closers []func() error

	// stopOnce guards the Shutdown path.
	stopOnce sync.Once
}

// Option is a functional option for New. Use these to inject test doubles.
type Option func(*App)

// WithCorpusSource injects a stored corpus source instead of connecting to
// PostgreSQL from corpus.postgres_dsn.
func WithCorpusSource(s corpus.Source) Option {
	return func(a *App) { a.source = s }
}

// WithMetrics records metrics to m instead of [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(a *App) { a.metrics = m }
}

// WithGatherer serves g on /metrics instead of [prometheus.DefaultGatherer].
func WithGatherer(g prometheus.Gatherer) Option {
	return func(a *App) { a.gatherer = g }
}

// WithRegistry resolves scorers from r instead of a fresh [config.Registry].
func WithRegistry(r *config.Registry) Option {
	return func(a *App) { a.registry = r }
}

// WithLogLevel lets hot reload adjust lv when server.log_level changes.
func WithLogLevel(lv *slog.LevelVar) Option {
	return func(a *App) { a.logLevel = lv }
}

// WithConfigPath enables hot reload: Run watches path and the corpus files
// it references.
func WithConfigPath(path string) Option {
	return func(a *App) { a.cfgPath = path }
}

// WithUpdateHandler receives the updates of the recognizer-driven follower.
// Without it updates are logged.
func WithUpdateHandler(fn func(follow.Update)) Option {
	return func(a *App) { a.onUpdate = fn }
}

// WithListenHook is called with the bound address once the HTTP server
// listens.
func WithListenHook(fn func(net.Addr)) Option {
	return func(a *App) { a.listenHook = fn }
}

// ─── New ─────────────────────────────────────────────────────────────────────

// New creates an App from cfg. It connects to the corpus store when one is
// configured, loads every configured corpus and builds the HTTP handlers.
// A corpus that fails to load fails New.
func New(ctx context.Context, cfg *config.Config, providers *Providers, opts ...Option) (*App, error) {
	if providers == nil {
		providers = &Providers{}
	}
	a := &App{
		cfg:       cfg,
		providers: providers,
		corpora:   corpus.NewRegistry(),
		lines:     make(map[lang.Tag]int),
	}
	for _, o := range opts {
		o(a)
	}
	if a.registry == nil {
		a.registry = config.NewRegistry()
	}
	if a.metrics == nil {
		a.metrics = observe.DefaultMetrics()
	}
	if a.gatherer == nil {
		a.gatherer = prometheus.DefaultGatherer
	}

	// ── 1. Corpus store ──────────────────────────────────────────────────
	if err := a.initStore(ctx); err != nil {
		return nil, fmt.Errorf("app: init corpus store: %w", err)
	}
	if a.source != nil {
		a.source = resilience.GuardSource(a.source, resilience.BreakerConfig{})
	}

	// ── 2. Corpora ───────────────────────────────────────────────────────
	if err := a.reloadCorpora(ctx, cfg); err != nil {
		a.close()
		return nil, fmt.Errorf("app: load corpora: %w", err)
	}

	// ── 3. HTTP surface ──────────────────────────────────────────────────
	settings, err := a.settings(cfg)
	if err != nil {
		a.close()
		return nil, fmt.Errorf("app: %w", err)
	}
	a.api = api.New(a.corpora, api.WithMetrics(a.metrics), api.WithSettings(settings))

	checkers := []health.Checker{health.CorpusChecker(a.corpora)}
	if p, ok := a.source.(interface{ Ping(context.Context) error }); ok {
		checkers = append(checkers, health.PingChecker("postgres", p.Ping))
	}
	a.health = health.New(checkers...)

	return a, nil
}

// ─── Init helpers ────────────────────────────────────────────────────────────

// initStore connects to PostgreSQL when stored corpora are configured and no
// source was injected.
func (a *App) initStore(ctx context.Context) error {
	if a.source != nil || a.cfg.Corpus.PostgresDSN == "" {
		return nil
	}
	store, err := corpus.NewPostgresSource(ctx, a.cfg.Corpus.PostgresDSN)
	if err != nil {
		return err
	}
	a.source = store
	a.closers = append(a.closers, func() error {
		store.Close()
		return nil
	})
	slog.Info("connected to corpus store")
	return nil
}

// loadCorpora reads every corpus cfg names. Stored corpora override files
// for the same language.
func (a *App) loadCorpora(ctx context.Context, cfg *config.Config) (map[lang.Tag]*corpus.Corpus, error) {
	out := make(map[lang.Tag]*corpus.Corpus, len(cfg.Corpora)+len(cfg.Corpus.Names))

	for _, cf := range cfg.Corpora {
		c, err := corpus.LoadFile(cf.File)
		if err != nil {
			return nil, err
		}
		if c.Language != cf.Language {
			return nil, fmt.Errorf("corpus file %q declares language %q, configured as %q", cf.File, c.Language, cf.Language)
		}
		out[c.Language] = c
	}

	if len(cfg.Corpus.Names) > 0 && a.source == nil {
		return nil, errors.New("corpus.names configured without a corpus store")
	}
	for _, name := range cfg.Corpus.Names {
		c, err := a.source.Load(ctx, name)
		if err != nil {
			return nil, fmt.Errorf("load stored corpus %q: %w", name, err)
		}
		if prev, ok := out[c.Language]; ok {
			slog.Info("stored corpus overrides file", "language", c.Language, "corpus", c.Name, "replaced", prev.Name)
		}
		out[c.Language] = c
	}
	return out, nil
}

// reloadCorpora loads the corpora of cfg and makes them active. Languages no
// longer configured are removed. On error the active set is left unchanged.
func (a *App) reloadCorpora(ctx context.Context, cfg *config.Config) error {
	loaded, err := a.loadCorpora(ctx, cfg)
	if err != nil {
		return err
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	for _, tag := range a.corpora.Languages() {
		if _, ok := loaded[tag]; !ok {
			a.corpora.Remove(tag)
			a.metrics.AdjustCorpusLines(ctx, string(tag), -a.lines[tag])
			delete(a.lines, tag)
			slog.Info("corpus removed", "language", tag)
		}
	}
	for tag, c := range loaded {
		if err := a.corpora.Set(c); err != nil {
			return err
		}
		a.metrics.AdjustCorpusLines(ctx, string(tag), len(c.Lines)-a.lines[tag])
		a.lines[tag] = len(c.Lines)
		slog.Info("corpus loaded", "language", tag, "corpus", c.Name, "lines", len(c.Lines))
	}
	return nil
}

// settings derives the matcher settings from cfg.
func (a *App) settings(cfg *config.Config) (api.Settings, error) {
	scorer, err := a.registry.Scorer(cfg.Matcher.Scorer)
	if err != nil {
		return api.Settings{}, err
	}
	return api.Settings{
		Scorer:        scorer,
		MinScore:      cfg.Matcher.MinScore,
		SnippetMax:    cfg.Matcher.SnippetMax,
		TranscriptMax: cfg.Matcher.TranscriptMax,
	}, nil
}

// Config returns the active configuration.
func (a *App) Config() *config.Config {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.cfg
}

// Corpora returns the registry of active corpora.
func (a *App) Corpora() *corpus.Registry { return a.corpora }

// Handler returns the full HTTP surface: the API, health probes and
// /metrics, wrapped in the observability middleware.
func (a *App) Handler() http.Handler {
	mux := http.NewServeMux()
	a.api.Register(mux)
	a.health.Register(mux)
	mux.Handle("GET /metrics", promhttp.HandlerFor(a.gatherer, promhttp.HandlerOpts{}))
	return observe.Middleware(a.metrics)(mux)
}

// ─── Hot reload ──────────────────────────────────────────────────────────────

// Reload applies the hot-reloadable parts of next. Corpora are always
// re-read because their files may have changed under the same path.
func (a *App) Reload(ctx context.Context, next *config.Config) error {
	a.mu.Lock()
	prev := a.cfg
	a.mu.Unlock()

	d := config.Diff(prev, next)

	if d.LogLevelChanged && a.logLevel != nil {
		a.logLevel.Set(SlogLevel(d.NewLogLevel))
		slog.Info("log level changed", "level", d.NewLogLevel)
	}
	if d.StoreChanged && prev.Corpus.PostgresDSN != next.Corpus.PostgresDSN {
		slog.Warn("corpus.postgres_dsn changed; restart to connect to the new store")
	}

	var errs []error
	if d.MatcherChanged {
		st, err := a.settings(next)
		if err != nil {
			errs = append(errs, err)
		} else {
			a.api.SetSettings(st)
			slog.Info("matcher settings changed", "scorer", next.Matcher.Scorer, "min_score", next.Matcher.MinScore)
		}
	}
	for _, c := range d.CorpusChanges {
		slog.Debug("corpus file entry changed", "language", c.Language, "file", c.File, "added", c.Added, "removed", c.Removed, "moved", c.Moved)
	}
	if err := a.reloadCorpora(ctx, next); err != nil {
		errs = append(errs, err)
	}

	a.mu.Lock()
	a.cfg = next
	a.mu.Unlock()

	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("app: reload: %w", err)
	}
	return nil
}

// ─── Run ─────────────────────────────────────────────────────────────────────

// Run serves HTTP on server.listen_addr and blocks until ctx is cancelled or
// a subsystem fails. When ctx is done, Run shuts the server down gracefully
// and returns ctx.Err().
func (a *App) Run(ctx context.Context) error {
	cfg := a.Config()

	ln, err := net.Listen("tcp", cfg.Server.ListenAddr)
	if err != nil {
		return fmt.Errorf("app: listen: %w", err)
	}
	srv := &http.Server{
		Handler:           a.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
	slog.Info("http server listening", "addr", ln.Addr().String())
	if a.listenHook != nil {
		a.listenHook(ln.Addr())
	}

	g, gctx := errgroup.WithContext(ctx)

	// ── HTTP server ──────────────────────────────────────────────────────
	g.Go(func() error {
		var err error
		if tls := cfg.Server.TLS; tls != nil {
			err = srv.ServeTLS(ln, tls.CertFile, tls.KeyFile)
		} else {
			err = srv.Serve(ln)
		}
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("app: serve: %w", err)
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	// ── Config watcher ───────────────────────────────────────────────────
	if a.cfgPath != "" {
		w, err := config.NewWatcher(a.cfgPath, func(_, next *config.Config) {
			if err := a.Reload(gctx, next); err != nil {
				slog.Error("config reload incomplete", "err", err)
			}
		})
		if err != nil {
			slog.Warn("config hot reload disabled", "err", err)
		} else {
			g.Go(func() error {
				<-gctx.Done()
				w.Stop()
				return nil
			})
		}
	}

	// ── Recognizer-driven follower ───────────────────────────────────────
	if a.providers.STT != nil {
		g.Go(func() error { return a.follow(gctx, cfg) })
	}

	slog.Info("app running", "corpora", a.corpora.Len())
	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}

// follow runs one follower over a session of the configured STT provider.
// The session ending on its own is not an error.
func (a *App) follow(ctx context.Context, cfg *config.Config) error {
	tag, err := lang.Parse(cfg.STT.StringOption("language", string(lang.PunjabiIN)))
	if err != nil {
		return fmt.Errorf("app: stt language: %w", err)
	}
	sess, err := a.providers.STT.StartStream(ctx, stt.StreamConfig{Language: tag})
	if err != nil {
		return fmt.Errorf("app: start stt stream: %w", err)
	}
	defer sess.Close()

	st := a.api.Settings()
	f := follow.New(sess, tag, a.corpora,
		follow.WithMinScore(st.MinScore),
		follow.WithScorer(st.Scorer),
		follow.WithSnippetMax(st.SnippetMax),
		follow.WithTranscriptMax(st.TranscriptMax),
		follow.WithMetrics(a.metrics),
	)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for u := range f.Updates() {
			a.handleUpdate(u)
		}
	}()
	err = f.Run(ctx)
	wg.Wait()

	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("app: follow: %w", err)
	}
	slog.Info("stt session ended", "language", tag)
	return nil
}

func (a *App) handleUpdate(u follow.Update) {
	if a.onUpdate != nil {
		a.onUpdate(u)
		return
	}
	if u.Match == nil {
		slog.Debug("follow update", "snippet", u.Snippet, "final", u.Final)
		return
	}
	slog.Info("line matched", "index", u.Match.Index, "score", u.Match.Score, "line", u.Line, "latin", u.Latin)
}

// ─── Shutdown ────────────────────────────────────────────────────────────────

// Shutdown releases the resources acquired by New. It respects the context
// deadline: if ctx expires before all closers finish, remaining closers are
// skipped and the context error is returned.
func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error
	a.stopOnce.Do(func() {
		slog.Info("shutting down", "closers", len(a.closers))

		for i, closer := range a.closers {
			select {
			case <-ctx.Done():
				slog.Warn("shutdown deadline exceeded", "remaining", len(a.closers)-i)
				shutdownErr = ctx.Err()
				return
			default:
			}
			if err := closer(); err != nil {
				slog.Warn("closer error", "index", i, "err", err)
			}
		}

		slog.Info("shutdown complete")
	})
	return shutdownErr
}

// close runs the closers when New fails part way.
func (a *App) close() {
	for _, closer := range a.closers {
		_ = closer()
	}
	a.closers = nil
}

// ─── Helpers ─────────────────────────────────────────────────────────────────

// SlogLevel converts a config.LogLevel to a slog.Level.
func SlogLevel(level config.LogLevel) slog.Level {
	switch level {
	case config.LogDebug:
		return slog.LevelDebug
	case config.LogWarn:
		return slog.LevelWarn
	case config.LogError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
