// Package app wires all Switchboard subsystems into a running application.
//
// The App struct owns the full lifecycle: New creates and connects all
// subsystems, Run serves the media-stream endpoint until the context is
// cancelled, and Shutdown tears everything down in order.
//
// For testing, inject mock implementations via functional options
// (WithStorage, WithSessions, etc.). When an option is not provided, New
// creates real implementations from the config.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/frontdeskai/switchboard/internal/config"
	"github.com/frontdeskai/switchboard/internal/convo"
	"github.com/frontdeskai/switchboard/internal/gateway"
	"github.com/frontdeskai/switchboard/internal/health"
	"github.com/frontdeskai/switchboard/internal/kb"
	"github.com/frontdeskai/switchboard/internal/observe"
	"github.com/frontdeskai/switchboard/internal/projects"
	"github.com/frontdeskai/switchboard/internal/resilience"
	"github.com/frontdeskai/switchboard/internal/sessioncache"
	"github.com/frontdeskai/switchboard/internal/speech"
	"github.com/frontdeskai/switchboard/internal/store"
	"github.com/frontdeskai/switchboard/pkg/provider/embeddings"
	"github.com/frontdeskai/switchboard/pkg/provider/llm"
	"github.com/frontdeskai/switchboard/pkg/provider/stt"
	"github.com/frontdeskai/switchboard/pkg/provider/tts/elevenlabs"
)

// Providers holds the provider instances built by main.go via the config
// registry. LLM is the generation ladder in priority order. Stream is the
// optional ElevenLabs provider backing the streaming synthesis path; nil
// disables it.
type Providers struct {
	LLM        []llm.Provider
	STT        stt.Provider
	Embeddings embeddings.Provider
	Voices     []speech.Rung
	Stream     *elevenlabs.Provider
}

// Storage is everything the call path needs from persistent storage. The
// production implementation is [store.Store].
type Storage interface {
	convo.Store
	gateway.CallStore
}

var _ Storage = (*store.Store)(nil)

// App owns all subsystem lifetimes behind the Switchboard HTTP server.
type App struct {
	cfg       *config.Config
	providers *Providers

	// Subsystems — initialised in New, torn down in Shutdown.
	storage  Storage
	pg       *store.Store // nil when storage was injected
	sessions sessioncache.Cache
	redis    *sessioncache.Redis // nil when sessions were injected or in-memory
	search   kb.Searcher
	cache    *speech.Cache
	tracker  *health.Tracker
	synth    *speech.Synthesizer
	streamer *speech.Streamer
	orc      *convo.Orchestrator
	acceptor *gateway.Acceptor
	metrics  *observe.Metrics
	server   *http.Server

	// closers are called in order during Shutdown.
	closers []func() error

	// stopOnce guards the Shutdown path.
	stopOnce sync.Once
}

// Option is a functional option for New. Use these to inject test doubles.
type Option func(*App)

// WithStorage injects a storage backend instead of connecting to PostgreSQL.
func WithStorage(s Storage) Option {
	return func(a *App) { a.storage = s }
}

// WithSessions injects a session cache instead of connecting to Redis.
func WithSessions(c sessioncache.Cache) Option {
	return func(a *App) { a.sessions = c }
}

// WithSearcher injects a knowledge-base searcher instead of the pgvector one.
func WithSearcher(s kb.Searcher) Option {
	return func(a *App) { a.search = s }
}

// New creates an App by wiring all subsystems together. The providers struct
// comes from main.go (populated via the config registry). Use Option
// functions to inject test doubles for any subsystem.
//
// New performs all initialisation synchronously: metrics SDK, PostgreSQL
// pool, session cache, knowledge base, speech ladder, orchestrator, and the
// HTTP mux. Run starts serving.
func New(ctx context.Context, cfg *config.Config, providers *Providers, opts ...Option) (*App, error) {
	a := &App{
		cfg:       cfg,
		providers: providers,
	}
	for _, o := range opts {
		o(a)
	}

	if err := a.initMetrics(ctx); err != nil {
		return nil, fmt.Errorf("app: init metrics: %w", err)
	}
	if err := a.initStorage(ctx); err != nil {
		return nil, fmt.Errorf("app: init storage: %w", err)
	}
	if err := a.initSessions(ctx); err != nil {
		return nil, fmt.Errorf("app: init sessions: %w", err)
	}
	a.initKnowledgeBase()
	if err := a.initSpeech(); err != nil {
		return nil, fmt.Errorf("app: init speech: %w", err)
	}
	a.initOrchestrator()
	a.initServer()

	return a, nil
}

// The OTel meter provider and its Prometheus exporter bridge are
// process-global, so they are initialised once no matter how many Apps get
// constructed. The Prometheus bridge is pull-based; there is nothing to
// flush on shutdown.
var (
	metricsOnce sync.Once
	metricsErr  error
)

func (a *App) initMetrics(ctx context.Context) error {
	metricsOnce.Do(func() {
		_, metricsErr = observe.InitProvider(ctx, observe.ProviderConfig{})
	})
	if metricsErr != nil {
		return metricsErr
	}
	a.metrics = observe.DefaultMetrics()
	return nil
}

func (a *App) initStorage(ctx context.Context) error {
	if a.storage != nil {
		return nil
	}

	dsn := a.cfg.Storage.PostgresDSN
	if dsn == "" {
		return fmt.Errorf("storage.postgres_dsn is required when storage is not injected")
	}

	dims := a.cfg.Storage.EmbeddingDimensions
	if dims == 0 {
		dims = 1536 // matches OpenAI text-embedding-3-small
	}

	pg, err := store.New(ctx, dsn, dims)
	if err != nil {
		return err
	}
	a.pg = pg
	a.storage = pg
	a.closers = append(a.closers, func() error {
		pg.Close()
		return nil
	})
	return nil
}

func (a *App) initSessions(ctx context.Context) error {
	if a.sessions != nil {
		return nil
	}

	if addr := a.cfg.Sessions.RedisAddr; addr != "" {
		r, err := sessioncache.Connect(ctx, sessioncache.Config{
			Addr:     addr,
			Password: a.cfg.Sessions.RedisPassword,
			DB:       a.cfg.Sessions.RedisDB,
			TTL:      a.cfg.Sessions.TTL.Std(),
		})
		if err != nil {
			return err
		}
		a.redis = r
		a.sessions = r
		a.closers = append(a.closers, r.Disconnect)
		return nil
	}

	slog.Warn("sessions.redis_addr not set, call state will not survive a restart")
	a.sessions = sessioncache.NewMemory()
	return nil
}

// initKnowledgeBase wires the pgvector searcher. Without an embeddings
// provider (or with injected storage) FAQ search is disabled and every query
// returns no snippets, which the orchestrator answers honestly.
func (a *App) initKnowledgeBase() {
	if a.search != nil {
		return
	}
	if a.providers.Embeddings == nil || a.pg == nil {
		slog.Warn("knowledge-base search disabled", "embeddings", a.providers.Embeddings != nil)
		a.search = noSearch{}
		return
	}
	a.search = kb.NewPgvector(a.pg.Pool(), a.providers.Embeddings)
}

func (a *App) initSpeech() error {
	cache, err := speech.NewCache(speech.CacheConfig{
		Dir:           a.cfg.Speech.CacheDir,
		MaxAge:        a.cfg.Speech.CacheMaxAge.Std(),
		MaxBytes:      a.cfg.Speech.CacheMaxBytes,
		SweepInterval: a.cfg.Speech.SweepInterval.Std(),
	})
	if err != nil {
		return err
	}
	a.cache = cache

	a.tracker = health.NewTracker()
	a.synth = speech.NewSynthesizer(a.providers.Voices, cache, a.tracker, resilience.BreakerConfig{})

	if voice := a.cfg.Speech.StreamVoiceID; voice != "" {
		if a.providers.Stream == nil {
			slog.Warn("speech.stream_voice_id set but no elevenlabs voice rung is configured, streaming disabled")
		} else {
			a.streamer = speech.NewStreamer(a.providers.Stream, speech.StreamerConfig{
				VoiceID: voice,
			}, a.tracker)
		}
	}
	return nil
}

func (a *App) initOrchestrator() {
	opts := convo.Options{Notifier: convo.LogNotifier{}}
	if a.cfg.Projects.BaseURL != "" {
		opts.Projects = projects.New(a.cfg.Projects.BaseURL, a.cfg.Projects.APIKey)
	}
	a.orc = convo.New(a.storage, a.sessions, a.search, a.providers.LLM, opts)
}

func (a *App) initServer() {
	deps := gateway.BridgeDeps{
		Store:     a.storage,
		Sessions:  a.sessions,
		STT:       a.providers.STT,
		Turns:     a.orc,
		Speaker:   a.synth,
		AccountID: a.cfg.Gateway.AccountID,
		Metrics:   a.metrics,
	}
	if a.streamer != nil {
		deps.Streamer = a.streamer
	}
	a.acceptor = gateway.NewAcceptor(deps)

	mux := http.NewServeMux()
	a.acceptor.Register(mux)
	a.healthHandler().Register(mux)
	mux.Handle("GET /metrics", promhttp.Handler())

	a.server = &http.Server{
		Addr:              a.cfg.Server.ListenAddr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
}

// healthHandler builds the readiness handler with one probe per external
// dependency the app actually connected.
func (a *App) healthHandler() *health.Handler {
	var checks []health.Check
	if a.pg != nil {
		checks = append(checks, health.Check{Name: "postgres", Probe: a.pg.Ping})
	}
	if a.redis != nil {
		checks = append(checks, health.Check{Name: "redis", Probe: a.redis.Ping})
	}
	return health.NewHandler(a.tracker, checks...)
}

// ApplyVoices swaps the synthesis ladder in place. Called by main when a
// config reload changes the voice configuration.
func (a *App) ApplyVoices(rungs []speech.Rung) {
	a.synth.SetRungs(rungs)
}

// Run starts the HTTP server, the speech-cache janitor, and the provider
// health reporter, then blocks until ctx is cancelled or the server fails.
func (a *App) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		slog.Info("listening", "addr", a.server.Addr, "tls", a.cfg.Server.TLS != nil)
		var err error
		if tls := a.cfg.Server.TLS; tls != nil {
			err = a.server.ListenAndServeTLS(tls.CertFile, tls.KeyFile)
		} else {
			err = a.server.ListenAndServe()
		}
		if err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("app: serve: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		a.cache.RunJanitor(ctx)
		return nil
	})

	g.Go(func() error {
		a.tracker.Report(ctx, time.Minute)
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		a.acceptor.Shutdown(shutdownCtx)
		return a.server.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// Shutdown tears down all subsystems in reverse-init order. It respects the
// context deadline: if ctx expires before all closers finish, remaining
// closers are skipped and the context error is returned.
func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error
	a.stopOnce.Do(func() {
		slog.Info("shutting down", "closers", len(a.closers))

		a.acceptor.Shutdown(ctx)
		if err := a.server.Shutdown(ctx); err != nil {
			slog.Warn("server shutdown error", "err", err)
		}

		for i := len(a.closers) - 1; i >= 0; i-- {
			select {
			case <-ctx.Done():
				slog.Warn("shutdown deadline exceeded", "remaining", i+1)
				shutdownErr = ctx.Err()
				return
			default:
			}
			if err := a.closers[i](); err != nil {
				slog.Warn("closer error", "index", i, "err", err)
			}
		}

		slog.Info("shutdown complete")
	})
	return shutdownErr
}

// noSearch answers every knowledge-base query with no snippets.
type noSearch struct{}

var _ kb.Searcher = noSearch{}

func (noSearch) Search(context.Context, string, string, int) ([]kb.Snippet, error) {
	return nil, nil
}
