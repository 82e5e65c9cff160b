package app

import (
	"context"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"coldcall/internal/classify"
	"coldcall/internal/config"
	"coldcall/internal/console"
	"coldcall/internal/events"
	"coldcall/internal/httpapi"
	"coldcall/internal/metrics"
	"coldcall/internal/notify"
	"coldcall/internal/poller"
	"coldcall/internal/provider"
	"coldcall/internal/store"
)

// App wires the call console components together.
type App struct {
	cfg          config.Config
	store        *store.Store
	prompts      *classify.PromptManager
	poller       *poller.Poller
	orchestrator *console.Orchestrator
	bus          *events.Bus
	mux          *http.ServeMux
}

func New(ctx context.Context, cfg config.Config) (*App, error) {
	st, err := store.Open(ctx, cfg.DBPath)
	if err != nil {
		return nil, errors.Wrapf(err, "open store %s", cfg.DBPath)
	}
	httpClient := &http.Client{Timeout: cfg.HTTPTimeout}

	backend, err := classify.NewBackend(cfg, httpClient)
	if err != nil {
		return nil, err
	}
	prompts := classify.NewPromptManager(cfg.PromptPath)
	client := provider.NewClient(cfg, httpClient)
	p := poller.New(client, poller.Options{
		Interval:    cfg.PollInterval,
		MaxAttempts: cfg.PollMaxAttempts,
		OnAttempt: func(a poller.Attempt) {
			metrics.IncPolls()
			log.Debug().Int("attempt", a.Number).Str("status", a.Status).AnErr("error", a.Err).Msg("call status checked")
		},
	})
	bus := events.NewBus()
	orch := console.New(console.Deps{
		Initiator:      client,
		Poller:         p,
		Classifier:     classify.New(backend, prompts),
		Store:          st,
		Notifier:       notifier(cfg),
		Bus:            bus,
		PersistPending: cfg.PersistPending,
	})

	a := &App{cfg: cfg, store: st, prompts: prompts, poller: p, orchestrator: orch, bus: bus, mux: http.NewServeMux()}
	httpapi.NewRouter(st, orch, a.CycleTimeout()).Register(a.mux)
	return a, nil
}

func notifier(cfg config.Config) console.Notifier {
	if g := notify.NewGroupMe(cfg, nil); g != nil {
		return g
	}
	return nil
}

// CycleTimeout bounds one call cycle: the poll budget plus one HTTP timeout
// per provider request and one for classification.
func (a *App) CycleTimeout() time.Duration {
	requests := time.Duration(a.cfg.PollMaxAttempts + 2)
	return a.poller.Budget() + requests*a.cfg.HTTPTimeout
}

// Run serves HTTP and hot-reloads the classifier prompt until ctx is done.
func (a *App) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              a.cfg.HTTPPort,
		Handler:           a.mux,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      a.CycleTimeout() + 30*time.Second,
	}
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return a.prompts.Watch(ctx)
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	g.Go(func() error {
		log.Info().Str("addr", a.cfg.HTTPPort).Dur("cycle_timeout", a.CycleTimeout()).Msg("http listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	return g.Wait()
}

// Call runs a single cycle outside the HTTP server.
func (a *App) Call(ctx context.Context, contact console.Contact, rep console.Reporter) (console.Outcome, error) {
	ctx, cancel := context.WithTimeout(ctx, a.CycleTimeout())
	defer cancel()
	return a.orchestrator.Run(ctx, contact, rep)
}

func (a *App) Bus() *events.Bus { return a.bus }
func (a *App) Store() *store.Store { return a.store }
func (a *App) Mux() *http.ServeMux { return a.mux }
func (a *App) Config() config.Config { return a.cfg }
