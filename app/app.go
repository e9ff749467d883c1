// Package app wires configuration, store, tokens and handlers into a
// running engine.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/Ceapa-git/anidle/api"
	"github.com/Ceapa-git/anidle/auth"
	"github.com/Ceapa-git/anidle/config"
	"github.com/Ceapa-git/anidle/core"
	"github.com/Ceapa-git/anidle/core/document"
	"github.com/Ceapa-git/anidle/core/http"
	"github.com/Ceapa-git/anidle/core/middleware"
	"github.com/Ceapa-git/anidle/store"
)

const (
	// closeTimeout bounds store disconnection on shutdown.
	closeTimeout = 5 * time.Second
	// slowHandler is the latency above which a handler call is logged.
	slowHandler = 100 * time.Millisecond
)

// App is the application instance
type App struct {
	cfg    *config.Config
	log    zerolog.Logger
	store  store.Store
	engine *core.Engine
}

// New connects the store, prepares its collections and signing key, and
// builds the engine. Nothing is bound until Run.
func New(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*App, error) {
	st, err := openStore(ctx, cfg, log)
	if err != nil {
		return nil, err
	}
	a, err := NewWithStore(ctx, cfg, log, st)
	if err != nil {
		_ = st.Close(context.Background())
		return nil, err
	}
	return a, nil
}

// NewWithStore is New over an already opened store.
func NewWithStore(ctx context.Context, cfg *config.Config, log zerolog.Logger, st store.Store) (*App, error) {
	for _, name := range api.Collections {
		if err := st.EnsureCollection(ctx, name); err != nil {
			return nil, fmt.Errorf("ensure collection %s: %w", name, err)
		}
	}

	key, err := signingKey(ctx, st, log)
	if err != nil {
		return nil, err
	}
	tokens, err := auth.NewTokenService(key, cfg.JWT.Issuer, cfg.JWT.TTL)
	if err != nil {
		return nil, err
	}

	var apiOpts []api.Option
	if cfg.Upstream.Host != "" {
		client := http.NewClient(cfg.Upstream.Host, http.WithClientTimeout(cfg.Upstream.Timeout))
		apiOpts = append(apiOpts, api.WithDailySource(api.NewUpstream(client, cfg.Upstream.Path)))
		log.Info().Str("host", cfg.Upstream.Host).Str("path", cfg.Upstream.Path).Msg("daily upstream enabled")
	}

	routes, err := api.New(st, tokens, apiOpts...).Routes()
	if err != nil {
		return nil, err
	}

	engine := core.NewEngine(core.Options{
		Port:               cfg.Port,
		Debug:              cfg.Debug,
		Routes:             routes,
		Logger:             log,
		Workers:            cfg.Server.Workers,
		MaxRequestSize:     cfg.Server.MaxRequestSize,
		ReadTimeout:        cfg.Server.ReadTimeout,
		LegacyLineDecoding: cfg.Server.LegacyLineDecoding,
		Middleware:         []middleware.Middleware{middleware.SlowRequests(slowHandler)},
	})

	return &App{cfg: cfg, log: log, store: st, engine: engine}, nil
}

func openStore(ctx context.Context, cfg *config.Config, log zerolog.Logger) (store.Store, error) {
	switch cfg.Store.Driver {
	case "memory":
		log.Warn().Msg("using in-memory store, data is lost on exit")
		return store.NewMemory(), nil
	case "mongo":
		return store.Connect(ctx, store.MongoOptions{
			URI:      cfg.Mongo.URI,
			Database: cfg.Mongo.Database,
			Timeout:  cfg.Mongo.Timeout,
			Logger:   log,
		})
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}

// signingRecord is the single document of the jwt collection.
type signingRecord struct {
	Key string `json:"key"`
}

// signingKey returns the key kept in the jwt collection, generating and
// storing one when the collection is empty.
func signingKey(ctx context.Context, st store.Store, log zerolog.Logger) (string, error) {
	n, err := st.Count(ctx, api.CollectionJWT, nil)
	if err != nil {
		return "", fmt.Errorf("count signing keys: %w", err)
	}
	if n == 0 {
		key, err := auth.GenerateKey(auth.KeyLength)
		if err != nil {
			return "", err
		}
		rec, err := document.ObjectFromValue(signingRecord{Key: key})
		if err != nil {
			return "", err
		}
		if _, err := st.InsertOne(ctx, api.CollectionJWT, rec); err != nil {
			return "", fmt.Errorf("store signing key: %w", err)
		}
		log.Info().Msg("signing key generated")
	}

	doc, err := st.FindOne(ctx, api.CollectionJWT, nil)
	if err != nil {
		return "", fmt.Errorf("load signing key: %w", err)
	}
	var rec signingRecord
	if err := document.Bind(doc, &rec); err != nil {
		return "", fmt.Errorf("load signing key: %w", err)
	}
	if rec.Key == "" {
		return "", errors.New("load signing key: key field missing")
	}
	return rec.Key, nil
}

// Engine returns the underlying engine
func (a *App) Engine() *core.Engine {
	return a.engine
}

// Run serves until ctx is canceled, then drains the engine, reports the
// request statistics and closes the store.
func (a *App) Run(ctx context.Context) error {
	defer a.closeStore()

	if err := a.engine.Start(); err != nil {
		return err
	}

	stop := context.AfterFunc(ctx, a.engine.Shutdown)
	defer stop()

	a.engine.Wait()
	a.report()
	return nil
}

func (a *App) report() {
	for _, s := range a.engine.Monitor().Snapshot() {
		a.log.Info().
			Str("route", s.Route).
			Uint64("count", s.Count).
			Uint64("client_errors", s.ClientErrors).
			Uint64("server_errors", s.ServerErrors).
			Dur("avg", s.Avg).
			Dur("max", s.Max).
			Msg("route stats")
	}
	for _, b := range a.engine.Monitor().Bottlenecks() {
		a.log.Warn().Str("type", b.Type).Str("route", b.Route).Msg(b.Details)
	}
}

func (a *App) closeStore() {
	ctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
	defer cancel()
	if err := a.store.Close(ctx); err != nil {
		a.log.Error().Err(err).Msg("close store")
	}
}
