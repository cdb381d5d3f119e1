// Package app wires the core together: workspace database, config,
// one-time load, store, journal, and the background saver.
package app

import (
	"context"
	"database/sql"

	"go.uber.org/zap"

	"nextstep/internal/config"
	"nextstep/internal/db"
	"nextstep/internal/journal"
	"nextstep/internal/migrate"
	"nextstep/internal/persist"
	"nextstep/internal/store"
)

type App struct {
	Store   *store.Store
	Journal journal.Writer
	Config  *config.Config
	DB      *sql.DB

	saver *persist.Saver
	log   *zap.Logger
}

// Open boots the core for a workspace: it runs migrations, loads the
// persisted collections exactly once, seeds the context taxonomy from
// config, and attaches the journal and saver to the store's change
// notifications. Mutations made through the returned App's store are
// visible immediately and durable once the background save lands.
func Open(ctx context.Context, workspace string) (*App, error) {
	if _, err := db.EnsureWorkspace(workspace); err != nil {
		return nil, err
	}
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		return nil, err
	}
	if err := migrate.Migrate(conn); err != nil {
		conn.Close()
		return nil, err
	}
	cfg, err := config.LoadOptional(workspace)
	if err != nil {
		conn.Close()
		return nil, err
	}
	if cfg == nil {
		cfg = config.Default()
	}
	log, err := zap.NewProduction()
	if err != nil {
		conn.Close()
		return nil, err
	}

	adapter := persist.Adapter{KV: persist.KV{DB: conn}, Log: log}
	s := store.New(cfg.SeedContexts())
	s.Load(adapter.Load(ctx))

	saver := persist.NewSaver(adapter, log, cfg.Debounce())
	saver.Start()
	s.Subscribe(func(_ store.Change, st store.State) {
		saver.Notify(st)
	})

	jw := journal.Writer{DB: conn, Log: log}
	s.Subscribe(jw.Subscriber(context.WithoutCancel(ctx)))

	return &App{
		Store:   s,
		Journal: jw,
		Config:  cfg,
		DB:      conn,
		saver:   saver,
		log:     log,
	}, nil
}

// Close flushes any pending save and releases resources.
func (a *App) Close() error {
	a.saver.Close()
	_ = a.log.Sync()
	return a.DB.Close()
}
