package main

import (
	"errors"
	"log/slog"
	"os"

	"dei-tracker/analytics"
	"dei-tracker/cache"
	"dei-tracker/config"
	"dei-tracker/database"
	"dei-tracker/handlers"
	"dei-tracker/logging"
	"dei-tracker/query"
	"dei-tracker/resolver"
	"dei-tracker/store"

	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "dei-tracker",
	Short: "DEI research API",
	Long: `dei-tracker serves corporate DEI research profiles, their commitments,
controversies, events and cited sources, plus cached analytics over them.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default ./dei-tracker.{yaml,json,toml})")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// app holds the long-lived services shared by every command.
type app struct {
	cfg   *config.Config
	log   *slog.Logger
	db    *gorm.DB
	store *store.Store
	cache *cache.Cache

	closers []func() error
}

func newApp() (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	log := logging.New(os.Stderr, logging.LevelFromString(cfg.Log.Level), logging.FormatFromString(cfg.Log.Format))

	db, err := database.Open(cfg.Database, log)
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, log: log, db: db, store: store.New(db, cfg.Database.QueryTimeout)}
	a.closers = append(a.closers, func() error { return database.Close(db) })

	switch cfg.Cache.Backend {
	case "redis":
		r, err := cache.NewRedis(cfg.Cache.RedisURL, cfg.Cache.PoolSize, cfg.Cache.Timeout)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.closers = append(a.closers, r.Close)
		a.cache = cache.New(r, cfg.Cache.Timeout, log)
	case "sql":
		a.cache = cache.New(cache.NewSQL(db, log), cfg.Cache.Timeout, log)
	default:
		a.cache = cache.New(nil, cfg.Cache.Timeout, log)
	}
	log.Info("cache configured", "backend", a.cache.BackendName())
	return a, nil
}

func (a *app) handler() *handlers.Handler {
	return handlers.New(handlers.Deps{
		Store:     a.store,
		Cache:     a.cache,
		Resolver:  resolver.New(a.store, a.cache, a.log),
		Analytics: analytics.New(a.store, a.cache, a.log),
		Limits:    query.LimitsFrom(a.cfg.Pagination),
		Log:       a.log,
		Version:   a.cfg.API.Version,
	})
}

// Close releases resources in reverse order of acquisition.
func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func withApp(run func(cmd *cobra.Command, a *app) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, _ []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer func() {
			if err := a.Close(); err != nil {
				a.log.Warn("close", "error", err)
			}
		}()
		return run(cmd, a)
	}
}
