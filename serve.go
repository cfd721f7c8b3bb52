package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"dei-tracker/cache"
	"dei-tracker/database"
	"dei-tracker/handlers"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	RunE:  withApp(runServe),
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (overrides http.addr)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, a *app) error {
	if serveAddr != "" {
		a.cfg.HTTP.Addr = serveAddr
	}
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if a.cfg.Database.Migrate {
		if err := database.Migrate(ctx, a.db); err != nil {
			return err
		}
	}
	if a.cfg.Cache.Backend == "sql" {
		go purgeExpired(ctx, a)
	}

	gin.SetMode(gin.ReleaseMode)
	srv := &http.Server{
		Addr:              a.cfg.HTTP.Addr,
		Handler:           handlers.NewRouter(a.handler(), a.cfg.CORS.Origins),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		a.log.Info("starting dei-tracker", "addr", a.cfg.HTTP.Addr, "api", handlers.Addr(a.cfg.HTTP.Addr)+"/"+a.cfg.API.Version)
		serverErr <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErr:
		if !errors.Is(err, http.ErrServerClosed) {
			a.log.Error("server error", "error", err)
			return err
		}
	case <-ctx.Done():
		a.log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.HTTP.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			a.log.Error("shutdown", "error", err)
			return err
		}
		a.log.Info("server stopped")
	}
	return nil
}

// purgeExpired deletes expired rows of the sql cache backend. Expired
// entries are never served, this only bounds the table size.
func purgeExpired(ctx context.Context, a *app) {
	backend := cache.NewSQL(a.db, a.log)
	ticker := time.NewTicker(cache.AnalyticsTTL)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := backend.Purge(ctx)
			if err != nil {
				a.log.Warn("purge expired cache entries", "error", err)
				continue
			}
			if n > 0 {
				a.log.Debug("purged expired cache entries", "count", n)
			}
		}
	}
}
