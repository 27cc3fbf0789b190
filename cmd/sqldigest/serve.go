package main

import (
	"context"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"sqldigest/internal/api"
	"sqldigest/internal/config"
)

func newServeCommand() *cobra.Command {
	var addr string
	var dir string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve analysis results over HTTP",
		Long: `Serve exposes an output directory as a small read-only API: run summary,
per-chunk artifacts, and the schema and combined reports rendered as HTML.
Set SQLDIGEST_API_KEY to require a bearer token on the API endpoints.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			log := newLogger()

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.ServeAddr = addr
			}
			if dir != "" {
				cfg.OutDir = dir
			}

			srv := &http.Server{
				Addr:         cfg.ServeAddr,
				Handler:      api.NewServer(cfg.OutDir, cfg.APIKey, log),
				ReadTimeout:  30 * time.Second,
				WriteTimeout: 120 * time.Second,
				IdleTimeout:  60 * time.Second,
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			go func() {
				<-ctx.Done()
				log.Info("shutting down")
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				srv.Shutdown(shutdownCtx)
			}()

			log.Info("serving results", "addr", cfg.ServeAddr, "dir", cfg.OutDir)
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				return err
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from SQLDIGEST_SERVE_ADDR)")
	cmd.Flags().StringVarP(&dir, "dir", "d", "", "output directory to serve (default from SQLDIGEST_OUTDIR)")

	return cmd
}
