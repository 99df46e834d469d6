package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"top_criteria_generator/server"
)

var serveAddr string

const shutdownGrace = 15 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve POST /generate, /preview and /healthz",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (overrides config server_addr)")
}

func runServe(cmd *cobra.Command, args []string) error {
	log, err := newLogger()
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	store, err := loadCatalog()
	if err != nil {
		return err
	}
	agent, settings, err := buildAgent(cfg, log)
	if err != nil {
		return err
	}
	srv, err := server.New(agent, server.Options{Settings: settings, Catalog: store, Logger: log})
	if err != nil {
		return err
	}

	listen := cfg.ServerAddr
	if serveAddr != "" {
		listen = serveAddr
	}
	httpSrv := &http.Server{
		Addr:              listen,
		Handler:           srv.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("starting web server",
			zap.String("addr", listen),
			zap.String("provider", settings.Provider),
			zap.String("model", settings.Model),
		)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		log.Info("shutting down web server")
		return httpSrv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
