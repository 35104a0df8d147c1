package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"bizassist/internal/channel"
	"bizassist/internal/config"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API and the realtime KPI publisher",
		Long:  "Starts the chat/REST API and, when realtime.enabled is set, the KPI websocket publisher. Press Ctrl+C to stop.",
		RunE:  runServe,
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := buildApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	if !a.chatTokens().Configured() {
		logger.Warn("JWT secret not set; authenticated routes will answer 500", "kind", a.chatTokens().Kind())
	}

	metricsEndpoint := ""
	if cfg.Metrics.Enabled {
		metricsEndpoint = cfg.Metrics.Endpoint
	}

	api := channel.NewServer(channel.ServerConfig{
		Host:            cfg.Server.Host,
		Port:            cfg.Server.Port,
		Version:         version,
		Deployment:      cfg.General.Deployment,
		Router:          a.router,
		Store:           a.store,
		Users:           a.users,
		Patients:        a.patients,
		UserTokenTTL:    time.Duration(cfg.Auth.TokenTTLMinutes) * time.Minute,
		PatientTokenTTL: time.Duration(cfg.Auth.PatientTokenTTLHours) * time.Hour,
		CallbackSecret:  cfg.Workflow.CallbackSecret,
		MetricsEndpoint: metricsEndpoint,
		Logger:          logger.With("component", "api"),
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return api.Start(gctx) })
	if cfg.Realtime.Enabled {
		rt := newRealtime(cfg)
		g.Go(func() error { return rt.Start(gctx) })
	}

	logger.Info("bizassist started", "deployment", cfg.General.Deployment, "version", version)
	err = g.Wait()
	logger.Info("shutdown complete")
	return err
}

func realtimeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "realtime",
		Short: "Start only the realtime KPI publisher",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return newRealtime(cfg).Start(ctx)
		},
	}
}

func newRealtime(cfg *config.Config) *channel.Realtime {
	return channel.NewRealtime(channel.RealtimeConfig{
		Host:        cfg.Server.Host,
		Port:        cfg.Realtime.Port,
		Path:        cfg.Realtime.Path,
		MinInterval: time.Duration(cfg.Realtime.MinIntervalSeconds) * time.Second,
		MaxInterval: time.Duration(cfg.Realtime.MaxIntervalSeconds) * time.Second,
		Logger:      logger.With("component", "realtime"),
	})
}
