package main

import (
	"context"
	"fmt"
	"time"

	"bizassist/internal/agent"
	"bizassist/internal/auth"
	"bizassist/internal/config"
	"bizassist/internal/domain"
	"bizassist/internal/provider"
	"bizassist/internal/store"
	"bizassist/internal/workflow"
)

// app holds the process-wide collaborators. It is built once by the entry
// point and passed down; Close releases the database.
type app struct {
	cfg      *config.Config
	store    *store.Store
	router   *agent.Router
	users    *auth.Tokens
	patients *auth.Tokens
}

func openStore(ctx context.Context, cfg *config.Config) (*store.Store, error) {
	st, err := store.Open(ctx, store.Config{
		Driver: cfg.Database.Driver,
		DSN:    cfg.Database.DSN,
		Logger: logger.With("component", "store"),
	})
	if err != nil {
		return nil, err
	}
	logger.Info("database ready", "driver", st.Driver())
	if cfg.Database.Seed {
		if _, err := st.Seed(ctx, demoSeedOptions(time.Now())); err != nil {
			st.Close()
			return nil, fmt.Errorf("seed: %w", err)
		}
	}
	return st, nil
}

func buildApp(ctx context.Context, cfg *config.Config) (*app, error) {
	st, err := openStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	gen, err := provider.NewFactory(cfg, logger.With("component", "provider")).Generator()
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("generation provider: %w", err)
	}
	if err := gen.Healthy(ctx); err != nil {
		logger.Warn("generation provider unhealthy at startup", "provider", gen.Name(), "err", err)
	} else {
		logger.Info("provider healthy", "provider", gen.Name())
	}

	n8n := workflow.NewN8N(workflow.N8NConfig{
		ReminderWebhookURL: cfg.Workflow.ReminderWebhookURL,
		Timeout:            time.Duration(cfg.Workflow.TimeoutSeconds) * time.Second,
		Logger:             logger.With("component", "workflow"),
	})
	if !n8n.Configured() {
		logger.Warn("reminder webhook not configured; reminder commands will report a configuration error")
	}

	var limiter *agent.RateLimiter
	if rpm := cfg.Generation.RateLimitPerMinute; rpm > 0 {
		limiter = agent.NewRateLimiter(rpm, float64(rpm))
	}

	deps := agent.Deps{
		Store:      st,
		Dispatcher: n8n,
		Generator:  gen,
		Limiter:    limiter,
		Model:      cfg.Generation.Model,
		Timeout:    time.Duration(cfg.Generation.TimeoutSeconds) * time.Second,
		Logger:     logger.With("component", "agent"),
	}

	var router *agent.Router
	switch cfg.General.Deployment {
	case config.DeploymentMediConnect:
		router = agent.NewMediConnect(deps)
	default:
		router = agent.NewBizAssist(deps)
	}

	return &app{
		cfg:      cfg,
		store:    st,
		router:   router,
		users:    auth.NewUserTokens(cfg.Auth.JWTSecret),
		patients: auth.NewPatientTokens(cfg.Auth.PatientJWTSecret),
	}, nil
}

func (a *app) Close() error { return a.store.Close() }

// chatTokens returns the token kind that authenticates chat prompts in the
// configured deployment.
func (a *app) chatTokens() *auth.Tokens {
	if a.cfg.General.Deployment == config.DeploymentMediConnect {
		return a.patients
	}
	return a.users
}

func tokensFor(cfg *config.Config, p domain.Principal) *auth.Tokens {
	if p.IsPatient() {
		return auth.NewPatientTokens(cfg.Auth.PatientJWTSecret)
	}
	return auth.NewUserTokens(cfg.Auth.JWTSecret)
}
