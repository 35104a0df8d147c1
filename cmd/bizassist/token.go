package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"bizassist/internal/config"
	"bizassist/internal/domain"
	"bizassist/internal/store"

	"github.com/spf13/cobra"
)

func tokenCmd() *cobra.Command {
	var (
		email string
		ttl   time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a development JWT for a user or patient",
		Long: "Looks up the account by email and prints a signed token for it. In the bizassist\n" +
			"deployment the account must be a registered user; in mediconnect a patient record\n" +
			"is created on first use, as the patient session endpoint does.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if email == "" {
				return errors.New("--email is required")
			}
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			ctx := context.Background()
			st, err := openStore(ctx, cfg)
			if err != nil {
				return err
			}
			defer st.Close()

			p, err := resolvePrincipal(ctx, cfg, st, email)
			if err != nil {
				return err
			}

			tokens := tokensFor(cfg, p)
			if ttl == 0 {
				ttl = time.Duration(cfg.Auth.TokenTTLMinutes) * time.Minute
				if p.IsPatient() {
					ttl = time.Duration(cfg.Auth.PatientTokenTTLHours) * time.Hour
				}
			}
			raw, err := tokens.Issue(p, ttl)
			if err != nil {
				return err
			}
			fmt.Println(raw)
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "token lifetime (default: auth.tokenTTLMinutes or auth.patientTokenTTLHours)")
	return cmd
}

func resolvePrincipal(ctx context.Context, cfg *config.Config, st *store.Store, email string) (domain.Principal, error) {
	if cfg.General.Deployment == config.DeploymentMediConnect {
		pt, err := st.FindOrCreatePatient(ctx, email, "Patient")
		if err != nil {
			return domain.Principal{}, fmt.Errorf("patient lookup: %w", err)
		}
		return domain.Principal{ID: pt.ID, Scope: pt.ID, Email: pt.Email, Kind: domain.KindPatient}, nil
	}

	u, err := st.UserByEmail(ctx, email)
	if errors.Is(err, store.ErrNotFound) {
		return domain.Principal{}, fmt.Errorf("no user registered with email %s", email)
	}
	if err != nil {
		return domain.Principal{}, fmt.Errorf("user lookup: %w", err)
	}
	return domain.Principal{ID: u.ID, Scope: u.TenantID, Role: u.Role, Email: u.Email, Kind: domain.KindUser}, nil
}
