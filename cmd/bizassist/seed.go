package main

import (
	"context"
	"fmt"
	"time"

	"bizassist/internal/auth"
	"bizassist/internal/store"

	"github.com/spf13/cobra"
)

const (
	demoTenant   = "tenant-demo"
	demoEmail    = "owner@example.com"
	demoPassword = "password123"
)

func demoSeedOptions(now time.Time) store.SeedOptions {
	hash, err := auth.HashPassword(demoPassword)
	if err != nil {
		logger.Warn("hashing demo password failed; demo user will not be able to log in", "err", err)
	}
	return store.SeedOptions{
		TenantID:     demoTenant,
		UserEmail:    demoEmail,
		UserName:     "Demo Owner",
		PasswordHash: hash,
		PatientEmail: "patient@example.com",
		PatientName:  "Demo Patient",
		Now:          now,
	}
}

func seedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Write demo data (tenant user, sales, tasks, FAQs, a patient)",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			cfg.Database.Seed = false // seeded explicitly below

			ctx := context.Background()
			st, err := openStore(ctx, cfg)
			if err != nil {
				return err
			}
			defer st.Close()

			res, err := st.Seed(ctx, demoSeedOptions(time.Now()))
			if err != nil {
				return err
			}
			if res.Skipped {
				fmt.Printf("Demo data already present (user %s).\n", res.UserID)
				return nil
			}
			fmt.Printf("Seeded tenant %s: %d sales, %d tasks, %d FAQs.\n", demoTenant, res.Sales, res.Tasks, res.FAQs)
			fmt.Printf("Log in as %s / %s\n", demoEmail, demoPassword)
			return nil
		},
	}
}
