package main

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"os"
	"time"

	"bizassist/internal/config"
	"bizassist/internal/provider"
	"bizassist/internal/store"

	"github.com/spf13/cobra"
)

func doctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Run diagnostic checks on your BizAssist installation",
		Long: `Verifies that BizAssist's configuration, database, language-model host,
workflow webhook and ports are correctly set up. Reports pass/fail for each check.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath := resolveConfigPath()
			fmt.Printf("BizAssist Doctor v%s\n", version)
			fmt.Printf("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━\n\n")

			passed := 0
			failed := 0
			warned := 0

			// 1. Config file
			if _, err := os.Stat(cfgPath); err != nil {
				printWarn("Config file", fmt.Sprintf("not found at %s (using defaults and environment)", cfgPath))
				warned++
			} else {
				printPass("Config file", cfgPath)
				passed++
			}

			// 2. Config loads and validates
			cfg, err := loadConfig()
			if err != nil {
				printFail("Config validation", err.Error())
				failed++
				fmt.Printf("\n%d passed, %d failed\n", passed, failed)
				return fmt.Errorf("%d check(s) failed", failed)
			}
			printPass("Config validation", "deployment "+cfg.General.Deployment)
			passed++

			ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
			defer cancel()

			// 3. Database reachable and migrated
			if err := checkDatabase(ctx, cfg); err != nil {
				printFail("Database", err.Error())
				failed++
			} else {
				printPass("Database", cfg.Database.Driver)
				passed++
			}

			// 4. Language-model host
			gen, err := provider.NewFactory(cfg, logger).Generator()
			if err != nil {
				printFail("Generation", err.Error())
				failed++
			} else if err := gen.Healthy(ctx); err != nil {
				printWarn("Generation: "+gen.Name(), fmt.Sprintf("unreachable: %v", err))
				warned++
			} else {
				printPass("Generation: "+gen.Name(), "healthy")
				passed++
			}

			// 5. Secrets
			secret, secretName := cfg.Auth.JWTSecret, "JWT_SECRET"
			if cfg.General.Deployment == config.DeploymentMediConnect {
				secret, secretName = cfg.Auth.PatientJWTSecret, "PATIENT_JWT_SECRET"
			}
			if secret == "" {
				printFail("JWT secret", secretName+" is not set")
				failed++
			} else {
				printPass("JWT secret", "configured")
				passed++
			}

			// 6. Reminder webhook
			if cfg.General.Deployment == config.DeploymentBizAssist {
				switch u, err := url.Parse(cfg.Workflow.ReminderWebhookURL); {
				case cfg.Workflow.ReminderWebhookURL == "":
					printWarn("Reminder webhook", "N8N_REMINDER_WEBHOOK_URL is not set")
					warned++
				case err != nil || u.Scheme == "" || u.Host == "":
					printFail("Reminder webhook", "not a valid URL")
					failed++
				default:
					printPass("Reminder webhook", u.Host)
					passed++
				}
			}

			// 7. Ports
			ports := []struct {
				name string
				port int
			}{{"API port", cfg.Server.Port}}
			if cfg.Realtime.Enabled {
				ports = append(ports, struct {
					name string
					port int
				}{"Realtime port", cfg.Realtime.Port})
			}
			for _, p := range ports {
				if err := checkPort(cfg.Server.Host, p.port); err != nil {
					printWarn(p.name, fmt.Sprintf("port %d may be in use: %v", p.port, err))
					warned++
				} else {
					printPass(p.name, fmt.Sprintf(":%d available", p.port))
					passed++
				}
			}

			// Summary
			fmt.Printf("\n━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━\n")
			fmt.Printf("Results: %d passed, %d warnings, %d failed\n", passed, warned, failed)
			if failed > 0 {
				fmt.Printf("\nPlease fix the failed checks before running BizAssist.\n")
				return fmt.Errorf("%d check(s) failed", failed)
			}
			if warned > 0 {
				fmt.Printf("\nBizAssist should work but consider fixing the warnings.\n")
			} else {
				fmt.Printf("\nAll checks passed! BizAssist is ready to run.\n")
			}
			return nil
		},
	}
}

func checkDatabase(ctx context.Context, cfg *config.Config) error {
	st, err := store.Open(ctx, store.Config{Driver: cfg.Database.Driver, DSN: cfg.Database.DSN, Logger: logger})
	if err != nil {
		return err
	}
	defer st.Close()
	return st.Ping(ctx)
}

func checkPort(host string, port int) error {
	ln, err := net.Listen("tcp", net.JoinHostPort(host, fmt.Sprint(port)))
	if err != nil {
		return err
	}
	ln.Close()
	return nil
}

func printPass(check, detail string) {
	fmt.Printf("  [PASS] %-20s %s\n", check, detail)
}

func printFail(check, detail string) {
	fmt.Printf("  [FAIL] %-20s %s\n", check, detail)
}

func printWarn(check, detail string) {
	fmt.Printf("  [WARN] %-20s %s\n", check, detail)
}
