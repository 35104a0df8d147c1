package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"bizassist/internal/mcpserver"

	"github.com/spf13/cobra"
)

func mcpCmd() *cobra.Command {
	var token string
	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Serve the assistant over MCP stdio for one principal",
		Long: "Runs a Model Context Protocol server on stdin/stdout. The principal is taken from\n" +
			"--token (or BIZASSIST_TOKEN), a JWT issued by the API or by 'bizassist token'.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if token == "" {
				token = os.Getenv("BIZASSIST_TOKEN")
			}
			if token == "" {
				return errors.New("--token or BIZASSIST_TOKEN is required")
			}

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			ctx := context.Background()
			a, err := buildApp(ctx, cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			p, err := a.chatTokens().Verify(token)
			if err != nil {
				return fmt.Errorf("token: %w", err)
			}

			s := mcpserver.New(mcpserver.Config{
				Name:      cfg.MCP.ServerName,
				Version:   version,
				Principal: p,
				Router:    a.router,
				History:   a.store,
				Sales:     a.store,
				Logger:    logger.With("component", "mcp"),
			})
			return mcpserver.Serve(s)
		},
	}
	cmd.Flags().StringVar(&token, "token", "", "JWT identifying the principal")
	return cmd
}
