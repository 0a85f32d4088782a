package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"gastobot/internal/audit"
	"gastobot/internal/config"
)

func auditCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Show recent pipeline outcomes from the local audit log",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			if !cfg.Audit.Enabled {
				return fmt.Errorf("audit log is disabled in %s", configPath)
			}

			store, err := audit.NewSQLiteStore(cfg.Audit.DBPath, logger)
			if err != nil {
				return err
			}
			defer store.Close()

			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()

			entries, err := store.Recent(ctx, limit)
			if err != nil {
				return err
			}
			if len(entries) == 0 {
				fmt.Println("no recorded events")
				return nil
			}

			for _, e := range entries {
				line := fmt.Sprintf("%s  %-12s %-20s %s",
					e.CreatedAt.Format(time.RFC3339), e.Kind, e.Outcome, e.SenderID)
				if e.Detail != "" {
					line += "  (" + e.Detail + ")"
				}
				fmt.Println(line)
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of entries to show")
	return cmd
}
