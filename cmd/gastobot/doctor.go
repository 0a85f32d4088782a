package main

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	_ "modernc.org/sqlite"

	"gastobot/internal/config"
	"gastobot/internal/google"
)

func doctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Run diagnostic checks on your gastobot installation",
		Long: `Verifies that gastobot's configuration, Google credentials, audit
database and listen port are correctly set up. Reports pass/fail for each check.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Printf("gastobot doctor v%s\n", version)
			fmt.Printf("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━\n\n")

			passed := 0
			failed := 0
			warned := 0

			// 1. Config file exists and validates
			if _, err := os.Stat(configPath); err != nil {
				printFail("Config file", fmt.Sprintf("not found at %s", configPath))
				fmt.Printf("\nCreate a gastobot.yaml before running the server.\n")
				return nil
			}
			printPass("Config file", configPath)
			passed++

			cfg, err := config.Load(configPath)
			if err != nil {
				printFail("Config validation", err.Error())
				fmt.Printf("\nResults: %d passed, %d failed\n", passed, 1)
				return nil
			}
			printPass("Config validation", "valid")
			passed++

			// 2. Google service account credentials parse
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if _, err := google.NewServiceAccountClient(ctx, cfg.Google.CredentialsFile,
				google.ScopeSpreadsheets, google.ScopeDrive); err != nil {
				printFail("Google credentials", err.Error())
				failed++
			} else {
				printPass("Google credentials", cfg.Google.CredentialsFile)
				passed++
			}

			// 3. Secret source configured
			if cfg.Secrets.Provider == "env" {
				missing := 0
				for _, name := range []string{cfg.WhatsApp.AccessTokenSecret, cfg.WhatsApp.PhoneNumberSecret, cfg.Gemini.APIKeySecret} {
					if os.Getenv(name) == "" {
						printWarn("Secret: "+name, "not set in environment")
						warned++
						missing++
					}
				}
				if missing == 0 {
					printPass("Secrets", "all env secrets present")
					passed++
				}
			} else {
				printPass("Secrets", "Secret Manager project "+cfg.Secrets.ProjectID)
				passed++
			}

			// 4. Audit database writable
			if cfg.Audit.Enabled {
				if err := checkDatabase(cfg.Audit.DBPath); err != nil {
					printFail("Audit database", err.Error())
					failed++
				} else {
					printPass("Audit database", cfg.Audit.DBPath)
					passed++
				}
			}

			// 5. Listen port available
			if err := checkPort(cfg.General.ListenPort); err != nil {
				printWarn("Listen port", fmt.Sprintf("port %d may be in use: %v", cfg.General.ListenPort, err))
				warned++
			} else {
				printPass("Listen port", fmt.Sprintf(":%d available", cfg.General.ListenPort))
				passed++
			}

			// Summary
			fmt.Printf("\n━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━\n")
			fmt.Printf("Results: %d passed, %d warnings, %d failed\n", passed, warned, failed)
			if failed > 0 {
				fmt.Printf("\nPlease fix the failed checks before running gastobot.\n")
				return fmt.Errorf("%d check(s) failed", failed)
			}
			if warned > 0 {
				fmt.Printf("\ngastobot should work but consider fixing the warnings.\n")
			} else {
				fmt.Printf("\nAll checks passed! gastobot is ready to run.\n")
			}
			return nil
		},
	}
}

func checkDatabase(dbPath string) error {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return fmt.Errorf("cannot create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return fmt.Errorf("cannot open: %w", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("cannot ping: %w", err)
	}
	return nil
}

func checkPort(port int) error {
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
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
