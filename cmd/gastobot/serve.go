package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"gastobot/internal/alerts"
	"gastobot/internal/audit"
	"gastobot/internal/config"
	"gastobot/internal/extract"
	"gastobot/internal/google"
	"gastobot/internal/pipeline"
	"gastobot/internal/secrets"
	"gastobot/internal/server"
	"gastobot/internal/whatsapp"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the webhook server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}

			logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
				Level: levelFromString(cfg.General.LogLevel),
			}))

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			srv, cleanup, err := buildServer(ctx, cfg)
			if err != nil {
				return err
			}
			defer cleanup()

			ready, err := server.Serve(ctx, cfg.General.ListenPort, srv)
			if err != nil {
				return err
			}
			<-ready

			<-ctx.Done()
			logger.Info("shutting down")
			return nil
		},
	}
}

// buildServer wires every collaborator behind the dispatcher. The returned
// cleanup closes what needs closing.
func buildServer(ctx context.Context, cfg *config.Config) (*server.Server, func(), error) {
	cleanup := func() {}

	googleClient, err := google.NewServiceAccountClient(ctx, cfg.Google.CredentialsFile,
		google.ScopeSpreadsheets, google.ScopeDrive)
	if err != nil {
		return nil, cleanup, fmt.Errorf("google credentials: %w", err)
	}

	var source secrets.Source
	switch cfg.Secrets.Provider {
	case "gcp":
		smClient, err := google.NewServiceAccountClient(ctx, cfg.Google.CredentialsFile, google.ScopeCloud)
		if err != nil {
			return nil, cleanup, fmt.Errorf("secret manager credentials: %w", err)
		}
		source = secrets.NewGCPSource(cfg.Secrets.ProjectID, smClient, cfg.SecretsTimeout(), logger)
	default:
		source = &secrets.EnvSource{Lookup: os.LookupEnv}
	}
	secretCache := secrets.NewCache(source)

	waClient := whatsapp.NewClient(whatsapp.ClientConfig{
		APIBase:           cfg.WhatsApp.APIBase,
		AccessTokenName:   cfg.WhatsApp.AccessTokenSecret,
		PhoneNumberIDName: cfg.WhatsApp.PhoneNumberSecret,
		Secrets:           secretCache,
		Timeout:           cfg.WhatsAppTimeout(),
		Logger:            logger,
	})

	gemini := extract.NewGemini(extract.GeminiConfig{
		APIBase:    cfg.Gemini.APIBase,
		Model:      cfg.Gemini.Model,
		APIKeyName: cfg.Gemini.APIKeySecret,
		Secrets:    secretCache,
		Timeout:    cfg.GeminiTimeout(),
		Logger:     logger,
	})

	sheets := google.NewSheets(google.SheetsConfig{
		SheetID:     cfg.Google.SheetID,
		AppendRange: cfg.Google.AppendRange,
		Client:      googleClient,
		Timeout:     cfg.GoogleTimeout(),
		Logger:      logger,
	})
	drive := google.NewDrive(google.DriveConfig{
		Client:  googleClient,
		Timeout: cfg.GoogleTimeout(),
		Logger:  logger,
	})
	allowList := google.NewSheetAllowList(sheets, cfg.Google.AllowlistRange, logger)

	persister := pipeline.NewPersister(pipeline.PersisterConfig{
		Sheet:        sheets,
		Store:        drive,
		RootFolderID: cfg.Google.DriveFolderID,
		AutoCreate:   cfg.Google.AutoCreateFolders,
		Logger:       logger,
	})

	var recorder audit.Recorder = audit.NopRecorder{}
	if cfg.Audit.Enabled {
		store, err := audit.NewSQLiteStore(cfg.Audit.DBPath, logger)
		if err != nil {
			return nil, cleanup, fmt.Errorf("audit store: %w", err)
		}
		recorder = store
		cleanup = func() { store.Close() }
	}

	var alerter alerts.Alerter = alerts.NopAlerter{}
	if cfg.Alerts.Enabled {
		tg, err := alerts.NewTelegramAlerter(cfg.Alerts.TelegramToken, cfg.Alerts.ChatID, logger)
		if err != nil {
			// Alerts are best-effort; a broken alert channel must not keep
			// the pipeline down.
			logger.Error("telegram alerter unavailable", "error", err)
		} else {
			alerter = tg
		}
	}

	dispatcher := pipeline.NewDispatcher(pipeline.DispatcherConfig{
		Allow:     allowList,
		Resolver:  waClient,
		Extractor: gemini,
		Persister: persister,
		Notifier:  waClient,
		Audit:     recorder,
		Alerter:   alerter,
		Logger:    logger,
	})

	srv := server.New(server.Config{
		VerifyToken: cfg.WhatsApp.VerifyToken,
		AppSecret:   cfg.WhatsApp.AppSecret,
		WebhookPath: cfg.General.WebhookPath,
		Handler:     dispatcher,
		Logger:      logger,
	})
	return srv, cleanup, nil
}
