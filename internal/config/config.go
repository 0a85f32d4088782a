// Package config loads the gastobot configuration from a YAML file with
// ${VAR} environment expansion.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration.
type Config struct {
	General  GeneralConfig  `yaml:"general"`
	WhatsApp WhatsAppConfig `yaml:"whatsapp"`
	Gemini   GeminiConfig   `yaml:"gemini"`
	Google   GoogleConfig   `yaml:"google"`
	Secrets  SecretsConfig  `yaml:"secrets"`
	Audit    AuditConfig    `yaml:"audit"`
	Alerts   AlertsConfig   `yaml:"alerts"`
}

type GeneralConfig struct {
	LogLevel    string `yaml:"logLevel"`
	ListenPort  int    `yaml:"listenPort"`
	WebhookPath string `yaml:"webhookPath"`
}

type WhatsAppConfig struct {
	VerifyToken       string `yaml:"verifyToken"`
	AppSecret         string `yaml:"appSecret"`
	APIBase           string `yaml:"apiBase"`
	AccessTokenSecret string `yaml:"accessTokenSecret"`   // secret name, not the token
	PhoneNumberSecret string `yaml:"phoneNumberIdSecret"` // secret name, not the id
	TimeoutSeconds    int    `yaml:"timeoutSeconds"`
}

type GeminiConfig struct {
	APIBase        string `yaml:"apiBase"`
	Model          string `yaml:"model"`
	APIKeySecret   string `yaml:"apiKeySecret"` // secret name, not the key
	TimeoutSeconds int    `yaml:"timeoutSeconds"`
}

type GoogleConfig struct {
	CredentialsFile   string `yaml:"credentialsFile"`
	SheetID           string `yaml:"sheetId"`
	AppendRange       string `yaml:"appendRange"`
	AllowlistRange    string `yaml:"allowlistRange"`
	DriveFolderID     string `yaml:"driveFolderId"`
	AutoCreateFolders bool   `yaml:"autoCreateDestinationFolders"`
	TimeoutSeconds    int    `yaml:"timeoutSeconds"`
}

type SecretsConfig struct {
	Provider       string `yaml:"provider"` // "env" | "gcp"
	ProjectID      string `yaml:"projectId"`
	TimeoutSeconds int    `yaml:"timeoutSeconds"`
}

type AuditConfig struct {
	Enabled bool   `yaml:"enabled"`
	DBPath  string `yaml:"dbPath"`
}

type AlertsConfig struct {
	Enabled       bool   `yaml:"enabled"`
	TelegramToken string `yaml:"telegramToken"`
	ChatID        int64  `yaml:"chatId"`
}

// Defaults returns the baseline configuration before the YAML file is
// applied on top.
func Defaults() *Config {
	return &Config{
		General: GeneralConfig{
			LogLevel:    "info",
			ListenPort:  8080,
			WebhookPath: "/webhook",
		},
		WhatsApp: WhatsAppConfig{
			APIBase:           "https://graph.facebook.com/v21.0",
			AccessTokenSecret: "WHATSAPP_ACCESS_TOKEN",
			PhoneNumberSecret: "WHATSAPP_PHONE_NUMBER_ID",
			TimeoutSeconds:    30,
		},
		Gemini: GeminiConfig{
			APIBase:        "https://generativelanguage.googleapis.com",
			Model:          "gemini-1.5-flash",
			APIKeySecret:   "GEMINI_API_KEY",
			TimeoutSeconds: 60,
		},
		Google: GoogleConfig{
			AppendRange:    "A1",
			AllowlistRange: "Users!A:A",
			TimeoutSeconds: 30,
		},
		Secrets: SecretsConfig{
			Provider:       "env",
			TimeoutSeconds: 10,
		},
		Audit: AuditConfig{
			DBPath: "gastobot.db",
		},
	}
}

// Load reads, expands and validates the configuration at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file %s: %w", path, err)
	}

	// Expand ${VAR} references so tokens can stay out of the file.
	expanded := os.ExpandEnv(string(data))

	cfg := Defaults()
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("parse config YAML: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the settings the pipeline cannot run without.
func (c *Config) Validate() error {
	if c.WhatsApp.VerifyToken == "" {
		return fmt.Errorf("whatsapp.verifyToken is required")
	}
	if c.WhatsApp.AppSecret == "" {
		return fmt.Errorf("whatsapp.appSecret is required")
	}
	if c.Google.SheetID == "" {
		return fmt.Errorf("google.sheetId is required")
	}
	if c.Google.CredentialsFile == "" {
		return fmt.Errorf("google.credentialsFile is required")
	}
	switch c.Secrets.Provider {
	case "env", "gcp":
	default:
		return fmt.Errorf("secrets.provider must be env or gcp, got %q", c.Secrets.Provider)
	}
	if c.Secrets.Provider == "gcp" && c.Secrets.ProjectID == "" {
		return fmt.Errorf("secrets.projectId is required when secrets.provider is gcp")
	}
	if c.Alerts.Enabled && (c.Alerts.TelegramToken == "" || c.Alerts.ChatID == 0) {
		return fmt.Errorf("alerts.telegramToken and alerts.chatId are required when alerts are enabled")
	}
	return nil
}

// WhatsAppTimeout returns the WhatsApp client timeout as a duration.
func (c *Config) WhatsAppTimeout() time.Duration {
	return time.Duration(c.WhatsApp.TimeoutSeconds) * time.Second
}

// GeminiTimeout returns the extraction call timeout as a duration.
func (c *Config) GeminiTimeout() time.Duration {
	return time.Duration(c.Gemini.TimeoutSeconds) * time.Second
}

// GoogleTimeout returns the Sheets/Drive call timeout as a duration.
func (c *Config) GoogleTimeout() time.Duration {
	return time.Duration(c.Google.TimeoutSeconds) * time.Second
}

// SecretsTimeout returns the secret fetch timeout as a duration.
func (c *Config) SecretsTimeout() time.Duration {
	return time.Duration(c.Secrets.TimeoutSeconds) * time.Second
}
