package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "gastobot.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

const minimalConfig = `
whatsapp:
  verifyToken: verify-me
  appSecret: app-secret
google:
  sheetId: sheet-1
  credentialsFile: /etc/gastobot/sa.json
`

func TestLoad_Minimal(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimalConfig))
	require.NoError(t, err)

	assert.Equal(t, "verify-me", cfg.WhatsApp.VerifyToken)
	assert.Equal(t, "sheet-1", cfg.Google.SheetID)

	// Everything else comes from Defaults.
	assert.Equal(t, "info", cfg.General.LogLevel)
	assert.Equal(t, 8080, cfg.General.ListenPort)
	assert.Equal(t, "/webhook", cfg.General.WebhookPath)
	assert.Equal(t, "https://graph.facebook.com/v21.0", cfg.WhatsApp.APIBase)
	assert.Equal(t, "gemini-1.5-flash", cfg.Gemini.Model)
	assert.Equal(t, "Users!A:A", cfg.Google.AllowlistRange)
	assert.Equal(t, "env", cfg.Secrets.Provider)
	assert.False(t, cfg.Google.AutoCreateFolders)
}

func TestLoad_EnvExpansion(t *testing.T) {
	t.Setenv("GASTOBOT_TEST_VERIFY", "expanded-token")

	cfg, err := Load(writeConfig(t, `
whatsapp:
  verifyToken: ${GASTOBOT_TEST_VERIFY}
  appSecret: app-secret
google:
  sheetId: sheet-1
  credentialsFile: /etc/gastobot/sa.json
`))
	require.NoError(t, err)
	assert.Equal(t, "expanded-token", cfg.WhatsApp.VerifyToken)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.ErrorContains(t, err, "read config file")
}

func TestLoad_BadYAML(t *testing.T) {
	_, err := Load(writeConfig(t, "whatsapp: [not a map"))
	assert.ErrorContains(t, err, "parse config YAML")
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		cfg := Defaults()
		cfg.WhatsApp.VerifyToken = "v"
		cfg.WhatsApp.AppSecret = "s"
		cfg.Google.SheetID = "sheet"
		cfg.Google.CredentialsFile = "sa.json"
		return cfg
	}

	require.NoError(t, base().Validate())

	cfg := base()
	cfg.WhatsApp.VerifyToken = ""
	assert.ErrorContains(t, cfg.Validate(), "verifyToken")

	cfg = base()
	cfg.WhatsApp.AppSecret = ""
	assert.ErrorContains(t, cfg.Validate(), "appSecret")

	cfg = base()
	cfg.Google.SheetID = ""
	assert.ErrorContains(t, cfg.Validate(), "sheetId")

	cfg = base()
	cfg.Google.CredentialsFile = ""
	assert.ErrorContains(t, cfg.Validate(), "credentialsFile")

	cfg = base()
	cfg.Secrets.Provider = "vault"
	assert.ErrorContains(t, cfg.Validate(), "secrets.provider")

	cfg = base()
	cfg.Secrets.Provider = "gcp"
	assert.ErrorContains(t, cfg.Validate(), "projectId")
	cfg.Secrets.ProjectID = "proj"
	assert.NoError(t, cfg.Validate())

	cfg = base()
	cfg.Alerts.Enabled = true
	assert.ErrorContains(t, cfg.Validate(), "telegramToken")
	cfg.Alerts.TelegramToken = "tg"
	cfg.Alerts.ChatID = 99
	assert.NoError(t, cfg.Validate())
}

func TestTimeoutHelpers(t *testing.T) {
	cfg := Defaults()
	assert.Equal(t, 30*time.Second, cfg.WhatsAppTimeout())
	assert.Equal(t, 60*time.Second, cfg.GeminiTimeout())
	assert.Equal(t, 30*time.Second, cfg.GoogleTimeout())
	assert.Equal(t, 10*time.Second, cfg.SecretsTimeout())
}
