// Package secrets resolves named credentials (API tokens, keys) from an
// environment or Google Secret Manager source, fronted by a process-wide
// write-once cache with single-flight fill.
package secrets

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// Source fetches one secret value by name from an upstream store.
type Source interface {
	Fetch(ctx context.Context, name string) (string, error)
}

// EnvSource resolves secrets from process environment variables. Used for
// local runs and tests.
type EnvSource struct {
	Lookup func(string) (string, bool)
}

func (s *EnvSource) Fetch(_ context.Context, name string) (string, error) {
	v, ok := s.Lookup(name)
	if !ok || v == "" {
		return "", fmt.Errorf("secret %s not set in environment", name)
	}
	return v, nil
}

const defaultSecretManagerBase = "https://secretmanager.googleapis.com/v1"

// GCPSource resolves secrets from Google Secret Manager over its REST API.
// The HTTP client must already carry service-account credentials.
type GCPSource struct {
	ProjectID string
	BaseURL   string // override for tests, defaults to the public endpoint
	Client    *http.Client
	Logger    *slog.Logger
}

// Fetch accesses the latest version of the named secret.
func (s *GCPSource) Fetch(ctx context.Context, name string) (string, error) {
	base := s.BaseURL
	if base == "" {
		base = defaultSecretManagerBase
	}
	url := fmt.Sprintf("%s/projects/%s/secrets/%s/versions/latest:access", base, s.ProjectID, name)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}

	resp, err := s.Client.Do(req)
	if err != nil {
		return "", fmt.Errorf("access secret %s: %w", name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("secret manager returned %d for %s: %s", resp.StatusCode, name, body)
	}

	var out struct {
		Payload struct {
			Data string `json:"data"`
		} `json:"payload"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode secret response: %w", err)
	}

	raw, err := base64.StdEncoding.DecodeString(out.Payload.Data)
	if err != nil {
		return "", fmt.Errorf("decode secret payload: %w", err)
	}

	s.Logger.Debug("secret fetched", "name", name)
	return string(raw), nil
}

// NewGCPSource builds a Secret Manager source with a bounded request timeout
// applied on top of the authenticated client.
func NewGCPSource(projectID string, client *http.Client, timeout time.Duration, logger *slog.Logger) *GCPSource {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	c := *client
	c.Timeout = timeout
	return &GCPSource{ProjectID: projectID, Client: &c, Logger: logger}
}
