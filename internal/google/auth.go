// Package google implements the Sheets and Drive collaborators over their
// REST APIs, authenticated with a service-account JWT.
package google

import (
	"context"
	"fmt"
	"net/http"
	"os"

	"golang.org/x/oauth2/google"
)

// API scopes used by the pipeline. Drive covers both uploads and the folder
// lookups; Sheets covers row appends and the allow-list reads.
const (
	ScopeSpreadsheets = "https://www.googleapis.com/auth/spreadsheets"
	ScopeDrive        = "https://www.googleapis.com/auth/drive"
	ScopeCloud        = "https://www.googleapis.com/auth/cloud-platform"
)

// NewServiceAccountClient builds an HTTP client that signs requests with the
// service account at credentialsFile, holding the given scopes.
func NewServiceAccountClient(ctx context.Context, credentialsFile string, scopes ...string) (*http.Client, error) {
	data, err := os.ReadFile(credentialsFile)
	if err != nil {
		return nil, fmt.Errorf("read credentials file %s: %w", credentialsFile, err)
	}

	cfg, err := google.JWTConfigFromJSON(data, scopes...)
	if err != nil {
		return nil, fmt.Errorf("parse service account credentials: %w", err)
	}

	return cfg.Client(ctx), nil
}
