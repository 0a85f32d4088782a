// Package whatsapp implements the WhatsApp Cloud API collaborator: webhook
// signature verification, payload parsing, outbound text messages and media
// resolution/download.
package whatsapp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"gastobot/internal/domain"
	"gastobot/internal/secrets"
)

// maxMediaBytes caps a single media download. WhatsApp image/document
// uploads stay well under this.
const maxMediaBytes = 32 << 20

// Client talks to the WhatsApp Cloud API. Credentials are resolved lazily
// through the secret cache on each call path that needs them.
type Client struct {
	apiBase           string
	accessTokenName   string
	phoneNumberIDName string
	secrets           *secrets.Cache
	client            *http.Client
	logger            *slog.Logger
}

type ClientConfig struct {
	APIBase           string
	AccessTokenName   string
	PhoneNumberIDName string
	Secrets           *secrets.Cache
	Timeout           time.Duration
	Logger            *slog.Logger
}

func NewClient(cfg ClientConfig) *Client {
	if cfg.APIBase == "" {
		cfg.APIBase = "https://graph.facebook.com/v21.0"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &Client{
		apiBase:           cfg.APIBase,
		accessTokenName:   cfg.AccessTokenName,
		phoneNumberIDName: cfg.PhoneNumberIDName,
		secrets:           cfg.Secrets,
		client:            &http.Client{Timeout: cfg.Timeout},
		logger:            cfg.Logger,
	}
}

// Notify sends a plain text message to a user. Implements domain.Notifier.
func (c *Client) Notify(ctx context.Context, to, message string) error {
	token, err := c.secrets.Get(ctx, c.accessTokenName)
	if err != nil {
		return fmt.Errorf("resolve access token: %w", err)
	}
	phoneID, err := c.secrets.Get(ctx, c.phoneNumberIDName)
	if err != nil {
		return fmt.Errorf("resolve phone number id: %w", err)
	}

	payload := map[string]any{
		"messaging_product": "whatsapp",
		"to":                to,
		"type":              "text",
		"text":              map[string]string{"body": message},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	url := fmt.Sprintf("%s/%s/messages", c.apiBase, phoneID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("send message: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("whatsapp API %d: %s", resp.StatusCode, respBody)
	}

	c.logger.Info("whatsapp message sent", "to", to)
	return nil
}

// Resolve turns a media id into downloaded bytes. Two sequential Graph
// calls: the media endpoint hands back a short-lived URL, then the binary is
// fetched from it. The bearer token is required on both, including the
// download. Implements domain.MediaResolver.
func (c *Client) Resolve(ctx context.Context, mediaID string) (*domain.ResolvedMedia, error) {
	token, err := c.secrets.Get(ctx, c.accessTokenName)
	if err != nil {
		return nil, fmt.Errorf("resolve access token: %w", err)
	}

	url, mimeType, err := c.mediaURL(ctx, mediaID, token)
	if err != nil {
		return nil, err
	}

	data, err := c.download(ctx, url, token)
	if err != nil {
		return nil, err
	}

	c.logger.Info("media downloaded", "media_id", mediaID, "mime_type", mimeType, "bytes", len(data))
	return &domain.ResolvedMedia{Data: data, MimeType: mimeType}, nil
}

// mediaURL resolves a media id to its download URL and reported mime type.
// The endpoint is the same for every media kind.
func (c *Client) mediaURL(ctx context.Context, mediaID, token string) (string, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.apiBase+"/"+mediaID, nil)
	if err != nil {
		return "", "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", "", fmt.Errorf("resolve media url %s: %w", mediaID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", "", fmt.Errorf("media endpoint returned %d for %s", resp.StatusCode, mediaID)
	}

	var out struct {
		URL      string `json:"url"`
		MimeType string `json:"mime_type"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", "", fmt.Errorf("decode media response: %w", err)
	}
	if out.URL == "" {
		return "", "", fmt.Errorf("media endpoint returned no url for %s", mediaID)
	}
	return out.URL, out.MimeType, nil
}

func (c *Client) download(ctx context.Context, url, token string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download media: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("media download returned %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxMediaBytes))
	if err != nil {
		return nil, fmt.Errorf("read media body: %w", err)
	}
	return data, nil
}
