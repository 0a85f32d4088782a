package google

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"
	"time"
)

const (
	defaultDriveBase       = "https://www.googleapis.com/drive/v3"
	defaultDriveUploadBase = "https://www.googleapis.com/upload/drive/v3"

	folderMimeType = "application/vnd.google-apps.folder"
)

// Drive uploads files and manages subfolders in Google Drive. Implements
// domain.FileStore.
type Drive struct {
	baseURL       string
	uploadBaseURL string
	client        *http.Client
	logger        *slog.Logger
}

type DriveConfig struct {
	BaseURL       string        // override for tests
	UploadBaseURL string        // override for tests
	Client        *http.Client  // must carry service-account credentials
	Timeout       time.Duration
	Logger        *slog.Logger
}

func NewDrive(cfg DriveConfig) *Drive {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultDriveBase
	}
	if cfg.UploadBaseURL == "" {
		cfg.UploadBaseURL = defaultDriveUploadBase
	}
	client := *cfg.Client
	if cfg.Timeout > 0 {
		client.Timeout = cfg.Timeout
	}
	return &Drive{
		baseURL:       cfg.BaseURL,
		uploadBaseURL: cfg.UploadBaseURL,
		client:        &client,
		logger:        cfg.Logger,
	}
}

// FindFolder looks up a non-trashed subfolder by name under parentID.
// Returns "" without error when the folder does not exist.
func (d *Drive) FindFolder(ctx context.Context, parentID, name string) (string, error) {
	query := fmt.Sprintf("name = '%s' and '%s' in parents and mimeType = '%s' and trashed = false",
		escapeQuery(name), escapeQuery(parentID), folderMimeType)

	endpoint := fmt.Sprintf("%s/files?q=%s&fields=files(id)", d.baseURL, url.QueryEscape(query))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("list folders: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("drive API %d: %s", resp.StatusCode, respBody)
	}

	var out struct {
		Files []struct {
			ID string `json:"id"`
		} `json:"files"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode folder listing: %w", err)
	}

	if len(out.Files) == 0 {
		return "", nil
	}
	return out.Files[0].ID, nil
}

// CreateFolder creates a subfolder under parentID and returns its id.
func (d *Drive) CreateFolder(ctx context.Context, parentID, name string) (string, error) {
	body, err := json.Marshal(map[string]any{
		"name":     name,
		"parents":  []string{parentID},
		"mimeType": folderMimeType,
	})
	if err != nil {
		return "", fmt.Errorf("marshal folder metadata: %w", err)
	}

	endpoint := d.baseURL + "/files?fields=id"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("create folder: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("drive API %d: %s", resp.StatusCode, respBody)
	}

	var out struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode folder response: %w", err)
	}

	d.logger.Info("drive folder created", "name", name, "id", out.ID)
	return out.ID, nil
}

// Upload stores data in folderID via a multipart/related upload, grants
// anyone/viewer access and returns the browser link.
func (d *Drive) Upload(ctx context.Context, folderID, filename, mimeType string, data []byte) (string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	metaHeader := textproto.MIMEHeader{}
	metaHeader.Set("Content-Type", "application/json; charset=UTF-8")
	metaPart, err := mw.CreatePart(metaHeader)
	if err != nil {
		return "", fmt.Errorf("create metadata part: %w", err)
	}
	meta := map[string]any{"name": filename, "parents": []string{folderID}}
	if err := json.NewEncoder(metaPart).Encode(meta); err != nil {
		return "", fmt.Errorf("encode metadata: %w", err)
	}

	mediaHeader := textproto.MIMEHeader{}
	mediaHeader.Set("Content-Type", mimeType)
	mediaPart, err := mw.CreatePart(mediaHeader)
	if err != nil {
		return "", fmt.Errorf("create media part: %w", err)
	}
	if _, err := mediaPart.Write(data); err != nil {
		return "", fmt.Errorf("write media: %w", err)
	}
	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("finish multipart body: %w", err)
	}

	endpoint := d.uploadBaseURL + "/files?uploadType=multipart&fields=id,webViewLink"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, &buf)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "multipart/related; boundary="+mw.Boundary())

	resp, err := d.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("upload file: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("drive upload %d: %s", resp.StatusCode, respBody)
	}

	var out struct {
		ID          string `json:"id"`
		WebViewLink string `json:"webViewLink"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode upload response: %w", err)
	}

	if err := d.share(ctx, out.ID); err != nil {
		// The file is uploaded; a failed share still yields a usable link
		// for the service account, so log and keep going.
		d.logger.Warn("sharing uploaded file failed", "file_id", out.ID, "error", err)
	}

	d.logger.Info("file uploaded", "name", filename, "id", out.ID)
	return out.WebViewLink, nil
}

// share grants viewer access to anyone with the link.
func (d *Drive) share(ctx context.Context, fileID string) error {
	body := strings.NewReader(`{"type":"anyone","role":"viewer"}`)
	endpoint := fmt.Sprintf("%s/files/%s/permissions", d.baseURL, fileID)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("create permission: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("drive API %d: %s", resp.StatusCode, respBody)
	}
	return nil
}

// escapeQuery escapes single quotes and backslashes for a Drive query string.
func escapeQuery(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return strings.ReplaceAll(s, `'`, `\'`)
}
