package google

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"
)

const defaultSheetsBase = "https://sheets.googleapis.com"

// Sheets appends rows to and reads ranges from one spreadsheet. Implements
// domain.RowAppender.
type Sheets struct {
	baseURL     string
	sheetID     string
	appendRange string
	client      *http.Client
	logger      *slog.Logger
}

type SheetsConfig struct {
	BaseURL     string // override for tests
	SheetID     string
	AppendRange string
	Client      *http.Client // must carry service-account credentials
	Timeout     time.Duration
	Logger      *slog.Logger
}

func NewSheets(cfg SheetsConfig) *Sheets {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultSheetsBase
	}
	if cfg.AppendRange == "" {
		cfg.AppendRange = "A1"
	}
	client := *cfg.Client
	if cfg.Timeout > 0 {
		client.Timeout = cfg.Timeout
	}
	return &Sheets{
		baseURL:     cfg.BaseURL,
		sheetID:     cfg.SheetID,
		appendRange: cfg.AppendRange,
		client:      &client,
		logger:      cfg.Logger,
	}
}

// AppendRow appends one row to the configured range.
func (s *Sheets) AppendRow(ctx context.Context, row []any) error {
	endpoint := fmt.Sprintf("%s/v4/spreadsheets/%s/values/%s:append?valueInputOption=USER_ENTERED&insertDataOption=INSERT_ROWS",
		s.baseURL, s.sheetID, url.PathEscape(s.appendRange))

	body, err := json.Marshal(map[string]any{"values": [][]any{row}})
	if err != nil {
		return fmt.Errorf("marshal row: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("append row: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("sheets API %d: %s", resp.StatusCode, respBody)
	}

	s.logger.Info("row appended", "sheet", s.sheetID)
	return nil
}

// ReadColumn returns the first cell of every row in rng.
func (s *Sheets) ReadColumn(ctx context.Context, rng string) ([]string, error) {
	endpoint := fmt.Sprintf("%s/v4/spreadsheets/%s/values/%s", s.baseURL, s.sheetID, url.PathEscape(rng))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("read range %s: %w", rng, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("sheets API %d: %s", resp.StatusCode, respBody)
	}

	var out struct {
		Values [][]string `json:"values"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode range response: %w", err)
	}

	cells := make([]string, 0, len(out.Values))
	for _, row := range out.Values {
		if len(row) > 0 && row[0] != "" {
			cells = append(cells, row[0])
		}
	}
	return cells, nil
}
