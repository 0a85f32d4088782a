// Package extract builds the AI extraction request and normalizes the
// model's JSON answer into the typed domain result.
package extract

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"gastobot/internal/domain"
	"gastobot/internal/secrets"
)

// systemInstruction pins the extraction schema and taxonomy. The folder list
// is closed and the model is told to answer JSON only; the normalizer still
// treats the output as untrusted.
var systemInstruction = strings.Join([]string{
	"Act as a Senior Financial Assistant. From the user's message and/or image, extract financial transaction data",
	"and return it as a JSON object with fields:",
	"{'concept': str, 'amount': float, 'category': str, 'subcategory': str, 'currency': str, 'date': str, 'folder': str, 'valid_expense': bool, 'message': str}.",
	"Analyze the image (like a receipt or invoice) to find details. Use the text for context.",
	"Folder rules: MUST be one of ['Salitre', 'Tramonte', 'Villa', 'Manuela Sancho']. Infer the folder from context.",
	"- If the folder cannot be confidently determined, set 'folder' to 'Unknown'.",
	"Category rules:",
	"- Assign the most appropriate category based on the nature of the expense or income.",
	"- Use only predefined categories list ['" + strings.Join(domain.Categories, "','") + "'].",
	"Output rules:",
	"- Only return the JSON object, no conversation.",
	"- Do not include explanations, comments, or conversational text.",
	"- If any field is missing from the message, infer it when possible or use null.",
}, " ")

// defaultPrompt is used when a media message arrives without a caption.
const defaultPrompt = "Analiza este documento."

// Gemini calls the generateContent endpoint of the Gemini API. Implements
// domain.Extractor.
type Gemini struct {
	apiBase    string
	model      string
	apiKeyName string
	secrets    *secrets.Cache
	client     *http.Client
	logger     *slog.Logger
}

type GeminiConfig struct {
	APIBase    string
	Model      string
	APIKeyName string
	Secrets    *secrets.Cache
	Timeout    time.Duration
	Logger     *slog.Logger
}

func NewGemini(cfg GeminiConfig) *Gemini {
	if cfg.APIBase == "" {
		cfg.APIBase = "https://generativelanguage.googleapis.com"
	}
	if cfg.Model == "" {
		cfg.Model = "gemini-1.5-flash"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	return &Gemini{
		apiBase:    cfg.APIBase,
		model:      cfg.Model,
		apiKeyName: cfg.APIKeyName,
		secrets:    cfg.Secrets,
		client:     &http.Client{Timeout: cfg.Timeout},
		logger:     cfg.Logger,
	}
}

// Request/response wire types for generateContent. Only what the pipeline
// needs is declared.

type geminiPart struct {
	Text       string            `json:"text,omitempty"`
	InlineData *geminiInlineData `json:"inline_data,omitempty"`
}

type geminiInlineData struct {
	MimeType string `json:"mime_type"`
	Data     string `json:"data"` // base64
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiRequest struct {
	SystemInstruction *geminiContent  `json:"system_instruction,omitempty"`
	Contents          []geminiContent `json:"contents"`
	GenerationConfig  geminiGenConfig `json:"generationConfig"`
}

type geminiGenConfig struct {
	ResponseMimeType string `json:"response_mime_type"`
}

type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

// Extract sends the text context plus optional media and returns the raw
// text payload. It never parses the result; transport and format failures
// must stay distinguishable to the dispatcher.
func (g *Gemini) Extract(ctx context.Context, text string, media *domain.ResolvedMedia) (string, error) {
	apiKey, err := g.secrets.Get(ctx, g.apiKeyName)
	if err != nil {
		return "", fmt.Errorf("resolve API key: %w", err)
	}

	var parts []geminiPart
	if media != nil {
		parts = append(parts, geminiPart{InlineData: &geminiInlineData{
			MimeType: media.MimeType,
			Data:     base64.StdEncoding.EncodeToString(media.Data),
		}})
		if text == "" {
			text = defaultPrompt
		}
	}
	parts = append(parts, geminiPart{Text: text})

	reqBody := geminiRequest{
		SystemInstruction: &geminiContent{Parts: []geminiPart{{Text: systemInstruction}}},
		Contents:          []geminiContent{{Role: "user", Parts: parts}},
		GenerationConfig:  geminiGenConfig{ResponseMimeType: "application/json"},
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent", g.apiBase, g.model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", apiKey)

	g.logger.Info("sending extraction request",
		"model", g.model, "text_len", len(text), "has_media", media != nil)

	resp, err := g.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("call gemini: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", fmt.Errorf("gemini returned %d: %s", resp.StatusCode, respBody)
	}

	var out geminiResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode gemini response: %w", err)
	}
	if len(out.Candidates) == 0 {
		return "", fmt.Errorf("gemini returned no candidates")
	}

	var sb strings.Builder
	for _, p := range out.Candidates[0].Content.Parts {
		sb.WriteString(p.Text)
	}
	return sb.String(), nil
}
