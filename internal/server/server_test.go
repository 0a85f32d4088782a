package server

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gastobot/internal/domain"
	"gastobot/internal/pipeline"
)

const (
	testVerifyToken = "verify-me"
	testAppSecret   = "app-secret"
)

type recordingHandler struct {
	seen    []*domain.InboundMessage
	outcome pipeline.Outcome
}

func (h *recordingHandler) Handle(_ context.Context, msg *domain.InboundMessage) pipeline.Outcome {
	h.seen = append(h.seen, msg)
	out := h.outcome
	out.EventID = msg.EventID
	return out
}

func newTestServer(handler EventHandler) *Server {
	return New(Config{
		VerifyToken: testVerifyToken,
		AppSecret:   testAppSecret,
		Handler:     handler,
		Logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
}

func sign(body []byte) string {
	mac := hmac.New(sha256.New, []byte(testAppSecret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

const textDelivery = `{
  "object": "whatsapp_business_account",
  "entry": [{"id": "e1", "changes": [{"field": "messages", "value": {
    "messaging_product": "whatsapp",
    "messages": [{"from": "34600000001", "id": "wamid.1", "type": "text", "text": {"body": "50 alquiler"}}]
  }}]}]
}`

const statusDelivery = `{
  "object": "whatsapp_business_account",
  "entry": [{"id": "e1", "changes": [{"field": "messages", "value": {
    "messaging_product": "whatsapp",
    "statuses": [{"id": "wamid.1", "status": "delivered"}]
  }}]}]
}`

func TestVerification_Subscribe(t *testing.T) {
	s := newTestServer(&recordingHandler{})

	req := httptest.NewRequest(http.MethodGet,
		"/webhook?hub.mode=subscribe&hub.verify_token="+testVerifyToken+"&hub.challenge=12345", nil)
	rec := httptest.NewRecorder()
	s.Mux().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "12345", rec.Body.String())
}

func TestVerification_WrongToken(t *testing.T) {
	s := newTestServer(&recordingHandler{})

	req := httptest.NewRequest(http.MethodGet,
		"/webhook?hub.mode=subscribe&hub.verify_token=wrong&hub.challenge=12345", nil)
	rec := httptest.NewRecorder()
	s.Mux().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.NotContains(t, rec.Body.String(), "12345")
}

func TestVerification_MissingMode(t *testing.T) {
	s := newTestServer(&recordingHandler{})

	req := httptest.NewRequest(http.MethodGet,
		"/webhook?hub.verify_token="+testVerifyToken+"&hub.challenge=12345", nil)
	rec := httptest.NewRecorder()
	s.Mux().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestVerification_ChallengeEscaped(t *testing.T) {
	s := newTestServer(&recordingHandler{})

	req := httptest.NewRequest(http.MethodGet,
		"/webhook?hub.mode=subscribe&hub.verify_token="+testVerifyToken+"&hub.challenge=%3Cscript%3E", nil)
	rec := httptest.NewRecorder()
	s.Mux().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "&lt;script&gt;", rec.Body.String())
}

func TestEvent_ValidSignatureDispatches(t *testing.T) {
	handler := &recordingHandler{}
	s := newTestServer(handler)

	body := []byte(textDelivery)
	req := httptest.NewRequest(http.MethodPost, "/webhook", bytes.NewReader(body))
	req.Header.Set("X-Hub-Signature-256", sign(body))
	rec := httptest.NewRecorder()
	s.Mux().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
	require.Len(t, handler.seen, 1)
	assert.Equal(t, domain.KindText, handler.seen[0].Kind)
	assert.Equal(t, "34600000001", handler.seen[0].SenderID)
	assert.Equal(t, "50 alquiler", handler.seen[0].Body)
}

func TestEvent_InvalidSignatureRejected(t *testing.T) {
	handler := &recordingHandler{}
	s := newTestServer(handler)

	body := []byte(textDelivery)
	req := httptest.NewRequest(http.MethodPost, "/webhook", bytes.NewReader(body))
	req.Header.Set("X-Hub-Signature-256", "sha256=deadbeef")
	rec := httptest.NewRecorder()
	s.Mux().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Empty(t, handler.seen)
}

func TestEvent_MissingSignatureRejected(t *testing.T) {
	handler := &recordingHandler{}
	s := newTestServer(handler)

	req := httptest.NewRequest(http.MethodPost, "/webhook", bytes.NewReader([]byte(textDelivery)))
	rec := httptest.NewRecorder()
	s.Mux().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Empty(t, handler.seen)
}

func TestEvent_StatusDeliveryAcked(t *testing.T) {
	handler := &recordingHandler{}
	s := newTestServer(handler)

	body := []byte(statusDelivery)
	req := httptest.NewRequest(http.MethodPost, "/webhook", bytes.NewReader(body))
	req.Header.Set("X-Hub-Signature-256", sign(body))
	rec := httptest.NewRecorder()
	s.Mux().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, handler.seen)
}

func TestEvent_UnparseableBodyRejected(t *testing.T) {
	handler := &recordingHandler{}
	s := newTestServer(handler)

	body := []byte("{not json")
	req := httptest.NewRequest(http.MethodPost, "/webhook", bytes.NewReader(body))
	req.Header.Set("X-Hub-Signature-256", sign(body))
	rec := httptest.NewRecorder()
	s.Mux().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, handler.seen)
}

func TestEvent_BusinessFailureStillAcked(t *testing.T) {
	handler := &recordingHandler{outcome: pipeline.Outcome{Failure: domain.FailInvalidExpense}}
	s := newTestServer(handler)

	body := []byte(textDelivery)
	req := httptest.NewRequest(http.MethodPost, "/webhook", bytes.NewReader(body))
	req.Header.Set("X-Hub-Signature-256", sign(body))
	rec := httptest.NewRecorder()
	s.Mux().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestHealthz(t *testing.T) {
	s := newTestServer(&recordingHandler{})

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	s.Mux().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}
