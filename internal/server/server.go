// Package server is the webhook ingress: the Meta verification handshake,
// signature checking and handoff to the pipeline dispatcher. The response
// code is decoupled from the pipeline outcome — only authentication and
// payload-shape failures are rejected, everything else is acknowledged so
// the delivery system does not re-send a business-failed event.
package server

import (
	"context"
	"fmt"
	"html"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"gastobot/internal/domain"
	"gastobot/internal/metrics"
	"gastobot/internal/pipeline"
	"gastobot/internal/whatsapp"
)

// EventHandler runs one parsed event through the pipeline.
type EventHandler interface {
	Handle(ctx context.Context, msg *domain.InboundMessage) pipeline.Outcome
}

// Server mounts the webhook routes plus health and metrics endpoints.
type Server struct {
	verifyToken string
	appSecret   string
	webhookPath string
	handler     EventHandler
	logger      *slog.Logger
	mux         *http.ServeMux
}

type Config struct {
	VerifyToken string
	AppSecret   string
	WebhookPath string
	Handler     EventHandler
	Logger      *slog.Logger
}

func New(cfg Config) *Server {
	if cfg.WebhookPath == "" {
		cfg.WebhookPath = "/webhook"
	}
	s := &Server{
		verifyToken: cfg.VerifyToken,
		appSecret:   cfg.AppSecret,
		webhookPath: cfg.WebhookPath,
		handler:     cfg.Handler,
		logger:      cfg.Logger,
	}

	s.mux = http.NewServeMux()
	s.mux.HandleFunc("GET "+s.webhookPath, s.handleVerification)
	s.mux.HandleFunc("POST "+s.webhookPath, s.handleEvent)
	s.mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, "ok")
	})
	s.mux.Handle("GET /metrics", metrics.Collector.Handler())
	return s
}

// Mux exposes the handler for tests and embedding.
func (s *Server) Mux() http.Handler { return s.mux }

// handleVerification answers the Meta subscription handshake: echo the
// challenge only for mode=subscribe with a matching token.
func (s *Server) handleVerification(w http.ResponseWriter, r *http.Request) {
	mode := r.URL.Query().Get("hub.mode")
	token := r.URL.Query().Get("hub.verify_token")
	challenge := r.URL.Query().Get("hub.challenge")

	if mode == "subscribe" && token == s.verifyToken {
		s.logger.Info("webhook verified")
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, html.EscapeString(challenge))
		return
	}

	s.logger.Warn("webhook verification failed", "mode", mode)
	http.Error(w, "Forbidden", http.StatusForbidden)
}

// handleEvent authenticates and dispatches one webhook delivery.
func (s *Server) handleEvent(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "Bad request", http.StatusBadRequest)
		return
	}

	sig := r.Header.Get("X-Hub-Signature-256")
	if !whatsapp.VerifySignature(body, sig, s.appSecret) {
		s.logger.Warn("invalid webhook signature")
		metrics.FailureCounter(string(domain.FailAuthentication)).Inc()
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}

	msg, ok, err := whatsapp.ParseInbound(body, time.Now())
	if err != nil {
		s.logger.Warn("unparseable webhook payload", "error", err)
		http.Error(w, "Bad request", http.StatusBadRequest)
		return
	}
	if !ok {
		// Status updates and read receipts carry no message; just ack.
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, `{"status":"ok"}`)
		return
	}

	// The pipeline absorbs every business failure; the delivery is
	// acknowledged either way.
	outcome := s.handler.Handle(r.Context(), msg)
	s.logger.Debug("event dispatched", "event_id", outcome.EventID, "failure", outcome.Failure)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, `{"status":"ok"}`)
}

// Serve binds the port, signals readiness and serves until ctx is
// cancelled.
func Serve(ctx context.Context, port int, s *Server) (<-chan struct{}, error) {
	srv := &http.Server{Handler: s.mux}

	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return nil, fmt.Errorf("bind webhook port %d: %w", port, err)
	}

	ready := make(chan struct{})

	go func() {
		<-ctx.Done()
		s.logger.Info("webhook server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	go func() {
		s.logger.Info("webhook server listening", "port", port, "path", s.webhookPath)
		close(ready)
		if err := srv.Serve(ln); err != http.ErrServerClosed {
			s.logger.Error("webhook server error", "error", err)
		}
	}()

	return ready, nil
}
