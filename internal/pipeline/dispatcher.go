// Package pipeline orchestrates one inbound event end to end: sender
// authorization, classification, media resolution, AI extraction, result
// normalization, persistence and user notification. Every stage failure is
// caught at its boundary and turned into exactly one outbound notification;
// nothing propagates past the dispatcher.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"gastobot/internal/alerts"
	"gastobot/internal/audit"
	"gastobot/internal/domain"
	"gastobot/internal/extract"
	"gastobot/internal/metrics"
)

// User-facing notification texts. Kept in the product's original voice.
const (
	msgUnauthorized     = "Lo siento, no eres un usuario autorizado para usar este chat."
	msgMediaFailed      = "❌ No se pudo descargar el archivo adjunto. Inténtalo de nuevo."
	msgExtractionFailed = "❌ No se pudo procesar tu mensaje. Inténtalo de nuevo más tarde."
	msgMalformedResult  = "❌ Could not parse AI response as JSON"
	msgInvalidExpense   = "❌ Invalid expense. Not saving to Google Sheets."
	msgPersistFailed    = "❌ No se pudo guardar el gasto en la hoja de cálculo. Inténtalo de nuevo más tarde."
)

// Outcome is the terminal state of one event.
type Outcome struct {
	EventID string
	Failure domain.FailureKind // empty on success
	Record  *domain.PersistedRecord
}

// Succeeded reports whether the event reached the notified-success state.
func (o Outcome) Succeeded() bool { return o.Failure == "" }

// Dispatcher drives the state machine over injected collaborators.
type Dispatcher struct {
	allow     domain.AllowList
	resolver  domain.MediaResolver
	extractor domain.Extractor
	persister *Persister
	notifier  domain.Notifier
	audit     audit.Recorder
	alerter   alerts.Alerter
	logger    *slog.Logger
}

type DispatcherConfig struct {
	Allow     domain.AllowList
	Resolver  domain.MediaResolver
	Extractor domain.Extractor
	Persister *Persister
	Notifier  domain.Notifier
	Audit     audit.Recorder
	Alerter   alerts.Alerter
	Logger    *slog.Logger
}

func NewDispatcher(cfg DispatcherConfig) *Dispatcher {
	if cfg.Audit == nil {
		cfg.Audit = audit.NopRecorder{}
	}
	if cfg.Alerter == nil {
		cfg.Alerter = alerts.NopAlerter{}
	}
	return &Dispatcher{
		allow:     cfg.Allow,
		resolver:  cfg.Resolver,
		extractor: cfg.Extractor,
		persister: cfg.Persister,
		notifier:  cfg.Notifier,
		audit:     cfg.Audit,
		alerter:   cfg.Alerter,
		logger:    cfg.Logger,
	}
}

// Handle runs one event through the pipeline. It never returns an error:
// every terminal state, success or failure, is absorbed here and reflected
// in the Outcome. The transport layer acknowledges the delivery regardless.
func (d *Dispatcher) Handle(ctx context.Context, msg *domain.InboundMessage) Outcome {
	metrics.EventsTotal.Inc()
	log := d.logger.With("event_id", msg.EventID, "sender", msg.SenderID, "kind", msg.Kind)

	// Received -> Authorized
	allowed, err := d.allow.Allowed(ctx, msg.SenderID)
	if err != nil {
		// An unreachable allow-list denies by default, but silently: the
		// sender may well be legitimate, and the unauthorized text would be
		// a lie during a Sheets outage.
		log.Error("allow-list fetch failed", "error", err)
		return d.abort(ctx, log, msg, domain.Abort(domain.FailUnauthorized, "authorize", err), "")
	}
	if !allowed {
		return d.abort(ctx, log, msg, domain.Abort(domain.FailUnauthorized, "authorize", nil), msgUnauthorized)
	}

	// Authorized -> Classified
	switch msg.Kind {
	case domain.KindText, domain.KindImage, domain.KindDocument:
	default:
		// Logged only; the sender is not notified about message kinds the
		// pipeline does not handle.
		log.Warn("unsupported message type")
		return d.abort(ctx, log, msg, domain.Abort(domain.FailUnsupported, "classify", nil), "")
	}

	// Classified -> MediaResolved (image/document only)
	var media *domain.ResolvedMedia
	if msg.Kind != domain.KindText {
		media, err = d.resolver.Resolve(ctx, msg.MediaID)
		if err != nil {
			return d.abort(ctx, log, msg, domain.Abort(domain.FailMedia, "resolve_media", err), msgMediaFailed)
		}
		if media.MimeType == "" {
			media.MimeType = msg.MimeHint
		}
	}

	// -> Extracted
	start := time.Now()
	rawText, err := d.extractor.Extract(ctx, msg.Text(), media)
	metrics.ExtractionTotal.Inc()
	metrics.ExtractionLatency.Observe(time.Since(start).Seconds())
	if err != nil {
		return d.abort(ctx, log, msg, domain.Abort(domain.FailExtraction, "extract", err), msgExtractionFailed)
	}

	// -> Normalized
	result, err := extract.Normalize(rawText)
	if err != nil {
		if !errors.Is(err, extract.ErrMalformed) {
			err = fmt.Errorf("%w: %v", extract.ErrMalformed, err)
		}
		return d.abort(ctx, log, msg, domain.Abort(domain.FailMalformed, "normalize", err), msgMalformedResult)
	}

	if !result.ValidExpense {
		notify := msgInvalidExpense
		if result.Message != nil && *result.Message != "" {
			notify = *result.Message
		}
		return d.abort(ctx, log, msg, domain.Abort(domain.FailInvalidExpense, "normalize", nil), notify)
	}

	// -> Persisted
	rec, err := d.persister.Persist(ctx, msg, result, media)
	if err != nil {
		return d.abort(ctx, log, msg, domain.Abort(domain.FailPersistence, "persist", err), msgPersistFailed)
	}

	// Persisted -> Notified
	d.notify(ctx, log, msg.SenderID, successMessage(rec))
	d.record(ctx, log, msg, "persisted", "")

	log.Info("event persisted", "concept", rec.Result.Concept, "folder", rec.Result.Folder)
	return Outcome{EventID: msg.EventID, Record: rec}
}

// abort logs the failure, records it, raises an operator alert where the
// kind warrants one and sends the single user notification (when text is
// non-empty). It is the only path into a terminal failure state.
func (d *Dispatcher) abort(ctx context.Context, log *slog.Logger, msg *domain.InboundMessage, se *domain.StageError, notifyText string) Outcome {
	if se.Err != nil {
		log.Error("pipeline stage failed", "stage", se.Stage, "failure", se.Kind, "error", se.Err)
	} else {
		log.Warn("pipeline aborted", "stage", se.Stage, "failure", se.Kind)
	}

	metrics.FailureCounter(string(se.Kind)).Inc()
	d.alerter.Alert(se.Kind, msg.EventID, se.Err)

	detail := ""
	if se.Err != nil {
		detail = se.Err.Error()
	}
	d.record(ctx, log, msg, string(se.Kind), detail)

	if notifyText != "" {
		d.notify(ctx, log, msg.SenderID, notifyText)
	}
	return Outcome{EventID: msg.EventID, Failure: se.Kind}
}

func (d *Dispatcher) notify(ctx context.Context, log *slog.Logger, to, text string) {
	if err := d.notifier.Notify(ctx, to, text); err != nil {
		metrics.NotifyFailures.Inc()
		log.Error("notification failed", "error", err)
	}
}

func (d *Dispatcher) record(ctx context.Context, log *slog.Logger, msg *domain.InboundMessage, outcome, detail string) {
	err := d.audit.Record(ctx, audit.Entry{
		EventID:  msg.EventID,
		SenderID: msg.SenderID,
		Kind:     string(msg.Kind),
		Outcome:  outcome,
		Detail:   detail,
	})
	if err != nil {
		log.Warn("audit record failed", "error", err)
	}
}

// successMessage enumerates what was stored so the sender can spot a bad
// extraction immediately.
func successMessage(rec *domain.PersistedRecord) string {
	amount := "?"
	if rec.Result.Amount != nil {
		amount = fmt.Sprintf("%g", *rec.Result.Amount)
	}
	currency := ""
	if rec.Result.Currency != nil {
		currency = *rec.Result.Currency
	}
	subcategory := ""
	if rec.Result.Subcategory != nil {
		subcategory = *rec.Result.Subcategory
	}
	return fmt.Sprintf(
		"📝 ¡Listo! Se creó una entrada con concepto '%s', valor %s %s, categoría '%s', subcategoría '%s'.",
		rec.Result.Concept, amount, currency, rec.Result.Category, subcategory)
}
