package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"gastobot/internal/domain"
	"gastobot/internal/metrics"
)

// conceptMaxLen bounds the concept fragment embedded in Drive filenames.
const conceptMaxLen = 20

// dateLayouts are the accepted forms of the model-reported expense date.
var dateLayouts = []string{"2006-01-02", domain.TimestampLayout}

// Persister routes a normalized result to Drive and the spreadsheet. An
// upload failure costs the file link but never the row: the structured data
// outranks the attachment.
type Persister struct {
	sheet        domain.RowAppender
	store        domain.FileStore
	rootFolderID string
	autoCreate   bool
	logger       *slog.Logger
}

type PersisterConfig struct {
	Sheet        domain.RowAppender
	Store        domain.FileStore
	RootFolderID string
	// AutoCreate controls whether missing year/month subfolders are created
	// on demand. When false, uploads fall back to the parent folder.
	AutoCreate bool
	Logger     *slog.Logger
}

func NewPersister(cfg PersisterConfig) *Persister {
	return &Persister{
		sheet:        cfg.Sheet,
		store:        cfg.Store,
		rootFolderID: cfg.RootFolderID,
		autoCreate:   cfg.AutoCreate,
		logger:       cfg.Logger,
	}
}

// Persist uploads the media (when present) and appends exactly one row.
// The returned record reflects what was actually written; the error is
// non-nil only when the row append failed.
func (p *Persister) Persist(ctx context.Context, msg *domain.InboundMessage, result *domain.ExtractionResult, media *domain.ResolvedMedia) (*domain.PersistedRecord, error) {
	rec := &domain.PersistedRecord{
		Timestamp: msg.Timestamp,
		SenderID:  msg.SenderID,
		Result:    *result,
	}
	if rec.Result.Date == "" {
		rec.Result.Date = msg.Timestamp.Format(domain.TimestampLayout)
	}

	if media != nil {
		link, err := p.upload(ctx, msg, rec, media)
		if err != nil {
			// Keep going: a missing link is acceptable, a missing row is not.
			p.logger.Error("media upload failed, persisting row without link",
				"event_id", msg.EventID, "error", err)
		}
		rec.FileLink = link
	}

	if err := p.sheet.AppendRow(ctx, rec.Row()); err != nil {
		return nil, fmt.Errorf("append row: %w", err)
	}

	metrics.RowsAppended.Inc()
	p.logger.Info("transacción registrada",
		"event_id", msg.EventID, "concept", rec.Result.Concept, "folder", rec.Result.Folder)
	return rec, nil
}

func (p *Persister) upload(ctx context.Context, msg *domain.InboundMessage, rec *domain.PersistedRecord, media *domain.ResolvedMedia) (string, error) {
	recordDate := parseRecordDate(rec.Result.Date, msg.Timestamp)
	folderID := p.destinationFolder(ctx, recordDate)
	filename := buildFilename(rec.Result.Folder, rec.Result.Concept, msg.Timestamp, media.MimeType)

	link, err := p.store.Upload(ctx, folderID, filename, media.MimeType, media.Data)
	if err != nil {
		return "", err
	}
	metrics.UploadsTotal.Inc()
	return link, nil
}

// destinationFolder resolves the year/month subfolder under the root. Any
// lookup or create failure falls back to the deepest folder resolved so
// far, so an upload always has a destination.
func (p *Persister) destinationFolder(ctx context.Context, t time.Time) string {
	parent := p.rootFolderID
	for _, name := range []string{t.Format("2006"), t.Format("01")} {
		id, err := p.store.FindFolder(ctx, parent, name)
		if err != nil {
			p.logger.Warn("subfolder lookup failed, using parent", "name", name, "error", err)
			return parent
		}
		if id == "" {
			if !p.autoCreate {
				return parent
			}
			id, err = p.store.CreateFolder(ctx, parent, name)
			if err != nil {
				p.logger.Warn("subfolder create failed, using parent", "name", name, "error", err)
				return parent
			}
		}
		parent = id
	}
	return parent
}

// parseRecordDate interprets the model-reported date, falling back to the
// event timestamp when it is absent or unparsable.
func parseRecordDate(date string, fallback time.Time) time.Time {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, date); err == nil {
			return t
		}
	}
	return fallback
}

// buildFilename renders {folder}_{concept}_{timestamp}{ext} with the concept
// truncated and whitespace replaced, and the timestamp made path-safe.
func buildFilename(folder domain.Folder, concept string, ts time.Time, mimeType string) string {
	clean := strings.ReplaceAll(concept, " ", "_")
	// Truncate by runes so an accented concept never ends mid-character.
	if r := []rune(clean); len(r) > conceptMaxLen {
		clean = string(r[:conceptMaxLen])
	}

	stamp := ts.Format(domain.TimestampLayout)
	stamp = strings.ReplaceAll(stamp, " ", "_")
	stamp = strings.ReplaceAll(stamp, ":", "-")

	ext := ".jpg"
	if strings.Contains(mimeType, "pdf") {
		ext = ".pdf"
	}
	return fmt.Sprintf("%s_%s_%s%s", folder, clean, stamp, ext)
}
