package pipeline

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"gastobot/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func textEvent(body string) *domain.InboundMessage {
	return &domain.InboundMessage{
		EventID:   uuid.NewString(),
		Kind:      domain.KindText,
		SenderID:  "34600000001",
		Body:      body,
		Timestamp: time.Date(2024, 1, 2, 10, 30, 0, 0, time.UTC),
	}
}

func imageEvent() *domain.InboundMessage {
	return &domain.InboundMessage{
		EventID:   uuid.NewString(),
		Kind:      domain.KindImage,
		SenderID:  "34600000001",
		MediaID:   "media-9",
		Caption:   "factura luz",
		MimeHint:  "image/jpeg",
		Timestamp: time.Date(2024, 1, 2, 10, 30, 0, 0, time.UTC),
	}
}

type fakeAllowList struct {
	allowed bool
	err     error
}

func (f *fakeAllowList) Allowed(context.Context, string) (bool, error) {
	return f.allowed, f.err
}

type fakeResolver struct {
	media *domain.ResolvedMedia
	err   error
	calls int
}

func (f *fakeResolver) Resolve(context.Context, string) (*domain.ResolvedMedia, error) {
	f.calls++
	return f.media, f.err
}

type fakeExtractor struct {
	raw   string
	err   error
	calls int
}

func (f *fakeExtractor) Extract(context.Context, string, *domain.ResolvedMedia) (string, error) {
	f.calls++
	return f.raw, f.err
}

type fakeSheet struct {
	rows [][]any
	err  error
}

func (f *fakeSheet) AppendRow(_ context.Context, row []any) error {
	if f.err != nil {
		return f.err
	}
	f.rows = append(f.rows, row)
	return nil
}

type uploadCall struct {
	folderID string
	filename string
	mimeType string
}

type fakeStore struct {
	folders   map[string]string // "parent/name" -> id
	findErr   error
	createErr error
	uploadErr error
	link      string
	created   []string
	uploads   []uploadCall
}

func (f *fakeStore) FindFolder(_ context.Context, parentID, name string) (string, error) {
	if f.findErr != nil {
		return "", f.findErr
	}
	return f.folders[parentID+"/"+name], nil
}

func (f *fakeStore) CreateFolder(_ context.Context, parentID, name string) (string, error) {
	if f.createErr != nil {
		return "", f.createErr
	}
	id := "id-" + name
	if f.folders == nil {
		f.folders = make(map[string]string)
	}
	f.folders[parentID+"/"+name] = id
	f.created = append(f.created, parentID+"/"+name)
	return id, nil
}

func (f *fakeStore) Upload(_ context.Context, folderID, filename, mimeType string, _ []byte) (string, error) {
	if f.uploadErr != nil {
		return "", f.uploadErr
	}
	f.uploads = append(f.uploads, uploadCall{folderID: folderID, filename: filename, mimeType: mimeType})
	if f.link != "" {
		return f.link, nil
	}
	return fmt.Sprintf("https://drive.example/%s/%s", folderID, filename), nil
}

type fakeNotifier struct {
	sent []string // "to|text"
	err  error
}

func (f *fakeNotifier) Notify(_ context.Context, to, text string) error {
	f.sent = append(f.sent, to+"|"+text)
	return f.err
}
