package domain

import "context"

// Notifier sends a plain-text message back to a user.
type Notifier interface {
	Notify(ctx context.Context, to, message string) error
}

// MediaResolver turns a provider media id into downloaded bytes.
type MediaResolver interface {
	Resolve(ctx context.Context, mediaID string) (*ResolvedMedia, error)
}

// Extractor runs the AI extraction call and returns its raw text payload.
// Parsing is the normalizer's job so transport failures and format failures
// stay distinguishable.
type Extractor interface {
	Extract(ctx context.Context, text string, media *ResolvedMedia) (string, error)
}

// AllowList answers whether a sender may use the pipeline. Implementations
// fetch fresh state per call; the pipeline never caches the answer.
type AllowList interface {
	Allowed(ctx context.Context, senderID string) (bool, error)
}

// RowAppender appends one row to the spreadsheet backend.
type RowAppender interface {
	AppendRow(ctx context.Context, row []any) error
}

// FileStore is the Drive-shaped storage collaborator used for receipt
// uploads and dated-subfolder routing.
type FileStore interface {
	// FindFolder looks up a subfolder by name under parentID. It returns ""
	// without error when no such folder exists.
	FindFolder(ctx context.Context, parentID, name string) (string, error)
	// CreateFolder creates a subfolder under parentID and returns its id.
	CreateFolder(ctx context.Context, parentID, name string) (string, error)
	// Upload stores data under folderID with public viewer sharing and
	// returns a browser link to the file.
	Upload(ctx context.Context, folderID, filename, mimeType string, data []byte) (string, error)
}
