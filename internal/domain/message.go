package domain

import "time"

// Kind classifies an inbound WhatsApp message. It is a closed set: the
// dispatcher matches exhaustively and anything outside it is rejected as
// unsupported before the pipeline runs.
type Kind string

const (
	KindText     Kind = "text"
	KindImage    Kind = "image"
	KindDocument Kind = "document"
)

// InboundMessage is one user message extracted from a webhook delivery.
// It lives for exactly one pipeline invocation.
type InboundMessage struct {
	EventID   string // per-delivery trace id, assigned at ingress
	Kind      Kind
	SenderID  string
	Body      string // text body for KindText
	MediaID   string // provider media id for image/document
	Caption   string // user caption for image/document
	MimeHint  string // mime type reported in the webhook payload
	Timestamp time.Time
}

// Text returns the free-form text context handed to extraction: the body for
// text messages, the caption otherwise.
func (m *InboundMessage) Text() string {
	if m.Kind == KindText {
		return m.Body
	}
	return m.Caption
}

// ResolvedMedia holds downloaded media bytes. It is consumed by the
// extraction and upload steps and discarded with the event.
type ResolvedMedia struct {
	Data     []byte
	MimeType string
}
