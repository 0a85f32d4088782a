package whatsapp

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"gastobot/internal/domain"
)

// Webhook payload types for the WhatsApp Cloud API. Only the fields the
// pipeline reads are declared.

type Payload struct {
	Object string  `json:"object"`
	Entry  []Entry `json:"entry"`
}

type Entry struct {
	ID      string   `json:"id"`
	Changes []Change `json:"changes"`
}

type Change struct {
	Value Value  `json:"value"`
	Field string `json:"field"`
}

type Value struct {
	MessagingProduct string    `json:"messaging_product"`
	Messages         []Message `json:"messages"`
}

type Message struct {
	From     string `json:"from"`
	ID       string `json:"id"`
	Type     string `json:"type"`
	Text     *Text  `json:"text,omitempty"`
	Image    *Media `json:"image,omitempty"`
	Document *Media `json:"document,omitempty"`
}

type Text struct {
	Body string `json:"body"`
}

type Media struct {
	ID       string `json:"id"`
	MimeType string `json:"mime_type"`
	Caption  string `json:"caption,omitempty"`
	Filename string `json:"filename,omitempty"`
}

// ParseInbound decodes a webhook body and lifts the first message into the
// domain form. The boolean is false when the delivery carries no message at
// all (status updates, read receipts); an error means the body could not be
// parsed as a notification.
func ParseInbound(body []byte, now time.Time) (*domain.InboundMessage, bool, error) {
	var payload Payload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, false, fmt.Errorf("decode webhook payload: %w", err)
	}

	for _, entry := range payload.Entry {
		for _, change := range entry.Changes {
			for _, msg := range change.Value.Messages {
				return liftMessage(msg, now), true, nil
			}
		}
	}
	return nil, false, nil
}

func liftMessage(msg Message, now time.Time) *domain.InboundMessage {
	out := &domain.InboundMessage{
		EventID:   uuid.NewString(),
		Kind:      domain.Kind(msg.Type),
		SenderID:  msg.From,
		Timestamp: now,
	}

	switch msg.Type {
	case "text":
		if msg.Text != nil {
			out.Body = msg.Text.Body
		}
	case "image":
		if msg.Image != nil {
			out.MediaID = msg.Image.ID
			out.Caption = msg.Image.Caption
			out.MimeHint = msg.Image.MimeType
		}
	case "document":
		if msg.Document != nil {
			out.MediaID = msg.Document.ID
			out.Caption = msg.Document.Caption
			out.MimeHint = msg.Document.MimeType
		}
	}
	return out
}
