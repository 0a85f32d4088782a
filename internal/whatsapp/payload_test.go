package whatsapp

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gastobot/internal/domain"
)

func wrapMessage(msg string) []byte {
	return []byte(`{"object":"whatsapp_business_account","entry":[{"id":"1","changes":[{"field":"messages","value":{"messaging_product":"whatsapp","messages":[` + msg + `]}}]}]}`)
}

func TestParseInbound_Text(t *testing.T) {
	now := time.Date(2024, 1, 2, 10, 30, 0, 0, time.UTC)
	body := wrapMessage(`{"from":"34600000001","id":"wamid.1","type":"text","text":{"body":"Paid 50 USD rent"}}`)

	msg, ok, err := ParseInbound(body, now)
	require.NoError(t, err)
	require.True(t, ok)

	assert.Equal(t, domain.KindText, msg.Kind)
	assert.Equal(t, "34600000001", msg.SenderID)
	assert.Equal(t, "Paid 50 USD rent", msg.Body)
	assert.Equal(t, now, msg.Timestamp)
	assert.NotEmpty(t, msg.EventID)
}

func TestParseInbound_Image(t *testing.T) {
	body := wrapMessage(`{"from":"34600000001","id":"wamid.2","type":"image","image":{"id":"media-9","mime_type":"image/jpeg","caption":"factura luz"}}`)

	msg, ok, err := ParseInbound(body, time.Now())
	require.NoError(t, err)
	require.True(t, ok)

	assert.Equal(t, domain.KindImage, msg.Kind)
	assert.Equal(t, "media-9", msg.MediaID)
	assert.Equal(t, "image/jpeg", msg.MimeHint)
	assert.Equal(t, "factura luz", msg.Caption)
	assert.Equal(t, "factura luz", msg.Text())
}

func TestParseInbound_Document(t *testing.T) {
	body := wrapMessage(`{"from":"34600000001","id":"wamid.3","type":"document","document":{"id":"media-7","mime_type":"application/pdf","filename":"recibo.pdf"}}`)

	msg, ok, err := ParseInbound(body, time.Now())
	require.NoError(t, err)
	require.True(t, ok)

	assert.Equal(t, domain.KindDocument, msg.Kind)
	assert.Equal(t, "media-7", msg.MediaID)
	assert.Equal(t, "application/pdf", msg.MimeHint)
	assert.Empty(t, msg.Caption)
}

func TestParseInbound_UnsupportedKindPassesThrough(t *testing.T) {
	// Classification is the dispatcher's job; parsing only lifts the type.
	body := wrapMessage(`{"from":"34600000001","id":"wamid.4","type":"audio"}`)

	msg, ok, err := ParseInbound(body, time.Now())
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, domain.Kind("audio"), msg.Kind)
}

func TestParseInbound_StatusDeliveryHasNoMessage(t *testing.T) {
	body := []byte(`{"object":"whatsapp_business_account","entry":[{"id":"1","changes":[{"field":"messages","value":{"messaging_product":"whatsapp"}}]}]}`)

	_, ok, err := ParseInbound(body, time.Now())
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestParseInbound_InvalidJSON(t *testing.T) {
	_, _, err := ParseInbound([]byte("{nope"), time.Now())
	assert.Error(t, err)
}
