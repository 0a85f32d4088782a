package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStageError(t *testing.T) {
	cause := errors.New("connection reset")
	se := Abort(FailMedia, "resolve_media", cause)

	assert.Equal(t, "resolve_media: media_unavailable: connection reset", se.Error())
	assert.Equal(t, cause, errors.Unwrap(se))

	se = Abort(FailUnauthorized, "authorize", nil)
	assert.Equal(t, "authorize: unauthorized", se.Error())
}

func TestKindOf(t *testing.T) {
	se := Abort(FailPersistence, "persist", errors.New("sheets API 500"))
	assert.Equal(t, FailPersistence, KindOf(se))

	// Survives wrapping.
	wrapped := fmt.Errorf("handling event: %w", se)
	assert.Equal(t, FailPersistence, KindOf(wrapped))

	assert.Equal(t, FailureKind(""), KindOf(errors.New("plain")))
	assert.Equal(t, FailureKind(""), KindOf(nil))
}
