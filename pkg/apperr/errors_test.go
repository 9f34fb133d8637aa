package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"gotest.tools/assert"
)

func TestFromUnwrapsWrappedAppError(t *testing.T) {
	cause := errors.New("boom")
	wrapped := fmt.Errorf("processing job: %w", ErrTranscriptionFailed(2, cause))

	got := From(wrapped)
	assert.Equal(t, CodeTranscriptionFailed, got.Code)
	assert.Equal(t, http.StatusBadGateway, got.HTTPCode)
	assert.Equal(t, "2", got.Details["chunk"])
	assert.Equal(t, "boom", got.Info())
	assert.Assert(t, errors.Is(wrapped, cause))
}

func TestFromUnknownIsInternal(t *testing.T) {
	got := From(errors.New("disk on fire"))
	assert.Equal(t, CodeInternal, got.Code)
	assert.Equal(t, http.StatusInternalServerError, got.HTTPCode)
}

func TestWithDetailDoesNotShareMap(t *testing.T) {
	base := ErrInvalidArgument("bad")
	a := base.WithDetail("field", "language")
	b := a.WithDetail("field", "mode")
	assert.Equal(t, "language", a.Details["field"])
	assert.Equal(t, "mode", b.Details["field"])
	assert.Equal(t, "[INVALID_ARGUMENT] bad", base.Error())
}
