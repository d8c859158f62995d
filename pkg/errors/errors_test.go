package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFromErrorKeepsTypedErrors(t *testing.T) {
	wrapped := fmt.Errorf("archive: %w", Clone(ErrNothingSelected, ""))

	appErr := FromError(wrapped)
	assert.Equal(t, "NOTHING_SELECTED", appErr.Code)
	assert.Equal(t, http.StatusUnprocessableEntity, appErr.Status)
	assert.Equal(t, "Tidak ada siswa yang dipilih", appErr.Message)
}

func TestFromErrorFallsBackToInternal(t *testing.T) {
	appErr := FromError(stdErrors.New("boom"))
	assert.Equal(t, ErrInternal.Code, appErr.Code)
	assert.Equal(t, http.StatusInternalServerError, appErr.Status)
	assert.EqualError(t, appErr, "internal server error: boom")
}

func TestCloneDoesNotMutateOriginal(t *testing.T) {
	clone := Clone(ErrBulkActionFailed, "Gagal mengarsipkan siswa")
	assert.Equal(t, "Gagal mengarsipkan siswa", clone.Message)
	assert.Equal(t, "bulk action failed", ErrBulkActionFailed.Message)
	assert.True(t, stdErrors.Is(Wrap(clone, clone.Code, clone.Status, clone.Message), clone))
}
