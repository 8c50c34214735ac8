package errors

import (
	"fmt"
	"io"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIs_MatchesByCode(t *testing.T) {
	err := InvalidIntervalf("start %d >= end %d", 5, 5)
	assert.True(t, Is(err, ErrInvalidInterval))
	assert.False(t, Is(err, ErrValidation))

	wrapped := fmt.Errorf("add clip: %w", err)
	assert.True(t, Is(wrapped, ErrInvalidInterval))
}

func TestWrap_KeepsCause(t *testing.T) {
	err := Wrap(io.ErrUnexpectedEOF, CodeInternal, "read snapshot")
	assert.True(t, Is(err, io.ErrUnexpectedEOF))
	assert.Equal(t, "read snapshot: unexpected EOF", err.Error())
}

func TestCodeOf(t *testing.T) {
	assert.Equal(t, CodeTimelineNotFound, CodeOf(fmt.Errorf("x: %w", TimelineNotFound("tl"))))
	assert.Equal(t, CodeInternal, CodeOf(io.EOF))
}

func TestCode_HTTPStatus(t *testing.T) {
	tests := map[Code]int{
		CodeNotFound:          http.StatusNotFound,
		CodeTimelineNotFound:  http.StatusNotFound,
		CodeAlreadyExists:     http.StatusConflict,
		CodeValidation:        http.StatusBadRequest,
		CodeInvalidInterval:   http.StatusBadRequest,
		CodeIllegalMergeState: http.StatusInternalServerError,
		CodeInternal:          http.StatusInternalServerError,
	}
	for code, want := range tests {
		assert.Equal(t, want, code.HTTPStatus(), code)
	}
	assert.True(t, CodeIllegalMergeState.Invariant())
	assert.False(t, CodeValidation.Invariant())
}

func TestWithDetails_Copies(t *testing.T) {
	d := ErrValidation.WithDetails(map[string]string{"id": "required"})
	assert.Nil(t, ErrValidation.Details)
	assert.NotNil(t, d.Details)
	assert.True(t, Is(d, ErrValidation))
}
