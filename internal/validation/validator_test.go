package validation_test

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/listenupapp/clipdeck/internal/errors"
	"github.com/listenupapp/clipdeck/internal/validation"
)

type stretchRequest struct {
	ClipID   string `json:"clip_id" validate:"required"`
	Edge     string `json:"edge" validate:"required,edge"`
	Boundary int64  `json:"boundary_ms" validate:"gte=0"`
}

type importRequest struct {
	Policy string `json:"policy,omitempty" validate:"omitempty,import_policy"`
	Limit  int    `json:"limit" validate:"max=100"`
}

func TestValidator_ValidateSuccess(t *testing.T) {
	v := validation.New()

	assert.NoError(t, v.Validate(stretchRequest{ClipID: "clip-1", Edge: "end", Boundary: 1500}))
	assert.NoError(t, v.Validate(importRequest{}))
	assert.NoError(t, v.Validate(importRequest{Policy: "merge"}))
}

func TestValidator_ValidateErrors(t *testing.T) {
	v := validation.New()

	//nolint:govet // fieldalignment: not worth it in test tables
	tests := []struct {
		name      string
		req       any
		wantField string
		wantMsg   string
	}{
		{"missing clip id", stretchRequest{Edge: "start"}, "clip_id", "is required"},
		{"unknown edge", stretchRequest{ClipID: "c", Edge: "middle"}, "edge", "must be start or end"},
		{"negative boundary", stretchRequest{ClipID: "c", Edge: "end", Boundary: -1}, "boundary_ms", "must be greater than or equal to 0"},
		{"unknown policy", importRequest{Policy: "append"}, "policy", "must be replace or merge"},
		{"numeric max", importRequest{Limit: 101}, "limit", "must not exceed 100"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Validate(tt.req)
			require.Error(t, err)

			var domainErr *errors.Error
			require.True(t, errors.As(err, &domainErr))
			assert.Equal(t, http.StatusBadRequest, domainErr.HTTPStatus())
			assert.True(t, errors.Is(err, errors.ErrValidation))
			assert.Contains(t, domainErr.Message, tt.wantField)

			details, ok := domainErr.Details.(map[string]string)
			require.True(t, ok)
			assert.Equal(t, tt.wantMsg, details[tt.wantField])
		})
	}
}

func TestValidator_JSONFieldNames(t *testing.T) {
	v := validation.New()

	err := v.Validate(stretchRequest{Edge: "start"})
	require.Error(t, err)

	// JSON tag name, not the Go field name.
	assert.Contains(t, err.Error(), "clip_id")
	assert.NotContains(t, err.Error(), "ClipID")
}

func TestValidator_MessageListsFieldsInOrder(t *testing.T) {
	v := validation.New()

	err := v.Validate(stretchRequest{Edge: "middle", Boundary: -5})
	require.Error(t, err)
	assert.Equal(t, "boundary_ms must be greater than or equal to 0; clip_id is required; edge must be start or end", err.Error())
}

func TestValidator_NonStruct(t *testing.T) {
	v := validation.New()

	err := v.Validate("not a struct")
	require.Error(t, err)
	assert.Equal(t, errors.CodeInternal, errors.CodeOf(err))
}
