package common

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsUserError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"not_found", ErrNotFound, true},
		{"illegal_name", ErrIllegalName, true},
		{"type_capability", ErrTypeCapability, true},
		{"system_protected", ErrSystemProtected, true},
		{"not_empty", ErrNotEmpty, true},
		{"wrapped_not_found", fmt.Errorf("resolving /a/b: %w", ErrNotFound), true},
		{"validation", &ValidationError{Vetoes: []string{"no"}}, true},
		{"root_missing", ErrRootMissing, false},
		{"conflict", ErrConflict, false},
		{"plain", errors.New("disk on fire"), false},
		{"nil", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, IsUserError(tt.err))
		})
	}
}

func TestValidationError(t *testing.T) {
	t.Parallel()

	err := &ValidationError{Vetoes: []string{"billing holds a reference", "audit in progress"}}
	assert.Contains(t, err.Error(), "billing holds a reference")
	assert.Contains(t, err.Error(), "audit in progress")

	var ve *ValidationError
	wrapped := fmt.Errorf("moving /a: %w", err)
	assert.True(t, errors.As(wrapped, &ve))
	assert.Len(t, ve.Vetoes, 2)
}
