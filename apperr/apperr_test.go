package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatusMapping(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, http.StatusOK},
		{"auth required", ErrAuthRequired, http.StatusUnauthorized},
		{"forbidden", ErrForbidden, http.StatusForbidden},
		{"not found", ErrNotFound, http.StatusNotFound},
		{"validation", Validation("bad input"), http.StatusBadRequest},
		{"transient", Transient("write", errors.New("down")), http.StatusServiceUnavailable},
		{"unknown", errors.New("mystery"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Status(tc.err))
		})
	}
}

func TestStatusUnwrapsWrappedErrors(t *testing.T) {
	wrapped := fmt.Errorf("loading post: %w", ErrNotFound)
	assert.Equal(t, http.StatusNotFound, Status(wrapped))

	wrapped = fmt.Errorf("saving: %w", Transient("write", errors.New("down")))
	assert.Equal(t, http.StatusServiceUnavailable, Status(wrapped))
	assert.True(t, IsTransient(wrapped))
}

func TestTransientNilPassthrough(t *testing.T) {
	assert.NoError(t, Transient("op", nil))
}
