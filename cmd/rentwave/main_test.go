package main

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/rentwave/rentwave/internal/backend"
	apperr "github.com/rentwave/rentwave/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadSecret_Piped(t *testing.T) {
	got, err := readSecret(strings.NewReader("Password123!\r\nignored\n"), "")
	require.NoError(t, err)
	assert.Equal(t, "Password123!", got)
}

func TestReadSecret_NoInput(t *testing.T) {
	_, err := readSecret(strings.NewReader(""), "")
	assert.EqualError(t, err, "no input")
}

func TestHint(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"session gone", fmt.Errorf("resuming session: %w", apperr.ErrRefreshAccessToken), "rentwave login"},
		{"not signed in", apperr.ErrNotAuthenticated, "rentwave login"},
		{"backend down", fmt.Errorf("login: %w", &backend.TransientError{Err: errors.New("connection refused")}), "try again"},
		{"other", errors.New("boom"), ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := hint(tt.err)
			if tt.want == "" {
				assert.Empty(t, got)
				return
			}

			assert.Contains(t, got, tt.want)
		})
	}
}
