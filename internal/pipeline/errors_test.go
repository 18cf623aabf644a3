package pipeline

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"unsupported format is permanent", ErrUnsupportedFormat, false},
		{"corrupt input is permanent", ErrCorruptInput, false},
		{"invalid input is permanent", ErrInvalidInput, false},
		{"rate limited retries", ErrRateLimited, true},
		{"provider unavailable retries", ErrProviderUnavailable, true},
		{"unknown errors are treated as transient", errors.New("connection reset"), true},
		{"wrapped permanent stays permanent", fmt.Errorf("parse: %w", ErrCorruptInput), false},
		{"wrapped transient stays transient", fmt.Errorf("embed: %w", ErrRateLimited), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Retryable(tt.err))
		})
	}
}
