package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTimeFlag(t *testing.T) {
	tests := []struct {
		in   string
		want time.Time
	}{
		{"2025-07-10", time.Date(2025, 7, 10, 0, 0, 0, 0, time.UTC)},
		{"2025-07-10 12:30", time.Date(2025, 7, 10, 12, 30, 0, 0, time.UTC)},
		{"2025-07-10 12:30:45", time.Date(2025, 7, 10, 12, 30, 45, 0, time.UTC)},
		{"2025-07-10T12:30:45Z", time.Date(2025, 7, 10, 12, 30, 45, 0, time.UTC)},
	}
	for _, tt := range tests {
		got, err := parseTimeFlag(tt.in)
		require.NoError(t, err, tt.in)
		assert.True(t, got.Equal(tt.want), tt.in)
	}

	_, err := parseTimeFlag("last tuesday")
	assert.Error(t, err)
}
