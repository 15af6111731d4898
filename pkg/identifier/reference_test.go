package identifier

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFormatReference(t *testing.T) {
	tests := []struct {
		name     string
		prefix   string
		period   time.Time
		sequence int
		want     string
	}{
		{
			name:     "zero-pads the sequence",
			prefix:   "DI",
			period:   time.Date(2024, time.March, 15, 10, 0, 0, 0, time.UTC),
			sequence: 7,
			want:     "DI-2024-03-007",
		},
		{
			name:     "sequence wider than the padding",
			prefix:   "DI",
			period:   time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC),
			sequence: 1234,
			want:     "DI-2024-03-1234",
		},
		{
			name:     "custom prefix",
			prefix:   "INTEL",
			period:   time.Date(2023, time.December, 31, 23, 59, 0, 0, time.UTC),
			sequence: 1,
			want:     "INTEL-2023-12-001",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatReference(tt.prefix, tt.period, tt.sequence))
		})
	}
}

func TestNextSequence(t *testing.T) {
	assert.Equal(t, 1, NextSequence(0))
	assert.Equal(t, 8, NextSequence(7))
	assert.Equal(t, 1, NextSequence(-3))
}

func TestPeriodBounds(t *testing.T) {
	start, end := PeriodBounds(time.Date(2024, time.March, 15, 10, 30, 0, 0, time.UTC))
	assert.Equal(t, time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC), start)
	assert.Equal(t, time.Date(2024, time.April, 1, 0, 0, 0, 0, time.UTC), end)

	t.Run("year rollover", func(t *testing.T) {
		start, end := PeriodBounds(time.Date(2024, time.December, 31, 23, 59, 0, 0, time.UTC))
		assert.Equal(t, time.Date(2024, time.December, 1, 0, 0, 0, 0, time.UTC), start)
		assert.Equal(t, time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC), end)
	})
}
