package timeparsing

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var ref = time.Date(2026, 3, 10, 14, 30, 0, 0, time.Local)

func TestParseCompactOffset(t *testing.T) {
	tests := []struct {
		in   string
		want time.Time
	}{
		{"+25m", ref.Add(25 * time.Minute)},
		{"-25m", ref.Add(-25 * time.Minute)},
		{"25m", ref.Add(25 * time.Minute)},
		{"+2h", ref.Add(2 * time.Hour)},
		{"-1d", ref.AddDate(0, 0, -1)},
		{"+1w", ref.AddDate(0, 0, 7)},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseCompactOffset(tt.in, ref)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseCompactOffsetRejectsNonOffsets(t *testing.T) {
	for _, in := range []string{"", "h", "+h", "1x", "1.5h", "one hour"} {
		_, err := ParseCompactOffset(in, ref)
		assert.Error(t, err, "input %q", in)
		assert.False(t, IsCompactOffset(in), "input %q", in)
	}
}

func TestParseEmptyMeansNow(t *testing.T) {
	for _, in := range []string{"", "  ", "now", "NOW"} {
		got, err := Parse(in, ref)
		require.NoError(t, err)
		assert.Equal(t, ref, got, "input %q", in)
	}
}

func TestParseAbsolute(t *testing.T) {
	tests := []struct {
		in   string
		want time.Time
	}{
		{"09:15", time.Date(2026, 3, 10, 9, 15, 0, 0, time.Local)},
		{"09:15:30", time.Date(2026, 3, 10, 9, 15, 30, 0, time.Local)},
		{"2026-03-09 22:00", time.Date(2026, 3, 9, 22, 0, 0, 0, time.Local)},
		{"2026-03-09", time.Date(2026, 3, 9, 0, 0, 0, 0, time.Local)},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := Parse(tt.in, ref)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseNaturalLanguage(t *testing.T) {
	got, err := Parse("yesterday", ref)
	require.NoError(t, err)
	assert.Equal(t, 9, got.Day())

	got, err = Parse("tomorrow at 9am", ref)
	require.NoError(t, err)
	assert.Equal(t, 11, got.Day())
	assert.Equal(t, 9, got.Hour())
}

func TestParseUnrecognized(t *testing.T) {
	_, err := Parse("gibberish expression zzz", ref)
	assert.Error(t, err)
}
