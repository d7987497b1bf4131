package types

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFactDuration(t *testing.T) {
	start := time.Date(2026, 8, 20, 9, 0, 0, 0, time.Local)
	end := start.Add(90 * time.Minute)

	closed := &Fact{StartTime: start, EndTime: &end}
	assert.Equal(t, 90*time.Minute, closed.Duration(end.Add(time.Hour)))
	assert.False(t, closed.Open())

	open := &Fact{StartTime: start}
	assert.True(t, open.Open())
	assert.Equal(t, 30*time.Minute, open.Duration(start.Add(30*time.Minute)))
	assert.Equal(t, time.Duration(0), open.Duration(start.Add(-time.Minute)))
}

func TestDayRange(t *testing.T) {
	// Day starts at 05:30 (330 minutes).
	tests := []struct {
		name      string
		now       time.Time
		wantStart time.Time
	}{
		{
			name:      "afternoon belongs to same day",
			now:       time.Date(2026, 8, 20, 15, 0, 0, 0, time.Local),
			wantStart: time.Date(2026, 8, 20, 5, 30, 0, 0, time.Local),
		},
		{
			name:      "early morning belongs to previous day",
			now:       time.Date(2026, 8, 20, 1, 0, 0, 0, time.Local),
			wantStart: time.Date(2026, 8, 19, 5, 30, 0, 0, time.Local),
		},
		{
			name:      "exactly at day start",
			now:       time.Date(2026, 8, 20, 5, 30, 0, 0, time.Local),
			wantStart: time.Date(2026, 8, 20, 5, 30, 0, 0, time.Local),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := DayRange(tt.now, 330)
			assert.Equal(t, tt.wantStart, r.Start)
			assert.Equal(t, tt.wantStart.AddDate(0, 0, 1), r.End)
		})
	}
}

func TestTagNames(t *testing.T) {
	f := &Fact{Tags: []Tag{{Name: "work"}, {Name: "deep"}}}
	assert.Equal(t, []string{"work", "deep"}, f.TagNames())
	assert.Nil(t, (&Fact{}).TagNames())
}
