package scheduler

import (
	"testing"
	"time"

	"habittracker/internal/models"

	"github.com/stretchr/testify/assert"
)

func TestEveryNDaysAt_Next(t *testing.T) {
	anchor := time.Date(2024, 3, 1, 6, 0, 0, 0, time.UTC)
	seven := models.TimeOfDay{Hour: 7}

	tests := []struct {
		name   string
		anchor time.Time
		period time.Duration
		now    time.Time
		want   time.Time
	}{
		{
			name:   "first fire same day",
			anchor: anchor,
			period: 24 * time.Hour,
			now:    anchor,
			want:   time.Date(2024, 3, 1, 7, 0, 0, 0, time.UTC),
		},
		{
			name:   "first fire next day when time passed",
			anchor: time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC),
			period: 24 * time.Hour,
			now:    time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC),
			want:   time.Date(2024, 3, 2, 7, 0, 0, 0, time.UTC),
		},
		{
			name:   "daily after fire",
			anchor: anchor,
			period: 24 * time.Hour,
			now:    time.Date(2024, 3, 1, 7, 0, 0, 0, time.UTC),
			want:   time.Date(2024, 3, 2, 7, 0, 0, 0, time.UTC),
		},
		{
			name:   "every three days",
			anchor: anchor,
			period: 3 * 24 * time.Hour,
			now:    time.Date(2024, 3, 2, 12, 0, 0, 0, time.UTC),
			want:   time.Date(2024, 3, 4, 7, 0, 0, 0, time.UTC),
		},
		{
			name:   "every three days on fire day before time",
			anchor: anchor,
			period: 3 * 24 * time.Hour,
			now:    time.Date(2024, 3, 7, 6, 59, 0, 0, time.UTC),
			want:   time.Date(2024, 3, 7, 7, 0, 0, 0, time.UTC),
		},
		{
			name:   "period below one day is raised",
			anchor: anchor,
			period: time.Hour,
			now:    time.Date(2024, 3, 1, 7, 30, 0, 0, time.UTC),
			want:   time.Date(2024, 3, 2, 7, 0, 0, 0, time.UTC),
		},
		{
			name:   "non whole days",
			anchor: anchor,
			period: 36 * time.Hour,
			now:    time.Date(2024, 3, 1, 7, 0, 0, 0, time.UTC),
			want:   time.Date(2024, 3, 2, 19, 0, 0, 0, time.UTC),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := EveryNDaysAt(tt.anchor, seven, tt.period)
			assert.Equal(t, tt.want, s.Next(tt.now))
		})
	}
}

func TestEveryNDaysAt_KeepsWallClockAcrossDST(t *testing.T) {
	loc, err := time.LoadLocation("Europe/Berlin")
	if err != nil {
		t.Skip("tzdata not available")
	}
	// Переход на летнее время 31.03.2024
	anchor := time.Date(2024, 3, 30, 6, 0, 0, 0, loc)
	s := EveryNDaysAt(anchor, models.TimeOfDay{Hour: 7}, 24*time.Hour)

	next := s.Next(time.Date(2024, 3, 30, 8, 0, 0, 0, loc))
	assert.Equal(t, 31, next.Day())
	assert.Equal(t, 7, next.Hour())
}

func TestPeriodicSchedule_Spec(t *testing.T) {
	at := models.TimeOfDay{Hour: 7, Minute: 30}
	now := time.Now()

	assert.Equal(t, "daily at 07:30:00", EveryNDaysAt(now, at, 24*time.Hour).Spec())
	assert.Equal(t, "every 2 days at 07:30:00", EveryNDaysAt(now, at, 48*time.Hour).Spec())
	assert.Equal(t, "every 36h0m0s from 07:30:00", EveryNDaysAt(now, at, 36*time.Hour).Spec())
}
