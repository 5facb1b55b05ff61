package scheduler

import (
	"fmt"
	"time"

	"habittracker/internal/models"
)

const day = 24 * time.Hour

// PeriodicSchedule fires at a wall-clock time every Period, counting from the first
// occurrence of At strictly after Anchor. Whole-day periods follow the calendar, so the
// wall-clock time survives DST shifts; other periods are added as absolute durations.
type PeriodicSchedule struct {
	Anchor time.Time
	At     models.TimeOfDay
	Period time.Duration
}

// EveryNDaysAt builds a schedule anchored at anchor. Periods under one day are raised to one day.
func EveryNDaysAt(anchor time.Time, at models.TimeOfDay, period time.Duration) *PeriodicSchedule {
	if period < day {
		period = day
	}
	return &PeriodicSchedule{Anchor: anchor, At: at, Period: period}
}

func (s *PeriodicSchedule) first(loc *time.Location) time.Time {
	a := s.Anchor.In(loc)
	first := time.Date(a.Year(), a.Month(), a.Day(), s.At.Hour, s.At.Minute, s.At.Second, 0, loc)
	if !first.After(a) {
		first = first.AddDate(0, 0, 1)
	}
	return first
}

// Next implements cron.Schedule.
func (s *PeriodicSchedule) Next(t time.Time) time.Time {
	first := s.first(t.Location())
	if t.Before(first) {
		return first
	}

	if s.Period%day == 0 {
		n := int(s.Period / day)
		k := daysBetween(first, t) / n
		next := first.AddDate(0, 0, k*n)
		if !next.After(t) {
			next = first.AddDate(0, 0, (k+1)*n)
		}
		return next
	}

	k := t.Sub(first) / s.Period
	next := first.Add(k * s.Period)
	if !next.After(t) {
		next = next.Add(s.Period)
	}
	return next
}

// Spec renders the schedule for logs.
func (s *PeriodicSchedule) Spec() string {
	if s.Period == day {
		return fmt.Sprintf("daily at %s", s.At)
	}
	if s.Period%day == 0 {
		return fmt.Sprintf("every %d days at %s", s.Period/day, s.At)
	}
	return fmt.Sprintf("every %s from %s", s.Period, s.At)
}

func daysBetween(from, to time.Time) int {
	f := time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, time.UTC)
	t := time.Date(to.Year(), to.Month(), to.Day(), 0, 0, 0, 0, time.UTC)
	return int(t.Sub(f) / day)
}
