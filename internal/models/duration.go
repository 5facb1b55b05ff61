package models

import (
	"bytes"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Periodicity is the interval between repetitions of a habit.
// JSON form follows the Django duration format: "D HH:MM:SS" (days omitted when zero).
// A bare JSON number is read as a count of days.
type Periodicity time.Duration

const day = 24 * time.Hour

// Days returns the periodicity rounded down to whole days.
func (p Periodicity) Days() int {
	return int(time.Duration(p) / day)
}

func (p Periodicity) Duration() time.Duration {
	return time.Duration(p)
}

func (p Periodicity) String() string {
	d := time.Duration(p)
	sign := ""
	if d < 0 {
		sign = "-"
		d = -d
	}
	days := int64(d / day)
	d -= time.Duration(days) * day
	h := int64(d / time.Hour)
	d -= time.Duration(h) * time.Hour
	m := int64(d / time.Minute)
	d -= time.Duration(m) * time.Minute
	s := int64(d / time.Second)
	if days > 0 {
		return fmt.Sprintf("%s%d %02d:%02d:%02d", sign, days, h, m, s)
	}
	return fmt.Sprintf("%s%02d:%02d:%02d", sign, h, m, s)
}

// ErrDurationOutOfRange is returned for intervals that do not fit time.Duration.
var ErrDurationOutOfRange = errors.New("duration is out of range")

// maxDays is the largest whole-day count a Periodicity can hold.
const maxDays = int64(math.MaxInt64 / int64(day))

// ParsePeriodicity parses "D HH:MM:SS", "D days, HH:MM:SS", "HH:MM:SS" or "D".
func ParsePeriodicity(raw string) (Periodicity, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, fmt.Errorf("empty duration")
	}

	neg := false
	if strings.HasPrefix(s, "-") {
		neg = true
		s = s[1:]
	}

	var days int64
	clock := s
	if i := strings.IndexByte(s, ' '); i >= 0 {
		n, err := parseCount(s[:i], raw)
		if err != nil {
			return 0, err
		}
		days = n
		clock = strings.TrimSpace(s[i+1:])
		clock = strings.TrimPrefix(clock, "days,")
		clock = strings.TrimPrefix(clock, "day,")
		clock = strings.TrimSpace(clock)
	} else if !strings.Contains(s, ":") {
		n, err := parseCount(s, raw)
		if err != nil {
			return 0, err
		}
		days = n
		clock = ""
	}

	if days > maxDays {
		return 0, ErrDurationOutOfRange
	}
	total := time.Duration(days) * day

	if clock != "" {
		parts := strings.Split(clock, ":")
		if len(parts) != 3 {
			return 0, fmt.Errorf("invalid duration %q", raw)
		}
		var vals [3]int64
		for i, part := range parts {
			n, err := parseCount(part, raw)
			if err != nil {
				return 0, err
			}
			vals[i] = n
		}
		if vals[1] > 59 || vals[2] > 59 {
			return 0, fmt.Errorf("invalid duration %q", raw)
		}
		if vals[0] > int64(math.MaxInt64/int64(time.Hour)) {
			return 0, ErrDurationOutOfRange
		}

		var ok bool
		for _, part := range []time.Duration{
			time.Duration(vals[0]) * time.Hour,
			time.Duration(vals[1]) * time.Minute,
			time.Duration(vals[2]) * time.Second,
		} {
			if total, ok = addDuration(total, part); !ok {
				return 0, ErrDurationOutOfRange
			}
		}
	}

	if neg {
		total = -total
	}
	return Periodicity(total), nil
}

// parseCount parses a non-negative decimal component of a duration.
func parseCount(part, raw string) (int64, error) {
	n, err := strconv.ParseInt(part, 10, 64)
	if errors.Is(err, strconv.ErrRange) {
		return 0, ErrDurationOutOfRange
	}
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid duration %q", raw)
	}
	return n, nil
}

// addDuration adds two non-negative durations, reporting overflow.
func addDuration(a, b time.Duration) (time.Duration, bool) {
	if a > time.Duration(math.MaxInt64)-b {
		return 0, false
	}
	return a + b, true
}

func (p Periodicity) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.String())
}

func (p *Periodicity) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && (trimmed[0] == '-' || (trimmed[0] >= '0' && trimmed[0] <= '9')) {
		var days int64
		if err := json.Unmarshal(trimmed, &days); err != nil {
			if bytes.ContainsAny(trimmed, ".eE") {
				return fmt.Errorf("duration must be a whole number of days")
			}
			return ErrDurationOutOfRange
		}
		if days > maxDays || days < -maxDays {
			return ErrDurationOutOfRange
		}
		*p = Periodicity(time.Duration(days) * day)
		return nil
	}

	var s string
	if err := json.Unmarshal(trimmed, &s); err != nil {
		return fmt.Errorf("duration must be a string or a number of days")
	}
	parsed, err := ParsePeriodicity(s)
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// Value stores the periodicity as whole seconds.
func (p Periodicity) Value() (driver.Value, error) {
	return int64(time.Duration(p) / time.Second), nil
}

func (p *Periodicity) Scan(src any) error {
	switch v := src.(type) {
	case int64:
		*p = Periodicity(time.Duration(v) * time.Second)
	case []byte:
		n, err := strconv.ParseInt(string(v), 10, 64)
		if err != nil {
			return fmt.Errorf("scan periodicity: %w", err)
		}
		*p = Periodicity(time.Duration(n) * time.Second)
	case nil:
		*p = 0
	default:
		return fmt.Errorf("scan periodicity: unsupported type %T", src)
	}
	return nil
}

// TimeOfDay is a wall-clock time without a date, stored and rendered as "HH:MM:SS".
type TimeOfDay struct {
	Hour   int
	Minute int
	Second int
}

// ParseTimeOfDay accepts "HH:MM" and "HH:MM:SS".
func ParseTimeOfDay(raw string) (TimeOfDay, error) {
	s := strings.TrimSpace(raw)
	layouts := []string{"15:04:05", "15:04"}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, s); err == nil {
			return TimeOfDay{Hour: t.Hour(), Minute: t.Minute(), Second: t.Second()}, nil
		}
	}
	return TimeOfDay{}, fmt.Errorf("invalid time %q, expected HH:MM[:SS]", raw)
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d:%02d", t.Hour, t.Minute, t.Second)
}

// Offset returns the time elapsed since midnight.
func (t TimeOfDay) Offset() time.Duration {
	return time.Duration(t.Hour)*time.Hour + time.Duration(t.Minute)*time.Minute + time.Duration(t.Second)*time.Second
}

func (t TimeOfDay) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

func (t *TimeOfDay) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("time must be a string")
	}
	parsed, err := ParseTimeOfDay(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

func (t TimeOfDay) Value() (driver.Value, error) {
	return t.String(), nil
}

func (t *TimeOfDay) Scan(src any) error {
	var s string
	switch v := src.(type) {
	case string:
		s = v
	case []byte:
		s = string(v)
	case time.Time:
		*t = TimeOfDay{Hour: v.Hour(), Minute: v.Minute(), Second: v.Second()}
		return nil
	default:
		return fmt.Errorf("scan time of day: unsupported type %T", src)
	}
	parsed, err := ParseTimeOfDay(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}
