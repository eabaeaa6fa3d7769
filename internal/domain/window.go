package domain

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

var ErrInvalidWindow = errors.New("invalid window")

// TimeOfDay is a wall-clock time expressed in seconds since midnight.
type TimeOfDay int

const (
	Second TimeOfDay = 1
	Minute           = 60 * Second
	Hour             = 60 * Minute
	EndOfDay         = 24 * Hour
)

func Clock(hour, minute int) TimeOfDay {
	return TimeOfDay(hour)*Hour + TimeOfDay(minute)*Minute
}

// ParseTimeOfDay accepts "15:04" and "15:04:05", with a one- or two-digit hour
// ("9:00"). "24:00" is allowed as an end of day.
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 2 && len(parts) != 3 {
		return 0, fmt.Errorf("%w: malformed time %q", ErrInvalidWindow, s)
	}

	var fields [3]int
	for i, p := range parts {
		if len(p) != 2 && (i != 0 || len(p) != 1) {
			return 0, fmt.Errorf("%w: malformed time %q", ErrInvalidWindow, s)
		}
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 {
			return 0, fmt.Errorf("%w: malformed time %q", ErrInvalidWindow, s)
		}
		fields[i] = n
	}
	if fields[1] > 59 || fields[2] > 59 {
		return 0, fmt.Errorf("%w: malformed time %q", ErrInvalidWindow, s)
	}

	t := TimeOfDay(fields[0])*Hour + TimeOfDay(fields[1])*Minute + TimeOfDay(fields[2])
	if t > EndOfDay {
		return 0, fmt.Errorf("%w: time %q is past end of day", ErrInvalidWindow, s)
	}
	return t, nil
}

func (t TimeOfDay) String() string {
	h := int(t / Hour)
	m := int(t%Hour) / int(Minute)
	sec := int(t % Minute)
	if sec == 0 {
		return fmt.Sprintf("%02d:%02d", h, m)
	}
	return fmt.Sprintf("%02d:%02d:%02d", h, m, sec)
}

// Date truncates t to its calendar day at midnight UTC, ignoring t's location.
func Date(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func ParseDate(s string) (time.Time, error) {
	d, err := time.Parse(time.DateOnly, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: malformed date %q", ErrInvalidWindow, s)
	}
	return d, nil
}

// TimeWindow is a timezone-naive span within a single calendar day.
type TimeWindow struct {
	Date  time.Time
	Start TimeOfDay
	End   TimeOfDay
}

func NewTimeWindow(date time.Time, start, end TimeOfDay) TimeWindow {
	return TimeWindow{Date: Date(date), Start: start, End: end}
}

func ParseTimeWindow(date, start, end string) (TimeWindow, error) {
	d, err := ParseDate(date)
	if err != nil {
		return TimeWindow{}, err
	}
	s, err := ParseTimeOfDay(start)
	if err != nil {
		return TimeWindow{}, err
	}
	e, err := ParseTimeOfDay(end)
	if err != nil {
		return TimeWindow{}, err
	}
	w := TimeWindow{Date: d, Start: s, End: e}
	if err := w.Validate(); err != nil {
		return TimeWindow{}, err
	}
	return w, nil
}

func (w TimeWindow) Validate() error {
	if w.Date.IsZero() {
		return fmt.Errorf("%w: date is required", ErrInvalidWindow)
	}
	if w.Start < 0 || w.End > EndOfDay {
		return fmt.Errorf("%w: times must fall within one day", ErrInvalidWindow)
	}
	if w.Start >= w.End {
		return fmt.Errorf("%w: end must be after start", ErrInvalidWindow)
	}
	return nil
}

// Overlaps uses half-open semantics: a window ending at 13:00 does not overlap one starting at 13:00.
func (w TimeWindow) Overlaps(o TimeWindow) bool {
	return SameDate(w.Date, o.Date) && w.Start < o.End && o.Start < w.End
}

func (w TimeWindow) Equal(o TimeWindow) bool {
	return SameDate(w.Date, o.Date) && w.Start == o.Start && w.End == o.End
}

func (w TimeWindow) DayKey() string {
	return w.Date.Format(time.DateOnly)
}

func (w TimeWindow) String() string {
	return w.DayKey() + " " + w.Start.String() + "-" + w.End.String()
}

func SameDate(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// DateRange is an inclusive range of calendar days.
type DateRange struct {
	From time.Time
	To   time.Time
}

func SingleDay(d time.Time) DateRange {
	d = Date(d)
	return DateRange{From: d, To: d}
}

func (r DateRange) Validate() error {
	if r.From.IsZero() || r.To.IsZero() {
		return fmt.Errorf("%w: date range bounds are required", ErrInvalidWindow)
	}
	if Date(r.To).Before(Date(r.From)) {
		return fmt.Errorf("%w: date range ends before it starts", ErrInvalidWindow)
	}
	return nil
}

func (r DateRange) Contains(d time.Time) bool {
	d = Date(d)
	return !d.Before(Date(r.From)) && !d.After(Date(r.To))
}
