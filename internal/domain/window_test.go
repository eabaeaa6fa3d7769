package domain

import (
	"errors"
	"testing"
	"time"
)

func mustWindow(t *testing.T, date, start, end string) TimeWindow {
	t.Helper()
	w, err := ParseTimeWindow(date, start, end)
	if err != nil {
		t.Fatalf("ParseTimeWindow(%q, %q, %q) error: %v", date, start, end, err)
	}
	return w
}

func TestTimeWindowOverlaps(t *testing.T) {
	tests := []struct {
		name string
		a, b TimeWindow
		want bool
	}{
		{
			name: "touching at 13:00 does not overlap",
			a:    mustWindow(t, "2024-01-10", "12:00", "13:00"),
			b:    mustWindow(t, "2024-01-10", "13:00", "14:00"),
			want: false,
		},
		{
			name: "identical one minute windows overlap",
			a:    mustWindow(t, "2024-01-10", "13:00", "13:01"),
			b:    mustWindow(t, "2024-01-10", "13:00", "13:01"),
			want: true,
		},
		{
			name: "partial overlap",
			a:    mustWindow(t, "2024-01-10", "09:00", "10:00"),
			b:    mustWindow(t, "2024-01-10", "09:30", "10:30"),
			want: true,
		},
		{
			name: "containment",
			a:    mustWindow(t, "2024-01-10", "08:00", "12:00"),
			b:    mustWindow(t, "2024-01-10", "09:00", "09:15"),
			want: true,
		},
		{
			name: "same times on different dates",
			a:    mustWindow(t, "2024-01-10", "09:00", "10:00"),
			b:    mustWindow(t, "2024-01-11", "09:00", "10:00"),
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.a.Overlaps(tt.b); got != tt.want {
				t.Fatalf("a.Overlaps(b) = %v, want %v", got, tt.want)
			}
			if got := tt.b.Overlaps(tt.a); got != tt.want {
				t.Fatalf("b.Overlaps(a) = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestParseTimeWindow_Rejects(t *testing.T) {
	tests := []struct {
		name             string
		date, start, end string
	}{
		{name: "zero length", date: "2024-01-10", start: "13:00", end: "13:00"},
		{name: "negative length", date: "2024-01-10", start: "14:00", end: "13:00"},
		{name: "malformed date", date: "2024-13-40", start: "09:00", end: "10:00"},
		{name: "malformed start", date: "2024-01-10", start: "9am", end: "10:00"},
		{name: "minutes out of range", date: "2024-01-10", start: "09:60", end: "10:00"},
		{name: "past end of day", date: "2024-01-10", start: "23:00", end: "24:30"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseTimeWindow(tt.date, tt.start, tt.end)
			if !errors.Is(err, ErrInvalidWindow) {
				t.Fatalf("error = %v, want %v", err, ErrInvalidWindow)
			}
		})
	}
}

func TestTimeWindowValidate_ZeroDate(t *testing.T) {
	w := TimeWindow{Start: Clock(9, 0), End: Clock(10, 0)}
	if err := w.Validate(); !errors.Is(err, ErrInvalidWindow) {
		t.Fatalf("error = %v, want %v", err, ErrInvalidWindow)
	}
}

func TestParseTimeOfDay_RoundTrip(t *testing.T) {
	for _, in := range []string{"00:00", "09:30", "13:01", "23:59:59", "24:00"} {
		tod, err := ParseTimeOfDay(in)
		if err != nil {
			t.Fatalf("ParseTimeOfDay(%q) error: %v", in, err)
		}
		if got := tod.String(); got != in {
			t.Fatalf("String() = %q, want %q", got, in)
		}
	}
}

func TestParseTimeOfDay_SingleDigitHour(t *testing.T) {
	tests := map[string]TimeOfDay{
		"1:30":    Clock(1, 30),
		"9:00":    Clock(9, 0),
		"13:30":   Clock(13, 30),
		"7:05:09": Clock(7, 5) + 9*Second,
	}
	for in, want := range tests {
		got, err := ParseTimeOfDay(in)
		if err != nil {
			t.Fatalf("ParseTimeOfDay(%q) error: %v", in, err)
		}
		if got != want {
			t.Fatalf("ParseTimeOfDay(%q) = %s, want %s", in, got, want)
		}
	}

	for _, in := range []string{"9:0", "09:5", "123:00", ":30", "9:00:1"} {
		if _, err := ParseTimeOfDay(in); !errors.Is(err, ErrInvalidWindow) {
			t.Fatalf("ParseTimeOfDay(%q) err = %v, want ErrInvalidWindow", in, err)
		}
	}
}

func TestNewTimeWindow_NormalizesDate(t *testing.T) {
	loc := time.FixedZone("UTC+5", 5*3600)
	w := NewTimeWindow(time.Date(2024, 1, 10, 22, 15, 0, 0, loc), Clock(9, 0), Clock(10, 0))
	if w.Date.Location() != time.UTC || w.Date.Hour() != 0 || w.Date.Day() != 10 {
		t.Fatalf("date = %v, want 2024-01-10 00:00 UTC", w.Date)
	}
	if w.String() != "2024-01-10 09:00-10:00" {
		t.Fatalf("String() = %q", w.String())
	}
}

func TestDateRangeContains(t *testing.T) {
	r := DateRange{From: time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC), To: time.Date(2024, 1, 12, 0, 0, 0, 0, time.UTC)}
	if err := r.Validate(); err != nil {
		t.Fatalf("Validate error: %v", err)
	}
	if !r.Contains(time.Date(2024, 1, 12, 18, 0, 0, 0, time.UTC)) {
		t.Fatalf("expected range to contain its last day")
	}
	if r.Contains(time.Date(2024, 1, 13, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("expected range to exclude the following day")
	}

	bad := DateRange{From: r.To, To: r.From}
	if err := bad.Validate(); !errors.Is(err, ErrInvalidWindow) {
		t.Fatalf("error = %v, want %v", err, ErrInvalidWindow)
	}
}
