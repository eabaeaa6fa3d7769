package availability

import (
	"reflect"
	"testing"
	"time"

	"github.com/google/uuid"

	"trainerslot/internal/domain"
)

var day = time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)

func booking(id string, trainerID int64, start, end domain.TimeOfDay) domain.Booking {
	b := domain.Booking{
		ID:        uuid.MustParse(id),
		TrainerID: trainerID,
		Kind:      domain.BookingKindPersonal,
		OwnerID:   "m1",
	}
	b.SetWindow(domain.NewTimeWindow(day, start, end))
	return b
}

func window(start, end domain.TimeOfDay) domain.TimeWindow {
	return domain.NewTimeWindow(day, start, end)
}

func trainerIDs(ts []domain.Trainer) []int64 {
	out := make([]int64, 0, len(ts))
	for _, t := range ts {
		out = append(out, t.ID)
	}
	return out
}

func TestIndexIsFree(t *testing.T) {
	ix := Build(Snapshot{
		1: {
			booking("00000000-0000-0000-0000-000000000001", 1, domain.Clock(9, 0), domain.Clock(10, 0)),
			booking("00000000-0000-0000-0000-000000000002", 1, domain.Clock(13, 0), domain.Clock(13, 1)),
		},
	})

	tests := []struct {
		name    string
		trainer int64
		w       domain.TimeWindow
		exclude uuid.UUID
		want    bool
	}{
		{name: "overlapping start", trainer: 1, w: window(domain.Clock(9, 30), domain.Clock(10, 30)), want: false},
		{name: "ends exactly at booking start", trainer: 1, w: window(domain.Clock(8, 0), domain.Clock(9, 0)), want: true},
		{name: "starts exactly at booking end", trainer: 1, w: window(domain.Clock(10, 0), domain.Clock(11, 0)), want: true},
		{name: "identical one minute window", trainer: 1, w: window(domain.Clock(13, 0), domain.Clock(13, 1)), want: false},
		{name: "ends at 13:00 before minute booking", trainer: 1, w: window(domain.Clock(12, 0), domain.Clock(13, 0)), want: true},
		{name: "spans both bookings", trainer: 1, w: window(domain.Clock(8, 0), domain.Clock(14, 0)), want: false},
		{
			name:    "own booking excluded",
			trainer: 1,
			w:       window(domain.Clock(9, 0), domain.Clock(10, 0)),
			exclude: uuid.MustParse("00000000-0000-0000-0000-000000000001"),
			want:    true,
		},
		{name: "trainer with no rows is free", trainer: 2, w: window(domain.Clock(9, 0), domain.Clock(10, 0)), want: true},
		{
			name:    "other date is free",
			trainer: 1,
			w:       domain.NewTimeWindow(day.AddDate(0, 0, 1), domain.Clock(9, 0), domain.Clock(10, 0)),
			want:    true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ix.IsFree(tt.trainer, tt.w, tt.exclude); got != tt.want {
				t.Fatalf("IsFree = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestIndexIsFree_LongEarlyBookingStillConflicts(t *testing.T) {
	// The long booking ends after the short ones that start later; maxEnd keeps the
	// backwards scan from stopping too early.
	ix := NewIndex()
	ix.Add(booking("00000000-0000-0000-0000-000000000011", 1, domain.Clock(8, 0), domain.Clock(18, 0)))
	ix.Add(booking("00000000-0000-0000-0000-000000000012", 1, domain.Clock(9, 0), domain.Clock(9, 30)))
	ix.Add(booking("00000000-0000-0000-0000-000000000013", 1, domain.Clock(10, 0), domain.Clock(10, 30)))

	if ix.IsFree(1, window(domain.Clock(11, 0), domain.Clock(12, 0)), uuid.Nil) {
		t.Fatalf("expected conflict with the 08:00-18:00 booking")
	}
}

func TestIndexFreeTrainers_PreservesOrderAndIsIdempotent(t *testing.T) {
	trainers := []domain.Trainer{{ID: 1, DisplayName: "T1"}, {ID: 2, DisplayName: "T2"}, {ID: 3, DisplayName: "T3"}}
	ix := Build(Snapshot{
		2: {booking("00000000-0000-0000-0000-000000000031", 2, domain.Clock(9, 0), domain.Clock(10, 0))},
	})

	w := window(domain.Clock(9, 30), domain.Clock(10, 30))
	first := ix.FreeTrainers(trainers, w, uuid.Nil)
	second := ix.FreeTrainers(trainers, w, uuid.Nil)

	if got := trainerIDs(first); !reflect.DeepEqual(got, []int64{1, 3}) {
		t.Fatalf("FreeTrainers = %v, want [1 3]", got)
	}
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("FreeTrainers not idempotent: %v vs %v", first, second)
	}
}

func TestIndexFreeTrainers_Scenario(t *testing.T) {
	trainers := []domain.Trainer{{ID: 1, DisplayName: "T1"}, {ID: 2, DisplayName: "T2"}}
	ix := Build(Snapshot{
		1: {booking("00000000-0000-0000-0000-000000000041", 1, domain.Clock(9, 0), domain.Clock(10, 0))},
	})

	free := ix.FreeTrainers(trainers, window(domain.Clock(9, 30), domain.Clock(10, 30)), uuid.Nil)
	if got := trainerIDs(free); !reflect.DeepEqual(got, []int64{2}) {
		t.Fatalf("FreeTrainers(09:30-10:30) = %v, want [2]", got)
	}

	free = ix.FreeTrainers(trainers, window(domain.Clock(10, 0), domain.Clock(11, 0)), uuid.Nil)
	if got := trainerIDs(free); !reflect.DeepEqual(got, []int64{1, 2}) {
		t.Fatalf("FreeTrainers(10:00-11:00) = %v, want [1 2]", got)
	}
}
