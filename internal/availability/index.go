// Package availability answers which trainers are free during a window.
//
// An Index is built from a per-request snapshot of store rows and is never shared
// across requests; callers that need a reservation-grade answer build it inside the
// transaction that commits the booking.
package availability

import (
	"sort"

	"github.com/google/uuid"

	"trainerslot/internal/domain"
)

// Snapshot maps a trainer id to the bookings occupying that trainer in the queried
// date range. A trainer absent from the map has no bookings and is fully free.
type Snapshot map[int64][]domain.Booking

type entry struct {
	id    uuid.UUID
	start domain.TimeOfDay
	end   domain.TimeOfDay
	// maxEnd is the largest end among entries[0..i]; it bounds the backwards scan.
	maxEnd domain.TimeOfDay
}

type Index struct {
	byTrainer map[int64]map[string][]entry
}

func NewIndex() *Index {
	return &Index{byTrainer: make(map[int64]map[string][]entry)}
}

func Build(snap Snapshot) *Index {
	ix := NewIndex()
	for _, bookings := range snap {
		for _, b := range bookings {
			ix.Add(b)
		}
	}
	return ix
}

func (ix *Index) Add(b domain.Booking) {
	days, ok := ix.byTrainer[b.TrainerID]
	if !ok {
		days = make(map[string][]entry)
		ix.byTrainer[b.TrainerID] = days
	}

	w := b.Window()
	key := w.DayKey()
	entries := days[key]

	i := sort.Search(len(entries), func(i int) bool { return entries[i].start > w.Start })
	entries = append(entries, entry{})
	copy(entries[i+1:], entries[i:])
	entries[i] = entry{id: b.ID, start: w.Start, end: w.End}

	for j := i; j < len(entries); j++ {
		entries[j].maxEnd = entries[j].end
		if j > 0 && entries[j-1].maxEnd > entries[j].maxEnd {
			entries[j].maxEnd = entries[j-1].maxEnd
		}
	}
	days[key] = entries
}

// IsFree reports whether no booking of trainerID overlaps w. A booking whose id
// equals exclude is ignored so a session never conflicts with itself.
func (ix *Index) IsFree(trainerID int64, w domain.TimeWindow, exclude uuid.UUID) bool {
	entries := ix.byTrainer[trainerID][w.DayKey()]
	if len(entries) == 0 {
		return true
	}

	// Only entries starting before w.End can overlap.
	k := sort.Search(len(entries), func(i int) bool { return entries[i].start >= w.End })
	for i := k - 1; i >= 0; i-- {
		if entries[i].maxEnd <= w.Start {
			break
		}
		if entries[i].id == exclude && exclude != uuid.Nil {
			continue
		}
		if entries[i].end > w.Start {
			return false
		}
	}
	return true
}

// FreeTrainers returns the trainers free during w, preserving the input order.
func (ix *Index) FreeTrainers(trainers []domain.Trainer, w domain.TimeWindow, exclude uuid.UUID) []domain.Trainer {
	out := make([]domain.Trainer, 0, len(trainers))
	for _, t := range trainers {
		if ix.IsFree(t.ID, w, exclude) {
			out = append(out, t)
		}
	}
	return out
}

// Load is the number of bookings trainerID holds on the day of w.
func (ix *Index) Load(trainerID int64, w domain.TimeWindow) int {
	return len(ix.byTrainer[trainerID][w.DayKey()])
}
