package memory

import (
	"sort"
	"time"

	"github.com/google/uuid"

	"trainerslot/internal/domain"
	"trainerslot/internal/store"
)

type memberKey struct {
	memberID  string
	sessionID uuid.UUID
}

type state struct {
	bookings map[uuid.UUID]domain.Booking
	routines map[uuid.UUID][]int64
	groups   map[uuid.UUID]domain.GroupSession
	members  map[memberKey]domain.GroupMember
}

func newState() *state {
	return &state{
		bookings: make(map[uuid.UUID]domain.Booking),
		routines: make(map[uuid.UUID][]int64),
		groups:   make(map[uuid.UUID]domain.GroupSession),
		members:  make(map[memberKey]domain.GroupMember),
	}
}

func (s *state) clone() *state {
	c := &state{
		bookings: make(map[uuid.UUID]domain.Booking, len(s.bookings)),
		routines: make(map[uuid.UUID][]int64, len(s.routines)),
		groups:   make(map[uuid.UUID]domain.GroupSession, len(s.groups)),
		members:  make(map[memberKey]domain.GroupMember, len(s.members)),
	}
	for k, v := range s.bookings {
		c.bookings[k] = v
	}
	for k, v := range s.routines {
		c.routines[k] = append([]int64(nil), v...)
	}
	for k, v := range s.groups {
		c.groups[k] = v
	}
	for k, v := range s.members {
		c.members[k] = v
	}
	return c
}

func (s *state) trainerBookings(trainerID int64, rng domain.DateRange) []domain.Booking {
	out := make([]domain.Booking, 0)
	for _, b := range s.bookings {
		if b.TrainerID == trainerID && rng.Contains(b.SessionDate) {
			out = append(out, b)
		}
	}
	sortBookings(out)
	return out
}

// overlapping reports whether trainerID holds a booking other than self that overlaps w.
func (s *state) overlapping(trainerID int64, w domain.TimeWindow, self uuid.UUID) bool {
	for id, b := range s.bookings {
		if id == self || b.TrainerID != trainerID {
			continue
		}
		if b.Window().Overlaps(w) {
			return true
		}
	}
	return false
}

func (s *state) insertBooking(b domain.Booking) (domain.Booking, error) {
	if existing, ok := s.bookings[b.ID]; ok {
		if existing.Kind != b.Kind ||
			existing.OwnerID != b.OwnerID ||
			!existing.Window().Equal(b.Window()) {
			return domain.Booking{}, store.ErrIdempotencyConflict
		}
		return existing, nil
	}
	if s.overlapping(b.TrainerID, b.Window(), b.ID) {
		return domain.Booking{}, store.ErrConflict
	}
	s.bookings[b.ID] = b
	return b, nil
}

func (s *state) updateBooking(id uuid.UUID, w domain.TimeWindow, trainerID int64, now time.Time) error {
	b, ok := s.bookings[id]
	if !ok {
		return store.ErrNotFound
	}
	if s.overlapping(trainerID, w, id) {
		return store.ErrConflict
	}
	b.TrainerID = trainerID
	b.SetWindow(w)
	b.UpdatedAt = now
	s.bookings[id] = b
	return nil
}

func (s *state) deleteBooking(id uuid.UUID) error {
	if _, ok := s.bookings[id]; !ok {
		return store.ErrNotFound
	}
	delete(s.bookings, id)
	delete(s.routines, id)
	return nil
}

func (s *state) replaceRoutines(bookingID uuid.UUID, routineIDs []int64) error {
	if _, ok := s.bookings[bookingID]; !ok {
		return store.ErrNotFound
	}
	if len(routineIDs) == 0 {
		delete(s.routines, bookingID)
		return nil
	}

	seen := make(map[int64]struct{}, len(routineIDs))
	ids := make([]int64, 0, len(routineIDs))
	for _, id := range routineIDs {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	s.routines[bookingID] = ids
	return nil
}

func (s *state) insertGroupSession(gs domain.GroupSession) error {
	if _, ok := s.groups[gs.ID]; ok {
		return store.ErrConflict
	}
	w := gs.Window()
	for _, other := range s.groups {
		if other.RoomID == gs.RoomID && other.Window().Overlaps(w) {
			return store.ErrConflict
		}
	}
	s.groups[gs.ID] = gs
	return nil
}

func sortBookings(bs []domain.Booking) {
	sort.Slice(bs, func(i, j int) bool {
		a, b := bs[i].Window(), bs[j].Window()
		if !a.Date.Equal(b.Date) {
			return a.Date.Before(b.Date)
		}
		if a.Start != b.Start {
			return a.Start < b.Start
		}
		return bs[i].ID.String() < bs[j].ID.String()
	})
}

func sortGroupSessions(gs []domain.GroupSession) {
	sort.Slice(gs, func(i, j int) bool {
		a, b := gs[i].Window(), gs[j].Window()
		if !a.Date.Equal(b.Date) {
			return a.Date.Before(b.Date)
		}
		if a.Start != b.Start {
			return a.Start < b.Start
		}
		return gs[i].ID.String() < gs[j].ID.String()
	})
}
