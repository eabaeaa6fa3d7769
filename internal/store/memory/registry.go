// Package memory is a single-process Registry. Writes made inside a day
// transaction are staged and applied atomically on success, and the same
// no-overlap rules the Postgres schema enforces are checked on apply.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"trainerslot/internal/domain"
	"trainerslot/internal/store"
)

type Registry struct {
	lockTimeout time.Duration
	now         func() time.Time

	mu       sync.Mutex
	trainers []domain.Trainer
	rooms    map[int64]struct{}
	base     *state
	days     map[string]chan struct{}
}

type Option func(*Registry)

// WithRooms registers the rooms group sessions may be reserved in. A group
// session naming any other room is rejected as not found.
func WithRooms(ids ...int64) Option {
	return func(r *Registry) {
		for _, id := range ids {
			r.rooms[id] = struct{}{}
		}
	}
}

var _ store.Registry = (*Registry)(nil)

// NewRegistry returns an empty registry for the given roster. Day locks wait at
// most lockTimeout; zero waits until the context is done.
func NewRegistry(trainers []domain.Trainer, lockTimeout time.Duration, opts ...Option) *Registry {
	roster := append([]domain.Trainer(nil), trainers...)
	sort.Slice(roster, func(i, j int) bool { return roster[i].ID < roster[j].ID })
	r := &Registry{
		lockTimeout: lockTimeout,
		now:         func() time.Time { return time.Now().UTC() },
		trainers:    roster,
		rooms:       make(map[int64]struct{}),
		base:        newState(),
		days:        make(map[string]chan struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Registry) ListTrainers(ctx context.Context) ([]domain.Trainer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.Trainer(nil), r.trainers...), nil
}

func (r *Registry) LoadTrainerBookings(ctx context.Context, trainerID int64, rng domain.DateRange) ([]domain.Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.base.trainerBookings(trainerID, rng), nil
}

func (r *Registry) ListMemberBookings(ctx context.Context, memberID string, rng domain.DateRange) ([]domain.Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]domain.Booking, 0)
	for _, b := range r.base.bookings {
		if b.Kind == domain.BookingKindPersonal && b.OwnerID == memberID && rng.Contains(b.SessionDate) {
			out = append(out, b)
		}
	}
	sortBookings(out)
	return out, nil
}

func (r *Registry) ListGroupSessions(ctx context.Context, rng domain.DateRange) ([]domain.GroupSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]domain.GroupSession, 0)
	for _, g := range r.base.groups {
		if rng.Contains(g.SessionDate) {
			out = append(out, g)
		}
	}
	sortGroupSessions(out)
	return out, nil
}

func (r *Registry) JoinGroupSession(ctx context.Context, memberID string, sessionID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.base.groups[sessionID]; !ok {
		return store.ErrNotFound
	}
	key := memberKey{memberID: memberID, sessionID: sessionID}
	if _, ok := r.base.members[key]; ok {
		return store.ErrConflict
	}
	r.base.members[key] = domain.GroupMember{MemberID: memberID, GroupSessionID: sessionID, JoinedAt: r.now()}
	return nil
}

func (r *Registry) WithdrawGroupSession(ctx context.Context, memberID string, sessionID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := memberKey{memberID: memberID, sessionID: sessionID}
	if _, ok := r.base.members[key]; !ok {
		return store.ErrNotFound
	}
	delete(r.base.members, key)
	return nil
}

func (r *Registry) ListMemberGroupSessions(ctx context.Context, memberID string, rng domain.DateRange) ([]domain.GroupSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]domain.GroupSession, 0)
	for k := range r.base.members {
		if k.memberID != memberID {
			continue
		}
		if g, ok := r.base.groups[k.sessionID]; ok && rng.Contains(g.SessionDate) {
			out = append(out, g)
		}
	}
	sortGroupSessions(out)
	return out, nil
}

func (r *Registry) ListSessionRoutines(ctx context.Context, memberID string, bookingID uuid.UUID) ([]int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	b, ok := r.base.bookings[bookingID]
	if !ok || b.Kind != domain.BookingKindPersonal || b.OwnerID != memberID {
		return nil, store.ErrNotFound
	}
	out := append([]int64{}, r.base.routines[bookingID]...)
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

func (r *Registry) InDayTransaction(ctx context.Context, days []time.Time, fn func(ctx context.Context, tx store.SessionTx) error) error {
	release, err := r.lockDays(ctx, days)
	if err != nil {
		return err
	}
	defer release()

	r.mu.Lock()
	tx := &sessionTx{
		reg:      r,
		work:     r.base.clone(),
		trainers: append([]domain.Trainer(nil), r.trainers...),
	}
	r.mu.Unlock()

	if err := fn(ctx, tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	next := r.base.clone()
	for _, op := range tx.ops {
		if err := op(next); err != nil {
			return err
		}
	}
	r.base = next
	return nil
}

func (r *Registry) lockDays(ctx context.Context, days []time.Time) (func(), error) {
	keys := make([]string, 0, len(days))
	seen := make(map[string]struct{}, len(days))
	for _, d := range days {
		key := store.DayLockKey(d)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		keys = append(keys, key)
	}
	sort.Strings(keys)

	waitCtx := ctx
	if r.lockTimeout > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, r.lockTimeout)
		defer cancel()
	}

	held := make([]chan struct{}, 0, len(keys))
	release := func() {
		for i := len(held) - 1; i >= 0; i-- {
			<-held[i]
		}
	}

	for _, key := range keys {
		r.mu.Lock()
		sem, ok := r.days[key]
		if !ok {
			sem = make(chan struct{}, 1)
			r.days[key] = sem
		}
		r.mu.Unlock()

		select {
		case sem <- struct{}{}:
			held = append(held, sem)
		case <-waitCtx.Done():
			release()
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			return nil, fmt.Errorf("%w: %s", store.ErrBusy, key)
		}
	}
	return release, nil
}

type sessionTx struct {
	reg      *Registry
	work     *state
	trainers []domain.Trainer
	ops      []func(*state) error
}

func (t *sessionTx) ListTrainers(ctx context.Context) ([]domain.Trainer, error) {
	return append([]domain.Trainer(nil), t.trainers...), nil
}

func (t *sessionTx) LoadTrainerBookings(ctx context.Context, trainerID int64, rng domain.DateRange) ([]domain.Booking, error) {
	return t.work.trainerBookings(trainerID, rng), nil
}

func (t *sessionTx) GetBooking(ctx context.Context, id uuid.UUID) (domain.Booking, error) {
	b, ok := t.work.bookings[id]
	if !ok {
		return domain.Booking{}, store.ErrNotFound
	}
	return b, nil
}

func (t *sessionTx) InsertBooking(ctx context.Context, b domain.Booking) (domain.Booking, error) {
	if b.ID == uuid.Nil {
		id, err := uuid.NewV7()
		if err != nil {
			return domain.Booking{}, err
		}
		b.ID = id
	}
	now := t.reg.now()
	if b.CreatedAt.IsZero() {
		b.CreatedAt = now
	}
	if b.UpdatedAt.IsZero() {
		b.UpdatedAt = now
	}
	b.SessionDate = domain.Date(b.SessionDate)

	stored, err := t.work.insertBooking(b)
	if err != nil {
		return domain.Booking{}, err
	}
	t.ops = append(t.ops, func(s *state) error {
		_, err := s.insertBooking(b)
		return err
	})
	return stored, nil
}

func (t *sessionTx) UpdateBooking(ctx context.Context, id uuid.UUID, w domain.TimeWindow, trainerID int64) error {
	now := t.reg.now()
	if err := t.work.updateBooking(id, w, trainerID, now); err != nil {
		return err
	}
	t.ops = append(t.ops, func(s *state) error {
		return s.updateBooking(id, w, trainerID, now)
	})
	return nil
}

func (t *sessionTx) DeleteBooking(ctx context.Context, id uuid.UUID) error {
	if err := t.work.deleteBooking(id); err != nil {
		return err
	}
	t.ops = append(t.ops, func(s *state) error {
		return s.deleteBooking(id)
	})
	return nil
}

func (t *sessionTx) ReplaceRoutines(ctx context.Context, bookingID uuid.UUID, routineIDs []int64) error {
	ids := append([]int64(nil), routineIDs...)
	if err := t.work.replaceRoutines(bookingID, ids); err != nil {
		return err
	}
	t.ops = append(t.ops, func(s *state) error {
		return s.replaceRoutines(bookingID, ids)
	})
	return nil
}

func (t *sessionTx) InsertGroupSession(ctx context.Context, gs domain.GroupSession) (domain.GroupSession, error) {
	if gs.ID == uuid.Nil {
		id, err := uuid.NewV7()
		if err != nil {
			return domain.GroupSession{}, err
		}
		gs.ID = id
	}
	if gs.CreatedAt.IsZero() {
		gs.CreatedAt = t.reg.now()
	}
	gs.SessionDate = domain.Date(gs.SessionDate)
	if _, ok := t.reg.rooms[gs.RoomID]; !ok {
		return domain.GroupSession{}, fmt.Errorf("room: %w", store.ErrNotFound)
	}

	if err := t.work.insertGroupSession(gs); err != nil {
		return domain.GroupSession{}, err
	}
	t.ops = append(t.ops, func(s *state) error {
		return s.insertGroupSession(gs)
	})
	return gs, nil
}
