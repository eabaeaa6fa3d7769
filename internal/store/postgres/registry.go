package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/uptrace/bun"

	"trainerslot/internal/domain"
	"trainerslot/internal/store"
)

const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
	pgExclusionViolation  = "23P01"
	pgLockNotAvailable    = "55P03"
	pgDeadlockDetected    = "40P01"
	pgSerializationFailed = "40001"

	bookingsNoOverlap  = "bookings_no_overlap"
	groupRoomNoOverlap = "group_sessions_room_no_overlap"
)

type Registry struct {
	db          *bun.DB
	lockTimeout time.Duration
}

var _ store.Registry = (*Registry)(nil)

// NewRegistry returns a registry whose day locks wait at most lockTimeout.
// A zero lockTimeout leaves the server default in place.
func NewRegistry(db *bun.DB, lockTimeout time.Duration) *Registry {
	return &Registry{db: db, lockTimeout: lockTimeout}
}

type sessionTx struct {
	tx bun.Tx
}

func (r *Registry) ListTrainers(ctx context.Context) ([]domain.Trainer, error) {
	return listTrainers(ctx, r.db)
}

func (r *Registry) LoadTrainerBookings(ctx context.Context, trainerID int64, rng domain.DateRange) ([]domain.Booking, error) {
	return loadTrainerBookings(ctx, r.db, trainerID, rng)
}

func (r *Registry) ListMemberBookings(ctx context.Context, memberID string, rng domain.DateRange) ([]domain.Booking, error) {
	var rows []domain.Booking
	err := r.db.NewSelect().
		Model(&rows).
		Where("kind = ?", domain.BookingKindPersonal).
		Where("owner_id = ?", memberID).
		Where("session_date >= ?", domain.Date(rng.From)).
		Where("session_date <= ?", domain.Date(rng.To)).
		OrderExpr("session_date ASC, start_sec ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *Registry) ListGroupSessions(ctx context.Context, rng domain.DateRange) ([]domain.GroupSession, error) {
	var rows []domain.GroupSession
	err := r.db.NewSelect().
		Model(&rows).
		Where("session_date >= ?", domain.Date(rng.From)).
		Where("session_date <= ?", domain.Date(rng.To)).
		OrderExpr("session_date ASC, start_sec ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *Registry) ListMemberGroupSessions(ctx context.Context, memberID string, rng domain.DateRange) ([]domain.GroupSession, error) {
	joined := r.db.NewSelect().
		Model((*domain.GroupMember)(nil)).
		Column("group_session_id").
		Where("member_id = ?", memberID)

	var rows []domain.GroupSession
	err := r.db.NewSelect().
		Model(&rows).
		Where("id IN (?)", joined).
		Where("session_date >= ?", domain.Date(rng.From)).
		Where("session_date <= ?", domain.Date(rng.To)).
		OrderExpr("session_date ASC, start_sec ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *Registry) ListSessionRoutines(ctx context.Context, memberID string, bookingID uuid.UUID) ([]int64, error) {
	owned, err := r.db.NewSelect().
		Model((*domain.Booking)(nil)).
		Where("id = ?", bookingID).
		Where("kind = ?", domain.BookingKindPersonal).
		Where("owner_id = ?", memberID).
		Exists(ctx)
	if err != nil {
		return nil, err
	}
	if !owned {
		return nil, store.ErrNotFound
	}

	ids := make([]int64, 0)
	err = r.db.NewSelect().
		Model((*domain.SessionRoutine)(nil)).
		Column("routine_id").
		Where("booking_id = ?", bookingID).
		OrderExpr("routine_id ASC").
		Scan(ctx, &ids)
	if err != nil {
		return nil, err
	}
	return ids, nil
}

func (r *Registry) JoinGroupSession(ctx context.Context, memberID string, sessionID uuid.UUID) error {
	m := domain.GroupMember{
		MemberID:       memberID,
		GroupSessionID: sessionID,
		JoinedAt:       time.Now().UTC(),
	}
	_, err := r.db.NewInsert().Model(&m).Exec(ctx)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			switch pgErr.Code {
			case pgForeignKeyViolation:
				return store.ErrNotFound
			case pgUniqueViolation:
				return store.ErrConflict
			}
		}
		return err
	}
	return nil
}

func (r *Registry) WithdrawGroupSession(ctx context.Context, memberID string, sessionID uuid.UUID) error {
	res, err := r.db.NewDelete().
		Model((*domain.GroupMember)(nil)).
		Where("member_id = ?", memberID).
		Where("group_session_id = ?", sessionID).
		Exec(ctx)
	if err != nil {
		return err
	}
	return expectAffected(res)
}

func (r *Registry) InDayTransaction(ctx context.Context, days []time.Time, fn func(ctx context.Context, tx store.SessionTx) error) error {
	keys := dayLockKeys(days)
	err := r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if r.lockTimeout > 0 {
			setting := fmt.Sprintf("%dms", r.lockTimeout.Milliseconds())
			if _, err := tx.NewRaw("SELECT set_config('lock_timeout', ?, true)", setting).Exec(ctx); err != nil {
				return err
			}
		}
		for _, key := range keys {
			if err := lockDay(ctx, tx, key); err != nil {
				return err
			}
		}
		return fn(ctx, sessionTx{tx: tx})
	})
	return mapTxError(err)
}

// dayLockKeys deduplicates and sorts so concurrent transactions lock in the same order.
func dayLockKeys(days []time.Time) []string {
	seen := make(map[string]struct{}, len(days))
	keys := make([]string, 0, len(days))
	for _, d := range days {
		key := store.DayLockKey(d)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

func lockDay(ctx context.Context, tx bun.Tx, key string) error {
	_, err := tx.NewRaw("SELECT pg_advisory_xact_lock(hashtext(?))", key).Exec(ctx)
	return err
}

func mapTxError(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgLockNotAvailable, pgDeadlockDetected, pgSerializationFailed:
			return fmt.Errorf("%w: %s", store.ErrBusy, pgErr.Message)
		}
	}
	return err
}

func (r sessionTx) ListTrainers(ctx context.Context) ([]domain.Trainer, error) {
	return listTrainers(ctx, r.tx)
}

func (r sessionTx) LoadTrainerBookings(ctx context.Context, trainerID int64, rng domain.DateRange) ([]domain.Booking, error) {
	return loadTrainerBookings(ctx, r.tx, trainerID, rng)
}

func (r sessionTx) GetBooking(ctx context.Context, id uuid.UUID) (domain.Booking, error) {
	var b domain.Booking
	err := r.tx.NewSelect().
		Model(&b).
		Where("id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Booking{}, store.ErrNotFound
		}
		return domain.Booking{}, err
	}
	return b, nil
}

func (r sessionTx) InsertBooking(ctx context.Context, b domain.Booking) (domain.Booking, error) {
	m := domain.Booking{
		ID:          b.ID,
		TrainerID:   b.TrainerID,
		SessionDate: domain.Date(b.SessionDate),
		StartSec:    b.StartSec,
		EndSec:      b.EndSec,
		Kind:        b.Kind,
		OwnerID:     b.OwnerID,
		CreatedAt:   b.CreatedAt,
		UpdatedAt:   b.UpdatedAt,
	}

	// ON CONFLICT keeps an id replay from aborting the surrounding transaction.
	res, err := r.tx.NewInsert().
		Model(&m).
		On("CONFLICT (id) DO NOTHING").
		Exec(ctx)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgExclusionViolation && pgErr.ConstraintName == bookingsNoOverlap {
			return domain.Booking{}, store.ErrConflict
		}
		return domain.Booking{}, err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return domain.Booking{}, err
	}
	if affected == 0 {
		existing, err := r.GetBooking(ctx, m.ID)
		if err != nil {
			return domain.Booking{}, err
		}
		if existing.Kind != b.Kind ||
			existing.OwnerID != b.OwnerID ||
			!existing.Window().Equal(b.Window()) {
			return domain.Booking{}, store.ErrIdempotencyConflict
		}
		return existing, nil
	}

	return m, nil
}

func (r sessionTx) UpdateBooking(ctx context.Context, id uuid.UUID, w domain.TimeWindow, trainerID int64) error {
	m := domain.Booking{ID: id, TrainerID: trainerID}
	m.SetWindow(w)

	res, err := r.tx.NewUpdate().
		Model(&m).
		Column("trainer_id", "session_date", "start_sec", "end_sec", "updated_at").
		WherePK().
		Exec(ctx)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgExclusionViolation && pgErr.ConstraintName == bookingsNoOverlap {
			return store.ErrConflict
		}
		return err
	}
	return expectAffected(res)
}

func (r sessionTx) DeleteBooking(ctx context.Context, id uuid.UUID) error {
	if _, err := r.tx.NewDelete().
		Model((*domain.SessionRoutine)(nil)).
		Where("booking_id = ?", id).
		Exec(ctx); err != nil {
		return err
	}

	res, err := r.tx.NewDelete().
		Model((*domain.Booking)(nil)).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return err
	}
	return expectAffected(res)
}

func (r sessionTx) ReplaceRoutines(ctx context.Context, bookingID uuid.UUID, routineIDs []int64) error {
	if _, err := r.tx.NewDelete().
		Model((*domain.SessionRoutine)(nil)).
		Where("booking_id = ?", bookingID).
		Exec(ctx); err != nil {
		return err
	}
	if len(routineIDs) == 0 {
		return nil
	}

	rows := make([]domain.SessionRoutine, 0, len(routineIDs))
	seen := make(map[int64]struct{}, len(routineIDs))
	for _, id := range routineIDs {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		rows = append(rows, domain.SessionRoutine{BookingID: bookingID, RoutineID: id})
	}

	_, err := r.tx.NewInsert().Model(&rows).Exec(ctx)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgForeignKeyViolation {
			return fmt.Errorf("routine: %w", store.ErrNotFound)
		}
		return err
	}
	return nil
}

func (r sessionTx) InsertGroupSession(ctx context.Context, gs domain.GroupSession) (domain.GroupSession, error) {
	m := gs
	m.SessionDate = domain.Date(gs.SessionDate)
	if _, err := r.tx.NewInsert().Model(&m).Exec(ctx); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			switch {
			case pgErr.Code == pgExclusionViolation && pgErr.ConstraintName == groupRoomNoOverlap:
				return domain.GroupSession{}, store.ErrConflict
			case pgErr.Code == pgForeignKeyViolation:
				return domain.GroupSession{}, fmt.Errorf("room: %w", store.ErrNotFound)
			}
		}
		return domain.GroupSession{}, err
	}
	return m, nil
}

func listTrainers(ctx context.Context, db bun.IDB) ([]domain.Trainer, error) {
	var rows []domain.Trainer
	err := db.NewSelect().
		Model(&rows).
		OrderExpr("id ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func loadTrainerBookings(ctx context.Context, db bun.IDB, trainerID int64, rng domain.DateRange) ([]domain.Booking, error) {
	var rows []domain.Booking
	err := db.NewSelect().
		Model(&rows).
		Where("trainer_id = ?", trainerID).
		Where("session_date >= ?", domain.Date(rng.From)).
		Where("session_date <= ?", domain.Date(rng.To)).
		OrderExpr("session_date ASC, start_sec ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func expectAffected(res sql.Result) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}
