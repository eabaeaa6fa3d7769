package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"trainerslot/internal/domain"
)

// Registry is the session store boundary. Reads outside InDayTransaction are
// advisory and may be stale.
type Registry interface {
	ListTrainers(ctx context.Context) ([]domain.Trainer, error)
	LoadTrainerBookings(ctx context.Context, trainerID int64, rng domain.DateRange) ([]domain.Booking, error)
	ListMemberBookings(ctx context.Context, memberID string, rng domain.DateRange) ([]domain.Booking, error)
	ListGroupSessions(ctx context.Context, rng domain.DateRange) ([]domain.GroupSession, error)
	ListMemberGroupSessions(ctx context.Context, memberID string, rng domain.DateRange) ([]domain.GroupSession, error)

	// ListSessionRoutines returns ErrNotFound unless bookingID is a personal
	// booking owned by memberID.
	ListSessionRoutines(ctx context.Context, memberID string, bookingID uuid.UUID) ([]int64, error)

	JoinGroupSession(ctx context.Context, memberID string, sessionID uuid.UUID) error
	WithdrawGroupSession(ctx context.Context, memberID string, sessionID uuid.UUID) error

	// InDayTransaction runs fn in one transaction holding an exclusive lock on every
	// given day. Lock waits are bounded; a timeout surfaces as ErrBusy. Any error
	// returned by fn rolls back every write made through tx.
	InDayTransaction(ctx context.Context, days []time.Time, fn func(ctx context.Context, tx SessionTx) error) error
}

type SessionTx interface {
	ListTrainers(ctx context.Context) ([]domain.Trainer, error)
	LoadTrainerBookings(ctx context.Context, trainerID int64, rng domain.DateRange) ([]domain.Booking, error)
	GetBooking(ctx context.Context, id uuid.UUID) (domain.Booking, error)

	// InsertBooking returns ErrConflict when the trainer is already booked for an
	// overlapping window and ErrIdempotencyConflict when the id exists with different data.
	InsertBooking(ctx context.Context, b domain.Booking) (domain.Booking, error)
	UpdateBooking(ctx context.Context, id uuid.UUID, w domain.TimeWindow, trainerID int64) error
	DeleteBooking(ctx context.Context, id uuid.UUID) error

	ReplaceRoutines(ctx context.Context, bookingID uuid.UUID, routineIDs []int64) error
	InsertGroupSession(ctx context.Context, gs domain.GroupSession) (domain.GroupSession, error)
}

// DayLockKey names the lock that serializes reservations on one calendar day.
func DayLockKey(day time.Time) string {
	return "trainer-day:" + domain.Date(day).Format(time.DateOnly)
}
