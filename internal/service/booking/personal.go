package booking

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"trainerslot/internal/domain"
	"trainerslot/internal/store"
)

type ScheduleInput struct {
	MemberID       string
	Window         domain.TimeWindow
	RoutineIDs     []int64
	IdempotencyKey string
}

// SchedulePersonal reserves a free trainer for the member's window and attaches
// the routines in the same transaction.
func (s *Service) SchedulePersonal(ctx context.Context, in ScheduleInput) (out domain.Booking, err error) {
	const op = "schedule"
	started := time.Now()
	defer func() { s.finish(op, started, err, "member_id", in.MemberID, "window", in.Window.String()) }()

	memberID := strings.TrimSpace(in.MemberID)
	if memberID == "" {
		return domain.Booking{}, validationError("member_id is required")
	}
	if err := in.Window.Validate(); err != nil {
		return domain.Booking{}, invalidWindow(err)
	}
	if err := validateRoutines(in.RoutineIDs); err != nil {
		return domain.Booking{}, err
	}
	w := domain.NewTimeWindow(in.Window.Date, in.Window.Start, in.Window.End)

	var id uuid.UUID
	key := strings.TrimSpace(in.IdempotencyKey)
	if key != "" {
		if len(key) > 256 {
			return domain.Booking{}, validationError("idempotency_key too long")
		}
		id = uuid.NewSHA1(uuid.NameSpaceOID, []byte("trainerslot:schedule_personal:"+memberID+":"+key))
	}

	err = s.runLocked(ctx, op, []time.Time{w.Date}, func(ctx context.Context, tx store.SessionTx) error {
		if id != uuid.Nil {
			existing, err := tx.GetBooking(ctx, id)
			switch {
			case err == nil:
				if existing.Kind != domain.BookingKindPersonal ||
					existing.OwnerID != memberID ||
					!existing.Window().Equal(w) {
					return store.ErrIdempotencyConflict
				}
				out = existing
				return nil
			case !errors.Is(err, store.ErrNotFound):
				return err
			}
		}

		trainer, err := s.selectTrainer(ctx, tx, w, uuid.Nil)
		if err != nil {
			return err
		}

		b := domain.Booking{
			ID:        id,
			TrainerID: trainer.ID,
			Kind:      domain.BookingKindPersonal,
			OwnerID:   memberID,
		}
		b.SetWindow(w)

		created, err := tx.InsertBooking(ctx, b)
		if err != nil {
			if errors.Is(err, store.ErrConflict) {
				return ErrNoAvailableTrainer
			}
			return err
		}
		if len(in.RoutineIDs) > 0 {
			if err := tx.ReplaceRoutines(ctx, created.ID, in.RoutineIDs); err != nil {
				return err
			}
		}
		out = created
		return nil
	})
	if err != nil {
		return domain.Booking{}, err
	}
	return out, nil
}

type RescheduleInput struct {
	MemberID  string
	BookingID uuid.UUID
	Window    domain.TimeWindow

	// RoutineIDs replaces the booking's routines when ReplaceRoutines is set.
	RoutineIDs      []int64
	ReplaceRoutines bool
}

// Reschedule moves a personal booking to a new window, possibly to another
// trainer. When no trainer is free the booking is left untouched.
func (s *Service) Reschedule(ctx context.Context, in RescheduleInput) (out domain.Booking, err error) {
	const op = "reschedule"
	started := time.Now()
	defer func() {
		s.finish(op, started, err, "member_id", in.MemberID, "booking_id", in.BookingID, "window", in.Window.String())
	}()

	memberID := strings.TrimSpace(in.MemberID)
	if memberID == "" {
		return domain.Booking{}, validationError("member_id is required")
	}
	if in.BookingID == uuid.Nil {
		return domain.Booking{}, validationError("booking_id is required")
	}
	if err := in.Window.Validate(); err != nil {
		return domain.Booking{}, invalidWindow(err)
	}
	if err := validateRoutines(in.RoutineIDs); err != nil {
		return domain.Booking{}, err
	}
	w := domain.NewTimeWindow(in.Window.Date, in.Window.Start, in.Window.End)

	err = s.runLocked(ctx, op, []time.Time{w.Date}, func(ctx context.Context, tx store.SessionTx) error {
		existing, err := ownedBooking(ctx, tx, memberID, in.BookingID)
		if err != nil {
			return err
		}

		trainer, err := s.selectTrainer(ctx, tx, w, existing.ID)
		if err != nil {
			return err
		}
		if err := tx.UpdateBooking(ctx, existing.ID, w, trainer.ID); err != nil {
			if errors.Is(err, store.ErrConflict) {
				return ErrNoAvailableTrainer
			}
			return err
		}
		if in.ReplaceRoutines {
			if err := tx.ReplaceRoutines(ctx, existing.ID, in.RoutineIDs); err != nil {
				return err
			}
		}

		existing.TrainerID = trainer.ID
		existing.SetWindow(w)
		out = existing
		return nil
	})
	if err != nil {
		return domain.Booking{}, err
	}
	return out, nil
}

// Cancel deletes a personal booking and its routines. Bookings of other
// members are reported as not found.
func (s *Service) Cancel(ctx context.Context, memberID string, bookingID uuid.UUID) (err error) {
	const op = "cancel"
	started := time.Now()
	defer func() { s.finish(op, started, err, "member_id", memberID, "booking_id", bookingID) }()

	memberID = strings.TrimSpace(memberID)
	if memberID == "" {
		return validationError("member_id is required")
	}
	if bookingID == uuid.Nil {
		return validationError("booking_id is required")
	}

	return s.runLocked(ctx, op, nil, func(ctx context.Context, tx store.SessionTx) error {
		if _, err := ownedBooking(ctx, tx, memberID, bookingID); err != nil {
			return err
		}
		return tx.DeleteBooking(ctx, bookingID)
	})
}

func ownedBooking(ctx context.Context, tx store.SessionTx, memberID string, id uuid.UUID) (domain.Booking, error) {
	b, err := tx.GetBooking(ctx, id)
	if err != nil {
		return domain.Booking{}, err
	}
	if b.Kind != domain.BookingKindPersonal || b.OwnerID != memberID {
		return domain.Booking{}, store.ErrNotFound
	}
	return b, nil
}

func validateRoutines(ids []int64) error {
	for _, id := range ids {
		if id <= 0 {
			return validationError("routine ids must be positive")
		}
	}
	return nil
}
