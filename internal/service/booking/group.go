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

var ErrRoomUnavailable = errors.New("room unavailable")

type GroupSessionInput struct {
	Title     string
	RoomID    int64
	TrainerID int64
	Window    domain.TimeWindow
}

// ReserveGroupSession creates a group session led by a fixed trainer. The
// trainer's window is occupied by a group booking owned by the session.
func (s *Service) ReserveGroupSession(ctx context.Context, in GroupSessionInput) (gs domain.GroupSession, err error) {
	const op = "reserve_group"
	started := time.Now()
	defer func() {
		s.finish(op, started, err, "trainer_id", in.TrainerID, "room_id", in.RoomID, "window", in.Window.String())
	}()

	title := strings.TrimSpace(in.Title)
	if title == "" {
		return domain.GroupSession{}, validationError("title is required")
	}
	if in.RoomID <= 0 {
		return domain.GroupSession{}, validationError("room_id is required")
	}
	if in.TrainerID <= 0 {
		return domain.GroupSession{}, validationError("trainer_id is required")
	}
	if err := in.Window.Validate(); err != nil {
		return domain.GroupSession{}, invalidWindow(err)
	}
	w := domain.NewTimeWindow(in.Window.Date, in.Window.Start, in.Window.End)

	err = s.runLocked(ctx, op, []time.Time{w.Date}, func(ctx context.Context, tx store.SessionTx) error {
		trainers, ix, err := snapshot(ctx, tx, w)
		if err != nil {
			return err
		}
		if !containsTrainer(trainers, in.TrainerID) {
			return store.ErrNotFound
		}
		if !ix.IsFree(in.TrainerID, w, uuid.Nil) {
			return ErrNoAvailableTrainer
		}

		trainerID := in.TrainerID
		created, err := tx.InsertGroupSession(ctx, domain.GroupSession{
			Title:       title,
			RoomID:      in.RoomID,
			TrainerID:   &trainerID,
			SessionDate: w.Date,
			StartSec:    w.Start,
			EndSec:      w.End,
		})
		if err != nil {
			if errors.Is(err, store.ErrConflict) {
				return ErrRoomUnavailable
			}
			return err
		}

		b := domain.Booking{
			TrainerID: in.TrainerID,
			Kind:      domain.BookingKindGroup,
			OwnerID:   created.ID.String(),
		}
		b.SetWindow(w)
		if _, err := tx.InsertBooking(ctx, b); err != nil {
			if errors.Is(err, store.ErrConflict) {
				return ErrNoAvailableTrainer
			}
			return err
		}

		gs = created
		return nil
	})
	if err != nil {
		return domain.GroupSession{}, err
	}
	return gs, nil
}

// JoinGroupSession records the member's attendance. Trainer availability is
// not consulted.
func (s *Service) JoinGroupSession(ctx context.Context, memberID string, sessionID uuid.UUID) (err error) {
	const op = "join_group"
	started := time.Now()
	defer func() { s.finish(op, started, err, "member_id", memberID, "group_session_id", sessionID) }()

	memberID = strings.TrimSpace(memberID)
	if memberID == "" {
		return validationError("member_id is required")
	}
	if sessionID == uuid.Nil {
		return validationError("group_session_id is required")
	}
	return s.reg.JoinGroupSession(ctx, memberID, sessionID)
}

func (s *Service) WithdrawGroupSession(ctx context.Context, memberID string, sessionID uuid.UUID) (err error) {
	const op = "withdraw_group"
	started := time.Now()
	defer func() { s.finish(op, started, err, "member_id", memberID, "group_session_id", sessionID) }()

	memberID = strings.TrimSpace(memberID)
	if memberID == "" {
		return validationError("member_id is required")
	}
	if sessionID == uuid.Nil {
		return validationError("group_session_id is required")
	}
	return s.reg.WithdrawGroupSession(ctx, memberID, sessionID)
}

func containsTrainer(trainers []domain.Trainer, id int64) bool {
	for _, t := range trainers {
		if t.ID == id {
			return true
		}
	}
	return false
}
