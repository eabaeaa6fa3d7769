package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type BookingKind string

const (
	BookingKindPersonal BookingKind = "personal"
	BookingKindGroup    BookingKind = "group"
)

type Trainer struct {
	bun.BaseModel `bun:"table:trainers"`

	ID          int64  `bun:"id,pk"`
	DisplayName string `bun:"display_name,notnull"`
}

// Booking occupies one trainer for one window. Personal bookings are owned by a
// member id, group bookings by the group session id.
type Booking struct {
	bun.BaseModel `bun:"table:bookings"`

	ID          uuid.UUID   `bun:"id,pk,type:uuid"`
	TrainerID   int64       `bun:"trainer_id,notnull"`
	SessionDate time.Time   `bun:"session_date,notnull,type:date"`
	StartSec    TimeOfDay   `bun:"start_sec,notnull"`
	EndSec      TimeOfDay   `bun:"end_sec,notnull"`
	Kind        BookingKind `bun:"kind,notnull"`
	OwnerID     string      `bun:"owner_id,notnull"`
	CreatedAt   time.Time   `bun:"created_at,notnull"`
	UpdatedAt   time.Time   `bun:"updated_at,notnull"`
}

func (b Booking) Window() TimeWindow {
	return TimeWindow{Date: Date(b.SessionDate), Start: b.StartSec, End: b.EndSec}
}

func (b *Booking) SetWindow(w TimeWindow) {
	b.SessionDate = Date(w.Date)
	b.StartSec = w.Start
	b.EndSec = w.End
}

func (b *Booking) BeforeAppendModel(ctx context.Context, query bun.Query) error {
	now := time.Now().UTC()
	switch query.(type) {
	case *bun.InsertQuery:
		if b.ID == uuid.Nil {
			id, err := uuid.NewV7()
			if err != nil {
				return err
			}
			b.ID = id
		}
		if b.CreatedAt.IsZero() {
			b.CreatedAt = now
		}
		if b.UpdatedAt.IsZero() {
			b.UpdatedAt = now
		}
	case *bun.UpdateQuery:
		b.UpdatedAt = now
	}
	return nil
}

type SessionRoutine struct {
	bun.BaseModel `bun:"table:session_routines"`

	BookingID uuid.UUID `bun:"booking_id,pk,type:uuid"`
	RoutineID int64     `bun:"routine_id,pk"`
}

// GroupSession is reserved by staff with a fixed room and, optionally, a trainer.
// Members join and withdraw without touching the trainer's availability.
type GroupSession struct {
	bun.BaseModel `bun:"table:group_sessions"`

	ID          uuid.UUID `bun:"id,pk,type:uuid"`
	Title       string    `bun:"title,notnull"`
	RoomID      int64     `bun:"room_id,notnull"`
	TrainerID   *int64    `bun:"trainer_id"`
	SessionDate time.Time `bun:"session_date,notnull,type:date"`
	StartSec    TimeOfDay `bun:"start_sec,notnull"`
	EndSec      TimeOfDay `bun:"end_sec,notnull"`
	CreatedAt   time.Time `bun:"created_at,notnull"`
}

func (g GroupSession) Window() TimeWindow {
	return TimeWindow{Date: Date(g.SessionDate), Start: g.StartSec, End: g.EndSec}
}

func (g *GroupSession) BeforeAppendModel(ctx context.Context, query bun.Query) error {
	if _, ok := query.(*bun.InsertQuery); !ok {
		return nil
	}
	if g.ID == uuid.Nil {
		id, err := uuid.NewV7()
		if err != nil {
			return err
		}
		g.ID = id
	}
	if g.CreatedAt.IsZero() {
		g.CreatedAt = time.Now().UTC()
	}
	return nil
}

type GroupMember struct {
	bun.BaseModel `bun:"table:member_group_sessions"`

	MemberID       string    `bun:"member_id,pk"`
	GroupSessionID uuid.UUID `bun:"group_session_id,pk,type:uuid"`
	JoinedAt       time.Time `bun:"joined_at,notnull"`
}
