package grpc

import (
	"time"

	"trainerslot/internal/domain"
)

// Window carries a date as "2006-01-02" and times of day as "15:04" or "15:04:05".
type Window struct {
	Date  string `json:"date"`
	Start string `json:"start"`
	End   string `json:"end"`
}

type Trainer struct {
	ID          int64  `json:"id"`
	DisplayName string `json:"display_name"`
}

type Booking struct {
	ID        string `json:"id"`
	TrainerID int64  `json:"trainer_id"`
	Window    Window `json:"window"`
	Kind      string `json:"kind"`
	OwnerID   string `json:"owner_id"`
	CreatedAt string `json:"created_at,omitempty"`
	UpdatedAt string `json:"updated_at,omitempty"`
}

type GroupSession struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	RoomID    int64  `json:"room_id"`
	TrainerID *int64 `json:"trainer_id,omitempty"`
	Window    Window `json:"window"`
}

type SchedulePersonalRequest struct {
	MemberID   string  `json:"member_id"`
	Window     *Window `json:"window"`
	RoutineIDs []int64 `json:"routine_ids,omitempty"`
}

type SchedulePersonalResponse struct {
	Booking *Booking `json:"booking"`
}

type RescheduleRequest struct {
	MemberID        string  `json:"member_id"`
	BookingID       string  `json:"booking_id"`
	Window          *Window `json:"window"`
	RoutineIDs      []int64 `json:"routine_ids,omitempty"`
	ReplaceRoutines bool    `json:"replace_routines,omitempty"`
}

type RescheduleResponse struct {
	Booking *Booking `json:"booking"`
}

type CancelRequest struct {
	MemberID  string `json:"member_id"`
	BookingID string `json:"booking_id"`
}

type CancelResponse struct{}

type FreeTrainersRequest struct {
	Window *Window `json:"window"`
}

type FreeTrainersResponse struct {
	Trainers []Trainer `json:"trainers"`
}

type ReserveGroupSessionRequest struct {
	Title     string  `json:"title"`
	RoomID    int64   `json:"room_id"`
	TrainerID int64   `json:"trainer_id"`
	Window    *Window `json:"window"`
}

type ReserveGroupSessionResponse struct {
	GroupSession *GroupSession `json:"group_session"`
}

type GroupMembershipRequest struct {
	MemberID       string `json:"member_id"`
	GroupSessionID string `json:"group_session_id"`
}

type GroupMembershipResponse struct{}

type ListMemberBookingsRequest struct {
	MemberID string `json:"member_id"`
	From     string `json:"from"`
	To       string `json:"to"`
}

type ListMemberBookingsResponse struct {
	Bookings []Booking `json:"bookings"`
}

type ListGroupSessionsRequest struct {
	From string `json:"from"`
	To   string `json:"to"`
}

type ListGroupSessionsResponse struct {
	GroupSessions []GroupSession `json:"group_sessions"`
}

type ListMemberGroupSessionsRequest struct {
	MemberID string `json:"member_id"`
	From     string `json:"from"`
	To       string `json:"to"`
}

type ListSessionRoutinesRequest struct {
	MemberID  string `json:"member_id"`
	BookingID string `json:"booking_id"`
}

type ListSessionRoutinesResponse struct {
	RoutineIDs []int64 `json:"routine_ids"`
}

func toWireWindow(w domain.TimeWindow) Window {
	return Window{Date: w.DayKey(), Start: w.Start.String(), End: w.End.String()}
}

func toWireBooking(b domain.Booking) *Booking {
	out := &Booking{
		ID:        b.ID.String(),
		TrainerID: b.TrainerID,
		Window:    toWireWindow(b.Window()),
		Kind:      string(b.Kind),
		OwnerID:   b.OwnerID,
	}
	if !b.CreatedAt.IsZero() {
		out.CreatedAt = b.CreatedAt.UTC().Format(time.RFC3339)
	}
	if !b.UpdatedAt.IsZero() {
		out.UpdatedAt = b.UpdatedAt.UTC().Format(time.RFC3339)
	}
	return out
}

func toWireGroupSession(g domain.GroupSession) *GroupSession {
	return &GroupSession{
		ID:        g.ID.String(),
		Title:     g.Title,
		RoomID:    g.RoomID,
		TrainerID: g.TrainerID,
		Window:    toWireWindow(g.Window()),
	}
}

// parseDateRange defaults To to From when only From is given.
func parseDateRange(from, to string) (domain.DateRange, error) {
	f, err := domain.ParseDate(from)
	if err != nil {
		return domain.DateRange{}, err
	}
	if to == "" {
		return domain.SingleDay(f), nil
	}
	t, err := domain.ParseDate(to)
	if err != nil {
		return domain.DateRange{}, err
	}
	return domain.DateRange{From: f, To: t}, nil
}
