package grpc

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"trainerslot/internal/domain"
	"trainerslot/internal/service/booking"
	"trainerslot/internal/store"
)

type BookingServer struct {
	svc bookingService
	log *slog.Logger
}

var _ BookingServiceServer = (*BookingServer)(nil)

type bookingService interface {
	SchedulePersonal(ctx context.Context, in booking.ScheduleInput) (domain.Booking, error)
	Reschedule(ctx context.Context, in booking.RescheduleInput) (domain.Booking, error)
	Cancel(ctx context.Context, memberID string, bookingID uuid.UUID) error
	FreeTrainers(ctx context.Context, w domain.TimeWindow) ([]domain.Trainer, error)
	ReserveGroupSession(ctx context.Context, in booking.GroupSessionInput) (domain.GroupSession, error)
	JoinGroupSession(ctx context.Context, memberID string, sessionID uuid.UUID) error
	WithdrawGroupSession(ctx context.Context, memberID string, sessionID uuid.UUID) error
	ListMemberBookings(ctx context.Context, memberID string, rng domain.DateRange) ([]domain.Booking, error)
	ListGroupSessions(ctx context.Context, rng domain.DateRange) ([]domain.GroupSession, error)
	ListMemberGroupSessions(ctx context.Context, memberID string, rng domain.DateRange) ([]domain.GroupSession, error)
	ListSessionRoutines(ctx context.Context, memberID string, bookingID uuid.UUID) ([]int64, error)
}

func NewBookingServer(svc bookingService, log *slog.Logger) *BookingServer {
	if log == nil {
		log = slog.Default()
	}
	return &BookingServer{
		svc: svc,
		log: log.With(slog.String("component", "grpc.booking")),
	}
}

func (s *BookingServer) SchedulePersonal(ctx context.Context, req *SchedulePersonalRequest) (*SchedulePersonalResponse, error) {
	log := s.log.With(slog.String("rpc", "SchedulePersonal"))

	if req == nil {
		log.Warn("invalid request", slog.String("reason", "nil_request"))
		return nil, status.Error(codes.InvalidArgument, "request is required")
	}
	w, err := parseWindow(req.Window)
	if err != nil {
		log.Warn("invalid request", slog.String("reason", "invalid_window"), slog.String("member_id", req.MemberID))
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	b, err := s.svc.SchedulePersonal(ctx, booking.ScheduleInput{
		MemberID:       req.MemberID,
		Window:         w,
		RoutineIDs:     req.RoutineIDs,
		IdempotencyKey: idempotencyKey(ctx),
	})
	if err != nil {
		return nil, s.fail(log, err, slog.String("member_id", req.MemberID), slog.String("window", w.String()))
	}

	log.Info(
		"personal session scheduled",
		slog.String("booking_id", b.ID.String()),
		slog.String("member_id", b.OwnerID),
		slog.Int64("trainer_id", b.TrainerID),
		slog.String("window", b.Window().String()),
	)
	return &SchedulePersonalResponse{Booking: toWireBooking(b)}, nil
}

func (s *BookingServer) Reschedule(ctx context.Context, req *RescheduleRequest) (*RescheduleResponse, error) {
	log := s.log.With(slog.String("rpc", "Reschedule"))

	if req == nil {
		log.Warn("invalid request", slog.String("reason", "nil_request"))
		return nil, status.Error(codes.InvalidArgument, "request is required")
	}
	id, err := uuid.Parse(req.BookingID)
	if err != nil {
		log.Warn("invalid request", slog.String("reason", "invalid_uuid"), slog.String("member_id", req.MemberID))
		return nil, status.Error(codes.InvalidArgument, "booking_id must be a UUID")
	}
	w, err := parseWindow(req.Window)
	if err != nil {
		log.Warn("invalid request", slog.String("reason", "invalid_window"), slog.String("member_id", req.MemberID))
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	b, err := s.svc.Reschedule(ctx, booking.RescheduleInput{
		MemberID:        req.MemberID,
		BookingID:       id,
		Window:          w,
		RoutineIDs:      req.RoutineIDs,
		ReplaceRoutines: req.ReplaceRoutines,
	})
	if err != nil {
		return nil, s.fail(log, err, slog.String("booking_id", id.String()), slog.String("member_id", req.MemberID))
	}

	log.Info(
		"personal session rescheduled",
		slog.String("booking_id", b.ID.String()),
		slog.Int64("trainer_id", b.TrainerID),
		slog.String("window", b.Window().String()),
	)
	return &RescheduleResponse{Booking: toWireBooking(b)}, nil
}

func (s *BookingServer) Cancel(ctx context.Context, req *CancelRequest) (*CancelResponse, error) {
	log := s.log.With(slog.String("rpc", "Cancel"))

	if req == nil {
		log.Warn("invalid request", slog.String("reason", "nil_request"))
		return nil, status.Error(codes.InvalidArgument, "request is required")
	}
	id, err := uuid.Parse(req.BookingID)
	if err != nil {
		log.Warn("invalid request", slog.String("reason", "invalid_uuid"), slog.String("member_id", req.MemberID))
		return nil, status.Error(codes.InvalidArgument, "booking_id must be a UUID")
	}

	if err := s.svc.Cancel(ctx, req.MemberID, id); err != nil {
		return nil, s.fail(log, err, slog.String("booking_id", id.String()), slog.String("member_id", req.MemberID))
	}

	log.Info("personal session cancelled", slog.String("booking_id", id.String()), slog.String("member_id", req.MemberID))
	return &CancelResponse{}, nil
}

func (s *BookingServer) FreeTrainers(ctx context.Context, req *FreeTrainersRequest) (*FreeTrainersResponse, error) {
	log := s.log.With(slog.String("rpc", "FreeTrainers"))

	if req == nil {
		log.Warn("invalid request", slog.String("reason", "nil_request"))
		return nil, status.Error(codes.InvalidArgument, "request is required")
	}
	w, err := parseWindow(req.Window)
	if err != nil {
		log.Warn("invalid request", slog.String("reason", "invalid_window"))
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	trainers, err := s.svc.FreeTrainers(ctx, w)
	if err != nil {
		return nil, s.fail(log, err, slog.String("window", w.String()))
	}

	out := make([]Trainer, 0, len(trainers))
	for _, t := range trainers {
		out = append(out, Trainer{ID: t.ID, DisplayName: t.DisplayName})
	}

	log.Debug("free trainers listed", slog.String("window", w.String()), slog.Int("count", len(out)))
	return &FreeTrainersResponse{Trainers: out}, nil
}

func (s *BookingServer) ReserveGroupSession(ctx context.Context, req *ReserveGroupSessionRequest) (*ReserveGroupSessionResponse, error) {
	log := s.log.With(slog.String("rpc", "ReserveGroupSession"))

	if req == nil {
		log.Warn("invalid request", slog.String("reason", "nil_request"))
		return nil, status.Error(codes.InvalidArgument, "request is required")
	}
	w, err := parseWindow(req.Window)
	if err != nil {
		log.Warn("invalid request", slog.String("reason", "invalid_window"), slog.Int64("trainer_id", req.TrainerID))
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	gs, err := s.svc.ReserveGroupSession(ctx, booking.GroupSessionInput{
		Title:     req.Title,
		RoomID:    req.RoomID,
		TrainerID: req.TrainerID,
		Window:    w,
	})
	if err != nil {
		return nil, s.fail(log, err, slog.Int64("trainer_id", req.TrainerID), slog.Int64("room_id", req.RoomID))
	}

	log.Info(
		"group session reserved",
		slog.String("group_session_id", gs.ID.String()),
		slog.Int64("trainer_id", req.TrainerID),
		slog.Int64("room_id", gs.RoomID),
		slog.String("window", gs.Window().String()),
	)
	return &ReserveGroupSessionResponse{GroupSession: toWireGroupSession(gs)}, nil
}

func (s *BookingServer) JoinGroupSession(ctx context.Context, req *GroupMembershipRequest) (*GroupMembershipResponse, error) {
	return s.membership(ctx, "JoinGroupSession", req, s.svc.JoinGroupSession)
}

func (s *BookingServer) WithdrawGroupSession(ctx context.Context, req *GroupMembershipRequest) (*GroupMembershipResponse, error) {
	return s.membership(ctx, "WithdrawGroupSession", req, s.svc.WithdrawGroupSession)
}

func (s *BookingServer) membership(ctx context.Context, rpc string, req *GroupMembershipRequest, call func(context.Context, string, uuid.UUID) error) (*GroupMembershipResponse, error) {
	log := s.log.With(slog.String("rpc", rpc))

	if req == nil {
		log.Warn("invalid request", slog.String("reason", "nil_request"))
		return nil, status.Error(codes.InvalidArgument, "request is required")
	}
	id, err := uuid.Parse(req.GroupSessionID)
	if err != nil {
		log.Warn("invalid request", slog.String("reason", "invalid_uuid"), slog.String("member_id", req.MemberID))
		return nil, status.Error(codes.InvalidArgument, "group_session_id must be a UUID")
	}

	if err := call(ctx, req.MemberID, id); err != nil {
		return nil, s.fail(log, err, slog.String("group_session_id", id.String()), slog.String("member_id", req.MemberID))
	}

	log.Info("group membership updated", slog.String("group_session_id", id.String()), slog.String("member_id", req.MemberID))
	return &GroupMembershipResponse{}, nil
}

func (s *BookingServer) ListMemberBookings(ctx context.Context, req *ListMemberBookingsRequest) (*ListMemberBookingsResponse, error) {
	log := s.log.With(slog.String("rpc", "ListMemberBookings"))

	if req == nil {
		log.Warn("invalid request", slog.String("reason", "nil_request"))
		return nil, status.Error(codes.InvalidArgument, "request is required")
	}
	rng, err := parseDateRange(req.From, req.To)
	if err != nil {
		log.Warn("invalid request", slog.String("reason", "invalid_range"), slog.String("member_id", req.MemberID))
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	rows, err := s.svc.ListMemberBookings(ctx, req.MemberID, rng)
	if err != nil {
		return nil, s.fail(log, err, slog.String("member_id", req.MemberID))
	}

	out := make([]Booking, 0, len(rows))
	for _, b := range rows {
		out = append(out, *toWireBooking(b))
	}

	log.Debug("member bookings listed", slog.String("member_id", req.MemberID), slog.Int("count", len(out)))
	return &ListMemberBookingsResponse{Bookings: out}, nil
}

func (s *BookingServer) ListGroupSessions(ctx context.Context, req *ListGroupSessionsRequest) (*ListGroupSessionsResponse, error) {
	log := s.log.With(slog.String("rpc", "ListGroupSessions"))

	if req == nil {
		log.Warn("invalid request", slog.String("reason", "nil_request"))
		return nil, status.Error(codes.InvalidArgument, "request is required")
	}
	rng, err := parseDateRange(req.From, req.To)
	if err != nil {
		log.Warn("invalid request", slog.String("reason", "invalid_range"))
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	rows, err := s.svc.ListGroupSessions(ctx, rng)
	if err != nil {
		return nil, s.fail(log, err)
	}

	out := make([]GroupSession, 0, len(rows))
	for _, g := range rows {
		out = append(out, *toWireGroupSession(g))
	}

	log.Debug("group sessions listed", slog.Int("count", len(out)))
	return &ListGroupSessionsResponse{GroupSessions: out}, nil
}

func (s *BookingServer) ListMemberGroupSessions(ctx context.Context, req *ListMemberGroupSessionsRequest) (*ListGroupSessionsResponse, error) {
	log := s.log.With(slog.String("rpc", "ListMemberGroupSessions"))

	if req == nil {
		log.Warn("invalid request", slog.String("reason", "nil_request"))
		return nil, status.Error(codes.InvalidArgument, "request is required")
	}
	rng, err := parseDateRange(req.From, req.To)
	if err != nil {
		log.Warn("invalid request", slog.String("reason", "invalid_range"), slog.String("member_id", req.MemberID))
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	rows, err := s.svc.ListMemberGroupSessions(ctx, req.MemberID, rng)
	if err != nil {
		return nil, s.fail(log, err, slog.String("member_id", req.MemberID))
	}

	out := make([]GroupSession, 0, len(rows))
	for _, g := range rows {
		out = append(out, *toWireGroupSession(g))
	}

	log.Debug("member group sessions listed", slog.String("member_id", req.MemberID), slog.Int("count", len(out)))
	return &ListGroupSessionsResponse{GroupSessions: out}, nil
}

func (s *BookingServer) ListSessionRoutines(ctx context.Context, req *ListSessionRoutinesRequest) (*ListSessionRoutinesResponse, error) {
	log := s.log.With(slog.String("rpc", "ListSessionRoutines"))

	if req == nil {
		log.Warn("invalid request", slog.String("reason", "nil_request"))
		return nil, status.Error(codes.InvalidArgument, "request is required")
	}
	id, err := uuid.Parse(req.BookingID)
	if err != nil {
		log.Warn("invalid request", slog.String("reason", "invalid_uuid"), slog.String("member_id", req.MemberID))
		return nil, status.Error(codes.InvalidArgument, "booking_id must be a UUID")
	}

	routines, err := s.svc.ListSessionRoutines(ctx, req.MemberID, id)
	if err != nil {
		return nil, s.fail(log, err, slog.String("booking_id", id.String()), slog.String("member_id", req.MemberID))
	}
	if routines == nil {
		routines = []int64{}
	}

	log.Debug("session routines listed", slog.String("booking_id", id.String()), slog.Int("count", len(routines)))
	return &ListSessionRoutinesResponse{RoutineIDs: routines}, nil
}

// fail maps a service error onto a gRPC status and logs it at the level the
// outcome deserves.
func (s *BookingServer) fail(log *slog.Logger, err error, attrs ...any) error {
	var vErr *booking.ValidationError
	switch {
	case errors.As(err, &vErr):
		log.Warn("invalid request", append(attrs, slog.Any("err", err))...)
		return status.Error(codes.InvalidArgument, vErr.Error())
	case errors.Is(err, booking.ErrNoAvailableTrainer):
		log.Info("no trainer available", attrs...)
		return status.Error(codes.FailedPrecondition, "No trainer is free during that time. Pick a different slot.")
	case errors.Is(err, booking.ErrRoomUnavailable):
		log.Info("room unavailable", attrs...)
		return status.Error(codes.FailedPrecondition, "The room is already reserved during that time.")
	case errors.Is(err, store.ErrIdempotencyConflict):
		log.Info("idempotency conflict", attrs...)
		return status.Error(codes.FailedPrecondition, "This request key was already used for a different booking. Try again.")
	case errors.Is(err, store.ErrNotFound):
		log.Info("not found", attrs...)
		return status.Error(codes.NotFound, "not found")
	case errors.Is(err, store.ErrConflict):
		log.Info("already exists", attrs...)
		return status.Error(codes.AlreadyExists, "already exists")
	case errors.Is(err, store.ErrBusy):
		log.Warn("schedule busy", append(attrs, slog.Any("err", err))...)
		return status.Error(codes.Unavailable, "The schedule is busy. Try again shortly.")
	case errors.Is(err, context.DeadlineExceeded):
		log.Warn("request timed out", attrs...)
		return status.Error(codes.DeadlineExceeded, "request timed out")
	case errors.Is(err, context.Canceled):
		log.Info("request cancelled", attrs...)
		return status.Error(codes.Canceled, "request cancelled")
	default:
		log.Error("request failed", append(attrs, slog.Any("err", err))...)
		return status.Error(codes.Internal, "internal error")
	}
}

func parseWindow(w *Window) (domain.TimeWindow, error) {
	if w == nil {
		return domain.TimeWindow{}, errors.New("window is required")
	}
	return domain.ParseTimeWindow(w.Date, w.Start, w.End)
}

func idempotencyKey(ctx context.Context) string {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ""
	}
	values := md.Get("idempotency-key")
	if len(values) == 0 {
		values = md.Get("x-idempotency-key")
	}
	if len(values) == 0 {
		return ""
	}
	return strings.TrimSpace(values[0])
}
