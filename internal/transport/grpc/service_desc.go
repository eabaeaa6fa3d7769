package grpc

import (
	"context"

	"google.golang.org/grpc"
)

const BookingServiceName = "trainerslot.v1.BookingService"

type BookingServiceServer interface {
	SchedulePersonal(ctx context.Context, req *SchedulePersonalRequest) (*SchedulePersonalResponse, error)
	Reschedule(ctx context.Context, req *RescheduleRequest) (*RescheduleResponse, error)
	Cancel(ctx context.Context, req *CancelRequest) (*CancelResponse, error)
	FreeTrainers(ctx context.Context, req *FreeTrainersRequest) (*FreeTrainersResponse, error)
	ReserveGroupSession(ctx context.Context, req *ReserveGroupSessionRequest) (*ReserveGroupSessionResponse, error)
	JoinGroupSession(ctx context.Context, req *GroupMembershipRequest) (*GroupMembershipResponse, error)
	WithdrawGroupSession(ctx context.Context, req *GroupMembershipRequest) (*GroupMembershipResponse, error)
	ListMemberBookings(ctx context.Context, req *ListMemberBookingsRequest) (*ListMemberBookingsResponse, error)
	ListGroupSessions(ctx context.Context, req *ListGroupSessionsRequest) (*ListGroupSessionsResponse, error)
	ListMemberGroupSessions(ctx context.Context, req *ListMemberGroupSessionsRequest) (*ListGroupSessionsResponse, error)
	ListSessionRoutines(ctx context.Context, req *ListSessionRoutinesRequest) (*ListSessionRoutinesResponse, error)
}

// BookingServiceDesc describes the JSON-coded booking service. Messages are the
// plain structs in messages.go.
var BookingServiceDesc = grpc.ServiceDesc{
	ServiceName: BookingServiceName,
	HandlerType: (*BookingServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "SchedulePersonal", Handler: unaryHandler("SchedulePersonal", BookingServiceServer.SchedulePersonal)},
		{MethodName: "Reschedule", Handler: unaryHandler("Reschedule", BookingServiceServer.Reschedule)},
		{MethodName: "Cancel", Handler: unaryHandler("Cancel", BookingServiceServer.Cancel)},
		{MethodName: "FreeTrainers", Handler: unaryHandler("FreeTrainers", BookingServiceServer.FreeTrainers)},
		{MethodName: "ReserveGroupSession", Handler: unaryHandler("ReserveGroupSession", BookingServiceServer.ReserveGroupSession)},
		{MethodName: "JoinGroupSession", Handler: unaryHandler("JoinGroupSession", BookingServiceServer.JoinGroupSession)},
		{MethodName: "WithdrawGroupSession", Handler: unaryHandler("WithdrawGroupSession", BookingServiceServer.WithdrawGroupSession)},
		{MethodName: "ListMemberBookings", Handler: unaryHandler("ListMemberBookings", BookingServiceServer.ListMemberBookings)},
		{MethodName: "ListGroupSessions", Handler: unaryHandler("ListGroupSessions", BookingServiceServer.ListGroupSessions)},
		{MethodName: "ListMemberGroupSessions", Handler: unaryHandler("ListMemberGroupSessions", BookingServiceServer.ListMemberGroupSessions)},
		{MethodName: "ListSessionRoutines", Handler: unaryHandler("ListSessionRoutines", BookingServiceServer.ListSessionRoutines)},
	},
	Streams: []grpc.StreamDesc{},
}

func RegisterBookingServiceServer(s grpc.ServiceRegistrar, srv BookingServiceServer) {
	s.RegisterService(&BookingServiceDesc, srv)
}

func unaryHandler[Req, Resp any](method string, call func(BookingServiceServer, context.Context, *Req) (*Resp, error)) grpc.MethodHandler {
	fullMethod := "/" + BookingServiceName + "/" + method
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(BookingServiceServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(BookingServiceServer), ctx, req.(*Req))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// BookingServiceClient calls the booking service with the JSON codec.
type BookingServiceClient struct {
	cc grpc.ClientConnInterface
}

func NewBookingServiceClient(cc grpc.ClientConnInterface) *BookingServiceClient {
	return &BookingServiceClient{cc: cc}
}

func (c *BookingServiceClient) SchedulePersonal(ctx context.Context, in *SchedulePersonalRequest, opts ...grpc.CallOption) (*SchedulePersonalResponse, error) {
	return invoke[SchedulePersonalResponse](ctx, c.cc, "SchedulePersonal", in, opts)
}

func (c *BookingServiceClient) Reschedule(ctx context.Context, in *RescheduleRequest, opts ...grpc.CallOption) (*RescheduleResponse, error) {
	return invoke[RescheduleResponse](ctx, c.cc, "Reschedule", in, opts)
}

func (c *BookingServiceClient) Cancel(ctx context.Context, in *CancelRequest, opts ...grpc.CallOption) (*CancelResponse, error) {
	return invoke[CancelResponse](ctx, c.cc, "Cancel", in, opts)
}

func (c *BookingServiceClient) FreeTrainers(ctx context.Context, in *FreeTrainersRequest, opts ...grpc.CallOption) (*FreeTrainersResponse, error) {
	return invoke[FreeTrainersResponse](ctx, c.cc, "FreeTrainers", in, opts)
}

func (c *BookingServiceClient) ReserveGroupSession(ctx context.Context, in *ReserveGroupSessionRequest, opts ...grpc.CallOption) (*ReserveGroupSessionResponse, error) {
	return invoke[ReserveGroupSessionResponse](ctx, c.cc, "ReserveGroupSession", in, opts)
}

func (c *BookingServiceClient) JoinGroupSession(ctx context.Context, in *GroupMembershipRequest, opts ...grpc.CallOption) (*GroupMembershipResponse, error) {
	return invoke[GroupMembershipResponse](ctx, c.cc, "JoinGroupSession", in, opts)
}

func (c *BookingServiceClient) WithdrawGroupSession(ctx context.Context, in *GroupMembershipRequest, opts ...grpc.CallOption) (*GroupMembershipResponse, error) {
	return invoke[GroupMembershipResponse](ctx, c.cc, "WithdrawGroupSession", in, opts)
}

func (c *BookingServiceClient) ListMemberBookings(ctx context.Context, in *ListMemberBookingsRequest, opts ...grpc.CallOption) (*ListMemberBookingsResponse, error) {
	return invoke[ListMemberBookingsResponse](ctx, c.cc, "ListMemberBookings", in, opts)
}

func (c *BookingServiceClient) ListGroupSessions(ctx context.Context, in *ListGroupSessionsRequest, opts ...grpc.CallOption) (*ListGroupSessionsResponse, error) {
	return invoke[ListGroupSessionsResponse](ctx, c.cc, "ListGroupSessions", in, opts)
}

func (c *BookingServiceClient) ListMemberGroupSessions(ctx context.Context, in *ListMemberGroupSessionsRequest, opts ...grpc.CallOption) (*ListGroupSessionsResponse, error) {
	return invoke[ListGroupSessionsResponse](ctx, c.cc, "ListMemberGroupSessions", in, opts)
}

func (c *BookingServiceClient) ListSessionRoutines(ctx context.Context, in *ListSessionRoutinesRequest, opts ...grpc.CallOption) (*ListSessionRoutinesResponse, error) {
	return invoke[ListSessionRoutinesResponse](ctx, c.cc, "ListSessionRoutines", in, opts)
}

func invoke[Resp any](ctx context.Context, cc grpc.ClientConnInterface, method string, in any, opts []grpc.CallOption) (*Resp, error) {
	out := new(Resp)
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	if err := cc.Invoke(ctx, "/"+BookingServiceName+"/"+method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
