package api

import (
	"context"
	"fmt"

	"staybook/internal/domain"
	"staybook/internal/models"
	"staybook/internal/service"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

const ReservationServiceName = "staybook.reservation.v1.ReservationService"

// ReservationServer is the gRPC reservation surface. Requests and
// responses are google.protobuf.Struct documents shaped like the HTTP
// JSON bodies.
type ReservationServer interface {
	CreateReservation(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	CancelReservation(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	ListReservations(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	ListBookedDates(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
}

type unaryCall func(srv ReservationServer, ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)

func unaryHandler(method string, call unaryCall) func(any, context.Context, func(any) error, grpc.UnaryServerInterceptor) (any, error) {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(ReservationServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{
			Server:     srv,
			FullMethod: "/" + ReservationServiceName + "/" + method,
		}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(ReservationServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

var ReservationServiceDesc = grpc.ServiceDesc{
	ServiceName: ReservationServiceName,
	HandlerType: (*ReservationServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "CreateReservation", Handler: unaryHandler("CreateReservation", ReservationServer.CreateReservation)},
		{MethodName: "CancelReservation", Handler: unaryHandler("CancelReservation", ReservationServer.CancelReservation)},
		{MethodName: "ListReservations", Handler: unaryHandler("ListReservations", ReservationServer.ListReservations)},
		{MethodName: "ListBookedDates", Handler: unaryHandler("ListBookedDates", ReservationServer.ListBookedDates)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "staybook/reservation/v1/reservation.proto",
}

// ReservationService adapts the reservation service to gRPC.
type ReservationService struct {
	svc *service.ReservationService
}

var _ ReservationServer = (*ReservationService)(nil)

func NewReservationService(svc *service.ReservationService) *ReservationService {
	return &ReservationService{svc: svc}
}

func (s *ReservationService) CreateReservation(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	caller, err := requireCaller(ctx)
	if err != nil {
		return nil, grpcError(err)
	}

	fields := req.GetFields()
	in := service.CreateReservationInput{
		AccommodationID: numberField(fields, "accommodation_id"),
		RoomID:          numberField(fields, "room_id"),
		StartDate:       stringField(fields, "start_date"),
		EndDate:         stringField(fields, "end_date"),
	}

	res, err := s.svc.Create(ctx, caller, in)
	if err != nil {
		return nil, grpcError(err)
	}
	return newStruct(reservationFields(res))
}

func (s *ReservationService) CancelReservation(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	caller, err := requireCaller(ctx)
	if err != nil {
		return nil, grpcError(err)
	}
	id := numberField(req.GetFields(), "reservation_id")
	if id == nil {
		return nil, grpcError(domain.Unprocessable("reservation_id is required"))
	}

	res, err := s.svc.Cancel(ctx, caller, *id)
	if err != nil {
		return nil, grpcError(err)
	}
	resp := toCancelResponse(res)
	return newStruct(map[string]any{
		"message": resp.Message,
		"reservation": map[string]any{
			"id":                resp.Reservation.ID,
			"status":            resp.Reservation.Status,
			"room_availability": resp.Reservation.RoomAvailability,
		},
	})
}

func (s *ReservationService) ListReservations(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	caller, err := requireCaller(ctx)
	if err != nil {
		return nil, grpcError(err)
	}

	views, err := s.svc.List(ctx, caller)
	if err != nil {
		return nil, grpcError(err)
	}
	list := make([]any, 0, len(views))
	for _, v := range views {
		m := reservationFields(&v.Reservation)
		m["room_type"] = v.RoomType
		m["room_image"] = v.RoomImage
		m["room_description"] = v.RoomDescription
		m["room_price"] = v.RoomPrice
		list = append(list, m)
	}
	return newStruct(map[string]any{"reservations": list})
}

func (s *ReservationService) ListBookedDates(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	roomID := numberField(req.GetFields(), "room_id")
	if roomID == nil {
		return nil, grpcError(domain.Unprocessable("room_id is required"))
	}

	ranges, err := s.svc.BookedDates(ctx, *roomID)
	if err != nil {
		return nil, grpcError(err)
	}
	list := make([]any, 0, len(ranges))
	for _, br := range toBookedResponses(ranges) {
		list = append(list, map[string]any{
			"reservation_id": br.ReservationID,
			"start_date":     br.StartDate,
			"end_date":       br.EndDate,
			"status":         br.Status,
		})
	}
	return newStruct(map[string]any{"booked_dates": list})
}

func reservationFields(r *models.Reservation) map[string]any {
	resp := toReservationResponse(r)
	return map[string]any{
		"id":               resp.ID,
		"user_id":          resp.UserID,
		"accommodation_id": resp.AccommodationID,
		"room_id":          resp.RoomID,
		"start_date":       resp.StartDate,
		"end_date":         resp.EndDate,
		"status":           resp.Status,
	}
}

func newStruct(m map[string]any) (*structpb.Struct, error) {
	st, err := structpb.NewStruct(m)
	if err != nil {
		return nil, grpcError(fmt.Errorf("encode response: %w", err))
	}
	return st, nil
}

// numberField returns nil when key is absent or not a whole number.
func numberField(fields map[string]*structpb.Value, key string) *int64 {
	v, ok := fields[key]
	if !ok {
		return nil
	}
	n, ok := v.GetKind().(*structpb.Value_NumberValue)
	if !ok || n.NumberValue != float64(int64(n.NumberValue)) {
		return nil
	}
	out := int64(n.NumberValue)
	return &out
}

func stringField(fields map[string]*structpb.Value, key string) *string {
	v, ok := fields[key]
	if !ok {
		return nil
	}
	sv, ok := v.GetKind().(*structpb.Value_StringValue)
	if !ok {
		return nil
	}
	return &sv.StringValue
}
