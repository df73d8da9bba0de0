package api

import (
	"context"
	"net"
	"testing"
	"time"

	"staybook/internal/config"
	"staybook/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"
)

func startGRPC(t *testing.T, env *testEnv) *grpc.ClientConn {
	t.Helper()
	srv, err := newGRPCServer(config.APIConfig{}, env.svc, nil)
	require.NoError(t, err)

	lis := bufconn.Listen(1 << 20)
	go func() { _ = srv.ServeListener(lis) }()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		srv.Shutdown(ctx)
	})

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func invoke(t *testing.T, env *testEnv, conn *grpc.ClientConn, method string, caller *models.Caller, req map[string]any) (*structpb.Struct, error) {
	t.Helper()
	ctx := context.Background()
	if caller != nil {
		ctx = metadata.AppendToOutgoingContext(ctx, authorizationKey, "Bearer "+env.token(*caller))
	}
	in, err := structpb.NewStruct(req)
	require.NoError(t, err)

	out := new(structpb.Struct)
	err = conn.Invoke(ctx, "/"+ReservationServiceName+"/"+method, in, out)
	return out, err
}

func TestGRPCReservationFlow(t *testing.T) {
	env := newTestEnv(t, config.APIConfig{})
	conn := startGRPC(t, env)

	req := map[string]any{
		"accommodation_id": float64(env.acc.ID),
		"room_id":          float64(env.room.ID),
		"start_date":       "2025-01-01 00:00",
		"end_date":         "2025-02-01 00:00",
	}
	out, err := invoke(t, env, conn, "CreateReservation", &testUser, req)
	require.NoError(t, err)
	id := out.Fields["id"].GetNumberValue()
	assert.NotZero(t, id)
	assert.Equal(t, models.StatusConfirmed, out.Fields["status"].GetStringValue())

	_, err = invoke(t, env, conn, "CreateReservation", &otherUser, req)
	assert.Equal(t, codes.Aborted, status.Code(err))

	out, err = invoke(t, env, conn, "ListReservations", &testUser, map[string]any{})
	require.NoError(t, err)
	list := out.Fields["reservations"].GetListValue().GetValues()
	require.Len(t, list, 1)
	assert.Equal(t, "suite", list[0].GetStructValue().Fields["room_type"].GetStringValue())

	out, err = invoke(t, env, conn, "CancelReservation", &testUser, map[string]any{"reservation_id": id})
	require.NoError(t, err)
	reservation := out.Fields["reservation"].GetStructValue()
	assert.Equal(t, models.StatusCanceled, reservation.Fields["status"].GetStringValue())
	assert.Equal(t, models.AvailabilityAvailable, reservation.Fields["room_availability"].GetStringValue())

	_, err = invoke(t, env, conn, "CancelReservation", &testUser, map[string]any{"reservation_id": id})
	assert.Equal(t, codes.FailedPrecondition, status.Code(err))

	out, err = invoke(t, env, conn, "ListBookedDates", nil, map[string]any{"room_id": float64(env.room.ID)})
	require.NoError(t, err)
	assert.Len(t, out.Fields["booked_dates"].GetListValue().GetValues(), 1)
}

func TestGRPCErrors(t *testing.T) {
	env := newTestEnv(t, config.APIConfig{})
	conn := startGRPC(t, env)

	_, err := invoke(t, env, conn, "ListReservations", nil, map[string]any{})
	assert.Equal(t, codes.Unauthenticated, status.Code(err))

	ctx := metadata.AppendToOutgoingContext(context.Background(), authorizationKey, "Bearer nope")
	err = conn.Invoke(ctx, "/"+ReservationServiceName+"/ListReservations", &structpb.Struct{}, new(structpb.Struct))
	assert.Equal(t, codes.Unauthenticated, status.Code(err))

	_, err = invoke(t, env, conn, "CreateReservation", &testAdmin, map[string]any{})
	assert.Equal(t, codes.PermissionDenied, status.Code(err))

	_, err = invoke(t, env, conn, "CreateReservation", &testUser, map[string]any{"room_id": float64(env.room.ID)})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	_, err = invoke(t, env, conn, "CancelReservation", &testUser, map[string]any{"reservation_id": float64(404)})
	assert.Equal(t, codes.NotFound, status.Code(err))

	_, err = invoke(t, env, conn, "ListBookedDates", nil, map[string]any{"room_id": "one"})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestGRPCHealth(t *testing.T) {
	env := newTestEnv(t, config.APIConfig{})
	conn := startGRPC(t, env)

	resp, err := healthpb.NewHealthClient(conn).Check(context.Background(), &healthpb.HealthCheckRequest{Service: ReservationServiceName})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, resp.GetStatus())
}

func TestNumberField(t *testing.T) {
	st, err := structpb.NewStruct(map[string]any{"a": 3.0, "b": 2.5, "c": "x"})
	require.NoError(t, err)

	n := numberField(st.Fields, "a")
	require.NotNil(t, n)
	assert.Equal(t, int64(3), *n)
	assert.Nil(t, numberField(st.Fields, "b"))
	assert.Nil(t, numberField(st.Fields, "c"))
	assert.Nil(t, numberField(st.Fields, "missing"))
	assert.Equal(t, "x", *stringField(st.Fields, "c"))
	assert.Nil(t, stringField(st.Fields, "a"))
}

func TestBuildTLSConfigValidation(t *testing.T) {
	_, err := buildTLSConfig(config.APITLSConfig{Enabled: true})
	assert.Error(t, err)

	_, err = buildTLSConfig(config.APITLSConfig{Enabled: true, CertFile: "missing.pem", KeyFile: "missing.key"})
	assert.Error(t, err)
}
