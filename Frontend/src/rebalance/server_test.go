package main

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	rebalancepb "github.com/ahinestrog/citibike-rebalancer/proto/rebalance"
)

type fakeRebalancer struct {
	rebalancepb.UnimplementedRebalancerServer
	lastPayload map[string]any
}

func (f *fakeRebalancer) Recommend(_ context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	f.lastPayload = in.AsMap()
	if _, ok := f.lastPayload["current_inventory"]; !ok {
		return nil, status.Error(codes.InvalidArgument, "request must include 'current_inventory'")
	}
	if f.lastPayload["fail"] == true {
		return nil, status.Error(codes.Internal, "rebalance: disk full")
	}
	return structpb.NewStruct(map[string]any{
		"run_id": "run-1",
		"recommendations": []any{
			map[string]any{"from_station": "B", "to_station": "A", "bikes_to_move": 8},
			map[string]any{"from_station": "B", "to_station": "C", "bikes_to_move": 3},
		},
	})
}

func (f *fakeRebalancer) GetRun(_ context.Context, in *wrapperspb.StringValue) (*structpb.Struct, error) {
	if in.GetValue() != "run-1" {
		return nil, status.Error(codes.NotFound, "run not found")
	}
	return structpb.NewStruct(map[string]any{
		"run_id":          "run-1",
		"source":          "grpc",
		"recommendations": []any{},
	})
}

func newTestGateway(t *testing.T) (http.Handler, *fakeRebalancer) {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	gs := grpc.NewServer()
	fake := &fakeRebalancer{}
	rebalancepb.RegisterRebalancerServer(gs, fake)
	hs := health.NewServer()
	hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(gs, hs)
	go func() { _ = gs.Serve(lis) }()
	t.Cleanup(gs.Stop)

	cc, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = cc.Close() })

	s := NewServer(rebalancepb.NewRebalancerClient(cc), healthpb.NewHealthClient(cc), 0)
	h, err := s.Routes([]string{"*"})
	require.NoError(t, err)
	return h, fake
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestRootHealth(t *testing.T) {
	h, _ := newTestGateway(t)
	rec := do(t, h, http.MethodGet, "/", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestHealthzProxiesGRPCHealth(t *testing.T) {
	h, _ := newTestGateway(t)
	rec := do(t, h, http.MethodGet, "/healthz", "")
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestRebalanceReturnsMoveList(t *testing.T) {
	h, fake := newTestGateway(t)
	rec := do(t, h, http.MethodPost, "/rebalance", `{
		"demand_forecast": [],
		"current_inventory": [{"station_id": "A", "available_bikes": 5}],
		"max_moves": 10
	}`)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Equal(t, "run-1", rec.Header().Get(runIDHeader))
	require.JSONEq(t, `[
		{"from_station":"B","to_station":"A","bikes_to_move":8},
		{"from_station":"B","to_station":"C","bikes_to_move":3}
	]`, rec.Body.String())
	require.Equal(t, 10.0, fake.lastPayload["max_moves"])
}

func TestRebalanceErrors(t *testing.T) {
	tests := []struct {
		name string
		body string
		code int
		msg  string
	}{
		{"invalid json", `{"current_inventory": [`, http.StatusBadRequest, "invalid JSON: expected an object"},
		{"array body", `[1, 2]`, http.StatusBadRequest, "invalid JSON: expected an object"},
		{"schema rejection", `{"demand_forecast": []}`, http.StatusBadRequest, "request must include 'current_inventory'"},
		{"internal failure", `{"current_inventory": [], "fail": true}`, http.StatusInternalServerError, "rebalance: disk full"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, _ := newTestGateway(t)
			rec := do(t, h, http.MethodPost, "/rebalance", tt.body)
			require.Equal(t, tt.code, rec.Code)

			var body map[string]string
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			require.Equal(t, tt.msg, body["error"])
		})
	}
}

func TestRebalanceBodyLimit(t *testing.T) {
	h, _ := newTestGateway(t)
	big := `{"current_inventory": [], "pad": "` + strings.Repeat("x", int(maxBodyBytes)) + `"}`
	rec := do(t, h, http.MethodPost, "/rebalance", big)
	require.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestGetRun(t *testing.T) {
	h, _ := newTestGateway(t)

	rec := do(t, h, http.MethodGet, "/runs/run-1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"run_id":"run-1","source":"grpc","recommendations":[]}`, rec.Body.String())

	rec = do(t, h, http.MethodGet, "/runs/missing", "")
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.JSONEq(t, `{"error":"run not found"}`, rec.Body.String())
}

func TestCORSPreflight(t *testing.T) {
	h, _ := newTestGateway(t)
	req := httptest.NewRequest(http.MethodOptions, "/rebalance", nil)
	req.Header.Set("Origin", "http://dashboard.local")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}
