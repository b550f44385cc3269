package main

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/grpc-ecosystem/grpc-gateway/v2/runtime"
	"github.com/joho/godotenv"
	"github.com/rs/cors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	rebalancepb "github.com/ahinestrog/citibike-rebalancer/proto/rebalance"
)

const (
	maxBodyBytes int64 = 1 << 20
	runIDHeader        = "X-Rebalance-Run-Id"
)

type Server struct {
	client    rebalancepb.RebalancerClient
	health    healthpb.HealthClient
	timeout   time.Duration
	marshaler *runtime.JSONPb
}

func NewServer(client rebalancepb.RebalancerClient, health healthpb.HealthClient, timeout time.Duration) *Server {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Server{
		client:  client,
		health:  health,
		timeout: timeout,
		marshaler: &runtime.JSONPb{
			MarshalOptions:   protojson.MarshalOptions{UseProtoNames: true},
			UnmarshalOptions: protojson.UnmarshalOptions{DiscardUnknown: true},
		},
	}
}

func getenv(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}

func main() {
	_ = godotenv.Load()
	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout})

	addr := getenv("GATEWAY_HTTP_ADDR", ":8090")
	target := getenv("REBALANCER_GRPC_TARGET", "localhost:50060")
	timeout, err := time.ParseDuration(getenv("GATEWAY_TIMEOUT", "5s"))
	if err != nil {
		log.Fatal().Err(err).Msg("GATEWAY_TIMEOUT")
	}
	origins := strings.Split(getenv("GATEWAY_CORS_ORIGINS", "*"), ",")

	cc, err := grpc.NewClient(target, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		log.Fatal().Err(err).Str("target", target).Msg("dial rebalancer grpc")
	}
	defer cc.Close()

	s := NewServer(rebalancepb.NewRebalancerClient(cc), healthpb.NewHealthClient(cc), timeout)
	handler, err := s.Routes(origins)
	if err != nil {
		log.Fatal().Err(err).Msg("routes")
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      timeout + 5*time.Second,
		IdleTimeout:       60 * time.Second,
	}
	log.Info().Str("addr", addr).Str("rebalancer", target).Msg("rebalance gateway listening")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal().Err(err).Msg("serve")
	}
}

// Routes builds the HTTP surface: GET / for liveness, /healthz proxied to the
// gRPC health service, and the JSON API mounted on the gateway mux.
func (s *Server) Routes(origins []string) (http.Handler, error) {
	gw := runtime.NewServeMux(
		runtime.WithHealthzEndpoint(s.health),
		runtime.WithMarshalerOption(runtime.MIMEWildcard, s.marshaler),
	)
	if err := gw.HandlePath(http.MethodPost, "/rebalance", s.handleRebalance); err != nil {
		return nil, err
	}
	if err := gw.HandlePath(http.MethodGet, "/runs/{id}", s.handleGetRun); err != nil {
		return nil, err
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleHealth)
	mux.Handle("/", gw)

	c := cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost},
		AllowedHeaders: []string{"Content-Type"},
		ExposedHeaders: []string{runIDHeader},
	})
	return c.Handler(mux), nil
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleRebalance(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			s.writeError(w, http.StatusRequestEntityTooLarge, "payload exceeds limit")
			return
		}
		s.writeError(w, http.StatusBadRequest, "unable to read body")
		return
	}
	in := &structpb.Struct{}
	if err := s.marshaler.Unmarshal(body, in); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON: expected an object")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.timeout)
	defer cancel()
	out, err := s.client.Recommend(ctx, in)
	if err != nil {
		s.writeStatus(w, err)
		return
	}

	recs := out.GetFields()["recommendations"]
	if recs == nil {
		recs = structpb.NewListValue(&structpb.ListValue{})
	}
	w.Header().Set(runIDHeader, out.GetFields()["run_id"].GetStringValue())
	s.writeJSON(w, http.StatusOK, recs)
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request, params map[string]string) {
	ctx, cancel := context.WithTimeout(r.Context(), s.timeout)
	defer cancel()
	out, err := s.client.GetRun(ctx, wrapperspb.String(params["id"]))
	if err != nil {
		s.writeStatus(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, out)
}

func (s *Server) writeStatus(w http.ResponseWriter, err error) {
	st, ok := status.FromError(err)
	if !ok {
		st = status.New(codes.Unknown, err.Error())
	}
	code := runtime.HTTPStatusFromCode(st.Code())
	if code >= http.StatusInternalServerError {
		log.Error().Err(err).Msg("rebalancer grpc")
	}
	s.writeError(w, code, st.Message())
}

func (s *Server) writeError(w http.ResponseWriter, code int, msg string) {
	s.writeJSON(w, code, map[string]string{"error": msg})
}

func (s *Server) writeJSON(w http.ResponseWriter, code int, v any) {
	body, err := s.marshaler.Marshal(v)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = w.Write(body)
}
