package main

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	rebalancepb "github.com/ahinestrog/citibike-rebalancer/proto/rebalance"
)

type RebalancerServer struct {
	rebalancepb.UnimplementedRebalancerServer
	svc *Service
}

func NewRebalancerServer(svc *Service) *RebalancerServer { return &RebalancerServer{svc: svc} }

func (s *RebalancerServer) Recommend(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	run, err := s.svc.Handle(ctx, in.AsMap(), SourceGRPC)
	if err != nil {
		return nil, toStatus(err)
	}
	out, err := runToPB(run, false)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encode: %v", err)
	}
	return out, nil
}

func (s *RebalancerServer) GetRun(ctx context.Context, in *wrapperspb.StringValue) (*structpb.Struct, error) {
	id := strings.TrimSpace(in.GetValue())
	if id == "" {
		return nil, status.Error(codes.InvalidArgument, "run id is required")
	}
	run, err := s.svc.GetRun(ctx, id)
	if err != nil {
		return nil, toStatus(err)
	}
	out, err := runToPB(run, true)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encode: %v", err)
	}
	log.Debug().Str("run", id).Msg("GetRun")
	return out, nil
}

func toStatus(err error) error {
	var schemaErr *SchemaError
	switch {
	case errors.As(err, &schemaErr):
		return status.Error(codes.InvalidArgument, schemaErr.Error())
	case errors.Is(err, ErrRunNotFound):
		return status.Error(codes.NotFound, err.Error())
	default:
		return status.Errorf(codes.Internal, "rebalance: %v", err)
	}
}

// ---- mapping Run <-> protobuf ----

func runToPB(run *Run, full bool) (*structpb.Struct, error) {
	recs := make([]any, 0, len(run.Moves))
	for _, m := range moveRecords(run.Moves, run.NumericIDs) {
		recs = append(recs, map[string]any{
			"from_station":  pbStation(m.FromStation),
			"to_station":    pbStation(m.ToStation),
			"bikes_to_move": m.BikesToMove,
		})
	}
	fields := map[string]any{
		"run_id":          run.ID,
		"recommendations": recs,
	}
	if full {
		fields["source"] = run.Source
		fields["created_at"] = run.CreatedAt.Format(time.RFC3339)
		fields["station_count"] = run.StationCount
		fields["max_moves"] = run.MaxMoves
		fields["mean_bikes"] = run.MeanBikes
		fields["total_bikes"] = run.TotalBikes
	}
	return structpb.NewStruct(fields)
}

// pbStation turns a json.Number id back into a number when a float64 carries
// it exactly; otherwise the id goes out as its decimal string.
func pbStation(v any) any {
	n, ok := v.(json.Number)
	if !ok {
		return v
	}
	f, err := n.Float64()
	if err != nil || math.Abs(f) >= maxExactID || strconv.FormatFloat(f, 'f', -1, 64) != n.String() {
		return n.String()
	}
	return f
}
