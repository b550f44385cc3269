package main

import (
	"context"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	rebalancepb "github.com/ahinestrog/citibike-rebalancer/proto/rebalance"
)

func main() {
	// .env opcional
	_ = godotenv.Load()

	// Logger
	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout})

	cfg := LoadConfig()
	zerolog.SetGlobalLevel(cfg.LogLevel)
	log.Info().
		Str("addr", cfg.GRPCAddr).
		Str("metrics", cfg.MetricsAddr).
		Str("db", cfg.DBPath).
		Bool("queue", cfg.QueueEnabled).
		Int("max_moves", cfg.MaxMoves).
		Msg("starting rebalancer service")

	// Repo
	repo, err := NewRepository(cfg.DBPath)
	must(err)
	defer repo.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Métricas
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := NewMetrics(reg)
	serveMetrics(ctx, cfg.MetricsAddr, reg)

	// Rabbit
	var rabbit *Rabbit
	var events Events
	if cfg.QueueEnabled {
		rabbit, err = NewRabbit(cfg)
		must(err)
		defer rabbit.Close()
		events = rabbit
	}

	svc, err := NewService(repo, events, metrics, cfg.MaxMoves, cfg.RunCacheSize)
	must(err)

	if rabbit != nil {
		must(rabbit.StartConsumers(ctx, svc))
		log.Info().Str("queue", cfg.QSnapshotReq).Msg("rabbit consumers started")
	}

	// gRPC server
	lis, err := net.Listen("tcp", cfg.GRPCAddr)
	must(err)
	grpcSrv := grpc.NewServer()
	rebalancepb.RegisterRebalancerServer(grpcSrv, NewRebalancerServer(svc))
	hs := health.NewServer()
	healthpb.RegisterHealthServer(grpcSrv, hs)
	hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	hs.SetServingStatus(rebalancepb.ServiceName, healthpb.HealthCheckResponse_SERVING)

	// Señales para apagado limpio
	go func() {
		ch := make(chan os.Signal, 1)
		signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
		<-ch
		log.Warn().Msg("shutting down...")
		hs.Shutdown()
		stopped := make(chan struct{})
		go func() {
			grpcSrv.GracefulStop()
			close(stopped)
		}()
		select {
		case <-stopped:
		case <-time.After(ShutdownGrace):
			grpcSrv.Stop()
		}
		cancel()
	}()

	log.Info().Msg("gRPC listening")
	must(grpcSrv.Serve(lis))
}

func must(err error) {
	if err != nil {
		log.Fatal().Err(err).Msg("fatal")
	}
}
