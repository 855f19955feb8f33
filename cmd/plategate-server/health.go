package main

import (
	"fmt"
	"log/slog"
	"net"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

type healthServer struct {
	grpc   *grpc.Server
	health *health.Server
}

// startHealthServer serves the standard grpc.health.v1 service so
// orchestrators can check the process without going through HTTP.
func startHealthServer(addr string, logger *slog.Logger) (*healthServer, error) {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("grpc listen %s: %w", addr, err)
	}

	hs := &healthServer{grpc: grpc.NewServer(), health: health.NewServer()}
	healthpb.RegisterHealthServer(hs.grpc, hs.health)
	hs.health.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)

	go func() {
		logger.Info("grpc health listening", "addr", addr)
		if err := hs.grpc.Serve(lis); err != nil {
			logger.Error("grpc server error", "error", err)
		}
	}()
	return hs, nil
}

// Stop flips the status to NOT_SERVING before draining connections.
func (h *healthServer) Stop() {
	h.health.Shutdown()
	h.grpc.GracefulStop()
}
