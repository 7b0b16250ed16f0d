package grpc

import (
	"errors"
	"fmt"
	"net"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"compress-service/pkg/config"
	"compress-service/pkg/logger"
)

// ServiceName is the name reported to gRPC health checks.
const ServiceName = "compress-service"

// HealthServer 对外暴露标准 gRPC 健康检查，供注册中心和负载均衡探活
type HealthServer struct {
	server *grpc.Server
	health *health.Server
	lis    net.Listener
}

func NewHealthServer() *HealthServer {
	s := &HealthServer{
		server: grpc.NewServer(),
		health: health.NewServer(),
	}
	healthpb.RegisterHealthServer(s.server, s.health)
	s.SetServing(false)
	return s
}

// Start listens on cfg.Host:cfg.Port and serves in the background.
func (s *HealthServer) Start(cfg config.GRPCServerConfig) error {
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen grpc %s: %w", addr, err)
	}
	s.lis = lis
	go func() {
		logger.Infof("gRPC server started address=%s service=%s", lis.Addr(), ServiceName)
		if err := s.server.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			logger.Errorf("gRPC server encountered an error error=%v", err)
		}
	}()
	return nil
}

// Addr is the bound address, nil before Start.
func (s *HealthServer) Addr() net.Addr {
	if s.lis == nil {
		return nil
	}
	return s.lis.Addr()
}

func (s *HealthServer) SetServing(serving bool) {
	status := healthpb.HealthCheckResponse_NOT_SERVING
	if serving {
		status = healthpb.HealthCheckResponse_SERVING
	}
	s.health.SetServingStatus("", status)
	s.health.SetServingStatus(ServiceName, status)
}

func (s *HealthServer) Stop() {
	s.health.Shutdown()
	s.server.GracefulStop()
}
