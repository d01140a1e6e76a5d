package grpc

import (
	"context"
	"net"

	"github.com/ronappleton/advisorflow/internal/workflow"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

var Module = fx.Options(
	fx.Provide(
		NewHealthServer,
		NewServer,
		NewListener,
	),
	fx.Invoke(lifecycleHook),
)

type hookParams struct {
	fx.In

	Lifecycle fx.Lifecycle
	Log       *zap.Logger
	Server    *grpc.Server
	Listener  net.Listener
	Health    *health.Server
	// Depending on the service delays readiness until the engine is built.
	Workflows *workflow.Service
}

func lifecycleHook(p hookParams) {
	p.Lifecycle.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			p.Log.Info("grpc server starting", zap.String("addr", p.Listener.Addr().String()))
			go func() {
				if err := p.Server.Serve(p.Listener); err != nil {
					p.Log.Error("grpc server error", zap.Error(err))
				}
			}()
			p.Health.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
			return nil
		},
		OnStop: func(ctx context.Context) error {
			p.Log.Info("grpc server stopping")
			p.Health.Shutdown()
			p.Server.GracefulStop()
			return nil
		},
	})
}
