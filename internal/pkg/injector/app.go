package injector

import (
	"context"
	"fmt"

	"github.com/lk2023060901/agentic-gateway/internal/conf"
	"github.com/lk2023060901/agentic-gateway/internal/pkg/logger"
	"github.com/lk2023060901/agentic-gateway/internal/server"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// App encapsulates all application dependencies
type App struct {
	Config     *conf.Config
	Logger     *logger.Logger
	HTTPServer *server.HTTPServer
	GRPCServer *server.GRPCServer
}

func newApp(
	config *conf.Config,
	log *logger.Logger,
	httpServer *server.HTTPServer,
	grpcServer *server.GRPCServer,
) *App {
	return &App{
		Config:     config,
		Logger:     log,
		HTTPServer: httpServer,
		GRPCServer: grpcServer,
	}
}

// Run serves HTTP and gRPC until ctx is cancelled or either server fails,
// then shuts both down within server.shutdown_timeout
func (a *App) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := a.HTTPServer.Start(); err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	if a.Config.Server.GRPCPort > 0 {
		g.Go(func() error {
			if err := a.GRPCServer.Start(); err != nil {
				return fmt.Errorf("grpc server: %w", err)
			}
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		a.Logger.Info("shutting down servers...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.Config.Server.ShutdownTimeout)
		defer cancel()

		a.GRPCServer.Stop()
		if err := a.HTTPServer.Stop(shutdownCtx); err != nil {
			a.Logger.Error("HTTP server forced to shutdown", zap.Error(err))
			return err
		}
		return nil
	})

	return g.Wait()
}
