package main

import (
	"context"
	"flag"
	"os/signal"
	"syscall"

	"github.com/lk2023060901/agentic-gateway/internal/conf"
	"github.com/lk2023060901/agentic-gateway/internal/pkg/injector"
	"github.com/lk2023060901/agentic-gateway/internal/pkg/logger"
	"go.uber.org/zap"
)

var (
	configFile = flag.String("config", "configs/config.yaml", "config file path")
)

func main() {
	flag.Parse()

	// Load configuration
	config, err := conf.LoadConfig(*configFile)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log, err := logger.New(&config.Log)
	if err != nil {
		panic("failed to initialize logger: " + err.Error())
	}
	defer func() { _ = log.Sync() }()

	logger.InitGlobal(log)
	log.Info("config loaded successfully", zap.String("config", *configFile))

	app, cleanup, err := injector.InitializeApp(config, log)
	if err != nil {
		log.Fatal("failed to initialize application", zap.Error(err))
	}
	defer cleanup()

	// Wait for interrupt signal
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Info("servers starting",
		zap.Int("http_port", config.Server.Port),
		zap.Int("grpc_port", config.Server.GRPCPort),
	)

	if err := app.Run(ctx); err != nil {
		log.Error("server exited with error", zap.Error(err))
		return
	}

	log.Info("servers exited")
}
