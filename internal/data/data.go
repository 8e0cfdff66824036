package data

import (
	"context"
	"fmt"

	"github.com/lk2023060901/agentic-gateway/internal/conf"
	"github.com/lk2023060901/agentic-gateway/internal/pkg/database"
	"github.com/lk2023060901/agentic-gateway/internal/pkg/logger"
	"github.com/lk2023060901/agentic-gateway/internal/pkg/redis"
	"github.com/lk2023060901/agentic-gateway/internal/responses/models"
	"go.uber.org/zap"
)

// Data holds the shared storage clients.
// Redis is nil when disabled in config.
type Data struct {
	DB    *database.DB
	Redis *redis.Client
}

// NewData opens the database and, when enabled, the redis client
func NewData(config *conf.Config, log *logger.Logger) (*Data, func(), error) {
	db, err := database.New(&config.Database, log)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to init database: %w", err)
	}

	if config.Database.AutoMigrate {
		if err := db.AutoMigrate(models.All()...); err != nil {
			_ = db.Close()
			return nil, nil, fmt.Errorf("failed to auto migrate: %w", err)
		}
	}

	var redisClient *redis.Client
	if config.Redis.Enabled {
		redisClient, err = redis.New(&config.Redis, log)
		if err != nil {
			_ = db.Close()
			return nil, nil, fmt.Errorf("failed to init redis: %w", err)
		}
	} else {
		log.Info("redis disabled, rate limiting and tool cache are off")
	}

	d := &Data{DB: db, Redis: redisClient}

	cleanup := func() {
		log.Info("cleaning up data resources")

		if err := db.Close(); err != nil {
			log.Warn("failed to close database", zap.Error(err))
		}
		if redisClient != nil {
			if err := redisClient.Close(); err != nil {
				log.Warn("failed to close redis", zap.Error(err))
			}
		}
	}

	return d, cleanup, nil
}

// Ping checks every configured backend
func (d *Data) Ping(ctx context.Context) error {
	if err := d.DB.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}
	if d.Redis != nil {
		if err := d.Redis.Ping(ctx); err != nil {
			return fmt.Errorf("redis: %w", err)
		}
	}
	return nil
}
