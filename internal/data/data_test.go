package data

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/lk2023060901/agentic-gateway/internal/conf"
	"github.com/lk2023060901/agentic-gateway/internal/pkg/database"
	"github.com/lk2023060901/agentic-gateway/internal/pkg/logger"
	"github.com/lk2023060901/agentic-gateway/internal/pkg/redis"
	"github.com/lk2023060901/agentic-gateway/internal/responses/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() *conf.Config {
	db := database.DefaultConfig()
	db.Path = ":memory:"
	db.LogLevel = "silent"
	return &conf.Config{Database: *db, Redis: *redis.DefaultConfig()}
}

func TestNewData_SQLiteOnly(t *testing.T) {
	d, cleanup, err := NewData(testConfig(), logger.Nop())
	require.NoError(t, err)
	defer cleanup()

	assert.Nil(t, d.Redis)
	assert.True(t, d.DB.Migrator().HasTable(&models.Chat{}))
	assert.True(t, d.DB.Migrator().HasTable(&models.Message{}))
	assert.NoError(t, d.Ping(context.Background()))
}

func TestNewData_WithRedis(t *testing.T) {
	mr := miniredis.RunT(t)

	cfg := testConfig()
	cfg.Redis.Enabled = true
	cfg.Redis.MasterAddr = mr.Addr()

	d, cleanup, err := NewData(cfg, logger.Nop())
	require.NoError(t, err)
	defer cleanup()

	require.NotNil(t, d.Redis)
	assert.NoError(t, d.Ping(context.Background()))

	mr.Close()
	assert.Error(t, d.Ping(context.Background()))
}

func TestNewData_RedisUnreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	cfg := testConfig()
	cfg.Redis.Enabled = true
	cfg.Redis.MasterAddr = addr
	cfg.Redis.MaxRetries = 0

	_, _, err := NewData(cfg, logger.Nop())
	assert.Error(t, err)
}
