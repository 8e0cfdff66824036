package workerpool

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/lk2023060901/agentic-gateway/internal/pkg/logger"
	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"
)

var (
	ErrPoolClosed   = errors.New("worker pool is closed")
	ErrPoolOverload = errors.New("worker pool is overloaded")
)

// PanicError 任务 panic 后返回的错误
type PanicError struct {
	Value interface{}
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("task panicked: %v", e.Value)
}

// Config Worker Pool 配置
type Config struct {
	// 同时执行的任务上限
	Size int `mapstructure:"size"`
	// 空闲 worker 回收时间
	ExpiryDuration time.Duration `mapstructure:"expiry_duration"`
	// 满载时立即返回 ErrPoolOverload 而不是等待
	Nonblocking bool `mapstructure:"nonblocking"`
}

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		Size:           16,
		ExpiryDuration: time.Minute,
	}
}

// Pool 基于 ants 的有界任务池
type Pool struct {
	pool   *ants.Pool
	logger *logger.Logger
}

// New 创建 Worker Pool
func New(config *Config, log *logger.Logger) (*Pool, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if config.Size <= 0 {
		return nil, fmt.Errorf("invalid pool size %d", config.Size)
	}

	opts := []ants.Option{
		ants.WithNonblocking(config.Nonblocking),
		ants.WithPanicHandler(func(err interface{}) {
			log.Error("worker panic", zap.Any("error", err))
		}),
	}
	if config.ExpiryDuration > 0 {
		opts = append(opts, ants.WithExpiryDuration(config.ExpiryDuration))
	}

	antsPool, err := ants.NewPool(config.Size, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create ants pool: %w", err)
	}

	return &Pool{pool: antsPool, logger: log}, nil
}

// Run 在池中执行 task 并等待其结束
// ctx 在提交前已取消时不执行；task 自身负责响应 ctx
func (p *Pool) Run(ctx context.Context, task func(ctx context.Context)) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	done := make(chan error, 1)
	err := p.pool.Submit(func() {
		defer func() {
			if r := recover(); r != nil {
				p.logger.WithContext(ctx).Error("worker panic", zap.Any("error", r), zap.Stack("stacktrace"))
				done <- &PanicError{Value: r}
			}
		}()
		task(ctx)
		done <- nil
	})
	switch {
	case errors.Is(err, ants.ErrPoolClosed):
		return ErrPoolClosed
	case errors.Is(err, ants.ErrPoolOverload):
		return ErrPoolOverload
	case err != nil:
		return err
	}

	return <-done
}

// Running 获取运行中的 worker 数量
func (p *Pool) Running() int {
	return p.pool.Running()
}

// Cap 获取容量
func (p *Pool) Cap() int {
	return p.pool.Cap()
}

// Release 关闭任务池，已提交的任务继续执行
func (p *Pool) Release() {
	p.pool.Release()
}
