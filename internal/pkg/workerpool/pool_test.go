package workerpool

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/lk2023060901/agentic-gateway/internal/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPool_RunBoundsConcurrency(t *testing.T) {
	p, err := New(&Config{Size: 2}, logger.Nop())
	require.NoError(t, err)
	defer p.Release()

	var inFlight, maxFlight int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := p.Run(context.Background(), func(context.Context) {
				n := atomic.AddInt32(&inFlight, 1)
				for {
					m := atomic.LoadInt32(&maxFlight)
					if n <= m || atomic.CompareAndSwapInt32(&maxFlight, m, n) {
						break
					}
				}
				time.Sleep(10 * time.Millisecond)
				atomic.AddInt32(&inFlight, -1)
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.LessOrEqual(t, atomic.LoadInt32(&maxFlight), int32(2))
	assert.Equal(t, 2, p.Cap())
}

func TestPool_RunWaitsForResult(t *testing.T) {
	p, err := New(nil, logger.Nop())
	require.NoError(t, err)
	defer p.Release()

	result := ""
	require.NoError(t, p.Run(context.Background(), func(context.Context) { result = "done" }))
	assert.Equal(t, "done", result)
}

func TestPool_Errors(t *testing.T) {
	_, err := New(&Config{Size: 0}, logger.Nop())
	assert.Error(t, err)

	p, err := New(&Config{Size: 1}, logger.Nop())
	require.NoError(t, err)

	err = p.Run(context.Background(), func(context.Context) { panic("boom") })
	var panicErr *PanicError
	require.ErrorAs(t, err, &panicErr)
	assert.Equal(t, "boom", panicErr.Value)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	ran := false
	assert.ErrorIs(t, p.Run(ctx, func(context.Context) { ran = true }), context.Canceled)
	assert.False(t, ran)

	p.Release()
	assert.ErrorIs(t, p.Run(context.Background(), func(context.Context) {}), ErrPoolClosed)
}

func TestPool_Nonblocking(t *testing.T) {
	p, err := New(&Config{Size: 1, Nonblocking: true}, logger.Nop())
	require.NoError(t, err)
	defer p.Release()

	started := make(chan struct{})
	release := make(chan struct{})
	go func() {
		_ = p.Run(context.Background(), func(context.Context) {
			close(started)
			<-release
		})
	}()
	<-started

	assert.ErrorIs(t, p.Run(context.Background(), func(context.Context) {}), ErrPoolOverload)
	close(release)
}
