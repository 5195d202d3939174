package groutine

import (
	"context"
	"runtime/pprof"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGo_NamesGoroutine(t *testing.T) {
	type result struct {
		name  string
		label string
	}
	ch := make(chan result, 1)

	Go(context.Background(), "ble-scan", func(ctx context.Context) {
		label, _ := pprof.Label(ctx, "goroutine_name")
		ch <- result{name: GetName(ctx), label: label}
	})

	select {
	case r := <-ch:
		assert.Equal(t, "ble-scan", r.name)
		assert.Equal(t, "ble-scan", r.label)
	case <-time.After(time.Second):
		require.FailNow(t, "goroutine did not run")
	}
}

func TestGo_PropagatesCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	Go(ctx, "worker", func(ctx context.Context) {
		<-ctx.Done()
		close(done)
	})

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		require.FailNow(t, "goroutine did not observe cancellation")
	}
}

func TestGetName_Empty(t *testing.T) {
	assert.Empty(t, GetName(context.Background()))
	//nolint:staticcheck // nil context is part of the contract
	assert.Empty(t, GetName(nil))
}
