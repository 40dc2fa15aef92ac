package worker

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTryGoRespectsLimit(t *testing.T) {
	p := New(1, nil)
	defer p.Close()

	release := make(chan struct{})
	ok, err := p.TryGo(func(ctx context.Context) { <-release })
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = p.TryGo(func(ctx context.Context) {})
	require.NoError(t, err)
	assert.False(t, ok, "second task must not get a slot while the first runs")

	close(release)
	require.Eventually(t, func() bool {
		ok, _ := p.TryGo(func(ctx context.Context) {})
		return ok
	}, time.Second, 5*time.Millisecond)
}

func TestCloseCancelsTasks(t *testing.T) {
	p := New(2, nil)

	var exited atomic.Int32
	for i := 0; i < 2; i++ {
		ok, err := p.TryGo(func(ctx context.Context) {
			<-ctx.Done()
			exited.Add(1)
		})
		require.NoError(t, err)
		require.True(t, ok)
	}

	p.Close()
	assert.EqualValues(t, 2, exited.Load())

	ok, err := p.TryGo(func(ctx context.Context) {})
	assert.False(t, ok)
	assert.ErrorIs(t, err, ErrClosed)

	p.Close() // second close is a no-op
}
