package poller_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vhamers/smile-monitor/internal/poller"
	"github.com/vhamers/smile-monitor/pkg/smile"
)

type fakeUpdater struct {
	calls atomic.Int32
	err   error
}

func (f *fakeUpdater) Update(_ context.Context) (*smile.Snapshot, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	return &smile.Snapshot{Gateway: smile.Gateway{SmileName: "Adam"}}, nil
}

func TestSmilePoller_Run(t *testing.T) {
	updater := &fakeUpdater{}
	p := poller.New(updater, time.Hour, slog.New(slog.NewTextHandler(io.Discard, nil)))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	errCh := make(chan error)
	go func() { errCh <- p.Run(ctx) }()

	ch := p.Subscribe()
	defer p.Unsubscribe(ch)
	p.Refresh()

	snapshot := <-ch
	assert.Equal(t, "Adam", snapshot.Gateway.SmileName)
	// One immediate poll on startup, one for the refresh.
	assert.GreaterOrEqual(t, updater.calls.Load(), int32(1))

	cancel()
	require.NoError(t, <-errCh)
}

func TestSmilePoller_Run_failure(t *testing.T) {
	updater := &fakeUpdater{err: errors.New("gateway unreachable")}
	p := poller.New(updater, 10*time.Millisecond, slog.New(slog.NewTextHandler(io.Discard, nil)))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	errCh := make(chan error)
	go func() { errCh <- p.Run(ctx) }()

	// Subscribers receive nothing, but the poller keeps going.
	assert.Eventually(t, func() bool {
		return updater.calls.Load() > 2
	}, time.Second, 10*time.Millisecond)

	cancel()
	require.NoError(t, <-errCh)
}
