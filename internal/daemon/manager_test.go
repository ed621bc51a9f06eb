// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package daemon

import (
	"context"
	"errors"
	"io"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ManuGH/dosemux/internal/config"
	"github.com/ManuGH/dosemux/internal/log"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func testConfig() config.APIConfig {
	return config.APIConfig{
		ListenAddr:      "127.0.0.1:0",
		ReadTimeout:     5 * time.Second,
		WriteTimeout:    10 * time.Second,
		ShutdownTimeout: 5 * time.Second,
	}
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, "ok")
	})
}

func TestNewManager_Validation(t *testing.T) {
	_, err := NewManager(testConfig(), Deps{Logger: log.WithComponent("test")})
	assert.ErrorIs(t, err, ErrMissingAPIHandler)

	_, err = NewManager(testConfig(), Deps{
		Logger:     zerolog.New(io.Discard).Level(zerolog.Disabled),
		APIHandler: okHandler(),
	})
	assert.ErrorIs(t, err, ErrMissingLogger)
}

func TestManager_ShutdownBeforeStart(t *testing.T) {
	mgr, err := NewManager(testConfig(), Deps{Logger: log.WithComponent("test"), APIHandler: okHandler()})
	require.NoError(t, err)
	assert.ErrorIs(t, mgr.Shutdown(context.Background()), ErrManagerNotStarted)
}

func TestManager_ServesAndShutsDownInOrder(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	var workerStopped atomic.Bool
	mgr, err := NewManager(testConfig(), Deps{
		Logger:     log.WithComponent("test"),
		APIHandler: okHandler(),
		Workers: []Worker{{
			Name: "idle",
			Run: func(ctx context.Context) error {
				<-ctx.Done()
				workerStopped.Store(true)
				return nil
			},
		}},
	})
	require.NoError(t, err)

	var mu sync.Mutex
	var order []string
	for _, name := range []string{"first", "second"} {
		mgr.RegisterShutdownHook(name, func(context.Context) error {
			mu.Lock()
			defer mu.Unlock()
			order = append(order, name)
			return nil
		})
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- mgr.Start(ctx) }()

	require.Eventually(t, func() bool { return mgr.Addr() != "" }, 5*time.Second, 10*time.Millisecond)
	client := &http.Client{Transport: &http.Transport{}}
	resp, err := client.Get("http://" + mgr.Addr() + "/")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	assert.Equal(t, "ok", string(body))
	client.CloseIdleConnections()

	assert.ErrorIs(t, mgr.Start(ctx), ErrAlreadyStarted)

	cancel()
	require.NoError(t, <-done)
	assert.True(t, workerStopped.Load())
	assert.Equal(t, []string{"second", "first"}, order)
	assert.NoError(t, mgr.Shutdown(context.Background()), "second shutdown is a no-op")
}

func TestManager_WorkerFailureStopsDaemon(t *testing.T) {
	boom := errors.New("inbox vanished")
	mgr, err := NewManager(testConfig(), Deps{
		Logger:     log.WithComponent("test"),
		APIHandler: okHandler(),
		Workers: []Worker{{
			Name: "watch",
			Run:  func(context.Context) error { return boom },
		}},
	})
	require.NoError(t, err)

	err = mgr.Start(context.Background())
	assert.ErrorIs(t, err, boom)
}

func TestManager_ListenError(t *testing.T) {
	cfg := testConfig()
	cfg.ListenAddr = "256.0.0.1:bad"
	mgr, err := NewManager(cfg, Deps{Logger: log.WithComponent("test"), APIHandler: okHandler()})
	require.NoError(t, err)
	assert.Error(t, mgr.Start(context.Background()))
}

type fakePruner struct {
	calls  atomic.Int32
	before atomic.Value
}

func (p *fakePruner) Prune(_ context.Context, before time.Time) (int64, error) {
	p.calls.Add(1)
	p.before.Store(before)
	return 3, nil
}

func TestRetentionWorker(t *testing.T) {
	p := &fakePruner{}
	w := RetentionWorker(p, time.Hour, 10*time.Millisecond)
	assert.Equal(t, "history-retention", w.Name)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	require.Eventually(t, func() bool { return p.calls.Load() >= 2 }, 5*time.Second, 5*time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	before := p.before.Load().(time.Time)
	assert.WithinDuration(t, time.Now().Add(-time.Hour), before, time.Minute)
}

func TestRetentionWorker_Disabled(t *testing.T) {
	p := &fakePruner{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, RetentionWorker(p, 0, 0).Run(ctx))
	assert.Zero(t, p.calls.Load())
}
