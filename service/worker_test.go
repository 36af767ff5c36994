/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/atomic"

	"github.com/acronis/go-ratelimit/log"
	"github.com/acronis/go-ratelimit/log/logtest"
)

func TestPeriodicWorker_Run(t *testing.T) {
	t.Run("stop by context cancellation", func(t *testing.T) {
		var runs atomic.Int32
		ctx, cancel := context.WithCancel(context.Background())
		pw := NewPeriodicWorker(WorkerFunc(func(ctx context.Context) error {
			if runs.Inc() == 3 {
				cancel()
			}
			return nil
		}), 10*time.Millisecond, log.NewDisabledLogger())

		require.NoError(t, pw.Run(ctx))
		require.Equal(t, int32(3), runs.Load())
	})

	t.Run("stop by ErrPeriodicWorkerStop", func(t *testing.T) {
		var runs atomic.Int32
		pw := NewPeriodicWorker(WorkerFunc(func(ctx context.Context) error {
			if runs.Inc() == 2 {
				return ErrPeriodicWorkerStop
			}
			return nil
		}), time.Millisecond, log.NewDisabledLogger())

		require.NoError(t, pw.Run(context.Background()))
		require.Equal(t, int32(2), runs.Load())
	})

	t.Run("errors are logged and delay depends on them", func(t *testing.T) {
		logRecorder := logtest.NewRecorder()
		var runs atomic.Int32
		var delayedAfterErr atomic.Bool
		workErr := errors.New("database is locked")
		pw := NewPeriodicWorkerWithOpts(WorkerFunc(func(ctx context.Context) error {
			switch runs.Inc() {
			case 1:
				return workErr
			case 2:
				return ErrPeriodicWorkerStop
			}
			return nil
		}), time.Hour, logRecorder, PeriodicWorkerOpts{
			IntervalDelayFunc: func(_ Worker, err error) time.Duration {
				if err != nil {
					delayedAfterErr.Store(true)
					return time.Millisecond
				}
				return time.Hour
			},
		})

		require.NoError(t, pw.Run(context.Background()))
		require.True(t, delayedAfterErr.Load())
		entry, found := logRecorder.FindEntry("periodically running worker finished with error")
		require.True(t, found)
		require.Equal(t, log.LevelError, entry.Level)
	})

	t.Run("initial delay", func(t *testing.T) {
		var runs atomic.Int32
		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()
		pw := NewPeriodicWorkerWithOpts(WorkerFunc(func(ctx context.Context) error {
			runs.Inc()
			return nil
		}), time.Millisecond, log.NewDisabledLogger(), PeriodicWorkerOpts{InitialDelay: time.Hour})

		require.NoError(t, pw.Run(ctx))
		require.Equal(t, int32(0), runs.Load())
	})
}

func TestWorkerUnit(t *testing.T) {
	t.Run("graceful stop", func(t *testing.T) {
		unit := NewWorkerUnit(WorkerFunc(func(ctx context.Context) error {
			<-ctx.Done()
			return nil
		}))
		fatalErr := make(chan error, 1)
		started := make(chan struct{})
		go func() {
			close(started)
			unit.Start(fatalErr)
		}()
		<-started
		require.Eventually(t, unit.started.Load, time.Second, time.Millisecond)
		require.NoError(t, unit.Stop(true))
		require.Empty(t, fatalErr)
	})

	t.Run("stop timeout", func(t *testing.T) {
		release := make(chan struct{})
		defer close(release)
		unit := NewWorkerUnitWithOpts(WorkerFunc(func(ctx context.Context) error {
			<-release
			return nil
		}), WorkerUnitOpts{GracefulStopTimeout: 10 * time.Millisecond})
		go unit.Start(make(chan error, 1))
		require.Eventually(t, unit.started.Load, time.Second, time.Millisecond)
		require.ErrorIs(t, unit.Stop(true), ErrWorkerUnitStopTimeoutExceeded)
	})

	t.Run("worker error is fatal", func(t *testing.T) {
		workErr := errors.New("boom")
		unit := NewWorkerUnit(WorkerFunc(func(context.Context) error { return workErr }))
		fatalErr := make(chan error, 1)
		unit.Start(fatalErr)
		require.ErrorIs(t, <-fatalErr, workErr)
	})

	t.Run("stop before start", func(t *testing.T) {
		unit := NewWorkerUnit(WorkerFunc(func(context.Context) error { return nil }))
		require.NoError(t, unit.Stop(true))
	})
}
