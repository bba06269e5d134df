package worker_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/dwarfs-go/dwarfs/worker"
	"github.com/stretchr/testify/require"
)

func TestFixedGroupRunsAllTasks(t *testing.T) {
	g := worker.NewFixed(context.Background(), "test", 4)

	var count atomic.Int64
	for i := 0; i < 100; i++ {
		g.Submit(func() error {
			count.Add(1)
			return nil
		})
	}

	require.NoError(t, g.Wait())
	require.EqualValues(t, 100, count.Load())
}

func TestGroupSurfacesTaskError(t *testing.T) {
	g := worker.NewFixed(context.Background(), "test", 2)
	wantErr := errors.New("boom")

	g.Submit(func() error { return wantErr })
	for i := 0; i < 10; i++ {
		g.Submit(func() error { return nil })
	}

	err := g.Wait()
	require.Error(t, err)
}

func TestGroupCapturesPanic(t *testing.T) {
	g := worker.NewFixed(context.Background(), "test", 1)
	g.Submit(func() error {
		panic("kaboom")
	})

	err := g.Wait()
	require.Error(t, err)
	require.Contains(t, err.Error(), "kaboom")
}

func TestLoadAdaptiveGroupRunsAllTasks(t *testing.T) {
	g := worker.NewLoadAdaptive(context.Background(), "scanner", 2, 4)

	var count atomic.Int64
	for i := 0; i < 50; i++ {
		g.Submit(func() error {
			count.Add(1)
			return nil
		})
	}

	require.NoError(t, g.Wait())
	require.EqualValues(t, 50, count.Load())
}
