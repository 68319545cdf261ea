package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFireDropsOverlappingRuns(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{}, 1)
	s := New(time.Hour, func(ctx context.Context) error {
		started <- struct{}{}
		<-release
		return nil
	})

	ctx := context.Background()
	assert.True(t, s.Fire(ctx))
	<-started

	assert.False(t, s.Fire(ctx))
	assert.False(t, s.Fire(ctx))
	assert.Equal(t, int64(2), s.Dropped())

	close(release)
	s.Wait()
	assert.Equal(t, int64(1), s.Runs())

	// free again once the first run is done
	release = make(chan struct{})
	close(release)
	assert.True(t, s.Fire(ctx))
	<-started
	s.Wait()
	assert.Equal(t, int64(2), s.Runs())
}

func TestFireSurvivesErrorsAndPanics(t *testing.T) {
	var calls atomic.Int32
	s := New(time.Hour, func(ctx context.Context) error {
		if calls.Add(1) == 1 {
			panic("boom")
		}
		return errors.New("bad tick")
	})

	ctx := context.Background()
	assert.True(t, s.Fire(ctx))
	s.Wait()
	assert.True(t, s.Fire(ctx))
	s.Wait()
	assert.Equal(t, int32(2), calls.Load())
}

func TestRunStopsOnCancel(t *testing.T) {
	var calls atomic.Int32
	s := New(5*time.Millisecond, func(ctx context.Context) error {
		calls.Add(1)
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	time.Sleep(30 * time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
	if calls.Load() < 1 {
		t.Errorf("Expected at least one run, got %d", calls.Load())
	}
}
