package sequencer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDo_SameKeyRunsInSubmissionOrder(t *testing.T) {
	seq := New()
	ctx := context.Background()

	var mu sync.Mutex
	var order []int

	// The first task holds the chain open so every later submission has
	// queued up behind it before anything runs.
	release := make(chan struct{})
	firstRunning := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = seq.Do(ctx, "user-1", func(context.Context) error {
			close(firstRunning)
			<-release
			mu.Lock()
			order = append(order, 0)
			mu.Unlock()
			return nil
		})
	}()
	<-firstRunning

	const n = 20
	for i := 1; i < n; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = seq.Do(ctx, "user-1", func(context.Context) error {
				mu.Lock()
				order = append(order, i)
				mu.Unlock()
				return nil
			})
		}()
		// Give submission i time to reach the queue before i+1 is spawned.
		time.Sleep(2 * time.Millisecond)
	}
	close(release)
	wg.Wait()

	require.Len(t, order, n)
	for i, got := range order {
		assert.Equal(t, i, got, "task %d ran out of order", i)
	}
}

func TestDo_TasksNeverInterleave(t *testing.T) {
	seq := New()
	ctx := context.Background()

	var running int32
	var mu sync.Mutex
	maxSeen := 0

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = seq.Do(ctx, "user-1", func(context.Context) error {
				mu.Lock()
				running++
				if int(running) > maxSeen {
					maxSeen = int(running)
				}
				mu.Unlock()

				time.Sleep(time.Millisecond)

				mu.Lock()
				running--
				mu.Unlock()
				return nil
			})
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, maxSeen, "two tasks for the same key overlapped")
}

func TestDo_DistinctKeysDoNotBlockEachOther(t *testing.T) {
	seq := New()
	ctx := context.Background()

	slowStarted := make(chan struct{})
	slowRelease := make(chan struct{})
	slowDone := make(chan struct{})

	go func() {
		_ = seq.Do(ctx, "user-slow", func(context.Context) error {
			close(slowStarted)
			<-slowRelease
			return nil
		})
		close(slowDone)
	}()
	<-slowStarted

	// While user-slow's task is parked, user-fast should run immediately.
	fastDone := make(chan struct{})
	go func() {
		_ = seq.Do(ctx, "user-fast", func(context.Context) error {
			return nil
		})
		close(fastDone)
	}()

	select {
	case <-fastDone:
	case <-time.After(2 * time.Second):
		t.Fatal("task for an independent key was blocked")
	}

	close(slowRelease)
	<-slowDone
}

func TestDo_ErrorDoesNotPoisonTheChain(t *testing.T) {
	seq := New()
	ctx := context.Background()

	boom := errors.New("boom")
	err := seq.Do(ctx, "user-1", func(context.Context) error {
		return boom
	})
	require.ErrorIs(t, err, boom)

	ran := false
	err = seq.Do(ctx, "user-1", func(context.Context) error {
		ran = true
		return nil
	})
	require.NoError(t, err)
	assert.True(t, ran, "task after a failed task never ran")
}

func TestDo_PanicDoesNotPoisonTheChain(t *testing.T) {
	seq := New()
	ctx := context.Background()

	func() {
		defer func() {
			require.NotNil(t, recover(), "expected the task panic to propagate")
		}()
		_ = seq.Do(ctx, "user-1", func(context.Context) error {
			panic("task bug")
		})
	}()

	done := make(chan struct{})
	go func() {
		_ = seq.Do(ctx, "user-1", func(context.Context) error {
			return nil
		})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("chain wedged after a panicking task")
	}
}

func TestDo_QueueEntryRemovedWhenDrained(t *testing.T) {
	seq := New()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		key := fmt.Sprintf("user-%d", i%3)
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = seq.Do(ctx, key, func(context.Context) error {
				time.Sleep(time.Millisecond)
				return nil
			})
		}()
	}
	wg.Wait()

	assert.Equal(t, 0, seq.Len(), "dormant keys must not be retained")
}

func TestDo_ResultPassingThroughClosure(t *testing.T) {
	seq := New()
	ctx := context.Background()

	var got string
	err := seq.Do(ctx, "user-1", func(context.Context) error {
		got = "result"
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, "result", got)
}
