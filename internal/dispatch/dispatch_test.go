package dispatch

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type countingObserver struct {
	mu    sync.Mutex
	tasks []string
}

func (o *countingObserver) RecordSideEffectFailure(task string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.tasks = append(o.tasks, task)
}

func TestDispatcherRunsTasksAndSwallowsFailures(t *testing.T) {
	var buf bytes.Buffer
	obs := &countingObserver{}
	d := New(0, time.Second, slog.New(slog.NewTextHandler(&buf, nil)), obs)

	var ran int32
	for i := 0; i < 5; i++ {
		d.Go(context.Background(), "ok", func(ctx context.Context) error {
			atomic.AddInt32(&ran, 1)
			return nil
		})
	}
	d.Go(context.Background(), "certificate_email", func(ctx context.Context) error {
		return errors.New("smtp down")
	})
	d.Wait()

	assert.Equal(t, int32(5), atomic.LoadInt32(&ran))
	assert.Equal(t, []string{"certificate_email"}, obs.tasks)
	assert.Contains(t, buf.String(), "smtp down")
}

func TestDispatcherDetachesFromCallerCancellation(t *testing.T) {
	d := New(1, time.Second, nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var sawErr error
	d.Go(ctx, "detached", func(ctx context.Context) error {
		sawErr = ctx.Err()
		return nil
	})
	d.Wait()
	assert.NoError(t, sawErr)
}

func TestInlineRecoversPanics(t *testing.T) {
	obs := &countingObserver{}
	Inline{Observer: obs}.Go(context.Background(), "render", func(ctx context.Context) error {
		panic("bad font")
	})
	assert.Equal(t, []string{"render"}, obs.tasks)
}

func TestDispatcherDropsWhenSaturated(t *testing.T) {
	var buf bytes.Buffer
	obs := &countingObserver{}
	d := New(1, 5*time.Second, slog.New(slog.NewTextHandler(&buf, nil)), obs)

	release := make(chan struct{})
	d.Go(context.Background(), "stuck_smtp", func(ctx context.Context) error {
		<-release
		return nil
	})

	returned := make(chan struct{})
	go func() {
		d.Go(context.Background(), "certificate_email", func(ctx context.Context) error {
			return nil
		})
		close(returned)
	}()

	select {
	case <-returned:
	case <-time.After(500 * time.Millisecond):
		t.Fatal("Go blocked while the dispatcher was saturated")
	}
	close(release)
	d.Wait()

	assert.Equal(t, []string{"certificate_email"}, obs.tasks)
	assert.Contains(t, buf.String(), "side effect dropped")
}
