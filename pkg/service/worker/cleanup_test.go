package worker_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/m-mizutani/gt"

	"github.com/chapterkit/doorman/pkg/domain/model"
	"github.com/chapterkit/doorman/pkg/repository/memory"
	"github.com/chapterkit/doorman/pkg/service/worker"
)

func TestCleanupWorkerTicks(t *testing.T) {
	ctx := context.Background()
	repo := memory.New()

	var swept atomic.Int64
	w := worker.NewCleanupWorker(repo, 20*time.Millisecond, worker.SweepFunc(func() int {
		swept.Add(1)
		return 1
	})).WithSessionMaxAge(time.Minute)

	// a fresh session must survive the reap cycle
	_, err := repo.Session().Update(ctx, "UFRESH", model.SessionPatch{})
	gt.NoError(t, err)

	gt.NoError(t, w.Start(ctx))

	// wait for at least one tick
	deadline := time.After(2 * time.Second)
	for swept.Load() == 0 {
		select {
		case <-deadline:
			t.Fatal("cleanup never ticked")
		case <-time.After(10 * time.Millisecond):
		}
	}

	w.Stop()

	_, err = repo.Session().Get(ctx, "UFRESH")
	gt.NoError(t, err)
}

func TestCleanupWorkerStop(t *testing.T) {
	ctx := context.Background()
	repo := memory.New()

	w := worker.NewCleanupWorker(repo, time.Hour)
	gt.NoError(t, w.Start(ctx))

	done := make(chan struct{})
	go func() {
		w.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not stop")
	}
}

func TestCleanupWorkerContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	repo := memory.New()

	w := worker.NewCleanupWorker(repo, time.Hour)
	gt.NoError(t, w.Start(ctx))
	cancel()

	// the loop exits on context cancellation; Stop must not block even
	// though the stop channel was never signalled
	time.Sleep(50 * time.Millisecond)

	done := make(chan struct{})
	go func() {
		w.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not stop after context cancel")
	}
}
