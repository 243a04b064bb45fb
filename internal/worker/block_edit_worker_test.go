package worker

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/stemsi/courseware-backend/internal/model"
	"github.com/stemsi/courseware-backend/internal/service"
)

type memQueue struct {
	mu   sync.Mutex
	jobs [][]byte
}

func (q *memQueue) Push(_ context.Context, job []byte) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.jobs = append(q.jobs, job)
	return nil
}

func (q *memQueue) TryPop(context.Context) ([]byte, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.jobs) == 0 {
		return nil, redis.Nil
	}
	job := q.jobs[0]
	q.jobs = q.jobs[1:]
	return job, nil
}

func (q *memQueue) Pop(ctx context.Context, _ time.Duration) ([]byte, error) {
	return q.TryPop(ctx)
}

func (q *memQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.jobs)
}

type fakeEditor struct {
	mu        sync.Mutex
	failures  int // transient failures before success
	permanent bool
	applied   []service.EditJob
	failed    []service.EditJob
}

func (f *fakeEditor) ApplyEdit(_ context.Context, job service.EditJob) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.applied = append(f.applied, job)
	if f.permanent {
		return true, service.ErrInvalidBlockData
	}
	if f.failures > 0 {
		f.failures--
		return false, errors.New("db unavailable")
	}
	return false, nil
}

func (f *fakeEditor) EditFailed(_ context.Context, job service.EditJob, _ error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failed = append(f.failed, job)
}

func queued(t *testing.T, q *memQueue) {
	t.Helper()
	raw, err := json.Marshal(service.EditJob{
		BlockID: uuid.New(),
		ActorID: uuid.New(),
		Role:    model.RoleTeacher,
		Edit:    model.UpdateBlockRequest{Title: "Edited"},
	})
	if err != nil {
		t.Fatal(err)
	}
	q.Push(context.Background(), raw)
}

func newTestWorker(q *memQueue, e *fakeEditor, attempts int) *BlockEditWorker {
	w := NewBlockEditWorker(q, e, attempts, zerolog.Nop())
	w.retryDelay = 0
	return w
}

func TestBlockEditWorkerRetriesTransientFailures(t *testing.T) {
	q, e := &memQueue{}, &fakeEditor{failures: 2}
	w := newTestWorker(q, e, 3)
	queued(t, q)

	for i := 0; i < 3; i++ {
		w.processNext(context.Background())
	}
	if len(e.applied) != 3 || len(e.failed) != 0 || q.len() != 0 {
		t.Fatalf("applied=%d failed=%d queued=%d", len(e.applied), len(e.failed), q.len())
	}
	if e.applied[2].Attempt != 3 {
		t.Fatalf("attempt = %d", e.applied[2].Attempt)
	}
}

func TestBlockEditWorkerGivesUpAfterMaxAttempts(t *testing.T) {
	q, e := &memQueue{}, &fakeEditor{failures: 10}
	w := newTestWorker(q, e, 2)
	queued(t, q)

	for i := 0; i < 4; i++ {
		w.processNext(context.Background())
	}
	if len(e.applied) != 2 || len(e.failed) != 1 || q.len() != 0 {
		t.Fatalf("applied=%d failed=%d queued=%d", len(e.applied), len(e.failed), q.len())
	}
}

func TestBlockEditWorkerDropsPermanentFailures(t *testing.T) {
	q, e := &memQueue{}, &fakeEditor{permanent: true}
	w := newTestWorker(q, e, 5)
	queued(t, q)

	w.processNext(context.Background())
	if len(e.applied) != 1 || len(e.failed) != 1 || q.len() != 0 {
		t.Fatalf("applied=%d failed=%d queued=%d", len(e.applied), len(e.failed), q.len())
	}
}

func TestBlockEditWorkerSkipsMalformedJobs(t *testing.T) {
	q, e := &memQueue{}, &fakeEditor{}
	w := newTestWorker(q, e, 3)
	q.Push(context.Background(), []byte(`{not json`))

	w.processNext(context.Background())
	if len(e.applied) != 0 || q.len() != 0 {
		t.Fatalf("applied=%d queued=%d", len(e.applied), q.len())
	}
}

func TestBlockEditWorkerDrainsOnShutdown(t *testing.T) {
	q, e := &memQueue{}, &fakeEditor{}
	w := newTestWorker(q, e, 3)
	queued(t, q)
	queued(t, q)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	w.Start(ctx)

	if len(e.applied) != 2 || q.len() != 0 {
		t.Fatalf("applied=%d queued=%d", len(e.applied), q.len())
	}
}
