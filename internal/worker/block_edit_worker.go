package worker

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/stemsi/courseware-backend/internal/service"
)

// EditQueue is the list the edit jobs are read from.
type EditQueue interface {
	Push(ctx context.Context, job []byte) error
	Pop(ctx context.Context, timeout time.Duration) ([]byte, error)
	TryPop(ctx context.Context) ([]byte, error)
}

// EditApplier persists a queued edit and reports abandoned ones.
type EditApplier interface {
	ApplyEdit(ctx context.Context, job service.EditJob) (permanent bool, err error)
	EditFailed(ctx context.Context, job service.EditJob, cause error)
}

// BlockEditWorker consumes persist_block_edits_queue and writes block
// edits made on blur in the page editor.
type BlockEditWorker struct {
	queue       EditQueue
	editor      EditApplier
	maxAttempts int
	retryDelay  time.Duration
	log         zerolog.Logger
}

// NewBlockEditWorker creates a new BlockEditWorker. A job is retried
// until it has been tried maxAttempts times.
func NewBlockEditWorker(queue EditQueue, editor EditApplier, maxAttempts int, log zerolog.Logger) *BlockEditWorker {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &BlockEditWorker{
		queue:       queue,
		editor:      editor,
		maxAttempts: maxAttempts,
		retryDelay:  2 * time.Second,
		log:         log.With().Str("component", "block_edit_worker").Logger(),
	}
}

// Start begins the infinite worker loop. Call in a goroutine.
func (w *BlockEditWorker) Start(ctx context.Context) {
	w.log.Info().Msg("Worker started")

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Worker stopping...")
			// Drain remaining items before exit.
			w.drain(context.Background())
			w.log.Info().Msg("Worker stopped")
			return
		default:
			w.processNext(ctx)
		}
	}
}

func (w *BlockEditWorker) processNext(ctx context.Context) {
	// Pop blocks until an item is available or timeout (1 second).
	raw, err := w.queue.Pop(ctx, time.Second)
	if err != nil {
		if !errors.Is(err, redis.Nil) && ctx.Err() == nil {
			w.log.Error().Err(err).Msg("Pop error")
			w.sleep(ctx)
		}
		return
	}

	if retry := w.process(ctx, raw); retry {
		w.sleep(ctx)
	}
}

// process applies one job. It reports whether the job went back on the
// queue.
func (w *BlockEditWorker) process(ctx context.Context, raw []byte) bool {
	var job service.EditJob
	if err := json.Unmarshal(raw, &job); err != nil {
		w.log.Error().Err(err).Msg("Unmarshal error, dropping job")
		return false
	}
	job.Attempt++

	permanent, err := w.editor.ApplyEdit(ctx, job)
	if err == nil {
		return false
	}

	jobLog := w.log.With().
		Str("block_id", job.BlockID.String()).
		Int("attempt", job.Attempt).
		Logger()

	if permanent || job.Attempt >= w.maxAttempts {
		jobLog.Error().Err(err).Bool("permanent", permanent).Msg("Block edit abandoned")
		w.editor.EditFailed(ctx, job, err)
		return false
	}

	jobLog.Warn().Err(err).Msg("Block edit failed, requeueing")
	next, _ := json.Marshal(job)
	if err := w.queue.Push(ctx, next); err != nil {
		jobLog.Error().Err(err).Msg("Requeue failed")
		w.editor.EditFailed(ctx, job, err)
		return false
	}
	return true
}

// drain processes all remaining items in the queue before shutdown.
// Jobs that still fail are reported instead of requeued.
func (w *BlockEditWorker) drain(ctx context.Context) {
	drained := 0
	for {
		raw, err := w.queue.TryPop(ctx)
		if err != nil {
			break
		}

		var job service.EditJob
		if err := json.Unmarshal(raw, &job); err != nil {
			w.log.Error().Err(err).Msg("Drain unmarshal error")
			continue
		}
		job.Attempt++

		if _, err := w.editor.ApplyEdit(ctx, job); err != nil {
			w.log.Error().Err(err).Str("block_id", job.BlockID.String()).Msg("Drain persist error")
			w.editor.EditFailed(ctx, job, err)
			continue
		}
		drained++
	}

	if drained > 0 {
		w.log.Info().Int("count", drained).Msg("Drained remaining items")
	}
}

func (w *BlockEditWorker) sleep(ctx context.Context) {
	if w.retryDelay <= 0 {
		return
	}
	t := time.NewTimer(w.retryDelay)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
