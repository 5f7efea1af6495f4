package worker

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/exampin-backend/internal/config"
	"github.com/stemsi/exampin-backend/internal/metrics"
	"github.com/stemsi/exampin-backend/internal/model"
)

const (
	ResultBatchSize    = 50
	ResultBatchTimeout = 2 * time.Second
	ResultPollTimeout  = 1 * time.Second
)

// ResultWriter is the persistence used by ResultWorker.
type ResultWriter interface {
	CopyInsert(ctx context.Context, results []model.Result) (int64, error)
	Insert(ctx context.Context, res *model.Result) error
}

// ResultWorker drains the persist queue filled by ResultService.Submit into
// PostgreSQL.
type ResultWorker struct {
	repo ResultWriter
	rdb  *redis.Client
	log  zerolog.Logger
}

func NewResultWorker(repo ResultWriter, rdb *redis.Client, log zerolog.Logger) *ResultWorker {
	return &ResultWorker{
		repo: repo,
		rdb:  rdb,
		log:  log.With().Str("component", "result_worker").Logger(),
	}
}

// ----------------------------------------------------------------
// Worker loop with batching
// ----------------------------------------------------------------

func (w *ResultWorker) Start(ctx context.Context) {
	w.log.Info().Msg("ResultWorker started")

	batch := make([]model.Result, 0, ResultBatchSize)
	lastFlush := time.Now()

	for {
		if len(batch) > 0 &&
			(len(batch) >= ResultBatchSize || time.Since(lastFlush) >= ResultBatchTimeout) {

			w.flushSafe(ctx, batch)
			batch = batch[:0]
			lastFlush = time.Now()
		}

		select {
		case <-ctx.Done():
			w.log.Info().Int("pending", len(batch)).Msg("Shutdown requested. Flushing remaining batch...")
			w.flushSafe(context.Background(), batch)
			return

		default:
			item, err := w.rdb.BLPop(ctx, ResultPollTimeout, config.WorkerKey.PersistResultsQueue).Result()
			if err != nil {
				if !errors.Is(err, redis.Nil) && ctx.Err() == nil {
					w.log.Error().Err(err).Msg("BLPop error")
				}
				continue
			}

			if len(item) < 2 {
				continue
			}

			var res model.Result
			if err := json.Unmarshal([]byte(item[1]), &res); err != nil {
				w.log.Error().Err(err).Msg("Invalid JSON payload")
				continue
			}

			batch = append(batch, res)
		}
	}
}

// ----------------------------------------------------------------
// Batch insert with row-by-row fallback
// ----------------------------------------------------------------

// flushSafe writes batch with COPY. When COPY fails (typically a duplicate
// id from a requeued item) each row is inserted on its own; rows that still
// fail go back on the queue.
func (w *ResultWorker) flushSafe(ctx context.Context, batch []model.Result) {
	if len(batch) == 0 {
		return
	}

	n, err := w.repo.CopyInsert(ctx, batch)
	if err == nil {
		metrics.ResultsPersisted.WithLabelValues("copy").Add(float64(n))
		w.log.Debug().Int64("rows", n).Msg("Results persisted")
		w.clearAutosavedAnswers(ctx, batch)
		return
	}

	w.log.Warn().Err(err).Int("batch", len(batch)).Msg("bulk result insert failed, using fallback")

	saved := make([]model.Result, 0, len(batch))
	for i := range batch {
		if err := w.repo.Insert(ctx, &batch[i]); err != nil {
			w.log.Error().Err(err).Str("result_id", batch[i].ID.String()).Msg("Insert failed, requeueing")
			w.requeue(ctx, &batch[i])
			continue
		}
		metrics.ResultsPersisted.WithLabelValues("single").Inc()
		saved = append(saved, batch[i])
	}
	w.clearAutosavedAnswers(ctx, saved)
}

func (w *ResultWorker) requeue(ctx context.Context, res *model.Result) {
	if w.rdb == nil {
		return
	}
	raw, err := json.Marshal(res)
	if err != nil {
		return
	}
	if err := w.rdb.RPush(ctx, config.WorkerKey.PersistResultsQueue, raw).Err(); err != nil {
		w.log.Error().Err(err).Str("result_id", res.ID.String()).Msg("Requeue failed, result lost")
	}
}

// clearAutosavedAnswers drops the answer hashes of persisted sessions.
func (w *ResultWorker) clearAutosavedAnswers(ctx context.Context, results []model.Result) {
	if w.rdb == nil || len(results) == 0 {
		return
	}

	pipe := w.rdb.Pipeline()
	for i := range results {
		pipe.Del(ctx, config.CacheKey.SessionAnswersKey(results[i].SessionID.String()))
	}
	_, _ = pipe.Exec(ctx)
}
