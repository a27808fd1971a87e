package worker

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/testply/guestexam-backend/internal/config"
)

const (
	ArchiveBatchSize    = 50
	ArchiveBatchTimeout = 2 * time.Second
	ArchivePollTimeout  = 1 * time.Second
)

// AttemptArchiveWorker mirrors completed attempts from the queue into
// PostgreSQL. The ledger in the key-value store remains the source the
// engine reads from; the archive is the reporting copy.
type AttemptArchiveWorker struct {
	pool *pgxpool.Pool
	rdb  *redis.Client
	log  zerolog.Logger
}

func NewAttemptArchiveWorker(pool *pgxpool.Pool, rdb *redis.Client, log zerolog.Logger) *AttemptArchiveWorker {
	return &AttemptArchiveWorker{
		pool: pool,
		rdb:  rdb,
		log:  log.With().Str("component", "attempt_archive_worker").Logger(),
	}
}

type attemptPayload struct {
	GuestID     string  `json:"guest_id"`
	ExamID      string  `json:"exam_id"`
	Score       float64 `json:"score"`
	Violations  int     `json:"violations"`
	CompletedAt int64   `json:"completed_at"`
}

// ----------------------------------------------------------------
// Worker loop with batching
// ----------------------------------------------------------------

func (w *AttemptArchiveWorker) Start(ctx context.Context) {
	w.log.Info().Msg("AttemptArchiveWorker started")

	batch := make([]*attemptPayload, 0, ArchiveBatchSize)
	lastFlush := time.Now()

	for {
		// Should flush?
		if len(batch) > 0 &&
			(len(batch) >= ArchiveBatchSize || time.Since(lastFlush) >= ArchiveBatchTimeout) {

			w.flushSafe(ctx, batch)
			batch = batch[:0]
			lastFlush = time.Now()
		}

		select {
		case <-ctx.Done():
			w.log.Info().Msg("Shutdown requested. Flushing remaining batch...")
			w.flushSafe(context.Background(), batch)
			return

		default:
			item, err := w.rdb.BLPop(ctx, ArchivePollTimeout, config.WorkerKey.PersistAttemptsQueue).Result()
			if err != nil {
				if err != redis.Nil && ctx.Err() == nil {
					w.log.Error().Err(err).Msg("BLPop error")
				}
				continue
			}

			if len(item) < 2 {
				continue
			}

			var p attemptPayload
			if err := json.Unmarshal([]byte(item[1]), &p); err != nil {
				w.log.Error().Err(err).Msg("Invalid JSON payload")
				continue
			}

			batch = append(batch, &p)
		}
	}
}

// ----------------------------------------------------------------
// Batch Upsert Wrapper
// ----------------------------------------------------------------

func (w *AttemptArchiveWorker) flushSafe(ctx context.Context, batch []*attemptPayload) {
	if len(batch) == 0 {
		return
	}

	if err := w.bulkUpsertAttempts(ctx, batch); err != nil {
		w.log.Warn().Err(err).Msg("bulk attempt upsert failed, using fallback")

		for _, p := range batch {
			if err := w.persistSingle(ctx, p); err != nil {
				w.log.Error().Err(err).Msg("persistSingle failed, requeueing")
				raw, _ := json.Marshal(p)
				w.rdb.RPush(ctx, config.WorkerKey.PersistAttemptsQueue, raw)
			}
		}
		return
	}

	// After a successful archive write the autosave buffers for those
	// attempts are stale. Clear them in one pipeline.
	w.bulkClearAutosavedAnswers(ctx, batch)
}

// ----------------------------------------------------------------
// BULK PostgreSQL UPSERT using UNNEST + alias
// ----------------------------------------------------------------

func (w *AttemptArchiveWorker) bulkUpsertAttempts(ctx context.Context, batch []*attemptPayload) error {
	n := len(batch)

	examIDs := make([]uuid.UUID, 0, n)
	guests := make([]string, 0, n)
	scores := make([]float64, 0, n)
	violations := make([]int, 0, n)
	completedAts := make([]time.Time, 0, n)

	for _, p := range batch {
		eID, err := uuid.Parse(p.ExamID)
		if err != nil {
			return err
		}
		examIDs = append(examIDs, eID)
		guests = append(guests, p.GuestID)
		scores = append(scores, p.Score)
		violations = append(violations, p.Violations)
		completedAts = append(completedAts, time.Unix(p.CompletedAt, 0))
	}

	// A retake for the same guest and exam overwrites the archived row,
	// matching the ledger's one-record-per-exam rule.
	query := `
		INSERT INTO attempt_archive (exam_id, guest_id, score, violation_count, completed_at)
		SELECT u.exam_id, u.guest_id, u.score, u.violation_count, u.completed_at
		FROM UNNEST(
			$1::uuid[],
			$2::text[],
			$3::float8[],
			$4::int[],
			$5::timestamptz[]
		) AS u (exam_id, guest_id, score, violation_count, completed_at)
		ON CONFLICT (exam_id, guest_id) DO UPDATE
		SET score = EXCLUDED.score,
		    violation_count = EXCLUDED.violation_count,
		    completed_at = EXCLUDED.completed_at
	`

	_, err := w.pool.Exec(ctx, query, examIDs, guests, scores, violations, completedAts)
	return err
}

// ----------------------------------------------------------------
// BULK Redis DEL for clearing autosaved answers
// ----------------------------------------------------------------

func (w *AttemptArchiveWorker) bulkClearAutosavedAnswers(ctx context.Context, batch []*attemptPayload) {
	pipe := w.rdb.Pipeline()

	for _, p := range batch {
		key := config.CacheKey.GuestAnswersKey(p.ExamID, p.GuestID)
		pipe.Del(ctx, key)
	}

	_, _ = pipe.Exec(ctx)
}

// ----------------------------------------------------------------
// FALLBACK single upsert
// ----------------------------------------------------------------

func (w *AttemptArchiveWorker) persistSingle(ctx context.Context, p *attemptPayload) error {
	eID, err := uuid.Parse(p.ExamID)
	if err != nil {
		return err
	}

	_, err = w.pool.Exec(ctx,
		`INSERT INTO attempt_archive (exam_id, guest_id, score, violation_count, completed_at)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (exam_id, guest_id) DO UPDATE
		 SET score = EXCLUDED.score,
		     violation_count = EXCLUDED.violation_count,
		     completed_at = EXCLUDED.completed_at`,
		eID, p.GuestID, p.Score, p.Violations, time.Unix(p.CompletedAt, 0),
	)

	return err
}
