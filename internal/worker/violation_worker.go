package worker

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/testply/guestexam-backend/internal/config"
)

const (
	BatchSize    = 50
	BatchTimeout = 2 * time.Second
	PollTimeout  = 1 * time.Second // Must be >= 1s to satisfy Redis
)

// ViolationWorker drains the violation audit queue into PostgreSQL so
// integrity events survive session teardown. Counting and warning stay
// in memory on the hot path; only the durable trail goes through here.
type ViolationWorker struct {
	pool *pgxpool.Pool
	rdb  *redis.Client
	log  zerolog.Logger
}

func NewViolationWorker(pool *pgxpool.Pool, rdb *redis.Client, log zerolog.Logger) *ViolationWorker {
	return &ViolationWorker{
		pool: pool,
		rdb:  rdb,
		log:  log.With().Str("component", "violation_worker").Logger(),
	}
}

type violationPayload struct {
	GuestID   string `json:"guest_id"`
	ExamID    string `json:"exam_id"`
	Kind      string `json:"kind"`
	Count     int    `json:"count"`
	Timestamp int64  `json:"timestamp"`
}

func (w *ViolationWorker) Start(ctx context.Context) {
	w.log.Info().Msg("ViolationWorker started")

	buffer := make([]*violationPayload, 0, BatchSize)
	lastFlushTime := time.Now()

	for {
		// 1. Check Flush Conditions (Time or Size)
		if len(buffer) > 0 {
			if len(buffer) >= BatchSize || time.Since(lastFlushTime) >= BatchTimeout {
				w.flushSafe(ctx, buffer)
				buffer = buffer[:0] // Clear buffer, keep capacity
				lastFlushTime = time.Now()
			}
		}

		// 2. Check Context (Graceful Shutdown)
		select {
		case <-ctx.Done():
			w.shutdown(buffer)
			return
		default:
			// Continue
		}

		// 3. Fetch from Redis
		// BLPop blocks for 1 second. Returns immediately if data exists.
		result, err := w.rdb.BLPop(ctx, PollTimeout, config.WorkerKey.PersistViolationsQueue).Result()

		if err != nil {
			if err == redis.Nil {
				continue // Timeout (Queue empty), loop back to check flush timer
			}
			if ctx.Err() != nil {
				return // Context cancelled
			}
			// Real Redis error (e.g., connection lost)
			w.log.Error().Err(err).Msg("Redis connection error, sleeping 3s")
			time.Sleep(3 * time.Second)
			continue
		}

		// 4. Process Data
		if len(result) < 2 {
			continue
		}

		var payload violationPayload
		if err := json.Unmarshal([]byte(result[1]), &payload); err != nil {
			// If JSON is malformed, we CANNOT retry it. Log and discard.
			w.log.Error().Err(err).Str("data", result[1]).Msg("Discarding malformed JSON")
			continue
		}

		buffer = append(buffer, &payload)
	}
}

// flushSafe attempts bulk insert, then fallback insert, then requeue
func (w *ViolationWorker) flushSafe(ctx context.Context, batch []*violationPayload) {
	// Try Fast Path: Bulk Insert
	if err := w.bulkInsert(ctx, batch); err != nil {
		w.log.Warn().Err(err).Int("count", len(batch)).Msg("Bulk insert failed, attempting row-by-row recovery")

		// Fallback Path: Insert one by one
		w.fallbackInsert(ctx, batch)
	}
}

func (w *ViolationWorker) bulkInsert(ctx context.Context, batch []*violationPayload) error {
	rows := make([][]interface{}, 0, len(batch))
	for _, p := range batch {
		examID, err := uuid.Parse(p.ExamID)
		if err != nil {
			// Return error to trigger fallback, which will handle the bad UUID individually
			return err
		}
		rows = append(rows, []interface{}{
			examID, p.GuestID, p.Kind, p.Count, time.Unix(p.Timestamp, 0),
		})
	}

	_, err := w.pool.CopyFrom(
		ctx,
		pgx.Identifier{"attempt_violations"},
		[]string{"exam_id", "guest_id", "kind", "running_count", "recorded_at"},
		pgx.CopyFromRows(rows),
	)
	return err
}

func (w *ViolationWorker) fallbackInsert(ctx context.Context, batch []*violationPayload) {
	requeueList := make([]*violationPayload, 0)

	for _, p := range batch {
		examID, err := uuid.Parse(p.ExamID)
		if err != nil {
			w.log.Error().Str("exam_id", p.ExamID).Msg("Dropping violation event with invalid UUID")
			continue
		}

		_, err = w.pool.Exec(ctx,
			`INSERT INTO attempt_violations (exam_id, guest_id, kind, running_count, recorded_at)
             VALUES ($1, $2, $3, $4, $5)`,
			examID, p.GuestID, p.Kind, p.Count, time.Unix(p.Timestamp, 0),
		)

		if err != nil {
			w.log.Error().Err(err).Str("guest_id", p.GuestID).Msg("Insert failed, requeueing")
			requeueList = append(requeueList, p)
		}
	}

	// If we have items to requeue (DB was down), push them back to Redis
	if len(requeueList) > 0 {
		w.requeue(ctx, requeueList)
	}
}

func (w *ViolationWorker) requeue(ctx context.Context, items []*violationPayload) {
	// Use a pipeline to push everything back quickly
	pipe := w.rdb.Pipeline()
	for _, p := range items {
		data, _ := json.Marshal(p)
		pipe.RPush(ctx, config.WorkerKey.PersistViolationsQueue, data)
	}
	_, err := pipe.Exec(ctx)
	if err != nil {
		w.log.Error().Err(err).Msg("CRITICAL: Failed to requeue items to Redis. Data loss occurred.")
	} else {
		w.log.Info().Int("count", len(items)).Msg("Requeued failed items back to Redis")
		// Sleep a bit to avoid thrashing if the DB is down hard
		time.Sleep(2 * time.Second)
	}
}

func (w *ViolationWorker) shutdown(buffer []*violationPayload) {
	w.log.Info().Msg("Worker stopping, flushing remaining buffer...")

	// Give it 5 seconds to flush to DB
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if len(buffer) > 0 {
		w.flushSafe(shutdownCtx, buffer)
	}
}
