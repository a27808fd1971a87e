package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/testply/guestexam-backend/internal/config"
	"github.com/testply/guestexam-backend/internal/kv"
	"github.com/testply/guestexam-backend/internal/model"
)

// MaxFreeAttempts is the number of exams a guest may complete for free.
// Fixed by product policy, deliberately not configurable.
const MaxFreeAttempts = 2

// Ledger is the durable per-guest record of completed attempts and
// consumed questions. It is client-trusted: storage faults degrade to
// empty history / skipped writes rather than blocking the session.
type Ledger struct {
	store kv.Store
	log   zerolog.Logger

	// mu serializes read-modify-write of the shared namespace value.
	// Cross-process writers remain last-write-wins at namespace
	// granularity, which is the accepted consistency model.
	mu sync.Mutex
}

// New creates a Ledger over the given key-value surface.
func New(store kv.Store, log zerolog.Logger) *Ledger {
	return &Ledger{
		store: store,
		log:   log.With().Str("component", "attempt_ledger").Logger(),
	}
}

// NewIdentity synthesizes a fresh guest identity: a millisecond
// timestamp plus a random suffix, unique with overwhelming probability.
func NewIdentity() string {
	return fmt.Sprintf("g-%d-%06x", time.Now().UnixMilli(), rand.Intn(1<<24))
}

// Identify mints a new guest identity and persists its registration
// before returning it. A failed registration write is logged and the
// identity is still handed out; the guest simply looks new next time.
func (l *Ledger) Identify(ctx context.Context) string {
	id := NewIdentity()
	key := config.CacheKey.GuestIdentityKey(id)
	if err := l.store.Set(ctx, key, time.Now().UTC().Format(time.RFC3339)); err != nil {
		l.log.Warn().Err(err).Str("guest_id", id).Msg("identity registration write failed")
	}
	return id
}

// IsKnown reports whether a guest identity was previously registered.
func (l *Ledger) IsKnown(ctx context.Context, guestID string) bool {
	_, err := l.store.Get(ctx, config.CacheKey.GuestIdentityKey(guestID))
	return err == nil
}

// LoadHistory returns the guest's attempt records, oldest first.
// Absent storage, unknown guests, and corrupt values all yield an
// empty history.
func (l *Ledger) LoadHistory(ctx context.Context, guestID string) []model.AttemptRecord {
	return l.loadNamespace(ctx)[guestID]
}

// RemainingQuota derives the free attempts left from a history.
func RemainingQuota(history []model.AttemptRecord) int {
	completed := 0
	for _, r := range history {
		if r.Completed {
			completed++
		}
	}
	if completed >= MaxFreeAttempts {
		return 0
	}
	return MaxFreeAttempts - completed
}

// HasCompleted reports whether the history holds a completed record
// for the given exam.
func HasCompleted(history []model.AttemptRecord, examID string) bool {
	for _, r := range history {
		if r.ExamID == examID && r.Completed {
			return true
		}
	}
	return false
}

// UsedQuestionIDs returns the deduplicated union of question ids the
// guest has been shown across all recorded attempts.
func UsedQuestionIDs(history []model.AttemptRecord) map[string]struct{} {
	used := make(map[string]struct{})
	for _, r := range history {
		for _, qid := range r.QuestionIDs {
			used[qid] = struct{}{}
		}
	}
	return used
}

// Commit upserts the completed attempt for (guestID, examID) and writes
// the full namespace back. A repeat completion replaces the existing
// record; it never duplicates. The updated history is returned even
// when the write fails, so the session can finish on stale storage.
func (l *Ledger) Commit(ctx context.Context, guestID, examID string, questionIDs []string, score *float64) []model.AttemptRecord {
	l.mu.Lock()
	defer l.mu.Unlock()

	ns := l.loadNamespace(ctx)
	history := ns[guestID]

	record := model.AttemptRecord{
		ExamID:      examID,
		Completed:   true,
		Score:       score,
		QuestionIDs: questionIDs,
		CompletedAt: time.Now().UTC(),
	}

	replaced := false
	for i := range history {
		if history[i].ExamID == examID {
			history[i] = record
			replaced = true
			break
		}
	}
	if !replaced {
		history = append(history, record)
	}
	ns[guestID] = history

	l.writeNamespace(ctx, ns)
	return history
}

// Reset clears the history of a single guest, leaving other guests'
// records in the namespace untouched.
func (l *Ledger) Reset(ctx context.Context, guestID string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	ns := l.loadNamespace(ctx)
	if _, ok := ns[guestID]; !ok {
		return
	}
	delete(ns, guestID)
	l.writeNamespace(ctx, ns)
}

func (l *Ledger) loadNamespace(ctx context.Context) model.LedgerNamespace {
	raw, err := l.store.Get(ctx, config.CacheKey.AttemptLedgerKey())
	if err != nil {
		if !errors.Is(err, kv.ErrNotFound) {
			l.log.Warn().Err(err).Msg("ledger read failed, treating as empty")
		}
		return model.LedgerNamespace{}
	}

	var ns model.LedgerNamespace
	if err := json.Unmarshal([]byte(raw), &ns); err != nil {
		// A corrupt namespace is "no history", not a fatal condition.
		l.log.Warn().Err(err).Msg("ledger value unparseable, treating as empty")
		return model.LedgerNamespace{}
	}
	if ns == nil {
		ns = model.LedgerNamespace{}
	}
	return ns
}

func (l *Ledger) writeNamespace(ctx context.Context, ns model.LedgerNamespace) {
	raw, err := json.Marshal(ns)
	if err != nil {
		l.log.Error().Err(err).Msg("ledger marshal failed")
		return
	}
	if err := l.store.Set(ctx, config.CacheKey.AttemptLedgerKey(), string(raw)); err != nil {
		l.log.Warn().Err(err).Msg("ledger write failed, attempt not persisted")
	}
}
