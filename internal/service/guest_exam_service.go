package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/testply/guestexam-backend/internal/config"
	"github.com/testply/guestexam-backend/internal/countdown"
	"github.com/testply/guestexam-backend/internal/integrity"
	"github.com/testply/guestexam-backend/internal/kv"
	"github.com/testply/guestexam-backend/internal/ledger"
	"github.com/testply/guestexam-backend/internal/model"
	"github.com/testply/guestexam-backend/internal/repository"
	"github.com/testply/guestexam-backend/internal/session"
	"github.com/testply/guestexam-backend/internal/variant"
)

// Domain Errors
var (
	ErrNoActiveSession = errors.New("no active session for this exam")
	ErrSubmitFailed    = errors.New("submission failed, answers preserved")
)

// LobbyStatus is the gating overlay for one catalog entry.
type LobbyStatus string

const (
	LobbyStatusAvailable  LobbyStatus = "AVAILABLE"
	LobbyStatusGated      LobbyStatus = "GATED"
	LobbyStatusInProgress LobbyStatus = "IN_PROGRESS"
	LobbyStatusCompleted  LobbyStatus = "COMPLETED"
)

// LobbyExam is a catalog entry as shown to one guest.
type LobbyExam struct {
	model.ExamSummary
	LobbyStatus LobbyStatus `json:"lobby_status"`
	Score       *float64    `json:"score,omitempty"`
}

// GuestExamService orchestrates the guest exam engine: identity, quota
// gating, the per-guest session controllers, and the audit queues.
type GuestExamService struct {
	ledger     *ledger.Ledger
	catalog    session.Catalog
	registry   *session.Registry
	gen        *variant.Generator
	grader     session.Grader
	accessRepo *repository.AccessRequestRepository
	answers    kv.Store
	rdb        *redis.Client
	log        zerolog.Logger

	// timerOpts shortens ticks in tests; empty in production.
	timerOpts []countdown.Option
}

// NewGuestExamService creates a new GuestExamService. accessRepo,
// answers and rdb may be nil in tests; the access-request, autosave
// and audit paths then degrade to log-only.
func NewGuestExamService(
	l *ledger.Ledger,
	catalog session.Catalog,
	gen *variant.Generator,
	grader session.Grader,
	accessRepo *repository.AccessRequestRepository,
	answers kv.Store,
	rdb *redis.Client,
	log zerolog.Logger,
) *GuestExamService {
	return &GuestExamService{
		ledger:     l,
		catalog:    catalog,
		registry:   session.NewRegistry(),
		gen:        gen,
		grader:     grader,
		accessRepo: accessRepo,
		answers:    answers,
		rdb:        rdb,
		log:        log.With().Str("component", "guest_exam_service").Logger(),
	}
}

// Identify returns the presented identity when it is known, otherwise
// mints and registers a fresh one.
func (s *GuestExamService) Identify(ctx context.Context, presented string) (string, bool) {
	if presented != "" && s.ledger.IsKnown(ctx, presented) {
		return presented, false
	}
	return s.ledger.Identify(ctx), true
}

// Lobby returns the catalog with per-exam gating status for one guest,
// plus the guest's remaining free quota.
func (s *GuestExamService) Lobby(ctx context.Context, guestID string) ([]LobbyExam, int, error) {
	exams, err := s.catalog.ListGuestExams(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("list guest exams: %w", err)
	}

	history := s.ledger.LoadHistory(ctx, guestID)
	remaining := ledger.RemainingQuota(history)

	active := s.registry.Get(guestID)

	lobby := make([]LobbyExam, 0, len(exams))
	for i, e := range exams {
		entry := LobbyExam{ExamSummary: e, LobbyStatus: LobbyStatusAvailable}

		for _, r := range history {
			if r.ExamID == e.ID.String() && r.Completed {
				entry.LobbyStatus = LobbyStatusCompleted
				entry.Score = r.Score
				break
			}
		}

		if entry.LobbyStatus == LobbyStatusAvailable {
			switch {
			case active != nil && active.ExamID() == e.ID && active.Status() == model.SessionInProgress:
				entry.LobbyStatus = LobbyStatusInProgress
			case i >= ledger.MaxFreeAttempts:
				entry.LobbyStatus = LobbyStatusGated
			}
		}

		lobby = append(lobby, entry)
	}

	return lobby, remaining, nil
}

// Enter starts (or resumes) a session for the guest on the given exam
// and returns the variant paper. Re-entering the exam of a live session
// resumes it; entering a different exam while one is live is refused.
func (s *GuestExamService) Enter(ctx context.Context, guestID string, examID uuid.UUID) (*model.ExamVariant, error) {
	active := s.registry.Get(guestID)
	if active != nil {
		switch active.Status() {
		case model.SessionInProgress, model.SessionSubmitting:
			if active.ExamID() == examID {
				return active.Variant(), nil
			}
			return nil, session.ErrSessionActive
		}
		// Terminal controller: fall through and replace it.
	}

	c := session.NewController(session.Config{
		GuestID: guestID,
		Ledger:  s.ledger,
		Catalog: s.catalog,
		Gen:     s.gen,
		Grader:  s.grader,
		Hooks: session.Hooks{
			OnViolation: s.enqueueViolation,
			OnCompleted: s.enqueueAttempt,
		},
		Log:       s.log,
		TimerOpts: s.timerOpts,
	})

	if err := c.Enter(ctx, examID); err != nil {
		return nil, err
	}

	// Another entry may have claimed the slot while this one was
	// loading. Exactly one wins; the loser is torn down before its
	// timer can auto-submit anything.
	if !s.registry.Replace(guestID, active, c) {
		c.Abort()
		if cur := s.registry.Get(guestID); cur != nil && cur.ExamID() == examID {
			switch cur.Status() {
			case model.SessionInProgress, model.SessionSubmitting:
				return cur.Variant(), nil
			}
		}
		return nil, session.ErrSessionActive
	}

	s.restoreAutosavedAnswers(ctx, c, guestID, examID)
	return c.Variant(), nil
}

// Paper returns the variant of the guest's live session for this exam.
func (s *GuestExamService) Paper(guestID string, examID uuid.UUID) (*model.ExamVariant, error) {
	c, err := s.controllerFor(guestID, examID)
	if err != nil {
		return nil, err
	}
	return c.Variant(), nil
}

// State snapshots the live session for client reloads.
func (s *GuestExamService) State(guestID string, examID uuid.UUID) (*model.SessionState, error) {
	c, err := s.controllerFor(guestID, examID)
	if err != nil {
		return nil, err
	}
	state := c.State()
	return &state, nil
}

// Answer records one selection on the live session and mirrors the
// buffer to storage so the attempt survives a server restart.
func (s *GuestExamService) Answer(guestID string, examID uuid.UUID, questionID, optionID string) error {
	c, err := s.controllerFor(guestID, examID)
	if err != nil {
		return err
	}
	if err := c.Answer(questionID, optionID); err != nil {
		return err
	}
	s.autosaveAnswers(c, guestID, examID)
	return nil
}

// ReportViolation feeds one integrity signal into the live session's
// monitor. Unknown signals and reports on disarmed monitors count
// nothing and are not errors.
func (s *GuestExamService) ReportViolation(guestID string, examID uuid.UUID, signal string) (integrity.Kind, bool, int, error) {
	c, err := s.controllerFor(guestID, examID)
	if err != nil {
		return "", false, 0, err
	}
	kind, counted := c.ReportSignal(integrity.Signal(signal))
	return kind, counted, c.Violations(), nil
}

// Submit finishes the guest's attempt and returns the committed record.
func (s *GuestExamService) Submit(ctx context.Context, guestID string, examID uuid.UUID) (*model.AttemptRecord, int, error) {
	c, err := s.controllerFor(guestID, examID)
	if err != nil {
		return nil, 0, err
	}

	rec, err := c.Submit(ctx)
	if err != nil {
		if errors.Is(err, session.ErrNotInProgress) {
			return nil, 0, err
		}
		return nil, 0, fmt.Errorf("%w: %v", ErrSubmitFailed, err)
	}
	s.clearAutosavedAnswers(ctx, guestID, examID)
	return rec, c.Violations(), nil
}

// Abort discards the guest's live session without committing.
func (s *GuestExamService) Abort(guestID string, examID uuid.UUID) error {
	c, err := s.controllerFor(guestID, examID)
	if err != nil {
		return err
	}
	c.Abort()
	s.registry.Remove(guestID, c)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	s.clearAutosavedAnswers(ctx, guestID, examID)
	return nil
}

// ResetHistory wipes the guest's attempt history and tears down any
// live session. The identity stays registered; the quota comes back
// in full.
func (s *GuestExamService) ResetHistory(ctx context.Context, guestID string) {
	if c := s.registry.Get(guestID); c != nil {
		examID := c.ExamID()
		c.Abort()
		s.registry.Remove(guestID, c)
		s.clearAutosavedAnswers(ctx, guestID, examID)
	}
	s.ledger.Reset(ctx, guestID)

	s.log.Info().Str("guest_id", guestID).Msg("Attempt history reset")
}

// RequestAccess fires the gating escape hatch: the guest asks for an
// exam beyond the free tier and leaves contact details for follow-up.
func (s *GuestExamService) RequestAccess(ctx context.Context, guestID string, examID uuid.UUID, payload model.AccessRequestPayload) error {
	req := &model.AccessRequest{
		GuestID: guestID,
		ExamID:  examID,
		Contact: payload.Contact,
		Message: payload.Message,
	}

	s.log.Info().
		Str("guest_id", guestID).
		Str("exam_id", examID.String()).
		Msg("Access requested")

	if s.accessRepo == nil {
		return nil
	}
	if err := s.accessRepo.Create(ctx, req); err != nil {
		return fmt.Errorf("record access request: %w", err)
	}
	return nil
}

func (s *GuestExamService) controllerFor(guestID string, examID uuid.UUID) (*session.Controller, error) {
	c := s.registry.Get(guestID)
	if c == nil || c.ExamID() != examID {
		return nil, ErrNoActiveSession
	}
	return c, nil
}

// autosaveAnswers writes the session's answer buffer as one JSON value
// under the guest's autosave key. Fail-soft: a storage fault costs the
// restart resume, never the live session.
func (s *GuestExamService) autosaveAnswers(c *session.Controller, guestID string, examID uuid.UUID) {
	if s.answers == nil {
		return
	}

	raw, err := json.Marshal(c.State().Answers)
	if err != nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	key := config.CacheKey.GuestAnswersKey(examID.String(), guestID)
	if err := s.answers.Set(ctx, key, string(raw)); err != nil {
		s.log.Warn().Err(err).Str("guest_id", guestID).Msg("Answer autosave failed")
	}
}

// restoreAutosavedAnswers replays a previously buffered answer set into
// a freshly entered session, so a crashed or restarted server does not
// lose the guest's selections.
func (s *GuestExamService) restoreAutosavedAnswers(ctx context.Context, c *session.Controller, guestID string, examID uuid.UUID) {
	if s.answers == nil {
		return
	}

	key := config.CacheKey.GuestAnswersKey(examID.String(), guestID)
	raw, err := s.answers.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, kv.ErrNotFound) {
			s.log.Warn().Err(err).Str("guest_id", guestID).Msg("Autosave restore read failed")
		}
		return
	}

	var saved map[string]string
	if err := json.Unmarshal([]byte(raw), &saved); err != nil {
		s.log.Warn().Err(err).Str("guest_id", guestID).Msg("Autosave buffer unparseable, discarding")
		return
	}
	for questionID, optionID := range saved {
		_ = c.Answer(questionID, optionID)
	}
}

func (s *GuestExamService) clearAutosavedAnswers(ctx context.Context, guestID string, examID uuid.UUID) {
	if s.answers == nil {
		return
	}
	key := config.CacheKey.GuestAnswersKey(examID.String(), guestID)
	if err := s.answers.Delete(ctx, key); err != nil {
		s.log.Warn().Err(err).Str("guest_id", guestID).Msg("Autosave buffer clear failed")
	}
}

// enqueueViolation pushes one counted violation onto the audit queue.
// The worker drains it into PostgreSQL in batches.
func (s *GuestExamService) enqueueViolation(guestID string, examID uuid.UUID, kind integrity.Kind, count int) {
	if s.rdb == nil {
		return
	}

	payload, _ := json.Marshal(map[string]interface{}{
		"guest_id":  guestID,
		"exam_id":   examID.String(),
		"kind":      string(kind),
		"count":     count,
		"timestamp": time.Now().Unix(),
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.rdb.RPush(ctx, config.WorkerKey.PersistViolationsQueue, payload).Err(); err != nil {
		s.log.Warn().Err(err).Msg("Violation enqueue failed")
	}
}

// enqueueAttempt pushes a completed attempt onto the archive queue.
func (s *GuestExamService) enqueueAttempt(guestID string, examID uuid.UUID, rec model.AttemptRecord, violations int) {
	if s.rdb == nil {
		return
	}

	var score float64
	if rec.Score != nil {
		score = *rec.Score
	}
	payload, _ := json.Marshal(map[string]interface{}{
		"guest_id":     guestID,
		"exam_id":      examID.String(),
		"score":        score,
		"violations":   violations,
		"completed_at": rec.CompletedAt.Unix(),
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.rdb.RPush(ctx, config.WorkerKey.PersistAttemptsQueue, payload).Err(); err != nil {
		s.log.Warn().Err(err).Msg("Attempt archive enqueue failed")
	}
}
