package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/testply/guestexam-backend/internal/countdown"
	"github.com/testply/guestexam-backend/internal/integrity"
	"github.com/testply/guestexam-backend/internal/ledger"
	"github.com/testply/guestexam-backend/internal/model"
	"github.com/testply/guestexam-backend/internal/variant"
)

// Domain Errors
var (
	ErrAccessGated    = errors.New("exam access is gated for this guest")
	ErrExamNotFound   = errors.New("exam not found in catalog")
	ErrSessionActive  = errors.New("another exam session is already active")
	ErrNotInProgress  = errors.New("session is not in progress")
	ErrAlreadyEntered = errors.New("session has already been entered")
)

// Catalog is the external collaborator providing exam content. An empty
// or failing catalog means "no exams available"; nothing is fabricated.
type Catalog interface {
	ListGuestExams(ctx context.Context) ([]model.ExamSummary, error)
	GetDefinition(ctx context.Context, examID uuid.UUID) (*model.ExamDefinition, error)
}

// Grader turns a finished attempt into a score. The default is the
// local fallback grader; a server-side authoritative grader satisfies
// the same contract and the controller treats both identically.
type Grader interface {
	Score(def *model.ExamDefinition, answers map[string]string) (float64, error)
}

// Hooks are orchestrator-owned side channels: violation events for the
// audit pipeline and completed attempts for archival. Either may be nil.
type Hooks struct {
	OnViolation func(guestID string, examID uuid.UUID, kind integrity.Kind, count int)
	OnCompleted func(guestID string, examID uuid.UUID, record model.AttemptRecord, violations int)
}

// Controller drives one guest exam attempt through
// NotStarted → Loading → InProgress → Submitting → {Completed, Aborted}.
// All mutation is serialized on one mutex; the timer expiry callback and
// a manual submit are mutually exclusive, first one wins.
type Controller struct {
	mu      sync.Mutex
	status  model.SessionStatus
	guestID string
	examID  uuid.UUID

	def      *model.ExamDefinition
	variant  *model.ExamVariant
	answers  map[string]string
	finalRec *model.AttemptRecord

	timer   *countdown.Timer
	monitor *integrity.Monitor

	ledger  *ledger.Ledger
	catalog Catalog
	gen     *variant.Generator
	grader  Grader
	hooks   Hooks
	log     zerolog.Logger

	timerOpts []countdown.Option
}

// Config bundles the collaborators a Controller composes.
type Config struct {
	GuestID string
	Ledger  *ledger.Ledger
	Catalog Catalog
	Gen     *variant.Generator
	Grader  Grader
	Hooks   Hooks
	Log     zerolog.Logger

	// TimerOpts is for tests (short tick intervals).
	TimerOpts []countdown.Option
}

// NewController creates a NotStarted controller for one guest.
func NewController(cfg Config) *Controller {
	c := &Controller{
		status:    model.SessionNotStarted,
		guestID:   cfg.GuestID,
		answers:   make(map[string]string),
		ledger:    cfg.Ledger,
		catalog:   cfg.Catalog,
		gen:       cfg.Gen,
		grader:    cfg.Grader,
		hooks:     cfg.Hooks,
		timerOpts: cfg.TimerOpts,
		log: cfg.Log.With().
			Str("component", "session_controller").
			Str("guest_id", cfg.GuestID).
			Logger(),
	}
	c.monitor = integrity.New(c.violationHook)
	return c
}

// Enter runs the full entry transition for the given exam: quota gating
// against the ledger, definition fetch, variant generation, monitor
// arming, timer start. On a gated exam it refuses with ErrAccessGated
// so the caller can surface the access-request prompt. On fetch failure
// the session ends Aborted with the error reported, never stuck Loading.
func (c *Controller) Enter(ctx context.Context, examID uuid.UUID) error {
	c.mu.Lock()
	if c.status != model.SessionNotStarted {
		c.mu.Unlock()
		return ErrAlreadyEntered
	}
	c.status = model.SessionLoading
	c.examID = examID
	c.mu.Unlock()

	history := c.ledger.LoadHistory(ctx, c.guestID)

	gated, err := c.isGated(ctx, examID, history)
	if err != nil {
		c.abortWith(err)
		return fmt.Errorf("resolve catalog position: %w", err)
	}
	if gated {
		// Gating is a refusal, not a failure: back to NotStarted so the
		// guest can pick an eligible exam without rebuilding the session.
		c.mu.Lock()
		c.status = model.SessionNotStarted
		c.mu.Unlock()
		return ErrAccessGated
	}

	def, err := c.catalog.GetDefinition(ctx, examID)
	if err != nil {
		c.abortWith(err)
		return fmt.Errorf("fetch exam definition: %w", err)
	}

	v := c.gen.Generate(def, c.guestID)

	c.mu.Lock()
	c.def = def
	c.variant = v
	c.status = model.SessionInProgress
	c.monitor.ResetViolations()
	c.monitor.Arm()
	c.timer = countdown.New(def.DurationMinutes, c.handleExpiry, c.timerOpts...)
	c.timer.Start()
	c.mu.Unlock()

	c.log.Info().
		Str("exam_id", examID.String()).
		Str("variant_id", v.VariantID).
		Int("duration_minutes", def.DurationMinutes).
		Msg("Session started")
	return nil
}

// isGated applies the free-tier rule: exams at catalog index >= the free
// quota boundary are refused unless this guest already completed them.
func (c *Controller) isGated(ctx context.Context, examID uuid.UUID, history []model.AttemptRecord) (bool, error) {
	if ledger.HasCompleted(history, examID.String()) {
		return false, nil
	}

	exams, err := c.catalog.ListGuestExams(ctx)
	if err != nil {
		return false, err
	}
	for i, e := range exams {
		if e.ID == examID {
			return i >= ledger.MaxFreeAttempts, nil
		}
	}
	return false, ErrExamNotFound
}

// Answer records one selection, last write wins per question. Option
// membership is not validated here; the variant is trusted.
func (c *Controller) Answer(questionID, optionID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.status != model.SessionInProgress {
		return ErrNotInProgress
	}
	c.answers[questionID] = optionID
	return nil
}

// ReportSignal feeds one integrity signal to the monitor. It is safe to
// call at any point of the session, including with a submit in flight;
// reports outside InProgress find the monitor disarmed and count nothing.
func (c *Controller) ReportSignal(sig integrity.Signal) (integrity.Kind, bool) {
	return c.monitor.Report(sig)
}

func (c *Controller) violationHook(kind integrity.Kind, count int) {
	c.log.Warn().
		Str("kind", string(kind)).
		Int("count", count).
		Str("exam_id", c.examID.String()).
		Msg("Integrity violation recorded")
	// Detect and warn only: exceeding a threshold never force-submits.
	if c.hooks.OnViolation != nil {
		c.hooks.OnViolation(c.guestID, c.examID, kind, count)
	}
}

// Submit finishes the attempt: stops the timer, disarms the monitor,
// grades, and commits to the ledger. It is idempotent: a second call
// (double click, or expiry racing a manual submit) returns the already
// committed record without creating another ledger entry.
func (c *Controller) Submit(ctx context.Context) (*model.AttemptRecord, error) {
	c.mu.Lock()
	switch c.status {
	case model.SessionCompleted:
		rec := c.finalRec
		c.mu.Unlock()
		return rec, nil
	case model.SessionSubmitting:
		c.mu.Unlock()
		return nil, ErrNotInProgress
	case model.SessionInProgress:
		// proceed
	default:
		c.mu.Unlock()
		return nil, ErrNotInProgress
	}

	c.status = model.SessionSubmitting
	c.timer.Stop()
	c.monitor.Disarm()

	def := c.def
	v := c.variant
	answers := make(map[string]string, len(c.answers))
	for k, val := range c.answers {
		answers[k] = val
	}
	c.mu.Unlock()

	score, err := c.grader.Score(def, answers)
	if err != nil {
		// Submission failure keeps the answers and the running clock so
		// a retry loses nothing and gains no extra time. Start is a
		// no-op when the timer already expired.
		c.mu.Lock()
		c.status = model.SessionInProgress
		c.timer.Start()
		c.monitor.Arm()
		c.mu.Unlock()
		c.log.Error().Err(err).Msg("Grading failed, session kept for retry")
		return nil, fmt.Errorf("grade attempt: %w", err)
	}

	history := c.ledger.Commit(ctx, c.guestID, c.examID.String(), v.QuestionIDs(), &score)

	var rec model.AttemptRecord
	for _, r := range history {
		if r.ExamID == c.examID.String() {
			rec = r
			break
		}
	}

	c.mu.Lock()
	c.finalRec = &rec
	c.status = model.SessionCompleted
	violations := c.monitor.Count()
	c.mu.Unlock()

	c.log.Info().
		Str("exam_id", c.examID.String()).
		Float64("score", score).
		Int("violations", violations).
		Msg("Session completed")

	if c.hooks.OnCompleted != nil {
		c.hooks.OnCompleted(c.guestID, c.examID, rec, violations)
	}
	return &rec, nil
}

// handleExpiry is the timer's completion callback: time ran out, the
// attempt auto-submits with whatever answers were selected by then.
func (c *Controller) handleExpiry() {
	c.log.Info().Str("exam_id", c.examID.String()).Msg("Time expired, auto-submitting")

	// The originating request is long gone; the commit must not be tied
	// to its context.
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if _, err := c.Submit(ctx); err != nil && !errors.Is(err, ErrNotInProgress) {
		c.log.Error().Err(err).Msg("Auto-submit failed")
	}
}

// Abort leaves the session without committing: required exit actions
// (timer stop, monitor disarm) still run, nothing reaches the ledger.
func (c *Controller) Abort() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.abortInner(nil)
}

func (c *Controller) abortWith(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.abortInner(err)
}

func (c *Controller) abortInner(err error) {
	if c.status == model.SessionCompleted || c.status == model.SessionAborted {
		return
	}
	if c.timer != nil {
		c.timer.Stop()
	}
	c.monitor.Disarm()
	c.status = model.SessionAborted

	evt := c.log.Info()
	if err != nil {
		evt = c.log.Error().Err(err)
	}
	evt.Str("exam_id", c.examID.String()).Msg("Session aborted")
}

// Status returns the current lifecycle state.
func (c *Controller) Status() model.SessionStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// ExamID returns the exam this controller is bound to.
func (c *Controller) ExamID() uuid.UUID {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.examID
}

// Variant returns the randomized paper for this attempt, nil before
// the session reaches InProgress.
func (c *Controller) Variant() *model.ExamVariant {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.variant
}

// Violations returns the integrity counter.
func (c *Controller) Violations() int {
	return c.monitor.Count()
}

// State snapshots the attempt for client reloads.
func (c *Controller) State() model.SessionState {
	c.mu.Lock()
	defer c.mu.Unlock()

	state := model.SessionState{
		ExamID:         c.examID.String(),
		Status:         c.status,
		Answers:        make(map[string]string, len(c.answers)),
		ViolationCount: c.monitor.Count(),
	}
	for k, v := range c.answers {
		state.Answers[k] = v
	}
	if c.variant != nil {
		state.VariantID = c.variant.VariantID
	}
	if c.timer != nil {
		state.RemainingSeconds = c.timer.Remaining()
		state.RemainingDisplay = c.timer.Display()
		state.Progress = c.timer.Progress()
	}
	return state
}
