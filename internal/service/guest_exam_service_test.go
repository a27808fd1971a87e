package service

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/testply/guestexam-backend/internal/integrity"
	"github.com/testply/guestexam-backend/internal/kv"
	"github.com/testply/guestexam-backend/internal/ledger"
	"github.com/testply/guestexam-backend/internal/model"
	"github.com/testply/guestexam-backend/internal/session"
	"github.com/testply/guestexam-backend/internal/variant"
)

type stubCatalog struct {
	exams []model.ExamSummary
	defs  map[uuid.UUID]*model.ExamDefinition
}

func (s *stubCatalog) ListGuestExams(context.Context) ([]model.ExamSummary, error) {
	return s.exams, nil
}

func (s *stubCatalog) GetDefinition(_ context.Context, examID uuid.UUID) (*model.ExamDefinition, error) {
	def, ok := s.defs[examID]
	if !ok {
		return nil, session.ErrExamNotFound
	}
	return def, nil
}

func newStubCatalog(examCount int) *stubCatalog {
	s := &stubCatalog{defs: make(map[uuid.UUID]*model.ExamDefinition)}
	for i := 0; i < examCount; i++ {
		def := &model.ExamDefinition{
			ID:              uuid.New(),
			Title:           "Exam",
			DurationMinutes: 30,
			Position:        i,
			Status:          model.ExamStatusPublished,
			Questions: []model.Question{
				{
					ID:   uuid.New(),
					Text: "question",
					Options: []model.Option{
						{ID: "a", Text: "first"},
						{ID: "b", Text: "second"},
					},
					CorrectOptionID: "a",
					OrderNum:        1,
				},
			},
		}
		s.defs[def.ID] = def
		s.exams = append(s.exams, model.ExamSummary{
			ID:              def.ID,
			Title:           def.Title,
			DurationMinutes: def.DurationMinutes,
			Position:        i,
			QuestionCount:   1,
			Status:          def.Status,
		})
	}
	return s
}

func newTestService(examCount int) (*GuestExamService, *stubCatalog) {
	catalog := newStubCatalog(examCount)
	svc := NewGuestExamService(
		ledger.New(kv.NewMemoryStore(), zerolog.Nop()),
		catalog,
		variant.NewGenerator(nil),
		session.LocalGrader{},
		nil,
		kv.NewMemoryStore(),
		nil,
		zerolog.Nop(),
	)
	return svc, catalog
}

// gateCatalog parks ListGuestExams callers until released, opening the
// window between the registry check and the session going live.
type gateCatalog struct {
	*stubCatalog
	arrived chan struct{}
	release chan struct{}
}

func (g *gateCatalog) ListGuestExams(ctx context.Context) ([]model.ExamSummary, error) {
	g.arrived <- struct{}{}
	<-g.release
	return g.stubCatalog.ListGuestExams(ctx)
}

func TestIdentifyMintsAndReuses(t *testing.T) {
	svc, _ := newTestService(1)
	ctx := context.Background()

	id, fresh := svc.Identify(ctx, "")
	if id == "" || !fresh {
		t.Fatalf("Identify empty = (%q, %v), want fresh identity", id, fresh)
	}

	same, fresh := svc.Identify(ctx, id)
	if same != id || fresh {
		t.Errorf("Identify known = (%q, %v), want (%q, false)", same, fresh, id)
	}

	// An unknown presented id is replaced, never trusted.
	other, fresh := svc.Identify(ctx, "g-0-forged")
	if other == "g-0-forged" || !fresh {
		t.Errorf("Identify forged = (%q, %v), want a fresh id", other, fresh)
	}
}

func TestLobbyStatuses(t *testing.T) {
	svc, catalog := newTestService(4)
	ctx := context.Background()
	guestID, _ := svc.Identify(ctx, "")

	lobby, remaining, err := svc.Lobby(ctx, guestID)
	if err != nil {
		t.Fatalf("Lobby: %v", err)
	}
	if remaining != ledger.MaxFreeAttempts {
		t.Errorf("remaining = %d, want %d", remaining, ledger.MaxFreeAttempts)
	}

	wantStatuses := []LobbyStatus{
		LobbyStatusAvailable, LobbyStatusAvailable,
		LobbyStatusGated, LobbyStatusGated,
	}
	for i, entry := range lobby {
		if entry.LobbyStatus != wantStatuses[i] {
			t.Errorf("exam %d status = %s, want %s", i, entry.LobbyStatus, wantStatuses[i])
		}
	}

	// A live session marks its exam IN_PROGRESS.
	if _, err := svc.Enter(ctx, guestID, catalog.exams[0].ID); err != nil {
		t.Fatalf("Enter: %v", err)
	}
	lobby, _, err = svc.Lobby(ctx, guestID)
	if err != nil {
		t.Fatalf("Lobby: %v", err)
	}
	if lobby[0].LobbyStatus != LobbyStatusInProgress {
		t.Errorf("live exam status = %s, want %s", lobby[0].LobbyStatus, LobbyStatusInProgress)
	}

	// Completing it flips to COMPLETED with a score and burns quota.
	if _, _, err := svc.Submit(ctx, guestID, catalog.exams[0].ID); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	lobby, remaining, err = svc.Lobby(ctx, guestID)
	if err != nil {
		t.Fatalf("Lobby: %v", err)
	}
	if lobby[0].LobbyStatus != LobbyStatusCompleted {
		t.Errorf("completed exam status = %s, want %s", lobby[0].LobbyStatus, LobbyStatusCompleted)
	}
	if lobby[0].Score == nil {
		t.Error("completed exam should carry its score")
	}
	if remaining != ledger.MaxFreeAttempts-1 {
		t.Errorf("remaining after one completion = %d, want %d", remaining, ledger.MaxFreeAttempts-1)
	}
}

func TestEnterResumesSameExamRefusesOther(t *testing.T) {
	svc, catalog := newTestService(3)
	ctx := context.Background()
	guestID, _ := svc.Identify(ctx, "")

	first, err := svc.Enter(ctx, guestID, catalog.exams[0].ID)
	if err != nil {
		t.Fatalf("Enter: %v", err)
	}

	// Same exam: resume, same variant, no regeneration.
	resumed, err := svc.Enter(ctx, guestID, catalog.exams[0].ID)
	if err != nil {
		t.Fatalf("re-Enter: %v", err)
	}
	if resumed.VariantID != first.VariantID {
		t.Error("re-entering the live exam regenerated the variant")
	}

	// Different exam while one is live: refused.
	if _, err := svc.Enter(ctx, guestID, catalog.exams[1].ID); !errors.Is(err, session.ErrSessionActive) {
		t.Errorf("Enter other exam: err = %v, want ErrSessionActive", err)
	}

	// After aborting, the other exam opens normally.
	if err := svc.Abort(guestID, catalog.exams[0].ID); err != nil {
		t.Fatalf("Abort: %v", err)
	}
	if _, err := svc.Enter(ctx, guestID, catalog.exams[1].ID); err != nil {
		t.Fatalf("Enter after abort: %v", err)
	}
}

func TestOperationsRequireLiveSession(t *testing.T) {
	svc, catalog := newTestService(2)
	ctx := context.Background()
	guestID, _ := svc.Identify(ctx, "")
	examID := catalog.exams[0].ID

	if _, err := svc.Paper(guestID, examID); !errors.Is(err, ErrNoActiveSession) {
		t.Errorf("Paper: err = %v, want ErrNoActiveSession", err)
	}
	if _, err := svc.State(guestID, examID); !errors.Is(err, ErrNoActiveSession) {
		t.Errorf("State: err = %v, want ErrNoActiveSession", err)
	}
	if err := svc.Answer(guestID, examID, "q", "a"); !errors.Is(err, ErrNoActiveSession) {
		t.Errorf("Answer: err = %v, want ErrNoActiveSession", err)
	}
	if _, _, _, err := svc.ReportViolation(guestID, examID, "copy"); !errors.Is(err, ErrNoActiveSession) {
		t.Errorf("ReportViolation: err = %v, want ErrNoActiveSession", err)
	}
	if _, _, err := svc.Submit(ctx, guestID, examID); !errors.Is(err, ErrNoActiveSession) {
		t.Errorf("Submit: err = %v, want ErrNoActiveSession", err)
	}

	// A session on exam 0 does not satisfy requests scoped to exam 1.
	if _, err := svc.Enter(ctx, guestID, examID); err != nil {
		t.Fatalf("Enter: %v", err)
	}
	if _, err := svc.Paper(guestID, catalog.exams[1].ID); !errors.Is(err, ErrNoActiveSession) {
		t.Errorf("Paper other exam: err = %v, want ErrNoActiveSession", err)
	}
}

func TestAnswerAndViolationFlow(t *testing.T) {
	svc, catalog := newTestService(2)
	ctx := context.Background()
	guestID, _ := svc.Identify(ctx, "")
	examID := catalog.exams[0].ID

	v, err := svc.Enter(ctx, guestID, examID)
	if err != nil {
		t.Fatalf("Enter: %v", err)
	}
	qid := v.Questions[0].ID.String()

	if err := svc.Answer(guestID, examID, qid, "a"); err != nil {
		t.Fatalf("Answer: %v", err)
	}

	kind, counted, count, err := svc.ReportViolation(guestID, examID, "visibility_hidden")
	if err != nil {
		t.Fatalf("ReportViolation: %v", err)
	}
	if !counted || kind != integrity.KindTabSwitch || count != 1 {
		t.Errorf("violation = (%s, %v, %d), want (%s, true, 1)", kind, counted, count, integrity.KindTabSwitch)
	}

	// Unknown signals are not errors, just uncounted.
	_, counted, count, err = svc.ReportViolation(guestID, examID, "mousedown")
	if err != nil || counted || count != 1 {
		t.Errorf("unknown signal = (%v, %d, %v), want (false, 1, nil)", counted, count, err)
	}

	state, err := svc.State(guestID, examID)
	if err != nil {
		t.Fatalf("State: %v", err)
	}
	if state.Answers[qid] != "a" {
		t.Errorf("state answer = %q, want %q", state.Answers[qid], "a")
	}
	if state.ViolationCount != 1 {
		t.Errorf("state violations = %d, want 1", state.ViolationCount)
	}

	rec, violations, err := svc.Submit(ctx, guestID, examID)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if *rec.Score != 100 {
		t.Errorf("score = %v, want 100", *rec.Score)
	}
	if violations != 1 {
		t.Errorf("violations = %d, want 1", violations)
	}
}

func TestConcurrentEnterKeepsOneSession(t *testing.T) {
	gate := &gateCatalog{
		stubCatalog: newStubCatalog(2),
		arrived:     make(chan struct{}, 2),
		release:     make(chan struct{}),
	}
	attemptLedger := ledger.New(kv.NewMemoryStore(), zerolog.Nop())
	svc := NewGuestExamService(
		attemptLedger,
		gate,
		variant.NewGenerator(nil),
		session.LocalGrader{},
		nil,
		kv.NewMemoryStore(),
		nil,
		zerolog.Nop(),
	)

	ctx := context.Background()
	guestID, _ := svc.Identify(ctx, "")
	examA := gate.stubCatalog.exams[0].ID
	examB := gate.stubCatalog.exams[1].ID

	errs := make(chan error, 2)
	for _, examID := range []uuid.UUID{examA, examB} {
		examID := examID
		go func() {
			_, err := svc.Enter(ctx, guestID, examID)
			errs <- err
		}()
	}

	// Both entries are parked past the registry check before either
	// session goes live.
	<-gate.arrived
	<-gate.arrived
	close(gate.release)

	var failures []error
	for i := 0; i < 2; i++ {
		if err := <-errs; err != nil {
			failures = append(failures, err)
		}
	}
	if len(failures) != 1 {
		t.Fatalf("got %d failed entries, want exactly 1 (%v)", len(failures), failures)
	}
	if !errors.Is(failures[0], session.ErrSessionActive) {
		t.Fatalf("losing Enter: err = %v, want ErrSessionActive", failures[0])
	}

	// Exactly one session is live; the loser's exam answers nothing.
	live := 0
	for _, examID := range []uuid.UUID{examA, examB} {
		if _, err := svc.State(guestID, examID); err == nil {
			live++
		}
	}
	if live != 1 {
		t.Errorf("live sessions = %d, want 1", live)
	}

	// The torn-down loser must never commit a phantom attempt.
	if got := len(attemptLedger.LoadHistory(ctx, guestID)); got != 0 {
		t.Errorf("ledger has %d records after the race, want 0", got)
	}
}

func TestConcurrentEnterSameExamSharesVariant(t *testing.T) {
	gate := &gateCatalog{
		stubCatalog: newStubCatalog(1),
		arrived:     make(chan struct{}, 2),
		release:     make(chan struct{}),
	}
	svc := NewGuestExamService(
		ledger.New(kv.NewMemoryStore(), zerolog.Nop()),
		gate,
		variant.NewGenerator(nil),
		session.LocalGrader{},
		nil,
		kv.NewMemoryStore(),
		nil,
		zerolog.Nop(),
	)

	ctx := context.Background()
	guestID, _ := svc.Identify(ctx, "")
	examID := gate.stubCatalog.exams[0].ID

	type result struct {
		v   *model.ExamVariant
		err error
	}
	results := make(chan result, 2)
	for i := 0; i < 2; i++ {
		go func() {
			v, err := svc.Enter(ctx, guestID, examID)
			results <- result{v, err}
		}()
	}

	<-gate.arrived
	<-gate.arrived
	close(gate.release)

	// A double-clicked entry resolves to one live session; both callers
	// get the same paper.
	first := <-results
	second := <-results
	if first.err != nil || second.err != nil {
		t.Fatalf("double-click Enter errs = (%v, %v), want both nil", first.err, second.err)
	}
	if first.v.VariantID != second.v.VariantID {
		t.Errorf("variants %q and %q differ, want one shared session", first.v.VariantID, second.v.VariantID)
	}
}

func TestAutosavedAnswersSurviveRestart(t *testing.T) {
	catalog := newStubCatalog(2)
	ledgerStore := kv.NewMemoryStore()
	answerStore := kv.NewMemoryStore()
	newSvc := func() *GuestExamService {
		return NewGuestExamService(
			ledger.New(ledgerStore, zerolog.Nop()),
			catalog,
			variant.NewGenerator(nil),
			session.LocalGrader{},
			nil,
			answerStore,
			nil,
			zerolog.Nop(),
		)
	}

	ctx := context.Background()
	svc := newSvc()
	guestID, _ := svc.Identify(ctx, "")
	examID := catalog.exams[0].ID

	v, err := svc.Enter(ctx, guestID, examID)
	if err != nil {
		t.Fatalf("Enter: %v", err)
	}
	qid := v.Questions[0].ID.String()
	if err := svc.Answer(guestID, examID, qid, "b"); err != nil {
		t.Fatalf("Answer: %v", err)
	}

	// A new service over the same stores is a restarted server: the
	// registry is empty but the buffered answers come back.
	restarted := newSvc()
	if _, err := restarted.Enter(ctx, guestID, examID); err != nil {
		t.Fatalf("Enter after restart: %v", err)
	}
	state, err := restarted.State(guestID, examID)
	if err != nil {
		t.Fatalf("State after restart: %v", err)
	}
	if state.Answers[qid] != "b" {
		t.Errorf("restored answer = %q, want %q", state.Answers[qid], "b")
	}

	// Abort clears the buffer; the next entry starts blank.
	if err := restarted.Abort(guestID, examID); err != nil {
		t.Fatalf("Abort: %v", err)
	}
	if _, err := restarted.Enter(ctx, guestID, examID); err != nil {
		t.Fatalf("re-Enter: %v", err)
	}
	state, err = restarted.State(guestID, examID)
	if err != nil {
		t.Fatalf("State: %v", err)
	}
	if len(state.Answers) != 0 {
		t.Errorf("answers after abort = %v, want none", state.Answers)
	}
}

func TestSubmitClearsAutosaveBuffer(t *testing.T) {
	svc, catalog := newTestService(2)
	ctx := context.Background()
	guestID, _ := svc.Identify(ctx, "")
	examID := catalog.exams[0].ID

	v, err := svc.Enter(ctx, guestID, examID)
	if err != nil {
		t.Fatalf("Enter: %v", err)
	}
	qid := v.Questions[0].ID.String()
	if err := svc.Answer(guestID, examID, qid, "b"); err != nil {
		t.Fatalf("Answer: %v", err)
	}
	if _, _, err := svc.Submit(ctx, guestID, examID); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	// A retake must not restore the previous attempt's selections.
	if _, err := svc.Enter(ctx, guestID, examID); err != nil {
		t.Fatalf("retake Enter: %v", err)
	}
	state, err := svc.State(guestID, examID)
	if err != nil {
		t.Fatalf("State: %v", err)
	}
	if len(state.Answers) != 0 {
		t.Errorf("retake answers = %v, want none", state.Answers)
	}
}

func TestResetHistoryRestoresQuota(t *testing.T) {
	svc, catalog := newTestService(3)
	ctx := context.Background()
	guestID, _ := svc.Identify(ctx, "")

	if _, err := svc.Enter(ctx, guestID, catalog.exams[0].ID); err != nil {
		t.Fatalf("Enter: %v", err)
	}
	if _, _, err := svc.Submit(ctx, guestID, catalog.exams[0].ID); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if _, remaining, _ := svc.Lobby(ctx, guestID); remaining != ledger.MaxFreeAttempts-1 {
		t.Fatalf("remaining before reset = %d, want %d", remaining, ledger.MaxFreeAttempts-1)
	}

	// A live session on another exam is torn down by the reset too.
	if _, err := svc.Enter(ctx, guestID, catalog.exams[1].ID); err != nil {
		t.Fatalf("Enter second exam: %v", err)
	}

	svc.ResetHistory(ctx, guestID)

	if _, err := svc.State(guestID, catalog.exams[1].ID); !errors.Is(err, ErrNoActiveSession) {
		t.Errorf("State after reset: err = %v, want ErrNoActiveSession", err)
	}
	lobby, remaining, err := svc.Lobby(ctx, guestID)
	if err != nil {
		t.Fatalf("Lobby after reset: %v", err)
	}
	if remaining != ledger.MaxFreeAttempts {
		t.Errorf("remaining after reset = %d, want %d", remaining, ledger.MaxFreeAttempts)
	}
	if lobby[0].LobbyStatus != LobbyStatusAvailable {
		t.Errorf("reset exam status = %s, want %s", lobby[0].LobbyStatus, LobbyStatusAvailable)
	}

	// The identity survives; only the history is gone.
	if same, fresh := svc.Identify(ctx, guestID); same != guestID || fresh {
		t.Errorf("Identify after reset = (%q, %v), want (%q, false)", same, fresh, guestID)
	}
}

func TestRequestAccessWithoutRepo(t *testing.T) {
	svc, catalog := newTestService(3)
	ctx := context.Background()
	guestID, _ := svc.Identify(ctx, "")

	err := svc.RequestAccess(ctx, guestID, catalog.exams[2].ID, model.AccessRequestPayload{
		Contact: "guest@example.com",
		Message: "please open the advanced exams",
	})
	if err != nil {
		t.Fatalf("RequestAccess without repo: %v", err)
	}
}
