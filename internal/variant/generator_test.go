package variant

import (
	"sort"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/testply/guestexam-backend/internal/model"
)

// zeroRand always picks index 0, which turns every Fisher-Yates pass
// into a deterministic left rotation by one.
type zeroRand struct{}

func (zeroRand) Intn(int) int { return 0 }

func buildDefinition(questionCount, optionCount int) *model.ExamDefinition {
	def := &model.ExamDefinition{
		ID:              uuid.New(),
		Title:           "Sample",
		DurationMinutes: 30,
		Status:          model.ExamStatusPublished,
	}
	for i := 0; i < questionCount; i++ {
		q := model.Question{
			ID:       uuid.New(),
			ExamID:   def.ID,
			Text:     "question",
			OrderNum: i + 1,
		}
		for j := 0; j < optionCount; j++ {
			q.Options = append(q.Options, model.Option{
				ID:   string(rune('a' + j)),
				Text: "option",
			})
		}
		q.CorrectOptionID = q.Options[0].ID
		def.Questions = append(def.Questions, q)
	}
	return def
}

func TestGeneratePreservesContent(t *testing.T) {
	def := buildDefinition(10, 4)
	gen := NewGenerator(nil)

	v := gen.Generate(def, "g-1")

	if len(v.Questions) != len(def.Questions) {
		t.Fatalf("variant has %d questions, want %d", len(v.Questions), len(def.Questions))
	}

	// Same question ids as a multiset, and per question the same option ids.
	wantQuestions := make(map[uuid.UUID][]string)
	for _, q := range def.Questions {
		ids := make([]string, len(q.Options))
		for i, o := range q.Options {
			ids[i] = o.ID
		}
		sort.Strings(ids)
		wantQuestions[q.ID] = ids
	}

	for _, q := range v.Questions {
		wantOpts, ok := wantQuestions[q.ID]
		if !ok {
			t.Fatalf("variant question %s not present in definition", q.ID)
		}
		gotOpts := make([]string, len(q.Options))
		for i, o := range q.Options {
			gotOpts[i] = o.ID
		}
		sort.Strings(gotOpts)
		if len(gotOpts) != len(wantOpts) {
			t.Fatalf("question %s: %d options, want %d", q.ID, len(gotOpts), len(wantOpts))
		}
		for i := range gotOpts {
			if gotOpts[i] != wantOpts[i] {
				t.Fatalf("question %s: option set changed", q.ID)
			}
		}
		delete(wantQuestions, q.ID)
	}
	if len(wantQuestions) != 0 {
		t.Errorf("%d definition questions missing from variant", len(wantQuestions))
	}
}

func TestGenerateDoesNotMutateDefinition(t *testing.T) {
	def := buildDefinition(8, 4)

	originalOrder := make([]uuid.UUID, len(def.Questions))
	for i, q := range def.Questions {
		originalOrder[i] = q.ID
	}
	originalOpts := make([]string, len(def.Questions[0].Options))
	for i, o := range def.Questions[0].Options {
		originalOpts[i] = o.ID
	}

	NewGenerator(nil).Generate(def, "g-1")

	for i, q := range def.Questions {
		if q.ID != originalOrder[i] {
			t.Fatal("definition question order mutated")
		}
		if q.CorrectOptionID == "" {
			t.Fatal("definition answer key cleared")
		}
	}
	for i, o := range def.Questions[0].Options {
		if o.ID != originalOpts[i] {
			t.Fatal("definition option order mutated")
		}
	}
}

func TestGenerateStripsAnswerKeys(t *testing.T) {
	def := buildDefinition(3, 4)
	v := NewGenerator(nil).Generate(def, "g-1")

	// VariantQuestion has no answer key field; verify the definition
	// still has its keys and the variant question ids line up.
	ids := v.QuestionIDs()
	if len(ids) != 3 {
		t.Fatalf("QuestionIDs length = %d, want 3", len(ids))
	}
	for _, q := range def.Questions {
		if q.CorrectOptionID == "" {
			t.Error("definition lost its answer key")
		}
	}
}

func TestGenerateDeterministicWithFixedRand(t *testing.T) {
	def := buildDefinition(3, 3)
	v := NewGenerator(zeroRand{}).Generate(def, "g-1")

	// Questions rotate left by one: q2, q3, q1.
	wantOrder := []uuid.UUID{def.Questions[1].ID, def.Questions[2].ID, def.Questions[0].ID}
	for i, q := range v.Questions {
		if q.ID != wantOrder[i] {
			t.Fatalf("question %d = %s, want %s", i, q.ID, wantOrder[i])
		}
	}

	// Options rotate left by one: b, c, a.
	wantOpts := []string{"b", "c", "a"}
	for _, q := range v.Questions {
		for i, o := range q.Options {
			if o.ID != wantOpts[i] {
				t.Fatalf("option %d = %s, want %s", i, o.ID, wantOpts[i])
			}
		}
	}
}

func TestGenerateEdgeCases(t *testing.T) {
	gen := NewGenerator(nil)

	empty := buildDefinition(0, 0)
	v := gen.Generate(empty, "g-1")
	if len(v.Questions) != 0 {
		t.Errorf("empty definition produced %d questions", len(v.Questions))
	}

	single := buildDefinition(1, 1)
	v = gen.Generate(single, "g-1")
	if len(v.Questions) != 1 || len(v.Questions[0].Options) != 1 {
		t.Error("single question with one option should pass through")
	}
	if v.Questions[0].Options[0].ID != "a" {
		t.Error("lone option changed identity")
	}
}

func TestVariantIDEmbedsGuest(t *testing.T) {
	def := buildDefinition(1, 2)
	v := NewGenerator(nil).Generate(def, "g-42")

	if !strings.HasPrefix(v.VariantID, "v-g-42-") {
		t.Errorf("variant id = %q, want prefix v-g-42-", v.VariantID)
	}
	if v.GuestID != "g-42" {
		t.Errorf("guest id = %q, want g-42", v.GuestID)
	}
	if v.ExamID != def.ID {
		t.Error("variant exam id mismatch")
	}
}
