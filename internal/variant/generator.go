package variant

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/testply/guestexam-backend/internal/model"
)

// Rand is the randomness source behind the shuffle. *math/rand.Rand
// satisfies it; tests inject a fixed sequence to assert exact
// permutations.
type Rand interface {
	Intn(n int) int
}

// Generator produces per-session exam variants: same questions, same
// options, freshly randomized order. Determinism is not required; the
// guest identity is only stamped into the variant id for audit.
type Generator struct {
	rnd Rand
	now func() time.Time
}

// NewGenerator creates a Generator. A nil rnd gets a time-seeded
// math/rand source.
func NewGenerator(rnd Rand) *Generator {
	if rnd == nil {
		rnd = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Generator{rnd: rnd, now: time.Now}
}

// Generate builds a randomized variant of def for the given guest.
// The source definition is never mutated. Exams with no questions and
// questions with fewer than two options pass through unchanged.
func (g *Generator) Generate(def *model.ExamDefinition, guestID string) *model.ExamVariant {
	generatedAt := g.now().UTC()

	questions := make([]model.VariantQuestion, len(def.Questions))
	for i, q := range def.Questions {
		options := make([]model.Option, len(q.Options))
		copy(options, q.Options)
		g.shuffleOptions(options)
		questions[i] = model.VariantQuestion{
			ID:      q.ID,
			Text:    q.Text,
			Options: options,
		}
	}
	g.shuffleQuestions(questions)

	return &model.ExamVariant{
		VariantID:   fmt.Sprintf("v-%s-%d", guestID, generatedAt.UnixMilli()),
		ExamID:      def.ID,
		GuestID:     guestID,
		GeneratedAt: generatedAt,
		Title:       def.Title,
		Duration:    def.DurationMinutes,
		Questions:   questions,
	}
}

// shuffleQuestions applies an unbiased Fisher–Yates permutation.
func (g *Generator) shuffleQuestions(qs []model.VariantQuestion) {
	for i := len(qs) - 1; i >= 1; i-- {
		j := g.rnd.Intn(i + 1)
		qs[i], qs[j] = qs[j], qs[i]
	}
}

func (g *Generator) shuffleOptions(opts []model.Option) {
	for i := len(opts) - 1; i >= 1; i-- {
		j := g.rnd.Intn(i + 1)
		opts[i], opts[j] = opts[j], opts[i]
	}
}
