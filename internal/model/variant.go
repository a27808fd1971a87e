package model

import (
	"time"

	"github.com/google/uuid"
)

// ExamVariant is a per-session randomized presentation of an exam
// definition. It carries the same questions and options as its source,
// reordered, with answer keys stripped. Variants are never persisted.
type ExamVariant struct {
	VariantID   string            `json:"variant_id"`
	ExamID      uuid.UUID         `json:"exam_id"`
	GuestID     string            `json:"guest_id"`
	GeneratedAt time.Time         `json:"generated_at"`
	Title       string            `json:"title"`
	Duration    int               `json:"duration_minutes"`
	Questions   []VariantQuestion `json:"questions"`
}

// VariantQuestion is a question as shown to the guest: no answer key.
type VariantQuestion struct {
	ID      uuid.UUID `json:"id"`
	Text    string    `json:"text"`
	Options []Option  `json:"options"`
}

// QuestionIDs returns the ids of all questions in presentation order.
func (v *ExamVariant) QuestionIDs() []string {
	ids := make([]string, 0, len(v.Questions))
	for _, q := range v.Questions {
		ids = append(ids, q.ID.String())
	}
	return ids
}
