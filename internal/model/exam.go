package model

import (
	"time"

	"github.com/google/uuid"
)

// ExamStatus enumerates the publication states of an exam definition.
type ExamStatus string

const (
	ExamStatusDraft     ExamStatus = "DRAFT"
	ExamStatusPublished ExamStatus = "PUBLISHED"
	ExamStatusArchived  ExamStatus = "ARCHIVED"
)

// ExamDefinition is the authoritative content of one exam: the fixed
// question/option ordering the variant generator permutes per session.
type ExamDefinition struct {
	ID              uuid.UUID  `json:"id"`
	Title           string     `json:"title"`
	Description     string     `json:"description,omitempty"`
	DurationMinutes int        `json:"duration_minutes"`
	Position        int        `json:"position"`
	Status          ExamStatus `json:"status"`
	Questions       []Question `json:"questions"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// ExamSummary is the catalog view of an exam, without question content.
type ExamSummary struct {
	ID              uuid.UUID  `json:"id"`
	Title           string     `json:"title"`
	Description     string     `json:"description,omitempty"`
	DurationMinutes int        `json:"duration_minutes"`
	Position        int        `json:"position"`
	QuestionCount   int        `json:"question_count"`
	Status          ExamStatus `json:"status"`
}

// Question is a single multiple-choice question with its answer key.
// CorrectOptionID never leaves the server; variants strip it.
type Question struct {
	ID              uuid.UUID `json:"id"`
	ExamID          uuid.UUID `json:"exam_id"`
	Text            string    `json:"text"`
	Options         []Option  `json:"options"`
	CorrectOptionID string    `json:"correct_option_id,omitempty"`
	OrderNum        int       `json:"order_num"`
}

// Option is one selectable answer for a question.
type Option struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}
