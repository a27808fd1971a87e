package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testply/guestexam-backend/internal/model"
)

// ExamRepository handles exam catalog data access.
type ExamRepository struct {
	pool *pgxpool.Pool
}

// NewExamRepository creates a new ExamRepository.
func NewExamRepository(pool *pgxpool.Pool) *ExamRepository {
	return &ExamRepository{pool: pool}
}

// ListPublished retrieves the guest-visible catalog in position order.
// The position ordering is load-bearing: the free-tier boundary is an
// index into this list.
func (r *ExamRepository) ListPublished(ctx context.Context) ([]model.ExamSummary, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT e.id, e.title, e.description, e.duration_minutes, e.position, e.status,
		        (SELECT COUNT(*) FROM questions q WHERE q.exam_id = e.id) AS question_count
		 FROM exams e
		 WHERE e.status = $1
		 ORDER BY e.position, e.created_at`, model.ExamStatusPublished,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var exams []model.ExamSummary
	for rows.Next() {
		var e model.ExamSummary
		if err := rows.Scan(&e.ID, &e.Title, &e.Description, &e.DurationMinutes,
			&e.Position, &e.Status, &e.QuestionCount); err != nil {
			return nil, err
		}
		exams = append(exams, e)
	}
	return exams, rows.Err()
}

// GetDefinition retrieves one published exam with all its questions.
func (r *ExamRepository) GetDefinition(ctx context.Context, id uuid.UUID) (*model.ExamDefinition, error) {
	def := &model.ExamDefinition{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, title, description, duration_minutes, position, status, created_at, updated_at
		 FROM exams WHERE id = $1 AND status = $2`, id, model.ExamStatusPublished,
	).Scan(&def.ID, &def.Title, &def.Description, &def.DurationMinutes,
		&def.Position, &def.Status, &def.CreatedAt, &def.UpdatedAt)
	if err != nil {
		return nil, err
	}

	questions, err := r.listQuestions(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}
	def.Questions = questions
	return def, nil
}

func (r *ExamRepository) listQuestions(ctx context.Context, examID uuid.UUID) ([]model.Question, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, exam_id, question_text, options, correct_option, order_num
		 FROM questions WHERE exam_id = $1
		 ORDER BY order_num`, examID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var questions []model.Question
	for rows.Next() {
		var q model.Question
		var rawOptions []byte
		if err := rows.Scan(&q.ID, &q.ExamID, &q.Text, &rawOptions, &q.CorrectOptionID, &q.OrderNum); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(rawOptions, &q.Options); err != nil {
			return nil, fmt.Errorf("decode options for question %s: %w", q.ID, err)
		}
		questions = append(questions, q)
	}
	return questions, rows.Err()
}

// CreateExam inserts an exam definition; used by the seeder.
func (r *ExamRepository) CreateExam(ctx context.Context, def *model.ExamDefinition) error {
	return r.pool.QueryRow(ctx,
		`INSERT INTO exams (title, description, duration_minutes, position, status)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id, created_at, updated_at`,
		def.Title, def.Description, def.DurationMinutes, def.Position, def.Status,
	).Scan(&def.ID, &def.CreatedAt, &def.UpdatedAt)
}

// CreateQuestion inserts one question; used by the seeder.
func (r *ExamRepository) CreateQuestion(ctx context.Context, q *model.Question) error {
	rawOptions, err := json.Marshal(q.Options)
	if err != nil {
		return err
	}
	return r.pool.QueryRow(ctx,
		`INSERT INTO questions (exam_id, question_text, options, correct_option, order_num)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id`,
		q.ExamID, q.Text, rawOptions, q.CorrectOptionID, q.OrderNum,
	).Scan(&q.ID)
}
