package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testply/guestexam-backend/internal/model"
)

// AccessRequestRepository records quota-gated guests asking for access.
type AccessRequestRepository struct {
	pool *pgxpool.Pool
}

// NewAccessRequestRepository creates a new AccessRequestRepository.
func NewAccessRequestRepository(pool *pgxpool.Pool) *AccessRequestRepository {
	return &AccessRequestRepository{pool: pool}
}

// Create inserts one access request.
func (r *AccessRequestRepository) Create(ctx context.Context, req *model.AccessRequest) error {
	return r.pool.QueryRow(ctx,
		`INSERT INTO access_requests (guest_id, exam_id, contact, message)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id, created_at`,
		req.GuestID, req.ExamID, req.Contact, req.Message,
	).Scan(&req.ID, &req.CreatedAt)
}

// ListByExam returns requests for one exam, newest first.
func (r *AccessRequestRepository) ListByExam(ctx context.Context, examID string) ([]model.AccessRequest, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, guest_id, exam_id, contact, message, created_at
		 FROM access_requests
		 WHERE exam_id = $1
		 ORDER BY created_at DESC`, examID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var reqs []model.AccessRequest
	for rows.Next() {
		var req model.AccessRequest
		if err := rows.Scan(&req.ID, &req.GuestID, &req.ExamID, &req.Contact, &req.Message, &req.CreatedAt); err != nil {
			return nil, err
		}
		reqs = append(reqs, req)
	}
	return reqs, rows.Err()
}
