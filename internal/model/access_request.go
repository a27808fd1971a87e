package model

import (
	"time"

	"github.com/google/uuid"
)

// AccessRequest records a quota-gated guest asking for access to an
// exam beyond the free tier. Follow-up happens outside this service.
type AccessRequest struct {
	ID        int       `json:"id"`
	GuestID   string    `json:"guest_id"`
	ExamID    uuid.UUID `json:"exam_id"`
	Contact   string    `json:"contact"`
	Message   string    `json:"message,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// AccessRequestPayload is the request body for the gating escape hatch.
type AccessRequestPayload struct {
	Contact string `json:"contact" binding:"required,min=3,max=255"`
	Message string `json:"message" binding:"omitempty,max=2000"`
}
