package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/testply/guestexam-backend/internal/middleware"
	"github.com/testply/guestexam-backend/internal/model"
	"github.com/testply/guestexam-backend/internal/response"
	"github.com/testply/guestexam-backend/internal/service"
	"github.com/testply/guestexam-backend/internal/session"
	"github.com/testply/guestexam-backend/internal/validator"
)

// AttemptHandler handles the lifecycle of one guest exam attempt.
type AttemptHandler struct {
	examService *service.GuestExamService
}

// NewAttemptHandler creates a new AttemptHandler.
func NewAttemptHandler(examService *service.GuestExamService) *AttemptHandler {
	return &AttemptHandler{examService: examService}
}

// guestAndExam extracts the authenticated guest id and the exam id path
// param, writing the error response itself on failure.
func guestAndExam(c *gin.Context) (string, uuid.UUID, bool) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return "", uuid.Nil, false
	}

	examID, err := uuid.Parse(c.Param("exam_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return "", uuid.Nil, false
	}
	return claims.GuestID, examID, true
}

// Enter godoc
// POST /api/v1/guest/exams/:exam_id/enter
// Starts (or resumes) a session and returns the randomized paper.
func (h *AttemptHandler) Enter(c *gin.Context) {
	guestID, examID, ok := guestAndExam(c)
	if !ok {
		return
	}

	paper, err := h.examService.Enter(c.Request.Context(), guestID, examID)
	if err != nil {
		switch {
		case errors.Is(err, session.ErrAccessGated):
			response.Fail(c, http.StatusForbidden, response.ErrAccessGated)
		case errors.Is(err, session.ErrSessionActive):
			response.Fail(c, http.StatusConflict, response.ErrSessionActive)
		case errors.Is(err, session.ErrExamNotFound):
			response.Fail(c, http.StatusNotFound, response.ErrExamNotFound)
		default:
			// Catalog or definition fetch failed: the session aborted,
			// the guest goes back to the catalog.
			response.Fail(c, http.StatusBadGateway, response.ErrExamFetchFailed)
		}
		return
	}

	response.Success(c, http.StatusOK, gin.H{"paper": paper})
}

// GetPaper godoc
// GET /api/v1/guest/exams/:exam_id/paper
// Returns the live session's variant, e.g. after a page reload.
func (h *AttemptHandler) GetPaper(c *gin.Context) {
	guestID, examID, ok := guestAndExam(c)
	if !ok {
		return
	}

	paper, err := h.examService.Paper(guestID, examID)
	if err != nil {
		response.Fail(c, http.StatusNotFound, response.ErrNoSession)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"paper": paper})
}

// GetState godoc
// GET /api/v1/guest/exams/:exam_id/state
// Returns the reload snapshot: answers so far, remaining time, violations.
func (h *AttemptHandler) GetState(c *gin.Context) {
	guestID, examID, ok := guestAndExam(c)
	if !ok {
		return
	}

	state, err := h.examService.State(guestID, examID)
	if err != nil {
		response.Fail(c, http.StatusNotFound, response.ErrNoSession)
		return
	}

	response.Success(c, http.StatusOK, state)
}

// SaveAnswer godoc
// POST /api/v1/guest/exams/:exam_id/answers
// Records one answer selection; last write wins per question.
func (h *AttemptHandler) SaveAnswer(c *gin.Context) {
	guestID, examID, ok := guestAndExam(c)
	if !ok {
		return
	}

	var req model.AnswerRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	if err := h.examService.Answer(guestID, examID, req.QuestionID, req.OptionID); err != nil {
		switch {
		case errors.Is(err, service.ErrNoActiveSession):
			response.Fail(c, http.StatusNotFound, response.ErrNoSession)
		case errors.Is(err, session.ErrNotInProgress):
			response.Fail(c, http.StatusConflict, response.ErrSessionFinished)
		default:
			response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		}
		return
	}

	response.Success(c, http.StatusOK, gin.H{"status": "saved"})
}

// ReportViolation godoc
// POST /api/v1/guest/exams/:exam_id/violations
// Feeds one integrity signal into the session's monitor.
func (h *AttemptHandler) ReportViolation(c *gin.Context) {
	guestID, examID, ok := guestAndExam(c)
	if !ok {
		return
	}

	var req model.ViolationRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	kind, counted, count, err := h.examService.ReportViolation(guestID, examID, req.Signal)
	if err != nil {
		response.Fail(c, http.StatusNotFound, response.ErrNoSession)
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"kind":            kind,
		"counted":         counted,
		"violation_count": count,
	})
}

// Submit godoc
// POST /api/v1/guest/exams/:exam_id/submit
// Finishes the attempt. Safe to call twice: the second call returns the
// already committed record.
func (h *AttemptHandler) Submit(c *gin.Context) {
	guestID, examID, ok := guestAndExam(c)
	if !ok {
		return
	}

	record, violations, err := h.examService.Submit(c.Request.Context(), guestID, examID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrNoActiveSession):
			response.Fail(c, http.StatusNotFound, response.ErrNoSession)
		case errors.Is(err, session.ErrNotInProgress):
			response.Fail(c, http.StatusConflict, response.ErrSessionFinished)
		default:
			response.Fail(c, http.StatusBadGateway, response.ErrSubmitFailed)
		}
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"record":          record,
		"violation_count": violations,
	})
}

// Abort godoc
// POST /api/v1/guest/exams/:exam_id/abort
// Leaves the session without committing anything to the ledger.
func (h *AttemptHandler) Abort(c *gin.Context) {
	guestID, examID, ok := guestAndExam(c)
	if !ok {
		return
	}

	if err := h.examService.Abort(guestID, examID); err != nil {
		response.Fail(c, http.StatusNotFound, response.ErrNoSession)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"status": "aborted"})
}
