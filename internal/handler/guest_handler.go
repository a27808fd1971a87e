package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/testply/guestexam-backend/internal/middleware"
	"github.com/testply/guestexam-backend/internal/model"
	"github.com/testply/guestexam-backend/internal/response"
	"github.com/testply/guestexam-backend/internal/service"
	"github.com/testply/guestexam-backend/internal/validator"
)

// GuestHandler handles identity and catalog endpoints.
type GuestHandler struct {
	examService *service.GuestExamService
	authService *service.AuthService
}

// NewGuestHandler creates a new GuestHandler.
func NewGuestHandler(examService *service.GuestExamService, authService *service.AuthService) *GuestHandler {
	return &GuestHandler{
		examService: examService,
		authService: authService,
	}
}

// Identify godoc
// POST /api/v1/guest/identify
// Returns the presented identity when it is still known, otherwise a
// freshly minted one, together with a bearer token for both cases.
// The endpoint is deliberately unauthenticated: it is how a device
// obtains its identity in the first place.
func (h *GuestHandler) Identify(c *gin.Context) {
	presented := ""
	if header := c.GetHeader("Authorization"); header != "" {
		if claims, err := h.authService.ValidateToken(trimBearer(header)); err == nil {
			presented = claims.GuestID
		}
	}

	guestID, isNew := h.examService.Identify(c.Request.Context(), presented)

	token, err := h.authService.IssueGuestToken(guestID)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"guest_id": guestID,
		"token":    token,
		"is_new":   isNew,
	})
}

// GetLobby godoc
// GET /api/v1/guest/exams
// Returns the catalog with per-exam gating status and remaining quota.
func (h *GuestHandler) GetLobby(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	lobby, remaining, err := h.examService.Lobby(c.Request.Context(), claims.GuestID)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	if lobby == nil {
		lobby = []service.LobbyExam{}
	}

	response.Success(c, http.StatusOK, gin.H{
		"exams":           lobby,
		"remaining_quota": remaining,
	})
}

// Reset godoc
// POST /api/v1/guest/reset
// Wipes the guest's attempt history and any live session, restoring
// the full free quota. The identity itself stays valid.
func (h *GuestHandler) Reset(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	h.examService.ResetHistory(c.Request.Context(), claims.GuestID)

	response.Success(c, http.StatusOK, gin.H{"status": "reset"})
}

// RequestAccess godoc
// POST /api/v1/guest/exams/:exam_id/request-access
// The gating escape hatch: records the guest's contact details so a
// consultant can follow up about paid access.
func (h *GuestHandler) RequestAccess(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	examID, err := uuid.Parse(c.Param("exam_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	var payload model.AccessRequestPayload
	if fields := validator.Bind(c, &payload); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	if err := h.examService.RequestAccess(c.Request.Context(), claims.GuestID, examID, payload); err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusAccepted, gin.H{"status": "requested"})
}

func trimBearer(header string) string {
	const prefix = "Bearer "
	if len(header) > len(prefix) && header[:len(prefix)] == prefix {
		return header[len(prefix):]
	}
	return header
}
