package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/testply/guestexam-backend/internal/middleware"
	"github.com/testply/guestexam-backend/internal/response"
	"github.com/testply/guestexam-backend/internal/service"
	ws "github.com/testply/guestexam-backend/internal/websocket"
)

// buildUpgrader creates a WebSocket upgrader with origin validation.
// An empty allowedOrigins permits all origins (development mode).
func buildUpgrader(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowedOrigins) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			for _, allowed := range allowedOrigins {
				if strings.EqualFold(allowed, origin) {
					return true
				}
			}
			return false
		},
	}
}

// WSHandler streams one live attempt: autosave, violation reporting,
// clock sync, and submit over a single connection.
type WSHandler struct {
	examService *service.GuestExamService
	log         zerolog.Logger
	upgrader    websocket.Upgrader
}

// NewWSHandler creates a new WSHandler.
func NewWSHandler(examService *service.GuestExamService, log zerolog.Logger, allowedOrigins []string) *WSHandler {
	return &WSHandler{
		examService: examService,
		log:         log.With().Str("component", "ws_handler").Logger(),
		upgrader:    buildUpgrader(allowedOrigins),
	}
}

// AttemptStream godoc
// WS /ws/v1/guest/exams/:exam_id/stream
// Upgrades to WebSocket for the duration of an attempt.
func (h *WSHandler) AttemptStream(c *gin.Context) {
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

	// A stream without a live session has nothing to talk about.
	if _, err := h.examService.State(claims.GuestID, examID); err != nil {
		response.Fail(c, http.StatusNotFound, response.ErrNoSession)
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	guestID := claims.GuestID
	wsLog := h.log.With().
		Str("guest_id", guestID).
		Str("exam_id", examID.String()).
		Logger()

	wsLog.Info().Msg("Guest connected")

	for {
		var msg ws.RequestPayload
		if err := ws.ReadJSON(conn, &msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				wsLog.Warn().Err(err).Msg("Unexpected close")
			} else {
				wsLog.Debug().Msg("Connection closed")
			}
			return
		}

		switch msg.Action {
		case ws.ActionAutosave:
			h.handleAutosave(conn, guestID, examID, &msg)
		case ws.ActionViolation:
			h.handleViolation(conn, guestID, examID, &msg)
		case ws.ActionSubmit:
			h.handleSubmit(conn, wsLog, guestID, examID)
		case ws.ActionPing:
			h.handlePing(conn, guestID, examID)
		default:
			wsLog.Warn().Str("action", string(msg.Action)).Msg("Unknown action")
			ws.WriteError(conn, "unknown action: "+string(msg.Action))
		}
	}
}

func (h *WSHandler) handleAutosave(conn *websocket.Conn, guestID string, examID uuid.UUID, msg *ws.RequestPayload) {
	if msg.QuestionID == "" || msg.OptionID == "" {
		ws.WriteError(conn, "question_id and option_id are required")
		return
	}

	// Question ids are UUIDs; reject junk before it lands in the answer map.
	if _, err := uuid.Parse(msg.QuestionID); err != nil {
		ws.WriteError(conn, "invalid question_id format")
		return
	}

	if err := h.examService.Answer(guestID, examID, msg.QuestionID, msg.OptionID); err != nil {
		ws.WriteError(conn, "save failed: session is not in progress")
		return
	}

	ws.WriteTyped(conn, ws.SavedResponse{Event: ws.EventSaved, QuestionID: msg.QuestionID})
}

func (h *WSHandler) handleViolation(conn *websocket.Conn, guestID string, examID uuid.UUID, msg *ws.RequestPayload) {
	if msg.Signal == "" {
		ws.WriteError(conn, "signal is required")
		return
	}

	kind, counted, count, err := h.examService.ReportViolation(guestID, examID, msg.Signal)
	if err != nil {
		ws.WriteError(conn, "no active session")
		return
	}

	ws.WriteTyped(conn, ws.ViolationResponse{
		Event:   ws.EventViolation,
		Kind:    string(kind),
		Count:   count,
		Counted: counted,
	})
}

func (h *WSHandler) handleSubmit(conn *websocket.Conn, wsLog zerolog.Logger, guestID string, examID uuid.UUID) {
	record, violations, err := h.examService.Submit(context.Background(), guestID, examID)
	if err != nil {
		wsLog.Error().Err(err).Msg("WS submit failed")
		ws.WriteError(conn, "submit failed, answers preserved")
		return
	}

	wsLog.Info().
		Int("violations", violations).
		Msg("Attempt submitted over WS")

	ws.WriteTyped(conn, ws.GradedResponse{Event: ws.EventGraded, Score: record.Score})
}

// handlePing doubles as clock sync: the reply carries the server's view
// of the countdown so client renderings cannot drift.
func (h *WSHandler) handlePing(conn *websocket.Conn, guestID string, examID uuid.UUID) {
	state, err := h.examService.State(guestID, examID)
	if err != nil {
		ws.WriteError(conn, "no active session")
		return
	}

	ws.WriteTyped(conn, ws.TickResponse{
		Event:     ws.EventTick,
		Remaining: state.RemainingSeconds,
		Display:   state.RemainingDisplay,
	})
}
