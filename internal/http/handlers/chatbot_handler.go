// Chatbot HTTP handlers.
//
// This file exposes REST endpoints for the ephemeral AI chatbot:
//   - POST   /chatbot/turn      (one user/assistant exchange)
//   - GET    /chatbot/history   (visible turns, oldest first)
//   - DELETE /chatbot/history   (user-initiated clear)
//   - POST   /chatbot/cleanup   (admin: sweep expired rows)
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yamifit/yamifit-backend/internal/services"
)

// ChatbotTurnRequest is the JSON payload for one chatbot exchange.
type ChatbotTurnRequest struct {
	Text string `json:"text" binding:"required" example:"What should I eat before a morning run?"`
}

// @ID          chatbotTurn
// @Summary     Ask the chatbot
// @Description Runs one exchange. If the answer could not be persisted the
// @Description response still carries the assistant text with a
// @Description history_unavailable warning.
// @Tags        Chatbot
// @Accept      json
// @Produce     json
// @Success     200 {object} map[string]any
// @Failure     400 {object} handlers.ErrorResponse
// @Failure     503 {object} handlers.ErrorResponse "transient"
// @Router      /chatbot/turn [post]
func (h *Handlers) ChatbotTurn(c *gin.Context) {
	p, okP := principal(c)
	if !okP {
		return
	}
	var req ChatbotTurnRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "text is required")
		return
	}

	res, err := h.botSvc.Turn(c.Request.Context(), p, req.Text)
	if errors.Is(err, services.ErrHistoryUnavailable) && res != nil {
		// The assistant answered but the turn was not persisted; return the
		// text so the user still gets their answer.
		ok(c, http.StatusOK, gin.H{
			"assistant_text": res.AssistantText,
			"warning":        ErrCodeHistoryUnavailable,
		})
		return
	}
	if err != nil {
		failService(c, err)
		return
	}
	ok(c, http.StatusOK, gin.H{
		"user_message":      res.UserMsg,
		"assistant_message": res.AssistantMsg,
		"assistant_text":    res.AssistantText,
	})
}

// @ID          chatbotHistory
// @Summary     Chatbot history
// @Description Returns the caller's visible turns, oldest first. Turns expire
// @Description 24 hours after creation.
// @Tags        Chatbot
// @Produce     json
// @Success     200 {object} map[string]any
// @Router      /chatbot/history [get]
func (h *Handlers) ChatbotHistory(c *gin.Context) {
	p, okP := principal(c)
	if !okP {
		return
	}
	hist, err := h.botSvc.History(c.Request.Context(), p, p.ID)
	if err != nil {
		failService(c, err)
		return
	}
	ok(c, http.StatusOK, gin.H{"messages": hist})
}

// @ID          chatbotPurge
// @Summary     Clear chatbot history
// @Tags        Chatbot
// @Produce     json
// @Success     200 {object} map[string]any
// @Router      /chatbot/history [delete]
func (h *Handlers) ChatbotPurge(c *gin.Context) {
	p, okP := principal(c)
	if !okP {
		return
	}
	n, err := h.botSvc.Purge(c.Request.Context(), p, p.ID)
	if err != nil {
		failService(c, err)
		return
	}
	ok(c, http.StatusOK, gin.H{"purged": n})
}

// @ID          chatbotCleanup
// @Summary     Sweep expired chatbot rows
// @Description Operator endpoint; the hourly background sweep calls the same
// @Description operation.
// @Tags        Chatbot
// @Produce     json
// @Success     200 {object} map[string]any
// @Failure     403 {object} handlers.ErrorResponse
// @Router      /chatbot/cleanup [post]
func (h *Handlers) ChatbotCleanup(c *gin.Context) {
	p, okP := principal(c)
	if !okP {
		return
	}
	if !p.IsAdmin() {
		fail(c, http.StatusForbidden, ErrCodeForbidden, "admin role required")
		return
	}
	n, err := h.botSvc.Sweep(c.Request.Context())
	if err != nil {
		failService(c, err)
		return
	}
	ok(c, http.StatusOK, gin.H{"deleted": n})
}
