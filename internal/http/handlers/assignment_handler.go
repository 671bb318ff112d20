// Assignment HTTP handlers.
//
// This file exposes REST endpoints for the coach assignment lifecycle:
//   - GET  /coaches/available       (selectable coaches)
//   - PUT  /coaches/availability    (coach toggles their own flag)
//   - GET  /assignment/current      (the caller's active assignment)
//   - POST /assignment/select       (select or switch coach)
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// SelectCoachRequest is the JSON payload for selecting a coach.
type SelectCoachRequest struct {
	// CoachID identifies the target coach.
	CoachID string `json:"coach_id" binding:"required" example:"coach_1024"`
	// ClientID lets admins act for a client; regular callers omit it.
	ClientID string `json:"client_id,omitempty"`
}

// SetAvailabilityRequest is the JSON payload for toggling availability.
type SetAvailabilityRequest struct {
	Available *bool `json:"available" binding:"required"`
}

// @ID          listAvailableCoaches
// @Summary     List selectable coaches
// @Description Returns coaches that are available and below capacity, ordered
// @Description by load for a deterministic UI.
// @Tags        Assignment
// @Produce     json
// @Success     200 {object} map[string]any
// @Failure     401 {object} handlers.ErrorResponse
// @Router      /coaches/available [get]
func (h *Handlers) ListAvailableCoaches(c *gin.Context) {
	p, okP := principal(c)
	if !okP {
		return
	}
	coaches, err := h.assignSvc.ListCoaches(c.Request.Context(), p)
	if err != nil {
		failService(c, err)
		return
	}
	ok(c, http.StatusOK, gin.H{"coaches": coaches})
}

// @ID          setCoachAvailability
// @Summary     Toggle the caller's coach availability
// @Tags        Assignment
// @Accept      json
// @Produce     json
// @Success     204
// @Failure     403 {object} handlers.ErrorResponse
// @Router      /coaches/availability [put]
func (h *Handlers) SetCoachAvailability(c *gin.Context) {
	p, okP := principal(c)
	if !okP {
		return
	}
	var req SetAvailabilityRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Available == nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "available flag is required")
		return
	}
	if err := h.assignSvc.SetAvailability(c.Request.Context(), p, p.ID, *req.Available); err != nil {
		failService(c, err)
		return
	}
	noContent(c)
}

// @ID          currentAssignment
// @Summary     Current assignment
// @Description Returns the caller's active assignment. Admins and coaches may
// @Description pass ?client_id= to read another client's assignment.
// @Tags        Assignment
// @Produce     json
// @Success     200 {object} map[string]any
// @Failure     404 {object} handlers.ErrorResponse "No active assignment"
// @Router      /assignment/current [get]
func (h *Handlers) CurrentAssignment(c *gin.Context) {
	p, okP := principal(c)
	if !okP {
		return
	}
	clientID := c.Query("client_id")
	if clientID == "" {
		clientID = p.ID
	}
	a, err := h.assignSvc.Current(c.Request.Context(), p, clientID)
	if err != nil {
		failService(c, err)
		return
	}
	ok(c, http.StatusOK, gin.H{"assignment": a})
}

// @ID          selectCoach
// @Summary     Select or switch coach
// @Description Selects a coach for the caller. Switching before the cooldown
// @Description has elapsed fails with cooldown_not_elapsed and remaining_days.
// @Tags        Assignment
// @Accept      json
// @Produce     json
// @Success     200 {object} map[string]any
// @Failure     403 {object} handlers.ErrorResponse "plan_required / forbidden"
// @Failure     409 {object} handlers.ErrorResponse "capacity_exceeded / coach_unavailable / cooldown_not_elapsed"
// @Router      /assignment/select [post]
func (h *Handlers) SelectCoach(c *gin.Context) {
	p, okP := principal(c)
	if !okP {
		return
	}
	var req SelectCoachRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "coach_id is required")
		return
	}
	clientID := req.ClientID
	if clientID == "" {
		clientID = p.ID
	}

	res, err := h.assignSvc.SelectCoach(c.Request.Context(), p, clientID, req.CoachID)
	if err != nil {
		failService(c, err)
		return
	}

	body := gin.H{"assignment": res.Assignment, "no_op": res.NoOp}
	if res.EndedPrevious != nil {
		body["ended_previous"] = res.EndedPrevious
	}
	ok(c, http.StatusOK, body)
}
