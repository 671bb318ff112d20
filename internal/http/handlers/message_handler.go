// Conversation HTTP handlers.
//
// This file exposes REST endpoints for client↔coach chat:
//   - GET  /messages                  (keyset-paginated history + backfill)
//   - POST /messages                  (send; idempotent via Idempotency-Key)
//   - POST /messages/read             (read receipts)
//   - GET  /messages/unread           (unread counters per counterparty)
//   - GET  /messages/:id/attachment   (short-lived download link)
//   - POST /attachments               (multipart upload ahead of a send)
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yamifit/yamifit-backend/internal/domain"
	"github.com/yamifit/yamifit-backend/internal/http/middleware"
	"github.com/yamifit/yamifit-backend/internal/services"
	"github.com/yamifit/yamifit-backend/internal/utils"
)

// SendMessageRequest is the JSON payload for sending a chat message. At
// least one of Body and AttachmentKey must be set.
type SendMessageRequest struct {
	// With identifies the counterparty (coach or client id).
	With string `json:"with" binding:"required" example:"coach_1024"`
	// Body is the optional message text.
	Body *string `json:"body,omitempty"`
	// AttachmentKey references an object previously uploaded via /attachments.
	AttachmentKey string `json:"attachment_key,omitempty"`
}

// MarkReadRequest is the JSON payload for acknowledging messages.
type MarkReadRequest struct {
	With   string `json:"with" binding:"required"`
	UpToID string `json:"up_to_id" binding:"required"`
}

// ListMessagesResponse wraps a page of messages with the cursor for the next
// older page.
type ListMessagesResponse struct {
	Messages   []domain.ChatMessage `json:"messages"`
	NextCursor string               `json:"next_cursor,omitempty"`
}

// decodeCursor parses an optional cursor query parameter. The boolean result
// is false when the parameter was present but malformed (response written).
func decodeCursor(c *gin.Context, param string) (*services.MessageCursor, bool) {
	raw := c.Query(param)
	if raw == "" {
		return nil, true
	}
	at, id, err := utils.DecodeCursor(raw)
	if err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "malformed "+param+" cursor")
		return nil, false
	}
	return &services.MessageCursor{CreatedAt: at, ID: id}, true
}

// @ID          listMessages
// @Summary     List conversation messages
// @Description Returns a reverse-chronological page of the conversation with
// @Description ?with=. Page with before=<cursor>; recover missed realtime
// @Description events after a reconnect with after=<cursor>.
// @Tags        Messages
// @Produce     json
// @Param       with   query string true  "Counterparty id"
// @Param       before query string false "Opaque cursor from a previous page"
// @Param       after  query string false "Opaque cursor for backfill (ascending)"
// @Param       limit  query int    false "Page size" maximum(100)
// @Success     200 {object} handlers.ListMessagesResponse
// @Failure     400 {object} handlers.ErrorResponse
// @Router      /messages [get]
func (h *Handlers) ListMessages(c *gin.Context) {
	p, okP := principal(c)
	if !okP {
		return
	}
	withID := c.Query("with")
	if withID == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "with is required")
		return
	}
	before, okC := decodeCursor(c, "before")
	if !okC {
		return
	}
	after, okC := decodeCursor(c, "after")
	if !okC {
		return
	}
	limit := utils.AtoiDefault(c.Query("limit"), 0)

	msgs, err := h.convSvc.ListMessages(c.Request.Context(), p, withID, before, after, limit)
	if err != nil {
		failService(c, err)
		return
	}

	resp := ListMessagesResponse{Messages: msgs}
	if after == nil && len(msgs) > 0 {
		last := msgs[len(msgs)-1]
		resp.NextCursor = utils.EncodeCursor(last.CreatedAt, last.ID)
	}
	ok(c, http.StatusOK, resp)
}

// @ID          sendMessage
// @Summary     Send a message
// @Description Appends a message to the conversation with the counterparty.
// @Description Retries with the same Idempotency-Key return the original
// @Description message instead of inserting a duplicate.
// @Tags        Messages
// @Accept      json
// @Produce     json
// @Param       Idempotency-Key header string false "Idempotency key for safe retries"
// @Success     201 {object} domain.ChatMessage
// @Failure     400 {object} handlers.ErrorResponse "bad_request / attachment_rejected"
// @Failure     409 {object} handlers.ErrorResponse "no_coach"
// @Router      /messages [post]
func (h *Handlers) SendMessage(c *gin.Context) {
	p, okP := principal(c)
	if !okP {
		return
	}
	var req SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "with is required")
		return
	}
	idemKey, _ := middleware.GetIdempotencyKey(c)

	msg, replayed, err := h.convSvc.SendMessageIdempotent(c.Request.Context(), p, req.With, req.Body, req.AttachmentKey, idemKey)
	if err != nil {
		failService(c, err)
		return
	}
	status := http.StatusCreated
	if replayed {
		status = http.StatusOK
	}
	ok(c, status, msg)
}

// @ID          markRead
// @Summary     Acknowledge messages
// @Description Marks counterpart messages up to up_to_id as read. Idempotent.
// @Tags        Messages
// @Accept      json
// @Produce     json
// @Success     200 {object} map[string]any
// @Failure     404 {object} handlers.ErrorResponse
// @Router      /messages/read [post]
func (h *Handlers) MarkRead(c *gin.Context) {
	p, okP := principal(c)
	if !okP {
		return
	}
	var req MarkReadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "with and up_to_id are required")
		return
	}
	updated, err := h.convSvc.MarkRead(c.Request.Context(), p, req.With, req.UpToID)
	if err != nil {
		failService(c, err)
		return
	}
	ok(c, http.StatusOK, gin.H{"updated": updated})
}

// @ID          unreadCounts
// @Summary     Unread counters
// @Description Returns unread message counts grouped by counterparty.
// @Tags        Messages
// @Produce     json
// @Success     200 {object} map[string]any
// @Router      /messages/unread [get]
func (h *Handlers) UnreadCounts(c *gin.Context) {
	p, okP := principal(c)
	if !okP {
		return
	}
	counts, err := h.convSvc.UnreadCounts(c.Request.Context(), p)
	if err != nil {
		failService(c, err)
		return
	}
	ok(c, http.StatusOK, gin.H{"counts": counts})
}

// @ID          attachmentURL
// @Summary     Attachment download link
// @Description Returns a short-lived URL for a message's attachment.
// @Tags        Messages
// @Produce     json
// @Param       id   path  string true "Message ID"
// @Param       with query string true "Counterparty id"
// @Success     200 {object} map[string]any
// @Failure     404 {object} handlers.ErrorResponse
// @Router      /messages/{id}/attachment [get]
func (h *Handlers) AttachmentURL(c *gin.Context) {
	p, okP := principal(c)
	if !okP {
		return
	}
	withID := c.Query("with")
	if withID == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "with is required")
		return
	}
	url, err := h.convSvc.AttachmentURL(c.Request.Context(), p, withID, c.Param("id"))
	if err != nil {
		failService(c, err)
		return
	}
	ok(c, http.StatusOK, gin.H{"url": url})
}

// @ID          uploadAttachment
// @Summary     Upload an attachment
// @Description Stores a file ahead of a message send and returns the opaque
// @Description storage key to pass in attachment_key.
// @Tags        Messages
// @Accept      multipart/form-data
// @Produce     json
// @Param       file formData file true "File to store"
// @Success     201 {object} map[string]any
// @Failure     400 {object} handlers.ErrorResponse "attachment_rejected"
// @Router      /attachments [post]
func (h *Handlers) UploadAttachment(c *gin.Context) {
	p, okP := principal(c)
	if !okP {
		return
	}
	fileHeader, err := c.FormFile("file")
	if err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "multipart field 'file' is required")
		return
	}
	f, err := fileHeader.Open()
	if err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "unreadable upload")
		return
	}
	defer f.Close()

	info, err := h.convSvc.UploadAttachment(
		c.Request.Context(), p,
		fileHeader.Filename,
		fileHeader.Header.Get("Content-Type"),
		fileHeader.Size,
		f,
	)
	if err != nil {
		failService(c, err)
		return
	}
	ok(c, http.StatusCreated, gin.H{
		"storage_key": info.Key,
		"mime":        info.ContentType,
		"bytes":       info.Size,
	})
}
