// Realtime event stream handler.
//
// GET /stream serves a Server-Sent Events connection delivering
// message.created, message.read, and assignment.changed events addressed to
// the authenticated principal. Delivery is at-least-once; after a reconnect
// clients recover missed events with GET /messages?after=<cursor>.
package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// heartbeatInterval keeps intermediaries from closing idle SSE connections.
const heartbeatInterval = 25 * time.Second

// @ID          stream
// @Summary     Realtime event stream
// @Description Server-Sent Events stream of message.created, message.read,
// @Description and assignment.changed events for the caller.
// @Tags        Stream
// @Produce     text/event-stream
// @Success     200
// @Router      /stream [get]
func (h *Handlers) Stream(c *gin.Context) {
	p, okP := principal(c)
	if !okP {
		return
	}
	flusher, canFlush := c.Writer.(http.Flusher)
	if !canFlush {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "streaming unsupported")
		return
	}

	sub := h.hub.Subscribe(p.ID)
	defer sub.Close()

	header := c.Writer.Header()
	header.Set("Content-Type", "text/event-stream")
	header.Set("Cache-Control", "no-cache")
	header.Set("Connection", "keep-alive")
	header.Set("X-Accel-Buffering", "no")
	c.Writer.WriteHeader(http.StatusOK)
	flusher.Flush()

	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	ctx := c.Request.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case <-heartbeat.C:
			fmt.Fprint(c.Writer, ": ping\n\n")
			flusher.Flush()
		case ev := <-sub.C:
			data, err := json.Marshal(ev)
			if err != nil {
				continue
			}
			fmt.Fprintf(c.Writer, "id: %s\nevent: %s\ndata: %s\n\n", ev.ID, ev.Type, data)
			flusher.Flush()
		}
	}
}
