package handlers

import (
	"io"
	"net/http"

	"face-door-lock/internal/sse"

	"github.com/gin-gonic/gin"
)

// Stream pushes access events to the client as server-sent events
func (h *APIHandler) Stream(c *gin.Context) {
	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")

	client := make(sse.Client, 10)
	if !h.hub.Register(client) {
		c.AbortWithStatus(http.StatusServiceUnavailable)
		return
	}
	defer h.hub.Unregister(client)

	// send headers before the first event
	c.Writer.WriteHeader(http.StatusOK)
	c.Writer.Flush()

	ctx := c.Request.Context()
	c.Stream(func(w io.Writer) bool {
		select {
		case msg, ok := <-client:
			if !ok {
				return false
			}
			c.SSEvent("access", string(msg))
			return true
		case <-ctx.Done():
			return false
		}
	})
}
