package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/nuvora/concierge/internal/common"
	"github.com/nuvora/concierge/internal/httpapi/middleware"
)

func (h *Handler) Ping(c *gin.Context) {
	common.OK(c, gin.H{"message": "pong"})
}

// Stats reports how many bytes the session storage currently holds, for
// operators watching quota headroom.
func (h *Handler) Stats(c *gin.Context) {
	size, err := h.Sessions.StorageSize(c.Request.Context())
	if err != nil {
		common.Fail(c, http.StatusInternalServerError, 50002, "failed to read storage size")
		return
	}
	common.OK(c, gin.H{"storage_bytes": size})
}

// StartSession loads the visitor's session, creating a fresh one when the
// record is absent or unreadable, and returns the full snapshot the widget
// renders from.
func (h *Handler) StartSession(c *gin.Context) {
	sid := middleware.SessionID(c)
	sess := h.Sessions.Load(c.Request.Context(), sid)
	common.OK(c, gin.H{
		"session_id": sess.ID,
		"threads":    summarize(sess.Threads),
	})
}

// ClearSession wipes everything and returns the single recreated default
// thread.
func (h *Handler) ClearSession(c *gin.Context) {
	sid := middleware.SessionID(c)
	sess, err := h.Sessions.ClearAll(c.Request.Context(), sid)
	if err != nil {
		common.Fail(c, http.StatusInternalServerError, 50001, "failed to clear session")
		return
	}
	common.OK(c, gin.H{
		"session_id": sess.ID,
		"threads":    summarize(sess.Threads),
	})
}
