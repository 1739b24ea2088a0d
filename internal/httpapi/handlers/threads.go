package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/nuvora/concierge/internal/common"
	"github.com/nuvora/concierge/internal/httpapi/middleware"
	"github.com/nuvora/concierge/internal/session"
)

// threadSummary is the list-view shape: everything the tab bar needs
// without shipping full message histories.
type threadSummary struct {
	ID           string             `json:"id"`
	Kind         session.ThreadKind `json:"kind"`
	Title        string             `json:"title"`
	Active       bool               `json:"active"`
	MessageCount int                `json:"message_count"`
	LastActivity time.Time          `json:"last_activity"`
}

func summarize(threads []*session.Thread) []threadSummary {
	out := make([]threadSummary, 0, len(threads))
	for _, t := range threads {
		out = append(out, threadSummary{
			ID:           t.ID,
			Kind:         t.Kind,
			Title:        t.Title,
			Active:       t.Active,
			MessageCount: len(t.Messages),
			LastActivity: t.LastActivity,
		})
	}
	return out
}

func (h *Handler) ListThreads(c *gin.Context) {
	sid := middleware.SessionID(c)
	sess := h.Sessions.Load(c.Request.Context(), sid)
	common.OK(c, gin.H{"threads": summarize(sess.Threads)})
}

type createThreadReq struct {
	Kind string `json:"kind"`
}

func (h *Handler) CreateThread(c *gin.Context) {
	var req createThreadReq
	_ = c.ShouldBindJSON(&req) // allow empty {}; unknown kinds become general

	sid := middleware.SessionID(c)
	th, err := h.Sessions.CreateThread(c.Request.Context(), sid, session.KindFromString(req.Kind))
	if err != nil {
		common.Fail(c, http.StatusInternalServerError, 50001, "failed to create thread")
		return
	}
	common.OK(c, gin.H{"thread": th})
}

func (h *Handler) ActivateThread(c *gin.Context) {
	sid := middleware.SessionID(c)
	if err := h.Sessions.SwitchActive(c.Request.Context(), sid, c.Param("id")); err != nil {
		common.Fail(c, http.StatusInternalServerError, 50001, "failed to activate thread")
		return
	}
	sess := h.Sessions.Load(c.Request.Context(), sid)
	common.OK(c, gin.H{"threads": summarize(sess.Threads)})
}

// CloseThread fires when a visitor navigates away from a thread view. A
// farewell is appended once the conversation had real engagement; the
// response carries it (or null) so the widget can render it on return.
func (h *Handler) CloseThread(c *gin.Context) {
	sid := middleware.SessionID(c)
	msg, err := h.Orch.CloseThread(c.Request.Context(), sid, c.Param("id"))
	if err != nil {
		if errors.Is(err, session.ErrThreadNotFound) {
			common.Fail(c, http.StatusNotFound, 40401, "thread not found")
			return
		}
		common.Fail(c, http.StatusInternalServerError, 50001, "failed to close thread")
		return
	}
	common.OK(c, gin.H{"farewell": msg})
}

func (h *Handler) DeleteThread(c *gin.Context) {
	sid := middleware.SessionID(c)
	if err := h.Sessions.DeleteThread(c.Request.Context(), sid, c.Param("id")); err != nil {
		common.Fail(c, http.StatusInternalServerError, 50001, "failed to delete thread")
		return
	}
	sess := h.Sessions.Load(c.Request.Context(), sid)
	common.OK(c, gin.H{"threads": summarize(sess.Threads)})
}

func (h *Handler) ListThreadMessages(c *gin.Context) {
	sid := middleware.SessionID(c)
	th, err := h.Sessions.Thread(c.Request.Context(), sid, c.Param("id"))
	if err != nil {
		if errors.Is(err, session.ErrThreadNotFound) {
			common.Fail(c, http.StatusNotFound, 40401, "thread not found")
			return
		}
		common.Fail(c, http.StatusInternalServerError, 50001, "failed to load thread")
		return
	}
	common.OK(c, gin.H{
		"thread_id": th.ID,
		"kind":      th.Kind,
		"title":     th.Title,
		"messages":  th.Messages,
	})
}
