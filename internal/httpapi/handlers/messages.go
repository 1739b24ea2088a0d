package handlers

import (
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/nuvora/concierge/internal/common"
	"github.com/nuvora/concierge/internal/enrich"
	"github.com/nuvora/concierge/internal/httpapi/middleware"
	"github.com/nuvora/concierge/internal/orchestrator"
	"github.com/nuvora/concierge/internal/session"
)

// Per-file upload ceiling. Documents and voice clips beyond this are
// rejected before any collaborator sees them.
const maxUploadBytes = 10 << 20

type sendMessageJSON struct {
	ThreadID string `json:"thread_id" binding:"required"`
	Message  string `json:"message"`
}

// SendMessage runs one conversation turn. Plain turns arrive as JSON;
// turns carrying a document or a voice clip arrive as multipart form data
// with "thread_id", "message", "document" and "audio" parts.
func (h *Handler) SendMessage(c *gin.Context) {
	var (
		threadID string
		message  string
		art      enrich.Artifacts
	)

	if strings.HasPrefix(c.ContentType(), "application/json") {
		var req sendMessageJSON
		if err := c.ShouldBindJSON(&req); err != nil {
			common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
			return
		}
		threadID, message = req.ThreadID, req.Message
	} else {
		threadID = c.PostForm("thread_id")
		message = c.PostForm("message")

		doc, err := formFileBytes(c, "document")
		if err != nil {
			common.Fail(c, http.StatusBadRequest, 10004, err.Error())
			return
		}
		if doc != nil {
			art.Document = &enrich.Document{Name: doc.name, Data: doc.data}
		}
		audio, err := formFileBytes(c, "audio")
		if err != nil {
			common.Fail(c, http.StatusBadRequest, 10004, err.Error())
			return
		}
		if audio != nil {
			art.Audio = audio.data
		}
	}

	if threadID == "" {
		common.Fail(c, http.StatusBadRequest, 10002, "thread_id required")
		return
	}

	sid := middleware.SessionID(c)
	res, err := h.Orch.ProcessTurn(c.Request.Context(), sid, threadID, message, &art)
	if err != nil {
		switch {
		case errors.Is(err, orchestrator.ErrEmptyTurn):
			common.Fail(c, http.StatusBadRequest, 10003, "message, document or audio required")
		case errors.Is(err, session.ErrThreadNotFound):
			common.Fail(c, http.StatusNotFound, 40401, "thread not found")
		default:
			common.Fail(c, http.StatusInternalServerError, 50001, "failed to process message")
		}
		return
	}

	common.OK(c, gin.H{
		"user_message":      res.UserMessage,
		"messages":          res.Messages,
		"show_contact_form": res.ShowContactForm,
		"used_fallback":     res.UsedFallback,
		"stale":             res.Stale,
	})
}

type upload struct {
	name string
	data []byte
}

// formFileBytes reads one optional multipart file part into memory. A
// missing part is (nil, nil).
func formFileBytes(c *gin.Context, field string) (*upload, error) {
	fh, err := c.FormFile(field)
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) {
			return nil, nil
		}
		return nil, errors.New("malformed upload")
	}
	if fh.Size > maxUploadBytes {
		return nil, errors.New(field + " exceeds the upload limit")
	}
	f, err := fh.Open()
	if err != nil {
		return nil, errors.New("unreadable upload")
	}
	defer func(f multipart.File) { _ = f.Close() }(f)

	data, err := io.ReadAll(io.LimitReader(f, maxUploadBytes+1))
	if err != nil || len(data) > maxUploadBytes {
		return nil, errors.New("unreadable upload")
	}
	return &upload{name: fh.Filename, data: data}, nil
}
