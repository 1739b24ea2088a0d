package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/nuvora/concierge/internal/common"
	"github.com/nuvora/concierge/internal/config"
	"github.com/nuvora/concierge/internal/httpapi/handlers"
	"github.com/nuvora/concierge/internal/httpapi/middleware"
	"github.com/nuvora/concierge/internal/orchestrator"
	"github.com/nuvora/concierge/internal/session"
)

func NewRouter(cfg config.Config, sessions *session.Store, orch *orchestrator.Orchestrator) *gin.Engine {
	r := gin.New()
	r.HandleMethodNotAllowed = true
	r.Use(gin.Logger())
	r.Use(middleware.Recovery())

	r.NoRoute(func(c *gin.Context) {
		common.Fail(c, http.StatusNotFound, 40400, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		common.Fail(c, http.StatusMethodNotAllowed, 40500, "method not allowed")
	})

	r.Use(middleware.RequestID())

	h := handlers.NewHandler(cfg, sessions, orch)

	r.GET("/ping", h.Ping)
	r.GET("/stats", h.Stats)

	visitorGroup := r.Group("/")
	visitorGroup.Use(middleware.Visitor(cfg.JWTSecret))

	visitorGroup.POST("/session", h.StartSession)
	visitorGroup.POST("/clear", h.ClearSession)

	visitorGroup.GET("/threads", h.ListThreads)
	visitorGroup.POST("/threads", h.CreateThread)
	visitorGroup.GET("/threads/:id/messages", h.ListThreadMessages)
	visitorGroup.POST("/threads/:id/activate", h.ActivateThread)
	visitorGroup.POST("/threads/:id/close", h.CloseThread)
	visitorGroup.DELETE("/threads/:id", h.DeleteThread)

	visitorGroup.POST("/messages", h.SendMessage)

	return r
}
