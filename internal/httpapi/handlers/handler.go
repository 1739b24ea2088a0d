package handlers

import (
	"github.com/nuvora/concierge/internal/config"
	"github.com/nuvora/concierge/internal/orchestrator"
	"github.com/nuvora/concierge/internal/session"
)

type Handler struct {
	Cfg      config.Config
	Sessions *session.Store
	Orch     *orchestrator.Orchestrator
}

func NewHandler(cfg config.Config, sessions *session.Store, orch *orchestrator.Orchestrator) *Handler {
	return &Handler{Cfg: cfg, Sessions: sessions, Orch: orch}
}
