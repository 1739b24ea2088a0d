package main

import (
	"log"
	"net/http"

	"github.com/redis/go-redis/v9"

	"github.com/nuvora/concierge/internal/collab"
	"github.com/nuvora/concierge/internal/config"
	"github.com/nuvora/concierge/internal/db"
	"github.com/nuvora/concierge/internal/enrich"
	"github.com/nuvora/concierge/internal/httpapi"
	"github.com/nuvora/concierge/internal/kvstore"
	"github.com/nuvora/concierge/internal/leads"
	"github.com/nuvora/concierge/internal/llm"
	"github.com/nuvora/concierge/internal/logger"
	"github.com/nuvora/concierge/internal/orchestrator"
	"github.com/nuvora/concierge/internal/session"
)

func main() {
	cfg := config.Load()
	logger.SetLevel(cfg.LogLevel)

	kv, err := newKV(cfg)
	if err != nil {
		log.Fatalf("storage backend: %v", err)
	}

	sessions := session.NewStore(kv, session.Limits{
		MaxBytes:             cfg.SessionMaxBytes,
		MaxThreads:           cfg.MaxThreads,
		MaxMessagesPerThread: cfg.MaxMessagesPerThread,
	})

	pipeline := enrich.NewPipeline(
		collab.NewWebsiteClient(cfg.WebsiteBaseURL),
		collab.NewSpeechClient(cfg.SpeechBaseURL),
		collab.NewDocumentClient(cfg.DocumentBaseURL),
		collab.NewSearchClient(cfg.SearchBaseURL),
	)

	client := llm.NewClient(llm.Config{BaseURL: cfg.LLMBaseURL, APIKey: cfg.LLMAPIKey})

	var publisher orchestrator.LeadPublisher
	if cfg.RabbitURL != "" {
		p, err := leads.NewPublisher(cfg.RabbitURL, cfg.RabbitQueue)
		if err != nil {
			log.Fatalf("lead publisher: %v", err)
		}
		defer p.Close()
		publisher = p
	} else {
		logger.L.Info("lead queue disabled, RABBIT_URL not set")
	}

	orch := orchestrator.New(sessions, pipeline, client, publisher, orchestrator.Options{
		Model:         cfg.LLMModel,
		MaxTokens:     cfg.LLMMaxTokens,
		Temperature:   float32(cfg.LLMTemperature),
		ContextWindow: cfg.ContextWindowSize,
	})

	r := httpapi.NewRouter(cfg, sessions, orch)

	logger.L.Info("server listening", "addr", cfg.ServerAddr, "storage", cfg.StorageBackend)
	if err := http.ListenAndServe(cfg.ServerAddr, r); err != nil {
		log.Fatalf("server: %v", err)
	}
}

func newKV(cfg config.Config) (kvstore.Store, error) {
	switch cfg.StorageBackend {
	case "redis":
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		return kvstore.NewRedis(rdb, "concierge:"), nil
	case "memory":
		return kvstore.NewMemory(), nil
	default:
		gdb, err := db.Connect(cfg.DBDriver, cfg.DBDSN)
		if err != nil {
			return nil, err
		}
		return kvstore.NewSQL(gdb)
	}
}
