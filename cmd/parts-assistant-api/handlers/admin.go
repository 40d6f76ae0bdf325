package handlers

import (
	"net/http"
	"time"

	"github.com/GorgoGerbis/PartSelect-ChatBot-JW/internal/app"
	"github.com/GorgoGerbis/PartSelect-ChatBot-JW/internal/conversation"
	"github.com/GorgoGerbis/PartSelect-ChatBot-JW/internal/observability"
	"github.com/GorgoGerbis/PartSelect-ChatBot-JW/internal/retrieval"
)

// AdminHandler serves health and cache maintenance endpoints.
type AdminHandler struct {
	logger *observability.Logger
	app    *app.App
	now    func() time.Time
}

// NewAdminHandler creates a new admin handler.
func NewAdminHandler(logger *observability.Logger, a *app.App) *AdminHandler {
	return &AdminHandler{logger: logger, app: a, now: time.Now}
}

// HealthResponseDTO reports component status.
type HealthResponseDTO struct {
	Status     string                 `json:"status"`
	Components map[string]interface{} `json:"components"`
	Timestamp  string                 `json:"timestamp"`
}

// Health handles GET /api/health.
func (h *AdminHandler) Health(w http.ResponseWriter, r *http.Request) {
	cfg := h.app.Config
	database := cfg.Database.Driver
	if database == "" {
		database = "memory"
	}

	resp := HealthResponseDTO{
		Status: "healthy",
		Components: map[string]interface{}{
			"catalog":              database,
			"indexed_parts":        h.app.Index.PartCount(),
			"model_prefixes":       h.app.Index.PrefixCount(),
			"semantic_search":      cfg.Search.Semantic,
			"llm_enabled":          h.app.LLMEnabled,
			"conversation_store":   cfg.Cache.Driver,
			"active_conversations": h.app.Conversations.Len(),
			"pattern_rules":        retrieval.RuleCount(),
		},
		Timestamp: h.now().UTC().Format(time.RFC3339),
	}
	if h.app.Index.PartCount() == 0 {
		resp.Status = "degraded"
		resp.Components["error"] = "catalog is empty"
	}
	writeJSON(w, h.logger, http.StatusOK, resp)
}

// CacheStatsDTO combines cache, router and conversation counters.
type CacheStatsDTO struct {
	Cache         retrieval.CacheStats  `json:"cache_performance"`
	Router        retrieval.RouterStats `json:"router_performance"`
	Conversations conversation.Stats    `json:"conversations"`
	Timestamp     string                `json:"timestamp"`
}

// CacheStats handles GET /api/cache/stats.
func (h *AdminHandler) CacheStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, h.logger, http.StatusOK, CacheStatsDTO{
		Cache:         h.app.Cache.Stats(),
		Router:        h.app.Router.Metrics().Snapshot(),
		Conversations: h.app.Conversations.Stats(),
		Timestamp:     h.now().UTC().Format(time.RFC3339),
	})
}

// ClearCache handles POST /api/cache/clear.
func (h *AdminHandler) ClearCache(w http.ResponseWriter, r *http.Request) {
	h.app.Cache.Clear()
	h.logger.WithContext(r.Context()).Info().Msg("Response cache cleared")
	writeJSON(w, h.logger, http.StatusOK, map[string]string{
		"status":    "cache cleared",
		"timestamp": h.now().UTC().Format(time.RFC3339),
	})
}
