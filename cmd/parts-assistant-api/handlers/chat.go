package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/GorgoGerbis/PartSelect-ChatBot-JW/internal/catalog"
	"github.com/GorgoGerbis/PartSelect-ChatBot-JW/internal/conversation"
	"github.com/GorgoGerbis/PartSelect-ChatBot-JW/internal/observability"
	"github.com/GorgoGerbis/PartSelect-ChatBot-JW/internal/retrieval"
)

const debugHistoryLimit = 5

// ChatHandler answers chat messages through the query router.
type ChatHandler struct {
	logger        *observability.Logger
	router        *retrieval.Router
	conversations *conversation.Manager
}

// NewChatHandler creates a new chat handler.
func NewChatHandler(logger *observability.Logger, router *retrieval.Router) *ChatHandler {
	return &ChatHandler{
		logger:        logger,
		router:        router,
		conversations: router.Conversations(),
	}
}

// ChatRequestDTO is the body of POST /api/chat.
type ChatRequestDTO struct {
	Query          string `json:"query"`
	ConversationID string `json:"conversation_id,omitempty"`
}

// ChatResponseDTO is the answer to one chat message.
type ChatResponseDTO struct {
	Response           string                 `json:"response"`
	Parts              []catalog.Part         `json:"parts"`
	Repairs            []catalog.RepairGuide  `json:"repairs"`
	Blogs              []catalog.Article      `json:"blogs"`
	ConversationID     string                 `json:"conversation_id"`
	Source             retrieval.Source       `json:"source"`
	Confidence         float64                `json:"confidence"`
	SuggestedQuestions []string               `json:"suggested_questions"`
	Stage              conversation.Stage     `json:"stage"`
	Mismatch           *conversation.Mismatch `json:"mismatch,omitempty"`
	ResponseTimeMs     int64                  `json:"response_time_ms"`
}

// Chat handles POST /api/chat.
func (h *ChatHandler) Chat(w http.ResponseWriter, r *http.Request) {
	var req ChatRequestDTO
	if err := decode(r, &req); err != nil {
		writeError(w, h.logger, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	req.Query = strings.TrimSpace(req.Query)
	if req.Query == "" {
		writeError(w, h.logger, http.StatusBadRequest, "query is required", "")
		return
	}
	if req.ConversationID == "" {
		req.ConversationID = uuid.NewString()
	}

	res := h.router.Handle(r.Context(), req.ConversationID, req.Query)
	if res.Err != nil {
		h.logger.WithContext(r.Context()).Warn().Err(res.Err).
			Str("conversation_id", res.ConversationID).
			Msg("Every tier failed, returning apology")
	}

	resp := ChatResponseDTO{
		Response:           res.Response,
		Parts:              nonNil(res.Parts),
		Repairs:            nonNil(res.Repairs),
		Blogs:              nonNil(res.Articles),
		ConversationID:     res.ConversationID,
		Source:             res.Source,
		Confidence:         res.Confidence,
		SuggestedQuestions: nonNil(res.SuggestedQuestions),
		Stage:              res.Context.Stage,
		ResponseTimeMs:     res.Duration.Milliseconds(),
	}
	if n := len(res.Mismatches); n > 0 {
		m := res.Mismatches[n-1]
		resp.Mismatch = &m
	}
	writeJSON(w, h.logger, http.StatusOK, resp)
}

// ConversationDebugDTO describes one conversation for debugging.
type ConversationDebugDTO struct {
	ConversationID string                 `json:"conversation_id"`
	Found          bool                   `json:"found"`
	MessageCount   int                    `json:"message_count"`
	Messages       []conversation.Message `json:"messages"`
	Context        *conversation.Context  `json:"context,omitempty"`
	Summary        string                 `json:"summary,omitempty"`
}

// DebugConversation handles GET /api/debug/conversation/{id}.
func (h *ChatHandler) DebugConversation(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	resp := ConversationDebugDTO{ConversationID: id, Messages: []conversation.Message{}}

	if c, ok := h.conversations.Get(r.Context(), id); ok {
		history := h.conversations.History(r.Context(), id)
		if len(history) > debugHistoryLimit {
			history = history[len(history)-debugHistoryLimit:]
		}
		c.History = nil
		resp.Found = true
		resp.MessageCount = c.MessageCount
		resp.Messages = history
		resp.Context = &c
		resp.Summary = conversation.RenderContext(c)
	}
	writeJSON(w, h.logger, http.StatusOK, resp)
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
