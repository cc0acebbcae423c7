package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/poiesic/sibyl"
	"github.com/poiesic/sibyl/chat"
	"github.com/poiesic/sibyl/core"
	"github.com/poiesic/sibyl/generation"
	"github.com/poiesic/sibyl/ingestion"
)

// maxJSONBody bounds JSON request bodies.
const maxJSONBody = 1 << 20

// Backend is the service surface the handlers call. *sibyl.Service satisfies it.
type Backend interface {
	Chat(ctx context.Context, req chat.Request) (*chat.Response, error)
	Conversation(id string) (*core.Conversation, error)
	DeleteConversation(id string) error
	Ingest(ctx context.Context, files []ingestion.File, opts ingestion.Options) (*ingestion.Batch, error)
	Submit(ctx context.Context, files []ingestion.File, opts ingestion.Options) (string, error)
	BatchStatus(batchID string) (*ingestion.Batch, error)
	Documents(ctx context.Context) ([]*core.Document, error)
	Health(ctx context.Context, timeout time.Duration) *sibyl.HealthReport
	Providers() ([]generation.Spec, uint64)
	UpdateProviders(ctx context.Context, specs []generation.Spec) (uint64, error)
	FetchModels(ctx context.Context, q generation.ModelQuery) ([]string, error)
	Pipeline() *ingestion.Pipeline
}

var _ Backend = (*sibyl.Service)(nil)

type handler struct {
	backend      Backend
	probeTimeout time.Duration
	logger       *slog.Logger
}

func (h *handler) decode(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return core.NewValidationError("body", "invalid JSON: "+err.Error())
	}
	return nil
}

// chat handles POST /api/v1/chat.
func (h *handler) chat(w http.ResponseWriter, r *http.Request) {
	var req chat.Request
	if err := h.decode(w, r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	resp, err := h.backend.Chat(r.Context(), req)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

type messageBody struct {
	Role      core.Role `json:"role"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

type conversationBody struct {
	ConversationID string        `json:"conversation_id"`
	Messages       []messageBody `json:"messages"`
}

// conversation handles GET /api/v1/conversations/{id}.
func (h *handler) conversation(w http.ResponseWriter, r *http.Request) {
	conv, err := h.backend.Conversation(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	body := conversationBody{ConversationID: conv.ID, Messages: make([]messageBody, len(conv.Messages))}
	for i, m := range conv.Messages {
		body.Messages[i] = messageBody{Role: m.Role, Text: m.Text, Timestamp: m.Timestamp}
	}
	writeJSON(w, http.StatusOK, body)
}

// deleteConversation handles DELETE /api/v1/conversations/{id}.
func (h *handler) deleteConversation(w http.ResponseWriter, r *http.Request) {
	if err := h.backend.DeleteConversation(chi.URLParam(r, "id")); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// batchStatus handles GET /api/v1/ingest/status/{batch_id}.
func (h *handler) batchStatus(w http.ResponseWriter, r *http.Request) {
	batch, err := h.backend.BatchStatus(chi.URLParam(r, "batch_id"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, batch)
}

type documentBody struct {
	ID            core.DocumentID `json:"document_id"`
	Title         string          `json:"title"`
	Filename      string          `json:"filename"`
	Checksum      string          `json:"checksum"`
	Language      string          `json:"language"`
	Chunks        int             `json:"chunks"`
	Entities      int             `json:"entities"`
	Relationships int             `json:"relationships"`
	Embeddings    int             `json:"embeddings"`
	IngestedAt    time.Time       `json:"ingested_at"`
}

type documentsBody struct {
	Documents []documentBody `json:"documents"`
	Total     int            `json:"total"`
}

// documents handles GET /api/v1/documents.
func (h *handler) documents(w http.ResponseWriter, r *http.Request) {
	docs, err := h.backend.Documents(r.Context())
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	body := documentsBody{Documents: make([]documentBody, len(docs)), Total: len(docs)}
	for i, d := range docs {
		body.Documents[i] = documentBody{
			ID:            d.ID,
			Title:         d.Title,
			Filename:      d.Filename,
			Checksum:      d.Checksum,
			Language:      d.Language,
			Chunks:        d.ChunkCount,
			Entities:      d.EntityCount,
			Relationships: d.RelationshipCount,
			Embeddings:    d.EmbeddingCount,
			IngestedAt:    d.IngestedAt,
		}
	}
	writeJSON(w, http.StatusOK, body)
}

// health handles GET /api/v1/health. An unhealthy service answers 503.
func (h *handler) health(w http.ResponseWriter, r *http.Request) {
	report := h.backend.Health(r.Context(), h.probeTimeout)
	status := http.StatusOK
	if report.Status == sibyl.HealthUnhealthy {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, report)
}

type providersBody struct {
	Version   uint64            `json:"version"`
	Providers []generation.Spec `json:"providers"`
}

// providers handles GET /api/v1/providers.
func (h *handler) providers(w http.ResponseWriter, r *http.Request) {
	specs, version := h.backend.Providers()
	writeJSON(w, http.StatusOK, providersBody{Version: version, Providers: specs})
}

// updateProviders handles PUT /api/v1/providers.
func (h *handler) updateProviders(w http.ResponseWriter, r *http.Request) {
	var body providersBody
	if err := h.decode(w, r, &body); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if _, err := h.backend.UpdateProviders(r.Context(), body.Providers); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	h.logger.Info("providers replaced", "providers", len(body.Providers))
	h.providers(w, r)
}

type modelsBody struct {
	Models []string `json:"models"`
	Total  int      `json:"total"`
}

// fetchModels handles POST /api/v1/models/fetch. The body names a configured
// provider or a server url, kind and api_key.
func (h *handler) fetchModels(w http.ResponseWriter, r *http.Request) {
	var q generation.ModelQuery
	if err := h.decode(w, r, &q); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	models, err := h.backend.FetchModels(r.Context(), q)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, modelsBody{Models: models, Total: len(models)})
}
