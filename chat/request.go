package chat

import (
	"strings"
	"unicode/utf8"

	"github.com/poiesic/sibyl/core"
)

// Request limits.
const (
	MaxMessageLength     = 4000
	MaxContextLength     = 4000
	MaxConversationIDLen = 128
	DefaultMaxSources    = 5
	MaxSources           = 20
)

// Request is one user turn.
type Request struct {
	Message        string `json:"message"`
	ConversationID string `json:"conversation_id,omitempty"`
	// Context is appended to the system instruction for this turn only.
	Context    string `json:"context,omitempty"`
	MaxSources int    `json:"max_sources,omitempty"`
}

// Normalize trims the request and fills defaults.
func (r *Request) Normalize() {
	r.Message = strings.TrimSpace(r.Message)
	r.ConversationID = strings.TrimSpace(r.ConversationID)
	r.Context = strings.TrimSpace(r.Context)
	if r.MaxSources == 0 {
		r.MaxSources = DefaultMaxSources
	}
}

// Validate reports the first invalid field as a *core.ValidationError.
func (r *Request) Validate() error {
	switch n := utf8.RuneCountInString(r.Message); {
	case n == 0:
		return core.NewValidationError("message", "must not be empty")
	case n > MaxMessageLength:
		return core.NewValidationError("message", "must be at most 4000 characters")
	}
	if utf8.RuneCountInString(r.Context) > MaxContextLength {
		return core.NewValidationError("context", "must be at most 4000 characters")
	}
	if len(r.ConversationID) > MaxConversationIDLen {
		return core.NewValidationError("conversation_id", "must be at most 128 bytes")
	}
	if r.MaxSources < 1 || r.MaxSources > MaxSources {
		return core.NewValidationError("max_sources", "must be between 1 and 20")
	}
	return nil
}

// Source is a knowledge entry returned with a reply.
type Source struct {
	Type       string          `json:"type"`
	Content    string          `json:"content"`
	Relevance  float64         `json:"relevance"`
	DocumentID core.DocumentID `json:"document_id"`
	ItemID     core.ID         `json:"item_id"`
	Title      string          `json:"title,omitempty"`
	// Citation is the [n] marker the entry had in the prompt, zero when the
	// entry was not rendered into the prompt.
	Citation int  `json:"citation,omitempty"`
	Cited    bool `json:"cited"`
}

// Response is the answer to a Request.
type Response struct {
	Response       string   `json:"response"`
	Confidence     float64  `json:"confidence"`
	Sources        []Source `json:"sources"`
	ModelUsed      string   `json:"model_used"`
	Provider       string   `json:"provider"`
	ProcessingTime float64  `json:"processing_time"`
	ConversationID string   `json:"conversation_id"`
	GraphFailed    bool     `json:"graph_failed,omitempty"`
	VectorFailed   bool     `json:"vector_failed,omitempty"`
}
