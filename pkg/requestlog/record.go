// Package requestlog implements the Request Logger (Component G): a bounded
// ring of per-request records, an optional durable sqlite mirror, and a
// snapshot-then-subscribe live tail for the admin surface (Component H).
// Grounded on the teacher's pkg/evidence tree.
package requestlog

import (
	"time"

	"github.com/raikyou/uniapi/pkg/proxy"
)

// Record is one terminated caller request, as pushed onto the ring and
// (optionally) mirrored to sqlite.
type Record struct {
	ID                 string                 `json:"id"`
	RequestID          string                 `json:"request_id"`
	Path               string                 `json:"path"`
	RequestedModel     string                 `json:"requested_model"`
	EffectiveModel     string                 `json:"effective_model"`
	Provider           string                 `json:"provider"`
	Streaming          bool                   `json:"streaming"`
	Translated         bool                   `json:"translated"` // always false: translation is out of scope
	StatusCode         int                    `json:"status_code"`
	TotalLatencyMs     int64                  `json:"total_latency_ms"`
	FirstByteLatencyMs int64                  `json:"first_byte_latency_ms,omitempty"`
	PromptTokens       int                    `json:"prompt_tokens,omitempty"`
	CompletionTokens   int                    `json:"completion_tokens,omitempty"`
	TotalTokens        int                    `json:"total_tokens,omitempty"`
	Errors             []proxy.CandidateError `json:"errors,omitempty"`
	CreatedAt          time.Time              `json:"created_at"`
}

// fromOutcome converts a Proxy Engine Outcome into a Record, parsing token
// counts opportunistically out of a buffered (non-streamed) response body.
func fromOutcome(id string, o proxy.Outcome) Record {
	prompt, completion, total := parseTokenUsage(o.ResponseBody)
	return Record{
		ID:                 id,
		RequestID:          o.RequestID,
		Path:               o.Path,
		RequestedModel:     o.RequestedModel,
		EffectiveModel:     o.EffectiveModel,
		Provider:           o.Provider,
		Streaming:          o.Streaming,
		Translated:         false,
		StatusCode:         o.StatusCode,
		TotalLatencyMs:     o.TotalLatencyMs,
		FirstByteLatencyMs: o.FirstByteLatencyMs,
		PromptTokens:       prompt,
		CompletionTokens:   completion,
		TotalTokens:        total,
		Errors:             o.CandidateErrors,
		CreatedAt:          time.Now(),
	}
}
