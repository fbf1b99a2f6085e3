package contract

import "context"

// ReasoningRequest is the fixed request contract toward the external engine.
// Manifest is the scoped capability list for this turn; ToolResults is set on
// the follow-up consultation after an execution.
type ReasoningRequest struct {
	History     []TranscriptEntry      `json:"history"`
	UserMessage string                 `json:"user_message"`
	Manifest    []CapabilityDescriptor `json:"manifest"`
	ToolResults []CapabilityResult     `json:"tool_results,omitempty"`
}

// ReasoningEngine turns a scoped request into a decision. The boundary is
// untrusted: the gate re-validates any plan before execution.
type ReasoningEngine interface {
	Decide(ctx context.Context, req ReasoningRequest) (Decision, error)
}

// Executor runs one capability by name. Implementations receive only the
// explicit arguments, never the identity, and perform no gating of their own.
type Executor interface {
	Execute(ctx context.Context, capability string, args map[string]any) (CapabilityResult, error)
}

// Trail is the per-subject register of the most recent invocation rationale.
type Trail interface {
	Record(ctx context.Context, rec AuditRecord) error
	Latest(ctx context.Context, subjectID string) (AuditRecord, bool, error)
}

// TranscriptStore is the append-only dual-stream turn history. Append writes
// one turn's entries atomically to both streams, filtering tool and rationale
// entries out of the light stream.
type TranscriptStore interface {
	Append(ctx context.Context, role Role, subjectID string, entries []TranscriptEntry) error
	ReadAll(ctx context.Context, role Role, subjectID string, stream Stream) ([]TranscriptEntry, error)
}
