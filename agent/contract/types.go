package contract

import (
	"time"
)

type Role string

const (
	RoleClient    Role = "client"
	RoleExecutive Role = "executive"
)

type Tier string

const (
	TierNone    Tier = ""
	TierNormal  Tier = "normal"
	TierPremium Tier = "premium"
)

// IdentityContext describes who is driving a conversation for one turn.
// It is immutable within a turn; the same subject may present a different
// role or tier on the next turn and the gate re-evaluates from scratch.
type IdentityContext struct {
	SubjectID string `json:"subject_id"`
	Role      Role   `json:"role"`
	Tier      Tier   `json:"tier,omitempty"`
}

// CapabilityDescriptor is registered once at startup; the catalog is
// immutable afterwards.
type CapabilityDescriptor struct {
	Name        string            `json:"name"`
	Category    string            `json:"category"`
	Description string            `json:"description"`
	MinRole     Role              `json:"min_role"`
	MinTier     Tier              `json:"min_tier,omitempty"`
	Params      map[string]string `json:"params,omitempty"` // param name -> description
}

// InvocationPlan is the reasoning engine's proposed action for a turn.
// At most one plan per turn.
type InvocationPlan struct {
	Capability string         `json:"capability"`
	Arguments  map[string]any `json:"arguments,omitempty"`
	Rationale  string         `json:"rationale"`
}

type DecisionKind string

const (
	DecisionAnswer DecisionKind = "answer"
	DecisionInvoke DecisionKind = "invoke"
)

// Decision is the reasoning engine's response for one turn: either a direct
// textual answer or an invocation plan.
type Decision struct {
	Kind DecisionKind    `json:"kind"`
	Text string          `json:"text,omitempty"`
	Plan *InvocationPlan `json:"plan,omitempty"`
}

// CapabilityResult carries the outcome of one capability execution.
// Error is a message rather than an error value so results survive
// serialization into transcripts unchanged.
type CapabilityResult struct {
	Capability string `json:"capability"`
	Result     any    `json:"result,omitempty"`
	Error      string `json:"error,omitempty"`
}

// AuditRecord is the per-turn rationale. The trail keeps only the latest
// record per subject; history flows into the complete transcript stream.
type AuditRecord struct {
	SubjectID  string    `json:"subject_id"`
	TurnSeq    int       `json:"turn_seq"`
	Capability string    `json:"capability,omitempty"` // empty when no capability ran
	Rationale  string    `json:"rationale"`
	TraceID    string    `json:"trace_id,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

type EntryKind string

const (
	EntryUserMessage      EntryKind = "user_message"
	EntryAssistantMessage EntryKind = "assistant_message"
	EntryToolCall         EntryKind = "tool_call"
	EntryToolResult       EntryKind = "tool_result"
	EntryRationale        EntryKind = "rationale"
)

// InLightStream reports whether an entry kind belongs in the light stream.
func (k EntryKind) InLightStream() bool {
	return k == EntryUserMessage || k == EntryAssistantMessage
}

type Stream string

const (
	StreamLight    Stream = "light"
	StreamComplete Stream = "complete"
)

// TranscriptEntry is one element of a persisted stream. Entries are never
// mutated after append.
type TranscriptEntry struct {
	Kind      EntryKind `json:"kind"`
	SubjectID string    `json:"subject_id"`
	Role      Role      `json:"role"`
	TurnSeq   int       `json:"turn_seq"`
	Payload   string    `json:"payload"`
	Timestamp time.Time `json:"timestamp"`
}

// TurnResult is what the orchestration loop hands back to the caller.
type TurnResult struct {
	Reply      string `json:"reply"`
	TurnSeq    int    `json:"turn_seq"`
	Capability string `json:"capability,omitempty"`
	TraceID    string `json:"trace_id"`
	Persisted  bool   `json:"persisted"`
}
