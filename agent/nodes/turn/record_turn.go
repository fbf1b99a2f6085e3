package turnnode

import (
	"context"
	"encoding/json"
	"fmt"

	contractx "github.com/finsight-labs/finsight/agent/contract"
)

// RecordTurn writes the turn to the transcript store and the rationale trail.
// Entry order within a turn is fixed: user message, tool call and result if
// any, rationale if any, assistant message.
// A persistence failure flags the result instead of failing the turn: the
// answer was already computed and the caller still gets it.
func RecordTurn(ctx context.Context, in *GraphState, trail contractx.Trail, store contractx.TranscriptStore) (*GraphState, error) {
	if in == nil {
		return nil, fmt.Errorf("%w: graph state is nil", contractx.ErrValidation)
	}
	if in.Reply == "" {
		if in.Decision.Kind == contractx.DecisionAnswer {
			in.Reply = in.Decision.Text
		}
		if in.Reply == "" {
			return nil, fmt.Errorf("%w: turn produced no reply", contractx.ErrValidation)
		}
	}

	entries := []contractx.TranscriptEntry{
		in.entry(contractx.EntryUserMessage, in.Text),
	}

	plan := in.Decision.Plan
	if in.ToolResult != nil && plan != nil {
		callPayload, err := json.Marshal(map[string]any{
			"capability": plan.Capability,
			"arguments":  plan.Arguments,
		})
		if err != nil {
			return nil, fmt.Errorf("%w: marshal tool call: %v", contractx.ErrValidation, err)
		}
		resultPayload, err := json.Marshal(in.ToolResult)
		if err != nil {
			return nil, fmt.Errorf("%w: marshal tool result: %v", contractx.ErrValidation, err)
		}
		entries = append(entries,
			in.entry(contractx.EntryToolCall, string(callPayload)),
			in.entry(contractx.EntryToolResult, string(resultPayload)),
		)
	}
	if plan != nil && plan.Rationale != "" {
		entries = append(entries, in.entry(contractx.EntryRationale, plan.Rationale))
	}
	entries = append(entries, in.entry(contractx.EntryAssistantMessage, in.Reply))

	if err := store.Append(ctx, in.Identity.Role, in.Identity.SubjectID, entries); err != nil {
		in.Persisted = false
	}

	if err := trail.Record(ctx, in.auditRecord()); err != nil {
		in.Persisted = false
	}

	return in, nil
}

// auditRecord summarises what the turn actually did. The capability field is
// only set when one executed; a denied or unknown plan leaves it empty with a
// rationale naming the refusal, so observers can tell "tried and was denied"
// from "chose not to act".
func (in *GraphState) auditRecord() contractx.AuditRecord {
	rec := contractx.AuditRecord{
		SubjectID: in.Identity.SubjectID,
		TurnSeq:   in.TurnSeq,
		TraceID:   in.TraceID,
		Timestamp: in.Now,
	}

	plan := in.Decision.Plan
	switch {
	case plan == nil:
		rec.Rationale = "direct answer, no capability invoked"
	case in.Executed:
		rec.Capability = plan.Capability
		rec.Rationale = plan.Rationale
		if in.ToolResult != nil && in.ToolResult.Error != "" {
			rec.Rationale += "; outcome: " + in.ToolResult.Error
		}
	default:
		rec.Rationale = "refused " + plan.Capability
		if in.ToolResult != nil && in.ToolResult.Error != "" {
			rec.Rationale += ": " + in.ToolResult.Error
		}
	}
	return rec
}

func (in *GraphState) entry(kind contractx.EntryKind, payload string) contractx.TranscriptEntry {
	return contractx.TranscriptEntry{
		Kind:      kind,
		SubjectID: in.Identity.SubjectID,
		Role:      in.Identity.Role,
		TurnSeq:   in.TurnSeq,
		Payload:   payload,
		Timestamp: in.Now,
	}
}
