package turnnode

import (
	"context"
	"fmt"

	contractx "github.com/finsight-labs/finsight/agent/contract"
)

// historyWindow bounds how much context reaches the reasoning engine.
const historyWindow = 20

// LoadHistory reads the light stream for model context. A read failure
// degrades the turn to fresh context instead of failing it: history is an
// aid, not a precondition.
func LoadHistory(ctx context.Context, in *GraphState, store contractx.TranscriptStore) (*GraphState, error) {
	if in == nil {
		return nil, fmt.Errorf("%w: graph state is nil", contractx.ErrValidation)
	}

	entries, err := store.ReadAll(ctx, in.Identity.Role, in.Identity.SubjectID, contractx.StreamLight)
	if err != nil {
		in.History = nil
		return in, nil
	}
	if len(entries) > historyWindow {
		entries = entries[len(entries)-historyWindow:]
	}
	in.History = entries
	return in, nil
}
