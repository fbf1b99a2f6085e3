package turnnode

import (
	"fmt"
	"strings"

	contractx "github.com/finsight-labs/finsight/agent/contract"
)

func FinalizeReply(in *GraphState) (GraphOutput, error) {
	if in == nil {
		return GraphOutput{}, fmt.Errorf("%w: graph state is nil", contractx.ErrValidation)
	}

	reply := strings.TrimSpace(in.Reply)
	if reply == "" {
		return GraphOutput{}, fmt.Errorf("%w: turn finished with an empty reply", contractx.ErrValidation)
	}

	result := contractx.TurnResult{
		Reply:     reply,
		TurnSeq:   in.TurnSeq,
		TraceID:   in.TraceID,
		Persisted: in.Persisted,
	}
	if in.Executed && in.Decision.Plan != nil {
		result.Capability = in.Decision.Plan.Capability
	}
	return GraphOutput{Result: result}, nil
}
