package turnnode

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	contractx "github.com/finsight-labs/finsight/agent/contract"
)

// ComposeReply turns an executed capability result into prose through a
// second engine consultation. Denied and unknown capabilities already carry
// a deterministic reply and skip the model. When the engine fails on the
// follow-up too, the raw result is rendered so the computed answer is never
// lost to a flaky model.
func ComposeReply(ctx context.Context, in *GraphState, engine contractx.ReasoningEngine, timeout time.Duration) (*GraphState, error) {
	if in == nil {
		return nil, fmt.Errorf("%w: graph state is nil", contractx.ErrValidation)
	}
	if in.Reply != "" {
		return in, nil
	}
	if in.ToolResult == nil {
		return nil, fmt.Errorf("%w: compose reply without a capability result", contractx.ErrValidation)
	}

	req := contractx.ReasoningRequest{
		History:     in.History,
		UserMessage: in.Text,
		ToolResults: []contractx.CapabilityResult{*in.ToolResult},
	}

	decision, err := decideWithRetry(ctx, engine, req, timeout)
	if err == nil && decision.Kind == contractx.DecisionAnswer && decision.Text != "" {
		in.Reply = decision.Text
		return in, nil
	}

	in.FallbackUsed = true
	in.Reply = renderResult(*in.ToolResult)
	return in, nil
}

func renderResult(result contractx.CapabilityResult) string {
	if result.Error != "" {
		return fmt.Sprintf("The %s analysis did not complete: %s.", result.Capability, result.Error)
	}
	raw, err := json.Marshal(result.Result)
	if err != nil {
		return fmt.Sprintf("The %s analysis completed but the result could not be rendered.", result.Capability)
	}
	return fmt.Sprintf("Here is the raw %s result: %s", result.Capability, raw)
}
