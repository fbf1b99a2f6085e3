package turnnode

import (
	"context"
	"fmt"
	"time"

	contractx "github.com/finsight-labs/finsight/agent/contract"
)

// FallbackReply is returned verbatim when the reasoning engine fails twice
// in a row. It never varies so callers can test for it.
const FallbackReply = "I could not process that request right now. Please try again in a moment."

// Reason asks the engine for a decision. One retry, then the fixed fallback
// answer: a broken model must never break the conversation.
func Reason(ctx context.Context, in *GraphState, engine contractx.ReasoningEngine, timeout time.Duration) (*GraphState, error) {
	if in == nil {
		return nil, fmt.Errorf("%w: graph state is nil", contractx.ErrValidation)
	}

	req := contractx.ReasoningRequest{
		History:     in.History,
		UserMessage: in.Text,
		Manifest:    in.Manifest,
	}

	decision, err := decideWithRetry(ctx, engine, req, timeout)
	if err != nil {
		in.Decision = contractx.Decision{Kind: contractx.DecisionAnswer, Text: FallbackReply}
		in.FallbackUsed = true
		return in, nil
	}

	if decision.Kind == contractx.DecisionInvoke && decision.Plan == nil {
		in.Decision = contractx.Decision{Kind: contractx.DecisionAnswer, Text: FallbackReply}
		in.FallbackUsed = true
		return in, nil
	}

	in.Decision = decision
	return in, nil
}

func decideWithRetry(ctx context.Context, engine contractx.ReasoningEngine, req contractx.ReasoningRequest, timeout time.Duration) (contractx.Decision, error) {
	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		decision, err := decideOnce(ctx, engine, req, timeout)
		if err == nil {
			return decision, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			break
		}
	}
	return contractx.Decision{}, fmt.Errorf("%w: %v", contractx.ErrReasoningEngine, lastErr)
}

func decideOnce(ctx context.Context, engine contractx.ReasoningEngine, req contractx.ReasoningRequest, timeout time.Duration) (contractx.Decision, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	return engine.Decide(ctx, req)
}
