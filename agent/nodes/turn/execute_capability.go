package turnnode

import (
	"context"
	"errors"
	"fmt"
	"time"

	contractx "github.com/finsight-labs/finsight/agent/contract"
	gatex "github.com/finsight-labs/finsight/agent/gate"
)

// ExecuteCapability re-validates the planned capability against the gate and
// runs it under its own deadline. The manifest already constrained what the
// model could choose, but the plan still arrives from an untrusted boundary,
// so the gate decides again here.
func ExecuteCapability(
	ctx context.Context,
	in *GraphState,
	gate *gatex.Gate,
	executor contractx.Executor,
	timeout time.Duration,
) (*GraphState, error) {
	if in == nil {
		return nil, fmt.Errorf("%w: graph state is nil", contractx.ErrValidation)
	}
	plan := in.Decision.Plan
	if plan == nil {
		return nil, fmt.Errorf("%w: invoke decision without a plan", contractx.ErrValidation)
	}

	allowed, err := gate.Permits(in.Identity, plan.Capability)
	if err != nil {
		// Unknown capability: the model asked for something that does
		// not exist at all.
		in.ToolResult = &contractx.CapabilityResult{
			Capability: plan.Capability,
			Error:      err.Error(),
		}
		in.Reply = fmt.Sprintf("I don't have a capability called %q.", plan.Capability)
		return in, nil
	}
	if !allowed {
		in.ToolResult = &contractx.CapabilityResult{
			Capability: plan.Capability,
			Error:      fmt.Sprintf("%v: %s", contractx.ErrCapabilityDenied, plan.Capability),
		}
		in.Reply = fmt.Sprintf("Your current access level does not include %s, so I can't run that analysis for you.", plan.Capability)
		return in, nil
	}

	execCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		execCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	result, err := executor.Execute(execCtx, plan.Capability, plan.Arguments)
	switch {
	case err == nil:
		// Capability-level failures travel inside result.Error.
	case errors.Is(execCtx.Err(), context.DeadlineExceeded):
		result = contractx.CapabilityResult{
			Capability: plan.Capability,
			Error:      fmt.Sprintf("%v: %s", contractx.ErrCapabilityTimeout, plan.Capability),
		}
	default:
		result = contractx.CapabilityResult{
			Capability: plan.Capability,
			Error:      err.Error(),
		}
	}

	in.ToolResult = &result
	in.Executed = true
	return in, nil
}
