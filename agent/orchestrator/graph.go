package orchestrator

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/compose"
	contractx "github.com/finsight-labs/finsight/agent/contract"
	nodex "github.com/finsight-labs/finsight/agent/nodes/turn"
)

func (s *Service) compileTurnGraph(
	ctx context.Context,
) (compose.Runnable[nodex.GraphInput, nodex.GraphOutput], error) {
	graph := compose.NewGraph[nodex.GraphInput, nodex.GraphOutput]()

	if err := graph.AddLambdaNode("validate_request",
		compose.InvokableLambda(func(ctx context.Context, in nodex.GraphInput) (*nodex.GraphState, error) {
			return nodex.ValidateRequest(in, s.now)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node validate_request: %w", err)
	}

	if err := graph.AddLambdaNode("load_history",
		compose.InvokableLambda(func(ctx context.Context, in *nodex.GraphState) (*nodex.GraphState, error) {
			return nodex.LoadHistory(ctx, in, s.store)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node load_history: %w", err)
	}

	if err := graph.AddLambdaNode("scope_capabilities",
		compose.InvokableLambda(func(ctx context.Context, in *nodex.GraphState) (*nodex.GraphState, error) {
			return nodex.ScopeCapabilities(in, s.gate)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node scope_capabilities: %w", err)
	}

	if err := graph.AddLambdaNode("reason",
		compose.InvokableLambda(func(ctx context.Context, in *nodex.GraphState) (*nodex.GraphState, error) {
			return nodex.Reason(ctx, in, s.engine, s.reasoningTimeout)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node reason: %w", err)
	}

	if err := graph.AddLambdaNode("adopt_answer",
		compose.InvokableLambda(func(ctx context.Context, in *nodex.GraphState) (*nodex.GraphState, error) {
			if in == nil {
				return nil, fmt.Errorf("%w: graph state is nil", contractx.ErrValidation)
			}
			in.Reply = in.Decision.Text
			return in, nil
		}),
	); err != nil {
		return nil, fmt.Errorf("add node adopt_answer: %w", err)
	}

	if err := graph.AddLambdaNode("execute_capability",
		compose.InvokableLambda(func(ctx context.Context, in *nodex.GraphState) (*nodex.GraphState, error) {
			return nodex.ExecuteCapability(ctx, in, s.gate, s.executor, s.capabilityTimeout)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node execute_capability: %w", err)
	}

	if err := graph.AddLambdaNode("compose_reply",
		compose.InvokableLambda(func(ctx context.Context, in *nodex.GraphState) (*nodex.GraphState, error) {
			return nodex.ComposeReply(ctx, in, s.engine, s.reasoningTimeout)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node compose_reply: %w", err)
	}

	if err := graph.AddLambdaNode("record_turn",
		compose.InvokableLambda(func(ctx context.Context, in *nodex.GraphState) (*nodex.GraphState, error) {
			return nodex.RecordTurn(ctx, in, s.trail, s.store)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node record_turn: %w", err)
	}

	if err := graph.AddLambdaNode("finalize_reply",
		compose.InvokableLambda(func(ctx context.Context, in *nodex.GraphState) (nodex.GraphOutput, error) {
			return nodex.FinalizeReply(in)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node finalize_reply: %w", err)
	}

	branch := compose.NewGraphBranch(
		func(ctx context.Context, in *nodex.GraphState) (string, error) {
			if in == nil {
				return "", fmt.Errorf("%w: graph state is nil", contractx.ErrValidation)
			}
			if in.Decision.Kind == contractx.DecisionInvoke {
				return "execute_capability", nil
			}
			return "adopt_answer", nil
		},
		map[string]bool{
			"execute_capability": true,
			"adopt_answer":       true,
		},
	)

	if err := graph.AddBranch("reason", branch); err != nil {
		return nil, fmt.Errorf("add turn branch: %w", err)
	}

	edges := [][2]string{
		{compose.START, "validate_request"},
		{"validate_request", "load_history"},
		{"load_history", "scope_capabilities"},
		{"scope_capabilities", "reason"},
		{"execute_capability", "compose_reply"},
		{"compose_reply", "record_turn"},
		{"adopt_answer", "record_turn"},
		{"record_turn", "finalize_reply"},
		{"finalize_reply", compose.END},
	}

	for _, edge := range edges {
		if err := graph.AddEdge(edge[0], edge[1]); err != nil {
			return nil, fmt.Errorf("add edge %s->%s: %w", edge[0], edge[1], err)
		}
	}

	runner, err := graph.Compile(ctx, compose.WithGraphName("orchestrator.turn"))
	if err != nil {
		return nil, fmt.Errorf("compile turn graph: %w", err)
	}
	return runner, nil
}
