// Package reasoning adapts a tool-calling chat model into the decision step
// of the conversation loop. The engine never executes capabilities: it only
// turns model output into either a direct answer or an invocation plan, and
// the plan is re-checked by the gate before anything runs.
package reasoning

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"

	einomodel "github.com/cloudwego/eino/components/model"
	einoprompt "github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
	contractx "github.com/finsight-labs/finsight/agent/contract"
)

// rationaleArg is an extra argument the system prompt asks the model to put
// on every tool call. It is stripped before the arguments reach the
// capability and recorded as the decision rationale.
const rationaleArg = "why"

type Engine struct {
	chatModel    einomodel.ToolCallingChatModel
	systemPrompt string

	answerRunner compose.Runnable[map[string]any, *schema.Message]

	mu          sync.Mutex
	toolRunners map[string]compose.Runnable[map[string]any, *schema.Message]
}

func NewEngine(ctx context.Context, chatModel einomodel.ToolCallingChatModel, systemPrompt string) (*Engine, error) {
	if chatModel == nil {
		return nil, fmt.Errorf("%w: chat model is nil", contractx.ErrReasoningEngine)
	}

	answerRunner, err := compileChatGraph(ctx, chatModel, systemPrompt, "reasoning.answer_graph")
	if err != nil {
		return nil, fmt.Errorf("%w: compile answer graph: %v", contractx.ErrReasoningEngine, err)
	}

	return &Engine{
		chatModel:    chatModel,
		systemPrompt: systemPrompt,
		answerRunner: answerRunner,
		toolRunners:  make(map[string]compose.Runnable[map[string]any, *schema.Message]),
	}, nil
}

func (e *Engine) Decide(ctx context.Context, req contractx.ReasoningRequest) (contractx.Decision, error) {
	if strings.TrimSpace(req.UserMessage) == "" {
		return contractx.Decision{}, fmt.Errorf("%w: user message is empty", contractx.ErrValidation)
	}

	// After a capability ran, the second pass always answers in prose.
	if len(req.ToolResults) > 0 || len(req.Manifest) == 0 {
		return e.answer(ctx, req)
	}
	return e.plan(ctx, req)
}

func (e *Engine) answer(ctx context.Context, req contractx.ReasoningRequest) (contractx.Decision, error) {
	input, err := marshalPayload(req, "answer")
	if err != nil {
		return contractx.Decision{}, err
	}

	msg, err := e.answerRunner.Invoke(ctx, map[string]any{"input": input})
	if err != nil {
		return contractx.Decision{}, fmt.Errorf("%w: answer invoke: %v", contractx.ErrReasoningEngine, err)
	}
	text := strings.TrimSpace(msg.Content)
	if text == "" {
		return contractx.Decision{}, fmt.Errorf("%w: empty answer from model", contractx.ErrReasoningEngine)
	}
	return contractx.Decision{Kind: contractx.DecisionAnswer, Text: text}, nil
}

func (e *Engine) plan(ctx context.Context, req contractx.ReasoningRequest) (contractx.Decision, error) {
	runner, err := e.runnerFor(ctx, req.Manifest)
	if err != nil {
		return contractx.Decision{}, err
	}

	input, err := marshalPayload(req, "plan")
	if err != nil {
		return contractx.Decision{}, err
	}

	msg, err := runner.Invoke(ctx, map[string]any{"input": input})
	if err != nil {
		return contractx.Decision{}, fmt.Errorf("%w: plan invoke: %v", contractx.ErrReasoningEngine, err)
	}

	if len(msg.ToolCalls) == 0 {
		text := strings.TrimSpace(msg.Content)
		if text == "" {
			return contractx.Decision{}, fmt.Errorf("%w: model returned neither answer nor tool call", contractx.ErrReasoningEngine)
		}
		return contractx.Decision{Kind: contractx.DecisionAnswer, Text: text}, nil
	}

	// Only one capability per turn; extra calls are dropped.
	call := msg.ToolCalls[0]
	name := strings.TrimSpace(call.Function.Name)
	if name == "" {
		return contractx.Decision{}, fmt.Errorf("%w: tool call without a name", contractx.ErrReasoningEngine)
	}

	args := map[string]any{}
	if raw := strings.TrimSpace(call.Function.Arguments); raw != "" {
		if err := json.Unmarshal([]byte(raw), &args); err != nil {
			return contractx.Decision{}, fmt.Errorf("%w: invalid arguments for %s: %v", contractx.ErrReasoningEngine, name, err)
		}
	}

	rationale, _ := args[rationaleArg].(string)
	delete(args, rationaleArg)
	if rationale == "" {
		rationale = strings.TrimSpace(msg.Content)
	}
	if rationale == "" {
		rationale = "selected " + name + " for this request"
	}

	return contractx.Decision{
		Kind: contractx.DecisionInvoke,
		Plan: &contractx.InvocationPlan{
			Capability: name,
			Arguments:  args,
			Rationale:  rationale,
		},
	}, nil
}

// runnerFor compiles (and caches) a tool-bound graph per distinct manifest.
// Identities with the same allowed set share a runner.
func (e *Engine) runnerFor(ctx context.Context, manifest []contractx.CapabilityDescriptor) (compose.Runnable[map[string]any, *schema.Message], error) {
	key := manifestKey(manifest)

	e.mu.Lock()
	defer e.mu.Unlock()
	if runner, ok := e.toolRunners[key]; ok {
		return runner, nil
	}

	toolModel, err := e.chatModel.WithTools(toolInfos(manifest))
	if err != nil {
		return nil, fmt.Errorf("%w: bind tools: %v", contractx.ErrReasoningEngine, err)
	}
	runner, err := compileChatGraph(ctx, toolModel, e.systemPrompt, "reasoning.plan_graph")
	if err != nil {
		return nil, fmt.Errorf("%w: compile plan graph: %v", contractx.ErrReasoningEngine, err)
	}
	e.toolRunners[key] = runner
	return runner, nil
}

func manifestKey(manifest []contractx.CapabilityDescriptor) string {
	names := make([]string, 0, len(manifest))
	for _, d := range manifest {
		names = append(names, d.Name)
	}
	sort.Strings(names)
	return strings.Join(names, ",")
}

func toolInfos(manifest []contractx.CapabilityDescriptor) []*schema.ToolInfo {
	tools := make([]*schema.ToolInfo, 0, len(manifest))
	for _, d := range manifest {
		params := make(map[string]*schema.ParameterInfo, len(d.Params)+1)
		for name, desc := range d.Params {
			params[name] = &schema.ParameterInfo{
				Type:     schema.String,
				Desc:     desc,
				Required: name == "customer_id",
			}
		}
		params[rationaleArg] = &schema.ParameterInfo{
			Type:     schema.String,
			Desc:     "One short sentence explaining why this capability answers the request.",
			Required: true,
		}
		tools = append(tools, &schema.ToolInfo{
			Name:        d.Name,
			Desc:        d.Description,
			ParamsOneOf: schema.NewParamsOneOfByParams(params),
		})
	}
	return tools
}

type historyLine struct {
	Kind    string `json:"kind"`
	Role    string `json:"role"`
	Payload string `json:"payload"`
}

func marshalPayload(req contractx.ReasoningRequest, mode string) (string, error) {
	history := make([]historyLine, 0, len(req.History))
	for _, entry := range req.History {
		history = append(history, historyLine{
			Kind:    string(entry.Kind),
			Role:    string(entry.Role),
			Payload: entry.Payload,
		})
	}

	payload := map[string]any{
		"mode":         mode,
		"user_message": req.UserMessage,
		"history":      history,
	}
	if len(req.ToolResults) > 0 {
		payload["tool_results"] = req.ToolResults
	}

	input, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("%w: marshal reasoning payload: %v", contractx.ErrValidation, err)
	}
	return string(input), nil
}

func compileChatGraph(
	ctx context.Context,
	chatModel einomodel.BaseChatModel,
	systemPrompt string,
	graphName string,
) (compose.Runnable[map[string]any, *schema.Message], error) {
	template := einoprompt.FromMessages(
		schema.FString,
		schema.SystemMessage(systemPrompt),
		schema.UserMessage("{input}"),
	)

	graph := compose.NewGraph[map[string]any, *schema.Message]()
	if err := graph.AddChatTemplateNode("prompt", template); err != nil {
		return nil, fmt.Errorf("add prompt node: %w", err)
	}
	if err := graph.AddChatModelNode("model", chatModel); err != nil {
		return nil, fmt.Errorf("add model node: %w", err)
	}
	if err := graph.AddEdge(compose.START, "prompt"); err != nil {
		return nil, fmt.Errorf("add edge start->prompt: %w", err)
	}
	if err := graph.AddEdge("prompt", "model"); err != nil {
		return nil, fmt.Errorf("add edge prompt->model: %w", err)
	}
	if err := graph.AddEdge("model", compose.END); err != nil {
		return nil, fmt.Errorf("add edge model->end: %w", err)
	}

	runner, err := graph.Compile(ctx, compose.WithGraphName(graphName))
	if err != nil {
		return nil, fmt.Errorf("compile %s: %w", graphName, err)
	}
	return runner, nil
}

var _ contractx.ReasoningEngine = (*Engine)(nil)
