package reasoning

import (
	"context"
	"errors"
	"testing"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	contractx "github.com/finsight-labs/finsight/agent/contract"
)

type fakeToolCallingModel struct {
	responses []*schema.Message
	err       error
	idx       int
}

func (f *fakeToolCallingModel) Generate(ctx context.Context, input []*schema.Message, opts ...einomodel.Option) (*schema.Message, error) {
	if f.err != nil {
		return nil, f.err
	}
	if f.idx >= len(f.responses) {
		return nil, errors.New("no fake response left")
	}
	msg := f.responses[f.idx]
	f.idx++
	return msg, nil
}

func (f *fakeToolCallingModel) Stream(ctx context.Context, input []*schema.Message, opts ...einomodel.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, errors.New("stream not implemented in fake model")
}

func (f *fakeToolCallingModel) WithTools(tools []*schema.ToolInfo) (einomodel.ToolCallingChatModel, error) {
	return f, nil
}

func testManifest() []contractx.CapabilityDescriptor {
	return []contractx.CapabilityDescriptor{
		{
			Name:        "calculate_churn_risk",
			Category:    "customer_value",
			Description: "Score churn risk for one customer.",
			MinRole:     contractx.RoleClient,
			Params:      map[string]string{"customer_id": "customer identifier"},
		},
	}
}

func TestDecidePlanStripsRationale(t *testing.T) {
	t.Parallel()

	fake := &fakeToolCallingModel{
		responses: []*schema.Message{
			{
				Role: schema.Assistant,
				ToolCalls: []schema.ToolCall{
					{
						ID:   "call_1",
						Type: "function",
						Function: schema.FunctionCall{
							Name:      "calculate_churn_risk",
							Arguments: `{"customer_id":"CUST002","why":"the user asked whether this customer might leave"}`,
						},
					},
				},
			},
		},
	}

	engine, err := NewEngine(context.Background(), fake, "analyst prompt")
	if err != nil {
		t.Fatalf("NewEngine() error = %v", err)
	}

	decision, err := engine.Decide(context.Background(), contractx.ReasoningRequest{
		UserMessage: "is CUST002 about to leave us?",
		Manifest:    testManifest(),
	})
	if err != nil {
		t.Fatalf("Decide() error = %v", err)
	}
	if decision.Kind != contractx.DecisionInvoke {
		t.Fatalf("expected invoke decision, got %s", decision.Kind)
	}
	if decision.Plan == nil || decision.Plan.Capability != "calculate_churn_risk" {
		t.Fatalf("unexpected plan: %+v", decision.Plan)
	}
	if decision.Plan.Rationale != "the user asked whether this customer might leave" {
		t.Fatalf("rationale not extracted: %q", decision.Plan.Rationale)
	}
	if _, present := decision.Plan.Arguments["why"]; present {
		t.Fatal("rationale argument should be stripped from capability arguments")
	}
	if decision.Plan.Arguments["customer_id"] != "CUST002" {
		t.Fatalf("unexpected arguments: %#v", decision.Plan.Arguments)
	}
}

func TestDecideAnswerWithoutManifest(t *testing.T) {
	t.Parallel()

	fake := &fakeToolCallingModel{
		responses: []*schema.Message{{Content: "I can analyse churn, spending and market conditions for you."}},
	}

	engine, err := NewEngine(context.Background(), fake, "analyst prompt")
	if err != nil {
		t.Fatalf("NewEngine() error = %v", err)
	}

	decision, err := engine.Decide(context.Background(), contractx.ReasoningRequest{
		UserMessage: "what can you do?",
	})
	if err != nil {
		t.Fatalf("Decide() error = %v", err)
	}
	if decision.Kind != contractx.DecisionAnswer {
		t.Fatalf("expected answer decision, got %s", decision.Kind)
	}
	if decision.Text == "" {
		t.Fatal("expected non-empty answer text")
	}
}

func TestDecideAnswersAfterToolResults(t *testing.T) {
	t.Parallel()

	fake := &fakeToolCallingModel{
		responses: []*schema.Message{{Content: "Churn risk for CUST002 is high, mainly from inactivity."}},
	}

	engine, err := NewEngine(context.Background(), fake, "analyst prompt")
	if err != nil {
		t.Fatalf("NewEngine() error = %v", err)
	}

	decision, err := engine.Decide(context.Background(), contractx.ReasoningRequest{
		UserMessage: "is CUST002 about to leave us?",
		Manifest:    testManifest(),
		ToolResults: []contractx.CapabilityResult{
			{Capability: "calculate_churn_risk", Result: map[string]any{"churn_risk": 1.0}},
		},
	})
	if err != nil {
		t.Fatalf("Decide() error = %v", err)
	}
	if decision.Kind != contractx.DecisionAnswer {
		t.Fatalf("expected answer decision after tool results, got %s", decision.Kind)
	}
}

func TestDecidePlanFallsBackToContent(t *testing.T) {
	t.Parallel()

	fake := &fakeToolCallingModel{
		responses: []*schema.Message{{Content: "Happy to help with churn or spending questions."}},
	}

	engine, err := NewEngine(context.Background(), fake, "analyst prompt")
	if err != nil {
		t.Fatalf("NewEngine() error = %v", err)
	}

	decision, err := engine.Decide(context.Background(), contractx.ReasoningRequest{
		UserMessage: "hello there",
		Manifest:    testManifest(),
	})
	if err != nil {
		t.Fatalf("Decide() error = %v", err)
	}
	if decision.Kind != contractx.DecisionAnswer {
		t.Fatalf("a plain chat reply should become an answer, got %s", decision.Kind)
	}
}

func TestDecideEmptyMessage(t *testing.T) {
	t.Parallel()

	engine, err := NewEngine(context.Background(), &fakeToolCallingModel{}, "analyst prompt")
	if err != nil {
		t.Fatalf("NewEngine() error = %v", err)
	}

	if _, err := engine.Decide(context.Background(), contractx.ReasoningRequest{UserMessage: "  "}); !errors.Is(err, contractx.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestDecideEmptyModelOutput(t *testing.T) {
	t.Parallel()

	fake := &fakeToolCallingModel{responses: []*schema.Message{{Content: "   "}}}
	engine, err := NewEngine(context.Background(), fake, "analyst prompt")
	if err != nil {
		t.Fatalf("NewEngine() error = %v", err)
	}

	_, err = engine.Decide(context.Background(), contractx.ReasoningRequest{
		UserMessage: "run something",
		Manifest:    testManifest(),
	})
	if !errors.Is(err, contractx.ErrReasoningEngine) {
		t.Fatalf("expected ErrReasoningEngine, got %v", err)
	}
}
