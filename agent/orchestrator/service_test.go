package orchestrator

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	auditx "github.com/finsight-labs/finsight/agent/audit"
	catalogx "github.com/finsight-labs/finsight/agent/catalog"
	contractx "github.com/finsight-labs/finsight/agent/contract"
	gatex "github.com/finsight-labs/finsight/agent/gate"
	nodex "github.com/finsight-labs/finsight/agent/nodes/turn"
	transcriptx "github.com/finsight-labs/finsight/agent/transcript"
	"github.com/rs/zerolog"
)

type engineStep struct {
	decision contractx.Decision
	err      error
}

type fakeEngine struct {
	script []engineStep
	calls  []contractx.ReasoningRequest
}

func (f *fakeEngine) Decide(ctx context.Context, req contractx.ReasoningRequest) (contractx.Decision, error) {
	f.calls = append(f.calls, req)
	if len(f.script) == 0 {
		return contractx.Decision{}, errors.New("engine script exhausted")
	}
	step := f.script[0]
	f.script = f.script[1:]
	return step.decision, step.err
}

type executorCall struct {
	capability string
	args       map[string]any
}

type fakeExecutor struct {
	result contractx.CapabilityResult
	err    error
	block  bool
	calls  []executorCall
}

func (f *fakeExecutor) Execute(ctx context.Context, capability string, args map[string]any) (contractx.CapabilityResult, error) {
	f.calls = append(f.calls, executorCall{capability: capability, args: args})
	if f.block {
		<-ctx.Done()
		return contractx.CapabilityResult{}, ctx.Err()
	}
	if f.err != nil {
		return contractx.CapabilityResult{}, f.err
	}
	return f.result, nil
}

type failingStore struct {
	*transcriptx.MemoryStore
	appendErr error
}

func (f *failingStore) Append(ctx context.Context, role contractx.Role, subjectID string, entries []contractx.TranscriptEntry) error {
	if f.appendErr != nil {
		return f.appendErr
	}
	return f.MemoryStore.Append(ctx, role, subjectID, entries)
}

type serviceDeps struct {
	engine   *fakeEngine
	executor *fakeExecutor
	trail    *auditx.MemoryTrail
	store    contractx.TranscriptStore
}

func newTestService(t *testing.T, deps serviceDeps, cfg Config) *Service {
	t.Helper()
	if deps.engine == nil {
		deps.engine = &fakeEngine{}
	}
	if deps.executor == nil {
		deps.executor = &fakeExecutor{}
	}
	if deps.trail == nil {
		deps.trail = auditx.NewMemoryTrail()
	}
	if deps.store == nil {
		deps.store = transcriptx.NewMemoryStore()
	}

	svc, err := New(gatex.New(catalogx.New()), deps.engine, deps.executor, deps.trail, deps.store, zerolog.Nop(), cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return svc
}

func premiumClient(subjectID string) contractx.IdentityContext {
	return contractx.IdentityContext{SubjectID: subjectID, Role: contractx.RoleClient, Tier: contractx.TierPremium}
}

func answerDecision(text string) contractx.Decision {
	return contractx.Decision{Kind: contractx.DecisionAnswer, Text: text}
}

func invokeDecision(capability, rationale string, args map[string]any) contractx.Decision {
	return contractx.Decision{
		Kind: contractx.DecisionInvoke,
		Plan: &contractx.InvocationPlan{Capability: capability, Arguments: args, Rationale: rationale},
	}
}

func TestHandleTurnRejectsInvalidInput(t *testing.T) {
	t.Parallel()

	svc := newTestService(t, serviceDeps{}, Config{})
	ctx := context.Background()

	cases := []struct {
		name     string
		identity contractx.IdentityContext
		text     string
		wantErr  error
	}{
		{"empty message", premiumClient("s1"), "   ", ErrInvalidMessage},
		{"empty subject", premiumClient(""), "hello", ErrInvalidSubject},
		{"unknown role", contractx.IdentityContext{SubjectID: "s1", Role: "intern"}, "hello", ErrInvalidRole},
		{"client with bogus tier", contractx.IdentityContext{SubjectID: "s1", Role: contractx.RoleClient, Tier: "platinum"}, "hello", ErrInvalidTier},
	}
	for _, tc := range cases {
		if _, err := svc.HandleTurn(ctx, tc.identity, tc.text); !errors.Is(err, tc.wantErr) {
			t.Fatalf("%s: expected %v, got %v", tc.name, tc.wantErr, err)
		}
	}
}

func TestHandleTurnAnswerPath(t *testing.T) {
	t.Parallel()

	engine := &fakeEngine{script: []engineStep{
		{decision: answerDecision("I can analyse churn, spending and market conditions for you.")},
	}}
	executor := &fakeExecutor{}
	trail := auditx.NewMemoryTrail()
	store := transcriptx.NewMemoryStore()
	svc := newTestService(t, serviceDeps{engine: engine, executor: executor, trail: trail, store: store}, Config{})

	ctx := context.Background()
	identity := premiumClient("s1")
	result, err := svc.HandleTurn(ctx, identity, "what can you do?")
	if err != nil {
		t.Fatalf("HandleTurn() error = %v", err)
	}

	if result.Reply == "" || result.TurnSeq != 1 || !result.Persisted {
		t.Fatalf("unexpected result: %+v", result)
	}
	if result.Capability != "" {
		t.Fatalf("answer turn must not report a capability, got %q", result.Capability)
	}
	if len(executor.calls) != 0 {
		t.Fatalf("executor must not run on answer turns, got %d calls", len(executor.calls))
	}

	light, err := store.ReadAll(ctx, identity.Role, identity.SubjectID, contractx.StreamLight)
	if err != nil {
		t.Fatalf("ReadAll() error = %v", err)
	}
	if len(light) != 2 {
		t.Fatalf("answer turn should write user and assistant entries, got %d", len(light))
	}

	rec, ok, err := trail.Latest(ctx, identity.SubjectID)
	if err != nil || !ok {
		t.Fatalf("Latest() = %v, %v, %v", rec, ok, err)
	}
	if rec.Capability != "" || rec.Rationale == "" {
		t.Fatalf("answer turn should leave a direct-answer rationale: %+v", rec)
	}
}

func TestHandleTurnInvokePath(t *testing.T) {
	t.Parallel()

	engine := &fakeEngine{script: []engineStep{
		{decision: invokeDecision("calculate_churn_risk", "user asked about retention", map[string]any{"customer_id": "CUST002"})},
		{decision: answerDecision("Churn risk for CUST002 is very high.")},
	}}
	executor := &fakeExecutor{
		result: contractx.CapabilityResult{Capability: "calculate_churn_risk", Result: map[string]any{"churn_risk": 1.0}},
	}
	trail := auditx.NewMemoryTrail()
	store := transcriptx.NewMemoryStore()
	svc := newTestService(t, serviceDeps{engine: engine, executor: executor, trail: trail, store: store}, Config{})

	ctx := context.Background()
	identity := premiumClient("s1")
	result, err := svc.HandleTurn(ctx, identity, "is CUST002 about to leave?")
	if err != nil {
		t.Fatalf("HandleTurn() error = %v", err)
	}

	if result.Capability != "calculate_churn_risk" {
		t.Fatalf("expected capability on result, got %q", result.Capability)
	}
	if len(executor.calls) != 1 || executor.calls[0].capability != "calculate_churn_risk" {
		t.Fatalf("unexpected executor calls: %#v", executor.calls)
	}
	if executor.calls[0].args["customer_id"] != "CUST002" {
		t.Fatalf("arguments not forwarded: %#v", executor.calls[0].args)
	}

	complete, err := store.ReadAll(ctx, identity.Role, identity.SubjectID, contractx.StreamComplete)
	if err != nil {
		t.Fatalf("ReadAll() error = %v", err)
	}
	wantOrder := []contractx.EntryKind{
		contractx.EntryUserMessage,
		contractx.EntryToolCall,
		contractx.EntryToolResult,
		contractx.EntryRationale,
		contractx.EntryAssistantMessage,
	}
	if len(complete) != len(wantOrder) {
		t.Fatalf("expected %d entries, got %d", len(wantOrder), len(complete))
	}
	for i, kind := range wantOrder {
		if complete[i].Kind != kind {
			t.Fatalf("entry %d: expected %s, got %s", i, kind, complete[i].Kind)
		}
	}

	light, err := store.ReadAll(ctx, identity.Role, identity.SubjectID, contractx.StreamLight)
	if err != nil {
		t.Fatalf("ReadAll() error = %v", err)
	}
	if len(light) != 2 {
		t.Fatalf("light stream should hide tool traffic, got %d entries", len(light))
	}

	rec, ok, err := trail.Latest(ctx, identity.SubjectID)
	if err != nil || !ok {
		t.Fatalf("Latest() = %v, %v, %v", rec, ok, err)
	}
	if rec.Capability != "calculate_churn_risk" || rec.Rationale != "user asked about retention" {
		t.Fatalf("unexpected audit record: %+v", rec)
	}
	if rec.TurnSeq != 1 || rec.TraceID == "" {
		t.Fatalf("audit record missing turn context: %+v", rec)
	}
}

func TestHandleTurnDeniedCapability(t *testing.T) {
	t.Parallel()

	engine := &fakeEngine{script: []engineStep{
		{decision: invokeDecision("investment_strategy_planner", "client wants a plan", map[string]any{"customer_id": "CUST002"})},
	}}
	executor := &fakeExecutor{}
	trail := auditx.NewMemoryTrail()
	svc := newTestService(t, serviceDeps{engine: engine, executor: executor, trail: trail}, Config{})

	identity := contractx.IdentityContext{SubjectID: "s1", Role: contractx.RoleClient, Tier: contractx.TierNormal}
	result, err := svc.HandleTurn(context.Background(), identity, "plan my investments")
	if err != nil {
		t.Fatalf("HandleTurn() error = %v", err)
	}

	if !strings.Contains(result.Reply, "access level") {
		t.Fatalf("expected denial wording, got %q", result.Reply)
	}
	if result.Capability != "" {
		t.Fatalf("denied turn must not report a capability, got %q", result.Capability)
	}
	if len(executor.calls) != 0 {
		t.Fatalf("executor must not run denied capabilities, got %d calls", len(executor.calls))
	}

	rec, ok, err := trail.Latest(context.Background(), identity.SubjectID)
	if err != nil || !ok {
		t.Fatalf("Latest() = %v, %v, %v", rec, ok, err)
	}
	if rec.Capability != "" {
		t.Fatalf("denied turn must record an empty capability, got %q", rec.Capability)
	}
	if !strings.Contains(rec.Rationale, "denied") {
		t.Fatalf("denial rationale should name the refusal, got %q", rec.Rationale)
	}
}

func TestHandleTurnUnknownCapability(t *testing.T) {
	t.Parallel()

	engine := &fakeEngine{script: []engineStep{
		{decision: invokeDecision("teleport_funds", "model hallucinated", nil)},
	}}
	executor := &fakeExecutor{}
	svc := newTestService(t, serviceDeps{engine: engine, executor: executor}, Config{})

	result, err := svc.HandleTurn(context.Background(), premiumClient("s1"), "teleport my money")
	if err != nil {
		t.Fatalf("HandleTurn() error = %v", err)
	}
	if !strings.Contains(result.Reply, "don't have a capability") {
		t.Fatalf("expected unknown-capability wording, got %q", result.Reply)
	}
	if len(executor.calls) != 0 {
		t.Fatalf("executor must not run unknown capabilities, got %d calls", len(executor.calls))
	}
}

func TestHandleTurnEngineFailureFallsBack(t *testing.T) {
	t.Parallel()

	engine := &fakeEngine{script: []engineStep{
		{err: errors.New("model unavailable")},
		{err: errors.New("model unavailable")},
	}}
	svc := newTestService(t, serviceDeps{engine: engine}, Config{})

	result, err := svc.HandleTurn(context.Background(), premiumClient("s1"), "what can you do?")
	if err != nil {
		t.Fatalf("HandleTurn() error = %v", err)
	}
	if result.Reply != nodex.FallbackReply {
		t.Fatalf("expected fixed fallback reply, got %q", result.Reply)
	}
	if len(engine.calls) != 2 {
		t.Fatalf("expected exactly one retry, got %d calls", len(engine.calls))
	}
}

func TestHandleTurnCapabilityTimeout(t *testing.T) {
	t.Parallel()

	engine := &fakeEngine{script: []engineStep{
		{decision: invokeDecision("calculate_churn_risk", "user asked about retention", map[string]any{"customer_id": "CUST002"})},
		// Follow-up composition fails twice so the raw result is rendered.
		{err: errors.New("model unavailable")},
		{err: errors.New("model unavailable")},
	}}
	executor := &fakeExecutor{block: true}
	svc := newTestService(t, serviceDeps{engine: engine, executor: executor}, Config{CapabilityTimeout: 20 * time.Millisecond})

	result, err := svc.HandleTurn(context.Background(), premiumClient("s1"), "is CUST002 about to leave?")
	if err != nil {
		t.Fatalf("HandleTurn() error = %v", err)
	}
	if !strings.Contains(result.Reply, "did not complete") {
		t.Fatalf("expected timeout wording, got %q", result.Reply)
	}
	if !strings.Contains(result.Reply, "timed out") {
		t.Fatalf("expected timeout cause in reply, got %q", result.Reply)
	}
}

func TestHandleTurnStoreFailureFlagsResult(t *testing.T) {
	t.Parallel()

	engine := &fakeEngine{script: []engineStep{
		{decision: answerDecision("I can analyse churn for you.")},
	}}
	store := &failingStore{MemoryStore: transcriptx.NewMemoryStore(), appendErr: errors.New("disk full")}
	svc := newTestService(t, serviceDeps{engine: engine, store: store}, Config{})

	result, err := svc.HandleTurn(context.Background(), premiumClient("s1"), "what can you do?")
	if err != nil {
		t.Fatalf("HandleTurn() error = %v", err)
	}
	if result.Persisted {
		t.Fatal("persistence failure must be flagged on the result")
	}
	if result.Reply == "" {
		t.Fatal("the reply must still be delivered when persistence fails")
	}
}

func TestHandleTurnSequencePerSubject(t *testing.T) {
	t.Parallel()

	engine := &fakeEngine{script: []engineStep{
		{decision: answerDecision("first")},
		{decision: answerDecision("second")},
		{decision: answerDecision("other subject")},
	}}
	svc := newTestService(t, serviceDeps{engine: engine}, Config{})
	ctx := context.Background()

	first, err := svc.HandleTurn(ctx, premiumClient("s1"), "one")
	if err != nil {
		t.Fatalf("HandleTurn() error = %v", err)
	}
	second, err := svc.HandleTurn(ctx, premiumClient("s1"), "two")
	if err != nil {
		t.Fatalf("HandleTurn() error = %v", err)
	}
	if first.TurnSeq != 1 || second.TurnSeq != 2 {
		t.Fatalf("sequence should advance per subject: %d then %d", first.TurnSeq, second.TurnSeq)
	}

	// A rejected turn must not consume a sequence number.
	if _, err := svc.HandleTurn(ctx, premiumClient("s1"), "  "); !errors.Is(err, ErrInvalidMessage) {
		t.Fatalf("expected ErrInvalidMessage, got %v", err)
	}

	other, err := svc.HandleTurn(ctx, premiumClient("s2"), "hello")
	if err != nil {
		t.Fatalf("HandleTurn() error = %v", err)
	}
	if other.TurnSeq != 1 {
		t.Fatalf("subjects must count independently, got %d", other.TurnSeq)
	}
}

func TestHandleTurnTierlessClient(t *testing.T) {
	t.Parallel()

	engine := &fakeEngine{script: []engineStep{
		{decision: answerDecision("Here is a summary of your spending.")},
	}}
	svc := newTestService(t, serviceDeps{engine: engine}, Config{})

	identity := contractx.IdentityContext{SubjectID: "s1", Role: contractx.RoleClient}
	result, err := svc.HandleTurn(context.Background(), identity, "summarize my spending")
	if err != nil {
		t.Fatalf("a tierless client should be served the base set, got %v", err)
	}
	if result.Reply == "" {
		t.Fatal("expected a reply")
	}

	manifest := svc.Manifest(identity)
	if len(manifest) == 0 {
		t.Fatal("tierless client should still see the base capabilities")
	}
	for _, d := range manifest {
		if d.MinTier != contractx.TierNone {
			t.Fatalf("tierless manifest leaked a tiered capability: %s", d.Name)
		}
	}
}

func TestManifestMatchesGate(t *testing.T) {
	t.Parallel()

	svc := newTestService(t, serviceDeps{}, Config{})

	normal := svc.Manifest(contractx.IdentityContext{SubjectID: "s1", Role: contractx.RoleClient, Tier: contractx.TierNormal})
	premium := svc.Manifest(premiumClient("s1"))
	if len(premium) <= len(normal) {
		t.Fatalf("premium manifest should extend the normal one: %d vs %d", len(premium), len(normal))
	}
}
