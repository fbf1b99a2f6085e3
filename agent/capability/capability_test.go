package capability

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"

	contractx "github.com/finsight-labs/finsight/agent/contract"
	datasetx "github.com/finsight-labs/finsight/agent/dataset"
)

type stubSynthesizer struct {
	text string
	err  error
}

func (s *stubSynthesizer) Synthesize(context.Context, string) (string, error) {
	return s.text, s.err
}

func newTestSet(t *testing.T, synth Synthesizer) *Set {
	t.Helper()
	data, err := datasetx.Load("")
	if err != nil {
		t.Fatalf("dataset.Load() error = %v", err)
	}
	return NewSet(data, synth)
}

func TestExecuteUnknownCapability(t *testing.T) {
	t.Parallel()

	set := newTestSet(t, nil)
	_, err := set.Execute(context.Background(), "teleport_funds", nil)
	if !errors.Is(err, contractx.ErrUnknownCapability) {
		t.Fatalf("expected ErrUnknownCapability, got %v", err)
	}
}

func TestExecuteMissingCustomerID(t *testing.T) {
	t.Parallel()

	set := newTestSet(t, nil)
	result, err := set.Execute(context.Background(), "calculate_clv", map[string]any{})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if result.Error == "" || !strings.Contains(result.Error, "customer_id") {
		t.Fatalf("expected customer_id validation failure in result, got %q", result.Error)
	}
}

func TestCLVDefaults(t *testing.T) {
	t.Parallel()

	set := newTestSet(t, nil)
	result, err := set.Execute(context.Background(), "calculate_clv", map[string]any{"customer_id": "CUST001"})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if result.Error != "" {
		t.Fatalf("unexpected capability error: %s", result.Error)
	}

	out, ok := result.Result.(clvOutput)
	if !ok {
		t.Fatalf("unexpected result type %T", result.Result)
	}
	if out.AvgMonthlySpend != 1529.58 {
		t.Fatalf("avg monthly spend = %v, want 1529.58", out.AvgMonthlySpend)
	}
	// arpu_margin reports the computed margin amount, not the rate.
	if out.ARPUMargin != 382.4 {
		t.Fatalf("arpu margin = %v, want 382.4", out.ARPUMargin)
	}
	if out.CLVEstimate != 3908.94 {
		t.Fatalf("clv estimate = %v, want 3908.94", out.CLVEstimate)
	}
}

func TestCLVDenominatorFloor(t *testing.T) {
	t.Parallel()

	set := newTestSet(t, nil)
	out, err := set.clv("CUST001", 0.25, 1.2, 0.01)
	if err != nil {
		t.Fatalf("clv() error = %v", err)
	}
	if math.IsInf(out.CLVEstimate, 0) || math.IsNaN(out.CLVEstimate) || out.CLVEstimate <= 0 {
		t.Fatalf("degenerate retention should still give a finite positive estimate, got %v", out.CLVEstimate)
	}
}

func TestChurnRiskSignals(t *testing.T) {
	t.Parallel()

	set := newTestSet(t, nil)
	out, err := set.churnRisk("CUST002")
	if err != nil {
		t.Fatalf("churnRisk() error = %v", err)
	}
	// Long inactivity, low usage, complaints, salary out and a falling
	// balance push CUST002 past the cap.
	if out.ChurnRisk != 1 {
		t.Fatalf("churn risk = %v, want 1", out.ChurnRisk)
	}
	found := false
	for _, d := range out.Drivers {
		if d == "salary deposits moved elsewhere" {
			found = true
		}
	}
	if !found {
		t.Fatalf("drivers missing salary signal: %v", out.Drivers)
	}
}

func TestChurnInactivityMonotonic(t *testing.T) {
	t.Parallel()

	prev := -1.0
	for days := 0; days <= 120; days++ {
		got := inactivityRisk(days)
		if got < prev {
			t.Fatalf("inactivity risk dropped at day %d: %v after %v", days, got, prev)
		}
		prev = got
	}

	if got := inactivityRisk(30); got != 0.4 {
		t.Fatalf("inactivityRisk(30) = %v, want 0.4", got)
	}
	if got := inactivityRisk(60); got != 0.8 {
		t.Fatalf("inactivityRisk(60) = %v, want 0.8", got)
	}
	if got := inactivityRisk(90); got != 0.8 {
		t.Fatalf("inactivityRisk(90) = %v, want 0.8", got)
	}
}

func TestSessionPenaltyLinear(t *testing.T) {
	t.Parallel()

	if got := sessionPenalty(0); got != 0.2 {
		t.Fatalf("sessionPenalty(0) = %v, want 0.2", got)
	}
	if got := sessionPenalty(100); got != 0 {
		t.Fatalf("sessionPenalty(100) = %v, want 0", got)
	}
	if got := sessionPenalty(250); got != 0 {
		t.Fatalf("sessionPenalty(250) = %v, want 0", got)
	}
	prev := 1.0
	for sessions := 0; sessions <= 120; sessions += 10 {
		got := sessionPenalty(sessions)
		if got > prev {
			t.Fatalf("session penalty rose at %d sessions: %v after %v", sessions, got, prev)
		}
		prev = got
	}
}

func TestAnomalyDetectionFlagsBothTails(t *testing.T) {
	t.Parallel()

	set := newTestSet(t, nil)
	out, err := set.transactionAnomalies("CUST003", 0.8)
	if err != nil {
		t.Fatalf("transactionAnomalies() error = %v", err)
	}

	var low, high bool
	for _, a := range out.Anomalies {
		if a.ZScore <= -0.8 {
			low = true
		}
		if a.ZScore >= 0.8 {
			high = true
		}
	}
	if !low {
		t.Fatalf("unusually small transactions should be flagged too, got %+v", out.Anomalies)
	}
	if !high {
		t.Fatalf("unusually large transactions should be flagged, got %+v", out.Anomalies)
	}
}

func TestProductAffinityExcludesNothingButReweighsOwned(t *testing.T) {
	t.Parallel()

	set := newTestSet(t, nil)
	out, err := set.productAffinity("CUST001", 3)
	if err != nil {
		t.Fatalf("productAffinity() error = %v", err)
	}
	if len(out.TopRecommendations) != 3 {
		t.Fatalf("expected 3 recommendations, got %d", len(out.TopRecommendations))
	}
	var total float64
	for _, v := range out.AffinityDistribution {
		total += v
	}
	if total < 0.99 || total > 1.01 {
		t.Fatalf("distribution should sum to 1, got %v", total)
	}
}

func TestKYCOverviewFlagsPEP(t *testing.T) {
	t.Parallel()

	set := newTestSet(t, nil)
	result, err := set.Execute(context.Background(), "executive_kyc_overview", map[string]any{"customer_id": "CUST003"})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	out, ok := result.Result.(kycOverviewOutput)
	if !ok {
		t.Fatalf("unexpected result type %T", result.Result)
	}
	if !out.PEPFlag {
		t.Fatal("CUST003 should carry the PEP flag")
	}
	found := false
	for _, a := range out.Attention {
		if a == "politically exposed person" {
			found = true
		}
	}
	if !found {
		t.Fatalf("attention list missing PEP note: %v", out.Attention)
	}
}

func TestAdvisoryDegradesWithoutSynthesizer(t *testing.T) {
	t.Parallel()

	set := newTestSet(t, nil)
	result, err := set.Execute(context.Background(), "investment_strategy_planner", map[string]any{
		"customer_id":   "CUST001",
		"goal":          "retirement",
		"horizon_years": 10,
	})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	out, ok := result.Result.(investmentStrategyOutput)
	if !ok {
		t.Fatalf("unexpected result type %T", result.Result)
	}
	if !strings.Contains(out.Narrative, "narrative unavailable") {
		t.Fatalf("expected degraded narrative, got %q", out.Narrative)
	}
	if out.Goal != "retirement" || out.HorizonYears != 10 {
		t.Fatalf("args not carried through: %+v", out)
	}
}

func TestAdvisoryUsesSynthesizer(t *testing.T) {
	t.Parallel()

	set := newTestSet(t, &stubSynthesizer{text: "steady as she goes"})
	result, err := set.Execute(context.Background(), "smart_alerts_generator", map[string]any{"customer_id": "CUST001"})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	out, ok := result.Result.(smartAlertsOutput)
	if !ok {
		t.Fatalf("unexpected result type %T", result.Result)
	}
	if out.Narrative != "steady as she goes" {
		t.Fatalf("narrative = %q", out.Narrative)
	}
}

func TestPlanningSimulationMortgageMath(t *testing.T) {
	t.Parallel()

	set := newTestSet(t, nil)
	result, err := set.Execute(context.Background(), "advanced_planning_simulations", map[string]any{
		"customer_id":     "CUST001",
		"mortgage_amount": 120000.0,
		"term_years":      20,
		"annual_rate_pct": 9.5,
	})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	out, ok := result.Result.(planningSimulationOutput)
	if !ok {
		t.Fatalf("unexpected result type %T", result.Result)
	}

	rate := 9.5 / 100 / 12
	want := 120000 * rate / (1 - math.Pow(1+rate, -240))
	if math.Abs(out.MonthlyPayment-want) > 0.01 {
		t.Fatalf("monthly payment = %v, want about %v", out.MonthlyPayment, want)
	}
	if out.PaymentToIncomePct <= 0 {
		t.Fatalf("payment share should be positive, got %v", out.PaymentToIncomePct)
	}
}

func TestProactiveRetentionThreshold(t *testing.T) {
	t.Parallel()

	set := newTestSet(t, nil)
	result, err := set.Execute(context.Background(), "executive_proactive_retention", map[string]any{"threshold": 0.55})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	out, ok := result.Result.(proactiveRetentionOutput)
	if !ok {
		t.Fatalf("unexpected result type %T", result.Result)
	}
	for _, c := range out.Cases {
		if c.ChurnRisk < 0.55 {
			t.Fatalf("case below threshold leaked through: %+v", c)
		}
	}
	// CUST002 trips every churn signal and must be on the list.
	found := false
	for _, c := range out.Cases {
		if c.CustomerID == "CUST002" {
			found = true
		}
	}
	if !found {
		t.Fatal("expected CUST002 among retention cases")
	}
}
