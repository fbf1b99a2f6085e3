// Package capability implements the analytic capabilities behind the
// catalog. Every capability is a pure function over the dataset plus its
// explicit arguments: no identity, no gating, no hidden state. Policy lives
// entirely in the gate.
package capability

import (
	"context"
	"fmt"
	"math"

	contractx "github.com/finsight-labs/finsight/agent/contract"
	datasetx "github.com/finsight-labs/finsight/agent/dataset"
)

// Synthesizer produces the narrative part of the advisory capabilities.
type Synthesizer interface {
	Synthesize(ctx context.Context, prompt string) (string, error)
}

type handler func(ctx context.Context, args map[string]any) (any, error)

// Set is the executor for every registered capability.
type Set struct {
	data     *datasetx.Dataset
	synth    Synthesizer
	handlers map[string]handler
}

func NewSet(data *datasetx.Dataset, synth Synthesizer) *Set {
	if data == nil {
		panic("capability: nil dataset")
	}
	s := &Set{data: data, synth: synth}
	s.handlers = map[string]handler{
		"calculate_clv":                          s.handleCLV,
		"calculate_churn_risk":                   s.handleChurnRisk,
		"calculate_engagement":                   s.handleEngagement,
		"calculate_product_affinity":             s.handleProductAffinity,
		"calculate_risk_profile":                 s.handleRiskProfile,
		"financial_behaviour_analysis":           s.handleFinancialBehaviour,
		"analyze_digital_engagement":             s.handleDigitalEngagement,
		"summarize_transactions":                 s.handleSummarizeTransactions,
		"trending_forecast":                      s.handleTrendingForecast,
		"payment_behavior":                       s.handlePaymentBehavior,
		"detect_transaction_anomalies":           s.handleTransactionAnomalies,
		"analyze_market_condition":               s.handleMarketCondition,
		"analyze_competition":                    s.handleCompetition,
		"customer_sentiment_overview":            s.handleSentimentOverview,
		"identify_opportunities":                 s.handleOpportunities,
		"identify_threats":                       s.handleThreats,
		"generate_market_recommendations":        s.handleMarketRecommendations,
		"overall_risk_score_calculator":          s.handleOverallRiskScore,
		"categorize_risk":                        s.handleCategorizeRisk,
		"assess_churn_risk":                      s.handleAssessChurnRisk,
		"assess_financial_risk":                  s.handleAssessFinancialRisk,
		"assess_operational_risk":                s.handleAssessOperationalRisk,
		"business_impact":                        s.handleBusinessImpact,
		"risk_factors":                           s.handleRiskFactors,
		"recommend_mitigation":                   s.handleRecommendMitigation,
		"define_monitoring":                      s.handleDefineMonitoring,
		"investment_strategy_planner":            s.handleInvestmentStrategy,
		"investment_proposal_advisor":            s.handleInvestmentProposal,
		"smart_alerts_generator":                 s.handleSmartAlerts,
		"advanced_planning_simulations":          s.handlePlanningSimulations,
		"executive_sales_opportunity_identifier": s.handleExecSalesOpportunities,
		"executive_proactive_retention":          s.handleExecProactiveRetention,
		"executive_advanced_lead_scoring":        s.handleExecLeadScoring,
		"executive_kyc_overview":                 s.handleExecKYCOverview,
	}
	return s
}

// Names returns every capability name this set can execute.
func (s *Set) Names() []string {
	out := make([]string, 0, len(s.handlers))
	for name := range s.handlers {
		out = append(out, name)
	}
	return out
}

// Execute runs one capability. A failure inside the capability is reported
// through CapabilityResult.Error; the error return is reserved for names the
// set does not implement.
func (s *Set) Execute(ctx context.Context, capability string, args map[string]any) (contractx.CapabilityResult, error) {
	h, ok := s.handlers[capability]
	if !ok {
		return contractx.CapabilityResult{}, fmt.Errorf("%w: %s", contractx.ErrUnknownCapability, capability)
	}

	result, err := h(ctx, args)
	if err != nil {
		return contractx.CapabilityResult{Capability: capability, Error: err.Error()}, nil
	}
	return contractx.CapabilityResult{Capability: capability, Result: result}, nil
}

var _ contractx.Executor = (*Set)(nil)

func round(v float64, digits int) float64 {
	pow := math.Pow(10, float64(digits))
	return math.Round(v*pow) / pow
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
