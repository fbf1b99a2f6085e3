package capability

import (
	"context"
	"fmt"
	"math"
)

type overallRiskOutput struct {
	CustomerID string             `json:"customer_id"`
	RiskScore  float64            `json:"risk_score"`
	Components map[string]float64 `json:"components"`
}

func (s *Set) overallRiskScore(customerID string) (overallRiskOutput, error) {
	churn, err := s.churnRisk(customerID)
	if err != nil {
		return overallRiskOutput{}, err
	}
	behaviour, err := s.financialBehaviour(customerID)
	if err != nil {
		return overallRiskOutput{}, err
	}
	anomalies, err := s.transactionAnomalies(customerID, 2.0)
	if err != nil {
		return overallRiskOutput{}, err
	}

	components := map[string]float64{
		"churn":     churn.ChurnRisk,
		"payment":   round(1-behaviour.PaymentReliability, 3),
		"leverage":  round(math.Min(1, behaviour.DebtToIncome), 3),
		"anomalies": round(math.Min(1, float64(len(anomalies.Anomalies))*0.1), 3),
	}

	score := (components["churn"] + components["payment"] + components["leverage"] + components["anomalies"]) / 4

	return overallRiskOutput{
		CustomerID: customerID,
		RiskScore:  round(score, 3),
		Components: components,
	}, nil
}

func (s *Set) handleOverallRiskScore(_ context.Context, args map[string]any) (any, error) {
	customerID, err := customerArg(args)
	if err != nil {
		return nil, err
	}
	return s.overallRiskScore(customerID)
}

type riskCategoryOutput struct {
	CustomerID string  `json:"customer_id"`
	RiskScore  float64 `json:"risk_score"`
	Category   string  `json:"category"`
}

func riskCategory(score float64) string {
	switch {
	case score >= 0.6:
		return "critical"
	case score >= 0.4:
		return "high"
	case score >= 0.2:
		return "medium"
	default:
		return "low"
	}
}

func (s *Set) categorizeRisk(customerID string) (riskCategoryOutput, error) {
	overall, err := s.overallRiskScore(customerID)
	if err != nil {
		return riskCategoryOutput{}, err
	}
	return riskCategoryOutput{
		CustomerID: customerID,
		RiskScore:  overall.RiskScore,
		Category:   riskCategory(overall.RiskScore),
	}, nil
}

func (s *Set) handleCategorizeRisk(_ context.Context, args map[string]any) (any, error) {
	customerID, err := customerArg(args)
	if err != nil {
		return nil, err
	}
	return s.categorizeRisk(customerID)
}

type churnAssessmentOutput struct {
	CustomerID string   `json:"customer_id"`
	ChurnRisk  float64  `json:"churn_risk"`
	Severity   string   `json:"severity"`
	Drivers    []string `json:"drivers"`
	NextAction string   `json:"next_action"`
}

func (s *Set) assessChurnRisk(customerID string) (churnAssessmentOutput, error) {
	churn, err := s.churnRisk(customerID)
	if err != nil {
		return churnAssessmentOutput{}, err
	}

	severity := "low"
	action := "no intervention needed"
	switch {
	case churn.ChurnRisk >= 0.6:
		severity = "high"
		action = "escalate to retention team within 48 hours"
	case churn.ChurnRisk >= 0.3:
		severity = "medium"
		action = "schedule a relationship-manager check-in"
	}

	return churnAssessmentOutput{
		CustomerID: customerID,
		ChurnRisk:  churn.ChurnRisk,
		Severity:   severity,
		Drivers:    churn.Drivers,
		NextAction: action,
	}, nil
}

func (s *Set) handleAssessChurnRisk(_ context.Context, args map[string]any) (any, error) {
	customerID, err := customerArg(args)
	if err != nil {
		return nil, err
	}
	return s.assessChurnRisk(customerID)
}

type financialRiskOutput struct {
	CustomerID   string   `json:"customer_id"`
	DebtToIncome float64  `json:"debt_to_income"`
	OnTimeRate   float64  `json:"on_time_rate"`
	CreditScore  int      `json:"credit_score"`
	Level        string   `json:"level"`
	Findings     []string `json:"findings"`
}

func (s *Set) assessFinancialRisk(customerID string) (financialRiskOutput, error) {
	cust, err := s.data.Customer(customerID)
	if err != nil {
		return financialRiskOutput{}, err
	}
	behaviour, err := s.financialBehaviour(customerID)
	if err != nil {
		return financialRiskOutput{}, err
	}

	var findings []string
	level := "low"
	if behaviour.DebtToIncome > 0.5 {
		level = "high"
		findings = append(findings, "debt service above half of income")
	} else if behaviour.DebtToIncome > 0.35 {
		level = "medium"
		findings = append(findings, "elevated debt-to-income ratio")
	}
	if behaviour.PaymentReliability < 0.8 {
		if level == "low" {
			level = "medium"
		}
		findings = append(findings, "payment reliability below 80%")
	}
	if cust.CreditScore < 640 {
		level = "high"
		findings = append(findings, "sub-prime credit score")
	}

	return financialRiskOutput{
		CustomerID:   customerID,
		DebtToIncome: behaviour.DebtToIncome,
		OnTimeRate:   behaviour.PaymentReliability,
		CreditScore:  cust.CreditScore,
		Level:        level,
		Findings:     findings,
	}, nil
}

func (s *Set) handleAssessFinancialRisk(_ context.Context, args map[string]any) (any, error) {
	customerID, err := customerArg(args)
	if err != nil {
		return nil, err
	}
	return s.assessFinancialRisk(customerID)
}

type operationalRiskOutput struct {
	CustomerID     string   `json:"customer_id"`
	FailedPayments int      `json:"failed_payments"`
	AnomalyCount   int      `json:"anomaly_count"`
	MarketStress   float64  `json:"market_stress"`
	Level          string   `json:"level"`
	Findings       []string `json:"findings"`
}

func (s *Set) assessOperationalRisk(customerID string) (operationalRiskOutput, error) {
	if _, err := s.data.Customer(customerID); err != nil {
		return operationalRiskOutput{}, err
	}

	var failed int
	for _, tx := range s.data.TransactionsFor(customerID) {
		if tx.Status == "failed" {
			failed++
		}
	}

	anomalies, err := s.transactionAnomalies(customerID, 2.0)
	if err != nil {
		return operationalRiskOutput{}, err
	}

	// Market stress proxy: peak sector volatility.
	var stress float64
	for _, stats := range s.data.Market().Sectors {
		if stats.VolatilityIndex > stress {
			stress = stats.VolatilityIndex
		}
	}

	var findings []string
	level := "low"
	if failed >= 2 {
		level = "medium"
		findings = append(findings, fmt.Sprintf("%d failed transactions on record", failed))
	}
	if len(anomalies.Anomalies) > 0 {
		level = "medium"
		findings = append(findings, fmt.Sprintf("%d spending anomalies flagged", len(anomalies.Anomalies)))
	}
	if stress >= 0.3 {
		level = "high"
		findings = append(findings, "market volatility elevated")
	}

	return operationalRiskOutput{
		CustomerID:     customerID,
		FailedPayments: failed,
		AnomalyCount:   len(anomalies.Anomalies),
		MarketStress:   stress,
		Level:          level,
		Findings:       findings,
	}, nil
}

func (s *Set) handleAssessOperationalRisk(_ context.Context, args map[string]any) (any, error) {
	customerID, err := customerArg(args)
	if err != nil {
		return nil, err
	}
	return s.assessOperationalRisk(customerID)
}

type businessImpactOutput struct {
	CustomerID      string  `json:"customer_id"`
	CLVAtRisk       float64 `json:"clv_at_risk"`
	ChurnRisk       float64 `json:"churn_risk"`
	CLVEstimate     float64 `json:"clv_estimate"`
	ImpactStatement string  `json:"impact_statement"`
}

func (s *Set) businessImpact(customerID string) (businessImpactOutput, error) {
	clv, err := s.clv(customerID, 0.25, 0.92, 0.01)
	if err != nil {
		return businessImpactOutput{}, err
	}
	churn, err := s.churnRisk(customerID)
	if err != nil {
		return businessImpactOutput{}, err
	}

	atRisk := round(clv.CLVEstimate*churn.ChurnRisk, 2)
	statement := fmt.Sprintf("expected value at risk is %.2f (%.0f%% of estimated lifetime value)", atRisk, churn.ChurnRisk*100)

	return businessImpactOutput{
		CustomerID:      customerID,
		CLVAtRisk:       atRisk,
		ChurnRisk:       churn.ChurnRisk,
		CLVEstimate:     clv.CLVEstimate,
		ImpactStatement: statement,
	}, nil
}

func (s *Set) handleBusinessImpact(_ context.Context, args map[string]any) (any, error) {
	customerID, err := customerArg(args)
	if err != nil {
		return nil, err
	}
	return s.businessImpact(customerID)
}

type riskFactorsOutput struct {
	CustomerID string   `json:"customer_id"`
	Factors    []string `json:"factors"`
}

func (s *Set) riskFactors(customerID string) (riskFactorsOutput, error) {
	churn, err := s.assessChurnRisk(customerID)
	if err != nil {
		return riskFactorsOutput{}, err
	}
	financial, err := s.assessFinancialRisk(customerID)
	if err != nil {
		return riskFactorsOutput{}, err
	}
	operational, err := s.assessOperationalRisk(customerID)
	if err != nil {
		return riskFactorsOutput{}, err
	}

	factors := make([]string, 0, len(churn.Drivers)+len(financial.Findings)+len(operational.Findings))
	factors = append(factors, churn.Drivers...)
	factors = append(factors, financial.Findings...)
	factors = append(factors, operational.Findings...)
	if len(factors) == 0 {
		factors = append(factors, "no material risk factors identified")
	}

	return riskFactorsOutput{CustomerID: customerID, Factors: factors}, nil
}

func (s *Set) handleRiskFactors(_ context.Context, args map[string]any) (any, error) {
	customerID, err := customerArg(args)
	if err != nil {
		return nil, err
	}
	return s.riskFactors(customerID)
}

type mitigationOutput struct {
	CustomerID string   `json:"customer_id"`
	Category   string   `json:"category"`
	Actions    []string `json:"actions"`
}

func (s *Set) recommendMitigation(customerID string) (mitigationOutput, error) {
	category, err := s.categorizeRisk(customerID)
	if err != nil {
		return mitigationOutput{}, err
	}
	churn, err := s.assessChurnRisk(customerID)
	if err != nil {
		return mitigationOutput{}, err
	}
	financial, err := s.assessFinancialRisk(customerID)
	if err != nil {
		return mitigationOutput{}, err
	}

	var actions []string
	if churn.Severity != "low" {
		actions = append(actions, churn.NextAction)
	}
	if financial.Level == "high" {
		actions = append(actions, "offer debt restructuring consultation")
	}
	if financial.Level != "low" {
		actions = append(actions, "enable payment reminders and autopay")
	}
	switch category.Category {
	case "critical":
		actions = append(actions, "freeze proactive credit offers until risk normalises")
	case "high":
		actions = append(actions, "review exposure limits at next credit committee")
	}
	if len(actions) == 0 {
		actions = append(actions, "maintain standard monitoring cadence")
	}

	actions = dedupe(actions)
	if len(actions) > 6 {
		actions = actions[:6]
	}

	return mitigationOutput{
		CustomerID: customerID,
		Category:   category.Category,
		Actions:    actions,
	}, nil
}

func (s *Set) handleRecommendMitigation(_ context.Context, args map[string]any) (any, error) {
	customerID, err := customerArg(args)
	if err != nil {
		return nil, err
	}
	return s.recommendMitigation(customerID)
}

type monitoringOutput struct {
	CustomerID string   `json:"customer_id"`
	Category   string   `json:"category"`
	Cadence    string   `json:"cadence"`
	Watchlist  []string `json:"watchlist"`
}

func (s *Set) defineMonitoring(customerID string) (monitoringOutput, error) {
	category, err := s.categorizeRisk(customerID)
	if err != nil {
		return monitoringOutput{}, err
	}

	cadence := "quarterly"
	switch category.Category {
	case "critical":
		cadence = "daily"
	case "high":
		cadence = "weekly"
	case "medium":
		cadence = "monthly"
	}

	watchlist := []string{"login activity", "payment punctuality"}
	if category.Category == "high" || category.Category == "critical" {
		watchlist = append(watchlist, "large or unusual transactions", "balance outflows")
	}

	return monitoringOutput{
		CustomerID: customerID,
		Category:   category.Category,
		Cadence:    cadence,
		Watchlist:  watchlist,
	}, nil
}

func (s *Set) handleDefineMonitoring(_ context.Context, args map[string]any) (any, error) {
	customerID, err := customerArg(args)
	if err != nil {
		return nil, err
	}
	return s.defineMonitoring(customerID)
}

func dedupe(items []string) []string {
	seen := make(map[string]bool, len(items))
	out := items[:0]
	for _, item := range items {
		if !seen[item] {
			seen[item] = true
			out = append(out, item)
		}
	}
	return out
}
