package capability

import (
	"context"
	"fmt"
	"math"
	"strings"
)

// synthesize asks the narrative model for prose around the computed numbers.
// Advisory capabilities stay useful without a model, so failures degrade to a
// short notice instead of failing the whole invocation.
func (s *Set) synthesize(ctx context.Context, prompt string) string {
	if s.synth == nil {
		return "(narrative unavailable: no synthesizer configured)"
	}
	text, err := s.synth.Synthesize(ctx, prompt)
	if err != nil {
		return fmt.Sprintf("(narrative unavailable: %v)", err)
	}
	return strings.TrimSpace(text)
}

type investmentStrategyOutput struct {
	CustomerID   string             `json:"customer_id"`
	Goal         string             `json:"goal"`
	RiskProfile  string             `json:"risk_profile"`
	HorizonYears int                `json:"horizon_years"`
	Allocation   map[string]float64 `json:"allocation"`
	MarketNotes  []string           `json:"market_notes"`
	Narrative    string             `json:"narrative"`
}

func (s *Set) handleInvestmentStrategy(ctx context.Context, args map[string]any) (any, error) {
	customerID, err := customerArg(args)
	if err != nil {
		return nil, err
	}
	goal, err := stringArgDefault(args, "goal", "grow wealth")
	if err != nil {
		return nil, err
	}
	horizonYears, err := intArg(args, "horizon_years", 5)
	if err != nil {
		return nil, err
	}

	profile, err := s.riskProfile(customerID)
	if err != nil {
		return nil, err
	}
	condition := s.marketCondition()

	allocation := map[string]float64{"equities": 0.4, "bonds": 0.4, "cash": 0.2}
	switch profile.RiskProfile {
	case "low":
		allocation = map[string]float64{"equities": 0.6, "bonds": 0.3, "cash": 0.1}
	case "high":
		allocation = map[string]float64{"equities": 0.2, "bonds": 0.5, "cash": 0.3}
	}
	if condition.Outlook == "cautious" {
		allocation["equities"] = round(allocation["equities"]*0.75, 2)
		allocation["cash"] = round(1-allocation["equities"]-allocation["bonds"], 2)
	}

	var notes []string
	for _, sector := range sortedSectorNames(condition.Sectors) {
		stats := condition.Sectors[sector]
		notes = append(notes, fmt.Sprintf("%s: trend %s, volatility %.2f", sector, stats.Trend, stats.VolatilityIndex))
	}

	prompt := fmt.Sprintf(
		"Write a short investment strategy for a bank customer whose goal is to %s, with a %s risk profile and a %d-year horizon. Market outlook: %s. Proposed allocation: %v. Keep it under 120 words, no disclaimers.",
		goal, profile.RiskProfile, horizonYears, condition.Outlook, allocation,
	)

	return investmentStrategyOutput{
		CustomerID:   customerID,
		Goal:         goal,
		RiskProfile:  profile.RiskProfile,
		HorizonYears: horizonYears,
		Allocation:   allocation,
		MarketNotes:  notes,
		Narrative:    s.synthesize(ctx, prompt),
	}, nil
}

type investmentProposalOutput struct {
	CustomerID    string                  `json:"customer_id"`
	Products      []productRecommendation `json:"products"`
	MonthlyBudget float64                 `json:"monthly_budget"`
	Narrative     string                  `json:"narrative"`
}

func (s *Set) handleInvestmentProposal(ctx context.Context, args map[string]any) (any, error) {
	customerID, err := customerArg(args)
	if err != nil {
		return nil, err
	}
	advisorContext, err := stringArgDefault(args, "context", "")
	if err != nil {
		return nil, err
	}

	cust, err := s.data.Customer(customerID)
	if err != nil {
		return nil, err
	}
	affinity, err := s.productAffinity(customerID, 3)
	if err != nil {
		return nil, err
	}
	behaviour, err := s.financialBehaviour(customerID)
	if err != nil {
		return nil, err
	}

	// Investable budget: a fifth of income net of debt service, floored at zero.
	budget := math.Max(0, cust.MonthlyIncome*(1-behaviour.DebtToIncome)*0.2)

	prompt := fmt.Sprintf(
		"Draft a concise product proposal for a bank customer. Top product affinities: %v. Suggested monthly investment budget: %.2f. Financial rating: %s. Under 100 words.",
		affinity.TopRecommendations, budget, behaviour.Rating,
	)
	if advisorContext != "" {
		prompt += " Advisor context: " + advisorContext
	}

	return investmentProposalOutput{
		CustomerID:    customerID,
		Products:      affinity.TopRecommendations,
		MonthlyBudget: round(budget, 2),
		Narrative:     s.synthesize(ctx, prompt),
	}, nil
}

type smartAlert struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

type smartAlertsOutput struct {
	CustomerID string       `json:"customer_id"`
	Alerts     []smartAlert `json:"alerts"`
	Narrative  string       `json:"narrative"`
}

func (s *Set) handleSmartAlerts(ctx context.Context, args map[string]any) (any, error) {
	customerID, err := customerArg(args)
	if err != nil {
		return nil, err
	}

	churn, err := s.churnRisk(customerID)
	if err != nil {
		return nil, err
	}
	anomalies, err := s.transactionAnomalies(customerID, 2.0)
	if err != nil {
		return nil, err
	}
	behaviour, err := s.financialBehaviour(customerID)
	if err != nil {
		return nil, err
	}

	var alerts []smartAlert
	if churn.ChurnRisk >= 0.3 {
		alerts = append(alerts, smartAlert{Kind: "churn", Message: fmt.Sprintf("churn risk at %.0f%%", churn.ChurnRisk*100)})
	}
	for _, a := range anomalies.Anomalies {
		alerts = append(alerts, smartAlert{Kind: "spend", Message: fmt.Sprintf("unusual spend of %.2f on %s", a.Amount, a.Date)})
	}
	if behaviour.DebtToIncome > 0.35 {
		alerts = append(alerts, smartAlert{Kind: "debt", Message: "debt service is an elevated share of income"})
	}
	if behaviour.SavingRate < 0.05 {
		alerts = append(alerts, smartAlert{Kind: "savings", Message: "saving rate below 5% of spending"})
	}
	if len(alerts) == 0 {
		alerts = append(alerts, smartAlert{Kind: "info", Message: "no alerts: finances look steady"})
	}

	prompt := fmt.Sprintf(
		"Turn these account alerts into two friendly sentences for the customer: %v.",
		alerts,
	)

	return smartAlertsOutput{
		CustomerID: customerID,
		Alerts:     alerts,
		Narrative:  s.synthesize(ctx, prompt),
	}, nil
}

type planningSimulationOutput struct {
	CustomerID         string  `json:"customer_id"`
	MortgageAmount     float64 `json:"mortgage_amount"`
	TermYears          int     `json:"term_years"`
	AnnualRatePct      float64 `json:"annual_rate_pct"`
	MonthlyPayment     float64 `json:"monthly_payment"`
	CapacityBefore     float64 `json:"saving_capacity_before"`
	CapacityAfter      float64 `json:"saving_capacity_after"`
	PaymentToIncomePct float64 `json:"payment_to_income_pct"`
	Affordable         bool    `json:"affordable"`
	Narrative          string  `json:"narrative"`
}

func (s *Set) handlePlanningSimulations(ctx context.Context, args map[string]any) (any, error) {
	customerID, err := customerArg(args)
	if err != nil {
		return nil, err
	}
	principal, err := floatArg(args, "mortgage_amount", 0)
	if err != nil {
		return nil, err
	}
	termYears, err := intArg(args, "term_years", 20)
	if err != nil {
		return nil, err
	}
	annualRate, err := floatArg(args, "annual_rate_pct", 9.5)
	if err != nil {
		return nil, err
	}
	if principal < 0 || termYears <= 0 || annualRate < 0 {
		return nil, fmt.Errorf("mortgage_amount, term_years and annual_rate_pct must be non-negative")
	}

	cust, err := s.data.Customer(customerID)
	if err != nil {
		return nil, err
	}

	var debtService float64
	if debt, ok := s.data.DebtFor(customerID); ok {
		debtService = debt.MonthlyDebtService
	}
	capacityBefore := math.Max(0, cust.MonthlyIncome-debtService)

	// Standard annuity payment on the simulated principal.
	months := float64(termYears * 12)
	rate := annualRate / 100 / 12
	var payment float64
	switch {
	case principal == 0:
		payment = 0
	case rate == 0:
		payment = principal / months
	default:
		payment = principal * rate / (1 - math.Pow(1+rate, -months))
	}

	capacityAfter := math.Max(0, capacityBefore-payment)
	var paymentShare float64
	if cust.MonthlyIncome > 0 {
		paymentShare = payment / cust.MonthlyIncome * 100
	}
	affordable := paymentShare <= 35

	prompt := fmt.Sprintf(
		"A customer with monthly income %.2f and existing debt service %.2f simulates a mortgage of %.2f over %d years at %.1f%%. The payment would be %.2f per month (%.1f%% of income), leaving %.2f of saving capacity. Summarise affordability in two sentences.",
		cust.MonthlyIncome, debtService, principal, termYears, annualRate, payment, paymentShare, capacityAfter,
	)

	return planningSimulationOutput{
		CustomerID:         customerID,
		MortgageAmount:     principal,
		TermYears:          termYears,
		AnnualRatePct:      annualRate,
		MonthlyPayment:     round(payment, 2),
		CapacityBefore:     round(capacityBefore, 2),
		CapacityAfter:      round(capacityAfter, 2),
		PaymentToIncomePct: round(paymentShare, 1),
		Affordable:         affordable,
		Narrative:          s.synthesize(ctx, prompt),
	}, nil
}

func stringArgDefault(args map[string]any, key, fallback string) (string, error) {
	raw, ok := args[key]
	if !ok {
		return fallback, nil
	}
	v, ok := raw.(string)
	if !ok || v == "" {
		return fallback, nil
	}
	return v, nil
}
