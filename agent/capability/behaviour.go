package capability

import (
	"context"
	"math"
)

type financialBehaviourOutput struct {
	CustomerID         string  `json:"customer_id"`
	SavingRate         float64 `json:"saving_rate"`
	InvestRatio        float64 `json:"invest_ratio"`
	DebtToIncome       float64 `json:"debt_to_income"`
	PaymentReliability float64 `json:"payment_reliability"`
	Rating             string  `json:"rating"`
}

func (s *Set) financialBehaviour(customerID string) (financialBehaviourOutput, error) {
	cust, err := s.data.Customer(customerID)
	if err != nil {
		return financialBehaviourOutput{}, err
	}

	txs := successfulTransactions(s.data.TransactionsFor(customerID))
	var total, savings, invest float64
	for _, tx := range txs {
		total += tx.Amount
		switch tx.Merchant {
		case "Savings":
			savings += tx.Amount
		case "Investment":
			invest += tx.Amount
		}
	}

	var savingRate, investRatio float64
	if total > 0 {
		savingRate = savings / total
		investRatio = invest / total
	}

	var dti float64
	if debt, ok := s.data.DebtFor(customerID); ok && cust.MonthlyIncome > 0 {
		dti = debt.MonthlyDebtService / cust.MonthlyIncome
	}

	var onTime []float64
	for _, p := range s.data.PaymentsFor(customerID) {
		if p.OnTime {
			onTime = append(onTime, 1)
		} else {
			onTime = append(onTime, 0)
		}
	}
	reliability := mean(onTime)

	rating := "balanced"
	switch {
	case savingRate >= 0.15 && dti < 0.35 && reliability >= 0.9:
		rating = "healthy"
	case dti > 0.5 || reliability < 0.6:
		rating = "strained"
	}

	return financialBehaviourOutput{
		CustomerID:         customerID,
		SavingRate:         round(savingRate, 3),
		InvestRatio:        round(investRatio, 3),
		DebtToIncome:       round(dti, 3),
		PaymentReliability: round(reliability, 3),
		Rating:             rating,
	}, nil
}

func (s *Set) handleFinancialBehaviour(_ context.Context, args map[string]any) (any, error) {
	customerID, err := customerArg(args)
	if err != nil {
		return nil, err
	}
	return s.financialBehaviour(customerID)
}

type digitalEngagementOutput struct {
	CustomerID      string  `json:"customer_id"`
	EngagementScore float64 `json:"engagement_score"`
	Level           string  `json:"level"`
	Suggestion      string  `json:"suggestion"`
}

func (s *Set) digitalEngagement(customerID string) (digitalEngagementOutput, error) {
	eng, err := s.engagement(customerID)
	if err != nil {
		return digitalEngagementOutput{}, err
	}

	level := "medium"
	suggestion := "nudge with personalised push campaigns"
	switch {
	case eng.EngagementScore >= 75:
		level = "high"
		suggestion = "candidate for digital-first premium offers"
	case eng.EngagementScore <= 35:
		level = "low"
		suggestion = "re-engagement campaign before the relationship goes cold"
	}

	return digitalEngagementOutput{
		CustomerID:      customerID,
		EngagementScore: eng.EngagementScore,
		Level:           level,
		Suggestion:      suggestion,
	}, nil
}

func (s *Set) handleDigitalEngagement(_ context.Context, args map[string]any) (any, error) {
	customerID, err := customerArg(args)
	if err != nil {
		return nil, err
	}
	return s.digitalEngagement(customerID)
}

func stddev(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	m := mean(values)
	var sum float64
	for _, v := range values {
		sum += (v - m) * (v - m)
	}
	return math.Sqrt(sum / float64(len(values)-1))
}
