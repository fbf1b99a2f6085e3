package capability

import (
	"context"
	"fmt"
	"math"
	"sort"

	contractx "github.com/finsight-labs/finsight/agent/contract"
	datasetx "github.com/finsight-labs/finsight/agent/dataset"
)

type clvOutput struct {
	CustomerID           string  `json:"customer_id"`
	AvgMonthlySpend      float64 `json:"avg_monthly_spend"`
	ARPUMargin           float64 `json:"arpu_margin"`
	MonthlyRetentionRate float64 `json:"monthly_retention_rate"`
	DiscountRateMonthly  float64 `json:"discount_rate_monthly"`
	CLVEstimate          float64 `json:"clv_estimate"`
}

func (s *Set) clv(customerID string, margin, retention, discount float64) (clvOutput, error) {
	cust, err := s.data.Customer(customerID)
	if err != nil {
		return clvOutput{}, err
	}

	avgSpend := mean(cust.TransactionsLast12m)
	arpu := avgSpend * margin

	// Geometric-series CLV. Floor the denominator so a retention rate at
	// or above 1+discount cannot divide by zero.
	denom := discount + (1 - retention)
	if denom < 0.0001 {
		denom = 0.0001
	}
	clv := arpu * retention / denom

	return clvOutput{
		CustomerID:           customerID,
		AvgMonthlySpend:      round(avgSpend, 2),
		ARPUMargin:           round(arpu, 2),
		MonthlyRetentionRate: retention,
		DiscountRateMonthly:  discount,
		CLVEstimate:          round(clv, 2),
	}, nil
}

func (s *Set) handleCLV(_ context.Context, args map[string]any) (any, error) {
	customerID, err := customerArg(args)
	if err != nil {
		return nil, err
	}
	margin, err := floatArg(args, "monthly_margin_rate", 0.25)
	if err != nil {
		return nil, err
	}
	retention, err := floatArg(args, "monthly_retention_rate", 0.92)
	if err != nil {
		return nil, err
	}
	discount, err := floatArg(args, "discount_rate_monthly", 0.01)
	if err != nil {
		return nil, err
	}
	return s.clv(customerID, margin, retention, discount)
}

type churnOutput struct {
	CustomerID string   `json:"customer_id"`
	ChurnRisk  float64  `json:"churn_risk"`
	Drivers    []string `json:"drivers"`
}

func (s *Set) churnRisk(customerID string) (churnOutput, error) {
	cust, err := s.data.Customer(customerID)
	if err != nil {
		return churnOutput{}, err
	}

	var drivers []string
	risk := inactivityRisk(cust.DaysSinceLastLogin) + sessionPenalty(cust.AppSessionsLast90d)

	switch {
	case cust.DaysSinceLastLogin > 30:
		drivers = append(drivers, "inactive for over a month")
	case cust.DaysSinceLastLogin > 14:
		drivers = append(drivers, "login frequency dropping")
	}
	if cust.AppSessionsLast90d < 20 {
		drivers = append(drivers, "low app usage")
	}

	if n := cust.ChurnSignals.ComplaintsLast6m; n > 0 {
		risk += math.Min(0.2, float64(n)*0.05)
		drivers = append(drivers, fmt.Sprintf("%d complaints in last 6 months", n))
	}

	if cust.ChurnSignals.SalaryMovedOut {
		risk += 0.2
		drivers = append(drivers, "salary deposits moved elsewhere")
	}

	switch cust.ChurnSignals.BalanceTrend {
	case "down":
		risk += 0.15
		drivers = append(drivers, "balance trending down")
	case "up":
		risk -= 0.05
	}

	return churnOutput{
		CustomerID: customerID,
		ChurnRisk:  round(clamp01(risk), 3),
		Drivers:    drivers,
	}, nil
}

// inactivityRisk grows linearly to 0.4 over the first month without a login,
// to 0.8 over the second, then stays capped.
func inactivityRisk(days int) float64 {
	d := float64(days)
	switch {
	case d <= 30:
		return d / 30 * 0.4
	case d <= 60:
		return 0.4 + (d-30)/30*0.4
	default:
		return 0.8
	}
}

// sessionPenalty charges 0.2 for a silent app, fading to zero at 100
// sessions per quarter.
func sessionPenalty(sessions int) float64 {
	return math.Max(0, 1-math.Min(float64(sessions), 100)/100) * 0.2
}

func (s *Set) handleChurnRisk(_ context.Context, args map[string]any) (any, error) {
	customerID, err := customerArg(args)
	if err != nil {
		return nil, err
	}
	return s.churnRisk(customerID)
}

type engagementOutput struct {
	CustomerID      string  `json:"customer_id"`
	EngagementScore float64 `json:"engagement_score"`
	SessionsScore   float64 `json:"sessions_score"`
	PushScore       float64 `json:"push_score"`
	RecencyScore    float64 `json:"recency_score"`
}

func (s *Set) engagement(customerID string) (engagementOutput, error) {
	cust, err := s.data.Customer(customerID)
	if err != nil {
		return engagementOutput{}, err
	}

	sessions := math.Min(1, float64(cust.AppSessionsLast90d)/100) * 50
	push := math.Min(1, float64(cust.PushOpensLast90d)/50) * 30
	recency := math.Max(0, 1-math.Min(float64(cust.DaysSinceLastLogin), 30)/30) * 20

	return engagementOutput{
		CustomerID:      customerID,
		EngagementScore: round(sessions+push+recency, 1),
		SessionsScore:   round(sessions, 1),
		PushScore:       round(push, 1),
		RecencyScore:    round(recency, 1),
	}, nil
}

func (s *Set) handleEngagement(_ context.Context, args map[string]any) (any, error) {
	customerID, err := customerArg(args)
	if err != nil {
		return nil, err
	}
	return s.engagement(customerID)
}

type productRecommendation struct {
	Product string  `json:"product"`
	Score   float64 `json:"score"`
}

type affinityOutput struct {
	CustomerID           string                  `json:"customer_id"`
	AffinityDistribution map[string]float64      `json:"affinity_distribution"`
	TopRecommendations   []productRecommendation `json:"top_recommendations"`
}

func (s *Set) productAffinity(customerID string, topK int) (affinityOutput, error) {
	cust, err := s.data.Customer(customerID)
	if err != nil {
		return affinityOutput{}, err
	}

	owned := make(map[string]bool, len(cust.Products))
	for _, p := range cust.Products {
		owned[p] = true
	}

	scores := make(map[string]float64, len(cust.ProductInteractions))
	for product, interactions := range cust.ProductInteractions {
		score := interactions
		if owned[product] {
			score *= 0.7
		}
		if cust.CreditScore < 680 {
			switch product {
			case "personal_loan":
				score *= 0.6
			case "mortgage":
				score *= 0.7
			}
		} else if cust.CreditScore >= 760 && product == "investment" {
			score *= 1.2
		}
		scores[product] = score
	}

	var total float64
	for _, v := range scores {
		total += v
	}
	dist := make(map[string]float64, len(scores))
	for product, v := range scores {
		if total > 0 {
			dist[product] = round(v/total, 4)
		} else {
			dist[product] = 0
		}
	}

	ranked := make([]productRecommendation, 0, len(dist))
	for product, score := range dist {
		ranked = append(ranked, productRecommendation{Product: product, Score: score})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Score != ranked[j].Score {
			return ranked[i].Score > ranked[j].Score
		}
		return ranked[i].Product < ranked[j].Product
	})
	if topK > 0 && topK < len(ranked) {
		ranked = ranked[:topK]
	}

	return affinityOutput{
		CustomerID:           customerID,
		AffinityDistribution: dist,
		TopRecommendations:   ranked,
	}, nil
}

func (s *Set) handleProductAffinity(_ context.Context, args map[string]any) (any, error) {
	customerID, err := customerArg(args)
	if err != nil {
		return nil, err
	}
	topK, err := intArg(args, "top_k", 3)
	if err != nil {
		return nil, err
	}
	return s.productAffinity(customerID, topK)
}

type riskProfileOutput struct {
	CustomerID  string   `json:"customer_id"`
	RiskProfile string   `json:"risk_profile"`
	CreditScore int      `json:"credit_score"`
	Signals     []string `json:"signals"`
}

func (s *Set) riskProfile(customerID string) (riskProfileOutput, error) {
	cust, err := s.data.Customer(customerID)
	if err != nil {
		return riskProfileOutput{}, err
	}

	profile := "medium"
	switch {
	case cust.CreditScore >= 740:
		profile = "low"
	case cust.CreditScore < 640:
		profile = "high"
	}

	var signals []string
	if cust.ChurnSignals.ComplaintsLast6m >= 2 {
		signals = append(signals, "repeated complaints")
		if profile == "low" {
			profile = "medium"
		}
	}
	if cust.ChurnSignals.SalaryMovedOut {
		signals = append(signals, "salary moved out")
		if profile != "high" {
			profile = "medium"
		}
	}

	return riskProfileOutput{
		CustomerID:  customerID,
		RiskProfile: profile,
		CreditScore: cust.CreditScore,
		Signals:     signals,
	}, nil
}

func (s *Set) handleRiskProfile(_ context.Context, args map[string]any) (any, error) {
	customerID, err := customerArg(args)
	if err != nil {
		return nil, err
	}
	return s.riskProfile(customerID)
}

func successfulTransactions(txs []datasetx.Transaction) []datasetx.Transaction {
	out := make([]datasetx.Transaction, 0, len(txs))
	for _, tx := range txs {
		if tx.Status == "success" {
			out = append(out, tx)
		}
	}
	return out
}

var errNoTransactions = fmt.Errorf("%w: no transaction history", contractx.ErrCapabilityExecution)
