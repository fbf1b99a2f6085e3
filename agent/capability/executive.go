package capability

import (
	"context"
	"sort"
)

type salesOpportunity struct {
	CustomerID  string  `json:"customer_id"`
	Name        string  `json:"name"`
	Product     string  `json:"product"`
	Affinity    float64 `json:"affinity"`
	CLVEstimate float64 `json:"clv_estimate"`
}

type salesOpportunitiesOutput struct {
	Opportunities []salesOpportunity `json:"opportunities"`
}

func (s *Set) handleExecSalesOpportunities(_ context.Context, args map[string]any) (any, error) {
	limit, err := intArg(args, "limit", 5)
	if err != nil {
		return nil, err
	}

	var out []salesOpportunity
	for _, cust := range s.data.Customers() {
		affinity, err := s.productAffinity(cust.CustomerID, 1)
		if err != nil {
			return nil, err
		}
		if len(affinity.TopRecommendations) == 0 {
			continue
		}
		top := affinity.TopRecommendations[0]

		// Skip products the customer already holds.
		owned := false
		for _, p := range cust.Products {
			if p == top.Product {
				owned = true
				break
			}
		}
		if owned {
			continue
		}

		clv, err := s.clv(cust.CustomerID, 0.25, 0.92, 0.01)
		if err != nil {
			return nil, err
		}
		out = append(out, salesOpportunity{
			CustomerID:  cust.CustomerID,
			Name:        cust.Name,
			Product:     top.Product,
			Affinity:    top.Score,
			CLVEstimate: clv.CLVEstimate,
		})
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].CLVEstimate != out[j].CLVEstimate {
			return out[i].CLVEstimate > out[j].CLVEstimate
		}
		return out[i].CustomerID < out[j].CustomerID
	})
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return salesOpportunitiesOutput{Opportunities: out}, nil
}

type retentionCase struct {
	CustomerID string   `json:"customer_id"`
	Name       string   `json:"name"`
	ChurnRisk  float64  `json:"churn_risk"`
	CLVAtRisk  float64  `json:"clv_at_risk"`
	Drivers    []string `json:"drivers"`
	PlayToRun  string   `json:"play_to_run"`
}

type proactiveRetentionOutput struct {
	Threshold float64         `json:"threshold"`
	Cases     []retentionCase `json:"cases"`
}

func (s *Set) handleExecProactiveRetention(_ context.Context, args map[string]any) (any, error) {
	threshold, err := floatArg(args, "threshold", 0.55)
	if err != nil {
		return nil, err
	}

	out := proactiveRetentionOutput{Threshold: threshold, Cases: []retentionCase{}}
	for _, cust := range s.data.Customers() {
		churn, err := s.churnRisk(cust.CustomerID)
		if err != nil {
			return nil, err
		}
		if churn.ChurnRisk < threshold {
			continue
		}
		impact, err := s.businessImpact(cust.CustomerID)
		if err != nil {
			return nil, err
		}

		play := "relationship-manager outreach with tailored offer"
		if churn.ChurnRisk >= 0.6 {
			play = "executive save desk: priority call within 24 hours"
		}
		out.Cases = append(out.Cases, retentionCase{
			CustomerID: cust.CustomerID,
			Name:       cust.Name,
			ChurnRisk:  churn.ChurnRisk,
			CLVAtRisk:  impact.CLVAtRisk,
			Drivers:    churn.Drivers,
			PlayToRun:  play,
		})
	}

	sort.Slice(out.Cases, func(i, j int) bool {
		if out.Cases[i].CLVAtRisk != out.Cases[j].CLVAtRisk {
			return out.Cases[i].CLVAtRisk > out.Cases[j].CLVAtRisk
		}
		return out.Cases[i].CustomerID < out.Cases[j].CustomerID
	})
	return out, nil
}

type leadScore struct {
	CustomerID string  `json:"customer_id"`
	Name       string  `json:"name"`
	Score      float64 `json:"score"`
	Grade      string  `json:"grade"`
}

type leadScoringOutput struct {
	TargetProduct string      `json:"target_product"`
	Leads         []leadScore `json:"leads"`
}

func (s *Set) handleExecLeadScoring(_ context.Context, args map[string]any) (any, error) {
	targetProduct, err := stringArgDefault(args, "target_product", "investment")
	if err != nil {
		return nil, err
	}

	var leads []leadScore
	for _, cust := range s.data.Customers() {
		eng, err := s.engagement(cust.CustomerID)
		if err != nil {
			return nil, err
		}
		churn, err := s.churnRisk(cust.CustomerID)
		if err != nil {
			return nil, err
		}
		affinity, err := s.productAffinity(cust.CustomerID, 0)
		if err != nil {
			return nil, err
		}
		clv, err := s.clv(cust.CustomerID, 0.25, 0.92, 0.01)
		if err != nil {
			return nil, err
		}

		// Blend product fit, engagement, loyalty and value on a 0-100 scale.
		fit := affinity.AffinityDistribution[targetProduct]
		value := clamp01(clv.CLVEstimate / 10000)
		score := fit*100*0.3 + eng.EngagementScore*0.3 + (1-churn.ChurnRisk)*100*0.2 + value*100*0.2

		grade := "C"
		switch {
		case score >= 60:
			grade = "A"
		case score >= 40:
			grade = "B"
		}
		leads = append(leads, leadScore{
			CustomerID: cust.CustomerID,
			Name:       cust.Name,
			Score:      round(score, 1),
			Grade:      grade,
		})
	}

	sort.Slice(leads, func(i, j int) bool {
		if leads[i].Score != leads[j].Score {
			return leads[i].Score > leads[j].Score
		}
		return leads[i].CustomerID < leads[j].CustomerID
	})
	return leadScoringOutput{TargetProduct: targetProduct, Leads: leads}, nil
}

type kycOverviewOutput struct {
	CustomerID  string   `json:"customer_id"`
	Name        string   `json:"name"`
	Age         int      `json:"age"`
	Tier        string   `json:"tier"`
	CreditScore int      `json:"credit_score"`
	Status      string   `json:"status"`
	AMLFlag     bool     `json:"aml_flag"`
	PEPFlag     bool     `json:"pep_flag"`
	LastReview  string   `json:"last_review"`
	Attention   []string `json:"attention"`
}

func (s *Set) handleExecKYCOverview(_ context.Context, args map[string]any) (any, error) {
	customerID, err := customerArg(args)
	if err != nil {
		return nil, err
	}
	cust, err := s.data.Customer(customerID)
	if err != nil {
		return nil, err
	}

	out := kycOverviewOutput{
		CustomerID:  cust.CustomerID,
		Name:        cust.Name,
		Age:         cust.Age,
		Tier:        cust.Tier,
		CreditScore: cust.CreditScore,
		Status:      cust.KYC.Status,
		AMLFlag:     cust.KYC.AMLFlag,
		PEPFlag:     cust.KYC.PEPFlag,
		LastReview:  cust.KYC.LastReview,
		Attention:   []string{},
	}
	if cust.KYC.Status != "verified" {
		out.Attention = append(out.Attention, "verification incomplete")
	}
	if cust.KYC.AMLFlag {
		out.Attention = append(out.Attention, "AML flag raised")
	}
	if cust.KYC.PEPFlag {
		out.Attention = append(out.Attention, "politically exposed person")
	}
	return out, nil
}
