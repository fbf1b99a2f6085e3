package capability

import (
	"context"
	"fmt"
	"sort"

	datasetx "github.com/finsight-labs/finsight/agent/dataset"
)

type marketConditionOutput struct {
	Outlook string                          `json:"outlook"`
	Macro   map[string]float64              `json:"macro"`
	Sectors map[string]datasetx.SectorStats `json:"sectors"`
}

func (s *Set) marketCondition() marketConditionOutput {
	market := s.data.Market()

	outlook := "neutral"
	if market.Macro["gdp_growth_qoq_pct"] > 0.5 && market.Macro["inflation_yoy_pct"] < 4 {
		outlook = "positive"
	}
	if market.Macro["unemployment_pct"] > 6.5 {
		outlook = "cautious"
	}

	return marketConditionOutput{
		Outlook: outlook,
		Macro:   market.Macro,
		Sectors: market.Sectors,
	}
}

func (s *Set) handleMarketCondition(_ context.Context, _ map[string]any) (any, error) {
	return s.marketCondition(), nil
}

type competitionProduct struct {
	Product      string                    `json:"product"`
	Offers       []datasetx.CompetitorOffer `json:"offers"`
	AvgAPRPct    float64                   `json:"avg_apr_pct"`
	MinAnnualFee float64                   `json:"min_annual_fee"`
}

type competitionOutput struct {
	Products []competitionProduct `json:"products"`
}

func (s *Set) competition() competitionOutput {
	byProduct := make(map[string][]datasetx.CompetitorOffer)
	for _, offer := range s.data.Competition() {
		byProduct[offer.Product] = append(byProduct[offer.Product], offer)
	}

	names := make([]string, 0, len(byProduct))
	for name := range byProduct {
		names = append(names, name)
	}
	sort.Strings(names)

	out := competitionOutput{Products: make([]competitionProduct, 0, len(names))}
	for _, name := range names {
		offers := byProduct[name]
		var aprSum float64
		minFee := offers[0].AnnualFee
		for _, o := range offers {
			aprSum += o.APRPct
			if o.AnnualFee < minFee {
				minFee = o.AnnualFee
			}
		}
		out.Products = append(out.Products, competitionProduct{
			Product:      name,
			Offers:       offers,
			AvgAPRPct:    round(aprSum/float64(len(offers)), 2),
			MinAnnualFee: minFee,
		})
	}
	return out
}

func (s *Set) handleCompetition(_ context.Context, _ map[string]any) (any, error) {
	return s.competition(), nil
}

type sentimentOutput struct {
	CustomerID   string                   `json:"customer_id"`
	AvgScore     float64                  `json:"avg_score"`
	Mood         string                   `json:"mood"`
	RecentEvents []datasetx.SentimentEvent `json:"recent_events"`
}

func (s *Set) sentimentOverview(customerID string) (sentimentOutput, error) {
	if _, err := s.data.Customer(customerID); err != nil {
		return sentimentOutput{}, err
	}

	events := s.data.SentimentFor(customerID)
	if len(events) == 0 {
		return sentimentOutput{CustomerID: customerID, Mood: "unknown", RecentEvents: []datasetx.SentimentEvent{}}, nil
	}

	scores := make([]float64, len(events))
	for i, e := range events {
		scores[i] = e.Score
	}
	avg := mean(scores)

	mood := "neutral"
	switch {
	case avg >= 0.4:
		mood = "positive"
	case avg <= -0.1:
		mood = "negative"
	}

	recent := events
	if len(recent) > 5 {
		recent = recent[len(recent)-5:]
	}

	return sentimentOutput{
		CustomerID:   customerID,
		AvgScore:     round(avg, 3),
		Mood:         mood,
		RecentEvents: recent,
	}, nil
}

func (s *Set) handleSentimentOverview(_ context.Context, args map[string]any) (any, error) {
	customerID, err := customerArg(args)
	if err != nil {
		return nil, err
	}
	return s.sentimentOverview(customerID)
}

type marketSignalsOutput struct {
	Items []string `json:"items"`
}

func (s *Set) opportunities(customerID string) (marketSignalsOutput, error) {
	sentiment, err := s.sentimentOverview(customerID)
	if err != nil {
		return marketSignalsOutput{}, err
	}
	condition := s.marketCondition()
	var items []string

	if condition.Outlook == "positive" {
		items = append(items, "macro backdrop supports cross-selling investment products")
	}
	if sentiment.Mood == "positive" {
		items = append(items, "customer sentiment is positive: good moment for an upsell conversation")
	}
	for _, sector := range sortedSectorNames(condition.Sectors) {
		stats := condition.Sectors[sector]
		if stats.Trend == "up" && stats.VolatilityIndex < 0.25 {
			items = append(items, fmt.Sprintf("%s sector trending up with contained volatility", sector))
		}
	}
	for _, product := range s.competition().Products {
		if product.MinAnnualFee == 0 {
			items = append(items, fmt.Sprintf("fee-free %s offers in market: match to defend share", product.Product))
		}
	}
	if len(items) == 0 {
		items = append(items, "no clear market opportunity right now")
	}
	return marketSignalsOutput{Items: items}, nil
}

func (s *Set) handleOpportunities(_ context.Context, args map[string]any) (any, error) {
	customerID, err := customerArg(args)
	if err != nil {
		return nil, err
	}
	return s.opportunities(customerID)
}

func (s *Set) threats(customerID string) (marketSignalsOutput, error) {
	sentiment, err := s.sentimentOverview(customerID)
	if err != nil {
		return marketSignalsOutput{}, err
	}
	condition := s.marketCondition()
	var items []string

	if sentiment.Mood == "negative" {
		items = append(items, "customer sentiment is negative: churn conversation risk")
	}
	if condition.Macro["inflation_yoy_pct"] >= 4 {
		items = append(items, "inflation pressure erodes deposit margins")
	}
	if condition.Macro["unemployment_pct"] > 6.5 {
		items = append(items, "rising unemployment raises default risk")
	}
	for _, sector := range sortedSectorNames(condition.Sectors) {
		stats := condition.Sectors[sector]
		if stats.Trend == "down" || stats.VolatilityIndex >= 0.3 {
			items = append(items, fmt.Sprintf("%s sector under stress (trend %s, volatility %.2f)", sector, stats.Trend, stats.VolatilityIndex))
		}
	}
	for _, product := range s.competition().Products {
		for _, offer := range product.Offers {
			if offer.SignupBonus != "" {
				items = append(items, fmt.Sprintf("%s pushing %s with signup bonus %q", offer.Competitor, offer.Product, offer.SignupBonus))
			}
		}
	}
	if len(items) == 0 {
		items = append(items, "no acute market threat detected")
	}
	return marketSignalsOutput{Items: items}, nil
}

func (s *Set) handleThreats(_ context.Context, args map[string]any) (any, error) {
	customerID, err := customerArg(args)
	if err != nil {
		return nil, err
	}
	return s.threats(customerID)
}

type marketRecommendationsOutput struct {
	Outlook         string   `json:"outlook"`
	Opportunities   []string `json:"opportunities"`
	Threats         []string `json:"threats"`
	Recommendations []string `json:"recommendations"`
}

func (s *Set) marketRecommendations(customerID string) (marketRecommendationsOutput, error) {
	condition := s.marketCondition()
	opps, err := s.opportunities(customerID)
	if err != nil {
		return marketRecommendationsOutput{}, err
	}
	threats, err := s.threats(customerID)
	if err != nil {
		return marketRecommendationsOutput{}, err
	}

	var recs []string
	switch condition.Outlook {
	case "positive":
		recs = append(recs, "lean into acquisition: promote investment and premium products")
	case "cautious":
		recs = append(recs, "tighten credit policy and prioritise retention over acquisition")
	default:
		recs = append(recs, "hold current positioning; review pricing against competitor offers")
	}
	if len(threats.Items) > len(opps.Items) {
		recs = append(recs, "threat signals outweigh opportunities: build a defensive campaign plan")
	}

	return marketRecommendationsOutput{
		Outlook:         condition.Outlook,
		Opportunities:   opps.Items,
		Threats:         threats.Items,
		Recommendations: recs,
	}, nil
}

func (s *Set) handleMarketRecommendations(_ context.Context, args map[string]any) (any, error) {
	customerID, err := customerArg(args)
	if err != nil {
		return nil, err
	}
	return s.marketRecommendations(customerID)
}

func sortedSectorNames(sectors map[string]datasetx.SectorStats) []string {
	names := make([]string, 0, len(sectors))
	for name := range sectors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
