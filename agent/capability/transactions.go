package capability

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"
)

type transactionSummaryOutput struct {
	CustomerID   string  `json:"customer_id"`
	Count        int     `json:"count"`
	SuccessCount int     `json:"success_count"`
	TotalSpend   float64 `json:"total_spend"`
	AvgAmount    float64 `json:"avg_amount"`
	MaxAmount    float64 `json:"max_amount"`
	FirstDate    string  `json:"first_date"`
	LastDate     string  `json:"last_date"`
}

func (s *Set) summarizeTransactions(customerID string) (transactionSummaryOutput, error) {
	if _, err := s.data.Customer(customerID); err != nil {
		return transactionSummaryOutput{}, err
	}

	txs := s.data.TransactionsFor(customerID)
	if len(txs) == 0 {
		return transactionSummaryOutput{CustomerID: customerID}, nil
	}

	out := transactionSummaryOutput{
		CustomerID: customerID,
		Count:      len(txs),
		FirstDate:  txs[0].Date.Format("2006-01-02"),
		LastDate:   txs[len(txs)-1].Date.Format("2006-01-02"),
	}
	var total, max float64
	for _, tx := range txs {
		total += tx.Amount
		if tx.Amount > max {
			max = tx.Amount
		}
		if tx.Status == "success" {
			out.SuccessCount++
		}
	}
	out.TotalSpend = round(total, 2)
	out.AvgAmount = round(total/float64(len(txs)), 2)
	out.MaxAmount = max
	return out, nil
}

func (s *Set) handleSummarizeTransactions(_ context.Context, args map[string]any) (any, error) {
	customerID, err := customerArg(args)
	if err != nil {
		return nil, err
	}
	return s.summarizeTransactions(customerID)
}

type monthlySpend struct {
	Month string  `json:"month"`
	Total float64 `json:"total"`
}

type forecastOutput struct {
	CustomerID    string         `json:"customer_id"`
	MonthlyTotals []monthlySpend `json:"monthly_totals"`
	Forecast1m    float64        `json:"forecast_1m"`
	Forecast3m    float64        `json:"forecast_3m"`
	Forecast6m    float64        `json:"forecast_6m"`
}

func (s *Set) trendingForecast(customerID string) (forecastOutput, error) {
	if _, err := s.data.Customer(customerID); err != nil {
		return forecastOutput{}, err
	}

	txs := successfulTransactions(s.data.TransactionsFor(customerID))
	if len(txs) == 0 {
		return forecastOutput{}, errNoTransactions
	}

	byMonth := make(map[string]float64)
	for _, tx := range txs {
		byMonth[tx.Date.Format("2006-01")] += tx.Amount
	}
	months := make([]string, 0, len(byMonth))
	for m := range byMonth {
		months = append(months, m)
	}
	sort.Strings(months)

	totals := make([]monthlySpend, 0, len(months))
	for _, m := range months {
		totals = append(totals, monthlySpend{Month: m, Total: round(byMonth[m], 2)})
	}

	// Naive forecast: project the mean of the last three observed months.
	window := totals
	if len(window) > 3 {
		window = window[len(window)-3:]
	}
	recent := make([]float64, 0, len(window))
	for _, m := range window {
		recent = append(recent, m.Total)
	}
	base := mean(recent)

	return forecastOutput{
		CustomerID:    customerID,
		MonthlyTotals: totals,
		Forecast1m:    round(base, 2),
		Forecast3m:    round(base*3, 2),
		Forecast6m:    round(base*6, 2),
	}, nil
}

func (s *Set) handleTrendingForecast(_ context.Context, args map[string]any) (any, error) {
	customerID, err := customerArg(args)
	if err != nil {
		return nil, err
	}
	return s.trendingForecast(customerID)
}

type paymentBehaviourOutput struct {
	CustomerID string  `json:"customer_id"`
	Records    int     `json:"records"`
	OnTimeRate float64 `json:"on_time_rate"`
	AvgAmount  float64 `json:"avg_amount"`
	Summary    string  `json:"summary"`
}

func (s *Set) paymentBehaviour(customerID string) (paymentBehaviourOutput, error) {
	if _, err := s.data.Customer(customerID); err != nil {
		return paymentBehaviourOutput{}, err
	}

	payments := s.data.PaymentsFor(customerID)
	if len(payments) == 0 {
		return paymentBehaviourOutput{CustomerID: customerID, Summary: "no payment history"}, nil
	}

	var onTime, total float64
	for _, p := range payments {
		if p.OnTime {
			onTime++
		}
		total += p.Amount
	}
	rate := onTime / float64(len(payments))

	summary := "inconsistent payer"
	switch {
	case rate >= 0.9:
		summary = "reliable payer"
	case rate < 0.6:
		summary = "often late"
	}

	return paymentBehaviourOutput{
		CustomerID: customerID,
		Records:    len(payments),
		OnTimeRate: round(rate, 3),
		AvgAmount:  round(total/float64(len(payments)), 2),
		Summary:    summary,
	}, nil
}

func (s *Set) handlePaymentBehavior(_ context.Context, args map[string]any) (any, error) {
	customerID, err := customerArg(args)
	if err != nil {
		return nil, err
	}
	return s.paymentBehaviour(customerID)
}

type transactionAnomaly struct {
	Date   string  `json:"date"`
	Amount float64 `json:"amount"`
	ZScore float64 `json:"z_score"`
}

type anomaliesOutput struct {
	CustomerID string               `json:"customer_id"`
	Threshold  float64              `json:"threshold"`
	Anomalies  []transactionAnomaly `json:"anomalies"`
}

func (s *Set) transactionAnomalies(customerID string, threshold float64) (anomaliesOutput, error) {
	if _, err := s.data.Customer(customerID); err != nil {
		return anomaliesOutput{}, err
	}

	txs := successfulTransactions(s.data.TransactionsFor(customerID))
	out := anomaliesOutput{
		CustomerID: customerID,
		Threshold:  threshold,
		Anomalies:  []transactionAnomaly{},
	}
	if len(txs) < 3 {
		return out, nil
	}

	amounts := make([]float64, len(txs))
	for i, tx := range txs {
		amounts[i] = tx.Amount
	}
	m := mean(amounts)
	sd := stddev(amounts)
	if sd == 0 {
		return out, nil
	}

	for _, tx := range txs {
		z := (tx.Amount - m) / sd
		if math.Abs(z) >= threshold {
			out.Anomalies = append(out.Anomalies, transactionAnomaly{
				Date:   tx.Date.Format(time.DateOnly),
				Amount: tx.Amount,
				ZScore: round(z, 2),
			})
		}
	}
	return out, nil
}

func (s *Set) handleTransactionAnomalies(_ context.Context, args map[string]any) (any, error) {
	customerID, err := customerArg(args)
	if err != nil {
		return nil, err
	}
	threshold, err := floatArg(args, "z_threshold", 2.0)
	if err != nil {
		return nil, err
	}
	if threshold <= 0 {
		return nil, fmt.Errorf("z_threshold must be positive, got %v", threshold)
	}
	return s.transactionAnomalies(customerID, threshold)
}
