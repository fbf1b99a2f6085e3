// Package dataset loads the tabular and JSON reference data the analytic
// capabilities read. A default fixture set is embedded; a directory override
// lets deployments ship their own files with the same layout.
package dataset

import (
	"embed"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"
)

//go:embed data/*.json data/*.csv
var embedded embed.FS

var ErrCustomerNotFound = errors.New("customer not found")

type ChurnSignals struct {
	ComplaintsLast6m int    `json:"complaints_last_6m"`
	SalaryMovedOut   bool   `json:"salary_moved_out"`
	BalanceTrend     string `json:"balance_trend"`
}

type KYC struct {
	Status     string `json:"status"`
	AMLFlag    bool   `json:"aml_flag"`
	PEPFlag    bool   `json:"pep_flag"`
	LastReview string `json:"last_review"`
}

type Customer struct {
	CustomerID          string             `json:"customer_id"`
	Name                string             `json:"name"`
	Age                 int                `json:"age"`
	CreditScore         int                `json:"credit_score"`
	Tier                string             `json:"tier"`
	MonthlyIncome       float64            `json:"monthly_income"`
	DaysSinceLastLogin  int                `json:"days_since_last_login"`
	AppSessionsLast90d  int                `json:"app_sessions_last_90d"`
	PushOpensLast90d    int                `json:"push_opens_last_90d"`
	TransactionsLast12m []float64          `json:"transactions_last_12m"`
	ChurnSignals        ChurnSignals       `json:"churn_signals"`
	ProductInteractions map[string]float64 `json:"product_interactions"`
	Products            []string           `json:"products"`
	KYC                 KYC                `json:"kyc"`
}

type Transaction struct {
	CustomerID string
	Date       time.Time
	Amount     float64
	Merchant   string
	Status     string
}

type Payment struct {
	CustomerID string
	Date       time.Time
	Amount     float64
	OnTime     bool
}

type Debt struct {
	CustomerID         string
	MonthlyDebtService float64
	TotalOutstanding   float64
}

type SentimentEvent struct {
	CustomerID string  `json:"customer_id"`
	Date       string  `json:"date"`
	Score      float64 `json:"score"`
	Source     string  `json:"source"`
}

type CompetitorOffer struct {
	Product     string
	Competitor  string
	APRPct      float64
	AnnualFee   float64
	SignupBonus string
}

type SectorStats struct {
	Trend           string  `json:"trend"`
	VolatilityIndex float64 `json:"volatility_index"`
}

type Market struct {
	Macro   map[string]float64     `json:"macro"`
	Sectors map[string]SectorStats `json:"sectors"`
}

// Dataset is loaded once at startup and read-only afterwards.
type Dataset struct {
	customers    []Customer
	customerByID map[string]Customer
	transactions map[string][]Transaction
	payments     map[string][]Payment
	debts        map[string]Debt
	sentiment    map[string][]SentimentEvent
	competition  []CompetitorOffer
	market       Market
}

// Load reads every data file from dir, falling back to the embedded
// fixtures when dir is empty.
func Load(dir string) (*Dataset, error) {
	var fsys fs.FS = embedded
	prefix := "data/"
	if strings.TrimSpace(dir) != "" {
		fsys = os.DirFS(dir)
		prefix = ""
	}

	d := &Dataset{
		customerByID: make(map[string]Customer),
		transactions: make(map[string][]Transaction),
		payments:     make(map[string][]Payment),
		debts:        make(map[string]Debt),
		sentiment:    make(map[string][]SentimentEvent),
	}

	if err := d.loadCustomers(fsys, prefix+"customers.json"); err != nil {
		return nil, err
	}
	if err := d.loadTransactions(fsys, prefix+"transactions.csv"); err != nil {
		return nil, err
	}
	if err := d.loadPayments(fsys, prefix+"payments.csv"); err != nil {
		return nil, err
	}
	if err := d.loadDebts(fsys, prefix+"debts.csv"); err != nil {
		return nil, err
	}
	if err := d.loadSentiment(fsys, prefix+"sentiment.csv"); err != nil {
		return nil, err
	}
	if err := d.loadCompetition(fsys, prefix+"competition.csv"); err != nil {
		return nil, err
	}
	if err := d.loadMarket(fsys, prefix+"market.json"); err != nil {
		return nil, err
	}
	return d, nil
}

func (d *Dataset) Customer(customerID string) (Customer, error) {
	c, ok := d.customerByID[customerID]
	if !ok {
		return Customer{}, fmt.Errorf("%w: %s", ErrCustomerNotFound, customerID)
	}
	return c, nil
}

func (d *Dataset) Customers() []Customer {
	out := make([]Customer, len(d.customers))
	copy(out, d.customers)
	return out
}

// TransactionsFor returns the customer's transactions sorted by date.
func (d *Dataset) TransactionsFor(customerID string) []Transaction {
	src := d.transactions[customerID]
	out := make([]Transaction, len(src))
	copy(out, src)
	return out
}

func (d *Dataset) PaymentsFor(customerID string) []Payment {
	src := d.payments[customerID]
	out := make([]Payment, len(src))
	copy(out, src)
	return out
}

func (d *Dataset) DebtFor(customerID string) (Debt, bool) {
	debt, ok := d.debts[customerID]
	return debt, ok
}

func (d *Dataset) SentimentFor(customerID string) []SentimentEvent {
	src := d.sentiment[customerID]
	out := make([]SentimentEvent, len(src))
	copy(out, src)
	return out
}

func (d *Dataset) Competition() []CompetitorOffer {
	out := make([]CompetitorOffer, len(d.competition))
	copy(out, d.competition)
	return out
}

func (d *Dataset) Market() Market {
	return d.market
}

func (d *Dataset) loadCustomers(fsys fs.FS, path string) error {
	raw, err := fs.ReadFile(fsys, path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	var doc struct {
		Customers []Customer `json:"customers"`
	}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	d.customers = doc.Customers
	for _, c := range doc.Customers {
		d.customerByID[c.CustomerID] = c
	}
	return nil
}

func (d *Dataset) loadTransactions(fsys fs.FS, path string) error {
	return readCSV(fsys, path, func(rec map[string]string) error {
		date, err := time.Parse("2006-01-02", rec["date"])
		if err != nil {
			return fmt.Errorf("transaction date %q: %w", rec["date"], err)
		}
		amount, err := strconv.ParseFloat(rec["amount"], 64)
		if err != nil {
			return fmt.Errorf("transaction amount %q: %w", rec["amount"], err)
		}
		id := rec["customer_id"]
		d.transactions[id] = append(d.transactions[id], Transaction{
			CustomerID: id,
			Date:       date,
			Amount:     amount,
			Merchant:   rec["merchant"],
			Status:     rec["status"],
		})
		return nil
	}, func() {
		for id := range d.transactions {
			tx := d.transactions[id]
			sort.Slice(tx, func(i, j int) bool { return tx[i].Date.Before(tx[j].Date) })
			d.transactions[id] = tx
		}
	})
}

func (d *Dataset) loadPayments(fsys fs.FS, path string) error {
	return readCSV(fsys, path, func(rec map[string]string) error {
		date, err := time.Parse("2006-01-02", rec["date"])
		if err != nil {
			return fmt.Errorf("payment date %q: %w", rec["date"], err)
		}
		amount, err := strconv.ParseFloat(rec["amount"], 64)
		if err != nil {
			return fmt.Errorf("payment amount %q: %w", rec["amount"], err)
		}
		id := rec["customer_id"]
		d.payments[id] = append(d.payments[id], Payment{
			CustomerID: id,
			Date:       date,
			Amount:     amount,
			OnTime:     strings.EqualFold(rec["on_time"], "true"),
		})
		return nil
	}, nil)
}

func (d *Dataset) loadDebts(fsys fs.FS, path string) error {
	return readCSV(fsys, path, func(rec map[string]string) error {
		service, err := strconv.ParseFloat(rec["monthly_debt_service"], 64)
		if err != nil {
			return fmt.Errorf("debt service %q: %w", rec["monthly_debt_service"], err)
		}
		outstanding, err := strconv.ParseFloat(rec["total_outstanding"], 64)
		if err != nil {
			return fmt.Errorf("debt outstanding %q: %w", rec["total_outstanding"], err)
		}
		id := rec["customer_id"]
		d.debts[id] = Debt{
			CustomerID:         id,
			MonthlyDebtService: service,
			TotalOutstanding:   outstanding,
		}
		return nil
	}, nil)
}

func (d *Dataset) loadSentiment(fsys fs.FS, path string) error {
	return readCSV(fsys, path, func(rec map[string]string) error {
		score, err := strconv.ParseFloat(rec["score"], 64)
		if err != nil {
			return fmt.Errorf("sentiment score %q: %w", rec["score"], err)
		}
		id := rec["customer_id"]
		d.sentiment[id] = append(d.sentiment[id], SentimentEvent{
			CustomerID: id,
			Date:       rec["date"],
			Score:      score,
			Source:     rec["source"],
		})
		return nil
	}, nil)
}

func (d *Dataset) loadCompetition(fsys fs.FS, path string) error {
	return readCSV(fsys, path, func(rec map[string]string) error {
		apr, err := strconv.ParseFloat(rec["apr_pct"], 64)
		if err != nil {
			return fmt.Errorf("competition apr %q: %w", rec["apr_pct"], err)
		}
		fee, err := strconv.ParseFloat(rec["annual_fee"], 64)
		if err != nil {
			return fmt.Errorf("competition fee %q: %w", rec["annual_fee"], err)
		}
		d.competition = append(d.competition, CompetitorOffer{
			Product:     rec["product"],
			Competitor:  rec["competitor"],
			APRPct:      apr,
			AnnualFee:   fee,
			SignupBonus: rec["signup_bonus"],
		})
		return nil
	}, nil)
}

func (d *Dataset) loadMarket(fsys fs.FS, path string) error {
	raw, err := fs.ReadFile(fsys, path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	if err := json.Unmarshal(raw, &d.market); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}

func readCSV(fsys fs.FS, path string, row func(map[string]string) error, done func()) error {
	f, err := fsys.Open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	header, err := r.Read()
	if err != nil {
		return fmt.Errorf("read %s header: %w", path, err)
	}

	for {
		fields, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}
		rec := make(map[string]string, len(header))
		for i, name := range header {
			if i < len(fields) {
				rec[strings.TrimSpace(name)] = strings.TrimSpace(fields[i])
			}
		}
		if err := row(rec); err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
	}
	if done != nil {
		done()
	}
	return nil
}
