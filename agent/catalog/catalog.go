// Package catalog holds the fixed registry of analytic capabilities.
// The catalog is built once at startup and read-only afterwards; there is no
// runtime registration.
package catalog

import (
	"fmt"

	contractx "github.com/finsight-labs/finsight/agent/contract"
)

const (
	CategoryCustomerValue = "customer_value"
	CategoryBehaviour     = "financial_behaviour"
	CategoryTransactions  = "transactions"
	CategoryMarket        = "market_intelligence"
	CategoryRisk          = "risk_assessment"
	CategoryAdvisory      = "advisory"
	CategoryExecutive     = "executive"
)

type Catalog struct {
	byName map[string]contractx.CapabilityDescriptor
	order  []string
}

// New builds the process-wide catalog. Registration order is stable and is
// the order descriptors are listed for the manifest and for UI display.
func New() *Catalog {
	c := &Catalog{byName: make(map[string]contractx.CapabilityDescriptor, len(descriptors))}
	for _, d := range descriptors {
		c.register(d)
	}
	return c
}

func (c *Catalog) register(d contractx.CapabilityDescriptor) {
	if _, dup := c.byName[d.Name]; dup {
		panic(fmt.Sprintf("catalog: duplicate capability %q", d.Name))
	}
	c.byName[d.Name] = d
	c.order = append(c.order, d.Name)
}

// Lookup returns the descriptor for name.
func (c *Catalog) Lookup(name string) (contractx.CapabilityDescriptor, error) {
	d, ok := c.byName[name]
	if !ok {
		return contractx.CapabilityDescriptor{}, fmt.Errorf("%w: %s", contractx.ErrUnknownCapability, name)
	}
	return d, nil
}

// Descriptors returns every descriptor in registration order.
func (c *Catalog) Descriptors() []contractx.CapabilityDescriptor {
	out := make([]contractx.CapabilityDescriptor, 0, len(c.order))
	for _, name := range c.order {
		out = append(out, c.byName[name])
	}
	return out
}

// ListByCategory groups descriptors by category, each group in registration
// order.
func (c *Catalog) ListByCategory() map[string][]contractx.CapabilityDescriptor {
	out := make(map[string][]contractx.CapabilityDescriptor)
	for _, name := range c.order {
		d := c.byName[name]
		out[d.Category] = append(out[d.Category], d)
	}
	return out
}

func (c *Catalog) Len() int {
	return len(c.order)
}

var customerIDParam = map[string]string{
	"customer_id": "Customer identifier, e.g. CUST001.",
}

var descriptors = []contractx.CapabilityDescriptor{
	// Base set: available to every client regardless of tier.
	{
		Name:        "calculate_clv",
		Category:    CategoryCustomerValue,
		Description: "Estimate customer lifetime value from the last 12 months of spend.",
		MinRole:     contractx.RoleClient,
		Params: map[string]string{
			"customer_id":            "Customer identifier, e.g. CUST001.",
			"monthly_retention_rate": "Monthly retention probability (0-1), default 0.92.",
			"monthly_margin_rate":    "Margin over attributed spend (0-1), default 0.25.",
			"discount_rate_monthly":  "Monthly discount rate (0-1), default 0.01.",
		},
	},
	{
		Name:        "calculate_churn_risk",
		Category:    CategoryCustomerValue,
		Description: "Score churn risk (0-1) from login recency, app activity and churn signals.",
		MinRole:     contractx.RoleClient,
		Params:      customerIDParam,
	},
	{
		Name:        "calculate_engagement",
		Category:    CategoryCustomerValue,
		Description: "Compute an engagement score (0-100) from app usage and interactions.",
		MinRole:     contractx.RoleClient,
		Params:      customerIDParam,
	},
	{
		Name:        "calculate_product_affinity",
		Category:    CategoryCustomerValue,
		Description: "Estimate product affinity distribution and top-k recommendations.",
		MinRole:     contractx.RoleClient,
		Params: map[string]string{
			"customer_id": "Customer identifier, e.g. CUST001.",
			"top_k":       "How many recommendations to return, default 3.",
		},
	},
	{
		Name:        "calculate_risk_profile",
		Category:    CategoryCustomerValue,
		Description: "Derive a low/medium/high credit-oriented risk profile.",
		MinRole:     contractx.RoleClient,
		Params:      customerIDParam,
	},
	{
		Name:        "financial_behaviour_analysis",
		Category:    CategoryBehaviour,
		Description: "Analyze saving rate, investment appetite, debt-to-income and payment reliability.",
		MinRole:     contractx.RoleClient,
		Params:      customerIDParam,
	},
	{
		Name:        "analyze_digital_engagement",
		Category:    CategoryBehaviour,
		Description: "Classify digital engagement level from the composite engagement score.",
		MinRole:     contractx.RoleClient,
		Params:      customerIDParam,
	},
	{
		Name:        "summarize_transactions",
		Category:    CategoryTransactions,
		Description: "Summarize transaction totals, counts and averages.",
		MinRole:     contractx.RoleClient,
		Params:      customerIDParam,
	},
	{
		Name:        "trending_forecast",
		Category:    CategoryTransactions,
		Description: "Forecast 1/3/6 month spend with a 3-month moving average.",
		MinRole:     contractx.RoleClient,
		Params:      customerIDParam,
	},
	{
		Name:        "payment_behavior",
		Category:    CategoryTransactions,
		Description: "Assess payment timeliness and consistency.",
		MinRole:     contractx.RoleClient,
		Params:      customerIDParam,
	},
	{
		Name:        "detect_transaction_anomalies",
		Category:    CategoryTransactions,
		Description: "Detect anomalous transaction amounts by z-score.",
		MinRole:     contractx.RoleClient,
		Params: map[string]string{
			"customer_id": "Customer identifier, e.g. CUST001.",
			"z_threshold": "Absolute z-score threshold, default 2.0.",
		},
	},
	{
		Name:        "analyze_market_condition",
		Category:    CategoryMarket,
		Description: "Summarize macro and sector conditions with an outlook.",
		MinRole:     contractx.RoleClient,
	},
	{
		Name:        "analyze_competition",
		Category:    CategoryMarket,
		Description: "Summarize competitor products, rates and offers.",
		MinRole:     contractx.RoleClient,
	},
	{
		Name:        "customer_sentiment_overview",
		Category:    CategoryMarket,
		Description: "Aggregate sentiment events for a customer.",
		MinRole:     contractx.RoleClient,
		Params:      customerIDParam,
	},
	{
		Name:        "identify_opportunities",
		Category:    CategoryMarket,
		Description: "Derive sales opportunities from market outlook and sentiment.",
		MinRole:     contractx.RoleClient,
		Params:      customerIDParam,
	},
	{
		Name:        "identify_threats",
		Category:    CategoryMarket,
		Description: "Derive retention threats from competition and negative sentiment.",
		MinRole:     contractx.RoleClient,
		Params:      customerIDParam,
	},
	{
		Name:        "generate_market_recommendations",
		Category:    CategoryMarket,
		Description: "Combine opportunities and threats into recommendations.",
		MinRole:     contractx.RoleClient,
		Params:      customerIDParam,
	},
	{
		Name:        "overall_risk_score_calculator",
		Category:    CategoryRisk,
		Description: "Aggregate an overall risk score from churn, payments, behaviour and anomalies.",
		MinRole:     contractx.RoleClient,
		Params:      customerIDParam,
	},
	{
		Name:        "categorize_risk",
		Category:    CategoryRisk,
		Description: "Bucket the overall risk score into low/medium/high.",
		MinRole:     contractx.RoleClient,
		Params:      customerIDParam,
	},
	{
		Name:        "assess_churn_risk",
		Category:    CategoryRisk,
		Description: "Expose the churn risk score with its drivers.",
		MinRole:     contractx.RoleClient,
		Params:      customerIDParam,
	},
	{
		Name:        "assess_financial_risk",
		Category:    CategoryRisk,
		Description: "Assess financial risk from debt-to-income and payment reliability.",
		MinRole:     contractx.RoleClient,
		Params:      customerIDParam,
	},
	{
		Name:        "assess_operational_risk",
		Category:    CategoryRisk,
		Description: "Proxy operational risk from anomalies and market volatility.",
		MinRole:     contractx.RoleClient,
		Params:      customerIDParam,
	},
	{
		Name:        "business_impact",
		Category:    CategoryRisk,
		Description: "Estimate the business impact tier from risk and CLV.",
		MinRole:     contractx.RoleClient,
		Params:      customerIDParam,
	},
	{
		Name:        "risk_factors",
		Category:    CategoryRisk,
		Description: "List the key risk factors detected for a customer.",
		MinRole:     contractx.RoleClient,
		Params:      customerIDParam,
	},
	{
		Name:        "recommend_mitigation",
		Category:    CategoryRisk,
		Description: "Recommend mitigation actions for identified risks.",
		MinRole:     contractx.RoleClient,
		Params:      customerIDParam,
	},
	{
		Name:        "define_monitoring",
		Category:    CategoryRisk,
		Description: "Choose a monitoring frequency from the risk category.",
		MinRole:     contractx.RoleClient,
		Params:      customerIDParam,
	},

	// Premium extensions: clients on the premium tier only.
	{
		Name:        "investment_strategy_planner",
		Category:    CategoryAdvisory,
		Description: "Plan an investment strategy from financial, risk and market signals.",
		MinRole:     contractx.RoleClient,
		MinTier:     contractx.TierPremium,
		Params: map[string]string{
			"customer_id":   "Customer identifier, e.g. CUST001.",
			"goal":          "Investment goal, default 'grow wealth'.",
			"horizon_years": "Planning horizon in years, default 5.",
		},
	},
	{
		Name:        "investment_proposal_advisor",
		Category:    CategoryAdvisory,
		Description: "Draft comparative investment proposals with justification.",
		MinRole:     contractx.RoleClient,
		MinTier:     contractx.TierPremium,
		Params: map[string]string{
			"customer_id": "Customer identifier, e.g. CUST001.",
			"context":     "Additional free-text context from the advisor.",
		},
	},
	{
		Name:        "smart_alerts_generator",
		Category:    CategoryAdvisory,
		Description: "Generate prioritized proactive alerts from anomalies, payments and sentiment.",
		MinRole:     contractx.RoleClient,
		MinTier:     contractx.TierPremium,
		Params:      customerIDParam,
	},
	{
		Name:        "advanced_planning_simulations",
		Category:    CategoryAdvisory,
		Description: "Simulate the impact of a mortgage on saving capacity.",
		MinRole:     contractx.RoleClient,
		MinTier:     contractx.TierPremium,
		Params: map[string]string{
			"customer_id":     "Customer identifier, e.g. CUST001.",
			"mortgage_amount": "Principal to simulate, default 0.",
			"term_years":      "Mortgage term in years, default 20.",
			"annual_rate_pct": "Annual interest rate in percent, default 9.5.",
		},
	},

	// Executive set: portfolio-wide views, executives only.
	{
		Name:        "executive_sales_opportunity_identifier",
		Category:    CategoryExecutive,
		Description: "Rank the portfolio by sales opportunity.",
		MinRole:     contractx.RoleExecutive,
	},
	{
		Name:        "executive_proactive_retention",
		Category:    CategoryExecutive,
		Description: "List customers above a churn-risk threshold with suggested actions.",
		MinRole:     contractx.RoleExecutive,
		Params: map[string]string{
			"threshold": "Churn risk threshold (0-1), default 0.55.",
		},
	},
	{
		Name:        "executive_advanced_lead_scoring",
		Category:    CategoryExecutive,
		Description: "Score the portfolio by propensity to buy a target product.",
		MinRole:     contractx.RoleExecutive,
		Params: map[string]string{
			"target_product": "Product to score for, default 'investment'.",
		},
	},
	{
		Name:        "executive_kyc_overview",
		Category:    CategoryExecutive,
		Description: "Summarize a customer's KYC status, AML/PEP flags and basic profile.",
		MinRole:     contractx.RoleExecutive,
		Params:      customerIDParam,
	},
}
