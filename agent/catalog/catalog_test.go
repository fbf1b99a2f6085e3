package catalog

import (
	"errors"
	"testing"

	contractx "github.com/finsight-labs/finsight/agent/contract"
)

func TestCatalogComplete(t *testing.T) {
	t.Parallel()

	c := New()
	if c.Len() != 34 {
		t.Fatalf("expected 34 registered capabilities, got %d", c.Len())
	}

	byCategory := c.ListByCategory()
	counts := map[string]int{
		CategoryCustomerValue: 5,
		CategoryBehaviour:     2,
		CategoryTransactions:  4,
		CategoryMarket:        6,
		CategoryRisk:          9,
		CategoryAdvisory:      4,
		CategoryExecutive:     4,
	}
	for category, want := range counts {
		if got := len(byCategory[category]); got != want {
			t.Fatalf("category %s: expected %d capabilities, got %d", category, want, got)
		}
	}
}

func TestLookup(t *testing.T) {
	t.Parallel()

	c := New()
	d, err := c.Lookup("calculate_clv")
	if err != nil {
		t.Fatalf("Lookup() error = %v", err)
	}
	if d.MinRole != contractx.RoleClient || d.MinTier != contractx.TierNone {
		t.Fatalf("unexpected policy on calculate_clv: role=%s tier=%s", d.MinRole, d.MinTier)
	}

	_, err = c.Lookup("nope")
	if !errors.Is(err, contractx.ErrUnknownCapability) {
		t.Fatalf("expected ErrUnknownCapability, got %v", err)
	}
}

func TestPolicyShape(t *testing.T) {
	t.Parallel()

	c := New()
	for _, d := range c.Descriptors() {
		switch d.Category {
		case CategoryAdvisory:
			if d.MinRole != contractx.RoleClient || d.MinTier != contractx.TierPremium {
				t.Fatalf("advisory capability %s must be premium client only", d.Name)
			}
		case CategoryExecutive:
			if d.MinRole != contractx.RoleExecutive {
				t.Fatalf("executive capability %s must be executive only", d.Name)
			}
			if d.MinTier != contractx.TierNone {
				t.Fatalf("executive capability %s must not carry a tier", d.Name)
			}
		default:
			if d.MinRole != contractx.RoleClient || d.MinTier != contractx.TierNone {
				t.Fatalf("base capability %s must be open to every client", d.Name)
			}
		}
	}
}

func TestDescriptorsOrderStable(t *testing.T) {
	t.Parallel()

	a := New().Descriptors()
	b := New().Descriptors()
	if len(a) != len(b) {
		t.Fatalf("descriptor count differs between builds: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if a[i].Name != b[i].Name {
			t.Fatalf("order differs at %d: %s vs %s", i, a[i].Name, b[i].Name)
		}
	}
	if a[0].Name != "calculate_clv" {
		t.Fatalf("expected calculate_clv first, got %s", a[0].Name)
	}
}
