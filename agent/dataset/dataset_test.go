package dataset

import (
	"errors"
	"testing"
)

func mustLoad(t *testing.T) *Dataset {
	t.Helper()
	d, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	return d
}

func TestLoadEmbeddedFixtures(t *testing.T) {
	t.Parallel()

	d := mustLoad(t)
	if len(d.Customers()) == 0 {
		t.Fatal("embedded dataset has no customers")
	}
	if len(d.Competition()) == 0 {
		t.Fatal("embedded dataset has no competitor offers")
	}
	if len(d.Market().Sectors) == 0 {
		t.Fatal("embedded dataset has no sector stats")
	}
}

func TestCustomerLookup(t *testing.T) {
	t.Parallel()

	d := mustLoad(t)
	c, err := d.Customer("CUST001")
	if err != nil {
		t.Fatalf("Customer(CUST001) error = %v", err)
	}
	if c.Name != "Laura Mendez" {
		t.Fatalf("unexpected name %q", c.Name)
	}

	if _, err := d.Customer("CUST999"); !errors.Is(err, ErrCustomerNotFound) {
		t.Fatalf("expected ErrCustomerNotFound, got %v", err)
	}
}

func TestTransactionsSortedByDate(t *testing.T) {
	t.Parallel()

	d := mustLoad(t)
	txs := d.TransactionsFor("CUST001")
	if len(txs) < 2 {
		t.Fatalf("expected transactions for CUST001, got %d", len(txs))
	}
	for i := 1; i < len(txs); i++ {
		if txs[i].Date.Before(txs[i-1].Date) {
			t.Fatalf("transactions out of order at %d: %s before %s", i, txs[i].Date, txs[i-1].Date)
		}
	}
}

func TestAccessorsReturnCopies(t *testing.T) {
	t.Parallel()

	d := mustLoad(t)
	txs := d.TransactionsFor("CUST001")
	if len(txs) == 0 {
		t.Fatal("expected transactions for CUST001")
	}
	txs[0].Amount = -1
	if d.TransactionsFor("CUST001")[0].Amount == -1 {
		t.Fatal("TransactionsFor leaked internal slice")
	}
}
