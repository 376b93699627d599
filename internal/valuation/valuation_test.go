package valuation

import (
	"reflect"
	"testing"

	"equities-ai/internal/ledger"
)

func TestValueTotalsHoldingsAndCash(t *testing.T) {
	snapshot := ledger.Snapshot{
		ledger.CashKey: 2000,
		"AAPL":         10,
		"MSFT":         5,
		"NVDA":         0,
	}
	prices := map[string]float64{
		"AAPL": 150,
		"MSFT": 400,
		"NVDA": 900,
	}

	result := Value(snapshot, prices)

	if result.Cash != 2000 {
		t.Errorf("expected cash 2000, got %.2f", result.Cash)
	}
	want := 2000 + 10*150.0 + 5*400.0
	if result.Total != want {
		t.Errorf("expected total %.2f, got %.2f", want, result.Total)
	}
	if len(result.Missing) != 0 {
		t.Errorf("expected no missing symbols, got %v", result.Missing)
	}
	if result.Holdings["AAPL"] != 1500 || result.Holdings["MSFT"] != 2000 {
		t.Errorf("unexpected holding values: %v", result.Holdings)
	}
	// Zero positions are not holdings and must not appear.
	if _, ok := result.Holdings["NVDA"]; ok {
		t.Errorf("zero position valued: %v", result.Holdings)
	}
}

func TestValueReportsMissingPrices(t *testing.T) {
	snapshot := ledger.Snapshot{
		ledger.CashKey: 1000,
		"AAPL":         10,
		"TSLA":         3,
		"AMZN":         2,
	}
	prices := map[string]float64{
		"AAPL": 100,
		"AMZN": 0, // non-positive prices count as missing
	}

	result := Value(snapshot, prices)

	if want := 1000 + 10*100.0; result.Total != want {
		t.Errorf("expected total %.2f, got %.2f", want, result.Total)
	}
	if !reflect.DeepEqual(result.Missing, []string{"AMZN", "TSLA"}) {
		t.Errorf("expected missing [AMZN TSLA], got %v", result.Missing)
	}
}

func TestValueCashOnly(t *testing.T) {
	snapshot := ledger.NewSnapshot([]string{"AAPL"}, 10000)
	result := Value(snapshot, nil)
	if result.Total != 10000 || result.Cash != 10000 {
		t.Errorf("expected cash-only total 10000, got %+v", result)
	}
	if len(result.Missing) != 0 {
		t.Errorf("zero positions must not be reported missing: %v", result.Missing)
	}
}
