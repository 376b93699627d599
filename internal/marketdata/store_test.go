package marketdata

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

const fixture = `{"Meta Data": {"1. Information": "Daily Prices", "2. Symbol": "AAPL", "3. Last Refreshed": "2025-10-28", "4. Output Size": "Compact", "5. Time Zone": "US/Eastern"}, "Time Series (Daily)": {"2025-10-27": {"1. buy price": "150.0", "2. high": "152.0", "3. low": "149.0", "4. sell price": "151.5", "5. volume": "1000"}, "2025-10-28": {"1. buy price": "151.0", "2. high": "153.0", "3. low": "150.0", "4. sell price": "152.0", "5. volume": "1200"}}}
{"Meta Data": {"2. Symbol": "MSFT"}, "Time Series (Daily)": {"2025-10-27": {"1. buy price": "400.0", "2. high": "405.0", "3. low": "398.0", "4. sell price": "404.0", "5. volume": "900"}}}
not a json line
`

func writeFixture(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "merged.jsonl")
	if err := os.WriteFile(path, []byte(fixture), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	return path
}

func TestOpenStoreAndPrice(t *testing.T) {
	store, err := OpenStore(writeFixture(t), nil)
	if err != nil {
		t.Fatalf("OpenStore returned error: %v", err)
	}

	price, err := store.Price("AAPL", "2025-10-27")
	if err != nil {
		t.Fatalf("Price returned error: %v", err)
	}
	if price != 150.0 {
		t.Errorf("expected opening price 150.0, got %.2f", price)
	}

	if _, err := store.Price("AAPL", "2025-01-01"); !errors.Is(err, ErrNoBar) {
		t.Errorf("expected ErrNoBar for missing date, got %v", err)
	}
	if _, err := store.Price("TSLA", "2025-10-27"); !errors.Is(err, ErrNoBar) {
		t.Errorf("expected ErrNoBar for unknown symbol, got %v", err)
	}
}

func TestStorePricesByDate(t *testing.T) {
	store, err := OpenStore(writeFixture(t), nil)
	if err != nil {
		t.Fatalf("OpenStore returned error: %v", err)
	}

	prices := store.Prices("2025-10-27")
	if len(prices) != 2 {
		t.Fatalf("expected 2 prices, got %d", len(prices))
	}
	if prices["AAPL"] != 150.0 || prices["MSFT"] != 400.0 {
		t.Errorf("unexpected prices: %v", prices)
	}

	if got := store.Prices("2025-10-28"); len(got) != 1 {
		t.Errorf("expected only AAPL on 2025-10-28, got %v", got)
	}
}

func TestStoreCloses(t *testing.T) {
	store, err := OpenStore(writeFixture(t), nil)
	if err != nil {
		t.Fatalf("OpenStore returned error: %v", err)
	}

	closes := store.Closes("AAPL", "2025-10-28", 10)
	if len(closes) != 2 {
		t.Fatalf("expected 2 closes, got %d", len(closes))
	}
	if closes[0] != 151.5 || closes[1] != 152.0 {
		t.Errorf("closes out of order: %v", closes)
	}

	// The cutoff date is inclusive; later bars are excluded.
	closes = store.Closes("AAPL", "2025-10-27", 10)
	if len(closes) != 1 || closes[0] != 151.5 {
		t.Errorf("unexpected closes up to 2025-10-27: %v", closes)
	}
}

func TestStoreMergeAndSave(t *testing.T) {
	path := writeFixture(t)
	store, err := OpenStore(path, nil)
	if err != nil {
		t.Fatalf("OpenStore returned error: %v", err)
	}

	store.Merge("AAPL", "2025-10-29", map[string]Bar{
		"2025-10-29": {Open: "152.5", High: "154", Low: "151", Close: "153", Volume: "1100"},
	})
	store.Merge("NVDA", "2025-10-29", map[string]Bar{
		"2025-10-29": {Open: "900", High: "910", Low: "890", Close: "905", Volume: "2000"},
	})
	if err := store.Save(); err != nil {
		t.Fatalf("Save returned error: %v", err)
	}

	reloaded, err := OpenStore(path, nil)
	if err != nil {
		t.Fatalf("reload returned error: %v", err)
	}

	// Merged days extend the existing series without dropping old ones.
	if price, err := reloaded.Price("AAPL", "2025-10-29"); err != nil || price != 152.5 {
		t.Errorf("merged bar lost: price=%.2f err=%v", price, err)
	}
	if price, err := reloaded.Price("AAPL", "2025-10-27"); err != nil || price != 150.0 {
		t.Errorf("existing bar lost: price=%.2f err=%v", price, err)
	}
	if price, err := reloaded.Price("NVDA", "2025-10-29"); err != nil || price != 900.0 {
		t.Errorf("new symbol lost: price=%.2f err=%v", price, err)
	}
}

func TestOpenStoreMissingFile(t *testing.T) {
	store, err := OpenStore(filepath.Join(t.TempDir(), "merged.jsonl"), nil)
	if err != nil {
		t.Fatalf("OpenStore on missing file returned error: %v", err)
	}
	if len(store.Symbols()) != 0 {
		t.Errorf("expected empty store, got %v", store.Symbols())
	}
}

func TestBarPriceParsing(t *testing.T) {
	bar := Bar{Open: "150.5", Close: "abc"}
	if open, err := bar.OpenPrice(); err != nil || open != 150.5 {
		t.Errorf("OpenPrice: got %.2f, %v", open, err)
	}
	if _, err := bar.ClosePrice(); err == nil {
		t.Errorf("expected error for unparseable close")
	}
	if _, err := (Bar{Open: "-1"}).OpenPrice(); err == nil {
		t.Errorf("expected error for non-positive price")
	}
}
