package news

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadMissingFileIsNotAnError(t *testing.T) {
	bundle, err := Load(filepath.Join(t.TempDir(), "market_news.json"), nil)
	if err != nil {
		t.Fatalf("Load returned error for missing file: %v", err)
	}
	if bundle != nil {
		t.Fatalf("expected nil bundle for missing file")
	}
	if bundle.Summary() != "" {
		t.Errorf("nil bundle summary must be empty")
	}
}

func TestLoadAndSummary(t *testing.T) {
	payload := `{
		"trading_date": "2025-10-27",
		"collected_at": "2025-10-27 08:00:00",
		"market_overview": [
			{"title": "Markets rally", "description": "tech leads gains"},
			{"title": "Fed watch", "description": ""}
		],
		"sector_news": [
			{"title": "Chip demand surges", "description": "AI capex"}
		],
		"top_stocks_news": {
			"AAPL": [{"title": "iPhone sales beat", "description": "strong quarter"}]
		}
	}`
	path := filepath.Join(t.TempDir(), "market_news.json")
	if err := os.WriteFile(path, []byte(payload), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	bundle, err := Load(path, nil)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if bundle.TradingDate != "2025-10-27" {
		t.Errorf("unexpected trading date: %q", bundle.TradingDate)
	}

	summary := bundle.Summary()
	for _, want := range []string{
		"Market overview:",
		"Markets rally: tech leads gains",
		"Fed watch",
		"Sector news:",
		"Chip demand surges",
		"AAPL:",
		"iPhone sales beat",
	} {
		if !strings.Contains(summary, want) {
			t.Errorf("summary missing %q\n%s", want, summary)
		}
	}
}

func TestSummaryLimitsArticles(t *testing.T) {
	bundle := &Bundle{}
	for i := 0; i < 10; i++ {
		bundle.MarketOverview = append(bundle.MarketOverview, Article{Title: "headline"})
	}
	summary := bundle.Summary()
	if got := strings.Count(summary, "headline"); got != maxArticlesPerSection {
		t.Errorf("expected %d articles in summary, got %d", maxArticlesPerSection, got)
	}
}

func TestLoadRejectsMalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "market_news.json")
	if err := os.WriteFile(path, []byte("not json"), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	if _, err := Load(path, nil); err == nil {
		t.Errorf("expected error for malformed file")
	}
}
