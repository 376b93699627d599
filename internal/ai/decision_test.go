package ai

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"equities-ai/internal/ledger"
	"equities-ai/internal/news"
)

func TestParseDecisionPlainJSON(t *testing.T) {
	content := `{"analysis": "tech momentum", "actions": [{"action": "buy", "symbol": "AAPL", "amount": 10}]}`

	decision, err := ParseDecision(content)
	if err != nil {
		t.Fatalf("ParseDecision returned error: %v", err)
	}
	if decision.Analysis != "tech momentum" {
		t.Errorf("unexpected analysis: %q", decision.Analysis)
	}
	if len(decision.Actions) != 1 || decision.Actions[0].Symbol != "AAPL" || decision.Actions[0].Amount != 10 {
		t.Errorf("unexpected actions: %+v", decision.Actions)
	}
}

func TestParseDecisionStripsCodeFence(t *testing.T) {
	content := "Here is my decision:\n```json\n{\"analysis\": \"hold\", \"actions\": []}\n```\nGood luck."

	decision, err := ParseDecision(content)
	if err != nil {
		t.Fatalf("ParseDecision returned error: %v", err)
	}
	if decision.Analysis != "hold" || len(decision.Actions) != 0 {
		t.Errorf("unexpected decision: %+v", decision)
	}
}

func TestParseDecisionSurroundingText(t *testing.T) {
	content := `Sure! {"analysis": "buy the dip", "actions": [{"action": "sell", "symbol": "MSFT", "amount": 5}]} Done.`

	decision, err := ParseDecision(content)
	if err != nil {
		t.Fatalf("ParseDecision returned error: %v", err)
	}
	if decision.Actions[0].Action != "sell" || decision.Actions[0].Amount != 5 {
		t.Errorf("unexpected actions: %+v", decision.Actions)
	}
}

func TestParseDecisionRejectsInvalid(t *testing.T) {
	cases := []struct {
		name    string
		content string
	}{
		{"no json", "I cannot decide today."},
		{"bad action", `{"analysis": "x", "actions": [{"action": "hold", "symbol": "AAPL", "amount": 1}]}`},
		{"missing symbol", `{"analysis": "x", "actions": [{"action": "buy", "symbol": "", "amount": 1}]}`},
		{"zero amount", `{"analysis": "x", "actions": [{"action": "buy", "symbol": "AAPL", "amount": 0}]}`},
	}
	for _, tc := range cases {
		if _, err := ParseDecision(tc.content); err == nil {
			t.Errorf("%s: expected error", tc.name)
		}
	}
}

func TestDecisionIntentsNormalization(t *testing.T) {
	decision := Decision{
		Analysis: "fallback reason",
		Actions: []Action{
			{Action: "BUY", Symbol: "aapl", Amount: 10, Reason: "earnings"},
			{Action: "sell", Symbol: "msft", Amount: 5},
		},
	}

	intents := decision.Intents()
	if len(intents) != 2 {
		t.Fatalf("expected 2 intents, got %d", len(intents))
	}
	if intents[0].Action != ledger.ActionBuy || intents[0].Symbol != "AAPL" {
		t.Errorf("first intent not normalized: %+v", intents[0])
	}
	if intents[0].Reason != "earnings" {
		t.Errorf("action reason not preserved: %q", intents[0].Reason)
	}
	if intents[1].Reason != "fallback reason" {
		t.Errorf("expected analysis as fallback reason, got %q", intents[1].Reason)
	}
}

func TestLoadDecisionFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "decision.json")
	payload := `{"analysis": "external", "actions": [{"action": "buy", "symbol": "NVDA", "amount": 2}]}`
	if err := os.WriteFile(path, []byte(payload), 0o644); err != nil {
		t.Fatalf("write decision file: %v", err)
	}

	decision, err := LoadDecisionFile(path)
	if err != nil {
		t.Fatalf("LoadDecisionFile returned error: %v", err)
	}
	if decision.Actions[0].Symbol != "NVDA" {
		t.Errorf("unexpected decision: %+v", decision)
	}

	if _, err := LoadDecisionFile(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Errorf("expected error for missing file")
	}
}

func TestBuildPromptContent(t *testing.T) {
	snapshot := ledger.Snapshot{
		ledger.CashKey: 8500,
		"AAPL":         10,
	}
	prices := map[string]float64{"AAPL": 150, "MSFT": 400}
	bundle := &news.Bundle{
		MarketOverview: []news.Article{{Title: "Markets rally", Description: "tech leads"}},
	}

	prompt, err := BuildPrompt("2025-10-27", snapshot, prices, nil, bundle)
	if err != nil {
		t.Fatalf("BuildPrompt returned error: %v", err)
	}

	for _, want := range []string{
		"2025-10-27",
		"AAPL: 10 shares @ $150.00 = $1500.00",
		"CASH: $8500.00",
		"Total Value: $10000.00",
		"MSFT: $400.00",
		"Markets rally",
		`"actions"`,
	} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
}

func TestBuildPromptNoHoldingsNoNews(t *testing.T) {
	snapshot := ledger.NewSnapshot([]string{"AAPL"}, 10000)

	prompt, err := BuildPrompt("2025-10-27", snapshot, map[string]float64{"AAPL": 1}, nil, nil)
	if err != nil {
		t.Fatalf("BuildPrompt returned error: %v", err)
	}
	if !strings.Contains(prompt, "(No holdings)") {
		t.Errorf("prompt missing empty-holdings marker")
	}
	if strings.Contains(prompt, "Market News") {
		t.Errorf("prompt must omit news section when bundle is nil")
	}
}
