package indicator

import (
	"math"
	"testing"
)

func TestComputeRequiresEnoughBars(t *testing.T) {
	closes := make([]float64, minBars-1)
	for i := range closes {
		closes[i] = 100
	}
	if _, err := Compute(closes); err == nil {
		t.Fatalf("expected error for short series")
	}
}

func TestComputeOnRisingSeries(t *testing.T) {
	closes := make([]float64, 25)
	for i := range closes {
		closes[i] = float64(i + 1)
	}

	features, err := Compute(closes)
	if err != nil {
		t.Fatalf("Compute returned error: %v", err)
	}

	if features.Close != 25 {
		t.Errorf("expected close 25, got %.2f", features.Close)
	}
	// SMA20 over the last 20 values (6..25) is 15.5.
	if math.Abs(features.SMA20-15.5) > 1e-9 {
		t.Errorf("expected SMA20 15.5, got %.4f", features.SMA20)
	}
	// A strictly rising series pins RSI at 100.
	if math.Abs(features.RSI14-100) > 1e-6 {
		t.Errorf("expected RSI14 100, got %.4f", features.RSI14)
	}
	// 20 bars back the close was 5, so the return is +400%.
	if math.Abs(features.Return20-400) > 1e-9 {
		t.Errorf("expected 400%% return, got %.2f", features.Return20)
	}
}

func TestComputeOnFlatSeries(t *testing.T) {
	closes := make([]float64, 30)
	for i := range closes {
		closes[i] = 100
	}

	features, err := Compute(closes)
	if err != nil {
		t.Fatalf("Compute returned error: %v", err)
	}
	if features.SMA20 != 100 {
		t.Errorf("expected SMA20 100, got %.2f", features.SMA20)
	}
	if features.Return20 != 0 {
		t.Errorf("expected zero return, got %.2f", features.Return20)
	}
}
