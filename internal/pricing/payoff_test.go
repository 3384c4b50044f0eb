package pricing

import (
	"errors"
	"math"
	"testing"

	"options_go/internal/domain"
)

func TestEuropeanPayoff(t *testing.T) {
	tests := []struct {
		st   float64
		kind domain.OptionKind
		want float64
	}{
		{120, domain.Call, 20},
		{80, domain.Call, 0},
		{80, domain.Put, 20},
		{120, domain.Put, 0},
		{100, domain.Call, 0},
	}
	for _, tt := range tests {
		got, err := EuropeanPayoff(tt.st, 100, tt.kind)
		if err != nil || got != tt.want {
			t.Errorf("EuropeanPayoff(%v, %s) = %v, %v; want %v", tt.st, tt.kind, got, err, tt.want)
		}
	}

	if _, err := EuropeanPayoff(100, 100, domain.OptionKind(3)); !errors.Is(err, domain.ErrInvalidOptionKind) {
		t.Errorf("Expected ErrInvalidOptionKind, got %v", err)
	}
}

func TestDigitalPayoff(t *testing.T) {
	t.Run("pays payout strictly in the money", func(t *testing.T) {
		if v, _ := DigitalPayoff(101, 100, domain.Call, 5); v != 5 {
			t.Errorf("call ITM = %v, want 5", v)
		}
		if v, _ := DigitalPayoff(99, 100, domain.Put, 5); v != 5 {
			t.Errorf("put ITM = %v, want 5", v)
		}
		if v, _ := DigitalPayoff(99, 100, domain.Call, 5); v != 0 {
			t.Errorf("call OTM = %v, want 0", v)
		}
	})

	t.Run("zero at the strike", func(t *testing.T) {
		for _, kind := range []domain.OptionKind{domain.Call, domain.Put} {
			if v, _ := DigitalPayoff(100, 100, kind, 1); v != 0 {
				t.Errorf("%s at strike = %v, want 0", kind, v)
			}
		}
	})
}

func TestAsianPayoff_ExcludesInitialPrice(t *testing.T) {
	path := []float64{100, 110, 120}

	arith, err := AsianPayoff(path, 100, domain.Call, domain.Arithmetic)
	if err != nil {
		t.Fatal(err)
	}
	if arith != 15 {
		t.Errorf("arithmetic payoff = %v, want 15", arith)
	}

	geo, err := AsianPayoff(path, 100, domain.Call, domain.Geometric)
	if err != nil {
		t.Fatal(err)
	}
	approx(t, "geometric payoff", geo, math.Sqrt(110*120)-100, 1e-10)

	if _, err := AsianPayoff([]float64{100}, 100, domain.Call, domain.Arithmetic); !errors.Is(err, domain.ErrInvalidParameter) {
		t.Errorf("Expected ErrInvalidParameter for a path without monitoring dates, got %v", err)
	}
}

func TestAsianPayoff_ArithmeticDominatesGeometric(t *testing.T) {
	ps, err := SimulatePaths(atm, 500, 24, FixedSeed(11).New())
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 500; i++ {
		a, _ := AsianPayoff(ps.Row(i), 100, domain.Call, domain.Arithmetic)
		g, _ := AsianPayoff(ps.Row(i), 100, domain.Call, domain.Geometric)
		if a < g {
			t.Fatalf("path %d: arithmetic %v < geometric %v", i, a, g)
		}
	}
}
