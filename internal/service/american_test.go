package service

import (
	"context"
	"errors"
	"math"
	"testing"

	"options_go/internal/domain"
	"options_go/internal/pricing"
)

func TestEarlyExercise(t *testing.T) {
	svc, _ := newTestService(nil)
	ctx := context.Background()

	t.Run("put premium", func(t *testing.T) {
		rep, err := svc.EarlyExercise(ctx, atm, domain.Put, 100)
		if err != nil {
			t.Fatalf("EarlyExercise: %v", err)
		}
		am, _ := pricing.Binomial(atm, 100, domain.Put, domain.American)
		eu, _ := pricing.Binomial(atm, 100, domain.Put, domain.European)
		if rep.American != am || rep.European != eu {
			t.Errorf("prices %v/%v, want %v/%v", rep.American, rep.European, am, eu)
		}
		if got, _ := rep.Premium.Float64(); math.Abs(got-(am-eu)) > 5e-5 {
			t.Errorf("premium %v, want %v", rep.Premium, am-eu)
		}
		if !rep.Valuable || rep.Steps != 100 {
			t.Errorf("unexpected report %+v", rep)
		}
	})

	t.Run("call has no premium", func(t *testing.T) {
		rep, err := svc.EarlyExercise(ctx, atm, domain.Call, 100)
		if err != nil {
			t.Fatalf("EarlyExercise: %v", err)
		}
		if rep.Valuable || !rep.Premium.IsZero() {
			t.Errorf("call premium %v should be zero", rep.Premium)
		}
	})

	t.Run("default steps", func(t *testing.T) {
		rep, err := svc.EarlyExercise(ctx, atm, domain.Put, 0)
		if err != nil {
			t.Fatalf("EarlyExercise: %v", err)
		}
		if rep.Steps != 200 {
			t.Errorf("steps = %d, want the configured 200", rep.Steps)
		}
	})

	t.Run("invalid params", func(t *testing.T) {
		if _, err := svc.EarlyExercise(ctx, atm.WithVol(0), domain.Put, 50); !errors.Is(err, domain.ErrInvalidParameter) {
			t.Errorf("expected ErrInvalidParameter, got %v", err)
		}
	})
}

func TestTerminalLattice(t *testing.T) {
	svc, _ := newTestService(nil)
	l, err := svc.TerminalLattice(context.Background(), atm, 4)
	if err != nil {
		t.Fatalf("TerminalLattice: %v", err)
	}
	u := math.Exp(atm.Vol * math.Sqrt(atm.Maturity/4))
	for j := 0; j <= 4; j++ {
		want := atm.Spot * math.Pow(u, float64(4-j)) * math.Pow(1/u, float64(j))
		if math.Abs(l.Price(4, j)-want) > 1e-9 {
			t.Errorf("node %d = %v, want %v", j, l.Price(4, j), want)
		}
	}
}
