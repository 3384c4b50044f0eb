package pricing

import (
	"errors"
	"math"
	"testing"

	"options_go/internal/domain"
)

var atm = domain.MarketParams{Spot: 100, Strike: 100, Maturity: 1, Rate: 0.05, Vol: 0.2}

func approx(t *testing.T, name string, got, want, tol float64) {
	t.Helper()
	if math.Abs(got-want) > tol {
		t.Errorf("%s = %.10f, want %.10f (tol %g)", name, got, want, tol)
	}
}

func TestBlackScholes_KnownValues(t *testing.T) {
	call, err := BlackScholes(atm, domain.Call)
	if err != nil {
		t.Fatalf("call: %v", err)
	}
	put, err := BlackScholes(atm, domain.Put)
	if err != nil {
		t.Fatalf("put: %v", err)
	}

	approx(t, "call", call, 10.450583572185565, 1e-8)
	approx(t, "put", put, 5.573526022256971, 1e-8)
}

func TestBlackScholes_PutCallParity(t *testing.T) {
	for _, s := range []float64{50, 80, 100, 120, 200} {
		for _, vol := range []float64{0.05, 0.2, 0.8} {
			for _, T := range []float64{0.1, 1, 3} {
				p := domain.MarketParams{Spot: s, Strike: 100, Maturity: T, Rate: 0.03, Vol: vol}
				c, _ := BlackScholes(p, domain.Call)
				q, _ := BlackScholes(p, domain.Put)
				parity := s - p.Strike*math.Exp(-p.Rate*T)
				if math.Abs(c-q-parity) > 1e-10 {
					t.Errorf("parity broken at S=%v vol=%v T=%v: C-P=%v, want %v", s, vol, T, c-q, parity)
				}
			}
		}
	}
}

func TestClosedFormGreeks(t *testing.T) {
	t.Run("call", func(t *testing.T) {
		g, err := ClosedFormGreeks(atm, domain.Call)
		if err != nil {
			t.Fatal(err)
		}
		approx(t, "delta", g.Delta, 0.6368306511756191, 1e-9)
		approx(t, "gamma", g.Gamma, 0.018762017345846895, 1e-9)
		approx(t, "vega", g.Vega, 0.3752403469169379, 1e-9)
		approx(t, "theta", g.Theta, -6.414027546438197/365, 1e-9)
		approx(t, "rho", g.Rho, 0.5323248154537634, 1e-9)
	})

	t.Run("put", func(t *testing.T) {
		call, _ := ClosedFormGreeks(atm, domain.Call)
		put, err := ClosedFormGreeks(atm, domain.Put)
		if err != nil {
			t.Fatal(err)
		}
		approx(t, "delta", put.Delta, call.Delta-1, 1e-12)
		approx(t, "gamma", put.Gamma, call.Gamma, 1e-12)
		approx(t, "vega", put.Vega, call.Vega, 1e-12)
		// theta_put - theta_call = rK e^{-rT} per year
		approx(t, "theta", put.Theta-call.Theta, 0.05*100*math.Exp(-0.05)/365, 1e-12)
		approx(t, "rho", put.Rho, -0.4189046090469506, 1e-9)
	})
}

func TestBlackScholes_Errors(t *testing.T) {
	if _, err := BlackScholes(atm, domain.OptionKind(0)); !errors.Is(err, domain.ErrInvalidOptionKind) {
		t.Errorf("Expected ErrInvalidOptionKind, got %v", err)
	}
	if _, err := BlackScholes(atm.WithMaturity(0), domain.Call); !errors.Is(err, domain.ErrInvalidParameter) {
		t.Errorf("Expected ErrInvalidParameter for T=0, got %v", err)
	}
	if _, err := ClosedFormGreeks(atm.WithVol(0), domain.Put); !errors.Is(err, domain.ErrInvalidParameter) {
		t.Errorf("Expected ErrInvalidParameter for sigma=0, got %v", err)
	}
}
