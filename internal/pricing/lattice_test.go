package pricing

import (
	"errors"
	"math"
	"testing"

	"options_go/internal/domain"
)

func TestBinomial_ConvergesToClosedForm(t *testing.T) {
	bs, _ := BlackScholes(atm, domain.Call)

	v100, err := Binomial(atm, 100, domain.Call, domain.European)
	if err != nil {
		t.Fatal(err)
	}
	if v100 < 10.43 || v100 > 10.46 {
		t.Errorf("N=100 call = %v, want within [10.43, 10.46]", v100)
	}

	v500, err := Binomial(atm, 500, domain.Call, domain.European)
	if err != nil {
		t.Fatal(err)
	}
	// plain CRR at the money carries an O(1/N) bias of about 0.004 at N=500
	approx(t, "N=500 call", v500, bs, 5e-3)

	v501, _ := Binomial(atm, 501, domain.Call, domain.European)
	approx(t, "N=500/501 call average", (v500+v501)/2, bs, 1e-3)

	v1000, _ := Binomial(atm, 1000, domain.Call, domain.European)
	if math.Abs(v1000-bs) >= math.Abs(v500-bs) {
		t.Errorf("N=1000 error %v should be below N=500 error %v", math.Abs(v1000-bs), math.Abs(v500-bs))
	}

	bsPut, _ := BlackScholes(atm, domain.Put)
	p500, _ := Binomial(atm, 500, domain.Put, domain.European)
	p501, _ := Binomial(atm, 501, domain.Put, domain.European)
	approx(t, "N=500 put", p500, bsPut, 5e-3)
	approx(t, "N=500/501 put average", (p500+p501)/2, bsPut, 1e-3)
}

func TestBinomial_AmericanExercise(t *testing.T) {
	t.Run("put premium", func(t *testing.T) {
		eu, _ := Binomial(atm, 300, domain.Put, domain.European)
		am, err := Binomial(atm, 300, domain.Put, domain.American)
		if err != nil {
			t.Fatal(err)
		}
		if !(am > eu) {
			t.Errorf("American put %v should exceed European %v", am, eu)
		}
	})

	t.Run("call equals european", func(t *testing.T) {
		eu, _ := Binomial(atm, 300, domain.Call, domain.European)
		am, _ := Binomial(atm, 300, domain.Call, domain.American)
		approx(t, "american call", am, eu, 1e-10)
	})

	t.Run("never below european", func(t *testing.T) {
		for _, s := range []float64{60, 90, 100, 110, 150} {
			p := atm.WithSpot(s)
			for _, kind := range []domain.OptionKind{domain.Call, domain.Put} {
				eu, _ := Binomial(p, 120, kind, domain.European)
				am, _ := Binomial(p, 120, kind, domain.American)
				if am < eu-1e-12 {
					t.Errorf("S=%v %s: American %v < European %v", s, kind, am, eu)
				}
			}
		}
	})
}

func TestBuildLattice_Structure(t *testing.T) {
	l, err := BuildLattice(atm, 4, domain.Put, domain.American)
	if err != nil {
		t.Fatal(err)
	}

	approx(t, "root price", l.Price(0, 0), 100, 0)
	approx(t, "u*d", l.Up*l.Down, 1, 1e-12)
	approx(t, "up node", l.Price(1, 0), 100*l.Up, 1e-12)
	approx(t, "recombine", l.Price(2, 1), 100, 1e-9)
	approx(t, "bottom", l.Price(4, 4), 100*math.Pow(l.Down, 4), 1e-9)

	for j := 0; j <= 4; j++ {
		approx(t, "terminal payoff", l.Value(4, j), math.Max(100-l.Price(4, j), 0), 0)
	}
	for i := 0; i <= 4; i++ {
		for j := 0; j <= i; j++ {
			if l.Value(i, j) < math.Max(100-l.Price(i, j), 0) {
				t.Errorf("node (%d,%d) below intrinsic", i, j)
			}
		}
	}
	if l.Prob <= 0 || l.Prob >= 1 {
		t.Errorf("probability %v out of range", l.Prob)
	}
}

func TestBinomial_Errors(t *testing.T) {
	cases := []struct {
		name  string
		p     domain.MarketParams
		steps int
		kind  domain.OptionKind
		style domain.ExerciseStyle
		want  error
	}{
		{"zero steps", atm, 0, domain.Call, domain.European, domain.ErrInvalidParameter},
		{"bad kind", atm, 10, domain.OptionKind(9), domain.European, domain.ErrInvalidOptionKind},
		{"bad style", atm, 10, domain.Call, domain.ExerciseStyle(0), domain.ErrInvalidParameter},
		{"zero vol", atm.WithVol(0), 10, domain.Call, domain.European, domain.ErrInvalidParameter},
		// e^{r dt} > u pushes the up probability above one
		{"degenerate tree", domain.MarketParams{Spot: 100, Strike: 100, Maturity: 1, Rate: 0.5, Vol: 0.01}, 1, domain.Call, domain.European, domain.ErrInvalidParameter},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := Binomial(tc.p, tc.steps, tc.kind, tc.style); !errors.Is(err, tc.want) {
				t.Errorf("Expected %v, got %v", tc.want, err)
			}
		})
	}
}

func BenchmarkBinomial_American500(b *testing.B) {
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		_, _ = Binomial(atm, 500, domain.Put, domain.American)
	}
}
