package domain

import (
	"errors"
	"math"
	"testing"
)

func standardParams() MarketParams {
	return MarketParams{Spot: 100, Strike: 100, Maturity: 1, Rate: 0.05, Vol: 0.2}
}

func TestMarketParams_Validate(t *testing.T) {
	if err := standardParams().Validate(); err != nil {
		t.Fatalf("standard params rejected: %v", err)
	}

	cases := []struct {
		name  string
		mod   func(MarketParams) MarketParams
		field string
	}{
		{"zero spot", func(p MarketParams) MarketParams { p.Spot = 0; return p }, "spot"},
		{"negative strike", func(p MarketParams) MarketParams { p.Strike = -1; return p }, "strike"},
		{"zero maturity", func(p MarketParams) MarketParams { p.Maturity = 0; return p }, "maturity"},
		{"zero vol", func(p MarketParams) MarketParams { p.Vol = 0; return p }, "vol"},
		{"nan vol", func(p MarketParams) MarketParams { p.Vol = math.NaN(); return p }, "vol"},
		{"inf rate", func(p MarketParams) MarketParams { p.Rate = math.Inf(1); return p }, "rate"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.mod(standardParams()).Validate()
			if !errors.Is(err, ErrInvalidParameter) {
				t.Fatalf("Expected ErrInvalidParameter, got %v", err)
			}
			var pe *ParamError
			if errors.As(err, &pe) && pe.Field != tc.field {
				t.Errorf("Expected field %s, got %s", tc.field, pe.Field)
			}
		})
	}

	t.Run("negative rate allowed", func(t *testing.T) {
		p := standardParams()
		p.Rate = -0.01
		if err := p.Validate(); err != nil {
			t.Errorf("negative rate should be valid, got %v", err)
		}
	})
}

func TestParseOptionKind(t *testing.T) {
	for in, want := range map[string]OptionKind{"call": Call, "PUT": Put, " c ": Call} {
		got, err := ParseOptionKind(in)
		if err != nil || got != want {
			t.Errorf("ParseOptionKind(%q) = %v, %v", in, got, err)
		}
	}

	if _, err := ParseOptionKind("straddle"); !errors.Is(err, ErrInvalidOptionKind) {
		t.Errorf("Expected ErrInvalidOptionKind, got %v", err)
	}
	if OptionKind(7).Valid() {
		t.Error("OptionKind(7) should be invalid")
	}
}

func TestParseFamily(t *testing.T) {
	f, err := ParseFamily("asian-geometric")
	if err != nil || f != FamilyAsianGeometric {
		t.Fatalf("got %v, %v", f, err)
	}
	if avg, ok := f.Averaging(); !ok || avg != Geometric {
		t.Errorf("Expected geometric averaging, got %v", avg)
	}
	if _, ok := FamilyDigital.Averaging(); ok {
		t.Error("Digital should not have an averaging kind")
	}
	if _, err := ParseFamily("barrier"); !errors.Is(err, ErrInvalidParameter) {
		t.Errorf("Expected ErrInvalidParameter, got %v", err)
	}
}

func TestMoneyness(t *testing.T) {
	p := standardParams()
	if m := p.Moneyness(Call); m != "ATM" {
		t.Errorf("Expected ATM, got %s", m)
	}
	if m := p.WithSpot(120).Moneyness(Call); m != "ITM" {
		t.Errorf("Expected ITM call, got %s", m)
	}
	if m := p.WithSpot(120).Moneyness(Put); m != "OTM" {
		t.Errorf("Expected OTM put, got %s", m)
	}
}

func TestMarketState_Aggregate(t *testing.T) {
	s := MarketState{
		Positions: []PositionValue{
			{Position: Position{Quantity: 2}, Price: 10, Greeks: Greeks{Delta: 0.5, Gamma: 0.02, Vega: 0.4}},
			{Position: Position{Quantity: -1}, Price: 5, Greeks: Greeks{Delta: -0.4, Gamma: 0.02, Vega: 0.4}},
			{Position: Position{Quantity: 100}, Err: "invalid parameter"},
		},
	}
	s.Aggregate()

	if math.Abs(s.NetDelta-1.4) > 1e-12 {
		t.Errorf("Expected net delta 1.4, got %v", s.NetDelta)
	}
	if math.Abs(s.MarkValue-15) > 1e-12 {
		t.Errorf("Expected mark value 15, got %v", s.MarkValue)
	}
	if math.Abs(s.NetGamma-0.02) > 1e-12 {
		t.Errorf("Expected net gamma 0.02, got %v", s.NetGamma)
	}
}
