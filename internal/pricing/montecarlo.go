package pricing

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"

	"options_go/internal/domain"
)

const (
	DefaultPayout    = 1.0
	DefaultBatchRows = 4096
)

// MCConfig configures one Monte Carlo valuation.
type MCConfig struct {
	Family      domain.Family
	Kind        domain.OptionKind
	Simulations int
	Steps       int     // monitoring steps, Asian only
	Payout      *float64 // digital cash amount, nil pays DefaultPayout
	BatchRows   int     // Asian paths simulated per batch
	Source      RandSource
	KeepSamples bool
}

// PayoutOf returns a digital payout for MCConfig. Zero is a valid payout.
func PayoutOf(v float64) *float64 {
	return &v
}

func (c MCConfig) withDefaults() MCConfig {
	if c.Payout == nil {
		c.Payout = PayoutOf(DefaultPayout)
	}
	if c.BatchRows <= 0 {
		c.BatchRows = DefaultBatchRows
	}
	if c.Source == nil {
		c.Source = Entropy{}
	}
	return c
}

func (c MCConfig) validate(p domain.MarketParams) error {
	if !c.Kind.Valid() {
		return fmt.Errorf("%w: %d", domain.ErrInvalidOptionKind, int(c.Kind))
	}
	if err := p.Validate(); err != nil {
		return err
	}
	if c.Simulations <= 0 {
		return domain.InvalidParam("simulations", c.Simulations)
	}
	switch c.Family {
	case domain.FamilyEuropean:
	case domain.FamilyDigital:
		if math.IsNaN(*c.Payout) || math.IsInf(*c.Payout, 0) {
			return domain.InvalidParam("payout", *c.Payout)
		}
	case domain.FamilyAsianArithmetic, domain.FamilyAsianGeometric:
		if c.Steps <= 0 {
			return domain.InvalidParam("steps", c.Steps)
		}
	default:
		return domain.InvalidParam("family", c.Family)
	}
	return nil
}

// Sample is one simulated outcome. Underlying is S_T, or the path average for Asian options.
type Sample struct {
	Underlying float64
	Payoff     float64
}

// MCRun is the full output of a Monte Carlo valuation.
type MCRun struct {
	Estimate   domain.Estimate
	InTheMoney float64 // share of simulations finishing in the money
	Samples    []Sample
}

// MonteCarlo prices the option and returns the discounted mean with its standard error.
func MonteCarlo(p domain.MarketParams, cfg MCConfig) (domain.Estimate, error) {
	run, err := RunMonteCarlo(p, cfg)
	if err != nil {
		return domain.Estimate{}, err
	}
	return run.Estimate, nil
}

// RunMonteCarlo is MonteCarlo plus the in-the-money share and, when requested, the samples.
func RunMonteCarlo(p domain.MarketParams, cfg MCConfig) (*MCRun, error) {
	cfg = cfg.withDefaults()
	if err := cfg.validate(p); err != nil {
		return nil, fmt.Errorf("monte carlo: %w", err)
	}

	payoffs := make([]float64, cfg.Simulations)
	var samples []Sample
	if cfg.KeepSamples {
		samples = make([]Sample, cfg.Simulations)
	}
	itm := 0
	record := func(i int, underlying, payoff float64) {
		payoffs[i] = payoff
		if (cfg.Kind == domain.Call && underlying > p.Strike) || (cfg.Kind == domain.Put && underlying < p.Strike) {
			itm++
		}
		if samples != nil {
			samples[i] = Sample{Underlying: underlying, Payoff: payoff}
		}
	}

	var err error
	if cfg.Family.IsAsian() {
		err = simulateAsian(p, cfg, record)
	} else {
		err = simulateTerminal(p, cfg, record)
	}
	if err != nil {
		return nil, fmt.Errorf("monte carlo: %w", err)
	}

	df := math.Exp(-p.Rate * p.Maturity)
	mean, sd := stat.MeanStdDev(payoffs, nil)
	stdErr := 0.0
	if n := len(payoffs); n > 1 {
		stdErr = df * sd / math.Sqrt(float64(n))
	}

	return &MCRun{
		Estimate: domain.Estimate{
			Price:       df * mean,
			StdErr:      stdErr,
			Simulations: cfg.Simulations,
		},
		InTheMoney: float64(itm) / float64(len(payoffs)),
		Samples:    samples,
	}, nil
}

// simulateTerminal draws S_T directly; one normal per simulation.
func simulateTerminal(p domain.MarketParams, cfg MCConfig, record func(int, float64, float64)) error {
	rng := cfg.Source.New()
	st := newStepper(p, 1)
	for i := 0; i < cfg.Simulations; i++ {
		sT := p.Spot * math.Exp(st.drift+st.diffusion*rng.NormFloat64())
		var (
			v   float64
			err error
		)
		if cfg.Family == domain.FamilyDigital {
			v, err = DigitalPayoff(sT, p.Strike, cfg.Kind, *cfg.Payout)
		} else {
			v, err = EuropeanPayoff(sT, p.Strike, cfg.Kind)
		}
		if err != nil {
			return err
		}
		record(i, sT, v)
	}
	return nil
}

// simulateAsian fills paths batch by batch in the same row-major order SimulatePaths uses,
// so a seeded run sees exactly the paths of the full matrix.
func simulateAsian(p domain.MarketParams, cfg MCConfig, record func(int, float64, float64)) error {
	avg, _ := cfg.Family.Averaging()
	rng := cfg.Source.New()
	st := newStepper(p, cfg.Steps)
	width := cfg.Steps + 1
	rows := min(cfg.BatchRows, cfg.Simulations)
	buf := make([]float64, rows*width)

	for start := 0; start < cfg.Simulations; start += rows {
		n := min(rows, cfg.Simulations-start)
		for r := 0; r < n; r++ {
			path := buf[r*width : (r+1)*width]
			st.fill(path, p.Spot, rng)
			mean, err := PathAverage(path, avg)
			if err != nil {
				return err
			}
			v, err := EuropeanPayoff(mean, p.Strike, cfg.Kind)
			if err != nil {
				return err
			}
			record(start+r, mean, v)
		}
	}
	return nil
}
