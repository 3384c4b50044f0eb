package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"options_go/internal/domain"
	"options_go/internal/infra"
	"options_go/internal/pricing"
)

// Model names a pricing technique.
type Model string

const (
	ModelClosedForm Model = "CLOSED_FORM"
	ModelLattice    Model = "LATTICE"
	ModelMonteCarlo Model = "MONTE_CARLO"
)

// ParseModel accepts the url forms "closed-form", "lattice" and "montecarlo".
func ParseModel(s string) (Model, error) {
	switch strings.ToUpper(strings.NewReplacer("-", "", "_", "", " ", "").Replace(s)) {
	case "CLOSEDFORM", "BS", "BLACKSCHOLES":
		return ModelClosedForm, nil
	case "LATTICE", "BINOMIAL", "CRR":
		return ModelLattice, nil
	case "MONTECARLO", "MC":
		return ModelMonteCarlo, nil
	default:
		return "", fmt.Errorf("%w: %q", domain.ErrUnsupportedModel, s)
	}
}

// Options are the engine defaults applied when a request leaves a field at zero.
type Options struct {
	LatticeSteps  int
	Simulations   int
	PathSteps     int
	DigitalPayout *float64 // nil pays pricing.DefaultPayout
	BatchRows     int
	SweepWorkers  int
	Seed          *uint64 // nil means entropy
	CacheEnabled  bool
}

// OptionsFromConfig maps the engine and storage sections.
func OptionsFromConfig(cfg *infra.Config) Options {
	return Options{
		LatticeSteps:  cfg.Engine.LatticeSteps,
		Simulations:   cfg.Engine.Simulations,
		PathSteps:     cfg.Engine.PathSteps,
		DigitalPayout: cfg.Engine.DigitalPayout,
		BatchRows:     cfg.Engine.BatchRows,
		SweepWorkers:  cfg.Engine.SweepWorkers,
		Seed:          cfg.Engine.Seed,
		CacheEnabled:  cfg.Storage.CacheEnabled,
	}
}

// Request describes one valuation. Zero fields fall back to Options.
type Request struct {
	Params      domain.MarketParams
	Kind        domain.OptionKind
	Style       domain.ExerciseStyle // lattice only
	Family      domain.Family        // Monte Carlo only
	Steps       int                  // lattice steps, or Asian monitoring steps
	Simulations int
	Payout      *float64 // nil uses the configured digital payout
	Seed        *uint64
}

// PricingService is the library surface over the pricing package.
// It adds defaults, memoization of deterministic results, metrics and logging.
type PricingService struct {
	opts    Options
	repo    domain.PricingRepository
	metrics *infra.Metrics
}

// NewPricingService creates a service. repo may be nil to disable memoization.
func NewPricingService(opts Options, repo domain.PricingRepository, metrics *infra.Metrics) *PricingService {
	if opts.LatticeSteps <= 0 {
		opts.LatticeSteps = 500
	}
	if opts.Simulations <= 0 {
		opts.Simulations = 100_000
	}
	if opts.PathSteps <= 0 {
		opts.PathSteps = 252
	}
	if opts.DigitalPayout == nil {
		opts.DigitalPayout = pricing.PayoutOf(pricing.DefaultPayout)
	}
	if opts.SweepWorkers <= 0 {
		opts.SweepWorkers = 4
	}
	if metrics == nil {
		metrics = &infra.Metrics{}
	}
	return &PricingService{opts: opts, repo: repo, metrics: metrics}
}

// Options returns the effective defaults.
func (s *PricingService) Options() Options {
	return s.opts
}

func (s *PricingService) source(seed *uint64) pricing.RandSource {
	if seed != nil {
		return pricing.FixedSeed(*seed)
	}
	return pricing.SourceFor(s.opts.Seed)
}

func (s *PricingService) mcConfig(req Request) pricing.MCConfig {
	cfg := pricing.MCConfig{
		Family:      req.Family,
		Kind:        req.Kind,
		Simulations: req.Simulations,
		Steps:       req.Steps,
		Payout:      req.Payout,
		BatchRows:   s.opts.BatchRows,
		Source:      s.source(req.Seed),
	}
	if cfg.Family == 0 {
		cfg.Family = domain.FamilyEuropean
	}
	if cfg.Simulations == 0 {
		cfg.Simulations = s.opts.Simulations
	}
	if cfg.Steps == 0 {
		cfg.Steps = s.opts.PathSteps
	}
	if cfg.Payout == nil {
		cfg.Payout = s.opts.DigitalPayout
	}
	return cfg
}

func (s *PricingService) latticeSteps(steps int) int {
	if steps == 0 {
		return s.opts.LatticeSteps
	}
	return steps
}

// ClosedFormPrice prices a European option with Black-Scholes.
func (s *PricingService) ClosedFormPrice(ctx context.Context, p domain.MarketParams, kind domain.OptionKind) (domain.Estimate, error) {
	key := cacheKey(ModelClosedForm, p, kind.String())
	return s.cached(ctx, ModelClosedForm, key, "EUROPEAN", p, kind, func() (domain.Estimate, error) {
		v, err := pricing.BlackScholes(p, kind)
		return domain.Estimate{Price: v}, err
	})
}

// ClosedFormGreeks returns the analytic Greeks of a European option.
func (s *PricingService) ClosedFormGreeks(ctx context.Context, p domain.MarketParams, kind domain.OptionKind) (domain.Greeks, error) {
	start := time.Now()
	g, err := pricing.ClosedFormGreeks(p, kind)
	s.observe(ModelClosedForm, start, err)
	return g, err
}

// LatticePrice prices on a CRR tree. steps 0 uses the configured default.
func (s *PricingService) LatticePrice(ctx context.Context, p domain.MarketParams, kind domain.OptionKind, style domain.ExerciseStyle, steps int) (domain.Estimate, error) {
	steps = s.latticeSteps(steps)
	key := cacheKey(ModelLattice, p, kind.String(), style.String(), steps)
	return s.cached(ctx, ModelLattice, key, style.String(), p, kind, func() (domain.Estimate, error) {
		v, err := pricing.Binomial(p, steps, kind, style)
		return domain.Estimate{Price: v}, err
	})
}

// SimulatePaths exposes the raw GBM simulator with the service's random source.
func (s *PricingService) SimulatePaths(p domain.MarketParams, sims, steps int, seed *uint64) (*pricing.PathSet, error) {
	return pricing.SimulatePaths(p, sims, steps, s.source(seed).New())
}

// MCPrice prices req.Family by Monte Carlo. Seeded runs are memoized.
func (s *PricingService) MCPrice(ctx context.Context, req Request) (domain.Estimate, error) {
	cfg := s.mcConfig(req)
	compute := func() (domain.Estimate, error) {
		return pricing.MonteCarlo(req.Params, cfg)
	}
	if !cfg.Source.Deterministic() {
		start := time.Now()
		est, err := compute()
		s.observe(ModelMonteCarlo, start, err)
		return est, err
	}
	seed := uint64(cfg.Source.(pricing.FixedSeed))
	key := cacheKey(ModelMonteCarlo, req.Params, cfg.Family.String(), req.Kind.String(),
		cfg.Simulations, cfg.Steps, *cfg.Payout, seed)
	return s.cached(ctx, ModelMonteCarlo, key, cfg.Family.String(), req.Params, req.Kind, compute)
}

// MCRun is MCPrice with the in-the-money share and, when keep is set, every sample.
func (s *PricingService) MCRun(ctx context.Context, req Request, keep bool) (*pricing.MCRun, error) {
	cfg := s.mcConfig(req)
	cfg.KeepSamples = keep
	start := time.Now()
	run, err := pricing.RunMonteCarlo(req.Params, cfg)
	s.observe(ModelMonteCarlo, start, err)
	return run, err
}

// Valuation returns the bump-and-reprice function for model.
func (s *PricingService) Valuation(model Model, req Request) (pricing.Valuation, error) {
	switch model {
	case ModelClosedForm:
		return pricing.ClosedFormValuation(req.Kind), nil
	case ModelLattice:
		style := req.Style
		if style == 0 {
			style = domain.European
		}
		return pricing.LatticeValuation(s.latticeSteps(req.Steps), req.Kind, style), nil
	case ModelMonteCarlo:
		cfg := s.mcConfig(req)
		if !cfg.Source.Deterministic() {
			// bumps must share their draws or the differences are pure noise
			cfg.Source = pricing.FixedSeed(time.Now().UnixNano())
		}
		return pricing.MonteCarloValuation(cfg), nil
	default:
		return nil, fmt.Errorf("%w: %q", domain.ErrUnsupportedModel, model)
	}
}

// FDGreeks computes finite-difference Greeks by repricing with model.
func (s *PricingService) FDGreeks(ctx context.Context, model Model, req Request) (domain.SensitivityReport, error) {
	v, err := s.Valuation(model, req)
	if err != nil {
		return domain.SensitivityReport{}, err
	}
	start := time.Now()
	rep, err := pricing.FiniteDifferenceGreeks(v, req.Params)
	s.observe(model, start, err)
	if err == nil && !rep.ThetaDefined() {
		slog.Debug("Theta undefined within one day of expiry", slog.Float64("maturity", req.Params.Maturity))
	}
	return rep, err
}

// ValuePosition prices one book line: closed form for European, lattice for American.
func (s *PricingService) ValuePosition(ctx context.Context, pos domain.Position, spot, rate float64) domain.PositionValue {
	pv := domain.PositionValue{Position: pos}
	p := pos.Params(spot, rate)

	var (
		est domain.Estimate
		err error
	)
	if pos.Style == domain.American {
		est, err = s.LatticePrice(ctx, p, pos.Kind, domain.American, 0)
		if err == nil {
			var rep domain.SensitivityReport
			rep, err = s.FDGreeks(ctx, ModelLattice, Request{Params: p, Kind: pos.Kind, Style: domain.American})
			pv.Greeks = rep.Greeks
			// book theta is per day like the closed-form lines
			pv.Greeks.Theta = rep.Greeks.Theta * pricing.TimeBump
			if !rep.ThetaDefined() {
				pv.Greeks.Theta = 0 // keep the book JSON-encodable in the last day
			}
			if !rep.VegaDefined() {
				pv.Greeks.Vega = 0
			}
		}
	} else {
		est, err = s.ClosedFormPrice(ctx, p, pos.Kind)
		if err == nil {
			pv.Greeks, err = s.ClosedFormGreeks(ctx, p, pos.Kind)
		}
	}
	if err != nil {
		pv.Err = err.Error()
		return pv
	}
	pv.Price = est.Price
	return pv
}

// cached wraps compute with the pricing repository. Repository failures never fail the valuation.
func (s *PricingService) cached(ctx context.Context, model Model, key, family string, p domain.MarketParams, kind domain.OptionKind, compute func() (domain.Estimate, error)) (domain.Estimate, error) {
	useCache := s.opts.CacheEnabled && s.repo != nil
	if useCache {
		rec, err := s.repo.GetPricing(ctx, key)
		if err != nil {
			slog.Warn("Pricing cache read failed", slog.String("model", string(model)), slog.Any("error", err))
		} else if rec != nil {
			s.metrics.RecordCacheHit()
			return rec.Estimate(), nil
		}
		s.metrics.RecordCacheMiss()
	}

	start := time.Now()
	est, err := compute()
	s.observe(model, start, err)
	if err != nil || !useCache {
		return est, err
	}

	rec := &domain.PricingRecord{
		CacheKey:    key,
		Model:       string(model),
		Family:      family,
		Kind:        kind.String(),
		Spot:        p.Spot,
		Strike:      p.Strike,
		Maturity:    p.Maturity,
		Rate:        p.Rate,
		Vol:         p.Vol,
		Price:       decimal.NewFromFloat(est.Price),
		StdErr:      est.StdErr,
		Simulations: est.Simulations,
	}
	if err := s.repo.SavePricing(ctx, rec); err != nil {
		slog.Warn("Pricing cache write failed", slog.String("model", string(model)), slog.Any("error", err))
	}
	return est, nil
}

func (s *PricingService) observe(model Model, start time.Time, err error) {
	if err != nil {
		s.metrics.RecordError()
		slog.Debug("Pricing rejected", slog.String("model", string(model)), slog.Any("error", err))
		return
	}
	s.metrics.RecordPricing(time.Since(start))
}

// cacheKey hashes the model, the market and every configuration value that changes the result.
func cacheKey(model Model, p domain.MarketParams, parts ...any) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s|%.17g|%.17g|%.17g|%.17g|%.17g", model, p.Spot, p.Strike, p.Maturity, p.Rate, p.Vol)
	for _, part := range parts {
		fmt.Fprintf(&b, "|%v", part)
	}
	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}
