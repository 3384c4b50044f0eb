package service

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"

	"options_go/internal/domain"
	"options_go/internal/infra"
)

var atm = domain.MarketParams{Spot: 100, Strike: 100, Maturity: 1, Rate: 0.05, Vol: 0.2}

// memRepo is an in-process PricingRepository.
type memRepo struct {
	mu      sync.Mutex
	records map[string]*domain.PricingRecord
	gets    int
	saves   int
	failGet error
}

func newMemRepo() *memRepo {
	return &memRepo{records: make(map[string]*domain.PricingRecord)}
}

func (r *memRepo) GetPricing(ctx context.Context, key string) (*domain.PricingRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.gets++
	if r.failGet != nil {
		return nil, r.failGet
	}
	return r.records[key], nil
}

func (r *memRepo) SavePricing(ctx context.Context, rec *domain.PricingRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.saves++
	r.records[rec.CacheKey] = rec
	return nil
}

func seed(v uint64) *uint64 { return &v }

func newTestService(repo domain.PricingRepository) (*PricingService, *infra.Metrics) {
	m := &infra.Metrics{}
	svc := NewPricingService(Options{
		LatticeSteps: 200,
		Simulations:  20_000,
		PathSteps:    12,
		Seed:         seed(7),
		CacheEnabled: repo != nil,
	}, repo, m)
	return svc, m
}

func TestParseModel(t *testing.T) {
	cases := map[string]Model{
		"closed-form": ModelClosedForm,
		"lattice":     ModelLattice,
		"montecarlo":  ModelMonteCarlo,
		"monte-carlo": ModelMonteCarlo,
		"MC":          ModelMonteCarlo,
	}
	for in, want := range cases {
		got, err := ParseModel(in)
		if err != nil || got != want {
			t.Errorf("ParseModel(%q) = %v, %v; want %v", in, got, err, want)
		}
	}
	if _, err := ParseModel("heston"); !errors.Is(err, domain.ErrUnsupportedModel) {
		t.Errorf("expected ErrUnsupportedModel, got %v", err)
	}
}

func TestClosedFormPriceIsCached(t *testing.T) {
	repo := newMemRepo()
	svc, m := newTestService(repo)
	ctx := context.Background()

	first, err := svc.ClosedFormPrice(ctx, atm, domain.Call)
	if err != nil {
		t.Fatalf("ClosedFormPrice: %v", err)
	}
	second, err := svc.ClosedFormPrice(ctx, atm, domain.Call)
	if err != nil {
		t.Fatalf("ClosedFormPrice: %v", err)
	}
	if math.Abs(first.Price-second.Price) > 1e-12 {
		t.Errorf("cached price %v differs from computed %v", second.Price, first.Price)
	}
	if repo.saves != 1 {
		t.Errorf("expected 1 save, got %d", repo.saves)
	}
	snap := m.Snapshot()
	if snap.CacheHits != 1 || snap.CacheMisses != 1 {
		t.Errorf("expected 1 hit and 1 miss, got %d/%d", snap.CacheHits, snap.CacheMisses)
	}
}

func TestCacheKeySeparatesInputs(t *testing.T) {
	a := cacheKey(ModelLattice, atm, "CALL", "EUROPEAN", 200)
	b := cacheKey(ModelLattice, atm, "CALL", "EUROPEAN", 201)
	c := cacheKey(ModelLattice, atm.WithVol(0.21), "CALL", "EUROPEAN", 200)
	d := cacheKey(ModelClosedForm, atm, "CALL", "EUROPEAN", 200)
	if a == b || a == c || a == d {
		t.Error("different inputs must produce different keys")
	}
	if a != cacheKey(ModelLattice, atm, "CALL", "EUROPEAN", 200) {
		t.Error("key must be stable")
	}
}

func TestCacheReadFailureFallsBackToCompute(t *testing.T) {
	repo := newMemRepo()
	repo.failGet = errors.New("disk gone")
	svc, _ := newTestService(repo)

	est, err := svc.LatticePrice(context.Background(), atm, domain.Put, domain.American, 0)
	if err != nil {
		t.Fatalf("LatticePrice: %v", err)
	}
	if est.Price <= 0 {
		t.Errorf("expected positive price, got %v", est.Price)
	}
}

func TestEntropyMonteCarloIsNotCached(t *testing.T) {
	repo := newMemRepo()
	m := &infra.Metrics{}
	svc := NewPricingService(Options{Simulations: 5000, CacheEnabled: true}, repo, m)

	if _, err := svc.MCPrice(context.Background(), Request{Params: atm, Kind: domain.Call}); err != nil {
		t.Fatalf("MCPrice: %v", err)
	}
	if repo.gets != 0 || repo.saves != 0 {
		t.Errorf("entropy run touched the cache: gets=%d saves=%d", repo.gets, repo.saves)
	}
}

func TestSeededMonteCarloIsReproducible(t *testing.T) {
	svc, _ := newTestService(nil)
	ctx := context.Background()
	req := Request{Params: atm, Kind: domain.Call, Family: domain.FamilyAsianArithmetic}

	a, err := svc.MCPrice(ctx, req)
	if err != nil {
		t.Fatalf("MCPrice: %v", err)
	}
	b, err := svc.MCPrice(ctx, req)
	if err != nil {
		t.Fatalf("MCPrice: %v", err)
	}
	if a != b {
		t.Errorf("same seed gave %+v and %+v", a, b)
	}

	req.Seed = seed(8)
	c, err := svc.MCPrice(ctx, req)
	if err != nil {
		t.Fatalf("MCPrice: %v", err)
	}
	if c.Price == a.Price {
		t.Error("a different seed should change the estimate")
	}
}

func TestInvalidParamsCountAsErrors(t *testing.T) {
	svc, m := newTestService(nil)
	_, err := svc.ClosedFormPrice(context.Background(), atm.WithVol(0), domain.Call)
	if !errors.Is(err, domain.ErrInvalidParameter) {
		t.Fatalf("expected ErrInvalidParameter, got %v", err)
	}
	if m.Snapshot().ErrorsTotal != 1 {
		t.Errorf("expected 1 error recorded, got %d", m.Snapshot().ErrorsTotal)
	}
}

func TestFDGreeksAgreeWithClosedForm(t *testing.T) {
	svc, _ := newTestService(nil)
	ctx := context.Background()

	want, err := svc.ClosedFormGreeks(ctx, atm, domain.Call)
	if err != nil {
		t.Fatalf("ClosedFormGreeks: %v", err)
	}
	rep, err := svc.FDGreeks(ctx, ModelClosedForm, Request{Params: atm, Kind: domain.Call})
	if err != nil {
		t.Fatalf("FDGreeks: %v", err)
	}
	if math.Abs(rep.Greeks.Delta-want.Delta) > 1e-3 {
		t.Errorf("delta %v vs %v", rep.Greeks.Delta, want.Delta)
	}
	if math.Abs(rep.Greeks.Vega-want.Vega) > 1e-3 {
		t.Errorf("vega %v vs %v", rep.Greeks.Vega, want.Vega)
	}
	// finite-difference theta is per year, the analytic one per day
	if math.Abs(rep.Greeks.Theta-365*want.Theta) > 0.02 {
		t.Errorf("theta %v vs %v per year", rep.Greeks.Theta, 365*want.Theta)
	}

	if _, err := svc.FDGreeks(ctx, Model("HESTON"), Request{Params: atm, Kind: domain.Call}); !errors.Is(err, domain.ErrUnsupportedModel) {
		t.Errorf("expected ErrUnsupportedModel, got %v", err)
	}
}

func TestValuePosition(t *testing.T) {
	svc, _ := newTestService(nil)
	ctx := context.Background()

	t.Run("european uses closed form", func(t *testing.T) {
		pos := domain.Position{ID: "c100", Kind: domain.Call, Style: domain.European, Strike: 100, Maturity: 1, Vol: 0.2, Quantity: 1}
		pv := svc.ValuePosition(ctx, pos, 100, 0.05)
		if pv.Err != "" {
			t.Fatalf("unexpected error: %s", pv.Err)
		}
		if math.Abs(pv.Price-10.450583572185565) > 1e-9 {
			t.Errorf("price = %v", pv.Price)
		}
		if math.Abs(pv.Greeks.Delta-0.6368306511756191) > 1e-9 {
			t.Errorf("delta = %v", pv.Greeks.Delta)
		}
	})

	t.Run("american put carries early exercise premium", func(t *testing.T) {
		pos := domain.Position{ID: "p100", Kind: domain.Put, Style: domain.American, Strike: 100, Maturity: 1, Vol: 0.2, Quantity: -2}
		pv := svc.ValuePosition(ctx, pos, 100, 0.05)
		if pv.Err != "" {
			t.Fatalf("unexpected error: %s", pv.Err)
		}
		if pv.Price <= 5.573526022256971 {
			t.Errorf("american put %v should exceed european %v", pv.Price, 5.573526022256971)
		}
		if pv.Greeks.Delta >= 0 {
			t.Errorf("put delta should be negative, got %v", pv.Greeks.Delta)
		}
		if pv.Greeks.Theta >= 0 || pv.Greeks.Theta < -0.05 {
			t.Errorf("book theta %v should be a small per-day decay", pv.Greeks.Theta)
		}
	})

	t.Run("bad position reports error", func(t *testing.T) {
		pos := domain.Position{ID: "bad", Kind: domain.Call, Style: domain.European, Strike: 100, Maturity: 0, Vol: 0.2, Quantity: 1}
		pv := svc.ValuePosition(ctx, pos, 100, 0.05)
		if pv.Err == "" {
			t.Error("expected an error for zero maturity")
		}
	})
}

func TestSimulatePathsUsesSeed(t *testing.T) {
	svc, _ := newTestService(nil)

	a, err := svc.SimulatePaths(atm, 50, 10, nil)
	if err != nil {
		t.Fatalf("SimulatePaths: %v", err)
	}
	b, err := svc.SimulatePaths(atm, 50, 10, nil)
	if err != nil {
		t.Fatalf("SimulatePaths: %v", err)
	}
	if r, c := a.Dims(); r != 50 || c != 11 {
		t.Fatalf("dims = %dx%d", r, c)
	}
	if a.At(49, 10) != b.At(49, 10) {
		t.Error("configured seed should reproduce the paths")
	}

	c, err := svc.SimulatePaths(atm, 50, 10, seed(99))
	if err != nil {
		t.Fatalf("SimulatePaths: %v", err)
	}
	if c.At(49, 10) == a.At(49, 10) {
		t.Error("request seed should override the configured one")
	}
}
