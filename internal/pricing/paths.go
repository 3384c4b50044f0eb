package pricing

import (
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"

	"options_go/internal/domain"
)

// PathSet holds simulated GBM paths, one row per simulation.
// Column 0 is S0, column k is the price after k steps.
type PathSet struct {
	m *mat.Dense
}

// Dims returns (simulations, steps+1).
func (ps *PathSet) Dims() (int, int) {
	return ps.m.Dims()
}

// At returns the price of path i at step k.
func (ps *PathSet) At(i, k int) float64 {
	return ps.m.At(i, k)
}

// Row returns a view of path i without copying.
func (ps *PathSet) Row(i int) []float64 {
	return ps.m.RawRowView(i)
}

// Terminal returns S_T for every path.
func (ps *PathSet) Terminal() []float64 {
	n, c := ps.m.Dims()
	out := make([]float64, n)
	mat.Col(out, c-1, ps.m)
	return out
}

// Matrix exposes the underlying dense matrix.
func (ps *PathSet) Matrix() mat.Matrix {
	return ps.m
}

// stepper holds the per-step GBM constants.
type stepper struct {
	drift     float64
	diffusion float64
}

func newStepper(p domain.MarketParams, steps int) stepper {
	dt := p.Maturity / float64(steps)
	return stepper{
		drift:     (p.Rate - 0.5*p.Vol*p.Vol) * dt,
		diffusion: p.Vol * math.Sqrt(dt),
	}
}

// fill writes one path into row (len steps+1). Draws are consumed left to right.
func (s stepper) fill(row []float64, s0 float64, rng *rand.Rand) {
	row[0] = s0
	logS := 0.0
	for k := 1; k < len(row); k++ {
		logS += s.drift + s.diffusion*rng.NormFloat64()
		row[k] = s0 * math.Exp(logS)
	}
}

func checkSimulation(p domain.MarketParams, sims, steps int) error {
	if err := p.Validate(); err != nil {
		return err
	}
	if sims <= 0 {
		return domain.InvalidParam("simulations", sims)
	}
	if steps <= 0 {
		return domain.InvalidParam("steps", steps)
	}
	return nil
}

// SimulatePaths generates sims paths of steps increments under the exact
// log-space GBM scheme. The strike is unused; a zero strike is accepted.
func SimulatePaths(p domain.MarketParams, sims, steps int, rng *rand.Rand) (*PathSet, error) {
	if p.Strike == 0 {
		p.Strike = p.Spot
	}
	if err := checkSimulation(p, sims, steps); err != nil {
		return nil, err
	}
	st := newStepper(p, steps)
	data := make([]float64, sims*(steps+1))
	for i := 0; i < sims; i++ {
		st.fill(data[i*(steps+1):(i+1)*(steps+1)], p.Spot, rng)
	}
	return &PathSet{m: mat.NewDense(sims, steps+1, data)}, nil
}
