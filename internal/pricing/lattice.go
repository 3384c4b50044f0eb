package pricing

import (
	"fmt"
	"math"

	"options_go/internal/domain"
)

// Lattice is a recombining CRR tree stored in a flat triangular arena.
// Node (i, j) is time step i with j down moves, 0 <= j <= i.
type Lattice struct {
	Steps int
	Up    float64
	Down  float64
	Prob  float64 // risk-neutral up probability

	prices []float64
	values []float64
}

func nodeIndex(i, j int) int {
	return i*(i+1)/2 + j
}

// Price returns the underlying price at node (i, j).
func (l *Lattice) Price(i, j int) float64 {
	return l.prices[nodeIndex(i, j)]
}

// Value returns the option value at node (i, j).
func (l *Lattice) Value(i, j int) float64 {
	return l.values[nodeIndex(i, j)]
}

// Root is the option value at (0, 0).
func (l *Lattice) Root() float64 {
	return l.values[0]
}

func intrinsic(kind domain.OptionKind, s, k float64) float64 {
	if kind == domain.Call {
		return math.Max(s-k, 0)
	}
	return math.Max(k-s, 0)
}

// BuildLattice builds the full tree and runs backward induction.
func BuildLattice(p domain.MarketParams, steps int, kind domain.OptionKind, style domain.ExerciseStyle) (*Lattice, error) {
	if err := checkInputs(p, kind); err != nil {
		return nil, err
	}
	if steps <= 0 {
		return nil, domain.InvalidParam("steps", steps)
	}
	if style != domain.European && style != domain.American {
		return nil, domain.InvalidParam("exercise", style)
	}

	dt := p.Maturity / float64(steps)
	u := math.Exp(p.Vol * math.Sqrt(dt))
	d := 1 / u
	growth := math.Exp(p.Rate * dt)
	q := (growth - d) / (u - d)
	if !(q >= 0 && q <= 1) {
		return nil, domain.InvalidParam("probability", q)
	}

	size := (steps + 1) * (steps + 2) / 2
	l := &Lattice{
		Steps:  steps,
		Up:     u,
		Down:   d,
		Prob:   q,
		prices: make([]float64, size),
		values: make([]float64, size),
	}

	for i := 0; i <= steps; i++ {
		base := nodeIndex(i, 0)
		for j := 0; j <= i; j++ {
			l.prices[base+j] = p.Spot * math.Pow(u, float64(i-j)) * math.Pow(d, float64(j))
		}
	}

	last := nodeIndex(steps, 0)
	for j := 0; j <= steps; j++ {
		l.values[last+j] = intrinsic(kind, l.prices[last+j], p.Strike)
	}

	disc := 1 / growth
	for i := steps - 1; i >= 0; i-- {
		base := nodeIndex(i, 0)
		next := nodeIndex(i+1, 0)
		for j := 0; j <= i; j++ {
			cont := disc * (q*l.values[next+j] + (1-q)*l.values[next+j+1])
			if style == domain.American {
				cont = math.Max(cont, intrinsic(kind, l.prices[base+j], p.Strike))
			}
			l.values[base+j] = cont
		}
	}

	return l, nil
}

// Binomial prices an option on a CRR lattice with the given number of steps.
func Binomial(p domain.MarketParams, steps int, kind domain.OptionKind, style domain.ExerciseStyle) (float64, error) {
	l, err := BuildLattice(p, steps, kind, style)
	if err != nil {
		return 0, fmt.Errorf("binomial: %w", err)
	}
	return l.Root(), nil
}
