package pricing

import (
	"fmt"
	"math"

	"options_go/internal/domain"
)

// EuropeanPayoff is max(ST-K, 0) for calls and max(K-ST, 0) for puts.
func EuropeanPayoff(st, strike float64, kind domain.OptionKind) (float64, error) {
	switch kind {
	case domain.Call:
		return math.Max(st-strike, 0), nil
	case domain.Put:
		return math.Max(strike-st, 0), nil
	default:
		return 0, fmt.Errorf("%w: %d", domain.ErrInvalidOptionKind, int(kind))
	}
}

// DigitalPayoff pays payout when ST finishes strictly in the money.
// At ST == K it pays nothing for either kind.
func DigitalPayoff(st, strike float64, kind domain.OptionKind, payout float64) (float64, error) {
	switch kind {
	case domain.Call:
		if st > strike {
			return payout, nil
		}
		return 0, nil
	case domain.Put:
		if st < strike {
			return payout, nil
		}
		return 0, nil
	default:
		return 0, fmt.Errorf("%w: %d", domain.ErrInvalidOptionKind, int(kind))
	}
}

// PathAverage averages the monitoring dates t1..tN of path; path[0] (S0) is excluded.
func PathAverage(path []float64, avg domain.AveragingKind) (float64, error) {
	if len(path) < 2 {
		return 0, domain.InvalidParam("path_length", len(path))
	}
	obs := path[1:]
	switch avg {
	case domain.Arithmetic:
		var sum float64
		for _, s := range obs {
			sum += s
		}
		return sum / float64(len(obs)), nil
	case domain.Geometric:
		var sumLog float64
		for _, s := range obs {
			sumLog += math.Log(s)
		}
		return math.Exp(sumLog / float64(len(obs))), nil
	default:
		return 0, domain.InvalidParam("averaging", avg)
	}
}

// AsianPayoff applies the European payoff to the path average.
func AsianPayoff(path []float64, strike float64, kind domain.OptionKind, avg domain.AveragingKind) (float64, error) {
	mean, err := PathAverage(path, avg)
	if err != nil {
		return 0, err
	}
	return EuropeanPayoff(mean, strike, kind)
}
