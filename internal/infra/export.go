package infra

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gonum.org/v1/gonum/mat"

	"options_go/internal/domain"
	"options_go/internal/pricing"
)

// DefaultSampleFilename is the template used for simulated sample downloads.
const DefaultSampleFilename = "{time}_{family}_{kind}_{sims}sims.csv"

// Filenames of the lattice and path downloads.
const (
	TerminalNodesFilename = "crr_terminal_prices.csv"
	PathsFilename         = "gbm_paths.csv"
)

// SampleFilename expands {time}, {family}, {kind} and {sims} in format.
func SampleFilename(format string, family domain.Family, kind domain.OptionKind, sims int, now time.Time) string {
	if format == "" {
		format = DefaultSampleFilename
	}
	r := strings.NewReplacer(
		"{time}", now.Format("15-04-05"),
		"{family}", strings.ToLower(family.String()),
		"{kind}", strings.ToLower(kind.String()),
		"{sims}", strconv.Itoa(sims),
	)
	return r.Replace(format)
}

// WriteSamplesCSV writes one row per simulation: index, price, payoff.
// price is S_T for terminal payoffs and the path average for Asian options.
// Values are rounded to places decimals.
func WriteSamplesCSV(w io.Writer, samples []pricing.Sample, places int32) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"index", "price", "payoff"}); err != nil {
		return err
	}

	row := make([]string, 3)
	for i, s := range samples {
		row[0] = strconv.Itoa(i)
		row[1] = decimal.NewFromFloat(s.Underlying).StringFixed(places)
		row[2] = decimal.NewFromFloat(s.Payoff).StringFixed(places)
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write row %d: %w", i, err)
		}
	}

	cw.Flush()
	return cw.Error()
}

// WriteTerminalNodesCSV writes the leaves of l, from the all-up node to the all-down node.
func WriteTerminalNodesCSV(w io.Writer, l *pricing.Lattice, places int32) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"node", "terminal_price"}); err != nil {
		return err
	}
	for j := 0; j <= l.Steps; j++ {
		row := []string{strconv.Itoa(j), decimal.NewFromFloat(l.Price(l.Steps, j)).StringFixed(places)}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write node %d: %w", j, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// WritePathsCSV writes one row per simulated path: path, t0 .. tN.
func WritePathsCSV(w io.Writer, paths mat.Matrix, places int32) error {
	rows, cols := paths.Dims()
	cw := csv.NewWriter(w)

	row := make([]string, cols+1)
	row[0] = "path"
	for k := 0; k < cols; k++ {
		row[k+1] = "t" + strconv.Itoa(k)
	}
	if err := cw.Write(row); err != nil {
		return err
	}

	for i := 0; i < rows; i++ {
		row[0] = strconv.Itoa(i)
		for k := 0; k < cols; k++ {
			row[k+1] = decimal.NewFromFloat(paths.At(i, k)).StringFixed(places)
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write path %d: %w", i, err)
		}
	}
	cw.Flush()
	return cw.Error()
}
