package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"options_go/internal/domain"
	"options_go/internal/infra"
	"options_go/internal/service"
	"options_go/internal/strategy"
)

// Request limits keep a single call from exhausting memory.
const (
	maxBodyBytes    = 1 << 20
	maxLatticeSteps = 2000
	maxPathSteps    = 10_000
	maxSimulations  = 2_000_000
	maxExportRows   = 200_000
	maxExportCells  = 2_000_000
	maxSweepPoints  = 1000
	csvPlaces       = 6
)

// BookSource exposes the live repriced book.
type BookSource interface {
	GetMarketState() domain.MarketState
	RecentActions() []strategy.Action
}

// Pinger is a dependency checked by /healthz.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler serves the pricing API.
type Handler struct {
	svc     *service.PricingService
	metrics *infra.Metrics
	book    BookSource
	checks  map[string]Pinger

	defaults domain.MarketParams
}

// NewHandler creates a handler. book and checks may be nil.
func NewHandler(svc *service.PricingService, metrics *infra.Metrics, book BookSource, checks map[string]Pinger) *Handler {
	if metrics == nil {
		metrics = &infra.Metrics{}
	}
	return &Handler{svc: svc, metrics: metrics, book: book, checks: checks}
}

// WithDefaults fills market fields a request body leaves out.
func (h *Handler) WithDefaults(p domain.MarketParams) *Handler {
	h.defaults = p
	return h
}

// Router registers every route on a new gorilla/mux router.
func (h *Handler) Router() *mux.Router {
	r := mux.NewRouter()
	r.Use(requestLogger(h.metrics))

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/price/{model}", h.PriceHandler).Methods(http.MethodPost)
	api.HandleFunc("/greeks/{method}", h.GreeksHandler).Methods(http.MethodPost)
	api.HandleFunc("/compare", h.CompareHandler).Methods(http.MethodPost)
	api.HandleFunc("/convergence/{model}", h.ConvergenceHandler).Methods(http.MethodPost)
	api.HandleFunc("/sweep/{axis}", h.SweepHandler).Methods(http.MethodPost)
	api.HandleFunc("/digital", h.DigitalHandler).Methods(http.MethodPost)
	api.HandleFunc("/paths.csv", h.PathsCSVHandler).Methods(http.MethodPost)
	api.HandleFunc("/gbm.csv", h.GBMPathsCSVHandler).Methods(http.MethodPost)
	api.HandleFunc("/lattice/early-exercise", h.EarlyExerciseHandler).Methods(http.MethodPost)
	api.HandleFunc("/lattice/terminal.csv", h.TerminalNodesCSVHandler).Methods(http.MethodPost)
	api.HandleFunc("/book", h.BookHandler).Methods(http.MethodGet)
	api.HandleFunc("/metrics", h.MetricsHandler).Methods(http.MethodGet)

	r.HandleFunc("/healthz", h.HealthHandler).Methods(http.MethodGet)
	return r
}

// pricingRequest is the common request body. Market fields sit at the top level.
type pricingRequest struct {
	domain.MarketParams
	Kind        string   `json:"kind"`
	Exercise    string   `json:"exercise"`
	Family      string   `json:"family"`
	Model       string   `json:"model"` // repricing model for finite-difference Greeks
	Steps       int      `json:"steps"`
	Simulations int      `json:"simulations"`
	Payout      *float64 `json:"payout"` // absent uses the configured payout
	Seed        *uint64  `json:"seed"`

	// sweeps
	Ns     []int   `json:"ns"`
	Lo     float64 `json:"lo"`
	Hi     float64 `json:"hi"`
	Points int     `json:"points"`
}

func (p pricingRequest) toService() (service.Request, error) {
	kind, err := domain.ParseOptionKind(p.Kind)
	if err != nil {
		return service.Request{}, err
	}
	style, err := domain.ParseExerciseStyle(p.Exercise)
	if err != nil {
		return service.Request{}, err
	}
	family, err := domain.ParseFamily(p.Family)
	if err != nil {
		return service.Request{}, err
	}
	if p.Steps < 0 || p.Simulations < 0 {
		return service.Request{}, domain.InvalidParam("steps/simulations", fmt.Sprintf("%d/%d", p.Steps, p.Simulations))
	}
	if p.Simulations > maxSimulations {
		return service.Request{}, domain.InvalidParam("simulations", p.Simulations)
	}
	return service.Request{
		Params:      p.MarketParams,
		Kind:        kind,
		Style:       style,
		Family:      family,
		Steps:       p.Steps,
		Simulations: p.Simulations,
		Payout:      p.Payout,
		Seed:        p.Seed,
	}, nil
}

// checkSteps bounds the tree depth or path length a model will allocate for.
func checkSteps(model service.Model, steps int) error {
	switch {
	case model == service.ModelLattice && steps > maxLatticeSteps,
		model == service.ModelMonteCarlo && steps > maxPathSteps:
		return domain.InvalidParam("steps", steps)
	}
	return nil
}

func (h *Handler) decodeRequest(w http.ResponseWriter, r *http.Request) (pricingRequest, service.Request, error) {
	body := pricingRequest{MarketParams: h.defaults}
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&body); err != nil {
		return body, service.Request{}, fmt.Errorf("%w: body: %v", domain.ErrInvalidParameter, err)
	}
	req, err := body.toService()
	return body, req, err
}

// greeksJSON reports an undefined vega or theta as null.
type greeksJSON struct {
	Delta float64  `json:"delta"`
	Gamma float64  `json:"gamma"`
	Vega  *float64 `json:"vega"`
	Theta *float64 `json:"theta"`
	Rho   float64  `json:"rho"`
}

func toGreeksJSON(g domain.Greeks) greeksJSON {
	return greeksJSON{Delta: g.Delta, Gamma: g.Gamma, Vega: finite(g.Vega), Theta: finite(g.Theta), Rho: g.Rho}
}

func finite(v float64) *float64 {
	if math.IsNaN(v) {
		return nil
	}
	return &v
}

type priceResponse struct {
	Model       string      `json:"model"`
	Kind        string      `json:"kind"`
	Exercise    string      `json:"exercise,omitempty"`
	Family      string      `json:"family,omitempty"`
	Price       float64     `json:"price"`
	StdErr      float64     `json:"std_err"`
	Simulations int         `json:"simulations,omitempty"`
	CI95        *[2]float64 `json:"ci95,omitempty"`
	Moneyness   string      `json:"moneyness"`
}

// PriceHandler handles POST /api/price/{model}.
func (h *Handler) PriceHandler(w http.ResponseWriter, r *http.Request) {
	model, err := service.ParseModel(mux.Vars(r)["model"])
	if err != nil {
		writeError(w, err)
		return
	}
	_, req, err := h.decodeRequest(w, r)
	if err != nil {
		writeError(w, err)
		return
	}

	if err := checkSteps(model, req.Steps); err != nil {
		writeError(w, err)
		return
	}

	resp := priceResponse{Model: string(model), Kind: req.Kind.String(), Moneyness: req.Params.Moneyness(req.Kind)}
	var est domain.Estimate
	switch model {
	case service.ModelClosedForm:
		est, err = h.svc.ClosedFormPrice(r.Context(), req.Params, req.Kind)
		resp.Exercise = domain.European.String()
	case service.ModelLattice:
		est, err = h.svc.LatticePrice(r.Context(), req.Params, req.Kind, req.Style, req.Steps)
		resp.Exercise = req.Style.String()
	case service.ModelMonteCarlo:
		est, err = h.svc.MCPrice(r.Context(), req)
		resp.Family = req.Family.String()
		lo, hi := est.ConfidenceInterval(1.96)
		resp.CI95 = &[2]float64{lo, hi}
	}
	if err != nil {
		writeError(w, err)
		return
	}

	resp.Price, resp.StdErr, resp.Simulations = est.Price, est.StdErr, est.Simulations
	writeJSON(w, http.StatusOK, resp)
}

type greeksResponse struct {
	Method       string      `json:"method"`
	Model        string      `json:"model,omitempty"`
	Kind         string      `json:"kind"`
	Greeks       greeksJSON  `json:"greeks"`
	Noise        *greeksJSON `json:"noise,omitempty"`
	ThetaDefined bool        `json:"theta_defined"`
}

// GreeksHandler handles POST /api/greeks/{method}, method being closed-form or finite-difference.
func (h *Handler) GreeksHandler(w http.ResponseWriter, r *http.Request) {
	body, req, err := h.decodeRequest(w, r)
	if err != nil {
		writeError(w, err)
		return
	}

	switch mux.Vars(r)["method"] {
	case "closed-form", "analytic":
		g, err := h.svc.ClosedFormGreeks(r.Context(), req.Params, req.Kind)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, greeksResponse{
			Method:       "closed-form",
			Kind:         req.Kind.String(),
			Greeks:       toGreeksJSON(g),
			ThetaDefined: true,
		})

	case "finite-difference", "fd":
		model := service.ModelClosedForm
		if body.Model != "" {
			if model, err = service.ParseModel(body.Model); err != nil {
				writeError(w, err)
				return
			}
		}
		if err := checkSteps(model, req.Steps); err != nil {
			writeError(w, err)
			return
		}
		rep, err := h.svc.FDGreeks(r.Context(), model, req)
		if err != nil {
			writeError(w, err)
			return
		}
		noise := toGreeksJSON(rep.Noise)
		writeJSON(w, http.StatusOK, greeksResponse{
			Method:       "finite-difference",
			Model:        string(model),
			Kind:         req.Kind.String(),
			Greeks:       toGreeksJSON(rep.Greeks),
			Noise:        &noise,
			ThetaDefined: rep.ThetaDefined(),
		})

	default:
		writeError(w, fmt.Errorf("%w: greeks method %q", domain.ErrUnsupportedModel, mux.Vars(r)["method"]))
	}
}

// CompareHandler handles POST /api/compare.
func (h *Handler) CompareHandler(w http.ResponseWriter, r *http.Request) {
	_, req, err := h.decodeRequest(w, r)
	if err != nil {
		writeError(w, err)
		return
	}
	rep, err := h.svc.Compare(r.Context(), req.Params, req.Kind)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

// ConvergenceHandler handles POST /api/convergence/{model} for montecarlo or lattice.
func (h *Handler) ConvergenceHandler(w http.ResponseWriter, r *http.Request) {
	model, err := service.ParseModel(mux.Vars(r)["model"])
	if err != nil {
		writeError(w, err)
		return
	}
	body, req, err := h.decodeRequest(w, r)
	if err != nil {
		writeError(w, err)
		return
	}
	if len(body.Ns) == 0 || len(body.Ns) > maxSweepPoints {
		writeError(w, domain.InvalidParam("ns", len(body.Ns)))
		return
	}

	var pts []service.ConvergencePoint
	switch model {
	case service.ModelMonteCarlo:
		for _, n := range body.Ns {
			if n > maxSimulations {
				writeError(w, domain.InvalidParam("ns", n))
				return
			}
		}
		pts, err = h.svc.MCConvergence(r.Context(), req.Params, req.Kind, body.Ns)
	case service.ModelLattice:
		for _, n := range body.Ns {
			if n > maxLatticeSteps {
				writeError(w, domain.InvalidParam("ns", n))
				return
			}
		}
		pts, err = h.svc.LatticeConvergence(r.Context(), req.Params, req.Kind, req.Style, body.Ns)
	default:
		err = fmt.Errorf("%w: convergence of %s", domain.ErrUnsupportedModel, model)
	}
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"model": model, "points": pts})
}

// SweepHandler handles POST /api/sweep/{axis}. lo and hi default to the axis range.
func (h *Handler) SweepHandler(w http.ResponseWriter, r *http.Request) {
	axis, err := service.ParseAxis(mux.Vars(r)["axis"])
	if err != nil {
		writeError(w, err)
		return
	}
	body, req, err := h.decodeRequest(w, r)
	if err != nil {
		writeError(w, err)
		return
	}

	lo, hi := body.Lo, body.Hi
	if lo == 0 && hi == 0 {
		lo, hi = service.DefaultRange(axis, req.Params)
	}
	points := body.Points
	if points == 0 {
		points = 200
	}
	if points > maxSweepPoints {
		writeError(w, domain.InvalidParam("points", points))
		return
	}

	pts, err := h.svc.GreekSweep(r.Context(), req.Params, req.Kind, axis, lo, hi, points)
	if err != nil {
		writeError(w, err)
		return
	}
	type point struct {
		X      float64    `json:"x"`
		Price  float64    `json:"price"`
		Greeks greeksJSON `json:"greeks"`
	}
	out := make([]point, len(pts))
	for i, p := range pts {
		out[i] = point{X: p.X, Price: p.Price, Greeks: toGreeksJSON(p.Greeks)}
	}
	writeJSON(w, http.StatusOK, map[string]any{"axis": axis, "points": out})
}

// DigitalHandler handles POST /api/digital.
func (h *Handler) DigitalHandler(w http.ResponseWriter, r *http.Request) {
	_, req, err := h.decodeRequest(w, r)
	if err != nil {
		writeError(w, err)
		return
	}
	rep, err := h.svc.DigitalITM(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

// PathsCSVHandler handles POST /api/paths.csv and streams one row per simulation.
func (h *Handler) PathsCSVHandler(w http.ResponseWriter, r *http.Request) {
	_, req, err := h.decodeRequest(w, r)
	if err != nil {
		writeError(w, err)
		return
	}
	if req.Simulations == 0 {
		req.Simulations = 10_000
	}
	if req.Simulations > maxExportRows {
		writeError(w, domain.InvalidParam("simulations", req.Simulations))
		return
	}
	if err := checkSteps(service.ModelMonteCarlo, req.Steps); err != nil {
		writeError(w, err)
		return
	}

	run, err := h.svc.MCRun(r.Context(), req, true)
	if err != nil {
		writeError(w, err)
		return
	}

	name := infra.SampleFilename("", req.Family, req.Kind, req.Simulations, time.Now())
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	w.Header().Set("X-Price", strconv.FormatFloat(run.Estimate.Price, 'f', -1, 64))
	w.Header().Set("X-Std-Err", strconv.FormatFloat(run.Estimate.StdErr, 'f', -1, 64))
	w.WriteHeader(http.StatusOK)
	if err := infra.WriteSamplesCSV(w, run.Samples, csvPlaces); err != nil {
		slog.Warn("CSV export interrupted", slog.Any("error", err))
	}
}

// GBMPathsCSVHandler handles POST /api/gbm.csv: the raw simulated paths, one row each.
func (h *Handler) GBMPathsCSVHandler(w http.ResponseWriter, r *http.Request) {
	_, req, err := h.decodeRequest(w, r)
	if err != nil {
		writeError(w, err)
		return
	}
	if req.Simulations == 0 {
		req.Simulations = 100
	}
	if req.Steps == 0 {
		req.Steps = h.svc.Options().PathSteps
	}
	if err := checkSteps(service.ModelMonteCarlo, req.Steps); err != nil {
		writeError(w, err)
		return
	}
	if req.Simulations*(req.Steps+1) > maxExportCells {
		writeError(w, domain.InvalidParam("simulations", req.Simulations))
		return
	}

	ps, err := h.svc.SimulatePaths(req.Params, req.Simulations, req.Steps, req.Seed)
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", infra.PathsFilename))
	w.WriteHeader(http.StatusOK)
	if err := infra.WritePathsCSV(w, ps.Matrix(), csvPlaces); err != nil {
		slog.Warn("CSV export interrupted", slog.Any("error", err))
	}
}

// EarlyExerciseHandler handles POST /api/lattice/early-exercise.
func (h *Handler) EarlyExerciseHandler(w http.ResponseWriter, r *http.Request) {
	_, req, err := h.decodeRequest(w, r)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := checkSteps(service.ModelLattice, req.Steps); err != nil {
		writeError(w, err)
		return
	}
	rep, err := h.svc.EarlyExercise(r.Context(), req.Params, req.Kind, req.Steps)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

// TerminalNodesCSVHandler handles POST /api/lattice/terminal.csv.
func (h *Handler) TerminalNodesCSVHandler(w http.ResponseWriter, r *http.Request) {
	_, req, err := h.decodeRequest(w, r)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := checkSteps(service.ModelLattice, req.Steps); err != nil {
		writeError(w, err)
		return
	}
	l, err := h.svc.TerminalLattice(r.Context(), req.Params, req.Steps)
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", infra.TerminalNodesFilename))
	w.WriteHeader(http.StatusOK)
	if err := infra.WriteTerminalNodesCSV(w, l, csvPlaces); err != nil {
		slog.Warn("CSV export interrupted", slog.Any("error", err))
	}
}

// BookHandler handles GET /api/book.
func (h *Handler) BookHandler(w http.ResponseWriter, r *http.Request) {
	if h.book == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "no book configured"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"state":   h.book.GetMarketState(),
		"actions": h.book.RecentActions(),
	})
}

// MetricsHandler handles GET /api/metrics.
func (h *Handler) MetricsHandler(w http.ResponseWriter, r *http.Request) {
	snap := h.metrics.Snapshot()
	writeJSON(w, http.StatusOK, struct {
		infra.MetricsSnapshot
		HitRatio float64 `json:"hit_ratio"`
	}{snap, snap.HitRatio()})
}

// HealthHandler handles GET /healthz. Any failing dependency degrades the status.
func (h *Handler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	overall := "healthy"
	checks := make(map[string]string, len(h.checks))
	for name, p := range h.checks {
		status := "healthy"
		if err := p.Ping(r.Context()); err != nil {
			status = "unhealthy"
			overall = "degraded"
			slog.Warn("Health check failed", slog.String("check", name), slog.Any("error", err))
		}
		checks[name] = status
	}

	code := http.StatusOK
	if overall != "healthy" {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, map[string]any{"status": overall, "checks": checks})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvalidParameter),
		errors.Is(err, domain.ErrInvalidOptionKind),
		errors.Is(err, domain.ErrUnsupportedModel):
		return http.StatusBadRequest
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, statusFor(err), map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("Failed to encode response", slog.Any("error", err))
	}
}
