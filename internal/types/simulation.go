package types

// SimulationResult is the normalized output of every simulator backend.
// The JSON shape is fixed: converged, errors, summary_metrics, wall_time.
type SimulationResult struct {
	Converged      bool               `json:"converged"`
	Errors         []string           `json:"errors"`
	SummaryMetrics map[string]float64 `json:"summary_metrics"`
	WallTime       float64            `json:"wall_time"`
}

// Normalize guarantees non-nil errors and metrics so the wire shape never
// carries null for either.
func (r SimulationResult) Normalize() SimulationResult {
	out := SimulationResult{
		Converged:      r.Converged,
		Errors:         make([]string, len(r.Errors)),
		SummaryMetrics: make(map[string]float64, len(r.SummaryMetrics)),
		WallTime:       r.WallTime,
	}
	copy(out.Errors, r.Errors)
	for k, v := range r.SummaryMetrics {
		out.SummaryMetrics[k] = v
	}
	return out
}

// Failed builds a non-converged result with the given error entries.
func Failed(wallTime float64, errs ...string) SimulationResult {
	return SimulationResult{
		Converged:      false,
		Errors:         append([]string{}, errs...),
		SummaryMetrics: map[string]float64{},
		WallTime:       wallTime,
	}
}
