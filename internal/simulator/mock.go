package simulator

import (
	"context"
	"hash/fnv"
	"sync"
	"time"

	"deckpilot/internal/deck"
	"deckpilot/internal/types"
)

// Mock is the deterministic backend used in tests and CI. Metrics are derived
// from the fragment alone, so the same deck always yields the same result.
type Mock struct {
	// Delay simulates run time; the run honours ctx while waiting.
	Delay time.Duration
	// FailOn maps a keyword to the error reported when the fragment uses it.
	FailOn map[string]string

	mu   sync.Mutex
	runs int
}

// NewMock creates a mock backend with no delay and no scripted failures.
func NewMock() *Mock {
	return &Mock{FailOn: map[string]string{}}
}

func (m *Mock) Name() string { return "mock" }

// Runs returns how many runs started.
func (m *Mock) Runs() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.runs
}

func (m *Mock) Run(ctx context.Context, d Deck) types.SimulationResult {
	m.mu.Lock()
	m.runs++
	m.mu.Unlock()

	start := time.Now()
	if m.Delay > 0 {
		timer := time.NewTimer(m.Delay)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return types.Failed(time.Since(start).Seconds(), "simulation cancelled: "+ctx.Err().Error())
		}
	}

	if _, err := d.Text(); err != nil {
		return types.Failed(time.Since(start).Seconds(), err.Error())
	}

	var errs []string
	for _, kw := range d.Fragment.Keywords() {
		if msg, ok := m.FailOn[kw]; ok {
			errs = append(errs, msg)
		}
	}
	return types.SimulationResult{
		Converged:      len(errs) == 0,
		Errors:         append([]string{}, errs...),
		SummaryMetrics: mockMetrics(d.Fragment),
		WallTime:       time.Since(start).Seconds(),
	}
}

// mockMetrics sums every rate and pressure item per KEYWORD.FIELD and gives
// each requested summary vector a stable pseudo value.
func mockMetrics(f deck.Fragment) map[string]float64 {
	metrics := map[string]float64{"records": float64(f.Len())}
	for _, rec := range f.Records() {
		def, ok := deck.Lookup(rec.Keyword)
		if !ok {
			continue
		}
		if def.Layout == deck.LayoutList {
			for _, it := range rec.Items {
				metrics[rec.Keyword+":"+it.String()] = pseudoValue(rec.Keyword + ":" + it.String())
			}
			continue
		}
		for i, it := range rec.Items {
			if i >= len(def.Fields) || def.Fields[i].Quantity == "" {
				continue
			}
			switch def.Fields[i].Quantity {
			case deck.QuantityYear, deck.QuantityDay:
				continue
			}
			if v, ok := it.Number(); ok {
				metrics[rec.Keyword+"."+def.Fields[i].Name] += v
			}
		}
	}
	return metrics
}

func pseudoValue(key string) float64 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return deck.Round(float64(h.Sum32()%100000) / 10)
}
