// Package simulator is the boundary to reservoir simulator backends. Every
// backend implements Adapter and reports through the same normalized
// SimulationResult; a failed or non-converged run is a result, never an error.
package simulator

import (
	"context"
	"fmt"
	"runtime/debug"
	"strings"
	"time"

	"deckpilot/internal/deck"
	"deckpilot/internal/logging"
	"deckpilot/internal/types"
)

// DefaultCaseName names runs whose deck carries no case name.
const DefaultCaseName = "DECKPILOT"

// Deck is the unit handed to a backend: an optional base deck and the
// fragment to merge into it.
type Deck struct {
	Base     string
	Fragment deck.Fragment
	CaseName string
}

// Text assembles the full deck text. Without a base the fragment is rendered
// on its own as an incremental deck.
func (d Deck) Text() (string, error) {
	return deck.Assemble(d.Base, d.Fragment)
}

// Case returns the upper-cased case name used for run files.
func (d Deck) Case() string {
	name := strings.ToUpper(strings.TrimSpace(d.CaseName))
	if name == "" {
		return DefaultCaseName
	}
	return name
}

// Adapter is one simulator backend.
type Adapter interface {
	Name() string
	// Run executes the deck. Implementations must honour ctx and always
	// return a result, reporting failures in its errors.
	Run(ctx context.Context, d Deck) types.SimulationResult
}

// Execute runs the adapter on its own goroutine under a timeout. Timeouts,
// cancellation and panics come back as non-converged results. A zero timeout
// means no deadline beyond ctx.
func Execute(ctx context.Context, a Adapter, d Deck, timeout time.Duration) types.SimulationResult {
	log := logging.Get(logging.CategorySimulator)
	var runCtx context.Context
	var cancel context.CancelFunc
	if timeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, timeout)
	} else {
		runCtx, cancel = context.WithCancel(ctx)
	}
	defer cancel()

	start := time.Now()
	done := make(chan types.SimulationResult, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				log.Errorf("backend %s panicked: %v\n%s", a.Name(), r, debug.Stack())
				done <- types.Failed(time.Since(start).Seconds(), fmt.Sprintf("backend %s panicked: %v", a.Name(), r))
			}
		}()
		done <- a.Run(runCtx, d)
	}()

	interrupted := func() types.SimulationResult {
		elapsed := time.Since(start).Seconds()
		if ctx.Err() != nil {
			log.Infof("%s run of %s cancelled", a.Name(), d.Case())
			return types.Failed(elapsed, "simulation cancelled")
		}
		log.Warnf("%s run of %s timed out after %s", a.Name(), d.Case(), timeout)
		return types.Failed(elapsed, fmt.Sprintf("timeout after %s", timeout))
	}

	var res types.SimulationResult
	select {
	case res = <-done:
		// a backend that gave up because ctx ended reports like an interruption
		if !res.Converged && runCtx.Err() != nil {
			res = interrupted()
		}
	case <-runCtx.Done():
		res = interrupted()
	}

	res = res.Normalize()
	if res.WallTime <= 0 {
		res.WallTime = time.Since(start).Seconds()
	}
	logging.Audit().SimulationRun(a.Name(), res.Converged, len(res.Errors), time.Since(start))
	return res
}
