package simulator

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"deckpilot/internal/logging"
	"deckpilot/internal/types"
)

// Eclipse runs ECLIPSE through eclrun and reads the PRT message log.
type Eclipse struct {
	Binary   string
	Args     []string
	WorkDir  string
	KeepRuns bool
}

// NewEclipse creates an Eclipse backend; an empty binary means "eclrun".
func NewEclipse(binary string, args []string, workDir string) *Eclipse {
	if binary == "" {
		binary = "eclrun"
	}
	return &Eclipse{Binary: binary, Args: args, WorkDir: workDir}
}

func (e *Eclipse) Name() string { return "eclipse" }

func (e *Eclipse) Run(ctx context.Context, d Deck) types.SimulationResult {
	start := time.Now()
	elapsed := func() float64 { return time.Since(start).Seconds() }

	dir, _, err := writeCase(e.WorkDir, d)
	if err != nil {
		return types.Failed(elapsed(), err.Error())
	}
	defer releaseCase(dir, e.KeepRuns)
	args := append(append([]string{}, e.Args...), "eclipse", d.Case())
	proc, err := runProcess(ctx, dir, e.Binary, args...)
	if err != nil {
		return types.Failed(elapsed(), err.Error())
	}

	prt, err := os.ReadFile(filepath.Join(dir, d.Case()+".PRT"))
	if err != nil {
		return types.Failed(elapsed(), fmt.Sprintf("no print file: %v", err))
	}
	errs, metrics := parsePRT(string(prt))
	if proc.ExitCode != 0 && len(errs) == 0 {
		errs = append(errs, fmt.Sprintf("%s exited with code %d", e.Binary, proc.ExitCode))
	}
	logging.Simulator("eclipse run %s: exit=%d errors=%d in %s", d.Case(), proc.ExitCode, len(errs), proc.Duration)
	return types.SimulationResult{
		Converged:      proc.ExitCode == 0 && len(errs) == 0,
		Errors:         append([]string{}, errs...),
		SummaryMetrics: metrics,
		WallTime:       elapsed(),
	}
}

// parsePRT reads the "@--" message blocks of a print file. ERROR and BUG
// blocks become errors with their continuation lines joined; WARNING,
// PROBLEM and MESSAGE blocks are counted.
func parsePRT(text string) ([]string, map[string]float64) {
	metrics := map[string]float64{"warnings": 0, "problems": 0, "messages": 0}
	var errs []string

	var kind string
	var parts []string
	flush := func() {
		if kind == "ERROR" || kind == "BUG" {
			errs = append(errs, kind+": "+strings.Join(parts, " "))
		}
		kind, parts = "", nil
	}

	sc := bufio.NewScanner(strings.NewReader(text))
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		switch {
		case strings.HasPrefix(line, "@--"):
			flush()
			fields := strings.Fields(strings.TrimPrefix(line, "@--"))
			if len(fields) == 0 {
				continue
			}
			kind = strings.ToUpper(fields[0])
			switch kind {
			case "WARNING":
				metrics["warnings"]++
			case "PROBLEM":
				metrics["problems"]++
			case "MESSAGE", "COMMENT":
				metrics["messages"]++
			}
		case kind != "" && strings.HasPrefix(line, "@"):
			if msg := strings.TrimSpace(strings.TrimPrefix(line, "@")); msg != "" {
				parts = append(parts, msg)
			}
		default:
			flush()
		}
	}
	flush()
	metrics["errors"] = float64(len(errs))
	return errs, metrics
}
