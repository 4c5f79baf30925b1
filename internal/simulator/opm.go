package simulator

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"deckpilot/internal/logging"
	"deckpilot/internal/types"
)

// OPMFlow runs the OPM Flow simulator.
type OPMFlow struct {
	Binary  string
	Args    []string
	WorkDir string
	// KeepRuns leaves each run directory behind for inspection.
	KeepRuns bool
}

// NewOPMFlow creates an OPM Flow backend; an empty binary means "flow".
func NewOPMFlow(binary string, args []string, workDir string) *OPMFlow {
	if binary == "" {
		binary = "flow"
	}
	return &OPMFlow{Binary: binary, Args: args, WorkDir: workDir}
}

func (o *OPMFlow) Name() string { return "opm" }

func (o *OPMFlow) Run(ctx context.Context, d Deck) types.SimulationResult {
	start := time.Now()
	elapsed := func() float64 { return time.Since(start).Seconds() }

	dir, dataFile, err := writeCase(o.WorkDir, d)
	if err != nil {
		return types.Failed(elapsed(), err.Error())
	}
	defer releaseCase(dir, o.KeepRuns)
	args := append([]string{filepath.Base(dataFile), "--output-dir=" + filepath.Join(dir, "output")}, o.Args...)
	proc, err := runProcess(ctx, dir, o.Binary, args...)
	if err != nil {
		return types.Failed(elapsed(), err.Error())
	}

	errs, metrics := parseFlowOutput(proc.Stdout + "\n" + proc.Stderr)
	if proc.ExitCode != 0 && len(errs) == 0 {
		errs = append(errs, fmt.Sprintf("%s exited with code %d", o.Binary, proc.ExitCode))
	}
	logging.Simulator("opm run %s: exit=%d errors=%d in %s", d.Case(), proc.ExitCode, len(errs), proc.Duration)
	return types.SimulationResult{
		Converged:      proc.ExitCode == 0 && len(errs) == 0,
		Errors:         append([]string{}, errs...),
		SummaryMetrics: metrics,
		WallTime:       elapsed(),
	}
}

var (
	flowErrorRe   = regexp.MustCompile(`(?:Error|Problem):\s*(.*)$`)
	flowCounterRe = regexp.MustCompile(`^(Total time \(seconds\)|Overall Newton Iterations|Overall Linear Iterations):\s*([0-9.eE+-]+)`)
)

var flowCounters = map[string]string{
	"Total time (seconds)":      "solver_seconds",
	"Overall Newton Iterations": "newton_iterations",
	"Overall Linear Iterations": "linear_iterations",
}

// parseFlowOutput collects Error:/Problem: lines in order, counts report
// steps and picks up the end-of-run counters.
func parseFlowOutput(out string) ([]string, map[string]float64) {
	var errs []string
	metrics := map[string]float64{"report_steps": 0}
	sc := bufio.NewScanner(strings.NewReader(out))
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if strings.HasPrefix(line, "Report step") {
			metrics["report_steps"]++
			continue
		}
		if m := flowCounterRe.FindStringSubmatch(line); m != nil {
			if v, err := strconv.ParseFloat(m[2], 64); err == nil {
				metrics[flowCounters[m[1]]] = v
			}
			continue
		}
		if m := flowErrorRe.FindStringSubmatch(line); m != nil {
			errs = append(errs, strings.TrimSpace(m[0]))
		}
	}
	return errs, metrics
}

// writeCase writes the assembled deck into a fresh run directory and returns
// the directory and data file path.
func writeCase(workDir string, d Deck) (string, string, error) {
	text, err := d.Text()
	if err != nil {
		return "", "", err
	}
	if workDir == "" {
		workDir = os.TempDir()
	}
	if err := os.MkdirAll(workDir, 0o755); err != nil {
		return "", "", fmt.Errorf("failed to create work dir: %w", err)
	}
	dir, err := os.MkdirTemp(workDir, strings.ToLower(d.Case())+"-")
	if err != nil {
		return "", "", fmt.Errorf("failed to create run dir: %w", err)
	}
	dataFile := filepath.Join(dir, d.Case()+".DATA")
	if err := os.WriteFile(dataFile, []byte(text), 0o644); err != nil {
		_ = os.RemoveAll(dir)
		return "", "", fmt.Errorf("failed to write deck: %w", err)
	}
	return dir, dataFile, nil
}

// releaseCase removes a run directory once its output has been read.
func releaseCase(dir string, keep bool) {
	if keep {
		logging.Get(logging.CategorySimulator).Debugf("run directory kept at %s", dir)
		return
	}
	if err := os.RemoveAll(dir); err != nil {
		logging.Get(logging.CategorySimulator).Warnf("failed to remove run directory %s: %v", dir, err)
	}
}
