package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"deckpilot/internal/governance/approval"
	"deckpilot/internal/types"
)

var (
	runJSON    bool
	runApprove bool
	runDeny    bool
)

// runCmd executes a single utterance
var runCmd = &cobra.Command{
	Use:   "run [utterance]",
	Short: "Run one utterance through the pipeline",
	Long: `Processes one natural-language request through every checkpoint and, when
the governance gate allows it, the configured simulator backend.

A governed change waits for approval until the policy timeout. Use --approve
or --deny to answer it from the command line.

Example:
  deckpilot run set well PROD-01 rate to 500 bbl per day`,
	Args: cobra.MinimumNArgs(1),
	RunE: runUtterance,
}

func init() {
	runCmd.Flags().BoolVar(&runJSON, "json", false, "Print the turn as JSON")
	runCmd.Flags().BoolVar(&runApprove, "approve", false, "Approve governed changes raised by this run")
	runCmd.Flags().BoolVar(&runDeny, "deny", false, "Deny governed changes raised by this run")
	runCmd.MarkFlagsMutuallyExclusive("approve", "deny")
}

func joinArgs(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}

func conversationID() string {
	if conversation != "" {
		return conversation
	}
	return uuid.NewString()
}

func runUtterance(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext(cmd.Context())
	defer cancel()

	rt, err := openRuntime(ctx)
	if err != nil {
		return err
	}
	defer rt.Close()

	var wg sync.WaitGroup
	answerCtx, stopAnswering := context.WithCancel(ctx)
	if svc := rt.orch.Approvals(); svc != nil && (runApprove || runDeny) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			answerApprovals(answerCtx, svc, runApprove, "answered from the command line")
		}()
	}

	input := joinArgs(args)
	logger.Info("processing utterance", zap.String("input", input))
	res, err := rt.orch.Handle(ctx, conversationID(), types.NewUtterance(input, ""))
	stopAnswering()
	wg.Wait()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if runJSON {
		return printTurnJSON(out, res)
	}
	printTurn(out, res)
	return nil
}

// answerApprovals decides every request announced on the service queue until
// ctx is done.
func answerApprovals(ctx context.Context, svc approval.Service, approve bool, reason string) {
	for {
		msg, err := svc.Queue().Consume(ctx)
		if err != nil {
			if !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
				logger.Warn("approval queue closed", zap.Error(err))
			}
			return
		}
		ev := msg.T()
		req, ok := ev.Data.(*approval.Request)
		if ev.Topic != approval.TopicRequestCreated || !ok {
			_ = msg.Ack()
			continue
		}
		if _, err := svc.Decide(ctx, req.ID, approve, reason); err != nil {
			_ = msg.Nack(err)
			logger.Warn("failed to answer approval", zap.String("id", req.ID), zap.Error(err))
			continue
		}
		_ = msg.Ack()
		fmt.Fprintf(os.Stderr, "approval %s: approved=%v\n", req.ID, approve)
	}
}
