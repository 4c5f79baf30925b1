package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"deckpilot/internal/governance/approval"
	"deckpilot/internal/session"
	"deckpilot/internal/types"
)

// chatCmd runs an interactive conversation
var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Interactive conversation with clarification follow-ups",
	Long: `Reads one utterance per line. A clarification question is answered by the
next line of the same conversation; "stop" abandons it.

Turns run in the background so approval commands can be typed while a
governed change waits:

  pending                 list requests waiting for approval
  approve <id> [reason]   approve a request
  deny <id> [reason]      deny a request
  new                     abandon the conversation and start another
  quit                    leave`,
	RunE: runChat,
}

// syncWriter serializes writes from the REPL and background turns.
type syncWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *syncWriter) Printf(format string, args ...interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Fprintf(s.w, format, args...)
}

func (s *syncWriter) Turn(res session.TurnResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	printTurn(s.w, res)
	fmt.Fprintln(s.w)
}

type chat struct {
	orch  *session.Orchestrator
	out   *syncWriter
	conv  string
	turns sync.WaitGroup
	wg    sync.WaitGroup
}

func runChat(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext(cmd.Context())
	defer cancel()

	rt, err := openRuntime(ctx)
	if err != nil {
		return err
	}
	defer rt.Close()

	c := &chat{
		orch: rt.orch,
		out:  &syncWriter{w: cmd.OutOrStdout()},
		conv: conversationID(),
	}
	c.out.Printf("conversation %s (field %s v%d, policy %s)\n",
		c.conv, rt.fields.Current().Field(), rt.fields.Current().Version(), rt.orch.Policy().Version)

	if svc := rt.orch.Approvals(); svc != nil {
		c.wg.Add(1)
		go func() {
			defer c.wg.Done()
			c.announceApprovals(ctx, svc)
		}()
	}

	scanner := bufio.NewScanner(cmd.InOrStdin())
	for scanner.Scan() {
		if quit := c.dispatch(ctx, strings.TrimSpace(scanner.Text())); quit {
			c.orch.Abandon(c.conv)
			break
		}
	}
	// end of input lets running turns finish
	c.turns.Wait()
	cancel()
	c.wg.Wait()
	return scanner.Err()
}

// dispatch handles one input line and reports whether the REPL should end.
func (c *chat) dispatch(ctx context.Context, line string) bool {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false
	}
	switch strings.ToLower(fields[0]) {
	case "quit", "exit":
		return true
	case "new":
		c.orch.Abandon(c.conv)
		c.conv = uuid.NewString()
		c.out.Printf("conversation %s\n", c.conv)
		return false
	case "pending":
		c.listPending(ctx)
		return false
	case "approve", "deny":
		if len(fields) >= 2 {
			c.decide(ctx, strings.EqualFold(fields[0], "approve"), fields[1], strings.Join(fields[2:], " "))
			return false
		}
	}

	conv := c.conv
	u := types.NewUtterance(line, "")
	c.turns.Add(1)
	go func() {
		defer c.turns.Done()
		res, err := c.orch.Handle(ctx, conv, u)
		if errors.Is(err, session.ErrConversationBusy) {
			c.out.Printf("still working on the previous request; say stop to cancel it\n")
			return
		}
		if err != nil {
			c.out.Printf("error: %v\n", err)
			return
		}
		c.out.Turn(res)
	}()
	return false
}

func (c *chat) listPending(ctx context.Context) {
	svc := c.orch.Approvals()
	if svc == nil {
		c.out.Printf("approvals are disabled by policy\n")
		return
	}
	pending, err := svc.ListPending(ctx)
	if err != nil {
		c.out.Printf("error: %v\n", err)
		return
	}
	if len(pending) == 0 {
		c.out.Printf("no pending approvals\n")
		return
	}
	for _, r := range pending {
		c.out.Printf("  %s  %s  governed: %s\n", r.ID, r.Action, strings.Join(r.Tokens, ", "))
	}
}

func (c *chat) decide(ctx context.Context, approve bool, id, reason string) {
	svc := c.orch.Approvals()
	if svc == nil {
		c.out.Printf("approvals are disabled by policy\n")
		return
	}
	if reason == "" {
		reason = "answered in chat"
	}
	if _, err := svc.Decide(ctx, id, approve, reason); err != nil {
		c.out.Printf("error: %v\n", err)
		return
	}
	c.out.Printf("approval %s: approved=%v\n", id, approve)
}

func (c *chat) announceApprovals(ctx context.Context, svc approval.Service) {
	for {
		msg, err := svc.Queue().Consume(ctx)
		if err != nil {
			return
		}
		switch ev := msg.T(); ev.Topic {
		case approval.TopicRequestCreated:
			if r, ok := ev.Data.(*approval.Request); ok {
				c.out.Printf("approval requested %s for %s (governed: %s); answer with approve/deny %s\n",
					r.ID, r.Action, strings.Join(r.Tokens, ", "), r.ID)
			}
		case approval.TopicRequestExpired:
			if d, ok := ev.Data.(*approval.Decision); ok {
				c.out.Printf("approval %s expired: %s\n", d.ID, d.Reason)
			}
		}
		_ = msg.Ack()
	}
}
