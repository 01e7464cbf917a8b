package terminal

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/robertftenbosch/parakeet/agent"
	"github.com/robertftenbosch/parakeet/plan"
)

// ToolVerbosity controls how much tool activity the terminal prints.
type ToolVerbosity string

const (
	ToolVerbosityNone ToolVerbosity = "none"
	ToolVerbosityInfo ToolVerbosity = "info"
	ToolVerbosityAll  ToolVerbosity = "all"
)

// Terminal handles the terminal/CLI interaction mode for the agent.
type Terminal struct {
	agent     *agent.Agent
	verbosity ToolVerbosity
	in        *bufio.Reader
	out       io.Writer
}

// New creates a new Terminal over stdin/stdout.
func New(a *agent.Agent, verbosity ToolVerbosity) *Terminal {
	return &Terminal{
		agent:     a,
		verbosity: verbosity,
		in:        bufio.NewReader(os.Stdin),
		out:       os.Stdout,
	}
}

// Run starts the interactive session. An initial prompt from the command
// line is processed first; /quit or /exit (or EOF) ends the session.
func (t *Terminal) Run(ctx context.Context, initialPrompt string) error {
	if initialPrompt != "" {
		t.processTurn(ctx, initialPrompt)
	}

	for {
		fmt.Fprint(t.out, "You: ")
		line, err := t.in.ReadString('\n')
		if err != nil {
			if err == io.EOF {
				return nil
			}
			return err
		}

		userInput := strings.TrimSpace(line)
		if userInput == "" {
			continue
		}
		if userInput == "/quit" || userInput == "/exit" {
			return nil
		}

		t.processTurn(ctx, userInput)
	}
}

// processTurn runs one turn with terminal-flavored callbacks. Turn
// errors are printed, not fatal; the conversation continues.
func (t *Terminal) processTurn(ctx context.Context, userInput string) {
	if _, err := t.agent.ProcessTurn(ctx, userInput, t.Callbacks()); err != nil {
		fmt.Fprintf(t.out, "Error: %v\n", err)
	}
}

// Callbacks returns the terminal's ProcessCallbacks. Exposed so other
// loops (like specialist agents) can share the same confirmation gate
// and output.
func (t *Terminal) Callbacks() agent.ProcessCallbacks {
	return agent.ProcessCallbacks{
		OnAssistantMessage: func(message string) {
			fmt.Fprintf(t.out, "Parakeet: %s\n", message)
		},
		OnToolCall: func(name string, args map[string]interface{}) {
			switch t.verbosity {
			case ToolVerbosityAll:
				fmt.Fprintf(t.out, "Parakeet calls tool `%s` with args: %v\n", name, args)
			case ToolVerbosityInfo:
				fmt.Fprintf(t.out, "Parakeet calls tool `%s`\n", name)
			}
		},
		OnToolResult: func(name string, result string, err error) {
			if t.verbosity != ToolVerbosityAll {
				return
			}
			if err != nil {
				fmt.Fprintf(t.out, "Tool `%s` failed: %v\n", name, err)
				return
			}
			fmt.Fprintf(t.out, "Tool `%s` output: %s\n", name, result)
		},
		ConfirmTool: t.confirmTool,
		SelectPlan:  t.selectPlan,
		OnWarning: func(warning string) {
			fmt.Fprintf(t.out, "Warning: %s\n", warning)
		},
	}
}

// confirmTool is the per-invocation safety gate. Only an explicit yes
// approves; everything else, including a read error, declines.
func (t *Terminal) confirmTool(toolName, detail string) bool {
	fmt.Fprintf(t.out, "\nParakeet wants to run `%s`:\n%s\n", toolName, detail)
	fmt.Fprint(t.out, "Allow this? (y/n): ")
	answer, err := t.in.ReadString('\n')
	if err != nil {
		return false
	}
	answer = strings.TrimSpace(strings.ToLower(answer))
	return answer == "y" || answer == "yes"
}

// selectPlan shows a proposed plan and collects the user's selection.
// Invalid input re-prompts; empty input or "none" declines the plan.
func (t *Terminal) selectPlan(p plan.Plan) plan.Selection {
	fmt.Fprintf(t.out, "\nProposed plan: %s\n", p.Title)
	for i, step := range p.Steps {
		line := fmt.Sprintf("  %d. %s", i+1, step.Description)
		if step.Agent != "" {
			line += fmt.Sprintf(" [%s]", step.Agent)
		}
		fmt.Fprintln(t.out, line)
		if step.Rationale != "" {
			fmt.Fprintf(t.out, "     %s\n", step.Rationale)
		}
	}

	for {
		fmt.Fprint(t.out, "Select steps to run (e.g. \"1 3\", \"all\", or \"none\"): ")
		line, err := t.in.ReadString('\n')
		if err != nil {
			return plan.Declined(p)
		}
		indices, declined, err := plan.ParseSelection(strings.TrimSpace(line), len(p.Steps))
		if err != nil {
			fmt.Fprintf(t.out, "Invalid selection: %v\n", err)
			continue
		}
		if declined {
			return plan.Declined(p)
		}
		return plan.Approved(p, indices)
	}
}
