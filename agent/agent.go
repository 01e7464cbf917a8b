package agent

import (
	"context"
	"fmt"
	"time"

	"github.com/robertftenbosch/parakeet/config"
	"github.com/robertftenbosch/parakeet/errors"
	"github.com/robertftenbosch/parakeet/llm"
	"github.com/robertftenbosch/parakeet/plan"
	"github.com/robertftenbosch/parakeet/session"
	"github.com/robertftenbosch/parakeet/tools"
)

// ProcessCallbacks is how a front-end observes and steers a turn. The
// engine never touches the terminal itself; whatever surface hosts the
// agent supplies these.
type ProcessCallbacks struct {
	// OnAssistantMessage receives each assistant text response.
	OnAssistantMessage func(content string)
	// OnToolCall fires before a tool executes.
	OnToolCall func(name string, args map[string]interface{})
	// OnToolResult fires after a tool call resolves, success or failure.
	OnToolResult func(name string, result string, err error)
	// ConfirmTool is the safety gate for dangerous calls. Nil means every
	// dangerous call is declined.
	ConfirmTool tools.Confirmer
	// SelectPlan presents a proposed plan and collects the user's
	// selection. Nil declines every plan.
	SelectPlan plan.Selector
	// OnWarning receives non-fatal problems, like a failed session save.
	OnWarning func(msg string)
}

func (cb ProcessCallbacks) warn(format string, args ...interface{}) {
	if cb.OnWarning != nil {
		cb.OnWarning(fmt.Sprintf(format, args...))
	}
}

// Agent runs the model/tool loop for one session. Tools come from the
// registry; which tools that registry holds decides what the agent can
// do, so specialist agents are just agents with smaller registries.
type Agent struct {
	Registry     *tools.Registry
	Client       llm.Client
	Store        *session.Store
	Session      *session.Session
	SystemPrompt string
	Limits       config.Limits
}

// New assembles an agent over an existing session. The system prompt is
// pinned as the first message if the session does not carry one yet.
func New(registry *tools.Registry, client llm.Client, store *session.Store, sess *session.Session, systemPrompt string, limits config.Limits) *Agent {
	if systemPrompt != "" {
		if len(sess.Messages) == 0 || sess.Messages[0].Role != session.RoleSystem {
			sess.Messages = append([]session.Message{
				{Role: session.RoleSystem, Content: systemPrompt},
			}, sess.Messages...)
		}
	}
	return &Agent{
		Registry:     registry,
		Client:       client,
		Store:        store,
		Session:      sess,
		SystemPrompt: systemPrompt,
		Limits:       limits,
	}
}

// ProcessTurn runs one user turn to completion: model rounds and tool
// execution alternate until the model answers without tool calls or the
// iteration cap is hit. The final assistant text is returned.
func (a *Agent) ProcessTurn(ctx context.Context, userInput string, cb ProcessCallbacks) (string, error) {
	a.Session.AddMessage(session.Message{Role: session.RoleUser, Content: userInput})

	schemas := a.Registry.Schemas()
	lastContent := ""

	for iteration := 0; ; iteration++ {
		if a.Limits.MaxIterations > 0 && iteration >= a.Limits.MaxIterations {
			return lastContent, errors.NewKind(errors.KindIterationCap,
				"turn exceeded %d model iterations", a.Limits.MaxIterations)
		}

		resp, err := a.chatWithRetry(ctx, schemas)
		if err != nil {
			return lastContent, err
		}

		a.Session.AddMessage(*resp)
		if resp.Content != "" {
			lastContent = resp.Content
			if cb.OnAssistantMessage != nil {
				cb.OnAssistantMessage(resp.Content)
			}
		}

		if len(resp.ToolCalls) == 0 {
			a.save(cb)
			return lastContent, nil
		}

		// Every requested call gets exactly one result message, in call
		// order, whether it ran, failed, or was declined.
		for _, tc := range resp.ToolCalls {
			result, err := a.runToolCall(ctx, tc, cb)
			if cb.OnToolResult != nil {
				cb.OnToolResult(tc.Name, result, err)
			}
			if err != nil {
				result = fmt.Sprintf("Error: %v", err)
			}
			a.Session.AddMessage(session.Message{
				Role:      session.RoleTool,
				Content:   result,
				ToolCalls: []session.ToolCall{{ID: tc.ID, Name: tc.Name}},
			})
		}
		a.save(cb)
	}
}

// chatWithRetry calls the model, retrying transient failures with
// exponential backoff.
func (a *Agent) chatWithRetry(ctx context.Context, schemas []tools.Schema) (*session.Message, error) {
	retries := a.Limits.MaxRetries
	delay := a.Limits.RetryBaseDelay
	if delay <= 0 {
		delay = time.Second
	}

	var lastErr error
	for attempt := 0; attempt <= retries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, errors.Wrapf(ctx.Err(), "turn canceled")
			case <-time.After(delay):
			}
			delay *= 2
		}
		resp, err := a.Client.Chat(ctx, a.Session.Messages, schemas)
		if err == nil {
			return resp, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			break
		}
	}
	return nil, errors.WrapKind(lastErr, errors.KindEndpoint,
		"model request failed after %d attempt(s)", retries+1)
}

// runToolCall resolves one tool call: lookup, validation, the
// confirmation gate, then execution. The gate is consulted for every
// dangerous invocation; an approval never carries over to the next call.
func (a *Agent) runToolCall(ctx context.Context, tc session.ToolCall, cb ProcessCallbacks) (string, error) {
	tool, err := a.Registry.Lookup(tc.Name)
	if err != nil {
		return "", err
	}

	if err := tools.ValidateArgs(tool.Schema(), tc.Args); err != nil {
		return "", err
	}

	if cb.OnToolCall != nil {
		cb.OnToolCall(tc.Name, tc.Args)
	}

	if needs, detail := confirmationRequired(tool, tc.Args); needs {
		if cb.ConfirmTool == nil || !cb.ConfirmTool(tc.Name, detail) {
			return "", errors.NewKind(errors.KindConfirmationDeclined,
				"user declined execution of '%s'", tc.Name)
		}
	}

	// The plan tool answers with whatever selector the current front-end
	// supplies. No selector means no way to approve, so plans decline.
	if pp, ok := tool.(*tools.ProposePlanTool); ok {
		if cb.SelectPlan != nil {
			pp.Select = cb.SelectPlan
		} else if pp.Select == nil {
			pp.Select = plan.Declined
		}
	}

	return tool.Execute(ctx, tc.Args)
}

// confirmationRequired decides whether this particular invocation needs
// the gate and what the prompt should show.
func confirmationRequired(tool tools.Tool, args map[string]interface{}) (bool, string) {
	if cd, ok := tool.(tools.ConditionallyDangerous); ok {
		return cd.NeedsConfirmation(args)
	}
	if !tool.Dangerous() {
		return false, ""
	}
	if d, ok := tool.(tools.ConfirmationDetail); ok {
		return true, d.ConfirmationDetail(args)
	}
	return true, tools.RenderArgs(args)
}

// save persists the session. Storage trouble never kills a turn; the
// conversation continues in memory and the front-end gets a warning.
func (a *Agent) save(cb ProcessCallbacks) {
	if a.Store == nil {
		return
	}
	if err := a.Store.Save(a.Session); err != nil {
		cb.warn("failed to save session: %v", err)
	}
}
