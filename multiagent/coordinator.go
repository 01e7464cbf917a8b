package multiagent

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/robertftenbosch/parakeet/agent"
	"github.com/robertftenbosch/parakeet/config"
	"github.com/robertftenbosch/parakeet/errors"
	"github.com/robertftenbosch/parakeet/llm"
	"github.com/robertftenbosch/parakeet/session"
	"github.com/robertftenbosch/parakeet/tools"
)

// AgentResult is what a delegation returns to the orchestrator.
type AgentResult struct {
	Agent   string `json:"agent"`
	Task    string `json:"task"`
	Output  string `json:"output"`
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// Coordinator runs specialist agents on behalf of the orchestrator.
// Each delegation spawns a fresh specialist over a subset of the base
// registry; the subset never contains delegate_task or propose_plan, so
// a specialist structurally cannot delegate further or re-plan. That
// keeps the hierarchy at exactly one level.
type Coordinator struct {
	base   *tools.Registry
	client llm.Client
	limits config.Limits
	roles  map[string]Role

	// Callbacks are passed through to specialist turns, so dangerous
	// tool calls made by a specialist still hit the same confirmation
	// gate the user sees for the orchestrator.
	Callbacks agent.ProcessCallbacks

	// OnDelegate fires when a delegation starts, for front-end display.
	OnDelegate func(agentName, task string)
}

// NewCoordinator builds a coordinator over the base tool registry. The
// base registry holds the concrete tools; roles select from it.
func NewCoordinator(base *tools.Registry, client llm.Client, limits config.Limits) *Coordinator {
	return &Coordinator{
		base:   base,
		client: client,
		limits: limits,
		roles:  SpecialistRoles(),
	}
}

// Roles lists the delegatable roles.
func (c *Coordinator) Roles() []Role {
	out := make([]Role, 0, len(specialists))
	out = append(out, specialists...)
	return out
}

// Delegate runs one task on the named specialist and returns its final
// answer. The specialist gets a fresh conversation seeded with only its
// system prompt and the task; it does not see the orchestrator's
// history.
func (c *Coordinator) Delegate(ctx context.Context, agentName, task string, taskContext map[string]interface{}) (*AgentResult, error) {
	role, ok := c.roles[agentName]
	if !ok {
		return nil, errors.NewKind(errors.KindValidation,
			"unknown agent '%s': expected one of %v", agentName, SpecialistNames())
	}

	sub, err := c.base.Subset(role.Tools...)
	if err != nil {
		return nil, errors.Wrapf(err, "could not assemble toolset for agent '%s'", agentName)
	}

	if c.OnDelegate != nil {
		c.OnDelegate(agentName, task)
	}

	prompt := task
	if len(taskContext) > 0 {
		ctxJSON, err := json.MarshalIndent(taskContext, "", "  ")
		if err == nil {
			prompt += "\n\nContext: " + string(ctxJSON)
		}
	}

	// Delegation conversations are ephemeral: no store, not resumable.
	sess := &session.Session{
		ID:        "delegate-" + agentName + "-" + uuid.NewString(),
		CreatedAt: time.Now().UTC(),
	}
	specialist := agent.New(sub, c.client, nil, sess, role.SystemPrompt, c.limits)

	output, err := specialist.ProcessTurn(ctx, prompt, c.Callbacks)
	result := &AgentResult{
		Agent:   agentName,
		Task:    task,
		Output:  output,
		Success: err == nil,
	}
	if err != nil {
		result.Error = err.Error()
	}
	return result, nil
}

// DelegateTool exposes delegation to the orchestrator model. It is
// registered only in the orchestrator's registry.
type DelegateTool struct {
	Coordinator *Coordinator
}

func (t *DelegateTool) Schema() tools.Schema {
	return tools.Schema{
		Name:        "delegate_task",
		Description: "Delegates a task to a specialist agent and returns its result. Agents: coding, research, testing, bioinformatics.",
		Params: []tools.Param{
			{Name: "agent", Type: "string", Description: "Specialist agent name", Required: true},
			{Name: "task", Type: "string", Description: "Description of the task to perform", Required: true},
			{Name: "context", Type: "object", Description: "Optional background the specialist needs", Required: false},
		},
	}
}

func (t *DelegateTool) Dangerous() bool { return false }

func (t *DelegateTool) Execute(ctx context.Context, args map[string]interface{}) (string, error) {
	agentName := tools.ArgString(args, "agent")
	task := tools.ArgString(args, "task")
	if task == "" {
		return "", errors.NewKind(errors.KindValidation, "delegate_task requires a task")
	}
	taskContext, _ := args["context"].(map[string]interface{})

	result, err := t.Coordinator.Delegate(ctx, agentName, task, taskContext)
	if err != nil {
		return "", err
	}
	out, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return "", errors.Wrapf(err, "could not encode delegation result")
	}
	return string(out), nil
}

// NewOrchestrator assembles the coordinating agent: a registry holding
// only delegate_task and propose_plan over the coordinator's specialists.
func NewOrchestrator(c *Coordinator, store *session.Store, sess *session.Session) (*agent.Agent, error) {
	registry := tools.NewRegistry()
	if err := registry.Register(&DelegateTool{Coordinator: c}); err != nil {
		return nil, err
	}
	if err := registry.Register(&tools.ProposePlanTool{}); err != nil {
		return nil, err
	}
	role := OrchestratorRole()
	return agent.New(registry, c.client, store, sess, role.SystemPrompt, c.limits), nil
}
