package tools

import (
	"context"
	"encoding/json"

	"github.com/robertftenbosch/parakeet/errors"
	"github.com/robertftenbosch/parakeet/plan"
)

// ProposePlanTool lets the model present a multi-step plan and hands the
// decision to the user. The selection result, including any declined
// outcome, is returned to the model as the tool result.
type ProposePlanTool struct {
	Select plan.Selector
}

func (t *ProposePlanTool) Schema() Schema {
	return Schema{
		Name:        "propose_plan",
		Description: "Proposes a multi-step plan to the user before acting. The user can approve all steps, a subset, or decline. Returns the approved steps; do not execute anything the user did not approve.",
		Params: []Param{
			{Name: "title", Type: "string", Description: "Short title for the plan", Required: true},
			{Name: "steps", Type: "array", Description: "Ordered plan steps, each with description, optional agent, optional rationale", Required: true},
		},
	}
}

func (t *ProposePlanTool) Dangerous() bool { return false }

func (t *ProposePlanTool) Execute(ctx context.Context, args map[string]interface{}) (string, error) {
	p, err := parsePlanArgs(args)
	if err != nil {
		return "", err
	}
	if t.Select == nil {
		return "", errors.New("no plan selector configured")
	}

	sel := t.Select(*p)
	out, err := json.MarshalIndent(sel, "", "  ")
	if err != nil {
		return "", errors.Wrapf(err, "could not encode plan selection")
	}
	return string(out), nil
}

func parsePlanArgs(args map[string]interface{}) (*plan.Plan, error) {
	title := ArgString(args, "title")
	rawSteps, ok := args["steps"].([]interface{})
	if !ok || len(rawSteps) == 0 {
		return nil, errors.NewKind(errors.KindValidation, "a plan needs at least one step")
	}

	p := &plan.Plan{Title: title}
	for i, raw := range rawSteps {
		stepMap, ok := raw.(map[string]interface{})
		if !ok {
			return nil, errors.NewKind(errors.KindValidation, "step %d is not an object", i+1)
		}
		step := plan.Step{
			Description: ArgString(stepMap, "description"),
			Agent:       ArgString(stepMap, "agent"),
			Rationale:   ArgString(stepMap, "rationale"),
		}
		if step.Description == "" {
			return nil, errors.NewKind(errors.KindValidation, "step %d has no description", i+1)
		}
		p.Steps = append(p.Steps, step)
	}
	return p, nil
}
