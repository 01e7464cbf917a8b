// Package plan implements the plan proposal and selection protocol: the
// model proposes an ordered list of steps and the user approves a subset
// before anything runs.
package plan

import (
	"sort"
	"strconv"
	"strings"

	"github.com/robertftenbosch/parakeet/errors"
)

// Step is one proposed action. Agent optionally names the specialist that
// would execute the step in multi-agent mode.
type Step struct {
	Description string `json:"description"`
	Agent       string `json:"agent,omitempty"`
	Rationale   string `json:"rationale,omitempty"`
}

// Plan is an ordered, titled sequence of proposed steps.
type Plan struct {
	Title string `json:"title"`
	Steps []Step `json:"steps"`
}

// Selection records the user's decision on a plan. SelectedSteps holds
// 0-based indices into the plan's steps, always in original plan order
// regardless of how the user typed them. A declined plan selects nothing
// and is treated as entirely not started.
type Selection struct {
	Approved      bool   `json:"approved"`
	SelectedSteps []int  `json:"selected_steps"`
	Plan          Plan   `json:"plan"`
	Message       string `json:"message,omitempty"`
}

// Selector presents a plan and blocks for the user's selection. The turn
// suspends until it returns. Front-ends implement the render/re-prompt
// loop around ParseSelection.
type Selector func(p Plan) Selection

// Declined builds the selection for a rejected plan.
func Declined(p Plan) Selection {
	return Selection{
		Approved: false,
		Plan:     p,
		Message:  "plan declined by user",
	}
}

// Approved builds the selection for a set of accepted step indices.
func Approved(p Plan, indices []int) Selection {
	return Selection{
		Approved:      true,
		SelectedSteps: indices,
		Plan:          p,
	}
}

// ParseSelection interprets the user's answer to a plan prompt with
// stepCount steps. Accepted forms:
//
//   - "" or "none": decline
//   - "all": every step
//   - space-separated 1-based indices, e.g. "1 3 2"
//
// Duplicates collapse and the result is sorted ascending so execution
// follows original plan order, not input order. Out-of-range or
// non-numeric input is a validation error; the caller should re-prompt
// rather than guess.
func ParseSelection(input string, stepCount int) (indices []int, declined bool, err error) {
	input = strings.ToLower(strings.TrimSpace(input))

	switch input {
	case "", "none":
		return nil, true, nil
	case "all":
		indices = make([]int, stepCount)
		for i := range indices {
			indices[i] = i
		}
		return indices, false, nil
	}

	seen := make(map[int]bool)
	for _, field := range strings.Fields(input) {
		n, convErr := strconv.Atoi(field)
		if convErr != nil {
			return nil, false, errors.NewKind(errors.KindValidation,
				"invalid selection %q: enter step numbers, 'all', or 'none'", field)
		}
		if n < 1 || n > stepCount {
			return nil, false, errors.NewKind(errors.KindValidation,
				"step %d is out of range: enter numbers between 1 and %d", n, stepCount)
		}
		seen[n-1] = true
	}

	for i := range seen {
		indices = append(indices, i)
	}
	sort.Ints(indices)
	return indices, false, nil
}
