package terminal

import (
	"bufio"
	"bytes"
	"strings"
	"testing"

	"github.com/robertftenbosch/parakeet/plan"
)

func newTestTerminal(input string) (*Terminal, *bytes.Buffer) {
	out := &bytes.Buffer{}
	return &Terminal{
		verbosity: ToolVerbosityInfo,
		in:        bufio.NewReader(strings.NewReader(input)),
		out:       out,
	}, out
}

func TestConfirmToolOnlyExplicitYesApproves(t *testing.T) {
	cases := []struct {
		input string
		want  bool
	}{
		{"y\n", true},
		{"yes\n", true},
		{"YES\n", true},
		{"n\n", false},
		{"no\n", false},
		{"\n", false},
		{"sure\n", false},
		{"", false}, // EOF declines
	}
	for _, tc := range cases {
		term, _ := newTestTerminal(tc.input)
		if got := term.confirmTool("run_bash", "rm -rf build"); got != tc.want {
			t.Errorf("confirmTool with input %q = %v, want %v", tc.input, got, tc.want)
		}
	}
}

func TestConfirmToolShowsDetail(t *testing.T) {
	term, out := newTestTerminal("n\n")
	term.confirmTool("run_bash", "make deploy")
	if !strings.Contains(out.String(), "make deploy") {
		t.Errorf("confirmation prompt does not show the command:\n%s", out.String())
	}
}

func TestSelectPlanApprovesSubset(t *testing.T) {
	p := plan.Plan{
		Title: "release",
		Steps: []plan.Step{
			{Description: "run tests", Agent: "testing"},
			{Description: "tag release"},
			{Description: "push tag"},
		},
	}

	term, out := newTestTerminal("1 3\n")
	sel := term.selectPlan(p)
	if !sel.Approved {
		t.Fatal("selection should be approved")
	}
	if len(sel.SelectedSteps) != 2 || sel.SelectedSteps[0] != 0 || sel.SelectedSteps[1] != 2 {
		t.Errorf("selected steps = %v, want [0 2]", sel.SelectedSteps)
	}
	if !strings.Contains(out.String(), "run tests [testing]") {
		t.Errorf("plan rendering missing step agent:\n%s", out.String())
	}
}

func TestSelectPlanDeclines(t *testing.T) {
	p := plan.Plan{Title: "t", Steps: []plan.Step{{Description: "a"}}}
	for _, input := range []string{"none\n", "\n"} {
		term, _ := newTestTerminal(input)
		if sel := term.selectPlan(p); sel.Approved {
			t.Errorf("input %q should decline", input)
		}
	}
}

func TestSelectPlanRepromptsOnInvalidInput(t *testing.T) {
	p := plan.Plan{Title: "t", Steps: []plan.Step{{Description: "a"}, {Description: "b"}}}

	term, out := newTestTerminal("7\nbogus\n2\n")
	sel := term.selectPlan(p)
	if !sel.Approved || len(sel.SelectedSteps) != 1 || sel.SelectedSteps[0] != 1 {
		t.Errorf("unexpected selection after re-prompts: %+v", sel)
	}
	if strings.Count(out.String(), "Invalid selection") != 2 {
		t.Errorf("expected two re-prompts:\n%s", out.String())
	}
}

func TestSelectPlanEOFDeclines(t *testing.T) {
	p := plan.Plan{Title: "t", Steps: []plan.Step{{Description: "a"}}}
	term, _ := newTestTerminal("")
	if sel := term.selectPlan(p); sel.Approved {
		t.Error("EOF should decline the plan")
	}
}
