package tools

import (
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/robertftenbosch/parakeet/errors"
)

// GitTool runs a fixed set of git actions. Read-only actions (status,
// diff, log, branch) run freely; history-changing actions go through the
// confirmation gate on every call.
type GitTool struct{}

var gitDangerousActions = map[string]bool{
	"commit":   true,
	"push":     true,
	"pull":     true,
	"merge":    true,
	"checkout": true,
	"reset":    true,
}

func (t *GitTool) Schema() Schema {
	return Schema{
		Name:        "git",
		Description: "Runs a git action. Actions: status, diff, log, branch, add, commit, push, pull, merge, checkout, reset.",
		Params: []Param{
			{Name: "action", Type: "string", Description: "Git action to perform", Required: true},
			{Name: "message", Type: "string", Description: "Commit message (commit)", Required: false},
			{Name: "branch", Type: "string", Description: "Branch name (merge, checkout, push, pull)", Required: false},
			{Name: "remote", Type: "string", Description: "Remote name (push, pull; default origin)", Required: false},
			{Name: "files", Type: "array", Description: "Files to stage (add; default all)", Required: false},
			{Name: "cwd", Type: "string", Description: "Repository directory (default: current)", Required: false},
		},
	}
}

func (t *GitTool) Dangerous() bool { return false }

// NeedsConfirmation gates only the actions that rewrite history or leave
// the local checkout.
func (t *GitTool) NeedsConfirmation(args map[string]interface{}) (bool, string) {
	action := ArgString(args, "action")
	if !gitDangerousActions[action] {
		return false, ""
	}
	switch action {
	case "commit":
		msg := ArgString(args, "message")
		if len(msg) > 100 {
			msg = msg[:100]
		}
		return true, fmt.Sprintf("git commit -m %q", msg)
	case "push", "pull":
		remote := ArgString(args, "remote")
		if remote == "" {
			remote = "origin"
		}
		return true, fmt.Sprintf("git %s %s %s", action, remote, ArgString(args, "branch"))
	case "merge", "checkout":
		return true, fmt.Sprintf("git %s %s", action, ArgString(args, "branch"))
	case "reset":
		return true, "git reset --soft HEAD"
	default:
		return true, "git " + action
	}
}

func (t *GitTool) Execute(ctx context.Context, args map[string]interface{}) (string, error) {
	action := ArgString(args, "action")
	cwd := ArgString(args, "cwd")

	var gitArgs []string
	switch action {
	case "status":
		gitArgs = []string{"status", "--short"}
	case "diff":
		gitArgs = []string{"diff"}
	case "log":
		gitArgs = []string{"log", "--oneline", "-20"}
	case "branch":
		gitArgs = []string{"branch", "--list"}
	case "add":
		gitArgs = []string{"add"}
		files := argStrings(args, "files")
		if len(files) == 0 {
			files = []string{"."}
		}
		gitArgs = append(gitArgs, files...)
	case "commit":
		msg := ArgString(args, "message")
		if msg == "" {
			return "", errors.NewKind(errors.KindValidation, "git commit requires a message")
		}
		gitArgs = []string{"commit", "-m", msg}
	case "push", "pull":
		remote := ArgString(args, "remote")
		if remote == "" {
			remote = "origin"
		}
		gitArgs = []string{action, remote}
		if branch := ArgString(args, "branch"); branch != "" {
			gitArgs = append(gitArgs, branch)
		}
	case "merge", "checkout":
		branch := ArgString(args, "branch")
		if branch == "" {
			return "", errors.NewKind(errors.KindValidation, "git %s requires a branch", action)
		}
		gitArgs = []string{action, branch}
	case "reset":
		gitArgs = []string{"reset", "--soft", "HEAD"}
	default:
		return "", errors.NewKind(errors.KindValidation, "unknown git action '%s'", action)
	}

	cmd := exec.CommandContext(ctx, "git", gitArgs...)
	if cwd != "" {
		cmd.Dir = cwd
	}
	output, err := cmd.CombinedOutput()
	if err != nil {
		return "", errors.WrapKind(err, errors.KindExecution,
			"git %s failed. Output:\n%s", action, string(output))
	}
	out := strings.TrimSpace(string(output))
	if out == "" {
		out = fmt.Sprintf("git %s completed", action)
	}
	return out, nil
}

func argStrings(args map[string]interface{}, name string) []string {
	raw, ok := args[name].([]interface{})
	if !ok {
		return nil
	}
	var out []string
	for _, v := range raw {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
