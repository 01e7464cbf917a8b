package tools

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/robertftenbosch/parakeet/errors"
	"github.com/robertftenbosch/parakeet/shell"
)

const (
	defaultCommandTimeout = 60 * time.Second
	sessionCommandTimeout = 300 * time.Second
)

// RunBashTool executes a shell command, either one-off or inside a
// persistent shell session that keeps state between calls.
type RunBashTool struct {
	Sessions        *shell.Manager
	AllowedCommands []string
}

func (t *RunBashTool) Schema() Schema {
	desc := "Executes a bash command. Pass session_id to run inside a persistent shell that keeps working directory and environment between calls."
	if len(t.AllowedCommands) > 0 {
		desc += " Allowed command patterns:\n- " + strings.Join(t.AllowedCommands, "\n- ")
	}
	return Schema{
		Name:        "run_bash",
		Description: desc,
		Params: []Param{
			{Name: "command", Type: "string", Description: "The bash command to execute", Required: true},
			{Name: "session_id", Type: "string", Description: "Persistent shell session id; omit for a one-off command", Required: false},
			{Name: "timeout", Type: "number", Description: "Timeout in seconds", Required: false},
			{Name: "env", Type: "object", Description: "Environment variables to set for the command", Required: false},
		},
	}
}

func (t *RunBashTool) Dangerous() bool { return true }

func (t *RunBashTool) ConfirmationDetail(args map[string]interface{}) string {
	return ArgString(args, "command")
}

func (t *RunBashTool) Execute(ctx context.Context, args map[string]interface{}) (string, error) {
	command := ArgString(args, "command")

	if !isCommandAllowed(command, t.AllowedCommands) {
		return "", errors.NewKind(errors.KindExecution,
			"command '%s' is not in the list of allowed commands", command)
	}

	sessionID := ArgString(args, "session_id")
	env := argEnv(args)

	if sessionID != "" {
		timeout := argTimeout(args, sessionCommandTimeout)
		res, err := t.Sessions.Execute(sessionID, command, timeout, env)
		if err != nil {
			return "", err
		}
		return formatShellResult(sessionID, res), nil
	}

	timeout := argTimeout(args, defaultCommandTimeout)
	execCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(execCtx, "/bin/bash", "-c", command)
	cmd.Env = os.Environ()
	for k, v := range env {
		cmd.Env = append(cmd.Env, fmt.Sprintf("%s=%s", k, v))
	}

	output, err := cmd.CombinedOutput()
	if execCtx.Err() == context.DeadlineExceeded {
		return "", errors.NewKind(errors.KindExecution,
			"command timed out after %s. Partial output:\n%s", timeout, string(output))
	}
	if err != nil {
		return "", errors.WrapKind(err, errors.KindExecution,
			"command failed. Output:\n%s", string(output))
	}
	return string(output), nil
}

func formatShellResult(sessionID string, res *shell.Result) string {
	var b strings.Builder
	fmt.Fprintf(&b, "session: %s\n", sessionID)
	if res.TimedOut {
		b.WriteString("status: timed out (session still alive)\n")
	} else {
		fmt.Fprintf(&b, "exit code: %d\n", res.ExitCode)
	}
	if res.Stdout != "" {
		fmt.Fprintf(&b, "stdout:\n%s\n", res.Stdout)
	}
	if res.Stderr != "" {
		fmt.Fprintf(&b, "stderr:\n%s\n", res.Stderr)
	}
	return b.String()
}

func argTimeout(args map[string]interface{}, fallback time.Duration) time.Duration {
	if v, ok := args["timeout"].(float64); ok && v > 0 {
		return time.Duration(v * float64(time.Second))
	}
	return fallback
}

func argEnv(args map[string]interface{}) map[string]string {
	raw, ok := args["env"].(map[string]interface{})
	if !ok {
		return nil
	}
	env := make(map[string]string, len(raw))
	for k, v := range raw {
		if s, ok := v.(string); ok {
			env[k] = s
		}
	}
	return env
}

// ManageShellSessionTool lists, inspects and terminates persistent shell
// sessions.
type ManageShellSessionTool struct {
	Sessions *shell.Manager
}

func (t *ManageShellSessionTool) Schema() Schema {
	return Schema{
		Name:        "manage_shell_session",
		Description: "Manages persistent shell sessions. Actions: list, terminate, terminate_all.",
		Params: []Param{
			{Name: "action", Type: "string", Description: "One of: list, terminate, terminate_all", Required: true},
			{Name: "session_id", Type: "string", Description: "Session id (required for terminate)", Required: false},
		},
	}
}

func (t *ManageShellSessionTool) Dangerous() bool { return false }

func (t *ManageShellSessionTool) Execute(ctx context.Context, args map[string]interface{}) (string, error) {
	action := ArgString(args, "action")
	switch action {
	case "list":
		infos := t.Sessions.List()
		if len(infos) == 0 {
			return "no active shell sessions", nil
		}
		var b strings.Builder
		for _, info := range infos {
			fmt.Fprintf(&b, "%s\tpid=%d\tcwd=%s\talive=%t\tlast used %s ago\n",
				info.ID, info.PID, info.Cwd, info.Alive,
				time.Since(info.LastUsed).Round(time.Second))
		}
		return b.String(), nil
	case "terminate":
		id := ArgString(args, "session_id")
		if id == "" {
			return "", errors.NewKind(errors.KindValidation, "action 'terminate' requires session_id")
		}
		if err := t.Sessions.Terminate(id); err != nil {
			return "", err
		}
		return fmt.Sprintf("terminated shell session '%s'", id), nil
	case "terminate_all":
		count := t.Sessions.TerminateAll()
		return fmt.Sprintf("terminated %d shell session(s)", count), nil
	default:
		return "", errors.NewKind(errors.KindValidation,
			"unknown action '%s': expected list, terminate, or terminate_all", action)
	}
}

// RunPythonTool writes a snippet to a temp file and runs it with python3.
type RunPythonTool struct{}

func (t *RunPythonTool) Schema() Schema {
	return Schema{
		Name:        "run_python",
		Description: "Executes a Python snippet with python3 and returns its output.",
		Params: []Param{
			{Name: "code", Type: "string", Description: "Python source to execute", Required: true},
			{Name: "timeout", Type: "number", Description: "Timeout in seconds", Required: false},
		},
	}
}

func (t *RunPythonTool) Dangerous() bool { return true }

func (t *RunPythonTool) ConfirmationDetail(args map[string]interface{}) string {
	return ArgString(args, "code")
}

func (t *RunPythonTool) Execute(ctx context.Context, args map[string]interface{}) (string, error) {
	code := ArgString(args, "code")

	f, err := os.CreateTemp("", "parakeet-*.py")
	if err != nil {
		return "", errors.WrapKind(err, errors.KindExecution, "could not create temp file")
	}
	defer os.Remove(f.Name())
	if _, err := f.WriteString(code); err != nil {
		f.Close()
		return "", errors.WrapKind(err, errors.KindExecution, "could not write snippet")
	}
	f.Close()

	timeout := argTimeout(args, defaultCommandTimeout)
	execCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	output, err := exec.CommandContext(execCtx, "python3", f.Name()).CombinedOutput()
	if execCtx.Err() == context.DeadlineExceeded {
		return "", errors.NewKind(errors.KindExecution,
			"python snippet timed out after %s. Partial output:\n%s", timeout, string(output))
	}
	if err != nil {
		return "", errors.WrapKind(err, errors.KindExecution,
			"python execution failed. Output:\n%s", string(output))
	}
	return string(output), nil
}
