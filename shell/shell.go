// Package shell manages long-lived shell processes that keep state
// (working directory, exported variables) across tool invocations.
package shell

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/robertftenbosch/parakeet/errors"
)

// Result is the outcome of one command in a shell session.
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
	TimedOut bool
}

// Session is a persistent shell. Commands are serialized per session via
// mu; distinct sessions run independently.
type Session struct {
	ID        string
	CreatedAt time.Time

	mu     sync.Mutex
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout chan string
	stderr chan string
	done   chan struct{}
	cwd    string
	env    map[string]string

	// lastUsed has its own lock so the idle sweep and listing never
	// block behind a running command's hold on mu.
	usedMu   sync.Mutex
	lastUsed time.Time
}

// markerPrefix precedes the nonce echoed after every command so the
// reader can detect completion and the exit status.
const markerPrefix = "__PARAKEET_END_"

func newSession(id string, cwd string, env map[string]string) (*Session, error) {
	if cwd == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, errors.Wrapf(err, "could not determine working directory")
		}
		cwd = wd
	}

	cmd := exec.Command("/bin/bash")
	cmd.Dir = cwd
	cmd.Env = os.Environ()
	for k, v := range env {
		cmd.Env = append(cmd.Env, fmt.Sprintf("%s=%s", k, v))
	}

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, errors.Wrapf(err, "could not open stdin for shell session '%s'", id)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, errors.Wrapf(err, "could not open stdout for shell session '%s'", id)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, errors.Wrapf(err, "could not open stderr for shell session '%s'", id)
	}
	if err := cmd.Start(); err != nil {
		return nil, errors.WrapKind(err, errors.KindExecution, "could not start shell session '%s'", id)
	}

	s := &Session{
		ID:        id,
		CreatedAt: time.Now(),
		cmd:       cmd,
		stdin:     stdin,
		stdout:    make(chan string, 256),
		stderr:    make(chan string, 256),
		done:      make(chan struct{}),
		lastUsed:  time.Now(),
		cwd:       cwd,
		env:       map[string]string{},
	}
	go pumpLines(stdout, s.stdout)
	go pumpLines(stderr, s.stderr)
	go func() {
		cmd.Wait()
		close(s.done)
	}()
	return s, nil
}

func pumpLines(r io.Reader, out chan<- string) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		out <- scanner.Text()
	}
	close(out)
}

// Alive reports whether the shell process is still running.
func (s *Session) Alive() bool {
	select {
	case <-s.done:
		return false
	default:
		return true
	}
}

// Execute runs a command in this session and waits up to timeout for it
// to complete. A timeout ends the wait but keeps the session alive; the
// command may still be running inside the shell. Env overrides are
// exported into the shell and persist for later calls.
func (s *Session) Execute(command string, timeout time.Duration, env map[string]string) (*Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.Alive() {
		return nil, errors.NewKind(errors.KindExecution, "shell session '%s' has terminated", s.ID)
	}
	s.touch()

	// Discard output left over from a previous timed-out command.
	drain(s.stdout)
	drain(s.stderr)

	var exports strings.Builder
	for k, v := range env {
		fmt.Fprintf(&exports, "export %s=%s\n", k, shellQuote(v))
		s.env[k] = v
	}

	marker := fmt.Sprintf("%s%d__", markerPrefix, time.Now().UnixNano())
	full := fmt.Sprintf("%s%s\necho %s $?\n", exports.String(), command, marker)
	if _, err := io.WriteString(s.stdin, full); err != nil {
		return nil, errors.WrapKind(err, errors.KindExecution, "could not write to shell session '%s'", s.ID)
	}

	var stdoutLines []string
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()

	for {
		select {
		case line, ok := <-s.stdout:
			if !ok {
				return &Result{
					Stdout:   strings.Join(stdoutLines, "\n"),
					Stderr:   strings.Join(drain(s.stderr), "\n"),
					ExitCode: -1,
				}, errors.NewKind(errors.KindExecution, "shell session '%s' closed its output", s.ID)
			}
			if strings.HasPrefix(line, marker) {
				exitCode := 0
				if fields := strings.Fields(line); len(fields) > 1 {
					if code, err := strconv.Atoi(fields[1]); err == nil {
						exitCode = code
					}
				}
				return &Result{
					Stdout:   strings.Join(stdoutLines, "\n"),
					Stderr:   strings.Join(drain(s.stderr), "\n"),
					ExitCode: exitCode,
				}, nil
			}
			if strings.HasPrefix(line, markerPrefix) {
				// Completion marker of an earlier timed-out command.
				continue
			}
			stdoutLines = append(stdoutLines, line)
		case <-deadline.C:
			return &Result{
				Stdout:   strings.Join(stdoutLines, "\n"),
				Stderr:   strings.Join(drain(s.stderr), "\n"),
				ExitCode: -1,
				TimedOut: true,
			}, nil
		}
	}
}

func drain(ch <-chan string) []string {
	var lines []string
	for {
		select {
		case line, ok := <-ch:
			if !ok {
				return lines
			}
			lines = append(lines, line)
		default:
			return lines
		}
	}
}

func shellQuote(v string) string {
	return "'" + strings.ReplaceAll(v, "'", `'\''`) + "'"
}

// Terminate kills the shell process and waits briefly for it to exit.
// Safe to call more than once.
func (s *Session) Terminate() {
	if !s.Alive() {
		return
	}
	s.stdin.Close()
	if s.cmd.Process != nil {
		s.cmd.Process.Kill()
	}
	select {
	case <-s.done:
	case <-time.After(5 * time.Second):
	}
}

// Info describes a session for listing.
type Info struct {
	ID        string
	PID       int
	Cwd       string
	Alive     bool
	CreatedAt time.Time
	LastUsed  time.Time
}

// info never takes mu: pid and the spawn directory are immutable after
// construction, so listing works even while a command is running.
func (s *Session) info() Info {
	pid := 0
	if s.cmd.Process != nil {
		pid = s.cmd.Process.Pid
	}
	return Info{
		ID:        s.ID,
		PID:       pid,
		Cwd:       s.currentDir(),
		Alive:     s.Alive(),
		CreatedAt: s.CreatedAt,
		LastUsed:  s.idleSince(),
	}
}

// currentDir reports the shell's live working directory, which moves
// when the model runs cd. Falls back to the spawn directory where /proc
// is unavailable.
func (s *Session) currentDir() string {
	if s.cmd.Process != nil {
		if dir, err := os.Readlink(fmt.Sprintf("/proc/%d/cwd", s.cmd.Process.Pid)); err == nil {
			return dir
		}
	}
	return s.cwd
}

func (s *Session) touch() {
	s.usedMu.Lock()
	s.lastUsed = time.Now()
	s.usedMu.Unlock()
}

func (s *Session) idleSince() time.Time {
	s.usedMu.Lock()
	defer s.usedMu.Unlock()
	return s.lastUsed
}
