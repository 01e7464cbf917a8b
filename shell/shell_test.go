package shell

import (
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	m := NewManager()
	t.Cleanup(func() { m.TerminateAll() })
	return m
}

func TestExecuteSimpleCommand(t *testing.T) {
	m := newTestManager(t)

	res, err := m.Execute("s1", "echo hello", 10*time.Second, nil)
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if res.Stdout != "hello" {
		t.Errorf("stdout = %q, want %q", res.Stdout, "hello")
	}
	if res.ExitCode != 0 {
		t.Errorf("exit code = %d, want 0", res.ExitCode)
	}
}

func TestExitCodePropagates(t *testing.T) {
	m := newTestManager(t)

	res, err := m.Execute("s1", "false", 10*time.Second, nil)
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if res.ExitCode != 1 {
		t.Errorf("exit code = %d, want 1", res.ExitCode)
	}
}

func TestStatePersistsWithinSession(t *testing.T) {
	m := newTestManager(t)

	if _, err := m.Execute("s1", "export X=1", 10*time.Second, nil); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	res, err := m.Execute("s1", "echo $X", 10*time.Second, nil)
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if res.Stdout != "1" {
		t.Errorf("expected exported variable to persist, got %q", res.Stdout)
	}
}

func TestSessionsAreIsolated(t *testing.T) {
	m := newTestManager(t)

	if _, err := m.Execute("s1", "export X=1", 10*time.Second, nil); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	res, err := m.Execute("s2", "echo $X", 10*time.Second, nil)
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if res.Stdout == "1" {
		t.Error("variable leaked into a fresh session")
	}
}

func TestWorkingDirectoryPersists(t *testing.T) {
	m := newTestManager(t)

	dir := t.TempDir()
	if _, err := m.Execute("s1", "cd "+dir, 10*time.Second, nil); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	res, err := m.Execute("s1", "pwd", 10*time.Second, nil)
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if !strings.Contains(res.Stdout, dir) {
		t.Errorf("pwd = %q, want it to contain %q", res.Stdout, dir)
	}
}

func TestEnvOverridesApply(t *testing.T) {
	m := newTestManager(t)

	res, err := m.Execute("s1", "echo $GREETING", 10*time.Second, map[string]string{"GREETING": "hi there"})
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if res.Stdout != "hi there" {
		t.Errorf("stdout = %q, want %q", res.Stdout, "hi there")
	}
}

func TestTimeoutKeepsSessionAlive(t *testing.T) {
	m := newTestManager(t)

	res, err := m.Execute("s1", "sleep 5", 100*time.Millisecond, nil)
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if !res.TimedOut {
		t.Fatal("expected TimedOut result")
	}

	s, err := m.GetOrCreate("s1")
	if err != nil {
		t.Fatalf("GetOrCreate failed: %v", err)
	}
	if !s.Alive() {
		t.Error("session died after command timeout")
	}
}

func TestEmptySessionIDRejected(t *testing.T) {
	m := newTestManager(t)
	if _, err := m.GetOrCreate(""); err == nil {
		t.Error("expected error for empty session id")
	}
}

func TestTerminateFreesSession(t *testing.T) {
	m := newTestManager(t)

	if _, err := m.Execute("s1", "true", 10*time.Second, nil); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if err := m.Terminate("s1"); err != nil {
		t.Fatalf("Terminate failed: %v", err)
	}
	if err := m.Terminate("s1"); err == nil {
		t.Error("expected error terminating unknown session")
	}
	if got := len(m.List()); got != 0 {
		t.Errorf("expected empty session list, got %d", got)
	}
}

func TestListReportsSessions(t *testing.T) {
	m := newTestManager(t)

	if _, err := m.Execute("b", "true", 10*time.Second, nil); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if _, err := m.Execute("a", "true", 10*time.Second, nil); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	infos := m.List()
	if len(infos) != 2 {
		t.Fatalf("expected 2 sessions, got %d", len(infos))
	}
	if infos[0].ID != "a" || infos[1].ID != "b" {
		t.Errorf("expected sessions ordered by id, got %v", infos)
	}
	for _, info := range infos {
		if !info.Alive {
			t.Errorf("session %s reported dead", info.ID)
		}
		if info.PID == 0 {
			t.Errorf("session %s has no pid", info.ID)
		}
	}
}

func TestSweepIdleRemovesStaleSessions(t *testing.T) {
	m := newTestManager(t)

	if _, err := m.Execute("stale", "true", 10*time.Second, nil); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	time.Sleep(50 * time.Millisecond)

	removed := m.SweepIdle(10 * time.Millisecond)
	if removed != 1 {
		t.Errorf("expected 1 session swept, got %d", removed)
	}
	if got := len(m.List()); got != 0 {
		t.Errorf("expected no sessions after sweep, got %d", got)
	}
}

func TestSweepDoesNotBlockOtherSessions(t *testing.T) {
	m := newTestManager(t)

	if _, err := m.Execute("busy", "true", 10*time.Second, nil); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	go m.Execute("busy", "sleep 2", 10*time.Second, nil)
	time.Sleep(100 * time.Millisecond)

	swept := make(chan struct{})
	go func() {
		m.SweepIdle(time.Hour)
		close(swept)
	}()

	start := time.Now()
	res, err := m.Execute("other", "echo hi", 10*time.Second, nil)
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if res.Stdout != "hi" {
		t.Errorf("stdout = %q, want %q", res.Stdout, "hi")
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("independent session blocked for %v behind another session's running command", elapsed)
	}

	select {
	case <-swept:
	case <-time.After(time.Second):
		t.Error("sweep blocked behind a running command")
	}
}

func TestListReportsLiveWorkingDirectory(t *testing.T) {
	m := newTestManager(t)

	dir := t.TempDir()
	if _, err := m.Execute("s1", "cd "+dir, 10*time.Second, nil); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	infos := m.List()
	if len(infos) != 1 {
		t.Fatalf("expected 1 session, got %d", len(infos))
	}
	want, err := filepath.EvalSymlinks(dir)
	if err != nil {
		t.Fatalf("EvalSymlinks failed: %v", err)
	}
	if infos[0].Cwd != want {
		t.Errorf("cwd = %q, want %q", infos[0].Cwd, want)
	}
}

func TestSweepIdleKeepsActiveSessions(t *testing.T) {
	m := newTestManager(t)

	if _, err := m.Execute("busy", "true", 10*time.Second, nil); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if removed := m.SweepIdle(time.Hour); removed != 0 {
		t.Errorf("expected no sessions swept, got %d", removed)
	}
}
