package tools

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/robertftenbosch/parakeet/config"
	"github.com/robertftenbosch/parakeet/errors"
	"github.com/robertftenbosch/parakeet/plan"
)

type fakeTool struct {
	name      string
	dangerous bool
}

func (f *fakeTool) Schema() Schema   { return Schema{Name: f.name, Description: "fake"} }
func (f *fakeTool) Dangerous() bool  { return f.dangerous }
func (f *fakeTool) Execute(ctx context.Context, args map[string]interface{}) (string, error) {
	return "ok", nil
}

func TestRegistryRegisterAndLookup(t *testing.T) {
	r := NewRegistry()
	if err := r.Register(&fakeTool{name: "a"}); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if err := r.Register(&fakeTool{name: "a"}); err == nil {
		t.Error("duplicate registration should fail")
	}
	if _, err := r.Lookup("a"); err != nil {
		t.Errorf("Lookup(a) failed: %v", err)
	}
	_, err := r.Lookup("missing")
	if !errors.IsKind(err, errors.KindNotFound) {
		t.Errorf("Lookup(missing) kind = %v, want not-found", errors.KindOf(err))
	}
}

func TestRegistryNamesKeepRegistrationOrder(t *testing.T) {
	r := NewRegistry()
	for _, name := range []string{"zeta", "alpha", "mid"} {
		r.MustRegister(&fakeTool{name: name})
	}
	got := r.Names()
	want := []string{"zeta", "alpha", "mid"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Names() = %v, want %v", got, want)
		}
	}
}

func TestRegistrySubset(t *testing.T) {
	r := NewRegistry()
	r.MustRegister(&fakeTool{name: "read_file"})
	r.MustRegister(&fakeTool{name: "run_bash", dangerous: true})
	r.MustRegister(&fakeTool{name: "delegate_task"})

	sub, err := r.Subset("read_file", "run_bash")
	if err != nil {
		t.Fatalf("Subset failed: %v", err)
	}
	if _, err := sub.Lookup("delegate_task"); !errors.IsKind(err, errors.KindNotFound) {
		t.Error("subset should not contain delegate_task")
	}
	if _, err := sub.Lookup("run_bash"); err != nil {
		t.Errorf("subset lost run_bash: %v", err)
	}

	if _, err := r.Subset("no_such_tool"); err == nil {
		t.Error("Subset with unknown name should fail")
	}
}

func TestValidateArgs(t *testing.T) {
	schema := Schema{
		Name: "example",
		Params: []Param{
			{Name: "path", Type: "string", Required: true},
			{Name: "count", Type: "integer", Required: false},
			{Name: "ratio", Type: "number", Required: false},
			{Name: "opts", Type: "object", Required: false},
		},
	}

	cases := []struct {
		name    string
		args    map[string]interface{}
		wantErr bool
	}{
		{"AllValid", map[string]interface{}{"path": "x", "count": float64(3), "ratio": 0.5}, false},
		{"OnlyRequired", map[string]interface{}{"path": "x"}, false},
		{"MissingRequired", map[string]interface{}{"count": float64(1)}, true},
		{"UnknownArg", map[string]interface{}{"path": "x", "bogus": true}, true},
		{"WrongStringType", map[string]interface{}{"path": 42}, true},
		{"FractionalInteger", map[string]interface{}{"path": "x", "count": 1.5}, true},
		{"WholeFloatAsInteger", map[string]interface{}{"path": "x", "count": float64(7)}, false},
		{"ObjectArg", map[string]interface{}{"path": "x", "opts": map[string]interface{}{"k": "v"}}, false},
		{"NilOptional", map[string]interface{}{"path": "x", "count": nil}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateArgs(schema, tc.args)
			if tc.wantErr && err == nil {
				t.Errorf("ValidateArgs(%v) should fail", tc.args)
			}
			if !tc.wantErr && err != nil {
				t.Errorf("ValidateArgs(%v) failed: %v", tc.args, err)
			}
			if tc.wantErr && err != nil && !errors.IsKind(err, errors.KindValidation) {
				t.Errorf("error kind = %v, want validation", errors.KindOf(err))
			}
		})
	}
}

func TestIsCommandAllowed(t *testing.T) {
	allowed := []string{`^ls(\s|$)`, `^git status$`}
	cases := []struct {
		command string
		want    bool
	}{
		{"ls -la", true},
		{"ls", true},
		{"git status", true},
		{"git push", false},
		{"rm -rf /", false},
		{"", false},
	}
	for _, tc := range cases {
		if got := isCommandAllowed(tc.command, allowed); got != tc.want {
			t.Errorf("isCommandAllowed(%q) = %v, want %v", tc.command, got, tc.want)
		}
	}

	// No allowlist configured means any non-empty command passes; the
	// confirmation gate still applies per call.
	if !isCommandAllowed("rm -rf /", nil) {
		t.Error("empty allowlist should not restrict commands")
	}
	if isCommandAllowed("", nil) {
		t.Error("empty command should never be allowed")
	}
}

func TestIsPathRestricted(t *testing.T) {
	patterns := []string{"**/.env", "secrets/**"}
	restricted, err := isPathRestricted("config/.env", patterns)
	if err != nil || !restricted {
		t.Errorf("config/.env should be restricted (err=%v)", err)
	}
	restricted, err = isPathRestricted("main.go", patterns)
	if err != nil || restricted {
		t.Errorf("main.go should not be restricted (err=%v)", err)
	}
}

func TestEditFileToolCreateAndEdit(t *testing.T) {
	dir := t.TempDir()
	tool := &EditFileTool{FSAccess: &config.FilesystemAccess{}}
	path := filepath.Join(dir, "sub", "note.txt")

	if _, err := tool.Execute(context.Background(), map[string]interface{}{
		"path": path, "old_str": "", "new_str": "hello world",
	}); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	if _, err := tool.Execute(context.Background(), map[string]interface{}{
		"path": path, "old_str": "world", "new_str": "there",
	}); err != nil {
		t.Fatalf("edit failed: %v", err)
	}
	content, _ := os.ReadFile(path)
	if string(content) != "hello there" {
		t.Errorf("file content = %q, want %q", content, "hello there")
	}

	if _, err := tool.Execute(context.Background(), map[string]interface{}{
		"path": path, "old_str": "absent text", "new_str": "x",
	}); err == nil {
		t.Error("edit with missing old_str should fail")
	}
}

func TestEditFileToolHonorsReadOnly(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "locked.txt")
	os.WriteFile(path, []byte("original"), 0644)

	tool := &EditFileTool{FSAccess: &config.FilesystemAccess{ReadOnly: []string{filepath.Join(dir, "*")}}}
	_, err := tool.Execute(context.Background(), map[string]interface{}{
		"path": path, "old_str": "original", "new_str": "changed",
	})
	if err == nil {
		t.Fatal("editing a read-only path should fail")
	}
	content, _ := os.ReadFile(path)
	if string(content) != "original" {
		t.Error("read-only file was modified")
	}
}

func TestReadFileToolHonorsHidden(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	os.WriteFile(path, []byte("SECRET=1"), 0644)

	tool := &ReadFileTool{FSAccess: &config.FilesystemAccess{Hidden: []string{"**/.env"}}}
	if _, err := tool.Execute(context.Background(), map[string]interface{}{"path": path}); err == nil {
		t.Error("reading a hidden path should fail")
	}
}

func TestGitToolConfirmationGate(t *testing.T) {
	tool := &GitTool{}
	cases := []struct {
		action string
		want   bool
	}{
		{"status", false},
		{"diff", false},
		{"log", false},
		{"add", false},
		{"commit", true},
		{"push", true},
		{"pull", true},
		{"merge", true},
		{"checkout", true},
		{"reset", true},
	}
	for _, tc := range cases {
		need, _ := tool.NeedsConfirmation(map[string]interface{}{"action": tc.action})
		if need != tc.want {
			t.Errorf("NeedsConfirmation(%s) = %v, want %v", tc.action, need, tc.want)
		}
	}
}

func TestSQLiteToolConfirmationGate(t *testing.T) {
	tool := &SQLiteTool{}
	cases := []struct {
		query string
		want  bool
	}{
		{"SELECT * FROM genes", false},
		{"select count(*) from runs", false},
		{"  INSERT INTO genes VALUES (1)", true},
		{"update runs set done=1", true},
		{"DROP TABLE genes", true},
		{"CREATE TABLE t (id INTEGER)", true},
		{"DELETE FROM runs", true},
	}
	for _, tc := range cases {
		need, _ := tool.NeedsConfirmation(map[string]interface{}{"query": tc.query})
		if need != tc.want {
			t.Errorf("NeedsConfirmation(%q) = %v, want %v", tc.query, need, tc.want)
		}
	}
}

func TestSQLiteToolRoundTrip(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")
	tool := &SQLiteTool{}
	ctx := context.Background()

	for _, q := range []string{
		"CREATE TABLE genes (id INTEGER PRIMARY KEY, symbol TEXT)",
		"INSERT INTO genes (symbol) VALUES ('TP53'), ('BRCA1')",
	} {
		if _, err := tool.Execute(ctx, map[string]interface{}{"database": dbPath, "query": q}); err != nil {
			t.Fatalf("%q failed: %v", q, err)
		}
	}

	out, err := tool.Execute(ctx, map[string]interface{}{
		"database": dbPath,
		"query":    "SELECT symbol FROM genes ORDER BY symbol",
	})
	if err != nil {
		t.Fatalf("select failed: %v", err)
	}
	if !strings.Contains(out, "BRCA1") || !strings.Contains(out, "TP53") {
		t.Errorf("unexpected query output:\n%s", out)
	}
	if !strings.Contains(out, "2 row(s)") {
		t.Errorf("missing row count in output:\n%s", out)
	}
}

func TestProposePlanToolRequiresSteps(t *testing.T) {
	tool := &ProposePlanTool{Select: plan.Declined}
	_, err := tool.Execute(context.Background(), map[string]interface{}{
		"title": "empty", "steps": []interface{}{},
	})
	if !errors.IsKind(err, errors.KindValidation) {
		t.Errorf("empty plan kind = %v, want validation", errors.KindOf(err))
	}
}

func TestProposePlanToolReturnsSelection(t *testing.T) {
	var seen plan.Plan
	tool := &ProposePlanTool{Select: func(p plan.Plan) plan.Selection {
		seen = p
		return plan.Approved(p, []int{0})
	}}
	out, err := tool.Execute(context.Background(), map[string]interface{}{
		"title": "release",
		"steps": []interface{}{
			map[string]interface{}{"description": "run tests", "agent": "testing"},
			map[string]interface{}{"description": "tag release"},
		},
	})
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if len(seen.Steps) != 2 || seen.Steps[0].Agent != "testing" {
		t.Errorf("selector saw wrong plan: %+v", seen)
	}
	if !strings.Contains(out, "run tests") {
		t.Errorf("selection output missing approved step:\n%s", out)
	}
}
