package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/robertftenbosch/parakeet/errors"
)

// Param is one typed parameter in a tool's schema. The schema is the
// single source of truth: it drives argument validation and it is what
// the LLM providers show the model.
type Param struct {
	Name        string
	Type        string // "string", "number", "integer", "boolean", "object", "array"
	Description string
	Required    bool
}

// Schema describes a tool to the model and to the validator.
type Schema struct {
	Name        string
	Description string
	Params      []Param
}

// Tool defines the interface for any action the agent can take.
type Tool interface {
	Schema() Schema
	// Dangerous tools require an explicit user confirmation for every
	// single invocation before Execute is called.
	Dangerous() bool
	Execute(ctx context.Context, args map[string]interface{}) (string, error)
}

// ConditionallyDangerous is implemented by tools whose danger depends on
// the arguments of a particular call (e.g. a read vs. write query).
// NeedsConfirmation returns whether this call needs the gate, plus the
// text to show the user.
type ConditionallyDangerous interface {
	NeedsConfirmation(args map[string]interface{}) (bool, string)
}

// Confirmer is the confirmation gate: it presents a pending dangerous call
// and blocks for a yes/no answer. It is consulted once per invocation and
// the answer is never cached across calls.
type Confirmer func(toolName, detail string) bool

// ConfirmationDetail lets a tool control what the gate shows the user.
// Tools without it get a generic rendering of their arguments.
type ConfirmationDetail interface {
	ConfirmationDetail(args map[string]interface{}) string
}

// RenderArgs produces the generic argument summary shown by the gate.
func RenderArgs(args map[string]interface{}) string {
	if len(args) == 0 {
		return "(no arguments)"
	}
	data, err := json.MarshalIndent(args, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", args)
	}
	return string(data)
}

// Registry holds all available tools. It is populated during startup and
// treated as read-only afterwards; agent loops receive it by reference.
type Registry struct {
	tools map[string]Tool
	order []string
}

func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]Tool)}
}

// Register adds a tool. Names must be unique.
func (r *Registry) Register(t Tool) error {
	name := t.Schema().Name
	if name == "" {
		return errors.New("tool has no name")
	}
	if _, exists := r.tools[name]; exists {
		return errors.New("tool '%s' is already registered", name)
	}
	r.tools[name] = t
	r.order = append(r.order, name)
	return nil
}

// MustRegister is Register for startup wiring where a duplicate is a
// programming error.
func (r *Registry) MustRegister(t Tool) {
	if err := r.Register(t); err != nil {
		panic(err)
	}
}

// Lookup returns the tool registered under name.
func (r *Registry) Lookup(name string) (Tool, error) {
	t, ok := r.tools[name]
	if !ok {
		return nil, errors.NewKind(errors.KindNotFound, "tool '%s' is not registered", name)
	}
	return t, nil
}

// Names returns the registered tool names in registration order.
func (r *Registry) Names() []string {
	return append([]string{}, r.order...)
}

// Schemas returns the schemas of all registered tools in registration
// order, for handing to an LLM client.
func (r *Registry) Schemas() []Schema {
	schemas := make([]Schema, 0, len(r.order))
	for _, name := range r.order {
		schemas = append(schemas, r.tools[name].Schema())
	}
	return schemas
}

// Subset builds a new registry containing only the named tools. This is
// how specialist agents get restricted capability sets: a specialist
// simply never sees the tools its role omits.
func (r *Registry) Subset(names ...string) (*Registry, error) {
	sub := NewRegistry()
	for _, name := range names {
		t, err := r.Lookup(name)
		if err != nil {
			return nil, err
		}
		if err := sub.Register(t); err != nil {
			return nil, err
		}
	}
	return sub, nil
}

// ValidateArgs checks args against the schema before any execution.
// Missing required parameters, unknown parameters and type mismatches are
// all validation errors; the call must not run.
func ValidateArgs(s Schema, args map[string]interface{}) error {
	byName := make(map[string]Param, len(s.Params))
	for _, p := range s.Params {
		byName[p.Name] = p
	}

	var unknown []string
	for name := range args {
		if _, ok := byName[name]; !ok {
			unknown = append(unknown, name)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return errors.NewKind(errors.KindValidation,
			"tool '%s' got unknown argument(s): %s", s.Name, strings.Join(unknown, ", "))
	}

	for _, p := range s.Params {
		val, present := args[p.Name]
		if !present {
			if p.Required {
				return errors.NewKind(errors.KindValidation,
					"tool '%s' missing required argument '%s'", s.Name, p.Name)
			}
			continue
		}
		if val == nil {
			continue
		}
		if !typeMatches(p.Type, val) {
			return errors.NewKind(errors.KindValidation,
				"tool '%s' argument '%s' must be a %s, got %T", s.Name, p.Name, p.Type, val)
		}
	}
	return nil
}

func typeMatches(want string, val interface{}) bool {
	switch want {
	case "string":
		_, ok := val.(string)
		return ok
	case "number":
		switch val.(type) {
		case float64, float32, int, int64, json.Number:
			return true
		}
		return false
	case "integer":
		switch v := val.(type) {
		case int, int64:
			return true
		case float64:
			return v == float64(int64(v))
		case json.Number:
			_, err := v.Int64()
			return err == nil
		}
		return false
	case "boolean":
		_, ok := val.(bool)
		return ok
	case "object":
		_, ok := val.(map[string]interface{})
		return ok
	case "array":
		_, ok := val.([]interface{})
		return ok
	default:
		// Unknown declared type: accept anything rather than reject a
		// call the handler could serve.
		return true
	}
}

// isPathRestricted checks if a path matches any of the glob patterns.
func isPathRestricted(path string, patterns []string) (bool, error) {
	for _, pattern := range patterns {
		match, err := doublestar.PathMatch(pattern, path)
		if err != nil {
			return false, errors.New("invalid glob pattern '%s': %v", pattern, err)
		}
		if match {
			return true, nil
		}
	}
	return false, nil
}

// isCommandAllowed checks a command against the allowlist (with regex
// support). An empty allowlist restricts nothing; the per-call
// confirmation gate is the only guard then.
func isCommandAllowed(command string, allowed []string) bool {
	if len(strings.Fields(command)) == 0 {
		return false
	}
	if len(allowed) == 0 {
		return true
	}
	for _, pattern := range allowed {
		re, err := regexp.Compile(pattern)
		if err != nil {
			// Invalid regex falls back to exact comparison.
			if command == pattern {
				return true
			}
			continue
		}
		if re.MatchString(command) {
			return true
		}
	}
	return false
}

// ArgString extracts a string argument, tolerating absence.
func ArgString(args map[string]interface{}, name string) string {
	v, _ := args[name].(string)
	return v
}
