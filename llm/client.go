// Package llm adapts provider SDKs to one chat interface. Each adapter
// translates the session message history and the tool schemas into the
// provider's wire format and maps the response back, tool calls included.
package llm

import (
	"context"
	"fmt"
	"sync"

	"github.com/robertftenbosch/parakeet/session"
	"github.com/robertftenbosch/parakeet/tools"
)

// Client is the interface for interacting with a Large Language Model.
// One call is one model turn: the full history goes in, one assistant
// message comes out, possibly carrying tool calls.
type Client interface {
	Chat(ctx context.Context, messages []session.Message, schemas []tools.Schema) (*session.Message, error)
}

// schemaProperties renders a tool schema as the JSON-schema properties
// map and required list every provider wants in some shape.
func schemaProperties(s tools.Schema) (map[string]interface{}, []string) {
	props := make(map[string]interface{}, len(s.Params))
	var required []string
	for _, p := range s.Params {
		props[p.Name] = map[string]interface{}{
			"type":        p.Type,
			"description": p.Description,
		}
		if p.Required {
			required = append(required, p.Name)
		}
	}
	return props, required
}

// MockClient is a scriptable client for tests and the "mock" model. It
// replays queued responses in order; once exhausted it echoes the last
// user message.
type MockClient struct {
	mu        sync.Mutex
	Responses []session.Message
	Calls     [][]session.Message
	next      int
}

func (m *MockClient) Chat(ctx context.Context, messages []session.Message, schemas []tools.Schema) (*session.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	snapshot := append([]session.Message{}, messages...)
	m.Calls = append(m.Calls, snapshot)

	if m.next < len(m.Responses) {
		resp := m.Responses[m.next]
		m.next++
		return &resp, nil
	}

	last := ""
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == session.RoleUser {
			last = messages[i].Content
			break
		}
	}
	return &session.Message{
		Role:    session.RoleAssistant,
		Content: fmt.Sprintf("mock response to: %s", last),
	}, nil
}

// Enqueue appends a scripted response.
func (m *MockClient) Enqueue(msg session.Message) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Responses = append(m.Responses, msg)
}
