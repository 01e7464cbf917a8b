package llm

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/robertftenbosch/parakeet/session"
	"github.com/robertftenbosch/parakeet/tools"
)

func TestConvertMessagesToBedrockFormat(t *testing.T) {
	messages := []session.Message{
		{Role: session.RoleSystem, Content: "You are helpful."},
		{Role: session.RoleUser, Content: "Hello, world!"},
		{Role: session.RoleAssistant, Content: "Hi! How can I help?"},
	}

	result, systemPrompt := convertMessagesToBedrockFormat(messages)
	if systemPrompt != "You are helpful." {
		t.Errorf("system prompt = %q", systemPrompt)
	}
	if len(result) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(result))
	}
	if result[0]["role"] != "user" || result[1]["role"] != "assistant" {
		t.Errorf("unexpected roles: %v, %v", result[0]["role"], result[1]["role"])
	}
}

func TestConvertToolCallRoundTripsAsToolUseAndResult(t *testing.T) {
	messages := []session.Message{
		{
			Role: session.RoleAssistant,
			ToolCalls: []session.ToolCall{
				{ID: "call_1", Name: "read_file", Args: map[string]interface{}{"path": "main.go"}},
			},
		},
		{
			Role:      session.RoleTool,
			Content:   "package main",
			ToolCalls: []session.ToolCall{{ID: "call_1", Name: "read_file"}},
		},
	}

	result, _ := convertMessagesToBedrockFormat(messages)
	if len(result) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(result))
	}

	assistant := result[0]["content"].([]map[string]interface{})
	if assistant[0]["type"] != "tool_use" || assistant[0]["id"] != "call_1" {
		t.Errorf("unexpected tool_use block: %v", assistant[0])
	}

	// Tool results go back to the model in a user message.
	if result[1]["role"] != "user" {
		t.Errorf("tool result role = %v, want user", result[1]["role"])
	}
	toolResult := result[1]["content"].([]map[string]interface{})
	if toolResult[0]["tool_use_id"] != "call_1" {
		t.Errorf("tool result not correlated: %v", toolResult[0])
	}
}

func TestCreateBedrockRequestIncludesParamSchemas(t *testing.T) {
	messages := []map[string]interface{}{
		{"role": "user", "content": []map[string]interface{}{{"type": "text", "text": "Hello!"}}},
	}
	schemas := []tools.Schema{
		{
			Name:        "read_file",
			Description: "Reads a file.",
			Params: []tools.Param{
				{Name: "path", Type: "string", Description: "File path", Required: true},
			},
		},
	}

	body, err := createBedrockRequest(messages, "system prompt", schemas)
	if err != nil {
		t.Fatalf("createBedrockRequest failed: %v", err)
	}

	var request map[string]interface{}
	if err := json.Unmarshal(body, &request); err != nil {
		t.Fatalf("request body is not valid JSON: %v", err)
	}
	if request["system"] != "system prompt" {
		t.Errorf("system = %v", request["system"])
	}
	if !strings.Contains(string(body), `"required":["path"]`) {
		t.Errorf("request lacks required list:\n%s", body)
	}
	if !strings.Contains(string(body), `"File path"`) {
		t.Errorf("request lacks param description:\n%s", body)
	}
}

func TestProcessBedrockResponseExtractsToolCalls(t *testing.T) {
	body := []byte(`{
		"content": [
			{"type": "text", "text": "Let me check."},
			{"type": "tool_use", "id": "toolu_01", "name": "read_file", "input": {"path": "go.mod"}}
		]
	}`)

	msg, err := processBedrockResponse(body)
	if err != nil {
		t.Fatalf("processBedrockResponse failed: %v", err)
	}
	if msg.Content != "Let me check." {
		t.Errorf("content = %q", msg.Content)
	}
	if len(msg.ToolCalls) != 1 {
		t.Fatalf("expected 1 tool call, got %d", len(msg.ToolCalls))
	}
	tc := msg.ToolCalls[0]
	if tc.ID != "toolu_01" || tc.Name != "read_file" || tc.Args["path"] != "go.mod" {
		t.Errorf("unexpected tool call: %+v", tc)
	}
}

func TestProcessBedrockResponseSurfacesAPIError(t *testing.T) {
	if _, err := processBedrockResponse([]byte(`{"error": "throttled"}`)); err == nil {
		t.Error("API error should surface as an error")
	}
}

func TestMockClientReplaysScript(t *testing.T) {
	mock := &MockClient{}
	mock.Enqueue(session.Message{Role: session.RoleAssistant, Content: "first"})
	mock.Enqueue(session.Message{Role: session.RoleAssistant, Content: "second"})

	history := []session.Message{{Role: session.RoleUser, Content: "hi"}}
	for _, want := range []string{"first", "second"} {
		got, err := mock.Chat(t.Context(), history, nil)
		if err != nil {
			t.Fatalf("Chat failed: %v", err)
		}
		if got.Content != want {
			t.Errorf("Chat = %q, want %q", got.Content, want)
		}
	}

	// Script exhausted: falls back to echoing the last user message.
	got, err := mock.Chat(t.Context(), history, nil)
	if err != nil {
		t.Fatalf("Chat failed: %v", err)
	}
	if !strings.Contains(got.Content, "hi") {
		t.Errorf("fallback response %q does not echo input", got.Content)
	}
	if len(mock.Calls) != 3 {
		t.Errorf("recorded %d calls, want 3", len(mock.Calls))
	}
}
