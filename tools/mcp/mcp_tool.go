// Package mcp bridges tools served by external MCP servers into the
// engine's tool registry. Each configured server runs as a subprocess
// speaking the Model Context Protocol over stdio.
package mcp

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"sort"

	"github.com/modelcontextprotocol/go-sdk/jsonschema"
	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/robertftenbosch/parakeet/errors"
	"github.com/robertftenbosch/parakeet/tools"
)

// Client manages the connection to a single MCP server subprocess and
// the tools it advertises.
type Client struct {
	Name  string
	cmd   *exec.Cmd
	conn  *mcpsdk.ClientSession
	tools map[string]*ServerTool
}

// NewClient starts the MCP server subprocess, connects over stdio, and
// discovers the tools it provides.
func NewClient(ctx context.Context, name, command string, args []string) (*Client, error) {
	cmd := exec.Command(command, args...)
	cmd.Stderr = os.Stderr
	mcpClient := mcpsdk.NewClient(&mcpsdk.Implementation{Name: "parakeet", Version: "v1.0.0"}, nil)
	conn, err := mcpClient.Connect(ctx, mcpsdk.NewCommandTransport(cmd))
	if err != nil {
		cmd.Process.Kill()
		return nil, errors.WrapKind(err, errors.KindEndpoint, "failed to connect to MCP server '%s'", name)
	}
	client := &Client{
		Name:  name,
		cmd:   cmd,
		conn:  conn,
		tools: make(map[string]*ServerTool),
	}
	params := &mcpsdk.ListToolsParams{}
	for {
		list, err := conn.ListTools(ctx, params)
		if err != nil {
			cmd.Process.Kill()
			return nil, errors.WrapKind(err, errors.KindEndpoint, "failed to list tools from MCP server '%s'", name)
		}
		for _, t := range list.Tools {
			client.tools[t.Name] = &ServerTool{
				serverName:  name,
				toolName:    t.Name,
				description: t.Description,
				params:      paramsFromSchema(t.InputSchema),
				client:      client,
			}
		}
		if list.NextCursor == "" {
			break
		}
		params.Cursor = list.NextCursor
	}
	return client, nil
}

// Tools returns the discovered tools in name order.
func (c *Client) Tools() []*ServerTool {
	names := make([]string, 0, len(c.tools))
	for name := range c.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	out := make([]*ServerTool, 0, len(names))
	for _, name := range names {
		out = append(out, c.tools[name])
	}
	return out
}

// Tool returns a discovered tool by its short name.
func (c *Client) Tool(name string) (*ServerTool, bool) {
	t, ok := c.tools[name]
	return t, ok
}

// Stop closes the session and terminates the server subprocess.
func (c *Client) Stop() error {
	if c.conn != nil {
		c.conn.Close()
	}
	if c.cmd != nil && c.cmd.Process != nil {
		return c.cmd.Process.Kill()
	}
	return nil
}

// ServerTool adapts one MCP server tool to the tools.Tool interface.
type ServerTool struct {
	serverName  string
	toolName    string
	description string
	params      []tools.Param
	client      *Client
}

func (t *ServerTool) Schema() tools.Schema {
	return tools.Schema{
		Name:        t.toolName,
		Description: t.description,
		Params:      t.params,
	}
}

// Dangerous reports true for every server tool: the engine cannot know
// what an external tool does, so each call goes through confirmation.
func (t *ServerTool) Dangerous() bool { return true }

func (t *ServerTool) ConfirmationDetail(args map[string]interface{}) string {
	return fmt.Sprintf("MCP tool %s/%s with args %s", t.serverName, t.toolName, tools.RenderArgs(args))
}

func (t *ServerTool) Execute(ctx context.Context, args map[string]interface{}) (string, error) {
	result, err := t.client.conn.CallTool(ctx, &mcpsdk.CallToolParams{
		Name:      t.toolName,
		Arguments: args,
	})
	if err != nil {
		return "", errors.WrapKind(err, errors.KindExecution, "failed to call tool '%s'", t.toolName)
	}
	op := ""
	for _, c := range result.Content {
		if tc, ok := c.(*mcpsdk.TextContent); ok {
			op += tc.Text
		}
	}
	return op, nil
}

func paramsFromSchema(schema *jsonschema.Schema) []tools.Param {
	if schema == nil || len(schema.Properties) == 0 {
		return nil
	}
	required := make(map[string]bool, len(schema.Required))
	for _, name := range schema.Required {
		required[name] = true
	}
	names := make([]string, 0, len(schema.Properties))
	for name := range schema.Properties {
		names = append(names, name)
	}
	sort.Strings(names)
	params := make([]tools.Param, 0, len(names))
	for _, name := range names {
		prop := schema.Properties[name]
		typ := prop.Type
		if typ == "" {
			typ = "string"
		}
		params = append(params, tools.Param{
			Name:        name,
			Type:        typ,
			Description: prop.Description,
			Required:    required[name],
		})
	}
	return params
}
