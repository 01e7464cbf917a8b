package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/robertftenbosch/parakeet/agent"
	"github.com/robertftenbosch/parakeet/agent/terminal"
	"github.com/robertftenbosch/parakeet/config"
	"github.com/robertftenbosch/parakeet/llm"
	"github.com/robertftenbosch/parakeet/multiagent"
	"github.com/robertftenbosch/parakeet/session"
	"github.com/robertftenbosch/parakeet/shell"
	"github.com/robertftenbosch/parakeet/tools"
	"github.com/robertftenbosch/parakeet/tools/mcp"
)

func main() {
	args := os.Args[1:]
	if len(args) > 0 {
		switch args[0] {
		case "sessions":
			runSessions(args[1:])
			return
		case "config":
			runConfig(args[1:])
			return
		}
	}
	runChat(args)
}

func runChat(args []string) {
	fs := flag.NewFlagSet("parakeet", flag.ExitOnError)
	modelFlag := fs.String("m", "", "Model name (overrides config)")
	llmFlag := fs.String("llm", "", "LLM provider: 'anthropic', 'openai', 'gemini', 'bedrock', or 'mock' (overrides config)")
	resumeFlag := fs.String("r", "", "Resume a session by id ('current' resumes the last one)")
	newFlag := fs.Bool("new", false, "Start a new session even if one could be resumed")
	multiFlag := fs.Bool("multi-agent", false, "Run the orchestrator with specialist agents")
	toolsetFlag := fs.String("t", "", "Toolset to use (defaults to 'default')")
	verbosityFlag := fs.String("tool-verbosity", "info", "Tool verbosity level: 'none', 'info', or 'all'")
	fs.Parse(args)

	cfg, err := config.LoadConfig()
	if err != nil {
		fatalf("Error loading configuration: %+v", err)
	}
	if *modelFlag != "" {
		cfg.Model = *modelFlag
	}
	if *llmFlag != "" {
		cfg.LLMClient = *llmFlag
	}

	var verbosity terminal.ToolVerbosity
	switch *verbosityFlag {
	case "none":
		verbosity = terminal.ToolVerbosityNone
	case "info":
		verbosity = terminal.ToolVerbosityInfo
	case "all":
		verbosity = terminal.ToolVerbosityAll
	default:
		fatalf("Invalid tool verbosity '%s'. Must be 'none', 'info', or 'all'.", *verbosityFlag)
	}

	store := openStore(cfg)

	var sess *session.Session
	switch {
	case *newFlag:
		sess = store.Create()
		fmt.Printf("Starting new session: %s\n", sess.ID)
	case *resumeFlag == "current":
		sess, err = store.LoadCurrent()
		if err != nil {
			fatalf("Error resuming current session: %+v", err)
		}
		fmt.Printf("Resuming session: %s\n", sess.ID)
	case *resumeFlag != "":
		sess, err = store.Load(*resumeFlag)
		if err != nil {
			fatalf("Error resuming session '%s': %+v", *resumeFlag, err)
		}
		fmt.Printf("Resuming session: %s\n", sess.ID)
	default:
		sess = store.Create()
		fmt.Printf("Starting new session: %s\n", sess.ID)
	}

	ctx := context.Background()
	client := newClient(ctx, cfg)

	shells := shell.NewManager()
	defer shells.TerminateAll()
	stopSweeper := shells.StartSweeper(time.Minute, cfg.ShellIdleTimeout)
	defer stopSweeper()

	registry, cleanup := buildRegistry(ctx, cfg, shells)
	defer cleanup()

	var parakeetAgent *agent.Agent
	if *multiFlag {
		coordinator := multiagent.NewCoordinator(registry, client, cfg.Limits)
		coordinator.OnDelegate = func(agentName, task string) {
			fmt.Printf("-> delegating to %s: %s\n", agentName, truncate(task, 100))
		}
		parakeetAgent, err = multiagent.NewOrchestrator(coordinator, store, sess)
		if err != nil {
			fatalf("Error initializing orchestrator: %+v", err)
		}
		// Specialists confirm through the same terminal gate.
		term := terminal.New(parakeetAgent, verbosity)
		coordinator.Callbacks = term.Callbacks()
		fmt.Println("Parakeet is ready (multi-agent). Type your prompt.")
		if err := term.Run(ctx, strings.Join(fs.Args(), " ")); err != nil {
			fatalf("Agent stopped with an error: %+v", err)
		}
		return
	}

	active, err := activeRegistry(cfg, registry, *toolsetFlag)
	if err != nil {
		fatalf("Error resolving toolset '%s': %+v", *toolsetFlag, err)
	}

	systemPrompt := singleAgentPrompt
	parakeetAgent = agent.New(active, client, store, sess, systemPrompt, cfg.Limits)

	fmt.Println("Parakeet is ready. Type your prompt.")
	term := terminal.New(parakeetAgent, verbosity)
	if err := term.Run(ctx, strings.Join(fs.Args(), " ")); err != nil {
		fatalf("Agent stopped with an error: %+v", err)
	}
}

const singleAgentPrompt = `You are Parakeet, a coding assistant running in a terminal.

You have tools for reading, searching and editing files, running shell
commands (one-off or in persistent sessions), executing Python, git
operations, and querying SQLite databases. Dangerous operations require
the user's confirmation; if a confirmation is declined, respect the
decision and do not retry the same action.

For multi-step work, propose a plan with the propose_plan tool before
acting and execute only the steps the user approves. Be concise and
concrete in your answers.`

// buildRegistry assembles every concrete tool, including tools served
// by configured MCP servers. The returned cleanup stops those servers.
func buildRegistry(ctx context.Context, cfg *config.Config, shells *shell.Manager) (*tools.Registry, func()) {
	registry := tools.NewRegistry()
	fsAccess := &cfg.FilesystemAccess

	registry.MustRegister(&tools.ReadFileTool{FSAccess: fsAccess})
	registry.MustRegister(&tools.ListFilesTool{FSAccess: fsAccess})
	registry.MustRegister(&tools.EditFileTool{FSAccess: fsAccess})
	registry.MustRegister(&tools.SearchCodeTool{FSAccess: fsAccess})
	registry.MustRegister(&tools.RunBashTool{Sessions: shells, AllowedCommands: cfg.AllowedCommands})
	registry.MustRegister(&tools.ManageShellSessionTool{Sessions: shells})
	registry.MustRegister(&tools.RunPythonTool{})
	registry.MustRegister(&tools.GitTool{})
	registry.MustRegister(&tools.SQLiteTool{})
	registry.MustRegister(&tools.ProposePlanTool{})

	var clients []*mcp.Client
	for _, server := range cfg.AdditionalMCPServers {
		client, err := mcp.NewClient(ctx, server.Name, server.Command, server.Args)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: MCP server '%s' unavailable: %v\n", server.Name, err)
			continue
		}
		clients = append(clients, client)
		for _, t := range client.Tools() {
			if err := registry.Register(t); err != nil {
				fmt.Fprintf(os.Stderr, "Warning: skipping MCP tool: %v\n", err)
			}
		}
	}

	cleanup := func() {
		for _, c := range clients {
			c.Stop()
		}
	}
	return registry, cleanup
}

// activeRegistry narrows the registry to the configured toolset. An
// empty toolset means everything.
func activeRegistry(cfg *config.Config, registry *tools.Registry, name string) (*tools.Registry, error) {
	ts, err := cfg.GetToolset(name)
	if err != nil {
		return nil, err
	}
	if len(ts.Tools) == 0 {
		return registry, nil
	}
	return registry.Subset(ts.Tools...)
}

func newClient(ctx context.Context, cfg *config.Config) llm.Client {
	var client llm.Client
	var err error
	switch cfg.LLMClient {
	case "gemini":
		client, err = llm.NewGeminiClient(ctx, cfg.Model)
	case "openai":
		client, err = llm.NewOpenAIClient(ctx, cfg.Model)
	case "bedrock":
		client, err = llm.NewBedrockClient(ctx, cfg.Model)
	case "anthropic":
		client, err = llm.NewAnthropicClient(ctx, cfg.Model)
	case "", "mock":
		client = &llm.MockClient{}
	default:
		fatalf("Unknown LLM provider '%s'. Must be 'anthropic', 'openai', 'gemini', 'bedrock', or 'mock'.", cfg.LLMClient)
	}
	if err != nil {
		fatalf("Error initializing %s client: %+v", cfg.LLMClient, err)
	}
	return client
}

func runSessions(args []string) {
	cfg, err := config.LoadConfig()
	if err != nil {
		fatalf("Error loading configuration: %+v", err)
	}
	store := openStore(cfg)

	action := "list"
	if len(args) > 0 {
		action = args[0]
	}

	switch action {
	case "list":
		summaries, err := store.List()
		if err != nil {
			fatalf("Error listing sessions: %+v", err)
		}
		if len(summaries) == 0 {
			fmt.Println("No stored sessions.")
			return
		}
		current := store.CurrentID()
		for _, s := range summaries {
			marker := " "
			if s.ID == current {
				marker = "*"
			}
			fmt.Printf("%s %s  %s  %d user message(s)\n",
				marker, s.ID, s.CreatedAt.Local().Format("2006-01-02 15:04"), s.UserMessages)
		}
	case "show":
		if len(args) < 2 {
			fatalf("Usage: parakeet sessions show <id>")
		}
		sess, err := store.Load(args[1])
		if err != nil {
			fatalf("Error loading session: %+v", err)
		}
		for _, msg := range sess.Messages {
			content := msg.Content
			if content == "" && len(msg.ToolCalls) > 0 {
				names := make([]string, 0, len(msg.ToolCalls))
				for _, tc := range msg.ToolCalls {
					names = append(names, tc.Name)
				}
				content = "(tool calls: " + strings.Join(names, ", ") + ")"
			}
			fmt.Printf("[%s] %s\n", msg.Role, truncate(content, 200))
		}
	case "delete":
		if len(args) < 2 {
			fatalf("Usage: parakeet sessions delete <id>")
		}
		if err := store.Delete(args[1]); err != nil {
			fatalf("Error deleting session: %+v", err)
		}
		fmt.Printf("Deleted session %s\n", args[1])
	case "clear":
		count, err := store.Clear()
		if err != nil {
			fatalf("Error clearing sessions: %+v", err)
		}
		fmt.Printf("Deleted %d session(s)\n", count)
	default:
		fatalf("Unknown sessions action '%s'. Must be 'list', 'show', 'delete', or 'clear'.", action)
	}
}

func runConfig(args []string) {
	cfg, err := config.LoadConfig()
	if err != nil {
		fatalf("Error loading configuration: %+v", err)
	}

	action := "show"
	if len(args) > 0 {
		action = args[0]
	}

	switch action {
	case "show":
		fmt.Printf("llm: %s\n", cfg.LLMClient)
		fmt.Printf("model: %s\n", cfg.Model)
		fmt.Printf("session_dir: %s\n", cfg.SessionDir)
		fmt.Printf("max_session_messages: %d\n", cfg.MaxSessionMessages)
		fmt.Printf("shell_idle_timeout: %s\n", cfg.ShellIdleTimeout)
		fmt.Printf("limits: max_iterations=%d max_retries=%d retry_base_delay=%s\n",
			cfg.Limits.MaxIterations, cfg.Limits.MaxRetries, cfg.Limits.RetryBaseDelay)
	case "set":
		if len(args) < 3 {
			fatalf("Usage: parakeet config set <key> <value>")
		}
		key, value := args[1], args[2]
		switch key {
		case "llm":
			cfg.LLMClient = value
		case "model":
			cfg.Model = value
		case "session_dir":
			cfg.SessionDir = value
		case "max_session_messages":
			n, err := strconv.Atoi(value)
			if err != nil {
				fatalf("max_session_messages must be an integer: %v", err)
			}
			cfg.MaxSessionMessages = n
		case "shell_idle_timeout":
			d, err := time.ParseDuration(value)
			if err != nil {
				fatalf("shell_idle_timeout must be a duration like '30m': %v", err)
			}
			cfg.ShellIdleTimeout = d
		default:
			fatalf("Unknown config key '%s'.", key)
		}
		if err := cfg.Save(); err != nil {
			fatalf("Error saving configuration: %+v", err)
		}
		fmt.Printf("Set %s = %s\n", key, value)
	default:
		fatalf("Unknown config action '%s'. Must be 'show' or 'set'.", action)
	}
}

func openStore(cfg *config.Config) *session.Store {
	dir := cfg.SessionDir
	if dir == "" {
		var err error
		dir, err = session.DefaultDir()
		if err != nil {
			fatalf("Error resolving session directory: %+v", err)
		}
	}
	store, err := session.NewStore(dir, cfg.MaxSessionMessages)
	if err != nil {
		fatalf("Error opening session store: %+v", err)
	}
	return store
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}

func fatalf(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
