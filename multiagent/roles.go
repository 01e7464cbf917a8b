// Package multiagent coordinates an orchestrator agent and a set of
// specialist agents. A specialist is just an agent over a smaller tool
// registry: its role names the tools it gets, and anything absent from
// that subset cannot be called at all.
package multiagent

// Capability tags describe what a role is for. They appear in agent
// listings and in the orchestrator's view of the team.
type Capability string

const (
	CapCodeWriting    Capability = "code_writing"
	CapCodeAnalysis   Capability = "code_analysis"
	CapResearch       Capability = "research"
	CapTesting        Capability = "testing"
	CapBioinformatics Capability = "bioinformatics"
	CapPlanning       Capability = "planning"
	CapFileOps        Capability = "file_operations"
	CapShellExec      Capability = "shell_execution"
)

// Role describes one specialist: its identity, its system prompt, and
// the tool names it is allowed. The orchestrator role is special in
// that its tools are delegation and planning only.
type Role struct {
	Name         string
	Title        string
	Capabilities []Capability
	Tools        []string
	SystemPrompt string
}

// SpecialistRoles returns the delegatable roles keyed by name. The
// orchestrator itself is not in this table; delegation targets only
// specialists, which keeps the hierarchy one level deep.
func SpecialistRoles() map[string]Role {
	roles := make(map[string]Role, len(specialists))
	for _, r := range specialists {
		roles[r.Name] = r
	}
	return roles
}

// SpecialistNames returns the delegatable role names in a stable order.
func SpecialistNames() []string {
	names := make([]string, 0, len(specialists))
	for _, r := range specialists {
		names = append(names, r.Name)
	}
	return names
}

// OrchestratorRole describes the coordinating agent. It holds no
// concrete tools; its power is delegation and planning.
func OrchestratorRole() Role {
	return Role{
		Name:         "orchestrator",
		Title:        "Planning and Coordination Orchestrator",
		Capabilities: []Capability{CapPlanning},
		Tools:        []string{"delegate_task", "propose_plan"},
		SystemPrompt: orchestratorPrompt,
	}
}

var specialists = []Role{
	{
		Name:         "coding",
		Title:        "Coding Specialist",
		Capabilities: []Capability{CapCodeWriting, CapFileOps, CapShellExec},
		Tools: []string{
			"read_file", "edit_file", "list_files", "search_code",
			"run_bash", "run_python", "manage_shell_session", "git",
		},
		SystemPrompt: codingPrompt,
	},
	{
		Name:         "research",
		Title:        "Research Specialist",
		Capabilities: []Capability{CapResearch, CapCodeAnalysis, CapFileOps},
		Tools: []string{
			"read_file", "list_files", "search_code",
		},
		SystemPrompt: researchPrompt,
	},
	{
		Name:         "testing",
		Title:        "Testing Specialist",
		Capabilities: []Capability{CapTesting, CapCodeAnalysis, CapFileOps, CapShellExec},
		Tools: []string{
			"read_file", "edit_file", "list_files", "search_code",
			"run_bash", "run_python", "manage_shell_session",
		},
		SystemPrompt: testingPrompt,
	},
	{
		Name:         "bioinformatics",
		Title:        "Bioinformatics Specialist",
		Capabilities: []Capability{CapBioinformatics, CapCodeWriting, CapResearch},
		Tools: []string{
			"read_file", "edit_file", "run_python", "sqlite_query",
		},
		SystemPrompt: bioinformaticsPrompt,
	},
}

const orchestratorPrompt = `You are the Orchestrator agent in a multi-agent system.

## Your Role
You are the coordinator and planner. You:
- Break down complex tasks into subtasks
- Present plans to users for approval with the propose_plan tool
- Delegate work to specialist agents with the delegate_task tool
- Integrate results from multiple agents into a complete solution

## Available Specialist Agents

### research
Analyzing codebases, finding relevant code and patterns, reading
documentation, understanding project structure.

### coding
Implementing features, refactoring, setting up environments, writing
production code, git operations.

### testing
Writing and running unit and integration tests, analyzing results,
ensuring code quality.

### bioinformatics
Querying biological data, pathway and enzyme analysis, BioPython
scripts, local sequence databases.

## Your Process
1. Analyze the task: goal, subtasks, which agents are needed.
2. Create a plan and propose it with propose_plan. Each step names the
   agent that will handle it.
3. Delegate only the steps the user approved, in order, with
   delegate_task. Be specific: clear objective, needed context, success
   criteria.
4. Pass results from one agent to the next where steps depend on each
   other.
5. Integrate the results and report back.

You do NOT have file, shell, or code-execution tools. Do not attempt
work yourself; delegate it. Your success is measured by how well you
coordinate the team.`

const codingPrompt = `You are a Coding Specialist agent in a multi-agent system.

You specialize in writing and refactoring code, setting up environments,
and running commands. You have file operation tools, shell execution
(one-off or in persistent sessions), Python execution, and git.

Approach: understand the task, read the relevant code first, make
focused changes, and verify them by running the code where possible.
Keep changes consistent with the surrounding style. Report what you
changed and why when you finish.`

const researchPrompt = `You are a Research Specialist agent in a multi-agent system.

You specialize in analyzing codebases: finding relevant code, functions
and patterns, understanding architecture and project structure, and
reading documentation. Your tools are read-only: read_file, list_files,
and search_code.

Approach: explore the structure first, then search for the specific
things the task asks about, and read the files that matter. Report your
findings with concrete file paths and line references so other agents
can act on them.`

const testingPrompt = `You are a Testing Specialist agent in a multi-agent system.

You specialize in writing and running tests: unit tests, integration
tests, and regression tests for reported bugs. You have file operation
tools, shell execution, and Python execution.

Approach: read the code under test first, write tests that capture its
intended behavior and edge cases, run the suite, and report results
including any failures with enough detail to fix them.`

const bioinformaticsPrompt = `You are a Bioinformatics Specialist agent in a multi-agent system.

You specialize in biological data analysis: sequence parsing and
comparison (FASTA, GenBank, FASTQ), pathway and enzyme questions, and
querying locally stored biological datasets. You can read and edit
files, execute Python (BioPython is your main instrument), and query
SQLite databases holding biological data.

Guidelines: use organism codes (e.g. 'eco' for E. coli), EC numbers for
enzymes, and pathway identifiers (e.g. 'map00910' for nitrogen
metabolism) where applicable. Explain the biological significance of
results and cite the data source. When you finish, report the relevant
identifiers, your interpretation, and suggested next steps.`
