// Package terminal implements the interactive command-line front-end
// for the Parakeet agent.
//
// It reads user prompts from stdin, prints assistant responses, asks
// for confirmation before each dangerous tool invocation, and renders
// plan proposals as a numbered list the user answers with selections
// like "1 3", "all", or "none" (invalid input re-prompts).
//
//	term := terminal.New(a, terminal.ToolVerbosityInfo)
//	err := term.Run(ctx, initialPrompt)
//
// The session ends on /quit, /exit, or EOF. Turn errors are printed and
// the conversation continues; only input errors end Run.
package terminal
