// Package agent implements the core model/tool loop of the Parakeet
// engine.
//
// The Agent type owns one session and drives turns against an llm.Client:
// the model answers with text or tool calls, tool calls are validated,
// gated, and executed in order, their results go back into the history,
// and the loop repeats until the model answers without calls or the
// iteration cap trips.
//
// The engine never talks to a terminal directly. Everything a front-end
// needs to observe or decide arrives through ProcessCallbacks:
//
//	callbacks := agent.ProcessCallbacks{
//	    OnAssistantMessage: func(message string) {
//	        // display assistant responses
//	    },
//	    ConfirmTool: func(toolName, detail string) bool {
//	        // per-invocation safety gate for dangerous tools
//	        return false
//	    },
//	    SelectPlan: func(p plan.Plan) plan.Selection {
//	        // present a proposed plan, collect the user's selection
//	        return plan.Declined(p)
//	    },
//	}
//	answer, err := a.ProcessTurn(ctx, "user message", callbacks)
//
// Two invariants the loop maintains:
//
//   - Every tool call the model requests gets exactly one tool result
//     message, whether the call ran, failed validation, errored, or was
//     declined at the gate.
//   - The confirmation gate is consulted for every dangerous invocation
//     separately. An approval never carries over to the next call, even
//     for the same tool with the same arguments.
//
// The terminal subpackage (agent/terminal) is the interactive CLI
// front-end built on these callbacks.
package agent
