package command

import "github.com/cyberinferno/tcpserve/framing"

// ExecContext carries one dispatch through its filter chain.
type ExecContext struct {
	// Session is the session the request arrived on.
	Session Session

	// Request is the request being dispatched.
	Request *framing.Request

	// Command is the command about to execute.
	Command Command

	// Cancel, when set by a filter's OnExecuting, skips the command. The
	// remaining filters' OnExecuting still run; OnExecuted does not.
	Cancel bool
}

// Filter intercepts command execution. Filters run in registration order:
// every OnExecuting before the command, every OnExecuted after it.
type Filter interface {
	// OnExecuting runs before the command. Set ctx.Cancel to skip execution.
	//
	// Parameters:
	//   - ctx: The dispatch context
	OnExecuting(ctx *ExecContext)

	// OnExecuted runs after the command completed. It is not called when the
	// dispatch was cancelled.
	//
	// Parameters:
	//   - ctx: The dispatch context
	OnExecuted(ctx *ExecContext)
}
