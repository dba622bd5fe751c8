package generator

import "context"

// Turn is one prior conversation exchange supplied for tone and continuity.
type Turn struct {
	Role    string
	Content string
}

// Request carries everything the text generator is allowed to see: the
// fixed behavioural policy, the rendered verified-data context, trimmed
// history and the user's question. The generator is treated as an opaque
// text-in/text-out function.
type Request struct {
	Policy     string
	Context    string
	History    []Turn
	Question   string
	Corrective string
}

// Client produces answer text from a request.
type Client interface {
	Generate(ctx context.Context, req Request) (string, error)
}

// Func adapts a plain function to the Client interface.
type Func func(ctx context.Context, req Request) (string, error)

// Generate implements Client.
func (f Func) Generate(ctx context.Context, req Request) (string, error) {
	return f(ctx, req)
}
