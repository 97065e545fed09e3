package chat

// Handler processes one inbound frame type.
type Handler interface {
	Type() string
	Handle(ctx *Context, f *Frame, c *Client) error
}

// Context hands the server to handlers.
type Context struct {
	S *Server
}
