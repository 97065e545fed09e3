package chat

import (
	"CounselPortal/logger"
)

// Dispatcher routes inbound frames to their registered handler.
type Dispatcher struct {
	handlers map[string]Handler
}

func NewDispatcher() *Dispatcher {
	return &Dispatcher{handlers: make(map[string]Handler)}
}

func (d *Dispatcher) Register(h Handler) { d.handlers[h.Type()] = h }

func (d *Dispatcher) Dispatch(ctx *Context, f *Frame, c *Client) error {
	h, ok := d.handlers[f.Type]
	if !ok {
		logger.Debugf("[dispatcher] no handler for type=%s conn=%s", f.Type, c.ConnID)
		return nil // unknown frame types are ignored, not errors
	}
	return h.Handle(ctx, f, c)
}
