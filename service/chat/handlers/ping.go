package handlers

import (
	"time"

	"CounselPortal/service/chat"
)

// PingHandler answers application-level pings and refreshes the
// connection's heartbeat (browsers cannot send protocol-level pings).
type PingHandler struct{}

func NewPingHandler() chat.Handler  { return &PingHandler{} }
func (h *PingHandler) Type() string { return chat.FramePing }

func (h *PingHandler) Handle(ctx *chat.Context, _ *chat.Frame, c *chat.Client) error {
	ctx.S.ConnMgr().Heartbeat(c.ConnID)
	ctx.S.ConnMgr().SendTo(c.ConnID, chat.EventPong, map[string]any{"ts": time.Now().UnixMilli()})
	return nil
}
