package handlers

import (
	"CounselPortal/logger"
	"CounselPortal/service/chat"
	"CounselPortal/tools/decode"
)

// JoinHandler subscribes an authenticated connection to a conversation.
type JoinHandler struct{}

func NewJoinHandler() chat.Handler  { return &JoinHandler{} }
func (h *JoinHandler) Type() string { return chat.FrameJoin }

func (h *JoinHandler) Handle(ctx *chat.Context, f *chat.Frame, c *chat.Client) error {
	if !c.Authorized {
		return nil
	}
	rp, err := decode.Map[chat.RoomPayload](f.Data)
	if err != nil || rp.ConversationID == "" {
		logger.Debugf("[join] bad payload conn=%s: %v", c.ConnID, err)
		return nil
	}
	ctx.S.Rooms().Join(rp.ConversationID, c.ConnID)
	return nil
}

// LeaveHandler unsubscribes a connection from a conversation.
type LeaveHandler struct{}

func NewLeaveHandler() chat.Handler  { return &LeaveHandler{} }
func (h *LeaveHandler) Type() string { return chat.FrameLeave }

func (h *LeaveHandler) Handle(ctx *chat.Context, f *chat.Frame, c *chat.Client) error {
	if !c.Authorized {
		return nil
	}
	rp, err := decode.Map[chat.RoomPayload](f.Data)
	if err != nil || rp.ConversationID == "" {
		return nil
	}
	ctx.S.Rooms().Leave(rp.ConversationID, c.ConnID)
	return nil
}
