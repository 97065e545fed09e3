package handlers

import (
	"CounselPortal/service/chat"
	"CounselPortal/tools/decode"
)

// TypingHandler forwards client typing signals to the coordinator.
type TypingHandler struct{}

func NewTypingHandler() chat.Handler  { return &TypingHandler{} }
func (h *TypingHandler) Type() string { return chat.FrameTyping }

func (h *TypingHandler) Handle(ctx *chat.Context, f *chat.Frame, c *chat.Client) error {
	if !c.Authorized {
		return nil
	}
	tp, err := decode.Map[chat.TypingFramePayload](f.Data)
	if err != nil || tp.ConversationID == "" {
		return nil
	}
	name := tp.UserName
	if name == "" {
		name = c.UserID
	}
	ctx.S.Typing().SetTyping(tp.ConversationID, c.UserID, name, tp.IsTyping)
	return nil
}
