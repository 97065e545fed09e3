package handlers

import (
	"CounselPortal/logger"
	"CounselPortal/service/chat"
	"CounselPortal/tools/decode"
	"CounselPortal/tools/errs"
	"CounselPortal/tools/security"
)

// AuthHandler verifies the token carried by the auth frame, binds the
// connection to the verified user and registers the user's presence.
type AuthHandler struct{}

func NewAuthHandler() chat.Handler  { return &AuthHandler{} }
func (h *AuthHandler) Type() string { return chat.FrameAuth }

func (h *AuthHandler) Handle(ctx *chat.Context, f *chat.Frame, c *chat.Client) error {
	s := ctx.S

	ap, err := decode.Map[chat.AuthPayload](f.Data)
	if err != nil || ap.Token == "" {
		logger.Infof("[auth] bad payload conn=%s: %v", c.ConnID, err)
		s.ConnMgr().SendTo(c.ConnID, chat.EventAuthAck, chat.BuildAuthAck(c.ConnID, "", errs.ErrArgs))
		return nil
	}

	userID, err := security.Verify(s.JwtOpts(), ap.Token)
	if err != nil {
		logger.Infof("[auth] verify failed conn=%s: %v", c.ConnID, err)
		s.ConnMgr().SendTo(c.ConnID, chat.EventAuthAck, chat.BuildAuthAck(c.ConnID, "", errs.ErrTokenInvalid))
		return nil
	}

	if err := s.ConnMgr().Bind(c.ConnID, userID); err != nil {
		// connection raced its own teardown; nothing to ack
		logger.Infof("[auth] bind failed conn=%s user=%s: %v", c.ConnID, userID, err)
		return nil
	}

	// Ack first so the client sees auth-ack before the online-users
	// catchup that Authenticate pushes to this session.
	s.ConnMgr().SendTo(c.ConnID, chat.EventAuthAck, chat.BuildAuthAck(c.ConnID, userID, nil))
	s.Registry().Authenticate(c.ConnID, userID)

	logger.Infof("[auth] authenticated conn=%s user=%s", c.ConnID, userID)
	return nil
}
