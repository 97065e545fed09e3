package handlers

import "CounselPortal/service/chat"

// Install registers the full inbound frame handler set on a server.
func Install(s *chat.Server) {
	d := s.Disp()
	d.Register(NewAuthHandler())
	d.Register(NewJoinHandler())
	d.Register(NewLeaveHandler())
	d.Register(NewTypingHandler())
	d.Register(NewPingHandler())
}
