package chat

import (
	"CounselPortal/global/config"
	"CounselPortal/service/realtime"
	"CounselPortal/tools/security"
)

// Outbound ack/control event names owned by the transport layer.
const (
	EventConnectionAck = "connection-ack"
	EventAuthAck       = "auth-ack"
	EventPong          = "pong"
)

// Server wires the websocket transport to the real-time core. It is also
// the in-process API the REST layer calls after persisting a record.
type Server struct {
	connMgr     *ConnManager
	disp        *Dispatcher
	registry    *realtime.Registry
	rooms       *realtime.Rooms
	broadcaster *realtime.PresenceBroadcaster
	typing      *realtime.TypingCoordinator
	relay       *realtime.MessageRelay
	notifier    *realtime.NotificationDispatcher
	fan         *realtime.Fanout

	jwtOpts security.Options
}

func NewServer(cfg *config.AppConfig) *Server {
	cfg.Norm()

	connMgr := NewConnManager(ManagerConf{
		UnauthTTL:  cfg.UnauthTTL,
		AuthTTL:    cfg.AuthTTL,
		SweepEvery: cfg.SweepEvery,
		SendQueue:  cfg.SendQueueSize,
	}, cfg.NodeId)

	broadcaster := realtime.NewPresenceBroadcaster(connMgr)
	registry := realtime.NewRegistry(realtime.RegistryConf{OfflineGrace: cfg.OfflineGrace}, broadcaster)
	rooms := realtime.NewRooms()
	typing := realtime.NewTypingCoordinator(realtime.TypingConf{Expiry: cfg.TypingExpiry}, rooms, connMgr)
	fan := realtime.NewFanout(connMgr, cfg.FanoutWorkers, cfg.FanoutQueue)
	relay := realtime.NewMessageRelay(rooms, fan)
	notifier := realtime.NewNotificationDispatcher(registry, connMgr)

	s := &Server{
		connMgr:     connMgr,
		disp:        NewDispatcher(),
		registry:    registry,
		rooms:       rooms,
		broadcaster: broadcaster,
		typing:      typing,
		relay:       relay,
		notifier:    notifier,
		fan:         fan,
		jwtOpts:     security.DefaultOptions(cfg.JwtSecret),
	}

	// Session teardown: room cleanup first so a dying session stops
	// receiving relays before its presence entry enters the grace window.
	connMgr.OnClose(func(connID string) {
		rooms.RemoveSession(connID)
		registry.Disconnect(connID)
	})

	return s
}

func (s *Server) ConnMgr() *ConnManager               { return s.connMgr }
func (s *Server) Disp() *Dispatcher                   { return s.disp }
func (s *Server) Registry() *realtime.Registry        { return s.registry }
func (s *Server) Rooms() *realtime.Rooms              { return s.rooms }
func (s *Server) Typing() *realtime.TypingCoordinator { return s.typing }

func (s *Server) Broadcaster() *realtime.PresenceBroadcaster { return s.broadcaster }
func (s *Server) JwtOpts() security.Options           { return s.jwtOpts }

// ---- host API for the REST layer (records are already persisted) ----

func (s *Server) RelayMessage(m *realtime.MessageRecord) {
	if m == nil {
		return
	}
	s.relay.RelayMessage(m.ConversationID, m)
}

func (s *Server) RelayFileShared(f *realtime.FileRecord) {
	if f == nil {
		return
	}
	s.relay.RelayFileShared(f.ConversationID, f)
}

func (s *Server) RelayFileDeleted(f *realtime.FileRecord) {
	if f == nil {
		return
	}
	s.relay.RelayFileDeleted(f.ConversationID, f)
}

func (s *Server) DispatchNotification(env *realtime.NotificationEnvelope) {
	s.notifier.Dispatch(env)
}

func (s *Server) IsOnline(userID string) bool { return s.registry.IsOnline(userID) }
func (s *Server) OnlineUsers() []string       { return s.registry.OnlineUsers() }

// Close tears the realtime stack down in dependency order.
func (s *Server) Close() {
	s.typing.Close()
	s.registry.Close()
	s.fan.Close()
	s.connMgr.Close()
}
