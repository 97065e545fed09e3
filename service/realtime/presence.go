package realtime

// PresenceObserver is notified of presence transitions alongside the
// wire broadcast. Implementations must not block: Announce runs while the
// registry holds the user's shard.
type PresenceObserver interface {
	Observe(userID string, online bool)
}

// PresenceBroadcaster fans presence transitions out to every connected
// session. Announce is invoked synchronously by the registry while it
// holds the user's shard, which is what keeps online/offline events for
// one user in order on the wire.
type PresenceBroadcaster struct {
	sender    Sender
	observers []PresenceObserver
}

func NewPresenceBroadcaster(sender Sender) *PresenceBroadcaster {
	return &PresenceBroadcaster{sender: sender}
}

// AddObserver registers an out-of-process mirror (e.g. the Redis presence
// mirror). Call during wiring, before traffic.
func (b *PresenceBroadcaster) AddObserver(o PresenceObserver) {
	b.observers = append(b.observers, o)
}

// Announce broadcasts a user's transition to all sessions, the subject's
// own included; clients filter their own id.
func (b *PresenceBroadcaster) Announce(userID string, online bool) {
	event := EventUserOffline
	if online {
		event = EventUserOnline
	}
	b.sender.BroadcastAll(event, PresencePayload{UserID: userID})
	for _, o := range b.observers {
		o.Observe(userID, online)
	}
}

// Catchup delivers the "who's online" bootstrap to one freshly
// authenticated session. Point-to-point, not a broadcast.
func (b *PresenceBroadcaster) Catchup(sessionID string, users []string) {
	if users == nil {
		users = []string{}
	}
	b.sender.SendTo(sessionID, EventOnlineUsers, users)
}
