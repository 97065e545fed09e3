package realtime

// MessageRelay pushes already-persisted conversation events to every
// subscribed session, the sender's own sessions included so multi-tab
// clients stay in sync. Clients reconcile optimistic copies against the
// relayed record by its durable id. Delivery is fire-and-forget.
type MessageRelay struct {
	rooms *Rooms
	fan   *Fanout
}

func NewMessageRelay(rooms *Rooms, fan *Fanout) *MessageRelay {
	return &MessageRelay{rooms: rooms, fan: fan}
}

// RelayMessage fans a persisted message out to its conversation.
func (r *MessageRelay) RelayMessage(conversationID string, m *MessageRecord) {
	if m == nil {
		return
	}
	r.fan.Deliver(r.rooms.Subscribers(conversationID), EventMessageReceived, m)
}

// RelayFileShared fans a persisted file-share record out to its conversation.
func (r *MessageRelay) RelayFileShared(conversationID string, f *FileRecord) {
	if f == nil {
		return
	}
	r.fan.Deliver(r.rooms.Subscribers(conversationID), EventFileShared, f)
}

// RelayFileDeleted announces a file removal to its conversation.
func (r *MessageRelay) RelayFileDeleted(conversationID string, f *FileRecord) {
	if f == nil {
		return
	}
	r.fan.Deliver(r.rooms.Subscribers(conversationID), EventFileDeleted, f)
}
