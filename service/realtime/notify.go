package realtime

// NotificationDispatcher routes a persisted notification to its target's
// active session. Offline targets are deliberately left alone: the
// envelope already exists durably and is fetched on the next login or
// poll, so there is no queue and no retry here.
type NotificationDispatcher struct {
	registry *Registry
	sender   Sender
}

func NewNotificationDispatcher(registry *Registry, sender Sender) *NotificationDispatcher {
	return &NotificationDispatcher{registry: registry, sender: sender}
}

// Dispatch pushes the envelope to the target user's current session if
// they are online; otherwise it does nothing.
func (d *NotificationDispatcher) Dispatch(env *NotificationEnvelope) {
	if env == nil || env.UserID == "" {
		return
	}
	sessionID, ok := d.registry.SessionOf(env.UserID)
	if !ok {
		return
	}
	d.sender.SendTo(sessionID, EventNotification, env)
}
