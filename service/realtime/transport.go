package realtime

// Sender is the outbound half of the transport boundary. Implementations
// must be non-blocking and best-effort: a push to a session that has died
// between lookup and send is silently dropped, never an error.
type Sender interface {
	// SendTo pushes one event to a single session.
	SendTo(sessionID, event string, payload any)
	// BroadcastAll pushes one event to every currently connected session.
	BroadcastAll(event string, payload any)
}
