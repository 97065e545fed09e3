package realtime

import (
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// Exercises the whole core the way a counseling session plays out: two
// participants authenticate, share a conversation, exchange a message and
// typing signals, then one drops and either reconnects in time or goes
// properly offline.
func TestSessionLifecycle(t *testing.T) {
	sender := &fakeSender{}
	b := NewPresenceBroadcaster(sender)
	registry := NewRegistry(RegistryConf{OfflineGrace: 60 * time.Millisecond}, b)
	defer registry.Close()
	rooms := NewRooms()
	fan := NewFanout(sender, 2, 64)
	defer fan.Close()
	relay := NewMessageRelay(rooms, fan)
	typing := NewTypingCoordinator(TypingConf{Expiry: 40 * time.Millisecond}, rooms, sender)
	defer typing.Close()
	notifier := NewNotificationDispatcher(registry, sender)

	// counselor and client come online
	registry.Authenticate("sess-counselor", "counselor-1")
	users := registry.Authenticate("sess-client", "client-1")
	sort.Strings(users)
	require.Equal(t, []string{"client-1", "counselor-1"}, users)

	rooms.Join("conv-42", "sess-counselor")
	rooms.Join("conv-42", "sess-client")

	// client types, then the message lands via the REST layer
	typing.SetTyping("conv-42", "client-1", "Sam", true)
	relay.RelayMessage("conv-42", &MessageRecord{ID: "m1", ConversationID: "conv-42", SenderID: "client-1", Content: "hello"})
	typing.SetTyping("conv-42", "client-1", "Sam", false)

	sender.waitCount(t, EventMessageReceived, 2, time.Second)

	// both sessions saw the start and the explicit stop
	require.Equal(t, 4, sender.count(EventTypingIndicator))

	// a notification for the counselor goes straight to their session
	notifier.Dispatch(&NotificationEnvelope{ID: "n1", UserID: "counselor-1", Type: "new-message"})
	require.Equal(t, 1, sender.count(EventNotification))

	// client drops and reconnects within the grace window: observers see
	// no presence traffic at all
	before := sender.count(EventUserOffline)
	registry.Disconnect("sess-client")
	require.False(t, registry.IsOnline("client-1"))
	registry.Authenticate("sess-client-2", "client-1")
	time.Sleep(150 * time.Millisecond)
	require.Equal(t, before, sender.count(EventUserOffline))
	require.True(t, registry.IsOnline("client-1"))

	// the old session's room membership is gone; the new one rejoins
	rooms.RemoveSession("sess-client")
	rooms.Join("conv-42", "sess-client-2")
	subs := rooms.Subscribers("conv-42")
	sort.Strings(subs)
	require.Equal(t, []string{"sess-client-2", "sess-counselor"}, subs)

	// this time the client leaves for good
	rooms.RemoveSession("sess-client-2")
	registry.Disconnect("sess-client-2")
	sender.waitCount(t, EventUserOffline, 1, time.Second)
	require.False(t, registry.IsOnline("client-1"))

	// offline notifications are left to durable storage
	notifier.Dispatch(&NotificationEnvelope{ID: "n2", UserID: "client-1"})
	require.Equal(t, 1, sender.count(EventNotification))
}
