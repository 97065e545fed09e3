package handlers_test

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"CounselPortal/global/config"
	"CounselPortal/service/chat"
	"CounselPortal/service/chat/handlers"
	"CounselPortal/service/realtime"
	"CounselPortal/tools/security"
)

const testSecret = "handlers-test-secret"

func newTestGateway(t *testing.T) (*chat.Server, string) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := &config.AppConfig{
		NodeId:       "gw-test",
		OfflineGrace: 80 * time.Millisecond,
		TypingExpiry: 60 * time.Millisecond,
		JwtSecret:    []byte(testSecret),
	}
	s := chat.NewServer(cfg)
	handlers.Install(s)
	t.Cleanup(s.Close)

	r := gin.New()
	r.GET("/ws", s.HandleWS)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	return s, "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ws.Close() })
	return ws
}

func send(t *testing.T, ws *websocket.Conn, frameType string, data map[string]any) {
	t.Helper()
	require.NoError(t, ws.WriteJSON(chat.Frame{Type: frameType, Data: data}))
}

type wireEvent struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// readUntil skips events until the wanted one arrives.
func readUntil(t *testing.T, ws *websocket.Conn, event string) wireEvent {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		_ = ws.SetReadDeadline(deadline)
		_, raw, err := ws.ReadMessage()
		require.NoError(t, err, "waiting for %q", event)
		var ev wireEvent
		require.NoError(t, json.Unmarshal(raw, &ev))
		if ev.Event == event {
			return ev
		}
	}
	t.Fatalf("never received %q", event)
	return wireEvent{}
}

func authenticate(t *testing.T, ws *websocket.Conn, userID string) {
	t.Helper()
	token, _, err := security.Generate(security.DefaultOptions([]byte(testSecret)), userID)
	require.NoError(t, err)
	send(t, ws, chat.FrameAuth, map[string]any{"token": token})

	ev := readUntil(t, ws, chat.EventAuthAck)
	var ack chat.AuthAck
	require.NoError(t, json.Unmarshal(ev.Data, &ack))
	require.True(t, ack.OK)
	require.Equal(t, userID, ack.UserID)

	// the online-users bootstrap follows the ack
	readUntil(t, ws, realtime.EventOnlineUsers)
}

func TestConnectionAckOnUpgrade(t *testing.T) {
	_, url := newTestGateway(t)
	ws := dial(t, url)

	ev := readUntil(t, ws, chat.EventConnectionAck)
	var ack chat.ConnectionAck
	require.NoError(t, json.Unmarshal(ev.Data, &ack))
	require.NotEmpty(t, ack.ConnID)
	require.Equal(t, "gw-test", ack.GatewayID)
	require.Positive(t, ack.PingIntervalMs)
}

func TestAuthRejectsBadToken(t *testing.T) {
	s, url := newTestGateway(t)
	ws := dial(t, url)
	readUntil(t, ws, chat.EventConnectionAck)

	send(t, ws, chat.FrameAuth, map[string]any{"token": "garbage"})
	ev := readUntil(t, ws, chat.EventAuthAck)
	var ack chat.AuthAck
	require.NoError(t, json.Unmarshal(ev.Data, &ack))
	require.False(t, ack.OK)
	require.NotEmpty(t, ack.Error)
	require.Empty(t, s.OnlineUsers())
}

func TestAuthFlow(t *testing.T) {
	s, url := newTestGateway(t)
	ws := dial(t, url)
	readUntil(t, ws, chat.EventConnectionAck)

	authenticate(t, ws, "alice")
	require.True(t, s.IsOnline("alice"))
	require.Equal(t, []string{"alice"}, s.OnlineUsers())
}

func TestSecondUserSeesPresenceBroadcast(t *testing.T) {
	_, url := newTestGateway(t)

	ws1 := dial(t, url)
	readUntil(t, ws1, chat.EventConnectionAck)
	authenticate(t, ws1, "alice")

	ws2 := dial(t, url)
	readUntil(t, ws2, chat.EventConnectionAck)
	authenticate(t, ws2, "bob")

	ev := readUntil(t, ws1, realtime.EventUserOnline)
	var p realtime.PresencePayload
	require.NoError(t, json.Unmarshal(ev.Data, &p))
	require.Equal(t, "bob", p.UserID)
}

func TestTypingBetweenParticipants(t *testing.T) {
	_, url := newTestGateway(t)

	ws1 := dial(t, url)
	readUntil(t, ws1, chat.EventConnectionAck)
	authenticate(t, ws1, "alice")
	send(t, ws1, chat.FrameJoin, map[string]any{"conversationId": "conv1"})

	ws2 := dial(t, url)
	readUntil(t, ws2, chat.EventConnectionAck)
	authenticate(t, ws2, "bob")
	send(t, ws2, chat.FrameJoin, map[string]any{"conversationId": "conv1"})

	// joins are processed by each connection's read loop; give them a beat
	time.Sleep(50 * time.Millisecond)

	send(t, ws1, chat.FrameTyping, map[string]any{"conversationId": "conv1", "userName": "Alice", "isTyping": true})

	ev := readUntil(t, ws2, realtime.EventTypingIndicator)
	var tp realtime.TypingPayload
	require.NoError(t, json.Unmarshal(ev.Data, &tp))
	require.Equal(t, "alice", tp.UserID)
	require.Equal(t, "Alice", tp.UserName)
	require.True(t, tp.IsTyping)

	// the coordinator synthesizes the stop after the expiry window
	ev = readUntil(t, ws2, realtime.EventTypingIndicator)
	require.NoError(t, json.Unmarshal(ev.Data, &tp))
	require.False(t, tp.IsTyping)
}

func TestUnauthenticatedJoinIgnored(t *testing.T) {
	s, url := newTestGateway(t)
	ws := dial(t, url)
	readUntil(t, ws, chat.EventConnectionAck)

	send(t, ws, chat.FrameJoin, map[string]any{"conversationId": "conv1"})
	time.Sleep(50 * time.Millisecond)
	require.Empty(t, s.Rooms().Subscribers("conv1"))
}

func TestMessageRelayToConversation(t *testing.T) {
	s, url := newTestGateway(t)

	ws1 := dial(t, url)
	readUntil(t, ws1, chat.EventConnectionAck)
	authenticate(t, ws1, "alice")
	send(t, ws1, chat.FrameJoin, map[string]any{"conversationId": "conv1"})
	time.Sleep(50 * time.Millisecond)

	// the REST layer persisted a record and hands it over
	s.RelayMessage(&realtime.MessageRecord{
		ID:             "m1",
		ConversationID: "conv1",
		SenderID:       "bob",
		Content:        "hello",
		CreatedAt:      time.Now(),
	})

	ev := readUntil(t, ws1, realtime.EventMessageReceived)
	var m realtime.MessageRecord
	require.NoError(t, json.Unmarshal(ev.Data, &m))
	require.Equal(t, "m1", m.ID)
	require.Equal(t, "hello", m.Content)
}

func TestNotificationToOnlineUser(t *testing.T) {
	s, url := newTestGateway(t)

	ws := dial(t, url)
	readUntil(t, ws, chat.EventConnectionAck)
	authenticate(t, ws, "alice")

	s.DispatchNotification(&realtime.NotificationEnvelope{
		ID:     "n1",
		UserID: "alice",
		Type:   "appointment-reminder",
		Title:  "Session at 3pm",
	})

	ev := readUntil(t, ws, realtime.EventNotification)
	var env realtime.NotificationEnvelope
	require.NoError(t, json.Unmarshal(ev.Data, &env))
	require.Equal(t, "n1", env.ID)
}

func TestPingPong(t *testing.T) {
	_, url := newTestGateway(t)
	ws := dial(t, url)
	readUntil(t, ws, chat.EventConnectionAck)

	send(t, ws, chat.FramePing, nil)
	readUntil(t, ws, chat.EventPong)
}

func TestDisconnectEventuallyBroadcastsOffline(t *testing.T) {
	s, url := newTestGateway(t)

	ws1 := dial(t, url)
	readUntil(t, ws1, chat.EventConnectionAck)
	authenticate(t, ws1, "alice")

	ws2 := dial(t, url)
	readUntil(t, ws2, chat.EventConnectionAck)
	authenticate(t, ws2, "bob")

	require.NoError(t, ws2.Close())

	// isOnline flips as soon as the read loop exits; the broadcast waits
	// out the grace window
	deadline := time.Now().Add(2 * time.Second)
	for s.IsOnline("bob") && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	require.False(t, s.IsOnline("bob"))

	ev := readUntil(t, ws1, realtime.EventUserOffline)
	var p realtime.PresencePayload
	require.NoError(t, json.Unmarshal(ev.Data, &p))
	require.Equal(t, "bob", p.UserID)
}

func TestMalformedFramesAreIgnored(t *testing.T) {
	s, url := newTestGateway(t)
	ws := dial(t, url)
	readUntil(t, ws, chat.EventConnectionAck)

	require.NoError(t, ws.WriteMessage(websocket.TextMessage, []byte("not json")))
	require.NoError(t, ws.WriteMessage(websocket.TextMessage, []byte(`{"data":{}}`)))

	// the connection survives and still answers pings
	send(t, ws, chat.FramePing, nil)
	readUntil(t, ws, chat.EventPong)
	require.Equal(t, 1, s.ConnMgr().Count())
}
