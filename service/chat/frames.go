package chat

import (
	"encoding/json"
	"fmt"
	"time"
)

// Inbound frame types sent by clients.
const (
	FrameAuth   = "auth"
	FrameJoin   = "join"
	FrameLeave  = "leave"
	FrameTyping = "typing"
	FramePing   = "ping"
)

// Frame is the inbound wire shape: a type tag plus a loosely typed data
// map, decoded per-handler into the payload structs below.
type Frame struct {
	Type string         `json:"type"`
	Data map[string]any `json:"data,omitempty"`
}

// EventFrame is the outbound wire shape.
type EventFrame struct {
	Event string `json:"event"`
	Data  any    `json:"data,omitempty"`
}

// ParseFrame decodes a raw inbound websocket message.
func ParseFrame(raw []byte) (*Frame, error) {
	f := &Frame{}
	if err := json.Unmarshal(raw, f); err != nil {
		return nil, fmt.Errorf("unmarshal frame: %w", err)
	}
	if f.Type == "" {
		return nil, fmt.Errorf("frame missing type")
	}
	return f, nil
}

// MarshalEvent encodes one outbound event frame.
func MarshalEvent(event string, payload any) ([]byte, error) {
	return json.Marshal(EventFrame{Event: event, Data: payload})
}

// ---- inbound payloads ----

type AuthPayload struct {
	Token string `json:"token"`
}

type RoomPayload struct {
	ConversationID string `json:"conversationId"`
}

type TypingFramePayload struct {
	ConversationID string `json:"conversationId"`
	UserName       string `json:"userName,omitempty"`
	IsTyping       bool   `json:"isTyping"`
}

// ---- server acks ----

type ConnectionAck struct {
	ConnID    string `json:"connId"`
	GatewayID string `json:"gatewayId"`
	Ts        int64  `json:"ts"`
	// heartbeat policy the client should follow
	PingIntervalMs int64 `json:"pingIntervalMs"`
}

type AuthAck struct {
	OK     bool   `json:"ok"`
	UserID string `json:"userId,omitempty"`
	ConnID string `json:"connId"`
	Ts     int64  `json:"ts"`
	Error  string `json:"error,omitempty"`
}

func BuildConnectionAck(connID, gatewayID string) *ConnectionAck {
	return &ConnectionAck{
		ConnID:         connID,
		GatewayID:      gatewayID,
		Ts:             time.Now().UnixMilli(),
		PingIntervalMs: 25000,
	}
}

func BuildAuthAck(connID, userID string, err error) *AuthAck {
	ack := &AuthAck{
		OK:     err == nil,
		UserID: userID,
		ConnID: connID,
		Ts:     time.Now().UnixMilli(),
	}
	if err != nil {
		ack.UserID = ""
		ack.Error = err.Error()
	}
	return ack
}
