package realtime

import (
	"sync"
	"time"

	"CounselPortal/tools/safe"
)

// TypingConf tunes the typing coordinator.
type TypingConf struct {
	Expiry time.Duration // silence window before a synthesized stop
}

func (c *TypingConf) norm() {
	if c.Expiry <= 0 {
		c.Expiry = 3 * time.Second
	}
}

type typingState struct {
	userName string
	timer    *time.Timer
	gen      uint64
}

// TypingCoordinator tracks ephemeral "user X is typing in conversation Y"
// state. A start signal arms (or refreshes) an expiry timer; if the client
// goes silent the coordinator broadcasts the stop on its behalf, so
// indicators never stick after a crash or a lost stop frame.
type TypingCoordinator struct {
	mu     sync.Mutex
	states map[string]map[string]*typingState // conversationID -> userID -> state

	rooms  *Rooms
	sender Sender
	conf   TypingConf
}

func NewTypingCoordinator(conf TypingConf, rooms *Rooms, sender Sender) *TypingCoordinator {
	conf.norm()
	return &TypingCoordinator{
		states: make(map[string]map[string]*typingState),
		rooms:  rooms,
		sender: sender,
		conf:   conf,
	}
}

// SetTyping records a client typing signal and broadcasts the indicator to
// the conversation's subscribers. An explicit stop for a key with no live
// state is a silent no-op (the stop was already delivered or synthesized).
func (t *TypingCoordinator) SetTyping(conversationID, userID, userName string, isTyping bool) {
	if conversationID == "" || userID == "" {
		return
	}

	t.mu.Lock()
	if isTyping {
		users := t.states[conversationID]
		if users == nil {
			users = make(map[string]*typingState)
			t.states[conversationID] = users
		}
		st := users[userID]
		if st == nil {
			st = &typingState{}
			users[userID] = st
		}
		st.userName = userName
		st.gen++
		gen := st.gen
		if st.timer != nil {
			st.timer.Stop()
		}
		st.timer = time.AfterFunc(t.conf.Expiry, func() {
			safe.Run(func() { t.expire(conversationID, userID, gen) })
		})
	} else {
		if !t.clearLocked(conversationID, userID) {
			t.mu.Unlock()
			return
		}
	}
	t.mu.Unlock()

	t.broadcast(conversationID, userID, userName, isTyping)
}

// expire fires when no refresh arrived within the window; it synthesizes
// exactly one stop event.
func (t *TypingCoordinator) expire(conversationID, userID string, gen uint64) {
	t.mu.Lock()
	users := t.states[conversationID]
	st := users[userID]
	if st == nil || st.gen != gen {
		t.mu.Unlock()
		return // refreshed or explicitly stopped since this timer was armed
	}
	userName := st.userName
	t.clearLocked(conversationID, userID)
	t.mu.Unlock()

	t.broadcast(conversationID, userID, userName, false)
}

// clearLocked removes the state and stops its timer; reports whether a
// state existed. Caller holds t.mu.
func (t *TypingCoordinator) clearLocked(conversationID, userID string) bool {
	users := t.states[conversationID]
	st := users[userID]
	if st == nil {
		return false
	}
	st.gen++
	if st.timer != nil {
		st.timer.Stop()
	}
	delete(users, userID)
	if len(users) == 0 {
		delete(t.states, conversationID)
	}
	return true
}

func (t *TypingCoordinator) broadcast(conversationID, userID, userName string, isTyping bool) {
	payload := TypingPayload{
		UserID:         userID,
		UserName:       userName,
		ConversationID: conversationID,
		IsTyping:       isTyping,
	}
	for _, sid := range t.rooms.Subscribers(conversationID) {
		t.sender.SendTo(sid, EventTypingIndicator, payload)
	}
}

// Close stops all pending expiry timers.
func (t *TypingCoordinator) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for conversationID, users := range t.states {
		for userID, st := range users {
			st.gen++
			if st.timer != nil {
				st.timer.Stop()
			}
			delete(users, userID)
		}
		delete(t.states, conversationID)
	}
}
