package realtime

import "sync"

const roomShards = 32

type convShard struct {
	mu    sync.RWMutex
	rooms map[string]map[string]struct{} // conversationID -> set of sessionIDs
}

type memberShard struct {
	mu     sync.Mutex
	joined map[string]map[string]struct{} // sessionID -> set of conversationIDs
}

// Rooms maps conversations to their subscribed sessions. The reverse index
// keeps RemoveSession proportional to the session's own subscriptions.
// Join/Leave/RemoveSession for one session are serialized by that
// session's read loop, so the two indexes cannot drift apart.
type Rooms struct {
	convs   [roomShards]convShard
	members [roomShards]memberShard
}

func NewRooms() *Rooms {
	r := &Rooms{}
	for i := range r.convs {
		r.convs[i].rooms = make(map[string]map[string]struct{})
	}
	for i := range r.members {
		r.members[i].joined = make(map[string]map[string]struct{})
	}
	return r
}

// Join subscribes a session to a conversation. Idempotent.
func (r *Rooms) Join(conversationID, sessionID string) {
	if conversationID == "" || sessionID == "" {
		return
	}
	cs := &r.convs[shardIndex(conversationID)]
	cs.mu.Lock()
	set := cs.rooms[conversationID]
	if set == nil {
		set = make(map[string]struct{})
		cs.rooms[conversationID] = set
	}
	set[sessionID] = struct{}{}
	cs.mu.Unlock()

	ms := &r.members[shardIndex(sessionID)]
	ms.mu.Lock()
	joined := ms.joined[sessionID]
	if joined == nil {
		joined = make(map[string]struct{})
		ms.joined[sessionID] = joined
	}
	joined[conversationID] = struct{}{}
	ms.mu.Unlock()
}

// Leave unsubscribes a session from a conversation. No-op for non-members.
func (r *Rooms) Leave(conversationID, sessionID string) {
	if conversationID == "" || sessionID == "" {
		return
	}
	r.dropSubscriber(conversationID, sessionID)

	ms := &r.members[shardIndex(sessionID)]
	ms.mu.Lock()
	if joined := ms.joined[sessionID]; joined != nil {
		delete(joined, conversationID)
		if len(joined) == 0 {
			delete(ms.joined, sessionID)
		}
	}
	ms.mu.Unlock()
}

// RemoveSession clears the session from every conversation it joined.
// Called on session termination.
func (r *Rooms) RemoveSession(sessionID string) {
	if sessionID == "" {
		return
	}
	ms := &r.members[shardIndex(sessionID)]
	ms.mu.Lock()
	joined := ms.joined[sessionID]
	delete(ms.joined, sessionID)
	ms.mu.Unlock()

	for conversationID := range joined {
		r.dropSubscriber(conversationID, sessionID)
	}
}

// Subscribers returns the sessions currently joined to a conversation.
func (r *Rooms) Subscribers(conversationID string) []string {
	cs := &r.convs[shardIndex(conversationID)]
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	set := cs.rooms[conversationID]
	if len(set) == 0 {
		return nil
	}
	out := make([]string, 0, len(set))
	for sid := range set {
		out = append(out, sid)
	}
	return out
}

func (r *Rooms) dropSubscriber(conversationID, sessionID string) {
	cs := &r.convs[shardIndex(conversationID)]
	cs.mu.Lock()
	if set := cs.rooms[conversationID]; set != nil {
		delete(set, sessionID)
		if len(set) == 0 {
			delete(cs.rooms, conversationID)
		}
	}
	cs.mu.Unlock()
}
