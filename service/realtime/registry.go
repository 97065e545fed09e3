package realtime

import (
	"hash/fnv"
	"sync"
	"time"

	"CounselPortal/logger"
	"CounselPortal/tools/safe"
)

const presenceShards = 32

// RegistryConf tunes the connection registry.
type RegistryConf struct {
	OfflineGrace time.Duration    // delay before a disconnected user is declared offline
	Clock        func() time.Time // injectable clock (tests); nil => time.Now
}

func (c *RegistryConf) norm() {
	if c.OfflineGrace <= 0 {
		c.OfflineGrace = 30 * time.Second
	}
	if c.Clock == nil {
		c.Clock = time.Now
	}
}

// PresenceEntry tracks one user identity that has authenticated during
// this process lifetime. An entry survives disconnects so LastSeen stays
// queryable; SessionID is empty whenever Online is false.
type PresenceEntry struct {
	UserID    string
	SessionID string
	Online    bool
	LastSeen  time.Time

	// grace bookkeeping; guarded by the owning shard's mutex
	graceTimer *time.Timer
	gen        uint64
}

type presenceShard struct {
	mu      sync.Mutex
	entries map[string]*PresenceEntry
}

type sessionShard struct {
	mu    sync.Mutex
	users map[string]string // sessionID -> userID
}

// Registry is the connection registry: user identity -> zero-or-one live
// session. All mutations for one user are serialized by that user's shard
// mutex, so presence transitions are observed in order and a grace-period
// expiry can never race a fresh authenticate.
//
// The offline broadcast is deferred to grace expiry: a disconnect flips
// IsOnline immediately, but observers only hear "user-offline" if no
// reconnect arrives within the grace window. A reconnect inside the window
// therefore produces no presence traffic at all.
//
// The online set is a separate leaf-locked index maintained on every
// transition, so snapshots never touch the shard mutexes. A shard mutex
// may take onlineMu, never the other way around; operations on different
// users therefore cannot block each other.
type Registry struct {
	shards   [presenceShards]presenceShard
	sessions [presenceShards]sessionShard

	onlineMu sync.Mutex
	online   map[string]struct{}

	broadcaster *PresenceBroadcaster
	conf        RegistryConf

	closeOnce sync.Once
	closed    bool
	closeMu   sync.Mutex
}

func NewRegistry(conf RegistryConf, broadcaster *PresenceBroadcaster) *Registry {
	conf.norm()
	r := &Registry{broadcaster: broadcaster, conf: conf, online: make(map[string]struct{})}
	for i := range r.shards {
		r.shards[i].entries = make(map[string]*PresenceEntry)
	}
	for i := range r.sessions {
		r.sessions[i].users = make(map[string]string)
	}
	return r
}

func shardIndex(key string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return int(h.Sum32() % presenceShards)
}

// Authenticate binds a session to a user identity and returns a snapshot
// of every online user, taken at the moment of authentication. The same
// snapshot is delivered point-to-point to the new session as the
// "online-users" bootstrap. Last writer wins: a reconnect racing a stale
// disconnect simply takes over the entry.
func (r *Registry) Authenticate(sessionID, userID string) []string {
	if sessionID == "" || userID == "" {
		return nil
	}
	r.bindSession(sessionID, userID)

	idx := shardIndex(userID)
	sh := &r.shards[idx]
	sh.mu.Lock()
	defer sh.mu.Unlock()

	now := r.conf.Clock()
	e, ok := sh.entries[userID]
	if !ok {
		e = &PresenceEntry{UserID: userID}
		sh.entries[userID] = e
	}

	// Any pending grace removal is cancelled; its callback checks gen.
	gracePending := e.graceTimer != nil
	if gracePending {
		e.graceTimer.Stop()
		e.graceTimer = nil
	}
	e.gen++

	wasVisiblyOnline := e.Online || gracePending
	if e.Online && e.SessionID != sessionID {
		// stale session lost the race; its later disconnect will no-op
		r.unbindSession(e.SessionID, userID)
	}
	e.SessionID = sessionID
	e.Online = true
	e.LastSeen = now

	users := r.markOnline(userID)

	if !wasVisiblyOnline {
		r.broadcaster.Announce(userID, true)
	}
	r.broadcaster.Catchup(sessionID, users)
	return users
}

// Disconnect marks the owning user offline and schedules the offline
// announcement after the grace period. Unknown sessions are a no-op:
// transports routinely drop connections that never authenticated.
func (r *Registry) Disconnect(sessionID string) {
	if sessionID == "" {
		return
	}
	userID, ok := r.takeSession(sessionID)
	if !ok {
		return
	}

	idx := shardIndex(userID)
	sh := &r.shards[idx]
	sh.mu.Lock()
	defer sh.mu.Unlock()

	e, ok := sh.entries[userID]
	if !ok {
		return
	}
	if e.SessionID != sessionID {
		// a newer authenticate already owns this entry
		return
	}
	if !e.Online {
		logger.Errorf("[registry] invariant violation: offline entry still bound to session user=%s session=%s", userID, sessionID)
	}

	e.Online = false
	e.SessionID = ""
	e.LastSeen = r.conf.Clock()
	e.gen++
	gen := e.gen
	r.markOffline(userID)

	r.closeMu.Lock()
	stopped := r.closed
	r.closeMu.Unlock()
	if stopped {
		return
	}
	e.graceTimer = time.AfterFunc(r.conf.OfflineGrace, func() {
		safe.Run(func() { r.expireGrace(userID, gen) })
	})
}

func (r *Registry) expireGrace(userID string, gen uint64) {
	idx := shardIndex(userID)
	sh := &r.shards[idx]
	sh.mu.Lock()
	defer sh.mu.Unlock()

	e, ok := sh.entries[userID]
	if !ok || e.gen != gen {
		return // reconnected or superseded in the meantime
	}
	e.graceTimer = nil
	r.broadcaster.Announce(userID, false)
}

// IsOnline reports whether the user currently has a live authenticated
// session. False for unknown identities and for users inside the grace
// window (the entry flips immediately on disconnect).
func (r *Registry) IsOnline(userID string) bool {
	sh := &r.shards[shardIndex(userID)]
	sh.mu.Lock()
	defer sh.mu.Unlock()
	e, ok := sh.entries[userID]
	return ok && e.Online
}

// SessionOf returns the user's current session id, only while online.
func (r *Registry) SessionOf(userID string) (string, bool) {
	sh := &r.shards[shardIndex(userID)]
	sh.mu.Lock()
	defer sh.mu.Unlock()
	e, ok := sh.entries[userID]
	if !ok || !e.Online {
		return "", false
	}
	if e.SessionID == "" {
		logger.Errorf("[registry] invariant violation: online entry with empty session user=%s", userID)
		return "", false
	}
	return e.SessionID, true
}

// LastSeen returns the user's last activity timestamp, if known.
func (r *Registry) LastSeen(userID string) (time.Time, bool) {
	sh := &r.shards[shardIndex(userID)]
	sh.mu.Lock()
	defer sh.mu.Unlock()
	e, ok := sh.entries[userID]
	if !ok {
		return time.Time{}, false
	}
	return e.LastSeen, true
}

// OnlineUsers returns a snapshot of all online user identities.
func (r *Registry) OnlineUsers() []string {
	r.onlineMu.Lock()
	defer r.onlineMu.Unlock()
	return r.onlineSlice()
}

// markOnline records the transition in the online set and returns the
// resulting snapshot, caller included. Safe to call with a shard held:
// onlineMu is a leaf lock.
func (r *Registry) markOnline(userID string) []string {
	r.onlineMu.Lock()
	defer r.onlineMu.Unlock()
	r.online[userID] = struct{}{}
	return r.onlineSlice()
}

func (r *Registry) markOffline(userID string) {
	r.onlineMu.Lock()
	delete(r.online, userID)
	r.onlineMu.Unlock()
}

// onlineSlice copies the set; caller holds onlineMu.
func (r *Registry) onlineSlice() []string {
	out := make([]string, 0, len(r.online))
	for id := range r.online {
		out = append(out, id)
	}
	return out
}

// Close cancels every pending grace timer. Further disconnects no longer
// schedule announcements; used on process shutdown.
func (r *Registry) Close() {
	r.closeOnce.Do(func() {
		r.closeMu.Lock()
		r.closed = true
		r.closeMu.Unlock()
		for i := range r.shards {
			sh := &r.shards[i]
			sh.mu.Lock()
			for _, e := range sh.entries {
				if e.graceTimer != nil {
					e.graceTimer.Stop()
					e.graceTimer = nil
				}
				e.gen++
			}
			sh.mu.Unlock()
		}
	})
}

// session index helpers

func (r *Registry) bindSession(sessionID, userID string) {
	ss := &r.sessions[shardIndex(sessionID)]
	ss.mu.Lock()
	ss.users[sessionID] = userID
	ss.mu.Unlock()
}

func (r *Registry) unbindSession(sessionID, userID string) {
	ss := &r.sessions[shardIndex(sessionID)]
	ss.mu.Lock()
	if ss.users[sessionID] == userID {
		delete(ss.users, sessionID)
	}
	ss.mu.Unlock()
}

func (r *Registry) takeSession(sessionID string) (string, bool) {
	ss := &r.sessions[shardIndex(sessionID)]
	ss.mu.Lock()
	userID, ok := ss.users[sessionID]
	if ok {
		delete(ss.users, sessionID)
	}
	ss.mu.Unlock()
	return userID, ok
}
