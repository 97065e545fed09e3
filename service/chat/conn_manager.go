package chat

import (
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"CounselPortal/logger"
)

// ManagerConf tunes the connection manager.
type ManagerConf struct {
	UnauthTTL  time.Duration    // grace for connections that never authenticate
	AuthTTL    time.Duration    // authenticated connection TTL, refreshed by heartbeat
	SweepEvery time.Duration    // sweeper period
	SendQueue  int              // per-connection outbound queue size
	Clock      func() time.Time // injectable clock (tests); nil => time.Now
}

func (c *ManagerConf) norm() {
	if c.UnauthTTL <= 0 {
		c.UnauthTTL = 60 * time.Second
	}
	if c.AuthTTL <= 0 {
		c.AuthTTL = 2 * time.Hour
	}
	if c.SweepEvery <= 0 {
		c.SweepEvery = 10 * time.Second
	}
	if c.SendQueue <= 0 {
		c.SendQueue = 256
	}
	if c.Clock == nil {
		c.Clock = time.Now
	}
}

// CloseHook runs after a connection has been removed from the manager's
// indexes. The manager holds no locks at that point, so hooks may call
// back into the real-time core freely.
type CloseHook func(connID string)

// HeartbeatHook runs after a liveness refresh of an authenticated
// connection, outside the manager's lock. Used to keep external presence
// keys alive for long idle sessions.
type HeartbeatHook func(userID string)

// ConnManager owns every live websocket connection of this gateway node.
// It is the realtime.Sender implementation: SendTo and BroadcastAll only
// enqueue onto per-connection queues and never block.
type ConnManager struct {
	mu     sync.RWMutex
	byConn map[string]*Client
	byUser map[string]map[string]*Client // userID -> connID -> client

	conf        ManagerConf
	gwId        string
	onClose     CloseHook
	onHeartbeat HeartbeatHook

	stopOnce sync.Once
	stopCh   chan struct{}
}

func NewConnManager(conf ManagerConf, gwId string) *ConnManager {
	conf.norm()
	m := &ConnManager{
		byConn: make(map[string]*Client),
		byUser: make(map[string]map[string]*Client),
		conf:   conf,
		gwId:   gwId,
		stopCh: make(chan struct{}),
	}
	go m.sweeper()
	return m
}

func (m *ConnManager) GwId() string { return m.gwId }

// OnClose registers the cleanup hook; set once during wiring, before the
// first connection is accepted.
func (m *ConnManager) OnClose(h CloseHook) { m.onClose = h }

// OnHeartbeat registers the heartbeat hook; same wiring-time contract as
// OnClose.
func (m *ConnManager) OnHeartbeat(h HeartbeatHook) { m.onHeartbeat = h }

// Register adds a fresh, unauthenticated connection and starts its writer.
func (m *ConnManager) Register(connID string, ws *websocket.Conn) (*Client, error) {
	if connID == "" || ws == nil {
		return nil, errors.New("connID/ws empty")
	}
	now := m.conf.Clock()
	c := newClient(connID, ws, m.conf.SendQueue, m.conf.UnauthTTL, now)

	m.mu.Lock()
	if _, exists := m.byConn[connID]; exists {
		m.mu.Unlock()
		return nil, errors.New("connID exists")
	}
	m.byConn[connID] = c
	m.mu.Unlock()

	go c.writePump()
	return c, nil
}

// Bind marks a connection authenticated and indexes it under its user.
// Switches the connection to the auth TTL.
func (m *ConnManager) Bind(connID, userID string) error {
	if connID == "" || userID == "" {
		return errors.New("connID/userID empty")
	}
	now := m.conf.Clock()

	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.byConn[connID]
	if !ok {
		return errors.New("connID not found")
	}
	if c.Authorized && c.UserID != "" && c.UserID != userID {
		// rebinding to a different user: drop the old index entry
		if mm := m.byUser[c.UserID]; mm != nil {
			delete(mm, connID)
			if len(mm) == 0 {
				delete(m.byUser, c.UserID)
			}
		}
	}
	c.UserID = userID
	c.Authorized = true
	c.TTL = m.conf.AuthTTL
	c.ExpireAt = now.Add(m.conf.AuthTTL)
	c.UpdatedAt = now
	c.Heartbeat = now

	mm := m.byUser[userID]
	if mm == nil {
		mm = make(map[string]*Client)
		m.byUser[userID] = mm
	}
	mm[connID] = c
	return nil
}

// Get returns the client for a connection id.
func (m *ConnManager) Get(connID string) (*Client, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.byConn[connID]
	return c, ok
}

// Heartbeat refreshes a connection's liveness and expiry, then fires the
// heartbeat hook for bound connections.
func (m *ConnManager) Heartbeat(connID string) {
	now := m.conf.Clock()
	var userID string
	m.mu.Lock()
	if c, ok := m.byConn[connID]; ok {
		c.Heartbeat = now
		c.ExpireAt = now.Add(c.TTL)
		c.UpdatedAt = now
		if c.Authorized {
			userID = c.UserID
		}
	}
	m.mu.Unlock()

	if userID != "" && m.onHeartbeat != nil {
		m.onHeartbeat(userID)
	}
}

// AttachPongHandler refreshes the heartbeat on websocket pongs.
func (m *ConnManager) AttachPongHandler(ws *websocket.Conn, connID string) {
	if ws == nil || connID == "" {
		return
	}
	ws.SetPongHandler(func(string) error {
		m.Heartbeat(connID) // connection may be swept concurrently; refresh is best-effort
		return nil
	})
}

// Drop removes a connection, closes its queue and fires the close hook.
// Idempotent; unknown ids are a no-op.
func (m *ConnManager) Drop(connID string, reason string) {
	if connID == "" {
		return
	}
	m.mu.Lock()
	c, ok := m.byConn[connID]
	if !ok {
		m.mu.Unlock()
		return
	}
	delete(m.byConn, connID)
	if c.Authorized && c.UserID != "" {
		if mm := m.byUser[c.UserID]; mm != nil {
			delete(mm, connID)
			if len(mm) == 0 {
				delete(m.byUser, c.UserID)
			}
		}
	}
	m.mu.Unlock()

	c.closeSend() // writer flushes, sends close frame, closes the socket
	logger.Infof("[connmgr] dropped conn=%s user=%s reason=%s", connID, c.UserID, reason)
	if m.onClose != nil {
		m.onClose(connID)
	}
}

// Count reports the number of live connections.
func (m *ConnManager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.byConn)
}

// SendTo implements realtime.Sender for a single session.
func (m *ConnManager) SendTo(sessionID, event string, payload any) {
	data, err := MarshalEvent(event, payload)
	if err != nil {
		logger.Errorf("[connmgr] marshal %s: %v", event, err)
		return
	}
	m.mu.RLock()
	c, ok := m.byConn[sessionID]
	m.mu.RUnlock()
	if !ok {
		return // session died between lookup and send; nothing to do
	}
	if !c.enqueue(data) {
		logger.Warnf("[connmgr] send queue full conn=%s event=%s", sessionID, event)
	}
}

// BroadcastAll implements realtime.Sender for all sessions. The payload
// is marshalled once; enqueue order per connection follows call order,
// which preserves per-user presence ordering.
func (m *ConnManager) BroadcastAll(event string, payload any) {
	data, err := MarshalEvent(event, payload)
	if err != nil {
		logger.Errorf("[connmgr] marshal %s: %v", event, err)
		return
	}
	m.mu.RLock()
	conns := make([]*Client, 0, len(m.byConn))
	for _, c := range m.byConn {
		conns = append(conns, c)
	}
	m.mu.RUnlock()

	for _, c := range conns {
		c.enqueue(data)
	}
}

// sweeper reaps expired connections.
func (m *ConnManager) sweeper() {
	t := time.NewTicker(m.conf.SweepEvery)
	defer t.Stop()
	for {
		select {
		case <-m.stopCh:
			return
		case now := <-t.C:
			m.sweepOnce(now)
		}
	}
}

func (m *ConnManager) sweepOnce(now time.Time) {
	var expired []string
	m.mu.RLock()
	for id, c := range m.byConn {
		if now.After(c.ExpireAt) {
			expired = append(expired, id)
		}
	}
	m.mu.RUnlock()

	for _, id := range expired {
		m.Drop(id, "ttl expired")
	}
}

// Close shuts the sweeper down and drops every connection.
func (m *ConnManager) Close() {
	m.stopOnce.Do(func() { close(m.stopCh) })

	m.mu.RLock()
	ids := make([]string, 0, len(m.byConn))
	for id := range m.byConn {
		ids = append(ids, id)
	}
	m.mu.RUnlock()

	for _, id := range ids {
		m.Drop(id, "shutdown")
	}
}
