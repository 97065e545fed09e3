package storage

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"CounselPortal/logger"
	"CounselPortal/tools/safe"
)

// PresenceMirror replicates presence transitions into Redis so sibling
// gateway nodes (and the REST layer) can answer "is this user online
// anywhere" without asking every node. It is an asynchronous observer of
// the in-process registry: transitions are queued on a buffered channel
// and written by one worker, so the registry never blocks on Redis.
//
// Key: portal:presence:<user> -> node id, TTL-bounded. Channel
// portal:presence carries the transition feed for interested consumers.
type PresenceMirror struct {
	nodeID string
	ttl    time.Duration
	ch     chan presenceUpdate
	done   chan struct{}
}

type presenceUpdate struct {
	UserID string `json:"userId"`
	Online bool   `json:"online"`
	NodeID string `json:"nodeId"`
	Ts     int64  `json:"ts"`

	// TTL re-assertion only; not a transition, so nothing is published
	refresh bool
}

const presenceChannel = "portal:presence"

func presenceKey(userID string) string { return "portal:presence:" + userID }

// NewPresenceMirror starts the mirror worker. ttl should comfortably
// exceed the registry's offline grace so a blip never flickers the key.
func NewPresenceMirror(nodeID string, ttl time.Duration) (*PresenceMirror, error) {
	if rdb == nil {
		return nil, errors.New("redis not initialized")
	}
	if ttl <= 0 {
		ttl = 2 * time.Minute
	}
	m := &PresenceMirror{
		nodeID: nodeID,
		ttl:    ttl,
		ch:     make(chan presenceUpdate, 1024),
		done:   make(chan struct{}),
	}
	safe.Go(m.worker)
	return m, nil
}

// Observe enqueues one transition; drops when the queue is full rather
// than back-pressuring the registry.
func (m *PresenceMirror) Observe(userID string, online bool) {
	select {
	case m.ch <- presenceUpdate{UserID: userID, Online: online, NodeID: m.nodeID, Ts: time.Now().UnixMilli()}:
	default:
		logger.Warnf("[presence-mirror] queue full, dropping update user=%s", userID)
	}
}

// Refresh re-asserts an online key; the heartbeat path calls it so keys
// outlive their TTL while the user stays connected. Only the key's TTL
// moves, the transition feed stays quiet.
func (m *PresenceMirror) Refresh(userID string) {
	select {
	case m.ch <- presenceUpdate{UserID: userID, Online: true, NodeID: m.nodeID, Ts: time.Now().UnixMilli(), refresh: true}:
	default:
	}
}

func (m *PresenceMirror) worker() {
	for {
		select {
		case <-m.done:
			return
		case u := <-m.ch:
			m.apply(u)
		}
	}
}

func (m *PresenceMirror) apply(u presenceUpdate) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	var err error
	if u.Online {
		err = rdb.Set(ctx, presenceKey(u.UserID), u.NodeID, m.ttl).Err()
	} else {
		err = rdb.Del(ctx, presenceKey(u.UserID)).Err()
	}
	if err != nil {
		logger.Errorf("[presence-mirror] write user=%s online=%v: %v", u.UserID, u.Online, err)
		return
	}
	if u.refresh {
		return
	}
	if payload, jerr := json.Marshal(u); jerr == nil {
		if perr := rdb.Publish(ctx, presenceChannel, payload).Err(); perr != nil {
			logger.Errorf("[presence-mirror] publish user=%s: %v", u.UserID, perr)
		}
	}
}

// Lookup answers whether the user is online on any node, and where.
func (m *PresenceMirror) Lookup(ctx context.Context, userID string) (nodeID string, online bool, err error) {
	val, err := rdb.Get(ctx, presenceKey(userID)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, errors.Wrap(err, "presence lookup")
	}
	return val, true, nil
}

// Close stops the worker; queued updates are abandoned.
func (m *PresenceMirror) Close() {
	close(m.done)
}
