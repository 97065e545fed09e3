package natsx

import (
	"encoding/json"

	"github.com/nats-io/nats.go"
	"github.com/pkg/errors"

	"CounselPortal/logger"
	"CounselPortal/service/chat"
	"CounselPortal/service/realtime"
)

// Subjects carrying cross-node real-time traffic.
const (
	SubjectMessage     = "portal.rt.message"
	SubjectFileShared  = "portal.rt.file.shared"
	SubjectFileDeleted = "portal.rt.file.deleted"
	SubjectNotify      = "portal.rt.notification"
)

// envelope wraps a record with its origin node so a node never re-relays
// its own publications.
type envelope struct {
	Origin string          `json:"origin"`
	Record json.RawMessage `json:"record"`
}

// Bridge extends the single-process relay across gateway nodes. Local
// calls go straight to the embedded server and are additionally published
// on NATS; remote publications are replayed into the local server. With
// no bridge configured the gateway behaves identically minus the publish.
type Bridge struct {
	c      *Client
	s      *chat.Server
	nodeID string
	subs   []*nats.Subscription
}

func NewBridge(c *Client, s *chat.Server, nodeID string) *Bridge {
	return &Bridge{c: c, s: s, nodeID: nodeID}
}

// Start subscribes to the bridge subjects.
func (b *Bridge) Start() error {
	type route struct {
		subject string
		apply   func(json.RawMessage)
	}
	routes := []route{
		{SubjectMessage, func(raw json.RawMessage) {
			var m realtime.MessageRecord
			if json.Unmarshal(raw, &m) == nil {
				b.s.RelayMessage(&m)
			}
		}},
		{SubjectFileShared, func(raw json.RawMessage) {
			var f realtime.FileRecord
			if json.Unmarshal(raw, &f) == nil {
				b.s.RelayFileShared(&f)
			}
		}},
		{SubjectFileDeleted, func(raw json.RawMessage) {
			var f realtime.FileRecord
			if json.Unmarshal(raw, &f) == nil {
				b.s.RelayFileDeleted(&f)
			}
		}},
		{SubjectNotify, func(raw json.RawMessage) {
			var env realtime.NotificationEnvelope
			if json.Unmarshal(raw, &env) == nil {
				b.s.DispatchNotification(&env)
			}
		}},
	}

	for _, r := range routes {
		apply := r.apply
		sub, err := b.c.Conn().Subscribe(r.subject, func(msg *nats.Msg) {
			var e envelope
			if err := json.Unmarshal(msg.Data, &e); err != nil {
				logger.Errorf("[bridge] bad envelope on %s: %v", msg.Subject, err)
				return
			}
			if e.Origin == b.nodeID {
				return
			}
			apply(e.Record)
		})
		if err != nil {
			return errors.Wrapf(err, "subscribe %s", r.subject)
		}
		b.subs = append(b.subs, sub)
	}
	return nil
}

func (b *Bridge) publish(subject string, record any) {
	raw, err := json.Marshal(record)
	if err != nil {
		logger.Errorf("[bridge] marshal for %s: %v", subject, err)
		return
	}
	data, _ := json.Marshal(envelope{Origin: b.nodeID, Record: raw})
	if err := b.c.Conn().Publish(subject, data); err != nil {
		logger.Errorf("[bridge] publish %s: %v", subject, err)
	}
}

// ---- decorated host API: local delivery plus cross-node publish ----

func (b *Bridge) RelayMessage(m *realtime.MessageRecord) {
	b.s.RelayMessage(m)
	b.publish(SubjectMessage, m)
}

func (b *Bridge) RelayFileShared(f *realtime.FileRecord) {
	b.s.RelayFileShared(f)
	b.publish(SubjectFileShared, f)
}

func (b *Bridge) RelayFileDeleted(f *realtime.FileRecord) {
	b.s.RelayFileDeleted(f)
	b.publish(SubjectFileDeleted, f)
}

func (b *Bridge) DispatchNotification(env *realtime.NotificationEnvelope) {
	b.s.DispatchNotification(env)
	b.publish(SubjectNotify, env)
}

func (b *Bridge) Close() {
	for _, sub := range b.subs {
		_ = sub.Unsubscribe()
	}
}
