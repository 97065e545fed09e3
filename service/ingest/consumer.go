package ingest

import (
	"context"
	"encoding/json"

	"github.com/Shopify/sarama"
	"github.com/pkg/errors"

	"CounselPortal/logger"
	"CounselPortal/service/realtime"
	"CounselPortal/tools/safe"
)

// Sink receives decoded, already-persisted domain records. Satisfied by
// chat.Server and by the natsx bridge decorator.
type Sink interface {
	RelayMessage(*realtime.MessageRecord)
	RelayFileShared(*realtime.FileRecord)
	RelayFileDeleted(*realtime.FileRecord)
	DispatchNotification(*realtime.NotificationEnvelope)
}

// Event kinds on the messages topic.
const (
	KindMessage     = "message"
	KindFileShared  = "file-shared"
	KindFileDeleted = "file-deleted"
)

// domainEvent is what the REST layer produces after a successful write:
// a kind tag plus the persisted record, verbatim.
type domainEvent struct {
	Kind   string          `json:"kind"`
	Record json.RawMessage `json:"record"`
}

// Conf configures the ingest consumer group.
type Conf struct {
	Brokers            []string
	GroupID            string
	MessagesTopic      string
	NotificationsTopic string
}

// Consumer bridges the portal's persistence pipeline into the real-time
// core. One consumer group per gateway deployment; each record is
// delivered to the sink exactly once per group.
type Consumer struct {
	conf   Conf
	sink   Sink
	group  sarama.ConsumerGroup
	cancel context.CancelFunc
	done   chan struct{}
}

func NewConsumer(conf Conf, sink Sink) (*Consumer, error) {
	if len(conf.Brokers) == 0 {
		return nil, errors.New("kafka brokers missing")
	}
	cfg := sarama.NewConfig()
	cfg.Version = sarama.V2_1_0_0
	cfg.Consumer.Offsets.Initial = sarama.OffsetNewest
	cfg.Consumer.Return.Errors = true

	group, err := sarama.NewConsumerGroup(conf.Brokers, conf.GroupID, cfg)
	if err != nil {
		return nil, errors.Wrap(err, "new consumer group")
	}
	return &Consumer{conf: conf, sink: sink, group: group, done: make(chan struct{})}, nil
}

// Start launches the consume loop in the background.
func (c *Consumer) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel

	safe.Go(func() {
		for err := range c.group.Errors() {
			logger.Errorf("[ingest] consumer group error: %v", err)
		}
	})

	safe.Go(func() {
		defer close(c.done)
		topics := []string{c.conf.MessagesTopic, c.conf.NotificationsTopic}
		h := &groupHandler{c: c}
		for {
			if err := c.group.Consume(ctx, topics, h); err != nil {
				if errors.Is(err, sarama.ErrClosedConsumerGroup) {
					return
				}
				logger.Errorf("[ingest] consume error: %v", err)
			}
			if ctx.Err() != nil {
				return
			}
		}
	})
}

func (c *Consumer) Close() {
	if c.cancel != nil {
		c.cancel()
	}
	_ = c.group.Close()
	<-c.done
}

type groupHandler struct {
	c *Consumer
}

func (h *groupHandler) Setup(sarama.ConsumerGroupSession) error {
	logger.Info("[ingest] consumer group setup")
	return nil
}

func (h *groupHandler) Cleanup(sarama.ConsumerGroupSession) error {
	logger.Info("[ingest] consumer group cleanup")
	return nil
}

func (h *groupHandler) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for msg := range claim.Messages() {
		h.c.handle(msg.Topic, msg.Value)
		session.MarkMessage(msg, "")
	}
	return nil
}

// handle decodes one record and hands it to the sink. Malformed records
// are logged and skipped; the pipeline never stalls on one bad message.
func (c *Consumer) handle(topic string, value []byte) {
	switch topic {
	case c.conf.NotificationsTopic:
		var env realtime.NotificationEnvelope
		if err := json.Unmarshal(value, &env); err != nil {
			logger.Errorf("[ingest] bad notification: %v", err)
			return
		}
		c.sink.DispatchNotification(&env)

	case c.conf.MessagesTopic:
		var ev domainEvent
		if err := json.Unmarshal(value, &ev); err != nil {
			logger.Errorf("[ingest] bad domain event: %v", err)
			return
		}
		switch ev.Kind {
		case KindMessage:
			var m realtime.MessageRecord
			if err := json.Unmarshal(ev.Record, &m); err != nil {
				logger.Errorf("[ingest] bad message record: %v", err)
				return
			}
			c.sink.RelayMessage(&m)
		case KindFileShared:
			var f realtime.FileRecord
			if err := json.Unmarshal(ev.Record, &f); err != nil {
				logger.Errorf("[ingest] bad file record: %v", err)
				return
			}
			c.sink.RelayFileShared(&f)
		case KindFileDeleted:
			var f realtime.FileRecord
			if err := json.Unmarshal(ev.Record, &f); err != nil {
				logger.Errorf("[ingest] bad file record: %v", err)
				return
			}
			c.sink.RelayFileDeleted(&f)
		default:
			logger.Warnf("[ingest] unknown event kind=%s", ev.Kind)
		}
	}
}
