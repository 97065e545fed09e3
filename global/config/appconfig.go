package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type AppConfig struct {
	NodeId string // gateway node id, participates in snowflake ids and bridge origin tags
	Port   int    // http listen port

	// real-time core knobs
	OfflineGrace  time.Duration // how long a disconnected user keeps their presence entry
	TypingExpiry  time.Duration // typing indicator auto-expiry window
	SendQueueSize int           // per-connection outbound queue
	FanoutWorkers int
	FanoutQueue   int

	// transport TTLs
	UnauthTTL  time.Duration // unauthenticated connection grace
	AuthTTL    time.Duration // authenticated connection TTL (refreshed by heartbeat)
	SweepEvery time.Duration

	JwtSecret []byte

	// websocket upgrade origin allow-list; empty accepts everything
	AllowedOrigins []string

	// optional infrastructure (empty = disabled)
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	NatsURL       string
	KafkaBrokers  []string
	KafkaGroupId  string

	MessagesTopic      string
	NotificationsTopic string
}

var Global = AppConfig{
	NodeId:             "gateway_01",
	Port:               8080,
	OfflineGrace:       30 * time.Second,
	TypingExpiry:       3 * time.Second,
	SendQueueSize:      256,
	FanoutWorkers:      8,
	FanoutQueue:        1024,
	UnauthTTL:          60 * time.Second,
	AuthTTL:            2 * time.Hour,
	SweepEvery:         10 * time.Second,
	KafkaGroupId:       "portal-realtime-1",
	MessagesTopic:      "portal.messages",
	NotificationsTopic: "portal.notifications",
}

// Norm fills in defaults for zero-valued knobs. Call once after overrides.
func (c *AppConfig) Norm() {
	if c.OfflineGrace <= 0 {
		c.OfflineGrace = 30 * time.Second
	}
	if c.TypingExpiry <= 0 {
		c.TypingExpiry = 3 * time.Second
	}
	if c.SendQueueSize <= 0 {
		c.SendQueueSize = 256
	}
	if c.FanoutWorkers <= 0 {
		c.FanoutWorkers = 8
	}
	if c.FanoutQueue <= 0 {
		c.FanoutQueue = 1024
	}
	if c.UnauthTTL <= 0 {
		c.UnauthTTL = 60 * time.Second
	}
	if c.AuthTTL <= 0 {
		c.AuthTTL = 2 * time.Hour
	}
	if c.SweepEvery <= 0 {
		c.SweepEvery = 10 * time.Second
	}
	if len(c.JwtSecret) == 0 {
		c.JwtSecret = []byte("dev-only-secret")
	}
}

// LoadEnv applies environment overrides onto Global.
func LoadEnv() {
	if v := os.Getenv("PORTAL_NODE_ID"); v != "" {
		Global.NodeId = v
	}
	if v := os.Getenv("PORTAL_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			Global.Port = p
		}
	}
	if v := os.Getenv("PORTAL_JWT_SECRET"); v != "" {
		Global.JwtSecret = []byte(v)
	}
	if v := os.Getenv("PORTAL_OFFLINE_GRACE"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			Global.OfflineGrace = d
		}
	}
	if v := os.Getenv("PORTAL_TYPING_EXPIRY"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			Global.TypingExpiry = d
		}
	}
	if v := os.Getenv("PORTAL_ALLOWED_ORIGINS"); v != "" {
		Global.AllowedOrigins = splitCSV(v)
	}
	if v := os.Getenv("PORTAL_REDIS_ADDR"); v != "" {
		Global.RedisAddr = v
	}
	if v := os.Getenv("PORTAL_NATS_URL"); v != "" {
		Global.NatsURL = v
	}
	if v := os.Getenv("PORTAL_KAFKA_BROKERS"); v != "" {
		Global.KafkaBrokers = splitCSV(v)
	}
	Global.Norm()
}

func splitCSV(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
