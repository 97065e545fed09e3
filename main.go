package main

import (
	"context"
	"fmt"
	"hash/fnv"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"CounselPortal/global/config"
	"CounselPortal/logger"
	"CounselPortal/middleware"
	"CounselPortal/service/chat"
	"CounselPortal/service/chat/handlers"
	"CounselPortal/service/ingest"
	"CounselPortal/service/natsx"
	"CounselPortal/service/storage"
	"CounselPortal/tools/ids"
)

func main() {
	config.LoadEnv()
	cfg := &config.Global
	ids.SetNodeID(nodeNum(cfg.NodeId))

	s := chat.NewServer(cfg)
	handlers.Install(s)

	// The sink is what everything south of the websocket layer talks to.
	// With NATS enabled it becomes the bridge decorator so relayed events
	// reach sessions on every gateway node, not just this one.
	var sink ingest.Sink = s

	if cfg.NatsURL != "" {
		nc, err := natsx.NewClient(natsx.Config{
			Servers: []string{cfg.NatsURL},
			Name:    "portal-gateway-" + cfg.NodeId,
		})
		if err != nil {
			logger.Errorf("nats connect failed: %v", err)
			os.Exit(1)
		}
		defer nc.Close()

		bridge := natsx.NewBridge(nc, s, cfg.NodeId)
		if err := bridge.Start(); err != nil {
			logger.Errorf("nats bridge start failed: %v", err)
			os.Exit(1)
		}
		defer bridge.Close()
		sink = bridge
		logger.Infof("nats bridge up: %s", cfg.NatsURL)
	}

	if cfg.RedisAddr != "" {
		if err := storage.InitRedis(storage.Config{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		}); err != nil {
			logger.Errorf("redis init failed: %v", err)
			os.Exit(1)
		}
		defer storage.CloseRedis()

		mirror, err := storage.NewPresenceMirror(cfg.NodeId, 2*cfg.OfflineGrace)
		if err != nil {
			logger.Errorf("presence mirror init failed: %v", err)
			os.Exit(1)
		}
		defer mirror.Close()
		s.Broadcaster().AddObserver(mirror)
		// heartbeats re-assert the mirror key so idle sessions outlive its TTL
		s.ConnMgr().OnHeartbeat(mirror.Refresh)
		logger.Infof("presence mirror up: %s", cfg.RedisAddr)
	}

	if len(cfg.KafkaBrokers) > 0 {
		cons, err := ingest.NewConsumer(ingest.Conf{
			Brokers:            cfg.KafkaBrokers,
			GroupID:            cfg.KafkaGroupId,
			MessagesTopic:      cfg.MessagesTopic,
			NotificationsTopic: cfg.NotificationsTopic,
		}, sink)
		if err != nil {
			logger.Errorf("kafka consumer init failed: %v", err)
			os.Exit(1)
		}
		cons.Start()
		defer cons.Close()
		logger.Infof("ingest consumer up: %v group=%s", cfg.KafkaBrokers, cfg.KafkaGroupId)
	}

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.Origin(cfg.AllowedOrigins...))

	r.GET("/ws", s.HandleWS)
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "node": cfg.NodeId})
	})
	r.GET("/onlinez", func(c *gin.Context) {
		users := s.OnlineUsers()
		c.JSON(http.StatusOK, gin.H{
			"count":       len(users),
			"users":       users,
			"connections": s.ConnMgr().Count(),
		})
	})

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: r,
	}

	go func() {
		logger.Infof("gateway %s listening on %s", cfg.NodeId, srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Errorf("listen failed: %v", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Warnf("http shutdown: %v", err)
	}
	s.Close()
}

// nodeNum maps the configured node id onto the snowflake node space.
func nodeNum(id string) int64 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(id))
	return int64(h.Sum32() % 1024)
}
