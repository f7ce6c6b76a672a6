package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	v1 "chatwire/cmd/api/router/v1"
	brokeradapter "chatwire/internal/infrastructure/broker/adapter"
	brokerport "chatwire/internal/infrastructure/broker/port"
	cacheadapter "chatwire/internal/infrastructure/cache/adapter"
	cacheport "chatwire/internal/infrastructure/cache/port"
	"chatwire/internal/infrastructure/config"
	"chatwire/internal/infrastructure/database"
	queueadapter "chatwire/internal/infrastructure/queue/adapter"
	qport "chatwire/internal/infrastructure/queue/port"
	"chatwire/internal/infrastructure/realtime"
	"chatwire/internal/pkg/chat/application/service"
	"chatwire/internal/pkg/chat/application/task"
	clientadapter "chatwire/internal/pkg/chat/clients/adapter"
	"chatwire/internal/pkg/chat/crypto"
	repoadapter "chatwire/internal/pkg/chat/persistence/repository/adapter"
)

func main() {
	log := logrus.NewEntry(logrus.StandardLogger())

	cfg, err := config.Load()
	if err != nil {
		log.WithError(err).Fatal("configuration")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	codec, err := crypto.NewCodec(cfg.CryptoSecret)
	if err != nil {
		log.WithError(err).Fatal("crypto codec")
	}

	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	pool, err := database.Connect(connectCtx, cfg.DatabaseURL)
	cancel()
	if err != nil {
		log.WithError(err).Fatal("database")
	}
	defer pool.Close()
	if err := database.EnsureSchema(ctx, pool); err != nil {
		log.WithError(err).Fatal("database schema")
	}

	// Redis powers the cross-instance fanout, the lookup cache and the
	// offline-notification queue. Without it the instance falls back to
	// local-only delivery and in-process caching.
	var (
		cache  cacheport.Cache
		broker brokerport.Broker
		queue  qport.Client
	)
	if cfg.RedisURL != "" {
		cache, err = cacheadapter.NewRedisCache(cfg.RedisURL)
		if err != nil {
			log.WithError(err).Fatal("redis cache")
		}
		broker, err = brokeradapter.NewRedisBroker(cfg.RedisURL, log)
		if err != nil {
			log.WithError(err).Fatal("redis broker")
		}
		queue, err = queueadapter.NewAsynqClient(cfg.RedisURL)
		if err != nil {
			log.WithError(err).Fatal("queue client")
		}
		defer queue.Close()
	} else {
		log.Info("redis disabled: local-only delivery for this instance")
		cache = cacheadapter.NewMemoryCache()
		broker = brokeradapter.NewLocalBroker()
	}
	defer broker.Close()
	defer cache.Close()

	repo := repoadapter.NewPgChatRepository(pool)
	chatSvc := service.NewChatService(repo, codec, log)

	users := clientadapter.NewUserHTTPClient(
		cfg.UsersBase, cfg.UsersPublicPath, cache, cfg.RolesCacheTTL, cfg.ProfilesCacheTTL, log)
	reservations := clientadapter.NewReservationHTTPClient(cfg.ReservationsBase, log)
	auth := service.NewAuthorizationService(users)

	registry := realtime.NewRegistry()
	defer registry.Close()

	r := gin.Default()
	r.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "OK"})
	})

	socketCtl := v1.RegisterRoutes(r, v1.Deps{
		Registry:     registry,
		Chat:         chatSvc,
		Auth:         auth,
		Reservations: reservations,
		Users:        users,
		Broker:       broker,
		Queue:        queue,
		Log:          log,
	})
	if err := socketCtl.StartFanout(ctx); err != nil {
		log.WithError(err).Fatal("broker subscribe")
	}

	if cfg.RedisURL != "" {
		worker, err := queueadapter.NewAsynqServer(cfg.RedisURL, cfg.QueueConcurrency, log)
		if err != nil {
			log.WithError(err).Fatal("queue server")
		}
		task.RegisterOfflineNotify(worker, chatSvc, log)
		go func() {
			if err := worker.Run(ctx); err != nil {
				log.WithError(err).Error("queue server stopped")
			}
		}()
	}

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: r}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.WithField("addr", cfg.HTTPAddr).Info("chat delivery engine listening")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.WithError(err).Fatal("http server")
	}
}
