package main

import (
	"log"
	"log/slog"
	"net/http"
	"time"

	"vibechat/internal/app"
	"vibechat/internal/config"
	"vibechat/internal/ratelimit"
	"vibechat/internal/server"
	"vibechat/internal/util"
	"vibechat/pkg/ai"
	"vibechat/pkg/queue"
	"vibechat/pkg/realtime"
	"vibechat/pkg/storage"
	"vibechat/pkg/store"
)

func main() {
	cfg, err := config.Load(config.ConfigPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	sessionTTL, err := config.ParseSessionTTL(cfg.SessionTTL)
	if err != nil {
		log.Fatalf("failed to parse session TTL: %v", err)
	}
	aiReplyTimeout, err := config.ParseAIReplyTimeout(cfg.AIReplyTimeout)
	if err != nil {
		log.Fatalf("failed to parse ai reply timeout: %v", err)
	}

	logger := util.InitLogger(cfg.LogLevel)

	var sessions store.SessionStore
	switch cfg.SessionBackend {
	case "redis":
		sessions = store.NewRedisSessionStore(cfg.RedisAddr, cfg.RedisPassword, sessionTTL)
	case "memory":
		sessions = store.NewMemoryStore()
	default:
		sessions = store.NewJWTSessionStore(cfg.SessionSecret, sessionTTL)
	}

	var objects storage.ObjectStore
	if cfg.MinioEndpoint != "" {
		objects, err = storage.NewMinioStore(cfg.MinioEndpoint, cfg.MinioAccessKey, cfg.MinioSecretKey, cfg.MinioBucket, cfg.MinioUseSSL)
		if err != nil {
			log.Fatalf("failed to init object store: %v", err)
		}
	}

	var mail queue.MailPublisher
	if cfg.AMQPURL != "" {
		mailQueue := cfg.MailQueue
		if mailQueue == "" {
			mailQueue = "vibechat.mail"
		}
		publisher, err := queue.NewAMQPMailPublisher(cfg.AMQPURL, mailQueue)
		if err != nil {
			log.Fatalf("failed to init mail publisher: %v", err)
		}
		defer publisher.Close()
		mail = publisher
	}

	registry := realtime.NewRegistry()
	hub := realtime.NewHub(registry)
	router := realtime.NewRouter(registry, hub)
	hub.Bind(router)

	responder := ai.NewOpenAIResponder(cfg.OpenAIBaseURL, cfg.OpenAIAPIKey, cfg.OpenAIModel, aiReplyTimeout)

	appCore, err := app.New(app.Config{
		DatabaseURL:    cfg.DatabaseURL,
		Sessions:       sessions,
		Router:         router,
		Responder:      responder,
		Objects:        objects,
		Mail:           mail,
		AIReplyTimeout: aiReplyTimeout,
	})
	if err != nil {
		log.Fatalf("failed to init app: %v", err)
	}
	if err := appCore.EnsureAIUser(); err != nil {
		log.Fatalf("failed to ensure ai user: %v", err)
	}

	var authLimiter *ratelimit.FixedWindowLimiter
	if cfg.AuthRateLimit > 0 && cfg.RedisAddr != "" {
		window, err := config.ParseAuthRateWindow(cfg.AuthRateWindow)
		if err != nil {
			log.Fatalf("failed to parse auth rate window: %v", err)
		}
		authLimiter, err = ratelimit.NewRedisFixedWindowLimiter(cfg.RedisAddr, cfg.RedisPassword, "vibechat:ratelimit:auth", cfg.AuthRateLimit, window)
		if err != nil {
			log.Fatalf("failed to init auth rate limiter: %v", err)
		}
	}

	trustedProxies, err := util.NewTrustedProxies(cfg.TrustedProxies)
	if err != nil {
		log.Fatalf("failed to parse trusted proxies: %v", err)
	}

	httpServer := server.New(server.Config{
		App:            appCore,
		Hub:            hub,
		AuthLimiter:    authLimiter,
		FrontendOrigin: cfg.FrontendOrigin,
		TrustedProxies: trustedProxies,
	})

	addr := ":" + cfg.Port
	srv := &http.Server{
		Addr:        addr,
		Handler:     httpServer.Router(),
		ReadTimeout: 15 * time.Second,
		// Write timeout stays unset: websocket connections are long-lived.
		IdleTimeout: 60 * time.Second,
	}

	slog.Info("server listening", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("server error", "err", err)
	}
}
