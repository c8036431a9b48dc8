package app

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"vibechat/internal/util"
	"vibechat/pkg/ai"
	"vibechat/pkg/queue"
	"vibechat/pkg/realtime"
	"vibechat/pkg/storage"
	"vibechat/pkg/store"
)

const presignExpiry = 7 * 24 * time.Hour

// fallbackResponder always answers with the static fallback text. Used when
// no AI backend is configured so the assistant still responds.
type fallbackResponder struct{}

func (fallbackResponder) Reply(context.Context, string, string) string {
	return ai.FallbackReply
}

// Config holds runtime configuration for the core application.
type Config struct {
	DatabaseURL    string
	Store          store.Store
	Sessions       store.SessionStore
	Router         *realtime.Router
	Responder      ai.Responder
	Objects        storage.ObjectStore
	Mail           queue.MailPublisher
	AIReplyTimeout time.Duration
}

// App wires storage, realtime routing, and the AI responder together. All
// REST handlers call into it; it is the only code that touches the router
// besides the websocket hub's own typing/presence paths.
type App struct {
	store          store.Store
	sessions       store.SessionStore
	router         *realtime.Router
	responder      ai.Responder
	objects        storage.ObjectStore
	mail           queue.MailPublisher
	aiReplyTimeout time.Duration
}

// New constructs the application core.
func New(cfg Config) (*App, error) {
	dataStore := cfg.Store
	if dataStore == nil {
		if cfg.DatabaseURL == "" {
			// Dev mode: everything in-process, nothing survives a restart.
			slog.Warn("no database URL configured, using in-memory store")
			dataStore = store.NewMemoryStore()
		} else {
			var err error
			dataStore, err = store.NewGormStore(cfg.DatabaseURL)
			if err != nil {
				return nil, fmt.Errorf("init postgres store: %w", err)
			}
		}
	}
	if cfg.Router == nil {
		return nil, fmt.Errorf("realtime router required")
	}
	sessions := cfg.Sessions
	if sessions == nil {
		return nil, fmt.Errorf("session store required")
	}
	mail := cfg.Mail
	if mail == nil {
		mail = queue.NoopMailPublisher{}
	}
	responder := cfg.Responder
	if responder == nil {
		responder = fallbackResponder{}
	}
	timeout := cfg.AIReplyTimeout
	if timeout <= 0 {
		timeout = 45 * time.Second
	}
	return &App{
		store:          dataStore,
		sessions:       sessions,
		router:         cfg.Router,
		responder:      responder,
		objects:        cfg.Objects,
		mail:           mail,
		aiReplyTimeout: timeout,
	}, nil
}

// Store exposes the underlying persistence layer.
func (a *App) Store() store.Store { return a.store }

// storeImage persists a base64 data-URL image and returns a retrievable URL.
// Already-uploaded URLs pass through; without an object store the data URL
// is stored inline.
func (a *App) storeImage(ctx context.Context, image string) (string, error) {
	image = strings.TrimSpace(image)
	if image == "" {
		return "", nil
	}
	if !strings.HasPrefix(image, "data:") {
		return image, nil
	}
	if a.objects == nil {
		return image, nil
	}
	meta, data, ok := strings.Cut(image, ",")
	if !ok {
		return "", fmt.Errorf("malformed image data URL")
	}
	contentType := strings.TrimSuffix(strings.TrimPrefix(meta, "data:"), ";base64")
	raw, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return "", fmt.Errorf("decode image: %w", err)
	}
	ext := "bin"
	if _, sub, ok := strings.Cut(contentType, "/"); ok && sub != "" {
		ext = sub
	}
	key := "attachments/" + util.NewID() + "." + ext
	if err := a.objects.Put(ctx, key, bytes.NewReader(raw), int64(len(raw)), contentType); err != nil {
		return "", fmt.Errorf("upload image: %w", err)
	}
	url, err := a.objects.PresignGet(ctx, key, presignExpiry)
	if err != nil {
		return "", fmt.Errorf("presign image: %w", err)
	}
	return url, nil
}
