package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/pageza/storefront-assistant/backend/config"
	"github.com/pageza/storefront-assistant/backend/internal/api"
	"github.com/pageza/storefront-assistant/backend/internal/commerce"
	"github.com/pageza/storefront-assistant/backend/internal/database"
	"github.com/pageza/storefront-assistant/backend/internal/middleware"
	"github.com/pageza/storefront-assistant/backend/internal/service"
)

// Backends are the connections the server runs on. Only DB is required; a
// nil Generator means template replies only.
type Backends struct {
	DB        *gorm.DB
	Redis     *redis.Client
	Archive   service.ObjectStore
	Generator service.Generator
	Embedder  commerce.Embedder
}

// Server represents the HTTP server
type Server struct {
	cfg      *config.Config
	router   *gin.Engine
	http     *http.Server
	backends Backends
	sessions service.SessionStore
	log      *logrus.Logger
}

// Open connects everything cfg asks for. Redis, S3 and the AI provider are
// optional: when they fail the server still starts without them.
func Open(ctx context.Context, cfg *config.Config, log *logrus.Logger) (Backends, error) {
	var b Backends

	db, err := database.New(cfg, log)
	if err != nil {
		return b, err
	}
	if err := database.RunMigrations(db, log); err != nil {
		return b, fmt.Errorf("failed to run migrations: %w", err)
	}
	b.DB = db

	if cfg.RedisEnabled() {
		client, err := database.NewRedisClient(cfg, log)
		if err != nil {
			log.WithError(err).Warn("[Server] redis unavailable, rate limiting disabled")
		} else {
			b.Redis = client
		}
	}

	if cfg.ArchiveEnabled() {
		s3, err := config.NewS3Config(ctx, cfg)
		if err != nil {
			log.WithError(err).Warn("[Server] transcript archive disabled")
		} else {
			b.Archive = s3
		}
	}

	gen, err := service.NewGenerator(ctx, cfg, log)
	if err != nil {
		return b, err
	}
	b.Generator = gen

	embedder, err := commerce.NewEmbedder(ctx, cfg.EmbeddingProvider, cfg.GeminiAPIKey)
	if err != nil {
		return b, err
	}
	b.Embedder = embedder
	return b, nil
}

// New assembles the services and routes
func New(cfg *config.Config, b Backends, log *logrus.Logger) (*Server, error) {
	if b.DB == nil {
		return nil, errors.New("database is required")
	}

	var cipher *service.TokenCipher
	if cfg.TokenEncryptionKey != "" {
		c, err := service.NewTokenCipher(cfg.TokenEncryptionKey)
		if err != nil {
			return nil, err
		}
		cipher = c
	}
	shops := service.NewShopService(b.DB, cipher, log)
	registry := service.NewPlatformRegistry(shops, b.DB, b.Embedder, service.RegistryOptionsFromConfig(cfg), log)
	transcripts := service.NewTranscriptService(b.DB, b.Archive, log)

	classifier := service.DefaultClassifier()
	if cfg.IntentsFile != "" {
		c, err := service.LoadClassifier(cfg.IntentsFile)
		if err != nil {
			return nil, err
		}
		classifier = c
	}

	var sessions service.SessionStore
	switch {
	case strings.EqualFold(cfg.SessionStore, "redis") && b.Redis != nil:
		sessions = service.NewRedisSessionStore(b.Redis, cfg.SessionTTL)
	case strings.EqualFold(cfg.SessionStore, "redis"):
		log.Warn("[Server] redis session store requested but redis is unavailable, keeping sessions in memory")
		fallthrough
	default:
		sessions = service.NewMemorySessionStore(cfg.SessionTTL, log)
	}

	assistant := service.NewAssistantService(service.AssistantDeps{
		Sessions:    sessions,
		Platforms:   registry,
		Classifier:  classifier,
		Dispatcher:  service.NewDispatcher(cfg.StoreName, cfg.SearchResultLimit, log),
		Synthesizer: service.NewSynthesizer(b.Generator, cfg.StoreName, cfg.AIHistoryWindow, cfg.AITimeout, log),
		Transcripts: transcripts,
	}, service.AssistantOptions{
		MaxMessageLength: cfg.MaxMessageLength,
		MaxHistory:       cfg.SessionMaxMessages,
	}, log)

	var limiter, adminLimiter *middleware.RateLimiter
	if b.Redis != nil {
		limiter = middleware.NewChatRateLimiter(b.Redis, cfg.ChatRateLimit)
		adminLimiter = middleware.NewRateLimiter(b.Redis, middleware.RateLimitConfig{
			Window:    time.Minute,
			Limit:     120,
			KeyPrefix: "rate_limit:admin",
		})
	}

	if cfg.Environment.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(
		middleware.RequestLogger(log),
		middleware.ErrorHandler(),
		middleware.CORS(cfg.AllowedOrigins),
	)

	err := api.RegisterRoutes(router, api.Dependencies{
		DB:             b.DB,
		Redis:          b.Redis,
		Assistant:      assistant,
		Shops:          shops,
		Transcripts:    transcripts,
		Tokens:         middleware.NewSessionTokens(cfg.AppAPISecret),
		ChatLimiter:    limiter,
		AdminLimiter:   adminLimiter,
		AllowedOrigins: cfg.AllowedOrigins,
		ProxySecret:    cfg.AppProxySecret,
		AIProvider:     cfg.AIProvider,
		Platforms:      registry,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to register routes: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if installed, err := shops.List(ctx); err != nil {
		log.WithError(err).Warn("[Server] failed to list installed shops")
	} else {
		domains := make([]string, 0, len(installed))
		for _, s := range installed {
			domains = append(domains, s.Domain)
		}
		log.WithFields(logrus.Fields{"count": len(installed), "shops": domains}).Info("[Server] installed shops")
	}

	httpServer := &http.Server{
		Addr:              cfg.ServerAddr(),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return &Server{
		cfg:      cfg,
		router:   router,
		http:     httpServer,
		backends: b,
		sessions: sessions,
		log:      log,
	}, nil
}

// Handler exposes the router, mostly for tests
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start listens on the configured address and blocks until the server stops
func (s *Server) Start() error {
	s.log.WithField("addr", s.http.Addr).Info("[Server] listening")
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests, waits for in-flight ones and closes
// the backends
func (s *Server) Shutdown(ctx context.Context) error {
	var errs []error
	if err := s.http.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("failed to shut down http server: %w", err))
	}
	if closer, ok := s.sessions.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if s.backends.Redis != nil {
		if err := s.backends.Redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close redis: %w", err))
		}
	}
	if sqlDB, err := s.backends.DB.DB(); err == nil {
		if err := sqlDB.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close database: %w", err))
		}
	}
	return errors.Join(errs...)
}
