package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/google/uuid"

	authservice "estately/internal/app/services/auth"
	chatservice "estately/internal/app/services/chat"
	notifyservice "estately/internal/app/services/notify"
	domainauth "estately/internal/domain/auth"
	domainchat "estately/internal/domain/chat"
	domainlistings "estately/internal/domain/listings"
	domainuser "estately/internal/domain/user"
	"estately/internal/infra/broker/kafka"
	"estately/internal/infra/config"
	mongodb "estately/internal/infra/db/mongo"
	ginserver "estately/internal/infra/http/gin"
	"estately/internal/infra/obs"
	"estately/internal/infra/security"
	"estately/internal/infra/storage/memory"
	"estately/internal/infra/ws"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	env := getenv("APP_ENV", "dev")
	logger := obs.NewLogger(env)

	cfg, err := config.Load()
	if err != nil {
		logger.Warn("using fallback configuration", "error", err)
		cfg = config.Config{
			Env:         env,
			HTTPAddr:    getenv("HTTP_ADDR", ":8080"),
			StorageMode: "memory",
			SessionTTL:  24 * time.Hour,
		}
	}

	stores, err := buildStores(ctx, cfg, logger)
	if err != nil {
		logger.Error("storage initialization failed", "error", err)
		os.Exit(1)
	}

	hub := ws.NewHub(logger)

	chatSvc := &chatservice.Service{
		Conversations: stores.conversations,
		Messages:      stores.messages,
		Listings:      stores.listings,
		Users:         stores.users,
		Logger:        logger,
	}
	authSvc := &authservice.Service{Sessions: stores.sessions, Logger: logger}
	notifySvc := &notifyservice.Service{Users: stores.users, Dispatcher: hub, Logger: logger}
	statsSvc := &notifyservice.StatsService{
		Users:         stores.users,
		Listings:      stores.listings,
		Conversations: stores.conversations,
		Messages:      stores.messages,
		Online:        hub.Online,
		Dispatcher:    hub,
		Logger:        logger,
	}

	gateway := ws.NewGateway(hub, authSvc, chatSvc, statsSvc, logger)
	gateway.WriteTimeout = cfg.WSWriteTimeout
	gateway.PongTimeout = cfg.WSPongTimeout
	gateway.MaxMessageSize = cfg.WSMaxMessageSize
	gateway.SendBuffer = cfg.WSSendBuffer

	if len(cfg.KafkaBrokers) > 0 {
		if err := startKafka(ctx, cfg, hub, statsSvc, logger); err != nil {
			logger.Error("kafka initialization failed", "error", err)
			os.Exit(1)
		}
	} else {
		logger.Info("kafka relay disabled, running single-instance fanout")
	}

	if cfg.StorageMode == "memory" {
		fixturesPath := cfg.FixturesPath
		if fixturesPath == "" {
			fixturesPath = defaultFixturesPath()
		}
		if err := loadFixtures(ctx, fixturesPath, cfg.SessionTTL, stores, logger); err != nil {
			logger.Warn("fixtures load failed", "error", err, "path", fixturesPath)
		}
	}

	scheduler := gocron.NewScheduler(time.UTC)
	if _, err := scheduler.Every(cfg.StatsInterval).Do(func() {
		if err := statsSvc.Broadcast(context.Background()); err != nil {
			logger.Error("periodic stats broadcast failed", "error", err)
		}
	}); err != nil {
		logger.Error("stats schedule failed", "error", err)
		os.Exit(1)
	}
	scheduler.StartAsync()
	defer scheduler.Stop()

	authMW := ginserver.AuthMiddleware{Verifier: authSvc, Logger: logger}
	server := ginserver.NewServer(cfg, obs.Middleware{Logger: logger}, obs.HealthHandlers{
		Ready: stores.ready,
	}, ginserver.Handlers{
		Chat:           ginserver.ChatHandler{Chat: chatSvc, Logger: logger},
		Notification:   ginserver.NotificationHandler{Notify: notifySvc, Logger: logger},
		Realtime:       gateway.Handle,
		AuthMiddleware: authMW.Handle,
	})

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("http shutdown failed", "error", err)
		}
	}()

	logger.Info("HTTP server starting", "addr", cfg.HTTPAddr, "storage", cfg.StorageMode)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("http server failed", "error", err)
		os.Exit(1)
	}
	logger.Info("HTTP server stopped")
}

type stores struct {
	conversations domainchat.ConversationStore
	messages      domainchat.MessageStore
	listings      domainlistings.Repository
	users         domainuser.Repository
	sessions      domainauth.SessionStore
	ready         func() error

	memListings *memory.ListingRepository
	memUsers    *memory.UserRepository
	memSessions *memory.SessionStore
}

func buildStores(ctx context.Context, cfg config.Config, logger *slog.Logger) (stores, error) {
	switch cfg.StorageMode {
	case "mongo":
		client, err := mongodb.New(cfg.MongoURI, cfg.MongoDB)
		if err != nil {
			return stores{}, fmt.Errorf("mongo connect: %w", err)
		}
		conversations := mongodb.NewConversationRepository(client.DB)
		messages := mongodb.NewMessageRepository(client.DB)
		sessions := mongodb.NewSessionStore(client.DB)
		if err := conversations.EnsureIndexes(ctx); err != nil {
			return stores{}, fmt.Errorf("conversation indexes: %w", err)
		}
		if err := messages.EnsureIndexes(ctx); err != nil {
			return stores{}, fmt.Errorf("message indexes: %w", err)
		}
		if err := sessions.EnsureIndexes(ctx); err != nil {
			return stores{}, fmt.Errorf("session indexes: %w", err)
		}
		logger.Info("mongo storage ready", "database", cfg.MongoDB)
		return stores{
			conversations: conversations,
			messages:      messages,
			listings:      mongodb.NewListingRepository(client.DB),
			users:         mongodb.NewUserRepository(client.DB),
			sessions:      sessions,
			ready: func() error {
				pingCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
				defer cancel()
				return client.Ping(pingCtx)
			},
		}, nil
	default:
		listings := memory.NewListingRepository()
		users := memory.NewUserRepository()
		sessions := memory.NewSessionStore()
		logger.Info("in-memory storage ready")
		return stores{
			conversations: memory.NewConversationStore(),
			messages:      memory.NewMessageStore(),
			listings:      listings,
			users:         users,
			sessions:      sessions,
			ready:         func() error { return nil },
			memListings:   listings,
			memUsers:      users,
			memSessions:   sessions,
		}, nil
	}
}

// startKafka wires the cross-instance event relay and the stats signal
// consumer. The relay group id is unique per instance so every instance
// sees every event; the stats group is shared so a back-office signal is
// handled once and the resulting broadcast reaches the other instances
// through the relay.
func startKafka(ctx context.Context, cfg config.Config, hub *ws.Hub, stats *notifyservice.StatsService, logger *slog.Logger) error {
	producer, err := kafka.NewProducer(cfg.KafkaBrokers, nil)
	if err != nil {
		return fmt.Errorf("producer: %w", err)
	}

	instanceID := uuid.NewString()
	relayTopic := cfg.KafkaTopicPrefix + "realtime-events"
	relay := &ws.BusRelay{
		Producer:   producer,
		Hub:        hub,
		Topic:      relayTopic,
		InstanceID: instanceID,
		Logger:     logger,
	}
	hub.SetRelay(relay)

	relayConsumer, err := kafka.NewConsumer(cfg.KafkaBrokers, "realtime-"+instanceID, nil, relay)
	if err != nil {
		return fmt.Errorf("relay consumer: %w", err)
	}
	go runConsumer(ctx, relayConsumer, []string{relayTopic}, "relay", logger)

	signalTopic := cfg.KafkaTopicPrefix + "crm-events"
	signalConsumer, err := kafka.NewConsumer(cfg.KafkaBrokers, "realtime-stats", nil, &ws.StatsSignalHandler{Stats: stats, Logger: logger})
	if err != nil {
		return fmt.Errorf("signal consumer: %w", err)
	}
	go runConsumer(ctx, signalConsumer, []string{signalTopic}, "stats-signal", logger)

	go func() {
		<-ctx.Done()
		if err := producer.Close(); err != nil {
			logger.Error("producer close failed", "error", err)
		}
	}()

	logger.Info("kafka relay started", "instance_id", instanceID, "relay_topic", relayTopic, "signal_topic", signalTopic)
	return nil
}

func runConsumer(ctx context.Context, consumer *kafka.Consumer, topics []string, name string, logger *slog.Logger) {
	defer func() {
		if err := consumer.Close(); err != nil {
			logger.Error("consumer close failed", "consumer", name, "error", err)
		}
	}()
	if err := consumer.Run(ctx, topics); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("consumer stopped", "consumer", name, "error", err)
	}
}

type fixtureFile struct {
	Users    []userFixture    `json:"users"`
	Listings []listingFixture `json:"listings"`
}

type userFixture struct {
	ID    string   `json:"id"`
	Email string   `json:"email"`
	Name  string   `json:"name"`
	Roles []string `json:"roles"`
	Token string   `json:"token"`
}

type listingFixture struct {
	ID         string `json:"id"`
	Agent      string `json:"agent"`
	Title      string `json:"title"`
	City       string `json:"city"`
	PriceCents int64  `json:"price_cents"`
}

// loadFixtures seeds the in-memory stores with users, listings and dev
// sessions so a fresh process is immediately usable. A fixture user without
// a token gets a generated one, logged so developers can connect with it.
func loadFixtures(ctx context.Context, path string, sessionTTL time.Duration, s stores, logger *slog.Logger) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			logger.Info("fixtures file not found, skipping", "path", path)
			return nil
		}
		return fmt.Errorf("read fixtures: %w", err)
	}
	var fixtures fixtureFile
	if err := json.Unmarshal(data, &fixtures); err != nil {
		return fmt.Errorf("decode fixtures: %w", err)
	}

	now := time.Now()
	tokens := security.RandomTokenGenerator{}

	for _, fx := range fixtures.Users {
		roles := make([]domainuser.Role, 0, len(fx.Roles))
		for _, role := range fx.Roles {
			roles = append(roles, domainuser.Role(role))
		}
		account, err := domainuser.NewUser(domainuser.CreateParams{
			ID:        domainuser.ID(fx.ID),
			Email:     fx.Email,
			Name:      fx.Name,
			Roles:     roles,
			CreatedAt: now,
		})
		if err != nil {
			logger.Error("user fixture invalid", "user_id", fx.ID, "error", err)
			continue
		}
		if err := s.memUsers.Save(ctx, account); err != nil {
			logger.Error("cannot store fixture user", "user_id", fx.ID, "error", err)
			continue
		}

		token := fx.Token
		if token == "" {
			token, err = tokens.NewToken()
			if err != nil {
				logger.Error("token generation failed", "user_id", fx.ID, "error", err)
				continue
			}
		}
		session, err := domainauth.NewSession(domainauth.CreateSessionParams{
			Token:  domainauth.Token(token),
			UserID: account.ID,
			Roles:  account.Roles,
			TTL:    sessionTTL,
			Now:    now,
		})
		if err != nil {
			logger.Error("session fixture invalid", "user_id", fx.ID, "error", err)
			continue
		}
		if err := s.memSessions.Save(ctx, session); err != nil {
			logger.Error("cannot store fixture session", "user_id", fx.ID, "error", err)
			continue
		}
		logger.Info("user fixture imported", "user_id", account.ID, "token", token)
	}

	for _, fx := range fixtures.Listings {
		listing, err := domainlistings.NewListing(domainlistings.CreateListingParams{
			ID:         domainlistings.ListingID(fx.ID),
			Agent:      domainlistings.AgentID(fx.Agent),
			Title:      fx.Title,
			City:       fx.City,
			PriceCents: fx.PriceCents,
			Now:        now,
		})
		if err != nil {
			logger.Error("listing fixture invalid", "listing_id", fx.ID, "error", err)
			continue
		}
		if err := s.memListings.Save(ctx, listing); err != nil {
			logger.Error("cannot store fixture listing", "listing_id", fx.ID, "error", err)
			continue
		}
		logger.Info("listing fixture imported", "listing_id", listing.ID)
	}
	return nil
}

func defaultFixturesPath() string {
	candidates := []string{
		filepath.Join("data", "fixtures.json"),
		filepath.Join("backend", "data", "fixtures.json"),
	}
	for _, candidate := range candidates {
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}
	return candidates[0]
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
