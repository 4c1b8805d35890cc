package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/Netflix/go-env"
	"github.com/dgraph-io/badger/v4"
	"github.com/joho/godotenv"

	"veilchat/auth"
	"veilchat/contract"
	internalhttp "veilchat/infrastructure/http"
	"veilchat/infrastructure/ws"
	"veilchat/presence"
	"veilchat/relay"
	"veilchat/repositories"
	"veilchat/runtime/workers"
	"veilchat/services"
	"veilchat/storage"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
		os.Exit(1)
	}
}

// run initializes all components, manages the server lifecycle, and
// centralizes error reporting, so every defer (database close, sink
// teardown) executes before the process exits.
func run() error {
	// 1. Configuration & Logger
	_ = godotenv.Load()
	var config Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	log := newLogger(config.LogLevel)

	// 2. Database (BadgerDB)
	db, err := badger.Open(badger.DefaultOptions(config.BadgerFilepath).
		WithLoggingLevel(badger.WARNING))
	if err != nil {
		return fmt.Errorf("database opening failed: %w", err)
	}
	defer func() {
		log.Info("Closing BadgerDB...")
		_ = db.Close()
	}()

	// 3. Repositories & collaborators
	userRepository, err := repositories.NewUserRepository(db)
	if err != nil {
		return err
	}
	defer userRepository.Close()

	messageRepository, err := repositories.NewMessageRepository(db, log)
	if err != nil {
		return err
	}
	defer messageRepository.Close()

	codec := auth.NewTokenCodec(config.JWTSecret, config.AuthTokenDuration)
	verifier := auth.NewVerifier(codec, userRepository, log)

	media, err := storage.NewMediaStore(config.MediaDir, log)
	if err != nil {
		return err
	}

	// 4. Context & Signals
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 5. Presence registry: in-memory by default, redis-backed when a
	// shared view across instances is needed.
	var registry contract.IRegistry = presence.NewRegistry()
	supervisor := workers.NewSupervisor(log)
	supervisor.Add(workers.NewBadgerGCWorker(db, log, config.BadgerGCInterval))

	if config.RedisURL != "" {
		redisRegistry, err := presence.NewRedisRegistry(ctx, config.RedisURL, log)
		if err != nil {
			return fmt.Errorf("redis registry: %w", err)
		}
		defer redisRegistry.Close()
		registry = redisRegistry
		supervisor.Add(workers.NewPresenceSyncWorker(redisRegistry, log, config.PresenceSyncInterval))
	}

	// 6. Relay core & services
	engine := relay.NewEngine(log, verifier, registry, userRepository, messageRepository, config.DeliveryTimeout)
	authService := services.NewAuthService(userRepository, codec)
	chatService := services.NewChatService(messageRepository, userRepository, registry, engine)

	gateway := ws.NewGateway(log, engine, config.ConnectionBufferSize)
	router := internalhttp.NewRouter(log, gateway, verifier, authService, chatService, media)

	go supervisor.Run(ctx)

	// 7. HTTP server
	address := fmt.Sprintf("%s:%d", config.Host, config.Port)
	server := &http.Server{Addr: address, Handler: router}

	errChan := make(chan error, 1)
	go func() {
		log.Info("Starting server", "address", address, "at", time.Now().UTC())
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("server error: %w", err)
		}
	}()

	// 8. Wait for Stop or Error
	select {
	case <-ctx.Done():
		log.Info("Shutting down gracefully...")
	case err := <-errChan:
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Warn("server shutdown", "error", err)
	}
	log.Info("Program stopped cleanly")

	return nil
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}
