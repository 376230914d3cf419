package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Netflix/go-env"
	"github.com/blugelabs/bluge"
	"github.com/dgraph-io/badger/v4"
	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/logs"

	"tradegate/auth"
	"tradegate/infrastructure/httpapi"
	"tradegate/infrastructure/ws"
	"tradegate/internal"
	"tradegate/moderation"
	"tradegate/observability"
	"tradegate/repositories"
	"tradegate/runtime"
	"tradegate/runtime/workers"
	"tradegate/services"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
		os.Exit(1)
	}
}

// run initializes all components, manages the server lifecycle, and centralizes error reporting.
// This pattern is preferred over calling os.Exit or panic directly because:
// 1. It ensures all 'defer' statements (like database cleanup) are executed before the program exits.
// 2. It improves testability by decoupling the initialization logic from the main entry point.
// 3. It provides a structured way to handle graceful shutdowns for both servers and background workers.
func run() error {
	// 1. Configuration & Logger
	_ = godotenv.Load()
	var config internal.Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	log := logs.GetLoggerFromString(config.LogLevel)

	// 2. Database (BadgerDB)
	db, err := badger.Open(badger.DefaultOptions(config.BadgerFilepath).
		WithLoggingLevel(badger.INFO))
	if err != nil {
		return fmt.Errorf("database opening failed: %w", err)
	}
	//  Defer will be executed before run() returned anything to main()
	defer func() {
		log.Info("Closing BadgerDB...")
		_ = db.Close()
	}()

	// 3. Search index (optional)
	var index *repositories.TranscriptIndex
	if config.BlugeFilepath != "" {
		writer, err := bluge.OpenWriter(bluge.DefaultConfig(config.BlugeFilepath))
		if err != nil {
			return fmt.Errorf("search index opening failed: %w", err)
		}
		defer func() {
			log.Info("Closing search index...")
			_ = writer.Close()
		}()
		index = repositories.NewTranscriptIndex(writer, log, config.SearchPageSize)
	}

	// 4. Moderation (optional)
	var censor *moderation.Censor
	if words := internal.WordList(config.CensoredWords); len(words) > 0 {
		replacement, err := internal.CharacterRune(config.CharReplacement)
		if err != nil {
			return err
		}
		censor, err = moderation.NewCensor(words, replacement, log)
		if err != nil {
			return fmt.Errorf("censor setup failed: %w", err)
		}
	}

	// 5. Core wiring
	registry := runtime.NewConnectionRegistry(log)
	store := repositories.NewNotificationRepository(db, log)
	tradeRepo := repositories.NewTradeRepository(db, log)
	monitoring := observability.NewMonitoringManager(log)
	dispatcher := runtime.NewDispatcher(registry, store, monitoring, log)
	locks := runtime.NewKeyedMutex()
	trades := services.NewTradeService(tradeRepo, dispatcher, locks, index, log)
	chat := services.NewChatService(tradeRepo, dispatcher, locks, censor, index, log)

	gate := auth.NewGate(config.AuthVerifyURL, config.AuthVerifyTimeout, log)
	tokens := auth.NewAdminTokens(config.AdminTokenSecret)

	// 6. Context & Signals
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 7. Background workers
	sup := workers.NewSupervisor(log)
	sup.Add(
		workers.NewReporterWorker(monitoring, registry, config.MetricInterval, log),
		workers.NewHealthMonitoringWorker(log, config.MetricInterval, config.CPUThreshold, config.RAMThreshold),
	)
	supDone := make(chan struct{})
	go func() {
		sup.Run(ctx)
		close(supDone)
	}()

	// 8. Websocket server
	wsServer := ws.NewServer(gate, dispatcher, trades, chat, monitoring,
		config.WriteTimeout, config.PongTimeout, config.PingInterval, log)
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", wsServer.Handle)

	gatewayAddress := fmt.Sprintf("%s:%d", config.Host, config.Port)
	gatewayServer := &http.Server{Addr: gatewayAddress, Handler: mux}

	// 9. Admin server
	adminAddress := fmt.Sprintf("%s:%d", config.Host, config.AdminPort)
	handler := httpapi.NewHandler(registry, dispatcher, trades, index, monitoring, log)
	adminServer := &http.Server{Addr: adminAddress, Handler: handler.Router(tokens)}

	// Use an error channel to capture Serve() issues
	errChan := make(chan error, 2)
	go func() {
		log.Info("Starting websocket gateway", "address", gatewayAddress, "at", time.Now().UTC())
		if err := gatewayServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- fmt.Errorf("gateway server error: %w", err)
		}
	}()
	go func() {
		log.Info("Starting admin API", "address", adminAddress)
		if err := adminServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- fmt.Errorf("admin server error: %w", err)
		}
	}()

	// 10. Wait for Stop or Error
	select {
	case <-ctx.Done():
		log.Info("Shutting down gracefully...")
	case err := <-errChan:
		return err
	}

	// 11. Final Cleanup
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = gatewayServer.Shutdown(shutdownCtx)
	_ = adminServer.Shutdown(shutdownCtx)
	<-supDone
	log.Info("Program stopped cleanly")

	return nil
}
