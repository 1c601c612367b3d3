package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"armada.cl/asesor-compras/internal/api"
	"armada.cl/asesor-compras/internal/config"
	"armada.cl/asesor-compras/internal/core"
	"armada.cl/asesor-compras/internal/store"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Setup logging
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	if cfg.LogLevel == "DEBUG" {
		log.Println("Service starting in DEBUG mode")
	}

	// Initialize database store. A missing DATABASE_URL disables persistence
	// but the service still runs; settings fall back to compiled-in defaults.
	var dbStore *store.Store
	if cfg.DatabaseURL != "" {
		var err error
		dbStore, err = store.Open(cfg.DatabaseDriver, cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("Failed to initialize database: %v", err)
		}
		defer dbStore.Close()
	} else {
		log.Println("DATABASE_URL not set, running without persistence")
	}

	// Initialize services
	settingsService := core.NewSettingsService(dbStore)
	settingsService.Load(context.Background())

	validator := core.NewUserValidator(dbStore, settingsService)
	flowiseClient := core.NewFlowiseClient()
	chatService := core.NewChatService(dbStore, settingsService, validator, flowiseClient)

	// Initialize API Handler and Router
	apiHandler := api.NewAPIHandler(cfg, settingsService, chatService)
	router := api.NewRouter(apiHandler)

	// Start HTTP server
	serverAddr := fmt.Sprintf(":%s", cfg.HTTPPort)

	srv := &http.Server{
		Addr:         serverAddr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second, // upstream inference calls can take time
		IdleTimeout:  120 * time.Second,
	}

	// Graceful shutdown handling
	go func() {
		log.Printf("Starting server on %s. Press Ctrl+C to quit.", serverAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Could not listen on %s: %v\n", serverAddr, err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	// Give active connections time to finish.
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server exiting gracefully")
}
