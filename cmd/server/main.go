package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/hashline/hashline/internal/server"
	"github.com/hashline/hashline/pkg/config"
	"github.com/hashline/hashline/pkg/store"
)

func main() {
	// Optional .env file; real environment variables take precedence.
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("Skipping .env file: %v", err)
	}

	cfg := config.LoadServerConfig()

	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	log.Printf("Starting Hashline server with config: %+v", cfg)

	counters := store.NewCounters()
	table := store.NewWithMetrics(counters)

	srv := server.New(cfg, table)

	go func() {
		if err := srv.Start(); err != nil {
			log.Fatalf("Server failed to start: %v", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	<-sigChan
	log.Println("Shutting down server...")

	if err := srv.Stop(); err != nil {
		log.Printf("Error stopping server: %v", err)
	}

	stats := counters.Snapshot()
	log.Printf("Store stats at shutdown: %+v", stats)
	log.Println("Server stopped")
}
