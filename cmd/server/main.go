package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/preppal/prep-assistant/internal/api"
	"github.com/preppal/prep-assistant/internal/auth"
	"github.com/preppal/prep-assistant/internal/config"
	"github.com/preppal/prep-assistant/internal/core"
	"github.com/preppal/prep-assistant/internal/store"
)

func main() {
	seedTasksFlag := flag.String("seed-tasks", "", "Upsert the task catalog from a YAML file and exit")
	devTokenFlag := flag.String("dev-token", "", "Print a 24h token for the given external id and exit")
	flag.Parse()

	log.SetFlags(log.LstdFlags | log.Lshortfile)

	if *devTokenFlag != "" {
		cfg, err := config.LoadForTokens()
		if err != nil {
			log.Fatalf("Failed to load configuration: %v", err)
		}
		token, err := auth.GenerateJWT(cfg.JWTSecret, *devTokenFlag, "", 24*time.Hour)
		if err != nil {
			log.Fatalf("Failed to generate token: %v", err)
		}
		fmt.Println(token)
		return
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if cfg.Debug() {
		log.Println("Service starting in DEBUG mode")
	}

	dbStore, err := store.Open(cfg.DatabaseDriver, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer dbStore.Close()

	if *seedTasksFlag != "" {
		log.Printf("Seeding task catalog from %s...", *seedTasksFlag)
		tasks, err := core.LoadTaskCatalog(*seedTasksFlag)
		if err != nil {
			log.Fatalf("Failed to load task catalog: %v", err)
		}
		if err := core.SeedTasks(context.Background(), dbStore, tasks); err != nil {
			log.Fatalf("Task seeding failed: %v", err)
		}
		return
	}

	prompts, err := core.LoadPrompts(cfg.PromptsFile)
	if err != nil {
		log.Fatalf("Failed to load prompts: %v", err)
	}

	gemini, err := core.NewGeminiBackend(context.Background(), cfg.GeminiAPIKey, cfg.GeminiModel)
	if err != nil {
		log.Fatalf("Failed to initialize Gemini backend: %v", err)
	}
	defer gemini.Close()

	generator := core.NewChecklistGenerator(gemini, prompts, cfg.AITimeout)

	registryOpts := []core.RegistryOption{core.WithGuestLimit(cfg.GuestLimit, cfg.GuestIdleTTL)}
	if cfg.SingleFlightSend {
		registryOpts = append(registryOpts, core.WithChatOptions(core.WithSingleFlightSend()))
	}
	registry := core.NewRegistry(dbStore, generator, prompts, registryOpts...)
	identity := core.NewIdentityResolver(dbStore)

	apiHandler := api.NewAPIHandler(dbStore, identity, registry, cfg.JWTSecret)
	router := api.NewRouter(apiHandler)

	serverAddr := fmt.Sprintf(":%s", cfg.HTTPPort)

	srv := &http.Server{
		Addr:         serverAddr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.AITimeout + 30*time.Second, // a send waits on the model
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.Printf("Starting server on %s. Press Ctrl+C to quit.", serverAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Could not listen on %s: %v\n", serverAddr, err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server exiting gracefully")
}
