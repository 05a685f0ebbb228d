package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/qninhdt/ai-adventure/internal/agents"
	"github.com/qninhdt/ai-adventure/internal/api"
	"github.com/qninhdt/ai-adventure/internal/config"
	"github.com/qninhdt/ai-adventure/internal/db"
	"github.com/qninhdt/ai-adventure/internal/game"
	mw "github.com/qninhdt/ai-adventure/internal/middleware"
	"github.com/qninhdt/ai-adventure/internal/scene"
	"github.com/qninhdt/ai-adventure/internal/storage"
	"github.com/qninhdt/ai-adventure/internal/telemetry"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	shutdownTracing, err := telemetry.Setup(ctx, "ai-adventure", cfg.OTelEndpoint)
	if err != nil {
		log.Fatalf("Failed to set up tracing: %v", err)
	}
	defer shutdownTracing(context.Background())

	// Initialize database
	database, err := db.NewDB(cfg.DBPath)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer database.Close()

	objects, err := storage.New(storage.Config{
		Backend:         cfg.StorageBackend,
		LocalDir:        cfg.MediaDir,
		LocalBaseURL:    cfg.MediaBaseURL,
		COSSecretID:     cfg.COSSecretID,
		COSSecretKey:    cfg.COSSecretKey,
		COSBucket:       cfg.COSBucket,
		COSRegion:       cfg.COSRegion,
		COSPublicDomain: cfg.COSPublicDomain,
	})
	if err != nil {
		log.Fatalf("Failed to initialize storage: %v", err)
	}
	var media http.Handler
	if local, ok := objects.(*storage.Local); ok {
		media = local.Handler()
	}

	client := agents.NewClient(agents.Config{
		APIKey:       cfg.OpenAIAPIKey,
		BaseURL:      cfg.OpenAIBaseURL,
		Timeout:      cfg.ImageTimeout,
		MaxTries:     int(cfg.GeneratorTries),
		ImageModel:   cfg.ImageModel,
		ImageSize:    cfg.ImageSize,
		ImageQuality: cfg.ImageQuality,
	})

	var narrator game.Narrator
	switch cfg.DMProvider {
	case "gemini":
		gemini, err := agents.NewGeminiMaster(ctx, cfg.GeminiAPIKey, cfg.GeminiModel, cfg.GeneratorTries)
		if err != nil {
			log.Fatalf("Failed to create Gemini client: %v", err)
		}
		defer gemini.Close()
		narrator = gemini
	default:
		narrator = agents.NewDungeonMaster(client, agents.Models{
			Narrative: cfg.NarrativeModel,
			Roll:      cfg.RollModel,
			World:     cfg.WorldModel,
		})
	}

	cache := scene.NewCache(database, agents.NewPainter(client), objects, scene.Options{
		ImagesPerMinute: cfg.ImagesPerMinute,
		ImageTimeout:    cfg.ImageTimeout,
	})
	scenes := game.NewSceneQueue(cache, cfg.SceneWorkers, cfg.ImageTimeout+30*time.Second)
	scenes.Start()

	hub := api.NewHub()
	engine := game.NewEngine(database, narrator, game.Options{
		GeneratorTimeout: cfg.GeneratorTimeout,
		Scenes:           scenes,
		Notifier:         hub,
		PortraitURL:      objects.URL,
	})

	// Create API server
	server := api.NewServer(api.Options{
		Engine:      engine,
		Auth:        mw.NewAuthenticator(cfg.JWTSecret, cfg.JWTIssuer),
		RateLimiter: mw.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst),
		Hub:         hub,
		Media:       media,
		Health:      database.Ping,
	})

	addr := fmt.Sprintf(":%s", cfg.Port)
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           server,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("Starting server on %s (dm=%s storage=%s)", addr, cfg.DMProvider, cfg.StorageBackend)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Server error: %v", err)
		}
	}()

	<-ctx.Done()
	log.Printf("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("Failed to shut down server: %v", err)
	}
	scenes.Close()
}
