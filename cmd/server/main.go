package main

import (
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"gopkg.in/yaml.v3"

	"github.com/codebuildervaibhav/video-ingest/internal/cache"
	"github.com/codebuildervaibhav/video-ingest/internal/cleanup"
	"github.com/codebuildervaibhav/video-ingest/internal/dedup"
	"github.com/codebuildervaibhav/video-ingest/internal/handlers"
	"github.com/codebuildervaibhav/video-ingest/internal/ingest"
	"github.com/codebuildervaibhav/video-ingest/internal/storage"
	"github.com/codebuildervaibhav/video-ingest/internal/transcription"
)

// Config represents the application configuration
type Config struct {
	Server struct {
		Port int    `yaml:"port"`
		Host string `yaml:"host"`
	} `yaml:"server"`

	Transcription struct {
		APIURL         string `yaml:"api_url"`
		APIKey         string `yaml:"api_key"`
		Model          string `yaml:"model"`
		Language       string `yaml:"language"`
		MaxAttempts    int    `yaml:"max_attempts"`
		BackoffBaseMS  int    `yaml:"backoff_base_ms"`
		BackoffMaxMS   int    `yaml:"backoff_max_ms"`
		TimeoutSeconds int    `yaml:"timeout_seconds"`
	} `yaml:"transcription"`

	Cache struct {
		DefaultTTLSeconds      int `yaml:"default_ttl_seconds"`
		DedupTTLHours          int `yaml:"dedup_ttl_hours"`
		CleanupIntervalMinutes int `yaml:"cleanup_interval_minutes"`
	} `yaml:"cache"`

	Storage struct {
		DataDir  string `yaml:"data_dir"`
		Database string `yaml:"database"`
	} `yaml:"storage"`

	GoogleDrive struct {
		CredentialsFile string `yaml:"credentials_file"`
		TokenFile       string `yaml:"token_file"`
		FolderName      string `yaml:"folder_name"`
	} `yaml:"google_drive"`

	Limits struct {
		MaxFileSizeMB int `yaml:"max_file_size_mb"`
	} `yaml:"limits"`
}

func main() {
	// Load configuration
	config, err := loadConfig("config/config.yaml")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Ensure directories exist
	if err := os.MkdirAll(config.Storage.DataDir, 0755); err != nil {
		log.Fatalf("Failed to create data directory: %v", err)
	}

	// Custom logger setup
	logBuffer := &LogBuffer{
		lines: make([]string, 0, 1000),
	}
	multiWriter := io.MultiWriter(os.Stdout, logBuffer)
	log.SetOutput(multiWriter)

	// Initialize components
	log.Println("Initializing components...")

	// Process-wide entry cache and dedup index
	entryCache := cache.New(time.Duration(config.Cache.DefaultTTLSeconds) * time.Second)
	dedupIndex := dedup.NewIndex(entryCache, time.Duration(config.Cache.DedupTTLHours)*time.Hour)

	// Durable store
	store, err := storage.NewStore(config.Storage.Database, config.Storage.DataDir)
	if err != nil {
		log.Fatalf("Failed to initialize storage: %v", err)
	}
	defer store.Close()

	// Google Drive mirror (optional - may fail if credentials not set up)
	var mirror ingest.SubtitleMirror
	if _, err := os.Stat(config.GoogleDrive.CredentialsFile); err == nil {
		driveClient, err := storage.NewDriveClient(
			config.GoogleDrive.CredentialsFile,
			config.GoogleDrive.TokenFile,
			config.GoogleDrive.FolderName,
		)
		if err != nil {
			log.Printf("WARNING: Google Drive not available: %v", err)
			log.Println("Subtitles will only be saved locally")
		} else {
			log.Println("Google Drive mirror enabled")
			mirror = driveClient
		}
	} else {
		log.Println("Google Drive credentials not found - saving locally only")
	}

	// Transcription API client
	transcriber := transcription.NewClient(transcription.Config{
		APIURL:      config.Transcription.APIURL,
		APIKey:      config.Transcription.APIKey,
		Model:       config.Transcription.Model,
		MaxAttempts: config.Transcription.MaxAttempts,
		BackoffBase: time.Duration(config.Transcription.BackoffBaseMS) * time.Millisecond,
		BackoffMax:  time.Duration(config.Transcription.BackoffMaxMS) * time.Millisecond,
		HTTPTimeout: time.Duration(config.Transcription.TimeoutSeconds) * time.Second,
	})

	// Upload orchestrator
	orchestrator := ingest.NewOrchestrator(store, transcriber, dedupIndex, entryCache, mirror,
		config.Transcription.Language)

	// Cache cleanup scheduler
	cleanupScheduler := cleanup.NewScheduler(entryCache,
		time.Duration(config.Cache.CleanupIntervalMinutes)*time.Minute)
	cleanupScheduler.Start()
	defer cleanupScheduler.Stop()

	// Create Fiber app
	app := fiber.New(fiber.Config{
		BodyLimit: config.Limits.MaxFileSizeMB * 1024 * 1024,
	})

	// Middleware
	app.Use(recover.New())
	app.Use(logger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept",
	}))

	// Initialize handlers
	uploadHandler := handlers.NewUploadHandler(orchestrator, config.Limits.MaxFileSizeMB)

	// Routes
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "healthy",
			"version": "1.0.0",
		})
	})

	app.Post("/upload", uploadHandler.Handle)

	// List stored videos
	app.Get("/videos", func(c *fiber.Ctx) error {
		limit := c.QueryInt("limit", 50)
		videos, err := store.ListVideos(c.Context(), limit)
		if err != nil {
			return c.Status(500).JSON(fiber.Map{"error": err.Error()})
		}
		return c.JSON(videos)
	})

	// Get video metadata
	app.Get("/videos/:id", func(c *fiber.Ctx) error {
		meta, err := store.GetVideo(c.Context(), c.Params("id"))
		if errors.Is(err, storage.ErrNotFound) {
			return c.Status(404).JSON(fiber.Map{"error": "Video not found"})
		}
		if err != nil {
			return c.Status(500).JSON(fiber.Map{"error": err.Error()})
		}
		return c.JSON(meta)
	})

	// Delete a video and invalidate its derived cache entries. The dedup
	// record is left to the next upload's re-validation.
	app.Delete("/videos/:id", func(c *fiber.Ctx) error {
		id := c.Params("id")
		err := store.DeleteVideo(c.Context(), id)
		if errors.Is(err, storage.ErrNotFound) {
			return c.Status(404).JSON(fiber.Map{"error": "Video not found"})
		}
		if err != nil {
			return c.Status(500).JSON(fiber.Map{"error": err.Error()})
		}
		removed := entryCache.DeletePattern("*:" + id)
		return c.JSON(fiber.Map{"deleted": id, "cache_entries_removed": removed})
	})

	// Get subtitle text for a video
	app.Get("/videos/:id/subtitle", func(c *fiber.Ctx) error {
		sub, err := store.GetSubtitleByVideo(c.Context(), c.Params("id"))
		if errors.Is(err, storage.ErrNotFound) {
			return c.Status(404).JSON(fiber.Map{"error": "Subtitle not found"})
		}
		if err != nil {
			return c.Status(500).JSON(fiber.Map{"error": err.Error()})
		}
		return c.SendString(sub.Text)
	})

	// Cache monitoring surface
	app.Get("/cache/stats", func(c *fiber.Ctx) error {
		return c.JSON(entryCache.Stats())
	})

	app.Post("/cache/cleanup", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"removed": entryCache.CleanupExpired(),
		})
	})

	// Get server logs
	app.Get("/logs", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"logs": logBuffer.GetLogs(),
		})
	})

	// Start server
	addr := fmt.Sprintf("%s:%d", config.Server.Host, config.Server.Port)
	log.Printf("Server starting on %s", addr)
	log.Println("Endpoints:")
	log.Println("   POST /upload               - Upload video file")
	log.Println("   GET  /videos               - List stored videos")
	log.Println("   GET  /videos/:id           - Get video metadata")
	log.Println("   GET  /videos/:id/subtitle  - Get subtitle text")
	log.Println("   GET  /cache/stats          - Cache statistics")
	log.Println("   POST /cache/cleanup        - Sweep expired cache entries")
	log.Println("   GET  /logs                 - View server logs")
	log.Println("   GET  /health               - Health check")

	// Graceful shutdown
	go func() {
		sigint := make(chan os.Signal, 1)
		signal.Notify(sigint, os.Interrupt, syscall.SIGTERM)
		<-sigint

		log.Println("Shutting down gracefully...")
		app.Shutdown()
	}()

	if err := app.Listen(addr); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}

// LogBuffer captures logs in memory
type LogBuffer struct {
	lines []string
	mu    sync.Mutex
}

func (lb *LogBuffer) Write(p []byte) (n int, err error) {
	lb.mu.Lock()
	defer lb.mu.Unlock()

	lb.lines = append(lb.lines, string(p))

	// Keep last 1000 lines
	if len(lb.lines) > 1000 {
		lb.lines = lb.lines[len(lb.lines)-1000:]
	}

	return len(p), nil
}

func (lb *LogBuffer) GetLogs() []string {
	lb.mu.Lock()
	defer lb.mu.Unlock()

	logs := make([]string, len(lb.lines))
	copy(logs, lb.lines)
	return logs
}

// loadConfig loads configuration from YAML file
func loadConfig(path string) (*Config, error) {
	file, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var config Config
	if err := yaml.Unmarshal(file, &config); err != nil {
		return nil, err
	}

	return &config, nil
}
