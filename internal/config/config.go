package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds every server setting
type Config struct {
	Port      string `env:"PORT" envDefault:"8080"`
	DBPath    string `env:"DB_PATH" envDefault:"adventure.db"`
	JWTSecret string `env:"JWT_SECRET"`
	JWTIssuer string `env:"JWT_ISSUER" envDefault:"ai-adventure"`

	// DMProvider picks the text model backend: openai or gemini
	DMProvider       string        `env:"DM_PROVIDER" envDefault:"openai"`
	OpenAIAPIKey     string        `env:"OPENAI_API_KEY"`
	OpenAIBaseURL    string        `env:"OPENAI_BASE_URL" envDefault:"https://api.openai.com/v1"`
	NarrativeModel   string        `env:"NARRATIVE_MODEL" envDefault:"gpt-4o-mini"`
	RollModel        string        `env:"ROLL_MODEL" envDefault:"gpt-4o-mini"`
	WorldModel       string        `env:"WORLD_MODEL" envDefault:"gpt-4o-mini"`
	ImageModel       string        `env:"IMAGE_MODEL" envDefault:"gpt-image-1"`
	ImageSize        string        `env:"IMAGE_SIZE" envDefault:"1536x1024"`
	ImageQuality     string        `env:"IMAGE_QUALITY" envDefault:"medium"`
	GeminiAPIKey     string        `env:"GEMINI_API_KEY"`
	GeminiModel      string        `env:"GEMINI_MODEL" envDefault:"gemini-2.5-flash"`
	GeneratorTimeout time.Duration `env:"GENERATOR_TIMEOUT" envDefault:"45s"`
	ImageTimeout     time.Duration `env:"IMAGE_TIMEOUT" envDefault:"2m"`
	GeneratorTries   uint          `env:"GENERATOR_TRIES" envDefault:"2"`

	SceneWorkers    int `env:"SCENE_WORKERS" envDefault:"2"`
	ImagesPerMinute int `env:"IMAGES_PER_MINUTE" envDefault:"10"`

	StorageBackend  string `env:"STORAGE_BACKEND" envDefault:"local"`
	MediaDir        string `env:"MEDIA_DIR" envDefault:"media"`
	MediaBaseURL    string `env:"MEDIA_BASE_URL" envDefault:"/media"`
	COSSecretID     string `env:"COS_SECRET_ID"`
	COSSecretKey    string `env:"COS_SECRET_KEY"`
	COSBucket       string `env:"COS_BUCKET"`
	COSRegion       string `env:"COS_REGION" envDefault:"ap-hongkong"`
	COSPublicDomain string `env:"COS_PUBLIC_DOMAIN"`

	RateLimitRPS   float64 `env:"RATE_LIMIT_RPS" envDefault:"10"`
	RateLimitBurst int     `env:"RATE_LIMIT_BURST" envDefault:"20"`

	OTelEndpoint string `env:"OTEL_ENDPOINT"`
}

// Load reads an optional .env file and then the environment
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("config: failed to read .env: %v", err)
	}
	return Parse()
}

// Parse reads the environment into a validated Config
func Parse() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks settings that depend on each other
func (c *Config) Validate() error {
	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET is required")
	}
	switch c.DMProvider {
	case "openai":
		if c.OpenAIAPIKey == "" {
			return errors.New("OPENAI_API_KEY is required")
		}
	case "gemini":
		if c.GeminiAPIKey == "" {
			return errors.New("GEMINI_API_KEY is required when DM_PROVIDER=gemini")
		}
		// images still come from the OpenAI-compatible endpoint
		if c.OpenAIAPIKey == "" {
			return errors.New("OPENAI_API_KEY is required for image generation")
		}
	default:
		return fmt.Errorf("DM_PROVIDER must be openai or gemini (got %q)", c.DMProvider)
	}
	switch c.StorageBackend {
	case "local":
	case "cos":
		if c.COSSecretID == "" || c.COSSecretKey == "" || c.COSBucket == "" {
			return errors.New("COS_SECRET_ID, COS_SECRET_KEY and COS_BUCKET are required when STORAGE_BACKEND=cos")
		}
	default:
		return fmt.Errorf("STORAGE_BACKEND must be local or cos (got %q)", c.StorageBackend)
	}
	if c.SceneWorkers < 1 {
		return errors.New("SCENE_WORKERS must be at least 1")
	}
	return nil
}
