package config

import (
	"fmt"
	"slices"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

type Config struct {
	AppEnv         string `env:"APP_ENV" envDefault:"development"`
	Port           string `env:"PORT" envDefault:"8080"`
	AllowedOrigins string `env:"ALLOWED_ORIGINS" envDefault:"http://localhost:3000"`

	StoreDriver string `env:"STORE_DRIVER" envDefault:"postgres"`
	DBHost      string `env:"DB_HOST" envDefault:"localhost"`
	DBPort      string `env:"DB_PORT" envDefault:"5432"`
	DBUser      string `env:"DB_USER" envDefault:"postgres"`
	DBPass      string `env:"DB_PASS"`
	DBName      string `env:"DB_NAME" envDefault:"media_gallery"`

	RedisURL string `env:"REDIS_URL"`

	MeiliSearchHost string `env:"MEILISEARCH_HOST"`
	MeiliMasterKey  string `env:"MEILI_MASTER_KEY"`

	CloudinaryCloudName    string `env:"CLOUDINARY_CLOUD_NAME"`
	CloudinaryAPIKey       string `env:"CLOUDINARY_API_KEY"`
	CloudinaryAPISecret    string `env:"CLOUDINARY_API_SECRET"`
	CloudinaryUploadFolder string `env:"CLOUDINARY_UPLOAD_FOLDER" envDefault:"media_gallery"`

	JWTSecret string        `env:"JWT_SECRET" envDefault:"dev-secret-change-me"`
	JWTTTL    time.Duration `env:"JWT_TTL" envDefault:"720h"`

	AutoVerifyUsers bool     `env:"AUTO_VERIFY_USERS" envDefault:"false"`
	AdminUsernames  []string `env:"ADMIN_USERNAMES" envSeparator:","`

	RateLimitUpload     time.Duration `env:"RATE_LIMIT_UPLOAD" envDefault:"10s"`
	StaleUploadSchedule string        `env:"STALE_UPLOAD_SCHEDULE" envDefault:"@every 1h"`
	StaleUploadAge      time.Duration `env:"STALE_UPLOAD_AGE" envDefault:"24h"`
	LikeTotalsTTL       time.Duration `env:"LIKE_TOTALS_TTL" envDefault:"10m"`

	SeedUsername string `env:"SEED_USERNAME" envDefault:"admin"`
	SeedPassword string `env:"SEED_PASSWORD" envDefault:"admin12345"`

	LogLevel      string `env:"LOG_LEVEL" envDefault:"info"`
	LogFile       string `env:"LOG_FILE"`
	LogMaxSizeMB  int    `env:"LOG_MAX_SIZE_MB" envDefault:"50"`
	LogMaxBackups int    `env:"LOG_MAX_BACKUPS" envDefault:"5"`
	LogMaxAgeDays int    `env:"LOG_MAX_AGE_DAYS" envDefault:"28"`
}

func Load() (*Config, error) {
	// Don't fail if .env doesn't exist (might be prod env vars)
	_ = godotenv.Load()

	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if cfg.StoreDriver != DriverPostgres && cfg.StoreDriver != DriverMemory {
		return nil, fmt.Errorf("invalid STORE_DRIVER %q", cfg.StoreDriver)
	}

	return &cfg, nil
}

func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

// IsAdmin reports whether username may moderate other users.
func (c *Config) IsAdmin(username string) bool {
	return slices.Contains(c.AdminUsernames, username)
}

// CloudinaryEnabled reports whether uploads go to Cloudinary rather than the in-memory store.
func (c *Config) CloudinaryEnabled() bool {
	return c.CloudinaryCloudName != "" && c.CloudinaryAPIKey != "" && c.CloudinaryAPISecret != ""
}
