package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	StoreMongo  = "mongo"
	StoreMemory = "memory"

	MediaGridFS = "gridfs"
	MediaLocal  = "local"
)

type DatabaseConfig struct {
	URI             string
	MaxPoolSize     uint64
	MinPoolSize     uint64
	MaxConnIdleTime time.Duration
	DatabaseName    string
	RetryWrites     bool
	ConnectTimeout  time.Duration
}

type RedisConfig struct {
	// Empty URL disables reminder scheduling
	URL          string
	PollInterval time.Duration
}

type MediaConfig struct {
	Backend   string
	Bucket    string
	Dir       string
	MirrorDir string
}

type ServerConfig struct {
	Port            string
	AllowedOrigins  []string
	ShutdownTimeout time.Duration
	MaxUploadBytes  int64
	// Per-client request rate; zero disables limiting
	RateLimitRPS   float64
	RateLimitBurst int
}

type AuthConfig struct {
	// Empty secret leaves the API open
	JWTSecret string
}

type LogConfig struct {
	Level      string
	JSON       bool
	File       string
	MaxSizeMB  int
	MaxBackups int
}

type Config struct {
	Store    string
	Database DatabaseConfig
	Redis    RedisConfig
	Media    MediaConfig
	Server   ServerConfig
	Auth     AuthConfig
	Log      LogConfig
}

func LoadDatabaseConfig() DatabaseConfig {
	return DatabaseConfig{
		URI:             GetEnvAsString("MONGO_URI", "mongodb://localhost:27017"),
		MaxPoolSize:     GetEnvAsUint64("MONGO_MAX_POOL_SIZE", 100),
		MinPoolSize:     GetEnvAsUint64("MONGO_MIN_POOL_SIZE", 10),
		MaxConnIdleTime: GetEnvAsDuration("MONGO_MAX_CONN_IDLE_TIME", 60*time.Second),
		DatabaseName:    GetEnvAsString("MONGO_DB", "gradient"),
		RetryWrites:     GetEnvAsBool("MONGO_RETRY_WRITES", true),
		ConnectTimeout:  GetEnvAsDuration("MONGO_CONNECT_TIMEOUT", 10*time.Second),
	}
}

// Load reads .env when present, then the process environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	cfg := &Config{
		Store:    strings.ToLower(GetEnvAsString("STORE_BACKEND", StoreMongo)),
		Database: LoadDatabaseConfig(),
		Redis: RedisConfig{
			URL:          GetEnvAsString("REDIS_URL", ""),
			PollInterval: GetEnvAsDuration("REMINDER_POLL_INTERVAL", 15*time.Second),
		},
		Media: MediaConfig{
			Backend:   strings.ToLower(GetEnvAsString("MEDIA_BACKEND", MediaGridFS)),
			Bucket:    GetEnvAsString("MEDIA_BUCKET", "attachments"),
			Dir:       GetEnvAsString("MEDIA_DIR", "./data/media"),
			MirrorDir: GetEnvAsString("MEDIA_MIRROR_DIR", ""),
		},
		Server: ServerConfig{
			Port:            GetEnvAsString("PORT", "8080"),
			AllowedOrigins:  GetEnvAsList("ALLOWED_ORIGINS", []string{"*"}),
			ShutdownTimeout: GetEnvAsDuration("SHUTDOWN_TIMEOUT", 10*time.Second),
			MaxUploadBytes:  int64(GetEnvAsInt("MAX_UPLOAD_MB", 64)) << 20,
			RateLimitRPS:    GetEnvAsFloat("RATE_LIMIT_RPS", 0),
			RateLimitBurst:  GetEnvAsInt("RATE_LIMIT_BURST", 20),
		},
		Auth: AuthConfig{
			JWTSecret: GetEnvAsString("JWT_SECRET_KEY", ""),
		},
		Log: LogConfig{
			Level:      GetEnvAsString("LOG_LEVEL", "info"),
			JSON:       GetEnvAsBool("LOG_JSON", false),
			File:       GetEnvAsString("LOG_FILE", ""),
			MaxSizeMB:  GetEnvAsInt("LOG_MAX_SIZE_MB", 50),
			MaxBackups: GetEnvAsInt("LOG_MAX_BACKUPS", 5),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	switch c.Store {
	case StoreMongo, StoreMemory:
	default:
		return fmt.Errorf("unknown STORE_BACKEND %q", c.Store)
	}
	switch c.Media.Backend {
	case MediaGridFS, MediaLocal:
	default:
		return fmt.Errorf("unknown MEDIA_BACKEND %q", c.Media.Backend)
	}
	if c.Media.Backend == MediaGridFS && c.Store != StoreMongo {
		return errors.New("MEDIA_BACKEND=gridfs requires STORE_BACKEND=mongo")
	}
	if c.Server.Port == "" {
		return errors.New("PORT must not be empty")
	}
	return nil
}
