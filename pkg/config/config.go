package config

import (
	"fmt"
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds application configuration
type Config struct {
	Environment string `envconfig:"ENVIRONMENT" default:"development"`

	Database DatabaseConfig
	Redis    RedisConfig
	Insight  InsightConfig
	Worker   WorkerConfig
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host        string `envconfig:"DB_HOST" default:"localhost"`
	Port        string `envconfig:"DB_PORT" default:"5432"`
	User        string `envconfig:"DB_USER" default:"postgres"`
	Password    string `envconfig:"DB_PASSWORD" default:"postgres"`
	Name        string `envconfig:"DB_NAME" default:"salesight"`
	SSLMode     string `envconfig:"DB_SSLMODE" default:"disable"`
	MaxConns    int    `envconfig:"DB_MAX_CONNS" default:"25"`
	MinConns    int    `envconfig:"DB_MIN_CONNS" default:"5"`
	AutoMigrate bool   `envconfig:"DB_AUTO_MIGRATE" default:"false"`
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string `envconfig:"REDIS_HOST" default:"localhost"`
	Port     string `envconfig:"REDIS_PORT" default:"6379"`
	Password string `envconfig:"REDIS_PASSWORD" default:""`
	DB       int    `envconfig:"REDIS_DB" default:"0"`
}

// InsightConfig holds the extraction/risk/synthesis service configuration
type InsightConfig struct {
	APIKey         string        `envconfig:"GROQ_API_KEY" default:""`
	BaseURL        string        `envconfig:"GROQ_API_URL" default:"https://api.groq.com"`
	Model          string        `envconfig:"GROQ_MODEL" default:"llama-3.1-70b-versatile"`
	RequestTimeout time.Duration `envconfig:"INSIGHT_REQUEST_TIMEOUT" default:"60s"`
}

// WorkerConfig holds pipeline worker-pool configuration
type WorkerConfig struct {
	ExtractWorkers  int           `envconfig:"EXTRACT_WORKERS" default:"4"`
	RiskConcurrency int           `envconfig:"RISK_CONCURRENCY" default:"3"`
	PollInterval    time.Duration `envconfig:"WORKER_POLL_INTERVAL" default:"10s"`
	JobTimeout      time.Duration `envconfig:"JOB_TIMEOUT" default:"5m"`
	ZombieAfter     time.Duration `envconfig:"JOB_ZOMBIE_AFTER" default:"10m"`
}

// Load loads configuration from the environment, reading a .env file first
// when one exists.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: .env file not found, using environment variables or defaults")
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("process environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Environment == "production" && c.Insight.APIKey == "" {
		return fmt.Errorf("GROQ_API_KEY is required in production")
	}
	if c.Worker.RiskConcurrency < 1 {
		return fmt.Errorf("RISK_CONCURRENCY must be at least 1")
	}
	return nil
}

// GetDatabaseDSN returns the database connection string
func (c *Config) GetDatabaseDSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Database.Host,
		c.Database.Port,
		c.Database.User,
		c.Database.Password,
		c.Database.Name,
		c.Database.SSLMode,
	)
}

// GetRedisAddr returns the Redis address
func (c *Config) GetRedisAddr() string {
	return fmt.Sprintf("%s:%s", c.Redis.Host, c.Redis.Port)
}
