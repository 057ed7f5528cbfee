package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds application configuration
type Config struct {
	Server    ServerConfig
	Strava    StravaConfig
	Redis     RedisConfig
	MongoDB   MongoDBConfig
	MinIO     MinIOConfig
	Session   SessionConfig
	RateLimit RateLimitConfig
}

type ServerConfig struct {
	Port         string
	Host         string
	Environment  string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// StravaConfig carries the OAuth2 client registration for the Strava API.
// BaseURL is overridable so tests can point the client at a local fake.
type StravaConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURI  string
	BaseURL      string
	TokensFile   string
	Store        string // "file" | "redis" | "mongo"
}

type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

type MongoDBConfig struct {
	URI      string
	Database string
	Timeout  time.Duration
}

type MinIOConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// SessionConfig controls the locally issued dashboard session, not the
// Strava credential itself.
type SessionConfig struct {
	Secret          string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
}

type RateLimitConfig struct {
	Enabled       bool
	RPS           float64
	Burst         int
	UseRedis      bool
	WindowSeconds int
}

// LoadConfig loads configuration from environment variables and .env file
func LoadConfig() (*Config, error) {
	_ = godotenv.Load(".env")

	viper.AutomaticEnv()

	viper.SetDefault("SERVER_PORT", "8090")
	viper.SetDefault("SERVER_HOST", "0.0.0.0")
	viper.SetDefault("SERVER_ENVIRONMENT", "development")
	viper.SetDefault("STRAVA_BASE_URL", "https://www.strava.com")
	viper.SetDefault("STRAVA_TOKENS_FILE", "strava_tokens.json")
	viper.SetDefault("CREDENTIAL_STORE", "file")
	viper.SetDefault("MONGODB_TIMEOUT", 10)
	viper.SetDefault("MINIO_BUCKET", "stridedash-exports")
	viper.SetDefault("SESSION_ACCESS_TOKEN_TTL", 15)
	viper.SetDefault("SESSION_REFRESH_TOKEN_TTL", 10080)
	viper.SetDefault("RATE_LIMIT_ENABLED", true)
	viper.SetDefault("RATE_LIMIT_RPS", 5.0)
	viper.SetDefault("RATE_LIMIT_BURST", 10)
	viper.SetDefault("RATE_LIMIT_WINDOW_SECONDS", 60)

	cfg := &Config{
		Server: ServerConfig{
			Port:         viper.GetString("SERVER_PORT"),
			Host:         viper.GetString("SERVER_HOST"),
			Environment:  viper.GetString("SERVER_ENVIRONMENT"),
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		Strava: StravaConfig{
			ClientID:     viper.GetString("STRAVA_CLIENT_ID"),
			ClientSecret: viper.GetString("STRAVA_CLIENT_SECRET"),
			RedirectURI:  viper.GetString("STRAVA_REDIRECT_URI"),
			BaseURL:      viper.GetString("STRAVA_BASE_URL"),
			TokensFile:   viper.GetString("STRAVA_TOKENS_FILE"),
			Store:        viper.GetString("CREDENTIAL_STORE"),
		},
		Redis: RedisConfig{
			Host:     viper.GetString("REDIS_HOST"),
			Port:     viper.GetString("REDIS_PORT"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       0,
		},
		MongoDB: MongoDBConfig{
			URI:      viper.GetString("MONGODB_URI"),
			Database: viper.GetString("MONGODB_DATABASE"),
			Timeout:  time.Duration(viper.GetInt("MONGODB_TIMEOUT")) * time.Second,
		},
		MinIO: MinIOConfig{
			Endpoint:  viper.GetString("MINIO_ENDPOINT"),
			AccessKey: viper.GetString("MINIO_ACCESS_KEY"),
			SecretKey: os.Getenv("MINIO_SECRET_KEY"),
			Bucket:    viper.GetString("MINIO_BUCKET"),
			UseSSL:    viper.GetBool("MINIO_USE_SSL"),
		},
		Session: SessionConfig{
			Secret:          os.Getenv("SESSION_SECRET"),
			AccessTokenTTL:  time.Duration(viper.GetInt("SESSION_ACCESS_TOKEN_TTL")) * time.Minute,
			RefreshTokenTTL: time.Duration(viper.GetInt("SESSION_REFRESH_TOKEN_TTL")) * time.Minute,
		},
		RateLimit: RateLimitConfig{
			Enabled:       viper.GetBool("RATE_LIMIT_ENABLED"),
			RPS:           viper.GetFloat64("RATE_LIMIT_RPS"),
			Burst:         viper.GetInt("RATE_LIMIT_BURST"),
			UseRedis:      viper.GetBool("RATE_LIMIT_USE_REDIS"),
			WindowSeconds: viper.GetInt("RATE_LIMIT_WINDOW_SECONDS"),
		},
	}

	// The Strava client registration is the one thing the service cannot run without.
	if cfg.Strava.ClientID == "" || cfg.Strava.ClientSecret == "" || cfg.Strava.RedirectURI == "" {
		return nil, fmt.Errorf("STRAVA_CLIENT_ID, STRAVA_CLIENT_SECRET and STRAVA_REDIRECT_URI must be set")
	}

	return cfg, nil
}
