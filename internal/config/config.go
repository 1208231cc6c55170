package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server ServerConfig
	DB     DBConfig
	JWT    JWTConfig
	S3     S3Config
	Log    LogConfig
	CORS   CORSConfig
	Match  MatchConfig
	Redis  RedisConfig
	Email  EmailConfig
}

// EmailConfig holds email delivery settings.
type EmailConfig struct {
	Provider    string `mapstructure:"provider"`
	Region      string `mapstructure:"region"`
	FromAddress string `mapstructure:"from_address"`
	FromName    string `mapstructure:"from_name"`
	FrontendURL string `mapstructure:"frontend_url"`
}

// CORSConfig holds CORS settings.
type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// MatchConfig bounds a single batch match run's resource usage,
// consumed directly by service.OrchestratorConfig.
type MatchConfig struct {
	Concurrency   int           `mapstructure:"concurrency"`
	RunTimeout    time.Duration `mapstructure:"run_timeout"`
	MaxBatchSize  int           `mapstructure:"max_batch_size"`
	ResultBucket  string        `mapstructure:"result_bucket"`
	PresignExpiry int64         `mapstructure:"presign_expiry"`
}

// RedisConfig holds the Redis connection backing the Asynq batch-match queue.
type RedisConfig struct {
	Addr string `mapstructure:"addr"`
	DB   int    `mapstructure:"db"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port         string        `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	Environment  string        `mapstructure:"environment"`
}

// DBConfig holds PostgreSQL connection settings.
type DBConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"name"`
	SSLMode  string `mapstructure:"sslmode"`
	MaxOpen  int    `mapstructure:"max_open"`
	MaxIdle  int    `mapstructure:"max_idle"`
}

// DSN returns the PostgreSQL connection string.
func (d *DBConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Name, d.SSLMode,
	)
}

// JWTConfig holds JWT signing and expiry settings.
type JWTConfig struct {
	Secret             string        `mapstructure:"secret"`
	AccessTokenExpiry  time.Duration `mapstructure:"access_expiry"`
	RefreshTokenExpiry time.Duration `mapstructure:"refresh_expiry"`
	Issuer             string        `mapstructure:"issuer"`
}

// S3Config holds AWS S3 settings.
type S3Config struct {
	Region        string `mapstructure:"region"`
	Bucket        string `mapstructure:"bucket"`
	Endpoint      string `mapstructure:"endpoint"`
	AccessKey     string `mapstructure:"access_key"`
	SecretKey     string `mapstructure:"secret_key"`
	MaxFileSizeMB int64  `mapstructure:"max_file_size_mb"`
	PresignExpiry int64  `mapstructure:"presign_expiry"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads configuration from environment variables with the RBM_ prefix.
func Load() (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("RBM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Server defaults
	v.SetDefault("server.port", ":8080")
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "15s")
	v.SetDefault("server.environment", "development")

	// DB defaults
	v.SetDefault("db.host", "localhost")
	v.SetDefault("db.port", 5432)
	v.SetDefault("db.user", "redblue")
	v.SetDefault("db.password", "redblue_secret")
	v.SetDefault("db.name", "redblue_db")
	v.SetDefault("db.sslmode", "disable")
	v.SetDefault("db.max_open", 25)
	v.SetDefault("db.max_idle", 10)

	// JWT defaults
	v.SetDefault("jwt.secret", "change-me-in-production")
	v.SetDefault("jwt.access_expiry", "15m")
	v.SetDefault("jwt.refresh_expiry", "168h")
	v.SetDefault("jwt.issuer", "redbluematcher")

	// S3 defaults
	v.SetDefault("s3.region", "us-east-1")
	v.SetDefault("s3.bucket", "redblue-uploads")
	v.SetDefault("s3.endpoint", "")
	v.SetDefault("s3.max_file_size_mb", 50)
	v.SetDefault("s3.presign_expiry", 3600)

	// Log defaults
	v.SetDefault("log.level", "debug")
	v.SetDefault("log.format", "console")

	// CORS defaults (localhost origins for development)
	v.SetDefault("cors.allowed_origins", "http://localhost:3000,http://127.0.0.1:3000,http://localhost:3001,http://127.0.0.1:3001")

	// Match defaults
	v.SetDefault("match.concurrency", 8)
	v.SetDefault("match.run_timeout", "10m")
	v.SetDefault("match.max_batch_size", 500)
	v.SetDefault("match.result_bucket", "red-blue-matcher-results")
	v.SetDefault("match.presign_expiry", 3600)

	// Redis defaults
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.db", 0)

	// Email defaults
	v.SetDefault("email.provider", "noop")
	v.SetDefault("email.region", "ap-south-1")
	v.SetDefault("email.from_address", "noreply@redbluematcher.internal")
	v.SetDefault("email.from_name", "Red-Blue Matcher")
	v.SetDefault("email.frontend_url", "http://localhost:3000")

	// Bind environment variables explicitly for nested keys
	envBindings := map[string]string{
		"server.port":           "RBM_SERVER_PORT",
		"server.read_timeout":   "RBM_SERVER_READ_TIMEOUT",
		"server.write_timeout":  "RBM_SERVER_WRITE_TIMEOUT",
		"server.environment":    "RBM_SERVER_ENVIRONMENT",
		"db.host":               "RBM_DB_HOST",
		"db.port":               "RBM_DB_PORT",
		"db.user":               "RBM_DB_USER",
		"db.password":           "RBM_DB_PASSWORD",
		"db.name":               "RBM_DB_NAME",
		"db.sslmode":            "RBM_DB_SSLMODE",
		"db.max_open":           "RBM_DB_MAX_OPEN",
		"db.max_idle":           "RBM_DB_MAX_IDLE",
		"jwt.secret":            "RBM_JWT_SECRET",
		"jwt.access_expiry":     "RBM_JWT_ACCESS_EXPIRY",
		"jwt.refresh_expiry":    "RBM_JWT_REFRESH_EXPIRY",
		"jwt.issuer":            "RBM_JWT_ISSUER",
		"s3.region":             "RBM_S3_REGION",
		"s3.bucket":             "RBM_S3_BUCKET",
		"s3.endpoint":           "RBM_S3_ENDPOINT",
		"s3.access_key":         "RBM_S3_ACCESS_KEY",
		"s3.secret_key":         "RBM_S3_SECRET_KEY",
		"s3.max_file_size_mb":   "RBM_S3_MAX_FILE_SIZE_MB",
		"s3.presign_expiry":     "RBM_S3_PRESIGN_EXPIRY",
		"log.level":             "RBM_LOG_LEVEL",
		"log.format":            "RBM_LOG_FORMAT",
		"cors.allowed_origins":  "RBM_CORS_ALLOWED_ORIGINS",
		"match.concurrency":     "RBM_MATCH_CONCURRENCY",
		"match.run_timeout":     "RBM_MATCH_RUN_TIMEOUT",
		"match.max_batch_size":  "RBM_MATCH_MAX_BATCH_SIZE",
		"match.result_bucket":   "RBM_MATCH_RESULT_BUCKET",
		"match.presign_expiry":  "RBM_MATCH_PRESIGN_EXPIRY",
		"redis.addr":            "RBM_REDIS_ADDR",
		"redis.db":              "RBM_REDIS_DB",
		"email.provider":        "RBM_EMAIL_PROVIDER",
		"email.region":          "RBM_EMAIL_REGION",
		"email.from_address":    "RBM_EMAIL_FROM_ADDRESS",
		"email.from_name":       "RBM_EMAIL_FROM_NAME",
		"email.frontend_url":    "RBM_EMAIL_FRONTEND_URL",
	}
	for key, env := range envBindings {
		_ = v.BindEnv(key, env)
	}

	cfg := &Config{}

	// Railway/Heroku/Render set a PORT env var. Use it if RBM_SERVER_PORT is not explicitly set.
	serverPort := v.GetString("server.port")
	if port := os.Getenv("PORT"); port != "" && os.Getenv("RBM_SERVER_PORT") == "" {
		serverPort = ":" + port
	}

	cfg.Server = ServerConfig{
		Port:         serverPort,
		ReadTimeout:  v.GetDuration("server.read_timeout"),
		WriteTimeout: v.GetDuration("server.write_timeout"),
		Environment:  v.GetString("server.environment"),
	}
	cfg.DB = DBConfig{
		Host:     v.GetString("db.host"),
		Port:     v.GetInt("db.port"),
		User:     v.GetString("db.user"),
		Password: v.GetString("db.password"),
		Name:     v.GetString("db.name"),
		SSLMode:  v.GetString("db.sslmode"),
		MaxOpen:  v.GetInt("db.max_open"),
		MaxIdle:  v.GetInt("db.max_idle"),
	}
	cfg.JWT = JWTConfig{
		Secret:             v.GetString("jwt.secret"),
		AccessTokenExpiry:  v.GetDuration("jwt.access_expiry"),
		RefreshTokenExpiry: v.GetDuration("jwt.refresh_expiry"),
		Issuer:             v.GetString("jwt.issuer"),
	}
	cfg.S3 = S3Config{
		Region:        v.GetString("s3.region"),
		Bucket:        v.GetString("s3.bucket"),
		Endpoint:      v.GetString("s3.endpoint"),
		AccessKey:     v.GetString("s3.access_key"),
		SecretKey:     v.GetString("s3.secret_key"),
		MaxFileSizeMB: v.GetInt64("s3.max_file_size_mb"),
		PresignExpiry: v.GetInt64("s3.presign_expiry"),
	}
	cfg.Log = LogConfig{
		Level:  v.GetString("log.level"),
		Format: v.GetString("log.format"),
	}
	// Parse CORS allowed origins from comma-separated string
	var corsOrigins []string
	for _, o := range strings.Split(v.GetString("cors.allowed_origins"), ",") {
		o = strings.TrimSpace(o)
		if o != "" {
			corsOrigins = append(corsOrigins, o)
		}
	}
	cfg.CORS = CORSConfig{
		AllowedOrigins: corsOrigins,
	}

	cfg.Match = MatchConfig{
		Concurrency:   v.GetInt("match.concurrency"),
		RunTimeout:    v.GetDuration("match.run_timeout"),
		MaxBatchSize:  v.GetInt("match.max_batch_size"),
		ResultBucket:  v.GetString("match.result_bucket"),
		PresignExpiry: v.GetInt64("match.presign_expiry"),
	}

	cfg.Redis = RedisConfig{
		Addr: v.GetString("redis.addr"),
		DB:   v.GetInt("redis.db"),
	}

	cfg.Email = EmailConfig{
		Provider:    v.GetString("email.provider"),
		Region:      v.GetString("email.region"),
		FromAddress: v.GetString("email.from_address"),
		FromName:    v.GetString("email.from_name"),
		FrontendURL: v.GetString("email.frontend_url"),
	}

	return cfg, nil
}
