package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server    ServerConfig
	Node      NodeConfig
	Database  DatabaseConfig
	Sync      SyncConfig
	JWT       JWTConfig
	Admin     AdminConfig
	WebSocket WebSocketConfig
	CORS      CORSConfig
	Logging   LoggingConfig
}

type ServerConfig struct {
	Port string
	Host string
	Env  string
}

// NodeConfig is this node's sync identity. RegistrationSecret is the
// shared secret every peer in the mesh derives its credential from; it is
// never transmitted.
type NodeConfig struct {
	ID                 string
	RegistrationSecret string
}

type DatabaseConfig struct {
	Path string
}

type SyncConfig struct {
	PullPageSize     int
	HTTPTimeout      time.Duration
	SnapshotDir      string
	SessionListLimit int
}

type JWTConfig struct {
	Secret     string
	Expiration time.Duration
}

type AdminConfig struct {
	Password string
}

type WebSocketConfig struct {
	WriteWait      time.Duration
	PongWait       time.Duration
	PingPeriod     time.Duration
	MaxConnections int
}

type CORSConfig struct {
	AllowedOrigins string
	AllowedMethods string
	AllowedHeaders string
}

type LoggingConfig struct {
	Level string
}

func Load() (*Config, error) {
	godotenv.Load()

	jwtExp, err := time.ParseDuration(getEnv("JWT_EXPIRATION", "1h"))
	if err != nil {
		return nil, fmt.Errorf("invalid JWT_EXPIRATION: %w", err)
	}

	httpTimeout, err := time.ParseDuration(getEnv("SYNC_HTTP_TIMEOUT", "60s"))
	if err != nil {
		return nil, fmt.Errorf("invalid SYNC_HTTP_TIMEOUT: %w", err)
	}

	nodeID := getEnv("NODE_ID", "")
	if nodeID == "" {
		return nil, fmt.Errorf("NODE_ID is required")
	}

	registrationSecret := getEnv("REGISTRATION_SECRET", "")
	if registrationSecret == "" {
		return nil, fmt.Errorf("REGISTRATION_SECRET is required")
	}

	return &Config{
		Server: ServerConfig{
			Port: getEnv("PORT", "8080"),
			Host: getEnv("HOST", "0.0.0.0"),
			Env:  getEnv("ENV", "development"),
		},
		Node: NodeConfig{
			ID:                 nodeID,
			RegistrationSecret: registrationSecret,
		},
		Database: DatabaseConfig{
			Path: getEnv("DB_PATH", "peersync.db"),
		},
		Sync: SyncConfig{
			PullPageSize:     getEnvAsInt("SYNC_PULL_PAGE_SIZE", 200),
			HTTPTimeout:      httpTimeout,
			SnapshotDir:      getEnv("SYNC_SNAPSHOT_DIR", "snapshots"),
			SessionListLimit: getEnvAsInt("SYNC_SESSION_LIST_LIMIT", 100),
		},
		JWT: JWTConfig{
			Secret:     getEnv("JWT_SECRET", "dev-secret-change-in-production"),
			Expiration: jwtExp,
		},
		Admin: AdminConfig{
			Password: getEnv("ADMIN_PASSWORD", "change-me-please"),
		},
		WebSocket: WebSocketConfig{
			WriteWait:      10 * time.Second,
			PongWait:       60 * time.Second,
			PingPeriod:     54 * time.Second,
			MaxConnections: getEnvAsInt("WS_MAX_CONNECTIONS", 10),
		},
		CORS: CORSConfig{
			AllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "*"),
			AllowedMethods: getEnv("CORS_ALLOWED_METHODS", "GET,POST,PUT,DELETE,OPTIONS"),
			AllowedHeaders: getEnv("CORS_ALLOWED_HEADERS", "Content-Type,Authorization"),
		},
		Logging: LoggingConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
	}, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}
