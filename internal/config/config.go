package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds all configuration values
type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	Redis      RedisConfig
	NATS       NATSConfig
	JWT        JWTConfig
	Blockchain BlockchainConfig
	X402       X402Config
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port string
	Env  string
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// URL returns the database connection URL
func (c DatabaseConfig) URL() string {
	return "postgres://" + c.User + ":" + c.Password + "@" + c.Host + ":" + strconv.Itoa(c.Port) + "/" + c.DBName + "?sslmode=" + c.SSLMode + "&prepare_threshold=0"
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	URL      string
	PASSWORD string
}

// NATSConfig holds the event publisher configuration. An empty URL disables
// event publishing.
type NATSConfig struct {
	URL string
}

// JWTConfig holds admin token configuration
type JWTConfig struct {
	Secret       string
	AccessExpiry time.Duration
}

// BlockchainConfig holds chain RPC and signing configuration. The relayer key
// settles payments; the minter key executes mints. They must be distinct
// accounts so the two nonce sequences never interfere.
type BlockchainConfig struct {
	RPCURL            string
	ChainID           int64
	RelayerPrivateKey string
	MinterPrivateKey  string
}

// X402Config holds the paywall parameters advertised in 402 responses
type X402Config struct {
	Network           string
	AssetAddress      string
	PayTo             string
	MintPrice         string
	TargetContract    string
	MaxTimeoutSeconds int
}

// Load loads configuration from environment variables
func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Port: getEnv("SERVER_PORT", "8080"),
			Env:  getEnv("SERVER_ENV", "development"),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvAsInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			DBName:   getEnv("DB_NAME", "mintgate"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			URL:      getEnv("REDIS_URL", "redis://localhost:6379"),
			PASSWORD: getEnv("REDIS_PASSWORD", ""),
		},
		NATS: NATSConfig{
			URL: getEnv("NATS_URL", ""),
		},
		JWT: JWTConfig{
			Secret:       getEnv("JWT_SECRET", "change-this-in-production"),
			AccessExpiry: getEnvAsDuration("JWT_ACCESS_EXPIRY", 1*time.Hour),
		},
		Blockchain: BlockchainConfig{
			RPCURL:            getEnv("CHAIN_RPC_URL", "https://sepolia.base.org"),
			ChainID:           int64(getEnvAsInt("CHAIN_ID", 84532)),
			RelayerPrivateKey: getEnv("RELAYER_PRIVATE_KEY", ""),
			MinterPrivateKey:  getEnv("MINTER_PRIVATE_KEY", ""),
		},
		X402: X402Config{
			Network:           getEnv("X402_NETWORK", "base-sepolia"),
			AssetAddress:      getEnv("X402_ASSET_ADDRESS", "0x036CbD53842c5426634e7929541eC2318f3dCF7e"),
			PayTo:             getEnv("X402_PAY_TO", ""),
			MintPrice:         getEnv("X402_MINT_PRICE", "1000000"),
			TargetContract:    getEnv("X402_TARGET_CONTRACT", ""),
			MaxTimeoutSeconds: getEnvAsInt("X402_MAX_TIMEOUT_SECONDS", 60),
		},
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
