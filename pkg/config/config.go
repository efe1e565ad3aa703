package config

import (
	"errors"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database  DatabaseConfig
	Redis     RedisConfig
	JWT       JWTConfig
	Admin     AdminConfig
	CORS      CORSConfig
	Log       LogConfig
	Tron      TronConfig
	IPFS      IPFSConfig
	Storage   StorageConfig
	Orphans   OrphanConfig
	Reconcile ReconcileConfig
	Energy    EnergyConfig
	Notices   NoticesConfig
}

type DatabaseConfig struct {
	URL          string
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
	AutoMigrate  bool
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
	Enabled  bool
	CacheTTL time.Duration
}

type JWTConfig struct {
	Secret     string
	Expiration time.Duration
}

// AdminConfig holds the single operator account guarding reconciliation endpoints.
type AdminConfig struct {
	Username     string
	PasswordHash string
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// TronConfig describes how the chain is reached.
type TronConfig struct {
	Network         string
	RPCURL          string
	ContractAddress string
	APIKey          string
	ServerWallet    string
	FeeCollector    string
	CallTimeout     time.Duration
	RetryMaxElapsed time.Duration
}

// IPFSConfig only affects gateway links; pinning happens client-side.
type IPFSConfig struct {
	GatewayURL      string
	PinataAPIKey    string
	PinataSecretKey string
}

// StorageConfig controls where document bytes land.
type StorageConfig struct {
	PrimaryDir          string
	FallbackDir         string
	InlineThumbnailMax  int64
	MaxUploadBytes      int64
	SignedURLs          bool
	SignedURLSecret     string
	SignedURLTTL        time.Duration
	PublicDocumentRoute string
}

// OrphanConfig tunes the unattached-upload sweep.
type OrphanConfig struct {
	SweepInterval time.Duration
	TTL           time.Duration
}

// ReconcileConfig toggles the periodic chain/database comparison.
type ReconcileConfig struct {
	Enabled           bool
	Interval          time.Duration
	Workers           int
	BlockWindow       uint64
	AssumeOddEvenPair bool
	VerifyQueueSize   int
	VerifyRetries     int
}

// EnergyConfig points at the energy-rental marketplace.
type EnergyConfig struct {
	BaseURL string
	APIID   string
	APIKey  string
	Timeout time.Duration
}

// NoticesConfig carries listing limits.
type NoticesConfig struct {
	RecentLimit int
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !isMissingFile(err) {
			return nil, err
		}
	}

	return fromViper(v), nil
}

func fromViper(v *viper.Viper) *Config {
	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Database = DatabaseConfig{
		URL:          v.GetString("DATABASE_URL"),
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
		AutoMigrate:  v.GetBool("DB_AUTO_MIGRATE"),
	}

	cfg.Redis = RedisConfig{
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
		Enabled:  v.GetBool("ENABLE_CACHE"),
		CacheTTL: parseDuration(v.GetString("CACHE_TTL"), 10*time.Minute),
	}

	cfg.JWT = JWTConfig{
		Secret:     v.GetString("JWT_SECRET"),
		Expiration: parseDuration(v.GetString("JWT_EXPIRATION"), 12*time.Hour),
	}

	cfg.Admin = AdminConfig{
		Username:     v.GetString("ADMIN_USERNAME"),
		PasswordHash: v.GetString("ADMIN_PASSWORD_HASH"),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	network := strings.ToLower(v.GetString("TRON_NETWORK"))
	rpcURL := v.GetString("TRON_RPC_URL")
	if rpcURL == "" {
		rpcURL = DefaultRPCURL(network)
	}
	cfg.Tron = TronConfig{
		Network:         network,
		RPCURL:          rpcURL,
		ContractAddress: v.GetString("CONTRACT_ADDRESS"),
		APIKey:          v.GetString("TRONGRID_API_KEY"),
		ServerWallet:    v.GetString("SERVER_WALLET"),
		FeeCollector:    v.GetString("FEE_COLLECTOR"),
		CallTimeout:     parseDuration(v.GetString("CHAIN_CALL_TIMEOUT"), 30*time.Second),
		RetryMaxElapsed: parseDuration(v.GetString("CHAIN_RETRY_MAX_ELAPSED"), time.Minute),
	}

	cfg.IPFS = IPFSConfig{
		GatewayURL:      v.GetString("IPFS_GATEWAY_URL"),
		PinataAPIKey:    v.GetString("PINATA_API_KEY"),
		PinataSecretKey: v.GetString("PINATA_SECRET_KEY"),
	}

	inlineMax := v.GetInt64("INLINE_THUMBNAIL_MAX_BYTES")
	if inlineMax <= 0 {
		inlineMax = 512 * 1024
	}
	maxUpload := v.GetInt64("MAX_UPLOAD_BYTES")
	if maxUpload <= 0 {
		maxUpload = 50 * 1024 * 1024
	}
	cfg.Storage = StorageConfig{
		PrimaryDir:         v.GetString("DISK_MOUNT_PATH"),
		FallbackDir:        v.GetString("DOCUMENT_STORAGE_PATH"),
		InlineThumbnailMax: inlineMax,
		MaxUploadBytes:     maxUpload,
		SignedURLs:         v.GetBool("DOCUMENT_SIGNED_URLS"),
		SignedURLSecret:    v.GetString("DOCUMENT_SIGNED_URL_SECRET"),
		SignedURLTTL:       parseDuration(v.GetString("DOCUMENT_SIGNED_URL_TTL"), time.Hour),
	}

	cfg.Orphans = OrphanConfig{
		SweepInterval: parseDuration(v.GetString("ORPHAN_SWEEP_INTERVAL"), time.Minute),
		TTL:           parseDuration(v.GetString("ORPHAN_TTL"), 24*time.Hour),
	}

	cfg.Reconcile = ReconcileConfig{
		Enabled:           v.GetBool("ENABLE_RECONCILER"),
		Interval:          parseDuration(v.GetString("RECONCILE_INTERVAL"), 15*time.Minute),
		Workers:           v.GetInt("RECONCILE_WORKERS"),
		BlockWindow:       v.GetUint64("RECONCILE_BLOCK_WINDOW"),
		AssumeOddEvenPair: v.GetBool("RECONCILE_ASSUME_ODD_EVEN"),
		VerifyQueueSize:   v.GetInt("VERIFY_QUEUE_SIZE"),
		VerifyRetries:     v.GetInt("VERIFY_RETRIES"),
	}

	cfg.Energy = EnergyConfig{
		BaseURL: v.GetString("ENERGY_STORE_BASE_URL"),
		APIID:   v.GetString("ENERGY_STORE_API_ID"),
		APIKey:  v.GetString("ENERGY_STORE_API_KEY"),
		Timeout: parseDuration(v.GetString("ENERGY_STORE_TIMEOUT"), 15*time.Second),
	}

	cfg.Notices = NoticesConfig{
		RecentLimit: v.GetInt("RECENT_NOTICES_LIMIT"),
	}

	return cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api")

	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "legal_notices")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)
	v.SetDefault("DB_AUTO_MIGRATE", false)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("ENABLE_CACHE", false)
	v.SetDefault("CACHE_TTL", "10m")

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_EXPIRATION", "12h")
	v.SetDefault("ADMIN_USERNAME", "admin")
	v.SetDefault("ADMIN_PASSWORD_HASH", "")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("TRON_NETWORK", "mainnet")
	v.SetDefault("TRON_RPC_URL", "")
	v.SetDefault("CONTRACT_ADDRESS", "")
	v.SetDefault("TRONGRID_API_KEY", "")
	v.SetDefault("SERVER_WALLET", "")
	v.SetDefault("FEE_COLLECTOR", "")
	v.SetDefault("CHAIN_CALL_TIMEOUT", "30s")
	v.SetDefault("CHAIN_RETRY_MAX_ELAPSED", "1m")

	v.SetDefault("IPFS_GATEWAY_URL", "https://gateway.pinata.cloud/ipfs/")
	v.SetDefault("PINATA_API_KEY", "")
	v.SetDefault("PINATA_SECRET_KEY", "")

	v.SetDefault("DISK_MOUNT_PATH", "/var/data/documents")
	v.SetDefault("DOCUMENT_STORAGE_PATH", "./uploads/documents")
	v.SetDefault("INLINE_THUMBNAIL_MAX_BYTES", 512*1024)
	v.SetDefault("MAX_UPLOAD_BYTES", 50*1024*1024)
	v.SetDefault("DOCUMENT_SIGNED_URLS", false)
	v.SetDefault("DOCUMENT_SIGNED_URL_SECRET", "dev_documents_secret")
	v.SetDefault("DOCUMENT_SIGNED_URL_TTL", "1h")

	v.SetDefault("ORPHAN_SWEEP_INTERVAL", "60s")
	v.SetDefault("ORPHAN_TTL", "24h")

	v.SetDefault("ENABLE_RECONCILER", false)
	v.SetDefault("RECONCILE_INTERVAL", "15m")
	v.SetDefault("RECONCILE_WORKERS", 4)
	v.SetDefault("RECONCILE_BLOCK_WINDOW", 28800)
	v.SetDefault("RECONCILE_ASSUME_ODD_EVEN", false)
	v.SetDefault("VERIFY_QUEUE_SIZE", 64)
	v.SetDefault("VERIFY_RETRIES", 3)

	v.SetDefault("ENERGY_STORE_BASE_URL", "https://api.tronenergy.market")
	v.SetDefault("ENERGY_STORE_API_ID", "")
	v.SetDefault("ENERGY_STORE_API_KEY", "")
	v.SetDefault("ENERGY_STORE_TIMEOUT", "15s")

	v.SetDefault("RECENT_NOTICES_LIMIT", 50)
}

// DefaultRPCURL returns the TronGrid Ethereum-compatible JSON-RPC endpoint for a network.
func DefaultRPCURL(network string) string {
	switch network {
	case "nile":
		return "https://nile.trongrid.io/jsonrpc"
	case "shasta":
		return "https://api.shasta.trongrid.io/jsonrpc"
	default:
		return "https://api.trongrid.io/jsonrpc"
	}
}

// isMissingFile reports an absent .env; SetConfigFile surfaces it as a path error.
func isMissingFile(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
