package config

import (
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"go.uber.org/fx"
)

// Config holds application configuration.
type Config struct {
	AppName     string
	AppVersion  string
	Environment string
	HTTPAddr    string

	OTLPEndpoint string

	DBType            string
	DBHost            string
	DBPort            string
	DBName            string
	DBUser            string
	DBPassword        string
	DBSSLMode         string
	DBMaxIdleConn     int
	DBMaxOpenConn     int
	DBConnMaxLifetime int

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Per-investor mutation throttling at the API boundary; disabled
	// when RedisAddr is empty.
	RateLimitEnabled bool
	MutationRate     float64
	MutationBurst    int
	MutationLockTTL  time.Duration

	// Policy defaults applied when creating equipment without an explicit split.
	DefaultInvestorPoolShareBps int64

	// Deposits left in awaiting_payment longer than this are expired by the
	// scheduler.
	DepositTTL time.Duration

	SeedDemoData bool
}

// Load reads configuration from the environment and an optional .env file.
func Load() Config {
	_ = godotenv.Load()

	v := viper.New()
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("APP_SERVICE", "benang")
	v.SetDefault("APP_VERSION", "0.1.0")
	v.SetDefault("ENVIRONMENT", "development")
	v.SetDefault("HTTP_ADDR", ":8080")
	v.SetDefault("OTLP_ENDPOINT", "localhost:4317")
	v.SetDefault("DATABASE_TYPE", "postgres")
	v.SetDefault("DATABASE_HOST", "localhost")
	v.SetDefault("DATABASE_PORT", "5432")
	v.SetDefault("DATABASE_NAME", "benang")
	v.SetDefault("DATABASE_USER", "postgres")
	v.SetDefault("DATABASE_PASSWORD", "")
	v.SetDefault("DATABASE_SSLMODE", "disable")
	v.SetDefault("DATABASE_MAX_IDLE_CONN", 5)
	v.SetDefault("DATABASE_MAX_OPEN_CONN", 25)
	v.SetDefault("DATABASE_CONN_MAX_LIFETIME", 300)
	v.SetDefault("REDIS_ADDR", "")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("RATE_LIMIT_ENABLED", false)
	v.SetDefault("MUTATION_RATE", 5.0)
	v.SetDefault("MUTATION_BURST", 10)
	v.SetDefault("MUTATION_LOCK_TTL", "10s")
	v.SetDefault("DEFAULT_INVESTOR_POOL_SHARE_BPS", 5000)
	v.SetDefault("DEPOSIT_TTL", "24h")
	v.SetDefault("SEED_DEMO_DATA", false)

	return Config{
		AppName:                     v.GetString("APP_SERVICE"),
		AppVersion:                  v.GetString("APP_VERSION"),
		Environment:                 v.GetString("ENVIRONMENT"),
		HTTPAddr:                    v.GetString("HTTP_ADDR"),
		OTLPEndpoint:                v.GetString("OTLP_ENDPOINT"),
		DBType:                      v.GetString("DATABASE_TYPE"),
		DBHost:                      v.GetString("DATABASE_HOST"),
		DBPort:                      v.GetString("DATABASE_PORT"),
		DBName:                      v.GetString("DATABASE_NAME"),
		DBUser:                      v.GetString("DATABASE_USER"),
		DBPassword:                  v.GetString("DATABASE_PASSWORD"),
		DBSSLMode:                   v.GetString("DATABASE_SSLMODE"),
		DBMaxIdleConn:               v.GetInt("DATABASE_MAX_IDLE_CONN"),
		DBMaxOpenConn:               v.GetInt("DATABASE_MAX_OPEN_CONN"),
		DBConnMaxLifetime:           v.GetInt("DATABASE_CONN_MAX_LIFETIME"),
		RedisAddr:                   strings.TrimSpace(v.GetString("REDIS_ADDR")),
		RedisPassword:               v.GetString("REDIS_PASSWORD"),
		RedisDB:                     v.GetInt("REDIS_DB"),
		RateLimitEnabled:            v.GetBool("RATE_LIMIT_ENABLED"),
		MutationRate:                v.GetFloat64("MUTATION_RATE"),
		MutationBurst:               v.GetInt("MUTATION_BURST"),
		MutationLockTTL:             v.GetDuration("MUTATION_LOCK_TTL"),
		DefaultInvestorPoolShareBps: v.GetInt64("DEFAULT_INVESTOR_POOL_SHARE_BPS"),
		DepositTTL:                  v.GetDuration("DEPOSIT_TTL"),
		SeedDemoData:                v.GetBool("SEED_DEMO_DATA"),
	}
}

// Module wires configuration loading.
var Module = fx.Module("config",
	fx.Provide(Load),
)
