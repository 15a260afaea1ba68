package config

import (
	"log"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration values.
type Config struct {
	AppPort           string `mapstructure:"APP_PORT"`
	Env               string `mapstructure:"ENV"`
	LogLevel          string `mapstructure:"LOG_LEVEL"`
	Timezone          string `mapstructure:"TIMEZONE"`
	JWTSecret         string `mapstructure:"JWT_SECRET"`
	MaxRequestsPerMin int    `mapstructure:"MAX_REQUESTS_PER_MIN"`

	// MongoDB configuration.
	DatabaseURL       string `mapstructure:"DATABASE_URL"`
	DatabaseName      string `mapstructure:"DATABASE_NAME"`
	MongoTransactions string `mapstructure:"MONGO_TRANSACTIONS"` // auto, on or off
	TxMaxAttempts     int    `mapstructure:"TX_MAX_ATTEMPTS"`

	// Redis configuration.
	RedisAddr       string `mapstructure:"REDIS_ADDR"`
	RedisPassword   string `mapstructure:"REDIS_PASSWORD"`
	RedisCacheDB    int    `mapstructure:"REDIS_CACHE_DB"`
	RedisSequenceDB int    `mapstructure:"REDIS_SEQUENCE_DB"`
	RedisQueueDB    int    `mapstructure:"REDIS_QUEUE_DB"`

	SchoolCacheTTL         time.Duration `mapstructure:"SCHOOL_CACHE_TTL"`
	ReceiptSequenceTimeout time.Duration `mapstructure:"RECEIPT_SEQUENCE_TIMEOUT"`
	IncomeBookingMode      string        `mapstructure:"INCOME_BOOKING_MODE"` // function or direct

	// Outbox drain.
	OutboxSweepInterval time.Duration `mapstructure:"OUTBOX_SWEEP_INTERVAL"`
	OutboxMaxAttempts   int           `mapstructure:"OUTBOX_MAX_ATTEMPTS"`
	OutboxRetryBase     time.Duration `mapstructure:"OUTBOX_RETRY_BASE"`
	OutboxInlineGrace   time.Duration `mapstructure:"OUTBOX_INLINE_GRACE"`
	OutboxLease         time.Duration `mapstructure:"OUTBOX_LEASE"`

	// Guardian push notifications; empty disables them.
	FirebaseCredentialsFile string `mapstructure:"FIREBASE_CREDENTIALS_FILE"`
}

var AppConfig Config

func LoadConfig() {
	// Look for a config file named "config.yaml" in the current and "config" directory.
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	// Automatically use environment variables where available.
	viper.AutomaticEnv()

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		log.Println("No config file found, using environment variables only")
	}

	if err := viper.Unmarshal(&AppConfig); err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
}

func setDefaults() {
	viper.SetDefault("APP_PORT", "8080")
	viper.SetDefault("ENV", "development")
	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("TIMEZONE", "Africa/Kampala")
	viper.SetDefault("JWT_SECRET", "")
	viper.SetDefault("MAX_REQUESTS_PER_MIN", 100)

	viper.SetDefault("DATABASE_URL", "mongodb://localhost:27017")
	viper.SetDefault("DATABASE_NAME", "schoolfees")
	viper.SetDefault("MONGO_TRANSACTIONS", "auto")
	viper.SetDefault("TX_MAX_ATTEMPTS", 3)

	viper.SetDefault("REDIS_ADDR", "localhost:6379")
	viper.SetDefault("REDIS_PASSWORD", "")
	viper.SetDefault("REDIS_CACHE_DB", 0)
	viper.SetDefault("REDIS_SEQUENCE_DB", 1)
	viper.SetDefault("REDIS_QUEUE_DB", 2)

	viper.SetDefault("SCHOOL_CACHE_TTL", time.Hour)
	viper.SetDefault("RECEIPT_SEQUENCE_TIMEOUT", 2*time.Second)
	viper.SetDefault("INCOME_BOOKING_MODE", "function")

	viper.SetDefault("OUTBOX_SWEEP_INTERVAL", 15*time.Second)
	viper.SetDefault("OUTBOX_MAX_ATTEMPTS", 8)
	viper.SetDefault("OUTBOX_RETRY_BASE", 10*time.Second)
	viper.SetDefault("OUTBOX_INLINE_GRACE", 30*time.Second)
	viper.SetDefault("OUTBOX_LEASE", 2*time.Minute)

	viper.SetDefault("FIREBASE_CREDENTIALS_FILE", "")
}

func GetEnv() string {
	return AppConfig.Env
}

func IsProduction() bool {
	return GetEnv() == "production"
}
