package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
	_ "time/tzdata"
)

type Config struct {
	Env  string
	Port string

	RedisURL  string
	RedisPass string
	RedisDB   int

	JWTSecret string
	JWTTTL    time.Duration

	AdminHandle      string
	AdminSeedBalance int64

	// Civil timezone the market runs in.
	Timezone string

	MinStake         int64
	MaxStake         int64
	PayoutMultiplier int64

	BetRateLimit    int
	BetRateWindow   time.Duration
	AdminRateLimit  int
	AdminRateWindow time.Duration

	RetryAttempts    int
	RetryMinInterval time.Duration
	RetryMaxInterval time.Duration

	KafkaBrokers          string
	KafkaTopicWagers      string
	KafkaTopicSettlements string

	LogLevel string
}

// Load reads the configuration from the environment. Callers load .env first.
func Load() (*Config, error) {
	cfg := &Config{
		Env:  getEnv("ENV", "local"),
		Port: getEnv("PORT", "8080"),

		RedisURL:  getEnv("REDIS_URL", "localhost:6379"),
		RedisPass: getEnv("REDIS_PASSWORD", ""),

		JWTSecret:   getEnv("JWT_SECRET", ""),
		AdminHandle: getEnv("ADMIN_HANDLE", "admin"),
		Timezone:    getEnv("MARKET_TIMEZONE", "Asia/Yangon"),

		KafkaBrokers:          getEnv("KAFKA_BROKERS", ""),
		KafkaTopicWagers:      getEnv("KAFKA_TOPIC_WAGERS", "twod.wagers"),
		KafkaTopicSettlements: getEnv("KAFKA_TOPIC_SETTLEMENTS", "twod.settlements"),

		LogLevel: getEnv("LOG_LEVEL", "info"),
	}

	var err error
	if cfg.RedisDB, err = getInt("REDIS_DB", 0); err != nil {
		return nil, err
	}
	if cfg.JWTTTL, err = getDuration("JWT_TTL", 24*time.Hour); err != nil {
		return nil, err
	}
	if cfg.AdminSeedBalance, err = getInt64("ADMIN_SEED_BALANCE", 1000000); err != nil {
		return nil, err
	}
	if cfg.MinStake, err = getInt64("MIN_STAKE", 100); err != nil {
		return nil, err
	}
	if cfg.MaxStake, err = getInt64("MAX_STAKE", 100000); err != nil {
		return nil, err
	}
	if cfg.PayoutMultiplier, err = getInt64("PAYOUT_MULTIPLIER", 80); err != nil {
		return nil, err
	}
	if cfg.BetRateLimit, err = getInt("BET_RATE_LIMIT", 10); err != nil {
		return nil, err
	}
	if cfg.BetRateWindow, err = getDuration("BET_RATE_WINDOW", time.Minute); err != nil {
		return nil, err
	}
	if cfg.AdminRateLimit, err = getInt("ADMIN_RATE_LIMIT", 60); err != nil {
		return nil, err
	}
	if cfg.AdminRateWindow, err = getDuration("ADMIN_RATE_WINDOW", time.Minute); err != nil {
		return nil, err
	}
	if cfg.RetryAttempts, err = getInt("RETRY_ATTEMPTS", 5); err != nil {
		return nil, err
	}
	if cfg.RetryMinInterval, err = getDuration("RETRY_MIN_INTERVAL", 10*time.Millisecond); err != nil {
		return nil, err
	}
	if cfg.RetryMaxInterval, err = getDuration("RETRY_MAX_INTERVAL", 250*time.Millisecond); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Env == "production" && c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required in production")
	}
	if c.MinStake <= 0 {
		return fmt.Errorf("MIN_STAKE must be positive, got %d", c.MinStake)
	}
	if c.MaxStake < c.MinStake {
		return fmt.Errorf("MAX_STAKE (%d) is below MIN_STAKE (%d)", c.MaxStake, c.MinStake)
	}
	if c.PayoutMultiplier <= 0 {
		return fmt.Errorf("PAYOUT_MULTIPLIER must be positive, got %d", c.PayoutMultiplier)
	}
	if c.BetRateLimit <= 0 || c.AdminRateLimit <= 0 {
		return fmt.Errorf("rate limits must be positive")
	}
	if c.BetRateWindow <= 0 || c.AdminRateWindow <= 0 {
		return fmt.Errorf("rate limit windows must be positive")
	}
	if c.RetryAttempts <= 0 {
		return fmt.Errorf("RETRY_ATTEMPTS must be positive, got %d", c.RetryAttempts)
	}
	if c.AdminSeedBalance < 0 {
		return fmt.Errorf("ADMIN_SEED_BALANCE must not be negative")
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("unknown MARKET_TIMEZONE %q: %v", c.Timezone, err)
	}
	return nil
}

// Location returns the market timezone. Yangon has no DST, so the fixed
// offset is an exact fallback.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.FixedZone("MMT", 6*3600+30*60)
	}
	return loc
}

func getEnv(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}

func getInt(key string, def int) (int, error) {
	v := getEnv(key, "")
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %v", key, err)
	}
	return n, nil
}

func getInt64(key string, def int64) (int64, error) {
	v := getEnv(key, "")
	if v == "" {
		return def, nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %v", key, err)
	}
	return n, nil
}

func getDuration(key string, def time.Duration) (time.Duration, error) {
	v := getEnv(key, "")
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %v", key, err)
	}
	return d, nil
}
