package config

import (
	"os"
	"strconv"
	"strings"
)

// Config представляет конфигурацию приложения
type Config struct {
	Server    ServerConfig    `json:"server"`
	Database  DatabaseConfig  `json:"database"`
	Redis     RedisConfig     `json:"redis"`
	Kafka     KafkaConfig     `json:"kafka"`
	Logger    LoggerConfig    `json:"logger"`
	Auth      AuthConfig      `json:"auth"`
	Pricing   PricingConfig   `json:"pricing"`
	Cart      CartConfig      `json:"cart"`
	Coupon    CouponConfig    `json:"coupon"`
	RateLimit RateLimitConfig `json:"rate_limit"`
}

// ServerConfig представляет конфигурацию HTTP сервера
type ServerConfig struct {
	Port         string `json:"port"`
	Host         string `json:"host"`
	ReadTimeout  int    `json:"read_timeout"`
	WriteTimeout int    `json:"write_timeout"`
}

// DatabaseConfig представляет конфигурацию базы данных
type DatabaseConfig struct {
	Host          string `json:"host"`
	Port          string `json:"port"`
	User          string `json:"user"`
	Password      string `json:"password"`
	DBName        string `json:"db_name"`
	SSLMode       string `json:"ssl_mode"`
	MaxOpenConns  int    `json:"max_open_conns"`
	RunMigrations bool   `json:"run_migrations"`
}

// RedisConfig представляет конфигурацию Redis
type RedisConfig struct {
	Host     string `json:"host"`
	Port     string `json:"port"`
	Password string `json:"password"`
	DB       int    `json:"db"`
}

// KafkaConfig представляет конфигурацию Kafka
type KafkaConfig struct {
	Brokers []string `json:"brokers"`
	GroupID string   `json:"group_id"`
	Topics  Topics   `json:"topics"`
}

// Topics представляет список топиков Kafka
type Topics struct {
	Carts    string `json:"carts"`
	Coupons  string `json:"coupons"`
	Payments string `json:"payments"`
}

// LoggerConfig представляет конфигурацию логгера
type LoggerConfig struct {
	Level  string `json:"level"`
	Format string `json:"format"`
	File   string `json:"file"`
}

// AuthConfig описывает проверку bearer-токенов
type AuthConfig struct {
	JWTSecret string `json:"-"`
	Issuer    string `json:"issuer"`
}

// PricingConfig хранит параметры округления базовой валюты
type PricingConfig struct {
	Currency  string `json:"currency"`
	Precision int    `json:"precision"` // знаков после запятой в базовой валюте
}

// CartConfig описывает жизненный цикл корзины
type CartConfig struct {
	TTLHours             int `json:"ttl_hours"`
	SweepIntervalSeconds int `json:"sweep_interval_seconds"`
}

// CouponConfig хранит настройки кеша купонов
type CouponConfig struct {
	CacheTTLSeconds int `json:"cache_ttl_seconds"`
}

// RateLimitConfig описывает настройки rate limiting
type RateLimitConfig struct {
	Enabled        bool   `json:"enabled"`
	Requests       int    `json:"requests"`
	CouponAttempts int    `json:"coupon_attempts"`
	WindowSeconds  int    `json:"window_seconds"`
	KeyPrefix      string `json:"key_prefix"`
}

// Load загружает конфигурацию из переменных окружения
func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         getEnv("SERVER_PORT", "8080"),
			Host:         getEnv("SERVER_HOST", "0.0.0.0"),
			ReadTimeout:  getEnvAsInt("SERVER_READ_TIMEOUT", 10),
			WriteTimeout: getEnvAsInt("SERVER_WRITE_TIMEOUT", 10),
		},
		Database: DatabaseConfig{
			Host:          getEnv("DB_HOST", "localhost"),
			Port:          getEnv("DB_PORT", "5432"),
			User:          getEnv("DB_USER", "bookstore_user"),
			Password:      getEnv("DB_PASSWORD", "bookstore_pass"),
			DBName:        getEnv("DB_NAME", "bookstore"),
			SSLMode:       getEnv("DB_SSL_MODE", "disable"),
			MaxOpenConns:  getEnvAsInt("DB_MAX_OPEN_CONNS", 25),
			RunMigrations: getEnvAsBool("DB_RUN_MIGRATIONS", true),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		Kafka: KafkaConfig{
			Brokers: strings.Split(getEnv("KAFKA_BROKERS", "localhost:9092"), ","),
			GroupID: getEnv("KAFKA_GROUP_ID", "bookstore-cart"),
			Topics: Topics{
				Carts:    getEnv("KAFKA_TOPIC_CARTS", "carts"),
				Coupons:  getEnv("KAFKA_TOPIC_COUPONS", "coupons"),
				Payments: getEnv("KAFKA_TOPIC_PAYMENTS", "payments"),
			},
		},
		Logger: LoggerConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
			File:   getEnv("LOG_FILE", ""),
		},
		Auth: AuthConfig{
			JWTSecret: getEnv("AUTH_JWT_SECRET", "change-me"),
			Issuer:    getEnv("AUTH_JWT_ISSUER", ""),
		},
		Pricing: PricingConfig{
			Currency:  getEnv("PRICING_CURRENCY", "VND"),
			Precision: getEnvAsInt("PRICING_PRECISION", 0),
		},
		Cart: CartConfig{
			TTLHours:             getEnvAsInt("CART_TTL_HOURS", 7*24),
			SweepIntervalSeconds: getEnvAsInt("CART_SWEEP_INTERVAL_SECONDS", 600),
		},
		Coupon: CouponConfig{
			CacheTTLSeconds: getEnvAsInt("COUPON_CACHE_TTL_SECONDS", 60),
		},
		RateLimit: RateLimitConfig{
			Enabled:        getEnvAsBool("RATE_LIMIT_ENABLED", false),
			Requests:       getEnvAsInt("RATE_LIMIT_REQUESTS", 100),
			CouponAttempts: getEnvAsInt("RATE_LIMIT_COUPON_ATTEMPTS", 10),
			WindowSeconds:  getEnvAsInt("RATE_LIMIT_WINDOW_SECONDS", 60),
			KeyPrefix:      getEnv("RATE_LIMIT_KEY_PREFIX", "ratelimit"),
		},
	}
}

// getEnv получает значение переменной окружения с значением по умолчанию
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

// getEnvAsInt получает значение переменной окружения как int с значением по умолчанию
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsBool получает значение переменной окружения как bool с значением по умолчанию
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := strings.ToLower(getEnv(key, ""))
	if valueStr == "true" || valueStr == "1" || valueStr == "yes" {
		return true
	}
	if valueStr == "false" || valueStr == "0" || valueStr == "no" {
		return false
	}
	return defaultValue
}
