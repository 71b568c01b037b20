package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Config holds all application configuration loaded from the environment.
type Config struct {
	Port        string
	Environment string

	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string

	RedisAddr     string
	RedisPassword string

	JWTSecret            string
	JWTExpiration        time.Duration
	JWTRefreshExpiration time.Duration

	AdminUsername string
	AdminEmail    string
	AdminPassword string

	SlackWebhookURL string
	SlackEnabled    bool

	AnalyzerScheduleTime string

	SECTickersURL   string
	SECUserAgent    string
	NasdaqURL       string
	YahooChartURL   string
	ProviderTimeout time.Duration
	ProviderRetries int

	MongoURI string
}

var AppConfig *Config
var DB *gorm.DB

// LoadConfig loads environment variables into the global config
func LoadConfig() (*Config, error) {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	config := &Config{
		Port:        getEnv("PORT", "8080"),
		Environment: getEnv("ENVIRONMENT", "development"),

		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnv("DB_PORT", "5432"),
		DBUser:     getEnv("DB_USER", "postgres"),
		DBPassword: getEnv("DB_PASSWORD", ""),
		DBName:     getEnv("DB_NAME", "quantpulse"),
		DBSSLMode:  getEnv("DB_SSLMODE", "disable"),

		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),

		JWTSecret:            getEnv("JWT_SECRET", "dev-secret-change-me"),
		JWTExpiration:        getEnvDuration("JWT_EXPIRATION", 24*time.Hour),
		JWTRefreshExpiration: getEnvDuration("JWT_REFRESH_EXPIRATION", 30*24*time.Hour),

		AdminUsername: getEnv("ADMIN_USERNAME", "admin"),
		AdminEmail:    getEnv("ADMIN_EMAIL", "admin@quantpulse.local"),
		AdminPassword: getEnv("ADMIN_PASSWORD", ""),

		SlackWebhookURL: getEnv("SLACK_WEBHOOK_URL", ""),
		SlackEnabled:    getEnvBool("SLACK_ENABLED", false),

		AnalyzerScheduleTime: getEnv("ANALYZER_SCHEDULE_TIME", "02:00"),

		SECTickersURL:   getEnv("SEC_TICKERS_URL", "https://www.sec.gov/files/company_tickers.json"),
		SECUserAgent:    getEnv("SEC_USER_AGENT", ""),
		NasdaqURL:       getEnv("NASDAQ_URL", "https://www.nasdaqtrader.com/dynamic/symdir/nasdaqlisted.txt"),
		YahooChartURL:   getEnv("YAHOO_CHART_URL", "https://query1.finance.yahoo.com/v8/finance/chart"),
		ProviderTimeout: getEnvDuration("PROVIDER_TIMEOUT", 30*time.Second),
		ProviderRetries: getEnvInt("PROVIDER_RETRIES", 3),

		MongoURI: getEnv("MONGODB_URI", ""),
	}

	AppConfig = config
	return config, nil
}

// Get returns the loaded configuration, loading it on first use.
func Get() *Config {
	if AppConfig == nil {
		if _, err := LoadConfig(); err != nil {
			log.Fatalf("Failed to load configuration: %v", err)
		}
	}
	return AppConfig
}

// InitDB initializes the database connection
func InitDB() (*gorm.DB, error) {
	cfg := Get()

	log.Printf("Connecting to database: host=%s port=%s user=%s dbname=%s",
		maskHost(cfg.DBHost),
		cfg.DBPort,
		cfg.DBUser,
		cfg.DBName,
	)

	dsn := fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%s sslmode=%s TimeZone=UTC",
		cfg.DBHost,
		cfg.DBUser,
		cfg.DBPassword,
		cfg.DBName,
		cfg.DBPort,
		cfg.DBSSLMode,
	)

	var logLevel logger.LogLevel
	if cfg.Environment == "production" {
		logLevel = logger.Error
	} else {
		logLevel = logger.Warn
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logLevel),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Verify connection with ping
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("database ping failed: %w", err)
	}

	DB = db
	return db, nil
}

// maskHost masks host for logging, preserving domain structure
func maskHost(host string) string {
	if len(host) <= 3 {
		return "***"
	}
	if len(host) <= 15 {
		return host[:3] + "***"
	}
	return host[:8] + "***" + host[len(host)-10:]
}

// getEnv gets an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		log.Printf("Warning: invalid boolean for %s: %q, using default", key, value)
		return defaultValue
	}
	return parsed
}

func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		log.Printf("Warning: invalid integer for %s: %q, using default", key, value)
		return defaultValue
	}
	return parsed
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		log.Printf("Warning: invalid duration for %s: %q, using default", key, value)
		return defaultValue
	}
	return parsed
}
