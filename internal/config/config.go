package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	BotToken string

	AdminUserID  int64
	AdminGroupID int64

	SheetsID        string
	SheetName       string
	CredentialsPath string

	DatabaseDriver string
	DatabasePath   string
	DBUser         string
	DBPassword     string
	DBName         string
	DBHost         string
	DBPort         string

	RedisAddr     string
	RedisPassword string

	ReferralBaseURL string
	SupportUsername string

	SheetsTimeout     time.Duration
	BalanceCacheTTL   time.Duration
	ReconcileInterval time.Duration
}

func LoadConfig() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	return &Config{
		BotToken: getEnv("BOT_TOKEN", ""),

		AdminUserID:  getEnvInt64("ADMIN_USER_ID", 0),
		AdminGroupID: getEnvInt64("ADMIN_GROUP_ID", 0),

		SheetsID:        getEnv("SHEETS_ID", ""),
		SheetName:       getEnv("SHEET_NAME", "Лист1"),
		CredentialsPath: getEnv("CREDENTIALS_PATH", "credentials.json"),

		DatabaseDriver: getEnv("DATABASE_DRIVER", "sqlite"),
		DatabasePath:   getEnv("DATABASE_PATH", "users.db"),
		DBUser:         getEnv("DB_USER", "postgres"),
		DBPassword:     getEnv("DB_PASSWORD", "postgres"),
		DBName:         getEnv("DB_NAME", "lethai_bot"),
		DBHost:         getEnv("DB_HOST", "localhost"),
		DBPort:         getEnv("DB_PORT", "5432"),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),

		ReferralBaseURL: getEnv("REFERRAL_BASE_URL", "https://taplink.cc/lakeevainfo"),
		SupportUsername: getEnv("SUPPORT_USERNAME", "@LakeevaaaThai"),

		SheetsTimeout:     getEnvDuration("SHEETS_TIMEOUT", 10*time.Second),
		BalanceCacheTTL:   getEnvDuration("BALANCE_CACHE_TTL", time.Minute),
		ReconcileInterval: getEnvDuration("RECONCILE_INTERVAL", 5*time.Minute),
	}
}

// Validate reports missing settings the bot cannot run without.
func (c *Config) Validate() []string {
	var errs []string
	if c.BotToken == "" {
		errs = append(errs, "BOT_TOKEN is required")
	}
	if c.SheetsID == "" {
		errs = append(errs, "SHEETS_ID is required")
	}
	if c.AdminUserID == 0 {
		errs = append(errs, "ADMIN_USER_ID is required")
	}
	if c.AdminGroupID == 0 {
		errs = append(errs, "ADMIN_GROUP_ID is required")
	}
	return errs
}

func (c *Config) IsAdmin(userID int64) bool {
	return userID == c.AdminUserID
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvInt64(key string, fallback int64) int64 {
	if value, exists := os.LookupEnv(key); exists {
		if parsed, err := strconv.ParseInt(value, 10, 64); err == nil {
			return parsed
		}
		log.Printf("Invalid integer for %s: %q, using default", key, value)
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
		log.Printf("Invalid duration for %s: %q, using default", key, value)
	}
	return fallback
}
