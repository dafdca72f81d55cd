package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	ServerAddr  string
	Env         string
	CORSOrigins string

	DBHost     string
	DBPort     int
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string

	RedisAddr     string
	RedisPassword string

	JWTSecret  string
	CronSecret string

	AdminEmails []string
	AdminDomain string

	OpenAIKey   string
	OpenAIModel string

	AstroAPIURL     string
	AstroAPIKey     string
	AstroAPITimeout time.Duration

	QuotaFreeLimit    int
	QuotaPremiumLimit int
	QuotaPeriod       time.Duration

	JobBatchSize int
	JobRatePerS  float64
	CronMode     string
	CronSpecs    CronSpecs
}

// CronSpecs are the schedules used when the in-process scheduler runs the jobs.
type CronSpecs struct {
	QuotaReset    string
	DailyReadings string
	TransitAlerts string
}

func LoadConfig() *Config {
	godotenv.Load()

	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("PORT", ":8080")
	v.SetDefault("APP_ENV", "development")
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_NAME", "astropulse")
	v.SetDefault("DB_SSLMODE", "disable")
	v.SetDefault("REDIS_ADDR", "localhost:6379")
	v.SetDefault("OPENAI_MODEL", "gpt-4o-mini")
	v.SetDefault("ASTRO_API_TIMEOUT", "60s")
	v.SetDefault("QUOTA_FREE_LIMIT", 5)
	v.SetDefault("QUOTA_PREMIUM_LIMIT", 100)
	v.SetDefault("QUOTA_PERIOD", "720h")
	v.SetDefault("JOB_BATCH_SIZE", 50)
	v.SetDefault("JOB_RATE_PER_SECOND", 2.0)
	v.SetDefault("CRON_MODE", "external")
	v.SetDefault("CRON_QUOTA_RESET", "0 0 * * *")
	v.SetDefault("CRON_DAILY_READINGS", "0 5 * * *")
	v.SetDefault("CRON_TRANSIT_ALERTS", "30 5 * * *")

	addr := v.GetString("PORT")
	if !strings.Contains(addr, ":") {
		addr = ":" + addr
	}

	return &Config{
		ServerAddr:  addr,
		Env:         v.GetString("APP_ENV"),
		CORSOrigins: v.GetString("CORS_ORIGINS"),

		DBHost:     v.GetString("DB_HOST"),
		DBPort:     v.GetInt("DB_PORT"),
		DBUser:     v.GetString("DB_USER"),
		DBPassword: v.GetString("DB_PASS"),
		DBName:     v.GetString("DB_NAME"),
		DBSSLMode:  v.GetString("DB_SSLMODE"),

		RedisAddr:     v.GetString("REDIS_ADDR"),
		RedisPassword: v.GetString("REDIS_PASS"),

		JWTSecret:  v.GetString("JWT_SECRET"),
		CronSecret: v.GetString("CRON_SECRET"),

		AdminEmails: splitList(v.GetString("ADMIN_EMAILS")),
		AdminDomain: v.GetString("ADMIN_DOMAIN"),

		OpenAIKey:   v.GetString("OPENAI_API_KEY"),
		OpenAIModel: v.GetString("OPENAI_MODEL"),

		AstroAPIURL:     v.GetString("ASTRO_API_URL"),
		AstroAPIKey:     v.GetString("ASTRO_API_KEY"),
		AstroAPITimeout: v.GetDuration("ASTRO_API_TIMEOUT"),

		QuotaFreeLimit:    v.GetInt("QUOTA_FREE_LIMIT"),
		QuotaPremiumLimit: v.GetInt("QUOTA_PREMIUM_LIMIT"),
		QuotaPeriod:       v.GetDuration("QUOTA_PERIOD"),

		JobBatchSize: v.GetInt("JOB_BATCH_SIZE"),
		JobRatePerS:  v.GetFloat64("JOB_RATE_PER_SECOND"),
		CronMode:     v.GetString("CRON_MODE"),
		CronSpecs: CronSpecs{
			QuotaReset:    v.GetString("CRON_QUOTA_RESET"),
			DailyReadings: v.GetString("CRON_DAILY_READINGS"),
			TransitAlerts: v.GetString("CRON_TRANSIT_ALERTS"),
		},
	}
}

// DSN builds the postgres connection string.
func (c *Config) DSN() string {
	return fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%d sslmode=%s TimeZone=UTC",
		c.DBHost, c.DBUser, c.DBPassword, c.DBName, c.DBPort, c.DBSSLMode,
	)
}

// IsAdminEmail reports whether the email passes the admin allowlist or domain check.
func (c *Config) IsAdminEmail(email string) bool {
	email = strings.ToLower(strings.TrimSpace(email))
	for _, allowed := range c.AdminEmails {
		if strings.ToLower(allowed) == email {
			return true
		}
	}
	if c.AdminDomain != "" && strings.HasSuffix(email, "@"+strings.ToLower(c.AdminDomain)) {
		return true
	}
	return false
}

func splitList(s string) []string {
	if s = strings.TrimSpace(s); s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
