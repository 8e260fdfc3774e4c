package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Port                    string `mapstructure:"PORT"`
	Env                     string `mapstructure:"ENV"`
	LogLevel                string `mapstructure:"LOG_LEVEL"`
	PostgresConnStr         string `mapstructure:"POSTGRES_CONN_STR"`
	MongoURI                string `mapstructure:"MONGO_URI"`
	MongoDatabase           string `mapstructure:"MONGO_DATABASE"`
	RedisAddr               string `mapstructure:"REDIS_ADDR"`
	RedisPassword           string `mapstructure:"REDIS_PASSWORD"`
	JWTSecret               string `mapstructure:"JWT_SECRET"`
	FirebaseCredentialsPath string `mapstructure:"FIREBASE_CREDENTIALS_PATH"`
	ClientURL               string `mapstructure:"CLIENT_URL"`

	SMTPHost       string `mapstructure:"SMTP_HOST"`
	SMTPPort       int    `mapstructure:"SMTP_PORT"`
	SMTPUsername   string `mapstructure:"SMTP_USERNAME"`
	SMTPPassword   string `mapstructure:"SMTP_PASSWORD"`
	SMTPFrom       string `mapstructure:"SMTP_FROM"`
	EmailPerMinute int    `mapstructure:"EMAIL_PER_MINUTE"`

	DispatchWorkers   int `mapstructure:"DISPATCH_WORKERS"`
	DispatchQueueSize int `mapstructure:"DISPATCH_QUEUE_SIZE"`

	EarlyAdopterCutoff string `mapstructure:"EARLY_ADOPTER_CUTOFF"`

	SweepReminderCron  string `mapstructure:"SWEEP_REMINDER_CRON"`
	SweepCleanupCron   string `mapstructure:"SWEEP_CLEANUP_CRON"`
	SweepReconcileCron string `mapstructure:"SWEEP_RECONCILE_CRON"`
	Timezone           string `mapstructure:"TIMEZONE"`
}

var defaults = map[string]interface{}{
	"PORT":                      "8080",
	"ENV":                       "development",
	"LOG_LEVEL":                 "info",
	"POSTGRES_CONN_STR":         "",
	"MONGO_URI":                 "",
	"MONGO_DATABASE":            "campushub",
	"REDIS_ADDR":                "",
	"REDIS_PASSWORD":            "",
	"JWT_SECRET":                "",
	"FIREBASE_CREDENTIALS_PATH": "",
	"CLIENT_URL":                "http://localhost:3000",
	"SMTP_HOST":                 "",
	"SMTP_PORT":                 587,
	"SMTP_USERNAME":             "",
	"SMTP_PASSWORD":             "",
	"SMTP_FROM":                 "",
	"EMAIL_PER_MINUTE":          60,
	"DISPATCH_WORKERS":          4,
	"DISPATCH_QUEUE_SIZE":       256,
	"EARLY_ADOPTER_CUTOFF":      "2026-03-01",
	"SWEEP_REMINDER_CRON":       "0 10 * * *",
	"SWEEP_CLEANUP_CRON":        "0 0 * * *",
	"SWEEP_RECONCILE_CRON":      "*/30 * * * *",
	"TIMEZONE":                  "",
}

// Load reads an optional .env file, then the environment, falling back to defaults.
func Load() (*Config, error) {
	_ = godotenv.Load()
	return load(viper.New())
}

func load(v *viper.Viper) (*Config, error) {
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.ClientURL = strings.TrimRight(cfg.ClientURL, "/")

	if _, err := cfg.Cutoff(); err != nil {
		return nil, err
	}
	if cfg.Env == "production" && cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET must be set in production")
	}
	return &cfg, nil
}

// Cutoff parses EARLY_ADOPTER_CUTOFF.
func (c *Config) Cutoff() (time.Time, error) {
	t, err := time.Parse("2006-01-02", c.EarlyAdopterCutoff)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid EARLY_ADOPTER_CUTOFF %q: %w", c.EarlyAdopterCutoff, err)
	}
	return t, nil
}

func (c *Config) IsProduction() bool {
	return c.Env == "production"
}
