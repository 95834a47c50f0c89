package main

import (
	"errors"
	"fmt"
	"io/fs"
	"log"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config is read once at start-up from the environment (and ./.env).
type Config struct {
	Port          string
	DBDSN         string
	AutoMigrate   bool
	JWTSecret     string
	JWTTTL        time.Duration
	RefreshTTL    time.Duration
	OpenAIKey     string
	OpenAIModel   string
	OpenAIBaseURL string
	UploadRate    float64
	UploadBurst   int
	AdminEmail    string
	AdminPassword string
	StaticDir     string
	WatchDir      string
}

func loadConfig() (Config, error) {
	// variables already set in the environment win over .env
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Printf("warning: reading .env: %v", err)
	}
	v := viper.New()
	v.AutomaticEnv()
	v.SetDefault("PORT", "5000")
	v.SetDefault("DB_AUTO_MIGRATE", true)
	v.SetDefault("JWT_TTL", "24h")
	v.SetDefault("REFRESH_TTL", "720h")
	v.SetDefault("OPENAI_MODEL", "gpt-3.5-turbo")
	v.SetDefault("UPLOAD_RATE_PER_SEC", 1.0)
	v.SetDefault("UPLOAD_BURST", 5)

	cfg := Config{
		Port:          v.GetString("PORT"),
		DBDSN:         strings.TrimSpace(v.GetString("DB_DSN")),
		AutoMigrate:   v.GetBool("DB_AUTO_MIGRATE"),
		JWTSecret:     v.GetString("JWT_SECRET"),
		JWTTTL:        v.GetDuration("JWT_TTL"),
		RefreshTTL:    v.GetDuration("REFRESH_TTL"),
		OpenAIKey:     v.GetString("OPENAI_API_KEY"),
		OpenAIModel:   v.GetString("OPENAI_MODEL"),
		OpenAIBaseURL: v.GetString("OPENAI_BASE_URL"),
		UploadRate:    v.GetFloat64("UPLOAD_RATE_PER_SEC"),
		UploadBurst:   v.GetInt("UPLOAD_BURST"),
		AdminEmail:    v.GetString("ADMIN_EMAIL"),
		AdminPassword: v.GetString("ADMIN_PASSWORD"),
		StaticDir:     v.GetString("STATIC_DIR"),
		WatchDir:      v.GetString("WATCH_DIR"),
	}
	if cfg.JWTTTL <= 0 {
		return cfg, fmt.Errorf("JWT_TTL must be positive")
	}
	return cfg, nil
}

// require fails when any of the named settings is empty. There are no
// fallbacks for the database or the signing secret.
func (c Config) require(keys ...string) error {
	values := map[string]string{"DB_DSN": c.DBDSN, "JWT_SECRET": c.JWTSecret}
	var missing []string
	for _, k := range keys {
		if values[k] == "" {
			missing = append(missing, k)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required configuration: %s", strings.Join(missing, ", "))
	}
	return nil
}
