package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	Host        string
	Port        string
	DatabaseURL string
	CORSOrigin  string

	WelcomeMessage      string
	AutoResponseMessage string
	AutoResponseDelay   time.Duration
	AutoResponseMode    string // "static" or "openai"

	SessionSecret string
	SessionTTL    time.Duration
	BcryptCost    int
	SecureCookies bool

	OpenAIAPIKey string
	OpenAIModel  string

	LogLevel  string
	LogFormat string
}

// Load reads everything from the environment. Call godotenv.Load first.
func Load() Config {
	cfg := Config{
		Host:                os.Getenv("HOST"),
		Port:                envDefault("PORT", "3010"),
		DatabaseURL:         os.Getenv("DATABASE_URL"),
		CORSOrigin:          envDefault("CORS_ORIGIN", "*"),
		WelcomeMessage:      os.Getenv("WELCOME_MESSAGE"),
		AutoResponseMessage: os.Getenv("AUTO_RESPONSE_MESSAGE"),
		AutoResponseDelay:   time.Duration(envInt("AUTO_RESPONSE_DELAY_MS", 1000)) * time.Millisecond,
		AutoResponseMode:    envDefault("AUTO_RESPONSE_MODE", "static"),
		SessionSecret:       os.Getenv("SESSION_SECRET"),
		SessionTTL:          time.Duration(envInt("SESSION_MAX_AGE_HOURS", 30*24)) * time.Hour,
		BcryptCost:          envInt("BCRYPT_COST", 12),
		SecureCookies:       os.Getenv("ENV") == "production",
		OpenAIAPIKey:        os.Getenv("OPENAI_API_KEY"),
		OpenAIModel:         os.Getenv("OPENAI_MODEL"),
		LogLevel:            envDefault("LOG_LEVEL", "info"),
		LogFormat:           envDefault("LOG_FORMAT", "json"),
	}
	return cfg
}

func envDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}
