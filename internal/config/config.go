package config

import "os"

// Config holds all runtime settings, loaded from the environment.
type Config struct {
	DatabaseURL    string
	RedisAddr      string
	RedisPassword  string
	JWTSecret      string
	ServerPort     string
	AllowedOrigins string
}

// Load reads configuration from environment variables, applying defaults
// where a setting is optional.
func Load() Config {
	return Config{
		DatabaseURL:    os.Getenv("DATABASE_URL"),
		RedisAddr:      getEnv("REDIS_ADDR", ""),
		RedisPassword:  getEnv("REDIS_PASSWORD", ""),
		JWTSecret:      getEnv("JWT_SECRET", "dev-secret-change-me"),
		ServerPort:     getEnv("SERVER_PORT", "8080"),
		AllowedOrigins: getEnv("ALLOWED_ORIGINS", ""),
	}
}

// Address returns the listen address for the HTTP server.
func (c Config) Address() string {
	return ":" + c.ServerPort
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
