package config

import (
	"errors"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	Port              int
	DatabasePath      string
	BasicAuthUsername string
	BasicAuthPassword string
	FirmwarePath      string // Szablon firmware z markerami obrazu
	FontsDirectory    string
	DefaultFont       string
	LogDirectory      string
	LogBufferSize     int // Ile ostatnich wpisów trzymać w pamięci dla /admin/api/logs
	MaxUploadSize     int64
}

// Load reads .env (if present) and then the process environment.
func Load() *Config {
	// Brak pliku .env nie jest błędem
	_ = godotenv.Load()

	return &Config{
		Port:              getEnvAsInt("PORT", 8080),
		DatabasePath:      getEnv("DATABASE_PATH", filepath.Join(".", "data", "badges.db")),
		BasicAuthUsername: getEnv("WORK_BASIC_AUTH_USERNAME", ""),
		BasicAuthPassword: getEnv("WORK_BASIC_AUTH_PASSWORD", ""),
		FirmwarePath:      getEnv("FIRMWARE_PATH", filepath.Join(".", "static", "firmware", "default.bin")),
		FontsDirectory:    getEnv("FONTS_DIR", filepath.Join(".", "static", "fonts")),
		DefaultFont:       getEnv("DEFAULT_FONT", "Awkward.ttf"),
		LogDirectory:      getEnv("LOG_DIR", filepath.Join(".", "logs")),
		LogBufferSize:     getEnvAsInt("LOG_BUFFER_SIZE", 1000),
		MaxUploadSize:     getEnvAsInt64("MAX_UPLOAD_SIZE", 10<<20),
	}
}

// Validate reports missing settings the server cannot run without.
func (c *Config) Validate() error {
	if c.BasicAuthUsername == "" || c.BasicAuthPassword == "" {
		return errors.New("WORK_BASIC_AUTH_USERNAME and WORK_BASIC_AUTH_PASSWORD environment variables are required")
	}
	if c.DatabasePath == "" {
		return errors.New("DATABASE_PATH must not be empty")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}
