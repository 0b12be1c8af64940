// Package config loads runtime configuration from the environment, with an
// optional .env file for local development.
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all runtime configuration. Every field has a usable default
// except the AMQP URL and backup passphrase, whose absence disables the
// corresponding subsystem.
type Config struct {
	Port           string
	DBPath         string
	LogLevel       string
	LogFormat      string
	SessionTTL     time.Duration
	LoginRateLimit int
	LoginRateWin   time.Duration
	AMQPURL        string
	BackupDir      string
	BackupInterval time.Duration
	BackupPass     string
	BackupKeep     int
}

// Load reads configuration from the environment. A .env file, if present,
// fills in variables that are not already set.
func Load() Config {
	if envMap, err := godotenv.Read(); err == nil {
		for k, v := range envMap {
			if os.Getenv(k) == "" {
				os.Setenv(k, v)
			}
		}
	}

	return Config{
		Port:           getenv("PINGVI_PORT", "8080"),
		DBPath:         getenv("PINGVI_DB_PATH", "pingvi.db"),
		LogLevel:       getenv("PINGVI_LOG_LEVEL", "info"),
		LogFormat:      getenv("PINGVI_LOG_FORMAT", "text"),
		SessionTTL:     time.Duration(getenvInt("PINGVI_SESSION_TTL_DAYS", 30)) * 24 * time.Hour,
		LoginRateLimit: getenvInt("PINGVI_LOGIN_RATE_LIMIT", 10),
		LoginRateWin:   time.Duration(getenvInt("PINGVI_LOGIN_RATE_WINDOW_SEC", 60)) * time.Second,
		AMQPURL:        os.Getenv("PINGVI_AMQP_URL"),
		BackupDir:      getenv("PINGVI_BACKUP_DIR", "backups"),
		BackupInterval: time.Duration(getenvInt("PINGVI_BACKUP_INTERVAL_HOURS", 24)) * time.Hour,
		BackupPass:     os.Getenv("PINGVI_BACKUP_PASSPHRASE"),
		BackupKeep:     getenvInt("PINGVI_BACKUP_KEEP", 7),
	}
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getenvInt(key string, fallback int) int {
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
