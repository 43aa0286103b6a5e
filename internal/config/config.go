package config

import (
	"os"
	"strconv"
	"strings"
)

type Config struct {
	Port string

	// Game defaults, exposed read-only at /api/config.
	RoomCount           int
	DefaultDuration     int // seconds
	DefaultFreeHints    int
	HintPenaltySeconds  int
	ObligatoryLanguages []string

	// Postgres. Empty DBHost means the in-memory store is used.
	DBHost     string
	DBPort     int
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string
}

func FromEnv() Config {
	c := Config{}
	c.Port = getenv("PORT", "3001")
	c.RoomCount = getint("ROOM_COUNT", 5)
	c.DefaultDuration = getint("DEFAULT_DURATION", 3600)
	c.DefaultFreeHints = getint("DEFAULT_FREE_HINTS", 3)
	c.HintPenaltySeconds = getint("HINT_PENALTY_SECONDS", 120)
	c.ObligatoryLanguages = strings.Split(getenv("OBLIGATORY_LANGUAGES", "es,en"), ",")
	c.DBHost = os.Getenv("DB_HOST")
	c.DBPort = getint("DB_PORT", 5432)
	c.DBUser = getenv("DB_USER", "postgres")
	c.DBPassword = getenv("DB_PASSWORD", "postgres")
	c.DBName = getenv("DB_NAME", "gamemaster")
	c.DBSSLMode = getenv("DB_SSLMODE", "disable")
	return c
}

// DSN returns the Postgres connection URL.
func (c Config) DSN() string {
	return "postgres://" + c.DBUser + ":" + c.DBPassword + "@" + c.DBHost + ":" +
		strconv.Itoa(c.DBPort) + "/" + c.DBName + "?sslmode=" + c.DBSSLMode
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getint(k string, def int) int {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}
