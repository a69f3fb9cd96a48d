// Package config loads relay configuration from environment variables.
package config

import (
	"log"
	"os"
	"strconv"
	"time"
)

// Config holds all runtime configuration values. Each field corresponds to
// an environment variable. The types reflect how the values are used in the
// application: strings for identifiers and secrets, durations for protocol
// windows.
type Config struct {
	Env            string        // application environment (e.g. "dev", "prod")
	Port           string        // HTTP/WebSocket port to listen on
	DBUser         string        // database username
	DBPass         string        // database password (optional)
	DBHost         string        // database host address
	DBPort         string        // database port number
	DBName         string        // database name
	JWTSecret      string        // secret used to sign guardian tokens
	AccessTTLMin   int           // guardian token time-to-live in minutes
	BcryptCost     int           // bcrypt cost for guardian password hashing
	PairingCodeTTL time.Duration // how long a pairing code stays redeemable
	RequestTimeout time.Duration // router window for a routed request's reply
	PairRateBurst  int           // token bucket size per client IP on the pairing API
	PairRateRefill time.Duration // one pairing-API token regained per interval
}

// Load reads configuration values from environment variables and returns a
// Config. Required variables are enforced by must() and missing values cause
// the program to exit with a fatal log message; protocol windows fall back
// to the defaults the original clients were built against (10 minute codes,
// 30 second request timeout).
func Load() Config {
	return Config{
		Env:            must("APP_ENV"),
		Port:           must("APP_PORT"),
		DBUser:         must("DB_USER"),
		DBPass:         os.Getenv("DB_PASS"), // empty allowed
		DBHost:         must("DB_HOST"),
		DBPort:         must("DB_PORT"),
		DBName:         must("DB_NAME"),
		JWTSecret:      must("JWT_SECRET"),
		AccessTTLMin:   envInt("ACCESS_TOKEN_TTL_MIN", 60),
		BcryptCost:     envInt("BCRYPT_COST", 12),
		PairingCodeTTL: envDur("PAIRING_CODE_TTL", 10*time.Minute),
		RequestTimeout: envDur("REQUEST_TIMEOUT", 30*time.Second),
		PairRateBurst:  envInt("PAIR_RATE_BURST", 10),
		PairRateRefill: envDur("PAIR_RATE_REFILL", 3*time.Second),
	}
}

// must retrieves the value of a required environment variable. If the
// variable is unset or empty, the application logs a fatal error and exits.
func must(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		log.Fatalf("missing required env var: %s", key)
	}
	return v
}

// envInt reads an integer variable, falling back to def when unset or
// unparsable.
func envInt(key string, def int) int {
	if s := os.Getenv(key); s != "" {
		if n, err := strconv.Atoi(s); err == nil {
			return n
		}
		log.Printf("config: invalid int for %s, using %d", key, def)
	}
	return def
}

// envDur reads a duration variable ("30s", "10m"), falling back to def.
func envDur(key string, def time.Duration) time.Duration {
	if s := os.Getenv(key); s != "" {
		if d, err := time.ParseDuration(s); err == nil && d > 0 {
			return d
		}
		log.Printf("config: invalid duration for %s, using %s", key, def)
	}
	return def
}
