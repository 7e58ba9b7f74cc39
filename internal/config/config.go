package config // package config loads application configuration from environment variables

import (
	"log"     // log is used to report configuration errors and halt execution
	"os"      // os provides access to environment variables
	"strconv" // strconv converts strings to other types
)

// Config holds the core runtime configuration. Each field corresponds to an
// environment variable. Optional subsystems (storage, chat store, broker)
// have their own loaders in this package.
type Config struct {
	Env             string // application environment (e.g. "dev", "prod")
	Port            string // HTTP port to listen on
	DBUser          string // database username
	DBPass          string // database password (optional)
	DBHost          string // database host address
	DBPort          string // database port number
	DBName          string // database name
	JWTSecret       string // secret used to sign user JWTs
	AccessTTLMin    int    // user access token time-to-live in minutes
	BcryptCost      int    // bcrypt cost for password hashing
	AdminSessionTTL int    // admin session lifetime in hours
	OTPTTLMin       int    // user login OTP lifetime in minutes
	LogLevel        string // logrus level name
	PublicBaseURL   string // base used to build payment redirect URLs
	PurgeInterval   int    // minutes between sweeps of expired sessions and OTPs
}

// Load reads configuration values from environment variables and returns a
// Config. Required variables are enforced by must() and missing values
// cause the program to exit with a fatal log message.
func Load() Config {
	return Config{
		Env:             must("APP_ENV"),
		Port:            must("APP_PORT"),
		DBUser:          must("DB_USER"),
		DBPass:          os.Getenv("DB_PASS"), // empty allowed
		DBHost:          must("DB_HOST"),
		DBPort:          must("DB_PORT"),
		DBName:          must("DB_NAME"),
		JWTSecret:       must("JWT_SECRET"),
		AccessTTLMin:    mustInt("ACCESS_TOKEN_TTL_MIN"),
		BcryptCost:      mustInt("BCRYPT_COST"),
		AdminSessionTTL: envInt("ADMIN_SESSION_TTL_HOURS", 24),
		OTPTTLMin:       envInt("OTP_TTL_MIN", 5),
		LogLevel:        envStr("LOG_LEVEL", "info"),
		PublicBaseURL:   envStr("PAYMENT_GATEWAY_URL", "https://paymentgateway.com/checkout"),
		PurgeInterval:   envInt("PURGE_INTERVAL_MIN", 15),
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

// mustInt is like must() but converts the retrieved string into an integer.
func mustInt(key string) int {
	s := must(key)
	n, err := strconv.Atoi(s)
	if err != nil {
		log.Fatalf("invalid int for %s: %q", key, s)
	}
	return n
}
