package config // package config loads application configuration from environment variables

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all runtime configuration values.  Each field corresponds to
// an environment variable.  Sub-configs for the payment provider, cache, rate
// limiter and broker live in their own files and are loaded here so callers
// only ever deal with one value.
type Config struct {
	Env           string // application environment (e.g. "dev", "prod")
	Port          string // HTTP port to listen on
	LogLevel      string // zap level name (debug, info, warn, error)
	DBUser        string // database username
	DBPass        string // database password (optional)
	DBHost        string // database host address
	DBPort        string // database port number
	DBName        string // database name
	JWTSecret     string // secret used to sign JWTs
	JWTIssuer     string // iss claim written into admin tokens
	TokenTTLDays  int    // admin token lifetime in days
	BcryptCost    int    // bcrypt cost for password hashing
	ClientOrigin  string // origin of the SPA, target of provider return redirects
	PublicBaseURL string // externally reachable base URL of this API
	UploadsDir    string // directory for uploaded experience images

	Webpay    WebpayConfig
	Cache     CacheConfig
	RateLimit RateLimitConfig
	Broker    BrokerConfig
	Pending   PendingConfig
}

// Load reads an optional .env file and then builds a Config from the
// environment.  Missing required variables are reported as a single error
// listing every missing key.
func Load() (Config, error) {
	// .env is optional; real deployments inject variables directly.
	_ = godotenv.Load()

	var missing []string
	must := func(key string) string {
		v, ok := os.LookupEnv(key)
		if !ok || strings.TrimSpace(v) == "" {
			missing = append(missing, key)
		}
		return v
	}

	cfg := Config{
		Env:           envStr("APP_ENV", "dev"),
		Port:          envStr("APP_PORT", "8080"),
		LogLevel:      envStr("LOG_LEVEL", "info"),
		DBUser:        must("DB_USER"),
		DBPass:        os.Getenv("DB_PASS"),
		DBHost:        must("DB_HOST"),
		DBPort:        envStr("DB_PORT", "3306"),
		DBName:        must("DB_NAME"),
		JWTSecret:     must("JWT_SECRET"),
		JWTIssuer:     envStr("JWT_ISSUER", "altamontana-api"),
		TokenTTLDays:  envInt("TOKEN_TTL_DAYS", 7),
		BcryptCost:    envInt("BCRYPT_COST", 11),
		ClientOrigin:  strings.TrimRight(must("CLIENT_ORIGIN"), "/"),
		PublicBaseURL: strings.TrimRight(must("PUBLIC_BASE_URL"), "/"),
		UploadsDir:    envStr("UPLOADS_DIR", "uploads"),
		Webpay:        LoadWebpayConfig(),
		Cache:         LoadCacheConfig(),
		RateLimit:     LoadRateLimitConfig(),
		Broker:        LoadBrokerConfig(),
		Pending:       LoadPendingConfig(),
	}
	if len(missing) > 0 {
		return Config{}, fmt.Errorf("missing required env vars: %s", strings.Join(missing, ", "))
	}
	return cfg, nil
}

// IsProduction reports whether the service runs with production defaults.
func (c Config) IsProduction() bool {
	return c.Env == "prod" || c.Env == "production"
}

func envStr(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}

func envBool(k string, d bool) bool {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	switch v {
	case "1", "true", "TRUE", "True", "yes", "YES", "on", "ON":
		return true
	case "0", "false", "FALSE", "False", "no", "NO", "off", "OFF":
		return false
	}
	return d
}

func envInt(k string, d int) int {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	if n, err := strconv.Atoi(v); err == nil {
		return n
	}
	return d
}

func envDur(k string, d time.Duration) time.Duration {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	if dur, err := time.ParseDuration(v); err == nil {
		return dur
	}
	return d
}
