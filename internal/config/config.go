package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Load reads the .env file specified by REFRAME_ENV (or .env by default),
// then loads the corresponding .secret file if it exists.
// All config is flat env vars read via os.Getenv after loading.
func Load() error {
	envFile := os.Getenv("REFRAME_ENV")
	if envFile == "" {
		envFile = ".env"
	}

	// Load main env file (ignore error if file doesn't exist)
	_ = godotenv.Load(envFile)

	// Load secret sidecar if it exists
	_ = godotenv.Load(envFile + ".secret")

	return nil
}

func ServerPort() int {
	port, err := strconv.Atoi(os.Getenv("SERVER_PORT"))
	if err != nil {
		return 8080
	}
	return port
}

func DatabaseURL() string {
	return os.Getenv("DATABASE_URL")
}

func OpenAIAPIKey() string {
	return os.Getenv("OPENAI_API_KEY")
}

// EmbeddingProvider returns the configured embedding provider.
// Defaults to "mock" if not set; belief matching falls back to token
// similarity, so the engine runs without any external API.
// Valid values: openai, mock
func EmbeddingProvider() string {
	p := os.Getenv("EMBEDDING_PROVIDER")
	if p == "" {
		return "mock"
	}
	return p
}

// EmbeddingAPIKey returns the API key for the configured embedding provider.
func EmbeddingAPIKey() string {
	switch EmbeddingProvider() {
	case "mock":
		return ""
	default:
		return OpenAIAPIKey()
	}
}

func MigrationsPath() string {
	p := os.Getenv("MIGRATIONS_PATH")
	if p == "" {
		return "migrations"
	}
	return p
}

func ServerAddr() string {
	return fmt.Sprintf(":%d", ServerPort())
}

// RateLimitRPS returns requests per second limit.
// Defaults to 100 if not set.
func RateLimitRPS() float64 {
	rps, err := strconv.ParseFloat(os.Getenv("RATE_LIMIT_RPS"), 64)
	if err != nil || rps <= 0 {
		return 100
	}
	return rps
}

// RateLimitBurst returns the burst size for rate limiting.
// Defaults to 20 if not set.
func RateLimitBurst() int {
	burst, err := strconv.Atoi(os.Getenv("RATE_LIMIT_BURST"))
	if err != nil || burst <= 0 {
		return 20
	}
	return burst
}

// LogLevel returns the log level (debug, info, warn, error).
// Defaults to "info" if not set.
func LogLevel() string {
	level := os.Getenv("LOG_LEVEL")
	if level == "" {
		return "info"
	}
	return level
}

// ReconsolidationWindow is how long a rewrite stays acceptable after a
// significant mismatch. Defaults to 4h.
func ReconsolidationWindow() time.Duration {
	return durationEnv("RECONSOLIDATION_WINDOW", 4*time.Hour)
}

// RecurrenceThreshold is how many matching captures trigger pattern
// detection. Defaults to 3.
func RecurrenceThreshold() int {
	return intEnv("RECURRENCE_THRESHOLD", 3)
}

// RecurrenceWindow is the rolling window for recurrence counting.
// Defaults to 168h (7 days).
func RecurrenceWindow() time.Duration {
	return durationEnv("RECURRENCE_WINDOW", 7*24*time.Hour)
}

// SignificanceThreshold is the minimum error magnitude that opens a
// reconsolidation window. Defaults to 0.5.
func SignificanceThreshold() float64 {
	return floatEnv("SIGNIFICANCE_THRESHOLD", 0.5)
}

// ConfidenceFloor is the capture confidence below which the decay scanner
// marks archive eligibility. Defaults to 0.2.
func ConfidenceFloor() float64 {
	return floatEnv("CONFIDENCE_FLOOR", 0.2)
}

// PauseTimeout is how long a paused intervention survives before automatic
// abandonment. Defaults to 24h.
func PauseTimeout() time.Duration {
	return durationEnv("PAUSE_TIMEOUT", 24*time.Hour)
}

// MismatchRetryLimit is the number of insignificant mismatches tolerated
// before a run is abandoned. Defaults to 3.
func MismatchRetryLimit() int {
	return intEnv("MISMATCH_RETRY_LIMIT", 3)
}

// SuccessRateTarget is the verification success rate that resolves a
// pattern. Defaults to 0.70.
func SuccessRateTarget() float64 {
	return floatEnv("SUCCESS_RATE_TARGET", 0.70)
}

// MinVerificationEncounters is how many encounters must accumulate before
// the success rate is acted on. Defaults to 3.
func MinVerificationEncounters() int {
	return intEnv("MIN_VERIFICATION_ENCOUNTERS", 3)
}

// BeliefMatchThreshold is the similarity above which two belief statements
// count as the same belief. Defaults to 0.6.
func BeliefMatchThreshold() float64 {
	return floatEnv("BELIEF_MATCH_THRESHOLD", 0.6)
}

// DecayScanInterval is how often the background decay scan runs.
// Defaults to 1h.
func DecayScanInterval() time.Duration {
	return durationEnv("DECAY_SCAN_INTERVAL", time.Hour)
}

func intEnv(key string, def int) int {
	v, err := strconv.Atoi(os.Getenv(key))
	if err != nil || v <= 0 {
		return def
	}
	return v
}

func floatEnv(key string, def float64) float64 {
	v, err := strconv.ParseFloat(os.Getenv(key), 64)
	if err != nil || v <= 0 {
		return def
	}
	return v
}

func durationEnv(key string, def time.Duration) time.Duration {
	v, err := time.ParseDuration(os.Getenv(key))
	if err != nil || v <= 0 {
		return def
	}
	return v
}
