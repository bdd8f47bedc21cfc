package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all runtime configuration. Site-specific extraction
// rules live in the TOML profile catalogue, not here.
type Config struct {
	Browser   BrowserConfig
	Traversal TraversalConfig
	Detail    DetailConfig
	Engine    EngineConfig
	Store     StoreConfig
	Debug     DebugConfig
	API       APIConfig
	Auth      AuthConfig
	Log       LogConfig
	Daemon    DaemonConfig

	// ProfilesPath locates the TOML site-profile catalogue.
	ProfilesPath string // default: "profiles.toml"
}

// BrowserConfig controls the Rod browser instance.
type BrowserConfig struct {
	// Headless controls whether the browser runs headless.
	Headless bool // default: true

	// DefaultProxy is the proxy URL for all browser traffic.
	DefaultProxy string

	// NoSandbox disables Chrome's sandbox (needed in Docker).
	NoSandbox bool // default: false

	// BrowserBin overrides the Chromium binary path.
	BrowserBin string

	// MaxTabs is the page pool capacity (listing session + detail workers).
	MaxTabs int // default: 4

	// NavigationTimeout is the max time for page.Navigate alone.
	NavigationTimeout time.Duration // default: 25s

	// BlockedResourceTypes lists resource types to block.
	// default: ["Image", "Stylesheet", "Font", "Media"]
	BlockedResourceTypes []string
}

// TraversalConfig bounds the listing traversal loop.
type TraversalConfig struct {
	// ReadyAttempts is the readiness poll budget per page.
	ReadyAttempts int // default: 8

	// ReadyMinDelay and ReadyMaxDelay bound the poll delay ladder.
	ReadyMinDelay time.Duration // default: 250ms
	ReadyMaxDelay time.Duration // default: 2s

	// ExtractRetries is how many times a zero-record extraction is
	// retried before the page counts as empty.
	ExtractRetries int // default: 3

	// ExtractRetryDelay is the fixed sleep between extraction retries.
	ExtractRetryDelay time.Duration // default: 1500ms

	// JitterMin and JitterMax bound the randomized sleep between pages.
	JitterMin time.Duration // default: 500ms
	JitterMax time.Duration // default: 2s

	// MaxPages is the hard page cap per query run.
	MaxPages int // default: 50

	// EmptyStreakLimit stops a query after this many consecutive
	// zero-record pages.
	EmptyStreakLimit int // default: 2

	// NavPerSecond and NavBurst feed the navigation pacing limiter.
	NavPerSecond float64 // default: 0.5
	NavBurst     int     // default: 1
}

// DetailConfig controls the product-detail enrichment pass.
type DetailConfig struct {
	// Enabled toggles detail-page enrichment after traversal.
	Enabled bool // default: false

	// Workers is the detail fetch pool size.
	Workers int // default: 3

	// Timeout is the per-detail-page deadline.
	Timeout time.Duration // default: 20s

	// MinDelay and MaxDelay bound each worker's random pause between
	// detail fetches.
	MinDelay time.Duration // default: 300ms
	MaxDelay time.Duration // default: 1200ms
}

// EngineConfig controls the staged fetch dispatcher used for detail
// pages: a plain HTTP attempt first, browser rendering as escalation.
type EngineConfig struct {
	// EnableMultiEngine toggles the staged dispatcher; off means
	// browser-only fetches.
	EnableMultiEngine bool // default: true

	// EscalationDelays is the staged start delay for each engine tier.
	EscalationDelays []time.Duration // default: [0s, 2s]

	// HTTPTimeout is the deadline for the pure HTTP engine.
	HTTPTimeout time.Duration // default: 5s
}

// StoreConfig controls the published dataset sinks.
type StoreConfig struct {
	// DataDir is where JSON/CSV datasets and run summaries land.
	DataDir string // default: "data"

	// PostgresDSN enables the Postgres sink when non-empty.
	PostgresDSN string

	// PostgresSchema is the schema for the products table.
	PostgresSchema string // default: "public"
}

// DebugConfig controls failure-diagnostics dumps.
type DebugConfig struct {
	// Enabled toggles markup/screenshot dumps on empty or failed pages.
	Enabled bool // default: true

	// Dir is the dump directory root.
	Dir string // default: "debug"
}

// APIConfig controls the optional status HTTP server.
type APIConfig struct {
	// Enabled starts the status API alongside a run.
	Enabled bool // default: false

	Host string // default: "0.0.0.0"
	Port int    // default: 8080
	Mode string // "debug", "release", "test"; default: "release"
}

// AuthConfig controls API key authentication on the status API.
type AuthConfig struct {
	// Enabled toggles API key authentication.
	Enabled bool // default: false

	// APIKeys is the list of valid API keys.
	APIKeys []string
}

// LogConfig controls structured logging.
type LogConfig struct {
	Level  string // default: "info"
	Format string // "json" or "text"; default: "text"
}

// DaemonConfig controls repeated-run mode.
type DaemonConfig struct {
	// Enabled keeps the process alive, re-running all profiles on a
	// randomized interval.
	Enabled bool // default: false

	// IntervalMin and IntervalMax bound the pause between runs.
	IntervalMin time.Duration // default: 6h
	IntervalMax time.Duration // default: 9h
}

// Load reads configuration from environment variables with sane defaults.
func Load() *Config {
	return &Config{
		Browser: BrowserConfig{
			Headless:          envBoolOr("TRAWL_HEADLESS", true),
			DefaultProxy:      os.Getenv("TRAWL_PROXY"),
			NoSandbox:         envBoolOr("TRAWL_NO_SANDBOX", false),
			BrowserBin:        os.Getenv("TRAWL_BROWSER_BIN"),
			MaxTabs:           envIntOr("TRAWL_MAX_TABS", 4),
			NavigationTimeout: envDurationOr("TRAWL_NAV_TIMEOUT", 25*time.Second),
			BlockedResourceTypes: envSliceOr("TRAWL_BLOCKED_RESOURCES", []string{
				"Image", "Stylesheet", "Font", "Media",
			}),
		},
		Traversal: TraversalConfig{
			ReadyAttempts:     envIntOr("TRAWL_READY_ATTEMPTS", 8),
			ReadyMinDelay:     envDurationOr("TRAWL_READY_MIN_DELAY", 250*time.Millisecond),
			ReadyMaxDelay:     envDurationOr("TRAWL_READY_MAX_DELAY", 2*time.Second),
			ExtractRetries:    envIntOr("TRAWL_EXTRACT_RETRIES", 3),
			ExtractRetryDelay: envDurationOr("TRAWL_EXTRACT_RETRY_DELAY", 1500*time.Millisecond),
			JitterMin:         envDurationOr("TRAWL_JITTER_MIN", 500*time.Millisecond),
			JitterMax:         envDurationOr("TRAWL_JITTER_MAX", 2*time.Second),
			MaxPages:          envIntOr("TRAWL_MAX_PAGES", 50),
			EmptyStreakLimit:  envIntOr("TRAWL_EMPTY_STREAK", 2),
			NavPerSecond:      envFloatOr("TRAWL_NAV_RPS", 0.5),
			NavBurst:          envIntOr("TRAWL_NAV_BURST", 1),
		},
		Detail: DetailConfig{
			Enabled:  envBoolOr("TRAWL_DETAIL_ENABLED", false),
			Workers:  envIntOr("TRAWL_DETAIL_WORKERS", 3),
			Timeout:  envDurationOr("TRAWL_DETAIL_TIMEOUT", 20*time.Second),
			MinDelay: envDurationOr("TRAWL_DETAIL_MIN_DELAY", 300*time.Millisecond),
			MaxDelay: envDurationOr("TRAWL_DETAIL_MAX_DELAY", 1200*time.Millisecond),
		},
		Engine: EngineConfig{
			EnableMultiEngine: envBoolOr("TRAWL_MULTI_ENGINE", true),
			EscalationDelays:  envDurationSliceOr("TRAWL_ESCALATION_DELAYS", []time.Duration{0, 2 * time.Second}),
			HTTPTimeout:       envDurationOr("TRAWL_HTTP_TIMEOUT", 5*time.Second),
		},
		Store: StoreConfig{
			DataDir:        envOr("TRAWL_DATA_DIR", "data"),
			PostgresDSN:    os.Getenv("TRAWL_POSTGRES_DSN"),
			PostgresSchema: envOr("TRAWL_POSTGRES_SCHEMA", "public"),
		},
		Debug: DebugConfig{
			Enabled: envBoolOr("TRAWL_DEBUG_ENABLED", true),
			Dir:     envOr("TRAWL_DEBUG_DIR", "debug"),
		},
		API: APIConfig{
			Enabled: envBoolOr("TRAWL_API_ENABLED", false),
			Host:    envOr("TRAWL_API_HOST", "0.0.0.0"),
			Port:    envIntOr("TRAWL_API_PORT", 8080),
			Mode:    envOr("TRAWL_API_MODE", "release"),
		},
		Auth: AuthConfig{
			Enabled: envBoolOr("TRAWL_AUTH_ENABLED", false),
			APIKeys: envSliceOr("TRAWL_API_KEYS", nil),
		},
		Log: LogConfig{
			Level:  envOr("TRAWL_LOG_LEVEL", "info"),
			Format: envOr("TRAWL_LOG_FORMAT", "text"),
		},
		Daemon: DaemonConfig{
			Enabled:     envBoolOr("TRAWL_DAEMON", false),
			IntervalMin: envDurationOr("TRAWL_DAEMON_INTERVAL_MIN", 6*time.Hour),
			IntervalMax: envDurationOr("TRAWL_DAEMON_INTERVAL_MAX", 9*time.Hour),
		},
		ProfilesPath: envOr("TRAWL_PROFILES", "profiles.toml"),
	}
}

// --- helper functions ---

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func envBoolOr(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envFloatOr(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envDurationOr(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func envSliceOr(key string, fallback []string) []string {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		return result
	}
	return fallback
}

func envDurationSliceOr(key string, fallback []time.Duration) []time.Duration {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		result := make([]time.Duration, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				if d, err := time.ParseDuration(trimmed); err == nil {
					result = append(result, d)
				}
			}
		}
		if len(result) > 0 {
			return result
		}
	}
	return fallback
}
