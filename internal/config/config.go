package config

import (
	"encoding/json"
	"log"
	"os"
	"strings"
	"time"
)

// Config holds all configuration for the tenderingest application.
// Values are loaded from environment variables; see printUsage() for the full list.
type Config struct {
	DatabaseURL string `json:"database_url"`
	RedisAddr   string `json:"redis_addr,omitempty"`
	HTTPAddr    string `json:"http_addr"`

	DBOpTimeout    time.Duration `json:"-"`
	DBOpTimeoutStr string        `json:"db_op_timeout"`

	DBMaxOpenConns       int           `json:"db_max_open_conns"`
	DBMaxIdleConns       int           `json:"db_max_idle_conns"`
	DBConnMaxLifetime    time.Duration `json:"-"`
	DBConnMaxLifetimeStr string        `json:"db_conn_max_lifetime"`
	DBConnMaxIdleTime    time.Duration `json:"-"`
	DBConnMaxIdleTimeStr string        `json:"db_conn_max_idle_time"`
	AutoMigrate          bool          `json:"auto_migrate"`

	HTTPShutdownTimeout    time.Duration `json:"-"`
	HTTPShutdownTimeoutStr string        `json:"http_shutdown_timeout"`

	MetricsEnabled bool   `json:"metrics_enabled"`
	MetricsPath    string `json:"metrics_path"`
	MetricsPort    string `json:"metrics_port"`

	RefreshCooldown    time.Duration `json:"-"`
	RefreshCooldownStr string        `json:"refresh_cooldown"`

	// RefreshLockStaleAfter must exceed the longest expected refresh; a lock
	// older than this is assumed to belong to a crashed process.
	RefreshLockStaleAfter    time.Duration `json:"-"`
	RefreshLockStaleAfterStr string        `json:"refresh_lock_stale_after"`

	// RefreshSchedule is a cron expression or descriptor ("@every 6h").
	// Empty disables scheduled refreshes.
	RefreshSchedule string `json:"refresh_schedule"`
	RefreshTimezone string `json:"refresh_timezone"`

	MaxParallelSources int           `json:"max_parallel_sources"`
	SourceTimeout      time.Duration `json:"-"`
	SourceTimeoutStr   string        `json:"source_timeout"`

	SweepEnabled     bool          `json:"sweep_enabled"`
	SweepInterval    time.Duration `json:"-"`
	SweepIntervalStr string        `json:"sweep_interval"`

	EmbeddingURL        string        `json:"embedding_url"`
	EmbeddingTimeout    time.Duration `json:"-"`
	EmbeddingTimeoutStr string        `json:"embedding_timeout"`
	EmbeddingBatchSize  int           `json:"embedding_batch_size"`

	SearchSyncURL        string        `json:"search_sync_url"`
	SearchSyncTimeout    time.Duration `json:"-"`
	SearchSyncTimeoutStr string        `json:"search_sync_timeout"`
	SearchSyncBuffer     int           `json:"search_sync_buffer"`

	// CircuitBreakerThreshold: 0 disables the per-source circuit breaker.
	CircuitBreakerThreshold   int           `json:"circuit_breaker_threshold"`
	CircuitBreakerCooldown    time.Duration `json:"-"`
	CircuitBreakerCooldownStr string        `json:"circuit_breaker_cooldown"`

	AnalyticsRetention    time.Duration `json:"-"`
	AnalyticsRetentionStr string        `json:"analytics_retention"`

	SourcesFile    string   `json:"sources_file,omitempty"`
	SourcesEnabled []string `json:"sources_enabled,omitempty"`
	UserAgent      string   `json:"user_agent"`
	DownloadDir    string   `json:"download_dir"`
	ChromePath     string   `json:"chrome_path,omitempty"`
	BrowserHeaded  bool     `json:"browser_headed"`

	// DownloadWait bounds how long the Ontario export may take to land on disk.
	DownloadWait    time.Duration `json:"-"`
	DownloadWaitStr string        `json:"download_wait"`

	// Upstream endpoints; the catalogue file may override them.
	OpenTenderNoticesURL string `json:"open_tender_notices_url"`
	TorontoAPIURL        string `json:"toronto_api_url"`
	OntarioPortalURL     string `json:"ontario_portal_url"`
	QuebecAPIURL         string `json:"quebec_api_url"`
}

// Built-in upstream endpoints.
const (
	DefaultOpenTenderNoticesURL = "https://canadabuys.canada.ca/opendata/pub/openTenderNotice-ouvertAvisAppelOffres.csv"
	DefaultTorontoAPIURL        = "https://secure.toronto.ca/c3api_data/v2/DataAccess.svc/pmmd_solicitations/feis_solicitation?$format=application/json;odata.metadata=none&$count=true&$skip=0&$orderby=Closing_Date%20desc,Issue_Date%20desc"
	DefaultOntarioPortalURL     = "https://ontariotenders.app.jaggaer.com/esop/guest/go/public/opportunity/current?locale=en_CA&customLoginPage=/esop/nac-host/public/web/login.html&customGuest="
	DefaultQuebecAPIURL         = "https://api.seao.gouv.qc.ca/prod/api/recherche?statIds=6&tpIds=2,3,5,6,7,8,10,14,15,17,18&catIds=52,53,51,54,1,20,4,27,5,18,7,21,9,26,8,22,28,10,2,24,3,12,16,17,13,25,19,23,6,29,14,31,15,30,11,56,55,57,58,38,34,39,50,46,42,43,32,33,41,47,35,44,49,40,48,45,36,37"
	DefaultUserAgent            = "Mozilla/5.0 (compatible; TenderIngest/1.0; +https://mapletenders.ca)"
)

// Load reads configuration from environment variables with defaults.
func Load() Config {
	cfg := Config{
		DatabaseURL:              os.Getenv("DATABASE_URL"),
		RedisAddr:                os.Getenv("REDIS_ADDR"),
		HTTPAddr:                 os.Getenv("HTTP_ADDR"),
		DBOpTimeoutStr:           os.Getenv("DB_OP_TIMEOUT"),
		DBConnMaxLifetimeStr:     os.Getenv("DB_CONN_MAX_LIFETIME"),
		DBConnMaxIdleTimeStr:     os.Getenv("DB_CONN_MAX_IDLE_TIME"),
		AutoMigrate:              os.Getenv("AUTO_MIGRATE") == "true",
		HTTPShutdownTimeoutStr:   os.Getenv("HTTP_SHUTDOWN_TIMEOUT"),
		MetricsEnabled:           os.Getenv("METRICS_ENABLED") == "true",
		MetricsPath:              os.Getenv("METRICS_PATH"),
		MetricsPort:              os.Getenv("METRICS_PORT"),
		RefreshCooldownStr:       os.Getenv("REFRESH_COOLDOWN"),
		RefreshLockStaleAfterStr: os.Getenv("REFRESH_LOCK_STALE_AFTER"),
		RefreshSchedule:          strings.TrimSpace(os.Getenv("REFRESH_SCHEDULE")),
		RefreshTimezone:          os.Getenv("REFRESH_TIMEZONE"),
		SourceTimeoutStr:         os.Getenv("SOURCE_TIMEOUT"),
		SweepEnabled:             os.Getenv("SWEEP_ENABLED") == "true",
		SweepIntervalStr:         os.Getenv("SWEEP_INTERVAL"),
		EmbeddingURL:             os.Getenv("EMBEDDING_URL"),
		EmbeddingTimeoutStr:      os.Getenv("EMBEDDING_TIMEOUT"),
		SearchSyncURL:            os.Getenv("SEARCH_SYNC_URL"),
		SearchSyncTimeoutStr:     os.Getenv("SEARCH_SYNC_TIMEOUT"),
		AnalyticsRetentionStr:    os.Getenv("ANALYTICS_RETENTION"),
		SourcesFile:              os.Getenv("SOURCES_FILE"),
		UserAgent:                os.Getenv("USER_AGENT"),
		DownloadDir:              os.Getenv("DOWNLOAD_DIR"),
		ChromePath:               os.Getenv("CHROME_PATH"),
		BrowserHeaded:            os.Getenv("BROWSER_HEADED") == "true",
		OpenTenderNoticesURL:     os.Getenv("OPEN_TENDER_NOTICES_URL"),
		TorontoAPIURL:            os.Getenv("TORONTO_API_URL"),
		OntarioPortalURL:         os.Getenv("ONTARIO_PORTAL_URL"),
		QuebecAPIURL:             os.Getenv("QUEBEC_API_URL"),
	}
	cfg.CircuitBreakerCooldownStr = os.Getenv("CIRCUIT_BREAKER_COOLDOWN")
	cfg.DownloadWaitStr = os.Getenv("DOWNLOAD_WAIT")

	if list := os.Getenv("SOURCES_ENABLED"); list != "" {
		for _, name := range strings.Split(list, ",") {
			if name = strings.TrimSpace(name); name != "" {
				cfg.SourcesEnabled = append(cfg.SourcesEnabled, name)
			}
		}
	}

	cfg.MaxParallelSources = positiveIntEnv("MAX_PARALLEL_SOURCES", 4)
	cfg.EmbeddingBatchSize = positiveIntEnv("EMBEDDING_BATCH_SIZE", 100)
	cfg.SearchSyncBuffer = positiveIntEnv("SEARCH_SYNC_BUFFER", 16)
	cfg.DBMaxOpenConns = positiveIntEnv("DB_MAX_OPEN_CONNS", 10)
	cfg.DBMaxIdleConns = positiveIntEnv("DB_MAX_IDLE_CONNS", 5)

	cfg.CircuitBreakerThreshold = 3
	if cbThreshStr := os.Getenv("CIRCUIT_BREAKER_THRESHOLD"); cbThreshStr != "" {
		if n, err := parseInt(cbThreshStr); err == nil {
			cfg.CircuitBreakerThreshold = n
		} else {
			log.Printf("config: invalid CIRCUIT_BREAKER_THRESHOLD %q, using default 3", cbThreshStr)
		}
	}

	// Support the platform PORT variable as fallback for HTTP_ADDR.
	if cfg.HTTPAddr == "" {
		if port := os.Getenv("PORT"); port != "" {
			cfg.HTTPAddr = ":" + port
		} else {
			cfg.HTTPAddr = ":8080"
		}
	}
	setDefault(&cfg.DBOpTimeoutStr, "10s")
	setDefault(&cfg.DBConnMaxLifetimeStr, "30m")
	setDefault(&cfg.DBConnMaxIdleTimeStr, "5m")
	setDefault(&cfg.HTTPShutdownTimeoutStr, "10s")
	setDefault(&cfg.MetricsPath, "/metrics")
	setDefault(&cfg.MetricsPort, "9090")
	setDefault(&cfg.RefreshCooldownStr, "24h")
	setDefault(&cfg.RefreshLockStaleAfterStr, "2h")
	setDefault(&cfg.RefreshTimezone, "UTC")
	setDefault(&cfg.SourceTimeoutStr, "3m")
	setDefault(&cfg.SweepIntervalStr, "1h")
	setDefault(&cfg.EmbeddingURL, "http://127.0.0.1:8000")
	setDefault(&cfg.EmbeddingTimeoutStr, "60s")
	setDefault(&cfg.SearchSyncURL, "http://127.0.0.1:8000")
	setDefault(&cfg.SearchSyncTimeoutStr, "30s")
	setDefault(&cfg.CircuitBreakerCooldownStr, "72h")
	setDefault(&cfg.AnalyticsRetentionStr, "720h")
	setDefault(&cfg.UserAgent, DefaultUserAgent)
	setDefault(&cfg.DownloadDir, os.TempDir())
	setDefault(&cfg.DownloadWaitStr, "30s")
	setDefault(&cfg.OpenTenderNoticesURL, DefaultOpenTenderNoticesURL)
	setDefault(&cfg.TorontoAPIURL, DefaultTorontoAPIURL)
	setDefault(&cfg.OntarioPortalURL, DefaultOntarioPortalURL)
	setDefault(&cfg.QuebecAPIURL, DefaultQuebecAPIURL)

	// Parse durations; validation is handled separately by Validate().
	parseDuration(cfg.DBOpTimeoutStr, &cfg.DBOpTimeout)
	parseDuration(cfg.DBConnMaxLifetimeStr, &cfg.DBConnMaxLifetime)
	parseDuration(cfg.DBConnMaxIdleTimeStr, &cfg.DBConnMaxIdleTime)
	parseDuration(cfg.HTTPShutdownTimeoutStr, &cfg.HTTPShutdownTimeout)
	parseDuration(cfg.RefreshCooldownStr, &cfg.RefreshCooldown)
	parseDuration(cfg.RefreshLockStaleAfterStr, &cfg.RefreshLockStaleAfter)
	parseDuration(cfg.SourceTimeoutStr, &cfg.SourceTimeout)
	parseDuration(cfg.SweepIntervalStr, &cfg.SweepInterval)
	parseDuration(cfg.EmbeddingTimeoutStr, &cfg.EmbeddingTimeout)
	parseDuration(cfg.SearchSyncTimeoutStr, &cfg.SearchSyncTimeout)
	parseDuration(cfg.CircuitBreakerCooldownStr, &cfg.CircuitBreakerCooldown)
	parseDuration(cfg.AnalyticsRetentionStr, &cfg.AnalyticsRetention)
	parseDuration(cfg.DownloadWaitStr, &cfg.DownloadWait)

	return cfg
}

func setDefault(field *string, value string) {
	if *field == "" {
		*field = value
	}
}

func parseDuration(s string, dst *time.Duration) {
	if d, err := time.ParseDuration(s); err == nil {
		*dst = d
	}
}

func positiveIntEnv(name string, def int) int {
	raw := os.Getenv(name)
	if raw == "" {
		return def
	}
	n, err := parseInt(raw)
	if err != nil || n <= 0 {
		log.Printf("config: invalid %s %q (must be a positive integer), using default %d", name, raw, def)
		return def
	}
	return n
}

// parseInt parses a string as an integer.
func parseInt(s string) (int, error) {
	var n int
	if s == "" {
		return 0, os.ErrInvalid
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return 0, os.ErrInvalid
		}
		n = n*10 + int(c-'0')
	}
	return n, nil
}

// MaskedJSON returns the configuration as JSON with secrets masked.
func (c Config) MaskedJSON() ([]byte, error) {
	masked := c
	masked.DatabaseURL = maskSecret(c.DatabaseURL)
	masked.RedisAddr = maskRedis(c.RedisAddr)
	return json.MarshalIndent(masked, "", "  ")
}

// maskSecret masks a secret value, preserving only the URI scheme if present.
func maskSecret(s string) string {
	if s == "" {
		return ""
	}
	for _, scheme := range []string{"postgres://", "postgresql://"} {
		if strings.HasPrefix(s, scheme) {
			return scheme + "***"
		}
	}
	return "***"
}

// maskRedis hides credentials in redis:// URLs but keeps a bare host:port.
func maskRedis(s string) string {
	for _, scheme := range []string{"redis://", "rediss://"} {
		if strings.HasPrefix(s, scheme) {
			return scheme + "***"
		}
	}
	return s
}
