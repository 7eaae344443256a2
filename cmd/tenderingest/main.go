package main

import (
	"fmt"
	"os"
	"time"

	"github.com/FuJacob/mapletenders-sub000/internal/config"
	"github.com/FuJacob/mapletenders-sub000/internal/cron"
	"github.com/FuJacob/mapletenders-sub000/internal/scheduler"

	_ "github.com/lib/pq"
)

// cronParserAdapter adapts internal/cron.Parser to scheduler.CronParser interface.
type cronParserAdapter struct {
	parser *cron.Parser
}

func (a *cronParserAdapter) Parse(expression string, timezone string) (scheduler.CronSchedule, error) {
	sched, err := a.parser.Parse(expression, timezone)
	if err != nil {
		return nil, err
	}
	return &cronScheduleAdapter{sched: sched}, nil
}

// cronScheduleAdapter adapts internal/cron.Schedule to scheduler.CronSchedule interface.
type cronScheduleAdapter struct {
	sched cron.Schedule
}

func (a *cronScheduleAdapter) Next(after time.Time) time.Time {
	return a.sched.Next(after)
}

// Build-time variables set via -ldflags
var (
	version = "dev"
	commit  = "unknown"
)

const (
	exitSuccess       = 0
	exitRuntimeError  = 1
	exitInvalidConfig = 2
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(exitRuntimeError)
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	switch cmd {
	case "serve":
		os.Exit(runServe())
	case "refresh":
		os.Exit(runRefresh(args))
	case "import":
		os.Exit(runImport(args))
	case "sample":
		os.Exit(runSample(args))
	case "migrate":
		os.Exit(runMigrate())
	case "validate":
		os.Exit(runValidate())
	case "config":
		os.Exit(runConfig())
	case "version":
		os.Exit(runVersion())
	case "--help", "-h", "help":
		printUsage()
		os.Exit(exitSuccess)
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", cmd)
		printUsage()
		os.Exit(exitRuntimeError)
	}
}

func printUsage() {
	fmt.Println(`tenderingest - Canadian public tender ingestion

Usage:
  tenderingest <command> [options]

Commands:
  serve      Start the HTTP API, scheduled refresh, sweeper and search sync
  refresh    Run one full refresh and exit
  import     Import a single source and exit (tenderingest import <source>)
  sample     Fetch and canonicalize a source without writing (tenderingest sample <source> [-n 5])
  migrate    Apply database migrations and exit
  validate   Validate configuration (no connections made)
  config     Print effective configuration as JSON (secrets masked)
  version    Print version information

Environment Variables:
  DATABASE_URL              PostgreSQL connection string (required)
  REDIS_ADDR                Redis address or redis:// URL for import analytics (optional)
  HTTP_ADDR                 HTTP server address (default: ":8080", or ":$PORT")
  AUTO_MIGRATE              Apply migrations on serve startup (default: "false")

  DB_OP_TIMEOUT             Database probe timeout (default: "10s")
  DB_MAX_OPEN_CONNS         Max open database connections (default: "10")
  DB_MAX_IDLE_CONNS         Max idle database connections (default: "5")
  DB_CONN_MAX_LIFETIME      Max connection lifetime (default: "30m")
  DB_CONN_MAX_IDLE_TIME     Max connection idle time (default: "5m")
  HTTP_SHUTDOWN_TIMEOUT     Graceful HTTP shutdown timeout (default: "10s")

  REFRESH_COOLDOWN          Minimum time between refreshes (default: "24h")
  REFRESH_LOCK_STALE_AFTER  Age after which a held lock may be taken over (default: "2h")
  REFRESH_SCHEDULE          Cron expression for scheduled refreshes (default: disabled)
  REFRESH_TIMEZONE          Timezone for REFRESH_SCHEDULE (default: "UTC")
  MAX_PARALLEL_SOURCES      Sources imported concurrently (default: "4")
  SOURCE_TIMEOUT            Per-source import timeout (default: "3m")

  SOURCES_FILE              YAML source catalogue overrides (optional)
  SOURCES_ENABLED           Comma-separated sources to enable (default: all)
  CHROME_PATH               Chrome/Chromium executable for browser sources (optional)
  BROWSER_HEADED            Run the browser with a visible window (default: "false")
  DOWNLOAD_DIR              Directory for browser downloads (default: OS temp dir)
  DOWNLOAD_WAIT             Max wait for the Ontario export download (default: "30s")

  EMBEDDING_URL             Embedding service base URL (default: "http://127.0.0.1:8000")
  EMBEDDING_TIMEOUT         Embedding request timeout (default: "60s")
  EMBEDDING_BATCH_SIZE      Tenders per embedding request (default: "100")
  SEARCH_SYNC_URL           Search sync service base URL (default: "http://127.0.0.1:8000")
  SEARCH_SYNC_TIMEOUT       Search sync request timeout (default: "30s")
  SEARCH_SYNC_BUFFER        Queued search sync requests (default: "16")

  CIRCUIT_BREAKER_THRESHOLD Consecutive failures before a source is skipped, 0 disables (default: "3")
  CIRCUIT_BREAKER_COOLDOWN  How long a tripped source is skipped (default: "72h")

  SWEEP_ENABLED             Periodically remove expired tenders (default: "false")
  SWEEP_INTERVAL            Sweep interval (default: "1h")
  ANALYTICS_RETENTION       Retention of daily import counters (default: "720h")

  METRICS_ENABLED           Enable Prometheus metrics (default: "false")
  METRICS_PATH              Metrics endpoint path (default: "/metrics")
  METRICS_PORT              Metrics server port (default: "9090")`)
}

func runValidate() int {
	cfg := config.Load()

	if err := config.Validate(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return exitInvalidConfig
	}

	if _, err := loadCatalogue(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return exitInvalidConfig
	}

	fmt.Println("configuration valid")
	return exitSuccess
}

func runConfig() int {
	cfg := config.Load()

	data, err := cfg.MaskedJSON()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to marshal config: %v\n", err)
		return exitRuntimeError
	}

	fmt.Println(string(data))
	return exitSuccess
}

func runVersion() int {
	fmt.Printf("tenderingest version %s (commit: %s)\n", version, commit)
	return exitSuccess
}
