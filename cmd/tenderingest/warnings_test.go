package main

import (
	"bytes"
	"log"
	"strings"
	"testing"
	"time"

	"github.com/FuJacob/mapletenders-sub000/internal/config"
)

// captureLogOutput calls logConfigWarnings with the given config and returns
// the captured log output as a string.
func captureLogOutput(cfg *config.Config) string {
	var buf bytes.Buffer
	original := log.Writer()
	log.SetOutput(&buf)
	defer log.SetOutput(original)

	logConfigWarnings(cfg)
	return buf.String()
}

// quietConfig triggers no warnings.
func quietConfig() *config.Config {
	return &config.Config{
		RefreshCooldown:         24 * time.Hour,
		RefreshLockStaleAfter:   2 * time.Hour,
		SourceTimeout:           3 * time.Minute,
		RefreshSchedule:         "0 6 * * *",
		RefreshTimezone:         "UTC",
		MetricsEnabled:          true,
		SweepEnabled:            true,
		CircuitBreakerThreshold: 3,
		RedisAddr:               "localhost:6379",
	}
}

func TestLogConfigWarnings_Quiet(t *testing.T) {
	output := captureLogOutput(quietConfig())
	if output != "" {
		t.Errorf("expected no warnings, got: %s", output)
	}
}

func TestLogConfigWarnings_ShortCooldown(t *testing.T) {
	cfg := quietConfig()
	cfg.RefreshCooldown = time.Hour
	output := captureLogOutput(cfg)

	if !strings.Contains(output, "WARNING [P0]: REFRESH_COOLDOWN=1h0m0s") {
		t.Error("expected short cooldown P0 warning, got:", output)
	}
}

func TestLogConfigWarnings_StaleLockShorterThanSourceTimeout(t *testing.T) {
	cfg := quietConfig()
	cfg.RefreshLockStaleAfter = time.Minute
	output := captureLogOutput(cfg)

	if !strings.Contains(output, "WARNING [P0]: REFRESH_LOCK_STALE_AFTER=1m0s") {
		t.Error("expected stale lock P0 warning, got:", output)
	}
}

func TestLogConfigWarnings_MetricsDisabled(t *testing.T) {
	cfg := quietConfig()
	cfg.MetricsEnabled = false
	output := captureLogOutput(cfg)

	if !strings.Contains(output, "WARNING [P1]: METRICS_ENABLED=false") {
		t.Error("expected metrics P1 warning, got:", output)
	}
	if strings.Contains(output, "[P0]") {
		t.Error("did not expect P0 warnings, got:", output)
	}
}

func TestLogConfigWarnings_NoScheduleNoSweep(t *testing.T) {
	cfg := quietConfig()
	cfg.RefreshSchedule = ""
	cfg.SweepEnabled = false
	output := captureLogOutput(cfg)

	if !strings.Contains(output, "INFO: REFRESH_SCHEDULE not set") {
		t.Error("expected schedule INFO, got:", output)
	}
	if !strings.Contains(output, "WARNING [P1]: SWEEP_ENABLED=false") {
		t.Error("expected sweep P1 warning, got:", output)
	}
}

func TestLogConfigWarnings_NoScheduleWithSweep(t *testing.T) {
	cfg := quietConfig()
	cfg.RefreshSchedule = ""
	output := captureLogOutput(cfg)

	if !strings.Contains(output, "INFO: REFRESH_SCHEDULE not set") {
		t.Error("expected schedule INFO, got:", output)
	}
	if strings.Contains(output, "SWEEP_ENABLED=false") {
		t.Error("did not expect sweep warning when sweeper enabled, got:", output)
	}
}

func TestLogConfigWarnings_BreakerDisabled(t *testing.T) {
	cfg := quietConfig()
	cfg.CircuitBreakerThreshold = 0
	output := captureLogOutput(cfg)

	if !strings.Contains(output, "INFO: CIRCUIT_BREAKER_THRESHOLD=0") {
		t.Error("expected breaker INFO, got:", output)
	}
}

func TestLogConfigWarnings_NoRedis(t *testing.T) {
	cfg := quietConfig()
	cfg.RedisAddr = ""
	output := captureLogOutput(cfg)

	if !strings.Contains(output, "INFO: REDIS_ADDR not set") {
		t.Error("expected redis INFO, got:", output)
	}
}

func TestLogConfigWarnings_ScheduleFasterThanCooldown(t *testing.T) {
	cfg := quietConfig()
	cfg.RefreshSchedule = "@every 6h"
	output := captureLogOutput(cfg)

	if !strings.Contains(output, "WARNING [P1]: REFRESH_SCHEDULE fires every 6h0m0s") {
		t.Error("expected schedule/cooldown P1 warning, got:", output)
	}
}
