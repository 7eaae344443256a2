package main

import (
	"log"
	"time"

	"github.com/FuJacob/mapletenders-sub000/internal/config"
	"github.com/FuJacob/mapletenders-sub000/internal/cron"
)

// minSafeCooldown is the shortest cooldown the upstream portals tolerate
// without throttling.
const minSafeCooldown = 24 * time.Hour

// logConfigWarnings logs operational warnings for risky but valid
// configurations.
func logConfigWarnings(cfg *config.Config) {
	if cfg.RefreshCooldown < minSafeCooldown {
		log.Printf("WARNING [P0]: REFRESH_COOLDOWN=%s is below %s; portals may throttle or block repeated scrapes",
			cfg.RefreshCooldown, minSafeCooldown)
	}

	if cfg.RefreshLockStaleAfter > 0 && cfg.RefreshLockStaleAfter < cfg.SourceTimeout {
		log.Printf("WARNING [P0]: REFRESH_LOCK_STALE_AFTER=%s is shorter than SOURCE_TIMEOUT=%s; a slow refresh can be taken over while running",
			cfg.RefreshLockStaleAfter, cfg.SourceTimeout)
	}

	if !cfg.MetricsEnabled {
		log.Println("WARNING [P1]: METRICS_ENABLED=false; refresh and source failures are only visible in logs")
	}

	if cfg.RefreshSchedule != "" {
		if sched, err := cron.NewParser().Parse(cfg.RefreshSchedule, cfg.RefreshTimezone); err == nil {
			if gap := cron.ShortestGap(sched, time.Now(), 16); gap > 0 && gap < cfg.RefreshCooldown {
				log.Printf("WARNING [P1]: REFRESH_SCHEDULE fires every %s but REFRESH_COOLDOWN=%s; most scheduled refreshes will be skipped as rate_limited",
					gap, cfg.RefreshCooldown)
			}
		}
	}

	if cfg.RefreshSchedule == "" {
		log.Println("INFO: REFRESH_SCHEDULE not set; refreshes only run via POST /refresh or 'tenderingest refresh'")
		if !cfg.SweepEnabled {
			log.Println("WARNING [P1]: SWEEP_ENABLED=false with no REFRESH_SCHEDULE; expired tenders are only removed by manual refreshes")
		}
	}

	if cfg.CircuitBreakerThreshold == 0 {
		log.Println("INFO: CIRCUIT_BREAKER_THRESHOLD=0; failing sources are retried on every refresh")
	}

	if cfg.RedisAddr == "" {
		log.Println("INFO: REDIS_ADDR not set; per-day import counts are not recorded")
	}
}
