package api

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/FuJacob/mapletenders-sub000/internal/domain"
	"github.com/FuJacob/mapletenders-sub000/internal/ingest"
)

// MaxSampleLimit bounds ?limit on the sample endpoint.
const MaxSampleLimit = 100

// maxTenderIDLength matches the widest id any mapper produces, with headroom.
const maxTenderIDLength = 256

// validateSource checks that name is a known source and is configured.
func validateSource(name string, configured []domain.SourceKind) (domain.SourceKind, error) {
	kind, err := domain.ParseSourceKind(name)
	if err != nil {
		return "", err
	}
	for _, k := range configured {
		if k == kind {
			return kind, nil
		}
	}
	return "", fmt.Errorf("source %q is not enabled", name)
}

func validateTenderID(id string) error {
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("tender id is required")
	}
	if len(id) > maxTenderIDLength {
		return fmt.Errorf("tender id exceeds %d characters", maxTenderIDLength)
	}
	if strings.Contains(id, "/") {
		return fmt.Errorf("tender id must not contain '/'")
	}
	return nil
}

// parseSampleLimit reads ?limit, defaulting to ingest.DefaultSampleSize.
// limit=0 means the default.
func parseSampleLimit(r *http.Request) (int, error) {
	limitStr := r.URL.Query().Get("limit")
	if limitStr == "" {
		return ingest.DefaultSampleSize, nil
	}

	limit, err := strconv.Atoi(limitStr)
	if err != nil {
		return 0, fmt.Errorf("invalid limit: %w", err)
	}
	if limit < 0 {
		return 0, fmt.Errorf("limit must not be negative")
	}
	if limit > MaxSampleLimit {
		return 0, &limitExceededError{max: MaxSampleLimit}
	}
	if limit == 0 {
		limit = ingest.DefaultSampleSize
	}
	return limit, nil
}

type limitExceededError struct {
	max int
}

func (e *limitExceededError) Error() string {
	return "limit exceeds maximum of " + strconv.Itoa(e.max)
}
