package domain

import (
	"time"

	"github.com/google/uuid"
)

// SyncRequest asks the search index to pick up stored tenders. An empty
// TenderID means every tender.
type SyncRequest struct {
	RunID    uuid.UUID // refresh run that produced the change, zero for manual requests
	TenderID string
	Reason   string

	RequestedAt time.Time
}

// Full reports whether the request covers the whole index.
func (r SyncRequest) Full() bool {
	return r.TenderID == ""
}
