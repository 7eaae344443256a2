package canonical

import (
	"regexp"
	"time"

	"github.com/FuJacob/mapletenders-sub000/internal/dates"
	"github.com/FuJacob/mapletenders-sub000/internal/domain"
)

// bidReference captures the leading bid number of titles like
// "RFT25-104 Road Resurfacing" or "C11-25-24 Watermain Replacement".
var bidReference = regexp.MustCompile(`^([A-Z]+\d+(?:-\d+)*)`)

func mapBidsAndTenders(rec domain.RawRecord, now time.Time) (domain.Tender, error) {
	portal, ok := domain.Portals[rec.Kind]
	if !ok {
		return domain.Tender{}, &domain.MappingError{Source: rec.Kind, Field: "kind", Reason: "is not a known portal"}
	}

	id := rec.Text("Id")
	title := rec.Text("Title")

	ref := id
	if m := bidReference.FindStringSubmatch(title); m != nil {
		ref = m[1]
	}

	var detailURL string
	if id != "" {
		detailURL = portal.DetailURL(id)
	}
	description := CleanHTML(rec.Text("Description"))

	return domain.Tender{
		ID:              id,
		SourceReference: ref,
		SourceURL:       detailURL,

		Title:             title,
		Description:       description,
		Status:            lower(rec.Text("Status")),
		Category:          NormalizeCategory(rec.Text("Scope"), title, description),
		ProcurementType:   domain.ProcurementRFP,
		ProcurementMethod: domain.MethodOpen,

		PublishedDate: dates.Normalize(rec.Value("DateAvailable"), dates.WireMillis),
		ClosingDate:   dates.Normalize(rec.Value("DateClosing"), dates.WireMillis),

		EntityName:       portal.EntityName,
		EntityCity:       portal.City,
		EntityProvince:   "ON",
		EntityCountry:    "CA",
		DeliveryLocation: portal.Location,

		Currency: domain.DefaultCurrency,

		PlanTakersCount:  parseCount(rec.Value("PlanTakers")),
		SubmissionsCount: parseCount(rec.Value("Submitted")),
	}, nil
}

// uniqueBidReferences keeps source references unique within a portal batch.
// A later bid whose title number repeats an earlier one falls back to its Id.
func uniqueBidReferences(tenders []domain.Tender) {
	owner := make(map[string]string, len(tenders))
	for i := range tenders {
		t := &tenders[i]
		if id, taken := owner[t.SourceReference]; taken && id != t.ID {
			t.SourceReference = t.ID
		}
		owner[t.SourceReference] = t.ID
	}
}
