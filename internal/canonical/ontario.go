package canonical

import (
	"strconv"
	"strings"
	"time"

	"github.com/FuJacob/mapletenders-sub000/internal/dates"
	"github.com/FuJacob/mapletenders-sub000/internal/domain"
)

// Header cells of the Jaggaer "current opportunities" export.
const (
	OntarioProjectCode = "Project Code"
	ontarioReference   = "Project Reference"
	ontarioLink        = "Web Link"
	ontarioTitle       = "Project Title"
	ontarioDetail      = "Detailed Description"
	ontarioScope       = "Scope of Work"
	ontarioPublished   = "Publication Date"
	ontarioExpiry      = "Listing Expiry Date (dd/mm/yyyy hh:mm)"
	ontarioStart       = "Estimated Contract Start Date (dd/mm/yyyy)"
	ontarioBuyer       = "Buyer Organization"
	ontarioCategory    = "Work Category"
	ontarioType        = "Project Type"
	ontarioRoute       = "Procurement Route"
	ontarioValue       = "Estimated Value of Contract"
	ontarioContact     = "Contact"
	ontarioEmail       = "Email"
	ontarioCategories  = "Project Categories"
)

func mapOntario(rec domain.RawRecord, now time.Time) (domain.Tender, error) {
	code := rec.Text(OntarioProjectCode)

	var parts []string
	for _, key := range []string{ontarioDetail, ontarioScope} {
		if s := rec.Text(key); s != "" {
			parts = append(parts, s)
		}
	}
	description := strings.Join(parts, "\n\n")
	title := rec.Text(ontarioTitle)

	procType := domain.ProcurementTender
	if strings.Contains(lower(rec.Text(ontarioType)), "rfp") {
		procType = domain.ProcurementRFP
	}

	return domain.Tender{
		ID:              code,
		SourceReference: firstNonEmpty(rec.Text(ontarioReference), code),
		SourceURL:       rec.Text(ontarioLink),

		Title:             title,
		Description:       description,
		Status:            "open",
		Category:          NormalizeCategory(rec.Text(ontarioCategory), title, description),
		ProcurementType:   procType,
		ProcurementMethod: lower(rec.Text(ontarioRoute)),

		PublishedDate:     ontarioDate(rec.Value(ontarioPublished)),
		ClosingDate:       ontarioDate(rec.Value(ontarioExpiry)),
		ContractStartDate: ontarioDate(rec.Value(ontarioStart)),

		EntityName:       rec.Text(ontarioBuyer),
		EntityProvince:   "ON",
		EntityCountry:    "CA",
		DeliveryLocation: "Ontario, CA",

		EstimatedValue: parseAmount(rec.Value(ontarioValue)),
		Currency:       domain.DefaultCurrency,

		ContactName:  rec.Text(ontarioContact),
		ContactEmail: rec.Text(ontarioEmail),

		UNSPSC: rec.Text(ontarioCategories),
	}, nil
}

// ontarioDate reads the serial-day numbers stored in date cells, then the
// day-first text the column headers describe.
func ontarioDate(raw any) *time.Time {
	if s, ok := raw.(string); ok {
		s = strings.TrimSpace(s)
		if _, err := strconv.ParseFloat(s, 64); err == nil {
			return dates.Normalize(s, dates.ExcelSerial)
		}
		if t := dates.Normalize(s, dates.DayMonthYear); t != nil {
			return t
		}
	}
	return dates.Normalize(raw, dates.Auto)
}
