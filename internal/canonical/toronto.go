package canonical

import (
	"strings"
	"time"

	"github.com/FuJacob/mapletenders-sub000/internal/dates"
	"github.com/FuJacob/mapletenders-sub000/internal/domain"
)

func mapToronto(rec domain.RawRecord, now time.Time) (domain.Tender, error) {
	divisions := stringList(rec.Value("Client_Division"))

	entity := "City of Toronto"
	delivery := "Toronto, ON"
	if len(divisions) > 0 {
		entity = divisions[0]
		delivery = strings.Join(divisions, ", ")
	}

	method := domain.MethodOpen
	if rec.Text("Limited_Suppliers") == "Yes" {
		method = domain.MethodLimited
	}

	procType := domain.ProcurementTender
	if strings.Contains(lower(rec.Text("Solicitation_Form_Type")), "rfp") {
		procType = domain.ProcurementRFP
	}

	title := rec.Text("Posting_Title")
	description := rec.Text("Solicitation_Document_Description")

	return domain.Tender{
		ID:              rec.Text("id"),
		SourceReference: rec.Text("Solicitation_Document_Number"),
		SourceURL:       rec.Text("Ariba_Discovery_Posting_Link"),

		Title:             title,
		Description:       description,
		Status:            lower(rec.Text("Status")),
		Category:          NormalizeCategory(rec.Text("High_Level_Category"), title, description),
		ProcurementType:   procType,
		ProcurementMethod: method,

		PublishedDate: dates.Normalize(rec.Value("Publish_Date"), dates.FreeText),
		ClosingDate:   dates.Normalize(rec.Value("Closing_Date_Formatted"), dates.FreeText),

		EntityName:       entity,
		EntityCity:       "Toronto",
		EntityProvince:   "ON",
		EntityCountry:    "CA",
		DeliveryLocation: delivery,

		Currency: domain.DefaultCurrency,

		ContactName:  rec.Text("Buyer_Name"),
		ContactEmail: rec.Text("Buyer_Email"),
		ContactPhone: rec.Text("Buyer_Phone_Number"),
	}, nil
}
