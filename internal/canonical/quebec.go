package canonical

import (
	"fmt"
	"strings"
	"time"

	"github.com/FuJacob/mapletenders-sub000/internal/dates"
	"github.com/FuJacob/mapletenders-sub000/internal/domain"
)

// QuebecDetailURL is the public SEAO page for a notice uuid.
const QuebecDetailURL = "https://seao.gouv.qc.ca/avis-resultat-recherche/consulter?ItemId=%s"

// quebecOpenStatus is the SEAO statutAvisId for a published, open notice.
const quebecOpenStatus = 6

func mapQuebec(rec domain.RawRecord, now time.Time) (domain.Tender, error) {
	uuid := rec.Text("uuid")

	status := ""
	if n, ok := rec.Value("statutAvisId").(float64); ok {
		if int(n) == quebecOpenStatus {
			status = "open"
		} else {
			status = "closed"
		}
	}

	category := CategoryMiscellaneous
	if n, ok := rec.Value("categorieId").(float64); ok {
		category = QuebecCategory(int(n))
	}

	var sourceURL string
	if uuid != "" {
		sourceURL = fmt.Sprintf(QuebecDetailURL, uuid)
	}

	return domain.Tender{
		ID:              firstNonEmpty(rec.Text("id"), uuid),
		SourceReference: rec.Text("numero"),
		SourceURL:       sourceURL,

		Title:             rec.Text("titre"),
		Status:            status,
		Category:          category,
		ProcurementType:   domain.ProcurementTender,
		ProcurementMethod: domain.MethodOpen,

		PublishedDate: dates.Normalize(rec.Value("datePublicationUtc"), dates.FreeText),
		ClosingDate:   dates.Normalize(rec.Value("dateFermetureUtc"), dates.FreeText),

		EntityName:       rec.Text("nomDonneurOuvrage"),
		EntityProvince:   "QC",
		EntityCountry:    "CA",
		DeliveryLocation: strings.Join(stringList(rec.Value("regionIds")), ", "),

		Currency: domain.DefaultCurrency,
	}, nil
}
