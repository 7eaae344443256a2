package canonical

import (
	"time"

	"github.com/FuJacob/mapletenders-sub000/internal/dates"
	"github.com/FuJacob/mapletenders-sub000/internal/domain"
)

// Column names of the federal open tender notices CSV.
const (
	canadianReference   = "referenceNumber-numeroReference"
	canadianTitle       = "title-titre-eng"
	canadianDescription = "tenderDescription-descriptionAppelOffres-eng"
	canadianStatus      = "tenderStatus-appelOffresStatut-eng"
	canadianPublished   = "publicationDate-datePublication"
	canadianClosing     = "tenderClosingDate-appelOffresDateCloture"
	canadianStart       = "expectedContractStartDate-dateDebutContratPrevue"
	canadianEntity      = "contractingEntityName-nomEntitContractante-eng"
	canadianCity        = "contractingEntityAddressCity-entiteContractanteAdresseVille-eng"
	canadianProvince    = "contractingEntityAddressProvince-entiteContractanteAdresseProvince-eng"
	canadianCountry     = "contractingEntityAddressCountry-entiteContractanteAdressePays-eng"
	canadianRegions     = "regionsOfDelivery-regionsLivraison-eng"
	canadianCategory    = "procurementCategory-categorieApprovisionnement"
	canadianNoticeType  = "noticeType-avisType-eng"
	canadianMethod      = "procurementMethod-methodeApprovisionnement-eng"
	canadianContact     = "contactInfoName-informationsContactNom"
	canadianEmail       = "contactInfoEmail-informationsContactCourriel"
	canadianPhone       = "contactInfoPhone-contactInfoTelephone"
	canadianGSIN        = "gsin-nibs"
	canadianUNSPSC      = "unspsc"
	canadianURL         = "noticeURL-URLavis-eng"
)

func mapCanadian(rec domain.RawRecord, now time.Time) (domain.Tender, error) {
	ref := rec.Text(canadianReference)
	return domain.Tender{
		ID:              firstNonEmpty(ref, rec.Text("id")),
		SourceReference: ref,
		SourceURL:       rec.Text(canadianURL),

		Title:             rec.Text(canadianTitle),
		Description:       rec.Text(canadianDescription),
		Status:            lower(rec.Text(canadianStatus)),
		Category:          CanadianCategory(rec.Text(canadianCategory)),
		ProcurementType:   ClassifyProcurementType(rec.Text(canadianNoticeType)),
		ProcurementMethod: lower(rec.Text(canadianMethod)),

		PublishedDate:     dates.Normalize(rec.Value(canadianPublished), dates.FreeText),
		ClosingDate:       dates.Normalize(rec.Value(canadianClosing), dates.FreeText),
		ContractStartDate: dates.Normalize(rec.Value(canadianStart), dates.FreeText),

		EntityName:       rec.Text(canadianEntity),
		EntityCity:       rec.Text(canadianCity),
		EntityProvince:   rec.Text(canadianProvince),
		EntityCountry:    firstNonEmpty(rec.Text(canadianCountry), "Canada"),
		DeliveryLocation: rec.Text(canadianRegions),

		Currency: domain.DefaultCurrency,

		ContactName:  rec.Text(canadianContact),
		ContactEmail: rec.Text(canadianEmail),
		ContactPhone: rec.Text(canadianPhone),

		GSIN:   rec.Text(canadianGSIN),
		UNSPSC: rec.Text(canadianUNSPSC),
	}, nil
}
