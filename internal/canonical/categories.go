package canonical

import "strings"

// Central categories every source is mapped into.
const (
	CategoryConstruction   = "Construction"
	CategoryEngineering    = "Engineering"
	CategoryIT             = "IT & Software"
	CategoryProfessional   = "Professional Services"
	CategoryMedical        = "Medical & Healthcare"
	CategoryTransportation = "Transportation"
	CategoryEducation      = "Education & Training"
	CategoryFacilities     = "Facilities & Maintenance"
	CategoryUtilities      = "Utilities & Energy"
	CategoryOffice         = "Office & Supplies"
	CategoryFood           = "Food & Catering"
	CategorySecurity       = "Security & Safety"
	CategoryRealEstate     = "Real Estate & Leasing"
	CategoryEnvironmental  = "Environmental"
	CategoryTelecom        = "Telecommunications"
	CategoryScientific     = "Scientific & Lab Services"
	CategoryAdministrative = "Administrative Services"
	CategoryFinancial      = "Financial Services"
	CategoryResearch       = "Research & Development"
	CategoryManufacturing  = "Manufacturing & Industrial"
	CategoryMiscellaneous  = "Miscellaneous"
)

// CentralCategories lists the categories in display order.
var CentralCategories = []string{
	CategoryConstruction,
	CategoryEngineering,
	CategoryIT,
	CategoryProfessional,
	CategoryMedical,
	CategoryTransportation,
	CategoryEducation,
	CategoryFacilities,
	CategoryUtilities,
	CategoryOffice,
	CategoryFood,
	CategorySecurity,
	CategoryRealEstate,
	CategoryEnvironmental,
	CategoryTelecom,
	CategoryScientific,
	CategoryAdministrative,
	CategoryFinancial,
	CategoryResearch,
	CategoryManufacturing,
	CategoryMiscellaneous,
}

// canadianCategories maps federal procurement category codes.
var canadianCategories = map[string]string{
	"CNST":   CategoryConstruction,
	"GD":     CategoryOffice,
	"SRV":    CategoryProfessional,
	"SRVTGD": CategoryFacilities,
}

// quebecCategories maps SEAO categorieId values.
var quebecCategories = map[int]string{
	1:  CategoryTransportation,
	2:  CategoryFood,
	3:  CategoryOffice,
	4:  CategorySecurity,
	5:  CategoryTelecom,
	6:  CategoryConstruction,
	7:  CategoryMedical,
	8:  CategoryUtilities,
	9:  CategoryFacilities,
	10: CategorySecurity,
	11: CategoryTransportation,
	12: CategoryManufacturing,
	13: CategoryMedical,
	14: CategoryScientific,
	15: CategoryIT,
	16: CategoryManufacturing,
	17: CategoryTransportation,
	18: CategoryConstruction,
	19: CategoryOffice,
	20: CategoryFacilities,
	21: CategoryIT,
	22: CategoryTransportation,
	23: CategoryOffice,
	24: CategoryFood,
	25: CategoryMiscellaneous,
	26: CategoryManufacturing,
	27: CategoryManufacturing,
	28: CategoryManufacturing,
	29: CategoryOffice,
	30: CategoryOffice,
	31: CategoryTransportation,
	32: CategoryScientific,
	33: CategoryFacilities,
	34: CategoryResearch,
	35: CategoryAdministrative,
	36: CategoryRealEstate,
	37: CategoryRealEstate,
	38: CategoryResearch,
	39: CategoryEngineering,
	40: CategoryTelecom,
	41: CategoryFacilities,
	42: CategoryEnvironmental,
	43: CategoryMedical,
	44: CategoryProfessional,
	45: CategoryTransportation,
	46: CategoryEnvironmental,
	47: CategoryFinancial,
	48: CategoryEducation,
	49: CategoryUtilities,
	50: CategoryIT,
	51: CategoryConstruction,
	52: CategoryConstruction,
	53: CategoryConstruction,
	55: CategoryRealEstate,
	56: CategoryRealEstate,
	57: CategoryMiscellaneous,
	58: CategoryMiscellaneous,
}

// categoryKeywords drives free-text inference. Order matters: the first
// category with a matching keyword wins.
var categoryKeywords = []struct {
	category string
	keywords []string
}{
	{CategoryIT, []string{"software", "information technology", "it services", "cloud", "cyber", "computer", "data centre", "network"}},
	{CategoryTelecom, []string{"telecom", "telephone", "radio", "wireless", "fibre", "fiber"}},
	{CategoryEngineering, []string{"engineering", "design services", "geotechnical", "surveying"}},
	{CategoryConstruction, []string{"construction", "renovation", "paving", "road", "bridge", "building", "roofing", "demolition", "sewer", "watermain"}},
	{CategoryMedical, []string{"medical", "health", "hospital", "pharmac", "clinical"}},
	{CategoryTransportation, []string{"transport", "transit", "vehicle", "fleet", "bus ", "travel", "relocation"}},
	{CategoryEducation, []string{"training", "education", "course", "learning"}},
	{CategoryFacilities, []string{"maintenance", "janitorial", "cleaning", "hvac", "landscap", "snow", "facility", "facilities"}},
	{CategoryUtilities, []string{"utility", "utilities", "energy", "electric", "water treatment", "natural gas"}},
	{CategoryFood, []string{"food", "catering", "meal", "kitchen"}},
	{CategorySecurity, []string{"security", "safety", "fire protection", "surveillance", "guard"}},
	{CategoryRealEstate, []string{"lease", "leasing", "rental", "real estate", "property"}},
	{CategoryEnvironmental, []string{"environmental", "waste", "recycling", "remediation", "forestry"}},
	{CategoryScientific, []string{"laboratory", "scientific", "lab services", "testing services"}},
	{CategoryFinancial, []string{"financial", "audit", "insurance", "banking", "accounting"}},
	{CategoryResearch, []string{"research", "study", "r&d"}},
	{CategoryManufacturing, []string{"manufactur", "equipment", "machinery", "industrial"}},
	{CategoryOffice, []string{"office", "supplies", "furniture", "printing", "stationery"}},
	{CategoryAdministrative, []string{"administrative", "records management", "translation"}},
	{CategoryProfessional, []string{"consulting", "professional services", "advisory", "legal", "management services"}},
}

// CanadianCategory maps a federal category code.
func CanadianCategory(code string) string {
	if c, ok := canadianCategories[strings.ToUpper(strings.TrimSpace(code))]; ok {
		return c
	}
	return CategoryMiscellaneous
}

// QuebecCategory maps a SEAO category id.
func QuebecCategory(id int) string {
	if c, ok := quebecCategories[id]; ok {
		return c
	}
	return CategoryMiscellaneous
}

// NormalizeCategory returns label when it already names a central category,
// otherwise infers one from label and the extra context text.
func NormalizeCategory(label string, context ...string) string {
	label = strings.TrimSpace(label)
	for _, c := range CentralCategories {
		if strings.EqualFold(label, c) {
			return c
		}
	}
	return InferCategory(append([]string{label}, context...)...)
}

// InferCategory classifies free text by keyword.
func InferCategory(texts ...string) string {
	joined := strings.ToLower(strings.Join(texts, " "))
	if strings.TrimSpace(joined) == "" {
		return CategoryMiscellaneous
	}
	for _, ck := range categoryKeywords {
		for _, kw := range ck.keywords {
			if strings.Contains(joined, kw) {
				return ck.category
			}
		}
	}
	return CategoryMiscellaneous
}
