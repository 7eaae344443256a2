package domain

import "time"

// DefaultCurrency is applied when a source has no native currency field.
const DefaultCurrency = "CAD"

// Tender is the canonical, source-agnostic procurement notice.
type Tender struct {
	ID              string     `json:"id"`
	Source          SourceKind `json:"source"`
	SourceReference string     `json:"source_reference"`
	SourceURL       string     `json:"source_url,omitempty"`

	Title             string `json:"title"`
	Description       string `json:"description,omitempty"`
	Status            string `json:"status,omitempty"`
	Category          string `json:"category,omitempty"`
	ProcurementType   string `json:"procurement_type,omitempty"`
	ProcurementMethod string `json:"procurement_method,omitempty"`

	PublishedDate     *time.Time `json:"published_date,omitempty"`
	ClosingDate       *time.Time `json:"closing_date,omitempty"`
	ContractStartDate *time.Time `json:"contract_start_date,omitempty"`

	EntityName       string `json:"contracting_entity_name,omitempty"`
	EntityCity       string `json:"contracting_entity_city,omitempty"`
	EntityProvince   string `json:"contracting_entity_province,omitempty"`
	EntityCountry    string `json:"contracting_entity_country,omitempty"`
	DeliveryLocation string `json:"delivery_location,omitempty"`

	EstimatedValue *float64 `json:"estimated_value,omitempty"`
	Currency       string   `json:"currency,omitempty"`

	ContactName  string `json:"contact_name,omitempty"`
	ContactEmail string `json:"contact_email,omitempty"`
	ContactPhone string `json:"contact_phone,omitempty"`

	GSIN   string `json:"gsin,omitempty"`
	UNSPSC string `json:"unspsc,omitempty"`

	PlanTakersCount  *int `json:"plan_takers_count,omitempty"`
	SubmissionsCount *int `json:"submissions_count,omitempty"`

	Embedding      []float32 `json:"-"`
	EmbeddingInput string    `json:"embedding_input,omitempty"`

	LastScrapedAt time.Time `json:"last_scraped_at"`
}

// HasEmbedding reports whether the tender carries a vector.
func (t Tender) HasEmbedding() bool {
	return len(t.Embedding) > 0
}

// Expired reports whether the closing date is known and before now.
func (t Tender) Expired(now time.Time) bool {
	return t.ClosingDate != nil && t.ClosingDate.Before(now)
}

// Procurement types.
const (
	ProcurementRFP    = "rfp"
	ProcurementRFQ    = "rfq"
	ProcurementTender = "tender"
)

// Procurement methods.
const (
	MethodOpen    = "open"
	MethodLimited = "limited"
)
