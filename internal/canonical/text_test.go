package canonical

import (
	"testing"

	"github.com/FuJacob/mapletenders-sub000/internal/domain"
)

func TestCleanHTML(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"empty", "", ""},
		{"plain", "  no   markup here ", "no markup here"},
		{"entities", "Parks &amp; Rec &lt;North&gt;", "Parks & Rec <North>"},
		{"nbsp", "a&nbsp;b", "a b"},
		{"blocks do not run together", "<p>one</p><p>two</p>", "one two"},
		{"nested", "<div><strong>Bold</strong><br/>next</div>", "Bold next"},
		{"script dropped", "<p>keep</p><script>alert(1)</script>", "keep"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CleanHTML(tt.in); got != tt.want {
				t.Errorf("CleanHTML(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestClassifyProcurementType(t *testing.T) {
	tests := map[string]string{
		"RFP - Request for Proposal":    domain.ProcurementRFP,
		"Request for Proposals":         domain.ProcurementRFP,
		"RFQ":                           domain.ProcurementRFQ,
		"Request for Quotation":         domain.ProcurementRFQ,
		"Invitation to Tender":          domain.ProcurementTender,
		"Advance Contract Award Notice": domain.ProcurementTender,
		"":                              domain.ProcurementTender,
	}
	for in, want := range tests {
		if got := ClassifyProcurementType(in); got != want {
			t.Errorf("ClassifyProcurementType(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestNormalizeCategory(t *testing.T) {
	tests := []struct {
		label   string
		context []string
		want    string
	}{
		{"construction", nil, CategoryConstruction},
		{"IT & Software", nil, CategoryIT},
		{"Goods", []string{"Cloud hosting platform"}, CategoryIT},
		{"Services", []string{"Snow removal for city parks"}, CategoryFacilities},
		{"", []string{"Consulting on governance"}, CategoryProfessional},
		{"Other", []string{"Widgets"}, CategoryMiscellaneous},
	}
	for _, tt := range tests {
		if got := NormalizeCategory(tt.label, tt.context...); got != tt.want {
			t.Errorf("NormalizeCategory(%q, %v) = %q, want %q", tt.label, tt.context, got, tt.want)
		}
	}
}

func TestQuebecCategory(t *testing.T) {
	if got := QuebecCategory(39); got != CategoryEngineering {
		t.Errorf("expected Engineering for 39, got %q", got)
	}
	if got := QuebecCategory(54); got != CategoryMiscellaneous {
		t.Errorf("expected Miscellaneous for unmapped id, got %q", got)
	}
}

func TestParseAmount(t *testing.T) {
	if got := parseAmount("$1,000.50"); got == nil || *got != 1000.5 {
		t.Errorf("unexpected amount %v", got)
	}
	if got := parseAmount(float64(42)); got == nil || *got != 42 {
		t.Errorf("unexpected amount %v", got)
	}
	if got := parseAmount("TBD"); got != nil {
		t.Errorf("expected nil for non-numeric, got %v", *got)
	}
	if got := parseAmount(""); got != nil {
		t.Errorf("expected nil for empty, got %v", *got)
	}
}
