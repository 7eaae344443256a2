package source

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/xuri/excelize/v2"

	"github.com/FuJacob/mapletenders-sub000/internal/canonical"
	"github.com/FuJacob/mapletenders-sub000/internal/domain"
)

func TestParseODataValue(t *testing.T) {
	body := []byte(`{"@odata.count":2,"value":[{"Solicitation_Document_Number":"Doc1"},{"Solicitation_Document_Number":"Doc2"}]}`)
	records, err := parseODataValue(domain.SourceToronto, body)
	if err != nil {
		t.Fatalf("parseODataValue failed: %v", err)
	}
	if len(records) != 2 || records[1].Text("Solicitation_Document_Number") != "Doc2" {
		t.Errorf("unexpected records: %+v", records)
	}

	if _, err := parseODataValue(domain.SourceToronto, []byte(`{"error":"blocked"}`)); err == nil {
		t.Error("expected error when value array is missing")
	}
	if _, err := parseODataValue(domain.SourceToronto, []byte(`Access Denied`)); err == nil {
		t.Error("expected error for non-JSON page text")
	}
}

func TestParseSearchPayload(t *testing.T) {
	records, err := parseSearchPayload(domain.SourceHamilton, []byte(`{"total":1,"data":[{"Id":"abc","Title":"RFT25-104 Road"}]}`))
	if err != nil {
		t.Fatalf("parseSearchPayload failed: %v", err)
	}
	if len(records) != 1 || records[0].Kind != domain.SourceHamilton || records[0].Text("Id") != "abc" {
		t.Errorf("unexpected records: %+v", records)
	}

	if _, err := parseSearchPayload(domain.SourceHamilton, []byte(`{"total":0}`)); err == nil {
		t.Error("expected error without data array")
	}
}

func TestIsSearchResponse(t *testing.T) {
	tests := []struct {
		url  string
		mime string
		want bool
	}{
		{"https://hamilton.bidsandtenders.ca/Module/Tenders/en/Tender/Search/abc", "application/json", true},
		{"https://hamilton.bidsandtenders.ca/Module/Tenders/en/Tender/Search/abc", "Application/JSON; charset=utf-8", true},
		{"https://hamilton.bidsandtenders.ca/Module/Tenders/en/Tender/Search/abc", "text/html", false},
		{"https://hamilton.bidsandtenders.ca/Module/Tenders/en/Tender/Detail/abc", "application/json", false},
	}
	for _, tt := range tests {
		if got := isSearchResponse(tt.url, tt.mime); got != tt.want {
			t.Errorf("isSearchResponse(%q, %q) = %v, want %v", tt.url, tt.mime, got, tt.want)
		}
	}
}

func TestSearchCapture_WaitsForLoadingFinished(t *testing.T) {
	c := newSearchCapture()
	search := "https://london.bidsandtenders.ca" + domain.SearchPathFragment + "x"

	c.observe(&network.EventResponseReceived{RequestID: "other", Response: &network.Response{URL: "https://x/y", MimeType: "application/json"}})
	c.observe(&network.EventLoadingFinished{RequestID: "other"})
	if _, ok := c.ready(); ok {
		t.Fatal("unrelated response should not be captured")
	}

	c.observe(&network.EventResponseReceived{RequestID: "search", Response: &network.Response{URL: search, MimeType: "application/json"}})
	if _, ok := c.ready(); ok {
		t.Fatal("response body is not available before loading finishes")
	}

	c.observe(&network.EventLoadingFinished{RequestID: "search"})
	id, ok := c.wait(context.Background(), 1, time.Millisecond)
	if !ok || id != "search" {
		t.Errorf("expected captured id 'search', got %q (%v)", id, ok)
	}
}

func TestSearchCapture_WaitGivesUp(t *testing.T) {
	c := newSearchCapture()
	start := time.Now()
	if _, ok := c.wait(context.Background(), 3, time.Millisecond); ok {
		t.Error("expected no capture")
	}
	if time.Since(start) > time.Second {
		t.Error("wait should stop after its attempts")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, ok := c.wait(ctx, 100, time.Hour); ok {
		t.Error("expected no capture on cancelled context")
	}
}

func writeWorkbook(t *testing.T, rows [][]interface{}) string {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			t.Fatal(err)
		}
		r := row
		if err := f.SetSheetRow("Sheet1", cell, &r); err != nil {
			t.Fatal(err)
		}
	}
	path := filepath.Join(t.TempDir(), "export.xlsx")
	if err := f.SaveAs(path); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestReadWorkbook_FindsHeaderRow(t *testing.T) {
	path := writeWorkbook(t, [][]interface{}{
		{"Ontario Tenders Portal"},
		{"Exported on 02/06/2025"},
		{},
		{"Project Code", "Project Title", "Listing Expiry Date (dd/mm/yyyy hh:mm)"},
		{"tender_1001", "Bridge deck rehab", "15/07/2025 14:00"},
		{},
		{"tender_1002", "IT support", "20/07/2025 11:00"},
	})

	records, err := ReadWorkbook(domain.SourceOntario, path)
	if err != nil {
		t.Fatalf("ReadWorkbook failed: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	if got := records[0].Text("Project Code"); got != "tender_1001" {
		t.Errorf("expected tender_1001, got %q", got)
	}
	if got := records[1].Text("Project Title"); got != "IT support" {
		t.Errorf("expected IT support, got %q", got)
	}
}

func TestReadWorkbook_SerialDateCells(t *testing.T) {
	path := writeWorkbook(t, [][]interface{}{
		{"Project Code", "Project Title", "Listing Expiry Date (dd/mm/yyyy hh:mm)", "Estimated Contract Start Date (dd/mm/yyyy)", "Estimated Value of Contract"},
		{"tender_2001", "Road resurfacing", 45000.5, 45123, 250000},
		{"tender_2002", "Snow removal", "15/07/2025 14:00", "", ""},
	})

	records, err := ReadWorkbook(domain.SourceOntario, path)
	if err != nil {
		t.Fatalf("ReadWorkbook failed: %v", err)
	}
	tenders, errs := canonical.Batch(domain.SourceOntario, records, time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC))
	if len(errs) != 0 {
		t.Fatalf("unexpected mapping errors: %v", errs)
	}
	if len(tenders) != 2 {
		t.Fatalf("expected 2 tenders, got %d", len(tenders))
	}

	road := tenders[0]
	if road.ClosingDate == nil || !road.ClosingDate.Equal(time.Date(2023, 3, 15, 12, 0, 0, 0, time.UTC)) {
		t.Errorf("unexpected closing date %v", road.ClosingDate)
	}
	if road.ContractStartDate == nil || !road.ContractStartDate.Equal(time.Date(2023, 7, 16, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("unexpected contract start %v", road.ContractStartDate)
	}
	if road.EstimatedValue == nil || *road.EstimatedValue != 250000 {
		t.Errorf("unexpected estimated value %v", road.EstimatedValue)
	}

	snow := tenders[1]
	if snow.ClosingDate == nil || !snow.ClosingDate.Equal(time.Date(2025, 7, 15, 14, 0, 0, 0, time.UTC)) {
		t.Errorf("unexpected closing date %v", snow.ClosingDate)
	}
}

func TestFindHeaderRow(t *testing.T) {
	tests := []struct {
		name string
		rows [][]string
		want int
	}{
		{"project code marker", [][]string{{"x"}, {" PROJECT CODE "}}, 1},
		{"tender_ marker", [][]string{{}, {"tender_id"}}, 1},
		{"fallback", [][]string{{"a"}, {"b"}, {"c"}, {"d"}, {"e"}, {"f"}, {"Code"}, {"1"}}, 6},
		{"too short", [][]string{{"a"}}, -1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := findHeaderRow(tt.rows); got != tt.want {
				t.Errorf("expected %d, got %d", tt.want, got)
			}
		})
	}
}

func TestWaitForFile(t *testing.T) {
	dir := t.TempDir()
	go func() {
		time.Sleep(50 * time.Millisecond)
		os.WriteFile(filepath.Join(dir, "partial.crdownload"), []byte("x"), 0o600)
		os.WriteFile(filepath.Join(dir, "Export.XLSX"), []byte("x"), 0o600)
	}()

	path, err := waitForFile(context.Background(), dir, ".xlsx", 5*time.Second)
	if err != nil {
		t.Fatalf("waitForFile failed: %v", err)
	}
	if filepath.Base(path) != "Export.XLSX" {
		t.Errorf("unexpected file %s", path)
	}

	if _, err := waitForFile(context.Background(), t.TempDir(), ".xlsx", 10*time.Millisecond); err == nil {
		t.Error("expected timeout error")
	}
}
