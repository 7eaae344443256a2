package canonical

import (
	"testing"
	"time"

	"github.com/FuJacob/mapletenders-sub000/internal/domain"
)

func TestMergeByKey_StringColumn(t *testing.T) {
	records := []domain.RawRecord{
		{Kind: domain.SourceCanadian, Fields: map[string]any{"ref": "A", "region": "Ontario", "title": "first"}},
		{Kind: domain.SourceCanadian, Fields: map[string]any{"ref": "B", "region": "Quebec"}},
		{Kind: domain.SourceCanadian, Fields: map[string]any{"ref": "A", "region": "Quebec", "title": "second"}},
		{Kind: domain.SourceCanadian, Fields: map[string]any{"ref": "A", "region": "Ontario"}},
	}

	got := MergeByKey(records, "ref", "region")
	if len(got) != 2 {
		t.Fatalf("expected 2 merged rows, got %d", len(got))
	}
	if got[0].Text("ref") != "A" || got[1].Text("ref") != "B" {
		t.Errorf("expected first-seen order A,B, got %s,%s", got[0].Text("ref"), got[1].Text("ref"))
	}
	if region := got[0].Text("region"); region != "Ontario, Quebec" {
		t.Errorf("expected de-duplicated join, got %q", region)
	}
	if title := got[0].Text("title"); title != "first" {
		t.Errorf("expected first row's other fields to survive, got %q", title)
	}
	if records[0].Text("region") != "Ontario" {
		t.Error("input record was mutated")
	}
}

func TestMergeByKey_ArrayColumn(t *testing.T) {
	records := []domain.RawRecord{
		{Kind: domain.SourceQuebec, Fields: map[string]any{"numero": "Q1", "regionIds": []any{float64(3), float64(6)}}},
		{Kind: domain.SourceQuebec, Fields: map[string]any{"numero": "Q1", "regionIds": []any{float64(6), float64(13)}}},
	}

	got := MergeByKey(records, "numero", "regionIds")
	if len(got) != 1 {
		t.Fatalf("expected 1 row, got %d", len(got))
	}
	regions, ok := got[0].Fields["regionIds"].([]any)
	if !ok {
		t.Fatalf("expected array column to stay an array, got %T", got[0].Fields["regionIds"])
	}
	want := []string{"3", "6", "13"}
	if len(regions) != len(want) {
		t.Fatalf("expected %v, got %v", want, regions)
	}
	for i, w := range want {
		if regions[i] != w {
			t.Errorf("position %d: expected %s, got %v", i, w, regions[i])
		}
	}
}

func TestMergeByKey_RowsWithoutKeyPassThrough(t *testing.T) {
	records := []domain.RawRecord{
		{Fields: map[string]any{"region": "x"}},
		{Fields: map[string]any{"region": "y"}},
	}
	got := MergeByKey(records, "ref", "region")
	if len(got) != 2 {
		t.Errorf("expected keyless rows to pass through, got %d", len(got))
	}
}

func TestBatch_QuebecMergesRegionsBeforeMapping(t *testing.T) {
	records := []domain.RawRecord{
		{Kind: domain.SourceQuebec, Fields: map[string]any{"id": "1", "numero": "Q1", "regionIds": []any{float64(3)}}},
		{Kind: domain.SourceQuebec, Fields: map[string]any{"id": "1", "numero": "Q1", "regionIds": []any{float64(6)}}},
	}
	tenders, errs := Batch(domain.SourceQuebec, records, time.Now())
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	if len(tenders) != 1 {
		t.Fatalf("expected 1 tender after merge, got %d", len(tenders))
	}
	if tenders[0].DeliveryLocation != "3, 6" {
		t.Errorf("expected merged delivery location, got %q", tenders[0].DeliveryLocation)
	}
}
