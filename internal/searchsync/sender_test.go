package searchsync

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestHTTPSender_SyncAll(t *testing.T) {
	var gotPath, gotMethod string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotMethod = r.Method
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"success","total_tenders":12,"indexed":11,"failed":1}`))
	}))
	defer server.Close()

	result := NewHTTPSender(server.URL+"/", 5*time.Second).Send(context.Background(), "")

	if !result.IsSuccess() {
		t.Fatalf("expected success, got status=%d err=%v", result.StatusCode, result.Error)
	}
	if gotMethod != http.MethodPost {
		t.Errorf("expected POST, got %s", gotMethod)
	}
	if gotPath != "/elasticsearch/sync" {
		t.Errorf("expected /elasticsearch/sync, got %s", gotPath)
	}
	if result.Summary.TotalTenders != 12 || result.Summary.Indexed != 11 || result.Summary.Failed != 1 {
		t.Errorf("unexpected summary: %+v", result.Summary)
	}
	if result.Duration <= 0 {
		t.Error("duration should be positive")
	}
}

func TestHTTPSender_SyncOne(t *testing.T) {
	var gotPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Write([]byte(`{"status":"success","tender_id":"tor-42","message":"Tender synced successfully"}`))
	}))
	defer server.Close()

	result := NewHTTPSender(server.URL, 0).Send(context.Background(), "tor-42")

	if gotPath != "/elasticsearch/sync/tor-42" {
		t.Errorf("expected /elasticsearch/sync/tor-42, got %s", gotPath)
	}
	if result.Summary.TenderID != "tor-42" {
		t.Errorf("expected tender id tor-42, got %q", result.Summary.TenderID)
	}
}

func TestHTTPSender_ErrorStatusInBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"error","error":"index unavailable"}`))
	}))
	defer server.Close()

	result := NewHTTPSender(server.URL, 0).Send(context.Background(), "")

	if result.IsSuccess() {
		t.Fatal("expected failure when body reports error")
	}
	if !result.IsRetryable() {
		t.Error("expected body-level error to be retryable")
	}
}

func TestHTTPSender_NotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"detail":"Tender not found"}`))
	}))
	defer server.Close()

	result := NewHTTPSender(server.URL, 0).Send(context.Background(), "missing")

	if result.StatusCode != 404 {
		t.Errorf("expected 404, got %d", result.StatusCode)
	}
	if result.Error != nil {
		t.Errorf("expected no transport error, got %v", result.Error)
	}
	if result.IsRetryable() {
		t.Error("404 should not be retryable")
	}
}

func TestHTTPSender_Timeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer server.Close()

	result := NewHTTPSender(server.URL, 20*time.Millisecond).Send(context.Background(), "")

	if result.Error == nil {
		t.Fatal("expected timeout error")
	}
}

func TestHTTPSender_ConnectionError(t *testing.T) {
	result := NewHTTPSender("http://127.0.0.1:1", time.Second).Send(context.Background(), "")

	if result.Error == nil {
		t.Fatal("expected connection error")
	}
	if result.StatusCode != 0 {
		t.Errorf("expected status 0, got %d", result.StatusCode)
	}
}
