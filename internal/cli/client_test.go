package cli

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestClientSendsIdempotencyKeyAndDecodes(t *testing.T) {
	var gotKey, gotPath, gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("Idempotency-Key")
		gotPath = r.URL.RequestURI()
		raw, _ := io.ReadAll(r.Body)
		gotBody = string(raw)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"balance":820,"businesses":[]}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL + "/")
	st, err := c.Trade(context.Background(), "stocks", "AAPL", "buy", 1, "key-1")
	if err != nil {
		t.Fatalf("trade: %v", err)
	}
	if st.Balance != 820 {
		t.Fatalf("balance = %v", st.Balance)
	}
	if gotKey != "key-1" || gotPath != "/v1/stocks/AAPL/buy" || gotBody != `{"amount":1}` {
		t.Fatalf("request key=%q path=%q body=%q", gotKey, gotPath, gotBody)
	}

	if _, err := c.Buy(context.Background(), "upgrades", "click_boost", true, ""); err != nil {
		t.Fatalf("buy: %v", err)
	}
	if gotPath != "/v1/upgrades/click_boost/buy?max=1" || gotBody != "" {
		t.Fatalf("buy request path=%q body=%q", gotPath, gotBody)
	}
}

func TestClientErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]any{"error": "insufficient funds"})
	}))
	c := NewClient(srv.URL)
	_, err := c.Tap(context.Background())
	if !IsRejected(err) {
		t.Fatalf("expected rejection, got %v", err)
	}
	if apiErr := err.(*APIError); apiErr.Status != http.StatusBadRequest || apiErr.Message != "insufficient funds" {
		t.Fatalf("unexpected api error %+v", apiErr)
	}

	srv.Close()
	c.HTTP.Timeout = time.Second
	_, err = c.State(context.Background())
	if err == nil || IsRejected(err) {
		t.Fatalf("closed server should be a delivery failure, got %v", err)
	}
}

func TestBackupRoundTrip(t *testing.T) {
	dir := t.TempDir()
	if _, err := LoadBackup(dir); err == nil {
		t.Fatalf("expected error without a backup")
	}
	want := Backup{Code: "eyJiYWxhbmNlIjoxfQ==", ExportedAt: time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)}
	if err := SaveBackup(dir, want); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err := LoadBackup(dir)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.Code != want.Code || !got.ExportedAt.Equal(want.ExportedAt) {
		t.Fatalf("backup = %+v", got)
	}
}
