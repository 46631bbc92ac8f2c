package histdata

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/pquerna/otp/totp"
)

const testSecret = "JBSWY3DPEHPK3PXP"

// fakeProvider stands in for the upstream API. It validates the TOTP on
// login and serves a canned daily series.
func fakeProvider(t *testing.T, records []Record) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()

	mux.HandleFunc("/api/v1/session/login", func(w http.ResponseWriter, r *http.Request) {
		var req map[string]string
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode login body: %v", err)
		}
		if !totp.Validate(req["totp"], testSecret) {
			json.NewEncoder(w).Encode(map[string]any{"status": false, "message": "invalid totp"})
			return
		}
		json.NewEncoder(w).Encode(map[string]any{"status": true, "token": "tok-123"})
	})

	mux.HandleFunc("/api/v1/history/daily", func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer tok-123" {
			w.WriteHeader(http.StatusUnauthorized)
			json.NewEncoder(w).Encode(map[string]any{"status": false, "message": "no session"})
			return
		}
		json.NewEncoder(w).Encode(map[string]any{"status": true, "data": records})
	})

	mux.HandleFunc("/api/v1/session/logout", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"status": true})
	})

	return httptest.NewServer(mux)
}

func testClient(srv *httptest.Server) *Client {
	return New(Config{
		BaseURL:    srv.URL,
		ClientCode: "C123",
		Password:   "pw",
		TOTPSecret: testSecret,
	})
}

func TestClient_LoginAndDailyHistory(t *testing.T) {
	srv := fakeProvider(t, []Record{
		{Date: "2024-01-02", Open: "10.0", High: "10.5", Low: "9.8", Close: "10.2", Volume: "1000"},
		{Date: "2024-01-03", Open: "10.2", High: "10.9", Low: "10.1", Close: "10.8", Volume: "1200"},
	})
	defer srv.Close()

	c := testClient(srv)
	if err := c.Login(context.Background()); err != nil {
		t.Fatalf("login: %v", err)
	}

	recs, err := c.DailyHistory(context.Background(), "sh.600000",
		time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), time.Time{})
	if err != nil {
		t.Fatalf("daily history: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("got %d records, want 2", len(recs))
	}
	if recs[0].Close != "10.2" {
		t.Errorf("first close = %q, want 10.2", recs[0].Close)
	}

	if err := c.Logout(context.Background()); err != nil {
		t.Errorf("logout: %v", err)
	}
}

func TestClient_DailyHistoryWithoutLogin(t *testing.T) {
	srv := fakeProvider(t, nil)
	defer srv.Close()

	c := testClient(srv)
	if _, err := c.DailyHistory(context.Background(), "sh.600000", time.Time{}, time.Time{}); err == nil {
		t.Fatal("expected error without a session")
	}
}

func TestClient_LoginRejectedByProvider(t *testing.T) {
	srv := fakeProvider(t, nil)
	defer srv.Close()

	c := New(Config{
		BaseURL:    srv.URL,
		ClientCode: "C123",
		Password:   "pw",
		TOTPSecret: "NOTTHESECRETAAAA",
	})
	if err := c.Login(context.Background()); err == nil {
		t.Fatal("expected login failure on wrong secret")
	}
}

func TestParseRecords_DropsBadRows(t *testing.T) {
	records := []Record{
		{Date: "2024-01-02", Open: "10.0", High: "10.5", Low: "9.8", Close: "10.2", Volume: "1000"},
		{Date: "2024-01-03", Open: "oops", High: "10.9", Low: "10.1", Close: "10.8", Volume: "1200"},
		{Date: "2024-01-04", Open: "10.8", High: "11.0", Low: "10.6", Close: "10.9", Volume: "", Amount: "10900"},
	}

	bars, dropped := ParseRecords("sh.600000", records)
	if dropped != 1 {
		t.Errorf("dropped = %d, want 1", dropped)
	}
	if len(bars) != 2 {
		t.Fatalf("got %d bars, want 2", len(bars))
	}
	// Missing volume falls back to amount/close.
	if got := bars[1].Volume; got != 10900/10.9 {
		t.Errorf("approximated volume = %f, want %f", got, 10900/10.9)
	}
}
