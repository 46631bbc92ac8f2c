// Package histdata is the client for the daily-history provider. Sessions
// are authenticated with client code + password + a TOTP derived from the
// account secret; all record fields come back as strings and are parsed
// downstream.
package histdata

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/pquerna/otp/totp"

	"github.com/JDkeyzl/getStocksData/internal/metrics"
	"github.com/JDkeyzl/getStocksData/internal/model"
)

// Config carries the provider endpoint and account credentials.
type Config struct {
	BaseURL    string
	ClientCode string
	Password   string
	TOTPSecret string

	Timeout time.Duration // default 15s
	Debug   bool
}

// Client is a logged-in provider session. Not safe for concurrent use
// during Login/Logout; DailyHistory calls may run concurrently once a
// session is established.
type Client struct {
	cfg         Config
	httpClient  *http.Client
	accessToken string
}

var routes = map[string]string{
	"session.login":  "/api/v1/session/login",
	"session.logout": "/api/v1/session/logout",
	"history.daily":  "/api/v1/history/daily",
}

// Record is one daily bar as delivered on the wire. Every field is a
// string; Volume may be empty, in which case Amount stands in for it.
type Record struct {
	Date   string `json:"date"`
	Open   string `json:"open"`
	High   string `json:"high"`
	Low    string `json:"low"`
	Close  string `json:"close"`
	Volume string `json:"volume"`
	Amount string `json:"amount"`
}

// New builds an unauthenticated client. Call Login before DailyHistory.
func New(cfg Config) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 15 * time.Second
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
}

// Login generates a fresh TOTP from the account secret and opens a session.
// The returned token is held on the client and attached to every request.
func (c *Client) Login(ctx context.Context) error {
	code, err := totp.GenerateCode(c.cfg.TOTPSecret, time.Now())
	if err != nil {
		return fmt.Errorf("totp: %w", err)
	}

	res, err := c.post(ctx, "session.login", map[string]string{
		"clientcode": c.cfg.ClientCode,
		"password":   c.cfg.Password,
		"totp":       code,
	})
	if err != nil {
		return err
	}

	token, _ := res["token"].(string)
	if token == "" {
		return errors.New("login succeeded but no token in response")
	}
	c.accessToken = token
	log.Printf("[histdata] session opened for %s", c.cfg.ClientCode)
	return nil
}

// Logout closes the session. Safe to call on a never-logged-in client.
func (c *Client) Logout(ctx context.Context) error {
	if c.accessToken == "" {
		return nil
	}
	_, err := c.post(ctx, "session.logout", map[string]string{
		"clientcode": c.cfg.ClientCode,
	})
	c.accessToken = ""
	return err
}

// DailyHistory fetches the daily records for one symbol over [from, to],
// both inclusive. A zero bound leaves that side open. Records come back in
// whatever order and shape the provider sends them; parse with ParseRecords.
func (c *Client) DailyHistory(ctx context.Context, symbol string, from, to time.Time) ([]Record, error) {
	if c.accessToken == "" {
		return nil, errors.New("not logged in")
	}

	params := map[string]string{"symbol": symbol, "frequency": "d"}
	if !from.IsZero() {
		params["start_date"] = from.Format(model.DateLayout)
	}
	if !to.IsZero() {
		params["end_date"] = to.Format(model.DateLayout)
	}

	start := time.Now()
	res, err := c.post(ctx, "history.daily", params)
	metrics.ProviderFetchDur.Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.ProviderFetches.WithLabelValues("error").Inc()
		return nil, err
	}
	metrics.ProviderFetches.WithLabelValues("ok").Inc()

	raw, err := json.Marshal(res["data"])
	if err != nil {
		return nil, fmt.Errorf("re-encode data: %w", err)
	}
	var records []Record
	if err := json.Unmarshal(raw, &records); err != nil {
		return nil, fmt.Errorf("unexpected history payload: %w", err)
	}
	return records, nil
}

// ParseRecords converts wire records to bars, dropping any record with an
// unparseable field instead of failing the whole series. Returns the bars
// and the number of dropped records.
func ParseRecords(symbol string, records []Record) ([]model.Bar, int) {
	bars := make([]model.Bar, 0, len(records))
	dropped := 0
	for _, r := range records {
		bar, err := model.ParseBar(r.Date, r.Open, r.High, r.Low, r.Close, r.Volume, r.Amount)
		if err != nil {
			dropped++
			metrics.BarsDropped.Inc()
			log.Printf("[histdata] %s: dropping record %q: %v", symbol, r.Date, err)
			continue
		}
		bars = append(bars, bar)
	}
	return bars, dropped
}

func (c *Client) post(ctx context.Context, route string, params map[string]string) (map[string]any, error) {
	uri, ok := routes[route]
	if !ok {
		return nil, fmt.Errorf("unknown route: %s", route)
	}

	body, _ := json.Marshal(params)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+uri, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.accessToken)
	}

	if c.cfg.Debug {
		log.Printf("[histdata] POST %s params=%v", uri, params)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if c.cfg.Debug {
		log.Printf("[histdata] response code=%d body=%s", resp.StatusCode, raw)
	}

	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("couldn't parse JSON response: %w", err)
	}
	if st, ok := out["status"].(bool); ok && !st {
		msg, _ := out["message"].(string)
		return out, fmt.Errorf("provider rejected %s: %s", route, msg)
	}
	if resp.StatusCode != http.StatusOK {
		return out, fmt.Errorf("provider returned %d for %s", resp.StatusCode, route)
	}
	return out, nil
}
