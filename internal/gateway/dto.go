package gateway

import "encoding/json"

// RunEnvelope wraps a serialized backtest result for WebSocket delivery.
type RunEnvelope struct {
	Type string          `json:"type"` // "run_result"
	TS   string          `json:"ts"`
	Data json.RawMessage `json:"data"`
}

// BacktestRequest is the POST /api/backtest body.
type BacktestRequest struct {
	Symbol      string `json:"symbol"`
	Start       string `json:"start,omitempty"` // YYYY-MM-DD, open-ended when empty
	End         string `json:"end,omitempty"`
	InitialCash string `json:"initial_cash,omitempty"` // decimal string, default 1000000
}

// ErrorResponse is the JSON error body for REST endpoints.
type ErrorResponse struct {
	Error string `json:"error"`
}
