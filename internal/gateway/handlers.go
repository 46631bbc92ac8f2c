package gateway

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"

	"github.com/JDkeyzl/getStocksData/config"
	"github.com/JDkeyzl/getStocksData/internal/backtest"
	"github.com/JDkeyzl/getStocksData/internal/model"
	redisstore "github.com/JDkeyzl/getStocksData/internal/store/redis"
	sqlitestore "github.com/JDkeyzl/getStocksData/internal/store/sqlite"
)

var upgrader = websocket.Upgrader{
	CheckOrigin:       func(r *http.Request) bool { return true },
	EnableCompression: true,
}

// Server bundles the gateway's dependencies behind the REST and WS routes.
// Cache may be nil; bar reads then go straight to SQLite and run results
// are only broadcast locally.
type Server struct {
	Hub    *Hub
	Reader *sqlitestore.Reader
	Writer *sqlitestore.Writer
	Cache  *redisstore.Cache
	Runner *backtest.Runner
	Params config.StrategyParams
}

// Routes builds the HTTP mux for the reporting API.
func (s *Server) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWS)
	mux.HandleFunc("/api/runs", s.handleRuns)
	mux.HandleFunc("/api/runs/trades", s.handleTrades)
	mux.HandleFunc("/api/runs/snapshots", s.handleSnapshots)
	mux.HandleFunc("/api/bars", s.handleBars)
	mux.HandleFunc("/api/backtest", s.handleBacktest)
	return mux
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[gateway] ws upgrade error: %v", err)
		return
	}
	s.Hub.HandleWSRequest(conn)
}

func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	setCORS(w)
	w.Header().Set("Content-Type", "application/json")

	limit := 20
	if l, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && l > 0 && l <= 500 {
		limit = l
	}
	runs, err := s.Reader.GetRuns(limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if runs == nil {
		runs = []sqlitestore.RunRecord{}
	}
	json.NewEncoder(w).Encode(runs)
}

func (s *Server) handleTrades(w http.ResponseWriter, r *http.Request) {
	setCORS(w)
	w.Header().Set("Content-Type", "application/json")

	runID := r.URL.Query().Get("run_id")
	if runID == "" {
		writeError(w, http.StatusBadRequest, "run_id is required")
		return
	}
	trades, err := s.Reader.GetTrades(runID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if trades == nil {
		trades = []backtest.Trade{}
	}
	json.NewEncoder(w).Encode(trades)
}

func (s *Server) handleSnapshots(w http.ResponseWriter, r *http.Request) {
	setCORS(w)
	w.Header().Set("Content-Type", "application/json")

	runID := r.URL.Query().Get("run_id")
	if runID == "" {
		writeError(w, http.StatusBadRequest, "run_id is required")
		return
	}
	snaps, err := s.Reader.GetSnapshots(runID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if snaps == nil {
		snaps = []backtest.Snapshot{}
	}
	json.NewEncoder(w).Encode(snaps)
}

func (s *Server) handleBars(w http.ResponseWriter, r *http.Request) {
	setCORS(w)
	w.Header().Set("Content-Type", "application/json")

	symbol := r.URL.Query().Get("symbol")
	if symbol == "" {
		writeError(w, http.StatusBadRequest, "symbol is required")
		return
	}
	from, err := parseDateParam(r.URL.Query().Get("from"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "from: "+err.Error())
		return
	}
	to, err := parseDateParam(r.URL.Query().Get("to"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "to: "+err.Error())
		return
	}

	bars, err := s.loadBars(r, symbol, from, to)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if bars == nil {
		bars = []model.Bar{}
	}
	json.NewEncoder(w).Encode(bars)
}

// loadBars goes cache first when the full series is requested, SQLite
// otherwise.
func (s *Server) loadBars(r *http.Request, symbol string, from, to time.Time) ([]model.Bar, error) {
	if s.Cache != nil && from.IsZero() && to.IsZero() {
		if bars, err := s.Cache.GetBars(r.Context(), symbol); err == nil && bars != nil {
			return bars, nil
		}
	}
	return s.Reader.ReadBars(symbol, from, to)
}

func (s *Server) handleBacktest(w http.ResponseWriter, r *http.Request) {
	setCORS(w)
	w.Header().Set("Content-Type", "application/json")
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "POST only")
		return
	}

	var req BacktestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	if req.Symbol == "" {
		writeError(w, http.StatusBadRequest, "symbol is required")
		return
	}
	from, err := parseDateParam(req.Start)
	if err != nil {
		writeError(w, http.StatusBadRequest, "start: "+err.Error())
		return
	}
	to, err := parseDateParam(req.End)
	if err != nil {
		writeError(w, http.StatusBadRequest, "end: "+err.Error())
		return
	}

	initialCash := decimal.NewFromInt(1_000_000)
	if req.InitialCash != "" {
		initialCash, err = decimal.NewFromString(req.InitialCash)
		if err != nil {
			writeError(w, http.StatusBadRequest, "initial_cash: "+err.Error())
			return
		}
	}

	bars, err := s.Reader.ReadBars(req.Symbol, from, to)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if len(bars) == 0 {
		writeError(w, http.StatusNotFound, "no bars stored for "+req.Symbol)
		return
	}

	res, err := s.Runner.Run(r.Context(), req.Symbol, bars, initialCash)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	if s.Writer != nil {
		if err := s.Writer.SaveRun(res, s.Params); err != nil {
			log.Printf("[gateway] journal run %s failed: %v", res.RunID, err)
		}
	}

	payload, err := json.Marshal(res)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.Hub.BroadcastRun(payload)
	if s.Cache != nil {
		if err := s.Cache.PublishRun(r.Context(), payload); err != nil {
			log.Printf("[gateway] publish run %s failed: %v", res.RunID, err)
		}
	}

	w.Write(payload)
}

func parseDateParam(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse(model.DateLayout, s)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(ErrorResponse{Error: msg})
}

func setCORS(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
}
