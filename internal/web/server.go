package web

import (
	"encoding/json"
	"net/http"
	"runtime"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/unifiprotocol/upcore/internal/controller"
	"github.com/unifiprotocol/upcore/internal/darbi"
	"github.com/unifiprotocol/upcore/internal/logger"
	"github.com/unifiprotocol/upcore/internal/premium"
	"github.com/unifiprotocol/upcore/internal/rebalancer"
	"github.com/unifiprotocol/upcore/internal/redeemer"
	"github.com/unifiprotocol/upcore/internal/state"
	"github.com/unifiprotocol/upcore/internal/token"
	"github.com/unifiprotocol/upcore/internal/utils"
)

var webLogger = logger.GetForComponent("web_server")

// Deps are the live components the status API reads from.
type Deps struct {
	Token      *token.Token
	Controller *controller.Controller
	Premium    *premium.Minter
	Redeemer   *redeemer.Redeemer
	Engine     *darbi.Engine
	Rebalancer *rebalancer.Rebalancer
}

// WebServer exposes system state over HTTP. All endpoints are read-only.
type WebServer struct {
	router *mux.Router
	addr   string
	deps   Deps
	start  time.Time
}

// NewWebServer creates a new web server bound to addr.
func NewWebServer(addr string, deps Deps) *WebServer {
	if addr == "" {
		addr = ":8080"
	}

	server := &WebServer{
		router: mux.NewRouter(),
		addr:   addr,
		deps:   deps,
		start:  time.Now(),
	}

	server.setupRoutes()
	return server
}

func (ws *WebServer) setupRoutes() {
	ws.router.HandleFunc("/health", ws.handleHealth).Methods("GET")

	api := ws.router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/health", ws.handleHealth).Methods("GET")
	api.HandleFunc("/status", ws.handleStatus).Methods("GET")
	api.HandleFunc("/receipts/arbitrage", ws.handleArbitrageReceipts).Methods("GET")
	api.HandleFunc("/receipts/rebalance", ws.handleRebalanceReceipts).Methods("GET")
	api.HandleFunc("/rewards", ws.handleRewards).Methods("GET")

	ws.router.Use(ws.corsMiddleware)
	ws.router.Use(ws.loggingMiddleware)
}

// Start starts the web server and blocks.
func (ws *WebServer) Start() error {
	webLogger.Info().Str("addr", ws.addr).Msg("Starting web server")

	server := &http.Server{
		Addr:         ws.addr,
		Handler:      ws.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return server.ListenAndServe()
}

// handleHealth returns process and database health.
func (ws *WebServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	dbHealthy := true
	if state.DB != nil {
		if err := state.TestDBConnection(); err != nil {
			dbHealthy = false
		}
	}

	status := "OK"
	statusCode := http.StatusOK
	if !dbHealthy {
		status = "DEGRADED"
		statusCode = http.StatusServiceUnavailable
	}

	response := map[string]interface{}{
		"status":    status,
		"timestamp": time.Now().UTC().Format(time.RFC3339Nano),
		"system": map[string]interface{}{
			"version":          runtime.Version(),
			"goroutines_count": runtime.NumGoroutine(),
			"alloc_bytes":      memStats.Alloc,
			"sys_bytes":        memStats.Sys,
			"gc_cycles":        memStats.NumGC,
			"uptime_seconds":   int64(time.Since(ws.start).Seconds()),
		},
		"database_healthy":   dbHealthy,
		"persistence_active": state.DB != nil,
	}

	ws.writeJSONResponse(w, statusCode, response)
}

// handleStatus returns the live economic state of the system.
func (ws *WebServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	ctrl := ws.deps.Controller

	price := ctrl.VirtualPrice()
	priceFloat, err := utils.SDKIntToFloat64(price, 18)
	if err != nil {
		priceFloat = 0
	}

	response := map[string]interface{}{
		"timestamp": time.Now().UTC(),
		"token": map[string]interface{}{
			"total_supply": ws.deps.Token.TotalSupply().String(),
		},
		"controller": map[string]interface{}{
			"virtual_price":       price.String(),
			"virtual_price_float": priceFloat,
			"native_balance":      ctrl.NativeBalance().String(),
			"native_borrowed":     ctrl.NativeBorrowed().String(),
			"up_borrowed":         ctrl.UpBorrowed().String(),
			"actual_total_supply": ctrl.ActualTotalSupply().String(),
			"mint_rate":           ctrl.MintRate(),
		},
		"premium": map[string]interface{}{
			"mint_rate": ws.deps.Premium.MintRate(),
			"paused":    ws.deps.Premium.Paused(),
		},
		"redeemer": map[string]interface{}{
			"paused": ws.deps.Redeemer.Paused(),
		},
		"engine": map[string]interface{}{
			"arbitrage_threshold": ws.deps.Engine.ArbitrageThreshold().String(),
			"gas_refund":          ws.deps.Engine.GasRefund().String(),
			"darbi_funds":         ws.deps.Engine.DarbiFunds().String(),
		},
		"rebalancer": map[string]interface{}{
			"allocation_lp":     ws.deps.Rebalancer.AllocationLP(),
			"allocation_redeem": ws.deps.Rebalancer.AllocationRedeem(),
			"slippage_bps":      ws.deps.Rebalancer.SlippageBps(),
		},
	}

	ws.writeJSONResponse(w, http.StatusOK, response)
}

// handleArbitrageReceipts returns recent arbitrage receipts from the
// database.
func (ws *WebServer) handleArbitrageReceipts(w http.ResponseWriter, r *http.Request) {
	receipts, err := state.GetRecentArbitrageReceipts(ws.limitParam(r))
	if err != nil {
		webLogger.Error().Err(err).Msg("Failed to get arbitrage receipts")
		ws.writeErrorResponse(w, http.StatusInternalServerError, "Failed to retrieve arbitrage receipts")
		return
	}

	ws.writeJSONResponse(w, http.StatusOK, map[string]interface{}{
		"receipts": receipts,
		"count":    len(receipts),
	})
}

// handleRebalanceReceipts returns recent rebalance receipts from the
// database.
func (ws *WebServer) handleRebalanceReceipts(w http.ResponseWriter, r *http.Request) {
	receipts, err := state.GetRecentRebalanceReceipts(ws.limitParam(r))
	if err != nil {
		webLogger.Error().Err(err).Msg("Failed to get rebalance receipts")
		ws.writeErrorResponse(w, http.StatusInternalServerError, "Failed to retrieve rebalance receipts")
		return
	}

	ws.writeJSONResponse(w, http.StatusOK, map[string]interface{}{
		"receipts": receipts,
		"count":    len(receipts),
	})
}

// handleRewards returns the in-memory reward history plus recent persisted
// observations.
func (ws *WebServer) handleRewards(w http.ResponseWriter, r *http.Request) {
	live := ws.deps.Rebalancer.Rewards()
	liveOut := make([]map[string]interface{}, 0, len(live))
	for _, reward := range live {
		liveOut = append(liveOut, map[string]interface{}{
			"deposited": reward.Deposited.String(),
			"rewards":   reward.Rewards.String(),
			"timestamp": reward.Timestamp,
		})
	}

	response := map[string]interface{}{
		"live": liveOut,
	}

	if state.DB != nil {
		persisted, err := state.GetRecentRewards(ws.limitParam(r))
		if err != nil {
			webLogger.Error().Err(err).Msg("Failed to get persisted rewards")
		} else {
			response["persisted"] = persisted
		}
	}

	ws.writeJSONResponse(w, http.StatusOK, response)
}

func (ws *WebServer) limitParam(r *http.Request) int {
	limit := 20
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if parsedLimit, err := strconv.Atoi(limitStr); err == nil && parsedLimit > 0 && parsedLimit <= 100 {
			limit = parsedLimit
		}
	}
	return limit
}

// writeJSONResponse writes a JSON response.
func (ws *WebServer) writeJSONResponse(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		webLogger.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

// writeErrorResponse writes an error response.
func (ws *WebServer) writeErrorResponse(w http.ResponseWriter, statusCode int, message string) {
	response := map[string]interface{}{
		"error":     true,
		"message":   message,
		"timestamp": time.Now().UTC(),
	}

	ws.writeJSONResponse(w, statusCode, response)
}

// corsMiddleware adds CORS headers.
func (ws *WebServer) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// loggingMiddleware logs HTTP requests.
func (ws *WebServer) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		wrapper := &responseWriterWrapper{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapper, r)

		webLogger.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Str("remote_addr", r.RemoteAddr).
			Int("status", wrapper.statusCode).
			Dur("duration", time.Since(start)).
			Msg("HTTP request")
	})
}

// responseWriterWrapper wraps http.ResponseWriter to capture status code.
type responseWriterWrapper struct {
	http.ResponseWriter
	statusCode int
}

func (w *responseWriterWrapper) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}
