package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"runtime"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/mercurial-finance/vault-portal/internal/logger"
	"github.com/mercurial-finance/vault-portal/internal/notify"
	"github.com/mercurial-finance/vault-portal/internal/portal"
	"github.com/mercurial-finance/vault-portal/internal/row"
	"github.com/mercurial-finance/vault-portal/internal/state"
)

var webLogger = logger.GetForComponent("web_server")

type amountRequest struct {
	Amount string `json:"amount"`
}

// WebServer exposes the portal over HTTP: vault rows, deposit/withdraw
// actions, snapshot history, affiliate fees, and notifications.
type WebServer struct {
	router   *mux.Router
	port     string
	portal   *portal.Portal
	notifier *notify.Hub
	started  time.Time
}

// NewWebServer creates a new web server instance.
func NewWebServer(port string, p *portal.Portal, notifier *notify.Hub) *WebServer {
	if port == "" {
		port = "8080"
	}

	server := &WebServer{
		router:   mux.NewRouter(),
		port:     port,
		portal:   p,
		notifier: notifier,
		started:  time.Now(),
	}

	server.setupRoutes()
	return server
}

// setupRoutes configures all HTTP routes
func (ws *WebServer) setupRoutes() {
	// Health endpoint (direct route)
	ws.router.HandleFunc("/health", ws.handleHealth).Methods("GET")

	// API endpoints
	api := ws.router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/health", ws.handleHealth).Methods("GET")
	api.HandleFunc("/vaults", ws.handleGetVaults).Methods("GET")
	api.HandleFunc("/vaults/{token}", ws.handleGetVault).Methods("GET")
	api.HandleFunc("/vaults/{token}/history", ws.handleGetVaultHistory).Methods("GET")
	api.HandleFunc("/vaults/{token}/deposit", ws.handleDeposit).Methods("POST")
	api.HandleFunc("/vaults/{token}/withdraw", ws.handleWithdraw).Methods("POST")
	api.HandleFunc("/vaults/{token}/max-deposit", ws.handleMaxDeposit).Methods("POST")
	api.HandleFunc("/vaults/{token}/max-withdraw", ws.handleMaxWithdraw).Methods("POST")
	api.HandleFunc("/vaults/{token}/expand", ws.handleToggleExpanded).Methods("POST")
	api.HandleFunc("/affiliate", ws.handleGetAffiliate).Methods("GET")
	api.HandleFunc("/notifications", ws.handleGetNotifications).Methods("GET")

	// Add CORS middleware
	ws.router.Use(ws.corsMiddleware)
	ws.router.Use(ws.loggingMiddleware)
}

// Handler returns the configured router.
func (ws *WebServer) Handler() http.Handler {
	return ws.router
}

// Start starts the web server
func (ws *WebServer) Start() error {
	webLogger.Info().Str("port", ws.port).Msg("Starting web server")

	server := &http.Server{
		Addr:         ":" + ws.port,
		Handler:      ws.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return server.ListenAndServe()
}

// handleHealth returns server health status
func (ws *WebServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	dbHealthy := true
	if state.Enabled() {
		if err := state.TestDBConnection(); err != nil {
			dbHealthy = false
		}
	}

	overallStatus := "OK"
	statusCode := http.StatusOK
	if !dbHealthy {
		overallStatus = "DEGRADED"
		statusCode = http.StatusServiceUnavailable
	}

	response := map[string]interface{}{
		"status":    overallStatus,
		"timestamp": time.Now().UTC().Format(time.RFC3339Nano),
		"system": map[string]interface{}{
			"version":          runtime.Version(),
			"goroutines_count": runtime.NumGoroutine(),
			"alloc_bytes":      memStats.Alloc,
			"sys_bytes":        memStats.Sys,
			"gc_cycles":        memStats.NumGC,
			"uptime_seconds":   int64(time.Since(ws.started).Seconds()),
		},
		"component": map[string]interface{}{
			"name":    "vault-portal",
			"version": "1.0.0",
		},
		"portal_status": map[string]interface{}{
			"vault_count":         len(ws.portal.Rows()),
			"persistence_enabled": state.Enabled(),
			"database_healthy":    dbHealthy,
		},
	}

	ws.writeJSONResponse(w, statusCode, response)
}

// handleGetVaults returns a snapshot of every vault row
func (ws *WebServer) handleGetVaults(w http.ResponseWriter, r *http.Request) {
	rows := ws.portal.Rows()
	snapshots := make([]row.Snapshot, 0, len(rows))
	for _, rc := range rows {
		snapshots = append(snapshots, rc.Snapshot())
	}

	response := map[string]interface{}{
		"vaults": snapshots,
		"count":  len(snapshots),
	}

	ws.writeJSONResponse(w, http.StatusOK, response)
}

// handleGetVault returns a single vault row by token address
func (ws *WebServer) handleGetVault(w http.ResponseWriter, r *http.Request) {
	rc, ok := ws.rowFromRequest(w, r)
	if !ok {
		return
	}

	ws.writeJSONResponse(w, http.StatusOK, rc.Snapshot())
}

// handleGetVaultHistory returns persisted snapshots for a vault
func (ws *WebServer) handleGetVaultHistory(w http.ResponseWriter, r *http.Request) {
	rc, ok := ws.rowFromRequest(w, r)
	if !ok {
		return
	}

	if !state.Enabled() {
		ws.writeErrorResponse(w, http.StatusNotFound, "Snapshot persistence is not enabled")
		return
	}

	limit := 100
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if parsedLimit, err := strconv.Atoi(limitStr); err == nil && parsedLimit > 0 && parsedLimit <= 1000 {
			limit = parsedLimit
		}
	}

	snapshots, err := state.GetRecentSnapshots(rc.Token().Address, limit)
	if err != nil {
		webLogger.Error().Err(err).Str("token", rc.Token().Address).Msg("Failed to get vault history")
		ws.writeErrorResponse(w, http.StatusInternalServerError, "Failed to retrieve vault history")
		return
	}

	response := map[string]interface{}{
		"token":     rc.Token().Address,
		"snapshots": snapshots,
		"count":     len(snapshots),
		"limit":     limit,
	}

	ws.writeJSONResponse(w, http.StatusOK, response)
}

// handleDeposit submits a deposit for a vault row
func (ws *WebServer) handleDeposit(w http.ResponseWriter, r *http.Request) {
	ws.handleAction(w, r, func(rc *row.Controller, amount string) error {
		rc.SetDepositInput(amount)
		return rc.Deposit(r.Context(), amount)
	})
}

// handleWithdraw submits a withdrawal for a vault row
func (ws *WebServer) handleWithdraw(w http.ResponseWriter, r *http.Request) {
	ws.handleAction(w, r, func(rc *row.Controller, amount string) error {
		rc.SetWithdrawInput(amount)
		return rc.Withdraw(r.Context(), amount)
	})
}

func (ws *WebServer) handleAction(w http.ResponseWriter, r *http.Request, run func(*row.Controller, string) error) {
	rc, ok := ws.rowFromRequest(w, r)
	if !ok {
		return
	}

	var req amountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ws.writeErrorResponse(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := run(rc, req.Amount); err != nil {
		switch {
		case errors.Is(err, row.ErrInvalidInput), errors.Is(err, row.ErrWalletNotConnected):
			ws.writeErrorResponse(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, row.ErrActionInFlight):
			ws.writeErrorResponse(w, http.StatusConflict, err.Error())
		default:
			webLogger.Error().Err(err).Str("token", rc.Token().Address).Msg("Vault action failed")
			ws.writeErrorResponse(w, http.StatusBadGateway, err.Error())
		}
		return
	}

	ws.writeJSONResponse(w, http.StatusOK, rc.Snapshot())
}

// handleMaxDeposit fills the deposit input with the maximum spendable balance
func (ws *WebServer) handleMaxDeposit(w http.ResponseWriter, r *http.Request) {
	rc, ok := ws.rowFromRequest(w, r)
	if !ok {
		return
	}

	rc.SetMaxDeposit()
	ws.writeJSONResponse(w, http.StatusOK, rc.Snapshot())
}

// handleMaxWithdraw fills the withdraw input with the full LP balance
func (ws *WebServer) handleMaxWithdraw(w http.ResponseWriter, r *http.Request) {
	rc, ok := ws.rowFromRequest(w, r)
	if !ok {
		return
	}

	rc.SetMaxWithdraw()
	ws.writeJSONResponse(w, http.StatusOK, rc.Snapshot())
}

// handleToggleExpanded flips a row between collapsed and expanded
func (ws *WebServer) handleToggleExpanded(w http.ResponseWriter, r *http.Request) {
	rc, ok := ws.rowFromRequest(w, r)
	if !ok {
		return
	}

	expanded := rc.ToggleExpanded()
	ws.writeJSONResponse(w, http.StatusOK, map[string]interface{}{
		"token":    rc.Token().Address,
		"expanded": expanded,
	})
}

// handleGetAffiliate returns partner fee accounting
func (ws *WebServer) handleGetAffiliate(w http.ResponseWriter, r *http.Request) {
	summary, err := ws.portal.Affiliate(r.Context())
	if err != nil {
		if errors.Is(err, portal.ErrNoAffiliateView) {
			ws.writeErrorResponse(w, http.StatusNotFound, "No affiliate ID configured")
			return
		}
		webLogger.Error().Err(err).Msg("Failed to get affiliate summary")
		ws.writeErrorResponse(w, http.StatusBadGateway, "Failed to retrieve affiliate summary")
		return
	}

	ws.writeJSONResponse(w, http.StatusOK, summary)
}

// handleGetNotifications returns the recent notification backlog
func (ws *WebServer) handleGetNotifications(w http.ResponseWriter, r *http.Request) {
	notifications := ws.notifier.Recent()

	response := map[string]interface{}{
		"notifications": notifications,
		"count":         len(notifications),
	}

	ws.writeJSONResponse(w, http.StatusOK, response)
}

// rowFromRequest resolves the {token} path variable to a vault row, writing a
// 404 when no row matches.
func (ws *WebServer) rowFromRequest(w http.ResponseWriter, r *http.Request) (*row.Controller, bool) {
	vars := mux.Vars(r)
	rc, err := ws.portal.Row(vars["token"])
	if err != nil {
		ws.writeErrorResponse(w, http.StatusNotFound, "Vault not found")
		return nil, false
	}
	return rc, true
}

// writeJSONResponse writes a JSON response
func (ws *WebServer) writeJSONResponse(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		webLogger.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

// writeErrorResponse writes an error response
func (ws *WebServer) writeErrorResponse(w http.ResponseWriter, statusCode int, message string) {
	response := map[string]interface{}{
		"error":     true,
		"message":   message,
		"timestamp": time.Now().UTC(),
	}

	ws.writeJSONResponse(w, statusCode, response)
}

// corsMiddleware adds CORS headers
func (ws *WebServer) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// loggingMiddleware logs HTTP requests
func (ws *WebServer) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		wrapper := &responseWriterWrapper{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapper, r)

		duration := time.Since(start)

		webLogger.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Str("remote_addr", r.RemoteAddr).
			Int("status", wrapper.statusCode).
			Dur("duration", duration).
			Msg("HTTP request")
	})
}

// responseWriterWrapper wraps http.ResponseWriter to capture status code
type responseWriterWrapper struct {
	http.ResponseWriter
	statusCode int
}

func (w *responseWriterWrapper) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}
