package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gorilla/mux"
	"github.com/incognitochain/etn-bridge/entities"
	"github.com/incognitochain/etn-bridge/ledger"
	"github.com/sirupsen/logrus"
)

const (
	DefaultEventsLimit = 100
	MaxEventsLimit     = 1000
)

// Server provides the read-only HTTP API over the ledger
type Server struct {
	ledger *ledger.Ledger
	http   *http.Server
	logger *logrus.Entry
}

// NewServer creates a new HTTP server for the ledger
func NewServer(l *ledger.Ledger, port string, logger *logrus.Entry) *Server {
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}
	s := &Server{
		ledger: l,
		logger: logger.WithField("component", "api"),
	}

	s.http = &http.Server{
		Addr:              ":" + port,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.Use(s.logRequests)

	v1 := r.PathPrefix("/api/v1").Subrouter()
	v1.HandleFunc("/stats", s.handleGetStats).Methods("GET")
	v1.HandleFunc("/legacy/{legacy}", s.handleGetLegacy).Methods("GET")
	v1.HandleFunc("/accounts/{address}", s.handleGetAccount).Methods("GET")
	v1.HandleFunc("/tx/{txid}", s.handleGetTx).Methods("GET")
	v1.HandleFunc("/events", s.handleGetEvents).Methods("GET")

	// Health check
	r.HandleFunc("/health", s.handleHealth).Methods("GET")
	return r
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.logger.Infof("Listening on %v", s.http.Addr)
	return s.http.ListenAndServe()
}

// Stop stops the HTTP server
func (s *Server) Stop(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.WithFields(logrus.Fields{
			"method":   r.Method,
			"path":     r.URL.Path,
			"duration": time.Since(start),
		}).Debug("Request served")
	})
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, &entities.APIBaseRes{
		Error: &entities.APIError{Code: status, Message: msg},
	})
}

func (s *Server) handleGetStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, &entities.StatsRes{
		Result: entities.NewStatsResult(s.ledger.Stats()),
	})
}

// handleGetLegacy returns the destination a legacy address is bound to
func (s *Server) handleGetLegacy(w http.ResponseWriter, r *http.Request) {
	legacy := entities.LegacyAddress(mux.Vars(r)["legacy"])
	if !legacy.IsValid() {
		writeError(w, http.StatusBadRequest, ledger.ErrInvalidLegacyAddress.Reason)
		return
	}
	addr, ok := s.ledger.AddressFromLegacy(legacy)
	if !ok {
		writeError(w, http.StatusNotFound, "Legacy address is not mapped")
		return
	}
	writeJSON(w, http.StatusOK, &entities.LegacyRes{
		Result: &entities.LegacyResult{LegacyAddress: string(legacy), Address: addr.Hex()},
	})
}

// handleGetAccount returns everything the ledger knows about a destination
func (s *Server) handleGetAccount(w http.ResponseWriter, r *http.Request) {
	hexAddr := mux.Vars(r)["address"]
	if !common.IsHexAddress(hexAddr) {
		writeError(w, http.StatusBadRequest, ledger.ErrInvalidDestination.Reason)
		return
	}
	addr := common.HexToAddress(hexAddr)

	account := s.ledger.Account(addr)
	res := &entities.AccountResult{
		Address:         account.Address.Hex(),
		LegacyAddresses: make([]string, 0, len(account.LegacyAddresses)),
		TxHashes:        make([]string, 0, len(account.TxHistory)),
		TotalAmount:     account.Total.Dec(),
		Credited:        account.Credited.Dec(),
	}
	for _, legacy := range account.LegacyAddresses {
		res.LegacyAddresses = append(res.LegacyAddresses, string(legacy))
	}
	for _, txID := range account.TxHistory {
		res.TxHashes = append(res.TxHashes, string(txID))
	}
	writeJSON(w, http.StatusOK, &entities.AccountRes{Result: res})
}

func (s *Server) handleGetTx(w http.ResponseWriter, r *http.Request) {
	txID := entities.TxID(mux.Vars(r)["txid"])
	if !txID.IsValid() {
		writeError(w, http.StatusBadRequest, ledger.ErrInvalidTransactionID.Reason)
		return
	}
	rec, ok := s.ledger.TxRecord(txID)
	if !ok {
		writeError(w, http.StatusNotFound, "Transaction not found")
		return
	}
	writeJSON(w, http.StatusOK, &entities.TxRes{Result: entities.NewTxResult(rec)})
}

// handleGetEvents pages through the event journal: ?from=<seq>&limit=<n>
func (s *Server) handleGetEvents(w http.ResponseWriter, r *http.Request) {
	from, limit := uint64(1), DefaultEventsLimit
	var err error
	if v := r.URL.Query().Get("from"); v != "" {
		if from, err = strconv.ParseUint(v, 10, 64); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid from")
			return
		}
	}
	if v := r.URL.Query().Get("limit"); v != "" {
		if limit, err = strconv.Atoi(v); err != nil || limit <= 0 {
			writeError(w, http.StatusBadRequest, "Invalid limit")
			return
		}
	}
	if limit > MaxEventsLimit {
		limit = MaxEventsLimit
	}

	events, err := s.ledger.Events(from, limit)
	if err != nil {
		s.logger.Errorf("Could not read events from %v - with err: %v", from, err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	res := &entities.EventsRes{Result: make([]*entities.EventResult, 0, len(events))}
	for _, env := range events {
		res.Result = append(res.Result, entities.NewEventResult(env))
	}
	writeJSON(w, http.StatusOK, res)
}

// handleHealth provides health check endpoint
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": "etn-bridge",
	})
}
