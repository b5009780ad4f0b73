package main

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/aegis/internal/config"
	"github.com/sells-group/aegis/internal/model"
	"github.com/sells-group/aegis/internal/monitoring"
	"github.com/sells-group/aegis/internal/scan"
	"github.com/sells-group/aegis/internal/store"
)

// apiServer is the HTTP surface over the store and the scan scheduler.
type apiServer struct {
	store     store.Store
	scheduler *scan.Scheduler
	collector *monitoring.Collector
	cfg       *config.Config
}

func newAPIServer(env *Env, cfg *config.Config) http.Handler {
	s := &apiServer{
		store:     env.Store,
		scheduler: env.Scheduler,
		collector: env.Collector,
		cfg:       cfg,
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	r.Get("/health", s.handleHealth)
	r.Get("/metrics", s.handleMetrics)

	r.Route("/documents/{documentID}", func(r chi.Router) {
		r.Post("/scans", s.handleSubmitScan)
		r.Get("/scans", s.handleListScans)
	})
	r.Get("/scans/{scanID}", s.handleGetScan)

	r.Route("/findings", func(r chi.Router) {
		r.Get("/", s.handleListFindings)
		r.Get("/{findingID}", s.handleGetFinding)
		r.Post("/{findingID}/adjudicate", s.handleAdjudicate)
	})
	r.Get("/patterns", s.handleListPatterns)

	return r
}

func (s *apiServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Ping(r.Context()); err != nil {
		writeError(w, http.StatusServiceUnavailable, "store unreachable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *apiServer) handleMetrics(w http.ResponseWriter, r *http.Request) {
	snap, err := s.collector.Collect(r.Context(), s.cfg.Monitoring.LookbackWindowHours)
	if err != nil {
		zap.L().Error("collect metrics", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "metrics collection failed")
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// handleSubmitScan accepts a document body and queues a background
// scan. Returns 409 with the running scan's ID when one is already in
// flight for the document.
func (s *apiServer) handleSubmitScan(w http.ResponseWriter, r *http.Request) {
	documentID := chi.URLParam(r, "documentID")

	var req struct {
		Title   string       `json:"title"`
		Version string       `json:"version"`
		Units   []model.Unit `json:"units"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.Units) == 0 {
		writeError(w, http.StatusBadRequest, "units are required")
		return
	}

	doc := &model.Document{
		ID:      documentID,
		Title:   req.Title,
		Version: req.Version,
		Units:   req.Units,
	}

	scanID, err := s.scheduler.Submit(doc)
	if err != nil {
		if eris.Is(err, scan.ErrScanInFlight) {
			writeJSON(w, http.StatusConflict, map[string]string{
				"error":   "scan already in flight for document",
				"scan_id": scanID,
			})
			return
		}
		zap.L().Error("submit scan", zap.String("document_id", documentID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "scan submission failed")
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{
		"status":  "accepted",
		"scan_id": scanID,
	})
}

func (s *apiServer) handleGetScan(w http.ResponseWriter, r *http.Request) {
	sc, err := s.store.GetScan(r.Context(), chi.URLParam(r, "scanID"))
	if err != nil {
		if eris.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "scan not found")
			return
		}
		zap.L().Error("get scan", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "scan lookup failed")
		return
	}
	writeJSON(w, http.StatusOK, sc)
}

func (s *apiServer) handleListScans(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 50)
	scans, err := s.store.ListScans(r.Context(), chi.URLParam(r, "documentID"), limit)
	if err != nil {
		zap.L().Error("list scans", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "scan listing failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"scans": scans})
}

func (s *apiServer) handleListFindings(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := store.FindingFilter{
		DocumentID:        q.Get("document"),
		UnitID:            q.Get("unit"),
		CheckerID:         q.Get("checker"),
		AllStatuses:       q.Get("all") == "true",
		IncludeSuppressed: q.Get("include_suppressed") == "true",
		Limit:             queryInt(r, "limit", 100),
		Offset:            queryInt(r, "offset", 0),
	}
	if status := q.Get("status"); status != "" {
		filter.Statuses = []model.FindingStatus{model.FindingStatus(status)}
	}

	findings, err := s.store.ListFindings(r.Context(), filter)
	if err != nil {
		zap.L().Error("list findings", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "finding listing failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"findings": findings})
}

func (s *apiServer) handleGetFinding(w http.ResponseWriter, r *http.Request) {
	findingID := chi.URLParam(r, "findingID")

	finding, err := s.store.GetFinding(r.Context(), findingID)
	if err != nil {
		if eris.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "finding not found")
			return
		}
		zap.L().Error("get finding", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "finding lookup failed")
		return
	}
	events, err := s.store.ListFindingEvents(r.Context(), findingID)
	if err != nil {
		zap.L().Error("list finding events", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "finding lookup failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"finding": finding,
		"events":  events,
	})
}

func (s *apiServer) handleAdjudicate(w http.ResponseWriter, r *http.Request) {
	findingID := chi.URLParam(r, "findingID")

	var req struct {
		Decision string `json:"decision"`
		Reviewer string `json:"reviewer"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	decision := model.Decision(req.Decision)
	if !decision.Valid() {
		writeError(w, http.StatusBadRequest, "decision must be confirmed or rejected")
		return
	}
	if req.Reviewer == "" {
		writeError(w, http.StatusBadRequest, "reviewer is required")
		return
	}

	finding, err := s.store.AdjudicateFinding(r.Context(), findingID, decision, req.Reviewer, s.cfg.Learner)
	if err != nil {
		switch {
		case eris.Is(err, store.ErrNotFound):
			writeError(w, http.StatusNotFound, "finding not found")
		case eris.Is(err, store.ErrNotPending):
			writeError(w, http.StatusConflict, "finding is no longer pending")
		default:
			zap.L().Error("adjudicate finding", zap.String("finding_id", findingID), zap.Error(err))
			writeError(w, http.StatusInternalServerError, "adjudication failed")
		}
		return
	}

	writeJSON(w, http.StatusOK, finding)
}

func (s *apiServer) handleListPatterns(w http.ResponseWriter, r *http.Request) {
	patterns, err := s.store.ListPatterns(r.Context(), queryInt(r, "limit", 100))
	if err != nil {
		zap.L().Error("list patterns", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "pattern listing failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"patterns": patterns})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func queryInt(r *http.Request, key string, fallback int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return fallback
	}
	return n
}
