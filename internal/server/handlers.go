package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/splitpick/splitpick/internal/engine"
)

type HealthResponse struct {
	Status            string `json:"status"`
	ActiveExperiments int    `json:"active_experiments"`
	DBSizeBytes       int64  `json:"db_size_bytes"`
	UptimeSeconds     int64  `json:"uptime_seconds"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	active, err := s.engine.ListActive(r.Context())
	if err != nil {
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	var dbSize int64
	row := s.store.DB().QueryRow("SELECT page_count * page_size FROM pragma_page_count(), pragma_page_size()")
	_ = row.Scan(&dbSize)

	writeJSON(w, http.StatusOK, HealthResponse{
		Status:            "ok",
		ActiveExperiments: len(active),
		DBSizeBytes:       dbSize,
		UptimeSeconds:     int64(time.Since(s.startTime).Seconds()),
	})
}

type createRequest struct {
	Name     string `json:"name"`
	Category string `json:"category"`
	Variants []struct {
		Name    string `json:"name"`
		Content string `json:"content"`
	} `json:"variants"`
}

type variantResponse struct {
	ID         string  `json:"id"`
	Name       string  `json:"name"`
	Content    string  `json:"content,omitempty"`
	TrafficPct float64 `json:"traffic_pct"`
}

type createResponse struct {
	ID       string            `json:"id"`
	Name     string            `json:"name"`
	Category string            `json:"category,omitempty"`
	Status   string            `json:"status"`
	Variants []variantResponse `json:"variants"`
}

// handleExperiments serves GET /api/experiments (active list) and
// POST /api/experiments (create, token required).
func (s *Server) handleExperiments(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.handleListActive(w, r)
	case http.MethodPost:
		s.handleCreate(w, r)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	if !s.authorized(r) {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}

	defs := make([]engine.VariantDef, 0, len(req.Variants))
	for _, v := range req.Variants {
		defs = append(defs, engine.VariantDef{Name: v.Name, Content: v.Content})
	}

	exp, err := s.engine.Create(r.Context(), req.Name, req.Category, defs)
	if err != nil {
		s.writeError(w, err)
		return
	}

	resp := createResponse{
		ID:       exp.ID,
		Name:     exp.Name,
		Category: exp.Category,
		Status:   string(exp.Status),
	}
	for _, v := range exp.Variants {
		resp.Variants = append(resp.Variants, variantResponse{
			ID: v.ID, Name: v.Name, Content: v.Content, TrafficPct: v.TrafficPct,
		})
	}
	writeJSON(w, http.StatusCreated, resp)
}

type summaryResponse struct {
	ID               string `json:"id"`
	Name             string `json:"name"`
	Category         string `json:"category,omitempty"`
	Status           string `json:"status"`
	TotalAssignments int    `json:"total_assignments"`
	VariantCount     int    `json:"variant_count"`
}

func (s *Server) handleListActive(w http.ResponseWriter, r *http.Request) {
	active, err := s.engine.ListActive(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}

	resp := make([]summaryResponse, 0, len(active))
	for _, sum := range active {
		resp = append(resp, summaryResponse{
			ID:               sum.ID,
			Name:             sum.Name,
			Category:         sum.Category,
			Status:           string(sum.Status),
			TotalAssignments: sum.TotalAssignments,
			VariantCount:     sum.VariantCount,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleExperimentSubpath routes /api/experiments/{id}/(assign|outcomes|stats).
func (s *Server) handleExperimentSubpath(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/experiments/")
	parts := strings.Split(strings.Trim(rest, "/"), "/")
	if len(parts) != 2 || parts[0] == "" {
		http.NotFound(w, r)
		return
	}
	id, action := parts[0], parts[1]

	switch action {
	case "assign":
		s.handleAssign(w, r, id)
	case "outcomes":
		s.handleOutcome(w, r, id)
	case "stats":
		s.handleStats(w, r, id)
	default:
		http.NotFound(w, r)
	}
}

type assignRequest struct {
	SubjectID string `json:"subject_id"`
}

type assignResponse struct {
	ExperimentID string `json:"experiment_id"`
	VariantID    string `json:"variant_id"`
	VariantName  string `json:"variant_name"`
	Content      string `json:"content"`
	SubjectID    string `json:"subject_id"`
}

// handleAssign resolves a variant. When no subject id is supplied the server
// issues one and echoes it back, so callers that retry or follow up get the
// same variant again.
func (s *Server) handleAssign(w http.ResponseWriter, r *http.Request, id string) {
	setCORS(w)
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req assignRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid JSON", http.StatusBadRequest)
			return
		}
	}

	if req.SubjectID == "" {
		req.SubjectID = uuid.NewString()
	}

	variant, err := s.engine.Assign(r.Context(), id, req.SubjectID)
	if err != nil {
		s.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, assignResponse{
		ExperimentID: id,
		VariantID:    variant.ID,
		VariantName:  variant.Name,
		Content:      variant.Content,
		SubjectID:    req.SubjectID,
	})
}

type outcomeRequest struct {
	VariantID string `json:"variant_id"`
	Kind      string `json:"kind"`
	Detail    string `json:"detail"`
}

func (s *Server) handleOutcome(w http.ResponseWriter, r *http.Request, id string) {
	setCORS(w)
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req outcomeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}
	if req.VariantID == "" || req.Kind == "" {
		http.Error(w, "Missing required fields", http.StatusBadRequest)
		return
	}

	if err := s.engine.RecordOutcome(r.Context(), id, req.VariantID, req.Kind, req.Detail); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type statsVariantResponse struct {
	ID               string  `json:"id"`
	Name             string  `json:"name"`
	Assignments      int     `json:"assignments"`
	Responses        int     `json:"responses"`
	Interviews       int     `json:"interviews"`
	Offers           int     `json:"offers"`
	ResponseRatePct  float64 `json:"response_rate_pct"`
	InterviewRatePct float64 `json:"interview_rate_pct"`
	IsWinner         bool    `json:"is_winner"`
}

type statsResponse struct {
	ID               string                 `json:"id"`
	Name             string                 `json:"name"`
	Category         string                 `json:"category,omitempty"`
	Status           string                 `json:"status"`
	TotalAssignments int                    `json:"total_assignments"`
	Winner           string                 `json:"winner,omitempty"`
	WinningRatePct   float64                `json:"winning_rate_pct,omitempty"`
	Confidence       float64                `json:"confidence,omitempty"`
	Variants         []statsVariantResponse `json:"variants"`
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	st, err := s.engine.Stats(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}

	resp := statsResponse{
		ID:               st.ID,
		Name:             st.Name,
		Category:         st.Category,
		Status:           string(st.Status),
		TotalAssignments: st.TotalAssignments,
		Winner:           st.Winner,
		WinningRatePct:   st.WinningRatePct,
		Confidence:       st.Confidence,
	}
	for _, v := range st.Variants {
		resp.Variants = append(resp.Variants, statsVariantResponse{
			ID:               v.ID,
			Name:             v.Name,
			Assignments:      v.Assignments,
			Responses:        v.Responses,
			Interviews:       v.Interviews,
			Offers:           v.Offers,
			ResponseRatePct:  v.ResponseRatePct,
			InterviewRatePct: v.InterviewRatePct,
			IsWinner:         v.IsWinner,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, engine.ErrNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, engine.ErrNotActive):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, engine.ErrInvalidDefinition):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		s.logger.Error("request failed", "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func setCORS(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
}
