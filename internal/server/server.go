// Package server exposes the engine over a thin HTTP JSON API.
package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/ldi/sgr/internal/db"
	"github.com/ldi/sgr/internal/engine"
	"github.com/ldi/sgr/pkg/models"
)

type Server struct {
	db         *db.DB
	generator  *engine.Generator
	assigner   *engine.Assigner
	reassigner *engine.Reassigner
	risk       *engine.RiskDetector
	log        *slog.Logger
	server     *http.Server
}

func NewServer(database *db.DB, logger *slog.Logger, opts engine.Options) *Server {
	return &Server{
		db:         database,
		generator:  engine.NewGenerator(database, logger, opts),
		assigner:   engine.NewAssigner(database, logger),
		reassigner: engine.NewReassigner(database, logger),
		risk:       engine.NewRiskDetector(database, logger, opts),
		log:        logger,
	}
}

func (s *Server) Start(addr string) error {
	s.server = &http.Server{
		Addr:    addr,
		Handler: s.Handler(),
	}
	s.log.Info("http server listening", "addr", addr)
	return s.server.ListenAndServe()
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/tasks", s.handleTasks)
	mux.HandleFunc("/api/tasks/steps", s.handleTaskSteps)
	mux.HandleFunc("/api/summary", s.handleSummary)
	mux.HandleFunc("/api/risk", s.handleRisk)
	mux.HandleFunc("/api/generate", s.handleGenerate)
	mux.HandleFunc("/api/reassign", s.handleReassign)
	mux.HandleFunc("/api/steps/assign", s.handleAssignStep)

	return mux
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *Server) handleTasks(w http.ResponseWriter, r *http.Request) {
	filter := db.TaskFilter{
		Period:     r.URL.Query().Get("period"),
		State:      models.TaskState(r.URL.Query().Get("state")),
		AssigneeID: r.URL.Query().Get("assignee"),
	}
	tasks, err := s.db.ListTasks(r.Context(), filter)
	s.respond(w, tasks, err)
}

func (s *Server) handleTaskSteps(w http.ResponseWriter, r *http.Request) {
	taskID := r.URL.Query().Get("task")
	if taskID == "" {
		http.Error(w, "missing task parameter", http.StatusBadRequest)
		return
	}
	steps, err := s.assigner.ListTaskSteps(r.Context(), taskID)
	s.respond(w, steps, err)
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	period := r.URL.Query().Get("period")
	if period == "" {
		period = time.Now().Format("2006-01")
	}
	summary, err := s.generator.Summary(r.Context(), period)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	s.respond(w, summary, nil)
}

func (s *Server) handleRisk(w http.ResponseWriter, r *http.Request) {
	tasks, err := s.risk.AtRiskDetail(r.Context())
	s.respond(w, tasks, err)
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Period     string `json:"period"`
		TaxpayerID string `json:"taxpayer_id"`
	}
	if !s.decodePost(w, r, &req) {
		return
	}
	result, err := s.generator.Generate(r.Context(), req.Period, req.TaxpayerID)
	s.respond(w, result, err)
}

func (s *Server) handleReassign(w http.ResponseWriter, r *http.Request) {
	var req struct {
		AbsentUserID string `json:"absent_user_id"`
		SubstituteID string `json:"substitute_id"`
	}
	if !s.decodePost(w, r, &req) {
		return
	}
	if req.AbsentUserID == "" {
		http.Error(w, "missing absent_user_id", http.StatusBadRequest)
		return
	}
	result, err := s.reassigner.Reassign(r.Context(), req.AbsentUserID, req.SubstituteID)
	s.respond(w, result, err)
}

func (s *Server) handleAssignStep(w http.ResponseWriter, r *http.Request) {
	var req struct {
		StepID string `json:"step_id"`
		TeamID string `json:"team_id"`
		Tier   string `json:"tier"`
	}
	if !s.decodePost(w, r, &req) {
		return
	}
	result, err := s.assigner.AssignStepResponsible(r.Context(), req.StepID, req.TeamID, models.Tier(req.Tier))
	s.respond(w, result, err)
}

func (s *Server) decodePost(w http.ResponseWriter, r *http.Request, dst any) bool {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return false
	}
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		http.Error(w, "invalid JSON body", http.StatusBadRequest)
		return false
	}
	return true
}

func (s *Server) respond(w http.ResponseWriter, data any, err error) {
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}
