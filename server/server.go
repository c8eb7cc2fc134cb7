// Package server is the thin HTTP layer over the orchestration core: it
// maps requests to graph invocations and the session store, and converts
// faults to JSON errors. No conversation logic lives here.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	contractx "github.com/fabimass/ai-chatbot-multiagent/agent/contract"
	"github.com/fabimass/ai-chatbot-multiagent/agent/session"
	logx "github.com/fabimass/ai-chatbot-multiagent/pkg/logger"
)

// Asker answers one question against the session's history. It never
// returns an error; faults surface as the apology contract.
type Asker interface {
	Ask(ctx context.Context, in contractx.GraphInput) contractx.GraphOutput
}

// Greeter produces the capability introduction.
type Greeter interface {
	Greet(ctx context.Context) (string, error)
}

type Config struct {
	Addr         string        `envconfig:"ADDR" split_words:"true" default:":8000"`
	ReadTimeout  time.Duration `envconfig:"READ_TIMEOUT" split_words:"true" default:"30s"`
	WriteTimeout time.Duration `envconfig:"WRITE_TIMEOUT" split_words:"true" default:"5m"`
}

type Server struct {
	asker   Asker
	greeter Greeter
	store   session.Store
	checks  map[string]contractx.HealthChecker
	log     zerolog.Logger
}

func New(asker Asker, greeter Greeter, store session.Store, checks map[string]contractx.HealthChecker) (*Server, error) {
	if asker == nil {
		return nil, fmt.Errorf("%w: asker is required", contractx.ErrValidation)
	}
	if store == nil {
		return nil, fmt.Errorf("%w: session store is required", contractx.ErrValidation)
	}
	return &Server{
		asker:   asker,
		greeter: greeter,
		store:   store,
		checks:  checks,
		log:     logx.For("server"),
	}, nil
}

// Handler returns the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/ping", s.handlePing)
	mux.HandleFunc("POST /api/ask", s.handleAsk)
	mux.HandleFunc("GET /api/history", s.handleGetHistory)
	mux.HandleFunc("DELETE /api/history", s.handleDeleteHistory)
	mux.HandleFunc("POST /api/feedback", s.handleFeedback)
	mux.HandleFunc("GET /api/greet", s.handleGreet)
	mux.HandleFunc("GET /api/health", s.handleHealth)
	return mux
}

// ListenAndServe blocks serving the API.
func (s *Server) ListenAndServe(cfg Config) error {
	addr := strings.TrimSpace(cfg.Addr)
	if addr == "" {
		addr = ":8000"
	}
	httpServer := &http.Server{
		Addr:         addr,
		Handler:      s.Handler(),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
	s.log.Info().Str("addr", addr).Msg("listening")
	return httpServer.ListenAndServe()
}

type askRequest struct {
	SessionID string `json:"session_id"`
	Question  string `json:"question"`
}

type askResponse struct {
	Answer string `json:"answer"`
}

type greetResponse struct {
	Answer string `json:"answer"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handlePing(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"message": "pong"})
}

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	var req askRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}
	req.SessionID = strings.TrimSpace(req.SessionID)
	req.Question = strings.TrimSpace(req.Question)
	if req.SessionID == "" || req.Question == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "session_id and question are required"})
		return
	}

	ctx := r.Context()
	history, err := s.store.History(ctx, req.SessionID)
	if err != nil {
		s.fail(w, "load history", err)
		return
	}

	out := s.asker.Ask(ctx, contractx.GraphInput{Question: req.Question, History: history})

	if err := s.store.Append(ctx, req.SessionID, contractx.HistoryEntry{
		Role:    contractx.RoleUser,
		Content: req.Question,
	}); err != nil {
		s.fail(w, "append user entry", err)
		return
	}
	if err := s.store.Append(ctx, req.SessionID, contractx.HistoryEntry{
		Role:    contractx.RoleBot,
		Content: out.Answer,
		Agents:  out.Agents,
	}); err != nil {
		s.fail(w, "append bot entry", err)
		return
	}

	writeJSON(w, http.StatusOK, askResponse{Answer: out.Answer})
}

func (s *Server) handleGetHistory(w http.ResponseWriter, r *http.Request) {
	sessionID := strings.TrimSpace(r.URL.Query().Get("session_id"))
	if sessionID == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "session_id is required"})
		return
	}

	history, err := s.store.History(r.Context(), sessionID)
	if err != nil {
		s.fail(w, "load history", err)
		return
	}
	if history == nil {
		history = []contractx.HistoryEntry{}
	}
	writeJSON(w, http.StatusOK, history)
}

func (s *Server) handleDeleteHistory(w http.ResponseWriter, r *http.Request) {
	sessionID := strings.TrimSpace(r.URL.Query().Get("session_id"))
	if sessionID == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "session_id is required"})
		return
	}

	if err := s.store.DeleteHistory(r.Context(), sessionID); err != nil {
		s.fail(w, "delete history", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "history deleted"})
}

func (s *Server) handleFeedback(w http.ResponseWriter, r *http.Request) {
	var fb contractx.Feedback
	if err := json.NewDecoder(r.Body).Decode(&fb); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}
	if strings.TrimSpace(fb.SessionID) == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "session_id is required"})
		return
	}

	if err := s.store.AddFeedback(r.Context(), fb); err != nil {
		s.fail(w, "add feedback", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "feedback recorded"})
}

func (s *Server) handleGreet(w http.ResponseWriter, r *http.Request) {
	if s.greeter == nil {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "greeter not configured"})
		return
	}

	answer, err := s.greeter.Greet(r.Context())
	if err != nil {
		s.fail(w, "greet", err)
		return
	}
	writeJSON(w, http.StatusOK, greetResponse{Answer: answer})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	statuses := make(map[string]contractx.HealthStatus, len(s.checks))
	for name, check := range s.checks {
		statuses[name] = check.CheckConnection(r.Context())
	}
	writeJSON(w, http.StatusOK, statuses)
}

func (s *Server) fail(w http.ResponseWriter, op string, err error) {
	s.log.Error().Err(err).Str("op", op).Msg("request failed")
	if errors.Is(err, contractx.ErrValidation) {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request"})
		return
	}
	writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
