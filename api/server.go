// Package api serves the assistant over HTTP: the chat endpoint, catalog
// lookups and the embedded chat UI.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/phuslu/log"

	"github.com/fabfab/archipelago-assistant/catalog"
	"github.com/fabfab/archipelago-assistant/chat"
)

const (
	serviceName    = "Archipelago International Assistant"
	serviceVersion = "1.0"

	maxBodyBytes = 1 << 20

	// safeErrorMessage replaces internal error text when errors are not exposed.
	safeErrorMessage = "The assistant is temporarily unavailable. Please try again later."
)

type Options struct {
	// ExposeErrors returns raw pipeline error messages to callers.
	ExposeErrors bool
}

// Server exposes HTTP handlers for the assistant.
type Server struct {
	answerer     chat.Answerer
	directory    catalog.Directory
	logger       *log.Logger
	exposeErrors bool
	handler      http.Handler
}

type statusResponse struct {
	Status string `json:"status"`
}

type errorResponse struct {
	Error  string `json:"error"`
	Status string `json:"status"`
}

type serviceInfo struct {
	Status    string    `json:"status"`
	Service   string    `json:"service"`
	Version   string    `json:"version"`
	Endpoints endpoints `json:"endpoints"`
}

type endpoints struct {
	Health string `json:"health"`
	Chat   string `json:"chat"`
	Info   string `json:"info"`
	Brands string `json:"brands"`
	Hotels string `json:"hotels"`
	UI     string `json:"ui"`
}

type chatResponse struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
	Status   string `json:"status"`
}

type brandResponse struct {
	Brand  catalog.Brand `json:"brand"`
	Status string        `json:"status"`
}

type hotelResponse struct {
	Hotel  catalog.Hotel `json:"hotel"`
	Status string        `json:"status"`
}

// New constructs a Server around answerer. directory may be nil, in which
// case the catalog endpoints answer 503.
func New(answerer chat.Answerer, directory catalog.Directory, logger *log.Logger, opts Options) *Server {
	if logger == nil {
		logger = &log.DefaultLogger
	}

	s := &Server{
		answerer:     answerer,
		directory:    directory,
		logger:       logger,
		exposeErrors: opts.ExposeErrors,
	}
	s.handler = s.withLogging(withCORS(s.routes()))
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

func (s *Server) Handler() http.Handler {
	return s.handler
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleInfo)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("POST /api/chat", s.handleChat)
	mux.HandleFunc("GET /api/brands/{name}", s.handleBrand)
	mux.HandleFunc("GET /api/hotels/{code}", s.handleHotel)
	mux.HandleFunc("GET /chat", s.handleUI)
	return mux
}

func (s *Server) handleInfo(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, serviceInfo{
		Status:  "online",
		Service: serviceName,
		Version: serviceVersion,
		Endpoints: endpoints{
			Health: "GET /health",
			Chat:   "POST /api/chat",
			Info:   "GET /",
			Brands: "GET /api/brands/{name}",
			Hotels: "GET /api/hotels/{code}",
			UI:     "GET /chat",
		},
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, statusResponse{Status: "healthy"})
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	question, problem := decodeQuestion(w, r)
	if problem != "" {
		s.writeError(w, http.StatusBadRequest, problem)
		return
	}

	question = strings.TrimSpace(question)
	if question == "" {
		s.writeError(w, http.StatusBadRequest, "Question cannot be empty")
		return
	}

	if s.answerer == nil {
		s.writeFailure(w, fmt.Errorf("chat pipeline is not configured"))
		return
	}

	answer, err := s.answerer.Answer(r.Context(), question)
	if err != nil {
		if errors.Is(err, chat.ErrInvalidInput) {
			s.writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.writeFailure(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, chatResponse{
		Question: question,
		Answer:   answer,
		Status:   "success",
	})
}

func (s *Server) handleBrand(w http.ResponseWriter, r *http.Request) {
	if s.directory == nil {
		s.writeError(w, http.StatusServiceUnavailable, "catalog is not configured")
		return
	}

	brand, err := s.directory.Brand(r.Context(), r.PathValue("name"))
	if err != nil {
		s.writeLookupError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, brandResponse{Brand: brand, Status: "success"})
}

func (s *Server) handleHotel(w http.ResponseWriter, r *http.Request) {
	if s.directory == nil {
		s.writeError(w, http.StatusServiceUnavailable, "catalog is not configured")
		return
	}

	hotel, err := s.directory.Hotel(r.Context(), r.PathValue("code"))
	if err != nil {
		s.writeLookupError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, hotelResponse{Hotel: hotel, Status: "success"})
}

func (s *Server) writeLookupError(w http.ResponseWriter, err error) {
	if errors.Is(err, catalog.ErrNotFound) {
		s.writeError(w, http.StatusNotFound, err.Error())
		return
	}
	s.writeFailure(w, err)
}

// writeFailure answers 500 with err's message, or with safeErrorMessage
// when errors are not exposed.
func (s *Server) writeFailure(w http.ResponseWriter, err error) {
	entry := s.logger.Error().Err(err)
	var upstream *chat.UpstreamError
	if errors.As(err, &upstream) {
		entry = entry.Str("stage", upstream.Stage)
	}
	entry.Msg("request failed")

	message := err.Error()
	if !s.exposeErrors {
		message = safeErrorMessage
	}
	s.writeJSON(w, http.StatusInternalServerError, errorResponse{Error: message, Status: "error"})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error().Err(err).Msg("encode response")
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.logger.Warn().Int("status", status).Str("error", message).Msg("api error")
	s.writeJSON(w, status, errorResponse{Error: message, Status: "error"})
}

// decodeQuestion reads {"question": "..."}. problem is the client-facing
// message when the body is unusable. Empty and null bodies report the
// missing field.
func decodeQuestion(w http.ResponseWriter, r *http.Request) (question, problem string) {
	const missing = "Missing 'question' field in request"

	if r.Body == nil {
		return "", missing
	}
	defer r.Body.Close()

	var body map[string]json.RawMessage
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&body); err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			return "", fmt.Sprintf("Request body exceeds %d bytes", tooLarge.Limit)
		case errors.Is(err, io.EOF):
			return "", missing
		default:
			return "", "Invalid JSON body: " + err.Error()
		}
	}
	if dec.More() {
		return "", "Request body must contain a single JSON object"
	}

	raw, ok := body["question"]
	if !ok {
		return "", missing
	}
	if err := json.Unmarshal(raw, &question); err != nil || string(raw) == "null" {
		return "", "'question' must be a string"
	}
	return question, ""
}
