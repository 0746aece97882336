// Package api exposes the document pipeline over HTTP: document upload,
// question answering, clearing, and system info. It is a thin collaborator;
// all retrieval logic lives in the pipeline package.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"net/http"

	"github.com/tusiim3/RAG-Document-System/document"
	"github.com/tusiim3/RAG-Document-System/pipeline"
)

// Service is the slice of the pipeline the HTTP layer depends on.
type Service interface {
	Ingest(ctx context.Context, content, source string) (pipeline.IngestStats, error)
	Ask(ctx context.Context, question string) (pipeline.Answer, error)
	Clear(ctx context.Context) error
	SystemInfo(ctx context.Context) (pipeline.SystemInfo, error)
}

var _ Service = (*pipeline.Pipeline)(nil)

type messageResponse struct {
	Message string `json:"message"`
}

type errorResponse struct {
	Error string `json:"error"`
}

type askRequest struct {
	Question string `json:"question"`
}

type askResponse struct {
	Answer  string       `json:"answer"`
	Sources []sourceInfo `json:"sources"`
}

type sourceInfo struct {
	Source   string  `json:"source"`
	Content  string  `json:"content"`
	Distance float64 `json:"distance"`
}

type ingestResponse struct {
	Source     string `json:"source"`
	Chunks     int    `json:"chunks"`
	TotalChars int    `json:"totalChars"`
	MinChunk   int    `json:"minChunk"`
	MaxChunk   int    `json:"maxChunk"`
	AvgChunk   int    `json:"avgChunk"`
}

// Server exposes HTTP handlers for the pipeline workflows.
type Server struct {
	service     Service
	logger      *log.Logger
	maxUploadMB int
	handler     http.Handler
}

// New constructs a Server around an already-initialized pipeline.
func New(service Service, maxUploadMB int, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.Default()
	}
	if maxUploadMB <= 0 {
		maxUploadMB = 100
	}

	s := &Server{service: service, logger: logger, maxUploadMB: maxUploadMB}
	s.handler = s.routes()
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
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/v1/documents", s.handleUpload)
	mux.HandleFunc("/v1/ask", s.handleAsk)
	mux.HandleFunc("/v1/clear", s.handleClear)
	mux.HandleFunc("/v1/info", s.handleInfo)
	return mux
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.methodNotAllowed(w, http.MethodGet)
		return
	}

	s.writeJSON(w, http.StatusOK, messageResponse{Message: "ok"})
}

// handleUpload accepts a multipart form with a "document" file field,
// decodes it by extension, and ingests it.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.methodNotAllowed(w, http.MethodPost)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, int64(s.maxUploadMB)<<20)

	file, header, err := r.FormFile("document")
	if err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("read upload: %w", err))
		return
	}
	defer file.Close()

	data, err := readUpload(file)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("read upload: %w", err))
		return
	}

	doc, err := document.FromBytes(data, header.Filename, document.DetectFormat(header.Filename))
	if err != nil {
		status := http.StatusBadRequest
		if !errors.Is(err, document.ErrUnsupportedFormat) && !errors.Is(err, document.ErrNotUTF8) {
			status = http.StatusUnprocessableEntity
		}
		s.writeError(w, status, err)
		return
	}

	stats, err := s.service.Ingest(r.Context(), doc.Content, doc.Source)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}

	s.writeJSON(w, http.StatusOK, ingestResponse{
		Source:     doc.Source,
		Chunks:     stats.Chunks,
		TotalChars: stats.TotalChars,
		MinChunk:   stats.MinChunk,
		MaxChunk:   stats.MaxChunk,
		AvgChunk:   stats.AvgChunk,
	})
}

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.methodNotAllowed(w, http.MethodPost)
		return
	}

	var req askRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("decode request: %w", err))
		return
	}

	answer, err := s.service.Ask(r.Context(), req.Question)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, pipeline.ErrEmptyQuestion) {
			status = http.StatusBadRequest
		}
		s.writeError(w, status, err)
		return
	}

	resp := askResponse{Answer: answer.Text, Sources: make([]sourceInfo, 0, len(answer.Sources))}
	for _, src := range answer.Sources {
		resp.Sources = append(resp.Sources, sourceInfo{
			Source:   src.Source,
			Content:  src.Content,
			Distance: src.Distance,
		})
	}

	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.methodNotAllowed(w, http.MethodPost)
		return
	}

	if err := s.service.Clear(r.Context()); err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}

	s.writeJSON(w, http.StatusOK, messageResponse{Message: "knowledge base cleared"})
}

func (s *Server) handleInfo(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.methodNotAllowed(w, http.MethodGet)
		return
	}

	info, err := s.service.SystemInfo(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}

	s.writeJSON(w, http.StatusOK, info)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Printf("write response: %v", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, err error) {
	s.logger.Printf("http error (%d): %v", status, err)
	s.writeJSON(w, status, errorResponse{Error: err.Error()})
}

func (s *Server) methodNotAllowed(w http.ResponseWriter, allowed string) {
	w.Header().Set("Allow", allowed)
	s.writeJSON(w, http.StatusMethodNotAllowed, errorResponse{Error: "method not allowed"})
}

func decodeJSON(r *http.Request, target any) error {
	defer io.Copy(io.Discard, r.Body)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(target)
}

func readUpload(file multipart.File) ([]byte, error) {
	data, err := io.ReadAll(file)
	if err != nil {
		return nil, err
	}
	return data, nil
}
