package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/tusiim3/RAG-Document-System/pipeline"
)

type stubService struct {
	ingestStats  pipeline.IngestStats
	ingestErr    error
	answer       pipeline.Answer
	askErr       error
	clearErr     error
	info         pipeline.SystemInfo
	lastSource   string
	lastContent  string
	lastQuestion string
	clears       int
}

func (s *stubService) Ingest(_ context.Context, content, source string) (pipeline.IngestStats, error) {
	s.lastContent = content
	s.lastSource = source
	return s.ingestStats, s.ingestErr
}

func (s *stubService) Ask(_ context.Context, question string) (pipeline.Answer, error) {
	s.lastQuestion = question
	return s.answer, s.askErr
}

func (s *stubService) Clear(_ context.Context) error {
	s.clears++
	return s.clearErr
}

func (s *stubService) SystemInfo(_ context.Context) (pipeline.SystemInfo, error) {
	return s.info, nil
}

func newTestServer(service *stubService) *Server {
	return New(service, 10, log.New(io.Discard, "", 0))
}

func multipartUpload(t *testing.T, field, filename, content string) (*bytes.Buffer, string) {
	t.Helper()
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile(field, filename)
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := part.Write([]byte(content)); err != nil {
		t.Fatalf("write form file: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}
	return &body, writer.FormDataContentType()
}

func TestHealth(t *testing.T) {
	server := newTestServer(&stubService{})

	rec := httptest.NewRecorder()
	server.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestUploadDocument(t *testing.T) {
	service := &stubService{ingestStats: pipeline.IngestStats{Chunks: 2, TotalChars: 40, MinChunk: 15, MaxChunk: 25, AvgChunk: 20}}
	server := newTestServer(service)

	body, contentType := multipartUpload(t, "document", "facts.txt", "The sky is blue.\n\nGrass is green.")
	req := httptest.NewRequest(http.MethodPost, "/v1/documents", body)
	req.Header.Set("Content-Type", contentType)

	rec := httptest.NewRecorder()
	server.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if service.lastSource != "facts.txt" {
		t.Fatalf("expected source facts.txt, got %q", service.lastSource)
	}
	if !strings.Contains(service.lastContent, "The sky is blue.") {
		t.Fatalf("unexpected ingested content: %q", service.lastContent)
	}

	var resp struct {
		Source string `json:"source"`
		Chunks int    `json:"chunks"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Chunks != 2 || resp.Source != "facts.txt" {
		t.Fatalf("unexpected response: %+v", resp)
	}
}

func TestUploadRejectsUnsupportedFormat(t *testing.T) {
	service := &stubService{}
	server := newTestServer(service)

	body, contentType := multipartUpload(t, "document", "image.png", "not a document")
	req := httptest.NewRequest(http.MethodPost, "/v1/documents", body)
	req.Header.Set("Content-Type", contentType)

	rec := httptest.NewRecorder()
	server.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unsupported format, got %d", rec.Code)
	}
	if service.lastSource != "" {
		t.Fatal("nothing should be ingested for an unsupported format")
	}
}

func TestUploadRequiresDocumentField(t *testing.T) {
	server := newTestServer(&stubService{})

	body, contentType := multipartUpload(t, "wrongfield", "facts.txt", "content")
	req := httptest.NewRequest(http.MethodPost, "/v1/documents", body)
	req.Header.Set("Content-Type", contentType)

	rec := httptest.NewRecorder()
	server.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing field, got %d", rec.Code)
	}
}

func TestAsk(t *testing.T) {
	service := &stubService{answer: pipeline.Answer{Text: "The sky is blue. [Source 1]"}}
	server := newTestServer(service)

	reqBody := strings.NewReader(`{"question":"What color is the sky?"}`)
	req := httptest.NewRequest(http.MethodPost, "/v1/ask", reqBody)
	req.Header.Set("Content-Type", "application/json")

	rec := httptest.NewRecorder()
	server.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if service.lastQuestion != "What color is the sky?" {
		t.Fatalf("unexpected question passed through: %q", service.lastQuestion)
	}

	var resp struct {
		Answer  string `json:"answer"`
		Sources []struct {
			Source string `json:"source"`
		} `json:"sources"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Answer != "The sky is blue. [Source 1]" {
		t.Fatalf("unexpected answer: %q", resp.Answer)
	}
	if resp.Sources == nil {
		t.Fatal("sources should encode as an empty array, not null")
	}
}

func TestAskRejectsUnknownFields(t *testing.T) {
	server := newTestServer(&stubService{})

	req := httptest.NewRequest(http.MethodPost, "/v1/ask", strings.NewReader(`{"question":"x","extra":true}`))
	req.Header.Set("Content-Type", "application/json")

	rec := httptest.NewRecorder()
	server.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown field, got %d", rec.Code)
	}
}

func TestAskEmptyQuestionReturns400(t *testing.T) {
	service := &stubService{askErr: pipeline.ErrEmptyQuestion}
	server := newTestServer(service)

	req := httptest.NewRequest(http.MethodPost, "/v1/ask", strings.NewReader(`{"question":""}`))
	req.Header.Set("Content-Type", "application/json")

	rec := httptest.NewRecorder()
	server.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	var resp struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Error == "" {
		t.Fatal("expected an error message")
	}
}

func TestAskStorageFailureReturns500(t *testing.T) {
	service := &stubService{askErr: fmt.Errorf("index stats: disk error")}
	server := newTestServer(service)

	req := httptest.NewRequest(http.MethodPost, "/v1/ask", strings.NewReader(`{"question":"anything?"}`))
	req.Header.Set("Content-Type", "application/json")

	rec := httptest.NewRecorder()
	server.ServeHTTP(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 for a server-side failure, got %d", rec.Code)
	}
}

func TestClear(t *testing.T) {
	service := &stubService{}
	server := newTestServer(service)

	rec := httptest.NewRecorder()
	server.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/clear", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if service.clears != 1 {
		t.Fatalf("expected 1 clear call, got %d", service.clears)
	}
}

func TestInfo(t *testing.T) {
	service := &stubService{info: pipeline.SystemInfo{Ready: true, RetrievalK: 5}}
	server := newTestServer(service)

	rec := httptest.NewRecorder()
	server.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/info", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var info pipeline.SystemInfo
	if err := json.Unmarshal(rec.Body.Bytes(), &info); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !info.Ready || info.RetrievalK != 5 {
		t.Fatalf("unexpected info: %+v", info)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	server := newTestServer(&stubService{})

	for path, method := range map[string]string{
		"/v1/ask":       http.MethodGet,
		"/v1/documents": http.MethodGet,
		"/v1/clear":     http.MethodGet,
		"/v1/info":      http.MethodPost,
	} {
		rec := httptest.NewRecorder()
		server.ServeHTTP(rec, httptest.NewRequest(method, path, nil))
		if rec.Code != http.StatusMethodNotAllowed {
			t.Fatalf("%s %s: expected 405, got %d", method, path, rec.Code)
		}
	}
}
