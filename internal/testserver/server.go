// Package testserver is an in-process fake of the Taste AI HTTP protocol.
// It exists for tests only; the client never talks to it in production.
package testserver

import (
	"bytes"
	"encoding/json"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

const (
	// Username and Password are the credentials the default login accepts.
	Username = "demo"
	Password = "secret"
	// Token is issued on a successful default login and required by protected routes.
	Token = "test-token"
)

// Part is one recorded multipart field.
type Part struct {
	Field       string
	Filename    string
	ContentType string
	Size        int
}

// Recorded is a request as the fake saw it.
type Recorded struct {
	Method string
	Path   string
	Header http.Header
	Query  url.Values
	Body   []byte
	Parts  []Part
}

// Server wraps httptest.Server with default handlers for every endpoint.
type Server struct {
	*httptest.Server

	mu        sync.Mutex
	requests  []Recorded
	overrides map[string]http.HandlerFunc
}

// New starts a fake and closes it when t finishes.
func New(t testing.TB) *Server {
	t.Helper()

	s := &Server{overrides: make(map[string]http.HandlerFunc)}
	s.Server = httptest.NewServer(s.routes())
	t.Cleanup(s.Close)
	return s
}

// Handle replaces the default handler for method and path.
func (s *Server) Handle(method, path string, h http.HandlerFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.overrides[method+" "+path] = h
}

// Requests returns every request received so far, in arrival order.
func (s *Server) Requests() []Recorded {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Recorded(nil), s.requests...)
}

// Count reports how many requests hit path.
func (s *Server) Count(path string) int {
	n := 0
	for _, r := range s.Requests() {
		if r.Path == path {
			n++
		}
	}
	return n
}

// Last returns the most recent request to path.
func (s *Server) Last(path string) (Recorded, bool) {
	reqs := s.Requests()
	for i := len(reqs) - 1; i >= 0; i-- {
		if reqs[i].Path == path {
			return reqs[i], true
		}
	}
	return Recorded{}, false
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(s.record)
	r.Use(s.override)

	r.Post("/api/v1/auth/login", handleLogin)
	r.Group(func(r chi.Router) {
		r.Use(requireToken)
		r.Post("/api/v1/aesthetic/score", handleScore)
		r.Post("/api/v1/aesthetic/batch-score", handleBatch)
		r.Get("/api/v1/trends/current", handleCurrent)
		r.Get("/api/v1/trends/predict", handlePredict)
	})
	r.Get("/health", handleHealth)
	r.Get("/health/detailed", handleDetailedHealth)
	r.Get("/metrics", handleMetrics)
	return r
}

func (s *Server) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		_ = r.Body.Close()
		r.Body = io.NopCloser(bytes.NewReader(body))

		rec := Recorded{
			Method: r.Method,
			Path:   r.URL.Path,
			Header: r.Header.Clone(),
			Query:  r.URL.Query(),
			Body:   body,
			Parts:  readParts(r.Header.Get("Content-Type"), body),
		}
		s.mu.Lock()
		s.requests = append(s.requests, rec)
		s.mu.Unlock()

		next.ServeHTTP(w, r)
	})
}

func (s *Server) override(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		h, ok := s.overrides[r.Method+" "+r.URL.Path]
		s.mu.Unlock()
		if ok {
			h(w, r)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func readParts(contentType string, body []byte) []Part {
	mediaType, params, err := mime.ParseMediaType(contentType)
	if err != nil || !strings.HasPrefix(mediaType, "multipart/") {
		return nil
	}

	var parts []Part
	mr := multipart.NewReader(bytes.NewReader(body), params["boundary"])
	for {
		p, err := mr.NextPart()
		if err != nil {
			return parts
		}
		data, _ := io.ReadAll(p)
		parts = append(parts, Part{
			Field:       p.FormName(),
			Filename:    p.FileName(),
			ContentType: p.Header.Get("Content-Type"),
			Size:        len(data),
		})
	}
}

func requireToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer "+Token {
			WriteJSON(w, http.StatusUnauthorized, map[string]string{"detail": "Could not validate credentials"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

// WriteJSON is exported so overrides can answer in the same shape as the defaults.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func handleLogin(w http.ResponseWriter, r *http.Request) {
	var creds struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
		WriteJSON(w, http.StatusUnprocessableEntity, map[string]string{"detail": "invalid login payload"})
		return
	}
	if creds.Username != Username || creds.Password != Password {
		WriteJSON(w, http.StatusUnauthorized, map[string]string{"detail": "Invalid credentials"})
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{"access_token": Token, "token_type": "bearer"})
}

// ScoreBody is the default single-image answer.
var ScoreBody = map[string]any{
	"aesthetic_score": 0.82,
	"confidence":      0.78,
	"trend_analysis": map[string]float64{
		"trend_score":     0.71,
		"viral_potential": 0.64,
		"market_appeal":   0.88,
	},
	"metadata": map[string]any{"image_size": []int{640, 480}, "format": "PNG"},
}

func handleScore(w http.ResponseWriter, r *http.Request) {
	if _, _, err := r.FormFile("file"); err != nil {
		WriteJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"detail": []map[string]string{{"msg": "field required"}},
		})
		return
	}
	WriteJSON(w, http.StatusOK, ScoreBody)
}

func handleBatch(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		WriteJSON(w, http.StatusBadRequest, map[string]string{"detail": err.Error()})
		return
	}
	files := r.MultipartForm.File["files"]
	if len(files) == 0 {
		WriteJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"detail": []map[string]string{{"msg": "field required"}},
		})
		return
	}

	results := make([]map[string]any, 0, len(files))
	for _, fh := range files {
		if fh.Size == 0 {
			results = append(results, map[string]any{
				"filename": fh.Filename, "status": "error", "error": "cannot identify image file",
			})
			continue
		}
		results = append(results, map[string]any{
			"filename": fh.Filename, "status": "success", "aesthetic_score": 0.75,
		})
	}
	WriteJSON(w, http.StatusOK, map[string]any{"results": results})
}

func handleCurrent(w http.ResponseWriter, _ *http.Request) {
	WriteJSON(w, http.StatusOK, map[string]any{
		"trends": []map[string]any{
			{"name": "Minimalist Luxury", "score": 0.89, "category": "fashion", "momentum": "rising", "peak_estimate": "3-6 months"},
			{"name": "Earth Tones", "score": 0.76, "category": "color", "momentum": "stable", "peak_estimate": "current"},
			{"name": "Oversized Silhouettes", "score": 0.82, "category": "fashion", "momentum": "declining", "peak_estimate": "6-12 months"},
		},
	})
}

func handlePredict(w http.ResponseWriter, r *http.Request) {
	category := r.URL.Query().Get("category")
	if category == "" {
		category = "fashion"
	}
	WriteJSON(w, http.StatusOK, map[string]any{
		"predictions": []map[string]any{
			{"trend": "Emerging " + category + " trend", "probability": 0.8, "timeline": "6-18 months", "confidence": 0.75},
		},
	})
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	WriteJSON(w, http.StatusOK, map[string]string{"status": "healthy", "version": "1.0.0"})
}

func handleDetailedHealth(w http.ResponseWriter, _ *http.Request) {
	WriteJSON(w, http.StatusOK, map[string]any{
		"status":    "healthy",
		"version":   "1.0.0",
		"timestamp": 1760400000.5,
		"components": map[string]string{
			"database":  "connected",
			"ml_models": "loaded",
		},
	})
}

func handleMetrics(w http.ResponseWriter, _ *http.Request) {
	WriteJSON(w, http.StatusOK, map[string]any{
		"application": map[string]any{"api_requests_total": 2847, "uptime_seconds": 86400},
	})
}

// Status returns a handler that answers status with body as its JSON detail.
func Status(status int, detail string) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		WriteJSON(w, status, map[string]string{"detail": detail})
	}
}

// Drop returns a handler that closes the connection without answering.
func Drop() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		hj, ok := w.(http.Hijacker)
		if !ok {
			http.Error(w, "hijacking not supported", http.StatusInternalServerError)
			return
		}
		conn, _, err := hj.Hijack()
		if err != nil {
			return
		}
		_ = conn.Close()
	}
}
