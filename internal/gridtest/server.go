// Package gridtest provides an in-process fake of the grid file API.
package gridtest

import (
	"encoding/json"
	"fmt"
	"html"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/gorilla/mux"
)

// ListingFormat selects how the fake renders a download listing.
type ListingFormat int

const (
	ListingJSON ListingFormat = iota
	ListingHTML
)

// Request is a request observed by the fake.
type Request struct {
	Method string
	Path   string
	Accept string
}

type sessionFiles struct {
	order []string
	files map[string][]byte
}

// Server is a fake grid. Artifacts can be made to appear only after a
// number of failed requests, like recordings that are still being finalized.
type Server struct {
	*httptest.Server

	mu            sync.Mutex
	videos        map[string][]byte
	pending       map[string]int // remaining 404s per artifact key
	deleteFails   map[string]int // remaining 500s per video delete
	sessions      map[string]*sessionFiles
	listingFormat ListingFormat
	requests      []Request
	unhealthy     bool
}

// New starts a fake grid that is closed when the test ends.
func New(tb testing.TB) *Server {
	tb.Helper()

	s := &Server{
		videos:      make(map[string][]byte),
		pending:     make(map[string]int),
		deleteFails: make(map[string]int),
		sessions:    make(map[string]*sessionFiles),
	}

	r := mux.NewRouter()
	r.HandleFunc("/video/{file}", s.getVideo).Methods(http.MethodGet)
	r.HandleFunc("/video/{file}", s.deleteVideo).Methods(http.MethodDelete)
	r.HandleFunc("/download/{sessionId}/{file}", s.getDownload).Methods(http.MethodGet)
	r.HandleFunc("/download/{sessionId}", s.listDownloads).Methods(http.MethodGet)
	r.HandleFunc("/status", s.status).Methods(http.MethodGet)
	r.Use(s.record)

	s.Server = httptest.NewServer(r)
	tb.Cleanup(s.Close)
	return s
}

// GridURL returns the WebDriver URL of the fake, as a test would configure it.
func (s *Server) GridURL() string {
	return s.URL + "/wd/hub"
}

// AddVideo stores a recording under name (without extension).
func (s *Server) AddVideo(name string, content []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.videos[name] = content
}

// HasVideo reports whether a recording is stored.
func (s *Server) HasVideo(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.videos[name]
	return ok
}

// DelayVideo makes the next n fetches of a recording return 404.
func (s *Server) DelayVideo(name string, n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending[videoKey(name)] = n
}

// FailDeletes makes the next n deletes of a recording return 500.
func (s *Server) FailDeletes(name string, n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleteFails[name] = n
}

// AddDownload stores a file downloaded by a session. Listing order is insertion order.
func (s *Server) AddDownload(sessionID, name string, content []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sf, ok := s.sessions[sessionID]
	if !ok {
		sf = &sessionFiles{files: make(map[string][]byte)}
		s.sessions[sessionID] = sf
	}
	if _, exists := sf.files[name]; !exists {
		sf.order = append(sf.order, name)
	}
	sf.files[name] = content
}

// DelayDownload makes the next n fetches of a downloaded file return 404.
func (s *Server) DelayDownload(sessionID, name string, n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending[downloadKey(sessionID, name)] = n
}

// SetListingFormat selects JSON (default) or HTML listings.
func (s *Server) SetListingFormat(f ListingFormat) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listingFormat = f
}

// SetUnhealthy makes /status answer 503.
func (s *Server) SetUnhealthy(unhealthy bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.unhealthy = unhealthy
}

// Requests returns a copy of the requests observed so far.
func (s *Server) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Request, len(s.requests))
	copy(out, s.requests)
	return out
}

// CountRequests counts observed requests with the given method and path.
func (s *Server) CountRequests(method, path string) int {
	n := 0
	for _, r := range s.Requests() {
		if r.Method == method && r.Path == path {
			n++
		}
	}
	return n
}

func (s *Server) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.requests = append(s.requests, Request{
			Method: r.Method,
			Path:   r.URL.Path,
			Accept: r.Header.Get("Accept"),
		})
		s.mu.Unlock()
		next.ServeHTTP(w, r)
	})
}

// takePending consumes one delayed response for key. Caller holds s.mu.
func (s *Server) takePending(key string) bool {
	if s.pending[key] > 0 {
		s.pending[key]--
		return true
	}
	return false
}

func (s *Server) getVideo(w http.ResponseWriter, r *http.Request) {
	name, ok := strings.CutSuffix(mux.Vars(r)["file"], ".mp4")
	if !ok {
		http.NotFound(w, r)
		return
	}

	s.mu.Lock()
	content, exists := s.videos[name]
	delayed := s.takePending(videoKey(name))
	s.mu.Unlock()

	if !exists || delayed {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "video/mp4")
	_, _ = w.Write(content)
}

func (s *Server) deleteVideo(w http.ResponseWriter, r *http.Request) {
	name, ok := strings.CutSuffix(mux.Vars(r)["file"], ".mp4")
	if !ok {
		http.NotFound(w, r)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.deleteFails[name] > 0 {
		s.deleteFails[name]--
		http.Error(w, "recording is still being written", http.StatusInternalServerError)
		return
	}
	if _, exists := s.videos[name]; !exists {
		http.NotFound(w, r)
		return
	}
	delete(s.videos, name)
	w.WriteHeader(http.StatusOK)
}

func (s *Server) getDownload(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	sessionID, name := vars["sessionId"], vars["file"]

	s.mu.Lock()
	var content []byte
	exists := false
	if sf, ok := s.sessions[sessionID]; ok {
		content, exists = sf.files[name]
	}
	delayed := s.takePending(downloadKey(sessionID, name))
	s.mu.Unlock()

	if !exists || delayed {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "application/octet-stream")
	_, _ = w.Write(content)
}

func (s *Server) listDownloads(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["sessionId"]

	s.mu.Lock()
	sf, ok := s.sessions[sessionID]
	var names []string
	if ok {
		names = append(names, sf.order...)
	}
	format := s.listingFormat
	s.mu.Unlock()

	if !ok {
		http.NotFound(w, r)
		return
	}

	if format == ListingHTML {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		var sb strings.Builder
		sb.WriteString("<html><body><pre>\n")
		for _, n := range names {
			fmt.Fprintf(&sb, "<a href=\"%s\">%s</a>\n", html.EscapeString(n), html.EscapeString(n))
		}
		sb.WriteString("</pre></body></html>\n")
		_, _ = w.Write([]byte(sb.String()))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if names == nil {
		names = []string{}
	}
	_ = json.NewEncoder(w).Encode(map[string]any{"value": names})
}

func (s *Server) status(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	unhealthy := s.unhealthy
	used := len(s.sessions)
	s.mu.Unlock()

	if unhealthy {
		http.Error(w, "grid is starting", http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"total": 5, "used": used})
}

func videoKey(name string) string {
	return "video/" + name
}

func downloadKey(sessionID, name string) string {
	return "download/" + sessionID + "/" + name
}
