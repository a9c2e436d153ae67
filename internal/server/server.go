package server

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/rs/cors"
	"github.com/sirupsen/logrus"

	"github.com/quire-reader/quire/internal/reader"
)

// Server exposes the reader over a local HTTP API for a browser
// frontend. Page images are served as files; everything else is JSON.
type Server struct {
	httpPort string
	reader   *reader.Reader
}

// NewServer creates a server over an injected reader.
func NewServer(httpPort string, r *reader.Reader) *Server {
	return &Server{
		httpPort: httpPort,
		reader:   r,
	}
}

// Start serves until interrupted.
func (s *Server) Start() {
	if err := s.run(); err != nil {
		logrus.Fatalf("error starting server: %v", err)
	}
}

func (s *Server) run() error {
	addr := ":" + s.httpPort

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}

	c := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"}, // All origins are allowed
		AllowedMethods:   []string{"GET", "POST", "DELETE", "PUT"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: true,
	})

	httpServer := &http.Server{
		Addr:    addr,
		Handler: c.Handler(s.Handler()),
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		logrus.Info("starting reader api on: ", addr)
		if err := httpServer.Serve(listener); err != nil {
			if !errors.Is(err, http.ErrServerClosed) {
				logrus.Errorf("error starting reader api: %v", err)
			}
		}
		logrus.Infof("reader api stopped")
	}()

	logrus.Infof("Press Ctrl+C to stop the server")

	// listen for interrupt signal to gracefully shut down the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		logrus.Errorf("error shutting down reader api: %v", err)
	}
	<-done

	if err := s.reader.Close(); err != nil {
		logrus.Errorf("error closing reader: %v", err)
	}

	return nil
}

// Handler builds the route table. Split from run for tests.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /v1/documents", s.openDocument)
	mux.HandleFunc("POST /v1/documents/cached/{fileId}", s.openCached)
	mux.HandleFunc("DELETE /v1/documents", s.closeDocument)

	mux.HandleFunc("GET /v1/session", s.getSession)
	mux.HandleFunc("POST /v1/session/page", s.setPage)
	mux.HandleFunc("POST /v1/session/next", s.nextPage)
	mux.HandleFunc("POST /v1/session/prev", s.prevPage)
	mux.HandleFunc("POST /v1/session/view-mode", s.setViewMode)

	mux.HandleFunc("GET /v1/pages/{index}", s.getPage)

	mux.HandleFunc("GET /v1/cache", s.getCache)
	mux.HandleFunc("DELETE /v1/cache", s.clearCache)

	return mux
}

func (s *Server) openDocument(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	name := r.URL.Query().Get("name")
	fileID := r.URL.Query().Get("fileId")

	doc, err := s.reader.Open(r.Context(), data, fileID, name)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err)
		return
	}

	writeJSON(w, http.StatusOK, documentResponse(doc))
}

func (s *Server) openCached(w http.ResponseWriter, r *http.Request) {
	doc, err := s.reader.OpenCached(r.Context(), r.PathValue("fileId"))
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}

	writeJSON(w, http.StatusOK, documentResponse(doc))
}

func (s *Server) closeDocument(w http.ResponseWriter, r *http.Request) {
	if err := s.reader.Close(); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) getSession(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.sessionResponse())
}

func (s *Server) setPage(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Index int `json:"index"`
	}
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	s.reader.SetActivePage(req.Index)
	writeJSON(w, http.StatusOK, s.sessionResponse())
}

func (s *Server) nextPage(w http.ResponseWriter, r *http.Request) {
	s.reader.NextPage()
	writeJSON(w, http.StatusOK, s.sessionResponse())
}

func (s *Server) prevPage(w http.ResponseWriter, r *http.Request) {
	s.reader.PrevPage()
	writeJSON(w, http.StatusOK, s.sessionResponse())
}

func (s *Server) setViewMode(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Mode string `json:"mode"`
	}
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	mode, err := parseViewMode(req.Mode)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	s.reader.SetViewMode(mode)
	writeJSON(w, http.StatusOK, s.sessionResponse())
}

// getPage serves the decoded image for a page. An unresolved page is a
// 404; the frontend keeps its loading placeholder and asks again.
func (s *Server) getPage(w http.ResponseWriter, r *http.Request) {
	index, err := parseIndex(r.PathValue("index"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	h, ok := s.reader.PageImage(index)
	if !ok {
		writeError(w, http.StatusNotFound, errors.New("page not resolved"))
		return
	}

	data, err := h.Open()
	if err != nil {
		// released between lookup and read: same as unresolved
		writeError(w, http.StatusNotFound, err)
		return
	}

	w.Header().Set("Cache-Control", "no-store")
	_, _ = w.Write(data)
}

func (s *Server) getCache(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"usage":   s.reader.CacheUsage(r.Context()),
		"entries": s.reader.CacheEntries(r.Context()),
	})
}

func (s *Server) clearCache(w http.ResponseWriter, r *http.Request) {
	if err := s.reader.ClearCache(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
