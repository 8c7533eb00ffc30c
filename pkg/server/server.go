// Package server is the HTTP front end: the chat and upload endpoints used
// by the web client plus health and Prometheus metrics.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/alana-ai/alana/pkg/index"
	"github.com/alana-ai/alana/pkg/metrics"
	"github.com/alana-ai/alana/pkg/models"
)

// DefaultMaxFiles is how many documents one upload may carry.
const DefaultMaxFiles = 3

// Asker answers questions.
type Asker interface {
	Ask(ctx context.Context, question string) (models.Response, error)
}

// Ingester stores uploaded documents.
type Ingester interface {
	Ingest(ctx context.Context, filename string, r io.Reader, size int64) (index.Document, error)
	Ready() bool
}

// CorpusResetter starts a new corpus lifetime after the index changes.
type CorpusResetter interface {
	Reset() error
}

// StatsFunc reports response cache counters.
type StatsFunc func() models.CacheStats

// Options wires a Server. Ingester, Corpus and Stats may be nil.
type Options struct {
	Listen      string
	Asker       Asker
	Ingester    Ingester
	Corpus      CorpusResetter
	Stats       StatsFunc
	MaxFileSize int64
	MaxFiles    int
	Logger      *zap.Logger
}

// Server is the Alana HTTP server.
type Server struct {
	opts   Options
	logger *zap.Logger
	router chi.Router
}

// New creates a Server with all routes registered.
func New(opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.MaxFileSize <= 0 {
		opts.MaxFileSize = 16 << 20
	}
	if opts.MaxFiles <= 0 {
		opts.MaxFiles = DefaultMaxFiles
	}
	s := &Server{opts: opts, logger: opts.Logger}

	r := chi.NewRouter()
	r.Use(chiMiddleware.RequestID)
	r.Use(s.recoverer)
	r.Use(s.requestLog)
	r.Use(metrics.Middleware)

	r.Post("/chat", s.handleChat)
	r.Post("/upload", s.handleUpload)
	r.Get("/stats", s.handleStats)
	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())
	s.router = r
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// ListenAndServe starts the server and shuts it down gracefully when ctx ends.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.opts.Listen,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("alana listening", zap.String("addr", s.opts.Listen))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

type chatRequest struct {
	Message string `json:"message"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var message string
	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		var req chatRequest
		if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
			writeJSONError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		message = req.Message
	} else {
		message = r.FormValue("message")
	}

	resp, err := s.opts.Asker.Ask(r.Context(), message)
	if err != nil {
		s.logger.Info("question abandoned", zap.Error(err))
		writeJSONError(w, http.StatusServiceUnavailable, "request canceled")
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

type uploadDetail struct {
	Filename string  `json:"filename"`
	Success  bool    `json:"success"`
	SizeMB   float64 `json:"size_mb"`
	Chunks   int     `json:"chunks,omitempty"`
	Message  string  `json:"message,omitempty"`
}

type uploadResponse struct {
	Success bool           `json:"success"`
	Message string         `json:"message"`
	Details []uploadDetail `json:"details,omitempty"`
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if s.opts.Ingester == nil {
		writeJSON(w, http.StatusServiceUnavailable, uploadResponse{Message: "La carga de documentos no está disponible"})
		return
	}

	limit := s.opts.MaxFileSize*int64(s.opts.MaxFiles) + 1<<20
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, uploadResponse{Message: fmt.Sprintf("Muy grande (máx. %dMB por archivo)", s.opts.MaxFileSize>>20)})
			return
		}
		writeJSON(w, http.StatusBadRequest, uploadResponse{Message: "No enviaste archivo"})
		return
	}
	defer r.MultipartForm.RemoveAll()

	files := append(r.MultipartForm.File["files"], r.MultipartForm.File["file"]...)
	if len(files) == 0 {
		writeJSON(w, http.StatusBadRequest, uploadResponse{Message: "No enviaste archivo"})
		return
	}
	if len(files) > s.opts.MaxFiles {
		writeJSON(w, http.StatusBadRequest, uploadResponse{Message: fmt.Sprintf("Máximo %d archivos permitidos", s.opts.MaxFiles)})
		return
	}

	details := make([]uploadDetail, 0, len(files))
	ok := 0
	for _, fh := range files {
		d := s.ingestFile(r.Context(), fh)
		if d.Success {
			ok++
		}
		details = append(details, d)
	}

	if ok > 0 && s.opts.Corpus != nil {
		if err := s.opts.Corpus.Reset(); err != nil {
			s.logger.Warn("corpus marker reset failed", zap.Error(err))
		}
	}

	resp := uploadResponse{Success: ok > 0, Details: details}
	switch {
	case len(files) == 1 && ok == 1:
		resp.Message = "Documento procesado correctamente."
	case len(files) == 1:
		resp.Message = details[0].Message
	default:
		resp.Message = fmt.Sprintf("%d de %d documentos procesados correctamente.", ok, len(files))
	}
	status := http.StatusOK
	if ok == 0 {
		status = http.StatusBadRequest
	}
	writeJSON(w, status, resp)
}

func (s *Server) ingestFile(ctx context.Context, fh *multipart.FileHeader) uploadDetail {
	d := uploadDetail{
		Filename: fh.Filename,
		SizeMB:   float64(fh.Size*10/(1<<20)) / 10,
	}
	f, err := fh.Open()
	if err != nil {
		d.Message = "No se pudo leer el archivo"
		return d
	}
	defer f.Close()

	doc, err := s.opts.Ingester.Ingest(ctx, fh.Filename, f, fh.Size)
	if err != nil {
		var verr *models.ValidationError
		if errors.As(err, &verr) {
			d.Message = verr.Message
		} else {
			s.logger.Error("document ingestion failed", zap.String("filename", fh.Filename), zap.Error(err))
			d.Message = "Error al procesar " + fh.Filename
		}
		return d
	}
	d.Success = true
	d.Chunks = len(doc.Chunks)
	return d
}

func (s *Server) handleStats(w http.ResponseWriter, _ *http.Request) {
	if s.opts.Stats == nil {
		writeJSON(w, http.StatusOK, models.CacheStats{})
		return
	}
	writeJSON(w, http.StatusOK, s.opts.Stats())
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	ready := s.opts.Ingester != nil && s.opts.Ingester.Ready()
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "index_ready": ready})
}

// recoverer replaces chi's middleware.Recoverer so a panic still answers
// with the {success:false,message} body the chat and upload clients parse.
func (s *Server) recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				s.logger.Error("panic recovered",
					zap.Any("panic", rec),
					zap.String("request_id", chiMiddleware.GetReqID(r.Context())),
				)
				writeJSONError(w, http.StatusInternalServerError, "internal error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// requestLog emits one line per request.
func (s *Server) requestLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		if id := chiMiddleware.GetReqID(r.Context()); id != "" {
			w.Header().Set("X-Request-ID", id)
		}
		ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Info("http_request",
			zap.String("request_id", chiMiddleware.GetReqID(r.Context())),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.Int("response_bytes", ww.BytesWritten()),
		)
	})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeJSONError(w http.ResponseWriter, code int, message string) {
	writeJSON(w, code, map[string]any{"success": false, "message": message})
}
