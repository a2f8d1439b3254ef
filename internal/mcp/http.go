package mcp

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/mark3labs/mcp-go/server"

	"github.com/a3tai/mcp-pdf-stamper/internal/logging"
	"github.com/a3tai/mcp-pdf-stamper/internal/render"
	"github.com/a3tai/mcp-pdf-stamper/internal/stamp"
	"github.com/a3tai/mcp-pdf-stamper/internal/stamperr"
)

// bodyOverhead covers the JSON field list on top of a base64-encoded base PDF.
const bodyOverhead = 4 << 20

// renderResponse is the JSON form of a render, with the PDF inline.
type renderResponse struct {
	*stamp.RenderResult
	Output []byte `json:"output"`
}

type errorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

// Handler returns the HTTP API and the MCP SSE transport on one router
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)

	r.Route("/v1", func(r chi.Router) {
		r.Post("/render", s.handleRender)
		r.Get("/documents/{id}", s.handleGetDocument)
		r.Delete("/documents/{id}", s.handleDeleteDocument)
	})

	sse := server.NewSSEServer(s.mcpServer, server.WithBaseURL("http://"+s.config.Address()))
	r.Handle("/sse", sse.SSEHandler())
	r.Handle("/message", sse.MessageHandler())

	return r
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		logger := s.logger.With("request_id", middleware.GetReqID(r.Context()))

		next.ServeHTTP(ww, r.WithContext(logging.WithLogger(r.Context(), logger)))

		logger.Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start),
		)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleRender renders a self-contained request. The PDF is returned as
// application/pdf unless format=json is given.
func (s *Server) handleRender(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.files.MaxFileSize()*4/3+bodyOverhead)

	var req render.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.writeError(w, stamperr.Newf(stamperr.KindInvalidRequest, "request body exceeds %d bytes", tooLarge.Limit))
			return
		}
		s.writeError(w, stamperr.Wrap(stamperr.KindInvalidRequest, err, "cannot decode render request"))
		return
	}

	result, err := s.service.Render(r.Context(), req)
	if err != nil {
		s.writeError(w, err)
		return
	}

	if r.URL.Query().Get("format") == "json" {
		writeJSON(w, http.StatusOK, renderResponse{RenderResult: result, Output: result.Output})
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Length", strconv.Itoa(len(result.Output)))
	w.Header().Set("X-Stamp-Drawn", strconv.Itoa(result.Drawn))
	w.Header().Set("X-Stamp-Skipped", strconv.Itoa(result.Skipped))
	w.Header().Set("X-Stamp-Issues", strconv.Itoa(len(result.Issues)))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(result.Output); err != nil {
		s.logger.Warn("failed to write render response", "err", err)
	}
}

func (s *Server) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	result, err := s.service.FieldList(r.Context(), stamp.FieldListRequest{DocumentID: chi.URLParam(r, "id")})
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	if err := s.service.DocumentDelete(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	kind := stamperr.KindOf(err)
	status := statusForKind(kind)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "kind", kind, "err", err)
	}
	writeJSON(w, status, errorResponse{Error: err.Error(), Kind: kind.String()})
}

func statusForKind(kind stamperr.Kind) int {
	switch kind {
	case stamperr.KindInvalidRequest, stamperr.KindValidation, stamperr.KindGeometryPrecondition:
		return http.StatusBadRequest
	case stamperr.KindNotFound:
		return http.StatusNotFound
	case stamperr.KindInvalidState:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		http.Error(w, fmt.Sprintf("cannot encode response: %v", err), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}
