package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"slices"
	"strings"

	"github.com/google/uuid"

	"github.com/hubenschmidt/go-docsrag/core"
	"github.com/hubenschmidt/go-docsrag/logger"
	"github.com/hubenschmidt/go-docsrag/monitor"
)

const requestIDHeader = "X-Request-ID"

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Write([]byte("OK"))
}

func (s *Server) handlePrompt(w http.ResponseWriter, r *http.Request) {
	log := s.logger.WithContext(r.Context())

	query, err := decodePrompt(http.MaxBytesReader(w, r.Body, s.maxBodyBytes))
	if err != nil {
		log.Warn("rejected prompt request", err)
		s.collector.ObserveRequest(monitor.StatusInvalid)
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, core.KindInvalidRequest, "request body is too large")
			return
		}
		writeError(w, http.StatusBadRequest, core.KindInvalidRequest, "request body must be JSON with a string \"query\" field")
		return
	}

	result, err := s.engine.Run(r.Context(), query)
	if err != nil {
		status, detail := errorStatus(err)
		if status == http.StatusGatewayTimeout {
			s.collector.ObserveRequest(monitor.StatusTimeout)
		} else {
			s.collector.ObserveRequest(monitor.StatusError)
		}
		writeError(w, status, core.KindOf(err), detail)
		return
	}

	s.collector.ObserveRequest(monitor.StatusOK)
	docs := result.Docs
	if docs == nil {
		docs = []core.Match{}
	}
	writeJSON(w, http.StatusOK, PromptResponse{Message: result.Message, Docs: docs})
}

func decodePrompt(body io.Reader) (string, error) {
	var req PromptRequest
	dec := json.NewDecoder(body)
	if err := dec.Decode(&req); err != nil {
		return "", errors.Join(core.ErrInvalidRequest, err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return "", errors.Join(core.ErrInvalidRequest, errors.New("unexpected data after the JSON object"), err)
	}
	if req.Query == nil {
		return "", errors.Join(core.ErrInvalidRequest, errors.New("missing query"))
	}
	return *req.Query, nil
}

// errorStatus maps a pipeline error to a status and a caller-safe detail.
// Causes stay in the server log.
func errorStatus(err error) (int, string) {
	switch {
	case core.IsTimeout(err):
		return http.StatusGatewayTimeout, "the request took too long to answer"
	case errors.Is(err, core.ErrInvalidRequest):
		return http.StatusBadRequest, "invalid request"
	}

	var pe *core.PipelineError
	if !errors.As(err, &pe) {
		return http.StatusInternalServerError, "internal error"
	}
	switch pe.Stage {
	case core.StageEmbed:
		return http.StatusBadGateway, "could not embed the query"
	case core.StageRetrieve:
		return http.StatusBadGateway, "could not search the documentation index"
	case core.StageFetch:
		return http.StatusBadGateway, "could not load a matching document"
	case core.StageComplete:
		return http.StatusBadGateway, "could not generate an answer"
	default:
		return http.StatusInternalServerError, "internal error"
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, kind, detail string) {
	writeJSON(w, status, ErrorResponse{ErrorKind: kind, Detail: detail})
}

// requestIDMiddleware reuses an incoming X-Request-ID or mints one, echoes
// it in the response and stores it for request-scoped logging.
func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get(requestIDHeader))
		if id == "" || len(id) > 128 {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(logger.ContextWithRequestID(r.Context(), id)))
	})
}

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if origin := s.allowOrigin(r.Header.Get("Origin")); origin != "" {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, "+requestIDHeader)
			w.Header().Set("Access-Control-Expose-Headers", requestIDHeader)
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) allowOrigin(origin string) string {
	if slices.Contains(s.allowedOrigins, "*") {
		return "*"
	}
	if origin != "" && slices.Contains(s.allowedOrigins, origin) {
		return origin
	}
	return ""
}
