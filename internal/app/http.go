package app

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"syllabus/api/internal/report"
	"syllabus/api/internal/search"
	"syllabus/api/internal/store"
)

type HTTPServer struct {
	service    *Service
	corsOrigin string
}

func NewHTTPServer(service *Service, corsOrigin string) *HTTPServer {
	return &HTTPServer{service: service, corsOrigin: corsOrigin}
}

func (s *HTTPServer) Handler() http.Handler {
	return s.withMiddleware(http.HandlerFunc(s.handle))
}

func (s *HTTPServer) handle(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodOptions {
		writeJSON(w, http.StatusNoContent, map[string]any{})
		return
	}

	if (r.Method == http.MethodGet || r.Method == http.MethodHead) && r.URL.Path == "/api/health" {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		return
	}

	if (r.Method == http.MethodGet || r.Method == http.MethodHead) && r.URL.Path == "/api/ready" {
		s.handleReady(w, r)
		return
	}

	if !s.authorize(w, r) {
		return
	}

	if r.Method == http.MethodGet && r.URL.Path == "/api/search" {
		s.handleSearch(w, r)
		return
	}

	// /api/courses/{id}/...
	parts := splitPath(r.URL.Path)
	if len(parts) >= 3 && parts[0] == "api" && parts[1] == "courses" {
		courseID, err := strconv.ParseInt(parts[2], 10, 64)
		if err != nil {
			writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "course id must be an integer", nil)
			return
		}
		rest := parts[3:]

		switch {
		case r.Method == http.MethodPost && len(rest) == 1 && rest[0] == "sync":
			s.handleSync(w, r, courseID, "")
			return
		case r.Method == http.MethodPost && len(rest) == 2 && rest[0] == "sync" && rest[1] == "legacy":
			s.handleSync(w, r, courseID, PipelineLegacy)
			return
		case r.Method == http.MethodGet && len(rest) == 2 && rest[0] == "sync" && rest[1] == "status":
			payload, err := s.service.SyncStatus(r.Context(), courseID)
			if err != nil {
				status, code, message, details := mapError(err)
				writeError(w, status, code, message, details)
				return
			}
			writeJSON(w, http.StatusOK, payload)
			return
		case r.Method == http.MethodGet && len(rest) == 1 && rest[0] == "report":
			s.handleReport(w, r, courseID)
			return
		case r.Method == http.MethodGet && len(rest) == 1 && rest[0] == "lti-links":
			payload, err := s.service.ListLTILinks(r.Context(), courseID)
			if err != nil {
				status, code, message, details := mapError(err)
				writeError(w, status, code, message, details)
				return
			}
			writeJSON(w, http.StatusOK, payload)
			return
		case r.Method == http.MethodPut && len(rest) == 1 && rest[0] == "lti-links":
			s.handleUpsertLTILink(w, r, courseID)
			return
		case r.Method == http.MethodDelete && len(rest) == 2 && rest[0] == "lti-links":
			if err := s.service.DeleteLTILink(r.Context(), courseID, rest[1]); err != nil {
				status, code, message, details := mapError(err)
				writeError(w, status, code, message, details)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"ok": true})
			return
		}
	}

	writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
}

func (s *HTTPServer) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := "ready"
	statusCode := http.StatusOK
	checks := map[string]any{
		"database": map[string]any{"status": "ok"},
	}

	if err := s.service.Ping(ctx); err != nil {
		status = "not_ready"
		statusCode = http.StatusServiceUnavailable
		checks["database"] = map[string]any{
			"status": "error",
			"error":  err.Error(),
		}
	}

	// Run storage is advisory: report it, don't gate readiness on it.
	if err := s.service.PingRuns(ctx); err != nil {
		checks["runStore"] = map[string]any{"status": "error", "error": err.Error()}
	} else {
		checks["runStore"] = map[string]any{"status": "ok"}
	}

	writeJSON(w, statusCode, map[string]any{
		"ok":     status == "ready",
		"status": status,
		"checks": checks,
	})
}

func (s *HTTPServer) authorize(w http.ResponseWriter, r *http.Request) bool {
	token := strings.TrimSpace(r.Header.Get("x-syllabus-sync-token"))
	if token == "" {
		token = bearerToken(r)
	}
	if !s.service.VerifySyncToken(token) {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil)
		return false
	}
	return true
}

func (s *HTTPServer) handleSync(w http.ResponseWriter, r *http.Request, courseID int64, forcedPipeline string) {
	var input SyncInput
	if err := decodeBody(r, &input); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	input.Pipeline = strings.TrimSpace(input.Pipeline)
	input.Source = strings.TrimSpace(input.Source)
	if forcedPipeline != "" {
		input.Pipeline = forcedPipeline
	}

	payload, err := s.service.SyncCourse(r.Context(), courseID, input)
	if err != nil {
		status, code, message, details := mapError(err)
		writeError(w, status, code, message, details)
		return
	}
	writeJSON(w, http.StatusOK, payload)
}

func (s *HTTPServer) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	filterType := strings.TrimSpace(r.URL.Query().Get("type"))
	if filterType != "" && filterType != string(search.ResultTag) && filterType != string(search.ResultQuestion) {
		writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "type must be 'tag' or 'question'", nil)
		return
	}
	var courseID int64
	if raw := strings.TrimSpace(r.URL.Query().Get("courseId")); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "courseId must be an integer", nil)
			return
		}
		courseID = parsed
	}
	limit := 20
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "limit must be an integer", nil)
			return
		}
		limit = parsed
	}
	offset := 0
	if raw := strings.TrimSpace(r.URL.Query().Get("offset")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "offset must be an integer", nil)
			return
		}
		offset = parsed
	}

	response := s.service.Search(search.Query{
		Text:           q,
		FilterType:     search.ResultType(filterType),
		FilterCourseID: courseID,
		Limit:          limit,
		Offset:         offset,
	})
	writeJSON(w, http.StatusOK, response)
}

func (s *HTTPServer) handleReport(w http.ResponseWriter, r *http.Request, courseID int64) {
	format := report.Format(strings.TrimSpace(r.URL.Query().Get("format")))
	if format == "" {
		format = report.FormatPDF
	}
	if format != report.FormatPDF && format != report.FormatDOCX {
		writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "format must be 'pdf' or 'docx'", nil)
		return
	}

	result, err := s.service.Report(r.Context(), courseID, format)
	if err != nil {
		if errors.Is(err, report.ErrPDFDependencyMissing) || errors.Is(err, report.ErrDOCXDependencyMissing) {
			writeError(w, http.StatusServiceUnavailable, "REPORT_UNAVAILABLE", err.Error(), nil)
			return
		}
		status, code, message, details := mapError(err)
		writeError(w, status, code, message, details)
		return
	}

	w.Header().Set("Content-Type", result.MimeType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", result.Filename))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(result.Data)
}

func (s *HTTPServer) handleUpsertLTILink(w http.ResponseWriter, r *http.Request, courseID int64) {
	var body struct {
		ResourceKey string `json:"resourceKey"`
		LaunchURL   string `json:"launchUrl"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	resourceKey := strings.TrimSpace(body.ResourceKey)
	if resourceKey == "" {
		writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "resourceKey is required", nil)
		return
	}
	launchURL := strings.TrimSpace(body.LaunchURL)
	if launchURL == "" {
		writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "launchUrl is required", nil)
		return
	}

	payload, err := s.service.UpsertLTILink(r.Context(), courseID, resourceKey, launchURL)
	if err != nil {
		status, code, message, details := mapError(err)
		writeError(w, status, code, message, details)
		return
	}
	writeJSON(w, http.StatusOK, payload)
}

func (s *HTTPServer) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = randomRequestID()
		}
		ctx := context.WithValue(r.Context(), requestIDKey{}, requestID)
		r = r.WithContext(ctx)

		started := time.Now()
		writer := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		setCORSHeaders(writer.Header(), s.corsOrigin)
		writer.Header().Set("X-Request-ID", requestID)

		next.ServeHTTP(writer, r)

		log.Printf(`{"request_id":"%s","method":"%s","path":"%s","status":%d,"duration_ms":%d}`,
			requestID,
			r.Method,
			r.URL.Path,
			writer.status,
			time.Since(started).Milliseconds(),
		)
	})
}

type requestIDKey struct{}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func randomRequestID() string {
	buf := make([]byte, 8)
	_, _ = rand.Read(buf)
	return hex.EncodeToString(buf)
}

func setCORSHeaders(header http.Header, corsOrigin string) {
	header.Set("Access-Control-Allow-Origin", corsOrigin)
	header.Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-ID, X-Syllabus-Sync-Token")
	header.Set("Access-Control-Allow-Methods", "GET,POST,PUT,DELETE,OPTIONS")
	header.Set("Cache-Control", "no-store")
	header.Set("Content-Type", "application/json")
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code, message string, details any) {
	response := map[string]any{
		"code":  code,
		"error": message,
	}
	if details != nil {
		response["details"] = details
	}
	writeJSON(w, status, response)
}

func decodeBody(r *http.Request, target any) error {
	if r.Body == nil {
		return nil
	}
	defer r.Body.Close()
	decoder := json.NewDecoder(r.Body)
	if err := decoder.Decode(target); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, http.ErrBodyReadAfterClose) {
			return nil
		}
		return fmt.Errorf("invalid JSON body")
	}
	return nil
}

func bearerToken(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if !strings.HasPrefix(header, "Bearer ") {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
}

func splitPath(path string) []string {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "/")
}

func mapError(err error) (status int, code, message string, details any) {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Status, domainErr.Code, domainErr.Message, domainErr.Details
	}
	if errors.Is(err, sql.ErrNoRows) || errors.Is(err, store.ErrNotFound) {
		return http.StatusNotFound, "NOT_FOUND", "Not found", nil
	}
	return http.StatusInternalServerError, "SERVER_ERROR", "Server error", nil
}
