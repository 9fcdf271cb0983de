package server

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/leapstack-labs/sqlfence/internal/generate"
	"github.com/leapstack-labs/sqlfence/internal/service"
	"github.com/leapstack-labs/sqlfence/internal/state"
	"github.com/leapstack-labs/sqlfence/pkg/grammar"
)

// maxBodyBytes caps request bodies.
const maxBodyBytes = 64 << 10

type promptRequest struct {
	Prompt string `json:"prompt"`
}

type sqlRequest struct {
	SQL string `json:"sql"`
}

type queryResponse struct {
	ID      string           `json:"id,omitempty"`
	SQL     string           `json:"sql"`
	Columns []string         `json:"columns"`
	Rows    []map[string]any `json:"rows"`
	Error   string           `json:"error,omitempty"`
}

type generateResponse struct {
	SQL   string `json:"sql"`
	Error string `json:"error,omitempty"`
}

type validateResponse struct {
	Valid bool   `json:"valid"`
	SQL   string `json:"sql"`
	Error string `json:"error,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

type schemaResponse struct {
	Database       string   `json:"database"`
	Table          string   `json:"table"`
	Columns        []string `json:"columns"`
	NumericColumns []string `json:"numeric_columns"`
	NumericLiteral string   `json:"numeric_literal"`
	Notes          []string `json:"notes"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"grammar": s.svc.Compiled().Fingerprint(),
	})
}

func (s *Server) handleDBHealth(w http.ResponseWriter, r *http.Request) {
	h, err := s.svc.Health(r.Context())
	if err != nil {
		writeJSON(w, statusFor(err), errorResponse{Error: err.Error()})
		return
	}
	status := http.StatusOK
	if !h.OK {
		s.logger.Error("database health check failed", slog.String("error", h.Error))
		status = http.StatusInternalServerError
	}
	writeJSON(w, status, h)
}

// handleGrammar returns the Lark text, or the structured document when the
// client asks for JSON.
func (s *Server) handleGrammar(w http.ResponseWriter, r *http.Request) {
	c := s.svc.Compiled()
	if r.URL.Query().Get("format") == "json" {
		writeJSON(w, http.StatusOK, c.Document())
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("ETag", strconv.Quote(c.Fingerprint()))
	_, _ = io.WriteString(w, c.Text())
}

func (s *Server) handleSchema(w http.ResponseWriter, _ *http.Request) {
	sc := s.svc.Compiled().Schema()
	writeJSON(w, http.StatusOK, schemaResponse{
		Database:       sc.Database(),
		Table:          sc.Table(),
		Columns:        sc.Columns(),
		NumericColumns: sc.NumericColumns(),
		NumericLiteral: string(sc.NumericLiteral()),
		Notes:          sc.Notes(),
	})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	f := state.Filter{Status: state.Status(r.URL.Query().Get("status"))}
	if f.Status != "" && !f.Status.Valid() {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "unknown status " + strconv.Quote(string(f.Status))})
		return
	}
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "limit must be a positive integer"})
			return
		}
		f.Limit = n
	}

	entries, err := s.svc.History(r.Context(), f)
	if err != nil {
		s.logger.Error("failed to list history", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req promptRequest
	if err := decode(w, r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, emptyQuery(err.Error()))
		return
	}
	if strings.TrimSpace(req.Prompt) == "" {
		writeJSON(w, http.StatusBadRequest, emptyQuery(generate.ErrEmptyPrompt.Error()))
		return
	}

	res, err := s.svc.Run(r.Context(), req.Prompt)
	if err != nil {
		s.logFailure(r, "query failed", err)
		resp := emptyQuery(err.Error())
		resp.ID = res.ID
		resp.SQL = res.SQL
		writeJSON(w, statusFor(err), resp)
		return
	}
	writeJSON(w, http.StatusOK, queryResponse{
		ID:      res.ID,
		SQL:     res.SQL,
		Columns: res.Columns,
		Rows:    res.Rows,
	})
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	var req promptRequest
	if err := decode(w, r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, generateResponse{Error: err.Error()})
		return
	}

	draft, err := s.svc.Generate(r.Context(), req.Prompt)
	if err != nil {
		s.logFailure(r, "generation failed", err)
		writeJSON(w, statusFor(err), generateResponse{SQL: draft.SQL, Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, generateResponse{SQL: draft.Query.String()})
}

func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	var req sqlRequest
	if err := decode(w, r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, validateResponse{Error: err.Error()})
		return
	}

	q, err := s.svc.Validate(req.SQL)
	if err != nil {
		writeJSON(w, statusFor(err), validateResponse{SQL: req.SQL, Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, validateResponse{Valid: true, SQL: q.String()})
}

func (s *Server) logFailure(r *http.Request, msg string, err error) {
	level := slog.LevelError
	if statusFor(err) < http.StatusInternalServerError {
		level = slog.LevelInfo
	}
	s.logger.Log(r.Context(), level, msg,
		slog.String("request_id", RequestIDFrom(r.Context())),
		slog.String("error", err.Error()))
}

// statusFor maps pipeline errors to HTTP status codes: caller mistakes and
// rejected SQL are 400, missing configuration is 500, and failures of the
// model or the database are 502.
func statusFor(err error) int {
	var unsupported *generate.UnsupportedError
	switch {
	case errors.Is(err, generate.ErrEmptyPrompt), grammar.IsRejection(err):
		return http.StatusBadRequest
	case grammar.IsConfigError(err),
		errors.Is(err, generate.ErrNotConfigured),
		errors.As(err, &unsupported),
		errors.Is(err, service.ErrGeneratorUnavailable),
		errors.Is(err, service.ErrDatabaseUnavailable):
		return http.StatusInternalServerError
	default:
		return http.StatusBadGateway
	}
}

func emptyQuery(msg string) queryResponse {
	return queryResponse{Columns: []string{}, Rows: []map[string]any{}, Error: msg}
}

func decode(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return errors.New("invalid request body: " + err.Error())
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
