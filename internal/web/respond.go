package web

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog/hlog"

	"github.com/ecoledger/carbon-dashboard/internal/carbon"
	"github.com/ecoledger/carbon-dashboard/internal/consumption"
	"github.com/ecoledger/carbon-dashboard/internal/crudapi"
	"github.com/ecoledger/carbon-dashboard/internal/dashboard"
	"github.com/ecoledger/carbon-dashboard/internal/importer"
	"github.com/ecoledger/carbon-dashboard/internal/report"
)

// Error codes written in the envelope.
const (
	CodeBadRequest = "bad_request"
	CodeTooLarge   = "too_large"
	CodeValidation = "validation"
	CodeNotFound   = "not_found"
	CodeUpstream   = "upstream"
	CodeInternal   = "internal"
)

var (
	// errBadRequest marks malformed input: bad JSON, query values or uploads.
	errBadRequest = errors.New("bad request")
	errTooLarge   = errors.New("request body too large")
)

func badRequest(format string, args ...any) error {
	return fmt.Errorf("%w: %s", errBadRequest, fmt.Sprintf(format, args...))
}

// bodyError turns a read failure into errTooLarge when the body hit its
// MaxBytesReader limit, and into a bad request otherwise.
func bodyError(err error, format string, args ...any) error {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return fmt.Errorf("%w: limit is %d bytes", errTooLarge, tooLarge.Limit)
	}
	return badRequest(format, args...)
}

// envelope matches the remote CRUD API's response shape.
type envelope struct {
	Success bool      `json:"success"`
	Data    any       `json:"data,omitempty"`
	Error   *apiError `json:"error,omitempty"`
}

type apiError struct {
	Code    string                   `json:"code"`
	Message string                   `json:"message"`
	Fields  []consumption.FieldError `json:"fields,omitempty"`
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		hlog.FromRequest(r).Error().Err(err).Msg("failed to write response")
	}
}

func writeData(w http.ResponseWriter, r *http.Request, status int, data any) {
	writeJSON(w, r, status, envelope{Success: true, Data: data})
}

// writeError maps err onto a status code and error envelope. This is the only
// place errors become HTTP statuses.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, body := classify(err)
	if status >= http.StatusInternalServerError {
		hlog.FromRequest(r).Error().Err(err).Msg("request failed")
	}
	writeJSON(w, r, status, envelope{Error: &body})
}

func classify(err error) (int, apiError) {
	var apiErr *crudapi.APIError
	switch {
	case errors.Is(err, errBadRequest),
		errors.Is(err, importer.ErrUnsupportedFile),
		errors.Is(err, importer.ErrMissingColumns):
		return http.StatusBadRequest, apiError{Code: CodeBadRequest, Message: err.Error()}
	case errors.Is(err, errTooLarge):
		return http.StatusRequestEntityTooLarge, apiError{Code: CodeTooLarge, Message: err.Error()}
	case errors.Is(err, consumption.ErrInvalidRecord):
		fields, _ := consumption.IsValidation(err)
		return http.StatusUnprocessableEntity, apiError{Code: CodeValidation, Message: err.Error(), Fields: fields}
	case errors.Is(err, report.ErrInvalidSchedule), errors.Is(err, carbon.ErrUnknownActivity):
		return http.StatusUnprocessableEntity, apiError{Code: CodeValidation, Message: err.Error()}
	case errors.Is(err, consumption.ErrNotFound),
		errors.Is(err, report.ErrScheduleNotFound),
		errors.Is(err, dashboard.ErrUnknownDashboard):
		return http.StatusNotFound, apiError{Code: CodeNotFound, Message: err.Error()}
	case errors.As(err, &apiErr):
		return http.StatusBadGateway, apiError{Code: CodeUpstream, Message: err.Error()}
	default:
		return http.StatusInternalServerError, apiError{Code: CodeInternal, Message: "internal server error"}
	}
}

// decodeJSON reads the whole body under maxBodyBytes before decoding, since
// the stream decoder does not surface reader errors.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		return bodyError(err, "read body: %v", err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return badRequest("request body is empty")
	}
	if err := json.Unmarshal(data, v); err != nil {
		return badRequest("invalid JSON body: %v", err)
	}
	return nil
}

// parseDay parses an ISO date or an RFC 3339 timestamp. Empty yields zero.
func parseDay(name, v string) (time.Time, error) {
	if v == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.DateOnly, v); err == nil {
		return t, nil
	}
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t.UTC(), nil
	}
	return time.Time{}, badRequest("%s: expected YYYY-MM-DD, got %q", name, v)
}

// filterFromQuery reads entity, from, to and limit. The "to" day is inclusive.
func filterFromQuery(r *http.Request) (consumption.Filter, error) {
	q := r.URL.Query()
	var f consumption.Filter
	var err error
	f.EntityID = q.Get("entity")
	if f.From, err = parseDay("from", q.Get("from")); err != nil {
		return f, err
	}
	to, err := parseDay("to", q.Get("to"))
	if err != nil {
		return f, err
	}
	if !to.IsZero() {
		f.To = to.AddDate(0, 0, 1)
	}
	if !f.From.IsZero() && !f.To.IsZero() && !f.From.Before(f.To) {
		return f, badRequest("from must not be after to")
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return f, badRequest("limit: expected a non-negative integer, got %q", v)
		}
		f.Limit = n
	}
	return f, nil
}
