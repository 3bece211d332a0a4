// Package handlers is the JSON surface of the spa service: the public booking endpoints and
// the admin back office.
package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/md-rashed-zaman/spabook/libs/httpx"
	"github.com/md-rashed-zaman/spabook/services/spa-service/internal/apperror"
)

type errorResponse struct {
	Error  string            `json:"error"`
	Kind   string            `json:"kind,omitempty"`
	Reason string            `json:"reason,omitempty"`
	Fields map[string]string `json:"fields,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError renders typed errors with their status. Transient failures are logged and
// reported without detail.
func writeError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	e, ok := apperror.As(err)
	if !ok {
		e = apperror.Transient("request", err)
	}
	status := e.HTTPStatus()
	if status >= http.StatusInternalServerError {
		logger.Error("request failed", "err", err, "path", r.URL.Path, "request_id", httpx.RequestIDFromContext(r.Context()))
		writeJSON(w, status, errorResponse{Error: "internal error", Kind: string(e.Kind)})
		return
	}
	writeJSON(w, status, errorResponse{Error: e.Message, Kind: string(e.Kind), Reason: e.Reason, Fields: e.Fields})
}

func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return apperror.Validation("request body is empty", nil)
		}
		return apperror.Validation("invalid json body", nil)
	}
	return nil
}

func queryTime(r *http.Request, key string) (*time.Time, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, apperror.Validation("invalid input", map[string]string{key: "must be an RFC3339 timestamp"})
	}
	return &t, nil
}

// queryDate parses a YYYY-MM-DD local date in loc.
func queryDate(r *http.Request, key string, loc *time.Location) (*time.Time, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return nil, nil
	}
	t, err := time.ParseInLocation(time.DateOnly, raw, loc)
	if err != nil {
		return nil, apperror.Validation("invalid input", map[string]string{key: "must be a YYYY-MM-DD date"})
	}
	return &t, nil
}

func queryInt(r *http.Request, key string) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, apperror.Validation("invalid input", map[string]string{key: "must be a non-negative integer"})
	}
	return n, nil
}

func requiredQuery(r *http.Request, key string) (string, error) {
	v := strings.TrimSpace(r.URL.Query().Get(key))
	if v == "" {
		return "", apperror.Validation("invalid input", map[string]string{key: "is required"})
	}
	return v, nil
}

// queryID reads a required uuid query parameter. Malformed ids never reach the database.
func queryID(r *http.Request, key string) (string, error) {
	v, err := requiredQuery(r, key)
	if err != nil {
		return "", err
	}
	if _, err := uuid.Parse(v); err != nil {
		return "", apperror.Validation("invalid input", map[string]string{key: "must be a valid id"})
	}
	return v, nil
}

func pathID(r *http.Request) (string, error) {
	v := r.PathValue("id")
	if _, err := uuid.Parse(v); err != nil {
		return "", apperror.Validation("invalid input", map[string]string{"id": "must be a valid id"})
	}
	return v, nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
