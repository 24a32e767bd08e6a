package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"vaxdash/internal/models"
	"vaxdash/internal/services"
)

const dateLayout = "2006-01-02"

// writeJSON encodes before writing the header, so a value that cannot be
// encoded becomes a 500 instead of an empty success.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	if data == nil {
		w.WriteHeader(status)
		return
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(true)
	if err := enc.Encode(data); err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"failed to encode response"}` + "\n"))
		return
	}
	w.WriteHeader(status)
	_, _ = w.Write(buf.Bytes())
}

// writeError maps pipeline and service errors to a status code and a JSON
// body. Only 5xx responses are logged at error level.
func writeError(w http.ResponseWriter, logr *zap.Logger, msg string, err error) {
	status := http.StatusInternalServerError
	var (
		paramErr *models.InvalidParameterError
		dateErr  *models.InvalidDateError
		valueErr *models.InvalidValueError
		queryErr *queryError
	)
	switch {
	case errors.As(err, &paramErr), errors.As(err, &queryErr):
		status = http.StatusBadRequest
	case errors.Is(err, models.ErrEmptyInput), errors.As(err, &dateErr), errors.As(err, &valueErr):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, services.ErrInvalidCredentials):
		status = http.StatusUnauthorized
	}

	body := map[string]string{"error": msg}
	if status < http.StatusInternalServerError {
		body["detail"] = err.Error()
		logr.Debug(msg, zap.Int("status", status), zap.Error(err))
	} else {
		logr.Error(msg, zap.Error(err))
	}
	writeJSON(w, status, body)
}

// queryError is a malformed query string value.
type queryError struct {
	key   string
	value string
}

func (e *queryError) Error() string {
	return fmt.Sprintf("invalid value %q for query parameter %s", e.value, e.key)
}

// --- helper functions ---

func splitCSV(input string) []string {
	if input == "" {
		return nil
	}
	parts := strings.Split(input, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// parseCSVFloat parses a comma-separated list of numbers. Unlike a lenient
// parse, any bad entry fails the whole list.
func parseCSVFloat(key, input string) ([]float64, error) {
	var result []float64
	for _, p := range splitCSV(input) {
		f, err := strconv.ParseFloat(p, 64)
		if err != nil {
			return nil, &queryError{key: key, value: p}
		}
		result = append(result, f)
	}
	return result, nil
}

func parseBool(input string) bool {
	input = strings.ToLower(strings.TrimSpace(input))
	return input == "1" || input == "true"
}

func queryFloat(q map[string][]string, key string, def float64) (float64, error) {
	raw := strings.TrimSpace(first(q, key))
	if raw == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, &queryError{key: key, value: raw}
	}
	return f, nil
}

func queryInt(q map[string][]string, key string, def int) (int, error) {
	raw := strings.TrimSpace(first(q, key))
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, &queryError{key: key, value: raw}
	}
	return n, nil
}

// queryDate returns the zero time when the parameter is absent.
func queryDate(q map[string][]string, key string) (time.Time, error) {
	raw := strings.TrimSpace(first(q, key))
	if raw == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(dateLayout, raw)
	if err != nil {
		return time.Time{}, &queryError{key: key, value: raw}
	}
	return t, nil
}

func first(q map[string][]string, key string) string {
	if v := q[key]; len(v) > 0 {
		return v[0]
	}
	return ""
}
