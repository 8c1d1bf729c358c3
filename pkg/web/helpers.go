package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"
)

const maxBodyBytes = 1 << 20

func RespondJSON(w http.ResponseWriter, logger *slog.Logger, status int, payload any) {
	if payload == nil {
		w.WriteHeader(status)
		return
	}

	response, err := json.Marshal(payload)
	if err != nil {
		logger.Error("Error encoding response to JSON", "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(response)
}

func RespondError(w http.ResponseWriter, logger *slog.Logger, status int, message string) {
	RespondJSON(w, logger, status, map[string]string{"error": message})
}

// RespondValidationErrors writes a 400 with one entry per failed field.
// Errors that are not validator.ValidationErrors are reported as a plain message.
func RespondValidationErrors(w http.ResponseWriter, logger *slog.Logger, err error) {
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		RespondError(w, logger, http.StatusBadRequest, err.Error())
		return
	}
	errorMap := make(map[string]string, len(validationErrors))
	for _, fieldErr := range validationErrors {
		errorMap[fieldErr.Field()] = "failed on rule: " + fieldErr.Tag()
	}
	RespondJSON(w, logger, http.StatusBadRequest, map[string]any{"validation_errors": errorMap})
}

// DecodeJSON decodes a size-limited request body into dst, rejecting unknown fields.
func DecodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

// ParseIntParam extracts a positive integer path parameter. Returns the value and a boolean indicating success.
func ParseIntParam(w http.ResponseWriter, r *http.Request, logger *slog.Logger, name string) (int, bool) {
	raw := r.PathValue(name)
	value, err := strconv.Atoi(raw)
	if err != nil || value <= 0 {
		RespondError(w, logger, http.StatusBadRequest, fmt.Sprintf("Invalid %s: %s", name, raw))
		return 0, false
	}
	return value, true
}

// ParseFloatQuery reads an optional float query parameter, returning def when absent.
func ParseFloatQuery(w http.ResponseWriter, r *http.Request, logger *slog.Logger, key string, def float64) (float64, bool) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def, true
	}
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		RespondError(w, logger, http.StatusBadRequest, fmt.Sprintf("Invalid %s number: %s", key, raw))
		return 0, false
	}
	return value, true
}
