package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/mmynk/homequest/internal/service"
)

// envelope is the JSON body of every non-CSV response.
type envelope map[string]any

func writeJSON(w http.ResponseWriter, status int, body envelope) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

func writeCSV(w http.ResponseWriter, filename string, body []byte) {
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	w.Header().Set("Content-Length", strconv.Itoa(len(body)))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(body); err != nil {
		slog.Error("Failed to write csv", "filename", filename, "error", err)
	}
}

// httpStatus maps a service code to its HTTP status.
func httpStatus(code service.Code) int {
	switch code {
	case service.CodeInvalidArgument:
		return http.StatusBadRequest
	case service.CodeUnauthenticated:
		return http.StatusUnauthorized
	case service.CodePermissionDenied:
		return http.StatusForbidden
	case service.CodeNotFound:
		return http.StatusNotFound
	case service.CodeAlreadyExists:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// writeError renders err as {success:false, error, message, ...}. The cause
// of an internal error is only echoed outside production.
func (h *Handler) writeError(w http.ResponseWriter, err error) {
	var se *service.Error
	if !errors.As(err, &se) {
		se = service.NewError(service.CodeInternal, err)
	}
	status := httpStatus(se.Code)

	msg := se.Message
	if msg == "" {
		msg = http.StatusText(status)
	}
	body := envelope{"success": false, "error": msg, "message": msg}
	if se.Description != "" {
		body["message"] = se.Description
	}
	if len(se.Fields) > 0 {
		body["errors"] = se.Fields
	}

	switch details := se.Details.(type) {
	case nil:
	case map[string]any:
		for k, v := range details {
			body[k] = v
		}
	default:
		body["details"] = details
	}

	if status == http.StatusInternalServerError && !h.opts.Production && se.Err != nil {
		body["details"] = se.Err.Error()
	}
	writeJSON(w, status, body)
}

// clientError writes a 400 that did not come from a service.
func clientError(w http.ResponseWriter, msg, description string) {
	writeJSON(w, http.StatusBadRequest, envelope{"success": false, "error": msg, "message": description})
}
