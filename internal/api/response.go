package api

import (
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/goccy/go-json"

	"bizadmin/internal/backup"
	"bizadmin/internal/logging"
)

// maxBodyBytes caps request bodies
const maxBodyBytes = 1 << 20

// Response is the envelope of every API reply
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
	Code    string      `json:"code,omitempty"`
}

// sanitizeLogValue escapes control characters so request values cannot forge
// log lines
func sanitizeLogValue(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r < 0x20 || r == 0x7F {
			fmt.Fprintf(&b, "\\x%02x", r)
		} else {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func writeJSON(w http.ResponseWriter, logger *logging.Logger, status int, response *Response) {
	data, err := json.Marshal(response)
	if err != nil {
		logger.WithField("error", err.Error()).Error("Failed to marshal JSON response")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	if _, err := w.Write(data); err != nil {
		logger.WithField("error", err.Error()).Error("Failed to write JSON response")
	}
}

func (h *Handler) respondSuccess(w http.ResponseWriter, status int, data interface{}) {
	writeJSON(w, h.logger, status, &Response{Success: true, Data: data})
}

func (h *Handler) respondError(w http.ResponseWriter, r *http.Request, status int, code, message string, err error) {
	if err != nil {
		h.logger.WithContext(r.Context()).WithFields(map[string]interface{}{
			"code":  code,
			"error": sanitizeLogValue(err.Error()),
		}).Error("API error")
	}
	writeJSON(w, h.logger, status, &Response{Success: false, Error: message, Code: code})
}

// respondBackupError maps a backup error to its HTTP status
func (h *Handler) respondBackupError(w http.ResponseWriter, r *http.Request, message string, err error) {
	switch {
	case backup.IsNotFound(err):
		h.respondError(w, r, http.StatusNotFound, "NOT_FOUND", "Backup file not found", err)
	case backup.IsDecryptionError(err):
		h.respondError(w, r, http.StatusBadRequest, "DECRYPTION_FAILED", "Failed to decrypt backup: wrong or missing encryption key", err)
	case backup.IsValidationError(err):
		h.respondError(w, r, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), err)
	case backup.IsCodecError(err):
		h.respondError(w, r, http.StatusUnprocessableEntity, "UNSUPPORTED_FORMAT", "Backup file format is not supported", err)
	default:
		h.respondError(w, r, http.StatusInternalServerError, "INTERNAL_ERROR", message, err)
	}
}

// decodeJSON decodes an optional JSON body into v. An empty body leaves v
// untouched so callers can preset defaults.
func decodeJSON(r *http.Request, v interface{}) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return err
	}
	if len(strings.TrimSpace(string(body))) == 0 {
		return nil
	}
	return json.Unmarshal(body, v)
}
