// internal/common/utils/response.go
// Standardized API responses ensure consistency across all endpoints

package utils

import (
	"encoding/json"
	"net/http"

	"github.com/imadgeboyega/kiekky-events/internal/common/apperr"
	"github.com/imadgeboyega/kiekky-events/internal/common/logger"
)

// Response is the standard API response structure
type Response struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// SuccessResponse sends a successful response
func SuccessResponse(w http.ResponseWriter, data interface{}, statusCode int) {
	writeJSON(w, statusCode, Response{
		Success: true,
		Data:    data,
	})
}

// ErrorResponse sends an error response
func ErrorResponse(w http.ResponseWriter, message string, statusCode int) {
	writeJSON(w, statusCode, Response{
		Success: false,
		Error:   message,
	})
}

// MessageResponse sends a simple message response
func MessageResponse(w http.ResponseWriter, message string, statusCode int) {
	writeJSON(w, statusCode, Response{
		Success: true,
		Message: message,
	})
}

// RespondWithAppError answers with the status of the error's kind. Messages
// of errors outside the taxonomy are replaced by fallback so storage details
// never reach the client.
func RespondWithAppError(w http.ResponseWriter, err error, fallback string) {
	status := apperr.HTTPStatus(err)
	if !apperr.IsClientError(err) {
		ErrorResponse(w, fallback, status)
		return
	}
	ErrorResponse(w, err.Error(), status)
}

// LogAppError logs a failed request by status class: server errors at error,
// forbidden at warn (possible abuse), other client errors at debug.
func LogAppError(log *logger.Logger, msg string, err error) {
	switch status := apperr.HTTPStatus(err); {
	case status >= http.StatusInternalServerError:
		log.Error(msg, "error", err)
	case status == http.StatusForbidden:
		log.Warn(msg, "error", err, "status", status)
	default:
		log.Debug(msg, "error", err, "status", status)
	}
}

func writeJSON(w http.ResponseWriter, statusCode int, payload interface{}) {
	body, err := json.Marshal(payload)
	if err != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"success":false,"error":"Error marshaling JSON"}`))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	w.Write(body)
}
