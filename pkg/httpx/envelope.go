package httpx

import "net/http"

// Envelope codes.
const (
	CodeSuccess       = "SUCCESS"
	CodeBadRequest    = "BAD_REQUEST"
	CodeUnauthorized  = "UNAUTHORIZED"
	CodeInternalError = "INTERNAL_SERVER_ERROR"
)

// Envelope is the {status, code, message, data, errors} body used by the
// dashboard-facing read endpoints.
type Envelope struct {
	Status  bool   `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data"`
	Errors  any    `json:"errors"`
}

// WriteEnvelopeOK writes a 200 success envelope carrying data.
func WriteEnvelopeOK(w http.ResponseWriter, message string, data any) {
	WriteJSON(w, http.StatusOK, Envelope{
		Status:  true,
		Code:    CodeSuccess,
		Message: message,
		Data:    data,
	})
}

// WriteEnvelopeError writes a failure envelope; data and errors are null.
func WriteEnvelopeError(w http.ResponseWriter, status int, code, message string) {
	WriteJSON(w, status, Envelope{Code: code, Message: message})
}

// WriteEnvelopeUnauthorized writes the 401 envelope.
func WriteEnvelopeUnauthorized(w http.ResponseWriter) {
	WriteEnvelopeError(w, http.StatusUnauthorized, CodeUnauthorized, "Unauthorized")
}
