package httpx

import (
	"bytes"
	"encoding/json"
	"net/http"
)

// WriteJSON writes a JSON response with the given status code and data.
func WriteJSON(w http.ResponseWriter, code int, v any) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(v); err != nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	// A failed write means the client went away; nothing left to report.
	_, _ = buf.WriteTo(w)
}

// ErrorParams groups the parts of an error response.
type ErrorParams struct {
	Code    int
	ErrCode string
	Err     error
}

// errorBody is the error envelope shared by every route.
type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// WriteError writes a JSON error response using ErrorParams.
func WriteError(w http.ResponseWriter, p ErrorParams) {
	WriteJSON(w, p.Code, errorBody{Error: p.ErrCode, Message: p.Err.Error()})
}

// writeErrorMessage writes the error envelope with a client-facing message.
func writeErrorMessage(w http.ResponseWriter, code int, errCode, message string) {
	WriteJSON(w, code, errorBody{Error: errCode, Message: message})
}
