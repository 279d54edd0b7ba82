package httpx

import (
	"io"
	"net/http"
)

const healthBody = `{"status":"ok"}`

// healthHandler answers liveness probes. HEAD gets the headers only.
func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if r.Method != http.MethodHead {
		_, _ = io.WriteString(w, healthBody)
	}
}
