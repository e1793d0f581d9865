package httpx

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"
)

// Envelope is the JSON body shared by every action response. It always
// carries "success"; failures also carry "error".
type Envelope map[string]any

// WriteJSON writes a JSON response with the given status code.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		// headers are already sent
		zap.L().Error("failed to encode JSON response", zap.Error(err))
	}
}

// WriteSuccess writes {"success":true,"message":...} merged with data.
func WriteSuccess(w http.ResponseWriter, message string, data Envelope) {
	WriteJSON(w, http.StatusOK, build(true, message, data))
}

// WriteFailure writes {"success":false,"error":...,"message":...} merged with data.
func WriteFailure(w http.ResponseWriter, status int, message string, data Envelope) {
	WriteJSON(w, status, build(false, message, data))
}

func build(success bool, message string, data Envelope) Envelope {
	out := make(Envelope, len(data)+3)
	for k, v := range data {
		out[k] = v
	}
	out["success"] = success
	if message != "" {
		out["message"] = message
	}
	if !success {
		out["error"] = message
	}
	return out
}
