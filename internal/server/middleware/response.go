package middleware

import (
	"encoding/json"
	"net/http"

	"github.com/iudanet/commentauth/pkg/api"
)

// writeError отправляет JSON ответ {error} из middleware
func writeError(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(api.ErrorResponse{Error: message})
}
