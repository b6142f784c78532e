package middleware

import (
	"encoding/json"
	"net/http"
)

func writeError(w http.ResponseWriter, statusCode int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"message":    message,
		"statusCode": statusCode,
	})
}
