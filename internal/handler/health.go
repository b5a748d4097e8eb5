package handler

import (
	"encoding/json"
	"net/http"

	"github.com/rogerbap/gaminglibrary/internal/infra"
)

// HealthHandler returns a health check endpoint backed by the store's ping.
func HealthHandler(store infra.Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		err := infra.HealthCheck(r.Context(), store)
		if err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			json.NewEncoder(w).Encode(map[string]string{
				"status": "unhealthy",
				"error":  err.Error(),
			})
			return
		}
		json.NewEncoder(w).Encode(map[string]string{
			"status": "healthy",
		})
	}
}
