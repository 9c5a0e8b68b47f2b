package handler

import "net/http"

// Health is a liveness probe. It does not touch the store.
//
// HTTP: GET /healthz
func Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
