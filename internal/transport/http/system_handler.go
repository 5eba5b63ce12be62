package http

import (
	"net/http"
)

type SystemHandler struct {
	version   string
	buildTime string
}

func (h *SystemHandler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "service": "hightechcross"})
}

func (h *SystemHandler) Version(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"version": h.version, "buildTime": h.buildTime})
}
