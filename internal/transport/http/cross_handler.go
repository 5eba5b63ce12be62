package http

import (
	"net/http"

	"hightechcross/internal/app"
	"hightechcross/internal/domain"
)

// CrossHandler serves the admin side of a cross.
type CrossHandler struct {
	crosses *app.CrossService
}

func NewCrossHandler(crosses *app.CrossService) *CrossHandler {
	return &CrossHandler{crosses: crosses}
}

func (h *CrossHandler) Create(w http.ResponseWriter, r *http.Request) {
	var in app.CrossInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	cross, err := h.crosses.Create(r.Context(), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, cross)
}

func (h *CrossHandler) List(w http.ResponseWriter, r *http.Request) {
	crosses, err := h.crosses.List(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, crosses)
}

func (h *CrossHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id", domain.ErrCrossNotFound)
	if err != nil {
		writeError(w, r, err)
		return
	}
	cross, err := h.crosses.Get(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cross)
}

func (h *CrossHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id", domain.ErrCrossNotFound)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.crosses.Delete(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *CrossHandler) Start(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id", domain.ErrCrossNotFound)
	if err != nil {
		writeError(w, r, err)
		return
	}
	cross, err := h.crosses.Start(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cross)
}

func (h *CrossHandler) Results(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id", domain.ErrCrossNotFound)
	if err != nil {
		writeError(w, r, err)
		return
	}
	_, results, err := h.crosses.Results(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, results)
}
