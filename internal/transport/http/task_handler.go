package http

import (
	"net/http"
	"strconv"

	"hightechcross/internal/app"
	"hightechcross/internal/domain"
	"github.com/gorilla/mux"
)

// TaskHandler serves the team side of the running cross. The caller is the team.
type TaskHandler struct {
	hunt *app.HuntService
}

func NewTaskHandler(hunt *app.HuntService) *TaskHandler {
	return &TaskHandler{hunt: hunt}
}

type hintResponse struct {
	Hint string `json:"hint"`
}

func (h *TaskHandler) List(w http.ResponseWriter, r *http.Request) {
	sess, _ := SessionFrom(r.Context())
	tasks, err := h.hunt.Tasks(r.Context(), sess.User.ID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tasks)
}

func (h *TaskHandler) Submit(w http.ResponseWriter, r *http.Request) {
	sess, _ := SessionFrom(r.Context())
	taskID, err := pathID(r, "id", domain.ErrTaskNotFound)
	if err != nil {
		writeError(w, r, err)
		return
	}
	answer, err := h.hunt.Submit(r.Context(), sess.User.ID, taskID, r.URL.Query().Get("answer"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, answer)
}

func (h *TaskHandler) Hint(w http.ResponseWriter, r *http.Request) {
	sess, _ := SessionFrom(r.Context())
	taskID, err := pathID(r, "id", domain.ErrTaskNotFound)
	if err != nil {
		writeError(w, r, err)
		return
	}
	n, err := strconv.Atoi(mux.Vars(r)["hint_number"])
	if err != nil {
		writeError(w, r, domain.ErrInvalidHintNumber)
		return
	}
	hint, err := h.hunt.Hint(r.Context(), sess.User.ID, taskID, n)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, hintResponse{Hint: hint})
}
