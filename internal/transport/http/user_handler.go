package http

import (
	"net/http"

	"hightechcross/internal/app"
	"hightechcross/internal/domain"
)

type UserHandler struct {
	users *app.UserService
}

func NewUserHandler(users *app.UserService) *UserHandler {
	return &UserHandler{users: users}
}

func (h *UserHandler) Create(w http.ResponseWriter, r *http.Request) {
	var in app.UserInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	if err := checkPrivileged(r, in); err != nil {
		writeError(w, r, err)
		return
	}
	u, err := h.users.Create(r.Context(), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, u)
}

func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := domain.UserFilter{
		Username:  q.Get("username"),
		Email:     q.Get("email"),
		FirstName: q.Get("first_name"),
		LastName:  q.Get("last_name"),
	}
	filter.OrderBy, filter.Desc = app.ParseOrdering(q.Get("ordering"))
	users, err := h.users.List(r.Context(), filter)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, users)
}

func (h *UserHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id", domain.ErrUserNotFound)
	if err != nil {
		writeError(w, r, err)
		return
	}
	u, err := h.users.Get(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

// Update serves PUT (full) and PATCH (partial).
func (h *UserHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id", domain.ErrUserNotFound)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var in app.UserInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	if err := checkPrivileged(r, in); err != nil {
		writeError(w, r, err)
		return
	}
	u, err := h.users.Update(r.Context(), id, in, r.Method == http.MethodPatch)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func (h *UserHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id", domain.ErrUserNotFound)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.users.Delete(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// checkPrivileged rejects staff-only fields sent by a non-staff caller.
func checkPrivileged(r *http.Request, in app.UserInput) error {
	if sess, ok := SessionFrom(r.Context()); ok && sess.User.IsStaff {
		return nil
	}
	if in.Privileged() {
		return domain.ErrForbidden
	}
	return nil
}
