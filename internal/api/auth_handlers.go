package api

import (
	"net/http"

	"github.com/zzy10151020/MBTI-System-sub000/internal/middleware"
	"github.com/zzy10151020/MBTI-System-sub000/internal/services"
)

type registerRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// loginRequest accepts the identifier under any of three names.
type loginRequest struct {
	Identifier string `json:"identifier"`
	Username   string `json:"username"`
	Email      string `json:"email"`
	Password   string `json:"password"`
}

func (h *handlers) register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decode(r, &req); err != nil {
		fail(w, r, err)
		return
	}
	res, err := h.Auth.Register(r.Context(), req.Username, req.Email, req.Password)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeCreated(w, r, "auth.registered", res)
}

func (h *handlers) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decode(r, &req); err != nil {
		fail(w, r, err)
		return
	}
	id := req.Identifier
	for _, alt := range []string{req.Username, req.Email} {
		if id == "" {
			id = alt
		}
	}
	if id == "" {
		fail(w, r, services.NewInvalidError("username or email required"))
		return
	}
	res, err := h.Auth.Login(r.Context(), id, req.Password)
	if err != nil {
		fail(w, r, err)
		return
	}
	middleware.WriteJSON(w, r, http.StatusOK, "auth.logged_in", res)
}

func (h *handlers) me(w http.ResponseWriter, r *http.Request) {
	u, err := h.Auth.Me(r.Context(), actor(r).ID)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeOK(w, r, u)
}
