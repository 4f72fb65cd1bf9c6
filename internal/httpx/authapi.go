package httpx

import (
	"encoding/json"
	"net/http"
	"time"
)

type registerRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type userResponse struct {
	ID        int64     `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

// handleRegister implements POST /api/auth/register.
func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}
	u, err := h.Auth.Register(r.Context(), req.Username, req.Email, req.Password)
	if err != nil {
		h.mapAuthError(r.Context(), w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(userResponse{
		ID: u.ID, Username: u.Username, Email: u.Email, CreatedAt: u.CreatedAt,
	})
}

// handleLogin implements POST /api/auth/login.
func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}
	token, u, err := h.Auth.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		h.mapAuthError(r.Context(), w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(struct {
		Token string       `json:"token"`
		User  userResponse `json:"user"`
	}{
		Token: token,
		User:  userResponse{ID: u.ID, Username: u.Username, Email: u.Email, CreatedAt: u.CreatedAt},
	})
}

// decodeJSON reads a small JSON body, reporting 400 on malformed input.
func (h *Handler) decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	body := http.MaxBytesReader(w, r.Body, 64<<10)
	defer body.Close()
	if err := json.NewDecoder(body).Decode(dst); err != nil {
		h.writeError(r.Context(), w, http.StatusBadRequest, "malformed json")
		return false
	}
	return true
}
