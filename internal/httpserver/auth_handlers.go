package httpserver

import (
	"encoding/json"
	"net/http"

	"github.com/Shiajyas/social-app-sub002/internal/domain"
	"github.com/Shiajyas/social-app-sub002/internal/service"
)

type registerRequest struct {
	Username string  `json:"username"`
	Password string  `json:"password"`
	Avatar   *string `json:"avatar,omitempty"`
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func handleRegister(accounts *service.AccountService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req registerRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, domain.ErrInvalidInput)
			return
		}

		user, err := accounts.Register(r.Context(), service.RegisterInput{
			Username: req.Username,
			Password: req.Password,
			Avatar:   req.Avatar,
		})
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, user)
	}
}

func handleLogin(accounts *service.AccountService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req loginRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, domain.ErrInvalidInput)
			return
		}

		token, err := accounts.Login(r.Context(), service.LoginInput{
			Username: req.Username,
			Password: req.Password,
		})
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, token)
	}
}
