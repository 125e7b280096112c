package handler

import (
	"encoding/json"
	"net/http"

	"peersync-server/internal/domain"
	"peersync-server/internal/service"
	"peersync-server/pkg/response"

	"github.com/go-playground/validator/v10"
)

type AuthHandler struct {
	authService *service.AuthService
	validator   *validator.Validate
}

func NewAuthHandler(authService *service.AuthService) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		validator:   validator.New(),
	}
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req domain.AdminLoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		response.BadRequest(w, err.Error())
		return
	}

	token, err := h.authService.LoginAdmin(req.Password)
	if err != nil {
		response.Unauthorized(w, "invalid credentials")
		return
	}

	response.Success(w, domain.AdminLoginResponse{Token: token})
}
