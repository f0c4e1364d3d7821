package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/support-chat/internal/api/dto"
	"github.com/spec-kit/support-chat/internal/service"
	apperrors "github.com/spec-kit/support-chat/pkg/util/errorutil"
)

// AuthHandler exposes admin login.
type AuthHandler struct {
	service *service.AuthService
}

// NewAuthHandler constructs handler.
func NewAuthHandler(authService *service.AuthService) *AuthHandler {
	return &AuthHandler{service: authService}
}

// Login POST /auth/login.
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req dto.AdminLoginRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		return apperrors.NewValidationError("email and password required", nil)
	}
	res, err := h.service.LoginAdmin(c.UserContext(), req.Email, req.Password)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(fiber.Map{"data": dto.AuthResponse{
		Token:     res.Token,
		ExpiresAt: res.ExpiresAt,
		SubjectID: res.SubjectID,
		Email:     res.Email,
	}})
}
