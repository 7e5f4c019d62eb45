package http

import (
	"context"

	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/nfse-nacional/internal/application/dto"
)

// authService é o que o handler usa do auth.UseCase.
type authService interface {
	Login(ctx context.Context, in dto.LoginRequest) (*dto.LoginResponse, error)
	Registrar(ctx context.Context, companyID string, in dto.RegistrarUsuarioRequest) (*dto.UsuarioResponse, error)
	Listar(ctx context.Context, companyID string) ([]dto.UsuarioResponse, error)
}

// AuthHandler login e cadastro de operadores.
type AuthHandler struct {
	svc authService
}

// NewAuthHandler constrói o handler de auth.
func NewAuthHandler(svc authService) *AuthHandler {
	return &AuthHandler{svc: svc}
}

// Login troca e-mail e senha por um token JWT (rota pública).
// POST /api/v1/auth/login
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var in dto.LoginRequest
	if err := c.BodyParser(&in); err != nil {
		return invalidBody(c)
	}
	out, err := h.svc.Login(c.Context(), in)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(out)
}

// Registrar cadastra um operador na empresa do token (admin).
// POST /api/v1/usuarios
func (h *AuthHandler) Registrar(c *fiber.Ctx) error {
	companyID := GetCompanyID(c)
	if companyID == "" {
		return unauthorized(c)
	}
	var in dto.RegistrarUsuarioRequest
	if err := c.BodyParser(&in); err != nil {
		return invalidBody(c)
	}
	out, err := h.svc.Registrar(c.Context(), companyID, in)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(out)
}

// ListarUsuarios lista os operadores da empresa (admin).
// GET /api/v1/usuarios
func (h *AuthHandler) ListarUsuarios(c *fiber.Ctx) error {
	companyID := GetCompanyID(c)
	if companyID == "" {
		return unauthorized(c)
	}
	out, err := h.svc.Listar(c.Context(), companyID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(out)
}
