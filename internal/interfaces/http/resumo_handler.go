package http

import (
	"context"

	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/nfse-nacional/internal/application/dto"
)

type resumoService interface {
	Resumo(ctx context.Context, companyID, competencia string) (*dto.ResumoCompetenciaResponse, error)
}

// ResumoHandler painel mensal da empresa.
type ResumoHandler struct {
	svc resumoService
}

// NewResumoHandler constrói o handler.
func NewResumoHandler(svc resumoService) *ResumoHandler {
	return &ResumoHandler{svc: svc}
}

// Resumo totais por status e maiores tomadores da competência.
// GET /api/v1/nfse/resumo?competencia=AAAA-MM
func (h *ResumoHandler) Resumo(c *fiber.Ctx) error {
	companyID := GetCompanyID(c)
	if companyID == "" {
		return unauthorized(c)
	}
	out, err := h.svc.Resumo(c.Context(), companyID, c.Query("competencia"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(out)
}
