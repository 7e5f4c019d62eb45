package http

import (
	"context"

	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/nfse-nacional/internal/application/dto"
	"github.com/jhoicas/nfse-nacional/internal/domain/nfse"
)

type parametrosService interface {
	ConsultarConvenio(ctx context.Context, codigoMunicipio int) (*nfse.ConvenioMunicipal, error)
	ConsultarAliquota(ctx context.Context, codigoMunicipio int, codigoServico, competencia string) (*nfse.AliquotaServico, error)
}

// ParametrosHandler consulta os parâmetros municipais da Sefin Nacional.
type ParametrosHandler struct {
	svc parametrosService
}

// NewParametrosHandler constrói o handler.
func NewParametrosHandler(svc parametrosService) *ParametrosHandler {
	return &ParametrosHandler{svc: svc}
}

// Convenio informa se o município aderiu ao emissor nacional.
// GET /api/v1/municipios/:cMun/convenio
func (h *ParametrosHandler) Convenio(c *fiber.Ctx) error {
	cMun, err := c.ParamsInt("cMun")
	if err != nil {
		return municipioInvalido(c)
	}
	out, err := h.svc.ConsultarConvenio(c.Context(), cMun)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(out)
}

// Aliquota consulta a alíquota do serviço na competência (padrão: mês corrente).
// GET /api/v1/municipios/:cMun/servicos/:codigo/aliquota?competencia=AAAA-MM
func (h *ParametrosHandler) Aliquota(c *fiber.Ctx) error {
	cMun, err := c.ParamsInt("cMun")
	if err != nil {
		return municipioInvalido(c)
	}
	out, err := h.svc.ConsultarAliquota(c.Context(), cMun, c.Params("codigo"), c.Query("competencia"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(out)
}

func municipioInvalido(c *fiber.Ctx) error {
	return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
		Code:    "VALIDATION",
		Message: "código de município inválido",
		Details: []dto.ErrorDetail{{Field: "cMun", Message: "código IBGE numérico de 7 dígitos"}},
	})
}
