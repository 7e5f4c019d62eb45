package http

import (
	"context"

	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/nfse-nacional/internal/application/dto"
	"github.com/jhoicas/nfse-nacional/internal/domain/nfse"
)

// nfseService é o que o handler usa do emission.UseCase.
type nfseService interface {
	Emitir(ctx context.Context, companyID string, in dto.EmitirNFSeRequest) (*dto.NFSeResponse, error)
	Reenviar(ctx context.Context, companyID, notaID string) (*dto.NFSeResponse, error)
	Listar(ctx context.Context, companyID string, page dto.PageRequest) (*dto.NFSeListResponse, error)
	Consultar(ctx context.Context, companyID, chave string) (*nfse.ConsultaNFSe, error)
	Cancelar(ctx context.Context, companyID, chave, motivo string) (*dto.CancelamentoResponse, error)
	Substituir(ctx context.Context, companyID, chave string, in dto.SubstituirNFSeRequest) (*dto.SubstituicaoResponse, error)
	DANFSe(ctx context.Context, companyID, chave string) ([]byte, string, error)
}

// NFSeHandler expõe emissão, consulta e eventos da NFS-e (protegido).
type NFSeHandler struct {
	svc nfseService
}

// NewNFSeHandler constrói o handler.
func NewNFSeHandler(svc nfseService) *NFSeHandler {
	return &NFSeHandler{svc: svc}
}

// Emitir reserva o número da DPS, assina e envia à Sefin.
// POST /api/v1/nfse
//
// 201 nota emitida; 422 rejeição (a nota fica REJEITADA); 502 Sefin fora do ar
// (a nota fica PENDENTE).
func (h *NFSeHandler) Emitir(c *fiber.Ctx) error {
	companyID := GetCompanyID(c)
	if companyID == "" {
		return unauthorized(c)
	}
	var in dto.EmitirNFSeRequest
	if err := c.BodyParser(&in); err != nil {
		return invalidBody(c)
	}
	out, err := h.svc.Emitir(c.Context(), companyID, in)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(out)
}

// Reenviar reenvia a DPS de uma nota PENDENTE com o mesmo Id.
// POST /api/v1/nfse/pendentes/:id/reenvio
func (h *NFSeHandler) Reenviar(c *fiber.Ctx) error {
	companyID := GetCompanyID(c)
	if companyID == "" {
		return unauthorized(c)
	}
	out, err := h.svc.Reenviar(c.Context(), companyID, c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(out)
}

// Listar lista as notas da empresa.
// GET /api/v1/nfse?limit=&offset=
func (h *NFSeHandler) Listar(c *fiber.Ctx) error {
	companyID := GetCompanyID(c)
	if companyID == "" {
		return unauthorized(c)
	}
	var page dto.PageRequest
	if err := c.QueryParser(&page); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: "paginação inválida"})
	}
	out, err := h.svc.Listar(c.Context(), companyID, page)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(out)
}

// Consultar consulta a situação da nota na Sefin.
// GET /api/v1/nfse/:chave
func (h *NFSeHandler) Consultar(c *fiber.Ctx) error {
	companyID := GetCompanyID(c)
	if companyID == "" {
		return unauthorized(c)
	}
	out, err := h.svc.Consultar(c.Context(), companyID, c.Params("chave"))
	if err != nil {
		return respondError(c, err)
	}
	if !out.Situacao.Encontrada() {
		return c.Status(fiber.StatusNotFound).JSON(out)
	}
	return c.JSON(out)
}

// Cancelar registra o evento de cancelamento.
// POST /api/v1/nfse/:chave/cancelamento
func (h *NFSeHandler) Cancelar(c *fiber.Ctx) error {
	companyID := GetCompanyID(c)
	if companyID == "" {
		return unauthorized(c)
	}
	var in dto.CancelarNFSeRequest
	if err := c.BodyParser(&in); err != nil {
		return invalidBody(c)
	}
	out, err := h.svc.Cancelar(c.Context(), companyID, c.Params("chave"), in.Motivo)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(out)
}

// Substituir emite uma nova nota substituindo a informada.
// POST /api/v1/nfse/:chave/substituicao
func (h *NFSeHandler) Substituir(c *fiber.Ctx) error {
	companyID := GetCompanyID(c)
	if companyID == "" {
		return unauthorized(c)
	}
	var in dto.SubstituirNFSeRequest
	if err := c.BodyParser(&in); err != nil {
		return invalidBody(c)
	}
	out, err := h.svc.Substituir(c.Context(), companyID, c.Params("chave"), in)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(out)
}

// DANFSe devolve o PDF da nota.
// GET /api/v1/nfse/:chave/danfse
func (h *NFSeHandler) DANFSe(c *fiber.Ctx) error {
	companyID := GetCompanyID(c)
	if companyID == "" {
		return unauthorized(c)
	}
	pdf, filename, err := h.svc.DANFSe(c.Context(), companyID, c.Params("chave"))
	if err != nil {
		return respondError(c, err)
	}
	c.Set(fiber.HeaderContentType, "application/pdf")
	c.Set(fiber.HeaderContentDisposition, `inline; filename="`+filename+`"`)
	return c.Send(pdf)
}
