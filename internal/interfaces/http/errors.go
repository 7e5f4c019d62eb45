package http

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/nfse-nacional/internal/application/dto"
	"github.com/jhoicas/nfse-nacional/internal/domain"
	"github.com/jhoicas/nfse-nacional/internal/domain/nfse"
)

// respondError traduz os erros do domínio e da Sefin em dto.ErrorResponse.
// Rejeições da autoridade mantêm o código original (ex: E0014).
func respondError(c *fiber.Ctx, err error) error {
	var (
		verrs  nfse.ValidationErrors
		verr   *nfse.ValidationError
		serr   *nfse.SchemaError
		aerr   *nfse.AuthorityError
		status int
		body   dto.ErrorResponse
	)
	switch {
	case errors.As(err, &verrs):
		status = fiber.StatusBadRequest
		body = dto.ErrorResponse{Code: "VALIDATION", Message: "dados inválidos"}
		for _, e := range verrs {
			body.Details = append(body.Details, dto.ErrorDetail{Field: e.Campo, Message: e.Motivo})
		}
	case errors.As(err, &verr):
		status = fiber.StatusBadRequest
		body = dto.ErrorResponse{
			Code:    "VALIDATION",
			Message: "dados inválidos",
			Details: []dto.ErrorDetail{{Field: verr.Campo, Message: verr.Motivo}},
		}
	case errors.As(err, &serr):
		status = fiber.StatusBadRequest
		body = dto.ErrorResponse{Code: "SCHEMA", Message: serr.Error()}
	case errors.As(err, &aerr):
		status = fiber.StatusUnprocessableEntity
		body = dto.ErrorResponse{Code: aerr.Codigo, Message: aerr.Mensagem}
		for _, d := range aerr.Detalhes {
			body.Details = append(body.Details, dto.ErrorDetail{Field: d.Campo, Code: d.Codigo, Message: d.Mensagem})
		}
	case errors.Is(err, nfse.ErrSignature):
		status = fiber.StatusInternalServerError
		body = dto.ErrorResponse{Code: "SIGNATURE", Message: "falha ao assinar a DPS"}
	case errors.Is(err, nfse.ErrDecode):
		status = fiber.StatusBadGateway
		body = dto.ErrorResponse{Code: "SEFIN_INVALID_RESPONSE", Message: "resposta da Sefin Nacional ilegível"}
	case errors.Is(err, nfse.ErrTransport):
		status = fiber.StatusBadGateway
		body = dto.ErrorResponse{Code: "SEFIN_UNAVAILABLE", Message: "Sefin Nacional indisponível, tente novamente"}
	case errors.Is(err, domain.ErrNotFound):
		status = fiber.StatusNotFound
		body = dto.ErrorResponse{Code: "NOT_FOUND", Message: "nota fiscal não encontrada"}
	case errors.Is(err, domain.ErrConflict), errors.Is(err, domain.ErrDuplicate):
		status = fiber.StatusConflict
		body = dto.ErrorResponse{Code: "CONFLICT", Message: err.Error()}
	case errors.Is(err, domain.ErrInvalidInput):
		status = fiber.StatusBadRequest
		body = dto.ErrorResponse{Code: "VALIDATION", Message: err.Error()}
	case errors.Is(err, domain.ErrUnauthorized):
		status = fiber.StatusUnauthorized
		body = dto.ErrorResponse{Code: "UNAUTHORIZED", Message: "credenciais inválidas"}
	case errors.Is(err, domain.ErrForbidden):
		status = fiber.StatusForbidden
		body = dto.ErrorResponse{Code: "FORBIDDEN", Message: "acesso negado"}
	default:
		status = fiber.StatusInternalServerError
		body = dto.ErrorResponse{Code: "INTERNAL", Message: err.Error()}
	}
	return c.Status(status).JSON(body)
}

func unauthorized(c *fiber.Ctx) error {
	return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Code: "UNAUTHORIZED", Message: "token inválido"})
}

func invalidBody(c *fiber.Ctx) error {
	return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "corpo inválido"})
}
