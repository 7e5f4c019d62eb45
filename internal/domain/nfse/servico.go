package nfse

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Servico serviço prestado. Valores monetários sempre em decimal de ponto fixo.
type Servico struct {
	// CodigoTributacaoNacional item/subitem da lista nacional ("04.03.01" ou "040301").
	CodigoTributacaoNacional  string           `json:"codigo_tributacao_nacional" validate:"ctribnac"`
	CodigoTributacaoMunicipal string           `json:"codigo_tributacao_municipal,omitempty" validate:"omitempty,max=20"`
	CodigoNBS                 string           `json:"codigo_nbs,omitempty" validate:"omitempty,numeric,len=9"`
	CodigoCNAE                string           `json:"codigo_cnae,omitempty" validate:"omitempty,numeric,max=9"`
	Descricao                 string           `json:"descricao" validate:"required,max=2000"`
	Valor                     decimal.Decimal  `json:"valor"`
	ISSRetido                 bool             `json:"iss_retido"`
	AliquotaISS               *decimal.Decimal `json:"aliquota_iss,omitempty"`
	AliquotaSimples           *decimal.Decimal `json:"aliquota_simples,omitempty"`
}

// NewServico valida o serviço: código com subitem, descrição de 1 a 2000
// caracteres, valor não negativo com no máximo 2 casas decimais.
func NewServico(s Servico) (*Servico, error) {
	s.CodigoTributacaoNacional = strings.TrimSpace(s.CodigoTributacaoNacional)
	s.Descricao = strings.TrimSpace(s.Descricao)

	errs := validateStruct("servico", s)
	if s.Valor.IsNegative() {
		errs = append(errs, newValidationError("servico.valor", "valor não pode ser negativo"))
	} else if !s.Valor.Equal(s.Valor.Round(2)) {
		errs = append(errs, newValidationError("servico.valor", "valor deve ter no máximo 2 casas decimais"))
	}
	aliquotas := []struct {
		campo string
		valor *decimal.Decimal
	}{
		{"servico.aliquota_iss", s.AliquotaISS},
		{"servico.aliquota_simples", s.AliquotaSimples},
	}
	for _, a := range aliquotas {
		if a.valor != nil && (a.valor.IsNegative() || a.valor.GreaterThan(decimal.NewFromInt(100))) {
			errs = append(errs, newValidationError(a.campo, "percentual fora do intervalo 0-100"))
		}
	}
	if len(errs) > 0 {
		return nil, errs
	}
	return &s, nil
}

// CodigoTributacaoSemPontos devolve o código com 6 dígitos, sem pontuação.
func (s *Servico) CodigoTributacaoSemPontos() string {
	c := strings.ReplaceAll(s.CodigoTributacaoNacional, ".", "")
	for len(c) < 6 {
		c = "0" + c
	}
	return c
}
