package dto

import "github.com/shopspring/decimal"

// ResumoStatusDTO uma linha do resumo por status.
type ResumoStatusDTO struct {
	Status     string          `json:"status"`
	Quantidade int             `json:"quantidade"`
	ValorTotal decimal.Decimal `json:"valor_total"`
}

// ResumoTomadorDTO maiores tomadores da competência.
type ResumoTomadorDTO struct {
	Documento  string          `json:"documento,omitempty"`
	Nome       string          `json:"nome,omitempty"`
	Quantidade int             `json:"quantidade"`
	ValorTotal decimal.Decimal `json:"valor_total"`
}

// ResumoCompetenciaResponse painel mensal de emissão.
type ResumoCompetenciaResponse struct {
	Competencia  string             `json:"competencia"`
	TotalEmitido decimal.Decimal    `json:"total_emitido"` // soma das notas EMITIDA
	TotalNotas   int                `json:"total_notas"`
	PorStatus    []ResumoStatusDTO  `json:"por_status"`
	TopTomadores []ResumoTomadorDTO `json:"top_tomadores"`
}
