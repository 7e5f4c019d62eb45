package repository

import (
	"context"

	"github.com/shopspring/decimal"
)

// ResumoStatus totais de uma competência agrupados por status da nota.
type ResumoStatus struct {
	Status     string
	Quantidade int
	ValorTotal decimal.Decimal
}

// ResumoTomador valor emitido para um tomador na competência.
type ResumoTomador struct {
	Documento  string // CPF/CNPJ; vazio quando o tomador não foi identificado
	Nome       string
	Quantidade int
	ValorTotal decimal.Decimal
}

// ResumoRepository consultas somente leitura sobre as notas emitidas.
type ResumoRepository interface {
	PorStatus(ctx context.Context, companyID, competencia string) ([]ResumoStatus, error)
	// TopTomadores considera apenas notas EMITIDA, em ordem decrescente de valor.
	TopTomadores(ctx context.Context, companyID, competencia string, limit int) ([]ResumoTomador, error)
}
