package repository

import (
	"context"

	"github.com/jhoicas/nfse-nacional/internal/domain/entity"
)

// NotaFiscalRepository define o porto de persistência das NFS-e emitidas.
type NotaFiscalRepository interface {
	Create(ctx context.Context, nota *entity.NotaFiscal) error
	// Update grava status, chave, número, XMLs e dados de erro.
	Update(ctx context.Context, nota *entity.NotaFiscal) error
	// GetByID e GetByChave devolvem nil, nil quando não há registro.
	GetByID(ctx context.Context, id string) (*entity.NotaFiscal, error)
	GetByChave(ctx context.Context, companyID, chave string) (*entity.NotaFiscal, error)
	ListByCompany(ctx context.Context, companyID string, limit, offset int) ([]*entity.NotaFiscal, error)
}

// DPSSequenceRepository contador de números de DPS por prestador e série.
type DPSSequenceRepository interface {
	// Next reserva o próximo número. Deve ser chamado dentro da transação
	// que persiste a nota, para que um rollback devolva o número.
	Next(ctx context.Context, cnpj, serie string) (uint64, error)
}
