package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jhoicas/nfse-nacional/internal/application/emission"
	"github.com/jhoicas/nfse-nacional/internal/domain/repository"
)

var _ emission.TxRunner = (*TxRunner)(nil)

// TxRunner executa callbacks dentro de uma transação PostgreSQL.
type TxRunner struct {
	pool *pgxpool.Pool
}

// NewTxRunner constrói o runner com o pool.
func NewTxRunner(pool *pgxpool.Pool) *TxRunner {
	return &TxRunner{pool: pool}
}

// RunEmissao inicia uma transação, executa fn com os repositórios atados à tx
// e faz Commit ou Rollback.
func (r *TxRunner) RunEmissao(ctx context.Context, fn func(
	seqRepo repository.DPSSequenceRepository,
	notaRepo repository.NotaFiscalRepository,
) error) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(NewDPSSequenceRepository(tx), NewNotaFiscalRepository(tx)); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}
