package postgres

import (
	"context"
	"fmt"

	"github.com/jhoicas/nfse-nacional/internal/domain/repository"
)

var _ repository.DPSSequenceRepository = (*DPSSequenceRepo)(nil)

// DPSSequenceRepo contador de DPS em dps_sequencias (uma linha por CNPJ e série).
type DPSSequenceRepo struct {
	q Querier
}

// NewDPSSequenceRepository constrói o adaptador. Passar a tx da emissão.
func NewDPSSequenceRepository(q Querier) *DPSSequenceRepo {
	return &DPSSequenceRepo{q: q}
}

// Next incrementa e devolve o contador. A primeira chamada para o par cria a linha com 1.
// O UPDATE bloqueia a linha até o fim da transação, serializando emissões concorrentes.
func (r *DPSSequenceRepo) Next(ctx context.Context, cnpj, serie string) (uint64, error) {
	const q = `
		INSERT INTO dps_sequencias (cnpj, serie, ultimo_numero, updated_at)
		VALUES ($1, $2, 1, now())
		ON CONFLICT (cnpj, serie)
		DO UPDATE SET ultimo_numero = dps_sequencias.ultimo_numero + 1,
		              updated_at    = now()
		RETURNING ultimo_numero`
	var numero int64
	if err := r.q.QueryRow(ctx, q, cnpj, serie).Scan(&numero); err != nil {
		return 0, fmt.Errorf("próximo número DPS (%s/%s): %w", cnpj, serie, err)
	}
	return uint64(numero), nil
}
