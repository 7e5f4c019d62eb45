package postgres

import (
	"context"
	"fmt"

	"github.com/jhoicas/nfse-nacional/internal/domain/entity"
	"github.com/jhoicas/nfse-nacional/internal/domain/repository"
)

var _ repository.ResumoRepository = (*ResumoRepo)(nil)

// ResumoRepo agregações de leitura sobre notas_fiscais.
type ResumoRepo struct {
	q Querier
}

// NewResumoRepository constrói o adaptador.
func NewResumoRepository(q Querier) *ResumoRepo {
	return &ResumoRepo{q: q}
}

// PorStatus soma quantidade e valor das notas da competência por status.
func (r *ResumoRepo) PorStatus(ctx context.Context, companyID, competencia string) ([]repository.ResumoStatus, error) {
	const query = `
	SELECT status, COUNT(*) AS quantidade, COALESCE(SUM(valor), 0) AS valor_total
	FROM notas_fiscais
	WHERE company_id = $1 AND competencia = $2
	GROUP BY status
	ORDER BY status`

	rows, err := r.q.Query(ctx, query, companyID, competencia)
	if err != nil {
		return nil, fmt.Errorf("resumo.PorStatus: %w", err)
	}
	defer rows.Close()

	var out []repository.ResumoStatus
	for rows.Next() {
		var row repository.ResumoStatus
		if err := rows.Scan(&row.Status, &row.Quantidade, &row.ValorTotal); err != nil {
			return nil, fmt.Errorf("resumo.PorStatus scan: %w", err)
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// TopTomadores agrupa as notas emitidas por documento do tomador.
func (r *ResumoRepo) TopTomadores(ctx context.Context, companyID, competencia string, limit int) ([]repository.ResumoTomador, error) {
	const query = `
	SELECT
	    COALESCE(documento_tomador, '')  AS documento,
	    COALESCE(MAX(nome_tomador), '')  AS nome,
	    COUNT(*)                         AS quantidade,
	    SUM(valor)                       AS valor_total
	FROM notas_fiscais
	WHERE company_id = $1 AND competencia = $2 AND status = $3
	GROUP BY documento_tomador
	ORDER BY valor_total DESC
	LIMIT $4`

	rows, err := r.q.Query(ctx, query, companyID, competencia, entity.NFSeStatusEmitida, limit)
	if err != nil {
		return nil, fmt.Errorf("resumo.TopTomadores: %w", err)
	}
	defer rows.Close()

	var out []repository.ResumoTomador
	for rows.Next() {
		var row repository.ResumoTomador
		if err := rows.Scan(&row.Documento, &row.Nome, &row.Quantidade, &row.ValorTotal); err != nil {
			return nil, fmt.Errorf("resumo.TopTomadores scan: %w", err)
		}
		out = append(out, row)
	}
	return out, rows.Err()
}
