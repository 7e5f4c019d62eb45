package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jhoicas/nfse-nacional/internal/domain"
	"github.com/jhoicas/nfse-nacional/internal/domain/entity"
	"github.com/jhoicas/nfse-nacional/internal/domain/repository"
)

var _ repository.NotaFiscalRepository = (*NotaFiscalRepo)(nil)

// NotaFiscalRepo implementação de NotaFiscalRepository (usável com pool ou tx).
type NotaFiscalRepo struct {
	q Querier
}

// NewNotaFiscalRepository constrói o adaptador. Passar pool ou tx (Querier).
func NewNotaFiscalRepository(q Querier) *NotaFiscalRepo {
	return &NotaFiscalRepo{q: q}
}

const notaFiscalColumns = `
	id, company_id, id_dps, serie, numero_dps, competencia, data_emissao,
	cnpj_prestador, documento_tomador, nome_tomador, codigo_servico, descricao, valor,
	status, chave_acesso, numero_nfse, xml_assinado, xml_nfse, codigo_erro, mensagem_erro,
	chave_substituida, protocolo_cancelamento, created_at, updated_at`

// Create persiste a nota. id_dps é único: a mesma DPS não é gravada duas vezes.
func (r *NotaFiscalRepo) Create(ctx context.Context, n *entity.NotaFiscal) error {
	if n.ID == "" {
		n.ID = uuid.New().String()
	}
	now := time.Now()
	if n.CreatedAt.IsZero() {
		n.CreatedAt = now
	}
	n.UpdatedAt = now
	query := `
		INSERT INTO notas_fiscais (` + notaFiscalColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22, $23, $24)`
	_, err := r.q.Exec(ctx, query,
		n.ID, n.CompanyID, n.IDDPS, n.Serie, int64(n.NumeroDPS), n.Competencia, n.DataEmissao,
		n.CNPJPrestador, nullIfEmpty(n.DocumentoTomador), nullIfEmpty(n.NomeTomador), n.CodigoServico, n.Descricao, n.Valor,
		n.Status, nullIfEmpty(n.ChaveAcesso), nullIfEmpty(n.NumeroNFSe), nullIfEmpty(n.XMLAssinado), nullIfEmpty(n.XMLNFSe),
		nullIfEmpty(n.CodigoErro), nullIfEmpty(n.MensagemErro),
		nullIfEmpty(n.ChaveSubstituida), nullIfEmpty(n.ProtocoloCancelamento), n.CreatedAt, n.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: DPS %s já registrada", domain.ErrDuplicate, n.IDDPS)
		}
		return fmt.Errorf("insert nota_fiscal: %w", err)
	}
	return nil
}

// Update grava o resultado das trocas com a SEFIN.
func (r *NotaFiscalRepo) Update(ctx context.Context, n *entity.NotaFiscal) error {
	n.UpdatedAt = time.Now()
	query := `
		UPDATE notas_fiscais
		SET status                 = $2,
		    chave_acesso           = COALESCE($3, chave_acesso),
		    numero_nfse            = COALESCE($4, numero_nfse),
		    xml_assinado           = COALESCE($5, xml_assinado),
		    xml_nfse               = COALESCE($6, xml_nfse),
		    codigo_erro            = $7,
		    mensagem_erro          = $8,
		    protocolo_cancelamento = COALESCE($9, protocolo_cancelamento),
		    updated_at             = $10
		WHERE id = $1`
	tag, err := r.q.Exec(ctx, query,
		n.ID, n.Status,
		nullIfEmpty(n.ChaveAcesso), nullIfEmpty(n.NumeroNFSe),
		nullIfEmpty(n.XMLAssinado), nullIfEmpty(n.XMLNFSe),
		nullIfEmpty(n.CodigoErro), nullIfEmpty(n.MensagemErro),
		nullIfEmpty(n.ProtocoloCancelamento), n.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update nota_fiscal: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update nota_fiscal %s: %w", n.ID, domain.ErrNotFound)
	}
	return nil
}

// GetByID obtém uma nota pelo ID interno.
func (r *NotaFiscalRepo) GetByID(ctx context.Context, id string) (*entity.NotaFiscal, error) {
	query := `SELECT ` + notaFiscalColumns + ` FROM notas_fiscais WHERE id = $1`
	n, err := scanNotaFiscal(r.q.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get nota_fiscal: %w", err)
	}
	return n, nil
}

// GetByChave obtém a nota da empresa pela chave de acesso.
func (r *NotaFiscalRepo) GetByChave(ctx context.Context, companyID, chave string) (*entity.NotaFiscal, error) {
	query := `SELECT ` + notaFiscalColumns + ` FROM notas_fiscais WHERE company_id = $1 AND chave_acesso = $2`
	n, err := scanNotaFiscal(r.q.QueryRow(ctx, query, companyID, chave))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get nota_fiscal por chave: %w", err)
	}
	return n, nil
}

// ListByCompany lista as notas da empresa, mais recentes primeiro.
func (r *NotaFiscalRepo) ListByCompany(ctx context.Context, companyID string, limit, offset int) ([]*entity.NotaFiscal, error) {
	query := `SELECT ` + notaFiscalColumns + `
		FROM notas_fiscais
		WHERE company_id = $1
		ORDER BY data_emissao DESC, numero_dps DESC
		LIMIT $2 OFFSET $3`
	rows, err := r.q.Query(ctx, query, companyID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list notas_fiscais: %w", err)
	}
	defer rows.Close()
	var list []*entity.NotaFiscal
	for rows.Next() {
		n, err := scanNotaFiscal(rows)
		if err != nil {
			return nil, fmt.Errorf("scan nota_fiscal: %w", err)
		}
		list = append(list, n)
	}
	return list, rows.Err()
}

// ── helpers ───────────────────────────────────────────────────────────────────

// pgxScanner abstrai pgx.Row e pgx.Rows para reutilizar scanNotaFiscal.
type pgxScanner interface {
	Scan(dest ...any) error
}

func scanNotaFiscal(row pgxScanner) (*entity.NotaFiscal, error) {
	var n entity.NotaFiscal
	var numero int64
	var docTomador, nomeTomador, chave, numeroNFSe, xmlAssinado, xmlNFSe *string
	var codErro, msgErro, chaveSubst, protocolo *string
	err := row.Scan(
		&n.ID, &n.CompanyID, &n.IDDPS, &n.Serie, &numero, &n.Competencia, &n.DataEmissao,
		&n.CNPJPrestador, &docTomador, &nomeTomador, &n.CodigoServico, &n.Descricao, &n.Valor,
		&n.Status, &chave, &numeroNFSe, &xmlAssinado, &xmlNFSe, &codErro, &msgErro,
		&chaveSubst, &protocolo, &n.CreatedAt, &n.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	n.NumeroDPS = uint64(numero)
	n.DocumentoTomador = derefStr(docTomador)
	n.NomeTomador = derefStr(nomeTomador)
	n.ChaveAcesso = derefStr(chave)
	n.NumeroNFSe = derefStr(numeroNFSe)
	n.XMLAssinado = derefStr(xmlAssinado)
	n.XMLNFSe = derefStr(xmlNFSe)
	n.CodigoErro = derefStr(codErro)
	n.MensagemErro = derefStr(msgErro)
	n.ChaveSubstituida = derefStr(chaveSubst)
	n.ProtocoloCancelamento = derefStr(protocolo)
	return &n, nil
}
