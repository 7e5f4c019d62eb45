package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jhoicas/nfse-nacional/internal/domain"
	"github.com/jhoicas/nfse-nacional/internal/domain/entity"
	"github.com/jhoicas/nfse-nacional/internal/domain/repository"
)

var _ repository.UsuarioRepository = (*UsuarioRepo)(nil)

// UsuarioRepo implementação de UsuarioRepository sobre PostgreSQL.
type UsuarioRepo struct {
	q Querier
}

// NewUsuarioRepository constrói o adaptador de persistência de usuários.
func NewUsuarioRepository(q Querier) *UsuarioRepo {
	return &UsuarioRepo{q: q}
}

const usuarioColumns = `id, company_id, email, senha_hash, nome, papel, status, created_at, updated_at`

// Create persiste um novo usuário. O e-mail é gravado em minúsculas.
func (r *UsuarioRepo) Create(ctx context.Context, u *entity.Usuario) error {
	if u.ID == "" {
		u.ID = uuid.New().String()
	}
	now := time.Now()
	if u.CreatedAt.IsZero() {
		u.CreatedAt = now
	}
	u.UpdatedAt = now
	u.Email = strings.ToLower(u.Email)
	query := `INSERT INTO usuarios (` + usuarioColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	_, err := r.q.Exec(ctx, query,
		u.ID, u.CompanyID, u.Email, u.SenhaHash, u.Nome, u.Papel, u.Status, u.CreatedAt, u.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: e-mail %s já cadastrado", domain.ErrDuplicate, u.Email)
		}
		return fmt.Errorf("insert usuario: %w", err)
	}
	return nil
}

// GetByEmail busca pelo e-mail, sem diferenciar maiúsculas.
func (r *UsuarioRepo) GetByEmail(ctx context.Context, email string) (*entity.Usuario, error) {
	row := r.q.QueryRow(ctx, `SELECT `+usuarioColumns+` FROM usuarios WHERE email = $1`, strings.ToLower(email))
	u, err := scanUsuario(row)
	if err != nil {
		return nil, fmt.Errorf("get usuario by email: %w", err)
	}
	return u, nil
}

// GetByID busca pelo id.
func (r *UsuarioRepo) GetByID(ctx context.Context, id string) (*entity.Usuario, error) {
	row := r.q.QueryRow(ctx, `SELECT `+usuarioColumns+` FROM usuarios WHERE id = $1`, id)
	u, err := scanUsuario(row)
	if err != nil {
		return nil, fmt.Errorf("get usuario by id: %w", err)
	}
	return u, nil
}

// ListByCompany lista os usuários da empresa por ordem de cadastro.
func (r *UsuarioRepo) ListByCompany(ctx context.Context, companyID string) ([]*entity.Usuario, error) {
	rows, err := r.q.Query(ctx, `SELECT `+usuarioColumns+` FROM usuarios WHERE company_id = $1 ORDER BY created_at`, companyID)
	if err != nil {
		return nil, fmt.Errorf("list usuarios: %w", err)
	}
	defer rows.Close()
	var list []*entity.Usuario
	for rows.Next() {
		u, err := scanUsuario(rows)
		if err != nil {
			return nil, fmt.Errorf("scan usuario: %w", err)
		}
		list = append(list, u)
	}
	return list, rows.Err()
}

func scanUsuario(row pgxScanner) (*entity.Usuario, error) {
	var u entity.Usuario
	err := row.Scan(&u.ID, &u.CompanyID, &u.Email, &u.SenhaHash, &u.Nome, &u.Papel, &u.Status, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}
