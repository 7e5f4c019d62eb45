package repository

import (
	"context"

	"github.com/jhoicas/nfse-nacional/internal/domain/entity"
)

// UsuarioRepository porto de persistência dos usuários da API.
type UsuarioRepository interface {
	// Create devolve domain.ErrDuplicate se o e-mail já existir.
	Create(ctx context.Context, u *entity.Usuario) error
	// GetByEmail e GetByID devolvem nil, nil quando não há registro.
	GetByEmail(ctx context.Context, email string) (*entity.Usuario, error)
	GetByID(ctx context.Context, id string) (*entity.Usuario, error)
	ListByCompany(ctx context.Context, companyID string) ([]*entity.Usuario, error)
}
