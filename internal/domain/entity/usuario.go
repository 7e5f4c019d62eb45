package entity

import "time"

// Situações de um Usuario.
const (
	UsuarioAtivo   = "ativo"
	UsuarioInativo = "inativo"
)

// Usuario operador da API, vinculado a uma empresa (prestador).
type Usuario struct {
	ID        string
	CompanyID string
	Email     string
	SenhaHash string // bcrypt
	Nome      string
	Papel     string // admin, emissor, consulta
	Status    string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Ativo indica se o usuário pode autenticar.
func (u *Usuario) Ativo() bool { return u.Status == UsuarioAtivo }
