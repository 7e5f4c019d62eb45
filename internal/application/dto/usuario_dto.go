package dto

import "time"

// LoginRequest credenciais do operador.
type LoginRequest struct {
	Email string `json:"email"`
	Senha string `json:"senha"`
}

// LoginResponse token JWT e dados do usuário autenticado.
type LoginResponse struct {
	Token    string          `json:"token"`
	ExpiraEm time.Time       `json:"expira_em"`
	Usuario  UsuarioResponse `json:"usuario"`
}

// RegistrarUsuarioRequest cadastro de operador pelo admin da empresa.
// A senha chega em texto e é transformada em hash no caso de uso.
type RegistrarUsuarioRequest struct {
	Email string `json:"email"`
	Senha string `json:"senha"`
	Nome  string `json:"nome"`
	Papel string `json:"papel"` // admin, emissor ou consulta; padrão consulta
}

// UsuarioResponse usuário sem o hash da senha.
type UsuarioResponse struct {
	ID        string    `json:"id"`
	CompanyID string    `json:"company_id"`
	Email     string    `json:"email"`
	Nome      string    `json:"nome"`
	Papel     string    `json:"papel"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}
