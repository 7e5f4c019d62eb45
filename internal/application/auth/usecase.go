// Package auth autentica os operadores da API e emite os tokens JWT
// consumidos pelo middleware HTTP.
package auth

import (
	"context"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/jhoicas/nfse-nacional/internal/application/dto"
	"github.com/jhoicas/nfse-nacional/internal/domain"
	"github.com/jhoicas/nfse-nacional/internal/domain/entity"
	"github.com/jhoicas/nfse-nacional/internal/domain/nfse"
	"github.com/jhoicas/nfse-nacional/internal/domain/repository"
	"github.com/jhoicas/nfse-nacional/pkg/jwt"
)

const senhaMinima = 8

// JWTConfig configuração dos tokens gerados no login.
type JWTConfig struct {
	Secret     string
	ExpMinutes int
	Issuer     string
}

// UseCase login e cadastro de operadores.
type UseCase struct {
	usuarios repository.UsuarioRepository
	jwtCfg   JWTConfig
	cost     int
	now      func() time.Time
	log      zerolog.Logger
}

// Option ajusta o UseCase (usado pelos testes).
type Option func(*UseCase)

// WithBcryptCost troca o custo do bcrypt.
func WithBcryptCost(cost int) Option { return func(uc *UseCase) { uc.cost = cost } }

// NewUseCase constrói o caso de uso de autenticação.
func NewUseCase(usuarios repository.UsuarioRepository, jwtCfg JWTConfig, logger zerolog.Logger, opts ...Option) *UseCase {
	uc := &UseCase{
		usuarios: usuarios,
		jwtCfg:   jwtCfg,
		cost:     bcrypt.DefaultCost,
		now:      time.Now,
		log:      logger,
	}
	for _, o := range opts {
		o(uc)
	}
	return uc
}

// Login confere e-mail e senha e devolve um token com o papel do usuário.
// E-mail desconhecido e senha errada produzem o mesmo domain.ErrUnauthorized.
func (uc *UseCase) Login(ctx context.Context, in dto.LoginRequest) (*dto.LoginResponse, error) {
	var verrs nfse.ValidationErrors
	if strings.TrimSpace(in.Email) == "" {
		verrs = append(verrs, &nfse.ValidationError{Campo: "email", Motivo: "obrigatório"})
	}
	if in.Senha == "" {
		verrs = append(verrs, &nfse.ValidationError{Campo: "senha", Motivo: "obrigatório"})
	}
	if len(verrs) > 0 {
		return nil, verrs
	}

	u, err := uc.usuarios.GetByEmail(ctx, strings.TrimSpace(in.Email))
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, domain.ErrUnauthorized
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.SenhaHash), []byte(in.Senha)); err != nil {
		uc.log.Warn().Str("usuario_id", u.ID).Msg("auth: senha inválida")
		return nil, domain.ErrUnauthorized
	}
	if !u.Ativo() {
		return nil, fmt.Errorf("%w: usuário inativo", domain.ErrForbidden)
	}

	token, err := jwt.Generate(uc.jwtCfg.Secret, u.ID, u.CompanyID, u.Papel, uc.jwtCfg.Issuer, uc.jwtCfg.ExpMinutes)
	if err != nil {
		return nil, fmt.Errorf("gerar token: %w", err)
	}
	uc.log.Info().Str("usuario_id", u.ID).Str("company_id", u.CompanyID).Str("papel", u.Papel).Msg("auth: login")
	return &dto.LoginResponse{
		Token:    token,
		ExpiraEm: uc.now().Add(time.Duration(uc.jwtCfg.ExpMinutes) * time.Minute),
		Usuario:  toUsuarioResponse(u),
	}, nil
}

// Registrar cadastra um operador na empresa do admin que fez a chamada.
func (uc *UseCase) Registrar(ctx context.Context, companyID string, in dto.RegistrarUsuarioRequest) (*dto.UsuarioResponse, error) {
	if _, err := uuid.Parse(companyID); err != nil {
		return nil, fmt.Errorf("%w: company_id", domain.ErrInvalidInput)
	}
	papel := in.Papel
	if papel == "" {
		papel = jwt.RoleConsulta
	}
	if verrs := validarRegistro(in, papel); len(verrs) > 0 {
		return nil, verrs
	}

	email := strings.ToLower(strings.TrimSpace(in.Email))
	existente, err := uc.usuarios.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if existente != nil {
		return nil, fmt.Errorf("%w: e-mail já cadastrado", domain.ErrDuplicate)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Senha), uc.cost)
	if err != nil {
		return nil, fmt.Errorf("hash da senha: %w", err)
	}
	nome := strings.TrimSpace(in.Nome)
	if nome == "" {
		nome = email
	}
	now := uc.now()
	u := &entity.Usuario{
		ID:        uuid.New().String(),
		CompanyID: companyID,
		Email:     email,
		SenhaHash: string(hash),
		Nome:      nome,
		Papel:     papel,
		Status:    entity.UsuarioAtivo,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := uc.usuarios.Create(ctx, u); err != nil {
		return nil, err
	}
	uc.log.Info().Str("usuario_id", u.ID).Str("company_id", companyID).Str("papel", papel).Msg("auth: usuário cadastrado")
	out := toUsuarioResponse(u)
	return &out, nil
}

// Listar devolve os operadores da empresa.
func (uc *UseCase) Listar(ctx context.Context, companyID string) ([]dto.UsuarioResponse, error) {
	list, err := uc.usuarios.ListByCompany(ctx, companyID)
	if err != nil {
		return nil, err
	}
	out := make([]dto.UsuarioResponse, 0, len(list))
	for _, u := range list {
		out = append(out, toUsuarioResponse(u))
	}
	return out, nil
}

func validarRegistro(in dto.RegistrarUsuarioRequest, papel string) nfse.ValidationErrors {
	var verrs nfse.ValidationErrors
	email := strings.TrimSpace(in.Email)
	if _, err := mail.ParseAddress(email); err != nil || strings.ContainsAny(email, "<> ") {
		verrs = append(verrs, &nfse.ValidationError{Campo: "email", Motivo: "e-mail inválido"})
	}
	if len(in.Senha) < senhaMinima {
		verrs = append(verrs, &nfse.ValidationError{Campo: "senha", Motivo: fmt.Sprintf("mínimo de %d caracteres", senhaMinima)})
	}
	if len(in.Nome) > 200 {
		verrs = append(verrs, &nfse.ValidationError{Campo: "nome", Motivo: "excede 200 caracteres"})
	}
	switch papel {
	case jwt.RoleAdmin, jwt.RoleEmissor, jwt.RoleConsulta:
	default:
		verrs = append(verrs, &nfse.ValidationError{Campo: "papel", Motivo: "papel deve ser admin, emissor ou consulta"})
	}
	return verrs
}

func toUsuarioResponse(u *entity.Usuario) dto.UsuarioResponse {
	return dto.UsuarioResponse{
		ID:        u.ID,
		CompanyID: u.CompanyID,
		Email:     u.Email,
		Nome:      u.Nome,
		Papel:     u.Papel,
		Status:    u.Status,
		CreatedAt: u.CreatedAt,
	}
}
