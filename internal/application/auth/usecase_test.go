package auth_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/jhoicas/nfse-nacional/internal/application/auth"
	"github.com/jhoicas/nfse-nacional/internal/application/dto"
	"github.com/jhoicas/nfse-nacional/internal/domain"
	"github.com/jhoicas/nfse-nacional/internal/domain/entity"
	"github.com/jhoicas/nfse-nacional/internal/domain/nfse"
	"github.com/jhoicas/nfse-nacional/pkg/jwt"
)

const (
	testSecret  = "segredo-de-teste-com-32-caracteres!"
	testEmpresa = "11111111-2222-3333-4444-555555555555"
)

type fakeUsuarios struct {
	mu    sync.Mutex
	items map[string]*entity.Usuario
	err   error
}

func newFakeUsuarios() *fakeUsuarios {
	return &fakeUsuarios{items: map[string]*entity.Usuario{}}
}

func (f *fakeUsuarios) Create(_ context.Context, u *entity.Usuario) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	if _, ok := f.items[u.Email]; ok {
		return domain.ErrDuplicate
	}
	cp := *u
	f.items[u.Email] = &cp
	return nil
}

func (f *fakeUsuarios) GetByEmail(_ context.Context, email string) (*entity.Usuario, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	u, ok := f.items[strings.ToLower(email)]
	if !ok {
		return nil, nil
	}
	cp := *u
	return &cp, nil
}

func (f *fakeUsuarios) GetByID(_ context.Context, id string) (*entity.Usuario, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.items {
		if u.ID == id {
			cp := *u
			return &cp, nil
		}
	}
	return nil, nil
}

func (f *fakeUsuarios) ListByCompany(_ context.Context, companyID string) ([]*entity.Usuario, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*entity.Usuario
	for _, u := range f.items {
		if u.CompanyID == companyID {
			cp := *u
			out = append(out, &cp)
		}
	}
	return out, nil
}

func newUseCase(repo *fakeUsuarios) *auth.UseCase {
	cfg := auth.JWTConfig{Secret: testSecret, ExpMinutes: 60, Issuer: "nfse-nacional-test"}
	return auth.NewUseCase(repo, cfg, zerolog.Nop(), auth.WithBcryptCost(bcrypt.MinCost))
}

func registrar(t *testing.T, uc *auth.UseCase, email, papel string) *dto.UsuarioResponse {
	t.Helper()
	return registrarComNome(t, uc, email, "Operador", papel)
}

func registrarComNome(t *testing.T, uc *auth.UseCase, email, nome, papel string) *dto.UsuarioResponse {
	t.Helper()
	out, err := uc.Registrar(context.Background(), testEmpresa, dto.RegistrarUsuarioRequest{
		Email: email, Senha: "senha-forte-123", Nome: nome, Papel: papel,
	})
	require.NoError(t, err)
	return out
}

func TestRegistrar_E_Login(t *testing.T) {
	repo := newFakeUsuarios()
	uc := newUseCase(repo)

	u := registrar(t, uc, "Fiscal@Empresa.com.br", jwt.RoleEmissor)
	assert.Equal(t, "fiscal@empresa.com.br", u.Email)
	assert.Equal(t, jwt.RoleEmissor, u.Papel)
	assert.Equal(t, entity.UsuarioAtivo, u.Status)
	assert.NotEqual(t, "senha-forte-123", repo.items["fiscal@empresa.com.br"].SenhaHash)

	out, err := uc.Login(context.Background(), dto.LoginRequest{Email: "fiscal@empresa.com.br", Senha: "senha-forte-123"})
	require.NoError(t, err)
	claims, err := jwt.Parse(testSecret, out.Token)
	require.NoError(t, err)
	assert.Equal(t, u.ID, claims.UserID)
	assert.Equal(t, testEmpresa, claims.CompanyID)
	assert.Equal(t, jwt.RoleEmissor, claims.Role)
	assert.Equal(t, "nfse-nacional-test", claims.Issuer)
	assert.False(t, out.ExpiraEm.IsZero())
}

func TestRegistrar_PapelPadraoConsulta(t *testing.T) {
	uc := newUseCase(newFakeUsuarios())
	u := registrarComNome(t, uc, " Leitura@Empresa.com.br ", "", "")
	assert.Equal(t, jwt.RoleConsulta, u.Papel)
	assert.Equal(t, "leitura@empresa.com.br", u.Nome)
	assert.Equal(t, "leitura@empresa.com.br", u.Email)
}

func TestRegistrar_Validacao(t *testing.T) {
	uc := newUseCase(newFakeUsuarios())
	_, err := uc.Registrar(context.Background(), testEmpresa, dto.RegistrarUsuarioRequest{
		Email: "sem-arroba", Senha: "curta", Papel: "vendedor",
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, nfse.ErrValidation)

	var verrs nfse.ValidationErrors
	require.True(t, errors.As(err, &verrs))
	assert.ElementsMatch(t, []string{"email", "senha", "papel"}, verrs.Campos())
}

func TestRegistrar_EmailDuplicado(t *testing.T) {
	uc := newUseCase(newFakeUsuarios())
	registrar(t, uc, "fiscal@empresa.com.br", jwt.RoleAdmin)

	_, err := uc.Registrar(context.Background(), testEmpresa, dto.RegistrarUsuarioRequest{
		Email: "FISCAL@empresa.com.br", Senha: "outra-senha-123",
	})
	assert.ErrorIs(t, err, domain.ErrDuplicate)
}

func TestRegistrar_EmpresaInvalida(t *testing.T) {
	uc := newUseCase(newFakeUsuarios())
	_, err := uc.Registrar(context.Background(), "nao-e-uuid", dto.RegistrarUsuarioRequest{
		Email: "fiscal@empresa.com.br", Senha: "senha-forte-123",
	})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestLogin_Falhas(t *testing.T) {
	repo := newFakeUsuarios()
	uc := newUseCase(repo)
	registrar(t, uc, "fiscal@empresa.com.br", jwt.RoleEmissor)
	registrar(t, uc, "antigo@empresa.com.br", jwt.RoleEmissor)
	repo.items["antigo@empresa.com.br"].Status = entity.UsuarioInativo

	tests := []struct {
		name string
		in   dto.LoginRequest
		want error
	}{
		{"senha errada", dto.LoginRequest{Email: "fiscal@empresa.com.br", Senha: "errada-123"}, domain.ErrUnauthorized},
		{"email desconhecido", dto.LoginRequest{Email: "ninguem@empresa.com.br", Senha: "senha-forte-123"}, domain.ErrUnauthorized},
		{"usuario inativo", dto.LoginRequest{Email: "antigo@empresa.com.br", Senha: "senha-forte-123"}, domain.ErrForbidden},
		{"campos vazios", dto.LoginRequest{}, nfse.ErrValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := uc.Login(context.Background(), tt.in)
			assert.Nil(t, out)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestLogin_ErroDoRepositorio(t *testing.T) {
	repo := newFakeUsuarios()
	repo.err = errors.New("conexão recusada")
	uc := newUseCase(repo)

	_, err := uc.Login(context.Background(), dto.LoginRequest{Email: "fiscal@empresa.com.br", Senha: "x"})
	require.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrUnauthorized)
}

func TestListar(t *testing.T) {
	uc := newUseCase(newFakeUsuarios())
	registrar(t, uc, "a@empresa.com.br", jwt.RoleAdmin)
	registrar(t, uc, "b@empresa.com.br", jwt.RoleConsulta)

	list, err := uc.Listar(context.Background(), testEmpresa)
	require.NoError(t, err)
	assert.Len(t, list, 2)

	outra, err := uc.Listar(context.Background(), "99999999-2222-3333-4444-555555555555")
	require.NoError(t, err)
	assert.Empty(t, outra)
}
