package http_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/nfse-nacional/internal/application/dto"
	"github.com/jhoicas/nfse-nacional/internal/domain"
	"github.com/jhoicas/nfse-nacional/internal/domain/nfse"
	apphttp "github.com/jhoicas/nfse-nacional/internal/interfaces/http"
	pkgjwt "github.com/jhoicas/nfse-nacional/pkg/jwt"
)

const chaveTeste = "13026032212345678000195000000000000126010000000001"

// ── Serviços falsos ───────────────────────────────────────────────────────────

type fakeNFSe struct {
	companyID string
	emitido   dto.EmitirNFSeRequest
	page      dto.PageRequest
	motivo    string
	reenviada string
	err       error
	consulta  *nfse.ConsultaNFSe
}

func (f *fakeNFSe) Emitir(_ context.Context, companyID string, in dto.EmitirNFSeRequest) (*dto.NFSeResponse, error) {
	f.companyID, f.emitido = companyID, in
	if f.err != nil {
		return nil, f.err
	}
	return &dto.NFSeResponse{ID: "n1", NumeroDPS: 1, Status: "EMITIDA", ChaveAcesso: chaveTeste}, nil
}

func (f *fakeNFSe) Reenviar(_ context.Context, companyID, notaID string) (*dto.NFSeResponse, error) {
	f.companyID, f.reenviada = companyID, notaID
	if f.err != nil {
		return nil, f.err
	}
	return &dto.NFSeResponse{ID: notaID, NumeroDPS: 1, Status: "EMITIDA", ChaveAcesso: chaveTeste}, nil
}

func (f *fakeNFSe) Listar(_ context.Context, companyID string, page dto.PageRequest) (*dto.NFSeListResponse, error) {
	f.companyID, f.page = companyID, page
	return &dto.NFSeListResponse{Items: []dto.NFSeResponse{}, Page: dto.PageResponse{Limit: page.Limit, Offset: page.Offset}}, f.err
}

func (f *fakeNFSe) Consultar(_ context.Context, companyID, chave string) (*nfse.ConsultaNFSe, error) {
	f.companyID = companyID
	if f.err != nil {
		return nil, f.err
	}
	if f.consulta != nil {
		return f.consulta, nil
	}
	return &nfse.ConsultaNFSe{ChaveAcesso: chave, Situacao: nfse.SituacaoEmitida}, nil
}

func (f *fakeNFSe) Cancelar(_ context.Context, companyID, chave, motivo string) (*dto.CancelamentoResponse, error) {
	f.companyID, f.motivo = companyID, motivo
	if f.err != nil {
		return nil, f.err
	}
	return &dto.CancelamentoResponse{ChaveAcesso: chave, Protocolo: "PROT-1", Status: "CANCELADA"}, nil
}

func (f *fakeNFSe) Substituir(_ context.Context, companyID, chave string, in dto.SubstituirNFSeRequest) (*dto.SubstituicaoResponse, error) {
	f.companyID, f.motivo = companyID, in.Motivo
	if f.err != nil {
		return nil, f.err
	}
	return &dto.SubstituicaoResponse{ChaveOriginal: chave, CodigoMotivo: in.CodigoMotivo}, nil
}

func (f *fakeNFSe) DANFSe(_ context.Context, companyID, chave string) ([]byte, string, error) {
	f.companyID = companyID
	if f.err != nil {
		return nil, "", f.err
	}
	return []byte("%PDF-1.4"), "danfse_" + chave + ".pdf", nil
}

type fakeParametros struct {
	cMun        int
	codigo      string
	competencia string
}

func (f *fakeParametros) ConsultarConvenio(_ context.Context, cMun int) (*nfse.ConvenioMunicipal, error) {
	f.cMun = cMun
	return &nfse.ConvenioMunicipal{CodigoMunicipio: cMun, Aderido: true}, nil
}

func (f *fakeParametros) ConsultarAliquota(_ context.Context, cMun int, codigo, competencia string) (*nfse.AliquotaServico, error) {
	f.cMun, f.codigo, f.competencia = cMun, codigo, competencia
	a := decimal.RequireFromString("2.5")
	return &nfse.AliquotaServico{CodigoMunicipio: cMun, CodigoServico: codigo, Competencia: competencia, Aliquota: &a, Aderido: true}, nil
}

// ── Auxiliares ────────────────────────────────────────────────────────────────

func newRouterApp(svc *fakeNFSe, param *fakeParametros) *fiber.App {
	app := fiber.New()
	apphttp.Router(app, apphttp.RouterDeps{
		NFSe:       svc,
		Parametros: param,
		JWTSecret:  testJWTSecret,
		Service:    "nfse-nacional",
		Gatherer:   prometheus.NewRegistry(),
		Logger:     zerolog.Nop(),
	})
	return app
}

func call(t *testing.T, app *fiber.App, method, path, role, body string) (*http.Response, []byte) {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if role != "" {
		req.Header.Set("Authorization", tokenForRole(t, role))
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	out, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, out
}

func decodeError(t *testing.T, body []byte) dto.ErrorResponse {
	t.Helper()
	var e dto.ErrorResponse
	require.NoError(t, json.Unmarshal(body, &e))
	return e
}

const emitirBody = `{
	"competencia": "2026-01",
	"tomador": {"cpf": "123.456.789-09", "nome": "Maria da Silva"},
	"servico": {"codigo_tributacao_nacional": "04.03.01", "descricao": "Consulta médica", "valor": "500.00"}
}`

// ── Emissão ───────────────────────────────────────────────────────────────────

func TestNFSeHandler_Emitir(t *testing.T) {
	svc := &fakeNFSe{}
	resp, body := call(t, newRouterApp(svc, &fakeParametros{}), http.MethodPost, "/api/v1/nfse", pkgjwt.RoleEmissor, emitirBody)

	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, testCompanyID, svc.companyID)
	assert.Equal(t, "04.03.01", svc.emitido.Servico.CodigoTributacaoNacional)
	assert.True(t, decimal.RequireFromString("500").Equal(svc.emitido.Servico.Valor))
	assert.Equal(t, "123.456.789-09", svc.emitido.Tomador.CPF)

	var out dto.NFSeResponse
	require.NoError(t, json.Unmarshal(body, &out))
	assert.Equal(t, chaveTeste, out.ChaveAcesso)
}

func TestNFSeHandler_Emitir_Erros(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{
			name:       "validação",
			err:        nfse.ValidationErrors{{Campo: "servico.valor", Motivo: "valor não pode ser negativo"}, {Campo: "competencia", Motivo: "formato AAAA-MM"}},
			wantStatus: http.StatusBadRequest,
			wantCode:   "VALIDATION",
		},
		{
			name:       "leiaute",
			err:        &nfse.SchemaError{Elemento: "end", Filho: "cMun"},
			wantStatus: http.StatusBadRequest,
			wantCode:   "SCHEMA",
		},
		{
			name:       "rejeição da Sefin",
			err:        nfse.NewAuthorityError(http.StatusBadRequest, "E0014", "Conjunto de dados inválido", nil),
			wantStatus: http.StatusUnprocessableEntity,
			wantCode:   "E0014",
		},
		{
			name:       "Sefin fora do ar",
			err:        &nfse.TransportError{Op: "POST /nfse", Err: errors.New("i/o timeout")},
			wantStatus: http.StatusBadGateway,
			wantCode:   "SEFIN_UNAVAILABLE",
		},
		{
			name:       "assinatura",
			err:        &nfse.SignatureError{Op: "chave privada", Err: errors.New("rsa: key too short")},
			wantStatus: http.StatusInternalServerError,
			wantCode:   "SIGNATURE",
		},
		{
			name:       "resposta ilegível",
			err:        &nfse.DecodeError{Err: errors.New("gzip: invalid header")},
			wantStatus: http.StatusBadGateway,
			wantCode:   "SEFIN_INVALID_RESPONSE",
		},
		{
			name:       "duplicidade local",
			err:        domain.ErrDuplicate,
			wantStatus: http.StatusConflict,
			wantCode:   "CONFLICT",
		},
		{
			name:       "inesperado",
			err:        errors.New("conexão com o banco perdida"),
			wantStatus: http.StatusInternalServerError,
			wantCode:   "INTERNAL",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &fakeNFSe{err: tt.err}
			resp, body := call(t, newRouterApp(svc, &fakeParametros{}), http.MethodPost, "/api/v1/nfse", pkgjwt.RoleAdmin, emitirBody)

			assert.Equal(t, tt.wantStatus, resp.StatusCode)
			assert.Equal(t, tt.wantCode, decodeError(t, body).Code)
		})
	}
}

func TestNFSeHandler_Emitir_ErroDeAssinaturaNaoExpoeDetalhes(t *testing.T) {
	svc := &fakeNFSe{err: &nfse.SignatureError{Op: "chave privada", Err: errors.New("rsa: key too short")}}
	_, body := call(t, newRouterApp(svc, &fakeParametros{}), http.MethodPost, "/api/v1/nfse", pkgjwt.RoleAdmin, emitirBody)

	e := decodeError(t, body)
	assert.NotContains(t, e.Message, "rsa")
	assert.NotContains(t, e.Message, "chave privada")
}

func TestNFSeHandler_Emitir_DetalhesDeValidacao(t *testing.T) {
	svc := &fakeNFSe{err: nfse.ValidationErrors{{Campo: "servico.valor", Motivo: "valor não pode ser negativo"}}}
	_, body := call(t, newRouterApp(svc, &fakeParametros{}), http.MethodPost, "/api/v1/nfse", pkgjwt.RoleAdmin, emitirBody)

	e := decodeError(t, body)
	require.Len(t, e.Details, 1)
	assert.Equal(t, "servico.valor", e.Details[0].Field)
}

func TestNFSeHandler_Emitir_CorpoInvalido(t *testing.T) {
	svc := &fakeNFSe{}
	resp, body := call(t, newRouterApp(svc, &fakeParametros{}), http.MethodPost, "/api/v1/nfse", pkgjwt.RoleAdmin, `{"servico":`)

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "INVALID_BODY", decodeError(t, body).Code)
	assert.Empty(t, svc.companyID)
}

func TestNFSeHandler_Emitir_PapelConsultaBloqueado(t *testing.T) {
	svc := &fakeNFSe{}
	resp, _ := call(t, newRouterApp(svc, &fakeParametros{}), http.MethodPost, "/api/v1/nfse", pkgjwt.RoleConsulta, emitirBody)

	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Empty(t, svc.companyID)
}

func TestNFSeHandler_SemToken(t *testing.T) {
	resp, _ := call(t, newRouterApp(&fakeNFSe{}, &fakeParametros{}), http.MethodGet, "/api/v1/nfse", "", "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

// ── Consultas ─────────────────────────────────────────────────────────────────

func TestNFSeHandler_Listar(t *testing.T) {
	svc := &fakeNFSe{}
	resp, _ := call(t, newRouterApp(svc, &fakeParametros{}), http.MethodGet, "/api/v1/nfse?limit=5&offset=10", pkgjwt.RoleConsulta, "")

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, dto.PageRequest{Limit: 5, Offset: 10}, svc.page)
}

func TestNFSeHandler_Consultar(t *testing.T) {
	resp, body := call(t, newRouterApp(&fakeNFSe{}, &fakeParametros{}), http.MethodGet, "/api/v1/nfse/"+chaveTeste, pkgjwt.RoleConsulta, "")

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var out nfse.ConsultaNFSe
	require.NoError(t, json.Unmarshal(body, &out))
	assert.Equal(t, nfse.SituacaoEmitida, out.Situacao)
}

func TestNFSeHandler_Consultar_NaoEncontrada(t *testing.T) {
	svc := &fakeNFSe{consulta: &nfse.ConsultaNFSe{ChaveAcesso: chaveTeste, Situacao: nfse.SituacaoNaoEncontrada}}
	resp, _ := call(t, newRouterApp(svc, &fakeParametros{}), http.MethodGet, "/api/v1/nfse/"+chaveTeste, pkgjwt.RoleConsulta, "")

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestNFSeHandler_DANFSe(t *testing.T) {
	resp, body := call(t, newRouterApp(&fakeNFSe{}, &fakeParametros{}), http.MethodGet, "/api/v1/nfse/"+chaveTeste+"/danfse", pkgjwt.RoleConsulta, "")

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/pdf", resp.Header.Get("Content-Type"))
	assert.Contains(t, resp.Header.Get("Content-Disposition"), "danfse_"+chaveTeste+".pdf")
	assert.Equal(t, "%PDF-1.4", string(body))
}

func TestNFSeHandler_DANFSe_NaoEncontrada(t *testing.T) {
	svc := &fakeNFSe{err: domain.ErrNotFound}
	resp, body := call(t, newRouterApp(svc, &fakeParametros{}), http.MethodGet, "/api/v1/nfse/"+chaveTeste+"/danfse", pkgjwt.RoleConsulta, "")

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "NOT_FOUND", decodeError(t, body).Code)
}

const notaPendente = "5f0c2a8e-7d4b-4c1a-9e3f-2b6d8a1c0e47"

func TestNFSeHandler_Reenviar(t *testing.T) {
	svc := &fakeNFSe{}
	resp, body := call(t, newRouterApp(svc, &fakeParametros{}), http.MethodPost, "/api/v1/nfse/pendentes/"+notaPendente+"/reenvio", pkgjwt.RoleEmissor, "")

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, testCompanyID, svc.companyID)
	assert.Equal(t, notaPendente, svc.reenviada)
	var out dto.NFSeResponse
	require.NoError(t, json.Unmarshal(body, &out))
	assert.Equal(t, "EMITIDA", out.Status)
}

func TestNFSeHandler_Reenviar_Erros(t *testing.T) {
	tests := []struct {
		name       string
		role       string
		err        error
		wantStatus int
	}{
		{"consulta não reenvia", pkgjwt.RoleConsulta, nil, http.StatusForbidden},
		{"nota não pendente", pkgjwt.RoleEmissor, fmt.Errorf("%w: nota EMITIDA", domain.ErrConflict), http.StatusConflict},
		{"sefin fora do ar", pkgjwt.RoleEmissor, &nfse.TransportError{Op: "reenviar", Err: errors.New("timeout")}, http.StatusBadGateway},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &fakeNFSe{err: tt.err}
			resp, _ := call(t, newRouterApp(svc, &fakeParametros{}), http.MethodPost, "/api/v1/nfse/pendentes/"+notaPendente+"/reenvio", tt.role, "")
			assert.Equal(t, tt.wantStatus, resp.StatusCode)
		})
	}
}

// ── Eventos ───────────────────────────────────────────────────────────────────

func TestNFSeHandler_Cancelar(t *testing.T) {
	svc := &fakeNFSe{}
	resp, body := call(t, newRouterApp(svc, &fakeParametros{}), http.MethodPost, "/api/v1/nfse/"+chaveTeste+"/cancelamento", pkgjwt.RoleAdmin, `{"motivo":"Erro no valor do serviço"}`)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Erro no valor do serviço", svc.motivo)
	var out dto.CancelamentoResponse
	require.NoError(t, json.Unmarshal(body, &out))
	assert.Equal(t, "PROT-1", out.Protocolo)
}

func TestNFSeHandler_Cancelar_SomenteAdmin(t *testing.T) {
	svc := &fakeNFSe{}
	resp, _ := call(t, newRouterApp(svc, &fakeParametros{}), http.MethodPost, "/api/v1/nfse/"+chaveTeste+"/cancelamento", pkgjwt.RoleEmissor, `{"motivo":"Erro no valor"}`)

	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Empty(t, svc.motivo)
}

func TestNFSeHandler_Cancelar_NotaJaCancelada(t *testing.T) {
	svc := &fakeNFSe{err: domain.ErrConflict}
	resp, _ := call(t, newRouterApp(svc, &fakeParametros{}), http.MethodPost, "/api/v1/nfse/"+chaveTeste+"/cancelamento", pkgjwt.RoleAdmin, `{"motivo":"Erro no valor"}`)

	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestNFSeHandler_Substituir(t *testing.T) {
	svc := &fakeNFSe{}
	body := `{"codigo_motivo":"99","motivo":"Valor do serviço informado incorretamente","dps":` + emitirBody + `}`
	resp, out := call(t, newRouterApp(svc, &fakeParametros{}), http.MethodPost, "/api/v1/nfse/"+chaveTeste+"/substituicao", pkgjwt.RoleAdmin, body)

	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	var res dto.SubstituicaoResponse
	require.NoError(t, json.Unmarshal(out, &res))
	assert.Equal(t, chaveTeste, res.ChaveOriginal)
	assert.Equal(t, "99", res.CodigoMotivo)
}

// ── Parâmetros municipais ─────────────────────────────────────────────────────

func TestParametrosHandler_Convenio(t *testing.T) {
	param := &fakeParametros{}
	resp, _ := call(t, newRouterApp(&fakeNFSe{}, param), http.MethodGet, "/api/v1/municipios/1302603/convenio", pkgjwt.RoleConsulta, "")

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 1302603, param.cMun)
}

func TestParametrosHandler_Convenio_MunicipioInvalido(t *testing.T) {
	resp, body := call(t, newRouterApp(&fakeNFSe{}, &fakeParametros{}), http.MethodGet, "/api/v1/municipios/manaus/convenio", pkgjwt.RoleConsulta, "")

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "VALIDATION", decodeError(t, body).Code)
}

func TestParametrosHandler_Aliquota(t *testing.T) {
	param := &fakeParametros{}
	resp, body := call(t, newRouterApp(&fakeNFSe{}, param), http.MethodGet, "/api/v1/municipios/1302603/servicos/04.03.01/aliquota?competencia=2026-01", pkgjwt.RoleConsulta, "")

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "04.03.01", param.codigo)
	assert.Equal(t, "2026-01", param.competencia)

	var out nfse.AliquotaServico
	require.NoError(t, json.Unmarshal(body, &out))
	require.NotNil(t, out.Aliquota)
	assert.Equal(t, "2.5", out.Aliquota.String())
}

// ── Infra ─────────────────────────────────────────────────────────────────────

func TestRouter_HealthEMetrics(t *testing.T) {
	app := newRouterApp(&fakeNFSe{}, &fakeParametros{})

	resp, body := call(t, app, http.MethodGet, "/health", "", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "nfse-nacional")

	resp, _ = call(t, app, http.MethodGet, "/metrics", "", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("X-Request-Id"))
}
