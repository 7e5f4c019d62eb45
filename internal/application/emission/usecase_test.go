package emission_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/nfse-nacional/internal/application/dto"
	"github.com/jhoicas/nfse-nacional/internal/application/emission"
	apperrors "github.com/jhoicas/nfse-nacional/internal/domain"
	"github.com/jhoicas/nfse-nacional/internal/domain/entity"
	domain "github.com/jhoicas/nfse-nacional/internal/domain/nfse"
	infra "github.com/jhoicas/nfse-nacional/internal/infrastructure/nfse"
	"github.com/jhoicas/nfse-nacional/internal/infrastructure/nfse/signer"
)

const (
	empresaTeste = "00000000-0000-0000-0000-0000000000aa"
	chaveNova50  = "13026032212345678000195000000000000126010000000002"
	cnpjTeste    = "12345678000195"
)

type ucFixture struct {
	uc     *emission.UseCase
	sefin  *fakeChannel
	param  *fakeChannel
	notas  *memNotas
	seq    *memSeq
	danfse *fakeDANFSe
}

func newUseCase(t *testing.T) *ucFixture {
	t.Helper()
	f := &ucFixture{
		sefin:  &fakeChannel{},
		param:  &fakeChannel{},
		notas:  newMemNotas(),
		seq:    newMemSeq(),
		danfse: &fakeDANFSe{},
	}
	uc, err := emission.NewUseCase(
		newProtocol(t, f.sefin, f.param, nil),
		&memTx{seq: f.seq, notas: f.notas},
		f.notas,
		f.danfse,
		emission.Config{Serie: "1", Prestador: buildParams(t).Prestador},
		zerolog.Nop(),
	)
	require.NoError(t, err)
	f.uc = uc
	return f
}

// emitida grava uma nota já autorizada para os testes de eventos.
func (f *ucFixture) emitida(t *testing.T, chave string) {
	t.Helper()
	require.NoError(t, f.notas.Create(context.Background(), &entity.NotaFiscal{
		CompanyID:     empresaTeste,
		IDDPS:         "DPS130260321234567800019500001000000000000099",
		Serie:         "1",
		NumeroDPS:     99,
		Competencia:   "2026-01",
		DataEmissao:   time.Date(2026, 1, 10, 9, 0, 0, 0, time.UTC),
		CNPJPrestador: cnpjTeste,
		CodigoServico: "04.03.01",
		Descricao:     "Consulta médica",
		Valor:         decimal.RequireFromString("500.00"),
		Status:        entity.NFSeStatusEmitida,
		ChaveAcesso:   chave,
		NumeroNFSe:    "99",
	}))
}

func emitirRequest() dto.EmitirNFSeRequest {
	emissao := time.Date(2026, 1, 15, 10, 30, 0, 0, time.FixedZone("", -3*3600))
	return dto.EmitirNFSeRequest{
		Competencia: "2026-01",
		DataEmissao: &emissao,
		Tomador:     dto.TomadorRequest{CPF: "123.456.789-09", Nome: "Maria da Silva"},
		Servico: dto.ServicoRequest{
			CodigoTributacaoNacional: "04.03.01",
			Descricao:                "Consulta médica",
			Valor:                    decimal.RequireFromString("500.00"),
		},
	}
}

func emitidaResponde(chave, numero string) func(call) (*infra.ChannelResponse, error) {
	return responde(http.StatusCreated, `{"chaveAcesso":"`+chave+`","nNFSe":"`+numero+`"}`)
}

func TestUseCase_Emitir_Sucesso(t *testing.T) {
	f := newUseCase(t)
	f.sefin.respond = emitidaResponde(chaveTeste50, "1")

	out, err := f.uc.Emitir(context.Background(), empresaTeste, emitirRequest())
	require.NoError(t, err)
	assert.Equal(t, entity.NFSeStatusEmitida, out.Status)
	assert.Equal(t, chaveTeste50, out.ChaveAcesso)
	assert.Equal(t, uint64(1), out.NumeroDPS)
	assert.True(t, strings.HasSuffix(out.IDDPS, "000000000000001"))

	notas := f.notas.todas()
	require.Len(t, notas, 1)
	assert.Equal(t, empresaTeste, notas[0].CompanyID)
	assert.Equal(t, "12345678909", notas[0].DocumentoTomador)
	_, err = signer.Verify([]byte(notas[0].XMLAssinado))
	assert.NoError(t, err, "XML assinado persistido deve ser verificável")
}

func TestUseCase_Emitir_NumerosSequenciais(t *testing.T) {
	f := newUseCase(t)
	f.sefin.respond = emitidaResponde(chaveTeste50, "1")

	primeira, err := f.uc.Emitir(context.Background(), empresaTeste, emitirRequest())
	require.NoError(t, err)
	segunda, err := f.uc.Emitir(context.Background(), empresaTeste, emitirRequest())
	require.NoError(t, err)

	assert.Equal(t, uint64(1), primeira.NumeroDPS)
	assert.Equal(t, uint64(2), segunda.NumeroDPS)
	assert.NotEqual(t, primeira.IDDPS, segunda.IDDPS)
}

func TestUseCase_Emitir_Rejeicao(t *testing.T) {
	f := newUseCase(t)
	f.sefin.respond = responde(http.StatusBadRequest, `{"codigo":"E0014","mensagem":"Conjunto de dados inválido"}`)

	out, err := f.uc.Emitir(context.Background(), empresaTeste, emitirRequest())
	var ae *domain.AuthorityError
	require.True(t, errors.As(err, &ae))
	assert.Equal(t, "E0014", ae.Codigo)

	require.NotNil(t, out)
	assert.Equal(t, entity.NFSeStatusRejeitada, out.Status)
	assert.Equal(t, "E0014", out.CodigoErro)
	assert.Equal(t, entity.NFSeStatusRejeitada, f.notas.todas()[0].Status)
}

func TestUseCase_Emitir_FalhaDeTransporteMantemPendente(t *testing.T) {
	f := newUseCase(t)
	f.sefin.respond = func(call) (*infra.ChannelResponse, error) {
		return nil, errors.New("i/o timeout")
	}

	out, err := f.uc.Emitir(context.Background(), empresaTeste, emitirRequest())
	assert.True(t, domain.IsRetryable(err))
	assert.Equal(t, entity.NFSeStatusPendente, out.Status)
	assert.NotEmpty(t, f.notas.todas()[0].MensagemErro)
}

// dpsEnviada decodifica o XML assinado enviado numa chamada à Sefin.
func dpsEnviada(t *testing.T, c call) string {
	t.Helper()
	var body infra.SubmitRequest
	require.NoError(t, json.Unmarshal(c.Body, &body))
	enviado, err := infra.DecodeEnvelope(body.DPS)
	require.NoError(t, err)
	return string(enviado)
}

func TestUseCase_Emitir_EnviaXMLPersistido(t *testing.T) {
	f := newUseCase(t)
	f.sefin.respond = emitidaResponde(chaveTeste50, "1")

	_, err := f.uc.Emitir(context.Background(), empresaTeste, emitirRequest())
	require.NoError(t, err)

	calls := f.sefin.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, f.notas.todas()[0].XMLAssinado, dpsEnviada(t, calls[0]), "a DPS é assinada uma única vez")
}

func TestUseCase_Reenviar_AposFalhaDeTransporte(t *testing.T) {
	f := newUseCase(t)
	f.sefin.respond = func(call) (*infra.ChannelResponse, error) {
		return nil, errors.New("connection reset by peer")
	}
	pendente, err := f.uc.Emitir(context.Background(), empresaTeste, emitirRequest())
	require.True(t, domain.IsRetryable(err))
	require.Equal(t, entity.NFSeStatusPendente, pendente.Status)

	f.sefin.respond = emitidaResponde(chaveTeste50, "7")
	out, err := f.uc.Reenviar(context.Background(), empresaTeste, pendente.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.NFSeStatusEmitida, out.Status)
	assert.Equal(t, pendente.IDDPS, out.IDDPS)
	assert.Equal(t, pendente.NumeroDPS, out.NumeroDPS)
	assert.Equal(t, chaveTeste50, out.ChaveAcesso)
	assert.Empty(t, out.MensagemErro)

	calls := f.sefin.Calls()
	require.Len(t, calls, 2)
	primeira, segunda := dpsEnviada(t, calls[0]), dpsEnviada(t, calls[1])
	assert.Contains(t, segunda, `Id="`+pendente.IDDPS+`"`)
	assert.Equal(t, primeira, segunda, "reenvio sem reassinar")

	assert.Equal(t, uint64(1), f.seq.atual(cnpjTeste, "1"), "nenhum número novo reservado")
	notas := f.notas.todas()
	require.Len(t, notas, 1)
	assert.Equal(t, entity.NFSeStatusEmitida, notas[0].Status)
}

func TestUseCase_Reenviar_Erros(t *testing.T) {
	f := newUseCase(t)
	f.emitida(t, chaveTeste50)
	emitida, _ := f.notas.GetByChave(context.Background(), empresaTeste, chaveTeste50)

	tests := []struct {
		name    string
		empresa string
		id      string
		want    error
	}{
		{"id inválido", empresaTeste, "abc", apperrors.ErrInvalidInput},
		{"nota inexistente", empresaTeste, "00000000-0000-0000-0000-0000000000ff", apperrors.ErrNotFound},
		{"nota de outra empresa", "00000000-0000-0000-0000-0000000000bb", emitida.ID, apperrors.ErrNotFound},
		{"nota já emitida", empresaTeste, emitida.ID, apperrors.ErrConflict},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.uc.Reenviar(context.Background(), tt.empresa, tt.id)
			assert.ErrorIs(t, err, tt.want)
		})
	}
	assert.Empty(t, f.sefin.Calls())
}

func TestUseCase_Reenviar_SubstituicaoMarcaOriginal(t *testing.T) {
	f := newUseCase(t)
	f.emitida(t, chaveTeste50)
	f.sefin.respond = func(call) (*infra.ChannelResponse, error) {
		return nil, errors.New("i/o timeout")
	}
	res, err := f.uc.Substituir(context.Background(), empresaTeste, chaveTeste50, dto.SubstituirNFSeRequest{
		CodigoMotivo: "99",
		Motivo:       "Valor do serviço informado incorretamente",
		DPS:          emitirRequest(),
	})
	require.True(t, domain.IsRetryable(err))
	require.Equal(t, entity.NFSeStatusPendente, res.Nova.Status)
	original, _ := f.notas.GetByChave(context.Background(), empresaTeste, chaveTeste50)
	require.Equal(t, entity.NFSeStatusEmitida, original.Status)

	f.sefin.respond = emitidaResponde(chaveNova50, "100")
	out, err := f.uc.Reenviar(context.Background(), empresaTeste, res.Nova.ID)
	require.NoError(t, err)
	assert.Equal(t, chaveNova50, out.ChaveAcesso)

	original, _ = f.notas.GetByChave(context.Background(), empresaTeste, chaveTeste50)
	assert.Equal(t, entity.NFSeStatusSubstituida, original.Status)
}

func TestUseCase_Emitir_FalhaAoGravarResultado(t *testing.T) {
	f := newUseCase(t)
	f.sefin.respond = emitidaResponde(chaveTeste50, "1")
	f.notas.falhaUpdate = errors.New("conexão perdida")

	_, err := f.uc.Emitir(context.Background(), empresaTeste, emitirRequest())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "conexão perdida")
}

func TestUseCase_Emitir_ValidacaoDesfazReserva(t *testing.T) {
	f := newUseCase(t)
	in := emitirRequest()
	in.Servico.Valor = decimal.RequireFromString("-1")

	_, err := f.uc.Emitir(context.Background(), empresaTeste, in)
	assert.ErrorIs(t, err, domain.ErrValidation)
	assert.Empty(t, f.sefin.Calls())
	assert.Empty(t, f.notas.todas())
	assert.Zero(t, f.seq.atual(cnpjTeste, "1"), "número devolvido ao contador")

	f.sefin.respond = emitidaResponde(chaveTeste50, "1")
	out, err := f.uc.Emitir(context.Background(), empresaTeste, emitirRequest())
	require.NoError(t, err)
	assert.Equal(t, uint64(1), out.NumeroDPS)
}

func TestUseCase_Emitir_Tomador(t *testing.T) {
	tests := []struct {
		name    string
		tomador dto.TomadorRequest
		wantErr bool
	}{
		{"não identificado", dto.TomadorRequest{NaoIdentificado: true}, false},
		{"não identificado com CPF", dto.TomadorRequest{NaoIdentificado: true, CPF: "12345678909"}, true},
		{"sem documento", dto.TomadorRequest{Nome: "Fulano"}, true},
		{"CPF e CNPJ", dto.TomadorRequest{CPF: "12345678909", CNPJ: "11222333000181", Nome: "Fulano"}, true},
		{"CNPJ", dto.TomadorRequest{CNPJ: "11.222.333/0001-81", Nome: "Empresa Tomadora"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newUseCase(t)
			f.sefin.respond = emitidaResponde(chaveTeste50, "1")
			in := emitirRequest()
			in.Tomador = tt.tomador

			_, err := f.uc.Emitir(context.Background(), empresaTeste, in)
			if tt.wantErr {
				assert.ErrorIs(t, err, domain.ErrValidation)
				assert.Empty(t, f.sefin.Calls())
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestUseCase_Emitir_CompetenciaPadrao(t *testing.T) {
	f := newUseCase(t)
	f.sefin.respond = emitidaResponde(chaveTeste50, "1")
	in := emitirRequest()
	in.Competencia = ""

	out, err := f.uc.Emitir(context.Background(), empresaTeste, in)
	require.NoError(t, err)
	assert.Equal(t, "2026-01", out.Competencia)
}

func TestUseCase_Cancelar(t *testing.T) {
	f := newUseCase(t)
	f.emitida(t, chaveTeste50)
	f.sefin.respond = responde(http.StatusOK, `{"protocolo":"PROT-77"}`)

	out, err := f.uc.Cancelar(context.Background(), empresaTeste, chaveTeste50, "Erro no valor do serviço")
	require.NoError(t, err)
	assert.Equal(t, "PROT-77", out.Protocolo)
	assert.Equal(t, entity.NFSeStatusCancelada, out.Status)

	nota, _ := f.notas.GetByChave(context.Background(), empresaTeste, chaveTeste50)
	assert.Equal(t, entity.NFSeStatusCancelada, nota.Status)
	assert.Equal(t, "PROT-77", nota.ProtocoloCancelamento)

	_, err = f.uc.Cancelar(context.Background(), empresaTeste, chaveTeste50, "de novo")
	assert.ErrorIs(t, err, apperrors.ErrConflict)
	assert.Len(t, f.sefin.Calls(), 1)
}

func TestUseCase_Cancelar_NotaDeOutraEmpresa(t *testing.T) {
	f := newUseCase(t)
	f.emitida(t, chaveTeste50)

	_, err := f.uc.Cancelar(context.Background(), "outra-empresa", chaveTeste50, "Erro no valor")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	assert.Empty(t, f.sefin.Calls())
}

func TestUseCase_Cancelar_Rejeitado(t *testing.T) {
	f := newUseCase(t)
	f.emitida(t, chaveTeste50)
	f.sefin.respond = responde(422, `{"codigo":"E0840","mensagem":"Prazo para cancelamento expirado"}`)

	_, err := f.uc.Cancelar(context.Background(), empresaTeste, chaveTeste50, "Erro no valor")
	assert.ErrorIs(t, err, domain.ErrAuthority)

	nota, _ := f.notas.GetByChave(context.Background(), empresaTeste, chaveTeste50)
	assert.Equal(t, entity.NFSeStatusEmitida, nota.Status)
}

func TestUseCase_Substituir(t *testing.T) {
	f := newUseCase(t)
	f.emitida(t, chaveTeste50)
	f.sefin.respond = emitidaResponde(chaveNova50, "100")

	out, err := f.uc.Substituir(context.Background(), empresaTeste, chaveTeste50, dto.SubstituirNFSeRequest{
		CodigoMotivo: "99",
		Motivo:       "Valor do serviço informado incorretamente",
		DPS:          emitirRequest(),
	})
	require.NoError(t, err)
	assert.Equal(t, chaveTeste50, out.ChaveOriginal)
	assert.Equal(t, chaveNova50, out.Nova.ChaveAcesso)
	assert.Equal(t, chaveTeste50, out.Nova.ChaveSubstituida)
	assert.Equal(t, entity.NFSeStatusEmitida, out.Nova.Status)

	original, _ := f.notas.GetByChave(context.Background(), empresaTeste, chaveTeste50)
	assert.Equal(t, entity.NFSeStatusSubstituida, original.Status)

	calls := f.sefin.Calls()
	require.Len(t, calls, 1)
	var body infra.SubmitRequest
	require.NoError(t, json.Unmarshal(calls[0].Body, &body))
	enviado, err := infra.DecodeEnvelope(body.DPS)
	require.NoError(t, err)
	assert.Contains(t, string(enviado), "<chSubstda>"+chaveTeste50+"</chSubstda>")
}

func TestUseCase_Substituir_MotivoCurtoNaoReservaNumero(t *testing.T) {
	f := newUseCase(t)
	f.emitida(t, chaveTeste50)

	_, err := f.uc.Substituir(context.Background(), empresaTeste, chaveTeste50, dto.SubstituirNFSeRequest{
		CodigoMotivo: "99",
		Motivo:       "curto",
		DPS:          emitirRequest(),
	})
	assert.ErrorIs(t, err, domain.ErrValidation)
	assert.Empty(t, f.sefin.Calls())
	assert.Zero(t, f.seq.atual(cnpjTeste, "1"))
}

func TestUseCase_Consultar_SincronizaSituacao(t *testing.T) {
	f := newUseCase(t)
	f.emitida(t, chaveTeste50)
	f.sefin.respond = responde(http.StatusOK, `{"chaveAcesso":"`+chaveTeste50+`","nNFSe":"99","situacao":"cancelada"}`)

	cons, err := f.uc.Consultar(context.Background(), empresaTeste, chaveTeste50)
	require.NoError(t, err)
	assert.Equal(t, domain.SituacaoCancelada, cons.Situacao)

	nota, _ := f.notas.GetByChave(context.Background(), empresaTeste, chaveTeste50)
	assert.Equal(t, entity.NFSeStatusCancelada, nota.Status)
}

func TestUseCase_Consultar_SemNotaLocal(t *testing.T) {
	f := newUseCase(t)
	f.sefin.respond = responde(http.StatusNotFound, "")

	cons, err := f.uc.Consultar(context.Background(), empresaTeste, chaveTeste50)
	require.NoError(t, err)
	assert.False(t, cons.Situacao.Encontrada())
}

func TestUseCase_DANFSe(t *testing.T) {
	tests := []struct {
		name      string
		respond   func(call) (*infra.ChannelResponse, error)
		wantLocal bool
	}{
		{"oficial", func(call) (*infra.ChannelResponse, error) {
			return &infra.ChannelResponse{Status: http.StatusOK, Body: []byte("%PDF-oficial"), ContentType: "application/pdf"}, nil
		}, false},
		{"não encontrada na Sefin", responde(http.StatusNotFound, ""), true},
		{"Sefin fora do ar", func(call) (*infra.ChannelResponse, error) {
			return nil, errors.New("connection refused")
		}, true},
		{"erro da Sefin", responde(http.StatusInternalServerError, `{"codigo":"E9999","mensagem":"erro interno"}`), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newUseCase(t)
			f.emitida(t, chaveTeste50)
			f.sefin.respond = tt.respond

			pdf, filename, err := f.uc.DANFSe(context.Background(), empresaTeste, chaveTeste50)
			require.NoError(t, err)
			assert.Equal(t, "danfse_"+chaveTeste50+".pdf", filename)
			if tt.wantLocal {
				assert.Equal(t, 1, f.danfse.chamadas())
				assert.Equal(t, "%PDF-local "+cnpjTeste, string(pdf))
				return
			}
			assert.Zero(t, f.danfse.chamadas())
			assert.Equal(t, "%PDF-oficial", string(pdf))
		})
	}
}

func TestUseCase_DANFSe_NotaInexistente(t *testing.T) {
	f := newUseCase(t)

	_, _, err := f.uc.DANFSe(context.Background(), empresaTeste, chaveTeste50)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	assert.Empty(t, f.sefin.Calls())
}

func TestUseCase_Listar(t *testing.T) {
	f := newUseCase(t)
	f.sefin.respond = emitidaResponde(chaveTeste50, "1")
	for i := 0; i < 3; i++ {
		_, err := f.uc.Emitir(context.Background(), empresaTeste, emitirRequest())
		require.NoError(t, err)
	}

	out, err := f.uc.Listar(context.Background(), empresaTeste, dto.PageRequest{Limit: 2})
	require.NoError(t, err)
	require.Len(t, out.Items, 2)
	assert.Equal(t, uint64(3), out.Items[0].NumeroDPS)
	assert.Equal(t, 2, out.Page.Limit)

	vazio, err := f.uc.Listar(context.Background(), "outra-empresa", dto.PageRequest{})
	require.NoError(t, err)
	assert.Empty(t, vazio.Items)
	assert.Equal(t, 20, vazio.Page.Limit)
}

func TestUseCase_ConsultarAliquota_CompetenciaCorrente(t *testing.T) {
	f := newUseCase(t)
	f.param.respond = responde(http.StatusOK, `{"aliquota":2.5}`)

	a, err := f.uc.ConsultarAliquota(context.Background(), 1302603, "04.03.01", "")
	require.NoError(t, err)
	assert.True(t, a.Aderido)
	require.Len(t, f.param.Calls(), 1)
	assert.Regexp(t, regexp.MustCompile(`^/parametros_municipais/1302603/040301000/\d{4}-\d{2}/aliquota$`), f.param.Calls()[0].Path)
}

func TestNewUseCase_PrestadorInvalido(t *testing.T) {
	prest := buildParams(t).Prestador
	prest.CNPJ = "12345678000199"

	_, err := emission.NewUseCase(newProtocol(t, &fakeChannel{}, &fakeChannel{}, nil), &memTx{seq: newMemSeq(), notas: newMemNotas()},
		newMemNotas(), &fakeDANFSe{}, emission.Config{Prestador: prest}, zerolog.Nop())
	assert.ErrorIs(t, err, domain.ErrValidation)
}
