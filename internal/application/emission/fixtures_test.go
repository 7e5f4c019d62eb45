package emission_test

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/nfse-nacional/internal/application/emission"
	domain "github.com/jhoicas/nfse-nacional/internal/domain/nfse"
	infra "github.com/jhoicas/nfse-nacional/internal/infrastructure/nfse"
	"github.com/jhoicas/nfse-nacional/internal/infrastructure/nfse/signer"
	"github.com/jhoicas/nfse-nacional/pkg/nfse"
)

// ── Canal falso ──────────────────────────────────────────────────────────────

type call struct {
	Method string
	Path   string
	Body   []byte
}

type fakeChannel struct {
	mu      sync.Mutex
	calls   []call
	respond func(c call) (*infra.ChannelResponse, error)
}

func (f *fakeChannel) Send(_ context.Context, method, path string, body []byte) (*infra.ChannelResponse, error) {
	f.mu.Lock()
	c := call{Method: method, Path: path, Body: body}
	f.calls = append(f.calls, c)
	f.mu.Unlock()
	if f.respond == nil {
		return &infra.ChannelResponse{Status: 404}, nil
	}
	return f.respond(c)
}

func (f *fakeChannel) Calls() []call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]call(nil), f.calls...)
}

func responde(status int, body string) func(call) (*infra.ChannelResponse, error) {
	return func(call) (*infra.ChannelResponse, error) {
		return &infra.ChannelResponse{Status: status, Body: []byte(body), ContentType: "application/json"}, nil
	}
}

// ── Chave de teste ───────────────────────────────────────────────────────────

var (
	keyOnce sync.Once
	testKey *signer.RSAKeySigner
)

func chaveTeste(t *testing.T) *signer.RSAKeySigner {
	t.Helper()
	keyOnce.Do(func() {
		priv, err := rsa.GenerateKey(rand.Reader, 2048)
		if err != nil {
			panic(err)
		}
		tmpl := &x509.Certificate{
			SerialNumber: big.NewInt(7),
			Subject:      pkix.Name{CommonName: "CLINICA EXEMPLO LTDA:12345678000195"},
			NotBefore:    time.Now().Add(-time.Hour),
			NotAfter:     time.Now().Add(24 * time.Hour),
		}
		der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &priv.PublicKey, priv)
		if err != nil {
			panic(err)
		}
		testKey, err = signer.NewRSAKeySigner(tls.Certificate{Certificate: [][]byte{der}, PrivateKey: priv})
		if err != nil {
			panic(err)
		}
	})
	return testKey
}

func newProtocol(t *testing.T, sefin, param *fakeChannel, metrics *emission.Metrics) *emission.Protocol {
	t.Helper()
	return emission.NewProtocol(
		infra.NewXMLBuilderService(nfse.AmbienteHomologacao, "teste-1.0"),
		signer.NewDigitalSignatureService(),
		chaveTeste(t),
		sefin,
		param,
		zerolog.Nop(),
		metrics,
	)
}

// ── DPS de teste ─────────────────────────────────────────────────────────────

func buildParams(t *testing.T) domain.DPSParams {
	t.Helper()
	cpf, err := domain.CPF("123.456.789-09")
	require.NoError(t, err)
	return domain.DPSParams{
		Serie:       "1",
		Numero:      1,
		Competencia: "2026-01",
		DataEmissao: time.Date(2026, 1, 15, 10, 30, 0, 0, time.FixedZone("", -3*3600)),
		Prestador: domain.Prestador{
			CNPJ:               "12.345.678/0001-95",
			InscricaoMunicipal: "12345",
			RazaoSocial:        "Clínica Exemplo Ltda",
			Endereco: domain.Endereco{
				Logradouro:      "Av. Eduardo Ribeiro",
				Numero:          "520",
				Bairro:          "Centro",
				CodigoMunicipio: 1302603,
				UF:              "AM",
				CEP:             "69010-001",
			},
			Regime:         nfse.RegimeSimplesNacional,
			OptanteSimples: true,
		},
		Tomador: domain.Tomador{Identidade: cpf, Nome: "Maria da Silva"},
		Servico: domain.Servico{
			CodigoTributacaoNacional: "04.03.01",
			Descricao:                "Consulta médica",
			Valor:                    decimal.RequireFromString("500.00"),
		},
	}
}

func buildDPS(t *testing.T) *domain.DPS {
	t.Helper()
	dps, err := domain.NewDPS(buildParams(t))
	require.NoError(t, err)
	return dps
}
