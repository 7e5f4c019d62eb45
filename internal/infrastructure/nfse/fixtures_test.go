package nfse_test

import (
	"testing"
	"time"

	domain "github.com/jhoicas/nfse-nacional/internal/domain/nfse"
	"github.com/jhoicas/nfse-nacional/pkg/nfse"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

const testVerAplic = "teste-1.0"

func buildParams(t *testing.T) domain.DPSParams {
	t.Helper()
	cpf, err := domain.CPF("52998224725")
	require.NoError(t, err)
	return domain.DPSParams{
		Serie:       "NF",
		Numero:      1,
		Competencia: "2026-01",
		DataEmissao: time.Date(2026, 1, 15, 10, 30, 0, 0, time.FixedZone("", -3*3600)),
		Prestador: domain.Prestador{
			CNPJ:               "42713924000185",
			InscricaoMunicipal: "12345",
			RazaoSocial:        "Clínica Exemplo Ltda",
			Endereco: domain.Endereco{
				Logradouro:      "Av. Eduardo Ribeiro",
				Numero:          "520",
				Bairro:          "Centro",
				CodigoMunicipio: 1302603,
				UF:              "AM",
				CEP:             "69010001",
			},
			Contato:        domain.Contato{Telefone: "9233334444", Email: "contato@exemplo.com.br"},
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

func buildDPS(t *testing.T, mutate ...func(*domain.DPSParams)) *domain.DPS {
	t.Helper()
	p := buildParams(t)
	for _, m := range mutate {
		m(&p)
	}
	dps, err := domain.NewDPS(p)
	require.NoError(t, err)
	return dps
}
