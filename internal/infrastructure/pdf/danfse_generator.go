// Package pdf gera a representação local do DANFSe (Documento Auxiliar da
// NFS-e) quando o PDF oficial não está disponível na Sefin Nacional.
//
// Layout da página A4:
//
//	┌─────────────────────────────────────────────────────────────┐
//	│  CABEÇALHO: Razão social + CNPJ  │  Nº NFS-e + Emissão       │
//	│  ─────────────────────────────────────────────────────────  │
//	│  PRESTADOR: IM / Endereço / Contato                          │
//	│  TOMADOR: Nome + CPF/CNPJ                                    │
//	│  ─────────────────────────────────────────────────────────  │
//	│  SERVIÇO: Código | Discriminação | Competência               │
//	│  ─────────────────────────────────────────────────────────  │
//	│  VALORES: Valor do serviço / Valor líquido                   │
//	│  ─────────────────────────────────────────────────────────  │
//	│  RODAPÉ: Chave de acesso + QR da consulta pública            │
//	└─────────────────────────────────────────────────────────────┘
package pdf

import (
	"context"
	"fmt"
	"strings"

	maroto "github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/code"
	"github.com/johnfercher/maroto/v2/pkg/components/col"
	"github.com/johnfercher/maroto/v2/pkg/components/line"
	"github.com/johnfercher/maroto/v2/pkg/components/row"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/consts/pagesize"
	"github.com/johnfercher/maroto/v2/pkg/core"
	"github.com/johnfercher/maroto/v2/pkg/props"
	"github.com/shopspring/decimal"

	"github.com/jhoicas/nfse-nacional/internal/domain/entity"
	domain "github.com/jhoicas/nfse-nacional/internal/domain/nfse"
	"github.com/jhoicas/nfse-nacional/pkg/nfse"
)

// ConsultaPublicaURL endereço da consulta pública da NFS-e pela chave de acesso.
const ConsultaPublicaURL = "https://www.nfse.gov.br/ConsultaPublica/?tpc=1&chave=%s"

// ── Paleta ────────────────────────────────────────────────────────────────────

var (
	colorPrimary = &props.Color{Red: 0, Green: 84, Blue: 64}
	colorGray    = &props.Color{Red: 100, Green: 100, Blue: 100}
	colorAlert   = &props.Color{Red: 180, Green: 30, Blue: 30}
)

// ── Gerador ───────────────────────────────────────────────────────────────────

// DanfseGenerator implementa emission.DANFSeGenerator com Maroto v2.
type DanfseGenerator struct {
	ambiente nfse.Ambiente
}

// NewDanfseGenerator constrói o gerador. Fora de produção o documento leva a
// tarja "SEM VALOR FISCAL".
func NewDanfseGenerator(ambiente nfse.Ambiente) *DanfseGenerator {
	return &DanfseGenerator{ambiente: ambiente}
}

// GenerateDANFSe gera o PDF e devolve seus bytes.
func (g *DanfseGenerator) GenerateDANFSe(_ context.Context, nota *entity.NotaFiscal, prestador *domain.Prestador) ([]byte, error) {
	if nota == nil || prestador == nil {
		return nil, fmt.Errorf("pdf: nota e prestador são obrigatórios")
	}
	cfg := config.NewBuilder().
		WithPageSize(pagesize.A4).
		WithLeftMargin(10).WithRightMargin(10).
		WithTopMargin(10).WithBottomMargin(10).
		WithDefaultFont(&props.Font{Family: "helvetica", Size: 9}).
		WithTitle("DANFSe "+nota.ChaveAcesso, true).
		WithAuthor(prestador.RazaoSocial, true).
		Build()

	m := maroto.New(cfg)

	m.AddRows(cabecalhoRow(nota, prestador))
	if g.ambiente != nfse.AmbienteProducao {
		m.AddRows(tarjaRow())
	}
	m.AddRows(line.NewRow(1, props.Line{Color: colorPrimary, Thickness: 0.5}))
	m.AddRows(prestadorRow(prestador))
	m.AddRows(tomadorRow(nota))
	m.AddRows(line.NewRow(1, props.Line{Color: colorPrimary, Thickness: 0.3}))
	m.AddRows(servicoRows(nota)...)
	m.AddRows(line.NewRow(1, props.Line{Color: colorPrimary, Thickness: 0.3}))
	m.AddRows(valoresRow(nota))
	m.AddRows(line.NewRow(3))
	m.AddRows(line.NewRow(1, props.Line{Color: colorGray, Thickness: 0.3}))
	m.AddRows(rodapeRows(nota)...)

	doc, err := m.Generate()
	if err != nil {
		return nil, fmt.Errorf("pdf: gerar documento: %w", err)
	}
	return doc.GetBytes(), nil
}

// ── Seções ────────────────────────────────────────────────────────────────────

func cabecalhoRow(nota *entity.NotaFiscal, prestador *domain.Prestador) core.Row {
	numero := nonEmpty(nota.NumeroNFSe, "—")
	return row.New(18).Add(
		col.New(7).Add(
			text.New(prestador.RazaoSocial, props.Text{
				Style: fontstyle.Bold, Size: 13, Color: colorPrimary, Top: 1,
			}),
			text.New("CNPJ: "+nfse.FormatarCNPJ(prestador.CNPJ), props.Text{
				Size: 9, Top: 9, Color: colorGray,
			}),
		),
		col.New(5).Add(
			text.New("DANFSe - DOCUMENTO AUXILIAR DA NFS-e", props.Text{
				Style: fontstyle.Bold, Size: 8, Align: align.Right,
				Color: colorPrimary, Top: 1,
			}),
			text.New("NFS-e nº "+numero, props.Text{
				Style: fontstyle.Bold, Size: 12, Align: align.Right, Top: 7,
			}),
			text.New("Emissão: "+nota.DataEmissao.Format("02/01/2006 15:04"), props.Text{
				Size: 8, Align: align.Right, Top: 14, Color: colorGray,
			}),
		),
	)
}

func tarjaRow() core.Row {
	return row.New(8).Add(col.New(12).Add(
		text.New("EMITIDA EM AMBIENTE DE HOMOLOGAÇÃO - SEM VALOR FISCAL", props.Text{
			Style: fontstyle.Bold, Size: 10, Align: align.Center, Color: colorAlert, Top: 2,
		}),
	))
}

func prestadorRow(p *domain.Prestador) core.Row {
	e := p.Endereco
	endereco := fmt.Sprintf("%s, %s", e.Logradouro, e.Numero)
	if e.Complemento != "" {
		endereco += " " + e.Complemento
	}
	endereco += fmt.Sprintf(" - %s - IBGE %d/%s - CEP %s", e.Bairro, e.CodigoMunicipio, e.UF, formatarCEP(e.CEP))
	return row.New(18).Add(
		col.New(12).Add(
			text.New("PRESTADOR DO SERVIÇO", props.Text{
				Style: fontstyle.Bold, Size: 8, Color: colorPrimary, Top: 1,
			}),
			text.New(fmt.Sprintf("Inscrição municipal: %s", p.InscricaoMunicipal), props.Text{
				Size: 8, Top: 6,
			}),
			text.New(endereco, props.Text{Size: 8, Top: 10, Color: colorGray}),
			text.New(fmt.Sprintf("Tel: %s   |   Email: %s",
				nonEmpty(p.Contato.Telefone, "—"),
				nonEmpty(p.Contato.Email, "—"),
			), props.Text{Size: 8, Top: 14, Color: colorGray}),
		),
	)
}

func tomadorRow(nota *entity.NotaFiscal) core.Row {
	nome := nonEmpty(nota.NomeTomador, "TOMADOR NÃO IDENTIFICADO")
	return row.New(14).Add(
		col.New(12).Add(
			text.New("TOMADOR DO SERVIÇO", props.Text{
				Style: fontstyle.Bold, Size: 8, Color: colorPrimary, Top: 1,
			}),
			text.New(nome, props.Text{Style: fontstyle.Bold, Size: 10, Top: 6}),
			text.New("CPF/CNPJ: "+formatarDocumento(nota.DocumentoTomador), props.Text{
				Size: 8, Top: 12, Color: colorGray,
			}),
		),
	)
}

func servicoRows(nota *entity.NotaFiscal) []core.Row {
	rows := []core.Row{
		row.New(6).Add(col.New(12).Add(
			text.New("DISCRIMINAÇÃO DO SERVIÇO", props.Text{
				Style: fontstyle.Bold, Size: 8, Color: colorPrimary, Top: 1,
			}),
		)),
		row.New(6).Add(
			col.New(6).Add(text.New("Código de tributação nacional: "+nota.CodigoServico, props.Text{Size: 8, Top: 1})),
			col.New(6).Add(text.New("Competência: "+formatarCompetencia(nota.Competencia), props.Text{
				Size: 8, Top: 1, Align: align.Right,
			})),
		),
	}
	for _, linha := range quebrarTexto(nota.Descricao, 110) {
		rows = append(rows, row.New(5).Add(col.New(12).Add(
			text.New(linha, props.Text{Size: 8, Top: 0.5, Left: 1}),
		)))
	}
	return rows
}

func valoresRow(nota *entity.NotaFiscal) core.Row {
	label := func(s string) core.Component {
		return text.New(s, props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right, Right: 2})
	}
	value := func(s string) core.Component {
		return text.New(s, props.Text{Size: 9, Align: align.Right, Right: 1})
	}
	return row.New(14).Add(
		col.New(6),
		col.New(3).Add(
			label("Valor do serviço:"),
			text.New("Valor líquido:", props.Text{
				Style: fontstyle.Bold, Size: 10, Align: align.Right, Color: colorPrimary, Right: 2, Top: 6,
			}),
		),
		col.New(3).Add(
			value(formatarMoeda(nota.Valor)),
			text.New(formatarMoeda(nota.Valor), props.Text{
				Style: fontstyle.Bold, Size: 10, Align: align.Right, Color: colorPrimary, Right: 1, Top: 6,
			}),
		),
	)
}

func rodapeRows(nota *entity.NotaFiscal) []core.Row {
	rows := []core.Row{
		row.New(6).Add(col.New(12).Add(
			text.New("CHAVE DE ACESSO", props.Text{Style: fontstyle.Bold, Size: 8, Color: colorPrimary, Top: 1}),
		)),
		row.New(5).Add(col.New(12).Add(
			text.New(agruparChave(nota.ChaveAcesso), props.Text{Size: 8, Top: 0.5, Left: 2}),
		)),
		row.New(3),
	}
	if nota.ChaveAcesso != "" {
		rows = append(rows, row.New(40).Add(
			col.New(3).Add(code.NewQr(fmt.Sprintf(ConsultaPublicaURL, nota.ChaveAcesso), props.Rect{
				Percent: 95,
				Center:  true,
			})),
			col.New(9).Add(
				text.New("Consulte a autenticidade desta NFS-e no\nPortal Nacional da NFS-e (www.nfse.gov.br).", props.Text{
					Size: 8, Top: 4, Left: 3, Color: colorGray,
				}),
				text.New("Representação gerada pelo emissor. O documento fiscal é o XML da NFS-e.", props.Text{
					Size: 7, Top: 18, Left: 3, Color: colorGray,
				}),
			),
		))
	}
	return rows
}

// ── Auxiliares ────────────────────────────────────────────────────────────────

func nonEmpty(s, fallback string) string {
	if s != "" {
		return s
	}
	return fallback
}

func formatarDocumento(doc string) string {
	switch len(doc) {
	case 14:
		return nfse.FormatarCNPJ(doc)
	case 11:
		return nfse.FormatarCPF(doc)
	case 0:
		return "—"
	}
	return doc
}

func formatarCEP(cep string) string {
	if len(cep) != 8 {
		return cep
	}
	return cep[:5] + "-" + cep[5:]
}

// formatarCompetencia converte AAAA-MM em MM/AAAA.
func formatarCompetencia(c string) string {
	if len(c) != 7 || c[4] != '-' {
		return c
	}
	return c[5:] + "/" + c[:4]
}

// formatarMoeda formata em reais: 1234.5 → "R$ 1.234,50".
func formatarMoeda(v decimal.Decimal) string {
	s := v.StringFixed(2)
	sinal := ""
	if strings.HasPrefix(s, "-") {
		sinal, s = "-", s[1:]
	}
	inteiro, centavos, _ := strings.Cut(s, ".")
	n := len(inteiro)
	buf := make([]byte, 0, n+n/3)
	for i, c := range []byte(inteiro) {
		if i > 0 && (n-i)%3 == 0 {
			buf = append(buf, '.')
		}
		buf = append(buf, c)
	}
	return "R$ " + sinal + string(buf) + "," + centavos
}

// agruparChave separa a chave em blocos de 4 dígitos para leitura.
func agruparChave(chave string) string {
	var b strings.Builder
	for i, c := range chave {
		if i > 0 && i%4 == 0 {
			b.WriteByte(' ')
		}
		b.WriteRune(c)
	}
	return b.String()
}

// quebrarTexto divide s em linhas de no máximo n caracteres, sem cortar palavras.
func quebrarTexto(s string, n int) []string {
	var (
		linhas []string
		atual  strings.Builder
	)
	for _, palavra := range strings.Fields(s) {
		if atual.Len() > 0 && atual.Len()+1+len(palavra) > n {
			linhas = append(linhas, atual.String())
			atual.Reset()
		}
		if atual.Len() > 0 {
			atual.WriteByte(' ')
		}
		atual.WriteString(palavra)
	}
	if atual.Len() > 0 {
		linhas = append(linhas, atual.String())
	}
	return linhas
}
