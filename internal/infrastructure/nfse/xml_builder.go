package nfse

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"strconv"
	"strings"

	domain "github.com/jhoicas/nfse-nacional/internal/domain/nfse"
	"github.com/jhoicas/nfse-nacional/pkg/nfse"
	"github.com/shopspring/decimal"
	"golang.org/x/text/unicode/norm"
)

const (
	layoutDataHora = "2006-01-02T15:04:05-07:00"
	layoutData     = "2006-01-02"

	// VerAplicPadrao identifica o aplicativo emissor quando a configuração não informa.
	VerAplicPadrao = "nfse-nacional-go-1.0"
)

// XMLBuilderService gera o XML da DPS (sem assinatura). A saída é determinística:
// mesma DPS, mesmos bytes.
type XMLBuilderService struct {
	ambiente nfse.Ambiente
	verAplic string
}

// NewXMLBuilderService cria o serviço para o ambiente informado.
func NewXMLBuilderService(ambiente nfse.Ambiente, verAplic string) *XMLBuilderService {
	if verAplic == "" {
		verAplic = VerAplicPadrao
	}
	return &XMLBuilderService{ambiente: ambiente, verAplic: verAplic}
}

// Build serializa a DPS na ordem do leiaute. O Id gerado para a DPS vai no
// atributo Id de infDPS, que é também o alvo da assinatura.
func (s *XMLBuilderService) Build(dps *domain.DPS) ([]byte, error) {
	if dps == nil {
		return nil, fmt.Errorf("nfse: DPS nula")
	}
	if err := domain.ValidarIDDPS(dps.ID); err != nil {
		return nil, err
	}
	root := s.buildTree(dps)

	var buf bytes.Buffer
	buf.WriteString(xml.Header[:len(xml.Header)-1])
	enc := xml.NewEncoder(&buf)
	if err := encodeNode(enc, root); err != nil {
		return nil, err
	}
	if err := enc.Flush(); err != nil {
		return nil, fmt.Errorf("nfse: serializar DPS: %w", err)
	}
	return buf.Bytes(), nil
}

// ── Árvore intermediária ─────────────────────────────────────────────────────

type node struct {
	name     string
	attrs    []xml.Attr
	text     string
	isLeaf   bool
	children []*node
}

func newNode(name string, attrs ...xml.Attr) *node {
	return &node{name: name, attrs: attrs}
}

// child cria um bloco filho. O bloco sempre entra na árvore; a validação de
// completude acontece na serialização.
func (n *node) child(name string, attrs ...xml.Attr) *node {
	c := newNode(name, attrs...)
	n.children = append(n.children, c)
	return c
}

// leaf adiciona um elemento simples apenas quando há valor.
func (n *node) leaf(name, value string) {
	if value == "" {
		return
	}
	n.children = append(n.children, &node{name: name, text: value, isLeaf: true})
}

func attr(name, value string) xml.Attr {
	return xml.Attr{Name: xml.Name{Local: name}, Value: value}
}

func encodeNode(enc *xml.Encoder, n *node) error {
	start := xml.StartElement{Name: xml.Name{Local: n.name}, Attr: n.attrs}
	if err := enc.EncodeToken(start); err != nil {
		return fmt.Errorf("nfse: serializar <%s>: %w", n.name, err)
	}
	if n.isLeaf {
		if err := enc.EncodeToken(xml.CharData(n.text)); err != nil {
			return fmt.Errorf("nfse: serializar <%s>: %w", n.name, err)
		}
	} else {
		filhos, err := ordenarFilhos(n)
		if err != nil {
			return err
		}
		for _, c := range filhos {
			if err := encodeNode(enc, c); err != nil {
				return err
			}
		}
	}
	return enc.EncodeToken(start.End())
}

// ── Montagem dos grupos ──────────────────────────────────────────────────────

func (s *XMLBuilderService) buildTree(d *domain.DPS) *node {
	root := newNode("DPS", attr("xmlns", nfse.Namespace), attr("versao", nfse.VersaoDPS))
	inf := root.child("infDPS", attr("Id", d.ID))

	inf.leaf("tpAmb", s.ambiente.TpAmb())
	inf.leaf("dhEmi", d.DataEmissao.Format(layoutDataHora))
	inf.leaf("verAplic", s.verAplic)
	inf.leaf("serie", d.Serie)
	inf.leaf("nDPS", formatUint(d.Numero))
	inf.leaf("dCompet", d.DataCompetencia().Format(layoutData))
	inf.leaf("tpEmit", formatInt(d.TipoEmitente))
	inf.leaf("cLocEmi", formatInt(d.CodigoMunicipioEmissao))

	if d.Substituicao != nil {
		subst := inf.child("subst")
		subst.leaf("chSubstda", d.Substituicao.ChaveSubstituida)
		subst.leaf("cMotivo", string(d.Substituicao.Codigo))
		subst.leaf("xMotivo", texto(d.Substituicao.Motivo))
	}

	s.writePrestador(inf, &d.Prestador)
	s.writeTomador(inf, &d.Tomador)
	s.writeServico(inf, d)
	s.writeValores(inf, d)
	return root
}

func (s *XMLBuilderService) writePrestador(parent *node, p *domain.Prestador) {
	prest := parent.child("prest")
	prest.leaf("CNPJ", p.CNPJ)
	if p.InscricaoMunicipal != "" {
		// IM alinhada à direita com espaços até 15 posições, como nas notas reais.
		prest.leaf("IM", fmt.Sprintf("%15s", p.InscricaoMunicipal))
	}
	prest.leaf("fone", p.Contato.Telefone)
	prest.leaf("email", p.Contato.Email)

	regTrib := prest.child("regTrib")
	regTrib.leaf("opSimpNac", p.OpSimpNac())
	if p.OpSimpNac() == nfse.OpSimpNacMEEPP {
		regTrib.leaf("regApTribSN", nfse.RegApTribSNFederaisMunicipal)
	}
	regTrib.leaf("regEspTrib", p.RegEspTrib())
}

func (s *XMLBuilderService) writeTomador(parent *node, t *domain.Tomador) {
	if !t.Identidade.Identificado() {
		return
	}
	toma := parent.child("toma")
	toma.leaf(t.Identidade.Elemento(), t.Identidade.Numero())
	toma.leaf("xNome", texto(t.Nome))
	if t.Endereco != nil {
		writeEndereco(toma, t.Endereco)
	}
	toma.leaf("fone", t.Contato.Telefone)
	toma.leaf("email", t.Contato.Email)
}

// writeEndereco gera o grupo end completo; campos vazios ficam de fora e a
// serialização acusa o bloco incompleto.
func writeEndereco(parent *node, e *domain.Endereco) {
	end := parent.child("end")
	endNac := end.child("endNac")
	endNac.leaf("cMun", formatInt(e.CodigoMunicipio))
	endNac.leaf("CEP", e.CEP)
	end.leaf("xLgr", texto(e.Logradouro))
	end.leaf("nro", texto(e.Numero))
	end.leaf("xCpl", texto(e.Complemento))
	end.leaf("xBairro", texto(e.Bairro))
}

func (s *XMLBuilderService) writeServico(parent *node, d *domain.DPS) {
	serv := parent.child("serv")
	loc := serv.child("locPrest")
	loc.leaf("cLocPrestacao", formatInt(d.Prestador.Endereco.CodigoMunicipio))

	cServ := serv.child("cServ")
	cServ.leaf("cTribNac", d.Servico.CodigoTributacaoSemPontos())
	cServ.leaf("cTribMun", d.Servico.CodigoTributacaoMunicipal)
	cServ.leaf("xDescServ", texto(d.Servico.Descricao))
	cServ.leaf("cNBS", d.Servico.CodigoNBS)
}

func (s *XMLBuilderService) writeValores(parent *node, d *domain.DPS) {
	valores := parent.child("valores")
	vServPrest := valores.child("vServPrest")
	vServPrest.leaf("vServ", formatDecimal(d.Servico.Valor))

	trib := valores.child("trib")
	tribMun := trib.child("tribMun")
	tribMun.leaf("tribISSQN", nfse.TribISSQNOperacaoTributavel)
	if d.Servico.ISSRetido {
		tribMun.leaf("tpRetISSQN", nfse.TpRetISSQNRetidoTomador)
	} else {
		tribMun.leaf("tpRetISSQN", nfse.TpRetISSQNNaoRetido)
	}
	if d.Servico.AliquotaISS != nil {
		tribMun.leaf("pAliq", formatDecimal(*d.Servico.AliquotaISS))
	}

	totTrib := trib.child("totTrib")
	if d.Prestador.OpSimpNac() == nfse.OpSimpNacMEEPP {
		aliq := decimal.RequireFromString(nfse.PTotTribSNPadrao)
		if d.Servico.AliquotaSimples != nil {
			aliq = *d.Servico.AliquotaSimples
		}
		totTrib.leaf("pTotTribSN", formatDecimal(aliq))
		return
	}
	pTotTrib := totTrib.child("pTotTrib")
	zero := formatDecimal(decimal.Zero)
	pTotTrib.leaf("pTotTribFed", zero)
	pTotTrib.leaf("pTotTribEst", zero)
	pTotTrib.leaf("pTotTribMun", zero)
}

// ── Formatação ───────────────────────────────────────────────────────────────

// formatDecimal sempre com 2 casas e ponto decimal, independente de locale.
func formatDecimal(d decimal.Decimal) string {
	return d.Round(2).StringFixed(2)
}

func formatInt(n int) string {
	if n == 0 {
		return ""
	}
	return strconv.Itoa(n)
}

func formatUint(n uint64) string {
	if n == 0 {
		return ""
	}
	return strconv.FormatUint(n, 10)
}

// texto normaliza para NFC e remove espaços das pontas.
func texto(s string) string {
	return norm.NFC.String(strings.TrimSpace(s))
}
