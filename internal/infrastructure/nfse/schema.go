package nfse

import (
	"strings"

	domain "github.com/jhoicas/nfse-nacional/internal/domain/nfse"
)

// ── Tabelas de ordem do leiaute DPS v1.01 ────────────────────────────────────
//
// A ordem de serialização vem exclusivamente destas tabelas, nunca da ordem em
// que o builder cria os nós. Cada entrada lista os nomes aceitos na posição
// (mais de um nome = escolha exclusiva) e se a posição é obrigatória.

type posicao struct {
	nomes       []string
	obrigatorio bool
}

func obr(nomes ...string) posicao { return posicao{nomes: nomes, obrigatorio: true} }
func opc(nomes ...string) posicao { return posicao{nomes: nomes} }

var esquemaDPS = map[string][]posicao{
	"DPS": {obr("infDPS")},
	"infDPS": {
		obr("tpAmb"), obr("dhEmi"), obr("verAplic"), obr("serie"), obr("nDPS"),
		obr("dCompet"), obr("tpEmit"), obr("cLocEmi"), opc("subst"),
		obr("prest"), opc("toma"), obr("serv"), obr("valores"),
	},
	"subst":      {obr("chSubstda"), obr("cMotivo"), obr("xMotivo")},
	"prest":      {obr("CNPJ", "CPF"), opc("IM"), opc("fone"), opc("email"), obr("regTrib")},
	"regTrib":    {obr("opSimpNac"), opc("regApTribSN"), obr("regEspTrib")},
	"toma":       {obr("CNPJ", "CPF"), obr("xNome"), opc("end"), opc("fone"), opc("email")},
	"end":        {obr("endNac"), obr("xLgr"), obr("nro"), opc("xCpl"), obr("xBairro")},
	"endNac":     {obr("cMun"), obr("CEP")},
	"serv":       {obr("locPrest"), obr("cServ")},
	"locPrest":   {obr("cLocPrestacao")},
	"cServ":      {obr("cTribNac"), opc("cTribMun"), obr("xDescServ"), opc("cNBS")},
	"valores":    {obr("vServPrest"), obr("trib")},
	"vServPrest": {obr("vServ")},
	"trib":       {obr("tribMun"), obr("totTrib")},
	"tribMun":    {obr("tribISSQN"), obr("tpRetISSQN"), opc("pAliq")},
	"totTrib":    {obr("pTotTribSN", "pTotTrib")},
	"pTotTrib":   {obr("pTotTribFed"), obr("pTotTribEst"), obr("pTotTribMun")},
}

// ordenarFilhos devolve os filhos de n na ordem do leiaute. Falha com
// SchemaError quando falta um filho obrigatório (bloco incompleto), quando uma
// escolha exclusiva tem mais de um elemento ou quando há filho fora da tabela.
func ordenarFilhos(n *node) ([]*node, error) {
	tabela, ok := esquemaDPS[n.name]
	if !ok {
		return nil, &domain.SchemaError{Elemento: n.name, Motivo: "elemento sem tabela de ordem"}
	}
	out := make([]*node, 0, len(n.children))
	for _, pos := range tabela {
		var achados []*node
		for _, c := range n.children {
			if contem(pos.nomes, c.name) {
				achados = append(achados, c)
			}
		}
		switch {
		case len(achados) == 0 && pos.obrigatorio:
			return nil, &domain.SchemaError{Elemento: n.name, Filho: strings.Join(pos.nomes, "|")}
		case len(achados) > 1:
			return nil, &domain.SchemaError{Elemento: n.name, Motivo: "escolha exclusiva com mais de um elemento: " + achados[1].name}
		}
		out = append(out, achados...)
	}
	if len(out) != len(n.children) {
		for _, c := range n.children {
			if !contemNo(out, c) {
				return nil, &domain.SchemaError{Elemento: n.name, Motivo: "filho fora do leiaute: " + c.name}
			}
		}
	}
	return out, nil
}

func contem(nomes []string, nome string) bool {
	for _, n := range nomes {
		if n == nome {
			return true
		}
	}
	return false
}

func contemNo(nos []*node, alvo *node) bool {
	for _, n := range nos {
		if n == alvo {
			return true
		}
	}
	return false
}
