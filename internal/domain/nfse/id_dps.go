package nfse

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/jhoicas/nfse-nacional/pkg/nfse"
)

// ──────────────────────────────────────────────────────────────────────────────
// Identificador da DPS (atributo Id da infDPS e alvo da Reference da assinatura)
//
//	"DPS" + cLocEmi(7) + tpEmit(1) + CNPJ(14) + série(5) + nDPS(15)
//
// Todos os campos são preenchidos com zeros à esquerda; a série alfanumérica é
// alinhada à direita ("NF" → "000NF"). Resultado sempre com 45 caracteres.
// ──────────────────────────────────────────────────────────────────────────────

var reIDDPS = regexp.MustCompile(`^DPS\d{7}\d\d{14}[0-9A-Za-z]{5}\d{15}$`)

const maxNumeroDPS = 999999999999999

// GerarIDDPS monta o Id de 45 caracteres. Função pura: mesma entrada, mesmo Id.
func GerarIDDPS(codigoMunicipio, tipoEmitente int, cnpj, serie string, numero uint64) (string, error) {
	var errs ValidationErrors
	if codigoMunicipio < 1000000 || codigoMunicipio > 9999999 {
		errs = append(errs, newValidationError("codigo_municipio_emissao", "código do município deve ter 7 dígitos (IBGE)"))
	}
	if tipoEmitente < nfse.TpEmitPrestador || tipoEmitente > nfse.TpEmitIntermediario {
		errs = append(errs, newValidationError("tipo_emitente", "deve ser 1, 2 ou 3"))
	}
	doc := nfse.NormalizarDocumento(cnpj)
	if doc == "" || len(doc) > 14 || len(doc) != len(cnpj) {
		errs = append(errs, newValidationError("prestador.cnpj", "deve conter até 14 dígitos numéricos"))
	}
	if !reSerie.MatchString(serie) {
		errs = append(errs, newValidationError("serie", "série deve ter de 1 a 5 caracteres alfanuméricos"))
	}
	if numero == 0 || numero > maxNumeroDPS {
		errs = append(errs, newValidationError("numero", "deve estar entre 1 e 15 dígitos"))
	}
	if len(errs) > 0 {
		return "", errs
	}

	var sb strings.Builder
	sb.Grow(nfse.TamanhoIDDPS)
	sb.WriteString(nfse.PrefixoIDDPS)
	sb.WriteString(fmt.Sprintf("%07d", codigoMunicipio))
	sb.WriteString(strconv.Itoa(tipoEmitente))
	sb.WriteString(leftPad(doc, 14, '0'))
	sb.WriteString(leftPad(serie, 5, '0'))
	sb.WriteString(fmt.Sprintf("%015d", numero))
	return sb.String(), nil
}

// ValidarIDDPS verifica o formato de um Id já montado.
func ValidarIDDPS(id string) error {
	if !reIDDPS.MatchString(id) {
		return newValidationError("id", "Id da DPS deve seguir o padrão DPS + 42 caracteres")
	}
	return nil
}

func leftPad(s string, width int, pad byte) string {
	if len(s) >= width {
		return s
	}
	return strings.Repeat(string(pad), width-len(s)) + s
}
