package nfse

import (
	"strings"
	"time"

	"github.com/jhoicas/nfse-nacional/pkg/nfse"
)

// fusoBrasilia é aplicado a datas de emissão sem fuso explícito.
var fusoBrasilia = time.FixedZone("BRT", -3*60*60)

// Substituicao grupo subst: referencia a NFS-e substituída.
type Substituicao struct {
	ChaveSubstituida string                  `json:"chave_substituida"`
	Codigo           nfse.MotivoSubstituicao `json:"codigo_motivo"`
	Motivo           string                  `json:"motivo"`
}

// NewSubstituicao valida a chave (50 dígitos), o código e o texto (15 a 255 caracteres).
func NewSubstituicao(chave string, codigo nfse.MotivoSubstituicao, motivo string) (*Substituicao, error) {
	s := Substituicao{ChaveSubstituida: strings.TrimSpace(chave), Codigo: codigo, Motivo: strings.TrimSpace(motivo)}
	var errs ValidationErrors
	if err := ValidarChaveAcesso(s.ChaveSubstituida); err != nil {
		errs = append(errs, newValidationError("substituicao.chave_substituida", err.(*ValidationError).Motivo))
	}
	if !nfse.ValidMotivosSubstituicao[s.Codigo] {
		errs = append(errs, newValidationError("substituicao.codigo_motivo", "código de motivo desconhecido"))
	}
	if err := ValidarMotivoSubstituicao(s.Motivo); err != nil {
		errs = append(errs, err.(*ValidationError))
	}
	if len(errs) > 0 {
		return nil, errs
	}
	return &s, nil
}

// ValidarMotivoSubstituicao exige entre 15 e 255 caracteres.
func ValidarMotivoSubstituicao(motivo string) error {
	n := len([]rune(motivo))
	if n < nfse.MotivoSubstituicaoMin || n > nfse.MotivoSubstituicaoMax {
		return newValidationError("substituicao.motivo", "motivo deve ter entre 15 e 255 caracteres")
	}
	return nil
}

// ValidarChaveAcesso verifica que a chave tem 50 dígitos.
func ValidarChaveAcesso(chave string) error {
	if len(chave) != nfse.TamanhoChaveAcesso || !reDigitos.MatchString(chave) {
		return newValidationError("chave_acesso", "chave de acesso deve conter 50 dígitos")
	}
	return nil
}

// DPSParams dados de entrada para construir uma DPS. Numero é atribuído pelo chamador.
type DPSParams struct {
	Serie                  string
	Numero                 uint64
	Competencia            string
	DataEmissao            time.Time
	TipoEmitente           int
	CodigoMunicipioEmissao int
	Prestador              Prestador
	Tomador                Tomador
	Servico                Servico
	Substituicao           *Substituicao
}

// DPS declaração pronta para codificação. Imutável após NewDPS: o Id é
// derivado dos demais campos e não deve ser alterado manualmente.
type DPS struct {
	ID                     string
	Serie                  string
	Numero                 uint64
	Competencia            string
	DataEmissao            time.Time
	TipoEmitente           int
	CodigoMunicipioEmissao int
	Prestador              Prestador
	Tomador                Tomador
	Servico                Servico
	Substituicao           *Substituicao
}

// NewDPS valida as partes, aplica os padrões (tpEmit 1, cLocEmi do prestador,
// fuso -03:00) e gera o Id.
func NewDPS(p DPSParams) (*DPS, error) {
	if p.TipoEmitente == 0 {
		p.TipoEmitente = nfse.TpEmitPrestador
	}
	if p.CodigoMunicipioEmissao == 0 {
		p.CodigoMunicipioEmissao = p.Prestador.Endereco.CodigoMunicipio
	}
	p.Serie = strings.TrimSpace(p.Serie)
	p.Competencia = strings.TrimSpace(p.Competencia)

	var errs ValidationErrors
	errs = append(errs, validateStruct("", struct {
		Serie       string    `json:"serie" validate:"serie"`
		Numero      uint64    `json:"numero" validate:"min=1"`
		Competencia string    `json:"competencia" validate:"competencia"`
		DataEmissao time.Time `json:"data_emissao" validate:"required"`
	}{p.Serie, p.Numero, p.Competencia, p.DataEmissao})...)

	prest, err := NewPrestador(p.Prestador)
	errs = appendValidation(errs, err)
	toma, err := NewTomador(p.Tomador.Identidade, p.Tomador.Nome, p.Tomador.Endereco, p.Tomador.Contato)
	errs = appendValidation(errs, err)
	serv, err := NewServico(p.Servico)
	errs = appendValidation(errs, err)
	var subst *Substituicao
	if p.Substituicao != nil {
		subst, err = NewSubstituicao(p.Substituicao.ChaveSubstituida, p.Substituicao.Codigo, p.Substituicao.Motivo)
		errs = appendValidation(errs, err)
	}
	if len(errs) > 0 {
		return nil, errs
	}

	id, err := GerarIDDPS(p.CodigoMunicipioEmissao, p.TipoEmitente, prest.CNPJ, p.Serie, p.Numero)
	if err != nil {
		return nil, err
	}

	emissao := p.DataEmissao
	if emissao.Location() == time.UTC || emissao.Location() == time.Local {
		emissao = emissao.In(fusoBrasilia)
	}
	return &DPS{
		ID:                     id,
		Serie:                  p.Serie,
		Numero:                 p.Numero,
		Competencia:            p.Competencia,
		DataEmissao:            emissao,
		TipoEmitente:           p.TipoEmitente,
		CodigoMunicipioEmissao: p.CodigoMunicipioEmissao,
		Prestador:              *prest,
		Tomador:                *toma,
		Servico:                *serv,
		Substituicao:           subst,
	}, nil
}

// DataCompetencia devolve a data de competência (dCompet): o dia da emissão
// quando esta cai no mês de competência, senão o primeiro dia desse mês.
func (d *DPS) DataCompetencia() time.Time {
	comp, err := time.ParseInLocation("2006-01", d.Competencia, d.DataEmissao.Location())
	if err != nil {
		return d.DataEmissao
	}
	if d.DataEmissao.Year() == comp.Year() && d.DataEmissao.Month() == comp.Month() {
		return d.DataEmissao
	}
	return comp
}

func appendValidation(errs ValidationErrors, err error) ValidationErrors {
	switch e := err.(type) {
	case nil:
		return errs
	case ValidationErrors:
		return append(errs, e...)
	case *ValidationError:
		return append(errs, e)
	}
	return append(errs, newValidationError("dps", err.Error()))
}

// ValidarCompetencia exige o formato AAAA-MM com mês entre 01 e 12.
func ValidarCompetencia(competencia string) error {
	if !reCompetencia.MatchString(competencia) {
		return newValidationError("competencia", "competência deve estar no formato AAAA-MM")
	}
	return nil
}
