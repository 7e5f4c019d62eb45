package nfse

import (
	"strings"

	"github.com/jhoicas/nfse-nacional/pkg/nfse"
)

// Endereco endereço nacional. CodigoMunicipio é o código IBGE de 7 dígitos.
type Endereco struct {
	Logradouro      string `json:"logradouro" validate:"required,max=255"`
	Numero          string `json:"numero" validate:"required,max=60"`
	Complemento     string `json:"complemento,omitempty" validate:"max=156"`
	Bairro          string `json:"bairro" validate:"required,max=60"`
	CodigoMunicipio int    `json:"codigo_municipio" validate:"ibge"`
	UF              string `json:"uf" validate:"uf"`
	CEP             string `json:"cep" validate:"cep"`
}

func (e *Endereco) normalize() {
	e.Logradouro = strings.TrimSpace(e.Logradouro)
	e.Numero = strings.TrimSpace(e.Numero)
	e.Complemento = strings.TrimSpace(e.Complemento)
	e.Bairro = strings.TrimSpace(e.Bairro)
	e.UF = strings.ToUpper(strings.TrimSpace(e.UF))
	e.CEP = nfse.NormalizarDocumento(e.CEP)
}

// Contato dados de contato opcionais.
type Contato struct {
	Telefone string `json:"telefone,omitempty" validate:"omitempty,telefone"`
	Email    string `json:"email,omitempty" validate:"omitempty,email,max=80"`
}

func (c *Contato) normalize() {
	c.Telefone = nfse.NormalizarDocumento(c.Telefone)
	c.Email = strings.TrimSpace(c.Email)
}

// Prestador emitente da DPS (pessoa jurídica).
type Prestador struct {
	CNPJ                 string                `json:"cnpj" validate:"cnpj"`
	InscricaoMunicipal   string                `json:"inscricao_municipal" validate:"required,max=15"`
	RazaoSocial          string                `json:"razao_social" validate:"required,max=300"`
	NomeFantasia         string                `json:"nome_fantasia,omitempty" validate:"max=150"`
	Endereco             Endereco              `json:"endereco"`
	Contato              Contato               `json:"contato"`
	Regime               nfse.RegimeTributario `json:"regime_tributario" validate:"regime"`
	OptanteSimples       bool                  `json:"optante_simples"`
	IncentivadorCultural bool                  `json:"incentivador_cultural"`
}

// NewPrestador normaliza (remove máscaras, UF em maiúsculas) e valida o prestador.
func NewPrestador(p Prestador) (*Prestador, error) {
	p.CNPJ = nfse.NormalizarDocumento(p.CNPJ)
	p.InscricaoMunicipal = strings.TrimSpace(p.InscricaoMunicipal)
	p.RazaoSocial = strings.TrimSpace(p.RazaoSocial)
	p.Endereco.normalize()
	p.Contato.normalize()
	if errs := validateStruct("prestador", p); len(errs) > 0 {
		return nil, errs
	}
	return &p, nil
}

// OpSimpNac devolve a situação perante o Simples Nacional.
func (p *Prestador) OpSimpNac() string {
	switch {
	case p.Regime == nfse.RegimeMEI:
		return nfse.OpSimpNacMEI
	case p.OptanteSimples:
		return nfse.OpSimpNacMEEPP
	}
	return nfse.OpSimpNacNaoOptante
}

// RegEspTrib devolve o regime especial de tributação (0 = nenhum).
func (p *Prestador) RegEspTrib() string {
	if p.Regime == nfse.RegimeMEI {
		return nfse.RegEspTribMEI
	}
	return nfse.RegEspTribNenhum
}
