package nfse

import (
	"strings"

	"github.com/jhoicas/nfse-nacional/pkg/nfse"
)

// TipoIdentidade discrimina a identificação fiscal do tomador.
type TipoIdentidade uint8

const (
	// IdentidadeAusente é o valor zero: nenhuma escolha foi feita.
	IdentidadeAusente TipoIdentidade = iota
	IdentidadeCPF
	IdentidadeCNPJ
	// IdentidadeNaoIdentificado marca explicitamente o tomador não identificado.
	IdentidadeNaoIdentificado
)

// Identidade é CPF ou CNPJ, nunca os dois.
type Identidade struct {
	tipo   TipoIdentidade
	numero string
}

// CPF constrói uma identidade de pessoa física.
func CPF(numero string) (Identidade, error) {
	d := nfse.NormalizarDocumento(numero)
	if err := nfse.ValidateCPF(d); err != nil {
		return Identidade{}, newValidationError("tomador.cpf", strings.TrimPrefix(err.Error(), "nfse: "))
	}
	return Identidade{tipo: IdentidadeCPF, numero: d}, nil
}

// CNPJ constrói uma identidade de pessoa jurídica.
func CNPJ(numero string) (Identidade, error) {
	d := nfse.NormalizarDocumento(numero)
	if err := nfse.ValidateCNPJ(d); err != nil {
		return Identidade{}, newValidationError("tomador.cnpj", strings.TrimPrefix(err.Error(), "nfse: "))
	}
	return Identidade{tipo: IdentidadeCNPJ, numero: d}, nil
}

// NaoIdentificado devolve a identidade do tomador não identificado.
func NaoIdentificado() Identidade {
	return Identidade{tipo: IdentidadeNaoIdentificado}
}

// ParseIdentidade resolve a identidade a partir de dois campos soltos (ex: JSON).
// Exatamente um dos dois deve estar preenchido.
func ParseIdentidade(cpf, cnpj string) (Identidade, error) {
	cpf, cnpj = strings.TrimSpace(cpf), strings.TrimSpace(cnpj)
	switch {
	case cpf != "" && cnpj != "":
		return Identidade{}, newValidationError("tomador", "CPF e CNPJ são mutuamente exclusivos")
	case cpf != "":
		return CPF(cpf)
	case cnpj != "":
		return CNPJ(cnpj)
	}
	return Identidade{}, newValidationError("tomador", "tomador deve ter CPF ou CNPJ informado")
}

func (i Identidade) Tipo() TipoIdentidade { return i.tipo }

func (i Identidade) Numero() string { return i.numero }

// Identificado indica se há CPF ou CNPJ.
func (i Identidade) Identificado() bool {
	return i.tipo == IdentidadeCPF || i.tipo == IdentidadeCNPJ
}

// Elemento devolve o nome do elemento do leiaute ("CPF" ou "CNPJ").
func (i Identidade) Elemento() string {
	switch i.tipo {
	case IdentidadeCPF:
		return "CPF"
	case IdentidadeCNPJ:
		return "CNPJ"
	}
	return ""
}

// Tomador destinatário do serviço. Endereco nil significa bloco ausente.
type Tomador struct {
	Identidade Identidade `json:"-"`
	Nome       string     `json:"nome" validate:"max=300"`
	Endereco   *Endereco  `json:"endereco,omitempty"`
	Contato    Contato    `json:"contato"`
}

// NewTomador valida o tomador. Um tomador identificado exige nome.
func NewTomador(id Identidade, nome string, end *Endereco, contato Contato) (*Tomador, error) {
	t := Tomador{Identidade: id, Nome: strings.TrimSpace(nome), Contato: contato}
	if end != nil {
		e := *end
		e.normalize()
		t.Endereco = &e
	}
	t.Contato.normalize()

	var errs ValidationErrors
	switch {
	case id.tipo == IdentidadeAusente:
		errs = append(errs, newValidationError("tomador", "tomador deve ter CPF ou CNPJ informado"))
	case id.Identificado() && t.Nome == "":
		errs = append(errs, newValidationError("tomador.nome", "obrigatório"))
	}
	errs = append(errs, validateStruct("tomador", t)...)
	if len(errs) > 0 {
		return nil, errs
	}
	return &t, nil
}
