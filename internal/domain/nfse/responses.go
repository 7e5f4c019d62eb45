package nfse

import (
	"time"

	"github.com/shopspring/decimal"
)

// NFSeResponse resultado da emissão. Em rejeição Sucesso=false e os campos
// de erro trazem literalmente o código e a mensagem da autoridade.
type NFSeResponse struct {
	Sucesso      bool         `json:"sucesso"`
	ChaveAcesso  string       `json:"chave_acesso,omitempty"`
	NumeroNFSe   string       `json:"numero_nfse,omitempty"`
	IDDPS        string       `json:"id_dps,omitempty"`
	XMLNFSe      []byte       `json:"-"`
	CodigoErro   string       `json:"codigo_erro,omitempty"`
	MensagemErro string       `json:"mensagem_erro,omitempty"`
	Erros        []FieldError `json:"erros,omitempty"`
}

// EventResponse resultado do registro de evento (ex: cancelamento).
type EventResponse struct {
	Sucesso      bool   `json:"sucesso"`
	Protocolo    string `json:"protocolo,omitempty"`
	CodigoErro   string `json:"codigo_erro,omitempty"`
	MensagemErro string `json:"mensagem_erro,omitempty"`
}

// Situacao situação consultada de uma NFS-e.
type Situacao string

const (
	SituacaoEmitida       Situacao = "emitida"
	SituacaoCancelada     Situacao = "cancelada"
	SituacaoSubstituida   Situacao = "substituida"
	SituacaoNaoEncontrada Situacao = "nao_encontrada"
)

// Encontrada indica se a consulta localizou a nota.
func (s Situacao) Encontrada() bool { return s != SituacaoNaoEncontrada }

// ConsultaNFSe resultado da consulta por chave de acesso.
type ConsultaNFSe struct {
	ChaveAcesso      string          `json:"chave_acesso"`
	NumeroNFSe       string          `json:"numero_nfse,omitempty"`
	Situacao         Situacao        `json:"situacao"`
	DataEmissao      time.Time       `json:"data_emissao,omitempty"`
	ValorServicos    decimal.Decimal `json:"valor_servicos"`
	CNPJPrestador    string          `json:"cnpj_prestador,omitempty"`
	DocumentoTomador string          `json:"documento_tomador,omitempty"`
	XMLNFSe          []byte          `json:"-"`
}

// SubstituicaoNFSe resultado de uma substituição: a nova nota e a referência à original.
type SubstituicaoNFSe struct {
	ChaveOriginal string        `json:"chave_original"`
	Codigo        string        `json:"codigo_motivo"`
	Motivo        string        `json:"motivo"`
	Nova          *NFSeResponse `json:"nova"`
}

// DANFSe documento auxiliar em PDF devolvido pela autoridade.
type DANFSe struct {
	ChaveAcesso string
	Encontrado  bool
	PDF         []byte
}

// ConvenioMunicipal adesão do município ao sistema nacional.
type ConvenioMunicipal struct {
	CodigoMunicipio int            `json:"codigo_municipio"`
	Aderido         bool           `json:"aderido"`
	Dados           map[string]any `json:"dados,omitempty"`
}

// AliquotaServico alíquota de ISS de um serviço no município e competência.
// Aderido=false indica que o município não parametrizou o serviço.
type AliquotaServico struct {
	CodigoMunicipio int              `json:"codigo_municipio"`
	CodigoServico   string           `json:"codigo_servico"`
	Competencia     string           `json:"competencia"`
	Aliquota        *decimal.Decimal `json:"aliquota,omitempty"`
	Aderido         bool             `json:"aderido"`
	Dados           any              `json:"dados,omitempty"`
}

// ParametrosMunicipais convênio do município e, se houver, a alíquota do serviço consultado.
type ParametrosMunicipais struct {
	Convenio ConvenioMunicipal `json:"convenio"`
	Aliquota *AliquotaServico  `json:"aliquota,omitempty"`
}
