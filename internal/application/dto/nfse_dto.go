package dto

import (
	"time"

	"github.com/shopspring/decimal"
)

// EnderecoRequest endereço nacional do tomador.
type EnderecoRequest struct {
	Logradouro      string `json:"logradouro"`
	Numero          string `json:"numero"`
	Complemento     string `json:"complemento,omitempty"`
	Bairro          string `json:"bairro"`
	CodigoMunicipio int    `json:"codigo_municipio"`
	UF              string `json:"uf"`
	CEP             string `json:"cep"`
}

// TomadorRequest tomador do serviço. Informar CPF ou CNPJ, ou nao_identificado=true.
type TomadorRequest struct {
	CPF             string           `json:"cpf,omitempty"`
	CNPJ            string           `json:"cnpj,omitempty"`
	NaoIdentificado bool             `json:"nao_identificado,omitempty"`
	Nome            string           `json:"nome,omitempty"`
	Endereco        *EnderecoRequest `json:"endereco,omitempty"`
	Telefone        string           `json:"telefone,omitempty"`
	Email           string           `json:"email,omitempty"`
}

// ServicoRequest serviço prestado.
type ServicoRequest struct {
	CodigoTributacaoNacional  string           `json:"codigo_tributacao_nacional"`
	CodigoTributacaoMunicipal string           `json:"codigo_tributacao_municipal,omitempty"`
	CodigoNBS                 string           `json:"codigo_nbs,omitempty"`
	Descricao                 string           `json:"descricao"`
	Valor                     decimal.Decimal  `json:"valor"`
	ISSRetido                 bool             `json:"iss_retido,omitempty"`
	AliquotaISS               *decimal.Decimal `json:"aliquota_iss,omitempty"`
	AliquotaSimples           *decimal.Decimal `json:"aliquota_simples,omitempty"`
}

// EmitirNFSeRequest body de POST /api/v1/nfse. O prestador vem da configuração
// e série/número são atribuídos pelo servidor.
type EmitirNFSeRequest struct {
	Competencia string         `json:"competencia"`            // AAAA-MM
	DataEmissao *time.Time     `json:"data_emissao,omitempty"` // padrão: agora
	Tomador     TomadorRequest `json:"tomador"`
	Servico     ServicoRequest `json:"servico"`
}

// CancelarNFSeRequest body de POST /api/v1/nfse/:chave/cancelamento.
type CancelarNFSeRequest struct {
	Motivo string `json:"motivo"`
}

// SubstituirNFSeRequest body de POST /api/v1/nfse/:chave/substituicao.
type SubstituirNFSeRequest struct {
	CodigoMotivo string            `json:"codigo_motivo"` // 01..05 ou 99
	Motivo       string            `json:"motivo"`        // 15 a 255 caracteres
	DPS          EmitirNFSeRequest `json:"dps"`
}

// NFSeResponse nota persistida nas respostas.
type NFSeResponse struct {
	ID                    string          `json:"id"`
	IDDPS                 string          `json:"id_dps"`
	Serie                 string          `json:"serie"`
	NumeroDPS             uint64          `json:"numero_dps"`
	Competencia           string          `json:"competencia"`
	DataEmissao           time.Time       `json:"data_emissao"`
	Valor                 decimal.Decimal `json:"valor"`
	Status                string          `json:"status"` // PENDENTE|EMITIDA|REJEITADA|CANCELADA|SUBSTITUIDA
	ChaveAcesso           string          `json:"chave_acesso,omitempty"`
	NumeroNFSe            string          `json:"numero_nfse,omitempty"`
	CodigoErro            string          `json:"codigo_erro,omitempty"`
	MensagemErro          string          `json:"mensagem_erro,omitempty"`
	ChaveSubstituida      string          `json:"chave_substituida,omitempty"`
	ProtocoloCancelamento string          `json:"protocolo_cancelamento,omitempty"`
}

// NFSeListResponse listagem paginada.
type NFSeListResponse struct {
	Items []NFSeResponse `json:"items"`
	Page  PageResponse   `json:"page"`
}

// CancelamentoResponse resultado do evento de cancelamento.
type CancelamentoResponse struct {
	ChaveAcesso string `json:"chave_acesso"`
	Protocolo   string `json:"protocolo"`
	Status      string `json:"status"`
}

// SubstituicaoResponse nota original e a nova nota emitida.
type SubstituicaoResponse struct {
	ChaveOriginal string       `json:"chave_original"`
	CodigoMotivo  string       `json:"codigo_motivo"`
	Nova          NFSeResponse `json:"nova"`
}
