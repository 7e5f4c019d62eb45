package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Status de uma NFS-e no ciclo local de emissão.
const (
	NFSeStatusPendente    = "PENDENTE"    // DPS gerada, envio não confirmado
	NFSeStatusEmitida     = "EMITIDA"     // Autorizada pela SEFIN
	NFSeStatusRejeitada   = "REJEITADA"   // Rejeitada com código da autoridade
	NFSeStatusCancelada   = "CANCELADA"   // Evento de cancelamento registrado
	NFSeStatusSubstituida = "SUBSTITUIDA" // Substituída por outra nota
)

// NotaFiscal registro persistido de uma DPS e da NFS-e resultante.
type NotaFiscal struct {
	ID                    string
	CompanyID             string
	IDDPS                 string // Id da DPS (45 caracteres)
	Serie                 string
	NumeroDPS             uint64
	Competencia           string // AAAA-MM
	DataEmissao           time.Time
	CNPJPrestador         string
	DocumentoTomador      string // CPF ou CNPJ; vazio quando não identificado
	NomeTomador           string
	CodigoServico         string
	Descricao             string
	Valor                 decimal.Decimal
	Status                string
	ChaveAcesso           string
	NumeroNFSe            string
	XMLAssinado           string
	XMLNFSe               string
	CodigoErro            string
	MensagemErro          string
	ChaveSubstituida      string // chave da nota que esta substitui
	ProtocoloCancelamento string
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

// Cancelavel indica se a nota ainda admite evento de cancelamento ou substituição.
func (n *NotaFiscal) Cancelavel() bool {
	return n.Status == NFSeStatusEmitida
}
