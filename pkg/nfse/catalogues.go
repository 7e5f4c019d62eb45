// Package nfse contém catálogos, códigos e validações alinhados ao leiaute
// da NFS-e Nacional (DPS v1.01, Sefin Nacional / ADN).
package nfse

// =============================================================================
// Ambientes e URLs base (Sefin Nacional e ADN parametrização)
// =============================================================================

// Ambiente identifica o ambiente de emissão.
type Ambiente string

const (
	AmbienteHomologacao Ambiente = "homologacao" // Produção restrita
	AmbienteProducao    Ambiente = "producao"
)

const (
	SefinURLHomologacao = "https://sefin.producaorestrita.nfse.gov.br/SefinNacional"
	SefinURLProducao    = "https://sefin.nfse.gov.br/SefinNacional"

	ParametrizacaoURLHomologacao = "https://adn.producaorestrita.nfse.gov.br/parametrizacao"
	ParametrizacaoURLProducao    = "https://adn.nfse.gov.br/parametrizacao"
)

// ParseAmbiente converte o texto de configuração; vazio equivale a homologação.
func ParseAmbiente(s string) (Ambiente, bool) {
	switch Ambiente(s) {
	case "", AmbienteHomologacao:
		return AmbienteHomologacao, true
	case AmbienteProducao:
		return AmbienteProducao, true
	}
	return "", false
}

// SefinURL devolve a URL base da API de emissão para o ambiente.
func (a Ambiente) SefinURL() string {
	if a == AmbienteProducao {
		return SefinURLProducao
	}
	return SefinURLHomologacao
}

// ParametrizacaoURL devolve a URL base da API de parâmetros municipais.
func (a Ambiente) ParametrizacaoURL() string {
	if a == AmbienteProducao {
		return ParametrizacaoURLProducao
	}
	return ParametrizacaoURLHomologacao
}

// TpAmb devolve o código tpAmb da DPS: 1 = produção, 2 = homologação.
func (a Ambiente) TpAmb() string {
	if a == AmbienteProducao {
		return TpAmbProducao
	}
	return TpAmbHomologacao
}

const (
	TpAmbProducao    = "1"
	TpAmbHomologacao = "2"
)

// =============================================================================
// Endpoints (relativos às URLs base)
// =============================================================================

const (
	EndpointNFSe            = "/nfse"
	EndpointConsultaNFSe    = "/nfse/%s"
	EndpointDANFSe          = "/danfse/%s"
	EndpointEventos         = "/eventos"
	EndpointConvenio        = "/parametros_municipais/%d/convenio"
	EndpointAliquotaServico = "/parametros_municipais/%d/%s/%s/aliquota"
)

// =============================================================================
// Leiaute DPS
// =============================================================================

const (
	Namespace    = "http://www.sped.fazenda.gov.br/nfse"
	VersaoDPS    = "1.01"
	PrefixoIDDPS = "DPS"

	// TamanhoIDDPS é o comprimento fixo do Id da infDPS.
	TamanhoIDDPS = 45
	// TamanhoChaveAcesso é o comprimento da chave de acesso atribuída pela Sefin.
	TamanhoChaveAcesso = 50
)

// Tipo de emitente (tpEmit).
const (
	TpEmitPrestador     = 1
	TpEmitTomador       = 2
	TpEmitIntermediario = 3
)

// =============================================================================
// Regime tributário
// =============================================================================

// RegimeTributario enumera o regime declarado pelo prestador.
type RegimeTributario string

const (
	RegimeNormal                 RegimeTributario = "normal"
	RegimeSimplesNacional        RegimeTributario = "simples_nacional"
	RegimeSimplesNacionalExcesso RegimeTributario = "simples_excesso"
	RegimeMEI                    RegimeTributario = "mei"
)

// Códigos numéricos do regime (uso em relatórios e persistência).
var CodigosRegime = map[RegimeTributario]string{
	RegimeSimplesNacional:        "1",
	RegimeSimplesNacionalExcesso: "2",
	RegimeNormal:                 "3",
	RegimeMEI:                    "4",
}

// Valido indica se o regime pertence ao catálogo.
func (r RegimeTributario) Valido() bool {
	_, ok := CodigosRegime[r]
	return ok
}

// opSimpNac: situação perante o Simples Nacional.
const (
	OpSimpNacNaoOptante = "1"
	OpSimpNacMEI        = "2"
	OpSimpNacMEEPP      = "3"
)

// regApTribSN: regime de apuração dos tributos pelo SN.
const (
	RegApTribSNFederaisMunicipal = "1" // Tributos federais e municipal pelo SN
	RegApTribSNFederais          = "2" // Federais pelo SN, ISSQN por fora
	RegApTribSNNenhum            = "3" // Federais e municipal por fora do SN
)

// regEspTrib: regime especial de tributação.
const (
	RegEspTribNenhum                 = "0"
	RegEspTribCooperativa            = "1"
	RegEspTribEstimativa             = "2"
	RegEspTribSociedadeProfissionais = "3"
	RegEspTribMEI                    = "4"
	RegEspTribMEEPP                  = "5"
)

// =============================================================================
// Tributação municipal (tribMun)
// =============================================================================

const (
	TribISSQNOperacaoTributavel = "1"

	TpRetISSQNNaoRetido           = "1"
	TpRetISSQNRetidoTomador       = "2"
	TpRetISSQNRetidoIntermediario = "3"
)

// PTotTribSNPadrao é o percentual estimado de tributos usado quando o
// optante do Simples Nacional não informa a alíquota.
const PTotTribSNPadrao = "18.83"

// =============================================================================
// Eventos e substituição
// =============================================================================

const (
	TpEventoCancelamento = "110111"
)

// MotivoSubstituicao codifica cMotivo do grupo subst.
type MotivoSubstituicao string

const (
	MotivoDesenquadramentoSN MotivoSubstituicao = "01"
	MotivoEnquadramentoSN    MotivoSubstituicao = "02"
	MotivoInclusaoImunidade  MotivoSubstituicao = "03"
	MotivoExclusaoImunidade  MotivoSubstituicao = "04"
	MotivoRejeicaoTomador    MotivoSubstituicao = "05"
	MotivoOutros             MotivoSubstituicao = "99"
)

// ValidMotivosSubstituicao códigos de motivo aceitos no grupo subst.
var ValidMotivosSubstituicao = map[MotivoSubstituicao]bool{
	MotivoDesenquadramentoSN: true,
	MotivoEnquadramentoSN:    true,
	MotivoInclusaoImunidade:  true,
	MotivoExclusaoImunidade:  true,
	MotivoRejeicaoTomador:    true,
	MotivoOutros:             true,
}

// Limites do texto xMotivo da substituição.
const (
	MotivoSubstituicaoMin = 15
	MotivoSubstituicaoMax = 255
)

// =============================================================================
// Situação da NFS-e
// =============================================================================

const (
	StatusEmitida     = "emitida"
	StatusCancelada   = "cancelada"
	StatusSubstituida = "substituida"
)

// =============================================================================
// Unidades federativas
// =============================================================================

// UFs contém as 27 unidades federativas.
var UFs = map[string]bool{
	"AC": true, "AL": true, "AP": true, "AM": true, "BA": true, "CE": true, "DF": true,
	"ES": true, "GO": true, "MA": true, "MT": true, "MS": true, "MG": true, "PA": true,
	"PB": true, "PR": true, "PE": true, "PI": true, "RJ": true, "RN": true, "RS": true,
	"RO": true, "RR": true, "SC": true, "SP": true, "SE": true, "TO": true,
}
