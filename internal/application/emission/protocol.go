package emission

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	domain "github.com/jhoicas/nfse-nacional/internal/domain/nfse"
	infra "github.com/jhoicas/nfse-nacional/internal/infrastructure/nfse"
	"github.com/jhoicas/nfse-nacional/pkg/nfse"
)

// Operações (rótulos de log e métricas).
const (
	OpEmitir        = "emitir"
	OpConsultar     = "consultar"
	OpCancelar      = "cancelar"
	OpSubstituir    = "substituir"
	OpReenviar      = "reenviar"
	OpDANFSe        = "danfse"
	OpConvenio      = "convenio"
	OpAliquota      = "aliquota"
	resultadoOK     = "sucesso"
	resultadoRej    = "rejeitada"
	resultadoLocal  = "erro_local"
	resultadoTransp = "erro_transporte"
)

// Protocol orquestra emissão, consulta, cancelamento e substituição contra a
// Sefin Nacional, e as consultas de parâmetros municipais no ADN. Cada chamada
// é uma troca request/response; o Protocol não guarda estado entre chamadas.
//
//	DPS → XML (leiaute) → assinatura → GZip+Base64 → POST /nfse → resposta
type Protocol struct {
	builder        *infra.XMLBuilderService
	signer         nfse.DocumentSigner
	key            nfse.KeySigner
	sefin          infra.Channel
	parametrizacao infra.Channel
	log            zerolog.Logger
	metrics        *Metrics
}

// NewProtocol constrói o protocolo. metrics pode ser nil.
func NewProtocol(
	builder *infra.XMLBuilderService,
	signer nfse.DocumentSigner,
	key nfse.KeySigner,
	sefin infra.Channel,
	parametrizacao infra.Channel,
	logger zerolog.Logger,
	metrics *Metrics,
) *Protocol {
	return &Protocol{
		builder:        builder,
		signer:         signer,
		key:            key,
		sefin:          sefin,
		parametrizacao: parametrizacao,
		log:            logger,
		metrics:        metrics,
	}
}

// PrepararDPS codifica, assina e envelopa a DPS. Devolve o XML assinado e o
// texto pronto para o campo "dps". Não faz I/O.
func (p *Protocol) PrepararDPS(dps *domain.DPS) (signed []byte, envelope string, err error) {
	xmlBytes, err := p.builder.Build(dps)
	if err != nil {
		return nil, "", err
	}
	signed, err = p.signer.Sign(xmlBytes, dps.ID, p.key)
	if err != nil {
		return nil, "", err
	}
	envelope, err = infra.EncodeEnvelope(signed)
	if err != nil {
		return nil, "", err
	}
	return signed, envelope, nil
}

// Submit envia a DPS e interpreta a resposta. Em rejeição devolve a resposta
// (Sucesso=false) junto do *AuthorityError com o código original da Sefin.
// Não é idempotente: reenviar a mesma série/número resulta em rejeição por duplicidade.
func (p *Protocol) Submit(ctx context.Context, dps *domain.DPS) (*domain.NFSeResponse, error) {
	return p.submit(ctx, OpEmitir, dps)
}

func (p *Protocol) submit(ctx context.Context, op string, dps *domain.DPS) (*domain.NFSeResponse, error) {
	if dps == nil {
		return nil, fmt.Errorf("nfse: DPS nula")
	}
	_, envelope, err := p.PrepararDPS(dps)
	if err != nil {
		p.metrics.IncrementOutcome(op, resultadoLocal)
		return nil, err
	}
	return p.enviar(ctx, op, dps.ID, envelope)
}

// SubmitAssinada envia uma DPS já assinada por PrepararDPS, sem reassinar.
// Um reenvio após falha de transporte leva o mesmo Id e a mesma assinatura.
// op rotula log e métricas (OpEmitir, OpSubstituir ou OpReenviar).
func (p *Protocol) SubmitAssinada(ctx context.Context, op, idDPS string, signed []byte) (*domain.NFSeResponse, error) {
	if len(signed) == 0 || idDPS == "" {
		p.metrics.IncrementOutcome(op, resultadoLocal)
		return nil, fmt.Errorf("nfse: DPS assinada ausente")
	}
	envelope, err := infra.EncodeEnvelope(signed)
	if err != nil {
		p.metrics.IncrementOutcome(op, resultadoLocal)
		return nil, err
	}
	return p.enviar(ctx, op, idDPS, envelope)
}

func (p *Protocol) enviar(ctx context.Context, op, idDPS, envelope string) (*domain.NFSeResponse, error) {
	body, err := json.Marshal(infra.SubmitRequest{DPS: envelope})
	if err != nil {
		return nil, fmt.Errorf("nfse: serializar requisição: %w", err)
	}
	resp, err := p.exchange(ctx, p.sefin, op, http.MethodPost, nfse.EndpointNFSe, body)
	if err != nil {
		return nil, err
	}
	out, err := infra.ParseEmissao(resp, idDPS)
	p.outcome(op, err)
	switch {
	case err != nil:
		p.log.Warn().Err(err).Str("op", op).Str("id_dps", idDPS).Msg("nfse: DPS não aceita")
	default:
		p.log.Info().Str("op", op).Str("id_dps", idDPS).Str("chave", out.ChaveAcesso).
			Str("numero_nfse", out.NumeroNFSe).Msg("nfse: NFS-e emitida")
	}
	return out, err
}

// Consultar consulta a situação da NFS-e. Nota inexistente é resultado
// (SituacaoNaoEncontrada), não erro.
func (p *Protocol) Consultar(ctx context.Context, chave string) (*domain.ConsultaNFSe, error) {
	if err := domain.ValidarChaveAcesso(chave); err != nil {
		return nil, err
	}
	resp, err := p.exchange(ctx, p.sefin, OpConsultar, http.MethodGet, fmt.Sprintf(nfse.EndpointConsultaNFSe, chave), nil)
	if err != nil {
		return nil, err
	}
	out, err := infra.ParseConsulta(resp, chave)
	p.outcome(OpConsultar, err)
	return out, err
}

// Cancelar registra o evento de cancelamento (tpEvento 110111). Rejeições
// (ex: prazo expirado) voltam como *AuthorityError junto da resposta.
func (p *Protocol) Cancelar(ctx context.Context, chave, motivo string) (*domain.EventResponse, error) {
	if err := domain.ValidarChaveAcesso(chave); err != nil {
		return nil, err
	}
	if motivo == "" {
		return nil, &domain.ValidationError{Campo: "motivo", Motivo: "motivo do cancelamento é obrigatório"}
	}
	body, err := json.Marshal(infra.EventoRequest{TpEvento: nfse.TpEventoCancelamento, ChNFSe: chave, XMotivo: motivo})
	if err != nil {
		return nil, fmt.Errorf("nfse: serializar evento: %w", err)
	}
	resp, err := p.exchange(ctx, p.sefin, OpCancelar, http.MethodPost, nfse.EndpointEventos, body)
	if err != nil {
		return nil, err
	}
	out, err := infra.ParseEvento(resp)
	p.outcome(OpCancelar, err)
	return out, err
}

// Substituir emite a nova DPS referenciando a nota original. O tamanho do
// motivo (15 a 255) é conferido antes de qualquer troca; prazo e regras de
// tomador são da autoridade e chegam como rejeição.
func (p *Protocol) Substituir(ctx context.Context, chaveOriginal string, nova *domain.DPS, motivo string, codigo nfse.MotivoSubstituicao) (*domain.SubstituicaoNFSe, error) {
	if err := domain.ValidarMotivoSubstituicao(motivo); err != nil {
		p.metrics.IncrementOutcome(OpSubstituir, resultadoLocal)
		return nil, err
	}
	if nova == nil {
		return nil, fmt.Errorf("nfse: DPS nula")
	}
	subst, err := domain.NewSubstituicao(chaveOriginal, codigo, motivo)
	if err != nil {
		p.metrics.IncrementOutcome(OpSubstituir, resultadoLocal)
		return nil, err
	}
	dps := *nova
	dps.Substituicao = subst

	resp, err := p.submit(ctx, OpSubstituir, &dps)
	if resp == nil {
		return nil, err
	}
	return &domain.SubstituicaoNFSe{
		ChaveOriginal: subst.ChaveSubstituida,
		Codigo:        string(subst.Codigo),
		Motivo:        subst.Motivo,
		Nova:          resp,
	}, err
}

// BaixarDANFSe baixa o PDF oficial da nota.
func (p *Protocol) BaixarDANFSe(ctx context.Context, chave string) (*domain.DANFSe, error) {
	if err := domain.ValidarChaveAcesso(chave); err != nil {
		return nil, err
	}
	resp, err := p.exchange(ctx, p.sefin, OpDANFSe, http.MethodGet, fmt.Sprintf(nfse.EndpointDANFSe, chave), nil)
	if err != nil {
		return nil, err
	}
	out, err := infra.ParseDANFSe(resp, chave)
	p.outcome(OpDANFSe, err)
	return out, err
}

// ConsultarConvenio verifica a adesão do município ao sistema nacional.
func (p *Protocol) ConsultarConvenio(ctx context.Context, codigoMunicipio int) (*domain.ConvenioMunicipal, error) {
	if err := validarMunicipio(codigoMunicipio); err != nil {
		return nil, err
	}
	resp, err := p.exchange(ctx, p.parametrizacao, OpConvenio, http.MethodGet, fmt.Sprintf(nfse.EndpointConvenio, codigoMunicipio), nil)
	if err != nil {
		return nil, err
	}
	out, err := infra.ParseConvenio(resp, codigoMunicipio)
	p.outcome(OpConvenio, err)
	return out, err
}

// ConsultarAliquota consulta a alíquota de ISS do serviço no município e competência (AAAA-MM).
func (p *Protocol) ConsultarAliquota(ctx context.Context, codigoMunicipio int, codigoServico, competencia string) (*domain.AliquotaServico, error) {
	if err := validarMunicipio(codigoMunicipio); err != nil {
		return nil, err
	}
	if err := domain.ValidarCompetencia(competencia); err != nil {
		return nil, err
	}
	codigo := infra.CodigoServicoParametrizacao(codigoServico)
	path := fmt.Sprintf(nfse.EndpointAliquotaServico, codigoMunicipio, codigo, competencia)
	resp, err := p.exchange(ctx, p.parametrizacao, OpAliquota, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	out, err := infra.ParseAliquota(resp, codigoMunicipio, codigo, competencia)
	p.outcome(OpAliquota, err)
	return out, err
}

// VerificarServicoAderido indica se o município parametrizou o serviço na competência.
func (p *Protocol) VerificarServicoAderido(ctx context.Context, codigoMunicipio int, codigoServico, competencia string) (bool, error) {
	a, err := p.ConsultarAliquota(ctx, codigoMunicipio, codigoServico, competencia)
	if err != nil {
		return false, err
	}
	return a.Aderido, nil
}

// ConsultarParametros consulta o convênio e, quando o município é aderente e
// há código de serviço, a alíquota.
func (p *Protocol) ConsultarParametros(ctx context.Context, codigoMunicipio int, codigoServico, competencia string) (*domain.ParametrosMunicipais, error) {
	conv, err := p.ConsultarConvenio(ctx, codigoMunicipio)
	if err != nil {
		return nil, err
	}
	out := &domain.ParametrosMunicipais{Convenio: *conv}
	if !conv.Aderido || codigoServico == "" {
		return out, nil
	}
	out.Aliquota, err = p.ConsultarAliquota(ctx, codigoMunicipio, codigoServico, competencia)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// exchange executa a troca e registra log e métricas. Falha de rede volta
// como *TransportError; qualquer status HTTP é devolvido ao chamador.
func (p *Protocol) exchange(ctx context.Context, ch infra.Channel, op, method, path string, body []byte) (*infra.ChannelResponse, error) {
	start := time.Now()
	resp, err := ch.Send(ctx, method, path, body)
	dur := time.Since(start)
	if err != nil {
		var te *domain.TransportError
		if !errors.As(err, &te) {
			err = &domain.TransportError{Op: method + " " + path, Err: err}
		}
		p.metrics.ObserveExchange(op, "transporte", dur)
		p.metrics.IncrementOutcome(op, resultadoTransp)
		p.log.Error().Err(err).Str("op", op).Str("path", path).Dur("duracao", dur).Msg("nfse: falha de transporte")
		return nil, err
	}
	p.metrics.ObserveExchange(op, strconv.Itoa(resp.Status), dur)
	p.log.Debug().Str("op", op).Str("path", path).Int("status", resp.Status).Dur("duracao", dur).Msg("nfse: troca concluída")
	return resp, nil
}

func (p *Protocol) outcome(op string, err error) {
	switch {
	case err == nil:
		p.metrics.IncrementOutcome(op, resultadoOK)
	case errors.Is(err, domain.ErrAuthority):
		p.metrics.IncrementOutcome(op, resultadoRej)
	default:
		p.metrics.IncrementOutcome(op, resultadoLocal)
	}
}

func validarMunicipio(codigo int) error {
	if codigo < 1000000 || codigo > 9999999 {
		return &domain.ValidationError{Campo: "codigo_municipio", Motivo: "código IBGE deve ter 7 dígitos"}
	}
	return nil
}
