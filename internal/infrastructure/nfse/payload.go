package nfse

import (
	"bytes"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/beevik/etree"
	domain "github.com/jhoicas/nfse-nacional/internal/domain/nfse"
	"github.com/shopspring/decimal"
)

// ── Corpos de requisição ─────────────────────────────────────────────────────

// SubmitRequest corpo de POST /nfse.
type SubmitRequest struct {
	DPS string `json:"dps"`
}

// EventoRequest corpo de POST /eventos.
type EventoRequest struct {
	TpEvento string `json:"tpEvento"`
	ChNFSe   string `json:"chNFSe"`
	XMotivo  string `json:"xMotivo"`
}

// ── Corpos de resposta ───────────────────────────────────────────────────────

type erroPayload struct {
	Codigo      string `json:"codigo"`
	Mensagem    string `json:"mensagem"`
	Descricao   string `json:"descricao"`
	Complemento string `json:"complemento"`
	Campo       string `json:"campo"`
}

func (e erroPayload) texto() string {
	if e.Mensagem != "" {
		return e.Mensagem
	}
	if e.Complemento != "" && e.Descricao != "" {
		return e.Descricao + ": " + e.Complemento
	}
	return e.Descricao
}

type rejeicaoPayload struct {
	erroPayload
	Erros []erroPayload `json:"erros"`
}

type emissaoPayload struct {
	ChaveAcesso    string          `json:"chaveAcesso"`
	NNFSe          json.RawMessage `json:"nNFSe"`
	IDDPS          string          `json:"idDps"`
	NFSe           string          `json:"nfse"`
	NFSeXMLGZipB64 string          `json:"nfseXmlGZipB64"`
}

type eventoPayload struct {
	Protocolo json.RawMessage `json:"protocolo"`
}

type consultaPayload struct {
	ChaveAcesso    string          `json:"chaveAcesso"`
	NNFSe          json.RawMessage `json:"nNFSe"`
	Situacao       string          `json:"situacao"`
	DhEmi          string          `json:"dhEmi"`
	VServPrest     json.RawMessage `json:"vServPrest"`
	CNPJPrest      string          `json:"CNPJPrest"`
	CPFToma        string          `json:"CPFToma"`
	CNPJToma       string          `json:"CNPJToma"`
	NFSe           string          `json:"nfse"`
	NFSeXMLGZipB64 string          `json:"nfseXmlGZipB64"`
}

// ── Interpretação ────────────────────────────────────────────────────────────

// Sucesso indica status 200 ou 201.
func Sucesso(status int) bool {
	return status == http.StatusOK || status == http.StatusCreated
}

// AuthorityErrorFrom extrai código e mensagem da rejeição sem traduzi-los.
// Sem corpo JSON o código é o status HTTP e a mensagem o texto recebido.
func AuthorityErrorFrom(resp *ChannelResponse) *domain.AuthorityError {
	var p rejeicaoPayload
	codigo, mensagem := "", ""
	var detalhes []domain.FieldError
	if err := json.Unmarshal(resp.Body, &p); err == nil {
		codigo, mensagem = p.Codigo, p.texto()
		for _, e := range p.Erros {
			detalhes = append(detalhes, domain.FieldError{Codigo: e.Codigo, Mensagem: e.texto(), Campo: e.Campo})
		}
		if len(detalhes) > 0 {
			if codigo == "" {
				codigo = detalhes[0].Codigo
			}
			if mensagem == "" {
				mensagem = detalhes[0].Mensagem
			}
		}
	} else {
		mensagem = strings.TrimSpace(string(resp.Body))
	}
	if codigo == "" {
		codigo = strconv.Itoa(resp.Status)
	}
	if mensagem == "" {
		mensagem = "Erro desconhecido"
	}
	return domain.NewAuthorityError(resp.Status, codigo, mensagem, detalhes)
}

// ParseEmissao interpreta a resposta de POST /nfse. Em rejeição devolve a
// resposta com Sucesso=false junto do *AuthorityError. Se a nota foi emitida
// mas o XML devolvido não decodifica, a resposta vem preenchida junto do *DecodeError.
func ParseEmissao(resp *ChannelResponse, idDPS string) (*domain.NFSeResponse, error) {
	if !Sucesso(resp.Status) {
		ae := AuthorityErrorFrom(resp)
		return &domain.NFSeResponse{
			Sucesso:      false,
			IDDPS:        idDPS,
			CodigoErro:   ae.Codigo,
			MensagemErro: ae.Mensagem,
			Erros:        ae.Detalhes,
		}, ae
	}
	var p emissaoPayload
	if err := json.Unmarshal(resp.Body, &p); err != nil {
		return nil, &domain.DecodeError{Err: err}
	}
	out := &domain.NFSeResponse{
		Sucesso:     true,
		ChaveAcesso: p.ChaveAcesso,
		NumeroNFSe:  rawString(p.NNFSe),
		IDDPS:       idDPS,
	}
	if p.IDDPS != "" {
		out.IDDPS = p.IDDPS
	}
	envelope := firstNonEmpty(p.NFSe, p.NFSeXMLGZipB64)
	if envelope == "" {
		return out, nil
	}
	doc, err := DecodeEnvelope(envelope)
	if err != nil {
		return out, err
	}
	out.XMLNFSe = doc
	if out.NumeroNFSe == "" {
		out.NumeroNFSe = ElementText(doc, "nNFSe")
	}
	if out.ChaveAcesso == "" {
		out.ChaveAcesso = chaveDoXML(doc)
	}
	return out, nil
}

// ParseEvento interpreta a resposta de POST /eventos.
func ParseEvento(resp *ChannelResponse) (*domain.EventResponse, error) {
	if !Sucesso(resp.Status) {
		ae := AuthorityErrorFrom(resp)
		return &domain.EventResponse{Sucesso: false, CodigoErro: ae.Codigo, MensagemErro: ae.Mensagem}, ae
	}
	var p eventoPayload
	if len(bytes.TrimSpace(resp.Body)) > 0 {
		if err := json.Unmarshal(resp.Body, &p); err != nil {
			return nil, &domain.DecodeError{Err: err}
		}
	}
	return &domain.EventResponse{Sucesso: true, Protocolo: rawString(p.Protocolo)}, nil
}

// ParseConsulta interpreta GET /nfse/{chave}. 404 é resultado (não encontrada), não erro.
func ParseConsulta(resp *ChannelResponse, chave string) (*domain.ConsultaNFSe, error) {
	if resp.Status == http.StatusNotFound {
		return &domain.ConsultaNFSe{ChaveAcesso: chave, Situacao: domain.SituacaoNaoEncontrada}, nil
	}
	if resp.Status != http.StatusOK {
		return nil, AuthorityErrorFrom(resp)
	}
	var p consultaPayload
	if err := json.Unmarshal(resp.Body, &p); err != nil {
		return nil, &domain.DecodeError{Err: err}
	}
	out := &domain.ConsultaNFSe{
		ChaveAcesso:      firstNonEmpty(p.ChaveAcesso, chave),
		NumeroNFSe:       rawString(p.NNFSe),
		Situacao:         parseSituacao(p.Situacao),
		CNPJPrestador:    p.CNPJPrest,
		DocumentoTomador: firstNonEmpty(p.CPFToma, p.CNPJToma),
	}
	if p.DhEmi != "" {
		if t, err := time.Parse(time.RFC3339, p.DhEmi); err == nil {
			out.DataEmissao = t
		}
	}
	if v := rawString(p.VServPrest); v != "" {
		if d, err := decimal.NewFromString(v); err == nil {
			out.ValorServicos = d
		}
	}
	if envelope := firstNonEmpty(p.NFSe, p.NFSeXMLGZipB64); envelope != "" {
		doc, err := DecodeEnvelope(envelope)
		if err != nil {
			return out, err
		}
		out.XMLNFSe = doc
		if out.NumeroNFSe == "" {
			out.NumeroNFSe = ElementText(doc, "nNFSe")
		}
	}
	return out, nil
}

// ParseDANFSe interpreta GET /danfse/{chave}: 200 traz o PDF, 404 indica nota inexistente.
func ParseDANFSe(resp *ChannelResponse, chave string) (*domain.DANFSe, error) {
	switch {
	case resp.Status == http.StatusNotFound:
		return &domain.DANFSe{ChaveAcesso: chave}, nil
	case resp.Status != http.StatusOK:
		return nil, AuthorityErrorFrom(resp)
	}
	return &domain.DANFSe{ChaveAcesso: chave, Encontrado: true, PDF: resp.Body}, nil
}

// ParseConvenio interpreta /parametros_municipais/{cMun}/convenio. 404 = não aderido.
func ParseConvenio(resp *ChannelResponse, codigoMunicipio int) (*domain.ConvenioMunicipal, error) {
	out := &domain.ConvenioMunicipal{CodigoMunicipio: codigoMunicipio}
	switch {
	case resp.Status == http.StatusNotFound:
		return out, nil
	case resp.Status != http.StatusOK:
		return nil, AuthorityErrorFrom(resp)
	}
	out.Aderido = true
	if len(bytes.TrimSpace(resp.Body)) == 0 {
		return out, nil
	}
	if err := json.Unmarshal(resp.Body, &out.Dados); err != nil {
		return nil, &domain.DecodeError{Err: err}
	}
	if v, ok := out.Dados["aderido"].(bool); ok {
		out.Aderido = v
	}
	return out, nil
}

// ParseAliquota interpreta a consulta de alíquota. O corpo pode ser um objeto
// (aliquota ou vlAliq) ou apenas o número. 404 = serviço não aderido.
func ParseAliquota(resp *ChannelResponse, codigoMunicipio int, codigoServico, competencia string) (*domain.AliquotaServico, error) {
	out := &domain.AliquotaServico{CodigoMunicipio: codigoMunicipio, CodigoServico: codigoServico, Competencia: competencia}
	switch {
	case resp.Status == http.StatusNotFound:
		return out, nil
	case resp.Status != http.StatusOK:
		return nil, AuthorityErrorFrom(resp)
	}
	out.Aderido = true
	body := bytes.TrimSpace(resp.Body)
	if len(body) == 0 {
		return out, nil
	}
	if body[0] == '{' {
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(body, &obj); err != nil {
			return nil, &domain.DecodeError{Err: err}
		}
		dados := map[string]any{}
		_ = json.Unmarshal(body, &dados)
		out.Dados = dados
		for _, campo := range []string{"aliquota", "vlAliq"} {
			if raw, ok := obj[campo]; ok {
				if d, err := decimal.NewFromString(rawString(raw)); err == nil {
					out.Aliquota = &d
					break
				}
			}
		}
		return out, nil
	}
	d, err := decimal.NewFromString(rawString(body))
	if err != nil {
		return nil, &domain.DecodeError{Err: err}
	}
	out.Aliquota = &d
	out.Dados = rawString(body)
	return out, nil
}

// ── Auxiliares ───────────────────────────────────────────────────────────────

// CodigoServicoParametrizacao remove os pontos e completa com zeros à direita até 9 dígitos.
func CodigoServicoParametrizacao(codigo string) string {
	c := strings.ReplaceAll(strings.TrimSpace(codigo), ".", "")
	for len(c) < 9 {
		c += "0"
	}
	return c
}

// ElementText devolve o texto do primeiro elemento com a tag informada (vazio se não houver).
func ElementText(doc []byte, tag string) string {
	d := etree.NewDocument()
	if err := d.ReadFromBytes(doc); err != nil {
		return ""
	}
	el := d.FindElement("//" + tag)
	if el == nil {
		return ""
	}
	return strings.TrimSpace(el.Text())
}

// chaveDoXML lê a chave do atributo Id de infNFSe ("NFS" + 50 dígitos).
func chaveDoXML(doc []byte) string {
	d := etree.NewDocument()
	if err := d.ReadFromBytes(doc); err != nil {
		return ""
	}
	el := d.FindElement("//infNFSe")
	if el == nil {
		return ""
	}
	return strings.TrimPrefix(el.SelectAttrValue("Id", ""), "NFS")
}

func parseSituacao(s string) domain.Situacao {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "cancelada":
		return domain.SituacaoCancelada
	case "substituida", "substituída":
		return domain.SituacaoSubstituida
	}
	return domain.SituacaoEmitida
}

// rawString aceita valor JSON string ou número e devolve o texto.
func rawString(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
