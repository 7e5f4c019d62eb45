package nfse

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Sentinelas por classe de erro. Cada tipo concreto responde a errors.Is com a sua.
var (
	ErrValidation = errors.New("nfse: dados inválidos")
	ErrSchema     = errors.New("nfse: estrutura do leiaute inválida")
	ErrSignature  = errors.New("nfse: falha na assinatura")
	ErrDecode     = errors.New("nfse: payload inválido")
	ErrTransport  = errors.New("nfse: falha de comunicação")
	ErrAuthority  = errors.New("nfse: rejeição da autoridade")
)

// ── Validação (local, antes da codificação) ──────────────────────────────────

// ValidationError indica um campo do modelo que não respeita a regra de formato.
type ValidationError struct {
	Campo  string
	Motivo string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("nfse: campo %s: %s", e.Campo, e.Motivo)
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// ValidationErrors agrega todas as falhas encontradas numa construção.
type ValidationErrors []*ValidationError

func (es ValidationErrors) Error() string {
	msgs := make([]string, len(es))
	for i, e := range es {
		msgs[i] = e.Campo + ": " + e.Motivo
	}
	return "nfse: dados inválidos: " + strings.Join(msgs, "; ")
}

func (es ValidationErrors) Unwrap() []error {
	out := make([]error, len(es))
	for i, e := range es {
		out[i] = e
	}
	return out
}

// Campos devolve os nomes dos campos com falha, na ordem de detecção.
func (es ValidationErrors) Campos() []string {
	out := make([]string, len(es))
	for i, e := range es {
		out[i] = e.Campo
	}
	return out
}

func newValidationError(campo, motivo string) *ValidationError {
	return &ValidationError{Campo: campo, Motivo: motivo}
}

// ── Leiaute ──────────────────────────────────────────────────────────────────

// SchemaError indica um bloco condicional incompleto ou um elemento obrigatório ausente.
type SchemaError struct {
	Elemento string // bloco (ex: "end")
	Filho    string // elemento faltante (ex: "cMun")
	Motivo   string // preenchido quando o problema não é ausência
}

func (e *SchemaError) Error() string {
	if e.Motivo != "" {
		return fmt.Sprintf("nfse: leiaute: <%s>: %s", e.Elemento, e.Motivo)
	}
	if e.Filho == "" {
		return fmt.Sprintf("nfse: leiaute: elemento <%s> ausente", e.Elemento)
	}
	return fmt.Sprintf("nfse: leiaute: bloco <%s> incompleto, falta <%s>", e.Elemento, e.Filho)
}

func (e *SchemaError) Is(target error) bool { return target == ErrSchema }

// ── Assinatura ───────────────────────────────────────────────────────────────

// SignatureError cobre chave inutilizável, falha de canonicalização ou referência inexistente.
type SignatureError struct {
	Op  string
	Err error
}

func (e *SignatureError) Error() string {
	if e.Err == nil {
		return "nfse: assinatura: " + e.Op
	}
	return fmt.Sprintf("nfse: assinatura: %s: %v", e.Op, e.Err)
}

func (e *SignatureError) Unwrap() error { return e.Err }

func (e *SignatureError) Is(target error) bool { return target == ErrSignature }

// ── Envelope ─────────────────────────────────────────────────────────────────

// DecodeError indica texto base64 inválido ou fluxo gzip corrompido/truncado.
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string { return fmt.Sprintf("nfse: decodificar envelope: %v", e.Err) }

func (e *DecodeError) Unwrap() error { return e.Err }

func (e *DecodeError) Is(target error) bool { return target == ErrDecode }

// ── Transporte ───────────────────────────────────────────────────────────────

// TransportError indica falha do canal (conexão, timeout, resposta ilegível).
// É a única classe elegível para nova tentativa pelo chamador.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("nfse: transporte: %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

func (e *TransportError) Is(target error) bool { return target == ErrTransport }

// Temporary sinaliza que a operação pode ser repetida.
func (e *TransportError) Temporary() bool { return true }

// ── Autoridade ───────────────────────────────────────────────────────────────

// TipoRejeicao subdivide as rejeições da Sefin.
type TipoRejeicao string

const (
	RejeicaoValidacao   TipoRejeicao = "validacao"
	RejeicaoNegocio     TipoRejeicao = "negocio"
	RejeicaoDuplicidade TipoRejeicao = "duplicidade"
)

// FieldError detalhe de rejeição devolvido pela autoridade.
type FieldError struct {
	Codigo   string `json:"codigo,omitempty"`
	Mensagem string `json:"mensagem,omitempty"`
	Campo    string `json:"campo,omitempty"`
}

// AuthorityError preserva literalmente o código e a mensagem da autoridade.
type AuthorityError struct {
	Tipo       TipoRejeicao
	Codigo     string
	Mensagem   string
	StatusHTTP int
	Detalhes   []FieldError
}

func (e *AuthorityError) Error() string {
	return fmt.Sprintf("nfse: rejeição [%s] %s", e.Codigo, e.Mensagem)
}

func (e *AuthorityError) Is(target error) bool { return target == ErrAuthority }

// NewAuthorityError classifica a rejeição pelo status HTTP e pelo texto da autoridade.
func NewAuthorityError(status int, codigo, mensagem string, detalhes []FieldError) *AuthorityError {
	tipo := RejeicaoNegocio
	switch {
	case status == http.StatusConflict || mencionaDuplicidade(mensagem, detalhes):
		tipo = RejeicaoDuplicidade
	case status == http.StatusBadRequest:
		tipo = RejeicaoValidacao
	}
	return &AuthorityError{
		Tipo:       tipo,
		Codigo:     codigo,
		Mensagem:   mensagem,
		StatusHTTP: status,
		Detalhes:   detalhes,
	}
}

func mencionaDuplicidade(mensagem string, detalhes []FieldError) bool {
	if strings.Contains(strings.ToLower(mensagem), "duplic") {
		return true
	}
	for _, d := range detalhes {
		if strings.Contains(strings.ToLower(d.Mensagem), "duplic") {
			return true
		}
	}
	return false
}

// IsRetryable informa se o erro admite nova tentativa (apenas falhas de transporte).
func IsRetryable(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}
