package nfse_test

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/jhoicas/nfse-nacional/internal/domain/nfse"
	"github.com/stretchr/testify/assert"
)

func TestNewAuthorityError_Classificacao(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		mensagem string
		want     nfse.TipoRejeicao
	}{
		{"conflito", http.StatusConflict, "DPS já processada", nfse.RejeicaoDuplicidade},
		{"texto de duplicidade", http.StatusUnprocessableEntity, "Duplicidade de DPS", nfse.RejeicaoDuplicidade},
		{"leiaute", http.StatusBadRequest, "Elemento infDPS inválido", nfse.RejeicaoValidacao},
		{"regra de negócio", http.StatusUnprocessableEntity, "Prazo de cancelamento expirado", nfse.RejeicaoNegocio},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := nfse.NewAuthorityError(tt.status, "E999", tt.mensagem, nil)
			assert.Equal(t, tt.want, err.Tipo)
			assert.Equal(t, "E999", err.Codigo, "o código da autoridade é preservado")
			assert.Equal(t, tt.mensagem, err.Mensagem)
		})
	}
}

func TestIsRetryable(t *testing.T) {
	transporte := fmt.Errorf("enviar: %w", &nfse.TransportError{Op: "POST /nfse", Err: errors.New("connection reset")})
	assert.True(t, nfse.IsRetryable(transporte))
	assert.ErrorIs(t, transporte, nfse.ErrTransport)

	assert.False(t, nfse.IsRetryable(nfse.NewAuthorityError(http.StatusBadRequest, "E1", "x", nil)))
	assert.False(t, nfse.IsRetryable(&nfse.DecodeError{Err: errors.New("gzip")}))
	assert.False(t, nfse.IsRetryable(&nfse.SchemaError{Elemento: "end", Filho: "cMun"}))
}

func TestErros_Sentinelas(t *testing.T) {
	assert.ErrorIs(t, &nfse.SchemaError{Elemento: "end", Filho: "cMun"}, nfse.ErrSchema)
	assert.ErrorIs(t, &nfse.SignatureError{Op: "referência"}, nfse.ErrSignature)
	assert.ErrorIs(t, &nfse.DecodeError{Err: errors.New("x")}, nfse.ErrDecode)
	assert.ErrorIs(t, nfse.NewAuthorityError(500, "X", "y", nil), nfse.ErrAuthority)
	assert.NotErrorIs(t, &nfse.DecodeError{Err: errors.New("x")}, nfse.ErrValidation)
	assert.Equal(t, "nfse: leiaute: bloco <end> incompleto, falta <cMun>", (&nfse.SchemaError{Elemento: "end", Filho: "cMun"}).Error())
}
