package nfse

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"io"

	"github.com/klauspost/compress/gzip"

	domain "github.com/jhoicas/nfse-nacional/internal/domain/nfse"
)

// EncodeEnvelope compacta o documento com GZip e codifica em Base64 padrão.
// É a forma exigida para o campo "dps" e devolvida no campo "nfse".
func EncodeEnvelope(doc []byte) (string, error) {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write(doc); err != nil {
		return "", fmt.Errorf("nfse: gzip: escrever: %w", err)
	}
	if err := zw.Close(); err != nil {
		return "", fmt.Errorf("nfse: gzip: fechar: %w", err)
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// DecodeEnvelope desfaz EncodeEnvelope. Texto Base64 inválido ou fluxo GZip
// corrompido/truncado resultam em *DecodeError.
func DecodeEnvelope(text string) ([]byte, error) {
	raw, err := base64.StdEncoding.DecodeString(text)
	if err != nil {
		return nil, &domain.DecodeError{Err: fmt.Errorf("base64: %w", err)}
	}
	zr, err := gzip.NewReader(bytes.NewReader(raw))
	if err != nil {
		return nil, &domain.DecodeError{Err: fmt.Errorf("gzip: %w", err)}
	}
	defer zr.Close()
	out, err := io.ReadAll(zr)
	if err != nil {
		return nil, &domain.DecodeError{Err: fmt.Errorf("gzip: %w", err)}
	}
	return out, nil
}
