// Carga do certificado ICP-Brasil a partir de .pfx (PKCS#12) ou par PEM.

package signer

import (
	"crypto/sha256"
	"crypto/tls"
	"crypto/x509"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/crypto/pkcs12"
)

// LoadFromP12 carrega certificado e chave privada de um arquivo .pfx/.p12 (certificado A1).
// A senha pode ser vazia se o arquivo não for protegido.
func LoadFromP12(path, password string) (tls.Certificate, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("ler pfx: %w", err)
	}
	priv, cert, err := pkcs12.Decode(data, password)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("decodificar pfx: %w", err)
	}
	// pkcs12.Decode devolve apenas o certificado folha; a cadeia vem do pool de CAs do canal.
	return tls.Certificate{
		Certificate: [][]byte{cert.Raw},
		PrivateKey:  priv,
		Leaf:        cert,
	}, nil
}

// LoadFromPEM carrega certificado e chave de arquivos PEM (separados ou combinados).
func LoadFromPEM(certPath, keyPath string) (tls.Certificate, error) {
	if certPath == "" {
		return tls.Certificate{}, nil
	}
	if keyPath == "" {
		keyPath = certPath
	}
	cert, err := tls.LoadX509KeyPair(certPath, keyPath)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("carregar PEM: %w", err)
	}
	return cert, nil
}

// LoadCertificate escolhe o formato: com keyPath, ou arquivo .pem/.crt, usa o
// par PEM; caso contrário trata certPath como PKCS#12.
func LoadCertificate(certPath, keyPath, password string) (tls.Certificate, error) {
	if certPath == "" {
		return tls.Certificate{}, fmt.Errorf("caminho do certificado não informado")
	}
	ext := strings.ToLower(filepath.Ext(certPath))
	if keyPath != "" || ext == ".pem" || ext == ".crt" {
		return LoadFromPEM(certPath, keyPath)
	}
	return LoadFromP12(certPath, password)
}

// CertInfo resumo do certificado para log e diagnóstico.
type CertInfo struct {
	Subject     string
	Issuer      string
	Serial      string
	NotAfter    time.Time
	Fingerprint string // SHA-256 hex
}

// Describe extrai os dados de identificação do certificado.
func Describe(cert *x509.Certificate) CertInfo {
	fp := sha256.Sum256(cert.Raw)
	return CertInfo{
		Subject:     cert.Subject.String(),
		Issuer:      cert.Issuer.String(),
		Serial:      cert.SerialNumber.Text(16),
		NotAfter:    cert.NotAfter,
		Fingerprint: hex.EncodeToString(fp[:]),
	}
}

// Expired indica se o certificado já venceu em now.
func (c CertInfo) Expired(now time.Time) bool {
	return now.After(c.NotAfter)
}
