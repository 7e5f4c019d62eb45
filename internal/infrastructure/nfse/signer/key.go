package signer

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"

	domain "github.com/jhoicas/nfse-nacional/internal/domain/nfse"
	"github.com/jhoicas/nfse-nacional/pkg/nfse"
)

// RSAKeySigner implementa nfse.KeySigner com uma chave RSA em memória.
type RSAKeySigner struct {
	priv *rsa.PrivateKey
	cert *x509.Certificate
}

// NewRSAKeySigner extrai chave e certificado folha de um tls.Certificate.
func NewRSAKeySigner(cert tls.Certificate) (*RSAKeySigner, error) {
	if len(cert.Certificate) == 0 {
		return nil, &domain.SignatureError{Op: "chave", Err: errors.New("certificado vazio")}
	}
	priv, ok := cert.PrivateKey.(*rsa.PrivateKey)
	if !ok {
		return nil, &domain.SignatureError{Op: "chave", Err: errors.New("o certificado deve incluir chave privada RSA")}
	}
	leaf := cert.Leaf
	if leaf == nil {
		var err error
		leaf, err = x509.ParseCertificate(cert.Certificate[0])
		if err != nil {
			return nil, &domain.SignatureError{Op: "chave", Err: fmt.Errorf("parsear certificado: %w", err)}
		}
	}
	return &RSAKeySigner{priv: priv, cert: leaf}, nil
}

// SignSHA256 assina o SHA-256 de data com PKCS#1 v1.5.
func (k *RSAKeySigner) SignSHA256(data []byte) ([]byte, error) {
	h := sha256.Sum256(data)
	sig, err := rsa.SignPKCS1v15(rand.Reader, k.priv, crypto.SHA256, h[:])
	if err != nil {
		return nil, &domain.SignatureError{Op: "assinar", Err: err}
	}
	return sig, nil
}

// Certificate devolve o certificado folha.
func (k *RSAKeySigner) Certificate() *x509.Certificate { return k.cert }

var _ nfse.KeySigner = (*RSAKeySigner)(nil)
