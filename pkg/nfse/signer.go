// Portas de assinatura digital da DPS (XML-DSig envelopada, RSA-SHA256).

package nfse

import "crypto/x509"

// KeySigner é a capacidade de assinatura injetada: o material de chave nunca sai dela.
type KeySigner interface {
	// SignSHA256 assina o digest SHA-256 de data e devolve a assinatura PKCS#1 v1.5.
	SignSHA256(data []byte) ([]byte, error)
	// Certificate devolve o certificado público que acompanha a assinatura (KeyInfo).
	Certificate() *x509.Certificate
}

// DocumentSigner assina um XML e devolve o documento com a Signature embutida.
type DocumentSigner interface {
	// Sign localiza o elemento com Id igual a referenceID, assina-o e insere
	// a Signature como último filho desse mesmo elemento.
	Sign(xmlBytes []byte, referenceID string, key KeySigner) ([]byte, error)
}
