package signer

import (
	"bytes"
	"crypto"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/beevik/etree"
	domain "github.com/jhoicas/nfse-nacional/internal/domain/nfse"
)

// Verify confere uma assinatura envelopada produzida por Sign: recalcula o
// digest do elemento referenciado sem a Signature e valida SignatureValue
// contra o certificado de KeyInfo. Devolve o certificado do signatário.
func Verify(xmlBytes []byte) (*x509.Certificate, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(xmlBytes); err != nil {
		return nil, &domain.SignatureError{Op: "verificar", Err: err}
	}
	sig := findSignature(doc.Root())
	if sig == nil {
		return nil, &domain.SignatureError{Op: "verificar", Err: errors.New("Signature não encontrada")}
	}
	si := sig.SelectElement("SignedInfo")
	if si == nil {
		return nil, &domain.SignatureError{Op: "verificar", Err: errors.New("SignedInfo ausente")}
	}
	if alg := attrOf(si.SelectElement("SignatureMethod"), "Algorithm"); alg != AlgRSASHA256 {
		return nil, &domain.SignatureError{Op: "verificar", Err: fmt.Errorf("SignatureMethod não suportado: %q", alg)}
	}
	ref := si.SelectElement("Reference")
	uri := attrOf(ref, "URI")
	if !strings.HasPrefix(uri, "#") || len(uri) == 1 {
		return nil, &domain.SignatureError{Op: "verificar", Err: fmt.Errorf("Reference URI inválida: %q", uri)}
	}
	if alg := attrOf(ref.SelectElement("DigestMethod"), "Algorithm"); alg != AlgSHA256 {
		return nil, &domain.SignatureError{Op: "verificar", Err: fmt.Errorf("DigestMethod não suportado: %q", alg)}
	}
	target := findByID(doc.Root(), uri[1:])
	if target == nil {
		return nil, &domain.SignatureError{Op: "verificar", Err: fmt.Errorf("elemento %s não encontrado", uri)}
	}
	if sig.Parent() != target {
		return nil, &domain.SignatureError{Op: "verificar", Err: errors.New("Signature não está envelopada no elemento referenciado")}
	}

	canonicalSI, err := canonicalizeElement(si)
	if err != nil {
		return nil, &domain.SignatureError{Op: "canonicalizar SignedInfo", Err: err}
	}

	// Transformação enveloped-signature
	target.RemoveChild(sig)
	canonical, err := canonicalizeElement(target)
	if err != nil {
		return nil, &domain.SignatureError{Op: "canonicalizar", Err: err}
	}
	digest := sha256.Sum256(canonical)
	expected, err := decodeB64(textOf(ref.SelectElement("DigestValue")))
	if err != nil {
		return nil, &domain.SignatureError{Op: "verificar", Err: fmt.Errorf("DigestValue: %w", err)}
	}
	if !bytes.Equal(digest[:], expected) {
		return nil, &domain.SignatureError{Op: "verificar", Err: errors.New("digest não confere: documento alterado")}
	}

	certDER, err := decodeB64(textOf(sig.FindElement("./KeyInfo/X509Data/X509Certificate")))
	if err != nil {
		return nil, &domain.SignatureError{Op: "verificar", Err: fmt.Errorf("X509Certificate: %w", err)}
	}
	cert, err := x509.ParseCertificate(certDER)
	if err != nil {
		return nil, &domain.SignatureError{Op: "verificar", Err: fmt.Errorf("parsear certificado: %w", err)}
	}
	pub, ok := cert.PublicKey.(*rsa.PublicKey)
	if !ok {
		return nil, &domain.SignatureError{Op: "verificar", Err: errors.New("certificado sem chave pública RSA")}
	}
	value, err := decodeB64(textOf(sig.SelectElement("SignatureValue")))
	if err != nil {
		return nil, &domain.SignatureError{Op: "verificar", Err: fmt.Errorf("SignatureValue: %w", err)}
	}
	h := sha256.Sum256(canonicalSI)
	if err := rsa.VerifyPKCS1v15(pub, crypto.SHA256, h[:], value); err != nil {
		return nil, &domain.SignatureError{Op: "verificar", Err: fmt.Errorf("SignatureValue inválido: %w", err)}
	}
	return cert, nil
}

func findSignature(el *etree.Element) *etree.Element {
	if el == nil {
		return nil
	}
	if el.Tag == "Signature" && el.NamespaceURI() == NamespaceDS {
		return el
	}
	for _, c := range el.ChildElements() {
		if found := findSignature(c); found != nil {
			return found
		}
	}
	return nil
}

func attrOf(el *etree.Element, key string) string {
	if el == nil {
		return ""
	}
	return el.SelectAttrValue(key, "")
}

func textOf(el *etree.Element) string {
	if el == nil {
		return ""
	}
	return el.Text()
}

// decodeB64 tolera quebras de linha dentro do valor (comum em certificados).
func decodeB64(s string) ([]byte, error) {
	return base64.StdEncoding.DecodeString(strings.Join(strings.Fields(s), ""))
}
