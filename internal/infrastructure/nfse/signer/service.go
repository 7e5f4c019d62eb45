// Serviço de assinatura digital XML-DSig envelopada da DPS.
// Insere <Signature> como último filho do elemento referenciado (infDPS).

package signer

import (
	"bytes"
	"crypto/sha256"
	"encoding/base64"
	"encoding/xml"
	"errors"
	"fmt"

	"github.com/beevik/etree"
	domain "github.com/jhoicas/nfse-nacional/internal/domain/nfse"
	"github.com/jhoicas/nfse-nacional/pkg/nfse"
	"github.com/ucarion/c14n"
)

// DigitalSignatureService implementa nfse.DocumentSigner.
type DigitalSignatureService struct{}

// NewDigitalSignatureService cria o serviço.
func NewDigitalSignatureService() *DigitalSignatureService {
	return &DigitalSignatureService{}
}

// Sign assina o elemento cujo atributo Id é referenceID. O digest cobre o
// elemento canonicalizado (C14N inclusiva) antes da inserção da Signature,
// equivalente à transformação enveloped-signature.
func (s *DigitalSignatureService) Sign(xmlBytes []byte, referenceID string, key nfse.KeySigner) ([]byte, error) {
	if len(xmlBytes) == 0 {
		return nil, &domain.SignatureError{Op: "documento", Err: errors.New("XML vazio")}
	}
	if referenceID == "" {
		return nil, &domain.SignatureError{Op: "referência", Err: errors.New("Id de referência vazio")}
	}
	if key == nil || key.Certificate() == nil {
		return nil, &domain.SignatureError{Op: "chave", Err: errors.New("chave de assinatura sem certificado")}
	}

	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(xmlBytes); err != nil {
		return nil, &domain.SignatureError{Op: "parsear", Err: err}
	}
	target := findByID(doc.Root(), referenceID)
	if target == nil {
		return nil, &domain.SignatureError{Op: "referência", Err: fmt.Errorf("elemento com Id %q não encontrado", referenceID)}
	}

	// 1) Digest do elemento referenciado
	canonical, err := canonicalizeElement(target)
	if err != nil {
		return nil, &domain.SignatureError{Op: "canonicalizar", Err: err}
	}
	digest := sha256.Sum256(canonical)

	// 2) SignedInfo já posicionado no documento, para herdar os namespaces corretos
	sig := etree.NewElement("Signature")
	sig.CreateAttr("xmlns", NamespaceDS)
	signedInfo := buildSignedInfo(sig, referenceID, base64.StdEncoding.EncodeToString(digest[:]))
	target.AddChild(sig)

	canonicalSI, err := canonicalizeElement(signedInfo)
	if err != nil {
		return nil, &domain.SignatureError{Op: "canonicalizar SignedInfo", Err: err}
	}
	value, err := key.SignSHA256(canonicalSI)
	if err != nil {
		var se *domain.SignatureError
		if errors.As(err, &se) {
			return nil, err
		}
		return nil, &domain.SignatureError{Op: "assinar", Err: err}
	}

	// 3) SignatureValue e KeyInfo (X509Certificate)
	sig.CreateElement("SignatureValue").SetText(base64.StdEncoding.EncodeToString(value))
	sig.CreateElement("KeyInfo").
		CreateElement("X509Data").
		CreateElement("X509Certificate").
		SetText(base64.StdEncoding.EncodeToString(key.Certificate().Raw))

	var out bytes.Buffer
	if _, err := doc.WriteTo(&out); err != nil {
		return nil, &domain.SignatureError{Op: "serializar", Err: err}
	}
	return out.Bytes(), nil
}

func buildSignedInfo(sig *etree.Element, referenceID, digestB64 string) *etree.Element {
	si := sig.CreateElement("SignedInfo")
	si.CreateElement("CanonicalizationMethod").CreateAttr("Algorithm", AlgC14N)
	si.CreateElement("SignatureMethod").CreateAttr("Algorithm", AlgRSASHA256)
	ref := si.CreateElement("Reference")
	ref.CreateAttr("URI", "#"+referenceID)
	transforms := ref.CreateElement("Transforms")
	transforms.CreateElement("Transform").CreateAttr("Algorithm", TransformEnveloped)
	transforms.CreateElement("Transform").CreateAttr("Algorithm", AlgC14N)
	ref.CreateElement("DigestMethod").CreateAttr("Algorithm", AlgSHA256)
	ref.CreateElement("DigestValue").SetText(digestB64)
	return si
}

// canonicalizeElement aplica C14N inclusiva a um subconjunto do documento: o
// elemento recebe as declarações de namespace herdadas dos ancestrais.
func canonicalizeElement(el *etree.Element) ([]byte, error) {
	cp := el.Copy()
	for _, a := range inheritedNamespaces(el) {
		cp.CreateAttr(a.FullKey(), a.Value)
	}
	doc := etree.NewDocument()
	doc.SetRoot(cp)
	raw, err := doc.WriteToBytes()
	if err != nil {
		return nil, err
	}
	return canonicalizeXML(raw)
}

func canonicalizeXML(data []byte) ([]byte, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))
	dec.Entity = map[string]string{}
	return c14n.Canonicalize(dec)
}

// inheritedNamespaces declarações xmlns em escopo vindas dos ancestrais e não
// redeclaradas no próprio elemento. A mais próxima prevalece.
func inheritedNamespaces(el *etree.Element) []etree.Attr {
	seen := map[string]bool{}
	for _, a := range el.Attr {
		if isNamespaceDecl(a) {
			seen[a.FullKey()] = true
		}
	}
	var out []etree.Attr
	for p := el.Parent(); p != nil; p = p.Parent() {
		for _, a := range p.Attr {
			if isNamespaceDecl(a) && !seen[a.FullKey()] {
				seen[a.FullKey()] = true
				out = append(out, a)
			}
		}
	}
	return out
}

func isNamespaceDecl(a etree.Attr) bool {
	return a.Space == "xmlns" || (a.Space == "" && a.Key == "xmlns")
}

func findByID(el *etree.Element, id string) *etree.Element {
	if el == nil {
		return nil
	}
	if el.SelectAttrValue(attrID, "") == id {
		return el
	}
	for _, c := range el.ChildElements() {
		if found := findByID(c, id); found != nil {
			return found
		}
	}
	return nil
}

var _ nfse.DocumentSigner = (*DigitalSignatureService)(nil)
