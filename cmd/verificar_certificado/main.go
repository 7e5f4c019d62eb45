// verificar_certificado diagnostica o certificado A1 configurado: arquivo,
// senha, validade e se o CNPJ do prestador aparece no titular.
//
// Uso: go run ./cmd/verificar_certificado [-cert caminho.pfx] [-senha ...] [-chave chave.pem]
// Sem flags usa NFSE_CERT_PATH, NFSE_CERT_PASSWORD e NFSE_CERT_KEY_PATH.
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/jhoicas/nfse-nacional/internal/infrastructure/nfse/signer"
	"github.com/jhoicas/nfse-nacional/pkg/config"
	"github.com/jhoicas/nfse-nacional/pkg/nfse"
)

// avisoVencimento antecedência para alertar sobre a renovação.
const avisoVencimento = 30 * 24 * time.Hour

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Carregar configuração: %v\n", err)
		os.Exit(1)
	}
	certPath := flag.String("cert", cfg.NFSe.CertPath, "certificado .pfx/.p12 ou .pem")
	senha := flag.String("senha", cfg.NFSe.CertPassword, "senha do .pfx")
	chave := flag.String("chave", cfg.NFSe.CertKeyPath, "chave privada .pem (par PEM)")
	flag.Parse()

	fmt.Println("DIAGNÓSTICO DO CERTIFICADO A1")
	fmt.Println("-----------------------------")
	fmt.Printf("Arquivo: %s\n", *certPath)

	cert, err := signer.LoadCertificate(*certPath, *chave, *senha)
	if err != nil {
		fmt.Printf("\nERRO ao carregar: %v\n", err)
		os.Exit(1)
	}
	key, err := signer.NewRSAKeySigner(cert)
	if err != nil {
		fmt.Printf("\nERRO na chave: %v\n", err)
		os.Exit(1)
	}

	info := signer.Describe(key.Certificate())
	fmt.Printf("Titular:     %s\n", info.Subject)
	fmt.Printf("Emissor:     %s\n", info.Issuer)
	fmt.Printf("Série:       %s\n", info.Serial)
	fmt.Printf("SHA-256:     %s\n", info.Fingerprint)
	fmt.Printf("Vencimento:  %s\n", info.NotAfter.Format("02/01/2006 15:04"))

	ok := true
	now := time.Now()
	switch {
	case info.Expired(now):
		fmt.Println("\nERRO: certificado vencido.")
		ok = false
	case info.Expired(now.Add(avisoVencimento)):
		fmt.Printf("\nAVISO: certificado vence em %d dias.\n", int(info.NotAfter.Sub(now).Hours()/24))
	}

	if cnpj := nfse.NormalizarDocumento(cfg.NFSe.Prestador.CNPJ); cnpj != "" {
		if strings.Contains(info.Subject, cnpj) {
			fmt.Printf("CNPJ do prestador %s confere com o titular.\n", nfse.FormatarCNPJ(cnpj))
		} else {
			fmt.Printf("\nAVISO: o titular não contém o CNPJ do prestador %s.\n", nfse.FormatarCNPJ(cnpj))
		}
	}

	if !ok {
		os.Exit(1)
	}
	fmt.Println("\nCertificado pronto para assinar DPS.")
}
