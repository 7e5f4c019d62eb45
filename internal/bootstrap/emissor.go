// Package bootstrap monta o emissor NFS-e a partir da configuração; é
// compartilhado pela API e pelos utilitários de linha de comando.
package bootstrap

import (
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/jhoicas/nfse-nacional/internal/application/emission"
	domain "github.com/jhoicas/nfse-nacional/internal/domain/nfse"
	infra "github.com/jhoicas/nfse-nacional/internal/infrastructure/nfse"
	"github.com/jhoicas/nfse-nacional/internal/infrastructure/nfse/signer"
	"github.com/jhoicas/nfse-nacional/pkg/config"
	"github.com/jhoicas/nfse-nacional/pkg/nfse"
)

// Emissor Protocol pronto para uso e o resumo do certificado carregado.
type Emissor struct {
	Protocol    *emission.Protocol
	Certificado signer.CertInfo
}

// NewEmissor carrega o certificado A1, abre os canais mTLS da Sefin e do ADN
// e monta o Protocol. Certificado vencido é erro. metrics pode ser nil.
func NewEmissor(cfg config.NFSeConfig, log zerolog.Logger, metrics *emission.Metrics) (*Emissor, error) {
	cert, err := signer.LoadCertificate(cfg.CertPath, cfg.CertKeyPath, cfg.CertPassword)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: certificado: %w", err)
	}
	key, err := signer.NewRSAKeySigner(cert)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: chave de assinatura: %w", err)
	}
	info := signer.Describe(key.Certificate())
	if info.Expired(time.Now()) {
		return nil, fmt.Errorf("bootstrap: certificado %s vencido em %s", info.Subject, info.NotAfter.Format(time.DateOnly))
	}
	if cnpj := nfse.NormalizarDocumento(cfg.Prestador.CNPJ); cnpj != "" && !strings.Contains(info.Subject, cnpj) {
		log.Warn().Str("subject", info.Subject).Str("cnpj_prestador", cnpj).Msg("bootstrap: certificado não contém o CNPJ do prestador")
	}

	sefin, err := infra.NewHTTPChannel(infra.HTTPChannelConfig{
		BaseURL:     cfg.Ambiente.SefinURL(),
		Certificate: cert,
		CACertPath:  cfg.CACertPath,
		Timeout:     cfg.Timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("bootstrap: canal Sefin: %w", err)
	}
	param, err := infra.NewHTTPChannel(infra.HTTPChannelConfig{
		BaseURL:     cfg.Ambiente.ParametrizacaoURL(),
		Certificate: cert,
		CACertPath:  cfg.CACertPath,
		Timeout:     cfg.Timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("bootstrap: canal parametrização: %w", err)
	}

	protocol := emission.NewProtocol(
		infra.NewXMLBuilderService(cfg.Ambiente, cfg.VerAplic),
		signer.NewDigitalSignatureService(),
		key,
		sefin,
		param,
		log,
		metrics,
	)
	return &Emissor{Protocol: protocol, Certificado: info}, nil
}

// Prestador converte o perfil configurado (NFSE_PRESTADOR_*) no modelo do domínio.
func Prestador(p config.PrestadorConfig) domain.Prestador {
	return domain.Prestador{
		CNPJ:               p.CNPJ,
		InscricaoMunicipal: p.InscricaoMunicipal,
		RazaoSocial:        p.RazaoSocial,
		NomeFantasia:       p.NomeFantasia,
		Endereco: domain.Endereco{
			Logradouro:      p.Logradouro,
			Numero:          p.Numero,
			Complemento:     p.Complemento,
			Bairro:          p.Bairro,
			CodigoMunicipio: p.CodigoMunicipio,
			UF:              p.UF,
			CEP:             p.CEP,
		},
		Contato:              domain.Contato{Telefone: p.Telefone, Email: p.Email},
		Regime:               nfse.RegimeTributario(p.Regime),
		OptanteSimples:       p.OptanteSimples,
		IncentivadorCultural: p.IncentivadorCultural,
	}
}
