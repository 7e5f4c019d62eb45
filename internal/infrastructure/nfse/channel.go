package nfse

import (
	"bytes"
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	domain "github.com/jhoicas/nfse-nacional/internal/domain/nfse"
)

// ── Porta (interface) ─────────────────────────────────────────────────────────

// ChannelResponse status e corpo devolvidos pela autoridade, sem interpretação.
type ChannelResponse struct {
	Status      int
	Body        []byte
	ContentType string
}

// Channel é o canal autenticado até a autoridade. A autenticação (mTLS) é
// resolvida fora do protocolo; para testes basta um fake.
type Channel interface {
	// Send envia body para path (relativo à URL base do canal). Falhas de rede
	// ou timeout devolvem *TransportError; qualquer status HTTP é resposta válida.
	Send(ctx context.Context, method, path string, body []byte) (*ChannelResponse, error)
}

// ── Implementação HTTP com mTLS ───────────────────────────────────────────────

// maxResponseBody limita a leitura (a DANFSe em PDF é o maior corpo esperado).
const maxResponseBody = 10 << 20

// HTTPChannelConfig parâmetros do canal HTTP.
type HTTPChannelConfig struct {
	BaseURL     string
	Certificate tls.Certificate // certificado ICP-Brasil do emitente
	CACertPath  string          // cadeia adicional (PEM) somada ao pool do sistema
	Timeout     time.Duration
}

// HTTPChannel implementa Channel sobre net/http com certificado de cliente.
type HTTPChannel struct {
	baseURL    string
	httpClient *http.Client
}

// NewHTTPChannel monta o cliente mTLS. Sem certificado o canal funciona sem
// autenticação de cliente (útil contra servidores de teste).
func NewHTTPChannel(cfg HTTPChannelConfig) (*HTTPChannel, error) {
	pool, err := x509.SystemCertPool()
	if err != nil || pool == nil {
		pool = x509.NewCertPool()
	}
	if cfg.CACertPath != "" {
		pem, err := os.ReadFile(cfg.CACertPath)
		if err != nil {
			return nil, fmt.Errorf("nfse: ler cadeia CA %s: %w", cfg.CACertPath, err)
		}
		if ok := pool.AppendCertsFromPEM(pem); !ok {
			return nil, fmt.Errorf("nfse: cadeia CA %s sem certificados PEM válidos", cfg.CACertPath)
		}
	}
	tlsConfig := &tls.Config{
		RootCAs:       pool,
		MinVersion:    tls.VersionTLS12,
		Renegotiation: tls.RenegotiateFreelyAsClient,
	}
	if len(cfg.Certificate.Certificate) > 0 {
		tlsConfig.Certificates = []tls.Certificate{cfg.Certificate}
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return NewHTTPChannelWithClient(cfg.BaseURL, &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			TLSClientConfig: tlsConfig,
			Proxy:           http.ProxyFromEnvironment,
			MaxIdleConns:    10,
			IdleConnTimeout: 30 * time.Second,
		},
	}), nil
}

// NewHTTPChannelWithClient usa um http.Client já configurado.
func NewHTTPChannelWithClient(baseURL string, client *http.Client) *HTTPChannel {
	return &HTTPChannel{baseURL: strings.TrimRight(baseURL, "/"), httpClient: client}
}

// Send executa uma troca request/response.
func (c *HTTPChannel) Send(ctx context.Context, method, path string, body []byte) (*ChannelResponse, error) {
	op := method + " " + path
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("nfse: criar request %s: %w", op, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json; charset=utf-8")
	}
	req.Header.Set("Accept", "application/json, application/pdf")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, &domain.TransportError{Op: op, Err: fmt.Errorf("timeout ou cancelamento: %w", ctx.Err())}
		}
		return nil, &domain.TransportError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return nil, &domain.TransportError{Op: op, Err: fmt.Errorf("ler resposta: %w", err)}
	}
	return &ChannelResponse{
		Status:      resp.StatusCode,
		Body:        raw,
		ContentType: resp.Header.Get("Content-Type"),
	}, nil
}

var _ Channel = (*HTTPChannel)(nil)
