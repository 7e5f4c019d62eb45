package emission

import (
	"context"

	"github.com/jhoicas/nfse-nacional/internal/domain/entity"
	domain "github.com/jhoicas/nfse-nacional/internal/domain/nfse"
	"github.com/jhoicas/nfse-nacional/internal/domain/repository"
)

// TxRunner executa fn numa transação com o contador de DPS e o repositório de notas.
// A reserva do número e o registro da nota são confirmados juntos.
type TxRunner interface {
	RunEmissao(ctx context.Context, fn func(
		seqRepo repository.DPSSequenceRepository,
		notaRepo repository.NotaFiscalRepository,
	) error) error
}

// DANFSeGenerator gera localmente o documento auxiliar a partir da nota persistida.
type DANFSeGenerator interface {
	GenerateDANFSe(ctx context.Context, nota *entity.NotaFiscal, prestador *domain.Prestador) ([]byte, error)
}
