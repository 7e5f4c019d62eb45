package emission_test

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	apperrors "github.com/jhoicas/nfse-nacional/internal/domain"
	"github.com/jhoicas/nfse-nacional/internal/domain/entity"
	domain "github.com/jhoicas/nfse-nacional/internal/domain/nfse"
	"github.com/jhoicas/nfse-nacional/internal/domain/repository"
)

// ── Repositórios em memória ──────────────────────────────────────────────────

type memNotas struct {
	mu          sync.Mutex
	notas       map[string]entity.NotaFiscal
	falhaUpdate error
}

func newMemNotas() *memNotas { return &memNotas{notas: map[string]entity.NotaFiscal{}} }

func (m *memNotas) Create(_ context.Context, n *entity.NotaFiscal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.notas {
		if e.IDDPS == n.IDDPS {
			return fmt.Errorf("%w: %s", apperrors.ErrDuplicate, n.IDDPS)
		}
	}
	if n.ID == "" {
		n.ID = uuid.New().String()
	}
	m.notas[n.ID] = *n
	return nil
}

func (m *memNotas) Update(_ context.Context, n *entity.NotaFiscal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.falhaUpdate != nil {
		return m.falhaUpdate
	}
	if _, ok := m.notas[n.ID]; !ok {
		return apperrors.ErrNotFound
	}
	m.notas[n.ID] = *n
	return nil
}

func (m *memNotas) GetByID(_ context.Context, id string) (*entity.NotaFiscal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, ok := m.notas[id]
	if !ok {
		return nil, nil
	}
	return &n, nil
}

func (m *memNotas) GetByChave(_ context.Context, companyID, chave string) (*entity.NotaFiscal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, n := range m.notas {
		if n.CompanyID == companyID && n.ChaveAcesso == chave {
			return &n, nil
		}
	}
	return nil, nil
}

func (m *memNotas) ListByCompany(_ context.Context, companyID string, limit, offset int) ([]*entity.NotaFiscal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var list []*entity.NotaFiscal
	for _, n := range m.notas {
		if n.CompanyID == companyID {
			n := n
			list = append(list, &n)
		}
	}
	sort.Slice(list, func(i, j int) bool { return list[i].NumeroDPS > list[j].NumeroDPS })
	if offset >= len(list) {
		return nil, nil
	}
	list = list[offset:]
	if len(list) > limit {
		list = list[:limit]
	}
	return list, nil
}

func (m *memNotas) snapshot() map[string]entity.NotaFiscal {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]entity.NotaFiscal, len(m.notas))
	for k, v := range m.notas {
		out[k] = v
	}
	return out
}

func (m *memNotas) restore(s map[string]entity.NotaFiscal) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.notas = s
}

func (m *memNotas) todas() []entity.NotaFiscal {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]entity.NotaFiscal, 0, len(m.notas))
	for _, n := range m.notas {
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].NumeroDPS < out[j].NumeroDPS })
	return out
}

type memSeq struct {
	mu     sync.Mutex
	ultimo map[string]uint64
}

func newMemSeq() *memSeq { return &memSeq{ultimo: map[string]uint64{}} }

func (s *memSeq) Next(_ context.Context, cnpj, serie string) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ultimo[cnpj+"/"+serie]++
	return s.ultimo[cnpj+"/"+serie], nil
}

func (s *memSeq) atual(cnpj, serie string) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ultimo[cnpj+"/"+serie]
}

// memTx desfaz as alterações do contador e das notas quando fn falha.
type memTx struct {
	seq   *memSeq
	notas *memNotas
}

func (tx *memTx) RunEmissao(ctx context.Context, fn func(repository.DPSSequenceRepository, repository.NotaFiscalRepository) error) error {
	tx.seq.mu.Lock()
	seqAntes := make(map[string]uint64, len(tx.seq.ultimo))
	for k, v := range tx.seq.ultimo {
		seqAntes[k] = v
	}
	tx.seq.mu.Unlock()
	notasAntes := tx.notas.snapshot()

	if err := fn(tx.seq, tx.notas); err != nil {
		tx.seq.mu.Lock()
		tx.seq.ultimo = seqAntes
		tx.seq.mu.Unlock()
		tx.notas.restore(notasAntes)
		return err
	}
	return nil
}

// ── DANFSe local ─────────────────────────────────────────────────────────────

type fakeDANFSe struct {
	mu    sync.Mutex
	notas []string
}

func (f *fakeDANFSe) GenerateDANFSe(_ context.Context, nota *entity.NotaFiscal, prestador *domain.Prestador) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.notas = append(f.notas, nota.ChaveAcesso)
	return []byte("%PDF-local " + prestador.CNPJ), nil
}

func (f *fakeDANFSe) chamadas() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.notas)
}
