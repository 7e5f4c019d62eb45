// Package analytics monta o resumo mensal de emissão a partir das notas
// persistidas. Não consulta a Sefin.
package analytics

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/jhoicas/nfse-nacional/internal/application/dto"
	"github.com/jhoicas/nfse-nacional/internal/domain/entity"
	"github.com/jhoicas/nfse-nacional/internal/domain/nfse"
	"github.com/jhoicas/nfse-nacional/internal/domain/repository"
)

const resumoTopTomadores = 5

var (
	reCompetencia = regexp.MustCompile(`^\d{4}-(0[1-9]|1[0-2])$`)
	fusoEmissor   = time.FixedZone("BRT", -3*60*60)
)

// ResumoUseCase resumo por competência (AAAA-MM).
type ResumoUseCase struct {
	repo repository.ResumoRepository
	now  func() time.Time
}

// NewResumoUseCase constrói o caso de uso.
func NewResumoUseCase(repo repository.ResumoRepository) *ResumoUseCase {
	return &ResumoUseCase{repo: repo, now: time.Now}
}

// Resumo consulta totais por status e os maiores tomadores em paralelo.
// Competência vazia usa o mês corrente no fuso de Brasília.
func (uc *ResumoUseCase) Resumo(ctx context.Context, companyID, competencia string) (*dto.ResumoCompetenciaResponse, error) {
	if competencia == "" {
		competencia = uc.now().In(fusoEmissor).Format("2006-01")
	}
	if !reCompetencia.MatchString(competencia) {
		return nil, &nfse.ValidationError{Campo: "competencia", Motivo: "competência deve estar no formato YYYY-MM"}
	}

	var (
		porStatus []repository.ResumoStatus
		top       []repository.ResumoTomador
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		porStatus, err = uc.repo.PorStatus(gctx, companyID, competencia)
		if err != nil {
			return fmt.Errorf("resumo: por status: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		top, err = uc.repo.TopTomadores(gctx, companyID, competencia, resumoTopTomadores)
		if err != nil {
			return fmt.Errorf("resumo: top tomadores: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := &dto.ResumoCompetenciaResponse{
		Competencia:  competencia,
		TotalEmitido: decimal.Zero,
		PorStatus:    make([]dto.ResumoStatusDTO, 0, len(porStatus)),
		TopTomadores: make([]dto.ResumoTomadorDTO, 0, len(top)),
	}
	for _, s := range porStatus {
		out.TotalNotas += s.Quantidade
		if s.Status == entity.NFSeStatusEmitida {
			out.TotalEmitido = out.TotalEmitido.Add(s.ValorTotal)
		}
		out.PorStatus = append(out.PorStatus, dto.ResumoStatusDTO{
			Status:     s.Status,
			Quantidade: s.Quantidade,
			ValorTotal: s.ValorTotal.Round(2),
		})
	}
	out.TotalEmitido = out.TotalEmitido.Round(2)
	for _, t := range top {
		out.TopTomadores = append(out.TopTomadores, dto.ResumoTomadorDTO{
			Documento:  t.Documento,
			Nome:       t.Nome,
			Quantidade: t.Quantidade,
			ValorTotal: t.ValorTotal.Round(2),
		})
	}
	return out, nil
}
