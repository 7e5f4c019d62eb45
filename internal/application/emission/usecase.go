package emission

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/jhoicas/nfse-nacional/internal/application/dto"
	apperrors "github.com/jhoicas/nfse-nacional/internal/domain"
	"github.com/jhoicas/nfse-nacional/internal/domain/entity"
	domain "github.com/jhoicas/nfse-nacional/internal/domain/nfse"
	"github.com/jhoicas/nfse-nacional/internal/domain/repository"
	"github.com/jhoicas/nfse-nacional/pkg/nfse"
)

// fusoEmissor define a competência padrão quando a requisição não a informa.
var fusoEmissor = time.FixedZone("BRT", -3*60*60)

// Config dados fixos do emissor: série das DPS e perfil do prestador.
type Config struct {
	Serie     string
	Prestador domain.Prestador
}

// UseCase emite e acompanha NFS-e de uma empresa: reserva o número da DPS,
// persiste a nota, troca com a Sefin pelo Protocol e grava o resultado.
type UseCase struct {
	protocol  *Protocol
	txRunner  TxRunner
	notaRepo  repository.NotaFiscalRepository
	danfse    DANFSeGenerator
	prestador domain.Prestador
	serie     string
	now       func() time.Time
	log       zerolog.Logger
}

// NewUseCase valida o perfil do prestador e constrói o caso de uso.
func NewUseCase(
	protocol *Protocol,
	txRunner TxRunner,
	notaRepo repository.NotaFiscalRepository,
	danfse DANFSeGenerator,
	cfg Config,
	logger zerolog.Logger,
) (*UseCase, error) {
	prest, err := domain.NewPrestador(cfg.Prestador)
	if err != nil {
		return nil, fmt.Errorf("emission: prestador configurado inválido: %w", err)
	}
	serie := strings.TrimSpace(cfg.Serie)
	if serie == "" {
		serie = "1"
	}
	return &UseCase{
		protocol:  protocol,
		txRunner:  txRunner,
		notaRepo:  notaRepo,
		danfse:    danfse,
		prestador: *prest,
		serie:     serie,
		now:       time.Now,
		log:       logger,
	}, nil
}

// Prestador devolve o perfil normalizado do emissor.
func (uc *UseCase) Prestador() domain.Prestador { return uc.prestador }

// Emitir reserva o próximo número da série, persiste a nota como PENDENTE e
// envia a DPS. Rejeição volta como *AuthorityError com a nota REJEITADA; falha
// de transporte mantém a nota PENDENTE.
func (uc *UseCase) Emitir(ctx context.Context, companyID string, in dto.EmitirNFSeRequest) (*dto.NFSeResponse, error) {
	params, err := uc.params(in)
	if err != nil {
		return nil, err
	}
	nota, err := uc.reservar(ctx, companyID, params)
	if err != nil {
		return nil, err
	}
	resp, err := uc.protocol.SubmitAssinada(ctx, OpEmitir, nota.IDDPS, []byte(nota.XMLAssinado))
	err = uc.registrarEmissao(ctx, nota, resp, err)
	out := toNFSeResponse(nota)
	return &out, err
}

// Reenviar reenvia a DPS de uma nota que ficou PENDENTE por falha de
// transporte. Vai o XML assinado persistido, com o mesmo Id e número; nada é
// reservado nem reassinado.
func (uc *UseCase) Reenviar(ctx context.Context, companyID, notaID string) (*dto.NFSeResponse, error) {
	if _, err := uuid.Parse(notaID); err != nil {
		return nil, fmt.Errorf("%w: id da nota", apperrors.ErrInvalidInput)
	}
	nota, err := uc.notaRepo.GetByID(ctx, notaID)
	if err != nil {
		return nil, err
	}
	if nota == nil || nota.CompanyID != companyID {
		return nil, apperrors.ErrNotFound
	}
	if nota.Status != entity.NFSeStatusPendente {
		return nil, fmt.Errorf("%w: nota %s está %s", apperrors.ErrConflict, notaID, nota.Status)
	}
	if nota.XMLAssinado == "" {
		return nil, fmt.Errorf("%w: nota %s sem DPS assinada", apperrors.ErrConflict, notaID)
	}

	resp, err := uc.protocol.SubmitAssinada(ctx, OpReenviar, nota.IDDPS, []byte(nota.XMLAssinado))
	err = uc.registrarEmissao(ctx, nota, resp, err)
	if err == nil && nota.ChaveSubstituida != "" {
		uc.marcarSubstituida(ctx, companyID, nota.ChaveSubstituida)
	}
	out := toNFSeResponse(nota)
	return &out, err
}

// Consultar consulta a Sefin e sincroniza a situação da nota local, se houver.
func (uc *UseCase) Consultar(ctx context.Context, companyID, chave string) (*domain.ConsultaNFSe, error) {
	cons, err := uc.protocol.Consultar(ctx, chave)
	if err != nil {
		return nil, err
	}
	nota, err := uc.notaRepo.GetByChave(ctx, companyID, chave)
	if err != nil {
		return nil, err
	}
	if nota == nil {
		return cons, nil
	}
	if status := statusDaSituacao(cons.Situacao); status != "" && status != nota.Status {
		uc.log.Info().Str("chave", chave).Str("de", nota.Status).Str("para", status).Msg("emission: situação sincronizada")
		nota.Status = status
		if cons.NumeroNFSe != "" {
			nota.NumeroNFSe = cons.NumeroNFSe
		}
		if err := uc.notaRepo.Update(ctx, nota); err != nil {
			return nil, err
		}
	}
	return cons, nil
}

// Cancelar registra o cancelamento de uma nota emitida pela empresa.
func (uc *UseCase) Cancelar(ctx context.Context, companyID, chave, motivo string) (*dto.CancelamentoResponse, error) {
	nota, err := uc.notaEmitida(ctx, companyID, chave)
	if err != nil {
		return nil, err
	}
	ev, err := uc.protocol.Cancelar(ctx, chave, strings.TrimSpace(motivo))
	if err != nil {
		return nil, err
	}
	nota.Status = entity.NFSeStatusCancelada
	nota.ProtocoloCancelamento = ev.Protocolo
	if err := uc.notaRepo.Update(ctx, nota); err != nil {
		uc.log.Error().Err(err).Str("chave", chave).Msg("emission: cancelamento registrado mas nota não atualizada")
	}
	return &dto.CancelamentoResponse{ChaveAcesso: chave, Protocolo: ev.Protocolo, Status: nota.Status}, nil
}

// Substituir emite uma nova nota que substitui a nota emitida. Motivo e
// código são validados antes de reservar um novo número.
func (uc *UseCase) Substituir(ctx context.Context, companyID, chave string, in dto.SubstituirNFSeRequest) (*dto.SubstituicaoResponse, error) {
	original, err := uc.notaEmitida(ctx, companyID, chave)
	if err != nil {
		return nil, err
	}
	subst, err := domain.NewSubstituicao(chave, nfse.MotivoSubstituicao(strings.TrimSpace(in.CodigoMotivo)), in.Motivo)
	if err != nil {
		return nil, err
	}
	params, err := uc.params(in.DPS)
	if err != nil {
		return nil, err
	}
	params.Substituicao = subst
	nova, err := uc.reservar(ctx, companyID, params)
	if err != nil {
		return nil, err
	}

	resp, err := uc.protocol.SubmitAssinada(ctx, OpSubstituir, nova.IDDPS, []byte(nova.XMLAssinado))
	if err = uc.registrarEmissao(ctx, nova, resp, err); err != nil {
		return &dto.SubstituicaoResponse{ChaveOriginal: chave, CodigoMotivo: string(subst.Codigo), Nova: toNFSeResponse(nova)}, err
	}

	original.Status = entity.NFSeStatusSubstituida
	if err := uc.notaRepo.Update(ctx, original); err != nil {
		uc.log.Error().Err(err).Str("chave", chave).Msg("emission: nota original não marcada como substituída")
	}
	return &dto.SubstituicaoResponse{ChaveOriginal: chave, CodigoMotivo: string(subst.Codigo), Nova: toNFSeResponse(nova)}, nil
}

// DANFSe devolve o PDF oficial; se a Sefin não o tiver ou estiver fora do ar,
// gera a representação local a partir da nota persistida.
func (uc *UseCase) DANFSe(ctx context.Context, companyID, chave string) (pdf []byte, filename string, err error) {
	nota, err := uc.notaDaEmpresa(ctx, companyID, chave)
	if err != nil {
		return nil, "", err
	}
	filename = fmt.Sprintf("danfse_%s.pdf", chave)

	d, err := uc.protocol.BaixarDANFSe(ctx, chave)
	switch {
	case err == nil && d.Encontrado:
		return d.PDF, filename, nil
	case err != nil && !domain.IsRetryable(err) && !errors.Is(err, domain.ErrAuthority):
		return nil, "", err
	}
	uc.log.Warn().Err(err).Str("chave", chave).Msg("emission: DANFSe oficial indisponível, gerando localmente")

	pdf, err = uc.danfse.GenerateDANFSe(ctx, nota, &uc.prestador)
	if err != nil {
		return nil, "", fmt.Errorf("emission: gerar DANFSe local: %w", err)
	}
	return pdf, filename, nil
}

// Listar lista as notas da empresa.
func (uc *UseCase) Listar(ctx context.Context, companyID string, page dto.PageRequest) (*dto.NFSeListResponse, error) {
	page.DefaultPage()
	notas, err := uc.notaRepo.ListByCompany(ctx, companyID, page.Limit, page.Offset)
	if err != nil {
		return nil, err
	}
	out := &dto.NFSeListResponse{
		Items: make([]dto.NFSeResponse, 0, len(notas)),
		Page:  dto.PageResponse{Limit: page.Limit, Offset: page.Offset},
	}
	for _, n := range notas {
		out.Items = append(out.Items, toNFSeResponse(n))
	}
	return out, nil
}

// ConsultarConvenio delega ao Protocol.
func (uc *UseCase) ConsultarConvenio(ctx context.Context, codigoMunicipio int) (*domain.ConvenioMunicipal, error) {
	return uc.protocol.ConsultarConvenio(ctx, codigoMunicipio)
}

// ConsultarAliquota delega ao Protocol; competência vazia usa o mês corrente.
func (uc *UseCase) ConsultarAliquota(ctx context.Context, codigoMunicipio int, codigoServico, competencia string) (*domain.AliquotaServico, error) {
	if competencia == "" {
		competencia = uc.now().In(fusoEmissor).Format("2006-01")
	}
	return uc.protocol.ConsultarAliquota(ctx, codigoMunicipio, codigoServico, competencia)
}

// ── internos ─────────────────────────────────────────────────────────────────

// reservar aloca o número, monta e assina a DPS e grava a nota PENDENTE com o
// XML assinado na mesma transação. Qualquer erro desfaz a reserva.
func (uc *UseCase) reservar(ctx context.Context, companyID string, params domain.DPSParams) (*entity.NotaFiscal, error) {
	var nota *entity.NotaFiscal
	err := uc.txRunner.RunEmissao(ctx, func(seqRepo repository.DPSSequenceRepository, notaRepo repository.NotaFiscalRepository) error {
		numero, err := seqRepo.Next(ctx, uc.prestador.CNPJ, uc.serie)
		if err != nil {
			return err
		}
		params.Numero = numero
		dps, err := domain.NewDPS(params)
		if err != nil {
			return err
		}
		signed, _, err := uc.protocol.PrepararDPS(dps)
		if err != nil {
			return err
		}
		nota = novaNota(companyID, dps)
		nota.XMLAssinado = string(signed)
		return notaRepo.Create(ctx, nota)
	})
	if err != nil {
		return nil, err
	}
	return nota, nil
}

// registrarEmissao aplica a resposta da Sefin à nota e a grava. Devolve o erro
// a repassar ao chamador: nil quando a nota foi emitida e gravada.
func (uc *UseCase) registrarEmissao(ctx context.Context, nota *entity.NotaFiscal, resp *domain.NFSeResponse, err error) error {
	var ae *domain.AuthorityError
	switch {
	case resp != nil && resp.Sucesso:
		if err != nil {
			uc.log.Warn().Err(err).Str("id_dps", nota.IDDPS).Msg("emission: NFS-e emitida com XML ilegível")
			err = nil
		}
		nota.Status = entity.NFSeStatusEmitida
		nota.ChaveAcesso = resp.ChaveAcesso
		nota.NumeroNFSe = resp.NumeroNFSe
		nota.XMLNFSe = string(resp.XMLNFSe)
		nota.CodigoErro, nota.MensagemErro = "", ""
	case errors.As(err, &ae):
		nota.Status = entity.NFSeStatusRejeitada
		nota.CodigoErro = ae.Codigo
		nota.MensagemErro = ae.Mensagem
	case err != nil:
		nota.MensagemErro = err.Error()
	}
	if uerr := uc.notaRepo.Update(ctx, nota); uerr != nil {
		uc.log.Error().Err(uerr).Str("id_dps", nota.IDDPS).Str("status", nota.Status).Msg("emission: falha ao gravar resultado")
		return errors.Join(err, fmt.Errorf("emission: gravar resultado da DPS %s: %w", nota.IDDPS, uerr))
	}
	return err
}

func (uc *UseCase) marcarSubstituida(ctx context.Context, companyID, chave string) {
	original, err := uc.notaRepo.GetByChave(ctx, companyID, chave)
	if err != nil || original == nil {
		uc.log.Error().Err(err).Str("chave", chave).Msg("emission: nota original não encontrada para marcar substituição")
		return
	}
	original.Status = entity.NFSeStatusSubstituida
	if err := uc.notaRepo.Update(ctx, original); err != nil {
		uc.log.Error().Err(err).Str("chave", chave).Msg("emission: nota original não marcada como substituída")
	}
}

func (uc *UseCase) notaDaEmpresa(ctx context.Context, companyID, chave string) (*entity.NotaFiscal, error) {
	if err := domain.ValidarChaveAcesso(chave); err != nil {
		return nil, err
	}
	nota, err := uc.notaRepo.GetByChave(ctx, companyID, chave)
	if err != nil {
		return nil, err
	}
	if nota == nil {
		return nil, apperrors.ErrNotFound
	}
	return nota, nil
}

func (uc *UseCase) notaEmitida(ctx context.Context, companyID, chave string) (*entity.NotaFiscal, error) {
	nota, err := uc.notaDaEmpresa(ctx, companyID, chave)
	if err != nil {
		return nil, err
	}
	if !nota.Cancelavel() {
		return nil, fmt.Errorf("%w: nota %s está %s", apperrors.ErrConflict, chave, nota.Status)
	}
	return nota, nil
}

func (uc *UseCase) params(in dto.EmitirNFSeRequest) (domain.DPSParams, error) {
	id, err := identidadeTomador(in.Tomador)
	if err != nil {
		return domain.DPSParams{}, err
	}
	emissao := uc.now()
	if in.DataEmissao != nil {
		emissao = *in.DataEmissao
	}
	competencia := strings.TrimSpace(in.Competencia)
	if competencia == "" {
		competencia = emissao.In(fusoEmissor).Format("2006-01")
	}

	var end *domain.Endereco
	if e := in.Tomador.Endereco; e != nil {
		end = &domain.Endereco{
			Logradouro:      e.Logradouro,
			Numero:          e.Numero,
			Complemento:     e.Complemento,
			Bairro:          e.Bairro,
			CodigoMunicipio: e.CodigoMunicipio,
			UF:              e.UF,
			CEP:             e.CEP,
		}
	}
	s := in.Servico
	return domain.DPSParams{
		Serie:       uc.serie,
		Competencia: competencia,
		DataEmissao: emissao,
		Prestador:   uc.prestador,
		Tomador: domain.Tomador{
			Identidade: id,
			Nome:       in.Tomador.Nome,
			Endereco:   end,
			Contato:    domain.Contato{Telefone: in.Tomador.Telefone, Email: in.Tomador.Email},
		},
		Servico: domain.Servico{
			CodigoTributacaoNacional:  s.CodigoTributacaoNacional,
			CodigoTributacaoMunicipal: s.CodigoTributacaoMunicipal,
			CodigoNBS:                 s.CodigoNBS,
			Descricao:                 s.Descricao,
			Valor:                     s.Valor,
			ISSRetido:                 s.ISSRetido,
			AliquotaISS:               s.AliquotaISS,
			AliquotaSimples:           s.AliquotaSimples,
		},
	}, nil
}

func identidadeTomador(t dto.TomadorRequest) (domain.Identidade, error) {
	if !t.NaoIdentificado {
		return domain.ParseIdentidade(t.CPF, t.CNPJ)
	}
	if strings.TrimSpace(t.CPF) != "" || strings.TrimSpace(t.CNPJ) != "" {
		return domain.Identidade{}, &domain.ValidationError{Campo: "tomador", Motivo: "tomador não identificado não aceita CPF ou CNPJ"}
	}
	return domain.NaoIdentificado(), nil
}

func novaNota(companyID string, dps *domain.DPS) *entity.NotaFiscal {
	n := &entity.NotaFiscal{
		CompanyID:        companyID,
		IDDPS:            dps.ID,
		Serie:            dps.Serie,
		NumeroDPS:        dps.Numero,
		Competencia:      dps.Competencia,
		DataEmissao:      dps.DataEmissao,
		CNPJPrestador:    dps.Prestador.CNPJ,
		DocumentoTomador: dps.Tomador.Identidade.Numero(),
		NomeTomador:      dps.Tomador.Nome,
		CodigoServico:    dps.Servico.CodigoTributacaoNacional,
		Descricao:        dps.Servico.Descricao,
		Valor:            dps.Servico.Valor,
		Status:           entity.NFSeStatusPendente,
	}
	if dps.Substituicao != nil {
		n.ChaveSubstituida = dps.Substituicao.ChaveSubstituida
	}
	return n
}

func statusDaSituacao(s domain.Situacao) string {
	switch s {
	case domain.SituacaoEmitida:
		return entity.NFSeStatusEmitida
	case domain.SituacaoCancelada:
		return entity.NFSeStatusCancelada
	case domain.SituacaoSubstituida:
		return entity.NFSeStatusSubstituida
	}
	return ""
}

func toNFSeResponse(n *entity.NotaFiscal) dto.NFSeResponse {
	return dto.NFSeResponse{
		ID:                    n.ID,
		IDDPS:                 n.IDDPS,
		Serie:                 n.Serie,
		NumeroDPS:             n.NumeroDPS,
		Competencia:           n.Competencia,
		DataEmissao:           n.DataEmissao,
		Valor:                 n.Valor,
		Status:                n.Status,
		ChaveAcesso:           n.ChaveAcesso,
		NumeroNFSe:            n.NumeroNFSe,
		CodigoErro:            n.CodigoErro,
		MensagemErro:          n.MensagemErro,
		ChaveSubstituida:      n.ChaveSubstituida,
		ProtocoloCancelamento: n.ProtocoloCancelamento,
	}
}
