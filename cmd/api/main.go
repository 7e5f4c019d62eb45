package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/contrib/swagger"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/jhoicas/nfse-nacional/internal/application/analytics"
	"github.com/jhoicas/nfse-nacional/internal/application/auth"
	"github.com/jhoicas/nfse-nacional/internal/application/emission"
	"github.com/jhoicas/nfse-nacional/internal/bootstrap"
	infrapdf "github.com/jhoicas/nfse-nacional/internal/infrastructure/pdf"
	"github.com/jhoicas/nfse-nacional/internal/infrastructure/postgres"
	httpRouter "github.com/jhoicas/nfse-nacional/internal/interfaces/http"
	"github.com/jhoicas/nfse-nacional/pkg/config"
	"github.com/jhoicas/nfse-nacional/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("carregar configuração: " + err.Error())
	}

	log := logger.New(logger.Config{
		Env:     cfg.App.Env,
		Level:   cfg.App.LogLevel,
		Service: cfg.App.Name,
	})
	log.Info().
		Str("env", cfg.App.Env).
		Str("ambiente", string(cfg.NFSe.Ambiente)).
		Msg("iniciando aplicação")

	ctx := context.Background()
	pool, err := postgres.NewPool(ctx, cfg.DB)
	if err != nil {
		log.Fatal().Err(err).Msg("conexão com PostgreSQL")
	}
	defer pool.Close()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := emission.NewMetricsWith(registry)

	emissor, err := bootstrap.NewEmissor(cfg.NFSe, log.Component("nfse"), metrics)
	if err != nil {
		log.Fatal().Err(err).Msg("montar emissor NFS-e")
	}
	log.Info().
		Str("subject", emissor.Certificado.Subject).
		Time("vencimento", emissor.Certificado.NotAfter).
		Msg("certificado A1 carregado")

	// Emissão: sequência da DPS + nota na mesma transação; DANFSe local como reserva
	emissionUC, err := emission.NewUseCase(
		emissor.Protocol,
		postgres.NewTxRunner(pool),
		postgres.NewNotaFiscalRepository(pool),
		infrapdf.NewDanfseGenerator(cfg.NFSe.Ambiente),
		emission.Config{
			Serie:     cfg.NFSe.SerieDPS,
			Prestador: bootstrap.Prestador(cfg.NFSe.Prestador),
		},
		log.Component("emission"),
	)
	if err != nil {
		log.Fatal().Err(err).Msg("perfil do prestador")
	}

	authUC := auth.NewUseCase(
		postgres.NewUsuarioRepository(pool),
		auth.JWTConfig{Secret: cfg.JWT.Secret, ExpMinutes: cfg.JWT.Expiration, Issuer: cfg.JWT.Issuer},
		log.Component("auth"),
	)

	app := fiber.New(fiber.Config{
		AppName:      cfg.App.Name,
		ReadTimeout:  time.Second * 10,
		WriteTimeout: cfg.NFSe.Timeout + 10*time.Second,
		IdleTimeout:  time.Second * 60,
	})
	app.Use(recover.New())

	// Swagger UI em local: http://localhost:<port>/docs
	app.Use(swagger.New(swagger.Config{
		BasePath: "/",
		FilePath: "./docs/swagger.json",
		Path:     "docs",
		Title:    "NFS-e Nacional API",
	}))

	httpRouter.Router(app, httpRouter.RouterDeps{
		NFSe:       emissionUC,
		Parametros: emissionUC,
		Auth:       authUC,
		Resumo:     analytics.NewResumoUseCase(postgres.NewResumoRepository(pool)),
		JWTSecret:  cfg.JWT.Secret,
		Service:    cfg.App.Name,
		Gatherer:   registry,
		Logger:     log.Component("http"),
	})

	go func() {
		if err := app.Listen(cfg.HTTP.Addr()); err != nil {
			log.Error().Err(err).Msg("servidor HTTP finalizado")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("sinal de desligamento recebido, encerrando servidor...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("desligamento do servidor")
	}

	log.Info().Msg("aplicação encerrada")
}
