package http

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/jhoicas/nfse-nacional/pkg/jwt"
)

// RouterDeps dependências do router.
type RouterDeps struct {
	NFSe       nfseService
	Parametros parametrosService
	Auth       authService
	Resumo     resumoService
	JWTSecret  string
	Service    string
	Gatherer   prometheus.Gatherer // nil usa o registry padrão
	Logger     zerolog.Logger
}

// Router registra as rotas da API.
func Router(app *fiber.App, deps RouterDeps) {
	app.Use(requestid.New(requestid.Config{Generator: uuid.NewString}))
	app.Use(RequestLogger(deps.Logger))

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok", "service": deps.Service})
	})

	gatherer := deps.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	api := app.Group("/api/v1")

	// Auth (pública)
	authHandler := NewAuthHandler(deps.Auth)
	api.Group("/auth").Post("/login", authHandler.Login)

	// Rotas protegidas (exigem Bearer Token)
	protected := api.Group("/", AuthMiddleware(deps.JWTSecret))

	todos := RequireRole(jwt.RoleAdmin, jwt.RoleEmissor, jwt.RoleConsulta)
	emissores := RequireRole(jwt.RoleAdmin, jwt.RoleEmissor)
	admin := RequireRole(jwt.RoleAdmin)

	// NFS-e
	nfseHandler := NewNFSeHandler(deps.NFSe)
	resumoHandler := NewResumoHandler(deps.Resumo)
	notas := protected.Group("/nfse")
	notas.Get("/resumo", todos, resumoHandler.Resumo)
	notas.Post("/", emissores, nfseHandler.Emitir)
	notas.Get("/", todos, nfseHandler.Listar)
	notas.Post("/pendentes/:id/reenvio", emissores, nfseHandler.Reenviar)
	notas.Get("/:chave", todos, nfseHandler.Consultar)
	notas.Get("/:chave/danfse", todos, nfseHandler.DANFSe)
	notas.Post("/:chave/cancelamento", admin, nfseHandler.Cancelar)
	notas.Post("/:chave/substituicao", admin, nfseHandler.Substituir)

	// Parâmetros municipais
	paramHandler := NewParametrosHandler(deps.Parametros)
	municipios := protected.Group("/municipios", todos)
	municipios.Get("/:cMun/convenio", paramHandler.Convenio)
	municipios.Get("/:cMun/servicos/:codigo/aliquota", paramHandler.Aliquota)

	// Operadores
	usuarios := protected.Group("/usuarios", admin)
	usuarios.Post("/", authHandler.Registrar)
	usuarios.Get("/", authHandler.ListarUsuarios)
}

// RequestLogger registra uma linha por requisição com o request id.
func RequestLogger(log zerolog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()
		status := c.Response().StatusCode()
		ev := log.Info()
		if status >= fiber.StatusInternalServerError || err != nil {
			ev = log.Error().Err(err)
		}
		ev.Str("request_id", c.GetRespHeader(fiber.HeaderXRequestID)).
			Str("method", c.Method()).
			Str("path", c.Path()).
			Int("status", status).
			Dur("duracao", time.Since(start)).
			Str("company_id", GetCompanyID(c)).
			Str("user_id", GetUserID(c)).
			Msg("http: requisição")
		return err
	}
}
