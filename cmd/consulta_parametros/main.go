// consulta_parametros consulta no ADN a adesão do município ao emissor nacional
// e, opcionalmente, a alíquota de um serviço.
//
// Uso: go run ./cmd/consulta_parametros -municipio 1302603 [-servico 04.03.01] [-competencia 2026-01]
// Certificado e ambiente vêm da mesma configuração da API (NFSE_*).
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/jhoicas/nfse-nacional/internal/bootstrap"
	"github.com/jhoicas/nfse-nacional/pkg/config"
	"github.com/jhoicas/nfse-nacional/pkg/logger"
)

func main() {
	municipio := flag.Int("municipio", 0, "código IBGE do município (7 dígitos)")
	servico := flag.String("servico", "", "código de tributação nacional (ex: 04.03.01)")
	competencia := flag.String("competencia", time.Now().Format("2006-01"), "competência AAAA-MM")
	flag.Parse()

	if *municipio == 0 {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Carregar configuração: %v\n", err)
		os.Exit(1)
	}
	log := logger.New(logger.Config{Env: cfg.App.Env, Level: cfg.App.LogLevel, Output: os.Stderr})

	emissor, err := bootstrap.NewEmissor(cfg.NFSe, log.Component("nfse"), nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Montar emissor: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.NFSe.Timeout)
	defer cancel()

	params, err := emissor.Protocol.ConsultarParametros(ctx, *municipio, *servico, *competencia)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Consultar parâmetros: %v\n", err)
		os.Exit(1)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(params); err != nil {
		fmt.Fprintf(os.Stderr, "Escrever resultado: %v\n", err)
		os.Exit(1)
	}
}
