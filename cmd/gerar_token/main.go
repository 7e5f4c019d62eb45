// gerar_token emite um JWT de acesso à API para integrações (ERP, agenda).
//
// Uso: go run ./cmd/gerar_token -empresa <uuid> [-usuario <id>] [-papel emissor] [-validade 60]
// Assina com JWT_SECRET e JWT_ISSUER da configuração.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/google/uuid"

	"github.com/jhoicas/nfse-nacional/pkg/config"
	"github.com/jhoicas/nfse-nacional/pkg/jwt"
)

var papeis = map[string]bool{jwt.RoleAdmin: true, jwt.RoleEmissor: true, jwt.RoleConsulta: true}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Carregar configuração: %v\n", err)
		os.Exit(1)
	}
	empresa := flag.String("empresa", "", "company_id (UUID) dono das notas")
	usuario := flag.String("usuario", "", "user_id; vazio gera um UUID")
	papel := flag.String("papel", jwt.RoleEmissor, "admin | emissor | consulta")
	validade := flag.Int("validade", cfg.JWT.Expiration, "validade em minutos")
	flag.Parse()

	if _, err := uuid.Parse(*empresa); err != nil {
		fmt.Fprintln(os.Stderr, "-empresa deve ser um UUID válido")
		os.Exit(2)
	}
	if !papeis[*papel] {
		fmt.Fprintf(os.Stderr, "papel inválido: %s\n", *papel)
		os.Exit(2)
	}
	if *usuario == "" {
		*usuario = uuid.NewString()
	}

	token, err := jwt.Generate(cfg.JWT.Secret, *usuario, *empresa, *papel, cfg.JWT.Issuer, *validade)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Gerar token: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(token)
}
