// Package nfse contém o modelo da DPS (Declaração de Prestação de Serviço),
// o gerador do identificador e a taxonomia de erros da NFS-e Nacional.
// Usa catálogos e regras de pkg/nfse.
package nfse

import (
	"errors"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/jhoicas/nfse-nacional/pkg/nfse"
)

var (
	reCodigoServico = regexp.MustCompile(`^(\d{2}\.\d{2}\.\d{2}|\d{6})$`)
	reCompetencia   = regexp.MustCompile(`^\d{4}-(0[1-9]|1[0-2])$`)
	reSerie         = regexp.MustCompile(`^[0-9A-Za-z]{1,5}$`)
	reDigitos       = regexp.MustCompile(`^\d+$`)
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})
	must := func(tag string, fn validator.Func) {
		if err := v.RegisterValidation(tag, fn); err != nil {
			panic(err)
		}
	}
	must("cnpj", func(fl validator.FieldLevel) bool { return nfse.ValidateCNPJ(fl.Field().String()) == nil })
	must("cpf", func(fl validator.FieldLevel) bool { return nfse.ValidateCPF(fl.Field().String()) == nil })
	must("ibge", func(fl validator.FieldLevel) bool {
		n := fl.Field().Int()
		return n >= 1000000 && n <= 9999999
	})
	must("cep", func(fl validator.FieldLevel) bool {
		s := fl.Field().String()
		return len(s) == 8 && reDigitos.MatchString(s)
	})
	must("uf", func(fl validator.FieldLevel) bool { return nfse.UFs[fl.Field().String()] })
	must("telefone", func(fl validator.FieldLevel) bool {
		n := len(nfse.NormalizarDocumento(fl.Field().String()))
		return n >= 6 && n <= 20
	})
	must("ctribnac", func(fl validator.FieldLevel) bool { return reCodigoServico.MatchString(fl.Field().String()) })
	must("competencia", func(fl validator.FieldLevel) bool { return reCompetencia.MatchString(fl.Field().String()) })
	must("serie", func(fl validator.FieldLevel) bool { return reSerie.MatchString(fl.Field().String()) })
	must("regime", func(fl validator.FieldLevel) bool {
		return nfse.RegimeTributario(fl.Field().String()).Valido()
	})
	return v
}

// validateStruct executa as tags de s e converte as falhas em ValidationErrors
// com o caminho do campo prefixado por raiz.
func validateStruct(raiz string, s any) ValidationErrors {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return ValidationErrors{newValidationError(raiz, err.Error())}
	}
	out := make(ValidationErrors, 0, len(verrs))
	for _, fe := range verrs {
		campo := fe.Namespace()
		if i := strings.IndexByte(campo, '.'); i >= 0 {
			campo = campo[i+1:]
		}
		if raiz != "" {
			campo = raiz + "." + campo
		}
		out = append(out, newValidationError(campo, motivo(fe)))
	}
	return out
}

func motivo(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "obrigatório"
	case "cnpj":
		if err := nfse.ValidateCNPJ(fe.Value().(string)); err != nil {
			return strings.TrimPrefix(err.Error(), "nfse: ")
		}
	case "cpf":
		if err := nfse.ValidateCPF(fe.Value().(string)); err != nil {
			return strings.TrimPrefix(err.Error(), "nfse: ")
		}
	case "ibge":
		return "código do município deve ter 7 dígitos (IBGE)"
	case "cep":
		return "CEP deve conter 8 dígitos"
	case "uf":
		return "UF inválida"
	case "telefone":
		return "telefone deve conter entre 6 e 20 dígitos"
	case "email":
		return "e-mail inválido"
	case "ctribnac":
		return "código de tributação deve incluir o subitem completo (DD.DD.DD)"
	case "competencia":
		return "competência deve estar no formato YYYY-MM"
	case "serie":
		return "série deve ter de 1 a 5 caracteres alfanuméricos"
	case "regime":
		return "regime tributário desconhecido"
	case "max":
		return "excede " + fe.Param() + " caracteres"
	case "min":
		return "mínimo de " + fe.Param()
	}
	return "inválido (" + fe.Tag() + ")"
}
