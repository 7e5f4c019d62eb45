package nfse

import (
	"fmt"
	"strings"
	"unicode"
)

// pesos do módulo 11 para os dois dígitos verificadores do CNPJ.
var (
	cnpjWeights1 = [12]int{5, 4, 3, 2, 9, 8, 7, 6, 5, 4, 3, 2}
	cnpjWeights2 = [13]int{6, 5, 4, 3, 2, 9, 8, 7, 6, 5, 4, 3, 2}
)

// ValidateCNPJ valida um CNPJ (com ou sem pontuação) pelo módulo 11.
// Rejeita sequências de um único dígito repetido ("00000000000000").
func ValidateCNPJ(cnpj string) error {
	digits := NormalizarDocumento(cnpj)
	if len(digits) != 14 {
		return fmt.Errorf("nfse: CNPJ deve conter 14 dígitos, encontrados %d", len(digits))
	}
	if repeated(digits) {
		return fmt.Errorf("nfse: CNPJ inválido")
	}
	d1, d2 := ComputeCNPJCheckDigits(digits[:12])
	if digits[12] != d1 || digits[13] != d2 {
		return fmt.Errorf("nfse: CNPJ inválido (dígitos verificadores incorretos)")
	}
	return nil
}

// ComputeCNPJCheckDigits calcula os dois dígitos verificadores a partir da base de 12 dígitos.
func ComputeCNPJCheckDigits(base string) (byte, byte) {
	var sum int
	for i := 0; i < 12; i++ {
		sum += int(base[i]-'0') * cnpjWeights1[i]
	}
	d1 := mod11Digit(sum)
	sum = 0
	for i := 0; i < 12; i++ {
		sum += int(base[i]-'0') * cnpjWeights2[i]
	}
	sum += int(d1-'0') * cnpjWeights2[12]
	return d1, mod11Digit(sum)
}

func mod11Digit(sum int) byte {
	r := sum % 11
	if r < 2 {
		return '0'
	}
	return byte('0' + (11 - r))
}

// ValidateCPF valida um CPF (com ou sem pontuação).
func ValidateCPF(cpf string) error {
	digits := NormalizarDocumento(cpf)
	if len(digits) != 11 {
		return fmt.Errorf("nfse: CPF deve conter 11 dígitos, encontrados %d", len(digits))
	}
	if repeated(digits) {
		return fmt.Errorf("nfse: CPF inválido")
	}
	d1, d2 := ComputeCPFCheckDigits(digits[:9])
	if digits[9] != d1 || digits[10] != d2 {
		return fmt.Errorf("nfse: CPF inválido (dígitos verificadores incorretos)")
	}
	return nil
}

// ComputeCPFCheckDigits calcula os dígitos verificadores a partir da base de 9 dígitos.
func ComputeCPFCheckDigits(base string) (byte, byte) {
	calc := func(partial string, factor int) byte {
		var sum int
		for i := 0; i < len(partial); i++ {
			sum += int(partial[i]-'0') * (factor - i)
		}
		r := (sum * 10) % 11
		if r >= 10 {
			return '0'
		}
		return byte('0' + r)
	}
	d1 := calc(base[:9], 10)
	d2 := calc(base[:9]+string(d1), 11)
	return d1, d2
}

// NormalizarDocumento remove tudo que não for dígito.
func NormalizarDocumento(doc string) string {
	var b strings.Builder
	b.Grow(len(doc))
	for _, r := range doc {
		if r < unicode.MaxASCII && unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// FormatarCNPJ aplica a máscara 00.000.000/0000-00; devolve a entrada se não tiver 14 dígitos.
func FormatarCNPJ(cnpj string) string {
	d := NormalizarDocumento(cnpj)
	if len(d) != 14 {
		return cnpj
	}
	return d[:2] + "." + d[2:5] + "." + d[5:8] + "/" + d[8:12] + "-" + d[12:]
}

// FormatarCPF aplica a máscara 000.000.000-00; devolve a entrada se não tiver 11 dígitos.
func FormatarCPF(cpf string) string {
	d := NormalizarDocumento(cpf)
	if len(d) != 11 {
		return cpf
	}
	return d[:3] + "." + d[3:6] + "." + d[6:9] + "-" + d[9:]
}

func repeated(digits string) bool {
	return strings.Count(digits, digits[:1]) == len(digits)
}
