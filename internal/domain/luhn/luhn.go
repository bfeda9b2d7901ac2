// Package luhn implementa el dígito de control módulo 10 para identificadores numéricos que se
// manipulan a mano (etiquetas, códigos escaneados o digitados).
//
// La paridad se ancla en el dígito más a la derecha del cuerpo: ese dígito no se duplica, el
// siguiente hacia la izquierda sí, y así sucesivamente. Validate recalcula con la misma regla, de
// modo que Validate(AppendCheckDigit(s)) siempre es verdadero.
package luhn

import (
	"fmt"

	"github.com/jhoicas/stockledger/internal/domain"
)

// Calculate devuelve el dígito de control para digits.
func Calculate(digits string) (int, error) {
	if err := checkDigits(digits, 1); err != nil {
		return 0, err
	}
	var sum int
	double := false
	for i := len(digits) - 1; i >= 0; i-- {
		d := int(digits[i] - '0')
		if double {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
		double = !double
	}
	return (10 - sum%10) % 10, nil
}

// AppendCheckDigit devuelve digits seguido de su dígito de control.
func AppendCheckDigit(digits string) (string, error) {
	check, err := Calculate(digits)
	if err != nil {
		return "", err
	}
	return digits + string(byte('0'+check)), nil
}

// Validate indica si el último dígito es el dígito de control correcto del resto.
func Validate(digitsWithCheck string) (bool, error) {
	if err := checkDigits(digitsWithCheck, 2); err != nil {
		return false, err
	}
	n := len(digitsWithCheck)
	check, err := Calculate(digitsWithCheck[:n-1])
	if err != nil {
		return false, err
	}
	return int(digitsWithCheck[n-1]-'0') == check, nil
}

// ExtractCheckDigit devuelve el último dígito sin validarlo.
func ExtractCheckDigit(digitsWithCheck string) (int, error) {
	if err := checkDigits(digitsWithCheck, 2); err != nil {
		return 0, err
	}
	return int(digitsWithCheck[len(digitsWithCheck)-1] - '0'), nil
}

// RemoveCheckDigit devuelve el cuerpo sin el último dígito.
func RemoveCheckDigit(digitsWithCheck string) (string, error) {
	if err := checkDigits(digitsWithCheck, 2); err != nil {
		return "", err
	}
	return digitsWithCheck[:len(digitsWithCheck)-1], nil
}

func checkDigits(s string, minLen int) error {
	if len(s) < minLen {
		if s == "" {
			return fmt.Errorf("%w: luhn: entrada vacía", domain.ErrInvalidInput)
		}
		return fmt.Errorf("%w: luhn: se requieren al menos %d dígitos", domain.ErrInvalidInput, minLen)
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return fmt.Errorf("%w: luhn: carácter no numérico %q en posición %d", domain.ErrInvalidInput, s[i], i)
		}
	}
	return nil
}
