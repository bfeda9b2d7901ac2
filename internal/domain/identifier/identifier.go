// Package identifier construye y analiza los números de lote y de serie: cadenas decimales de campos
// de ancho fijo, seguras para código de barras y RFID, opcionalmente con dígito Luhn al final.
//
//	Lote  : AAAAMMDD + secuencia global (5)                         = 13 dígitos
//	Serie : AAAAMMDD + categoría (3) + sub-lote (3) + unidad (5)    = 19 dígitos
package identifier

import (
	"fmt"
	"strconv"
	"time"

	"github.com/jhoicas/stockledger/internal/domain"
	"github.com/jhoicas/stockledger/internal/domain/luhn"
)

// Anchos de campo.
const (
	DateWidth         = 8
	BatchSeqWidth     = 5
	CategoryCodeWidth = 3
	SubBatchWidth     = 3
	UnitWidth         = 5

	BatchLength  = DateWidth + BatchSeqWidth
	SerialLength = DateWidth + CategoryCodeWidth + SubBatchWidth + UnitWidth

	MaxBatchSequence = 99999
	MaxSubBatch      = 999
	MaxUnit          = 99999
	MinCategoryCode  = 100
	MaxCategoryCode  = 999

	dateLayout = "20060102"
)

// BatchFields campos de un número de lote.
type BatchFields struct {
	Date     time.Time // medianoche UTC
	Sequence int64
}

// SerialFields campos de un número de serie.
type SerialFields struct {
	Date         time.Time // medianoche UTC
	CategoryCode int       // 100..999; el primer dígito es la familia
	SubBatch     int       // lotes de esa categoría en esa fecha
	Unit         int       // unidades dentro del sub-lote
}

// Family devuelve el primer dígito del código de categoría (familias 1xx, 2xx, 3xx…).
func (f SerialFields) Family() int {
	return f.CategoryCode / 100
}

// DateOnly normaliza t a la medianoche UTC de su fecha civil.
func DateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// FormatBatch construye el número de lote.
func FormatBatch(date time.Time, seq int64, withCheck bool) (string, error) {
	ds, err := formatDate(date)
	if err != nil {
		return "", err
	}
	if seq < 0 || seq > MaxBatchSequence {
		return "", fmt.Errorf("%w: secuencia de lote %d fuera de 0..%d", domain.ErrInvalidInput, seq, MaxBatchSequence)
	}
	return finish(fmt.Sprintf("%s%0*d", ds, BatchSeqWidth, seq), withCheck)
}

// ParseBatch analiza un número de lote.
func ParseBatch(s string, withCheck bool) (BatchFields, error) {
	body, err := strip(s, BatchLength, withCheck)
	if err != nil {
		return BatchFields{}, err
	}
	date, err := parseDate(body[:DateWidth])
	if err != nil {
		return BatchFields{}, err
	}
	seq, _ := strconv.ParseInt(body[DateWidth:], 10, 64)
	return BatchFields{Date: date, Sequence: seq}, nil
}

// FormatSerial construye el número de serie.
func FormatSerial(f SerialFields, withCheck bool) (string, error) {
	ds, err := formatDate(f.Date)
	if err != nil {
		return "", err
	}
	if err := ValidateCategoryCode(f.CategoryCode); err != nil {
		return "", err
	}
	if f.SubBatch < 0 || f.SubBatch > MaxSubBatch {
		return "", fmt.Errorf("%w: sub-lote %d fuera de 0..%d", domain.ErrInvalidInput, f.SubBatch, MaxSubBatch)
	}
	if f.Unit < 0 || f.Unit > MaxUnit {
		return "", fmt.Errorf("%w: unidad %d fuera de 0..%d", domain.ErrInvalidInput, f.Unit, MaxUnit)
	}
	body := fmt.Sprintf("%s%0*d%0*d%0*d", ds,
		CategoryCodeWidth, f.CategoryCode,
		SubBatchWidth, f.SubBatch,
		UnitWidth, f.Unit)
	return finish(body, withCheck)
}

// ParseSerial analiza un número de serie.
func ParseSerial(s string, withCheck bool) (SerialFields, error) {
	body, err := strip(s, SerialLength, withCheck)
	if err != nil {
		return SerialFields{}, err
	}
	date, err := parseDate(body[:DateWidth])
	if err != nil {
		return SerialFields{}, err
	}
	pos := DateWidth
	code, _ := strconv.Atoi(body[pos : pos+CategoryCodeWidth])
	pos += CategoryCodeWidth
	sub, _ := strconv.Atoi(body[pos : pos+SubBatchWidth])
	pos += SubBatchWidth
	unit, _ := strconv.Atoi(body[pos : pos+UnitWidth])
	if err := ValidateCategoryCode(code); err != nil {
		return SerialFields{}, err
	}
	return SerialFields{Date: date, CategoryCode: code, SubBatch: sub, Unit: unit}, nil
}

// ValidateCategoryCode exige un código de tres dígitos sin cero a la izquierda.
func ValidateCategoryCode(code int) error {
	if code < MinCategoryCode || code > MaxCategoryCode {
		return fmt.Errorf("%w: código de categoría %d fuera de %d..%d", domain.ErrInvalidInput, code, MinCategoryCode, MaxCategoryCode)
	}
	return nil
}

func formatDate(t time.Time) (string, error) {
	if t.IsZero() || t.Year() < 1 || t.Year() > 9999 {
		return "", fmt.Errorf("%w: fecha fuera de rango", domain.ErrInvalidInput)
	}
	return DateOnly(t).Format(dateLayout), nil
}

func parseDate(s string) (time.Time, error) {
	t, err := time.ParseInLocation(dateLayout, s, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: fecha %q inválida", domain.ErrInvalidInput, s)
	}
	return t, nil
}

func finish(body string, withCheck bool) (string, error) {
	if !withCheck {
		return body, nil
	}
	return luhn.AppendCheckDigit(body)
}

// strip valida longitud, dígitos y (si aplica) el dígito de control; devuelve el cuerpo.
func strip(s string, length int, withCheck bool) (string, error) {
	want := length
	if withCheck {
		want++
	}
	if len(s) != want {
		return "", fmt.Errorf("%w: se esperaban %d dígitos, se recibieron %d", domain.ErrInvalidInput, want, len(s))
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return "", fmt.Errorf("%w: carácter no numérico en posición %d", domain.ErrInvalidInput, i)
		}
	}
	if !withCheck {
		return s, nil
	}
	ok, err := luhn.Validate(s)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", fmt.Errorf("%w: dígito de control inválido", domain.ErrInvalidInput)
	}
	return luhn.RemoveCheckDigit(s)
}
