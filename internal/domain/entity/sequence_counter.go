package entity

import (
	"fmt"
	"time"

	"github.com/jhoicas/stockledger/internal/domain"
)

// MaxPaddingWidth ancho máximo de relleno (un int64 tiene 19 dígitos).
const MaxPaddingWidth = 18

// SequenceCounter contador monotónico por categoría (ej. "MOVEMENT", "BATCH", "INVOICE").
// CurrentValue nunca disminuye; solo cambia con un incremento atómico o un UpdateConfig hacia arriba.
type SequenceCounter struct {
	Category      string
	Prefix        string // solo letras o solo dígitos
	PaddingWidth  int
	StartingValue int64
	CurrentValue  int64 // último valor emitido (StartingValue-1 si aún no se emitió ninguno)
	IsActive      bool
	LastIssuedAt  *time.Time
	LastIssuedBy  string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Render devuelve prefix + "-" + valor rellenado con ceros.
func (c *SequenceCounter) Render(value int64) string {
	return fmt.Sprintf("%s-%0*d", c.Prefix, c.PaddingWidth, value)
}

// ValidatePrefix exige un prefijo no vacío compuesto solo por letras ASCII o solo por dígitos.
func ValidatePrefix(prefix string) error {
	if prefix == "" {
		return fmt.Errorf("%w: prefix es obligatorio", domain.ErrInvalidInput)
	}
	var letters, digits int
	for _, r := range prefix {
		switch {
		case r >= '0' && r <= '9':
			digits++
		case (r >= 'A' && r <= 'Z') || (r >= 'a' && r <= 'z'):
			letters++
		default:
			return fmt.Errorf("%w: prefix %q contiene caracteres no permitidos", domain.ErrInvalidInput, prefix)
		}
	}
	if letters > 0 && digits > 0 {
		return fmt.Errorf("%w: prefix %q mezcla letras y dígitos", domain.ErrInvalidInput, prefix)
	}
	return nil
}

// ValidatePaddingWidth exige 1..MaxPaddingWidth.
func ValidatePaddingWidth(width int) error {
	if width < 1 || width > MaxPaddingWidth {
		return fmt.Errorf("%w: padding_width debe estar entre 1 y %d", domain.ErrInvalidInput, MaxPaddingWidth)
	}
	return nil
}
