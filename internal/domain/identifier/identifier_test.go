package identifier_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/stockledger/internal/domain"
	"github.com/jhoicas/stockledger/internal/domain/identifier"
	"github.com/jhoicas/stockledger/internal/domain/luhn"
)

var testDate = time.Date(2025, time.December, 6, 0, 0, 0, 0, time.UTC)

func TestFormatBatch_Formato(t *testing.T) {
	s, err := identifier.FormatBatch(testDate, 42, false)
	require.NoError(t, err)
	assert.Equal(t, "2025120600042", s)
	assert.Len(t, s, identifier.BatchLength)
}

// La hora y la zona horaria no deben afectar el sello de fecha.
func TestFormatBatch_IgnoraHora(t *testing.T) {
	loc := time.FixedZone("COT", -5*3600)
	s, err := identifier.FormatBatch(time.Date(2025, time.December, 6, 23, 59, 0, 0, loc), 1, false)
	require.NoError(t, err)
	assert.Equal(t, "2025120600001", s)
}

func TestBatch_RoundTripConYSinControl(t *testing.T) {
	for _, withCheck := range []bool{false, true} {
		s, err := identifier.FormatBatch(testDate, 99999, withCheck)
		require.NoError(t, err)
		f, err := identifier.ParseBatch(s, withCheck)
		require.NoError(t, err)
		assert.True(t, testDate.Equal(f.Date))
		assert.Equal(t, int64(99999), f.Sequence)
	}
}

func TestFormatSerial_Formato(t *testing.T) {
	s, err := identifier.FormatSerial(identifier.SerialFields{
		Date: testDate, CategoryCode: 101, SubBatch: 2, Unit: 35,
	}, false)
	require.NoError(t, err)
	assert.Equal(t, "2025120610100200035", s)
	assert.Len(t, s, identifier.SerialLength)
}

func TestSerial_RoundTripCampos(t *testing.T) {
	cases := []identifier.SerialFields{
		{Date: testDate, CategoryCode: 100, SubBatch: 0, Unit: 0},
		{Date: testDate, CategoryCode: 101, SubBatch: 1, Unit: 1},
		{Date: time.Date(1999, time.January, 31, 0, 0, 0, 0, time.UTC), CategoryCode: 250, SubBatch: 17, Unit: 4321},
		{Date: time.Date(2030, time.February, 28, 0, 0, 0, 0, time.UTC), CategoryCode: 999, SubBatch: 999, Unit: 99999},
	}
	for _, in := range cases {
		for _, withCheck := range []bool{false, true} {
			s, err := identifier.FormatSerial(in, withCheck)
			require.NoError(t, err)
			out, err := identifier.ParseSerial(s, withCheck)
			require.NoError(t, err)
			assert.True(t, in.Date.Equal(out.Date), "fecha")
			assert.Equal(t, in.CategoryCode, out.CategoryCode)
			assert.Equal(t, in.SubBatch, out.SubBatch)
			assert.Equal(t, in.Unit, out.Unit)
		}
	}
}

func TestSerial_ConControlEsLuhnValido(t *testing.T) {
	s, err := identifier.FormatSerial(identifier.SerialFields{Date: testDate, CategoryCode: 301, SubBatch: 4, Unit: 12}, true)
	require.NoError(t, err)
	require.Len(t, s, identifier.SerialLength+1)
	ok, err := luhn.Validate(s)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestSerialFields_Family(t *testing.T) {
	assert.Equal(t, 1, identifier.SerialFields{CategoryCode: 101}.Family())
	assert.Equal(t, 2, identifier.SerialFields{CategoryCode: 299}.Family())
	assert.Equal(t, 3, identifier.SerialFields{CategoryCode: 300}.Family())
}

// ── Errores de validación ─────────────────────────────────────────────────────

func TestFormat_CamposFueraDeRango(t *testing.T) {
	_, err := identifier.FormatBatch(testDate, 100000, false)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = identifier.FormatBatch(time.Time{}, 1, false)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = identifier.FormatSerial(identifier.SerialFields{Date: testDate, CategoryCode: 99, SubBatch: 1, Unit: 1}, false)
	assert.ErrorIs(t, err, domain.ErrInvalidInput, "código de categoría de dos dígitos")

	_, err = identifier.FormatSerial(identifier.SerialFields{Date: testDate, CategoryCode: 101, SubBatch: 1000, Unit: 1}, false)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = identifier.FormatSerial(identifier.SerialFields{Date: testDate, CategoryCode: 101, SubBatch: 1, Unit: 100000}, false)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestParse_EntradaInvalida(t *testing.T) {
	_, err := identifier.ParseSerial("20251206101002000", false)
	assert.ErrorIs(t, err, domain.ErrInvalidInput, "longitud incorrecta")

	_, err = identifier.ParseSerial("2025120610100200A35", false)
	assert.ErrorIs(t, err, domain.ErrInvalidInput, "no numérico")

	_, err = identifier.ParseSerial("2025133110100200035", false)
	assert.ErrorIs(t, err, domain.ErrInvalidInput, "mes 13")

	_, err = identifier.ParseBatch("2025120600042", true)
	assert.ErrorIs(t, err, domain.ErrInvalidInput, "falta el dígito de control")

	s, err := identifier.FormatBatch(testDate, 42, true)
	require.NoError(t, err)
	bad := []byte(s)
	bad[len(bad)-1] = '0' + (bad[len(bad)-1]-'0'+1)%10
	_, err = identifier.ParseBatch(string(bad), true)
	assert.ErrorIs(t, err, domain.ErrInvalidInput, "dígito de control alterado")
}
