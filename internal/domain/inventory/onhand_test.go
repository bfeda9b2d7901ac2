package inventory_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/jhoicas/stockledger/internal/domain/entity"
	"github.com/jhoicas/stockledger/internal/domain/inventory"
)

var day0 = time.Date(2025, time.March, 1, 12, 0, 0, 0, time.UTC)

func day(n int) time.Time { return day0.AddDate(0, 0, n) }

func mov(qty int64, at time.Time, from, to string) *entity.Movement {
	return &entity.Movement{ItemKey: "SKU-1", Quantity: qty, OccurredAt: at, FromLocation: from, ToLocation: to}
}

// Ley de la suma: para cualquier T el resultado es la suma de cantidades con occurred_at <= T.
func TestOnHand_LeyDeLaSuma(t *testing.T) {
	movs := []*entity.Movement{
		mov(100, day(1), "", "WH1"),
		mov(-30, day(3), "WH1", ""),
		mov(50, day(7), "", "WH1"),
		mov(-5, day(7), "WH1", ""),
		mov(12, day(9), "", "WH2"),
	}
	for n := -1; n <= 12; n++ {
		var want int64
		for _, m := range movs {
			if !m.OccurredAt.After(day(n)) {
				want += m.Quantity
			}
		}
		acc := inventory.NewOnHand("SKU-1", "", day(n))
		for _, m := range movs {
			acc.Add(m)
		}
		assert.Equal(t, want, acc.Quantity(), "día %d", n)
	}
}

func TestOnHand_EmpateExactoIncluido(t *testing.T) {
	acc := inventory.NewOnHand("SKU-1", "", day(3))
	assert.True(t, acc.Add(mov(7, day(3), "", "WH1")), "occurred_at == asOf se incluye")
	assert.False(t, acc.Add(mov(7, day(3).Add(time.Nanosecond), "", "WH1")))
	assert.Equal(t, int64(7), acc.Quantity())
}

func TestOnHand_AntesDelPrimerMovimientoEsCero(t *testing.T) {
	acc := inventory.NewOnHand("SKU-1", "", day(0))
	acc.Add(mov(100, day(1), "", "WH1"))
	assert.Equal(t, int64(0), acc.Quantity())
	assert.Equal(t, 0, acc.Count())
}

func TestOnHand_FiltroDeUbicacion(t *testing.T) {
	acc := inventory.NewOnHand("SKU-1", "WH1", day(10))
	acc.Add(mov(100, day(1), "", "WH1"))
	acc.Add(mov(-40, day(2), "WH1", "WH2")) // sale de WH1
	acc.Add(mov(40, day(2), "WH1", "WH2"))  // entra a WH2
	assert.Equal(t, int64(60), acc.Quantity())

	all := inventory.NewOnHand("SKU-1", "", day(10))
	all.Add(mov(100, day(1), "", "WH1"))
	all.Add(mov(-40, day(2), "WH1", "WH2"))
	all.Add(mov(40, day(2), "WH1", "WH2"))
	assert.Equal(t, int64(100), all.Quantity())
	assert.Equal(t, map[string]int64{"WH1": 60, "WH2": 40}, all.ByLocation())
}

func TestOnHand_OtroItemIgnorado(t *testing.T) {
	acc := inventory.NewOnHand("SKU-1", "", day(10))
	other := mov(5, day(1), "", "WH1")
	other.ItemKey = "SKU-2"
	assert.False(t, acc.Add(other))
	assert.Equal(t, int64(0), acc.Quantity())
}

func TestOnHand_Valoracion(t *testing.T) {
	acc := inventory.NewOnHand("SKU-1", "", day(10))
	in := mov(10, day(1), "", "WH1")
	in.UnitCost = decimal.RequireFromString("2.50")
	out := mov(-4, day(2), "WH1", "")
	out.UnitCost = decimal.RequireFromString("2.50")
	acc.Add(in)
	acc.Add(out)
	assert.True(t, decimal.RequireFromString("15").Equal(acc.Value()), "valor = 10×2.50 − 4×2.50, obtenido %s", acc.Value())
}
