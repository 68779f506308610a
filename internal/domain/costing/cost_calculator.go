package costing

import "github.com/shopspring/decimal"

// Scale es la cantidad de decimales con la que se redondean costos unitarios y parciales.
const Scale int32 = 6

// Round redondea mitad hacia arriba a Scale decimales.
// decimal.Round redondea mitad alejándose de cero, equivalente para montos positivos.
func Round(d decimal.Decimal) decimal.Decimal {
	return d.Round(Scale)
}

// InflowUnitCost calcula el costo unitario de una entrada:
// CostoUnitario = (Cantidad * Precio + Comisión + Gastos + Impuestos) / Cantidad
func InflowUnitCost(quantity, price, fees decimal.Decimal) decimal.Decimal {
	if !quantity.IsPositive() {
		return decimal.Zero
	}
	gross := quantity.Mul(price).Add(fees)
	return gross.DivRound(quantity, Scale)
}

// TotalCost devuelve cantidad * costo unitario a la escala del kardex.
func TotalCost(quantity, unitCost decimal.Decimal) decimal.Decimal {
	return Round(quantity.Mul(unitCost))
}

// UnitCostOf deriva el costo unitario de un costo total; cero si la cantidad es cero.
func UnitCostOf(total, quantity decimal.Decimal) decimal.Decimal {
	if quantity.IsZero() {
		return decimal.Zero
	}
	return total.DivRound(quantity, Scale)
}

// AverageCost es el costo promedio del saldo consolidado: CostoTotal / Cantidad, o cero sin existencias.
func AverageCost(total, quantity decimal.Decimal) decimal.Decimal {
	if !quantity.IsPositive() {
		return decimal.Zero
	}
	return UnitCostOf(total, quantity)
}
