package costing

import "github.com/shopspring/decimal"

// Balance es el saldo acumulado (cantidad, valor) de un grupo.
type Balance struct {
	Quantity decimal.Decimal
	Value    decimal.Decimal
}

// ZeroBalance es el saldo de partida de un grupo sin historia.
func ZeroBalance() Balance {
	return Balance{Quantity: decimal.Zero, Value: decimal.Zero}
}

// Add suma una entrada al saldo.
func (b Balance) Add(quantity, cost decimal.Decimal) Balance {
	return Balance{Quantity: b.Quantity.Add(quantity), Value: b.Value.Add(cost)}
}

// Sub resta un consumo al saldo.
func (b Balance) Sub(quantity, cost decimal.Decimal) Balance {
	return Balance{Quantity: b.Quantity.Sub(quantity), Value: b.Value.Sub(cost)}
}

// Equal compara cantidad y valor numéricamente.
func (b Balance) Equal(o Balance) bool {
	return b.Quantity.Equal(o.Quantity) && b.Value.Equal(o.Value)
}
