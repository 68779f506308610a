package entity

import (
	"fmt"
	"strings"
)

// GroupKey particiona todo el estado FIFO: entidad, custodio, instrumento y cuenta.
type GroupKey struct {
	EntityID     string
	CustodianID  string
	InstrumentID string
	AccountID    string
}

// String devuelve la clave en formato entidad/custodio/instrumento/cuenta.
func (k GroupKey) String() string {
	return strings.Join([]string{k.EntityID, k.CustodianID, k.InstrumentID, k.AccountID}, "/")
}

// IsZero indica si ninguna de las partes de la clave está definida.
func (k GroupKey) IsZero() bool {
	return k == GroupKey{}
}

// ParseGroupKey interpreta una clave en formato entidad/custodio/instrumento/cuenta.
func ParseGroupKey(s string) (GroupKey, error) {
	parts := strings.Split(s, "/")
	if len(parts) != 4 {
		return GroupKey{}, fmt.Errorf("clave de grupo %q: se esperaban 4 partes separadas por '/'", s)
	}
	for _, p := range parts {
		if strings.TrimSpace(p) == "" {
			return GroupKey{}, fmt.Errorf("clave de grupo %q: parte vacía", s)
		}
	}
	return GroupKey{EntityID: parts[0], CustodianID: parts[1], InstrumentID: parts[2], AccountID: parts[3]}, nil
}
