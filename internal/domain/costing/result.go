package costing

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/kardex-fifo/internal/domain"
	"github.com/jhoicas/kardex-fifo/internal/domain/entity"
)

// Status etiqueta el resultado de procesar un movimiento.
type Status int

const (
	StatusSuccess Status = iota
	StatusValidationError
	StatusInsufficientBalance
	StatusUnexpected
)

func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "success"
	case StatusValidationError:
		return "validation_error"
	case StatusInsufficientBalance:
		return "insufficient_balance"
	case StatusUnexpected:
		return "unexpected_error"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// Result es el resultado explícito de un manejador: el nuevo estado o la causa del fallo.
// Solo los campos del Status correspondiente son significativos.
type Result struct {
	Status Status
	State  State

	// StatusValidationError
	Reason string

	// StatusInsufficientBalance
	Requested decimal.Decimal
	Available decimal.Decimal

	// StatusUnexpected
	Cause error

	// Ajustes de tolerancia aplicados (recuperación, no error).
	Adjustments int
}

// Success construye un resultado exitoso.
func Success(s State) Result {
	return Result{Status: StatusSuccess, State: s}
}

// Invalid construye un error de validación.
func Invalid(reason string) Result {
	return Result{Status: StatusValidationError, Reason: reason}
}

// Insufficient construye un fallo por saldo insuficiente.
func Insufficient(requested, available decimal.Decimal) Result {
	return Result{Status: StatusInsufficientBalance, Requested: requested, Available: available}
}

// Unexpected envuelve cualquier otro fallo.
func Unexpected(err error) Result {
	return Result{Status: StatusUnexpected, Cause: err}
}

// OK indica si el movimiento quedó costeado.
func (r Result) OK() bool { return r.Status == StatusSuccess }

// Err convierte un fallo en error con contexto de grupo y movimiento; nil si fue exitoso.
func (r Result) Err(key entity.GroupKey, movementID int64) error {
	if r.OK() {
		return nil
	}
	return &MovementError{GroupKey: key, MovementID: movementID, Result: r}
}

// MovementError conserva el contexto completo de un fallo para diagnóstico.
type MovementError struct {
	GroupKey   entity.GroupKey
	MovementID int64
	Result     Result
}

func (e *MovementError) Error() string {
	switch e.Result.Status {
	case StatusValidationError:
		return fmt.Sprintf("grupo %s, movimiento %d: %s: %s", e.GroupKey, e.MovementID, domain.ErrInvalidInput, e.Result.Reason)
	case StatusInsufficientBalance:
		return fmt.Sprintf("grupo %s, movimiento %d: %s: solicitado %s, disponible %s",
			e.GroupKey, e.MovementID, domain.ErrInsufficientBalance, e.Result.Requested, e.Result.Available)
	default:
		return fmt.Sprintf("grupo %s, movimiento %d: %v", e.GroupKey, e.MovementID, e.Result.Cause)
	}
}

// Unwrap permite errors.Is contra los errores de dominio o la causa original.
func (e *MovementError) Unwrap() error {
	switch e.Result.Status {
	case StatusValidationError:
		return domain.ErrInvalidInput
	case StatusInsufficientBalance:
		return domain.ErrInsufficientBalance
	default:
		return e.Result.Cause
	}
}
