package shared

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidInput indicates malformed or out-of-range request data.
	ErrInvalidInput = errors.New("invalid input")
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrInsufficientStock indicates a consumption larger than the stock on hand.
	ErrInsufficientStock = errors.New("insufficient stock")
	// ErrInvalidFormula indicates a formula that does not parse or evaluate.
	ErrInvalidFormula = errors.New("invalid formula")
	// ErrUnknownVariable indicates a formula identifier absent from the variable context.
	ErrUnknownVariable = errors.New("unknown variable")
	// ErrMissingVariable indicates a required recipe variable was not supplied.
	ErrMissingVariable = errors.New("missing variable")
	// ErrMissingOption indicates a required recipe option was not selected.
	ErrMissingOption = errors.New("missing option")
	// ErrInvalidOption indicates a selected option value that the recipe does not declare.
	ErrInvalidOption = errors.New("invalid option")
	// ErrOutOfRange indicates a variable outside its declared bounds.
	ErrOutOfRange = errors.New("out of range")
	// ErrBusy indicates lock contention that exceeded the bounded wait.
	ErrBusy = errors.New("resource busy")
	// ErrInternal indicates an unexpected failure.
	ErrInternal = errors.New("internal error")
)

// InsufficientStockError carries the supply that could not cover a consumption.
type InsufficientStockError struct {
	SupplyID  string
	Required  float64
	Available float64
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock supply_id=%s required=%g available=%g", e.SupplyID, e.Required, e.Available)
}

// Is lets errors.Is match ErrInsufficientStock.
func (e *InsufficientStockError) Is(target error) bool {
	return target == ErrInsufficientStock
}

// Invalid wraps ErrInvalidInput with a formatted detail.
func Invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}

// NotFound wraps ErrNotFound naming the missing entity.
func NotFound(entity string, id any) error {
	return fmt.Errorf("%w: %s %v", ErrNotFound, entity, id)
}

// Internal wraps an unexpected failure so callers can still unwrap the cause.
func Internal(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %s: %w", ErrInternal, op, err)
}

// Kind reports the taxonomy name of err, "internal" when it matches none.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInsufficientStock):
		return "insufficient_stock"
	case errors.Is(err, ErrInvalidFormula):
		return "invalid_formula"
	case errors.Is(err, ErrUnknownVariable):
		return "unknown_variable"
	case errors.Is(err, ErrMissingVariable):
		return "missing_variable"
	case errors.Is(err, ErrMissingOption):
		return "missing_option"
	case errors.Is(err, ErrInvalidOption):
		return "invalid_option"
	case errors.Is(err, ErrOutOfRange):
		return "out_of_range"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrBusy):
		return "busy"
	case errors.Is(err, ErrInvalidInput):
		return "invalid_input"
	default:
		return "internal"
	}
}
