package core

import (
	"errors"
	"fmt"
)

var (
	ErrInstantOrder = errors.New("instant order violated")
	ErrStopped      = errors.New("timer stopped")
	ErrConfig       = errors.New("invalid configuration")
)

// ContractViolation panics with an error wrapping ErrInstantOrder. It is used when
// a caller asks for the duration between two instants given in the wrong order,
// which no caller can meaningfully recover from.
func ContractViolation(msg string, a ...any) {
	panic(fmt.Errorf("%w: %s", ErrInstantOrder, fmt.Sprintf(msg, a...)))
}
