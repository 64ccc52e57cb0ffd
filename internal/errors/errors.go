// Package errors defines the fault type the runtime core panics with when
// an internal invariant is broken. Faults are programmer errors or resource
// exhaustion, never conditions a script can trigger; expected failures are
// reported through sentinel return values instead.
package errors

import "fmt"

// FaultType classifies a fatal runtime fault.
type FaultType string

const (
	AssertionFault    FaultType = "AssertionFault"
	RootStackOverflow FaultType = "RootStackOverflow"
	StackOverflow     FaultType = "StackOverflow"
	UnhashableValue   FaultType = "UnhashableValue"
	EncodingFault     FaultType = "EncodingFault"
)

// Fault is the panic payload for unrecoverable core errors.
type Fault struct {
	Type    FaultType
	Message string
}

// Error implements the error interface.
func (f *Fault) Error() string {
	return fmt.Sprintf("%s: %s", f.Type, f.Message)
}

// NewFault creates a fault of the given type.
func NewFault(t FaultType, format string, args ...interface{}) *Fault {
	return &Fault{Type: t, Message: fmt.Sprintf(format, args...)}
}
