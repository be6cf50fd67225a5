package statemanager

import "fmt"

// Kind classifies a StateError by the fault it reports.
type Kind int

const (
	// ContractViolation covers empty orders, non-contiguous order_new,
	// size mismatches, sub-variable marginalization, non-isotropic R,
	// cloning an absent variable, augmenting at a duplicate timestamp, or
	// a pose downcast failure. Fatal: the caller must not continue using
	// this State.
	ContractViolation Kind = iota
	// NumericalViolation is a negative diagonal entry detected after a
	// mutation. Fatal.
	NumericalViolation
	// GateRejection is a Mahalanobis chi-squared test above threshold in
	// delayed initialization. Recoverable: Initialize returns (false, nil)
	// rather than a GateRejection error, but the Kind is retained here for
	// callers that want to classify a rejection explicitly via errors.As.
	GateRejection
	// Assertion covers internal dimension asserts in update/init that
	// indicate a collaborator supplied inconsistent matrices. Fatal.
	Assertion
)

func (k Kind) String() string {
	switch k {
	case ContractViolation:
		return "contract violation"
	case NumericalViolation:
		return "numerical violation"
	case GateRejection:
		return "gate rejection"
	case Assertion:
		return "assertion"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// StateError reports a fatal fault in a statemanager operation. There is no
// local recovery inside this package: a non-nil *StateError means the State
// must not be used for
// further operations without upstream intervention (e.g. resetting the
// filter).
type StateError struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *StateError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("statemanager: %s: %s: %v", e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("statemanager: %s: %s", e.Op, e.Kind)
}

func (e *StateError) Unwrap() error { return e.Err }

func newErr(op string, kind Kind, format string, args ...interface{}) *StateError {
	return &StateError{Op: op, Kind: kind, Err: fmt.Errorf(format, args...)}
}
