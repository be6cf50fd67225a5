package statemanager

import (
	"github.com/openvio/viostate/matrix"
	"github.com/openvio/viostate/variable"
	"gonum.org/v1/gonum/mat"
)

// diagTol is the tolerance below zero a diagonal entry may fall to before
// it is treated as a NumericalViolation, absorbing ordinary floating point
// noise from the block algebra.
const diagTol = -1e-9

func sumSizes(vars []variable.Variable) int {
	total := 0
	for _, v := range vars {
		total += v.Size()
	}
	return total
}

// checkContiguous verifies the in-memory-contiguity precondition order_new
// must satisfy: v[i+1].ID() == v[i].ID() + v[i].Size() for every adjacent
// pair.
func checkContiguous(op string, vars []variable.Variable) error {
	if len(vars) == 0 {
		return newErr(op, ContractViolation, "order_new must not be empty")
	}
	for i := 0; i+1 < len(vars); i++ {
		if vars[i+1].ID() != vars[i].ID()+vars[i].Size() {
			return newErr(op, ContractViolation,
				"order_new is not contiguous at index %d: %d != %d+%d",
				i+1, vars[i+1].ID(), vars[i].ID(), vars[i].Size())
		}
	}
	return nil
}

// checkNonEmpty is the shared ContractViolation guard for orders that need
// not be contiguous (order_old, H_order) but must not be empty.
func checkNonEmpty(op, name string, vars []variable.Variable) error {
	if len(vars) == 0 {
		return newErr(op, ContractViolation, "%s must not be empty", name)
	}
	return nil
}

// checkPostcondition enforces the diagonal non-negativity postcondition
// every public statemanager operation carries.
func checkPostcondition(op string, cov *mat.SymDense) error {
	if min := matrix.MinDiag(cov); min < diagTol {
		return newErr(op, NumericalViolation, "negative covariance diagonal entry: %v", min)
	}
	return nil
}

// fullDense returns a Dense copy of a state's current covariance, to be
// mutated block-wise and reflected back into a SymDense at the end of an
// operation.
func fullDense(cov *mat.SymDense) *mat.Dense {
	n := cov.SymmetricDim()
	out := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			out.Set(i, j, cov.At(i, j))
		}
	}
	return out
}
