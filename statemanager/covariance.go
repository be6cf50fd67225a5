package statemanager

import (
	"github.com/openvio/viostate/matrix"
	"github.com/openvio/viostate/state"
	"github.com/openvio/viostate/variable"
	"gonum.org/v1/gonum/mat"
)

// GetMarginalCovariance assembles the c x c marginal covariance of the
// given (not necessarily contiguous) ordered variables, c = sum of their
// sizes, by copying every Cov[a.range, b.range] block into the output's
// corresponding position. It performs no symmetrization: the result is
// exactly as symmetric as st.Cov already is. Pure function: st is not
// mutated.
func GetMarginalCovariance(st *state.State, order []variable.Variable) *mat.Dense {
	c := sumSizes(order)
	out := mat.NewDense(c, c, nil)

	iOff := 0
	for _, a := range order {
		aLo, aHi := variable.Range(a)
		kOff := 0
		for _, b := range order {
			bLo, bHi := variable.Range(b)
			block := matrix.Block(st.Cov, aLo, aHi, bLo, bHi)
			matrix.SetBlock(out, iOff, kOff, block)
			kOff += b.Size()
		}
		iOff += a.Size()
	}

	return out
}

// GetFullCovariance returns a copy of the entire aggregate covariance
// matrix.
func GetFullCovariance(st *state.State) *mat.SymDense {
	out := mat.NewSymDense(st.N(), nil)
	out.CopySym(st.Cov)
	return out
}

// SetInitialCovariance overwrites the blocks of st.Cov corresponding to
// order with cov (square, side == sum of order's sizes). The caller is assumed to have passed zeros for any cross-block between
// listed and unlisted variables it wants block-diagonal; SetInitialCovariance
// does not zero anything itself. It finishes by reflecting the upper
// triangle over the diagonal to guarantee symmetry.
func SetInitialCovariance(st *state.State, order []variable.Variable, cov *mat.Dense) error {
	const op = "SetInitialCovariance"

	if err := checkNonEmpty(op, "order", order); err != nil {
		return err
	}

	c := sumSizes(order)
	if r, cc := cov.Dims(); r != c || cc != c {
		return newErr(op, Assertion, "cov dims [%d x %d] do not match order size %d", r, cc, c)
	}

	full := fullDense(st.Cov)

	iOff := 0
	for _, a := range order {
		aLo, _ := variable.Range(a)
		kOff := 0
		for _, b := range order {
			bLo, _ := variable.Range(b)
			block := matrix.Block(cov, iOff, iOff+a.Size(), kOff, kOff+b.Size())
			matrix.SetBlock(full, aLo, bLo, block)
			kOff += b.Size()
		}
		iOff += a.Size()
	}

	next := matrix.ReflectUpper(full)
	if err := checkPostcondition(op, next); err != nil {
		return err
	}
	st.Cov = next

	return nil
}
