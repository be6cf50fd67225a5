package statemanager

import (
	"github.com/openvio/viostate/matrix"
	"github.com/openvio/viostate/state"
	"github.com/openvio/viostate/variable"
	"gonum.org/v1/gonum/mat"
)

// IntrinsicsSink mirrors an updated variable's value into an external
// camera object. Update calls every sink for every variable in hOrder
// after applying the correction, when st.Config.DoCalibCameraIntrinsics is
// set; it is the sink's job to ignore variables it doesn't own.
type IntrinsicsSink func(v variable.Variable)

// Update is the measurement update, in compressed form: it
// never forms the full H explicitly against Cov, only against the columns
// hOrder references. hOrder need not be contiguous. h has rows == r.Len(),
// cols == sum(sizes(hOrder)). R is square with side == r.Len().
func Update(st *state.State, hOrder []variable.Variable, h *mat.Dense, r mat.Vector, covR *mat.SymDense, sinks ...IntrinsicsSink) error {
	const op = "Update"

	if err := checkNonEmpty(op, "H_order", hOrder); err != nil {
		return err
	}

	rRows, hCols := h.Dims()
	if rRows != r.Len() {
		return newErr(op, Assertion, "h rows %d != residual length %d", rRows, r.Len())
	}
	if hCols != sumSizes(hOrder) {
		return newErr(op, Assertion, "h cols %d != sum(sizes(H_order)) %d", hCols, sumSizes(hOrder))
	}
	if covR.SymmetricDim() != rRows {
		return newErr(op, Assertion, "R dim %d != residual length %d", covR.SymmetricDim(), rRows)
	}

	n := st.N()

	// M = Cov * H^T, accumulated column-sparsely: only variables
	// referenced by hOrder contribute, and only the Cov block between the
	// iterated state variable and each measurement variable is touched.
	m := mat.NewDense(n, rRows, nil)
	for _, v := range st.Variables {
		vLo, vHi := variable.Range(v)
		hOff := 0
		rowContrib := mat.NewDense(v.Size(), rRows, nil)
		for _, meas := range hOrder {
			mLo, mHi := variable.Range(meas)
			size := mHi - mLo
			covBlock := matrix.Block(st.Cov, vLo, vHi, mLo, mHi)
			hBlock := matrix.Block(h, 0, rRows, hOff, hOff+size)

			contrib := &mat.Dense{}
			contrib.Mul(covBlock, hBlock.T())
			rowContrib.Add(rowContrib, contrib)

			hOff += size
		}
		matrix.SetBlock(m, vLo, 0, rowContrib)
	}

	pSmall := GetMarginalCovariance(st, hOrder)

	hp := &mat.Dense{}
	hp.Mul(h, pSmall)
	s := &mat.Dense{}
	s.Mul(hp, h.T())
	s.Add(s, covR)

	sSym := matrix.ReflectUpper(s)

	var chol mat.Cholesky
	if ok := chol.Factorize(sSym); !ok {
		return newErr(op, NumericalViolation, "innovation covariance is not positive definite, cannot solve via Cholesky")
	}

	sInv := mat.NewSymDense(rRows, nil)
	if err := chol.InverseTo(sInv); err != nil {
		return newErr(op, NumericalViolation, "failed to invert innovation covariance: %v", err)
	}

	k := &mat.Dense{}
	k.Mul(m, sInv)

	full := fullDense(st.Cov)
	km := &mat.Dense{}
	km.Mul(k, m.T())
	full.Sub(full, km)

	next := matrix.ReflectUpper(full)
	if err := checkPostcondition(op, next); err != nil {
		return err
	}
	st.Cov = next

	dx := mat.NewVecDense(n, nil)
	dx.MulVec(k, r)

	for _, v := range st.Variables {
		lo, hi := variable.Range(v)
		delta := mat.NewVecDense(v.Size(), nil)
		for i := lo; i < hi; i++ {
			delta.SetVec(i-lo, dx.AtVec(i))
		}
		v.Update(delta)
	}

	if st.Config.DoCalibCameraIntrinsics {
		for _, sink := range sinks {
			for _, meas := range hOrder {
				sink(meas)
			}
		}
	}

	return nil
}
