package statemanager

import (
	"github.com/openvio/viostate/matrix"
	"github.com/openvio/viostate/state"
	"github.com/openvio/viostate/variable"
	"gonum.org/v1/gonum/mat"
)

// Propagate is the time update. orderNew is the in-memory-contiguous block
// of variables whose rows phi predicts; orderOld is the (not necessarily
// contiguous) list of variables phi's columns reference. phi has rows ==
// sum(sizes(orderNew)), cols == sum(sizes(orderOld)). q is square with side
// == rows(phi) and supplied symmetric.
//
// Propagate mutates only st.Cov; it never touches variable values or
// layout. Kinematic integration of the mean is an external collaborator's
// responsibility.
func Propagate(st *state.State, orderNew, orderOld []variable.Variable, phi, q *mat.Dense) error {
	const op = "Propagate"

	if err := checkContiguous(op, orderNew); err != nil {
		return err
	}
	if err := checkNonEmpty(op, "order_old", orderOld); err != nil {
		return err
	}

	m := sumSizes(orderNew)
	colsOld := sumSizes(orderOld)

	if r, c := phi.Dims(); r != m || c != colsOld {
		return newErr(op, Assertion, "phi dims [%d x %d] do not match orders [%d x %d]", r, c, m, colsOld)
	}
	if r, c := q.Dims(); r != m || c != m {
		return newErr(op, Assertion, "q dims [%d x %d] do not match phi rows %d", r, c, m)
	}

	n := st.N()

	// CovPhiT = A * phi^T, accumulated block-wise: for each variable in
	// order_old, only the matching column-slice of Cov is multiplied
	// against the corresponding row-slice of phi^T (i.e. column-slice of
	// phi).
	covPhiT := mat.NewDense(n, m, nil)
	oldOff := 0
	for _, v := range orderOld {
		lo, hi := variable.Range(v)
		size := hi - lo
		covBlock := matrix.Block(st.Cov, 0, n, lo, hi)
		phiBlock := matrix.Block(phi, 0, m, oldOff, oldOff+size)

		contrib := &mat.Dense{}
		contrib.Mul(covBlock, phiBlock.T())
		covPhiT.Add(covPhiT, contrib)

		oldOff += size
	}

	// B = rows of CovPhiT selected by order_old, stacked in the same
	// order: B[oldOff:oldOff+size, :] = CovPhiT[v.range, :].
	b := mat.NewDense(colsOld, m, nil)
	oldOff = 0
	for _, v := range orderOld {
		lo, hi := variable.Range(v)
		size := hi - lo
		block := matrix.Block(covPhiT, lo, hi, 0, m)
		matrix.SetBlock(b, oldOff, 0, block)
		oldOff += size
	}

	phiCovPhiT := &mat.Dense{}
	phiCovPhiT.Mul(phi, b)
	phiCovPhiT.Add(phiCovPhiT, q)

	full := fullDense(st.Cov)
	blockOff := orderNew[0].ID()
	matrix.SetBlock(full, 0, blockOff, covPhiT)
	matrix.SetBlock(full, blockOff, 0, covPhiT.T())
	matrix.SetBlock(full, blockOff, blockOff, phiCovPhiT)

	next := matrix.ReflectUpper(full)
	if err := checkPostcondition(op, next); err != nil {
		return err
	}
	st.Cov = next

	return nil
}
