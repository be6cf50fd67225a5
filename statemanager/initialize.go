package statemanager

import (
	"github.com/openvio/viostate/chi2"
	"github.com/openvio/viostate/matrix"
	"github.com/openvio/viostate/state"
	"github.com/openvio/viostate/variable"
	"gonum.org/v1/gonum/mat"
)

// isIsotropic reports whether R is a diagonal matrix with all diagonal
// entries equal, the precondition delayed initialization places on the new
// variable's measurement noise.
func isIsotropic(covR *mat.SymDense) bool {
	n := covR.SymmetricDim()
	if n == 0 {
		return true
	}
	sigma := covR.At(0, 0)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			if i == j {
				if covR.At(i, j) != sigma {
					return false
				}
			} else if covR.At(i, j) != 0 {
				return false
			}
		}
	}
	return true
}

// Initialize adds newVar to st using a measurement whose Jacobian splits
// into [hR | hL], hL with newVar.Size() columns and at least that many rows
// (its top newVar.Size() rows become square after the QR sweep), via QR-based
// nullspace projection followed by a Mahalanobis gating test. It returns
// (true, nil) and mutates st on acceptance, or
// (false, nil) with st left unchanged if the gate rejects the residual —
// gating is the one recoverable outcome in this package. chi2Mult scales
// the 0.95 chi-squared quantile threshold.
//
// newVar must not already be attached; covR must be isotropic diagonal.
func Initialize(st *state.State, newVar variable.Variable, hOrder []variable.Variable, hR, hL *mat.Dense, r *mat.VecDense, covR *mat.SymDense, chi2Mult float64, sinks ...IntrinsicsSink) (bool, error) {
	const op = "Initialize"

	if newVar.ID() != variable.Detached {
		return false, newErr(op, ContractViolation, "new variable is already attached to state")
	}
	if !isIsotropic(covR) {
		return false, newErr(op, ContractViolation, "R must be isotropic diagonal for delayed initialization")
	}

	k := newVar.Size()
	hlRows, hlCols := hL.Dims()
	if hlCols != k {
		return false, newErr(op, Assertion, "H_L cols %d != new variable size %d", hlCols, k)
	}
	if hlRows < k {
		return false, newErr(op, Assertion, "H_L rows %d < new variable size %d", hlRows, k)
	}
	hrRows, hrCols := hR.Dims()
	if hrRows != hlRows {
		return false, newErr(op, Assertion, "H_R rows %d != H_L rows %d", hrRows, hlRows)
	}
	if hrCols != sumSizes(hOrder) {
		return false, newErr(op, Assertion, "H_R cols %d != sum(sizes(H_order)) %d", hrCols, sumSizes(hOrder))
	}

	hlWork := mat.DenseCopyOf(hL)
	hrWork := mat.DenseCopyOf(hR)
	rWork := mat.NewVecDense(r.Len(), nil)
	rWork.CopyVec(r)

	matrix.GivensEliminateUpperTriangular(hlWork, hrWork, rWork)

	hxInit := matrix.Block(hrWork, 0, k, 0, hrCols)
	hFInit := matrix.Block(hlWork, 0, k, 0, k)
	resInit := mat.NewVecDense(k, nil)
	for i := 0; i < k; i++ {
		resInit.SetVec(i, rWork.AtVec(i))
	}
	rInit := matrix.Block(covR, 0, k, 0, k)
	rInitSym, err := matrix.ToSymDense(rInit)
	if err != nil {
		return false, newErr(op, Assertion, "R_init is not symmetric: %v", err)
	}

	upRows := hlRows - k
	if upRows > 0 {
		hUp := matrix.Block(hrWork, k, hlRows, 0, hrCols)
		resUp := mat.NewVecDense(upRows, nil)
		for i := 0; i < upRows; i++ {
			resUp.SetVec(i, rWork.AtVec(k+i))
		}
		rUp := matrix.Block(covR, k, hlRows, k, hlRows)
		rUpSym, err := matrix.ToSymDense(rUp)
		if err != nil {
			return false, newErr(op, Assertion, "R_up is not symmetric: %v", err)
		}

		pUp := GetMarginalCovariance(st, hOrder)
		hp := &mat.Dense{}
		hp.Mul(hUp, pUp)
		s := &mat.Dense{}
		s.Mul(hp, hUp.T())
		s.Add(s, rUpSym)
		sSym := matrix.ReflectUpper(s)

		var chol mat.Cholesky
		if ok := chol.Factorize(sSym); !ok {
			return false, newErr(op, NumericalViolation, "gate innovation covariance is not positive definite")
		}
		sInv := mat.NewSymDense(upRows, nil)
		if err := chol.InverseTo(sInv); err != nil {
			return false, newErr(op, NumericalViolation, "failed to invert gate innovation covariance: %v", err)
		}

		tmp := mat.NewVecDense(upRows, nil)
		tmp.MulVec(sInv, resUp)
		chi2Val := mat.Dot(resUp, tmp)

		threshold := chi2Mult * chi2.Quantile95(resUp.Len())
		if chi2Val > threshold {
			return false, nil
		}

		if err := initializeInvertible(st, newVar, hOrder, hxInit, hFInit, resInit, rInitSym); err != nil {
			return false, err
		}

		if err := Update(st, hOrder, hUp, resUp, rUpSym, sinks...); err != nil {
			return false, err
		}

		return true, nil
	}

	if err := initializeInvertible(st, newVar, hOrder, hxInit, hFInit, resInit, rInitSym); err != nil {
		return false, err
	}

	return true, nil
}

// InitializeInvertible adds newVar to st directly, when the new-variable
// Jacobian hL is square and invertible.
func InitializeInvertible(st *state.State, newVar variable.Variable, hOrder []variable.Variable, hR, hL *mat.Dense, r *mat.VecDense, covR *mat.SymDense) error {
	return initializeInvertible(st, newVar, hOrder, hR, hL, r, covR)
}

func initializeInvertible(st *state.State, newVar variable.Variable, hOrder []variable.Variable, hR, hL *mat.Dense, r mat.Vector, covR *mat.SymDense) error {
	const op = "InitializeInvertible"

	k := newVar.Size()
	if rr, rc := hL.Dims(); rr != k || rc != k {
		return newErr(op, Assertion, "H_L must be square of side %d, got [%d x %d]", k, rr, rc)
	}

	n := st.N()
	hrRows, _ := hR.Dims()

	// M_a = Cov * H_R^T, accumulated column-sparsely like Update's M.
	ma := mat.NewDense(n, hrRows, nil)
	for _, v := range st.Variables {
		vLo, vHi := variable.Range(v)
		hOff := 0
		rowContrib := mat.NewDense(v.Size(), hrRows, nil)
		for _, meas := range hOrder {
			mLo, mHi := variable.Range(meas)
			size := mHi - mLo
			covBlock := matrix.Block(st.Cov, vLo, vHi, mLo, mHi)
			hBlock := matrix.Block(hR, 0, hrRows, hOff, hOff+size)

			contrib := &mat.Dense{}
			contrib.Mul(covBlock, hBlock.T())
			rowContrib.Add(rowContrib, contrib)

			hOff += size
		}
		matrix.SetBlock(ma, vLo, 0, rowContrib)
	}

	pSmall := GetMarginalCovariance(st, hOrder)
	hp := &mat.Dense{}
	hp.Mul(hR, pSmall)
	m := &mat.Dense{}
	m.Mul(hp, hR.T())
	m.Add(m, covR)
	mSym := matrix.ReflectUpper(m)

	var hlInv mat.Dense
	if err := hlInv.Inverse(hL); err != nil {
		return newErr(op, Assertion, "H_L is not invertible: %v", err)
	}

	pll := &mat.Dense{}
	tmp := &mat.Dense{}
	tmp.Mul(&hlInv, mSym)
	pll.Mul(tmp, hlInv.T())

	full := mat.NewDense(n+k, n+k, nil)
	matrix.SetBlock(full, 0, 0, st.Cov)

	crossTop := &mat.Dense{}
	crossTop.Mul(ma, hlInv.T())
	crossTop.Scale(-1, crossTop)
	matrix.SetBlock(full, 0, n, crossTop)
	matrix.SetBlock(full, n, 0, crossTop.T())
	matrix.SetBlock(full, n, n, pll)

	nextCov := matrix.ReflectUpper(full)
	if err := checkPostcondition(op, nextCov); err != nil {
		return err
	}
	st.Cov = nextCov

	delta := &mat.Dense{}
	delta.Mul(&hlInv, r)
	newVar.Update(delta.ColView(0))

	newVar.SetID(n)
	st.Variables = append(st.Variables, newVar)

	return nil
}
