package statemanager

import (
	"testing"

	"github.com/openvio/viostate/state"
	"github.com/openvio/viostate/variable"
	"github.com/stretchr/testify/assert"
	"gonum.org/v1/gonum/mat"
)

// Seed scenario 6: invertible init with H_L = I and a prior-free hOrder
// variable (P_small = 0) -> new block P_LL = R exactly and cross-block
// = -Cov * H_R^T using the full aggregate covariance.
func TestInitializeInvertibleSeedScenario(t *testing.T) {
	assert := assert.New(t)

	st := state.New(state.Config{})
	a := variable.NewVec(1, nil)
	a.SetID(0)
	b := variable.NewVec(1, nil)
	b.SetID(1)
	st.Variables = []variable.Variable{a, b}
	st.Cov = mat.NewSymDense(2, []float64{0, 3, 3, 7})

	newVar := variable.NewVec(1, nil)
	hR := mat.NewDense(1, 1, []float64{2})
	hL := mat.NewDense(1, 1, []float64{1})
	r := mat.NewVecDense(1, []float64{0.5})
	covR := mat.NewSymDense(1, []float64{0.09})

	err := InitializeInvertible(st, newVar, []variable.Variable{a}, hR, hL, r, covR)
	assert.NoError(err)

	assert.Equal(3, st.N())
	assert.InDelta(0.09, st.Cov.At(2, 2), 1e-9)
	assert.InDelta(0.0, st.Cov.At(0, 2), 1e-9)
	assert.InDelta(-6.0, st.Cov.At(1, 2), 1e-9)
	assert.Equal(2, newVar.ID())
	assert.InDelta(0.5, newVar.Value().AtVec(0), 1e-9)
}

func TestInitializeInvertibleRejectsNonSquareHL(t *testing.T) {
	assert := assert.New(t)

	st, vars := newScalarState(1, []float64{1})
	newVar := variable.NewVec(1, nil)
	hR := mat.NewDense(2, 1, []float64{1, 1})
	hL := mat.NewDense(2, 1, []float64{1, 1})
	r := mat.NewVecDense(2, []float64{0.1, 0.1})
	covR := mat.NewSymDense(2, []float64{0.1, 0, 0, 0.1})

	err := InitializeInvertible(st, newVar, vars, hR, hL, r, covR)
	assert.Error(err)
	var serr *StateError
	assert.ErrorAs(err, &serr)
	assert.Equal(Assertion, serr.Kind)
}

// Initialize, upRows == 0: H_L already square, delegates entirely to the
// invertible path with no residual-update follow-up.
func TestInitializeSquareHLDelegatesToInvertible(t *testing.T) {
	assert := assert.New(t)

	st, vars := newScalarState(1, []float64{1})
	newVar := variable.NewVec(1, nil)
	hR := mat.NewDense(1, 1, []float64{2})
	hL := mat.NewDense(1, 1, []float64{1})
	r := mat.NewVecDense(1, []float64{0.4})
	covR := mat.NewSymDense(1, []float64{0.05})

	ok, err := Initialize(st, newVar, vars, hR, hL, r, covR, 1.0)
	assert.NoError(err)
	assert.True(ok)
	assert.Equal(2, st.N())
	assert.Equal(1, newVar.ID())
}

// Initialize, upRows > 0, residual constructed to rotate into an exact-zero
// nullspace-projected component: the gate always passes and the residual
// update runs against the original H_order.
func TestInitializeAcceptsAndGrowsByNewVariableSize(t *testing.T) {
	assert := assert.New(t)

	st, vars := newScalarState(1, []float64{1})
	newVar := variable.NewVec(1, nil)

	hR := mat.NewDense(2, 1, []float64{2, 3})
	hL := mat.NewDense(2, 1, []float64{1, 1})
	r := mat.NewVecDense(2, []float64{1000, 1000})
	covR := mat.NewSymDense(2, []float64{0.05, 0, 0, 0.05})

	ok, err := Initialize(st, newVar, vars, hR, hL, r, covR, 1.0)
	assert.NoError(err)
	assert.True(ok)
	assert.Equal(2, st.N())
	assert.Equal(1, newVar.ID())
}

// Seed scenario 5: res_up lying well outside the 95% gate -> returns false,
// state unchanged.
func TestInitializeGateRejectsLargeResidual(t *testing.T) {
	assert := assert.New(t)

	st, vars := newScalarState(1, []float64{2})
	newVar := variable.NewVec(1, nil)

	hR := mat.NewDense(2, 1, []float64{1, 1})
	hL := mat.NewDense(2, 1, []float64{1, 1})
	r := mat.NewVecDense(2, []float64{1000, -1000})
	covR := mat.NewSymDense(2, []float64{1, 0, 0, 1})

	before := mat.DenseCopyOf(st.Cov)

	ok, err := Initialize(st, newVar, vars, hR, hL, r, covR, 1.0)
	assert.NoError(err)
	assert.False(ok)
	assert.Equal(variable.Detached, newVar.ID())
	assert.Equal(1, st.N())
	assert.True(mat.EqualApprox(st.Cov, before, 1e-12))
}

func TestInitializeRejectsAlreadyAttachedVariable(t *testing.T) {
	assert := assert.New(t)

	st, vars := newScalarState(1, []float64{1})
	newVar := variable.NewVec(1, nil)
	newVar.SetID(0)

	hR := mat.NewDense(1, 1, []float64{1})
	hL := mat.NewDense(1, 1, []float64{1})
	r := mat.NewVecDense(1, []float64{0.1})
	covR := mat.NewSymDense(1, []float64{0.1})

	_, err := Initialize(st, newVar, vars, hR, hL, r, covR, 1.0)
	assert.Error(err)
	var serr *StateError
	assert.ErrorAs(err, &serr)
	assert.Equal(ContractViolation, serr.Kind)
}

func TestInitializeRejectsNonIsotropicR(t *testing.T) {
	assert := assert.New(t)

	st, vars := newScalarState(1, []float64{1})
	newVar := variable.NewVec(1, nil)

	hR := mat.NewDense(1, 1, []float64{1})
	hL := mat.NewDense(1, 1, []float64{1})
	r := mat.NewVecDense(1, []float64{0.1})
	covR2 := mat.NewSymDense(2, []float64{0.1, 0.05, 0.05, 0.2})

	_, err := Initialize(st, newVar, vars, hR, hL, r, covR2, 1.0)
	assert.Error(err)
	var serr *StateError
	assert.ErrorAs(err, &serr)
	assert.Equal(ContractViolation, serr.Kind)
}
