package statemanager

import (
	"testing"

	"github.com/openvio/viostate/state"
	"github.com/openvio/viostate/variable"
	"github.com/stretchr/testify/assert"
	"gonum.org/v1/gonum/mat"
)

func TestGetFullCovarianceIsACopy(t *testing.T) {
	assert := assert.New(t)

	st, _ := newScalarState(2, []float64{1, 0.5, 0.5, 2})
	full := GetFullCovariance(st)
	full.SetSym(0, 0, 99)

	assert.NotEqual(st.Cov.At(0, 0), full.At(0, 0))
}

func TestGetMarginalCovarianceReordersNonContiguousVariables(t *testing.T) {
	assert := assert.New(t)

	st, vars := newBlockState([]int{2, 2, 2})
	out := GetMarginalCovariance(st, []variable.Variable{vars[2], vars[0]})

	assert.Equal(4, out.RawMatrix().Rows)
	for i := 0; i < 2; i++ {
		for j := 0; j < 2; j++ {
			assert.InDelta(st.Cov.At(4+i, 4+j), out.At(i, j), 1e-12)
			assert.InDelta(st.Cov.At(0+i, 0+j), out.At(2+i, 2+j), 1e-12)
			assert.InDelta(st.Cov.At(4+i, 0+j), out.At(i, 2+j), 1e-12)
		}
	}
}

// Round-trip: set_initial_covariance with block-diagonal input then
// get_marginal_covariance over the same order returns the original input.
func TestSetInitialCovarianceRoundTrip(t *testing.T) {
	assert := assert.New(t)

	st, vars := newScalarState(2, nil)
	input := mat.NewDense(2, 2, []float64{3, 0, 0, 5})

	err := SetInitialCovariance(st, vars, input)
	assert.NoError(err)

	out := GetMarginalCovariance(st, vars)
	assert.True(mat.EqualApprox(out, input, 1e-12))
}

func TestSetInitialCovarianceRejectsDimMismatch(t *testing.T) {
	assert := assert.New(t)

	st, vars := newScalarState(2, nil)
	input := mat.NewDense(3, 3, nil)

	err := SetInitialCovariance(st, vars, input)
	assert.Error(err)
	var serr *StateError
	assert.ErrorAs(err, &serr)
	assert.Equal(Assertion, serr.Kind)
}

func TestSetInitialCovarianceRejectsEmptyOrder(t *testing.T) {
	assert := assert.New(t)

	st := state.New(state.Config{})
	err := SetInitialCovariance(st, nil, &mat.Dense{})
	assert.Error(err)
}
