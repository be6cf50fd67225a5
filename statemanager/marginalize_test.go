package statemanager

import (
	"testing"
	"time"

	"github.com/openvio/viostate/state"
	"github.com/openvio/viostate/variable"
	"github.com/stretchr/testify/assert"
	"gonum.org/v1/gonum/mat"
)

func newBlockState(sizes []int) (*state.State, []variable.Variable) {
	st := state.New(state.Config{})
	vars := make([]variable.Variable, len(sizes))
	id := 0
	for i, sz := range sizes {
		v := variable.NewVec(sz, nil)
		v.SetID(id)
		vars[i] = v
		id += sz
	}
	st.Variables = vars

	n := id
	vals := make([]float64, n*n)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			vals[i*n+j] = float64(i + j + 1)
		}
	}
	st.Cov = mat.NewSymDense(n, vals)
	return st, vars
}

// Seed scenario 4: marginalize the middle variable of three size-3
// variables in a size-9 state -> resulting Cov is exactly the 6x6 obtained
// by deleting rows/cols 3..5 of the original.
func TestMarginalizeSeedScenario(t *testing.T) {
	assert := assert.New(t)

	st, vars := newBlockState([]int{3, 3, 3})
	before := mat.DenseCopyOf(st.Cov)

	err := Marginalize(st, vars[1])
	assert.NoError(err)
	assert.Equal(6, st.N())

	keep := []int{0, 1, 2, 6, 7, 8}
	for i, gi := range keep {
		for j, gj := range keep {
			assert.InDelta(before.At(gi, gj), st.Cov.At(i, j), 1e-12)
		}
	}

	assert.Equal(variable.Detached, vars[1].ID())
	assert.Equal(0, vars[0].ID())
	assert.Equal(3, vars[2].ID())
}

func TestMarginalizeRejectsUnknownVariable(t *testing.T) {
	assert := assert.New(t)

	st, _ := newBlockState([]int{2, 2})
	stray := variable.NewVec(1, nil)

	err := Marginalize(st, stray)
	assert.Error(err)
	var serr *StateError
	assert.ErrorAs(err, &serr)
	assert.Equal(ContractViolation, serr.Kind)
}

func TestMarginalizeOldCloneNoopUnderWindow(t *testing.T) {
	assert := assert.New(t)

	st, vars := newBlockState([]int{1, 1})
	st.Config.MaxCloneSize = 5
	st.ClonesByTime[time.Unix(1, 0)] = variable.NewPose(nil, nil)
	_ = vars

	err := MarginalizeOldClone(st, time.Unix(1, 0))
	assert.NoError(err)
	assert.Equal(2, st.N())
}

func TestMarginalizeOldCloneEvictsOldest(t *testing.T) {
	assert := assert.New(t)

	st := state.New(state.Config{MaxCloneSize: 1})
	pose := variable.NewPose(nil, nil)
	pose.SetID(0)
	st.Variables = []variable.Variable{pose}
	st.Cov = mat.NewSymDense(6, nil)
	for i := 0; i < 6; i++ {
		st.Cov.SetSym(i, i, 1)
	}
	ts := time.Unix(42, 0)
	st.ClonesByTime[ts] = pose
	st.ClonesByTime[time.Unix(43, 0)] = pose

	err := MarginalizeOldClone(st, ts)
	assert.NoError(err)
	assert.Equal(0, st.N())
	_, ok := st.ClonesByTime[ts]
	assert.False(ok)
}

func TestMarginalizeSlamProtectsArucoRange(t *testing.T) {
	assert := assert.New(t)

	st, vars := newBlockState([]int{3, 3})
	st.Config.MaxArucoFeatures = 1

	st.SlamFeatures[2] = &state.SlamFeature{FeatureID: 2, Landmark: vars[0], ShouldMarg: true}
	st.SlamFeatures[10] = &state.SlamFeature{FeatureID: 10, Landmark: vars[1], ShouldMarg: true}

	err := MarginalizeSlam(st)
	assert.NoError(err)

	assert.NotEqual(variable.Detached, vars[0].ID())
	_, stillThere := st.SlamFeatures[2]
	assert.True(stillThere)

	_, removed := st.SlamFeatures[10]
	assert.False(removed)
}
