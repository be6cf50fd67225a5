package variable

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"gonum.org/v1/gonum/mat"
)

func TestVecUpdate(t *testing.T) {
	assert := assert.New(t)

	v := NewVec(2, mat.NewVecDense(2, []float64{1, 2}))
	v.Update(mat.NewVecDense(2, []float64{0.5, -1}))

	got := v.Value()
	assert.Equal(1.5, got.AtVec(0))
	assert.Equal(1.0, got.AtVec(1))
	assert.Equal(Detached, v.ID())
}

func TestVecClone(t *testing.T) {
	assert := assert.New(t)

	v := NewVec(3, mat.NewVecDense(3, []float64{1, 2, 3}))
	v.SetID(4)

	c := v.Clone()
	assert.Equal(Detached, c.ID())
	assert.Equal(v.Size(), c.Size())
	assert.Equal(v.Kind(), c.Kind())

	for i := 0; i < 3; i++ {
		assert.Equal(v.Value().AtVec(i), c.Value().AtVec(i))
	}

	// independence: mutating the clone must not mutate the source
	c.Update(mat.NewVecDense(3, []float64{1, 1, 1}))
	assert.NotEqual(v.Value().AtVec(0), c.Value().AtVec(0))
}

func TestPositionUpdate(t *testing.T) {
	assert := assert.New(t)

	p := NewPosition(mat.NewVecDense(3, []float64{0, 0, 0}))
	p.Update(mat.NewVecDense(3, []float64{1, 2, 3}))

	got := p.Value()
	assert.Equal(1.0, got.AtVec(0))
	assert.Equal(2.0, got.AtVec(1))
	assert.Equal(3.0, got.AtVec(2))
}

func TestOrientationUpdateIdentity(t *testing.T) {
	assert := assert.New(t)

	o := NewOrientation(nil)
	o.Update(mat.NewVecDense(3, []float64{0, 0, 0}))

	got := o.Value()
	assert.InDelta(0.0, got.AtVec(0), 1e-12)
	assert.InDelta(0.0, got.AtVec(1), 1e-12)
	assert.InDelta(0.0, got.AtVec(2), 1e-12)
	assert.InDelta(1.0, got.AtVec(3), 1e-12)
}

func TestOrientationUpdateStaysNormalized(t *testing.T) {
	assert := assert.New(t)

	o := NewOrientation(nil)
	o.Update(mat.NewVecDense(3, []float64{0.1, -0.2, 0.05}))

	got := o.Value()
	norm := got.AtVec(0)*got.AtVec(0) + got.AtVec(1)*got.AtVec(1) +
		got.AtVec(2)*got.AtVec(2) + got.AtVec(3)*got.AtVec(3)
	assert.InDelta(1.0, norm, 1e-9)
}

func TestPoseSetIDLaysOutChildrenContiguously(t *testing.T) {
	assert := assert.New(t)

	p := NewPose(nil, mat.NewVecDense(3, []float64{1, 2, 3}))
	p.SetID(10)

	assert.Equal(10, p.ID())
	assert.Equal(10, p.Orientation().ID())
	assert.Equal(13, p.Position().ID())
	assert.Equal(6, p.Size())
}

func TestPoseCheckIfSubvariable(t *testing.T) {
	assert := assert.New(t)

	p := NewPose(nil, nil)
	p.SetID(0)

	other := NewPosition(nil)

	found, ok := p.CheckIfSubvariable(p)
	assert.True(ok)
	assert.Equal(Variable(p), found)

	found, ok = p.CheckIfSubvariable(p.Orientation())
	assert.True(ok)
	assert.Equal(Variable(p.Orientation()), found)

	found, ok = p.CheckIfSubvariable(p.Position())
	assert.True(ok)
	assert.Equal(Variable(p.Position()), found)

	_, ok = p.CheckIfSubvariable(other)
	assert.False(ok)
}

func TestPoseCloneIsIndependent(t *testing.T) {
	assert := assert.New(t)

	p := NewPose(nil, mat.NewVecDense(3, []float64{1, 2, 3}))
	p.SetID(0)

	c := p.Clone().(*Pose)
	assert.Equal(Detached, c.ID())

	c.Update(mat.NewVecDense(6, []float64{0, 0, 0, 1, 1, 1}))

	pv := p.Value()
	cv := c.Value()
	assert.Equal(1.0, pv.AtVec(4))
	assert.Equal(2.0, cv.AtVec(4))
}
