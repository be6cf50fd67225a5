// Package variable implements the named, addressable blocks that make up
// the aggregate error-state vector tracked by a state.State.
package variable

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// Kind identifies the concrete shape of a Variable. It is a closed set:
// every Variable implementation in this package maps to exactly one Kind.
// statemanager's downcast after Clone (in AugmentClone) is a type assertion
// to *Pose, not a Kind check.
type Kind int

const (
	// KindVec is a generic calibration scalar/vector.
	KindVec Kind = iota
	// KindOrientation is a 3-dof attitude, stored as a JPL quaternion.
	KindOrientation
	// KindPosition is a 3-dof Euclidean point.
	KindPosition
	// KindPose is a 6-dof composite of an Orientation and a Position.
	KindPose
)

func (k Kind) String() string {
	switch k {
	case KindVec:
		return "vec"
	case KindOrientation:
		return "orientation"
	case KindPosition:
		return "position"
	case KindPose:
		return "pose"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Detached is the id of a Variable that is not currently attached to any
// state.State.
const Detached = -1

// Variable is a named, addressable block inside the global error-state
// vector. Implementations are value-holders over an over-parameterized
// representation (quaternion, vec3, ...) with a minimal-dimension tangent
// update.
type Variable interface {
	// ID is this variable's starting row/column in the owning Cov, or
	// Detached if it is not currently attached to a state.
	ID() int
	// SetID reassigns the starting row/column. Called only by the
	// statemanager package during structural mutation.
	SetID(id int)
	// Size is the minimal tangent-space dimension.
	Size() int
	// Kind reports the concrete variable kind.
	Kind() Kind
	// Value returns the over-parameterized value, opaque to statemanager.
	Value() mat.Vector
	// Update applies a minimal-dimension correction (generalized boxplus).
	// delta.Len() must equal Size().
	Update(delta mat.Vector)
	// Clone returns an independent copy with identical Kind, Size and
	// Value, detached (ID() == Detached) until the caller attaches it.
	Clone() Variable
	// CheckIfSubvariable reports whether target is this variable itself or
	// one of its sub-variables, returning the matching Variable. Composite
	// kinds (Pose) delegate to their children; leaf kinds only match
	// themselves.
	CheckIfSubvariable(target Variable) (Variable, bool)
}

// Range returns the half-open covariance row/column range [id, id+size)
// occupied by v while attached.
func Range(v Variable) (lo, hi int) {
	return v.ID(), v.ID() + v.Size()
}

// Vec is a generic minimal-dimension calibration block (e.g. the
// camera-to-IMU time offset, or an intrinsics vector), updated by plain
// vector addition.
type Vec struct {
	id    int
	size  int
	value *mat.VecDense
}

// NewVec creates a Vec of the given size initialized to value. value may be
// nil, in which case the block starts at zero.
func NewVec(size int, value *mat.VecDense) *Vec {
	v := mat.NewVecDense(size, nil)
	if value != nil {
		v.CopyVec(value)
	}
	return &Vec{id: Detached, size: size, value: v}
}

func (v *Vec) ID() int      { return v.id }
func (v *Vec) SetID(id int) { v.id = id }
func (v *Vec) Size() int    { return v.size }
func (v *Vec) Kind() Kind   { return KindVec }

func (v *Vec) Value() mat.Vector {
	out := mat.NewVecDense(v.size, nil)
	out.CopyVec(v.value)
	return out
}

func (v *Vec) Update(delta mat.Vector) {
	if delta.Len() != v.size {
		panic(fmt.Sprintf("variable: Vec.Update: size mismatch %d != %d", delta.Len(), v.size))
	}
	for i := 0; i < v.size; i++ {
		v.value.SetVec(i, v.value.AtVec(i)+delta.AtVec(i))
	}
}

func (v *Vec) Clone() Variable {
	return &Vec{id: Detached, size: v.size, value: v.Value().(*mat.VecDense)}
}

func (v *Vec) CheckIfSubvariable(target Variable) (Variable, bool) {
	if target == Variable(v) {
		return v, true
	}
	return nil, false
}

// Position is a 3-dof Euclidean point, e.g. a SLAM landmark in XYZ
// parametrization. Boxplus is plain vector addition.
type Position struct {
	id    int
	value *mat.VecDense
}

// NewPosition creates a Position initialized to xyz (length 3).
func NewPosition(xyz *mat.VecDense) *Position {
	v := mat.NewVecDense(3, nil)
	if xyz != nil {
		v.CopyVec(xyz)
	}
	return &Position{id: Detached, value: v}
}

func (p *Position) ID() int      { return p.id }
func (p *Position) SetID(id int) { p.id = id }
func (p *Position) Size() int    { return 3 }
func (p *Position) Kind() Kind   { return KindPosition }

func (p *Position) Value() mat.Vector {
	out := mat.NewVecDense(3, nil)
	out.CopyVec(p.value)
	return out
}

func (p *Position) Update(delta mat.Vector) {
	if delta.Len() != 3 {
		panic(fmt.Sprintf("variable: Position.Update: size mismatch %d != 3", delta.Len()))
	}
	for i := 0; i < 3; i++ {
		p.value.SetVec(i, p.value.AtVec(i)+delta.AtVec(i))
	}
}

func (p *Position) Clone() Variable {
	return &Position{id: Detached, value: p.Value().(*mat.VecDense)}
}

func (p *Position) CheckIfSubvariable(target Variable) (Variable, bool) {
	if target == Variable(p) {
		return p, true
	}
	return nil, false
}

// Orientation is a 3-dof attitude, stored as a 4-vector JPL quaternion
// [qx, qy, qz, qw]. Boxplus composes a small-angle rotation.
type Orientation struct {
	id    int
	value *mat.VecDense
}

// NewOrientation creates an Orientation initialized to the JPL quaternion q
// (length 4). A nil q defaults to the identity quaternion.
func NewOrientation(q *mat.VecDense) *Orientation {
	v := mat.NewVecDense(4, []float64{0, 0, 0, 1})
	if q != nil {
		v.CopyVec(q)
	}
	return &Orientation{id: Detached, value: v}
}

func (o *Orientation) ID() int      { return o.id }
func (o *Orientation) SetID(id int) { o.id = id }
func (o *Orientation) Size() int    { return 3 }
func (o *Orientation) Kind() Kind   { return KindOrientation }

func (o *Orientation) Value() mat.Vector {
	out := mat.NewVecDense(4, nil)
	out.CopyVec(o.value)
	return out
}

// Update composes the current quaternion with the small-angle rotation
// exp(delta/2), JPL (right) convention: q_new = otimes(dq, q_old).
func (o *Orientation) Update(delta mat.Vector) {
	if delta.Len() != 3 {
		panic(fmt.Sprintf("variable: Orientation.Update: size mismatch %d != 3", delta.Len()))
	}
	dq := smallAngleQuat(delta.AtVec(0), delta.AtVec(1), delta.AtVec(2))
	q := quatMul(dq, [4]float64{o.value.AtVec(0), o.value.AtVec(1), o.value.AtVec(2), o.value.AtVec(3)})
	q = quatNormalize(q)
	o.value.SetVec(0, q[0])
	o.value.SetVec(1, q[1])
	o.value.SetVec(2, q[2])
	o.value.SetVec(3, q[3])
}

func (o *Orientation) Clone() Variable {
	return &Orientation{id: Detached, value: o.Value().(*mat.VecDense)}
}

func (o *Orientation) CheckIfSubvariable(target Variable) (Variable, bool) {
	if target == Variable(o) {
		return o, true
	}
	return nil, false
}

// smallAngleQuat builds the first-order JPL quaternion approximating a
// rotation of angle ||theta|| about axis theta/||theta||.
func smallAngleQuat(tx, ty, tz float64) [4]float64 {
	norm := math.Sqrt(tx*tx + ty*ty + tz*tz)
	if norm < 1e-8 {
		return [4]float64{0.5 * tx, 0.5 * ty, 0.5 * tz, 1.0}
	}
	half := 0.5 * norm
	s := math.Sin(half) / norm
	return [4]float64{tx * s, ty * s, tz * s, math.Cos(half)}
}

// quatMul computes the JPL quaternion product a otimes b, scalar-last.
func quatMul(a, b [4]float64) [4]float64 {
	return [4]float64{
		a[3]*b[0] + a[0]*b[3] - a[1]*b[2] + a[2]*b[1],
		a[3]*b[1] + a[0]*b[2] + a[1]*b[3] - a[2]*b[0],
		a[3]*b[2] - a[0]*b[1] + a[1]*b[0] + a[2]*b[3],
		a[3]*b[3] - a[0]*b[0] - a[1]*b[1] - a[2]*b[2],
	}
}

func quatNormalize(q [4]float64) [4]float64 {
	n := math.Sqrt(q[0]*q[0] + q[1]*q[1] + q[2]*q[2] + q[3]*q[3])
	if n == 0 {
		return [4]float64{0, 0, 0, 1}
	}
	return [4]float64{q[0] / n, q[1] / n, q[2] / n, q[3] / n}
}
