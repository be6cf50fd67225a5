package variable

import "gonum.org/v1/gonum/mat"

// Pose is a 6-dof composite variable: a 3-dof Orientation followed
// contiguously by a 3-dof Position, sharing one covariance block. It is
// the one composite kind in this closed set, so it is the only kind whose
// CheckIfSubvariable can return a different Variable than itself.
type Pose struct {
	id          int
	orientation *Orientation
	position    *Position
}

// NewPose creates a Pose from an orientation and a position. Both children
// start detached; attaching the Pose (via state/statemanager) assigns
// contiguous ids to the pose and, implicitly, to its children.
func NewPose(q, p *mat.VecDense) *Pose {
	return &Pose{
		id:          Detached,
		orientation: NewOrientation(q),
		position:    NewPosition(p),
	}
}

func (p *Pose) ID() int { return p.id }

// SetID assigns the pose's id and lays its children out contiguously
// within it: orientation occupies [id, id+3), position [id+3, id+6).
func (p *Pose) SetID(id int) {
	p.id = id
	if id == Detached {
		p.orientation.SetID(Detached)
		p.position.SetID(Detached)
		return
	}
	p.orientation.SetID(id)
	p.position.SetID(id + 3)
}

func (p *Pose) Size() int  { return 6 }
func (p *Pose) Kind() Kind { return KindPose }

// Orientation returns the pose's attitude sub-variable.
func (p *Pose) Orientation() *Orientation { return p.orientation }

// Position returns the pose's position sub-variable.
func (p *Pose) Position() *Position { return p.position }

func (p *Pose) Value() mat.Vector {
	out := mat.NewVecDense(7, nil)
	qv := p.orientation.Value()
	pv := p.position.Value()
	for i := 0; i < 4; i++ {
		out.SetVec(i, qv.AtVec(i))
	}
	for i := 0; i < 3; i++ {
		out.SetVec(4+i, pv.AtVec(i))
	}
	return out
}

// Update applies the first 3 entries of delta to the orientation and the
// last 3 to the position.
func (p *Pose) Update(delta mat.Vector) {
	if delta.Len() != 6 {
		panic("variable: Pose.Update: size mismatch, want 6")
	}
	dq := mat.NewVecDense(3, []float64{delta.AtVec(0), delta.AtVec(1), delta.AtVec(2)})
	dp := mat.NewVecDense(3, []float64{delta.AtVec(3), delta.AtVec(4), delta.AtVec(5)})
	p.orientation.Update(dq)
	p.position.Update(dp)
}

// Clone returns a detached copy of the pose, including fresh copies of its
// orientation and position children.
func (p *Pose) Clone() Variable {
	return &Pose{
		id:          Detached,
		orientation: p.orientation.Clone().(*Orientation),
		position:    p.position.Clone().(*Position),
	}
}

// CheckIfSubvariable reports whether target is the pose itself, its
// orientation, or its position.
func (p *Pose) CheckIfSubvariable(target Variable) (Variable, bool) {
	if target == Variable(p) {
		return p, true
	}
	if target == Variable(p.orientation) {
		return p.orientation, true
	}
	if target == Variable(p.position) {
		return p.position, true
	}
	return nil, false
}
