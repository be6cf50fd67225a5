package statemanager

import (
	"github.com/openvio/viostate/matrix"
	"github.com/openvio/viostate/state"
	"github.com/openvio/viostate/variable"
	"gonum.org/v1/gonum/mat"
)

// Clone duplicates target (or the sub-variable of a composite state
// variable located via CheckIfSubvariable) and appends the duplicate at
// the end of the state. It is fatal if target cannot be located within st.
func Clone(st *state.State, target variable.Variable) (variable.Variable, error) {
	const op = "Clone"

	found, _, ok := st.FindVariable(target)
	if !ok {
		return nil, newErr(op, ContractViolation, "variable to clone was not found in state")
	}

	n := st.N()
	s := found.Size()
	newLoc := n

	full := mat.NewDense(n+s, n+s, nil)
	matrix.SetBlock(full, 0, 0, st.Cov)

	lo, hi := variable.Range(found)
	colStripe := matrix.Block(st.Cov, 0, n, lo, hi)
	matrix.SetBlock(full, 0, newLoc, colStripe)
	matrix.SetBlock(full, newLoc, 0, colStripe.T())

	diag := matrix.Block(st.Cov, lo, hi, lo, hi)
	matrix.SetBlock(full, newLoc, newLoc, diag)

	next := matrix.ReflectUpper(full)
	if err := checkPostcondition(op, next); err != nil {
		return nil, err
	}
	st.Cov = next

	dup := found.Clone()
	dup.SetID(newLoc)
	st.Variables = append(st.Variables, dup)

	return dup, nil
}

// AugmentClone specializes Clone to the active IMU pose, registering the
// duplicate under st.Timestamp. It is fatal if a clone
// already exists at st.Timestamp, or if the cloned variable does not
// downcast to *variable.Pose.
//
// When st.Config.DoCalibCameraTimeoffset is set, angVel and linVel (the
// IMU's current angular and linear velocity) and timeOffsetVar (the
// camera-to-IMU time offset variable, which must have Size() == 1) are
// required; the first-order cross-covariance between the new clone and
// the time offset is folded in. They are ignored otherwise and may be nil.
func AugmentClone(st *state.State, imuPose *variable.Pose, angVel, linVel *mat.VecDense, timeOffsetVar variable.Variable) (*variable.Pose, error) {
	const op = "AugmentClone"

	if _, exists := st.ClonesByTime[st.Timestamp]; exists {
		return nil, newErr(op, ContractViolation, "a clone already exists at timestamp %v", st.Timestamp)
	}

	cloned, err := Clone(st, imuPose)
	if err != nil {
		return nil, err
	}

	pose, ok := cloned.(*variable.Pose)
	if !ok {
		return nil, newErr(op, ContractViolation, "cloned variable did not downcast to *variable.Pose")
	}

	st.Lock()
	st.ClonesByTime[st.Timestamp] = pose
	st.Unlock()

	if !st.Config.DoCalibCameraTimeoffset {
		return pose, nil
	}

	if timeOffsetVar.Size() != 1 {
		return nil, newErr(op, Assertion, "time offset variable must have size 1, got %d", timeOffsetVar.Size())
	}
	if angVel == nil || linVel == nil {
		return nil, newErr(op, ContractViolation, "angVel and linVel are required when DoCalibCameraTimeoffset is set")
	}

	j := mat.NewDense(6, 1, []float64{
		angVel.AtVec(0), angVel.AtVec(1), angVel.AtVec(2),
		linVel.AtVec(0), linVel.AtVec(1), linVel.AtVec(2),
	})

	n := st.N()
	dtLo, dtHi := variable.Range(timeOffsetVar)
	poseLo, poseHi := variable.Range(pose)

	full := fullDense(st.Cov)

	covDtCol := matrix.Block(full, 0, n, dtLo, dtHi)
	colAdd := &mat.Dense{}
	colAdd.Mul(covDtCol, j.T())
	existingCol := matrix.Block(full, 0, n, poseLo, poseHi)
	existingCol.Add(existingCol, colAdd)
	matrix.SetBlock(full, 0, poseLo, existingCol)

	covDtRow := matrix.Block(full, dtLo, dtHi, 0, n)
	rowAdd := &mat.Dense{}
	rowAdd.Mul(j, covDtRow)
	existingRow := matrix.Block(full, poseLo, poseHi, 0, n)
	existingRow.Add(existingRow, rowAdd)
	matrix.SetBlock(full, poseLo, 0, existingRow)

	next := matrix.ReflectUpper(full)
	if err := checkPostcondition(op, next); err != nil {
		return nil, err
	}
	st.Cov = next

	return pose, nil
}
