package statemanager

import (
	"time"

	"github.com/openvio/viostate/matrix"
	"github.com/openvio/viostate/state"
	"github.com/openvio/viostate/variable"
	"gonum.org/v1/gonum/mat"
)

// Marginalize removes variable m and its rows/columns from st.Cov. It is
// fatal if m is not a top-level entry of st.Variables — sub-variable
// marginalization is unsupported.
func Marginalize(st *state.State, m variable.Variable) error {
	const op = "Marginalize"

	idx := st.IndexOf(m)
	if idx < 0 {
		return newErr(op, ContractViolation, "variable is not a top-level entry of state, cannot marginalize")
	}

	a := m.ID()
	sm := m.Size()
	n := st.N()

	// gonum rejects zero-size matrices, so empty blocks (m first, m last,
	// or m the only variable) are skipped rather than copied.
	nextCov := &mat.SymDense{}
	if n-sm > 0 {
		full := mat.NewDense(n-sm, n-sm, nil)
		if a > 0 {
			matrix.SetBlock(full, 0, 0, matrix.Block(st.Cov, 0, a, 0, a))
		}
		if a > 0 && a+sm < n {
			topOff := matrix.Block(st.Cov, 0, a, a+sm, n)
			matrix.SetBlock(full, 0, a, topOff)
			matrix.SetBlock(full, a, 0, topOff.T())
		}
		if a+sm < n {
			matrix.SetBlock(full, a, a, matrix.Block(st.Cov, a+sm, n, a+sm, n))
		}

		nextCov = matrix.ReflectUpper(full)
		if err := checkPostcondition(op, nextCov); err != nil {
			return err
		}
	}

	st.Lock()
	st.Cov = nextCov
	newVars := make([]variable.Variable, 0, len(st.Variables)-1)
	for _, v := range st.Variables {
		if v == m {
			continue
		}
		if v.ID() > a {
			v.SetID(v.ID() - sm)
		}
		newVars = append(newVars, v)
	}
	st.Variables = newVars
	st.Unlock()

	m.SetID(variable.Detached)

	return nil
}

// MarginalizeOldClone evicts the oldest cloned pose (identified externally
// by the clone scheduler via oldestTimestamp) once the sliding window
// exceeds st.Config.MaxCloneSize. It is a no-op, not an error, when the
// window has not overflowed.
func MarginalizeOldClone(st *state.State, oldestTimestamp time.Time) error {
	const op = "MarginalizeOldClone"

	if len(st.ClonesByTime) <= st.Config.MaxCloneSize {
		return nil
	}

	pose, ok := st.ClonesByTime[oldestTimestamp]
	if !ok {
		return newErr(op, ContractViolation, "no clone registered at timestamp %v", oldestTimestamp)
	}

	if err := Marginalize(st, pose); err != nil {
		return err
	}

	st.Lock()
	delete(st.ClonesByTime, oldestTimestamp)
	st.Unlock()

	return nil
}

// MarginalizeSlam marginalizes every SLAM feature whose ShouldMarg flag is
// set and whose feature id exceeds 4*st.Config.MaxArucoFeatures — aruco
// landmarks at or below that id are protected.
func MarginalizeSlam(st *state.State) error {
	threshold := uint64(4 * st.Config.MaxArucoFeatures)

	for id, feat := range st.SlamFeatures {
		if !feat.ShouldMarg || id <= threshold {
			continue
		}
		if err := Marginalize(st, feat.Landmark); err != nil {
			return err
		}
		st.Lock()
		delete(st.SlamFeatures, id)
		st.Unlock()
	}

	return nil
}
