// Package state implements the aggregate error-state vector and covariance
// matrix shared by every statemanager operation.
package state

import (
	"sync"
	"time"

	"github.com/openvio/viostate/variable"
	"gonum.org/v1/gonum/mat"
)

// Config holds the configuration options statemanager consults. It is a
// plain struct the caller builds directly — no configuration framework is
// introduced, matching the ambient stack documented in SPEC_FULL.md.
type Config struct {
	// MaxCloneSize is the maximum number of cloned poses kept in
	// ClonesByTime before MarginalizeOldClone evicts the oldest one.
	MaxCloneSize int
	// MaxArucoFeatures protects SLAM feature ids in [0, 4*MaxArucoFeatures]
	// from MarginalizeSlam.
	MaxArucoFeatures int
	// DoCalibCameraTimeoffset enables the camera-to-IMU time offset
	// cross-covariance update in AugmentClone.
	DoCalibCameraTimeoffset bool
	// DoCalibCameraIntrinsics enables mirroring updated intrinsics into
	// external camera objects after Update.
	DoCalibCameraIntrinsics bool
}

// SlamFeature is a delayed-initialized landmark tracked for later
// marginalization.
type SlamFeature struct {
	// FeatureID is the external feature identifier that Config's aruco
	// protection range is keyed on.
	FeatureID uint64
	// Landmark is the state variable carrying the landmark's value.
	Landmark variable.Variable
	// ShouldMarg is set by the SLAM manager collaborator to flag the
	// feature for removal on the next MarginalizeSlam pass.
	ShouldMarg bool
}

// State owns the ordered collection of attached variables, their shared
// covariance matrix, and the auxiliary indexes (by clone timestamp, by SLAM
// feature id) that statemanager operations maintain alongside it.
type State struct {
	// Variables is the ordered, contiguous collection of top-level
	// attached variables. variables[0].ID() == 0 and
	// variables[k+1].ID() == variables[k].ID() + variables[k].Size().
	Variables []variable.Variable
	// Cov is the symmetric covariance matrix, side == sum of variable
	// sizes.
	Cov *mat.SymDense
	// ClonesByTime maps timestamp to a cloned pose present in Variables.
	// Injective on both keys and values.
	ClonesByTime map[time.Time]*variable.Pose
	// SlamFeatures maps feature id to a landmark variable present in
	// Variables.
	SlamFeatures map[uint64]*SlamFeature
	// Timestamp is the filter's current time, advanced by the IMU
	// integrator collaborator and consulted by AugmentClone.
	Timestamp time.Time
	// Config holds the enumerated options listed above.
	Config Config

	// mu guards structural mutation (marginalization, clone/feature map
	// edits) to serialize against external readers iterating these maps.
	// It is never held during the hot propagate/update algebra.
	mu sync.Mutex
}

// New creates an empty State with the given configuration. The caller seeds
// Variables and Cov directly; statemanager's clone/initialize family then
// grows them, and statemanager.SetInitialCovariance overwrites blocks of an
// already-sized Cov.
func New(cfg Config) *State {
	return &State{
		Variables:    nil,
		Cov:          &mat.SymDense{},
		ClonesByTime: make(map[time.Time]*variable.Pose),
		SlamFeatures: make(map[uint64]*SlamFeature),
		Config:       cfg,
	}
}

// N returns the current covariance side, i.e. the total error-state
// dimension.
func (s *State) N() int {
	return s.Cov.SymmetricDim()
}

// Lock acquires the structural mutex. Call before editing
// ClonesByTime/SlamFeatures outside of the statemanager package; statemanager
// operations acquire it themselves, so it must not be held while calling them.
func (s *State) Lock() { s.mu.Lock() }

// Unlock releases the structural mutex.
func (s *State) Unlock() { s.mu.Unlock() }

// FindVariable returns the top-level variable or sub-variable matching
// target, and the top-level variable that owns it (itself, for a
// non-composite match).
func (s *State) FindVariable(target variable.Variable) (found, owner variable.Variable, ok bool) {
	for _, v := range s.Variables {
		if match, ok := v.CheckIfSubvariable(target); ok {
			return match, v, true
		}
	}
	return nil, nil, false
}

// IndexOf returns the index of v within Variables, or -1 if v is not a
// top-level variable of this state.
func (s *State) IndexOf(v variable.Variable) int {
	for i, cand := range s.Variables {
		if cand == v {
			return i
		}
	}
	return -1
}
