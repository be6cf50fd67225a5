// Package clonesmooth backward-smooths the sliding window of cloned poses a
// state.State keeps in ClonesByTime, given the per-interval transition each
// propagate/augment_clone cycle produced.
//
// There is no linear mean to carry backward here: a statemanager
// error-state resets to zero at every boxplus update, so only the
// covariance half of the Rauch-Tung-Striebel recursion applies. Smooth is
// that half.
package clonesmooth

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// Transition records what a clone scheduler needs to remember about one
// propagation interval between two consecutive clones, oldest first, to
// later smooth that window: the pose-block state transition used by
// statemanager.Propagate, the clone's marginal covariance immediately after
// that propagation (prior to its own measurement update), and the clone's
// marginal covariance immediately after its own update.
type Transition struct {
	Phi          *mat.Dense
	PriorCov     *mat.SymDense
	PosteriorCov *mat.SymDense
}

// Smooth runs the backward covariance recursion over transitions, oldest
// first, given final — the already-optimal marginal covariance of the
// newest clone, typically state.ClonesByTime's current entry straight out of
// GetMarginalCovariance. It returns one smoothed covariance per transition,
// oldest first, each refining that clone's PosteriorCov using everything
// observed after it.
func Smooth(final *mat.SymDense, transitions []Transition) ([]*mat.SymDense, error) {
	if len(transitions) == 0 {
		return nil, nil
	}

	out := make([]*mat.SymDense, len(transitions))
	next := final

	for i := len(transitions) - 1; i >= 0; i-- {
		tr := transitions[i]

		n := tr.PosteriorCov.SymmetricDim()
		if r, c := tr.Phi.Dims(); r != n || c != n {
			return nil, fmt.Errorf("clonesmooth: Phi dims [%d x %d] do not match pose size %d", r, c, n)
		}

		var priorInv mat.Dense
		if err := priorInv.Inverse(tr.PriorCov); err != nil {
			return nil, fmt.Errorf("clonesmooth: prior covariance is not invertible: %w", err)
		}

		c := &mat.Dense{}
		c.Mul(tr.PosteriorCov, tr.Phi.T())
		c.Mul(c, &priorInv)

		diff := &mat.Dense{}
		diff.Sub(next, tr.PriorCov)

		correction := &mat.Dense{}
		correction.Mul(c, diff)
		correction.Mul(correction, c.T())

		smoothedDense := &mat.Dense{}
		smoothedDense.Add(tr.PosteriorCov, correction)

		smoothed := mat.NewSymDense(n, nil)
		for a := 0; a < n; a++ {
			for b := a; b < n; b++ {
				smoothed.SetSym(a, b, smoothedDense.At(a, b))
			}
		}

		out[i] = smoothed
		next = smoothed
	}

	return out, nil
}
