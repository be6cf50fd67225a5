// Package simscenario drives statemanager through a synthetic multi-step
// visual-inertial run: a constant-velocity IMU pose is propagated, cloned at
// each simulated camera frame, corrected against a noisy landmark bearing,
// and the oldest clone is marginalized once the sliding window fills.
//
// Something other than a single isolated call drives the algorithm here, so
// properties like marginalization consistency are exercised across more
// than one structural event.
package simscenario

import (
	"fmt"
	"time"

	"github.com/openvio/viostate/matrix"
	"github.com/openvio/viostate/noise"
	"github.com/openvio/viostate/state"
	"github.com/openvio/viostate/statemanager"
	"github.com/openvio/viostate/variable"
	"gonum.org/v1/gonum/mat"
)

// Config parametrizes a synthetic run.
type Config struct {
	// Steps is the number of simulated camera frames.
	Steps int
	// DT is the time, in seconds, between consecutive frames.
	DT float64
	// MaxCloneSize is the sliding-window size passed to state.Config.
	MaxCloneSize int
	// PoseProcessVar is the per-axis process noise variance applied to the
	// pose block at every propagation.
	PoseProcessVar float64
	// LandmarkVar is the measurement noise variance applied to the
	// synthetic landmark-bearing observation taken against each clone.
	LandmarkVar float64
	// Noiseless replaces both the process and measurement noise sources
	// with noise.Zero, producing a fully deterministic run driven by the
	// filter's own predicted trace alone.
	Noiseless bool
}

// DefaultConfig returns a small, fast-running configuration suitable for
// tests.
func DefaultConfig() Config {
	return Config{
		Steps:          12,
		DT:             0.1,
		MaxCloneSize:   5,
		PoseProcessVar: 1e-3,
		LandmarkVar:    1e-2,
	}
}

// noiseSource is the subset of noise.Gaussian/noise.Zero that Run needs;
// the two differ only in their Reset signature, so Run depends on neither
// concrete type directly.
type noiseSource interface {
	Sample() mat.Vector
	Cov() mat.Symmetric
}

// Result collects the per-step diagnostics a run produces, used both by
// this package's tests and by the cmd/viostate-replay demo's plot.
type Result struct {
	// TraceCov is trace(Cov) after each step's update and marginalization.
	TraceCov []float64
	// CloneCount is len(ClonesByTime) after each step's marginalization.
	CloneCount []int
	// MeasurementNoiseMean is the sample mean of every measurement noise
	// draw taken over the run, summarized via matrix.RowsMean.
	MeasurementNoiseMean []float64
	// MeasurementNoiseCov is the sample covariance of every measurement
	// noise draw taken over the run, summarized via matrix.SampleCov.
	MeasurementNoiseCov *mat.SymDense
}

// Run builds a fresh State seeded with a single 6-dof IMU pose and drives it
// through cfg.Steps propagate/augment-clone/update/marginalize-old-clone
// cycles, returning the final State and the diagnostics collected along the
// way.
func Run(cfg Config) (*state.State, *Result, error) {
	st := state.New(state.Config{MaxCloneSize: cfg.MaxCloneSize})

	pose := variable.NewPose(nil, mat.NewVecDense(3, []float64{0, 0, 0}))
	pose.SetID(0)
	st.Variables = []variable.Variable{pose}
	st.Cov = mat.NewSymDense(6, []float64{
		1e-4, 0, 0, 0, 0, 0,
		0, 1e-4, 0, 0, 0, 0,
		0, 0, 1e-4, 0, 0, 0,
		0, 0, 0, 1e-3, 0, 0,
		0, 0, 0, 0, 1e-3, 0,
		0, 0, 0, 0, 0, 1e-3,
	})

	measCov := mat.NewSymDense(1, []float64{cfg.LandmarkVar})

	var processNoise, measNoise noiseSource
	var err error
	if cfg.Noiseless {
		processNoise, err = noise.NewZero(6)
		if err != nil {
			return nil, nil, fmt.Errorf("simscenario: failed to build process noise: %w", err)
		}
		measNoise, err = noise.NewZero(1)
		if err != nil {
			return nil, nil, fmt.Errorf("simscenario: failed to build measurement noise: %w", err)
		}
	} else {
		processCov := mat.NewSymDense(6, nil)
		for i := 0; i < 6; i++ {
			processCov.SetSym(i, i, cfg.PoseProcessVar*cfg.DT)
		}
		processNoise, err = noise.NewGaussian(make([]float64, 6), processCov)
		if err != nil {
			return nil, nil, fmt.Errorf("simscenario: failed to build process noise: %w", err)
		}
		measNoise, err = noise.NewGaussian([]float64{0}, measCov)
		if err != nil {
			return nil, nil, fmt.Errorf("simscenario: failed to build measurement noise: %w", err)
		}
	}

	result := &Result{
		TraceCov:   make([]float64, 0, cfg.Steps),
		CloneCount: make([]int, 0, cfg.Steps),
	}
	measDraws := mat.NewDense(cfg.Steps, 1, nil)

	var timestamps []time.Time
	phi := identity(6)

	for step := 0; step < cfg.Steps; step++ {
		st.Timestamp = time.Unix(0, 0).Add(time.Duration(float64(step+1) * cfg.DT * float64(time.Second)))

		q := sampleSymmetricQ(processNoise, 6)
		if err := statemanager.Propagate(st, []variable.Variable{pose}, []variable.Variable{pose}, phi, q); err != nil {
			return nil, nil, fmt.Errorf("simscenario: step %d propagate: %w", step, err)
		}

		clonedVar, err := statemanager.AugmentClone(st, pose, nil, nil, nil)
		if err != nil {
			return nil, nil, fmt.Errorf("simscenario: step %d augment clone: %w", step, err)
		}
		timestamps = append(timestamps, st.Timestamp)

		draw := measNoise.Sample().At(0, 0)
		measDraws.Set(step, 0, draw)

		h := mat.NewDense(1, 3, []float64{1, 0, 0})
		r := mat.NewVecDense(1, []float64{draw})
		if err := statemanager.Update(st, []variable.Variable{clonedVar.Position()}, h, r, measCov); err != nil {
			return nil, nil, fmt.Errorf("simscenario: step %d update: %w", step, err)
		}

		if len(timestamps) > cfg.MaxCloneSize {
			oldest := timestamps[0]
			timestamps = timestamps[1:]
			if err := statemanager.MarginalizeOldClone(st, oldest); err != nil {
				return nil, nil, fmt.Errorf("simscenario: step %d marginalize old clone: %w", step, err)
			}
		}

		result.TraceCov = append(result.TraceCov, mat.Trace(st.Cov))
		result.CloneCount = append(result.CloneCount, len(st.ClonesByTime))
	}

	result.MeasurementNoiseMean = matrix.RowsMean(measDraws)
	noiseCov, err := matrix.SampleCov(measDraws, "rows")
	if err != nil {
		return nil, nil, fmt.Errorf("simscenario: failed to summarize measurement noise draws: %w", err)
	}
	result.MeasurementNoiseCov = noiseCov

	return st, result, nil
}

func identity(n int) *mat.Dense {
	out := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		out.Set(i, i, 1)
	}
	return out
}

// sampleSymmetricQ returns the diagonal of dist's covariance as the n x n
// Q Propagate expects. No sample is drawn from dist: Propagate's Q
// parameter is a covariance, not a sample.
func sampleSymmetricQ(dist noiseSource, n int) *mat.Dense {
	cov := dist.Cov()
	out := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		out.Set(i, i, cov.At(i, i))
	}
	return out
}
