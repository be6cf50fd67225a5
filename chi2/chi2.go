// Package chi2 provides the chi-squared quantile function the Mahalanobis
// gate in delayed initialization gates its residual against.
package chi2

import "gonum.org/v1/gonum/stat/distuv"

// maxTableDof is the largest degree of freedom served from the
// precomputed table; larger dof falls back to distuv directly.
const maxTableDof = 30

// quantile95 is a small precomputed table of the 0.95 quantile of the
// chi-squared distribution, keyed by degrees of freedom (index 0 unused).
// Computed once at init time via distuv.ChiSquared.
var quantile95 [maxTableDof + 1]float64

func init() {
	for dof := 1; dof <= maxTableDof; dof++ {
		quantile95[dof] = distuv.ChiSquared{K: float64(dof)}.Quantile(0.95)
	}
}

// Quantile95 returns the 0.95 quantile of the chi-squared distribution
// with the given integer degrees of freedom. dof must be >= 1.
func Quantile95(dof int) float64 {
	if dof < 1 {
		return 0
	}
	if dof <= maxTableDof {
		return quantile95[dof]
	}
	return distuv.ChiSquared{K: float64(dof)}.Quantile(0.95)
}
