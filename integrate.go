/*
Copyright © 2019 the GrainFit authors.
This file is part of GrainFit.

GrainFit is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

GrainFit is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with GrainFit.  If not, see <http://www.gnu.org/licenses/>.
*/

package grainfit

import "github.com/ctessum/sparse"

// trapezoid integrates kernel(a)·n(a) over the grain size grid using the
// trapezoidal rule on the non-uniform grid. It assumes the inputs have
// already been validated: sizes strictly increasing, dist non-negative, all
// three slices the same length.
func trapezoid(sizes, dist, kernel []float64) float64 {
	var sum float64
	for i := 0; i < len(sizes)-1; i++ {
		sum += 0.5 * (sizes[i+1] - sizes[i]) *
			(kernel[i]*dist[i] + kernel[i+1]*dist[i+1])
	}
	return sum
}

// trapezoidColumns integrates each wavelength column of the per-size table
// against the size distribution, returning one value per wavelength.
func trapezoidColumns(sizes, dist []float64, table *sparse.DenseArray) []float64 {
	nw := table.Shape[1]
	out := make([]float64, nw)
	e := table.Elements
	for i := 0; i < len(sizes)-1; i++ {
		da := 0.5 * (sizes[i+1] - sizes[i])
		row, next := i*nw, (i+1)*nw
		for j := 0; j < nw; j++ {
			out[j] += da * (e[row+j]*dist[i] + e[next+j]*dist[i+1])
		}
	}
	return out
}

// trapezoidColumnsProduct is trapezoidColumns with the element-wise product
// of two per-size tables as the kernel. It is used for the
// scattering-cross-section-weighted asymmetry parameter numerator.
func trapezoidColumnsProduct(sizes, dist []float64, a, b *sparse.DenseArray) []float64 {
	nw := a.Shape[1]
	out := make([]float64, nw)
	ae, be := a.Elements, b.Elements
	for i := 0; i < len(sizes)-1; i++ {
		da := 0.5 * (sizes[i+1] - sizes[i])
		row, next := i*nw, (i+1)*nw
		for j := 0; j < nw; j++ {
			out[j] += da * (ae[row+j]*be[row+j]*dist[i] +
				ae[next+j]*be[next+j]*dist[i+1])
		}
	}
	return out
}

// abundanceWeighting computes the per-size quadrature kernel converting a
// size distribution into an atom count for one element. Implementations
// correspond to the CompositionKind variants.
type abundanceWeighting interface {
	kernel(c *GrainComposition, ei int) []float64
}

// bareWeighting is the homogeneous-grain volume kernel a³·colDen.
type bareWeighting struct{}

func (bareWeighting) kernel(c *GrainComposition, ei int) []float64 {
	k := make([]float64, len(c.Sizes))
	for i, a := range c.Sizes {
		k[i] = a * a * a * c.colDen[ei]
	}
	return k
}

// coreMantleWeighting splits the grain volume into a core of the bulk
// material and a mantle shell of fixed thickness. The column density
// constant is derived from the bulk density, so mantle contributions carry
// a mantle/bulk density ratio correction. Grains no larger than the mantle
// thickness are pure mantle material.
type coreMantleWeighting struct{}

func (coreMantleWeighting) kernel(c *GrainComposition, ei int) []float64 {
	ratio := c.MantleDensity / c.Density
	t := c.MantleThickness
	role := c.Elements[ei].Role
	k := make([]float64, len(c.Sizes))
	for i, a := range c.Sizes {
		if a <= t {
			if role == CoreElement {
				continue // no core material in a pure-mantle grain
			}
			k[i] = a * a * a * c.colDen[ei] * ratio
			continue
		}
		core := (a - t) * (a - t) * (a - t)
		shell := a*a*a - core
		switch role {
		case CoreElement:
			k[i] = core * c.colDen[ei]
		case MantleElement:
			k[i] = shell * c.colDen[ei] * ratio
		case CoreAndMantleElement:
			k[i] = shell*c.colDen[ei]*ratio + core*c.colDen[ei]
		}
	}
	return k
}

// GrainResult holds the size-distribution-integrated properties of one
// composition for one trial size distribution.
type GrainResult struct {
	Cabs []float64 // effective absorption cross section, extinction wavelength grid
	Csca []float64 // effective scattering cross section, extinction wavelength grid

	// Abundances are atom counts per unit normalizing column, aligned with
	// the composition's Elements.
	Abundances []float64

	Emission []float64 // integrated emission spectrum, emission wavelength grid

	// FieldStrength is the radiation field strength actually used for the
	// emission spectrum, after clamping to the tabulated range.
	FieldStrength float64

	AlbedoExt []float64 // effective extinction cross section, albedo wavelength grid
	AlbedoSca []float64 // effective scattering cross section, albedo wavelength grid
	GNum      []float64 // g-weighted scattering cross section, asymmetry wavelength grid
	GSca      []float64 // effective scattering cross section, asymmetry wavelength grid
}

// Albedo returns this composition's own scattering albedo, with zero
// wherever the extinction cross section vanishes.
func (r *GrainResult) Albedo() []float64 { return safeRatio(r.AlbedoSca, r.AlbedoExt) }

// G returns this composition's own scattering asymmetry parameter, with
// zero wherever the scattering cross section vanishes.
func (r *GrainResult) G() []float64 { return safeRatio(r.GNum, r.GSca) }

// EffectiveCrossSections integrates the absorption and scattering cross
// section tables over the trial size distribution.
func (c *GrainComposition) EffectiveCrossSections(dist []float64) (cabs, csca []float64) {
	cabs = trapezoidColumns(c.Sizes, dist, c.Cabs)
	csca = trapezoidColumns(c.Sizes, dist, c.Csca)
	return cabs, csca
}

// EffectiveAbundances integrates the volume-weighted abundance kernels over
// the trial size distribution, returning atom counts per unit normalizing
// column aligned with c.Elements.
func (c *GrainComposition) EffectiveAbundances(dist []float64) []float64 {
	n := make([]float64, len(c.Elements))
	for ei := range c.Elements {
		n[ei] = trapezoid(c.Sizes, dist, c.weighting.kernel(c, ei))
	}
	return n
}

// EffectiveEmission interpolates the emission cube to the requested
// radiation field strength and integrates it over the trial size
// distribution. It returns the integrated spectrum and the (possibly
// clamped) field strength that was used.
func (c *GrainComposition) EffectiveEmission(dist []float64, fieldStrength float64) ([]float64, float64) {
	spec, used := c.InterpolateEmission(fieldStrength)
	return trapezoidColumns(c.Sizes, dist, spec), used
}

// EffectiveScattering integrates the albedo and asymmetry numerator and
// denominator tables over the trial size distribution. The ratios are left
// to the aggregation step so multiple compositions combine correctly.
func (c *GrainComposition) EffectiveScattering(dist []float64) (albedoExt, albedoSca, gNum, gSca []float64) {
	albedoExt = trapezoidColumns(c.Sizes, dist, c.AlbedoExt)
	albedoSca = trapezoidColumns(c.Sizes, dist, c.AlbedoSca)
	gNum = trapezoidColumnsProduct(c.Sizes, dist, c.G, c.GSca)
	gSca = trapezoidColumns(c.Sizes, dist, c.GSca)
	return
}

// EffectiveProperties integrates all property categories for one trial size
// distribution. It is a pure function of its arguments; no state in c is
// modified, so it is safe to call concurrently with different
// distributions.
func (c *GrainComposition) EffectiveProperties(dist []float64, fieldStrength float64) *GrainResult {
	r := new(GrainResult)
	r.Cabs, r.Csca = c.EffectiveCrossSections(dist)
	r.Abundances = c.EffectiveAbundances(dist)
	r.Emission, r.FieldStrength = c.EffectiveEmission(dist, fieldStrength)
	r.AlbedoExt, r.AlbedoSca, r.GNum, r.GSca = c.EffectiveScattering(dist)
	return r
}
