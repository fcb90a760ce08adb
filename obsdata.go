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

import "fmt"

// Depletion is the observed dust-phase abundance budget for one element,
// in atoms per unit normalizing hydrogen column.
type Depletion struct {
	// Target is the observed depletion: the atom count inferred to be in
	// dust.
	Target float64
	// Uncertainty is the 1σ uncertainty on Target.
	Uncertainty float64
	// Total is the total possible abundance of the element: the ceiling if
	// every atom were locked in dust.
	Total float64
}

// ObservationSet is the collection of observational constraints a grain
// model is fit against. It is read-only during fitting and may be shared
// freely across concurrent likelihood evaluations.
type ObservationSet struct {
	// ExtWavelengths and AlNH are the observed extinction curve
	// A(λ)/N(H) [μm, mag·cm²/H]. A fixed relative uncertainty
	// (extRelUncertainty) is assumed.
	ExtWavelengths []float64
	AlNH           []float64

	// FitDepletions toggles the elemental depletion likelihood term.
	FitDepletions bool
	// Depletions holds per-element targets and ceilings. Elements the
	// model produces but the observations lack are unconstrained.
	Depletions map[string]Depletion

	// FitIREmission toggles the infrared emission likelihood term.
	FitIREmission bool
	// IRWavelengths is the observed emission wavelength grid [μm];
	// IREmissionIdx maps each observed point onto the model's emission
	// wavelength grid.
	IRWavelengths []float64
	IREmission    []float64
	IREmissionUnc []float64
	IREmissionIdx []int

	// FitScatParam toggles the scattering albedo likelihood term.
	FitScatParam bool
	// AlbedoWavelengths is the observed albedo wavelength grid [μm];
	// AlbedoIdx maps each observed point onto the model's albedo
	// wavelength grid.
	AlbedoWavelengths []float64
	Albedo            []float64
	AlbedoUnc         []float64
	AlbedoIdx         []int

	// GWavelengths is the wavelength grid the asymmetry parameter is
	// predicted on. The asymmetry parameter is carried as a model output
	// but not currently a likelihood term.
	GWavelengths []float64
}

// Check verifies internal consistency of the observation set. Like
// composition validation it runs eagerly, before any sampling begins.
func (o *ObservationSet) Check() error {
	if len(o.ExtWavelengths) == 0 || len(o.ExtWavelengths) != len(o.AlNH) {
		return fmt.Errorf("grainfit: observations: extinction wavelengths (%d) and values (%d) must match and be non-empty",
			len(o.ExtWavelengths), len(o.AlNH))
	}
	for i, a := range o.AlNH {
		if a <= 0 {
			return fmt.Errorf("grainfit: observations: non-positive extinction %g at index %d", a, i)
		}
	}
	if o.FitDepletions && len(o.Depletions) == 0 {
		return fmt.Errorf("grainfit: observations: depletion fitting requested but no depletions given")
	}
	for name, d := range o.Depletions {
		if d.Uncertainty <= 0 || d.Target <= 0 || d.Total <= 0 {
			return fmt.Errorf("grainfit: observations: invalid depletion record for %s: %+v", name, d)
		}
	}
	if o.FitIREmission {
		if len(o.IREmission) == 0 || len(o.IREmission) != len(o.IREmissionUnc) ||
			len(o.IREmission) != len(o.IREmissionIdx) {
			return fmt.Errorf("grainfit: observations: emission values, uncertainties, and index map must match and be non-empty")
		}
	}
	if o.FitScatParam {
		if len(o.Albedo) == 0 || len(o.Albedo) != len(o.AlbedoUnc) ||
			len(o.Albedo) != len(o.AlbedoIdx) {
			return fmt.Errorf("grainfit: observations: albedo values, uncertainties, and index map must match and be non-empty")
		}
	}
	return nil
}

// CheckAgainst verifies that the index maps fit within the model's
// wavelength grids.
func (o *ObservationSet) CheckAgainst(m *GrainModel) error {
	c := m.Compositions[0]
	if len(o.ExtWavelengths) != len(c.ExtWavelengths) {
		return fmt.Errorf("grainfit: observations: extinction grid length %d does not match model grid length %d "+
			"(resample the compositions onto the observed grids first)",
			len(o.ExtWavelengths), len(c.ExtWavelengths))
	}
	for _, i := range o.IREmissionIdx {
		if i < 0 || i >= len(c.EmissionWavelengths) {
			return fmt.Errorf("grainfit: observations: emission index %d outside model emission grid (%d points)",
				i, len(c.EmissionWavelengths))
		}
	}
	for _, i := range o.AlbedoIdx {
		if i < 0 || i >= len(c.AlbedoWavelengths) {
			return fmt.Errorf("grainfit: observations: albedo index %d outside model albedo grid (%d points)",
				i, len(c.AlbedoWavelengths))
		}
	}
	return nil
}
