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

import "gonum.org/v1/gonum/floats"

// AggregateGrainProperties holds the properties of the full grain mixture:
// per-category sums over compositions plus the derived scattering ratios.
// A new record is computed for every evaluation; nothing here is shared
// mutable state.
type AggregateGrainProperties struct {
	Cabs []float64 // total absorption cross section, extinction wavelength grid
	Csca []float64 // total scattering cross section, extinction wavelength grid

	// Elements and Abundances are parallel: the model's fixed ordered
	// element union and the summed atom counts per unit normalizing column.
	Elements   []string
	Abundances []float64

	Emission []float64 // total emission spectrum, emission wavelength grid

	// Albedo is Σcsca/Σcext on the albedo wavelength grid, zero where the
	// denominator is zero.
	Albedo []float64
	// G is the scattering-cross-section-weighted mean asymmetry parameter
	// on the asymmetry wavelength grid, zero where the denominator is zero.
	G []float64

	// Category denominators, kept so further compositions could be folded
	// in and for diagnostic output.
	AlbedoExt []float64
	AlbedoSca []float64
	GNum      []float64
	GSca      []float64
}

// AlNH returns the total extinction per hydrogen column A(λ)/N(H)
// corresponding to the aggregated cross sections.
func (a *AggregateGrainProperties) AlNH() []float64 {
	out := make([]float64, len(a.Cabs))
	for i := range out {
		out[i] = extPerTau * (a.Cabs[i] + a.Csca[i])
	}
	return out
}

// Aggregate combines per-composition results into one record. The results
// must be in model composition order; per-category wavelength grids must
// agree across compositions, which is the loader's responsibility.
func (m *GrainModel) Aggregate(results []*GrainResult) *AggregateGrainProperties {
	first := results[0]
	a := &AggregateGrainProperties{
		Cabs:       append([]float64(nil), first.Cabs...),
		Csca:       append([]float64(nil), first.Csca...),
		Emission:   append([]float64(nil), first.Emission...),
		AlbedoExt:  append([]float64(nil), first.AlbedoExt...),
		AlbedoSca:  append([]float64(nil), first.AlbedoSca...),
		GNum:       append([]float64(nil), first.GNum...),
		GSca:       append([]float64(nil), first.GSca...),
		Elements:   m.Elements,
		Abundances: make([]float64, len(m.Elements)),
	}
	for ei, n := range first.Abundances {
		a.Abundances[m.elemMap[0][ei]] += n
	}
	for ci := 1; ci < len(results); ci++ {
		r := results[ci]
		floats.Add(a.Cabs, r.Cabs)
		floats.Add(a.Csca, r.Csca)
		floats.Add(a.Emission, r.Emission)
		floats.Add(a.AlbedoExt, r.AlbedoExt)
		floats.Add(a.AlbedoSca, r.AlbedoSca)
		floats.Add(a.GNum, r.GNum)
		floats.Add(a.GSca, r.GSca)
		for ei, n := range r.Abundances {
			a.Abundances[m.elemMap[ci][ei]] += n
		}
	}
	a.Albedo = safeRatio(a.AlbedoSca, a.AlbedoExt)
	a.G = safeRatio(a.GNum, a.GSca)
	return a
}

// safeRatio divides num by den element-wise, defining 0/0 (and x/0) as zero
// rather than letting a NaN or Inf escape into the likelihood.
func safeRatio(num, den []float64) []float64 {
	out := make([]float64, len(num))
	for i, d := range den {
		if d != 0 {
			out[i] = num[i] / d
		}
	}
	return out
}
