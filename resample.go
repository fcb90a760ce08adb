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

import (
	"fmt"

	"github.com/ctessum/sparse"
)

// ResampleTo returns a copy of the composition with every optical property
// table linearly interpolated onto the observation set's wavelength grids.
// Resampling once at setup keeps wavelength interpolation out of the
// likelihood hot path: after it, the observed extinction points line up
// index-for-index with the model extinction grid.
//
// The full-grid tables for the extinction category also serve as the
// source for the albedo and asymmetry categories, which observations
// sample on their own (typically much sparser) grids. Categories the
// observation set does not constrain (no observed grid) keep the
// composition's native grid and tables unchanged.
func (c *GrainComposition) ResampleTo(obs *ObservationSet) (*GrainComposition, error) {
	if len(obs.ExtWavelengths) == 0 {
		return nil, fmt.Errorf("grainfit: resample %s: observations have no extinction wavelength grid", c.Name)
	}
	grids := [][]float64{obs.ExtWavelengths, obs.IRWavelengths, obs.AlbedoWavelengths, obs.GWavelengths}
	names := []string{"extinction", "emission", "albedo", "asymmetry"}
	for i, g := range grids {
		for j := 0; j < len(g)-1; j++ {
			if g[j+1] <= g[j] {
				return nil, fmt.Errorf("grainfit: resample %s: observed %s wavelengths not strictly increasing", c.Name, names[i])
			}
		}
	}

	o := &GrainComposition{
		Name:            c.Name,
		Kind:            c.Kind,
		Density:         c.Density,
		MantleThickness: c.MantleThickness,
		MantleDensity:   c.MantleDensity,
		Elements:        c.Elements,
		Sizes:           c.Sizes,
		FieldStrengths:  c.FieldStrengths,

		ExtWavelengths:      obs.ExtWavelengths,
		EmissionWavelengths: c.EmissionWavelengths,
		AlbedoWavelengths:   c.AlbedoWavelengths,
		GWavelengths:        c.GWavelengths,

		Emission:  c.Emission,
		AlbedoExt: c.AlbedoExt,
		AlbedoSca: c.AlbedoSca,
		G:         c.G,
		GSca:      c.GSca,
	}

	o.Cabs = resampleRows(c.ExtWavelengths, c.Cabs, obs.ExtWavelengths)
	o.Csca = resampleRows(c.ExtWavelengths, c.Csca, obs.ExtWavelengths)

	if len(obs.AlbedoWavelengths) > 0 {
		// Albedo observations sample the same underlying cross sections
		// on their own grid.
		cext := sparse.ZerosDense(c.Cabs.Shape...)
		for i, v := range c.Cabs.Elements {
			cext.Elements[i] = v + c.Csca.Elements[i]
		}
		o.AlbedoWavelengths = obs.AlbedoWavelengths
		o.AlbedoExt = resampleRows(c.ExtWavelengths, cext, obs.AlbedoWavelengths)
		o.AlbedoSca = resampleRows(c.ExtWavelengths, c.Csca, obs.AlbedoWavelengths)
	}
	if len(obs.GWavelengths) > 0 {
		o.GWavelengths = obs.GWavelengths
		o.G = resampleRows(c.GWavelengths, c.G, obs.GWavelengths)
		o.GSca = resampleRows(c.ExtWavelengths, c.Csca, obs.GWavelengths)
	}

	if len(obs.IRWavelengths) > 0 {
		nf, nsz := c.Emission.Shape[0], c.Emission.Shape[1]
		o.EmissionWavelengths = obs.IRWavelengths
		o.Emission = sparse.ZerosDense(nf, nsz, len(obs.IRWavelengths))
		row := make([]float64, c.Emission.Shape[2])
		for f := 0; f < nf; f++ {
			for s := 0; s < nsz; s++ {
				for w := range row {
					row[w] = c.Emission.Get(f, s, w)
				}
				for w, x := range obs.IRWavelengths {
					o.Emission.Set(interp1(c.EmissionWavelengths, row, x), f, s, w)
				}
			}
		}
	}

	if err := o.Finalize(); err != nil {
		return nil, err
	}
	return o, nil
}

// ResampleTo resamples every composition in the model onto the observed
// wavelength grids, returning a new model.
func (m *GrainModel) ResampleTo(obs *ObservationSet) (*GrainModel, error) {
	comps := make([]*GrainComposition, len(m.Compositions))
	for i, c := range m.Compositions {
		var err error
		if comps[i], err = c.ResampleTo(obs); err != nil {
			return nil, err
		}
	}
	return NewGrainModel(comps...)
}

// resampleRows interpolates each size row of a [size, wavelength] table
// from grid xs onto grid xq.
func resampleRows(xs []float64, table *sparse.DenseArray, xq []float64) *sparse.DenseArray {
	nsz := table.Shape[0]
	out := sparse.ZerosDense(nsz, len(xq))
	row := make([]float64, table.Shape[1])
	for i := 0; i < nsz; i++ {
		copy(row, table.Elements[i*table.Shape[1]:(i+1)*table.Shape[1]])
		for j, x := range xq {
			out.Set(interp1(xs, row, x), i, j)
		}
	}
	return out
}

// interp1 linearly interpolates y(xs) at x, holding the boundary values
// outside the tabulated range. xs must be strictly increasing.
func interp1(xs, ys []float64, x float64) float64 {
	n := len(xs)
	if x <= xs[0] {
		return ys[0]
	}
	if x >= xs[n-1] {
		return ys[n-1]
	}
	hi := 1
	for xs[hi] < x {
		hi++
	}
	if xs[hi] == x {
		return ys[hi]
	}
	lo := hi - 1
	f := (x - xs[lo]) / (xs[hi] - xs[lo])
	return ys[lo] + f*(ys[hi]-ys[lo])
}
