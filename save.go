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
	"os"
	"strings"

	"github.com/ctessum/cdf"
)

// SaveResults writes the model state for the given size distributions to a
// NetCDF file: per-composition size grids and distributions (with plus and
// minus uncertainties when punc and munc are non-nil), the summed elemental
// abundances, and the extinction, emission, albedo, and asymmetry curves
// with total and per-composition columns.
func SaveResults(filename string, m *GrainModel, params []float64, punc, munc []float64, fieldStrength float64) error {
	dists, err := m.SplitParams(params)
	if err != nil {
		return err
	}
	var puncs, muncs [][]float64
	if punc != nil && munc != nil {
		if puncs, err = m.SplitParams(punc); err != nil {
			return err
		}
		if muncs, err = m.SplitParams(munc); err != nil {
			return err
		}
	}

	results := make([]*GrainResult, len(m.Compositions))
	for i, c := range m.Compositions {
		results[i] = c.EffectiveProperties(dists[i], fieldStrength)
	}
	agg := m.Aggregate(results)

	c0 := m.Compositions[0]
	dims := []string{"element", "wavelength", "emission_wavelength",
		"albedo_wavelength", "asymmetry_wavelength"}
	lengths := []int{len(m.Elements), len(c0.ExtWavelengths), len(c0.EmissionWavelengths),
		len(c0.AlbedoWavelengths), len(c0.GWavelengths)}
	for _, c := range m.Compositions {
		dims = append(dims, "size_"+varName(c.Name))
		lengths = append(lengths, c.NSizes())
	}

	h := cdf.NewHeader(dims, lengths)
	h.AddAttribute("", "title", "grainfit dust grain size distribution fit results")
	h.AddAttribute("", "compositions", strings.Join(compositionNames(m), ","))
	h.AddAttribute("", "elements", strings.Join(m.Elements, ","))
	h.AddAttribute("", "field_strength", []float64{fieldStrength})

	addVar := func(name, dim, description, units string) {
		h.AddVariable(name, []string{dim}, []float64{0})
		h.AddAttribute(name, "description", description)
		h.AddAttribute(name, "units", units)
	}

	for _, c := range m.Compositions {
		n := varName(c.Name)
		d := "size_" + n
		addVar("size_"+n, d, fmt.Sprintf("%s grain radius grid", c.Name), "cm")
		addVar("dist_"+n, d, fmt.Sprintf("%s grain size distribution", c.Name), "grains cm-1 H-1")
		if puncs != nil {
			addVar("distpunc_"+n, d, fmt.Sprintf("%s size distribution upper uncertainty", c.Name), "grains cm-1 H-1")
			addVar("distmunc_"+n, d, fmt.Sprintf("%s size distribution lower uncertainty", c.Name), "grains cm-1 H-1")
		}
		addVar("extinction_"+n, "wavelength", fmt.Sprintf("%s extinction A(lambda)/N(H)", c.Name), "mag cm2 H-1")
		addVar("emission_"+n, "emission_wavelength", fmt.Sprintf("%s infrared emission", c.Name), "MJy sr-1 H-1")
		addVar("albedo_"+n, "albedo_wavelength", fmt.Sprintf("%s scattering albedo", c.Name), "")
		addVar("asymmetry_"+n, "asymmetry_wavelength", fmt.Sprintf("%s scattering asymmetry parameter", c.Name), "")
	}
	addVar("abundance", "element", "atoms locked in dust per normalizing hydrogen column", "atoms per 1e6 H")
	addVar("wavelength", "wavelength", "extinction wavelength grid", "um")
	addVar("extinction", "wavelength", "total extinction A(lambda)/N(H)", "mag cm2 H-1")
	addVar("emission_wavelength", "emission_wavelength", "emission wavelength grid", "um")
	addVar("emission", "emission_wavelength", "total infrared emission", "MJy sr-1 H-1")
	addVar("albedo_wavelength", "albedo_wavelength", "albedo wavelength grid", "um")
	addVar("albedo", "albedo_wavelength", "total scattering albedo", "")
	addVar("asymmetry_wavelength", "asymmetry_wavelength", "asymmetry wavelength grid", "um")
	addVar("asymmetry", "asymmetry_wavelength", "total scattering asymmetry parameter", "")

	h.Define()
	for _, err := range h.Check() {
		return fmt.Errorf("grainfit: creating results file: %v", err)
	}

	ff, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("grainfit: creating results file: %v", err)
	}
	defer ff.Close()
	f, err := cdf.Create(ff, h)
	if err != nil {
		return fmt.Errorf("grainfit: creating results file: %v", err)
	}

	write := func(name string, data []float64) {
		if err != nil {
			return
		}
		w := f.Writer(name, nil, f.Header.Lengths(name))
		if _, werr := w.Write(data); werr != nil {
			err = fmt.Errorf("grainfit: writing results variable %s: %v", name, werr)
		}
	}

	for i, c := range m.Compositions {
		n := varName(c.Name)
		write("size_"+n, c.Sizes)
		write("dist_"+n, dists[i])
		if puncs != nil {
			write("distpunc_"+n, puncs[i])
			write("distmunc_"+n, muncs[i])
		}
		r := results[i]
		ext := make([]float64, len(r.Cabs))
		for j := range ext {
			ext[j] = extPerTau * (r.Cabs[j] + r.Csca[j])
		}
		write("extinction_"+n, ext)
		write("emission_"+n, r.Emission)
		write("albedo_"+n, r.Albedo())
		write("asymmetry_"+n, r.G())
	}
	write("abundance", agg.Abundances)
	write("wavelength", c0.ExtWavelengths)
	write("extinction", agg.AlNH())
	write("emission_wavelength", c0.EmissionWavelengths)
	write("emission", agg.Emission)
	write("albedo_wavelength", c0.AlbedoWavelengths)
	write("albedo", agg.Albedo)
	write("asymmetry_wavelength", c0.GWavelengths)
	write("asymmetry", agg.G)
	if err != nil {
		return err
	}

	if err := cdf.UpdateNumRecs(ff); err != nil {
		return fmt.Errorf("grainfit: finalizing results file: %v", err)
	}
	return nil
}

func compositionNames(m *GrainModel) []string {
	names := make([]string, len(m.Compositions))
	for i, c := range m.Compositions {
		names[i] = c.Name
	}
	return names
}

// varName turns a composition name into a NetCDF-safe variable name
// fragment.
func varName(name string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			return r
		default:
			return '_'
		}
	}, name)
}
