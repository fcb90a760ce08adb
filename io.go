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
	"sort"

	"github.com/ctessum/cdf"
	"github.com/ctessum/sparse"
)

// amu is the atomic mass unit [g].
const amu = 1.660e-24

// materialProperties holds the per-composition constants that are not part
// of the precomputed optical tables.
type materialProperties struct {
	kind            CompositionKind
	density         float64 // [g/cm³]
	mantleThickness float64 // [cm]
	mantleDensity   float64 // [g/cm³]
	elements        []Element
}

func carbonOnly(density float64) materialProperties {
	return materialProperties{
		kind:     BareGrain,
		density:  density,
		elements: []Element{{Name: "C", Count: 1, Mass: 12.0107 * amu}},
	}
}

func wd01Silicate(density float64) materialProperties {
	return materialProperties{
		kind:    BareGrain,
		density: density,
		elements: []Element{
			{Name: "Mg", Count: 1, Mass: 24.305 * amu},
			{Name: "Fe", Count: 1, Mass: 55.845 * amu},
			{Name: "Si", Count: 1, Mass: 28.0855 * amu},
			{Name: "O", Count: 4, Mass: 15.994 * amu},
		},
	}
}

// materials is the registry of known grain compositions. Optical tables
// come from precomputed files; everything here is fixed material data.
var materials = map[string]materialProperties{
	"astro-silicates": wd01Silicate(3.5),
	"Silicates-Z04":   wd01Silicate(3.5),
	"AstroDust-HD23": {
		kind:    BareGrain,
		density: 2.74,
		elements: []Element{
			{Name: "Mg", Count: 1.3, Mass: 24.305 * amu},
			{Name: "Fe", Count: 0.3, Mass: 55.845 * amu},
			{Name: "Si", Count: 1, Mass: 28.0855 * amu},
			{Name: "O", Count: 3.6, Mass: 15.994 * amu},
		},
	},
	"astro-carbonaceous": carbonOnly(2.24),
	"astro-graphite":     carbonOnly(2.24),
	"PAH-Z04":            carbonOnly(2.24),
	"Graphite-Z04":       carbonOnly(2.24),
	"ACH2-Z04":           carbonOnly(1.81),
	"Carbonaceous-HD23":  carbonOnly(2.2),
	"a-C-Themis":         carbonOnly(1.6),
	"a-C:H-Themis": {
		kind:            CoreMantleGrain,
		density:         1.3,
		mantleThickness: 5e-7,
		mantleDensity:   1.6,
		elements: []Element{
			{Name: "C", Count: 1, Mass: 12.0107 * amu, Role: CoreAndMantleElement},
		},
	},
	"aSil-2-Themis": {
		kind:            CoreMantleGrain,
		density:         2.7,
		mantleThickness: 2.5e-7,
		mantleDensity:   1.6,
		elements: []Element{
			{Name: "Mg", Count: 1.7, Mass: 24.305 * amu, Role: CoreElement},
			{Name: "Si", Count: 1, Mass: 28.0855 * amu, Role: CoreElement},
			{Name: "O", Count: 3.7, Mass: 15.994 * amu, Role: CoreElement},
			{Name: "C", Count: 1, Mass: 12.0107 * amu, Role: MantleElement},
		},
	},
}

// KnownCompositions lists the composition names with registered material
// properties, sorted.
func KnownCompositions() []string {
	names := make([]string, 0, len(materials))
	for n := range materials {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// TableOptions control how precomputed grain property tables are loaded.
// The zero value loads everything.
type TableOptions struct {
	// MinWave and MaxWave crop the extinction wavelength grid [μm].
	// A zero MaxWave means no upper crop.
	MinWave, MaxWave float64
	// MinEmissionWave and MaxEmissionWave crop the emission wavelength
	// grid [μm].
	MinEmissionWave, MaxEmissionWave float64
	// EveryNth keeps only every nth grain size, which coarsens the size
	// distribution but makes fitting faster. Values < 2 keep every size.
	EveryNth int
}

// LoadGrainComposition reads the precomputed per-size optical properties
// for the named composition from a NetCDF file. The file must contain the
// coordinate variables size, wavelength, emission_wavelength, and
// field_strength, the [size, wavelength] variables cabs, csca, and g, and
// the [field_strength, size, emission_wavelength] variable emission.
func LoadGrainComposition(name, filename string, opts TableOptions) (*GrainComposition, error) {
	props, ok := materials[name]
	if !ok {
		return nil, fmt.Errorf("grainfit: %s is not a known grain composition; known compositions are %v",
			name, KnownCompositions())
	}

	f, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("grainfit: opening grain property file: %v", err)
	}
	defer f.Close()
	ff, err := cdf.Open(f)
	if err != nil {
		return nil, fmt.Errorf("grainfit: reading grain property file %s: %v", filename, err)
	}

	sizes, err := readVector(ff, "size")
	if err != nil {
		return nil, err
	}
	waves, err := readVector(ff, "wavelength")
	if err != nil {
		return nil, err
	}
	ewaves, err := readVector(ff, "emission_wavelength")
	if err != nil {
		return nil, err
	}
	fields, err := readVector(ff, "field_strength")
	if err != nil {
		return nil, err
	}
	cabs, err := readArray(ff, "cabs", len(sizes), len(waves))
	if err != nil {
		return nil, err
	}
	csca, err := readArray(ff, "csca", len(sizes), len(waves))
	if err != nil {
		return nil, err
	}
	g, err := readArray(ff, "g", len(sizes), len(waves))
	if err != nil {
		return nil, err
	}
	emission, err := readArray(ff, "emission", len(fields), len(sizes), len(ewaves))
	if err != nil {
		return nil, err
	}

	sizeIdx := thinIndices(len(sizes), opts.EveryNth)
	waveIdx := cropIndices(waves, opts.MinWave, opts.MaxWave)
	ewaveIdx := cropIndices(ewaves, opts.MinEmissionWave, opts.MaxEmissionWave)
	if len(waveIdx) == 0 {
		return nil, fmt.Errorf("grainfit: composition %s: wavelength crop [%g, %g] leaves no extinction points",
			name, opts.MinWave, opts.MaxWave)
	}
	if len(ewaveIdx) == 0 {
		return nil, fmt.Errorf("grainfit: composition %s: wavelength crop [%g, %g] leaves no emission points",
			name, opts.MinEmissionWave, opts.MaxEmissionWave)
	}

	c := &GrainComposition{
		Name:            name,
		Kind:            props.kind,
		Density:         props.density,
		MantleThickness: props.mantleThickness,
		MantleDensity:   props.mantleDensity,
		Elements:        props.elements,
		Sizes:           subset(sizes, sizeIdx),
		FieldStrengths:  fields,

		ExtWavelengths:      subset(waves, waveIdx),
		EmissionWavelengths: subset(ewaves, ewaveIdx),
	}
	// The precomputed files carry one wavelength grid; albedo and
	// asymmetry share it until the tables are resampled onto observed
	// grids.
	c.AlbedoWavelengths = c.ExtWavelengths
	c.GWavelengths = c.ExtWavelengths

	c.Cabs = subset2(cabs, sizeIdx, waveIdx)
	c.Csca = subset2(csca, sizeIdx, waveIdx)
	c.G = subset2(g, sizeIdx, waveIdx)
	c.GSca = c.Csca
	c.AlbedoSca = c.Csca
	c.AlbedoExt = sparse.ZerosDense(c.Cabs.Shape...)
	for i, v := range c.Cabs.Elements {
		c.AlbedoExt.Elements[i] = v + c.Csca.Elements[i]
	}
	c.Emission = subset3(emission, fields, sizeIdx, ewaveIdx)

	if err := c.Finalize(); err != nil {
		return nil, err
	}
	return c, nil
}

// readVector reads a 1-D coordinate variable as []float64.
func readVector(ff *cdf.File, name string) ([]float64, error) {
	dims := ff.Header.Lengths(name)
	if len(dims) != 1 {
		return nil, fmt.Errorf("grainfit: grain property file: variable %s must be one-dimensional", name)
	}
	return readFloats(ff, name)
}

// readArray reads a variable as a dense array, checking its shape.
func readArray(ff *cdf.File, name string, shape ...int) (*sparse.DenseArray, error) {
	dims := ff.Header.Lengths(name)
	if len(dims) != len(shape) {
		return nil, fmt.Errorf("grainfit: grain property file: variable %s has %d dimensions, want %d",
			name, len(dims), len(shape))
	}
	for i, d := range dims {
		if d != shape[i] {
			return nil, fmt.Errorf("grainfit: grain property file: variable %s dimension %d is %d, want %d",
				name, i, d, shape[i])
		}
	}
	vals, err := readFloats(ff, name)
	if err != nil {
		return nil, err
	}
	out := sparse.ZerosDense(shape...)
	copy(out.Elements, vals)
	return out, nil
}

func readFloats(ff *cdf.File, name string) ([]float64, error) {
	if len(ff.Header.Lengths(name)) == 0 {
		return nil, fmt.Errorf("grainfit: grain property file: variable %s not in file", name)
	}
	r := ff.Reader(name, nil, nil)
	buf := r.Zero(-1)
	if _, err := r.Read(buf); err != nil {
		return nil, fmt.Errorf("grainfit: grain property file: reading %s: %v", name, err)
	}
	switch v := buf.(type) {
	case []float64:
		return v, nil
	case []float32:
		out := make([]float64, len(v))
		for i, x := range v {
			out[i] = float64(x)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("grainfit: grain property file: variable %s is not floating point", name)
	}
}

func thinIndices(n, everyNth int) []int {
	if everyNth < 2 {
		everyNth = 1
	}
	var idx []int
	for i := 0; i < n; i += everyNth {
		idx = append(idx, i)
	}
	return idx
}

func cropIndices(x []float64, min, max float64) []int {
	if max <= 0 {
		max = x[len(x)-1]
	}
	var idx []int
	for i, v := range x {
		if v >= min && v <= max {
			idx = append(idx, i)
		}
	}
	return idx
}

func subset(x []float64, idx []int) []float64 {
	out := make([]float64, len(idx))
	for i, j := range idx {
		out[i] = x[j]
	}
	return out
}

func subset2(a *sparse.DenseArray, rows, cols []int) *sparse.DenseArray {
	out := sparse.ZerosDense(len(rows), len(cols))
	for i, r := range rows {
		for j, c := range cols {
			out.Set(a.Get(r, c), i, j)
		}
	}
	return out
}

func subset3(a *sparse.DenseArray, fields []float64, sizes, waves []int) *sparse.DenseArray {
	out := sparse.ZerosDense(len(fields), len(sizes), len(waves))
	for f := range fields {
		for i, s := range sizes {
			for j, w := range waves {
				out.Set(a.Get(f, s, w), f, i, j)
			}
		}
	}
	return out
}
