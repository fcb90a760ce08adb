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
	"os"
	"path/filepath"
	"testing"

	"github.com/ctessum/cdf"
)

// writeTestGrainFile writes a grain property NetCDF file matching the
// testComposition tables: 6 sizes, 4 wavelengths, 2 emission wavelengths,
// and 3 field strength nodes.
func writeTestGrainFile(t *testing.T, filename string) (sizes, waves []float64) {
	t.Helper()

	sizes = []float64{1e-7, 1e-6, 1e-5, 1e-4, 1e-3, 1e-2}
	waves = []float64{0.1, 0.55, 1.0, 2.2}
	ewaves := []float64{10, 100}
	fields := []float64{1, 2, 4}

	h := cdf.NewHeader(
		[]string{"size", "wavelength", "emission_wavelength", "field_strength"},
		[]int{len(sizes), len(waves), len(ewaves), len(fields)})
	h.AddVariable("size", []string{"size"}, []float64{0})
	h.AddVariable("wavelength", []string{"wavelength"}, []float64{0})
	h.AddVariable("emission_wavelength", []string{"emission_wavelength"}, []float64{0})
	h.AddVariable("field_strength", []string{"field_strength"}, []float64{0})
	h.AddVariable("cabs", []string{"size", "wavelength"}, []float64{0})
	h.AddVariable("csca", []string{"size", "wavelength"}, []float64{0})
	h.AddVariable("g", []string{"size", "wavelength"}, []float64{0})
	h.AddVariable("emission", []string{"field_strength", "size", "emission_wavelength"}, []float64{0})
	h.Define()
	for _, err := range h.Check() {
		t.Fatal(err)
	}

	ff, err := os.Create(filename)
	if err != nil {
		t.Fatal(err)
	}
	defer ff.Close()
	f, err := cdf.Create(ff, h)
	if err != nil {
		t.Fatal(err)
	}

	write := func(name string, data []float64) {
		w := f.Writer(name, nil, f.Header.Lengths(name))
		if _, err := w.Write(data); err != nil {
			t.Fatalf("writing %s: %v", name, err)
		}
	}
	write("size", sizes)
	write("wavelength", waves)
	write("emission_wavelength", ewaves)
	write("field_strength", fields)

	cabs := make([]float64, len(sizes)*len(waves))
	csca := make([]float64, len(cabs))
	g := make([]float64, len(cabs))
	for i := range sizes {
		for j := range waves {
			cabs[i*len(waves)+j] = float64(i + 1)
			csca[i*len(waves)+j] = 2 * float64(i+1)
			g[i*len(waves)+j] = 0.5
		}
	}
	write("cabs", cabs)
	write("csca", csca)
	write("g", g)

	emission := make([]float64, len(fields)*len(sizes)*len(ewaves))
	for k := range fields {
		for i := 0; i < len(sizes)*len(ewaves); i++ {
			emission[k*len(sizes)*len(ewaves)+i] = float64(k + 1)
		}
	}
	write("emission", emission)

	if err := cdf.UpdateNumRecs(ff); err != nil {
		t.Fatal(err)
	}
	return sizes, waves
}

func TestLoadGrainComposition(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "grains.nc")
	sizes, waves := writeTestGrainFile(t, file)

	c, err := LoadGrainComposition("astro-carbonaceous", file, TableOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if c.NSizes() != len(sizes) {
		t.Errorf("loaded %d sizes, want %d", c.NSizes(), len(sizes))
	}
	if len(c.ExtWavelengths) != len(waves) {
		t.Errorf("loaded %d wavelengths, want %d", len(c.ExtWavelengths), len(waves))
	}
	if c.Kind != BareGrain || c.Density != 2.24 {
		t.Errorf("wrong material properties: kind %d, density %g", c.Kind, c.Density)
	}
	if v := c.Cabs.Get(2, 1); v != 3 {
		t.Errorf("cabs[2,1] = %g, want 3", v)
	}
	// The extinction cross section table is assembled from cabs + csca.
	if v := c.AlbedoExt.Get(2, 1); v != 9 {
		t.Errorf("albedo cext[2,1] = %g, want 9", v)
	}
	if v := c.Emission.Get(1, 0, 0); v != 2 {
		t.Errorf("emission[1,0,0] = %g, want 2", v)
	}
}

func TestLoadGrainCompositionThinCrop(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "grains.nc")
	writeTestGrainFile(t, file)

	c, err := LoadGrainComposition("astro-carbonaceous", file, TableOptions{
		MinWave:  0.2,
		MaxWave:  1.5,
		EveryNth: 2,
	})
	if err != nil {
		t.Fatal(err)
	}
	// Sizes 0, 2, 4 survive thinning; wavelengths 0.55 and 1.0 survive
	// the crop.
	if c.NSizes() != 3 {
		t.Errorf("thinned to %d sizes, want 3", c.NSizes())
	}
	if len(c.ExtWavelengths) != 2 || c.ExtWavelengths[0] != 0.55 {
		t.Errorf("cropped wavelengths %v, want [0.55 1]", c.ExtWavelengths)
	}
	// Size row 1 of the thinned table is original size index 2.
	if v := c.Cabs.Get(1, 0); v != 3 {
		t.Errorf("thinned cabs[1,0] = %g, want 3", v)
	}
	if c.Emission.Shape[1] != 3 {
		t.Errorf("emission cube not thinned: shape %v", c.Emission.Shape)
	}
}

func TestLoadGrainCompositionUnknown(t *testing.T) {
	if _, err := LoadGrainComposition("unobtainium", "nope.nc", TableOptions{}); err == nil {
		t.Error("unknown composition accepted")
	}
}

func TestKnownCompositions(t *testing.T) {
	names := KnownCompositions()
	if len(names) == 0 {
		t.Fatal("no known compositions")
	}
	for _, want := range []string{"astro-silicates", "astro-carbonaceous", "a-C:H-Themis", "aSil-2-Themis"} {
		found := false
		for _, n := range names {
			if n == want {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("composition %s not registered", want)
		}
	}
}
