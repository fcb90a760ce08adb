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

func writeTestObsFile(t *testing.T, filename string, full bool) {
	t.Helper()

	dims := []string{"ext_wavelength"}
	lengths := []int{3}
	if full {
		dims = append(dims, "element", "ir_wavelength", "albedo_wavelength")
		lengths = append(lengths, 2, 2, 1)
	}
	h := cdf.NewHeader(dims, lengths)
	h.AddVariable("ext_wavelength", []string{"ext_wavelength"}, []float64{0})
	h.AddVariable("ext_alnh", []string{"ext_wavelength"}, []float64{0})
	if full {
		h.AddAttribute("", "elements", "C,Si")
		h.AddVariable("depletion_target", []string{"element"}, []float64{0})
		h.AddVariable("depletion_unc", []string{"element"}, []float64{0})
		h.AddVariable("depletion_total", []string{"element"}, []float64{0})
		h.AddVariable("ir_wavelength", []string{"ir_wavelength"}, []float64{0})
		h.AddVariable("ir_emission", []string{"ir_wavelength"}, []float64{0})
		h.AddVariable("ir_emission_unc", []string{"ir_wavelength"}, []float64{0})
		h.AddVariable("ir_emission_idx", []string{"ir_wavelength"}, []int32{0})
		h.AddVariable("albedo_wavelength", []string{"albedo_wavelength"}, []float64{0})
		h.AddVariable("albedo", []string{"albedo_wavelength"}, []float64{0})
		h.AddVariable("albedo_unc", []string{"albedo_wavelength"}, []float64{0})
		h.AddVariable("albedo_idx", []string{"albedo_wavelength"}, []int32{0})
	}
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
	write := func(name string, data interface{}) {
		w := f.Writer(name, nil, f.Header.Lengths(name))
		if _, err := w.Write(data); err != nil {
			t.Fatalf("writing %s: %v", name, err)
		}
	}
	write("ext_wavelength", []float64{0.1, 0.55, 1.0})
	write("ext_alnh", []float64{2e-22, 1e-22, 5e-23})
	if full {
		write("depletion_target", []float64{200e-6, 30e-6})
		write("depletion_unc", []float64{20e-6, 3e-6})
		write("depletion_total", []float64{280e-6, 40e-6})
		write("ir_wavelength", []float64{100, 250})
		write("ir_emission", []float64{1.5, 0.7})
		write("ir_emission_unc", []float64{0.1, 0.05})
		write("ir_emission_idx", []int32{0, 1})
		write("albedo_wavelength", []float64{0.55})
		write("albedo", []float64{0.6})
		write("albedo_unc", []float64{0.05})
		write("albedo_idx", []int32{0})
	}
	if err := cdf.UpdateNumRecs(ff); err != nil {
		t.Fatal(err)
	}
}

func TestLoadObservations(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "obs.nc")
	writeTestObsFile(t, file, true)

	obs, err := LoadObservations(file)
	if err != nil {
		t.Fatal(err)
	}
	if len(obs.ExtWavelengths) != 3 || obs.AlNH[0] != 2e-22 {
		t.Errorf("extinction curve not loaded: %v, %v", obs.ExtWavelengths, obs.AlNH)
	}
	if !obs.FitDepletions || !obs.FitIREmission || !obs.FitScatParam {
		t.Errorf("toggles not enabled: depletions %v, emission %v, scattering %v",
			obs.FitDepletions, obs.FitIREmission, obs.FitScatParam)
	}
	d, ok := obs.Depletions["Si"]
	if !ok {
		t.Fatal("Si depletion missing")
	}
	if d.Target != 30e-6 || d.Uncertainty != 3e-6 || d.Total != 40e-6 {
		t.Errorf("Si depletion %+v", d)
	}
	if obs.IREmissionIdx[1] != 1 || obs.IREmission[1] != 0.7 {
		t.Errorf("emission block: idx %v, values %v", obs.IREmissionIdx, obs.IREmission)
	}
	if obs.AlbedoIdx[0] != 0 || obs.Albedo[0] != 0.6 {
		t.Errorf("albedo block: idx %v, values %v", obs.AlbedoIdx, obs.Albedo)
	}
	// Without a separate asymmetry grid the albedo grid is reused.
	if len(obs.GWavelengths) != 1 || obs.GWavelengths[0] != 0.55 {
		t.Errorf("asymmetry grid %v", obs.GWavelengths)
	}
}

func TestLoadObservationsExtinctionOnly(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "obs.nc")
	writeTestObsFile(t, file, false)

	obs, err := LoadObservations(file)
	if err != nil {
		t.Fatal(err)
	}
	if obs.FitDepletions || obs.FitIREmission || obs.FitScatParam {
		t.Error("optional blocks enabled without data")
	}
	if len(obs.AlNH) != 3 {
		t.Errorf("loaded %d extinction points, want 3", len(obs.AlNH))
	}
}

func TestLoadObservationsMissingFile(t *testing.T) {
	if _, err := LoadObservations(filepath.Join(t.TempDir(), "nope.nc")); err == nil {
		t.Error("missing file accepted")
	}
}
