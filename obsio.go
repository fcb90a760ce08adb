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

// LoadObservations reads an ObservationSet from a NetCDF file. The
// extinction curve (ext_wavelength, ext_alnh) is required. The depletion
// table (element names in the global "elements" attribute plus
// depletion_target, depletion_unc, and depletion_total), the infrared
// emission block (ir_wavelength, ir_emission, ir_emission_unc,
// ir_emission_idx), and the albedo block (albedo_wavelength, albedo,
// albedo_unc, albedo_idx, asymmetry_wavelength) are optional; the
// corresponding fit toggle is enabled when the block is present.
func LoadObservations(filename string) (*ObservationSet, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("grainfit: opening observation file: %v", err)
	}
	defer f.Close()
	ff, err := cdf.Open(f)
	if err != nil {
		return nil, fmt.Errorf("grainfit: reading observation file %s: %v", filename, err)
	}

	o := new(ObservationSet)
	if o.ExtWavelengths, err = readVector(ff, "ext_wavelength"); err != nil {
		return nil, err
	}
	if o.AlNH, err = readVector(ff, "ext_alnh"); err != nil {
		return nil, err
	}

	if hasVar(ff, "depletion_target") {
		names, err := attrString(ff, "elements")
		if err != nil {
			return nil, err
		}
		elems := strings.Split(names, ",")
		target, err := readVector(ff, "depletion_target")
		if err != nil {
			return nil, err
		}
		unc, err := readVector(ff, "depletion_unc")
		if err != nil {
			return nil, err
		}
		total, err := readVector(ff, "depletion_total")
		if err != nil {
			return nil, err
		}
		if len(target) != len(elems) || len(unc) != len(elems) || len(total) != len(elems) {
			return nil, fmt.Errorf("grainfit: observation file: depletion table length does not match %d elements", len(elems))
		}
		o.FitDepletions = true
		o.Depletions = make(map[string]Depletion, len(elems))
		for i, name := range elems {
			o.Depletions[strings.TrimSpace(name)] = Depletion{
				Target:      target[i],
				Uncertainty: unc[i],
				Total:       total[i],
			}
		}
	}

	if hasVar(ff, "ir_emission") {
		o.FitIREmission = true
		if o.IRWavelengths, err = readVector(ff, "ir_wavelength"); err != nil {
			return nil, err
		}
		if o.IREmission, err = readVector(ff, "ir_emission"); err != nil {
			return nil, err
		}
		if o.IREmissionUnc, err = readVector(ff, "ir_emission_unc"); err != nil {
			return nil, err
		}
		if o.IREmissionIdx, err = readIntVector(ff, "ir_emission_idx"); err != nil {
			return nil, err
		}
	}

	if hasVar(ff, "albedo") {
		o.FitScatParam = true
		if o.AlbedoWavelengths, err = readVector(ff, "albedo_wavelength"); err != nil {
			return nil, err
		}
		if o.Albedo, err = readVector(ff, "albedo"); err != nil {
			return nil, err
		}
		if o.AlbedoUnc, err = readVector(ff, "albedo_unc"); err != nil {
			return nil, err
		}
		if o.AlbedoIdx, err = readIntVector(ff, "albedo_idx"); err != nil {
			return nil, err
		}
		if hasVar(ff, "asymmetry_wavelength") {
			if o.GWavelengths, err = readVector(ff, "asymmetry_wavelength"); err != nil {
				return nil, err
			}
		} else {
			o.GWavelengths = o.AlbedoWavelengths
		}
	}

	if err := o.Check(); err != nil {
		return nil, err
	}
	return o, nil
}

func hasVar(ff *cdf.File, name string) bool {
	return len(ff.Header.Lengths(name)) > 0
}

func attrString(ff *cdf.File, name string) (string, error) {
	v := ff.Header.GetAttribute("", name)
	if v == nil {
		return "", fmt.Errorf("grainfit: observation file: missing global attribute %s", name)
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("grainfit: observation file: global attribute %s is not a string", name)
	}
	return s, nil
}

func readIntVector(ff *cdf.File, name string) ([]int, error) {
	if !hasVar(ff, name) {
		return nil, fmt.Errorf("grainfit: observation file: variable %s not in file", name)
	}
	r := ff.Reader(name, nil, nil)
	buf := r.Zero(-1)
	if _, err := r.Read(buf); err != nil {
		return nil, fmt.Errorf("grainfit: observation file: reading %s: %v", name, err)
	}
	switch v := buf.(type) {
	case []int32:
		out := make([]int, len(v))
		for i, x := range v {
			out[i] = int(x)
		}
		return out, nil
	case []int16:
		out := make([]int, len(v))
		for i, x := range v {
			out[i] = int(x)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("grainfit: observation file: variable %s is not an integer type", name)
	}
}
