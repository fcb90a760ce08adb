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

// Package grainfit models interstellar dust as a mixture of grain
// compositions, each with a distribution of discrete grain sizes, and fits
// the size distributions to observational constraints: extinction per
// hydrogen column, elemental depletions, infrared emission, and dust
// scattering parameters.
package grainfit

import (
	"fmt"
	"math"

	"github.com/ctessum/sparse"
)

// Version gives the version number.
const Version = "1.0.0"

// CompositionKind selects the abundance-weighting strategy for a grain
// composition.
type CompositionKind int

const (
	// BareGrain is a homogeneous spherical grain of a single material.
	BareGrain CompositionKind = iota

	// CoreMantleGrain is a spherical core of the bulk material coated by a
	// mantle of a second material with a fixed physical thickness. Grains
	// with radii at or below the mantle thickness are treated as pure
	// mantle material.
	CoreMantleGrain
)

// ElementRole says where in a core-mantle grain an element resides. It is
// ignored for bare grains.
type ElementRole int

const (
	// CoreElement only occurs in the grain core.
	CoreElement ElementRole = iota
	// MantleElement only occurs in the mantle coating.
	MantleElement
	// CoreAndMantleElement occurs in both the core and the mantle.
	CoreAndMantleElement
)

// Element is one atomic constituent of a grain material.
type Element struct {
	Name  string
	Count float64 // atoms per formula unit
	Mass  float64 // mass of one atom [g]
	Role  ElementRole
}

// GrainComposition holds the precomputed optical and atomic properties of
// one dust grain material on a grid of discrete grain sizes. All fields are
// treated as immutable once Finalize has been called; trial size
// distributions are passed explicitly to the Effective* methods rather than
// stored here, so a single GrainComposition may be shared by concurrent
// likelihood evaluations.
type GrainComposition struct {
	Name string
	Kind CompositionKind

	Density float64 // bulk (core) material density [g/cm³]

	// MantleThickness and MantleDensity describe the mantle coating for
	// CoreMantleGrain compositions [cm, g/cm³].
	MantleThickness float64
	MantleDensity   float64

	Elements []Element

	// Sizes is the grain radius grid [cm], strictly increasing, length ≥ 2.
	Sizes []float64

	// Wavelength grids [μm] for each property category. They are fixed per
	// composition and may differ between categories.
	ExtWavelengths      []float64
	EmissionWavelengths []float64
	AlbedoWavelengths   []float64
	GWavelengths        []float64

	// FieldStrengths are the tabulated radiation-field strength nodes for
	// the emission cube, ascending, length ≥ 2.
	FieldStrengths []float64

	// Per-size optical property tables. First axis is grain size.
	Cabs      *sparse.DenseArray // absorption cross section [size, extinction wavelength]
	Csca      *sparse.DenseArray // scattering cross section [size, extinction wavelength]
	AlbedoExt *sparse.DenseArray // extinction cross section [size, albedo wavelength]
	AlbedoSca *sparse.DenseArray // scattering cross section [size, albedo wavelength]
	G         *sparse.DenseArray // scattering asymmetry [size, asymmetry wavelength]
	GSca      *sparse.DenseArray // scattering cross section [size, asymmetry wavelength]

	// Emission is grain emission intensity indexed by
	// [field strength, size, emission wavelength].
	Emission *sparse.DenseArray

	massPerFormula float64   // derived: Σ count·mass [g]
	colDen         []float64 // derived per-element column density constants
	weighting      abundanceWeighting
}

// Finalize validates the composition tables and computes the derived
// per-element constants. It must be called (and succeed) before any of the
// Effective* methods are used. Validation is eager so that malformed input
// data fails at load time rather than inside a sampling run.
func (c *GrainComposition) Finalize() error {
	if c.Name == "" {
		return fmt.Errorf("grainfit: composition has no name")
	}
	if len(c.Sizes) < 2 {
		return fmt.Errorf("grainfit: composition %s: need at least 2 grain sizes, have %d", c.Name, len(c.Sizes))
	}
	for i := 0; i < len(c.Sizes)-1; i++ {
		if c.Sizes[i+1] <= c.Sizes[i] {
			return fmt.Errorf("grainfit: composition %s: size grid not strictly increasing at index %d (%g ≤ %g)",
				c.Name, i+1, c.Sizes[i+1], c.Sizes[i])
		}
	}
	if len(c.Elements) == 0 {
		return fmt.Errorf("grainfit: composition %s: no elements", c.Name)
	}
	for _, e := range c.Elements {
		if e.Name == "" || e.Count <= 0 || e.Mass <= 0 {
			return fmt.Errorf("grainfit: composition %s: invalid element %+v", c.Name, e)
		}
	}
	if c.Density <= 0 {
		return fmt.Errorf("grainfit: composition %s: non-positive density %g", c.Name, c.Density)
	}
	if c.Kind == CoreMantleGrain {
		if c.MantleThickness <= 0 || c.MantleDensity <= 0 {
			return fmt.Errorf("grainfit: composition %s: core-mantle grain needs positive mantle thickness and density",
				c.Name)
		}
	}
	if len(c.FieldStrengths) < 2 {
		return fmt.Errorf("grainfit: composition %s: need at least 2 radiation field strength nodes, have %d",
			c.Name, len(c.FieldStrengths))
	}
	for i := 0; i < len(c.FieldStrengths)-1; i++ {
		if c.FieldStrengths[i+1] <= c.FieldStrengths[i] {
			return fmt.Errorf("grainfit: composition %s: field strength nodes not strictly increasing at index %d",
				c.Name, i+1)
		}
	}

	nsz := len(c.Sizes)
	if err := checkTable(c.Name, "cabs", c.Cabs, nsz, len(c.ExtWavelengths)); err != nil {
		return err
	}
	if err := checkTable(c.Name, "csca", c.Csca, nsz, len(c.ExtWavelengths)); err != nil {
		return err
	}
	if err := checkTable(c.Name, "albedo cext", c.AlbedoExt, nsz, len(c.AlbedoWavelengths)); err != nil {
		return err
	}
	if err := checkTable(c.Name, "albedo csca", c.AlbedoSca, nsz, len(c.AlbedoWavelengths)); err != nil {
		return err
	}
	if err := checkTable(c.Name, "g", c.G, nsz, len(c.GWavelengths)); err != nil {
		return err
	}
	if err := checkTable(c.Name, "g csca", c.GSca, nsz, len(c.GWavelengths)); err != nil {
		return err
	}
	if c.Emission == nil || len(c.Emission.Shape) != 3 ||
		c.Emission.Shape[0] != len(c.FieldStrengths) ||
		c.Emission.Shape[1] != nsz ||
		c.Emission.Shape[2] != len(c.EmissionWavelengths) {
		return fmt.Errorf("grainfit: composition %s: emission cube shape does not match "+
			"(field strengths, sizes, emission wavelengths)", c.Name)
	}

	// Column density constant: converts integrated grain volume to atoms of
	// each element per unit normalizing hydrogen column.
	c.massPerFormula = 0
	for _, e := range c.Elements {
		c.massPerFormula += e.Count * e.Mass
	}
	c.colDen = make([]float64, len(c.Elements))
	for i, e := range c.Elements {
		c.colDen[i] = (4. / 3.) * math.Pi * c.Density * e.Count / c.massPerFormula
	}

	switch c.Kind {
	case BareGrain:
		c.weighting = bareWeighting{}
	case CoreMantleGrain:
		c.weighting = coreMantleWeighting{}
	default:
		return fmt.Errorf("grainfit: composition %s: unknown composition kind %d", c.Name, c.Kind)
	}
	return nil
}

func checkTable(comp, name string, t *sparse.DenseArray, nSizes, nWave int) error {
	if t == nil {
		return fmt.Errorf("grainfit: composition %s: missing %s table", comp, name)
	}
	if len(t.Shape) != 2 || t.Shape[0] != nSizes || t.Shape[1] != nWave {
		return fmt.Errorf("grainfit: composition %s: %s table shape %v does not match %d sizes × %d wavelengths",
			comp, name, t.Shape, nSizes, nWave)
	}
	return nil
}

// NSizes returns the number of grain size bins, which is also the number of
// free parameters this composition contributes to a fit.
func (c *GrainComposition) NSizes() int { return len(c.Sizes) }

// DefaultSizeDistribution returns the conventional a⁻⁴ starting size
// distribution used to seed a fit.
func (c *GrainComposition) DefaultSizeDistribution() []float64 {
	dist := make([]float64, len(c.Sizes))
	for i, a := range c.Sizes {
		dist[i] = math.Pow(a, -4)
	}
	return dist
}

// GrainModel is a set of grain compositions fit jointly to one set of
// observations. The union of the compositions' elements is fixed, in first
// declaration order, when the model is created, so every evaluation reports
// abundances with the same stable key set.
type GrainModel struct {
	Compositions []*GrainComposition

	// Elements is the ordered union of all compositions' element names.
	Elements []string

	elemIndex map[string]int
	// elemMap[ci][ei] is the model element index for element ei of
	// composition ci.
	elemMap [][]int
	nParams int
}

// NewGrainModel finalizes each composition and assembles them into a model.
func NewGrainModel(comps ...*GrainComposition) (*GrainModel, error) {
	if len(comps) == 0 {
		return nil, fmt.Errorf("grainfit: model needs at least one composition")
	}
	m := &GrainModel{
		Compositions: comps,
		elemIndex:    make(map[string]int),
	}
	seen := make(map[string]struct{})
	for _, c := range comps {
		if _, ok := seen[c.Name]; ok {
			return nil, fmt.Errorf("grainfit: duplicate composition %s", c.Name)
		}
		seen[c.Name] = struct{}{}
		if err := c.Finalize(); err != nil {
			return nil, err
		}
		m.nParams += c.NSizes()
	}
	m.elemMap = make([][]int, len(comps))
	for ci, c := range comps {
		m.elemMap[ci] = make([]int, len(c.Elements))
		for ei, e := range c.Elements {
			j, ok := m.elemIndex[e.Name]
			if !ok {
				j = len(m.Elements)
				m.Elements = append(m.Elements, e.Name)
				m.elemIndex[e.Name] = j
			}
			m.elemMap[ci][ei] = j
		}
	}
	return m, nil
}

// NParams returns the length of the flat parameter vector: the sum of the
// compositions' size grid lengths.
func (m *GrainModel) NParams() int { return m.nParams }

// SplitParams splits a flat parameter vector into per-composition size
// distributions, in composition order. The returned slices alias params.
func (m *GrainModel) SplitParams(params []float64) ([][]float64, error) {
	if len(params) != m.nParams {
		return nil, fmt.Errorf("grainfit: parameter vector length %d does not match model (%d)",
			len(params), m.nParams)
	}
	dists := make([][]float64, len(m.Compositions))
	k := 0
	for i, c := range m.Compositions {
		dists[i] = params[k : k+c.NSizes()]
		k += c.NSizes()
	}
	return dists, nil
}

// ConcatParams is the inverse of SplitParams.
func (m *GrainModel) ConcatParams(dists [][]float64) []float64 {
	params := make([]float64, 0, m.nParams)
	for _, d := range dists {
		params = append(params, d...)
	}
	return params
}
