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

import "math"

const (
	// extPerTau converts optical depth to magnitudes of extinction:
	// 2.5/ln(10).
	extPerTau = 1.086

	// extRelUncertainty is the assumed relative uncertainty of the
	// observed extinction curve.
	extRelUncertainty = 0.10

	// abundanceCeilingFactor: a proposal locking more than this multiple
	// of an element's total possible abundance into dust is physically
	// impossible and rejected outright.
	abundanceCeilingFactor = 1.5
)

// Evaluator computes the log-probability of trial size distributions
// against a fixed observation set. It captures the model and observations
// explicitly so its dependencies are fully declared; the zero value is not
// usable.
//
// LogProb is safe for concurrent use: the model tables and observations
// are only read, and each call works on its own intermediate state.
type Evaluator struct {
	Model *GrainModel
	Obs   *ObservationSet

	// FieldStrength is the interstellar radiation field strength the
	// emission spectra are computed at. It is clamped to each
	// composition's tabulated range during evaluation.
	FieldStrength float64
}

// NewEvaluator checks the observations against the model and returns an
// evaluator using radiation field strength fieldStrength.
func NewEvaluator(m *GrainModel, obs *ObservationSet, fieldStrength float64) (*Evaluator, error) {
	if err := obs.Check(); err != nil {
		return nil, err
	}
	if err := obs.CheckAgainst(m); err != nil {
		return nil, err
	}
	return &Evaluator{Model: m, Obs: obs, FieldStrength: fieldStrength}, nil
}

// LogProb returns the log-probability of the flat parameter vector params
// (the concatenated per-composition size distributions). Infeasible
// proposals — any negative entry, any element exceeding
// abundanceCeilingFactor times its total possible abundance, or a
// numerically degenerate result — yield -Inf so the sampler rejects and
// moves on; they never terminate the run.
func (e *Evaluator) LogProb(params []float64) float64 {
	for _, p := range params {
		if p < 0 {
			return math.Inf(-1)
		}
	}
	dists, err := e.Model.SplitParams(params)
	if err != nil {
		// Wrong-length vectors indicate a miswired sampler, not a bad
		// proposal.
		panic(err)
	}

	results := make([]*GrainResult, len(e.Model.Compositions))
	for i, c := range e.Model.Compositions {
		results[i] = c.EffectiveProperties(dists[i], e.FieldStrength)
	}
	agg := e.Model.Aggregate(results)

	obs := e.Obs
	for i, name := range agg.Elements {
		d, ok := obs.Depletions[name]
		if !ok {
			continue
		}
		if agg.Abundances[i] > abundanceCeilingFactor*d.Total {
			return math.Inf(-1)
		}
	}

	// Extinction per hydrogen column.
	lnp := 0.
	for i, a := range obs.AlNH {
		model := extPerTau * (agg.Cabs[i] + agg.Csca[i])
		r := (a - model) / (extRelUncertainty * a)
		lnp -= 0.5 * r * r
	}

	// Depletions: one-sided, penalizing only elements over-locked into
	// dust relative to the observed depletion.
	if obs.FitDepletions {
		dep := 0.
		for i, name := range agg.Elements {
			d, ok := obs.Depletions[name]
			if !ok {
				continue
			}
			if agg.Abundances[i] > d.Target {
				r := (agg.Abundances[i] - d.Target) / d.Uncertainty
				dep += r * r
			}
		}
		lnp -= 0.5 * dep
	}

	// Infrared emission.
	if obs.FitIREmission {
		for i, s := range obs.IREmission {
			r := (s - agg.Emission[obs.IREmissionIdx[i]]) / obs.IREmissionUnc[i]
			lnp -= 0.5 * r * r
		}
	}

	// Scattering albedo.
	if obs.FitScatParam {
		for i, a := range obs.Albedo {
			r := (a - agg.Albedo[obs.AlbedoIdx[i]]) / obs.AlbedoUnc[i]
			lnp -= 0.5 * r * r
		}
	}

	// Numeric degeneracy in any term surfaces as a rejection rather than
	// killing the sampling run.
	if math.IsNaN(lnp) || math.IsInf(lnp, 0) {
		return math.Inf(-1)
	}
	return lnp
}
