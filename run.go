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
	"math"
	"math/rand"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/spatialmodel/grainfit/ensemble"
)

// FitConfig holds the settings for a sampling run.
type FitConfig struct {
	// Walkers is the number of walkers in the ensemble. It must be
	// even and at least twice the number of fit parameters. Zero
	// means 2*NParams rounded up to an even number, with a floor of
	// 100.
	Walkers int

	// Burn and Steps are the number of burn-in and production steps.
	Burn, Steps int

	// Seed seeds the random number generator; runs with the same
	// seed and configuration give the same result.
	Seed int64

	// FieldStrength is the radiation field strength used for the
	// emission term, in units of the reference interstellar field.
	FieldStrength float64

	// Procs is the number of concurrent likelihood evaluations.
	// Zero means one per CPU.
	Procs int

	// Progress, if non-nil, is called after each production step
	// with the number of steps completed and the total.
	Progress func(step, total int)
}

// FitResult holds the outcome of a sampling run.
type FitResult struct {
	// Best is the highest-probability parameter vector seen during
	// sampling (burn-in included), and BestLnP its log-probability.
	Best    []float64
	BestLnP float64

	// Median, PlusUnc, and MinusUnc are the per-parameter 50th
	// percentile of the production chain and the distances from it
	// to the 84th and 16th percentiles.
	Median, PlusUnc, MinusUnc []float64

	// Acceptance is the fraction of production proposals accepted.
	Acceptance float64
}

// Fit samples the posterior of the size distribution parameters given
// the observations in e and returns the best-fit parameters and
// per-parameter uncertainties. start is the initial guess, one
// parameter per size bin per composition; if nil, the default power
// law distributions conditioned to the observed extinction are used.
func Fit(e *Evaluator, start []float64, cfg FitConfig) (*FitResult, error) {
	m := e.Model
	if start == nil {
		start = InitialGuess(m, e.Obs)
	}
	if len(start) != m.NParams() {
		return nil, fmt.Errorf("grainfit: initial guess has %d parameters, want %d", len(start), m.NParams())
	}
	start = bestFiniteStart(e, start)

	nDim := m.NParams()
	nWalkers := cfg.Walkers
	if nWalkers == 0 {
		nWalkers = 2 * nDim
		if nWalkers < 100 {
			nWalkers = 100
		}
		if nWalkers%2 != 0 {
			nWalkers++
		}
	}

	s, err := ensemble.NewSampler(nWalkers, nDim, e.LogProb, cfg.Seed)
	if err != nil {
		return nil, err
	}
	s.Procs = cfg.Procs

	rnd := rand.New(rand.NewSource(cfg.Seed))
	p0 := initialWalkers(m, e.Obs, start, nWalkers, rnd)

	pos, err := s.Run(p0, cfg.Burn)
	if err != nil {
		return nil, err
	}
	s.Reset()
	if cfg.Progress == nil {
		if _, err := s.Run(pos, cfg.Steps); err != nil {
			return nil, err
		}
	} else {
		for i := 0; i < cfg.Steps; i++ {
			if pos, err = s.Run(pos, 1); err != nil {
				return nil, err
			}
			cfg.Progress(i+1, cfg.Steps)
		}
	}

	r := new(FitResult)
	r.Best, r.BestLnP = s.Best()
	r.Acceptance = s.AcceptanceFraction()
	r.Median, r.PlusUnc, r.MinusUnc = chainPercentiles(s.FlatChain(), nDim)
	return r, nil
}

// InitialGuess returns the default power law size distribution for
// each composition, scaled so that the average model extinction
// roughly matches the average observed extinction when the two differ
// by more than a factor of two.
func InitialGuess(m *GrainModel, obs *ObservationSet) []float64 {
	dists := make([][]float64, len(m.Compositions))
	for i, c := range m.Compositions {
		dists[i] = c.DefaultSizeDistribution()
	}
	agg := m.Aggregate(m.evalDists(dists, 1))
	aveObs := stat.Mean(obs.AlNH, nil)
	aveModel := stat.Mean(agg.AlNH(), nil)
	if aveModel > 0 {
		ratio := aveModel / aveObs
		if ratio > 2 || ratio < 0.5 {
			for _, d := range dists {
				floats.Scale(aveObs/aveModel, d)
			}
		}
	}
	return m.ConcatParams(dists)
}

func (m *GrainModel) evalDists(dists [][]float64, u float64) []*GrainResult {
	results := make([]*GrainResult, len(m.Compositions))
	for i, c := range m.Compositions {
		results[i] = c.EffectiveProperties(dists[i], u)
	}
	return results
}

// initialWalkers scatters the walkers around the initial guess with a
// 25% relative Gaussian perturbation, clipping negative values to
// zero, and damps walkers whose element abundances exceed the observed
// totals.
func initialWalkers(m *GrainModel, obs *ObservationSet, start []float64, nWalkers int, rnd *rand.Rand) [][]float64 {
	p0 := make([][]float64, nWalkers)
	for k := range p0 {
		p := make([]float64, len(start))
		for d, x := range start {
			p[d] = x * (1 + 0.25*rnd.NormFloat64())
			if p[d] < 0 {
				p[d] = 0
			}
		}
		dampAbundances(m, obs, p)
		p0[k] = p
	}
	return p0
}

// dampAbundances scales p down when the model abundances it implies
// exceed twice any observed element budget, so that the walkers do
// not start deep in zero-probability space. The scale is 1.9 divided
// by the largest violation, which brings the worst element just under
// twice its budget.
func dampAbundances(m *GrainModel, obs *ObservationSet, p []float64) {
	if obs.Depletions == nil {
		return
	}
	dists, err := m.SplitParams(p)
	if err != nil {
		return
	}
	agg := m.Aggregate(m.evalDists(dists, 1))
	maxViolation := 0.0
	for i, name := range m.Elements {
		dep, ok := obs.Depletions[name]
		if !ok {
			continue
		}
		ceiling := dep.Target + dep.Uncertainty
		if ceiling <= 0 {
			continue
		}
		if v := agg.Abundances[i] / ceiling; v > maxViolation {
			maxViolation = v
		}
	}
	if maxViolation > 2 {
		floats.Scale(1.9/maxViolation, p)
	}
}

// chainPercentiles returns the per-parameter 50th percentile of the
// chain and the distances from it to the 84th and 16th percentiles.
func chainPercentiles(chain [][]float64, nDim int) (median, plus, minus []float64) {
	median = make([]float64, nDim)
	plus = make([]float64, nDim)
	minus = make([]float64, nDim)
	col := make([]float64, len(chain))
	for d := 0; d < nDim; d++ {
		for i, p := range chain {
			col[i] = p[d]
		}
		sort.Float64s(col)
		p16 := stat.Quantile(0.16, stat.Empirical, col, nil)
		p50 := stat.Quantile(0.50, stat.Empirical, col, nil)
		p84 := stat.Quantile(0.84, stat.Empirical, col, nil)
		median[d] = p50
		plus[d] = p84 - p50
		minus[d] = p50 - p16
	}
	return median, plus, minus
}

// bestFiniteStart nudges a start vector that evaluates to -Inf by
// repeatedly halving it, so that an over-abundant initial guess does
// not strand the whole ensemble in zero-probability space.
func bestFiniteStart(e *Evaluator, start []float64) []float64 {
	p := append([]float64(nil), start...)
	for i := 0; i < 60; i++ {
		if !math.IsInf(e.LogProb(p), -1) {
			return p
		}
		floats.Scale(0.5, p)
	}
	return p
}
