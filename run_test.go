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
	"math"
	"testing"

	"gonum.org/v1/gonum/stat"
)

func TestInitialGuessConditioning(t *testing.T) {
	m := testModel(t, "a")
	def := m.Compositions[0].DefaultSizeDistribution()
	agg := m.Aggregate(m.evalDists([][]float64{def}, 1))

	// Observations ten times brighter than the default model: the guess
	// must be rescaled to match on average.
	obs := &ObservationSet{
		ExtWavelengths: m.Compositions[0].ExtWavelengths,
		AlNH:           make([]float64, len(agg.Cabs)),
	}
	for i, a := range agg.AlNH() {
		obs.AlNH[i] = 10 * a
	}
	// InitialGuess starts from the a⁻⁴ default, so compare averages.
	guess := InitialGuess(m, obs)
	gDists, err := m.SplitParams(guess)
	if err != nil {
		t.Fatal(err)
	}
	gAgg := m.Aggregate(m.evalDists(gDists, 1))
	aveObs := stat.Mean(obs.AlNH, nil)
	aveModel := stat.Mean(gAgg.AlNH(), nil)
	ratio := aveModel / aveObs
	if ratio < 0.99 || ratio > 1.01 {
		t.Errorf("conditioned guess average ratio %g, want 1", ratio)
	}

	// Observations within a factor of two of the model: no rescale.
	for i, a := range agg.AlNH() {
		obs.AlNH[i] = 1.5 * a
	}
	guess2 := InitialGuess(m, obs)
	want := m.Compositions[0].DefaultSizeDistribution()
	for i := range want {
		if guess2[i] != want[i] {
			t.Errorf("guess rescaled inside the factor-of-two window at %d: %g != %g", i, guess2[i], want[i])
		}
	}
}

func TestDampAbundances(t *testing.T) {
	m := testModel(t, "a")
	params := onesParams(m)
	dists, err := m.SplitParams(params)
	if err != nil {
		t.Fatal(err)
	}
	n := m.Aggregate(m.evalDists(dists, 1)).Abundances[0]

	obs := &ObservationSet{
		ExtWavelengths: m.Compositions[0].ExtWavelengths,
		AlNH:           []float64{1, 1, 1},
		Depletions: map[string]Depletion{
			// Budget ten times below the model abundance.
			"C": {Target: n / 20, Uncertainty: n / 20, Total: n / 10},
		},
	}
	p := append([]float64(nil), params...)
	dampAbundances(m, obs, p)
	if p[0] >= params[0] {
		t.Errorf("violating walker not damped: %g >= %g", p[0], params[0])
	}
	pd, err := m.SplitParams(p)
	if err != nil {
		t.Fatal(err)
	}
	// The damping brings the worst element to 1.9 times its budget.
	nd := m.Aggregate(m.evalDists(pd, 1)).Abundances[0]
	budget := n / 10
	if absDifferent(nd, 1.9*budget, budget*1e-9) {
		t.Errorf("damped abundance %g, want %g", nd, 1.9*budget)
	}

	// A walker inside the budget is left alone.
	obs.Depletions["C"] = Depletion{Target: n, Uncertainty: n, Total: 10 * n}
	q := append([]float64(nil), params...)
	dampAbundances(m, obs, q)
	for i := range q {
		if q[i] != params[i] {
			t.Errorf("non-violating walker damped at %d", i)
		}
	}
}

func TestChainPercentiles(t *testing.T) {
	chain := make([][]float64, 101)
	for i := range chain {
		chain[i] = []float64{float64(i), float64(2 * i)}
	}
	median, plus, minus := chainPercentiles(chain, 2)
	if absDifferent(median[0], 50, 1) {
		t.Errorf("median %g, want 50", median[0])
	}
	if absDifferent(median[1], 100, 2) {
		t.Errorf("median %g, want 100", median[1])
	}
	if absDifferent(plus[0], 34, 1.5) || absDifferent(minus[0], 34, 1.5) {
		t.Errorf("uncertainties +%g -%g, want about 34", plus[0], minus[0])
	}
}

func TestFit(t *testing.T) {
	if testing.Short() {
		t.Skip("sampling test in short mode")
	}
	m := testModel(t, "a")
	params := onesParams(m)
	e, err := NewEvaluator(m, testObservations(t, m, params), 1)
	if err != nil {
		t.Fatal(err)
	}

	r, err := Fit(e, params, FitConfig{
		Walkers: 20,
		Burn:    50,
		Steps:   200,
		Seed:    42,
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(r.Best) != m.NParams() || len(r.Median) != m.NParams() {
		t.Fatalf("result lengths: best %d, median %d, want %d", len(r.Best), len(r.Median), m.NParams())
	}
	if math.IsInf(r.BestLnP, -1) || math.IsNaN(r.BestLnP) {
		t.Fatalf("best log-probability %g", r.BestLnP)
	}
	// The observations were generated at params, so the best sample must
	// be close to a perfect fit.
	if r.BestLnP < -25 {
		t.Errorf("best log-probability %g, want near 0", r.BestLnP)
	}
	if r.Acceptance <= 0 || r.Acceptance > 1 {
		t.Errorf("acceptance fraction %g", r.Acceptance)
	}
	for d := 0; d < m.NParams(); d++ {
		if r.PlusUnc[d] < 0 || r.MinusUnc[d] < 0 {
			t.Errorf("negative uncertainty at parameter %d: +%g -%g", d, r.PlusUnc[d], r.MinusUnc[d])
		}
	}
}

func TestFitDeterministic(t *testing.T) {
	if testing.Short() {
		t.Skip("sampling test in short mode")
	}
	m := testModel(t, "a")
	params := onesParams(m)
	e, err := NewEvaluator(m, testObservations(t, m, params), 1)
	if err != nil {
		t.Fatal(err)
	}
	cfg := FitConfig{Walkers: 12, Burn: 20, Steps: 50, Seed: 7, Procs: 2}
	r1, err := Fit(e, params, cfg)
	if err != nil {
		t.Fatal(err)
	}
	r2, err := Fit(e, params, cfg)
	if err != nil {
		t.Fatal(err)
	}
	if r1.BestLnP != r2.BestLnP {
		t.Errorf("same seed gave different best log-probabilities: %g != %g", r1.BestLnP, r2.BestLnP)
	}
	for d := range r1.Best {
		if r1.Best[d] != r2.Best[d] {
			t.Errorf("same seed gave different best parameters at %d", d)
		}
	}
}
