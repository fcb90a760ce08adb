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

// Package ensemble implements the affine-invariant ensemble sampler of
// Goodman and Weare (2010) with the parallel stretch move of
// Foreman-Mackey et al. (2013). The ensemble is split into two halves;
// the walkers in each half are updated concurrently using the
// complementary half, which keeps the walkers independent within an
// update and lets the log-probability function be evaluated in
// parallel.
package ensemble

import (
	"fmt"
	"math"
	"math/rand"
	"runtime"
	"sync"
)

// StretchA is the stretch-move scale parameter. The proposal scale z is
// drawn from g(z) ∝ 1/√z on [1/a, a].
const StretchA = 2.0

// LogProbFunc returns the log of the posterior probability density at
// params. It must be safe for concurrent use and must return -Inf for
// parameter sets outside the support of the posterior; it must not
// retain params after returning.
type LogProbFunc func(params []float64) float64

// Sampler draws samples from a probability distribution using an
// ensemble of walkers.
type Sampler struct {
	LogProb  LogProbFunc
	nWalkers int
	nDim     int
	rnd      *rand.Rand

	// Procs is the number of concurrent log-probability evaluations.
	// Zero means runtime.GOMAXPROCS(0).
	Procs int

	pos      [][]float64 // current walker positions
	lnp      []float64   // log-probability at pos
	chain    [][]float64 // nWalkers*steps samples in step-major walker order
	chainLnP []float64
	accepted int
	steps    int

	best    []float64
	bestLnP float64
}

// NewSampler creates a sampler with nWalkers walkers in an nDim
// dimensional parameter space. nWalkers must be even and at least
// 2*nDim so that the complementary half of the ensemble spans the
// parameter space. Runs with the same seed are deterministic.
func NewSampler(nWalkers, nDim int, logProb LogProbFunc, seed int64) (*Sampler, error) {
	if nWalkers%2 != 0 {
		return nil, fmt.Errorf("ensemble: number of walkers must be even but is %d", nWalkers)
	}
	if nWalkers < 2*nDim {
		return nil, fmt.Errorf("ensemble: %d walkers is fewer than twice the %d dimensions", nWalkers, nDim)
	}
	if nDim < 1 {
		return nil, fmt.Errorf("ensemble: dimension must be positive but is %d", nDim)
	}
	return &Sampler{
		LogProb:  logProb,
		nWalkers: nWalkers,
		nDim:     nDim,
		rnd:      rand.New(rand.NewSource(seed)),
		bestLnP:  math.Inf(-1),
	}, nil
}

// NWalkers returns the number of walkers in the ensemble.
func (s *Sampler) NWalkers() int { return s.nWalkers }

// Run advances the ensemble nSteps steps from the initial walker
// positions p0 and records the samples. p0 must hold one position per
// walker; the positions are copied. Successive calls continue the
// chain from the final positions of the previous call; use the
// returned positions of the previous Run as p0.
func (s *Sampler) Run(p0 [][]float64, nSteps int) ([][]float64, error) {
	if len(p0) != s.nWalkers {
		return nil, fmt.Errorf("ensemble: %d initial positions for %d walkers", len(p0), s.nWalkers)
	}
	s.pos = make([][]float64, s.nWalkers)
	s.lnp = make([]float64, s.nWalkers)
	for k, p := range p0 {
		if len(p) != s.nDim {
			return nil, fmt.Errorf("ensemble: initial position %d has %d dimensions, want %d", k, len(p), s.nDim)
		}
		s.pos[k] = append([]float64(nil), p...)
	}
	s.evalAll()
	for k, lp := range s.lnp {
		if math.IsNaN(lp) {
			return nil, fmt.Errorf("ensemble: initial position %d has NaN log-probability", k)
		}
	}

	for i := 0; i < nSteps; i++ {
		s.stepHalf(0)
		s.stepHalf(1)
		for k := 0; k < s.nWalkers; k++ {
			s.chain = append(s.chain, append([]float64(nil), s.pos[k]...))
			s.chainLnP = append(s.chainLnP, s.lnp[k])
			if s.lnp[k] > s.bestLnP {
				s.bestLnP = s.lnp[k]
				s.best = append([]float64(nil), s.pos[k]...)
			}
		}
		s.steps++
	}
	return s.pos, nil
}

// stepHalf applies the stretch move to the walkers in half h (0 or 1),
// using the complementary half as the reference ensemble. The random
// draws happen serially so that runs are reproducible; only the
// log-probability evaluations run concurrently.
func (s *Sampler) stepHalf(h int) {
	half := s.nWalkers / 2
	lo := h * half

	props := make([][]float64, half)
	lnz := make([]float64, half)
	accept := make([]float64, half)
	for j := 0; j < half; j++ {
		k := lo + j
		// Draw z from g(z) ∝ 1/√z on [1/a, a].
		z := math.Pow((StretchA-1)*s.rnd.Float64()+1, 2) / StretchA
		c := s.pos[(1-h)*half+s.rnd.Intn(half)]
		p := make([]float64, s.nDim)
		for d := 0; d < s.nDim; d++ {
			p[d] = c[d] + z*(s.pos[k][d]-c[d])
		}
		props[j] = p
		lnz[j] = float64(s.nDim-1) * math.Log(z)
		accept[j] = s.rnd.Float64()
	}

	lnp := s.evaluate(props)

	for j := 0; j < half; j++ {
		k := lo + j
		if math.Log(accept[j]) < lnz[j]+lnp[j]-s.lnp[k] {
			copy(s.pos[k], props[j])
			s.lnp[k] = lnp[j]
			s.accepted++
		}
	}
}

func (s *Sampler) evalAll() {
	lnp := s.evaluate(s.pos)
	copy(s.lnp, lnp)
}

// evaluate computes the log-probability of each position, fanning the
// work out to worker goroutines.
func (s *Sampler) evaluate(pos [][]float64) []float64 {
	lnp := make([]float64, len(pos))
	nProcs := s.Procs
	if nProcs <= 0 {
		nProcs = runtime.GOMAXPROCS(0)
	}
	jobChan := make(chan int, len(pos))
	var wg sync.WaitGroup
	for p := 0; p < nProcs; p++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobChan {
				lnp[i] = s.LogProb(pos[i])
			}
		}()
	}
	for i := range pos {
		jobChan <- i
	}
	close(jobChan)
	wg.Wait()
	return lnp
}

// Reset discards the stored chain and acceptance statistics but keeps
// the best sample seen so far. Call it between burn-in and production
// sampling.
func (s *Sampler) Reset() {
	s.chain = nil
	s.chainLnP = nil
	s.accepted = 0
	s.steps = 0
}

// FlatChain returns the stored samples, one position per row, in
// step-major walker order. The returned rows alias the sampler's
// storage and must not be modified.
func (s *Sampler) FlatChain() [][]float64 { return s.chain }

// FlatLnP returns the log-probability of each stored sample, in the
// same order as FlatChain.
func (s *Sampler) FlatLnP() []float64 { return s.chainLnP }

// Best returns the highest-probability sample seen since the sampler
// was created, and its log-probability.
func (s *Sampler) Best() ([]float64, float64) { return s.best, s.bestLnP }

// AcceptanceFraction returns the fraction of proposals accepted since
// the last Reset.
func (s *Sampler) AcceptanceFraction() float64 {
	if s.steps == 0 {
		return 0
	}
	return float64(s.accepted) / float64(s.steps*s.nWalkers)
}
