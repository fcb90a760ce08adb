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

import "testing"

// The test emission cube is k+1 at field strength node k (nodes 1, 2, 4),
// so the interpolated table value doubles as a probe of the node weights.
func TestInterpolateEmission(t *testing.T) {
	const tol = 1e-12

	c := testComposition("a")
	if err := c.Finalize(); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		u        float64
		wantVal  float64
		wantUsed float64
	}{
		{0.1, 1, 1},   // below range: clamp to first node
		{1, 1, 1},     // first node
		{1.5, 1.5, 1.5},
		{2, 2, 2},     // interior node, exact
		{3, 2.5, 3},   // halfway between nodes 2 and 4
		{4, 3, 4},     // last node
		{10, 3, 4},    // above range: clamp to last node
	}
	for _, test := range tests {
		tab, used := c.InterpolateEmission(test.u)
		if used != test.wantUsed {
			t.Errorf("u=%g: used field strength %g, want %g", test.u, used, test.wantUsed)
		}
		if v := tab.Get(0, 0); absDifferent(v, test.wantVal, tol) {
			t.Errorf("u=%g: table value %g, want %g", test.u, v, test.wantVal)
		}
		if len(tab.Shape) != 2 || tab.Shape[0] != len(c.Sizes) || tab.Shape[1] != len(c.EmissionWavelengths) {
			t.Errorf("u=%g: table shape %v", test.u, tab.Shape)
		}
	}
}

func TestEffectiveEmissionClamp(t *testing.T) {
	c := testComposition("a")
	if err := c.Finalize(); err != nil {
		t.Fatal(err)
	}
	dist := []float64{1, 1, 1}
	specLow, usedLow := c.EffectiveEmission(dist, 0.01)
	specNode, usedNode := c.EffectiveEmission(dist, 1)
	if usedLow != 1 || usedNode != 1 {
		t.Errorf("used field strengths %g and %g, want 1 and 1", usedLow, usedNode)
	}
	for j := range specLow {
		if specLow[j] != specNode[j] {
			t.Errorf("clamped spectrum differs from boundary node at wavelength %d", j)
		}
	}
}
