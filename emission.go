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

import "github.com/ctessum/sparse"

// InterpolateEmission returns the per-size emission spectrum table
// ([size, emission wavelength]) at radiation field strength u, linearly
// interpolated between the two bracketing tabulated field-strength nodes.
// Requests outside the tabulated range are clamped to the boundary node; no
// extrapolation is performed. The second return value is the field strength
// actually used, so callers can record the clamp.
func (c *GrainComposition) InterpolateEmission(u float64) (*sparse.DenseArray, float64) {
	nodes := c.FieldStrengths
	if u <= nodes[0] {
		return c.emissionAt(0), nodes[0]
	}
	if u >= nodes[len(nodes)-1] {
		return c.emissionAt(len(nodes) - 1), nodes[len(nodes)-1]
	}
	hi := 1
	for nodes[hi] < u {
		hi++
	}
	if nodes[hi] == u {
		return c.emissionAt(hi), u
	}
	lo := hi - 1
	f := (u - nodes[lo]) / (nodes[hi] - nodes[lo])

	nsz, nw := c.Emission.Shape[1], c.Emission.Shape[2]
	out := sparse.ZerosDense(nsz, nw)
	slab := nsz * nw
	eLo := c.Emission.Elements[lo*slab : (lo+1)*slab]
	eHi := c.Emission.Elements[hi*slab : (hi+1)*slab]
	for i := range out.Elements {
		out.Elements[i] = eLo[i] + f*(eHi[i]-eLo[i])
	}
	return out, u
}

// emissionAt copies the emission slab for tabulated node k into a
// [size, emission wavelength] array.
func (c *GrainComposition) emissionAt(k int) *sparse.DenseArray {
	nsz, nw := c.Emission.Shape[1], c.Emission.Shape[2]
	out := sparse.ZerosDense(nsz, nw)
	slab := nsz * nw
	copy(out.Elements, c.Emission.Elements[k*slab:(k+1)*slab])
	return out
}
