package geometry

import "github.com/paulmach/orb"

// catmullRomTension scales the tangents; 0.5 gives the classic Catmull-Rom curve
const catmullRomTension = 0.5

// Smooth densifies one segment with a Catmull-Rom spline through its raw
// vertices. Each gap gets `subdivisions` points starting at its first raw
// vertex; the final raw vertex closes the output. The ends are padded by
// repeating the boundary vertex, so the curve never extrapolates past them.
//
// Segments with fewer than 3 vertices are returned as an unmodified copy.
// raw is never mutated.
func Smooth(raw orb.LineString, subdivisions int) orb.LineString {
	if len(raw) < 3 || subdivisions < 1 {
		return raw.Clone()
	}

	last := len(raw) - 1
	out := make(orb.LineString, 0, last*subdivisions+1)

	for i := 0; i < last; i++ {
		p0 := raw[max(i-1, 0)]
		p1 := raw[i]
		p2 := raw[i+1]
		p3 := raw[min(i+2, last)]

		out = append(out, p1)
		for s := 1; s < subdivisions; s++ {
			t := float64(s) / float64(subdivisions)
			out = append(out, catmullRom(p0, p1, p2, p3, t))
		}
	}

	return append(out, raw[last])
}

// SmoothLine smooths every segment of a line independently. Segments are
// never joined, so branch points stay sharp.
func SmoothLine(line Line, subdivisions int) []orb.LineString {
	rendered := make([]orb.LineString, 0, len(line.Segments))
	for _, seg := range line.Segments {
		if len(seg) == 0 {
			continue
		}
		rendered = append(rendered, Smooth(seg, subdivisions))
	}
	return rendered
}

// catmullRom evaluates the cubic Hermite form of the spline on p1->p2
func catmullRom(p0, p1, p2, p3 orb.Point, t float64) orb.Point {
	t2 := t * t
	t3 := t2 * t

	h00 := 2*t3 - 3*t2 + 1
	h10 := t3 - 2*t2 + t
	h01 := -2*t3 + 3*t2
	h11 := t3 - t2

	var q orb.Point
	for k := 0; k < 2; k++ {
		m1 := catmullRomTension * (p2[k] - p0[k])
		m2 := catmullRomTension * (p3[k] - p1[k])
		q[k] = h00*p1[k] + h10*m1 + h01*p2[k] + h11*m2
	}
	return q
}
