package arclabel

// Padding is added around the arc diameter to size the widget.
const Padding = 50

// Geometry is the forward angle span and square size for an arc label.
type Geometry struct {
	Start int
	End   int // always greater than Start; may exceed 360
	Size  int
}

// Translate applies rotation to both angles and expresses the result as a
// forward span, which is what lv_arclabel_set_angle_range expects. When the
// rotated end does not lie after the rotated start a full turn is added.
func Translate(start, end, rotation, radius int) Geometry {
	s := mod360(start + rotation)
	e := mod360(end + rotation)
	if e <= s {
		e += 360
	}
	return Geometry{Start: s, End: e, Size: 2*radius + Padding}
}

func mod360(v int) int {
	v %= 360
	if v < 0 {
		v += 360
	}
	return v
}
