package diagram

// Table geometry constants. Heights are derived from the field list so that
// adding or removing a field changes the table's bounding box.
const (
	DefaultTableWidth   = 224.0
	TableHeaderHeight   = 42.0
	TableFieldHeight    = 32.0
	TableFooterHeight   = 32.0
	TableMinimizedLimit = 10
)

// Point is a canvas coordinate.
type Point struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
}

// Size is a width/height pair.
type Size struct {
	Width  float64 `json:"width" yaml:"width"`
	Height float64 `json:"height" yaml:"height"`
}

// Rect is an axis-aligned bounding box.
type Rect struct {
	X      float64
	Y      float64
	Width  float64
	Height float64
}

// Intersects reports whether r and o share interior area. Rectangles that
// only touch along an edge do not intersect.
func (r Rect) Intersects(o Rect) bool {
	return r.X < o.X+o.Width &&
		r.X+r.Width > o.X &&
		r.Y < o.Y+o.Height &&
		r.Y+r.Height > o.Y
}

// Contains reports whether inner lies fully inside r. Shared edges count as
// inside.
func (r Rect) Contains(inner Rect) bool {
	return inner.X >= r.X &&
		inner.Y >= r.Y &&
		inner.X+inner.Width <= r.X+r.Width &&
		inner.Y+inner.Height <= r.Y+r.Height
}

// Area returns width*height.
func (r Rect) Area() float64 {
	return r.Width * r.Height
}

// EffectiveWidth returns the table width, falling back to the default.
func (t Table) EffectiveWidth() float64 {
	if t.Width > 0 {
		return t.Width
	}
	return DefaultTableWidth
}

// Height returns the rendered table height.
func (t Table) Height() float64 {
	n := len(t.Fields)
	if t.Expanded || n <= TableMinimizedLimit {
		return TableHeaderHeight + float64(n)*TableFieldHeight
	}
	return TableHeaderHeight + TableMinimizedLimit*TableFieldHeight + TableFooterHeight
}

// Bounds returns the table's bounding box at its domain position.
func (t Table) Bounds() Rect {
	return Rect{X: t.X, Y: t.Y, Width: t.EffectiveWidth(), Height: t.Height()}
}

// ContainingArea returns the id of the smallest area whose bounds fully
// contain r, or "" if none does. Ties go to the earlier area.
func ContainingArea(r Rect, areas []Area) string {
	best := ""
	bestSize := 0.0
	for _, a := range areas {
		b := a.Bounds()
		if !b.Contains(r) {
			continue
		}
		if best == "" || b.Area() < bestSize {
			best = a.ID
			bestSize = b.Area()
		}
	}
	return best
}
