package diagram

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRect_Intersects(t *testing.T) {
	a := Rect{X: 0, Y: 0, Width: 100, Height: 100}

	tests := []struct {
		name string
		b    Rect
		want bool
	}{
		{"overlapping", Rect{X: 50, Y: 50, Width: 100, Height: 100}, true},
		{"contained", Rect{X: 10, Y: 10, Width: 10, Height: 10}, true},
		{"touching edge", Rect{X: 100, Y: 0, Width: 50, Height: 50}, false},
		{"disjoint", Rect{X: 200, Y: 200, Width: 10, Height: 10}, false},
		{"disjoint vertically", Rect{X: 0, Y: 150, Width: 100, Height: 10}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, a.Intersects(tt.b))
			assert.Equal(t, tt.want, tt.b.Intersects(a), "symmetric")
		})
	}
}

func TestRect_Contains(t *testing.T) {
	outer := Rect{X: 0, Y: 0, Width: 100, Height: 100}

	assert.True(t, outer.Contains(Rect{X: 10, Y: 10, Width: 20, Height: 20}))
	assert.True(t, outer.Contains(outer), "shared edges count as inside")
	assert.False(t, outer.Contains(Rect{X: 90, Y: 10, Width: 20, Height: 20}))
	assert.False(t, outer.Contains(Rect{X: -1, Y: 0, Width: 10, Height: 10}))
}

func TestTable_Height(t *testing.T) {
	fields := func(n int) []Field { return make([]Field, n) }

	assert.Equal(t, TableHeaderHeight, Table{}.Height())
	assert.Equal(t, TableHeaderHeight+3*TableFieldHeight, Table{Fields: fields(3)}.Height())
	assert.Equal(t, TableHeaderHeight+10*TableFieldHeight+TableFooterHeight, Table{Fields: fields(15)}.Height())
	assert.Equal(t, TableHeaderHeight+15*TableFieldHeight, Table{Fields: fields(15), Expanded: true}.Height())
}

func TestTable_Bounds(t *testing.T) {
	tb := Table{X: 10, Y: 20, Fields: make([]Field, 2)}
	assert.Equal(t, Rect{X: 10, Y: 20, Width: DefaultTableWidth, Height: 106}, tb.Bounds())

	tb.Width = 300
	assert.Equal(t, 300.0, tb.Bounds().Width)
}

func TestContainingArea(t *testing.T) {
	areas := []Area{
		{ID: "big", X: 0, Y: 0, Width: 1000, Height: 1000},
		{ID: "small", X: 100, Y: 100, Width: 300, Height: 300},
		{ID: "small2", X: 100, Y: 100, Width: 300, Height: 300},
	}
	assert.Equal(t, "small", ContainingArea(Rect{X: 120, Y: 120, Width: 224, Height: 42}, areas))
	assert.Equal(t, "big", ContainingArea(Rect{X: 500, Y: 500, Width: 10, Height: 10}, areas))
	assert.Equal(t, "", ContainingArea(Rect{X: 990, Y: 990, Width: 20, Height: 20}, areas))
	assert.Equal(t, "", ContainingArea(Rect{X: 1, Y: 1, Width: 1, Height: 1}, nil))
}
