package tui

import "testing"

func TestLayoutPanesDoNotOverlap(t *testing.T) {
	for _, size := range [][2]int{{120, 40}, {80, 24}, {200, 60}} {
		l := computeLayout(size[0], size[1], 2)
		areas := map[string]rect{
			"videos":     l.videos,
			"settings":   l.settings,
			"canvas":     l.canvas,
			"crops":      l.crops.area,
			"anns":       l.anns.area,
			"transcript": l.transcript,
		}
		for name, a := range areas {
			if a.w == 0 {
				continue
			}
			if a.x+a.w > size[0] || a.y+a.h > size[1]-2 {
				t.Errorf("%v: %s %+v runs off screen", size, name, a)
			}
			for other, b := range areas {
				if other == name || b.w == 0 {
					continue
				}
				if a.x < b.x+b.w && b.x < a.x+a.w && a.y < b.y+b.h && b.y < a.y+a.h {
					t.Errorf("%v: %s %+v overlaps %s %+v", size, name, a, other, b)
				}
			}
		}
	}
}

func TestNarrowTerminalDropsSideColumns(t *testing.T) {
	l := computeLayout(60, 30, 2)
	if l.transcript.w != 0 {
		t.Errorf("transcript should be hidden at 60 columns, got %+v", l.transcript)
	}
	if l.canvas.w < minCenter {
		t.Errorf("canvas width = %d", l.canvas.w)
	}
}

func TestCellGridHitTesting(t *testing.T) {
	g := cellGrid{area: rect{x: 10, y: 5, w: 44, h: 3}, cellW: 14}
	if g.perRow() != 3 {
		t.Fatalf("perRow = %d, want 3", g.perRow())
	}
	tests := []struct {
		x, y, scroll int
		want         int
		ok           bool
	}{
		{10, 5, 0, 0, true},
		{23, 5, 0, 0, true},
		{24, 5, 0, 0, false}, // gap between cells
		{25, 5, 0, 1, true},
		{40, 6, 0, 5, true},
		{10, 6, 2, 9, true},
		{9, 5, 0, 0, false},
		{10, 8, 0, 0, false},
	}
	for _, tt := range tests {
		got, ok := g.at(tt.x, tt.y, tt.scroll)
		if ok != tt.ok || (ok && got != tt.want) {
			t.Errorf("at(%d, %d, %d) = %d, %v; want %d, %v", tt.x, tt.y, tt.scroll, got, ok, tt.want, tt.ok)
		}
	}
	if g.rows(7) != 3 || g.rows(0) != 0 {
		t.Errorf("rows(7) = %d, rows(0) = %d", g.rows(7), g.rows(0))
	}
}

func TestBoxCells(t *testing.T) {
	l := layout{canvas: rect{x: 30, y: 3, w: 50, h: 20}}
	got := l.boxCells([4]float64{0.1, 0.5, 0.2, 0.25})
	want := rect{5, 10, 10, 5}
	if got != want {
		t.Errorf("boxCells = %+v, want %+v", got, want)
	}
	tiny := l.boxCells([4]float64{0.99, 0.99, 0.001, 0.001})
	if tiny.w != 1 || tiny.h != 1 {
		t.Errorf("a tiny box should still cover one cell, got %+v", tiny)
	}
}
