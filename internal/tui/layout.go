package tui

import "github.com/bdougie/cropcurator/internal/config"

const (
	headerHeight = 2
	leftWidth    = 28
	rightWidth   = 36
	cropCellW    = 14
	annCellW     = 24
	minCenter    = 30
)

// rect is an area of terminal cells
type rect struct {
	x, y, w, h int
}

func (r rect) contains(x, y int) bool {
	return x >= r.x && x < r.x+r.w && y >= r.y && y < r.y+r.h
}

// cellGrid places fixed-width cells in rows, one space apart
type cellGrid struct {
	area  rect
	cellW int
}

func (g cellGrid) perRow() int {
	return max(1, (g.area.w+1)/(g.cellW+1))
}

// at returns the offset of the cell under (x, y) counted from the first
// visible row, after scrolling by scroll rows
func (g cellGrid) at(x, y, scroll int) (int, bool) {
	if !g.area.contains(x, y) {
		return 0, false
	}
	dx := x - g.area.x
	col := dx / (g.cellW + 1)
	if dx%(g.cellW+1) == g.cellW || col >= g.perRow() {
		return 0, false
	}
	row := y - g.area.y + scroll
	return row*g.perRow() + col, true
}

// rows is the number of rows needed for n cells
func (g cellGrid) rows(n int) int {
	return (n + g.perRow() - 1) / g.perRow()
}

// layout is where every pane sits for a given terminal size. The view draws
// from it and mouse events are resolved against it.
type layout struct {
	width, height int

	videos     rect
	settings   rect
	canvas     rect
	crops      cellGrid
	anns       cellGrid
	transcript rect
	footer     rect
}

func computeLayout(width, height, footerHeight int) layout {
	l := layout{width: width, height: height}

	left, right := leftWidth, rightWidth
	if width-left-right-2 < minCenter {
		right = 0
	}
	if width-left-2 < minCenter {
		left = 0
	}
	cx := 0
	if left > 0 {
		cx = left + 1
	}
	cw := width - cx
	if right > 0 {
		cw -= right + 1
	}
	cw = max(cw, 1)

	body := max(height-headerHeight-footerHeight, 6)
	top := headerHeight

	if left > 0 {
		vh := max(min(body/2-1, 10), 1)
		l.videos = rect{0, top + 1, left, vh}
		l.settings = rect{0, top + vh + 2, left, settingCount}
	}
	if right > 0 {
		l.transcript = rect{width - right, top + 1, right, body - 1}
	}

	annPerRow := cellGrid{area: rect{w: cw}, cellW: annCellW}.perRow()
	ar := (config.AnnotationPageSize + annPerRow - 1) / annPerRow
	ar = max(min(ar, body/4), 1)
	ch := max((body-3-ar)*3/5, 3)
	kr := max(body-3-ch-ar, 1)

	l.canvas = rect{cx, top + 1, cw, ch}
	l.crops = cellGrid{area: rect{cx, top + 2 + ch, cw, kr}, cellW: cropCellW}
	l.anns = cellGrid{area: rect{cx, top + 3 + ch + kr, cw, ar}, cellW: annCellW}
	l.footer = rect{0, height - footerHeight, width, footerHeight}
	return l
}

// cellCenter is the position of a canvas cell in cell units, measured at its center
func (l layout) cellCenter(x, y int) (float64, float64) {
	return float64(x-l.canvas.x) + 0.5, float64(y-l.canvas.y) + 0.5
}

// boxCells maps a normalized box onto canvas cells
func (l layout) boxCells(b [4]float64) rect {
	x0 := int(b[0] * float64(l.canvas.w))
	y0 := int(b[1] * float64(l.canvas.h))
	x1 := int((b[0] + b[2]) * float64(l.canvas.w))
	y1 := int((b[1] + b[3]) * float64(l.canvas.h))
	x1 = min(max(x1, x0+1), l.canvas.w)
	y1 = min(max(y1, y0+1), l.canvas.h)
	return rect{x0, y0, x1 - x0, y1 - y0}
}
