// Package grid holds the logic shared by the crop and annotation grids:
// pagination and click/drag multi-selection.
package grid

import "sync"

// Selector reads and writes the selection state backing a grid. The grid never
// owns selection; it only forwards user intent.
type Selector interface {
	IsSelected(id string) bool
	SetSelected(id string, selected bool)
}

// Drag is a transient drag-select session: while active, every entered item
// is set to target.
type Drag struct {
	active bool
	target bool
}

func (d Drag) Active() bool { return d.active }

// Selecting reports whether the drag selects (true) or deselects (false)
func (d Drag) Selecting() bool { return d.target }

func (d *Drag) end() { d.active = false }

// ReleaseHub is the one process-wide pointer release listener. Every grid
// registers its drag once; a release anywhere ends all of them.
type ReleaseHub struct {
	mu    sync.Mutex
	drags []*Drag
}

func NewReleaseHub() *ReleaseHub {
	return &ReleaseHub{}
}

func (h *ReleaseHub) register(d *Drag) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.drags = append(h.drags, d)
}

// Release ends every drag in progress, wherever the pointer is
func (h *ReleaseHub) Release() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, d := range h.drags {
		d.end()
	}
}

// Grid paginates a collection of item ids and turns pointer events into selection changes
type Grid struct {
	pageSize int
	page     int
	ids      []string
	gen      uint64
	drag     Drag
	sel      Selector
}

// New creates a grid showing pageSize items per page
func New(pageSize int, sel Selector, hub *ReleaseHub) *Grid {
	if pageSize <= 0 {
		pageSize = 1
	}
	g := &Grid{pageSize: pageSize, sel: sel}
	hub.register(&g.drag)
	return g
}

// SetItems replaces the backing ids. gen identifies the collection; the page
// goes back to 0 whenever it differs from the previous one.
func (g *Grid) SetItems(gen uint64, ids []string) {
	if gen != g.gen {
		g.page = 0
		g.gen = gen
	}
	g.ids = ids
	if last := g.PageCount() - 1; g.page > last {
		g.page = max(last, 0)
	}
}

func (g *Grid) Len() int      { return len(g.ids) }
func (g *Grid) Page() int     { return g.page }
func (g *Grid) PageSize() int { return g.pageSize }

// PageCount is the number of pages, 0 for an empty grid
func (g *Grid) PageCount() int {
	return (len(g.ids) + g.pageSize - 1) / g.pageSize
}

func (g *Grid) NextPage() {
	if g.page < g.PageCount()-1 {
		g.page++
	}
}

func (g *Grid) PrevPage() {
	if g.page > 0 {
		g.page--
	}
}

// Visible returns the ids on the current page
func (g *Grid) Visible() []string {
	start := g.page * g.pageSize
	if start >= len(g.ids) {
		return nil
	}
	end := min(start+g.pageSize, len(g.ids))
	return g.ids[start:end]
}

// Press toggles id and starts a drag that applies the new state to entered items
func (g *Grid) Press(id string) {
	target := !g.sel.IsSelected(id)
	g.drag = Drag{active: true, target: target}
	g.sel.SetSelected(id, target)
}

// Enter paints the drag state onto id while a drag is in progress
func (g *Grid) Enter(id string) {
	if !g.drag.active {
		return
	}
	g.sel.SetSelected(id, g.drag.target)
}

// Leave ends the drag when the pointer leaves the grid area
func (g *Grid) Leave() {
	g.drag.end()
}

// Drag returns the state of the drag in progress, if any
func (g *Grid) Drag() Drag {
	return g.drag
}
