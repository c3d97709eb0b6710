package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/paginator"
	"github.com/charmbracelet/lipgloss"

	"github.com/bdougie/cropcurator/internal/canvas"
	"github.com/bdougie/cropcurator/internal/grid"
	"github.com/bdougie/cropcurator/internal/models"
	"github.com/bdougie/cropcurator/internal/session"
	"github.com/bdougie/cropcurator/internal/transcript"
)

var (
	titleStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205"))
	paneStyle     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("63"))
	focusedStyle  = paneStyle.Underline(true).Foreground(lipgloss.Color("212"))
	dimStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	cursorStyle   = lipgloss.NewStyle().Reverse(true)
	selectedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true)
	activeStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("229")).Background(lipgloss.Color("57"))
	cropStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	dragStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("51")).Bold(true)
	errorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	infoStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	modalStyle    = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("63")).Padding(1, 2)
)

// fit truncates s to w cells and pads it to exactly w
func fit(s string, w int) string {
	if w <= 0 {
		return ""
	}
	s = lipgloss.NewStyle().Inline(true).MaxWidth(w).Render(s)
	return s + strings.Repeat(" ", max(0, w-lipgloss.Width(s)))
}

func column(lines []string, w, h int) string {
	for i := range lines {
		lines[i] = fit(lines[i], w)
	}
	return lipgloss.NewStyle().Width(w).Height(h).MaxHeight(h).Render(strings.Join(lines, "\n"))
}

func (m *Model) View() string {
	if m.quitting {
		return ""
	}
	if len(m.modals) > 0 {
		a := m.modals[0]
		box := modalStyle.Render(errorStyle.Render(a.Message) + "\n\n" + dimStyle.Render("enter to dismiss"))
		return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, box)
	}
	if m.snap.ExportOpen {
		return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, m.exportView())
	}

	l := m.layout
	body := max(m.height-headerHeight-m.footerHeight(), 6)
	var cols []string
	if l.videos.w > 0 {
		cols = append(cols, column(m.leftLines(), l.videos.w, body), " ")
	}
	cols = append(cols, column(m.centerLines(), l.canvas.w, body))
	if l.transcript.w > 0 {
		cols = append(cols, " ", column(m.transcriptLines(), l.transcript.w, body))
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		m.headerView(),
		lipgloss.JoinHorizontal(lipgloss.Top, cols...),
		m.footerView(),
	)
}

func (m *Model) paneTitle(p pane, text string) string {
	if m.focus == p {
		return focusedStyle.Render(text)
	}
	return paneStyle.Render(text)
}

func (m *Model) headerView() string {
	s := &m.snap
	video := s.VideoName()
	if video == "" {
		video = "no video"
	}
	top := titleStyle.Render("cropcurator") + "  " + video
	if n := s.FrameCount(); n > 0 {
		top += fmt.Sprintf("  frame %d/%d", s.Index+1, n)
	}

	var status []string
	if s.Loading {
		status = append(status, m.spinner.View()+" extracting "+m.progress.ViewAs(float64(s.Progress)/100))
	}
	for _, a := range []struct {
		on   bool
		text string
	}{
		{s.Processing, "detecting"},
		{s.Saving, "saving"},
		{s.Deleting, "deleting"},
		{s.Transcribing, "transcribing"},
		{s.Exporting, "exporting"},
		{m.ctrl.DetectQueued(), "detect queued"},
	} {
		if a.on {
			status = append(status, m.spinner.View()+" "+a.text)
		}
	}
	auto := "auto off"
	if s.Settings.AutoMode {
		auto = "auto on"
	}
	status = append(status, dimStyle.Render(auto), "label: "+s.Settings.Label)
	return fit(top, m.width) + "\n" + fit(strings.Join(status, "  "), m.width)
}

func (m *Model) footerView() string {
	line := ""
	switch {
	case m.editingLabel:
		line = m.label.View()
	case m.toast != nil && m.toast.Kind == session.AlertError:
		line = errorStyle.Render(m.toast.Message)
	case m.toast != nil:
		line = infoStyle.Render(m.toast.Message)
	}
	return fit(line, m.width) + "\n" + m.help.View(m.keys)
}

func (m *Model) leftLines() []string {
	s := &m.snap
	l := m.layout
	lines := []string{m.paneTitle(paneVideos, "Videos")}
	for i := 0; i < l.videos.h; i++ {
		if i >= len(s.Videos) {
			lines = append(lines, "")
			continue
		}
		v := s.Videos[i]
		text := "  " + v.Filename
		if v.Path == s.VideoPath {
			text = selectedStyle.Render("▸ " + v.Filename)
		}
		if m.focus == paneVideos && i == m.videoCursor {
			text = cursorStyle.Render(fit(text, l.videos.w))
		}
		lines = append(lines, text)
	}

	lines = append(lines, m.paneTitle(paneSettings, "Settings"))
	st := s.Settings
	rows := [settingCount]string{
		setAutoMode:           "Auto mode      " + checkbox(st.AutoMode),
		setConfidence:         fmt.Sprintf("Confidence     %.2f", st.ConfThreshold),
		setSize:               fmt.Sprintf("Size ratio     %.2f", st.SizeThreshold),
		setAutoSeg:            "Segmentation   " + checkbox(st.AutoSegmentation),
		setSegModel:           "Seg model      " + st.SegModel,
		setTranscription:      "Transcription  " + checkbox(st.TranscriptionEnabled),
		setTranscriptionModel: "Whisper model  " + st.TranscriptionModel,
		setLabel:              "Label          " + st.Label,
	}
	for i, r := range rows {
		if m.focus == paneSettings && i == m.settingCursor {
			r = cursorStyle.Render(fit(r, l.settings.w))
		}
		lines = append(lines, r)
	}
	return lines
}

func checkbox(on bool) string {
	if on {
		return "[x]"
	}
	return "[ ]"
}

func (m *Model) centerLines() []string {
	s := &m.snap
	l := m.layout

	title := "Frame"
	if s.FrameCount() > 0 {
		title = fmt.Sprintf("Frame %d/%d", s.Index+1, s.FrameCount())
	}
	lines := []string{m.paneTitle(paneCanvas, title) + dimStyle.Render("  drag to detect")}
	lines = append(lines, m.canvasRows()...)

	sel := s.CropSel.Len()
	lines = append(lines, m.paneTitle(paneCrops, fmt.Sprintf("Crops (%d, %d selected)", len(s.Crops), sel))+"  "+pager(m.crops.Page(), m.crops.PageSize(), m.crops.Len())+dragHint(m.crops.Drag()))
	lines = append(lines, padLines(m.cropRows(), l.crops.area.h)...)

	lines = append(lines, m.paneTitle(paneAnnotations, fmt.Sprintf("Annotations (%d, %d selected)", len(s.Annotations), s.AnnotationSel.Len()))+"  "+pager(m.anns.Page(), m.anns.PageSize(), m.anns.Len())+dragHint(m.anns.Drag()))
	lines = append(lines, padLines(m.annotationRows(), l.anns.area.h)...)
	return lines
}

func dragHint(d grid.Drag) string {
	switch {
	case !d.Active():
		return ""
	case d.Selecting():
		return dragStyle.Render("  selecting")
	default:
		return dragStyle.Render("  deselecting")
	}
}

// padLines returns exactly h lines so the panes below stay where the layout
// put them
func padLines(lines []string, h int) []string {
	if len(lines) > h {
		return lines[:h]
	}
	for len(lines) < h {
		lines = append(lines, "")
	}
	return lines
}

// canvas cell classes, painted in increasing priority
const (
	cellEmpty = iota
	cellCrop
	cellSelected
	cellDrag
)

func (m *Model) canvasRows() []string {
	r := m.layout.canvas
	runes := make([][]rune, r.h)
	class := make([][]int, r.h)
	for y := range runes {
		runes[y] = []rune(strings.Repeat("·", r.w))
		class[y] = make([]int, r.w)
	}

	s := &m.snap
	for _, c := range s.Crops {
		cls := cellCrop
		if s.CropSel.Has(c.ID) {
			cls = cellSelected
		}
		drawBox(runes, class, m.layout.boxCells(c.BBox), cls)
	}
	if ov, ok := m.canvas.Overlay(); ok {
		b := canvas.Normalize(ov, m.canvas.Surface())
		drawBox(runes, class, m.layout.boxCells(b), cellDrag)
	}

	rows := make([]string, r.h)
	for y := range runes {
		rows[y] = paintRow(runes[y], class[y])
	}
	if msg := m.canvasMessage(); msg != "" && r.h > 0 {
		rows[r.h/2] = lipgloss.PlaceHorizontal(r.w, lipgloss.Center, dimStyle.Render(msg))
	}
	return rows
}

func (m *Model) canvasMessage() string {
	s := &m.snap
	switch {
	case s.Loading:
		return fmt.Sprintf("extracting frames %d%%", s.Progress)
	case s.FrameCount() == 0:
		return "no frames"
	case !m.canvas.Surface().Valid():
		return "measuring frame"
	case s.Processing && len(s.Crops) == 0:
		return "detecting"
	}
	return ""
}

func drawBox(runes [][]rune, class [][]int, b rect, cls int) {
	set := func(x, y int, r rune) {
		if y < 0 || y >= len(runes) || x < 0 || x >= len(runes[y]) || class[y][x] > cls {
			return
		}
		runes[y][x] = r
		class[y][x] = cls
	}
	x1, y1 := b.x+b.w-1, b.y+b.h-1
	for x := b.x; x <= x1; x++ {
		set(x, b.y, '─')
		set(x, y1, '─')
	}
	for y := b.y; y <= y1; y++ {
		set(b.x, y, '│')
		set(x1, y, '│')
	}
	set(b.x, b.y, '┌')
	set(x1, b.y, '┐')
	set(b.x, y1, '└')
	set(x1, y1, '┘')
}

func paintRow(runes []rune, class []int) string {
	var sb strings.Builder
	start := 0
	for i := 1; i <= len(runes); i++ {
		if i < len(runes) && class[i] == class[start] {
			continue
		}
		sb.WriteString(classStyle(class[start]).Render(string(runes[start:i])))
		start = i
	}
	return sb.String()
}

func classStyle(cls int) lipgloss.Style {
	switch cls {
	case cellCrop:
		return cropStyle
	case cellSelected:
		return selectedStyle
	case cellDrag:
		return dragStyle
	}
	return dimStyle
}

func (m *Model) cropRows() []string {
	s := &m.snap
	byID := make(map[string]models.DetectionCrop, len(s.Crops))
	for _, c := range s.Crops {
		byID[c.ID] = c
	}
	visible := m.crops.Visible()
	cells := make([]string, len(visible))
	for i, id := range visible {
		c := byID[id]
		cells[i] = fmt.Sprintf("%s %3.0f%% #%d", checkbox(s.CropSel.Has(id)), c.Confidence*100, m.crops.Page()*m.crops.PageSize()+i+1)
	}
	if len(cells) == 0 {
		return []string{dimStyle.Render("  no crops, drag a box on the frame")}
	}
	return m.gridRows(m.layout.crops, cells, m.cropScroll, m.focus == paneCrops, m.cropCursor, s.CropSel.Has, visible)
}

func (m *Model) annotationRows() []string {
	s := &m.snap
	visible := m.anns.Visible()
	cells := make([]string, len(visible))
	labels := make(map[string]string, len(s.Annotations))
	for _, a := range s.Annotations {
		labels[a.Filename] = a.Label
	}
	for i, id := range visible {
		cells[i] = fmt.Sprintf("%s %s %s", checkbox(s.AnnotationSel.Has(id)), labels[id], id)
	}
	if len(cells) == 0 {
		return []string{dimStyle.Render("  no annotations on this frame")}
	}
	return m.gridRows(m.layout.anns, cells, 0, m.focus == paneAnnotations, m.annCursor, s.AnnotationSel.Has, visible)
}

func (m *Model) gridRows(g cellGrid, cells []string, scroll int, focused bool, cursor int, selected func(string) bool, ids []string) []string {
	per := g.perRow()
	var rows []string
	for row := scroll; row < scroll+g.area.h; row++ {
		var parts []string
		for col := 0; col < per; col++ {
			i := row*per + col
			if i >= len(cells) {
				break
			}
			text := fit(cells[i], g.cellW)
			switch {
			case focused && i == cursor:
				text = cursorStyle.Render(text)
			case selected(ids[i]):
				text = selectedStyle.Render(text)
			}
			parts = append(parts, text)
		}
		rows = append(rows, strings.Join(parts, " "))
	}
	return rows
}

func pager(page, perPage, total int) string {
	p := paginator.New()
	p.Type = paginator.Arabic
	p.PerPage = perPage
	if p.SetTotalPages(total) <= 1 {
		return ""
	}
	p.Page = page
	return dimStyle.Render("page " + p.View())
}

func (m *Model) transcriptContent() string {
	s := &m.snap
	if len(s.Segments) == 0 {
		return dimStyle.Render(transcript.Placeholder(s.Transcribing))
	}
	active := s.ActiveSegment()
	w := max(m.layout.transcript.w, 1)
	lines := make([]string, len(s.Segments))
	for i, seg := range s.Segments {
		text := fit(transcript.Span(seg)+" "+seg.Text, w)
		switch {
		case m.focus == paneTranscript && i == m.segCursor:
			text = cursorStyle.Render(text)
		case i == active:
			text = activeStyle.Render(text)
		}
		lines[i] = text
	}
	return strings.Join(lines, "\n")
}

func (m *Model) transcriptLines() []string {
	title := "Transcript"
	if m.snap.Settings.TranscriptionEnabled {
		title += " (" + m.snap.Settings.TranscriptionModel + ")"
	} else {
		title += " (off)"
	}
	return append([]string{m.paneTitle(paneTranscript, title)}, strings.Split(m.viewport.View(), "\n")...)
}

func (m *Model) exportView() string {
	s := &m.snap
	var b strings.Builder
	b.WriteString(titleStyle.Render("Export annotations") + "\n\n")
	if len(s.Videos) == 0 {
		b.WriteString(dimStyle.Render("no videos") + "\n")
	}
	for i, v := range s.Videos {
		line := checkbox(s.ExportSet.Has(v.Name())) + " " + v.Filename
		if i == m.exportCursor {
			line = cursorStyle.Render(line)
		}
		b.WriteString(line + "\n")
	}
	b.WriteString("\n")
	if s.Exporting {
		b.WriteString(m.spinner.View() + " exporting\n")
	}
	if m.toast != nil && m.toast.Kind == session.AlertError {
		b.WriteString(errorStyle.Render(m.toast.Message) + "\n")
	}
	b.WriteString(dimStyle.Render("space toggle  enter export  esc close"))
	return modalStyle.Render(b.String())
}
