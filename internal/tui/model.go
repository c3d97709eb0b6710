// Package tui is the terminal view of a curation session. It renders
// snapshots of the session state and turns keys and mouse gestures into
// controller transitions. All controller calls happen inside Update.
package tui

import (
	"log/slog"
	"math"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/bdougie/cropcurator/internal/canvas"
	"github.com/bdougie/cropcurator/internal/config"
	"github.com/bdougie/cropcurator/internal/frameinfo"
	"github.com/bdougie/cropcurator/internal/grid"
	"github.com/bdougie/cropcurator/internal/models"
	"github.com/bdougie/cropcurator/internal/session"
)

const toastTTL = 5 * time.Second

type pane int

const (
	paneCanvas pane = iota
	paneCrops
	paneAnnotations
	paneTranscript
	paneVideos
	paneSettings
	paneCount
)

// Rows of the settings form
const (
	setAutoMode = iota
	setConfidence
	setSize
	setAutoSeg
	setSegModel
	setTranscription
	setTranscriptionModel
	setLabel
	settingCount
)

// Prober measures frame images for the canvas
type Prober interface {
	Probe(ref string) <-chan frameinfo.Result
	Prefetch(refs []string)
	Cached(ref string) (canvas.Surface, bool)
}

// Deps are the collaborators of a Model. Only Service is required.
type Deps struct {
	Service    session.Service
	Prober     Prober
	Downloader session.Downloader
	Journal    session.Journal
	Logger     *slog.Logger
	Settings   *models.Settings
	// Scheduler replaces delivery through the running program
	Scheduler session.Scheduler
}

type frameSizeMsg frameinfo.Result

type clearToastMsg uint64

// Model is the Bubble Tea model of the curation screen
type Model struct {
	ctrl   *session.Controller
	bridge *bridge
	prober Prober
	logger *slog.Logger
	keys   keyMap

	snap   session.State
	layout layout

	canvas *canvas.Canvas
	hub    *grid.ReleaseHub
	crops  *grid.Grid
	anns   *grid.Grid

	focus         pane
	cropGen       uint64
	cropCursor    int
	cropScroll    int
	annGen        uint64
	annCursor     int
	segCursor     int
	videoCursor   int
	settingCursor int
	exportCursor  int

	frameRef  string
	scrollSeq uint64

	modals     []session.Alert
	toast      *session.Alert
	toastSeq   uint64
	toastArmed uint64

	editingLabel bool
	label        textinput.Model
	spinner      spinner.Model
	spinning     bool
	progress     progress.Model
	viewport     viewport.Model
	help         help.Model

	width, height int
	quitting      bool
}

func New(deps Deps) *Model {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	m := &Model{
		prober: deps.Prober,
		logger: logger.With("component", "tui"),
		keys:   defaultKeys(),
		hub:    grid.NewReleaseHub(),
		bridge: &bridge{logger: logger},
	}
	sched := deps.Scheduler
	if sched == nil {
		sched = m.bridge.scheduler()
	}
	m.ctrl = session.New(session.Options{
		Service:    deps.Service,
		Scheduler:  sched,
		Notifier:   m,
		Downloader: deps.Downloader,
		Journal:    deps.Journal,
		Logger:     logger,
		Settings:   deps.Settings,
	})
	m.canvas = canvas.New(m.ctrl.Detect)
	m.crops = grid.New(config.CropPageSize, m.ctrl.CropSelector(), m.hub)
	m.anns = grid.New(config.AnnotationPageSize, m.ctrl.AnnotationSelector(), m.hub)

	m.label = textinput.New()
	m.label.Prompt = "label> "
	m.label.CharLimit = 64
	m.spinner = spinner.New(spinner.WithSpinner(spinner.Dot))
	m.progress = progress.New(progress.WithDefaultGradient(), progress.WithWidth(20))
	m.viewport = viewport.New(rightWidth, 10)
	m.help = help.New()

	m.snap = m.ctrl.Snapshot()
	m.resize(80, 24)
	return m
}

// Attach connects the model to the program that runs it. It must be called
// before the program starts.
func (m *Model) Attach(p *tea.Program) {
	m.bridge.attach(p)
}

// Notify receives controller alerts; it runs inside Update
func (m *Model) Notify(a session.Alert) {
	if a.Kind == session.AlertBlocking {
		m.modals = append(m.modals, a)
		return
	}
	m.toast = &a
	m.toastSeq++
}

func (m *Model) Init() tea.Cmd {
	m.ctrl.Start()
	return m.refresh()
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd
	switch msg := msg.(type) {
	case applyMsg:
		msg()
	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)
	case tea.KeyMsg:
		cmds = append(cmds, m.handleKey(msg))
	case tea.MouseMsg:
		cmds = append(cmds, m.handleMouse(msg))
	case frameSizeMsg:
		m.applyFrameSize(frameinfo.Result(msg))
	case clearToastMsg:
		if uint64(msg) == m.toastSeq {
			m.toast = nil
		}
	case spinner.TickMsg:
		if !m.busy() {
			m.spinning = false
			break
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)
	}
	if m.quitting {
		return m, tea.Quit
	}
	cmds = append(cmds, m.refresh())
	return m, tea.Batch(cmds...)
}

func (m *Model) quit() {
	m.ctrl.Close()
	m.quitting = true
}

func (m *Model) resize(width, height int) {
	m.width, m.height = width, height
	m.layout = computeLayout(width, height, m.footerHeight())
	m.viewport.Width = m.layout.transcript.w
	m.viewport.Height = m.layout.transcript.h
	m.help.Width = width
}

func (m *Model) footerHeight() int {
	if !m.help.ShowAll {
		return 2
	}
	h := 0
	for _, col := range m.keys.FullHelp() {
		h = max(h, len(col))
	}
	return 1 + h
}

func (m *Model) busy() bool {
	s := &m.snap
	return s.Loading || s.Processing || s.Saving || s.Deleting || s.Transcribing || s.Exporting
}

// refresh takes a new snapshot and brings the view state in line with it
func (m *Model) refresh() tea.Cmd {
	m.snap = m.ctrl.Snapshot()
	s := &m.snap

	m.crops.SetItems(s.CropsGen, cropIDs(s.Crops))
	if s.CropsGen != m.cropGen {
		m.cropGen, m.cropCursor, m.cropScroll = s.CropsGen, 0, 0
	}
	m.anns.SetItems(s.AnnotationsGen, annotationIDs(s.Annotations))
	if s.AnnotationsGen != m.annGen {
		m.annGen, m.annCursor = s.AnnotationsGen, 0
	}
	m.cropCursor = clampIndex(m.cropCursor, len(m.crops.Visible()))
	m.annCursor = clampIndex(m.annCursor, len(m.anns.Visible()))
	m.videoCursor = clampIndex(m.videoCursor, len(s.Videos))
	m.exportCursor = clampIndex(m.exportCursor, len(s.Videos))
	m.segCursor = clampIndex(m.segCursor, len(s.Segments))
	m.keepCropCursorVisible()

	m.viewport.SetContent(m.transcriptContent())
	if s.ScrollSeq != m.scrollSeq {
		m.scrollSeq = s.ScrollSeq
		if s.ScrollTarget >= 0 {
			m.segCursor = s.ScrollTarget
			m.viewport.SetYOffset(s.ScrollTarget - m.viewport.Height/2)
		}
	}

	cmds := []tea.Cmd{m.probeFrame()}
	if m.busy() && !m.spinning {
		m.spinning = true
		cmds = append(cmds, m.spinner.Tick)
	}
	if m.toast != nil && m.toastArmed != m.toastSeq {
		m.toastArmed = m.toastSeq
		seq := m.toastSeq
		cmds = append(cmds, tea.Tick(toastTTL, func(time.Time) tea.Msg { return clearToastMsg(seq) }))
	}
	return tea.Batch(cmds...)
}

// probeFrame sizes the canvas for the current frame, asking the prober when
// the size is not known yet
func (m *Model) probeFrame() tea.Cmd {
	ref, ok := m.snap.CurrentFrame()
	if !ok {
		if m.frameRef != "" {
			m.frameRef = ""
			m.canvas.SetSurface(canvas.Surface{})
		}
		return nil
	}
	if ref == m.frameRef {
		return nil
	}
	m.frameRef = ref
	if m.prober == nil {
		return nil
	}

	var cmd tea.Cmd
	if surface, ok := m.prober.Cached(ref); ok {
		m.canvas.SetSurface(surface)
	} else {
		m.canvas.SetSurface(canvas.Surface{})
		ch := m.prober.Probe(ref)
		cmd = func() tea.Msg { return frameSizeMsg(<-ch) }
	}

	next := m.snap.Index + 1
	if next < len(m.snap.Frames) {
		m.prober.Prefetch(m.snap.Frames[next:min(next+config.PrefetchAhead, len(m.snap.Frames))])
	}
	return cmd
}

func (m *Model) applyFrameSize(r frameinfo.Result) {
	if r.Ref != m.frameRef {
		return
	}
	if r.Err != nil {
		m.logger.Warn("failed to measure frame", "ref", r.Ref, "error", r.Err)
		return
	}
	m.canvas.SetSurface(r.Surface)
}

func (m *Model) handleKey(msg tea.KeyMsg) tea.Cmd {
	if msg.Type == tea.KeyCtrlC {
		m.quit()
		return nil
	}
	if m.editingLabel {
		return m.editLabel(msg)
	}
	if len(m.modals) > 0 {
		if key.Matches(msg, m.keys.Enter, m.keys.Cancel) {
			m.modals = m.modals[1:]
		}
		return nil
	}
	if m.snap.ExportOpen {
		m.exportKey(msg)
		return nil
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		m.quit()
	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
		m.resize(m.width, m.height)
	case key.Matches(msg, m.keys.Focus):
		m.focus = (m.focus + 1) % paneCount
	case key.Matches(msg, m.keys.FocusBack):
		m.focus = (m.focus + paneCount - 1) % paneCount
	case key.Matches(msg, m.keys.PrevFrame):
		m.ctrl.StepFrame(-1)
	case key.Matches(msg, m.keys.NextFrame):
		m.ctrl.StepFrame(1)
	case key.Matches(msg, m.keys.Detect):
		m.ctrl.Detect(models.FullFrame)
	case key.Matches(msg, m.keys.AutoMode):
		m.ctrl.SetAutoMode(!m.snap.Settings.AutoMode)
	case key.Matches(msg, m.keys.Save):
		m.ctrl.Save()
	case key.Matches(msg, m.keys.Delete):
		m.ctrl.DeleteSelected()
	case key.Matches(msg, m.keys.Export):
		m.exportCursor = 0
		m.ctrl.OpenExport()
	case key.Matches(msg, m.keys.Label):
		return m.startLabelEdit()
	case key.Matches(msg, m.keys.Retrans):
		m.ctrl.Retranscribe()
	case key.Matches(msg, m.keys.PrevPage):
		m.turnPage(-1)
	case key.Matches(msg, m.keys.NextPage):
		m.turnPage(1)
	default:
		return m.paneKey(msg)
	}
	return nil
}

func (m *Model) paneKey(msg tea.KeyMsg) tea.Cmd {
	switch m.focus {
	case paneCanvas, paneTranscript:
		switch {
		case key.Matches(msg, m.keys.Left):
			m.ctrl.StepFrame(-1)
		case key.Matches(msg, m.keys.Right):
			m.ctrl.StepFrame(1)
		case m.focus == paneTranscript && key.Matches(msg, m.keys.Up):
			m.segCursor = clampIndex(m.segCursor-1, len(m.snap.Segments))
		case m.focus == paneTranscript && key.Matches(msg, m.keys.Down):
			m.segCursor = clampIndex(m.segCursor+1, len(m.snap.Segments))
		case m.focus == paneTranscript && key.Matches(msg, m.keys.Enter):
			m.ctrl.SeekSegment(m.segCursor)
		}
	case paneCrops:
		m.gridKey(msg, m.crops, m.layout.crops, &m.cropCursor)
		m.keepCropCursorVisible()
	case paneAnnotations:
		m.gridKey(msg, m.anns, m.layout.anns, &m.annCursor)
	case paneVideos:
		switch {
		case key.Matches(msg, m.keys.Up):
			m.videoCursor = clampIndex(m.videoCursor-1, len(m.snap.Videos))
		case key.Matches(msg, m.keys.Down):
			m.videoCursor = clampIndex(m.videoCursor+1, len(m.snap.Videos))
		case key.Matches(msg, m.keys.Enter, m.keys.Toggle):
			if m.videoCursor < len(m.snap.Videos) {
				m.ctrl.SelectVideo(m.snap.Videos[m.videoCursor].Path)
			}
		}
	case paneSettings:
		switch {
		case key.Matches(msg, m.keys.Up):
			m.settingCursor = clampIndex(m.settingCursor-1, settingCount)
		case key.Matches(msg, m.keys.Down):
			m.settingCursor = clampIndex(m.settingCursor+1, settingCount)
		case key.Matches(msg, m.keys.Left):
			m.adjustSetting(m.settingCursor, -1)
		case key.Matches(msg, m.keys.Right):
			m.adjustSetting(m.settingCursor, 1)
		case key.Matches(msg, m.keys.Enter, m.keys.Toggle):
			if m.settingCursor == setLabel {
				return m.startLabelEdit()
			}
			m.adjustSetting(m.settingCursor, 1)
		}
	}
	return nil
}

// gridKey moves the cursor over the visible cells and toggles the cell under it
func (m *Model) gridKey(msg tea.KeyMsg, g *grid.Grid, cells cellGrid, cursor *int) {
	n := len(g.Visible())
	switch {
	case key.Matches(msg, m.keys.Left):
		*cursor = clampIndex(*cursor-1, n)
	case key.Matches(msg, m.keys.Right):
		*cursor = clampIndex(*cursor+1, n)
	case key.Matches(msg, m.keys.Up):
		*cursor = clampIndex(*cursor-cells.perRow(), n)
	case key.Matches(msg, m.keys.Down):
		*cursor = clampIndex(*cursor+cells.perRow(), n)
	case key.Matches(msg, m.keys.Toggle, m.keys.Enter):
		if *cursor < n {
			g.Press(g.Visible()[*cursor])
			m.hub.Release()
		}
	}
}

func (m *Model) turnPage(delta int) {
	g, cursor := m.crops, &m.cropCursor
	if m.focus == paneAnnotations {
		g, cursor = m.anns, &m.annCursor
	}
	if delta < 0 {
		g.PrevPage()
	} else {
		g.NextPage()
	}
	*cursor = 0
	if g == m.crops {
		m.cropScroll = 0
	}
}

func (m *Model) keepCropCursorVisible() {
	rows := m.layout.crops.area.h
	row := m.cropCursor / m.layout.crops.perRow()
	if row < m.cropScroll {
		m.cropScroll = row
	}
	if row >= m.cropScroll+rows {
		m.cropScroll = row - rows + 1
	}
	m.scrollCrops(0)
}

func (m *Model) scrollCrops(delta int) {
	total := m.layout.crops.rows(len(m.crops.Visible()))
	m.cropScroll = max(min(m.cropScroll+delta, total-m.layout.crops.area.h), 0)
}

func (m *Model) adjustSetting(row, dir int) {
	s := m.snap.Settings
	switch row {
	case setAutoMode:
		m.ctrl.SetAutoMode(!s.AutoMode)
	case setConfidence:
		_ = m.ctrl.UpdateSettings(func(s *models.Settings) {
			s.ConfThreshold = step(s.ConfThreshold, dir, 0.1, 1)
		})
	case setSize:
		_ = m.ctrl.UpdateSettings(func(s *models.Settings) {
			s.SizeThreshold = step(s.SizeThreshold, dir, 0, 1)
		})
	case setAutoSeg:
		_ = m.ctrl.UpdateSettings(func(s *models.Settings) { s.AutoSegmentation = !s.AutoSegmentation })
	case setSegModel:
		_ = m.ctrl.UpdateSettings(func(s *models.Settings) {
			s.SegModel = cycle([]string{models.SegModelYOLO, models.SegModelSAM}, s.SegModel, dir)
		})
	case setTranscription:
		m.ctrl.SetTranscriptionEnabled(!s.TranscriptionEnabled)
	case setTranscriptionModel:
		_ = m.ctrl.UpdateSettings(func(s *models.Settings) {
			s.TranscriptionModel = cycle(models.TranscriptionModels, s.TranscriptionModel, dir)
		})
	}
}

func (m *Model) startLabelEdit() tea.Cmd {
	m.editingLabel = true
	m.label.SetValue(m.snap.Settings.Label)
	m.label.CursorEnd()
	return m.label.Focus()
}

func (m *Model) editLabel(msg tea.KeyMsg) tea.Cmd {
	switch msg.Type {
	case tea.KeyEnter:
		m.ctrl.SetLabel(m.label.Value())
		fallthrough
	case tea.KeyEsc:
		m.editingLabel = false
		m.label.Blur()
		return nil
	}
	var cmd tea.Cmd
	m.label, cmd = m.label.Update(msg)
	return cmd
}

func (m *Model) exportKey(msg tea.KeyMsg) {
	videos := m.snap.Videos
	switch {
	case key.Matches(msg, m.keys.Cancel):
		m.ctrl.CloseExport()
	case key.Matches(msg, m.keys.Up):
		m.exportCursor = clampIndex(m.exportCursor-1, len(videos))
	case key.Matches(msg, m.keys.Down):
		m.exportCursor = clampIndex(m.exportCursor+1, len(videos))
	case key.Matches(msg, m.keys.Toggle):
		if m.exportCursor < len(videos) {
			m.ctrl.ToggleExport(videos[m.exportCursor].Name())
		}
	case key.Matches(msg, m.keys.Enter):
		m.ctrl.ConfirmExport()
	}
}

func (m *Model) handleMouse(msg tea.MouseMsg) tea.Cmd {
	if len(m.modals) > 0 || m.snap.ExportOpen || m.editingLabel {
		return nil
	}
	switch msg.Action {
	case tea.MouseActionPress:
		switch msg.Button {
		case tea.MouseButtonLeft:
			return m.press(msg.X, msg.Y)
		case tea.MouseButtonWheelUp:
			m.wheel(msg.X, msg.Y, -1)
		case tea.MouseButtonWheelDown:
			m.wheel(msg.X, msg.Y, 1)
		}
	case tea.MouseActionMotion:
		m.motion(msg.X, msg.Y)
	case tea.MouseActionRelease:
		m.canvas.Release()
		m.hub.Release()
	}
	return nil
}

func (m *Model) canvasPoint(x, y int) canvas.Point {
	cx, cy := m.layout.cellCenter(x, y)
	r := m.layout.canvas
	return m.canvas.Surface().Scale(cx, cy, float64(r.w), float64(r.h))
}

func (m *Model) press(x, y int) tea.Cmd {
	l := m.layout
	switch {
	case l.canvas.contains(x, y):
		m.focus = paneCanvas
		m.canvas.Press(m.canvasPoint(x, y))
	case l.crops.area.contains(x, y):
		m.focus = paneCrops
		if i, ok := m.cellAt(l.crops, m.crops, x, y, m.cropScroll); ok {
			m.cropCursor = i
			m.crops.Press(m.crops.Visible()[i])
		}
	case l.anns.area.contains(x, y):
		m.focus = paneAnnotations
		if i, ok := m.cellAt(l.anns, m.anns, x, y, 0); ok {
			m.annCursor = i
			m.anns.Press(m.anns.Visible()[i])
		}
	case l.transcript.contains(x, y):
		m.focus = paneTranscript
		if i := y - l.transcript.y + m.viewport.YOffset; i < len(m.snap.Segments) {
			m.segCursor = i
			m.ctrl.SeekSegment(i)
		}
	case l.videos.contains(x, y):
		m.focus = paneVideos
		if i := y - l.videos.y; i < len(m.snap.Videos) {
			m.videoCursor = i
			m.ctrl.SelectVideo(m.snap.Videos[i].Path)
		}
	case l.settings.contains(x, y):
		m.focus = paneSettings
		m.settingCursor = y - l.settings.y
		if m.settingCursor == setLabel {
			return m.startLabelEdit()
		}
		m.adjustSetting(m.settingCursor, 1)
	}
	return nil
}

func (m *Model) cellAt(cells cellGrid, g *grid.Grid, x, y, scroll int) (int, bool) {
	i, ok := cells.at(x, y, scroll)
	if !ok || i >= len(g.Visible()) {
		return 0, false
	}
	return i, true
}

func (m *Model) motion(x, y int) {
	l := m.layout
	if m.canvas.Drawing() {
		if l.canvas.contains(x, y) {
			m.canvas.Move(m.canvasPoint(x, y))
		} else {
			m.canvas.Leave()
		}
	}
	m.dragOver(l.crops, m.crops, x, y, m.cropScroll)
	m.dragOver(l.anns, m.anns, x, y, 0)
}

func (m *Model) dragOver(cells cellGrid, g *grid.Grid, x, y, scroll int) {
	if !g.Drag().Active() {
		return
	}
	if !cells.area.contains(x, y) {
		g.Leave()
		return
	}
	if i, ok := m.cellAt(cells, g, x, y, scroll); ok {
		g.Enter(g.Visible()[i])
	}
}

func (m *Model) wheel(x, y, delta int) {
	switch {
	case m.layout.crops.area.contains(x, y):
		m.scrollCrops(delta)
	case m.layout.transcript.contains(x, y):
		m.viewport.SetYOffset(m.viewport.YOffset + delta)
	}
}

func cropIDs(crops []models.DetectionCrop) []string {
	ids := make([]string, len(crops))
	for i, c := range crops {
		ids[i] = c.ID
	}
	return ids
}

func annotationIDs(anns []models.Annotation) []string {
	ids := make([]string, len(anns))
	for i, a := range anns {
		ids[i] = a.Filename
	}
	return ids
}

func clampIndex(i, n int) int {
	if n <= 0 || i < 0 {
		return 0
	}
	return min(i, n-1)
}

// step moves v by 0.05 in direction dir, staying in [lo, hi]
func step(v float64, dir int, lo, hi float64) float64 {
	v = math.Round((v+0.05*float64(dir))*100) / 100
	return math.Max(lo, math.Min(hi, v))
}

func cycle(options []string, current string, dir int) string {
	for i, o := range options {
		if o == current {
			return options[(i+dir+len(options))%len(options)]
		}
	}
	return options[0]
}
