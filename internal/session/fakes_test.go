package session

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/bdougie/cropcurator/internal/models"
)

// fakeScheduler runs work synchronously when it is issued but holds back the
// continuation until a test delivers it, so tests decide the order in which
// responses arrive. Timers run on a manual clock.
type fakeScheduler struct {
	svc     *fakeService
	now     time.Duration
	pending []pendingResult
	timers  []*fakeTimer
}

type pendingResult struct {
	call string
	next func()
}

type fakeTimer struct {
	at        time.Duration
	every     time.Duration
	fn        func()
	cancelled bool
}

func newFakeScheduler(svc *fakeService) *fakeScheduler {
	return &fakeScheduler{svc: svc}
}

func (s *fakeScheduler) Post(fn func()) {
	s.pending = append(s.pending, pendingResult{call: "post", next: fn})
}

func (s *fakeScheduler) Go(work func() func()) {
	n := len(s.svc.calls)
	next := work()
	call := "none"
	if len(s.svc.calls) > n {
		call = s.svc.calls[n].name
	}
	if next != nil {
		s.pending = append(s.pending, pendingResult{call: call, next: next})
	}
}

func (s *fakeScheduler) After(d time.Duration, fn func()) Cancel {
	t := &fakeTimer{at: s.now + d, fn: fn}
	s.timers = append(s.timers, t)
	return func() { t.cancelled = true }
}

func (s *fakeScheduler) Every(d time.Duration, fn func()) Cancel {
	t := &fakeTimer{at: s.now + d, every: d, fn: fn}
	s.timers = append(s.timers, t)
	return func() { t.cancelled = true }
}

// deliver applies the oldest pending result of the named call and reports
// whether there was one
func (s *fakeScheduler) deliver(call string) bool {
	for i, p := range s.pending {
		if p.call == call {
			s.pending = append(s.pending[:i:i], s.pending[i+1:]...)
			p.next()
			return true
		}
	}
	return false
}

// deliverLast applies the newest pending result of the named call
func (s *fakeScheduler) deliverLast(call string) bool {
	for i := len(s.pending) - 1; i >= 0; i-- {
		if p := s.pending[i]; p.call == call {
			s.pending = append(s.pending[:i:i], s.pending[i+1:]...)
			p.next()
			return true
		}
	}
	return false
}

// settle delivers every pending result, including ones issued while settling
func (s *fakeScheduler) settle() {
	for len(s.pending) > 0 {
		p := s.pending[0]
		s.pending = s.pending[1:]
		p.next()
	}
}

func (s *fakeScheduler) pendingCalls(call string) int {
	n := 0
	for _, p := range s.pending {
		if p.call == call {
			n++
		}
	}
	return n
}

// advance moves the clock, firing due timers in order
func (s *fakeScheduler) advance(d time.Duration) {
	end := s.now + d
	for {
		var due *fakeTimer
		for _, t := range s.timers {
			if t.cancelled || t.at > end {
				continue
			}
			if due == nil || t.at < due.at {
				due = t
			}
		}
		if due == nil {
			break
		}
		s.now = due.at
		if due.every > 0 {
			due.at += due.every
		} else {
			due.cancelled = true
		}
		due.fn()
	}
	s.now = end
}

func (s *fakeScheduler) activeTimers() int {
	n := 0
	for _, t := range s.timers {
		if !t.cancelled {
			n++
		}
	}
	return n
}

type call struct {
	name string
	req  any
}

// fakeService answers from canned data and records every call
type fakeService struct {
	calls []call

	videos    []models.VideoRef
	videosErr error
	frames    map[string][]string
	framesErr error
	progress  int
	progErr   error

	detectErr   error
	annotations map[string][]models.Annotation
	saveErr     error
	deleteErr   error
	deleteFails []string
	exportData  []byte
	exportErr   error

	stored        map[string][]models.Segment
	generated     []models.Segment
	transcribeErr error
}

func newFakeService() *fakeService {
	return &fakeService{
		videos: []models.VideoRef{
			{Filename: "A.mp4", Path: "/videos/A.mp4"},
			{Filename: "B.mp4", Path: "/videos/B.mp4"},
		},
		frames: map[string][]string{
			"/videos/A.mp4": frameURLs("A", 300),
			"/videos/B.mp4": frameURLs("B", 20),
		},
		progress:    25,
		annotations: map[string][]models.Annotation{},
		exportData:  []byte("PK\x05\x06"),
		stored:      map[string][]models.Segment{},
		generated:   []models.Segment{{Start: 0, End: 4, Text: "generated"}},
	}
}

func frameURLs(video string, n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("/static/frames/%s/frame_%04d.jpg", video, i)
	}
	return out
}

func annKey(video string, frame int) string { return fmt.Sprintf("%s#%d", video, frame) }

func (f *fakeService) record(name string, req any) { f.calls = append(f.calls, call{name, req}) }

func (f *fakeService) count(name string) int {
	n := 0
	for _, c := range f.calls {
		if c.name == name {
			n++
		}
	}
	return n
}

func (f *fakeService) last(name string) any {
	for i := len(f.calls) - 1; i >= 0; i-- {
		if f.calls[i].name == name {
			return f.calls[i].req
		}
	}
	return nil
}

func (f *fakeService) ListVideos(ctx context.Context) ([]models.VideoRef, error) {
	f.record("videos", nil)
	return f.videos, f.videosErr
}

func (f *fakeService) Frames(ctx context.Context, videoPath string) (models.FramesResponse, error) {
	f.record("frames", videoPath)
	if f.framesErr != nil {
		return models.FramesResponse{}, f.framesErr
	}
	frames := f.frames[videoPath]
	return models.FramesResponse{Frames: frames, Count: len(frames)}, nil
}

func (f *fakeService) Progress(ctx context.Context, videoName string) (int, error) {
	f.record("progress", videoName)
	return f.progress, f.progErr
}

// ProcessRegion returns three crops named after the frame and bbox
func (f *fakeService) ProcessRegion(ctx context.Context, req models.ProcessRequest) ([]models.DetectionCrop, error) {
	f.record("process", req)
	if f.detectErr != nil {
		return nil, f.detectErr
	}
	id := fmt.Sprintf("%s@%v", req.FrameURL, req.BBox)
	return []models.DetectionCrop{
		{ID: id + "-0", URL: "/data/crops/" + id + "-0.jpg", BBox: req.BBox, Confidence: 0.9},
		{ID: id + "-1", URL: "/data/crops/" + id + "-1.jpg", BBox: req.BBox, Confidence: 0.8},
		{ID: id + "-2", URL: "/data/crops/" + id + "-2.jpg", BBox: req.BBox, Confidence: 0.7},
	}, nil
}

func (f *fakeService) Annotations(ctx context.Context, videoName string, frameIndex int) ([]models.Annotation, error) {
	f.record("annotations", annKey(videoName, frameIndex))
	return f.annotations[annKey(videoName, frameIndex)], nil
}

func (f *fakeService) SaveAnnotations(ctx context.Context, req models.SaveRequest) (models.MutationResponse, error) {
	f.record("save", req)
	if f.saveErr != nil {
		return models.MutationResponse{}, f.saveErr
	}
	return models.MutationResponse{Message: "saved", Count: len(req.Crops)}, nil
}

func (f *fakeService) DeleteAnnotations(ctx context.Context, req models.DeleteRequest) (models.MutationResponse, error) {
	f.record("delete", req)
	if f.deleteErr != nil {
		return models.MutationResponse{}, f.deleteErr
	}
	return models.MutationResponse{Message: "deleted", Count: len(req.Annotations) - len(f.deleteFails), Errors: f.deleteFails}, nil
}

func (f *fakeService) Export(ctx context.Context, videoNames []string) ([]byte, error) {
	f.record("export", videoNames)
	return f.exportData, f.exportErr
}

func (f *fakeService) Transcribe(ctx context.Context, req models.TranscribeRequest) ([]models.Segment, error) {
	f.record("transcribe", req)
	return f.generated, f.transcribeErr
}

func (f *fakeService) Transcription(ctx context.Context, videoName string) ([]models.Segment, error) {
	f.record("transcription", videoName)
	return f.stored[videoName], nil
}

type fakeDownloads struct {
	name string
	data []byte
	err  error
}

func (d *fakeDownloads) Save(name string, data []byte) (string, error) {
	if d.err != nil {
		return "", d.err
	}
	d.name, d.data = name, data
	return "/downloads/" + name, nil
}

type fakeJournal struct {
	entries []models.JournalEntry
}

func (j *fakeJournal) Record(ctx context.Context, e models.JournalEntry) error {
	j.entries = append(j.entries, e)
	return nil
}

type harness struct {
	svc     *fakeService
	sched   *fakeScheduler
	ctrl    *Controller
	alerts  []Alert
	dl      *fakeDownloads
	journal *fakeJournal
}

func newHarness(edit func(*models.Settings)) *harness {
	h := &harness{svc: newFakeService(), dl: &fakeDownloads{}, journal: &fakeJournal{}}
	h.sched = newFakeScheduler(h.svc)
	settings := models.DefaultSettings()
	if edit != nil {
		edit(&settings)
	}
	h.ctrl = New(Options{
		Service:    h.svc,
		Scheduler:  h.sched,
		Notifier:   NotifyFunc(func(a Alert) { h.alerts = append(h.alerts, a) }),
		Downloader: h.dl,
		Journal:    h.journal,
		Logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
		Settings:   &settings,
	})
	return h
}

// started runs Start and lets every response arrive, leaving timers alone
func (h *harness) started() *harness {
	h.ctrl.Start()
	h.sched.settle()
	return h
}
