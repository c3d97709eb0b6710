package session

import (
	"errors"
	"testing"
	"time"

	"github.com/bdougie/cropcurator/internal/models"
)

func TestStartLoadsFirstVideo(t *testing.T) {
	h := newHarness(nil)
	h.ctrl.Start()
	if !h.sched.deliver("videos") {
		t.Fatal("no video listing issued")
	}

	st := h.ctrl.Snapshot()
	if st.VideoPath != "/videos/A.mp4" || st.VideoName() != "A" {
		t.Fatalf("selected %q, want the first video", st.VideoPath)
	}
	if !st.Loading || !h.ctrl.PollActive() {
		t.Fatal("expected loading with an active progress poll")
	}

	h.sched.advance(time.Second)
	if !h.sched.deliver("progress") {
		t.Fatal("poll did not ask for progress after one second")
	}
	if got := h.svc.last("progress"); got != "A" {
		t.Errorf("progress polled for %v, want A", got)
	}
	if got := h.ctrl.Snapshot().Progress; got != 25 {
		t.Errorf("progress = %d, want 25", got)
	}

	// a poll response that arrives after the frames must not win
	h.sched.advance(time.Second)
	h.sched.deliver("frames")
	h.sched.deliver("progress")

	st = h.ctrl.Snapshot()
	if len(st.Frames) != 300 || st.Index != 0 {
		t.Errorf("frames = %d index = %d, want 300 and 0", len(st.Frames), st.Index)
	}
	if st.Progress != 100 || st.Loading {
		t.Errorf("progress = %d loading = %v after load", st.Progress, st.Loading)
	}
	if h.ctrl.PollActive() {
		t.Error("poll still active after frames loaded")
	}

	polls := h.svc.count("progress")
	h.sched.advance(3 * time.Second)
	if h.svc.count("progress") != polls {
		t.Error("progress polled after the poll was cancelled")
	}
}

func TestStartWithNoVideos(t *testing.T) {
	h := newHarness(nil)
	h.svc.videos = nil
	h.started()

	st := h.ctrl.Snapshot()
	if st.VideoPath != "" || len(st.Frames) != 0 {
		t.Errorf("expected empty state, got video %q", st.VideoPath)
	}
	if h.svc.count("frames") != 0 || len(h.alerts) != 0 {
		t.Error("empty listing should not load frames or alert")
	}
}

func TestStartFailureBlocks(t *testing.T) {
	h := newHarness(nil)
	h.svc.videosErr = errors.New("connection refused")
	h.started()

	if len(h.alerts) != 1 || h.alerts[0].Kind != AlertBlocking {
		t.Fatalf("alerts = %v, want one blocking alert", h.alerts)
	}
	if h.ctrl.Snapshot().VideoPath != "" {
		t.Error("no video should be selected")
	}
}

func TestFrameLoadFailure(t *testing.T) {
	h := newHarness(nil)
	h.svc.framesErr = errors.New("boom")
	h.started()

	st := h.ctrl.Snapshot()
	if st.Loading || len(st.Frames) != 0 {
		t.Errorf("loading = %v frames = %d after failure", st.Loading, len(st.Frames))
	}
	if len(h.alerts) != 1 || h.alerts[0].Kind != AlertBlocking {
		t.Errorf("alerts = %v, want one blocking alert", h.alerts)
	}
	if h.ctrl.PollActive() {
		t.Error("poll must stop when frame loading fails")
	}
	h.sched.advance(5 * time.Second)
	if h.svc.count("progress") != 0 {
		t.Error("progress polled after failure")
	}
}

func TestPollFailuresAreSilent(t *testing.T) {
	h := newHarness(nil)
	h.svc.progErr = errors.New("not ready")
	h.ctrl.Start()
	h.sched.deliver("videos")

	h.sched.advance(time.Second)
	h.sched.deliver("progress")
	h.sched.advance(time.Second)
	h.sched.deliver("progress")

	if h.svc.count("progress") != 2 {
		t.Errorf("progress calls = %d, poll should keep going", h.svc.count("progress"))
	}
	if len(h.alerts) != 0 {
		t.Errorf("poll failures surfaced: %v", h.alerts)
	}
	if got := h.ctrl.Snapshot().Progress; got != 0 {
		t.Errorf("progress = %d, want untouched 0", got)
	}
}

func TestPollWaitsForOutstandingRequest(t *testing.T) {
	h := newHarness(nil)
	h.ctrl.Start()
	h.sched.deliver("videos")

	h.sched.advance(5 * time.Second)
	if n := h.svc.count("progress"); n != 1 {
		t.Fatalf("progress calls = %d while the first was unanswered, want 1", n)
	}

	h.sched.deliver("progress")
	if got := h.ctrl.Snapshot().Progress; got != 25 {
		t.Errorf("progress = %d, want 25", got)
	}
	h.sched.advance(time.Second)
	if n := h.svc.count("progress"); n != 2 {
		t.Errorf("progress calls = %d, poll should resume after the answer", n)
	}

	// a new video's poll does not wait for the old video's request
	h.ctrl.SelectVideo("/videos/B.mp4")
	h.sched.advance(time.Second)
	if got := h.svc.last("progress"); got != "B" {
		t.Errorf("last poll was for %v, want B", got)
	}
}

func TestVideoSwitchDropsStaleFrames(t *testing.T) {
	h := newHarness(nil)
	h.ctrl.Start()
	h.sched.deliver("videos")
	h.ctrl.SelectVideo("/videos/B.mp4")

	h.sched.deliver("frames") // A's frames, now stale
	st := h.ctrl.Snapshot()
	if len(st.Frames) != 0 || !st.Loading {
		t.Fatalf("stale frames applied: %d frames, loading %v", len(st.Frames), st.Loading)
	}
	if !h.ctrl.PollActive() {
		t.Fatal("B's poll should still run")
	}

	h.sched.deliver("frames")
	st = h.ctrl.Snapshot()
	if len(st.Frames) != 20 || st.Frames[0] != "/static/frames/B/frame_0000.jpg" {
		t.Errorf("frames = %v", st.Frames)
	}
	if h.ctrl.PollActive() {
		t.Error("poll still active")
	}
}

func TestSelectVideoResetsState(t *testing.T) {
	h := newHarness(nil)
	h.svc.stored["A"] = []models.Segment{{Start: 0, End: 5, Text: "a"}}
	h.started()
	h.sched.advance(100 * time.Millisecond)
	h.sched.settle()
	h.ctrl.SetFrame(40)
	h.sched.advance(100 * time.Millisecond)
	h.sched.settle()

	st := h.ctrl.Snapshot()
	if len(st.Crops) == 0 || len(st.Segments) == 0 {
		t.Fatal("setup: expected crops and segments")
	}
	h.ctrl.SetCropSelected(st.Crops[0].ID, true)

	h.ctrl.SelectVideo("/videos/B.mp4")
	st = h.ctrl.Snapshot()
	if st.Index != 0 || len(st.Frames) != 0 || len(st.Crops) != 0 || st.CropSel.Len() != 0 ||
		len(st.Segments) != 0 || len(st.Annotations) != 0 || st.Progress != 0 {
		t.Errorf("state not reset on video change: %+v", st)
	}

	h.ctrl.SelectVideo("/videos/missing.mp4")
	if h.ctrl.Snapshot().VideoPath != "/videos/B.mp4" {
		t.Error("unknown video should be ignored")
	}
}

func TestFrameNavigationClamps(t *testing.T) {
	h := newHarness(func(s *models.Settings) { s.AutoMode = false }).started()

	h.ctrl.SetFrame(1000)
	if got := h.ctrl.Snapshot().Index; got != 299 {
		t.Errorf("index = %d, want 299", got)
	}
	h.ctrl.StepFrame(1)
	if got := h.ctrl.Snapshot().Index; got != 299 {
		t.Errorf("next past the end moved to %d", got)
	}
	h.ctrl.SetFrame(-4)
	h.ctrl.StepFrame(-1)
	if got := h.ctrl.Snapshot().Index; got != 0 {
		t.Errorf("index = %d, want 0", got)
	}
	h.ctrl.StepFrame(1)
	if got := h.ctrl.Snapshot().Index; got != 1 {
		t.Errorf("index = %d, want 1", got)
	}
}

func TestRapidNavigationDetectsOnce(t *testing.T) {
	h := newHarness(nil).started()

	h.ctrl.SetFrame(5)
	h.sched.advance(20 * time.Millisecond)
	h.ctrl.SetFrame(6)
	h.sched.advance(20 * time.Millisecond)
	h.ctrl.SetFrame(7)
	h.sched.advance(99 * time.Millisecond)
	if n := h.svc.count("process"); n != 0 {
		t.Fatalf("%d detections before the debounce settled", n)
	}
	if !h.ctrl.DetectQueued() {
		t.Error("detection should be queued while the debounce runs")
	}

	h.sched.advance(time.Millisecond)
	if n := h.svc.count("process"); n != 1 {
		t.Fatalf("detections = %d, want exactly 1", n)
	}
	if h.ctrl.DetectQueued() {
		t.Error("nothing should be queued once detection started")
	}
	req := h.svc.last("process").(models.ProcessRequest)
	if req.FrameURL != "/static/frames/A/frame_0007.jpg" {
		t.Errorf("detected on %s, want frame 7", req.FrameURL)
	}
	if req.BBox != models.FullFrame {
		t.Errorf("bbox = %v, want the whole frame", req.BBox)
	}
	if req.ConfThreshold != 0.5 || req.SizeThreshold != 0.15 || req.SegModel != models.SegModelYOLO || req.AutoSegmentation {
		t.Errorf("request does not carry the settings: %+v", req)
	}

	if !h.ctrl.Snapshot().Processing {
		t.Error("processing should be set while detection is in flight")
	}
	h.sched.settle()
	if st := h.ctrl.Snapshot(); st.Processing || len(st.Crops) != 3 {
		t.Errorf("processing = %v crops = %d", st.Processing, len(st.Crops))
	}
}

func TestAutoModeOffSkipsDetection(t *testing.T) {
	h := newHarness(func(s *models.Settings) { s.AutoMode = false }).started()
	h.ctrl.SetFrame(3)
	h.sched.advance(time.Second)
	if h.svc.count("process") != 0 {
		t.Error("detection ran with auto mode off")
	}
	if h.svc.last("annotations") != annKey("A", 3) {
		t.Errorf("annotations fetched for %v, want A#3", h.svc.last("annotations"))
	}
}

func TestFrameChangeClearsBeforeData(t *testing.T) {
	h := newHarness(nil)
	h.svc.annotations[annKey("A", 0)] = []models.Annotation{
		{URL: "/static/annotations/x/a.jpg", Label: "x", Filename: "a.jpg"},
	}
	h.svc.annotations[annKey("A", 8)] = []models.Annotation{
		{URL: "/static/annotations/x/b.jpg", Label: "x", Filename: "b.jpg"},
	}
	h.started()
	h.sched.advance(100 * time.Millisecond)
	h.sched.settle()

	st := h.ctrl.Snapshot()
	h.ctrl.SetCropSelected(st.Crops[0].ID, true)
	h.ctrl.SetAnnotationSelected("a.jpg", true)
	if st := h.ctrl.Snapshot(); st.CropSel.Len() != 1 || st.AnnotationSel.Len() != 1 {
		t.Fatal("setup: selections not recorded")
	}

	h.ctrl.SetFrame(8)
	st = h.ctrl.Snapshot()
	if len(st.Crops) != 0 || st.CropSel.Len() != 0 || st.AnnotationSel.Len() != 0 || len(st.Annotations) != 0 {
		t.Errorf("frame change left data behind: crops=%d cropSel=%d annSel=%d anns=%d",
			len(st.Crops), st.CropSel.Len(), st.AnnotationSel.Len(), len(st.Annotations))
	}

	h.sched.settle()
	st = h.ctrl.Snapshot()
	if len(st.Annotations) != 1 || st.Annotations[0].Filename != "b.jpg" {
		t.Errorf("annotations = %v, want frame 8's", st.Annotations)
	}
}

func TestStaleDetectionDiscarded(t *testing.T) {
	first := models.BBox{0.1, 0.1, 0.2, 0.2}
	second := models.BBox{0.5, 0.5, 0.3, 0.3}

	t.Run("newest arrives first", func(t *testing.T) {
		h := newHarness(func(s *models.Settings) { s.AutoMode = false }).started()
		h.ctrl.Detect(first)
		h.ctrl.Detect(second)

		h.sched.deliverLast("process")
		st := h.ctrl.Snapshot()
		if st.Processing || len(st.Crops) == 0 || st.Crops[0].BBox != second {
			t.Fatalf("latest detection not applied: processing=%v crops=%v", st.Processing, st.Crops)
		}
		h.sched.deliver("process")
		if st := h.ctrl.Snapshot(); st.Crops[0].BBox != second {
			t.Errorf("stale detection overwrote crops: %v", st.Crops[0].BBox)
		}
	})

	t.Run("oldest arrives first", func(t *testing.T) {
		h := newHarness(func(s *models.Settings) { s.AutoMode = false }).started()
		h.ctrl.Detect(first)
		h.ctrl.Detect(second)

		h.sched.deliver("process")
		st := h.ctrl.Snapshot()
		if !st.Processing || len(st.Crops) != 0 {
			t.Fatalf("stale detection applied: processing=%v crops=%d", st.Processing, len(st.Crops))
		}
		h.sched.deliver("process")
		if st := h.ctrl.Snapshot(); st.Processing || st.Crops[0].BBox != second {
			t.Errorf("processing=%v crops=%v", st.Processing, st.Crops)
		}
	})

	t.Run("frame change drops in flight detection", func(t *testing.T) {
		h := newHarness(func(s *models.Settings) { s.AutoMode = false }).started()
		h.ctrl.Detect(first)
		h.ctrl.SetFrame(2)
		if h.ctrl.Snapshot().Processing {
			t.Error("processing should clear on frame change")
		}
		h.sched.settle()
		if n := len(h.ctrl.Snapshot().Crops); n != 0 {
			t.Errorf("crops from the previous frame applied: %d", n)
		}
	})
}

func TestDetectionFailureKeepsCrops(t *testing.T) {
	h := newHarness(func(s *models.Settings) { s.AutoMode = false }).started()
	h.ctrl.Detect(models.FullFrame)
	h.sched.settle()
	before := h.ctrl.Snapshot().Crops

	h.svc.detectErr = errors.New("model crashed")
	h.ctrl.Detect(models.BBox{0, 0, 0.5, 0.5})
	h.sched.settle()

	st := h.ctrl.Snapshot()
	if st.Processing {
		t.Error("processing not reset after failure")
	}
	if len(st.Crops) != len(before) || st.Crops[0].ID != before[0].ID {
		t.Error("failure replaced the previous crops")
	}
	if len(h.alerts) != 1 || h.alerts[0].Kind != AlertError {
		t.Errorf("alerts = %v, want one non-blocking alert", h.alerts)
	}
}

func TestSeekSegment(t *testing.T) {
	h := newHarness(func(s *models.Settings) { s.AutoMode = false })
	h.svc.stored["A"] = []models.Segment{
		{Start: 12.9, End: 20, Text: "in range"},
		{Start: 512, End: 520, Text: "past the end"},
	}
	h.started()

	h.ctrl.SeekSegment(0)
	if got := h.ctrl.Snapshot().Index; got != 12 {
		t.Errorf("index = %d, want 12", got)
	}
	h.ctrl.SeekSegment(1)
	h.ctrl.SeekSegment(7)
	if got := h.ctrl.Snapshot().Index; got != 12 {
		t.Errorf("out of range seek moved to %d", got)
	}
}

func TestSettingsValidation(t *testing.T) {
	h := newHarness(nil).started()
	err := h.ctrl.UpdateSettings(func(s *models.Settings) { s.ConfThreshold = 0.05 })
	if err == nil {
		t.Fatal("expected a validation error")
	}
	if got := h.ctrl.Snapshot().Settings.ConfThreshold; got != 0.5 {
		t.Errorf("confidence = %v, invalid edit must not apply", got)
	}
	if len(h.alerts) != 1 || h.alerts[0].Kind != AlertError {
		t.Errorf("alerts = %v", h.alerts)
	}

	if err := h.ctrl.UpdateSettings(func(s *models.Settings) { s.SegModel = models.SegModelSAM }); err != nil {
		t.Fatalf("valid edit rejected: %v", err)
	}
	h.ctrl.Detect(models.FullFrame)
	if req := h.svc.last("process").(models.ProcessRequest); req.SegModel != models.SegModelSAM {
		t.Errorf("seg model = %s", req.SegModel)
	}
}

func TestToggleAutoModeRefreshesFrame(t *testing.T) {
	h := newHarness(func(s *models.Settings) { s.AutoMode = false }).started()
	h.ctrl.Detect(models.FullFrame)
	h.sched.settle()
	fetches := h.svc.count("annotations")

	h.ctrl.SetAutoMode(true)
	if n := len(h.ctrl.Snapshot().Crops); n != 0 {
		t.Errorf("crops = %d after toggling auto mode", n)
	}
	h.sched.settle()
	if h.svc.count("annotations") != fetches+1 {
		t.Error("annotations not refetched")
	}
	h.sched.advance(100 * time.Millisecond)
	if h.svc.count("process") != 2 {
		t.Errorf("process calls = %d, auto mode should detect", h.svc.count("process"))
	}
}

func TestCloseStopsEverything(t *testing.T) {
	h := newHarness(nil)
	h.ctrl.Start()
	h.sched.deliver("videos")
	if h.sched.activeTimers() == 0 {
		t.Fatal("setup: expected the progress poll to be armed")
	}

	h.ctrl.Close()
	h.ctrl.Close()
	if n := h.sched.activeTimers(); n != 0 {
		t.Errorf("%d timers left after Close", n)
	}
	h.sched.settle()
	if n := len(h.ctrl.Snapshot().Frames); n != 0 {
		t.Errorf("response applied after Close: %d frames", n)
	}
	h.sched.advance(5 * time.Second)
	if h.svc.count("progress") != 0 {
		t.Error("poll ran after Close")
	}
}
