package session

import (
	"context"
	"fmt"

	"github.com/bdougie/cropcurator/internal/grid"
	"github.com/bdougie/cropcurator/internal/models"
	"github.com/bdougie/cropcurator/internal/transcript"
)

// SelectVideo switches the session to one of the listed videos
func (c *Controller) SelectVideo(path string) {
	if c.closed || path == c.state.VideoPath {
		return
	}
	known := false
	for _, v := range c.state.Videos {
		if v.Path == path {
			known = true
			break
		}
	}
	if !known {
		c.logger.Warn("ignoring unknown video", "path", path)
		return
	}
	c.state.VideoPath = path
	c.sync()
}

// SetFrame moves to frame i, clamped to the loaded frames
func (c *Controller) SetFrame(i int) {
	n := len(c.state.Frames)
	if c.closed || n == 0 {
		return
	}
	c.state.Index = max(0, min(i, n-1))
	c.sync()
}

// StepFrame moves delta frames forward or back
func (c *Controller) StepFrame(delta int) {
	c.SetFrame(c.state.Index + delta)
}

// SeekSegment jumps to the frame where segment i starts
func (c *Controller) SeekSegment(i int) {
	if i < 0 || i >= len(c.state.Segments) {
		return
	}
	frame, ok := transcript.SeekTarget(c.state.Segments[i], len(c.state.Frames))
	if !ok {
		return
	}
	c.SetFrame(frame)
}

type frameKey struct {
	path      string
	framesGen uint64
	index     int
	auto      bool
}

func (c *Controller) videoInputs() any { return c.state.VideoPath }

func (c *Controller) frameInputs() any {
	s := &c.state
	return frameKey{path: s.VideoPath, framesGen: s.FramesGen, index: s.Index, auto: s.Settings.AutoMode}
}

// videoChanged resets everything keyed by the previous video and starts
// loading frames together with a progress poll.
func (c *Controller) videoChanged() Cancel {
	s := &c.state
	s.Frames = nil
	s.FramesGen++
	s.Index = 0
	s.Progress = 0
	s.Loading = false
	c.framesGate.invalidate()

	if s.VideoPath == "" {
		return nil
	}

	path, name := s.VideoPath, s.VideoName()
	c.logger.Info("loading video", "path", path)
	s.Loading = true
	seq := c.framesGate.next()
	stopPoll := c.startPoll(name)

	c.async(func(ctx context.Context) func() {
		res, err := c.svc.Frames(ctx, path)
		return func() {
			if !c.framesGate.current(seq) {
				c.logger.Debug("dropping stale frame list", "path", path)
				return
			}
			stopPoll()
			s.Loading = false
			if err != nil {
				c.logger.Error("failed to load frames", "path", path, "error", err)
				c.alert(AlertBlocking, fmt.Sprintf("Failed to load frames: %v", err))
				return
			}
			c.logger.Info("frames loaded", "video", name, "count", len(res.Frames))
			s.Frames = res.Frames
			s.FramesGen++
			s.Index = 0
			s.Progress = 100
		}
	})
	return stopPoll
}

// startPoll asks for extraction progress every poll interval until the
// returned Cancel runs. Failures are only logged.
func (c *Controller) startPoll(name string) Cancel {
	seq := c.pollGate.next()
	c.polling = true
	// at most one progress request per poll is in flight; ticks that find
	// one outstanding are skipped
	inFlight := false
	stopTicker := c.sched.Every(c.pollInterval, func() {
		if inFlight {
			c.logger.Debug("progress poll skipped, previous request outstanding", "video", name)
			return
		}
		inFlight = true
		c.async(func(ctx context.Context) func() {
			p, err := c.svc.Progress(ctx, name)
			return func() {
				inFlight = false
				if !c.pollGate.current(seq) {
					return
				}
				if err != nil {
					c.logger.Debug("progress poll failed", "video", name, "error", err)
					return
				}
				c.state.Progress = p
			}
		})
	})
	return func() {
		stopTicker()
		if c.pollGate.current(seq) {
			c.pollGate.invalidate()
			c.polling = false
		}
	}
}

// PollActive reports whether a progress poll is running
func (c *Controller) PollActive() bool {
	return c.polling
}

// DetectQueued reports whether an automatic detection is waiting out the
// navigation debounce
func (c *Controller) DetectQueued() bool {
	return c.debounce.Pending()
}

// frameChanged drops everything tied to the previous frame, fetches the
// annotations of the new one and arms auto-detection.
func (c *Controller) frameChanged() Cancel {
	s := &c.state
	s.Crops = nil
	s.CropsGen++
	s.CropSel = grid.Selection{}
	c.detectGate.invalidate()
	s.Processing = false

	s.Annotations = nil
	s.AnnotationsGen++
	s.AnnotationSel = grid.Selection{}
	c.annotationsGate.invalidate()

	if s.VideoPath == "" || len(s.Frames) == 0 {
		return nil
	}
	c.refreshAnnotations()

	if !s.Settings.AutoMode {
		return nil
	}
	c.debounce.Schedule(func() {
		c.Detect(models.FullFrame)
	})
	return c.debounce.Stop
}

// refreshAnnotations replaces the annotation cache with the service's view of
// the current frame.
func (c *Controller) refreshAnnotations() {
	s := &c.state
	if s.VideoPath == "" || len(s.Frames) == 0 {
		return
	}
	name, index := s.VideoName(), s.Index
	seq := c.annotationsGate.next()
	c.async(func(ctx context.Context) func() {
		anns, err := c.svc.Annotations(ctx, name, index)
		return func() {
			if !c.annotationsGate.current(seq) {
				c.logger.Debug("dropping stale annotations", "video", name, "frame", index)
				return
			}
			if err != nil {
				c.logger.Error("failed to fetch annotations", "video", name, "frame", index, "error", err)
				return
			}
			s.Annotations = anns
			s.AnnotationsGen++
			s.AnnotationSel = grid.Selection{}
		}
	})
}
