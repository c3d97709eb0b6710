package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/bdougie/cropcurator/internal/client"
	"github.com/bdougie/cropcurator/internal/models"
	"github.com/bdougie/cropcurator/internal/transcript"
)

type transcriptKey struct {
	path    string
	enabled bool
	model   string
}

type scrollKey struct {
	index       int
	enabled     bool
	segmentsGen uint64
}

func (c *Controller) transcriptInputs() any {
	s := &c.state
	return transcriptKey{path: s.VideoPath, enabled: s.Settings.TranscriptionEnabled, model: s.Settings.TranscriptionModel}
}

func (c *Controller) scrollInputs() any {
	s := &c.state
	return scrollKey{index: s.Index, enabled: s.Settings.TranscriptionEnabled, segmentsGen: s.SegmentsGen}
}

// transcriptChanged clears the segments right away, then loads the stored
// transcript of the video or generates one when none exists.
func (c *Controller) transcriptChanged() Cancel {
	s := &c.state
	c.setSegments(nil)
	c.transcriptGate.invalidate()
	s.Transcribing = false

	if s.VideoPath == "" || !s.Settings.TranscriptionEnabled {
		return nil
	}
	c.loadTranscript(false)
	return nil
}

// Retranscribe regenerates the transcript of the current video
func (c *Controller) Retranscribe() {
	if c.closed || c.state.VideoPath == "" {
		return
	}
	c.loadTranscript(true)
}

func (c *Controller) loadTranscript(force bool) {
	s := &c.state
	req := models.TranscribeRequest{VideoName: s.VideoName(), Model: s.Settings.TranscriptionModel, Force: true}
	seq := c.transcriptGate.next()
	s.Transcribing = true

	c.async(func(ctx context.Context) func() {
		if !force {
			segs, err := c.svc.Transcription(ctx, req.VideoName)
			switch {
			case err == nil && len(segs) > 0:
				return func() { c.applyTranscript(seq, segs, nil) }
			case err != nil && !errors.Is(err, client.ErrNotFound):
				return func() { c.applyTranscript(seq, nil, err) }
			}
			c.logger.Debug("no stored transcript, generating", "video", req.VideoName, "model", req.Model)
		}
		segs, err := c.svc.Transcribe(ctx, req)
		return func() { c.applyTranscript(seq, segs, err) }
	})
}

func (c *Controller) applyTranscript(seq uint64, segs []models.Segment, err error) {
	if !c.transcriptGate.current(seq) {
		c.logger.Debug("dropping stale transcript", "seq", seq)
		return
	}
	c.state.Transcribing = false
	if err != nil {
		c.logger.Error("transcription failed", "video", c.state.VideoName(), "error", err)
		c.alert(AlertError, fmt.Sprintf("Transcription failed: %v", err))
		return
	}
	c.setSegments(segs)
}

func (c *Controller) setSegments(segs []models.Segment) {
	c.state.Segments = segs
	c.state.SegmentsGen++
}

// scrollChanged points the transcript panel at the active segment
func (c *Controller) scrollChanged() Cancel {
	s := &c.state
	if !s.Settings.TranscriptionEnabled || len(s.Segments) == 0 {
		return nil
	}
	if i := transcript.Active(s.Segments, s.Index); i >= 0 {
		s.ScrollTarget = i
		s.ScrollSeq++
	}
	return nil
}
