// Package session is the session controller: it owns the curation state,
// exposes the transitions a view may trigger, and keeps the asynchronous
// requests against the remote service consistent with that state.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/bdougie/cropcurator/internal/config"
	"github.com/bdougie/cropcurator/internal/models"
)

// Service is the remote annotation service
type Service interface {
	ListVideos(ctx context.Context) ([]models.VideoRef, error)
	Frames(ctx context.Context, videoPath string) (models.FramesResponse, error)
	Progress(ctx context.Context, videoName string) (int, error)
	ProcessRegion(ctx context.Context, req models.ProcessRequest) ([]models.DetectionCrop, error)
	Annotations(ctx context.Context, videoName string, frameIndex int) ([]models.Annotation, error)
	SaveAnnotations(ctx context.Context, req models.SaveRequest) (models.MutationResponse, error)
	DeleteAnnotations(ctx context.Context, req models.DeleteRequest) (models.MutationResponse, error)
	Export(ctx context.Context, videoNames []string) ([]byte, error)
	Transcribe(ctx context.Context, req models.TranscribeRequest) ([]models.Segment, error)
	Transcription(ctx context.Context, videoName string) ([]models.Segment, error)
}

// Downloader stores an exported archive and returns where it went
type Downloader interface {
	Save(name string, data []byte) (string, error)
}

// Journal records confirmed saves and deletes
type Journal interface {
	Record(ctx context.Context, entry models.JournalEntry) error
}

type AlertKind int

const (
	// AlertBlocking must be acknowledged before the user continues
	AlertBlocking AlertKind = iota
	AlertError
	AlertInfo
)

func (k AlertKind) String() string {
	switch k {
	case AlertBlocking:
		return "blocking"
	case AlertError:
		return "error"
	default:
		return "info"
	}
}

type Alert struct {
	Kind    AlertKind
	Message string
}

// Notifier shows alerts to the user
type Notifier interface {
	Notify(Alert)
}

// NotifyFunc adapts a function to Notifier
type NotifyFunc func(Alert)

func (f NotifyFunc) Notify(a Alert) { f(a) }

type Options struct {
	Service   Service
	Scheduler Scheduler
	Notifier  Notifier
	// Downloader and Journal are optional
	Downloader Downloader
	Journal    Journal
	Logger     *slog.Logger
	// Settings overrides models.DefaultSettings when set
	Settings *models.Settings

	DebounceDelay time.Duration
	PollInterval  time.Duration
}

// Controller must only be used from the scheduler's thread
type Controller struct {
	svc       Service
	sched     Scheduler
	notifier  Notifier
	downloads Downloader
	journal   Journal
	logger    *slog.Logger

	ctx  context.Context
	stop context.CancelFunc

	state  State
	closed bool

	framesGate      seqGate
	pollGate        seqGate
	annotationsGate seqGate
	detectGate      seqGate
	transcriptGate  seqGate

	polling        bool
	pendingSaves   int
	pendingDeletes int

	debounce     *Debouncer
	pollInterval time.Duration
	rules        []*rule
}

func New(opts Options) *Controller {
	settings := models.DefaultSettings()
	if opts.Settings != nil {
		settings = *opts.Settings
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	notifier := opts.Notifier
	if notifier == nil {
		notifier = NotifyFunc(func(a Alert) {
			logger.Warn("alert", "kind", a.Kind, "message", a.Message)
		})
	}
	debounce := opts.DebounceDelay
	if debounce <= 0 {
		debounce = config.AutoDetectDebounce
	}
	poll := opts.PollInterval
	if poll <= 0 {
		poll = config.ProgressPollInterval
	}

	ctx, stop := context.WithCancel(context.Background())
	c := &Controller{
		svc:          opts.Service,
		sched:        opts.Scheduler,
		notifier:     notifier,
		downloads:    opts.Downloader,
		journal:      opts.Journal,
		logger:       logger.With("component", "session"),
		ctx:          ctx,
		stop:         stop,
		state:        newState(settings),
		debounce:     NewDebouncer(opts.Scheduler, debounce),
		pollInterval: poll,
	}
	c.rules = []*rule{
		{name: "video", inputs: c.videoInputs, run: c.videoChanged},
		{name: "transcript", inputs: c.transcriptInputs, run: c.transcriptChanged},
		{name: "frame", inputs: c.frameInputs, run: c.frameChanged},
		{name: "scroll", inputs: c.scrollInputs, run: c.scrollChanged},
	}
	return c
}

// Snapshot returns a copy of the state that is safe to keep and read
func (c *Controller) Snapshot() State {
	return c.state.clone()
}

// Start lists the videos and selects the first one
func (c *Controller) Start() {
	c.logger.Info("session starting")
	c.async(func(ctx context.Context) func() {
		videos, err := c.svc.ListVideos(ctx)
		return func() {
			if err != nil {
				c.logger.Error("failed to list videos", "error", err)
				c.alert(AlertBlocking, fmt.Sprintf("Failed to load videos: %v", err))
				return
			}
			c.logger.Info("videos listed", "count", len(videos))
			c.state.Videos = videos
			if len(videos) > 0 {
				c.state.VideoPath = videos[0].Path
			}
		}
	})
}

// Close stops every timer and drops the results of requests still in flight
func (c *Controller) Close() {
	if c.closed {
		return
	}
	c.closed = true
	for _, r := range c.rules {
		r.stop()
	}
	c.debounce.Stop()
	c.stop()
	c.logger.Info("session closed")
}

// async runs call off the controller thread and applies the closure it
// returns back on it, then re-evaluates the sync rules.
func (c *Controller) async(call func(ctx context.Context) func()) {
	ctx := c.ctx
	c.sched.Go(func() func() {
		apply := call(ctx)
		return func() {
			if c.closed || apply == nil {
				return
			}
			apply()
			c.sync()
		}
	})
}

// sync runs every rule whose inputs changed, in declaration order
func (c *Controller) sync() {
	if c.closed {
		return
	}
	for _, r := range c.rules {
		r.sync(c.logger)
	}
}

func (c *Controller) alert(kind AlertKind, msg string) {
	c.notifier.Notify(Alert{Kind: kind, Message: msg})
}

// record writes to the journal; it runs on a worker goroutine
func (c *Controller) record(ctx context.Context, entry models.JournalEntry) {
	if c.journal == nil {
		return
	}
	entry.Time = time.Now().UTC()
	if err := c.journal.Record(ctx, entry); err != nil {
		c.logger.Error("failed to record journal entry", "action", entry.Action, "error", err)
	}
}
