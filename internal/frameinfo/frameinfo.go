// Package frameinfo learns the intrinsic pixel size of frame images so the
// region canvas can map pointer positions onto the image.
package frameinfo

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"log/slog"
	"sync"

	_ "golang.org/x/image/webp"

	"github.com/bdougie/cropcurator/internal/canvas"
)

// ErrQueueFull is returned when every worker is busy and the queue is at capacity
var ErrQueueFull = errors.New("frame probe queue is full, try again later")

// Fetcher downloads the bytes behind a media reference
type Fetcher interface {
	FetchMedia(ctx context.Context, ref string) ([]byte, error)
}

// Result is the outcome of probing one frame
type Result struct {
	Ref     string
	Surface canvas.Surface
	Err     error
}

type work struct {
	ref    string
	result chan<- Result // nil for prefetches
}

// Service probes frames on a fixed pool of workers and caches the sizes
type Service struct {
	fetch      Fetcher
	logger     *slog.Logger
	numWorkers int
	workQueue  chan work
	cache      sync.Map

	ctx    context.Context
	cancel context.CancelFunc
	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

// NewService starts numWorkers probe workers sharing a queue of queueSize
func NewService(fetch Fetcher, numWorkers, queueSize int, logger *slog.Logger) *Service {
	if numWorkers <= 0 {
		numWorkers = 4
	}
	if queueSize <= 0 {
		queueSize = 100
	}
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &Service{
		fetch:      fetch,
		logger:     logger.With("component", "frameinfo"),
		numWorkers: numWorkers,
		workQueue:  make(chan work, queueSize),
		ctx:        ctx,
		cancel:     cancel,
	}
	s.startWorkers()
	return s
}

func (s *Service) startWorkers() {
	for i := 0; i < s.numWorkers; i++ {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			for w := range s.workQueue {
				surface, err := s.probe(w.ref)
				if err != nil {
					s.logger.Debug("frame probe failed", "ref", w.ref, "error", err)
				}
				if w.result != nil {
					w.result <- Result{Ref: w.ref, Surface: surface, Err: err}
					close(w.result)
				}
			}
		}()
	}
}

func (s *Service) probe(ref string) (canvas.Surface, error) {
	if cached, ok := s.Cached(ref); ok {
		return cached, nil
	}
	data, err := s.fetch.FetchMedia(s.ctx, ref)
	if err != nil {
		return canvas.Surface{}, fmt.Errorf("failed to fetch frame: %w", err)
	}
	surface, err := Decode(data)
	if err != nil {
		return canvas.Surface{}, err
	}
	s.cache.Store(ref, surface)
	return surface, nil
}

// Cached returns the size of a frame that was already probed
func (s *Service) Cached(ref string) (canvas.Surface, bool) {
	v, ok := s.cache.Load(ref)
	if !ok {
		return canvas.Surface{}, false
	}
	surface, ok := v.(canvas.Surface)
	return surface, ok
}

// Probe requests the size of a frame asynchronously. The channel receives
// exactly one Result.
func (s *Service) Probe(ref string) <-chan Result {
	resultChan := make(chan Result, 1)
	if surface, ok := s.Cached(ref); ok {
		resultChan <- Result{Ref: ref, Surface: surface}
		close(resultChan)
		return resultChan
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		resultChan <- Result{Ref: ref, Err: context.Canceled}
		close(resultChan)
		return resultChan
	}
	select {
	case s.workQueue <- work{ref: ref, result: resultChan}:
	default:
		resultChan <- Result{Ref: ref, Err: ErrQueueFull}
		close(resultChan)
	}
	return resultChan
}

// Prefetch queues frames that are likely to be shown next. Frames already
// cached are skipped, and nothing is queued once the queue is full.
func (s *Service) Prefetch(refs []string) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return
	}
	for _, ref := range refs {
		if _, ok := s.Cached(ref); ok {
			continue
		}
		select {
		case s.workQueue <- work{ref: ref}:
		default:
			return
		}
	}
}

// Decode reads the pixel size from the image header
func Decode(data []byte) (canvas.Surface, error) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return canvas.Surface{}, fmt.Errorf("failed to decode frame header: %w", err)
	}
	surface := canvas.Surface{Width: cfg.Width, Height: cfg.Height}
	if !surface.Valid() {
		return canvas.Surface{}, fmt.Errorf("frame %s has no pixels", format)
	}
	return surface, nil
}

// Close cancels outstanding fetches and waits for the workers to exit
func (s *Service) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	close(s.workQueue)
	s.mu.Unlock()
	s.cancel()
	s.wg.Wait()
}
