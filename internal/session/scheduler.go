package session

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// Cancel stops scheduled work. Calling it more than once is harmless.
type Cancel func()

// Scheduler runs controller code on a single logical thread. Blocking work runs
// elsewhere and hands its result back through Post.
type Scheduler interface {
	// Post runs fn on the controller thread
	Post(fn func())
	// Go runs work on its own goroutine and posts the continuation it returns
	Go(work func() func())
	// After posts fn once d has elapsed unless cancelled first
	After(d time.Duration, fn func()) Cancel
	// Every posts fn every d until cancelled
	Every(d time.Duration, fn func()) Cancel
}

// NewScheduler builds a Scheduler on top of any function that delivers
// closures to the controller thread, such as a Bubble Tea program's Send.
func NewScheduler(post func(fn func())) Scheduler {
	return &postScheduler{post: post}
}

type postScheduler struct {
	post func(fn func())
}

func (s *postScheduler) Post(fn func()) {
	s.post(fn)
}

func (s *postScheduler) Go(work func() func()) {
	go func() {
		if next := work(); next != nil {
			s.post(next)
		}
	}()
}

func (s *postScheduler) After(d time.Duration, fn func()) Cancel {
	var cancelled atomic.Bool
	t := time.AfterFunc(d, func() {
		s.post(func() {
			// the timer may have fired before Cancel ran on the controller thread
			if !cancelled.Load() {
				fn()
			}
		})
	})
	return func() {
		cancelled.Store(true)
		t.Stop()
	}
}

func (s *postScheduler) Every(d time.Duration, fn func()) Cancel {
	var cancelled atomic.Bool
	stop := make(chan struct{})
	ticker := time.NewTicker(d)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				s.post(func() {
					if !cancelled.Load() {
						fn()
					}
				})
			}
		}
	}()
	var once sync.Once
	return func() {
		cancelled.Store(true)
		once.Do(func() { close(stop) })
	}
}

// Loop is a standalone controller thread for headless use
type Loop struct {
	Scheduler
	queue chan func()
	done  chan struct{}
	once  sync.Once
}

// NewLoop creates a loop whose queue holds up to buffer pending closures
func NewLoop(buffer int) *Loop {
	l := &Loop{
		queue: make(chan func(), buffer),
		done:  make(chan struct{}),
	}
	l.Scheduler = NewScheduler(l.enqueue)
	return l
}

func (l *Loop) enqueue(fn func()) {
	select {
	case l.queue <- fn:
	case <-l.done:
	}
}

// Run executes posted closures in order until ctx is done
func (l *Loop) Run(ctx context.Context) error {
	defer l.once.Do(func() { close(l.done) })
	for {
		select {
		case fn := <-l.queue:
			fn()
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
