package tui

import (
	"log/slog"
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/bdougie/cropcurator/internal/session"
)

// applyMsg carries controller work onto the Bubble Tea update loop, which is
// the controller's only thread
type applyMsg func()

// bridge delivers closures from worker goroutines and timers to the program
type bridge struct {
	mu      sync.Mutex
	program *tea.Program
	logger  *slog.Logger
}

func (b *bridge) attach(p *tea.Program) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.program = p
}

// post must never be called from inside Update: Send blocks until the loop
// reads the message
func (b *bridge) post(fn func()) {
	b.mu.Lock()
	p := b.program
	b.mu.Unlock()
	if p == nil {
		b.logger.Warn("dropping controller work posted before the program started")
		return
	}
	p.Send(applyMsg(fn))
}

func (b *bridge) scheduler() session.Scheduler {
	return session.NewScheduler(b.post)
}
