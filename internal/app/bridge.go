package app

import (
	"context"
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/feedwatch/feedwatch/internal/feed"
)

// View events queued by the Bridge and applied in Update.
type (
	StatusMsg struct {
		Label     string
		Connected bool
	}
	MessageMsg struct{ Message feed.Message }
	CountMsg   struct{ Count int }
	ElapsedMsg struct{ Elapsed string }
	ClearMsg   struct{}

	// BatchMsg carries every event queued since the previous drain, oldest
	// first.
	BatchMsg []tea.Msg
)

// Bridge implements stream.View for the Bubble Tea program. Calls never
// block: events are queued and handed to Update by the Wait command.
type Bridge struct {
	mu     sync.Mutex
	queue  []tea.Msg
	signal chan struct{}
}

// NewBridge creates an empty bridge.
func NewBridge() *Bridge {
	return &Bridge{signal: make(chan struct{}, 1)}
}

func (b *Bridge) UpdateStatus(label string, connected bool) {
	b.push(StatusMsg{Label: label, Connected: connected})
}

func (b *Bridge) AppendMessage(m feed.Message) {
	b.push(MessageMsg{Message: m})
}

func (b *Bridge) UpdateCount(n int) {
	b.push(CountMsg{Count: n})
}

func (b *Bridge) UpdateElapsed(s string) {
	b.push(ElapsedMsg{Elapsed: s})
}

func (b *Bridge) Clear() {
	b.push(ClearMsg{})
}

func (b *Bridge) push(msg tea.Msg) {
	b.mu.Lock()
	b.queue = append(b.queue, msg)
	b.mu.Unlock()
	select {
	case b.signal <- struct{}{}:
	default:
	}
}

// Drain returns and empties the queue.
func (b *Bridge) Drain() []tea.Msg {
	b.mu.Lock()
	defer b.mu.Unlock()
	q := b.queue
	b.queue = nil
	return q
}

// Wait returns a command that blocks until events are queued and delivers
// them as one BatchMsg. Update re-issues it after each batch.
func (b *Bridge) Wait(ctx context.Context) tea.Cmd {
	return func() tea.Msg {
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-b.signal:
			}
			if q := b.Drain(); len(q) > 0 {
				return BatchMsg(q)
			}
		}
	}
}
