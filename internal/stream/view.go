package stream

import "github.com/feedwatch/feedwatch/internal/feed"

// View renders what the Controller reports. Calls are serialised and made
// outside the controller lock, but a View must neither block nor call back
// into the Controller synchronously.
type View interface {
	// UpdateStatus shows a human-readable status and whether the stream is live.
	UpdateStatus(label string, connected bool)
	AppendMessage(m feed.Message)
	UpdateCount(n int)
	// UpdateElapsed shows the session uptime as m:ss, or feed.Placeholder.
	UpdateElapsed(s string)
	// Clear removes every displayed message.
	Clear()
}

// NopView discards everything.
type NopView struct{}

func (NopView) UpdateStatus(string, bool)  {}
func (NopView) AppendMessage(feed.Message) {}
func (NopView) UpdateCount(int)            {}
func (NopView) UpdateElapsed(string)       {}
func (NopView) Clear()                     {}
