// Package mock produces the random demo messages served by feedwatch serve.
package mock

import (
	"context"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/feedwatch/feedwatch/internal/feed"
)

var phrases = []string{
	"The quick brown fox jumps over the lazy dog",
	"Go makes concurrent servers pleasant to write",
	"Server-Sent Events enable real-time communication",
	"Streaming data in real-time is powerful",
	"HTTP streaming opens up many possibilities",
	"Random messages can be quite entertaining",
	"This message was generated randomly",
	"Welcome to the random message stream!",
	"Did you know octopuses have three hearts?",
	"The mitochondria is the powerhouse of the cell",
	"Coffee is the fuel of programmers",
	"Code never lies, comments sometimes do",
	"There are only 10 types of people in the world: those who understand binary and those who don't",
}

var emoji = []string{
	"😀", "😃", "😄", "😁", "😆", "😅", "😂", "🤣", "😊", "😇",
	"🙂", "🙃", "😉", "😌", "😍", "🥰", "😘", "😋", "😛", "😜",
	"🤪", "🤨", "🧐", "🤓", "😎", "🤩", "🥳", "😏", "😒", "😞",
	"😔", "😟", "😕", "🙁", "😣", "😖", "😫", "😩", "🥺", "😢",
	"😭", "😤", "😠", "😡", "🤯", "😳", "🥵", "🥶", "😱", "😨",
	"🤗", "🤔", "🤭", "🤫", "😶", "😐", "😑", "😬", "🙄", "😯",
	"🚀", "🌟", "⭐", "🔥", "💯", "✨", "🎉", "🎊", "🎈", "🎁",
	"🏆", "🥇", "🥈", "🥉", "🏅", "🎪", "🎭", "🎨", "🎬", "🎤",
	"🎧", "🎼", "🎵", "🎶", "🎹",
}

// Sink receives generated messages.
type Sink interface {
	Publish(msg feed.Message)
}

// Option customises a Generator.
type Option func(*Generator)

// WithClock replaces the wall clock, mainly for tests.
func WithClock(clk clock.Clock) Option {
	return func(g *Generator) { g.clock = clk }
}

// WithRand replaces the random source so output is reproducible.
func WithRand(rng *rand.Rand) Option {
	return func(g *Generator) { g.rng = rng }
}

// Generator publishes one random message, waits a random interval in
// [min, max], and repeats until its context ends.
type Generator struct {
	sink     Sink
	min, max time.Duration
	clock    clock.Clock

	mu  sync.Mutex
	rng *rand.Rand
}

// NewGenerator creates a generator publishing to sink.
func NewGenerator(sink Sink, min, max time.Duration, opts ...Option) *Generator {
	if max < min {
		min, max = max, min
	}
	g := &Generator{
		sink:  sink,
		min:   min,
		max:   max,
		clock: clock.New(),
		rng:   rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Start launches the publishing loop in the background.
func (g *Generator) Start(ctx context.Context) {
	go g.run(ctx)
}

func (g *Generator) run(ctx context.Context) {
	for {
		g.sink.Publish(g.Next())

		t := g.clock.Timer(g.Interval())
		select {
		case <-ctx.Done():
			t.Stop()
			return
		case <-t.C:
		}
	}
}

// Next builds a message: a phrase with one to three emoji inserted at
// random word positions, prefixed with the dd/mm/yy date.
func (g *Generator) Next() feed.Message {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.clock.Now()
	words := strings.Fields(phrases[g.rng.Intn(len(phrases))])
	for n := 1 + g.rng.Intn(3); n > 0; n-- {
		e := emoji[g.rng.Intn(len(emoji))]
		pos := g.rng.Intn(len(words) + 1)
		words = append(words[:pos], append([]string{e}, words[pos:]...)...)
	}

	return feed.Message{
		ID:        1000 + g.rng.Intn(9000),
		Timestamp: now.UTC().Format(time.RFC3339),
		Message:   now.Format("02/01/06") + " " + strings.Join(words, " "),
	}
}

// Interval returns a uniformly random wait in [min, max].
func (g *Generator) Interval() time.Duration {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.max == g.min {
		return g.min
	}
	return g.min + time.Duration(g.rng.Int63n(int64(g.max-g.min)+1))
}
