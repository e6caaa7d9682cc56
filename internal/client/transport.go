// Package client provides the push transports the stream controller
// subscribes through: Server-Sent Events and WebSocket.
package client

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/tmaxmax/go-sse"
)

var (
	// ErrInvalidURL is returned by Open when the endpoint cannot be parsed.
	ErrInvalidURL = errors.New("client: invalid stream url")
	// ErrUnsupportedScheme is returned by Open for schemes no transport serves.
	ErrUnsupportedScheme = errors.New("client: unsupported stream scheme")
)

// Handlers receives the signals of one subscription. Callbacks run on
// transport goroutines; none is invoked after the subscription is closed.
type Handlers struct {
	OnOpen    func()
	OnMessage func(data string)
	// OnError reports a failure. terminal is false while the transport is
	// still retrying on its own and true once it has given up.
	OnError func(err error, terminal bool)
}

// Subscription is a live transport handle.
type Subscription interface {
	// Close tears the subscription down. It is safe to call more than once.
	Close() error
}

// Transport opens subscriptions. Open returns as soon as the attempt has
// been started; success or failure is reported through Handlers.
type Transport interface {
	Open(rawURL string, h Handlers) (Subscription, error)
}

// Options configures the transports built by New.
type Options struct {
	HTTPClient *http.Client
	// Retries bounds the SSE transport's own reconnect attempts before it
	// reports a terminal error. Zero disables internal retries.
	Retries      int
	RetryInitial time.Duration
	RetryMax     time.Duration
	Logger       *zerolog.Logger
}

// Auto picks a transport from the endpoint's scheme: http and https use SSE,
// ws and wss use WebSocket.
type Auto struct {
	SSE       Transport
	WebSocket Transport
}

// New builds an Auto transport from opts.
func New(opts Options) Auto {
	backoff := sse.Backoff{
		InitialInterval: opts.RetryInitial,
		MaxInterval:     opts.RetryMax,
		MaxRetries:      opts.Retries,
	}
	if opts.Retries <= 0 {
		backoff.MaxRetries = -1
	}
	return Auto{
		SSE:       &SSE{HTTPClient: opts.HTTPClient, Backoff: backoff, Logger: opts.Logger},
		WebSocket: &WebSocket{Logger: opts.Logger},
	}
}

// Open implements Transport.
func (a Auto) Open(rawURL string, h Handlers) (Subscription, error) {
	u, err := parseURL(rawURL)
	if err != nil {
		return nil, err
	}
	switch u.Scheme {
	case "http", "https":
		if a.SSE == nil {
			break
		}
		return a.SSE.Open(rawURL, h)
	case "ws", "wss":
		if a.WebSocket == nil {
			break
		}
		return a.WebSocket.Open(rawURL, h)
	}
	return nil, fmt.Errorf("%w: %q", ErrUnsupportedScheme, u.Scheme)
}

func parseURL(rawURL string, schemes ...string) (*url.URL, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("%w: %q has no host", ErrInvalidURL, rawURL)
	}
	if len(schemes) == 0 {
		return u, nil
	}
	for _, s := range schemes {
		if u.Scheme == s {
			return u, nil
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrUnsupportedScheme, u.Scheme)
}

// subscription is the shared Close/suppression bookkeeping for both transports.
type subscription struct {
	h      Handlers
	closed atomic.Bool
	once   sync.Once
	cancel func()
}

func (s *subscription) Close() error {
	s.once.Do(func() {
		s.closed.Store(true)
		s.cancel()
	})
	return nil
}

func (s *subscription) open() {
	if !s.closed.Load() && s.h.OnOpen != nil {
		s.h.OnOpen()
	}
}

func (s *subscription) message(data string) {
	if !s.closed.Load() && s.h.OnMessage != nil {
		s.h.OnMessage(data)
	}
}

func (s *subscription) fail(err error, terminal bool) {
	if !s.closed.Load() && s.h.OnError != nil {
		s.h.OnError(err, terminal)
	}
}
