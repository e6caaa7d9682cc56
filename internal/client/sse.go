package client

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"github.com/tmaxmax/go-sse"
)

// SSE subscribes to a text/event-stream endpoint. Lower-level drops are
// retried by go-sse itself (reported as non-terminal errors); once its
// backoff gives up the error is terminal.
type SSE struct {
	HTTPClient *http.Client
	Backoff    sse.Backoff
	Logger     *zerolog.Logger
}

// Open implements Transport.
func (t *SSE) Open(rawURL string, h Handlers) (Subscription, error) {
	u, err := parseURL(rawURL, "http", "https")
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), http.NoBody)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	req.Header.Set("Cache-Control", "no-cache")

	sub := &subscription{h: h, cancel: cancel}

	httpClient := t.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	c := &sse.Client{
		HTTPClient: httpClient,
		Backoff:    t.Backoff,
		ResponseValidator: func(r *http.Response) error {
			if err := sse.DefaultValidator(r); err != nil {
				return err
			}
			sub.open()
			return nil
		},
		OnRetry: func(err error, next time.Duration) {
			if t.Logger != nil {
				t.Logger.Debug().Err(err).Dur("next", next).Str("url", u.String()).Msg("sse retrying")
			}
			sub.fail(err, false)
		},
	}

	conn := c.NewConnection(req)
	conn.SubscribeMessages(func(ev sse.Event) {
		sub.message(ev.Data)
	})

	go func() {
		err := conn.Connect()
		if err == nil {
			err = io.EOF
		}
		sub.fail(err, true)
	}()

	return sub, nil
}
