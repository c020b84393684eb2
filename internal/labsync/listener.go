// Package labsync keeps client stores fresh without polling: it holds the
// socket.io push connection to the server, translating labsUpdate hints and
// notification events into callbacks. Reconnects use a fixed backoff and
// re-check the authentication state before every attempt, so an expired
// login never produces an unauthenticated retry storm.
package labsync

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"github.com/insrapperswil/antimony/internal/ctxlog"
	"github.com/insrapperswil/antimony/internal/model"
	"github.com/zishang520/engine.io-client-go/transports"
	"github.com/zishang520/engine.io/v2/types"
	"github.com/zishang520/socket.io-client-go/socket"
)

// Event names emitted by the server's push channel.
const (
	eventLabsUpdate   = "labsUpdate"
	eventNotification = "notification"
)

// Config wires the listener's capabilities.
type Config struct {
	// URL of the server, e.g. "http://localhost:3000".
	URL string
	// Token returns the current bearer token, "" when logged out.
	Token func() string
	// Backoff is the fixed reconnect delay. Defaults to 5s.
	Backoff time.Duration
	// OnLabsUpdate is invoked on every labsUpdate hint; stores re-fetch.
	OnLabsUpdate func()
	// OnNotification receives pushed notifications.
	OnNotification func(model.Notification)
}

// Listener is the client's push channel endpoint.
type Listener struct {
	cfg Config
}

// New creates a listener; Run drives it.
func New(cfg Config) *Listener {
	if cfg.Backoff <= 0 {
		cfg.Backoff = 5 * time.Second
	}
	return &Listener{cfg: cfg}
}

// Run connects and reconnects until the context ends. Each cycle re-reads
// the token: without one it just waits out the backoff instead of dialing.
func (l *Listener) Run(ctx context.Context) error {
	logger := ctxlog.FromContext(ctx).With("component", "labsync")
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		token := l.cfg.Token()
		if token == "" {
			logger.Debug("Not authenticated, push channel idle.")
			if err := sleep(ctx, l.cfg.Backoff); err != nil {
				return err
			}
			continue
		}
		if err := l.connectOnce(ctx, token); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			logger.Warn("Push connection lost, retrying.", "error", err, "backoff", l.cfg.Backoff)
		}
		if err := sleep(ctx, l.cfg.Backoff); err != nil {
			return err
		}
	}
}

// connectOnce holds one live connection until it drops or the context ends.
func (l *Listener) connectOnce(ctx context.Context, token string) error {
	logger := ctxlog.FromContext(ctx).With("component", "labsync")

	parsedURL, err := url.Parse(l.cfg.URL)
	if err != nil {
		return fmt.Errorf("failed to parse URL: %w", err)
	}
	baseURL := fmt.Sprintf("%s://%s", parsedURL.Scheme, parsedURL.Host)

	opts := socket.DefaultOptions()
	opts.SetTransports(types.NewSet(transports.WebSocket))
	opts.SetAuth(map[string]any{"token": token})

	manager := socket.NewManager(baseURL, opts)
	io := manager.Socket("/", opts)
	defer func() {
		logger.Debug("Disconnecting push client.")
		io.Disconnect()
	}()

	dropped := make(chan error, 1)

	io.On(types.EventName("connect"), func(...any) {
		logger.Info("Push channel connected.", "sid", io.Id())
	})
	io.On(types.EventName("connect_error"), func(errs ...any) {
		if len(errs) > 0 {
			if err, ok := errs[0].(error); ok {
				dropped <- err
				return
			}
		}
		dropped <- fmt.Errorf("connect error")
	})
	io.On(types.EventName("disconnect"), func(...any) {
		dropped <- fmt.Errorf("server closed the connection")
	})
	io.On(types.EventName(eventLabsUpdate), func(...any) {
		logger.Debug("labsUpdate hint received.")
		if l.cfg.OnLabsUpdate != nil {
			l.cfg.OnLabsUpdate()
		}
	})
	io.On(types.EventName(eventNotification), func(data ...any) {
		n, err := decodeNotification(data)
		if err != nil {
			logger.Warn("Dropping undecodable notification.", "error", err)
			return
		}
		if l.cfg.OnNotification != nil {
			l.cfg.OnNotification(n)
		}
	})

	io.Connect()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-dropped:
		return err
	}
}

// decodeNotification coerces the event payload into the typed shape,
// rejecting unknown forms at the boundary.
func decodeNotification(data []any) (model.Notification, error) {
	var n model.Notification
	if len(data) == 0 {
		return n, fmt.Errorf("empty payload")
	}
	raw, err := json.Marshal(data[0])
	if err != nil {
		return n, err
	}
	if err := json.Unmarshal(raw, &n); err != nil {
		return n, err
	}
	return n, nil
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
