// Package feed subscribes to the registry's live event stream over
// socket.io. The registry emits one event per package publish and yank.
package feed

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"net/url"
	"sync/atomic"
	"time"

	"github.com/zishang520/engine.io-client-go/transports"
	"github.com/zishang520/engine.io/v2/types"
	"github.com/zishang520/socket.io-client-go/socket"

	"github.com/Tanteli/imx-starknet/internal/ctxlog"
)

// Event kinds carried by the feed.
const (
	KindPublished = "published"
	KindYanked    = "yanked"
)

// Registry event names on the packages namespace.
const (
	eventPublished = "package:published"
	eventYanked    = "package:yanked"
)

const (
	defaultNamespace      = "/packages"
	defaultConnectTimeout = 10 * time.Second
)

// Event is one registry notification.
type Event struct {
	Kind    string    `json:"kind"`
	Package string    `json:"package"`
	Version string    `json:"version"`
	At      time.Time `json:"at"`
}

// Options configure one feed subscription.
type Options struct {
	// URL is the registry base URL.
	URL string
	// Namespace overrides the socket.io namespace carrying package events.
	Namespace string
	// ConnectTimeout bounds the initial connection attempt.
	ConnectTimeout time.Duration
	// InsecureSkipVerify disables TLS certificate verification.
	InsecureSkipVerify bool
}

// Watch connects to the registry feed and streams events until ctx is
// canceled. The returned channel closes once the subscription ends. An
// error is returned only when the initial connection fails; transport
// errors after that are logged and the client reconnects on its own.
func Watch(ctx context.Context, opts Options) (<-chan Event, error) {
	namespace := opts.Namespace
	if namespace == "" {
		namespace = defaultNamespace
	}
	timeout := opts.ConnectTimeout
	if timeout <= 0 {
		timeout = defaultConnectTimeout
	}
	logger := ctxlog.FromContext(ctx).With("url", opts.URL, "namespace", namespace)

	parsedURL, err := url.Parse(opts.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse registry URL: %w", err)
	}

	baseURL := fmt.Sprintf("%s://%s", parsedURL.Scheme, parsedURL.Host)
	sockOpts := socket.DefaultOptions()
	if parsedURL.Path != "" {
		sockOpts.SetPath(parsedURL.Path)
	}
	if opts.InsecureSkipVerify {
		logger.Warn("Skipping TLS certificate verification")
		sockOpts.SetTLSClientConfig(&tls.Config{InsecureSkipVerify: true})
	}
	sockOpts.SetTransports(types.NewSet(transports.WebSocket))

	manager := socket.NewManager(baseURL, sockOpts)
	io := manager.Socket(namespace, sockOpts)

	var isConnected atomic.Bool
	ready := make(chan error, 1)
	raw := make(chan Event)

	io.On(types.EventName("connect"), func(...any) {
		isConnected.Store(true)
		logger.Info("Connected to registry feed.", "sid", io.Id())
		select {
		case ready <- nil:
		default:
		}
	})

	io.On(types.EventName("connect_error"), func(errs ...any) {
		err, ok := errs[0].(error)
		if !ok {
			err = fmt.Errorf("connect error: %v", errs[0])
		}
		if isConnected.Load() {
			logger.Warn("Registry feed connection error, reconnecting.", "error", err)
			return
		}
		select {
		case ready <- err:
		default:
		}
	})

	handle := func(kind string) func(...any) {
		return func(data ...any) {
			ev, err := decodeEvent(kind, data)
			if err != nil {
				logger.Warn("Discarding malformed feed event.", "kind", kind, "error", err)
				return
			}
			select {
			case raw <- ev:
			case <-ctx.Done():
			}
		}
	}
	io.On(types.EventName(eventPublished), handle(KindPublished))
	io.On(types.EventName(eventYanked), handle(KindYanked))

	io.Connect()

	connectCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	select {
	case <-connectCtx.Done():
		io.Disconnect()
		return nil, fmt.Errorf("timed out while waiting for initial connection")
	case err := <-ready:
		if err != nil {
			io.Disconnect()
			return nil, fmt.Errorf("failed to connect to registry feed: %w", err)
		}
	}

	events := make(chan Event, 16)
	go func() {
		defer close(events)
		defer func() {
			logger.Debug("Disconnecting from registry feed.")
			io.Disconnect()
		}()
		for {
			select {
			case <-ctx.Done():
				return
			case ev := <-raw:
				select {
				case events <- ev:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return events, nil
}

// decodeEvent converts a socket.io payload into a typed Event.
func decodeEvent(kind string, data []any) (Event, error) {
	ev := Event{Kind: kind, At: time.Now().UTC()}
	if len(data) == 0 {
		return ev, fmt.Errorf("event carries no payload")
	}
	payloadJSON, err := json.Marshal(data[0])
	if err != nil {
		return ev, fmt.Errorf("failed to re-encode payload: %w", err)
	}
	var payload struct {
		Package string    `json:"package"`
		Version string    `json:"version"`
		At      time.Time `json:"at"`
	}
	if err := json.Unmarshal(payloadJSON, &payload); err != nil {
		return ev, fmt.Errorf("failed to decode payload: %w", err)
	}
	if payload.Package == "" {
		return ev, fmt.Errorf("event names no package")
	}
	ev.Package = payload.Package
	ev.Version = payload.Version
	if !payload.At.IsZero() {
		ev.At = payload.At
	}
	return ev, nil
}
