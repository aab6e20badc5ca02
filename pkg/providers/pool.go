// Package providers implements the HTTP Client Pool (Component B): pooled
// upstream connections, per-attempt deadlines, an optional global proxy, and
// unbuffered streaming response bodies.
package providers

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"
	"time"
)

// pooledClient wraps an *http.Client with the reference count needed to
// close it only after its last in-flight request completes, per spec.md §5
// ("HTTP Client Pool: internally thread-safe; swap-on-config-change uses
// reference counting so in-flight requests finish on the previous client").
type pooledClient struct {
	client   *http.Client
	inflight atomic.Int64
	retiring atomic.Bool
}

func (c *pooledClient) acquire() {
	c.inflight.Add(1)
}

func (c *pooledClient) release() {
	if c.inflight.Add(-1) == 0 && c.retiring.Load() {
		c.client.CloseIdleConnections()
	}
}

func (c *pooledClient) retire() {
	c.retiring.Store(true)
	if c.inflight.Load() == 0 {
		c.client.CloseIdleConnections()
	}
}

// PoolConfig is the subset of preferences the HTTP Client Pool is rebuilt
// from whenever the configuration snapshot changes.
type PoolConfig struct {
	ProxyURL            string
	MaxIdleConns        int
	MaxIdleConnsPerHost int
	IdleConnTimeout     time.Duration
}

// DefaultPoolConfig mirrors the teacher's HTTPProvider connection defaults.
func DefaultPoolConfig() PoolConfig {
	return PoolConfig{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
	}
}

// Pool is the HTTP Client Pool: a single pooled client rebuilt in place
// whenever the proxy setting changes, with the previous client kept alive
// for requests already in flight against it.
type Pool struct {
	mu      sync.Mutex
	current atomic.Pointer[pooledClient]
}

// NewPool builds a Pool from the given configuration.
func NewPool(cfg PoolConfig) (*Pool, error) {
	p := &Pool{}
	c, err := buildClient(cfg)
	if err != nil {
		return nil, err
	}
	p.current.Store(c)
	return p, nil
}

func buildClient(cfg PoolConfig) (*pooledClient, error) {
	transport := &http.Transport{
		MaxIdleConns:        cfg.MaxIdleConns,
		MaxIdleConnsPerHost: cfg.MaxIdleConnsPerHost,
		IdleConnTimeout:     cfg.IdleConnTimeout,
		ForceAttemptHTTP2:   true,
	}

	if cfg.ProxyURL != "" {
		proxyURL, err := url.Parse(cfg.ProxyURL)
		if err != nil {
			return nil, fmt.Errorf("invalid proxy URL %q: %w", cfg.ProxyURL, err)
		}
		transport.Proxy = http.ProxyURL(proxyURL)
	}

	return &pooledClient{
		client: &http.Client{Transport: transport},
	}, nil
}

// Rebuild replaces the pool's client with one built from cfg. The previous
// client is retired: it keeps serving its in-flight requests and is only
// closed once the last of them completes.
func (p *Pool) Rebuild(cfg PoolConfig) error {
	next, err := buildClient(cfg)
	if err != nil {
		return err
	}

	p.mu.Lock()
	old := p.current.Swap(next)
	p.mu.Unlock()

	if old != nil {
		old.retire()
	}
	return nil
}

// Response is the result of a single upstream attempt: the HTTP status,
// response headers, and a body reader the caller must close. Body is never
// fully buffered by the pool — callers stream it directly to the inbound
// writer.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       io.ReadCloser
}

// Send issues a single outbound request with no retry. deadline bounds the
// wait for the response head; once the head has arrived, Body stays readable
// until the caller closes it or ctx ends. There is no streaming switch: the
// pool always returns an incremental reader and the caller decides how to
// consume it.
func (p *Pool) Send(ctx context.Context, method, targetURL string, header http.Header, body io.Reader, deadline time.Duration) (*Response, error) {
	if deadline > 0 {
		var cancel context.CancelCauseFunc
		ctx, cancel = context.WithCancelCause(ctx)
		headTimer := time.AfterFunc(deadline, func() { cancel(context.DeadlineExceeded) })
		defer headTimer.Stop()
	}

	req, err := http.NewRequestWithContext(ctx, method, targetURL, body)
	if err != nil {
		return nil, fmt.Errorf("failed to build upstream request: %w", err)
	}
	req.Header = header

	pc := p.current.Load()
	pc.acquire()
	defer pc.release()

	resp, err := pc.client.Do(req)
	if err != nil {
		if context.Cause(ctx) == context.DeadlineExceeded {
			return nil, fmt.Errorf("%w: %v", context.DeadlineExceeded, err)
		}
		return nil, err
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       resp.Body,
	}, nil
}
