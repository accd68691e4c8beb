// Package sse implements the per-map event stream client: a
// long-lived HTTP GET against the remote topology API's SSE endpoint, with
// chunked-event parsing, validation, category-based routing onto the
// pubsub bus, and exponential-with-jitter reconnection that resumes from
// the last delivered event id.
package sse

import (
	"bufio"
	"context"
	"io"
	"math"
	"math/rand"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/wanderer-industries/topologyd/errors"
	"github.com/wanderer-industries/topologyd/logger"
	"github.com/wanderer-industries/topologyd/model"
	"github.com/wanderer-industries/topologyd/pubsub"
	"go.uber.org/zap"
)

// Config describes one map's stream subscription.
type Config struct {
	MapID         string
	MapURL        string
	APIKey        string
	EventTypes    []string // defaults to model.DefaultEventTypes
	LastEventID   string
	ConnectTimeout time.Duration // default 30s
}

const reconnectMaxDelay = 30 * time.Second

// Client is a single map's SSE connection, reconnecting forever until its
// context is cancelled.
type Client struct {
	cfg  Config
	http *http.Client
	bus  *pubsub.Bus
	log  *zap.SugaredLogger

	mu          sync.Mutex
	state       State
	lastEventID string
	attempts    int
	rand        func() float64
}

// New creates a Client. httpClient should come from
// httpclient.Client.RawClient() so SSRF protection still applies to the
// streaming connection even though no middleware wraps it.
func New(cfg Config, httpClient *http.Client, bus *pubsub.Bus) *Client {
	if cfg.ConnectTimeout == 0 {
		cfg.ConnectTimeout = 30 * time.Second
	}
	if len(cfg.EventTypes) == 0 {
		cfg.EventTypes = model.DefaultEventTypes
	}
	return &Client{
		cfg:         cfg,
		http:        httpClient,
		bus:         bus,
		log:         logger.ComponentLogger("sse").With("map_id", cfg.MapID),
		lastEventID: cfg.LastEventID,
		rand:        rand.Float64,
	}
}

// State returns the client's current connection state.
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Client) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

// Run connects and reconnects until ctx is cancelled, returning the
// context's error. A pending reconnect timer is always replaced, never
// stacked, by this single-goroutine loop.
func (c *Client) Run(ctx context.Context) error {
	for {
		c.setState(StateConnecting)
		err := c.connectOnce(ctx)
		if ctx.Err() != nil {
			c.setState(StateDisconnected)
			return ctx.Err()
		}

		c.mu.Lock()
		c.attempts++
		attempt := c.attempts
		c.mu.Unlock()

		c.setState(StateReconnecting)
		c.log.Warnw("sse stream disconnected, reconnecting", "attempt", attempt, "error", err)

		delay := c.backoff(attempt)
		select {
		case <-ctx.Done():
			c.setState(StateDisconnected)
			return ctx.Err()
		case <-time.After(delay):
		}
	}
}

// backoff computes min(30s, 1s*2^(attempts-1)) with ~40% jitter.
func (c *Client) backoff(attempt int) time.Duration {
	base := time.Duration(math.Pow(2, float64(attempt-1))) * time.Second
	if base > reconnectMaxDelay || base <= 0 {
		base = reconnectMaxDelay
	}
	jitter := (c.rand()*2 - 1) * 0.4 * float64(base)
	d := time.Duration(float64(base) + jitter)
	if d < 0 {
		d = 0
	}
	return d
}

func (c *Client) streamURL() (string, error) {
	u, err := url.Parse(c.cfg.MapURL)
	if err != nil {
		return "", errors.Wrap(err, "sse: invalid map url")
	}
	path := strings.Trim(u.Path, "/")
	streamURL := url.URL{
		Scheme: u.Scheme,
		Host:   u.Host,
		Path:   "/api/maps/" + path + "/events/stream",
	}
	q := url.Values{}
	q.Set("events", strings.Join(c.cfg.EventTypes, ","))

	c.mu.Lock()
	last := c.lastEventID
	c.mu.Unlock()
	if last != "" {
		q.Set("last_event_id", last)
	}
	streamURL.RawQuery = q.Encode()
	return streamURL.String(), nil
}

func (c *Client) connectOnce(ctx context.Context) error {
	streamURL, err := c.streamURL()
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, streamURL, nil)
	if err != nil {
		return errors.Wrap(err, "sse: building request")
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")
	req.Header.Set("Connection", "keep-alive")

	resp, err := c.doWithConnectTimeout(ctx, req)
	if err != nil {
		return errors.Wrap(err, "sse: connecting")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return errors.Newf("sse: unexpected status %d", resp.StatusCode)
	}

	c.setState(StateConnected)
	c.mu.Lock()
	c.attempts = 0
	c.mu.Unlock()
	c.log.Infow("sse stream connected")

	return c.readLoop(resp.Body)
}

// doWithConnectTimeout races the request against cfg.ConnectTimeout so a
// stalled TCP handshake doesn't block reconnection forever, without
// binding the (much longer) streaming read phase to that same deadline.
func (c *Client) doWithConnectTimeout(ctx context.Context, req *http.Request) (*http.Response, error) {
	type result struct {
		resp *http.Response
		err  error
	}
	done := make(chan result, 1)
	go func() {
		resp, err := c.http.Do(req)
		done <- result{resp, err}
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(c.cfg.ConnectTimeout):
		return nil, errors.New("sse: connect timeout")
	case r := <-done:
		return r.resp, r.err
	}
}

func (c *Client) readLoop(body io.Reader) error {
	reader := bufio.NewReader(body)
	var buf []byte

	for {
		line, err := reader.ReadBytes('\n')
		buf = append(buf, line...)
		if len(line) > 0 {
			if blocks, remainder := splitBlocks(buf); len(blocks) > 0 {
				buf = remainder
				for _, block := range blocks {
					c.handleBlock(block)
				}
			}
		}
		if err != nil {
			if err == io.EOF {
				return errors.New("sse: stream closed")
			}
			return errors.Wrap(err, "sse: reading stream")
		}
	}
}

func (c *Client) handleBlock(block []byte) {
	env, err := parseBlock(block)
	if err != nil {
		c.log.Debugw("discarding unparseable sse block", "error", err)
		return
	}
	if err := validate(env); err != nil {
		c.log.Warnw("discarding invalid sse event", "error", err, "type", env.Type)
		return
	}

	Route(c.bus, env, c.cfg.MapURL, c.log)

	c.mu.Lock()
	c.lastEventID = env.ID
	c.mu.Unlock()
}
