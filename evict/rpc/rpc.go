// Package rpc implements evict.ParallelTransport over HTTP: the Go-native
// analogue of the upstream-notification fan-out spec.md describes. A
// batch of evict.EjectRequest is JSON-encoded and POSTed to one of a
// configured set of endpoints, selected round-robin, with retries on
// transport failure.
package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync/atomic"
	"time"

	"github.com/Forensiq/indexedRingBuffer/evict"
	"github.com/Forensiq/indexedRingBuffer/internal/log"
)

// Batch is the wire format POSTed to an eject endpoint.
type Batch struct {
	Items []evict.EjectRequest `json:"items"`
}

// ClientConfig configures an HTTPParallelTransport.
type ClientConfig struct {
	// Endpoints are eject-handler URLs, e.g. "http://host:port/internal/eject".
	Endpoints []string
	// RetryCount is attempted per EjectBatch before giving up. Defaults to 1
	// (no retry) if zero.
	RetryCount int
	// TimeoutSecond bounds each individual HTTP round-trip.
	TimeoutSecond int64
}

// HTTPParallelTransport is an evict.ParallelTransport that fans batches
// out to a set of HTTP endpoints, chosen round-robin.
type HTTPParallelTransport struct {
	client     *http.Client
	endpoints  []*url.URL
	counter    uint32
	retryCount int
	log        log.Logger
}

// NewHTTPParallelTransport builds a transport from cfg. No connection is
// made until the first EjectBatch.
func NewHTTPParallelTransport(cfg ClientConfig) (*HTTPParallelTransport, error) {
	if len(cfg.Endpoints) == 0 {
		return nil, fmt.Errorf("evict/rpc: at least one endpoint is required")
	}
	parsed := make([]*url.URL, len(cfg.Endpoints))
	for i, e := range cfg.Endpoints {
		u, err := url.Parse(e)
		if err != nil {
			return nil, fmt.Errorf("evict/rpc: invalid endpoint %q: %w", e, err)
		}
		parsed[i] = u
	}

	timeout := time.Duration(cfg.TimeoutSecond) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	retryCount := cfg.RetryCount
	if retryCount <= 0 {
		retryCount = 1
	}

	return &HTTPParallelTransport{
		client: &http.Client{
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     timeout,
			},
			Timeout: timeout,
		},
		endpoints:  parsed,
		retryCount: retryCount,
		log:        log.Get("evict/rpc"),
	}, nil
}

var _ evict.ParallelTransport = (*HTTPParallelTransport)(nil)

// EjectBatch implements evict.ParallelTransport.
func (t *HTTPParallelTransport) EjectBatch(ctx context.Context, batch []evict.EjectRequest) error {
	body, err := json.Marshal(Batch{Items: batch})
	if err != nil {
		return err
	}

	idx := atomic.AddUint32(&t.counter, 1) % uint32(len(t.endpoints))
	target := t.endpoints[idx]

	var lastErr error
	for i := 0; i < t.retryCount; i++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, target.String(), bytes.NewReader(body))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := t.client.Do(req)
		if err != nil {
			lastErr = err
			continue
		}
		func() {
			defer resp.Body.Close()
			if resp.StatusCode != http.StatusOK {
				lastErr = fmt.Errorf("evict/rpc: endpoint %s returned %s", target, resp.Status)
				return
			}
			_, _ = io.Copy(io.Discard, resp.Body)
			lastErr = nil
		}()
		if lastErr == nil {
			return nil
		}
	}
	return lastErr
}

// Close releases idle connections held by the transport.
func (t *HTTPParallelTransport) Close() error {
	t.client.CloseIdleConnections()
	return nil
}
