package gateway

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/searchlens-ai/query-assistant/internal/events"
	"github.com/searchlens-ai/query-assistant/pkg/logger"
	"github.com/searchlens-ai/query-assistant/pkg/metrics"
	"github.com/searchlens-ai/query-assistant/pkg/tracing"
)

// NDJSONContentType is the media type for streamed chat responses.
const NDJSONContentType = "application/x-ndjson"

// routeHintHeader is set by the upstream and copied back to the caller.
const routeHintHeader = "X-Http-Route"

// Proxy forwards requests to the upstream backend and streams response
// bodies back without buffering.
type Proxy struct {
	backendURL string
	policy     *TimeoutPolicy
	clients    map[Tier]*http.Client
	publisher  *events.Publisher
	logger     *logger.Logger
}

// NewProxy creates a proxy bound to the upstream origin. publisher may
// be nil when the event bus is not configured.
func NewProxy(backendURL string, policy *TimeoutPolicy, publisher *events.Publisher, log *logger.Logger) *Proxy {
	clients := make(map[Tier]*http.Client, 3)
	for _, tier := range []Tier{TierHealth, TierDefault, TierChat} {
		clients[tier] = &http.Client{
			Transport: &http.Transport{
				DialContext: (&net.Dialer{
					Timeout: policy.Connect(),
				}).DialContext,
				MaxIdleConns:        64,
				IdleConnTimeout:     90 * time.Second,
				TLSHandshakeTimeout: policy.Connect(),
				// Streaming responses must reach the caller as they
				// arrive, not once the transport buffer fills.
				ResponseHeaderTimeout: policy.Total(tier),
			},
		}
	}
	return &Proxy{
		backendURL: strings.TrimRight(backendURL, "/"),
		policy:     policy,
		clients:    clients,
		publisher:  publisher,
		logger:     log,
	}
}

// ServeHTTP forwards the request to the upstream with the route's tier
// budget and streams the body back chunk-by-chunk.
func (p *Proxy) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	tier := p.policy.TierFor(r.URL.Path)
	start := time.Now()

	upstreamCtx, cancel := context.WithTimeout(r.Context(), p.policy.Total(tier))
	defer cancel()

	req, err := http.NewRequestWithContext(upstreamCtx, r.Method, p.backendURL+r.URL.RequestURI(), r.Body)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "proxy_error", "failed to build upstream request")
		return
	}
	copyInboundHeaders(req, r)

	resp, err := p.clients[tier].Do(req)
	if err != nil {
		p.handleTransportError(w, r, tier, upstreamCtx, err)
		return
	}
	defer resp.Body.Close()

	copyOutboundHeaders(w, resp, tier)
	w.WriteHeader(resp.StatusCode)

	if tier == TierChat {
		metrics.IncrementStreamConnections()
		defer metrics.DecrementStreamConnections()
	}

	written, streamErr := p.stream(w, resp.Body)

	status := "success"
	if streamErr != nil {
		status = "interrupted"
		if r.Context().Err() != nil {
			// Client went away; the deferred Close releases the
			// upstream connection instead of draining it.
			status = "client_disconnect"
		}
		p.logger.Warn("upstream stream ended early",
			zap.String("path", r.URL.Path),
			zap.String("tier", string(tier)),
			zap.Error(streamErr),
		)
	}

	duration := time.Since(start)
	metrics.RecordUpstreamStream(string(tier), status, duration.Seconds(), written)
	if tier == TierChat {
		p.publisher.ChatRequest(r.Context(), events.ChatEvent{
			Route:      r.URL.Path,
			Status:     status,
			HTTPStatus: resp.StatusCode,
			Bytes:      written,
			DurationMs: duration.Milliseconds(),
		})
	}
}

// stream copies the upstream body to the caller, flushing after every
// chunk. The next read happens only after the previous chunk has been
// written, which bounds memory for slow clients.
func (p *Proxy) stream(w http.ResponseWriter, body io.Reader) (int64, error) {
	flusher, _ := w.(http.Flusher)
	buf := make([]byte, 32*1024)
	var written int64

	for {
		n, readErr := body.Read(buf)
		if n > 0 {
			wn, writeErr := w.Write(buf[:n])
			written += int64(wn)
			if writeErr != nil {
				return written, writeErr
			}
			if flusher != nil {
				flusher.Flush()
			}
		}
		if readErr != nil {
			if errors.Is(readErr, io.EOF) {
				return written, nil
			}
			return written, readErr
		}
	}
}

func (p *Proxy) handleTransportError(w http.ResponseWriter, r *http.Request, tier Tier, upstreamCtx context.Context, err error) {
	// Caller cancelled; nothing useful to write.
	if r.Context().Err() != nil {
		return
	}

	if errors.Is(upstreamCtx.Err(), context.DeadlineExceeded) || isTimeout(err) {
		metrics.UpstreamErrors.WithLabelValues(string(tier), "timeout").Inc()
		p.logger.Error("upstream request timed out",
			zap.String("path", r.URL.Path),
			zap.String("tier", string(tier)),
			zap.Duration("budget", p.policy.Total(tier)),
		)
		writeError(w, http.StatusGatewayTimeout, "gateway_timeout", "upstream did not respond within the allowed time")
		return
	}

	metrics.UpstreamErrors.WithLabelValues(string(tier), "connect").Inc()
	p.logger.Error("upstream request failed",
		zap.String("path", r.URL.Path),
		zap.String("tier", string(tier)),
		zap.Error(err),
	)
	writeError(w, http.StatusBadGateway, "bad_gateway", "upstream service is unreachable")
}

func isTimeout(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// copyInboundHeaders copies the trace context allow-list plus body
// negotiation headers onto the upstream request.
func copyInboundHeaders(upstream *http.Request, r *http.Request) {
	for _, h := range tracing.TraceHeaders {
		if v := r.Header.Get(h); v != "" {
			upstream.Header.Set(h, v)
		}
	}
	for _, h := range []string{"Content-Type", "Accept", "Accept-Encoding"} {
		if v := r.Header.Get(h); v != "" {
			upstream.Header.Set(h, v)
		}
	}
}

// copyOutboundHeaders fixes the response headers for the caller. Chat
// responses are always NDJSON with caching and intermediary buffering
// disabled; everything else keeps the upstream's own content type, so
// JSON error bodies pass through unchanged.
func copyOutboundHeaders(w http.ResponseWriter, resp *http.Response, tier Tier) {
	if route := resp.Header.Get(routeHintHeader); route != "" {
		w.Header().Set(routeHintHeader, route)
	}

	if tier == TierChat && resp.StatusCode == http.StatusOK {
		w.Header().Set("Content-Type", NDJSONContentType)
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("X-Accel-Buffering", "no")
		return
	}

	if ct := resp.Header.Get("Content-Type"); ct != "" {
		w.Header().Set("Content-Type", ct)
	}
}
