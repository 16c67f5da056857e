package gateway

import (
	"bufio"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/searchlens-ai/query-assistant/pkg/logger"
)

func testPolicy() *TimeoutPolicy {
	return NewTimeoutPolicy(time.Second, 2*time.Second, 5*time.Second, 10*time.Second)
}

func newTestProxy(t *testing.T, backendURL string, policy *TimeoutPolicy) *httptest.Server {
	t.Helper()
	proxy := NewProxy(backendURL, policy, nil, logger.Nop())
	server := httptest.NewServer(proxy)
	t.Cleanup(server.Close)
	return server
}

func TestProxyStreamsChatResponse(t *testing.T) {
	var gotTrace http.Header
	release := make(chan struct{})

	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotTrace = r.Header.Clone()
		w.Header().Set("X-Http-Route", "/api/chat")
		w.WriteHeader(http.StatusOK)

		flusher := w.(http.Flusher)
		io.WriteString(w, `{"type":"content","delta":"Hello"}`+"\n")
		flusher.Flush()
		<-release
		io.WriteString(w, `{"type":"done"}`+"\n")
		flusher.Flush()
	}))
	defer upstream.Close()

	gw := newTestProxy(t, upstream.URL, testPolicy())

	req, err := http.NewRequest(http.MethodPost, gw.URL+"/api/chat", strings.NewReader(`{"stream":true}`))
	require.NoError(t, err)
	req.Header.Set("Traceparent", "00-0af7651916cd43dd8448eb211c80319c-b7ad6b7169203331-01")
	req.Header.Set("Tracestate", "vendor=opaque")
	req.Header.Set("Baggage", "tenant=acme")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, NDJSONContentType, resp.Header.Get("Content-Type"))
	assert.Equal(t, "no-cache", resp.Header.Get("Cache-Control"))
	assert.Equal(t, "no", resp.Header.Get("X-Accel-Buffering"))
	assert.Equal(t, "/api/chat", resp.Header.Get("X-Http-Route"))
	assert.Equal(t, "00-0af7651916cd43dd8448eb211c80319c-b7ad6b7169203331-01", gotTrace.Get("Traceparent"))
	assert.Equal(t, "vendor=opaque", gotTrace.Get("Tracestate"))
	assert.Equal(t, "tenant=acme", gotTrace.Get("Baggage"))

	// The first line must arrive before the upstream finishes writing,
	// proving the body is forwarded without buffering.
	reader := bufio.NewReader(resp.Body)
	line, err := reader.ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, `{"type":"content","delta":"Hello"}`, strings.TrimSpace(line))

	close(release)

	line, err = reader.ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, `{"type":"done"}`, strings.TrimSpace(line))
}

func TestProxyForwardsUpstreamErrorBody(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		io.WriteString(w, `{"detail":"index_name is required"}`)
	}))
	defer upstream.Close()

	gw := newTestProxy(t, upstream.URL, testPolicy())

	resp, err := http.Post(gw.URL+"/api/chat", "application/json", strings.NewReader(`{}`))
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	assert.JSONEq(t, `{"detail":"index_name is required"}`, string(body))
}

func TestProxyTimeoutReturns504(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(2 * time.Second):
		case <-r.Context().Done():
		}
	}))
	defer upstream.Close()

	policy := NewTimeoutPolicy(time.Second, 50*time.Millisecond, 50*time.Millisecond, 50*time.Millisecond)
	gw := newTestProxy(t, upstream.URL, policy)

	resp, err := http.Post(gw.URL+"/api/chat", "application/json", strings.NewReader(`{}`))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusGatewayTimeout, resp.StatusCode)

	var frame errorBody
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&frame))
	assert.Equal(t, "gateway_timeout", frame.Error)
	assert.NotEmpty(t, frame.Message)
}

func TestProxyConnectFailureReturns502(t *testing.T) {
	// Nothing listens on this port.
	gw := newTestProxy(t, "http://127.0.0.1:1", testPolicy())

	resp, err := http.Post(gw.URL+"/api/query/execute", "application/json", strings.NewReader(`{}`))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)

	var frame errorBody
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&frame))
	assert.Equal(t, "bad_gateway", frame.Error)
	assert.NotContains(t, frame.Message, "127.0.0.1")
}

func TestProxyNonChatRouteKeepsUpstreamContentType(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"valid":true}`)
	}))
	defer upstream.Close()

	gw := newTestProxy(t, upstream.URL, testPolicy())

	resp, err := http.Post(gw.URL+"/api/query/validate", "application/json", strings.NewReader(`{}`))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
}
