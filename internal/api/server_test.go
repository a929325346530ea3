package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"evalgo.org/playground/internal/auth"
	"evalgo.org/playground/internal/config"
	"evalgo.org/playground/internal/connector"
	"evalgo.org/playground/internal/connector/connectortest"
	"evalgo.org/playground/internal/event"
	"evalgo.org/playground/internal/playground"
	"evalgo.org/playground/internal/publish"
	"evalgo.org/playground/internal/validation"
)

func newTestServer(t *testing.T, mutate func(*config.Config)) (*Server, *connectortest.Connector, *publish.Publisher) {
	t.Helper()

	cfg := config.Defaults()
	cfg.Security.RateLimit = 0
	if mutate != nil {
		mutate(cfg)
	}

	types, err := playground.LoadServiceTypes("")
	require.NoError(t, err)

	conn := &connectortest.Connector{}
	pub := publish.New(publish.Options{}, zap.NewNop())
	pg := playground.New(playground.Options{
		EnvoyImage:   cfg.Playground.EnvoyImage,
		Bounds:       cfg.Playground.Bounds(),
		ServiceTypes: types,
	}, conn, pub, zap.NewNop())

	return New(cfg, pg, conn, pub, zap.NewNop()), conn, pub
}

func do(srv *Server, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func TestHealthCheck(t *testing.T) {
	srv, conn, _ := newTestServer(t, nil)
	conn.On("Ping", mock.Anything).Return(nil).Once()
	conn.On("Ping", mock.Anything).Return(errors.New("socket missing")).Once()

	rec := do(srv, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"healthy"`)

	rec = do(srv, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "socket missing")
}

func TestGetMetadata(t *testing.T) {
	srv, _, _ := newTestServer(t, nil)

	rec := do(srv, http.MethodGet, "/metadata", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var meta playground.Metadata
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &meta))
	assert.Equal(t, 5, meta.MaxNetworkConnections)
	assert.Equal(t, 32, meta.MaxNameLength)
	assert.Equal(t, 20000, meta.MaxConfigLength)
}

func TestNetworkAdd(t *testing.T) {
	srv, conn, _ := newTestServer(t, nil)
	conn.On("CreateNetwork", mock.Anything, mock.MatchedBy(func(spec connector.NetworkSpec) bool {
		return spec.Name == "net0"
	})).Return("abcdef0123456789", nil).Once()

	rec := do(srv, http.MethodPost, "/network/add", `{"name":"net0"}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"message":"OK"}`, rec.Body.String())
	conn.AssertNumberOfCalls(t, "CreateNetwork", 1)
}

func TestNetworkAdd_Invalid(t *testing.T) {
	srv, conn, _ := newTestServer(t, nil)

	rec := do(srv, http.MethodPost, "/network/add", `{"name":"n"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var body APIError
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Contains(t, body.FieldError, "name")

	rec = do(srv, http.MethodPost, "/network/add", `{"name":"net0","color":"red"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	conn.AssertNotCalled(t, "CreateNetwork", mock.Anything, mock.Anything)
}

func TestNetworkAdd_ConnectorFailure(t *testing.T) {
	srv, conn, _ := newTestServer(t, nil)
	conn.On("CreateNetwork", mock.Anything, mock.Anything).
		Return("", &connector.ConnectorError{Op: "create_network", Err: errors.New("daemon down")})

	rec := do(srv, http.MethodPost, "/network/add", `{"name":"net0"}`)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestNetworkAdd_WrongContentType(t *testing.T) {
	srv, _, _ := newTestServer(t, nil)

	req := httptest.NewRequest(http.MethodPost, "/network/add", strings.NewReader(`{"name":"net0"}`))
	req.Header.Set("Content-Type", "text/plain")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDumpResources(t *testing.T) {
	srv, conn, _ := newTestServer(t, nil)
	conn.On("ListResources", mock.Anything).Return(connector.Snapshot{
		"networks": map[string]interface{}{},
		"proxies":  map[string]interface{}{},
		"services": map[string]interface{}{},
	}, nil)

	rec := do(srv, http.MethodGet, "/resources", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Contains(t, body, "meta")
	assert.Contains(t, body, "service_types")
	assert.Contains(t, body, "networks")
}

func TestClear(t *testing.T) {
	srv, conn, _ := newTestServer(t, nil)
	conn.On("ListContainers", mock.Anything).Return([]connector.ContainerDescriptor{}, nil)
	conn.On("ListNetworks", mock.Anything).Return([]connector.NetworkDescriptor{}, nil)

	rec := do(srv, http.MethodPost, "/clear", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"message":"OK"}`, rec.Body.String())
}

func TestMutatingRoutesRequireAuth(t *testing.T) {
	srv, conn, _ := newTestServer(t, func(c *config.Config) {
		c.Security.AuthEnabled = true
		c.Security.JWTSecret = "test-secret"
	})

	for _, path := range []string{"/network/add", "/network/edit", "/proxy/add", "/service/delete", "/clear"} {
		rec := do(srv, http.MethodPost, path, `{}`)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, path)
	}

	token, err := auth.NewJWTService(srv.config).GenerateToken("ci")
	require.NoError(t, err)
	conn.On("CreateNetwork", mock.Anything, mock.Anything).Return("abcdef0123456789", nil).Once()

	req := httptest.NewRequest(http.MethodPost, "/network/add", strings.NewReader(`{"name":"net0"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, http.StatusOK, do(srv, http.MethodGet, "/metadata", "").Code)
}

func TestMetricsEndpoint(t *testing.T) {
	srv, _, _ := newTestServer(t, nil)

	rec := do(srv, http.MethodGet, "/metrics", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "playground_sessions")
}

func TestWebSocketStats(t *testing.T) {
	srv, _, pub := newTestServer(t, nil)
	pub.Subscribe("a")
	pub.Subscribe("b")

	rec := do(srv, http.MethodGet, "/ws/stats", "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"connected_clients":2,"status":"operational"}`, rec.Body.String())
}

func dial(t *testing.T, srv *Server) *websocket.Conn {
	t.Helper()
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ws.Close() })
	return ws
}

func readMessage(t *testing.T, ws *websocket.Conn) publish.Message {
	t.Helper()
	require.NoError(t, ws.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, frame, err := ws.ReadMessage()
	require.NoError(t, err)

	var msg publish.Message
	require.NoError(t, json.Unmarshal(frame, &msg))
	return msg
}

func TestWebSocket_ReceivesPublishedPayloads(t *testing.T) {
	srv, _, pub := newTestServer(t, nil)
	ws := dial(t, srv)
	require.Eventually(t, func() bool { return pub.Count() == 1 }, time.Second, 10*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	require.NoError(t, pub.Publish(ctx, event.KindImage, event.Payload{"status": "pulling"}))

	msg := readMessage(t, ws)
	assert.Equal(t, event.KindImage, msg.Kind)
	assert.Equal(t, "pulling", msg.Data["status"])
}

func TestWebSocket_DispatchesFrames(t *testing.T) {
	srv, conn, pub := newTestServer(t, nil)
	conn.On("RemoveNetwork", mock.Anything, "abcdef0123456789").Return(nil).Once()

	ws := dial(t, srv)
	require.Eventually(t, func() bool { return pub.Count() == 1 }, time.Second, 10*time.Millisecond)

	require.NoError(t, ws.WriteMessage(websocket.TextMessage,
		[]byte(`{"kind":"network","action":"destroy","id":"abcdef0123456789"}`)))

	msg := readMessage(t, ws)
	assert.Equal(t, event.KindNetwork, msg.Kind)
	assert.Equal(t, "abcdef0123", msg.Data["id"])
	conn.AssertExpectations(t)
}

func TestWebSocket_RepliesToUnroutableFrames(t *testing.T) {
	srv, _, pub := newTestServer(t, nil)
	ws := dial(t, srv)
	require.Eventually(t, func() bool { return pub.Count() == 1 }, time.Second, 10*time.Millisecond)

	require.NoError(t, ws.WriteMessage(websocket.TextMessage, []byte(`{"kind":"volume","action":"create"}`)))
	msg := readMessage(t, ws)
	assert.Equal(t, event.KindErrors, msg.Kind)
	assert.Contains(t, msg.Data["message"], "volume")

	require.NoError(t, ws.WriteMessage(websocket.TextMessage, []byte(`not json`)))
	msg = readMessage(t, ws)
	assert.Equal(t, event.KindErrors, msg.Kind)
}

func TestWebSocket_DisconnectUnsubscribes(t *testing.T) {
	srv, _, pub := newTestServer(t, nil)
	ws := dial(t, srv)
	require.Eventually(t, func() bool { return pub.Count() == 1 }, time.Second, 10*time.Millisecond)

	require.NoError(t, ws.Close())

	assert.Eventually(t, func() bool { return pub.Count() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestCheckOrigin(t *testing.T) {
	srv, _, _ := newTestServer(t, func(c *config.Config) {
		c.Security.AllowedOrigins = []string{"https://playground.example"}
	})

	tests := []struct {
		origin string
		want   bool
	}{
		{"", true},
		{"https://playground.example", true},
		{"https://evil.example", false},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, "/ws", nil)
		if tt.origin != "" {
			req.Header.Set("Origin", tt.origin)
		}
		assert.Equal(t, tt.want, srv.checkOrigin(req), tt.origin)
	}
}

func TestSwaggerDoc(t *testing.T) {
	srv, _, _ := newTestServer(t, nil)

	rec := do(srv, http.MethodGet, "/docs/doc.json", "")

	require.Equal(t, http.StatusOK, rec.Code)
	var doc map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &doc))
	assert.Contains(t, doc["paths"], "/network/add")
	assert.Contains(t, doc["paths"], "/proxy/add")
}

func TestDocumentedBodiesAreAccepted(t *testing.T) {
	srv, conn, _ := newTestServer(t, nil)
	conn.On("CreateNetwork", mock.Anything, mock.Anything).Return("abcdef0123456789", nil)
	conn.On("CreateContainer", mock.Anything, mock.Anything).Return("0123456789abcdef", nil)
	conn.On("RemoveContainer", mock.Anything, "0123456789abcdef").Return(nil)

	tests := []struct {
		path string
		body interface{}
	}{
		{"/network/add", validation.NetworkAddCommand{Name: "net0"}},
		{"/proxy/add", validation.ProxyAddCommand{
			Name:          "edge",
			Configuration: "static_resources: {}",
			PortMappings:  []validation.PortMapping{{From: 10000, To: 10000}},
		}},
		{"/service/add", validation.ServiceAddCommand{Name: "echo0", ServiceType: "http-echo"}},
		{"/proxy/delete", validation.ResourceDeleteCommand{ID: "0123456789abcdef"}},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			data, err := json.Marshal(tt.body)
			require.NoError(t, err)

			rec := do(srv, http.MethodPost, tt.path, string(data))
			assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		})
	}
}
