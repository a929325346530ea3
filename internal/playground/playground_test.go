package playground

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"evalgo.org/playground/internal/connector"
	"evalgo.org/playground/internal/connector/connectortest"
	"evalgo.org/playground/internal/event"
	"evalgo.org/playground/internal/validation"
)

var testBounds = validation.Bounds{
	MinNameLength:         2,
	MaxNameLength:         32,
	MinConfigLength:       7,
	MaxConfigLength:       20000,
	MaxNetworkConnections: 5,
}

type sent struct {
	kind    event.Kind
	payload event.Payload
}

type fakePublisher struct {
	mu   sync.Mutex
	sent []sent
}

func (p *fakePublisher) Publish(_ context.Context, kind event.Kind, payload event.Payload) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sent = append(p.sent, sent{kind: kind, payload: payload})
	return nil
}

func (p *fakePublisher) PublishTo(ctx context.Context, _ string, kind event.Kind, payload event.Payload) error {
	return p.Publish(ctx, kind, payload)
}

func (p *fakePublisher) all() []sent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]sent(nil), p.sent...)
}

func newTestAPI(t *testing.T) (*API, *connectortest.Connector, *fakePublisher) {
	t.Helper()
	types, err := LoadServiceTypes("")
	require.NoError(t, err)

	conn := &connectortest.Connector{}
	pub := &fakePublisher{}
	api := New(Options{Bounds: testBounds, ServiceTypes: types}, conn, pub, nil)
	return api, conn, pub
}

func TestMetadata(t *testing.T) {
	api, _, _ := newTestAPI(t)

	assert.Equal(t, Metadata{
		Version:               "envoyproxy/envoy-dev:latest",
		MaxNetworkConnections: 5,
		MinNameLength:         2,
		MaxNameLength:         32,
		MinConfigLength:       7,
		MaxConfigLength:       20000,
	}, api.Metadata())
}

func TestNetworkAdd(t *testing.T) {
	api, conn, _ := newTestAPI(t)
	conn.On("CreateNetwork", mock.Anything, connector.NetworkSpec{
		Name:   "net0",
		Labels: map[string]string{connector.LabelNetwork: "net0"},
	}).Return("0123456789abcdef", nil).Once()

	resp, err := api.NetworkAdd(context.Background(), []byte(`{"name":"net0"}`))
	require.NoError(t, err)
	assert.Equal(t, Response{Message: "OK"}, resp)
	conn.AssertNumberOfCalls(t, "CreateNetwork", 1)
	conn.AssertExpectations(t)
}

func TestNetworkAdd_InvalidMakesNoCall(t *testing.T) {
	api, conn, _ := newTestAPI(t)

	_, err := api.NetworkAdd(context.Background(), []byte(`{"name":"n"}`))
	assert.True(t, validation.IsValidationError(err))
	conn.AssertNotCalled(t, "CreateNetwork", mock.Anything, mock.Anything)
}

func TestNetworkAdd_ConnectorError(t *testing.T) {
	api, conn, _ := newTestAPI(t)
	cause := &connector.ConnectorError{Op: "create_network", Err: errors.New("name conflict")}
	conn.On("CreateNetwork", mock.Anything, mock.Anything).Return("", cause).Once()

	_, err := api.NetworkAdd(context.Background(), []byte(`{"name":"net0"}`))
	assert.True(t, connector.IsConnectorError(err))
}

func TestNetworkEdit(t *testing.T) {
	api, conn, pub := newTestAPI(t)
	netID := "net0aaaaaaaaaaaaaaaa"
	conn.On("ListNetworks", mock.Anything).Return([]connector.NetworkDescriptor{
		{ID: "bridgeaaaaaaaaaaaaaa", Name: "bridge", Labels: map[string]string{}},
		{ID: netID, Name: "net0", Labels: map[string]string{connector.LabelNetwork: "net0"}},
	}, nil)
	conn.On("ListContainers", mock.Anything).Return([]connector.ContainerDescriptor{
		{ID: "p0", Name: "proxy0", Labels: map[string]string{connector.LabelProxy: "proxy0"}, Networks: []string{netID}},
		{ID: "p1", Name: "proxy1", Labels: map[string]string{connector.LabelProxy: "proxy1"}},
		{ID: "s0", Name: "echo0", Labels: map[string]string{connector.LabelService: "echo0"}, Networks: []string{netID}},
	}, nil)
	conn.On("DisconnectContainer", mock.Anything, netID, "proxy0").Return(nil).Once()
	conn.On("ConnectContainer", mock.Anything, netID, "proxy1").Return(nil).Once()

	resp, err := api.NetworkEdit(context.Background(), []byte(`{"id":"net0aaaaaa","proxies":["proxy1"],"services":["echo0"]}`))
	require.NoError(t, err)
	assert.Equal(t, OK, resp)
	conn.AssertExpectations(t)

	published := pub.all()
	require.Len(t, published, 2)
	assert.Equal(t, "disconnect", published[0].payload["action"])
	assert.Equal(t, "connect", published[1].payload["action"])
	assert.Equal(t, "net0aaaaaa", published[1].payload["id"])
}

func TestNetworkEdit_UnknownMember(t *testing.T) {
	api, conn, _ := newTestAPI(t)
	conn.On("ListNetworks", mock.Anything).Return([]connector.NetworkDescriptor{
		{ID: "net0aaaaaaaaaaaaaaaa", Name: "net0", Labels: map[string]string{connector.LabelNetwork: "net0"}},
	}, nil)
	conn.On("ListContainers", mock.Anything).Return([]connector.ContainerDescriptor{
		{ID: "s0", Name: "echo0", Labels: map[string]string{connector.LabelService: "echo0"}},
	}, nil)

	_, err := api.NetworkEdit(context.Background(), []byte(`{"id":"net0aaaaaa","proxies":["echo0"]}`))
	assert.True(t, validation.IsValidationError(err))
	conn.AssertNotCalled(t, "ConnectContainer", mock.Anything, mock.Anything, mock.Anything)
}

func TestNetworkEdit_UnknownNetwork(t *testing.T) {
	api, conn, _ := newTestAPI(t)
	conn.On("ListNetworks", mock.Anything).Return([]connector.NetworkDescriptor{
		{ID: "bridgeaaaaaaaaaaaaaa", Name: "bridge", Labels: map[string]string{}},
	}, nil)

	_, err := api.NetworkEdit(context.Background(), []byte(`{"id":"bridgeaaaa"}`))
	assert.True(t, validation.IsValidationError(err))
}

func TestNetworkEdit_ShortPrefixRejected(t *testing.T) {
	api, conn, _ := newTestAPI(t)
	conn.On("ListNetworks", mock.Anything).Return([]connector.NetworkDescriptor{
		{ID: "naaaaaaaaaaaaaaaaaaa", Name: "net0", Labels: map[string]string{connector.LabelNetwork: "net0"}},
		{ID: "nbbbbbbbbbbbbbbbbbbb", Name: "net1", Labels: map[string]string{connector.LabelNetwork: "net1"}},
	}, nil)

	_, err := api.NetworkEdit(context.Background(), []byte(`{"id":"n"}`))

	var verr *validation.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "id", verr.Field)
	assert.Equal(t, "unknown", verr.Bound)
	conn.AssertNotCalled(t, "ListContainers", mock.Anything)
}

func TestNetworkEdit_AmbiguousPrefixRejected(t *testing.T) {
	api, conn, _ := newTestAPI(t)
	conn.On("ListNetworks", mock.Anything).Return([]connector.NetworkDescriptor{
		{ID: "net0aaaaaa0000000000", Name: "net0", Labels: map[string]string{connector.LabelNetwork: "net0"}},
		{ID: "net0aaaaaa1111111111", Name: "net1", Labels: map[string]string{connector.LabelNetwork: "net1"}},
	}, nil)

	_, err := api.NetworkEdit(context.Background(), []byte(`{"id":"net0aaaaaa"}`))

	var verr *validation.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "unique", verr.Bound)
	conn.AssertNotCalled(t, "ListContainers", mock.Anything)
}

func TestNetworkDelete(t *testing.T) {
	api, conn, pub := newTestAPI(t)
	conn.On("RemoveNetwork", mock.Anything, "XXXXXXXXXXXX").Return(nil).Once()

	_, err := api.NetworkDelete(context.Background(), []byte(`{"id":"XXXXXXXXXXXX"}`))
	require.NoError(t, err)

	published := pub.all()
	require.Len(t, published, 1)
	assert.Equal(t, "XXXXXXXXXX", published[0].payload["id"])
	conn.AssertExpectations(t)
}

func TestProxyAdd(t *testing.T) {
	api, conn, pub := newTestAPI(t)
	conn.On("CreateContainer", mock.Anything, mock.MatchedBy(func(spec connector.ContainerSpec) bool {
		return spec.Name == "proxy0" &&
			spec.Image == "envoyproxy/envoy-dev:latest" &&
			spec.Labels[connector.LabelProxy] == "proxy0" &&
			len(spec.Ports) == 1 && spec.Ports[0].HostPort == 10000
	})).Return("proxyid0000000", nil).Once()

	body := `{"name":"proxy0","configuration":"static_resources: {}","port_mappings":[{"mapping_from":10000,"mapping_to":10000}]}`
	_, err := api.ProxyAdd(context.Background(), []byte(body))
	require.NoError(t, err)
	conn.AssertExpectations(t)
	require.Len(t, pub.all(), 1)
	assert.Equal(t, event.KindProxy, pub.all()[0].kind)
}

func TestServiceAdd_UnknownType(t *testing.T) {
	api, conn, _ := newTestAPI(t)

	_, err := api.ServiceAdd(context.Background(), []byte(`{"name":"r0","service_type":"redis"}`))
	assert.True(t, validation.IsValidationError(err))
	conn.AssertNotCalled(t, "CreateContainer", mock.Anything, mock.Anything)
}

func TestServiceAdd(t *testing.T) {
	api, conn, _ := newTestAPI(t)
	conn.On("CreateContainer", mock.Anything, mock.MatchedBy(func(spec connector.ContainerSpec) bool {
		return spec.Image == "mendhak/http-https-echo:latest" && spec.Labels[connector.LabelServiceType] == "http-echo"
	})).Return("svc000000000", nil).Once()

	_, err := api.ServiceAdd(context.Background(), []byte(`{"name":"echo0","service_type":"http-echo"}`))
	require.NoError(t, err)
	conn.AssertExpectations(t)
}

func TestServiceDelete(t *testing.T) {
	api, conn, _ := newTestAPI(t)
	conn.On("RemoveContainer", mock.Anything, "svc0000000").Return(nil).Once()

	_, err := api.ServiceDelete(context.Background(), []byte(`{"id":"svc0000000"}`))
	require.NoError(t, err)
	conn.AssertExpectations(t)
}

func TestClear_NothingToRemove(t *testing.T) {
	api, conn, _ := newTestAPI(t)
	conn.On("ListContainers", mock.Anything).Return([]connector.ContainerDescriptor{
		{ID: "db", Name: "postgres", Labels: map[string]string{}},
	}, nil)
	conn.On("ListNetworks", mock.Anything).Return([]connector.NetworkDescriptor{
		{ID: "bridge", Name: "bridge", Labels: map[string]string{}},
	}, nil)

	resp, err := api.Clear(context.Background())
	require.NoError(t, err)
	assert.Equal(t, OK, resp)
	conn.AssertNotCalled(t, "RemoveContainer", mock.Anything, mock.Anything)
	conn.AssertNotCalled(t, "RemoveNetwork", mock.Anything, mock.Anything)
}

func TestClear_RemovesContainersThenNetworks(t *testing.T) {
	api, conn, _ := newTestAPI(t)
	var order []string
	conn.On("ListContainers", mock.Anything).Return([]connector.ContainerDescriptor{
		{ID: "p0", Name: "proxy0", Labels: map[string]string{connector.LabelProxy: "proxy0"}},
		{ID: "db", Name: "postgres", Labels: map[string]string{}},
		{ID: "s0", Name: "echo0", Labels: map[string]string{connector.LabelService: "echo0"}},
	}, nil)
	conn.On("ListNetworks", mock.Anything).Return([]connector.NetworkDescriptor{
		{ID: "n0", Name: "net0", Labels: map[string]string{connector.LabelNetwork: "net0"}},
		{ID: "bridge", Name: "bridge", Labels: map[string]string{}},
	}, nil)
	conn.On("RemoveContainer", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		order = append(order, "container:"+args.String(1))
	}).Return(nil)
	conn.On("RemoveNetwork", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		order = append(order, "network:"+args.String(1))
	}).Return(nil)

	_, err := api.Clear(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"container:p0", "container:s0", "network:n0"}, order)
}

func TestClear_ContinuesPastFailures(t *testing.T) {
	api, conn, _ := newTestAPI(t)
	conn.On("ListContainers", mock.Anything).Return([]connector.ContainerDescriptor{
		{ID: "p0", Name: "proxy0", Labels: map[string]string{connector.LabelProxy: "proxy0"}},
	}, nil)
	conn.On("ListNetworks", mock.Anything).Return([]connector.NetworkDescriptor{
		{ID: "n0", Name: "net0", Labels: map[string]string{connector.LabelNetwork: "net0"}},
	}, nil)
	conn.On("RemoveContainer", mock.Anything, "p0").Return(errors.New("in use")).Once()
	conn.On("RemoveNetwork", mock.Anything, "n0").Return(nil).Once()

	_, err := api.Clear(context.Background())
	assert.ErrorContains(t, err, "in use")
	conn.AssertExpectations(t)
}

func TestDumpResources(t *testing.T) {
	api, conn, _ := newTestAPI(t)
	conn.On("ListResources", mock.Anything).Return(connector.Snapshot{
		"networks": map[string]interface{}{},
		"proxies":  map[string]interface{}{},
		"services": map[string]interface{}{},
	}, nil)

	dump, err := api.DumpResources(context.Background())
	require.NoError(t, err)
	assert.Equal(t, api.Metadata(), dump["meta"])
	assert.Contains(t, dump["service_types"].(ServiceTypes), "http-echo")
	assert.Contains(t, dump, "networks")
}

func TestHandleFrame(t *testing.T) {
	api, conn, pub := newTestAPI(t)
	conn.On("RemoveNetwork", mock.Anything, "XXXXXXXXXXXXXXXXXXXX").Return(nil).Once()

	err := api.HandleFrame(context.Background(), "s1", []byte(`{"kind":"network","action":"destroy","id":"XXXXXXXXXXXXXXXXXXXX"}`))
	require.NoError(t, err)
	require.Len(t, pub.all(), 1)
	assert.Equal(t, event.Payload{"id": "XXXXXXXXXX", "action": "destroy", "name": ""}, pub.all()[0].payload)
	conn.AssertExpectations(t)

	err = api.HandleFrame(context.Background(), "s1", []byte(`{"kind":"volume","action":"create"}`))
	var unroutable *event.UnroutableEventError
	assert.ErrorAs(t, err, &unroutable)

	err = api.HandleFrame(context.Background(), "s1", []byte(`not json`))
	assert.True(t, validation.IsValidationError(err))
}

func TestWatch(t *testing.T) {
	api, conn, pub := newTestAPI(t)
	envs := make(chan event.Envelope, 2)
	errc := make(chan error, 1)
	envs <- event.Envelope{Kind: event.KindNetwork, Action: "destroy", ID: "net0000000001", Origin: event.OriginEngine}
	envs <- event.Envelope{Kind: event.KindProxy, Action: "pause", Origin: event.OriginEngine}
	close(envs)
	conn.On("Events", mock.Anything).Return(envs, errc)

	require.NoError(t, api.Watch(context.Background()))
	require.Len(t, pub.all(), 1)
	assert.Equal(t, "net0000000", pub.all()[0].payload["id"])
}

func TestLoadServiceTypes(t *testing.T) {
	types, err := LoadServiceTypes("")
	require.NoError(t, err)
	assert.Equal(t, []string{"http-echo", "httpbin", "nginx", "whoami"}, types.Names())

	img, ok := types.Lookup("http-echo")
	require.True(t, ok)
	assert.Equal(t, "PLAYGROUND_CONFIGURATION", img.ConfigEnv)

	path := filepath.Join(t.TempDir(), "types.yaml")
	require.NoError(t, os.WriteFile(path, []byte("service_types:\n  redis:\n    image: redis:7\n"), 0o600))
	types, err = LoadServiceTypes(path)
	require.NoError(t, err)
	assert.Equal(t, "redis", types["redis"].Name)

	require.NoError(t, os.WriteFile(path, []byte("service_types:\n  broken:\n    description: no image\n"), 0o600))
	_, err = LoadServiceTypes(path)
	assert.Error(t, err)

	_, err = LoadServiceTypes(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
