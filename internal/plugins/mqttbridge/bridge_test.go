package mqttbridge

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nerrad567/gray-logic-items/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-items/internal/item"
)

type fakeTransport struct {
	mu        sync.Mutex
	published map[string][]byte
	topic     string
	handler   mqtt.MessageHandler
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{published: make(map[string][]byte)}
}

func (f *fakeTransport) PublishRetained(topic string, payload []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.published[topic] = payload
	return nil
}

func (f *fakeTransport) Subscribe(topic string, _ byte, handler mqtt.MessageHandler) error {
	f.topic = topic
	f.handler = handler
	return nil
}

func (f *fakeTransport) QoS() byte { return 1 }

func (f *fakeTransport) state(t *testing.T, path string) item.Snapshot {
	t.Helper()
	f.mu.Lock()
	data, ok := f.published[mqtt.Topics{}.ItemState(path)]
	f.mu.Unlock()
	require.True(t, ok, "no state published for %s", path)

	var snap item.Snapshot
	require.NoError(t, json.Unmarshal(data, &snap))
	return snap
}

func buildTree(t *testing.T, bridge *Bridge) *item.Tree {
	t.Helper()
	tree := item.NewTree(item.Deps{}, bridge)
	require.NoError(t, tree.Build(context.Background(), []item.Node{
		{Key: "light", Config: item.Config{Type: item.TypeBool, Attributes: map[string]any{"mqtt": true}}},
		{Key: "temp", Config: item.Config{Type: item.TypeNum, Attributes: map[string]any{"mqtt": "1"}}},
		{Key: "hidden", Config: item.Config{Type: item.TypeNum}},
	}))
	return tree
}

func TestParseItem(t *testing.T) {
	bridge := New(newFakeTransport(), nil)
	buildTree(t, bridge)
	assert.Equal(t, 2, bridge.Items())
}

func TestPublishOnChange(t *testing.T) {
	transport := newFakeTransport()
	bridge := New(transport, nil)
	tree := buildTree(t, bridge)

	require.NoError(t, tree.Change("temp", 21.5, item.CallerAPI, "panel"))

	snap := transport.state(t, "temp")
	assert.Equal(t, 21.5, snap.Value)
	assert.Equal(t, "API:panel", snap.ChangedBy)
	assert.Equal(t, item.TypeNum, snap.Type)
}

func TestHandleSet(t *testing.T) {
	transport := newFakeTransport()
	bridge := New(transport, nil)
	tree := buildTree(t, bridge)

	require.NoError(t, bridge.Start())
	assert.Equal(t, "graylogic/item/+/set", transport.topic)

	require.NoError(t, transport.handler("graylogic/item/light/set", []byte("true")))
	light, _ := tree.Get("light")
	assert.Equal(t, true, light.Value())
	assert.Equal(t, "MQTT:mqtt", light.ChangedBy())

	// Not JSON: passed through as a string and coerced by the item.
	require.NoError(t, transport.handler("graylogic/item/temp/set", []byte("18")))
	temp, _ := tree.Get("temp")
	assert.Equal(t, 18.0, temp.Value())
}

func TestHandleSet_Errors(t *testing.T) {
	bridge := New(newFakeTransport(), nil)
	buildTree(t, bridge)

	assert.ErrorIs(t, bridge.HandleSet("graylogic/item/hidden/set", []byte("1")), item.ErrItemNotFound)
	assert.Error(t, bridge.HandleSet("graylogic/item/temp/state", []byte("1")))
	assert.Error(t, bridge.HandleSet("other/topic", []byte("1")))

	var ce *item.CoercionError
	assert.ErrorAs(t, bridge.HandleSet("graylogic/item/temp/set", []byte(`"warm"`)), &ce)
}

func TestPublishAll(t *testing.T) {
	transport := newFakeTransport()
	bridge := New(transport, nil)
	buildTree(t, bridge)

	bridge.PublishAll()
	assert.Equal(t, false, transport.state(t, "light").Value)
	assert.Equal(t, 0.0, transport.state(t, "temp").Value)
}
