// Package mqttbridge mirrors items onto MQTT.
//
// Items with the attribute "mqtt: true" publish a retained JSON snapshot on
// graylogic/item/<path>/state after every change. A JSON value written to
// graylogic/item/<path>/set is applied with caller MQTT. Payloads that are
// not JSON are passed through as strings.
package mqttbridge

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/nerrad567/gray-logic-items/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-items/internal/item"
)

// Attribute enables the bridge on an item.
const Attribute = "mqtt"

// Source is the attribution source of values received over MQTT.
const Source = "mqtt"

// Transport is the subset of *mqtt.Client the bridge uses.
type Transport interface {
	PublishRetained(topic string, payload []byte) error
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	QoS() byte
}

// Logger defines the logging interface used by the bridge.
type Logger interface {
	Debug(msg string, args ...any)
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Warn(string, ...any)  {}

// Bridge implements item.Plugin.
type Bridge struct {
	transport Transport
	logger    Logger

	mu    sync.RWMutex
	items map[string]*item.Item
}

var _ item.Plugin = (*Bridge)(nil)

// New creates a Bridge publishing through transport.
func New(transport Transport, logger Logger) *Bridge {
	if logger == nil {
		logger = noopLogger{}
	}
	return &Bridge{
		transport: transport,
		logger:    logger,
		items:     make(map[string]*item.Item),
	}
}

// Name implements item.Plugin.
func (b *Bridge) Name() string { return "mqtt" }

// ParseItem claims items carrying the mqtt attribute.
func (b *Bridge) ParseItem(it *item.Item) item.PluginCallback {
	if !it.ConfBool(Attribute) {
		return nil
	}
	b.mu.Lock()
	b.items[it.Path()] = it
	b.mu.Unlock()
	return b.publish
}

// Items returns how many items are bridged.
func (b *Bridge) Items() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.items)
}

func (b *Bridge) publish(it *item.Item, _ item.CallerKind, _, _ string) error {
	data, err := json.Marshal(it.Snapshot())
	if err != nil {
		return fmt.Errorf("encoding state of %s: %w", it.Path(), err)
	}
	return b.transport.PublishRetained(mqtt.Topics{}.ItemState(it.Path()), data)
}

// Start subscribes to the set topics. Call it after the broker connection
// is up; the client restores the subscription on reconnect.
func (b *Bridge) Start() error {
	return b.transport.Subscribe(mqtt.Topics{}.AllItemSets(), b.transport.QoS(), b.HandleSet)
}

// PublishAll publishes the current state of every bridged item, for
// example after a reconnect.
func (b *Bridge) PublishAll() {
	b.mu.RLock()
	items := make([]*item.Item, 0, len(b.items))
	for _, it := range b.items {
		items = append(items, it)
	}
	b.mu.RUnlock()

	for _, it := range items {
		if err := b.publish(it, "", "", ""); err != nil {
			b.logger.Warn("failed to publish item state", "item", it.Path(), "error", err)
		}
	}
}

// HandleSet applies a message received on an item's set topic.
func (b *Bridge) HandleSet(topic string, payload []byte) error {
	path, action, ok := mqtt.ParseItemTopic(topic)
	if !ok || action != mqtt.ActionSet {
		return fmt.Errorf("unexpected topic %q", topic)
	}

	b.mu.RLock()
	it, ok := b.items[path]
	b.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %s is not bridged", item.ErrItemNotFound, path)
	}

	var value any
	if err := json.Unmarshal(payload, &value); err != nil {
		value = string(payload)
	}
	b.logger.Debug("mqtt set received", "item", path, "value", value)
	return it.Change(value, item.CallerMQTT, Source, "")
}
