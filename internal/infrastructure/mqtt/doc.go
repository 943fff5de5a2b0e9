// Package mqtt connects the item service to an MQTT broker.
//
// It manages:
//   - Connection with auto-reconnect and restored subscriptions
//   - Publishing with QoS and a 1MB payload limit
//   - Last Will and Testament on graylogic/system/status
//
// Item state is published retained on graylogic/item/<path>/state and
// writes arrive on graylogic/item/<path>/set; see Topics.
//
// TLS should be enabled (cfg.Broker.TLS) outside local development.
//
// Usage:
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	err = client.Subscribe(mqtt.Topics{}.AllItemSets(), client.QoS(),
//	    func(topic string, payload []byte) error {
//	        path, _, _ := mqtt.ParseItemTopic(topic)
//	        return tree.Change(path, payload, item.CallerMQTT, "mqtt")
//	    })
package mqtt
