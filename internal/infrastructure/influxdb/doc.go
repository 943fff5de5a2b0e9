// Package influxdb records item value history in InfluxDB v2.
//
// Every value goes to the item_values measurement, tagged with the item
// path and the caller kind that committed it. Writes are batched and
// non-blocking.
//
// Usage:
//
//	client, err := influxdb.Connect(cfg.InfluxDB)
//	if errors.Is(err, influxdb.ErrDisabled) {
//	    // history off
//	}
//	defer client.Close()
//	client.SetOnError(func(err error) { log.Warn("history write failed", "error", err) })
//
//	err = client.WriteItemValue("living.temp", "MQTT", 21.5, time.Now())
package influxdb
