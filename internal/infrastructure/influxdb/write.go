package influxdb

import (
	"fmt"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// MeasurementItemValues holds one point per committed item value.
const MeasurementItemValues = "item_values"

// ItemPoint builds the history point for an item value. Numbers are stored
// as floats and booleans as 1 or 0 so the "value" field keeps one type
// across items. Other values return ErrUnsupportedValue.
func ItemPoint(path, caller string, value any, ts time.Time) (*write.Point, error) {
	v, ok := numeric(value)
	if !ok {
		return nil, fmt.Errorf("%w: %T for %s", ErrUnsupportedValue, value, path)
	}
	tags := map[string]string{"path": path}
	if caller != "" {
		tags["caller"] = caller
	}
	return write.NewPoint(MeasurementItemValues, tags, map[string]any{"value": v}, ts), nil
}

func numeric(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case bool:
		if v {
			return 1, true
		}
		return 0, true
	}
	return 0, false
}

// WriteItemValue queues the history point for an item value.
func (c *Client) WriteItemValue(path, caller string, value any, ts time.Time) error {
	if !c.IsConnected() {
		return ErrNotConnected
	}
	point, err := ItemPoint(path, caller, value, ts)
	if err != nil {
		return err
	}
	c.writeAPI.WritePoint(point)
	return nil
}
