package mapactor

import "github.com/wanderer-industries/topologyd/model"

// payloadInt64 reads the first present key in keys as an int64 (JSON
// numbers decode to float64 through map[string]any).
func payloadInt64(payload map[string]any, keys ...string) (int64, bool) {
	for _, key := range keys {
		v, ok := payload[key]
		if !ok {
			continue
		}
		switch n := v.(type) {
		case float64:
			return int64(n), true
		case int64:
			return n, true
		case int:
			return int64(n), true
		}
	}
	return 0, false
}

func payloadString(payload map[string]any, key string) (string, bool) {
	v, ok := payload[key].(string)
	return v, ok
}

func payloadFloat64(payload map[string]any, key string) (float64, bool) {
	v, ok := payload[key].(float64)
	return v, ok
}

func payloadInt(payload map[string]any, key string) (int, bool) {
	v, ok := payload[key].(float64)
	return int(v), ok
}

// decodeSystemFromPayload builds a System from an add_system/update_system
// event payload.
func decodeSystemFromPayload(payload map[string]any) model.System {
	var sys model.System
	if id, ok := payloadInt64(payload, "solar_system_id"); ok {
		sys.SolarSystemID = id
	}
	if name, ok := payloadString(payload, "name"); ok {
		sys.Name = name
	}
	if x, ok := payloadFloat64(payload, "position_x"); ok {
		sys.PositionX = x
	}
	if y, ok := payloadFloat64(payload, "position_y"); ok {
		sys.PositionY = y
	}
	if status, ok := payloadInt(payload, "status"); ok {
		sys.Status = status
	}
	if labels, ok := payloadString(payload, "labels"); ok {
		sys.Labels = &labels
	}
	if mapID, ok := payloadString(payload, "map_id"); ok {
		sys.MapID = mapID
	}
	if info, ok := payload["static_info"]; ok {
		sys.StaticInfo = info
	}
	return sys
}

// decodeConnectionFromPayload builds a Connection from a
// connection_added/connection_updated event payload, normalizing the
// longer "*_source_id"/"*_target_id" spellings to the stripped
// "*_source"/"*_target" fields.
func decodeConnectionFromPayload(payload map[string]any) model.Connection {
	var conn model.Connection
	if id, ok := payloadInt64(payload, "solar_system_source", "solar_system_source_id"); ok {
		conn.SolarSystemSource = id
	}
	if id, ok := payloadInt64(payload, "solar_system_target", "solar_system_target_id"); ok {
		conn.SolarSystemTarget = id
	}
	return conn
}

// withoutPosition strips position_x/y, used when a satellite upserts a
// system copied from the main map (positions are strictly per-map).
func withoutPosition(sys model.System) model.System {
	sys.PositionX = 0
	sys.PositionY = 0
	return sys
}
