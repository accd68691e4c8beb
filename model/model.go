// Package model holds the shared data types for maps, systems, connections
// and the SSE event envelope described by the topology data model.
package model

import "time"

// Map is the identity of a topology shard.
type Map struct {
	ID              string `json:"id" mapstructure:"id"`
	URL             string `json:"url" mapstructure:"url"`
	PublicAPIKey    string `json:"public_api_key" mapstructure:"public_api_key"`
	Color           string `json:"color" mapstructure:"color"`
	Title           string `json:"title" mapstructure:"title"`
	IsMain          bool   `json:"is_main" mapstructure:"is_main"`
	MainSystemEveID *int64 `json:"main_system_eve_id,omitempty" mapstructure:"main_system_eve_id"`
}

// System is a node of the topology (a solar system).
type System struct {
	SolarSystemID int64    `json:"solar_system_id"`
	Name          string   `json:"name"`
	PositionX     float64  `json:"position_x"`
	PositionY     float64  `json:"position_y"`
	Status        int      `json:"status"`
	Labels        *string  `json:"labels,omitempty"`
	StaticInfo    any      `json:"static_info,omitempty"`
	MapID         string   `json:"map_id,omitempty"`
	IsBorder      bool     `json:"is_border,omitempty"`
	BorderMaps    []string `json:"border_maps,omitempty"`
}

// IsHome reports whether this system is the map's home system.
func (s System) IsHome() bool { return s.Status == 1 }

// ConnectionKey is the unordered key of a Connection: the two endpoints
// stored in sorted order so that (a,b) and (b,a) key identically.
type ConnectionKey struct {
	A, B int64
}

// NewConnectionKey builds a ConnectionKey for an unordered pair.
func NewConnectionKey(source, target int64) ConnectionKey {
	if source > target {
		source, target = target, source
	}
	return ConnectionKey{A: source, B: target}
}

// Connection is an undirected edge between two systems.
type Connection struct {
	SolarSystemSource int64 `json:"solar_system_source"`
	SolarSystemTarget int64 `json:"solar_system_target"`
}

// Key returns the unordered key for this connection.
func (c Connection) Key() ConnectionKey {
	return NewConnectionKey(c.SolarSystemSource, c.SolarSystemTarget)
}

// View is a snapshot of a map's systems and connections.
type View struct {
	Systems     []System     `json:"systems"`
	Connections []Connection `json:"connections"`
}

// MapState is the bookkeeping a map actor holds about a Map.
type MapState struct {
	MapID            string
	Map              Map
	ServerMapID      *string
	LastAPIRefreshAt time.Time
}

// EventEnvelope is the common shape of every SSE event after decoding.
type EventEnvelope struct {
	ID         string          `json:"id"`
	Type       string          `json:"type"`
	MapID      string          `json:"map_id"`
	Timestamp  *time.Time      `json:"timestamp,omitempty"`
	ServerTime *time.Time      `json:"server_time,omitempty"`
	Payload    map[string]any  `json:"payload,omitempty"`
}

// Known SSE event types.
const (
	EventAddSystem              = "add_system"
	EventDeletedSystem          = "deleted_system"
	EventConnectionAdded        = "connection_added"
	EventConnectionRemoved      = "connection_removed"
	EventConnectionUpdated      = "connection_updated"
	EventSystemMetadataChanged  = "system_metadata_changed"
	EventConnected              = "connected"
	EventMapKill                = "map_kill"
	EventUpdateSystem           = "update_system"
	EventRemoveSystem           = "remove_system"
	EventAddConnection          = "add_connection"
	EventRemoveConnection       = "remove_connection"
	EventBorderSystemsDetected  = "border_systems_detected"
)

// DefaultEventTypes is the default six-type filter an SSE client subscribes to.
var DefaultEventTypes = []string{
	EventAddSystem,
	EventDeletedSystem,
	EventConnectionAdded,
	EventConnectionRemoved,
	EventConnectionUpdated,
	EventSystemMetadataChanged,
}

// EventCategory classifies an event type for routing.
type EventCategory int

const (
	CategoryOther EventCategory = iota
	CategorySystem
	CategoryConnection
	CategorySpecial
)

// Categorize maps an event type to its routing category.
func Categorize(eventType string) EventCategory {
	switch eventType {
	case EventAddSystem, EventDeletedSystem, EventSystemMetadataChanged:
		return CategorySystem
	case EventConnectionAdded, EventConnectionUpdated, EventConnectionRemoved:
		return CategoryConnection
	case EventConnected, EventMapKill:
		return CategorySpecial
	default:
		return CategoryOther
	}
}

// LicenseState is the cached result of the license validator.
type LicenseState struct {
	Valid              bool           `json:"valid"`
	BotAssigned        bool           `json:"bot_assigned"`
	Details            map[string]any `json:"details,omitempty"`
	Error              string         `json:"error,omitempty"`
	ErrorMessage       string         `json:"error_message,omitempty"`
	LastValidated      time.Time      `json:"last_validated"`
	NotificationCounts NotificationCounts `json:"notification_counts"`
	BackoffMultiplier  int            `json:"backoff_multiplier"`
}

// NotificationCounts tracks suppressed/sent notification volume by kind.
type NotificationCounts struct {
	System    int `json:"system"`
	Character int `json:"character"`
	Killmail  int `json:"killmail"`
}

// MaxBackoffMultiplier caps the license validator's exponential backoff.
const MaxBackoffMultiplier = 32
