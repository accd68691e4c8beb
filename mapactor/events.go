package mapactor

import (
	"context"
	"encoding/json"

	"github.com/wanderer-industries/topologyd/model"
	"github.com/wanderer-industries/topologyd/topology"
)

// handleEvent dispatches one SSE-sourced (or locally-synthesized) event
// to its handler, then rebuilds and broadcasts the derived views.
func (a *Actor) handleEvent(ctx context.Context, env model.EventEnvelope) {
	switch env.Type {
	case model.EventAddSystem:
		a.onAddSystem(ctx, env)
	case model.EventSystemMetadataChanged:
		a.onSystemMetadataChanged(ctx, env)
	case model.EventUpdateSystem:
		a.onUpdateSystem(ctx, env)
	case model.EventDeletedSystem:
		a.onDeletedSystem(ctx, env)
	case model.EventRemoveSystem:
		a.onRemoveSystem(ctx, env)
	case model.EventConnectionAdded:
		a.onConnectionAdded(ctx, env)
	case model.EventConnectionUpdated:
		a.onConnectionUpdated(ctx, env)
	case model.EventConnectionRemoved:
		a.onConnectionRemoved(ctx, env)
	case model.EventAddConnection:
		a.onAddConnection(ctx, env)
	case model.EventRemoveConnection:
		a.onRemoveConnection(ctx, env)
	default:
		a.log.Debugw("ignoring unhandled event", "type", env.Type)
		return
	}

	a.rebuildAndBroadcast()
}

func (a *Actor) isMain() bool { return a.Map().IsMain }

// onAddSystem: on the main map, append locally. On a satellite, fetch the
// same system from the main map's actor, strip its position, upsert
// through the remote API, then append locally.
func (a *Actor) onAddSystem(ctx context.Context, env model.EventEnvelope) {
	if a.isMain() {
		a.appendSystem(decodeSystemFromPayload(env.Payload))
		return
	}

	mainID, ok := a.mainMapID()
	if !ok {
		a.log.Warnw("add_system on satellite with no known main map")
		return
	}
	sys := decodeSystemFromPayload(env.Payload)
	mainSys, found := a.peers.System(mainID, sys.SolarSystemID)
	if !found {
		mainSys = sys
	}
	mainSys = withoutPosition(mainSys)

	m := a.Map()
	if err := a.remote.UpsertSystemsAndConnections(ctx, m, []model.System{mainSys}, nil); err != nil {
		a.log.Warnw("failed to upsert system copied from main", "error", err)
		return
	}
	a.appendSystem(mainSys)
}

// onSystemMetadataChanged (main only): broadcast update_system to every
// satellite's topic; merge the payload into the local raw view.
func (a *Actor) onSystemMetadataChanged(ctx context.Context, env model.EventEnvelope) {
	if !a.isMain() {
		return
	}

	for _, other := range a.peers.OtherMaps(a.mapID) {
		if other.IsMain {
			continue
		}
		a.bus.Broadcast(other.URL, model.EventEnvelope{
			Type:    model.EventUpdateSystem,
			MapID:   other.ID,
			Payload: env.Payload,
		})
	}

	a.mergeSystem(decodeSystemFromPayload(env.Payload))
}

// onUpdateSystem (satellite): if the system already exists locally, fetch
// it from the main map and upsert the stripped payload.
func (a *Actor) onUpdateSystem(ctx context.Context, env model.EventEnvelope) {
	if a.isMain() {
		return
	}
	sys := decodeSystemFromPayload(env.Payload)
	if _, exists := a.findSystem(sys.SolarSystemID); !exists {
		return
	}

	mainID, ok := a.mainMapID()
	if !ok {
		return
	}
	mainSys, found := a.peers.System(mainID, sys.SolarSystemID)
	if !found {
		mainSys = sys
	}
	mainSys = withoutPosition(mainSys)

	m := a.Map()
	if err := a.remote.UpsertSystemsAndConnections(ctx, m, []model.System{mainSys}, nil); err != nil {
		a.log.Warnw("failed to upsert updated system from main", "error", err)
		return
	}
	a.mergeSystem(mainSys)
}

// onDeletedSystem: remove locally; on main, broadcast remove_system to
// every satellite.
func (a *Actor) onDeletedSystem(ctx context.Context, env model.EventEnvelope) {
	id, _ := payloadInt64(env.Payload, "solar_system_id")
	a.removeSystem(id)

	if a.isMain() {
		for _, other := range a.peers.OtherMaps(a.mapID) {
			if other.IsMain {
				continue
			}
			a.bus.Broadcast(other.URL, model.EventEnvelope{
				Type:    model.EventRemoveSystem,
				MapID:   other.ID,
				Payload: env.Payload,
			})
		}
	}
}

// onRemoveSystem (satellite): remove through the remote API, then locally.
func (a *Actor) onRemoveSystem(ctx context.Context, env model.EventEnvelope) {
	if a.isMain() {
		return
	}
	id, ok := payloadInt64(env.Payload, "solar_system_id")
	if !ok {
		return
	}
	m := a.Map()
	if err := a.remote.DeleteSystem(ctx, m, id); err != nil {
		a.log.Warnw("failed to remove system via remote api", "error", err)
		return
	}
	a.removeSystem(id)
}

// onConnectionAdded: append/replace locally. Main does not broadcast here —
// only on connection_updated and connection_removed.
func (a *Actor) onConnectionAdded(ctx context.Context, env model.EventEnvelope) {
	a.upsertConnection(decodeConnectionFromPayload(env.Payload))
}

// onConnectionUpdated: append/replace locally; on main, resolve the
// connection from the remote API and broadcast add_connection to every
// satellite.
func (a *Actor) onConnectionUpdated(ctx context.Context, env model.EventEnvelope) {
	conn := decodeConnectionFromPayload(env.Payload)
	a.upsertConnection(conn)

	if !a.isMain() {
		return
	}
	m := a.Map()
	resolved, err := a.remote.GetConnections(ctx, m, conn.SolarSystemSource, conn.SolarSystemTarget)
	if err != nil || len(resolved) == 0 {
		resolved = []model.Connection{conn}
	}
	for _, other := range a.peers.OtherMaps(a.mapID) {
		if other.IsMain {
			continue
		}
		a.bus.Broadcast(other.URL, model.EventEnvelope{
			Type:  model.EventAddConnection,
			MapID: other.ID,
			Payload: map[string]any{
				"solar_system_source": resolved[0].SolarSystemSource,
				"solar_system_target": resolved[0].SolarSystemTarget,
			},
		})
	}
}

// onConnectionRemoved: remove the undirected match locally; on main,
// broadcast remove_connection to every satellite.
func (a *Actor) onConnectionRemoved(ctx context.Context, env model.EventEnvelope) {
	conn := decodeConnectionFromPayload(env.Payload)
	a.removeConnection(conn)

	if a.isMain() {
		for _, other := range a.peers.OtherMaps(a.mapID) {
			if other.IsMain {
				continue
			}
			a.bus.Broadcast(other.URL, model.EventEnvelope{
				Type:  model.EventRemoveConnection,
				MapID: other.ID,
				Payload: map[string]any{
					"solar_system_source": conn.SolarSystemSource,
					"solar_system_target": conn.SolarSystemTarget,
				},
			})
		}
	}
}

// onAddConnection (satellite): upsert via the remote API, then append locally.
func (a *Actor) onAddConnection(ctx context.Context, env model.EventEnvelope) {
	if a.isMain() {
		return
	}
	conn := decodeConnectionFromPayload(env.Payload)
	m := a.Map()
	if err := a.remote.UpsertSystemsAndConnections(ctx, m, nil, []model.Connection{conn}); err != nil {
		a.log.Warnw("failed to upsert connection from main", "error", err)
		return
	}
	a.upsertConnection(conn)
}

// onRemoveConnection (satellite): remote remove, then remove locally.
func (a *Actor) onRemoveConnection(ctx context.Context, env model.EventEnvelope) {
	if a.isMain() {
		return
	}
	conn := decodeConnectionFromPayload(env.Payload)
	m := a.Map()
	if err := a.remote.DeleteConnection(ctx, m, conn.SolarSystemSource, conn.SolarSystemTarget); err != nil {
		a.log.Warnw("failed to remove connection via remote api", "error", err)
		return
	}
	a.removeConnection(conn)
}

// handleBorderSystemsDetected (main only): toggles the "c" label on every
// system in the raw view according to whether it's in the border set,
// refreshing from the remote API if any label actually changed.
func (a *Actor) handleBorderSystemsDetected(ctx context.Context, evt topology.BorderSystemsDetectedEvent) {
	if !a.isMain() {
		return
	}

	borderSet := make(map[int64]bool, len(evt.BorderSystems))
	for _, id := range evt.BorderSystems {
		borderSet[id] = true
	}

	a.mu.Lock()
	changed := false
	for i, sys := range a.rawView.Systems {
		labels := decodeLabels(sys.Labels)
		want := borderSet[sys.SolarSystemID]
		labels, did := toggleLabel(labels, "c", want)
		if did {
			changed = true
			a.rawView.Systems[i].Labels = encodeLabels(labels)
		}
	}
	a.mu.Unlock()

	if !changed {
		return
	}

	m := a.Map()
	view, err := a.remote.GetMapSystems(ctx, m)
	if err != nil {
		a.log.Warnw("failed to refresh raw view after border label change", "error", err)
		return
	}
	a.mu.Lock()
	a.rawView = view
	a.mu.Unlock()
	a.rebuildAndBroadcast()
}

func decodeLabels(raw *string) []string {
	if raw == nil || *raw == "" {
		return nil
	}
	var labels []string
	if err := json.Unmarshal([]byte(*raw), &labels); err != nil {
		return nil
	}
	return labels
}

func encodeLabels(labels []string) *string {
	raw, err := json.Marshal(labels)
	if err != nil {
		return nil
	}
	s := string(raw)
	return &s
}

// toggleLabel inserts or removes label so that its presence matches want,
// reporting whether it changed anything.
func toggleLabel(labels []string, label string, want bool) ([]string, bool) {
	idx := -1
	for i, l := range labels {
		if l == label {
			idx = i
			break
		}
	}
	has := idx >= 0

	if want == has {
		return labels, false
	}
	if want {
		return append(labels, label), true
	}
	return append(labels[:idx], labels[idx+1:]...), true
}
