package mapactor

import "github.com/wanderer-industries/topologyd/model"

// mainMapID resolves the shared "main" map id from the bookkeeping cache.
func (a *Actor) mainMapID() (string, bool) {
	if a.shared == nil {
		return "", false
	}
	v, err := a.shared.Get("shared:main")
	if err != nil {
		return "", false
	}
	id, ok := v.(string)
	return id, ok
}

func (a *Actor) findSystem(solarSystemID int64) (model.System, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, sys := range a.rawView.Systems {
		if sys.SolarSystemID == solarSystemID {
			return sys, true
		}
	}
	return model.System{}, false
}

func (a *Actor) appendSystem(sys model.System) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.rawView.Systems = append(a.rawView.Systems, sys)
}

// mergeSystem merges non-zero fields of patch into the matching system by
// id, if any; systems not yet known locally are ignored.
func (a *Actor) mergeSystem(patch model.System) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for i, sys := range a.rawView.Systems {
		if sys.SolarSystemID != patch.SolarSystemID {
			continue
		}
		if patch.Name != "" {
			sys.Name = patch.Name
		}
		if patch.Labels != nil {
			sys.Labels = patch.Labels
		}
		if patch.StaticInfo != nil {
			sys.StaticInfo = patch.StaticInfo
		}
		if patch.Status != 0 {
			sys.Status = patch.Status
		}
		a.rawView.Systems[i] = sys
		return
	}
}

func (a *Actor) removeSystem(solarSystemID int64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	systems := a.rawView.Systems[:0]
	for _, sys := range a.rawView.Systems {
		if sys.SolarSystemID != solarSystemID {
			systems = append(systems, sys)
		}
	}
	a.rawView.Systems = systems
}

// upsertConnection appends conn, replacing any existing undirected match.
func (a *Actor) upsertConnection(conn model.Connection) {
	a.mu.Lock()
	defer a.mu.Unlock()
	key := conn.Key()
	for i, existing := range a.rawView.Connections {
		if existing.Key() == key {
			a.rawView.Connections[i] = conn
			return
		}
	}
	a.rawView.Connections = append(a.rawView.Connections, conn)
}

func (a *Actor) removeConnection(conn model.Connection) {
	a.mu.Lock()
	defer a.mu.Unlock()
	key := conn.Key()
	connections := a.rawView.Connections[:0]
	for _, existing := range a.rawView.Connections {
		if existing.Key() != key {
			connections = append(connections, existing)
		}
	}
	a.rawView.Connections = connections
}
