package app

import (
	"context"
	"sort"

	"github.com/wanderer-industries/topologyd/errors"
	"github.com/wanderer-industries/topologyd/mapactor"
	"github.com/wanderer-industries/topologyd/model"
	"github.com/wanderer-industries/topologyd/registry"
)

// staticMapStore is the CRUD facade spec.md treats as an external
// collaborator, backed here by the statically-configured map roster
// (config.Config.Maps) rather than a real database. It satisfies both
// mapactor.MapStore and apiclient.MapStore, which share the same
// GetMap signature.
type staticMapStore struct {
	byID  map[string]model.Map
	order []string
}

func newStaticMapStore(maps []model.Map) *staticMapStore {
	s := &staticMapStore{byID: make(map[string]model.Map, len(maps))}
	for _, m := range maps {
		s.byID[m.ID] = m
		s.order = append(s.order, m.ID)
	}
	sort.Strings(s.order)
	return s
}

func (s *staticMapStore) GetMap(ctx context.Context, mapID string) (model.Map, error) {
	m, ok := s.byID[mapID]
	if !ok {
		return model.Map{}, errors.Mark(errors.Newf("app: map %q not configured", mapID), errors.ErrNotFound)
	}
	return m, nil
}

// All returns every configured map, sorted by id.
func (s *staticMapStore) All() []model.Map {
	out := make([]model.Map, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.byID[id])
	}
	return out
}

// OtherMaps implements mapactor.Peers: every configured map except mapID.
func (s *staticMapStore) OtherMaps(mapID string) []model.Map {
	out := make([]model.Map, 0, len(s.order))
	for _, id := range s.order {
		if id != mapID {
			out = append(out, s.byID[id])
		}
	}
	return out
}

// peerRouter completes mapactor.Peers by routing System lookups to the
// right actor through the registry, since a satellite needs to read the
// main actor's raw view (and vice versa) without importing mapactor's
// concrete Actor type into the store layer.
type peerRouter struct {
	maps     *staticMapStore
	registry *registry.Registry[*mapactor.Actor]
}

func (p *peerRouter) System(mapID string, solarSystemID int64) (model.System, bool) {
	actor, ok := p.registry.Get("map", mapID)
	if !ok {
		return model.System{}, false
	}
	return actor.System(mapID, solarSystemID)
}

func (p *peerRouter) OtherMaps(mapID string) []model.Map {
	return p.maps.OtherMaps(mapID)
}

// registryViewSource implements topology.RawViewSource over the actor
// registry, so the topology pass never needs its own copy of map state.
type registryViewSource struct {
	registry *registry.Registry[*mapactor.Actor]
}

func (r *registryViewSource) RawView(mapID string) model.View {
	actor, ok := r.registry.Get("map", mapID)
	if !ok {
		return model.View{}
	}
	return actor.RawView()
}
