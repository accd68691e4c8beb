// Package topology runs the cross-map border-detection and
// cached-view-assembly pass: given every map's current raw view, it finds
// systems shared between the main map and its satellites, tells every map
// which of its systems are borders, and assembles a deduplicated,
// enriched view per map for read-only consumers.
package topology

import (
	"context"
	"sort"
	"strconv"

	"github.com/wanderer-industries/topologyd/cache"
	"github.com/wanderer-industries/topologyd/logger"
	"github.com/wanderer-industries/topologyd/model"
	"github.com/wanderer-industries/topologyd/pubsub"
	"go.uber.org/zap"
)

// StaticInfoProvider resolves per-system static info (e.g. region, class,
// effects) by EVE solar system id. A real deployment backs this with an
// ESI-derived cache; topology only consumes it.
type StaticInfoProvider interface {
	GetStaticInfo(ctx context.Context, solarSystemID int64) (any, error)
}

// RawViewSource gives the pass read access to every map's current raw
// view, keyed by map id (the equivalent of maps_all_data_cache).
type RawViewSource interface {
	RawView(mapID string) model.View
}

// BorderSystemsDetectedEvent is broadcast on "server:<map.id>" for every
// map, even when it has zero borders.
type BorderSystemsDetectedEvent struct {
	MapID         string  `json:"map_id"`
	BorderSystems []int64 `json:"border_systems"`
}

// CachedView is one map's deduplicated, enriched, filtered-for-read view.
type CachedView struct {
	Systems     []model.System
	Connections []model.Connection
}

// Result is the output of a Pass: per-map cached views, keyed by map id.
type Result struct {
	CachedByMapID map[string]CachedView
}

// Pass runs one full topology pass over maps.
type Pass struct {
	views       RawViewSource
	staticInfo  StaticInfoProvider
	staticCache *cache.Cache
	bus         *pubsub.Bus
	log         *zap.SugaredLogger
}

// New creates a Pass. staticInfo may be nil to skip static-info overlay
// (e.g. in tests); staticCache may be nil to skip caching and hit
// staticInfo on every enrichment.
func New(views RawViewSource, staticInfo StaticInfoProvider, staticCache *cache.Cache, bus *pubsub.Bus) *Pass {
	return &Pass{
		views:       views,
		staticInfo:  staticInfo,
		staticCache: staticCache,
		bus:         bus,
		log:         logger.ComponentLogger("topology"),
	}
}

// neighborSet is {map_id -> set(neighbor_solar_system_id)} for one system.
type neighborSet map[string]map[int64]bool

// Run executes the seven-step pass over maps (which need not be sorted;
// Run sorts a copy with the main map first).
func (p *Pass) Run(ctx context.Context, maps []model.Map) Result {
	sorted := sortMainFirst(maps)

	registry := p.buildRegistry(sorted)
	borders := p.detectBorders(sorted, registry)
	p.notify(sorted, borders)

	return Result{CachedByMapID: p.assemble(ctx, sorted, borders)}
}

// sortMainFirst returns a copy of maps with is_main descending.
func sortMainFirst(maps []model.Map) []model.Map {
	sorted := make([]model.Map, len(maps))
	copy(sorted, maps)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].IsMain && !sorted[j].IsMain
	})
	return sorted
}

// buildRegistry builds {solar_system_id -> {map_id -> neighbor set}} from
// every map's raw view.
func (p *Pass) buildRegistry(maps []model.Map) map[int64]neighborSet {
	registry := make(map[int64]neighborSet)

	ensure := func(systemID int64, mapID string) map[int64]bool {
		ns, ok := registry[systemID]
		if !ok {
			ns = make(neighborSet)
			registry[systemID] = ns
		}
		neighbors, ok := ns[mapID]
		if !ok {
			neighbors = make(map[int64]bool)
			ns[mapID] = neighbors
		}
		return neighbors
	}

	for _, m := range maps {
		view := p.views.RawView(m.ID)
		for _, sys := range view.Systems {
			// Ensure every system known to the map has a registry entry,
			// even if it has no connections yet.
			ensure(sys.SolarSystemID, m.ID)
		}
		for _, conn := range view.Connections {
			ensure(conn.SolarSystemSource, m.ID)[conn.SolarSystemTarget] = true
			ensure(conn.SolarSystemTarget, m.ID)[conn.SolarSystemSource] = true
		}
	}

	return registry
}

// borderMembership is the result of border detection for one system: the
// ids of the maps it belongs to as a border, main first.
type borderMembership map[int64][]string

// detectBorders applies the main-vs-satellite disjoint-neighbor-set rule.
func (p *Pass) detectBorders(maps []model.Map, registry map[int64]neighborSet) borderMembership {
	main, ok := findMain(maps)
	if !ok {
		return borderMembership{}
	}

	result := make(borderMembership)
	for systemID, byMap := range registry {
		mainNeighbors, inMain := byMap[main.ID]
		if !inMain || len(mainNeighbors) == 0 {
			continue
		}

		isBorder := true
		var memberMaps []string
		for _, m := range maps {
			if m.ID == main.ID {
				continue
			}
			neighbors, inSat := byMap[m.ID]
			if !inSat {
				continue
			}
			if len(neighbors) == 0 || !disjoint(neighbors, mainNeighbors) {
				isBorder = false
				break
			}
			memberMaps = append(memberMaps, m.ID)
		}

		if isBorder && len(memberMaps) > 0 {
			result[systemID] = append([]string{main.ID}, memberMaps...)
		}
	}
	return result
}

func findMain(maps []model.Map) (model.Map, bool) {
	for _, m := range maps {
		if m.IsMain {
			return m, true
		}
	}
	return model.Map{}, false
}

func disjoint(a, b map[int64]bool) bool {
	for id := range a {
		if b[id] {
			return false
		}
	}
	return true
}

// notify broadcasts border_systems_detected on server:<map.id> for every
// map, even those with zero detected borders.
func (p *Pass) notify(maps []model.Map, borders borderMembership) {
	if p.bus == nil {
		return
	}

	byMap := make(map[string][]int64, len(maps))
	for systemID, memberMaps := range borders {
		for _, mapID := range memberMaps {
			byMap[mapID] = append(byMap[mapID], systemID)
		}
	}

	for _, m := range maps {
		systems := byMap[m.ID]
		sort.Slice(systems, func(i, j int) bool { return systems[i] < systems[j] })
		p.bus.Broadcast("server:"+m.ID, BorderSystemsDetectedEvent{
			MapID:         m.ID,
			BorderSystems: systems,
		})
	}
}

// assemble performs deduplicated, enriched assembly: main claims a system
// or connection first, satellites only contribute what main doesn't cover.
func (p *Pass) assemble(ctx context.Context, maps []model.Map, borders borderMembership) map[string]CachedView {
	usedSystems := make(map[int64]bool)
	usedConnections := make(map[model.ConnectionKey]bool)
	out := make(map[string]CachedView, len(maps))

	for _, m := range maps {
		view := p.views.RawView(m.ID)

		var systems []model.System
		for _, sys := range view.Systems {
			if usedSystems[sys.SolarSystemID] {
				continue
			}
			usedSystems[sys.SolarSystemID] = true
			systems = append(systems, p.enrich(ctx, sys, borders))
		}

		var connections []model.Connection
		for _, conn := range view.Connections {
			key := conn.Key()
			if usedConnections[key] {
				continue
			}
			usedConnections[key] = true
			connections = append(connections, conn)
		}

		out[m.ID] = CachedView{Systems: systems, Connections: connections}
	}

	return out
}

// enrich sets is_border/border_maps and overlays cached static info.
func (p *Pass) enrich(ctx context.Context, sys model.System, borders borderMembership) model.System {
	if memberMaps, ok := borders[sys.SolarSystemID]; ok {
		sys.IsBorder = true
		sys.BorderMaps = memberMaps
	}

	if info := p.staticInfoFor(ctx, sys.SolarSystemID); info != nil {
		sys.StaticInfo = info
	}
	return sys
}

func (p *Pass) staticInfoFor(ctx context.Context, solarSystemID int64) any {
	if p.staticInfo == nil {
		return nil
	}

	key := "static_info:" + strconv.FormatInt(solarSystemID, 10)
	if p.staticCache != nil {
		if v, err := p.staticCache.Get(key); err == nil {
			return v
		}
	}

	info, err := p.staticInfo.GetStaticInfo(ctx, solarSystemID)
	if err != nil {
		p.log.Debugw("static info lookup failed", "solar_system_id", solarSystemID, "error", err)
		return nil
	}

	if p.staticCache != nil {
		_ = p.staticCache.Put(key, info, cache.TTLSystem)
	}
	return info
}

