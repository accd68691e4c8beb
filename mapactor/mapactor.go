// Package mapactor implements the per-map state machine: one actor per
// configured map, booted from its CRUD record and the remote identity
// endpoint, kept in sync by SSE-sourced events and a periodic full
// refresh, and exposing a raw view (exactly what the remote API/events
// say) plus a filtered view (BFS-reachable from the map's home system).
package mapactor

import (
	"context"
	"sync"
	"time"

	"github.com/wanderer-industries/topologyd/cache"
	"github.com/wanderer-industries/topologyd/logger"
	"github.com/wanderer-industries/topologyd/model"
	"github.com/wanderer-industries/topologyd/pubsub"
	"github.com/wanderer-industries/topologyd/topology"
	"go.uber.org/zap"
)

// RefreshInterval is how often an actor re-fetches its full system list
// from the remote API, independent of incremental events.
const RefreshInterval = 30 * time.Minute

// bootStopDelay is how long an actor with no resolvable server_map_id
// waits before stopping itself, mirroring a scheduled ":stop" message.
const bootStopDelay = 100 * time.Millisecond

// refreshStartDelay is how long an actor waits after subscribing before
// its first scheduled refresh, mirroring a scheduled ":refresh_data".
const refreshStartDelay = 100 * time.Millisecond

// MapStore fetches a Map record by id. A real deployment backs this with
// its own database; mapactor only consumes it.
type MapStore interface {
	GetMap(ctx context.Context, mapID string) (model.Map, error)
}

// RemoteAPI is the subset of the remote topology API client an actor
// needs, narrowed to keep mapactor decoupled from apiclient's concrete
// type (apiclient.Client satisfies this interface unchanged).
type RemoteAPI interface {
	GetMapIdentity(ctx context.Context, m model.Map) (string, error)
	GetMapSystems(ctx context.Context, m model.Map) (model.View, error)
	GetSystem(ctx context.Context, m model.Map, solarSystemID int64) (model.System, error)
	GetConnections(ctx context.Context, m model.Map, source, target int64) ([]model.Connection, error)
	UpsertSystemsAndConnections(ctx context.Context, m model.Map, systems []model.System, connections []model.Connection) error
	PatchSystem(ctx context.Context, m model.Map, solarSystemID int64, attributes map[string]any) error
	DeleteSystem(ctx context.Context, m model.Map, solarSystemID int64) error
	DeleteConnection(ctx context.Context, m model.Map, source, target int64) error
}

// Peers gives a satellite actor read access to the main map's actor (to
// fetch a system by id) and lets the main actor discover every other
// configured map (to broadcast to their topics).
type Peers interface {
	System(mapID string, solarSystemID int64) (model.System, bool)
	OtherMaps(mapID string) []model.Map
}

// Actor is one map's state machine.
type Actor struct {
	mapID     string
	mapStore  MapStore
	remote    RemoteAPI
	bus       *pubsub.Bus
	peers     Peers
	shared    *cache.Cache // maps_shared_cache / maps_cache bookkeeping
	log       *zap.SugaredLogger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu           sync.Mutex
	state        model.MapState
	rawView      model.View
	filteredView model.View
}

// New creates an Actor for mapID. shared may be nil to skip the
// maps_shared_cache/maps_cache bookkeeping (tests).
func New(mapID string, mapStore MapStore, remote RemoteAPI, bus *pubsub.Bus, peers Peers, shared *cache.Cache) *Actor {
	return &Actor{
		mapID:    mapID,
		mapStore: mapStore,
		remote:   remote,
		bus:      bus,
		peers:    peers,
		shared:   shared,
		log:      logger.ComponentLogger("mapactor").With("map_id", mapID),
	}
}

// MapID returns the id this actor was created for.
func (a *Actor) MapID() string { return a.mapID }

// State returns a copy of the actor's current bookkeeping state.
func (a *Actor) State() model.MapState {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// Map returns the actor's current Map record.
func (a *Actor) Map() model.Map {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state.Map
}

// RawView returns a copy of the actor's raw view.
func (a *Actor) RawView() model.View {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.rawView
}

// FilteredView returns a copy of the actor's filtered (BFS-from-home) view.
func (a *Actor) FilteredView() model.View {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.filteredView
}

// System implements Peers.System for this actor: a satellite's boot or
// event handler can fetch one of this actor's systems by id.
func (a *Actor) System(mapID string, solarSystemID int64) (model.System, bool) {
	if mapID != a.mapID {
		return model.System{}, false
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, sys := range a.rawView.Systems {
		if sys.SolarSystemID == solarSystemID {
			return sys, true
		}
	}
	return model.System{}, false
}

// Start runs the boot sequence (init -> load_state -> start_map)
// synchronously, then — if the map resolved a server_map_id — launches
// the event-consumption and periodic-refresh loops in the background.
func (a *Actor) Start(ctx context.Context) error {
	a.ctx, a.cancel = context.WithCancel(ctx)

	if err := a.loadState(a.ctx); err != nil {
		return err
	}
	a.startMap(a.ctx)
	return nil
}

// Stop halts all of this actor's background loops and waits for them to exit.
func (a *Actor) Stop() {
	if a.cancel != nil {
		a.cancel()
	}
	a.wg.Wait()
}

// loadState fetches the Map record, registers it as the shared "main"
// map if applicable, and resolves the remote server_map_id.
func (a *Actor) loadState(ctx context.Context) error {
	m, err := a.mapStore.GetMap(ctx, a.mapID)
	if err != nil {
		return err
	}

	a.mu.Lock()
	a.state.MapID = a.mapID
	a.state.Map = m
	a.mu.Unlock()

	if m.IsMain && a.shared != nil {
		_ = a.shared.Put("shared:main", a.mapID, -1)
	}

	serverMapID, err := a.remote.GetMapIdentity(ctx, m)
	if err != nil {
		a.log.Warnw("failed to resolve remote map identity, staying unstarted", "error", err)
		return nil
	}

	a.mu.Lock()
	a.state.ServerMapID = &serverMapID
	a.mu.Unlock()
	return nil
}

// startMap either schedules a self-stop (no resolvable server_map_id) or
// subscribes to this map's topics and starts the background loops.
func (a *Actor) startMap(ctx context.Context) {
	a.mu.Lock()
	serverMapID := a.state.ServerMapID
	mapURL := a.state.Map.URL
	a.mu.Unlock()

	if serverMapID == nil {
		a.wg.Add(1)
		go func() {
			defer a.wg.Done()
			select {
			case <-ctx.Done():
			case <-time.After(bootStopDelay):
				a.cancel()
			}
		}()
		return
	}

	mapTopic := a.bus.Subscribe(mapURL)
	serverTopic := a.bus.Subscribe("server:" + a.mapID)

	a.wg.Add(3)
	go a.consumeMapEvents(ctx, mapTopic)
	go a.consumeServerEvents(ctx, serverTopic)
	go a.refreshLoop(ctx)

	if a.shared != nil {
		_ = a.shared.Put("started:"+a.mapID, true, -1)
	}
}

func (a *Actor) consumeMapEvents(ctx context.Context, ch chan any) {
	defer a.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-ch:
			env, ok := msg.(model.EventEnvelope)
			if !ok {
				continue
			}
			a.handleEvent(ctx, env)
		}
	}
}

func (a *Actor) consumeServerEvents(ctx context.Context, ch chan any) {
	defer a.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-ch:
			evt, ok := msg.(topology.BorderSystemsDetectedEvent)
			if !ok {
				continue
			}
			a.handleBorderSystemsDetected(ctx, evt)
		}
	}
}

// refreshLoop re-fetches the full system list on RefreshInterval,
// replacing the raw view wholesale on success and keeping the existing
// view (just logging) on failure. Always reschedules.
func (a *Actor) refreshLoop(ctx context.Context) {
	defer a.wg.Done()

	select {
	case <-ctx.Done():
		return
	case <-time.After(refreshStartDelay):
	}

	for {
		a.refreshOnce(ctx)
		select {
		case <-ctx.Done():
			return
		case <-time.After(RefreshInterval):
		}
	}
}

func (a *Actor) refreshOnce(ctx context.Context) {
	m := a.Map()
	view, err := a.remote.GetMapSystems(ctx, m)
	if err != nil {
		a.log.Warnw("periodic refresh failed, keeping existing view", "error", err)
		return
	}

	a.mu.Lock()
	a.rawView = view
	a.state.LastAPIRefreshAt = time.Now()
	a.mu.Unlock()

	a.rebuildAndBroadcast()
}

// rebuildAndBroadcast recomputes the filtered view and broadcasts
// data_updated on the map's own id topic.
func (a *Actor) rebuildAndBroadcast() {
	a.mu.Lock()
	a.filteredView = buildFilteredView(a.rawView, a.mapID)
	a.mu.Unlock()

	if a.bus != nil {
		a.bus.Broadcast(a.mapID, model.EventEnvelope{Type: "data_updated", MapID: a.mapID})
	}
}
