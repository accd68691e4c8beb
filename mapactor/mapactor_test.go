package mapactor

import (
	"context"
	"testing"
	"time"

	"github.com/wanderer-industries/topologyd/cache"
	"github.com/wanderer-industries/topologyd/model"
	"github.com/wanderer-industries/topologyd/pubsub"
)

type fakeMapStore map[string]model.Map

func (f fakeMapStore) GetMap(ctx context.Context, mapID string) (model.Map, error) {
	return f[mapID], nil
}

type fakeRemote struct {
	identity        string
	identityErr     error
	view            model.View
	upsertCalls     []model.System
	upsertConnCalls []model.Connection
}

func (f *fakeRemote) GetMapIdentity(ctx context.Context, m model.Map) (string, error) {
	return f.identity, f.identityErr
}
func (f *fakeRemote) GetMapSystems(ctx context.Context, m model.Map) (model.View, error) {
	return f.view, nil
}
func (f *fakeRemote) GetSystem(ctx context.Context, m model.Map, id int64) (model.System, error) {
	return model.System{}, nil
}
func (f *fakeRemote) GetConnections(ctx context.Context, m model.Map, source, target int64) ([]model.Connection, error) {
	return nil, nil
}
func (f *fakeRemote) UpsertSystemsAndConnections(ctx context.Context, m model.Map, systems []model.System, connections []model.Connection) error {
	f.upsertCalls = append(f.upsertCalls, systems...)
	f.upsertConnCalls = append(f.upsertConnCalls, connections...)
	return nil
}
func (f *fakeRemote) PatchSystem(ctx context.Context, m model.Map, id int64, attrs map[string]any) error {
	return nil
}
func (f *fakeRemote) DeleteSystem(ctx context.Context, m model.Map, id int64) error { return nil }
func (f *fakeRemote) DeleteConnection(ctx context.Context, m model.Map, source, target int64) error {
	return nil
}

type fakePeers struct {
	actors map[string]*Actor
	maps   []model.Map
}

func (f *fakePeers) System(mapID string, solarSystemID int64) (model.System, bool) {
	a, ok := f.actors[mapID]
	if !ok {
		return model.System{}, false
	}
	return a.System(mapID, solarSystemID)
}
func (f *fakePeers) OtherMaps(mapID string) []model.Map {
	var out []model.Map
	for _, m := range f.maps {
		if m.ID != mapID {
			out = append(out, m)
		}
	}
	return out
}

// Test Case 1: a successful boot subscribes and marks the map started.
func TestStart_SuccessfulBoot(t *testing.T) {
	store := fakeMapStore{"m1": {ID: "m1", URL: "http://remote/m1", IsMain: true}}
	remote := &fakeRemote{identity: "server-1"}
	bus := pubsub.New()
	shared := cache.New()

	a := New("m1", store, remote, bus, &fakePeers{}, shared)
	if err := a.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer a.Stop()

	if a.State().ServerMapID == nil || *a.State().ServerMapID != "server-1" {
		t.Fatalf("ServerMapID = %v, want server-1", a.State().ServerMapID)
	}
	if v, err := shared.Get("shared:main"); err != nil || v != "m1" {
		t.Errorf("shared main = %v, %v, want m1", v, err)
	}
	if v, err := shared.Get("started:m1"); err != nil || v != true {
		t.Errorf("started flag = %v, %v, want true", v, err)
	}
}

// Test Case 2: a failed identity lookup leaves server_map_id nil and the
// actor self-stops shortly after.
func TestStart_FailedIdentityStopsItself(t *testing.T) {
	store := fakeMapStore{"m1": {ID: "m1", URL: "http://remote/m1"}}
	remote := &fakeRemote{identityErr: context.DeadlineExceeded}
	bus := pubsub.New()

	a := New("m1", store, remote, bus, &fakePeers{}, cache.New())
	if err := a.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	if a.State().ServerMapID != nil {
		t.Fatalf("ServerMapID = %v, want nil", a.State().ServerMapID)
	}

	done := make(chan struct{})
	go func() { a.Stop(); close(done) }()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("actor did not self-stop after a failed boot")
	}
}

// Test Case 3: add_system on a satellite fetches the system from the main
// actor, strips its position, upserts, and appends locally.
func TestOnAddSystem_SatelliteUpsertsFromMain(t *testing.T) {
	bus := pubsub.New()
	shared := cache.New()
	_ = shared.Put("shared:main", "main", -1)

	mainActor := New("main", fakeMapStore{}, &fakeRemote{}, bus, &fakePeers{}, shared)
	mainActor.mu.Lock()
	mainActor.rawView.Systems = []model.System{{SolarSystemID: 1, Name: "Jita", PositionX: 10, PositionY: 20}}
	mainActor.mu.Unlock()

	peers := &fakePeers{actors: map[string]*Actor{"main": mainActor}}
	satRemote := &fakeRemote{}
	sat := New("sat", fakeMapStore{}, satRemote, bus, peers, shared)
	sat.mu.Lock()
	sat.state.Map = model.Map{ID: "sat"}
	sat.mu.Unlock()

	sat.handleEvent(context.Background(), model.EventEnvelope{
		Type:    model.EventAddSystem,
		Payload: map[string]any{"solar_system_id": float64(1)},
	})

	if len(satRemote.upsertCalls) != 1 {
		t.Fatalf("upsert calls = %d, want 1", len(satRemote.upsertCalls))
	}
	if satRemote.upsertCalls[0].PositionX != 0 || satRemote.upsertCalls[0].PositionY != 0 {
		t.Errorf("upserted system position = (%v,%v), want stripped to (0,0)",
			satRemote.upsertCalls[0].PositionX, satRemote.upsertCalls[0].PositionY)
	}
	if _, ok := sat.findSystem(1); !ok {
		t.Error("expected system 1 to be appended locally on the satellite")
	}
}

// Test Case 4: the filtered view is the BFS-reachable set from the home
// system (status == 1), with map_id rewritten.
func TestFilteredView_BFSFromHome(t *testing.T) {
	raw := model.View{
		Systems: []model.System{
			{SolarSystemID: 1, Status: 1}, // home
			{SolarSystemID: 2},
			{SolarSystemID: 3}, // unreachable
		},
		Connections: []model.Connection{
			{SolarSystemSource: 1, SolarSystemTarget: 2},
		},
	}
	view := buildFilteredView(raw, "m1")
	if len(view.Systems) != 2 {
		t.Fatalf("filtered systems = %+v, want 2 (home + reachable)", view.Systems)
	}
	for _, s := range view.Systems {
		if s.MapID != "m1" {
			t.Errorf("system %d map_id = %q, want m1", s.SolarSystemID, s.MapID)
		}
	}
}

// Test Case 5: with no home system, the filtered view is empty.
func TestFilteredView_NoHomeIsEmpty(t *testing.T) {
	raw := model.View{Systems: []model.System{{SolarSystemID: 1}}}
	view := buildFilteredView(raw, "m1")
	if len(view.Systems) != 0 || len(view.Connections) != 0 {
		t.Errorf("view = %+v, want empty", view)
	}
}

// Test Case 6: toggleLabel adds "c" when wanted and absent, removes it
// when unwanted and present, and reports no change otherwise.
func TestToggleLabel(t *testing.T) {
	labels, changed := toggleLabel(nil, "c", true)
	if !changed || len(labels) != 1 || labels[0] != "c" {
		t.Fatalf("add: labels=%v changed=%v", labels, changed)
	}
	labels, changed = toggleLabel(labels, "c", true)
	if changed {
		t.Fatalf("re-adding an existing label should report no change")
	}
	labels, changed = toggleLabel(labels, "c", false)
	if !changed || len(labels) != 0 {
		t.Fatalf("remove: labels=%v changed=%v", labels, changed)
	}
}
