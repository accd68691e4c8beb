package topology

import (
	"context"
	"testing"

	"github.com/wanderer-industries/topologyd/model"
	"github.com/wanderer-industries/topologyd/pubsub"
)

type fakeViews map[string]model.View

func (f fakeViews) RawView(mapID string) model.View { return f[mapID] }

func mainMap(id string) model.Map  { return model.Map{ID: id, IsMain: true} }
func satMap(id string) model.Map   { return model.Map{ID: id, IsMain: false} }

// Test Case 1: a system shared between main and one satellite, with
// disjoint neighbor sets on each side, is detected as a border and
// reported for both maps.
func TestRun_DetectsBorderSystem(t *testing.T) {
	views := fakeViews{
		"main": {
			Systems: []model.System{{SolarSystemID: 1}, {SolarSystemID: 2}},
			Connections: []model.Connection{
				{SolarSystemSource: 1, SolarSystemTarget: 2},
			},
		},
		"sat": {
			Systems: []model.System{{SolarSystemID: 1}, {SolarSystemID: 3}},
			Connections: []model.Connection{
				{SolarSystemSource: 1, SolarSystemTarget: 3},
			},
		},
	}
	bus := pubsub.New()
	ch := bus.Subscribe("server:main")
	defer bus.Unsubscribe("server:main", ch)

	pass := New(views, nil, nil, bus)
	result := pass.Run(context.Background(), []model.Map{satMap("sat"), mainMap("main")})

	mainView := result.CachedByMapID["main"]
	var sys1 model.System
	for _, s := range mainView.Systems {
		if s.SolarSystemID == 1 {
			sys1 = s
		}
	}
	if !sys1.IsBorder {
		t.Fatalf("system 1 = %+v, want is_border=true", sys1)
	}
	if len(sys1.BorderMaps) != 2 || sys1.BorderMaps[0] != "main" {
		t.Errorf("border maps = %v, want [main sat]", sys1.BorderMaps)
	}

	select {
	case msg := <-ch:
		evt, ok := msg.(BorderSystemsDetectedEvent)
		if !ok || len(evt.BorderSystems) != 1 || evt.BorderSystems[0] != 1 {
			t.Errorf("event = %+v, want border_systems=[1]", msg)
		}
	default:
		t.Fatal("expected a border_systems_detected broadcast")
	}
}

// Test Case 2: a shared system whose satellite neighbor set overlaps
// main's is not a border.
func TestRun_OverlappingNeighborsNotBorder(t *testing.T) {
	views := fakeViews{
		"main": {
			Systems: []model.System{{SolarSystemID: 1}, {SolarSystemID: 2}},
			Connections: []model.Connection{
				{SolarSystemSource: 1, SolarSystemTarget: 2},
			},
		},
		"sat": {
			Systems: []model.System{{SolarSystemID: 1}, {SolarSystemID: 2}},
			Connections: []model.Connection{
				{SolarSystemSource: 1, SolarSystemTarget: 2},
			},
		},
	}
	pass := New(views, nil, nil, nil)
	result := pass.Run(context.Background(), []model.Map{mainMap("main"), satMap("sat")})

	for _, s := range result.CachedByMapID["main"].Systems {
		if s.IsBorder {
			t.Errorf("system %d should not be a border", s.SolarSystemID)
		}
	}
}

// Test Case 3: deduplicated assembly gives main first claim; the
// satellite's copy of a system main already owns does not reappear.
func TestRun_MainClaimsSharedSystemFirst(t *testing.T) {
	views := fakeViews{
		"main": {Systems: []model.System{{SolarSystemID: 1, Name: "from-main"}}},
		"sat":  {Systems: []model.System{{SolarSystemID: 1, Name: "from-sat"}, {SolarSystemID: 2, Name: "sat-only"}}},
	}
	pass := New(views, nil, nil, nil)
	result := pass.Run(context.Background(), []model.Map{mainMap("main"), satMap("sat")})

	if len(result.CachedByMapID["main"].Systems) != 1 {
		t.Fatalf("main systems = %+v, want 1", result.CachedByMapID["main"].Systems)
	}
	if result.CachedByMapID["main"].Systems[0].Name != "from-main" {
		t.Errorf("main's system name = %q, want from-main", result.CachedByMapID["main"].Systems[0].Name)
	}

	satSystems := result.CachedByMapID["sat"].Systems
	if len(satSystems) != 1 || satSystems[0].SolarSystemID != 2 {
		t.Errorf("sat systems = %+v, want only system 2", satSystems)
	}
}

// Test Case 4: every map is notified, even ones with zero borders.
func TestRun_NotifiesEvenWithNoBorders(t *testing.T) {
	views := fakeViews{
		"main": {Systems: []model.System{{SolarSystemID: 1}}},
		"sat":  {Systems: []model.System{{SolarSystemID: 2}}},
	}
	bus := pubsub.New()
	satCh := bus.Subscribe("server:sat")
	defer bus.Unsubscribe("server:sat", satCh)

	pass := New(views, nil, nil, bus)
	pass.Run(context.Background(), []model.Map{mainMap("main"), satMap("sat")})

	select {
	case msg := <-satCh:
		evt := msg.(BorderSystemsDetectedEvent)
		if len(evt.BorderSystems) != 0 {
			t.Errorf("sat border systems = %v, want none", evt.BorderSystems)
		}
	default:
		t.Fatal("expected a broadcast for sat even with zero borders")
	}
}

// Test Case 5: deduplicated assembly also drops a connection already
// claimed by an earlier map.
func TestRun_DeduplicatesConnections(t *testing.T) {
	views := fakeViews{
		"main": {
			Systems:     []model.System{{SolarSystemID: 1}, {SolarSystemID: 2}},
			Connections: []model.Connection{{SolarSystemSource: 1, SolarSystemTarget: 2}},
		},
		"sat": {
			Systems:     []model.System{{SolarSystemID: 1}, {SolarSystemID: 2}},
			Connections: []model.Connection{{SolarSystemSource: 2, SolarSystemTarget: 1}},
		},
	}
	pass := New(views, nil, nil, nil)
	result := pass.Run(context.Background(), []model.Map{mainMap("main"), satMap("sat")})

	if len(result.CachedByMapID["main"].Connections) != 1 {
		t.Fatalf("main connections = %+v, want 1", result.CachedByMapID["main"].Connections)
	}
	if len(result.CachedByMapID["sat"].Connections) != 0 {
		t.Errorf("sat connections = %+v, want none (duplicate of main's)", result.CachedByMapID["sat"].Connections)
	}
}
