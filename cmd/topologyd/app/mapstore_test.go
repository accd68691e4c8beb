package app

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wanderer-industries/topologyd/errors"
	"github.com/wanderer-industries/topologyd/mapactor"
	"github.com/wanderer-industries/topologyd/model"
	"github.com/wanderer-industries/topologyd/registry"
)

func testMaps() []model.Map {
	return []model.Map{
		{ID: "main", Title: "Main", IsMain: true},
		{ID: "satellite", Title: "Satellite"},
	}
}

func TestStaticMapStore_GetMap(t *testing.T) {
	s := newStaticMapStore(testMaps())

	m, err := s.GetMap(context.Background(), "main")
	require.NoError(t, err)
	assert.Equal(t, "Main", m.Title)

	_, err = s.GetMap(context.Background(), "nope")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrNotFound))
}

func TestStaticMapStore_All(t *testing.T) {
	s := newStaticMapStore(testMaps())
	all := s.All()
	require.Len(t, all, 2)
	assert.Equal(t, "main", all[0].ID)
	assert.Equal(t, "satellite", all[1].ID)
}

func TestStaticMapStore_OtherMaps(t *testing.T) {
	s := newStaticMapStore(testMaps())
	others := s.OtherMaps("main")
	require.Len(t, others, 1)
	assert.Equal(t, "satellite", others[0].ID)
}

func newTestRegistry(t *testing.T) *registry.Registry[*mapactor.Actor] {
	t.Helper()
	reg, err := registry.NewTyped[*mapactor.Actor]("")
	require.NoError(t, err)
	return reg
}

func TestPeerRouter_System_UnregisteredMap(t *testing.T) {
	maps := newStaticMapStore(testMaps())
	reg := newTestRegistry(t)
	router := &peerRouter{maps: maps, registry: reg}

	_, ok := router.System("main", 30000142)
	assert.False(t, ok, "no actor registered for main yet")
}

func TestPeerRouter_System_DelegatesToActor(t *testing.T) {
	maps := newStaticMapStore(testMaps())
	reg := newTestRegistry(t)
	router := &peerRouter{maps: maps, registry: reg}

	actor := mapactor.New("main", maps, nil, nil, router, nil)
	require.NoError(t, reg.Register("map", "main", "", actor))

	_, ok := router.System("main", 30000142)
	assert.False(t, ok, "actor has no systems loaded, but the lookup must not panic")
}

func TestPeerRouter_OtherMaps(t *testing.T) {
	maps := newStaticMapStore(testMaps())
	reg := newTestRegistry(t)
	router := &peerRouter{maps: maps, registry: reg}

	others := router.OtherMaps("satellite")
	require.Len(t, others, 1)
	assert.Equal(t, "main", others[0].ID)
}

func TestRegistryViewSource_RawView(t *testing.T) {
	maps := newStaticMapStore(testMaps())
	reg := newTestRegistry(t)
	source := &registryViewSource{registry: reg}

	assert.Equal(t, model.View{}, source.RawView("main"), "no actor registered yet")

	actor := mapactor.New("main", maps, nil, nil, nil, nil)
	require.NoError(t, reg.Register("map", "main", "", actor))

	assert.Equal(t, actor.RawView(), source.RawView("main"))
}
