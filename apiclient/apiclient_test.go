package apiclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/wanderer-industries/topologyd/httpclient"
	"github.com/wanderer-industries/topologyd/model"
)

func testMap(url string) model.Map {
	return model.Map{ID: "map-1", URL: url + "/some-slug", PublicAPIKey: "pub-key"}
}

// Test Case 1: GetMapIdentity decodes the {data: {id}} envelope and
// checks the request used Bearer auth with the map's public key.
func TestGetMapIdentity_DecodesAndAuths(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer pub-key" {
			t.Errorf("Authorization = %q, want Bearer pub-key", got)
		}
		if r.URL.Path != "/api/maps/some-slug" {
			t.Errorf("path = %q, want /api/maps/some-slug", r.URL.Path)
		}
		json.NewEncoder(w).Encode(map[string]any{"data": map[string]any{"id": "server-map-42"}})
	}))
	defer srv.Close()

	c := New(httpclient.NewForTest())
	id, err := c.GetMapIdentity(context.Background(), testMap(srv.URL))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id != "server-map-42" {
		t.Errorf("id = %q, want server-map-42", id)
	}
}

// Test Case 2: a remote API version outside the supported range is rejected.
func TestGetMapIdentity_RejectsIncompatibleVersion(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Api-Version", "9.0.0")
		json.NewEncoder(w).Encode(map[string]any{"data": map[string]any{"id": "server-map-42"}})
	}))
	defer srv.Close()

	c := New(httpclient.NewForTest())
	if _, err := c.GetMapIdentity(context.Background(), testMap(srv.URL)); err == nil {
		t.Fatal("expected an error for an incompatible remote API version")
	}
}

// Test Case 3: GetMapSystems decodes a full systems+connections view.
func TestGetMapSystems_DecodesView(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"data": map[string]any{
			"systems":     []map[string]any{{"solar_system_id": 30000142, "name": "Jita", "status": 1}},
			"connections": []map[string]any{{"solar_system_source": 30000142, "solar_system_target": 30000144}},
		}})
	}))
	defer srv.Close()

	c := New(httpclient.NewForTest())
	view, err := c.GetMapSystems(context.Background(), testMap(srv.URL))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(view.Systems) != 1 || view.Systems[0].SolarSystemID != 30000142 {
		t.Errorf("systems = %+v, want one system with id 30000142", view.Systems)
	}
	if len(view.Connections) != 1 {
		t.Errorf("connections = %+v, want one connection", view.Connections)
	}
}

// Test Case 4: a 404 from the remote surfaces as a not-found error.
func TestGetSystem_NotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := New(httpclient.NewForTest())
	if _, err := c.GetSystem(context.Background(), testMap(srv.URL), 30000142); err == nil {
		t.Fatal("expected a not-found error")
	}
}

// Test Case 5: UpsertSystemsAndConnections POSTs a JSON body containing
// only the non-empty slices.
func TestUpsertSystemsAndConnections_OmitsEmptySlices(t *testing.T) {
	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := New(httpclient.NewForTest())
	err := c.UpsertSystemsAndConnections(context.Background(), testMap(srv.URL),
		[]model.System{{SolarSystemID: 30000142}}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, hasConnections := body["connections"]; hasConnections {
		t.Error("expected connections key to be omitted when no connections were given")
	}
	if _, hasSystems := body["systems"]; !hasSystems {
		t.Error("expected systems key to be present")
	}
}
