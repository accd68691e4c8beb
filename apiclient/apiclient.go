// Package apiclient is the remote topology API client: map identity,
// systems/connections reads and writes, and the SSE stream URL, all
// authenticated with a map's public API key and routed through
// httpclient's "map" service preset.
package apiclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/wanderer-industries/topologyd/errors"
	"github.com/wanderer-industries/topologyd/httpclient"
	"github.com/wanderer-industries/topologyd/model"
)

// MapStore is the CRUD facade a map actor uses to fetch a Map record by
// id. A real deployment backs this with its own database; topologyd only
// consumes it.
type MapStore interface {
	GetMap(ctx context.Context, mapID string) (model.Map, error)
}

// Client talks to one remote topology API instance, scoped to whatever
// Map is passed to each call (each map carries its own URL and key).
type Client struct {
	http *httpclient.Client
}

// New creates a Client backed by http.
func New(http *httpclient.Client) *Client {
	return &Client{http: http}
}

func (c *Client) auth(m model.Map) httpclient.Auth {
	return httpclient.Auth{Type: httpclient.AuthBearer, Token: m.PublicAPIKey}
}

func mapsPath(m model.Map, suffix string) (string, error) {
	u, err := url.Parse(m.URL)
	if err != nil {
		return "", errors.Wrapf(err, "apiclient: invalid map url %q", m.URL)
	}
	slug := strings.Trim(u.Path, "/")
	base := &url.URL{Scheme: u.Scheme, Host: u.Host, Path: "/api/maps/" + slug + suffix}
	return base.String(), nil
}

type dataEnvelope[T any] struct {
	Data T `json:"data"`
}

func (c *Client) get(ctx context.Context, target string, auth httpclient.Auth, out any) (http.Header, error) {
	resp, err := c.http.Do(ctx, httpclient.Request{
		Method:  http.MethodGet,
		URL:     target,
		Service: httpclient.ServiceMap.Name,
	}, auth)
	if err != nil {
		return nil, err
	}
	if err := checkStatus(resp); err != nil {
		return resp.Headers, err
	}
	if out != nil {
		if err := json.Unmarshal(resp.Body, out); err != nil {
			return resp.Headers, errors.Wrap(err, "apiclient: decoding response")
		}
	}
	return resp.Headers, nil
}

func (c *Client) write(ctx context.Context, method, target string, auth httpclient.Auth, body any) error {
	var raw []byte
	var err error
	if body != nil {
		raw, err = json.Marshal(body)
		if err != nil {
			return errors.Wrap(err, "apiclient: encoding request body")
		}
	}

	resp, err := c.http.Do(ctx, httpclient.Request{
		Method:  method,
		URL:     target,
		Service: httpclient.ServiceMap.Name,
		Headers: map[string]string{"Content-Type": "application/json"},
		Body:    raw,
	}, auth)
	if err != nil {
		return err
	}
	return checkStatus(resp)
}

func checkStatus(resp httpclient.Response) error {
	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return errors.Mark(errors.Newf("apiclient: unauthorized (status %d)", resp.StatusCode), errors.ErrConfig)
	case resp.StatusCode == http.StatusNotFound:
		return errors.Mark(errors.Newf("apiclient: not found (status %d)", resp.StatusCode), errors.ErrNotFound)
	case resp.StatusCode >= 400:
		return errors.Newf("apiclient: request failed (status %d): %s", resp.StatusCode, string(resp.Body))
	}
	return nil
}

// mapIdentity is the decoded {data: {id, ...}} response of GET /api/maps/<slug>.
type mapIdentity struct {
	ID string `json:"id"`
}

// GetMapIdentity resolves the remote server-side id for m, and validates
// the remote API's advertised version against the supported range.
func (c *Client) GetMapIdentity(ctx context.Context, m model.Map) (string, error) {
	target, err := mapsPath(m, "")
	if err != nil {
		return "", err
	}

	var env dataEnvelope[mapIdentity]
	headers, err := c.get(ctx, target, c.auth(m), &env)
	if err != nil {
		return "", errors.Wrapf(err, "apiclient: resolving identity for map %s", m.ID)
	}

	if err := checkRemoteVersion(headers); err != nil {
		return "", err
	}

	return env.Data.ID, nil
}

type systemsAndConnections struct {
	Systems     []model.System     `json:"systems"`
	Connections []model.Connection `json:"connections"`
}

// GetMapSystems fetches the full systems+connections view for m.
func (c *Client) GetMapSystems(ctx context.Context, m model.Map) (model.View, error) {
	target, err := mapsPath(m, "/systems")
	if err != nil {
		return model.View{}, err
	}

	var env dataEnvelope[systemsAndConnections]
	if _, err := c.get(ctx, target, c.auth(m), &env); err != nil {
		return model.View{}, errors.Wrapf(err, "apiclient: fetching systems for map %s", m.ID)
	}

	return model.View{Systems: env.Data.Systems, Connections: env.Data.Connections}, nil
}

type systemAttributes struct {
	Attributes model.System `json:"attributes"`
}

// GetSystem fetches one system by its EVE solar system id.
func (c *Client) GetSystem(ctx context.Context, m model.Map, solarSystemID int64) (model.System, error) {
	target, err := mapsPath(m, "/systems/"+strconv.FormatInt(solarSystemID, 10))
	if err != nil {
		return model.System{}, err
	}

	var env dataEnvelope[[]systemAttributes]
	if _, err := c.get(ctx, target, c.auth(m), &env); err != nil {
		return model.System{}, errors.Wrapf(err, "apiclient: fetching system %d for map %s", solarSystemID, m.ID)
	}
	if len(env.Data) == 0 {
		return model.System{}, errors.Mark(errors.Newf("apiclient: system %d not found on map %s", solarSystemID, m.ID), errors.ErrNotFound)
	}
	return env.Data[0].Attributes, nil
}

// GetConnections fetches connections between source and target (order
// agnostic on the wire; the server matches the unordered pair).
func (c *Client) GetConnections(ctx context.Context, m model.Map, source, target int64) ([]model.Connection, error) {
	base, err := mapsPath(m, "/connections")
	if err != nil {
		return nil, err
	}
	q := url.Values{}
	q.Set("source", strconv.FormatInt(source, 10))
	q.Set("target", strconv.FormatInt(target, 10))

	var env dataEnvelope[[]model.Connection]
	if _, err := c.get(ctx, base+"?"+q.Encode(), c.auth(m), &env); err != nil {
		return nil, errors.Wrapf(err, "apiclient: fetching connections for map %s", m.ID)
	}
	return env.Data, nil
}

// UpsertSystemsAndConnections batch-upserts systems and/or connections.
// Either slice may be empty.
func (c *Client) UpsertSystemsAndConnections(ctx context.Context, m model.Map, systems []model.System, connections []model.Connection) error {
	target, err := mapsPath(m, "/systems_and_connections")
	if err != nil {
		return err
	}

	body := map[string]any{}
	if len(systems) > 0 {
		body["systems"] = systems
	}
	if len(connections) > 0 {
		body["connections"] = connections
	}

	if err := c.write(ctx, http.MethodPost, target, c.auth(m), body); err != nil {
		return errors.Wrapf(err, "apiclient: upserting systems/connections for map %s", m.ID)
	}
	return nil
}

// PatchSystem updates a single system's attributes (e.g. labels).
func (c *Client) PatchSystem(ctx context.Context, m model.Map, solarSystemID int64, attributes map[string]any) error {
	target, err := mapsPath(m, "/systems/"+strconv.FormatInt(solarSystemID, 10))
	if err != nil {
		return err
	}
	if err := c.write(ctx, http.MethodPatch, target, c.auth(m), attributes); err != nil {
		return errors.Wrapf(err, "apiclient: patching system %d for map %s", solarSystemID, m.ID)
	}
	return nil
}

// DeleteSystem removes a system by its EVE solar system id.
func (c *Client) DeleteSystem(ctx context.Context, m model.Map, solarSystemID int64) error {
	target, err := mapsPath(m, "/systems/"+strconv.FormatInt(solarSystemID, 10))
	if err != nil {
		return err
	}
	if err := c.write(ctx, http.MethodDelete, target, c.auth(m), nil); err != nil {
		return errors.Wrapf(err, "apiclient: deleting system %d for map %s", solarSystemID, m.ID)
	}
	return nil
}

// DeleteConnection removes the undirected connection between source and target.
func (c *Client) DeleteConnection(ctx context.Context, m model.Map, source, target int64) error {
	base, err := mapsPath(m, "/connections")
	if err != nil {
		return err
	}
	body := map[string]any{"solar_system_source": source, "solar_system_target": target}
	if err := c.write(ctx, http.MethodDelete, base, c.auth(m), body); err != nil {
		return errors.Wrapf(err, "apiclient: deleting connection %d-%d for map %s", source, target, m.ID)
	}
	return nil
}

// StreamURL returns m's URL unchanged, the value sse.Config.MapURL takes;
// sse.Client assembles the events/stream endpoint and query from it.
func (c *Client) StreamURL(m model.Map) string {
	return m.URL
}
