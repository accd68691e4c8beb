// Package app assembles every topologyd component (store, bus, map
// actors, topology pass, license validator, connection monitor, admin
// server) from a loaded config.Config into one runnable App. This is the
// "process-boot/config-loading glue" spec.md explicitly leaves to the
// embedder.
package app

import (
	"context"
	"database/sql"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/wanderer-industries/topologyd/apiclient"
	"github.com/wanderer-industries/topologyd/cache"
	"github.com/wanderer-industries/topologyd/config"
	"github.com/wanderer-industries/topologyd/connmon"
	"github.com/wanderer-industries/topologyd/errors"
	"github.com/wanderer-industries/topologyd/httpclient"
	"github.com/wanderer-industries/topologyd/license"
	"github.com/wanderer-industries/topologyd/logger"
	"github.com/wanderer-industries/topologyd/mapactor"
	"github.com/wanderer-industries/topologyd/pubsub"
	"github.com/wanderer-industries/topologyd/registry"
	"github.com/wanderer-industries/topologyd/server"
	"github.com/wanderer-industries/topologyd/sse"
	"github.com/wanderer-industries/topologyd/store"
	"github.com/wanderer-industries/topologyd/topology"
)

// topologyInterval is the cadence of the topology pass. The pass runs only
// on this ticker; mapactor.rebuildAndBroadcast rebuilds a single map's
// filtered view and does not start a pass.
const topologyInterval = 15 * time.Second

// connmonPollInterval is how often App bridges each sse.Client's
// connection state into the connection monitor.
const connmonPollInterval = 5 * time.Second

// App holds every long-lived component wired together for one run of the
// service.
type App struct {
	db       *sql.DB
	store    *store.Store
	bus      *pubsub.Bus
	registry *registry.Registry[*mapactor.Actor]

	httpClient *httpclient.Client
	apiClient  *apiclient.Client
	maps       *staticMapStore

	License *license.Validator
	Monitor *connmon.Monitor
	Pass    *topology.Pass
	Admin   *server.Server

	sseClients map[string]*sse.Client
	sseConnIDs map[string]string

	cancel context.CancelFunc
}

// New builds every component but starts nothing.
func New(cfg *config.Config) (*App, error) {
	db, err := store.OpenWithMigrations(cfg.Store.Path, logger.Logger)
	if err != nil {
		return nil, errors.Wrap(err, "app: open store")
	}
	st := store.New(db)

	rateCache := cache.New()
	httpClient := httpclient.New(rateCache)
	apiClient := apiclient.New(httpClient)

	bus := pubsub.New()
	reg, err := registry.NewTyped[*mapactor.Actor]("")
	if err != nil {
		db.Close()
		return nil, errors.Wrap(err, "app: new actor registry")
	}

	maps := newStaticMapStore(cfg.Maps)
	staticCache := cache.New()

	a := &App{
		db:         db,
		store:      st,
		bus:        bus,
		registry:   reg,
		httpClient: httpClient,
		apiClient:  apiClient,
		maps:       maps,
		Monitor:    connmon.New(),
		sseClients: make(map[string]*sse.Client),
		sseConnIDs: make(map[string]string),
	}

	router := &peerRouter{maps: maps, registry: reg}
	for _, m := range maps.All() {
		actor := mapactor.New(m.ID, maps, apiClient, bus, router, staticCache)
		if err := reg.Register("map", m.ID, "", actor); err != nil {
			db.Close()
			return nil, errors.Wrapf(err, "app: register map %q", m.ID)
		}
		a.sseClients[m.ID] = sse.New(sse.Config{
			MapID:          m.ID,
			MapURL:         m.URL,
			APIKey:         m.PublicAPIKey,
			ConnectTimeout: cfg.SSE.ConnectTimeout,
		}, httpClient.RawClient(), bus)
		a.sseConnIDs[m.ID] = a.Monitor.Register(connmon.TypeSSE, "sse:"+m.ID)
	}

	a.Pass = topology.New(&registryViewSource{registry: reg}, nil, staticCache, bus)

	a.License = license.New(license.Config{
		LicenseKey:      cfg.License.Key,
		ManagerAPIKey:   cfg.License.ManagerAPIKey,
		ManagerAPIURL:   cfg.License.ManagerAPIURL,
		RefreshInterval: cfg.License.RefreshInterval,
		DevMode:         cfg.DevMode(),
	}, httpClient, st)

	a.Admin = server.New(
		serverAddr(cfg),
		a.mapStatuses,
		a.connectionStatuses,
		a.licenseStatus,
	)

	return a, nil
}

func serverAddr(cfg *config.Config) string {
	host := cfg.Server.Host
	if host == "" {
		host = "0.0.0.0"
	}
	return net.JoinHostPort(host, strconv.Itoa(cfg.Server.Port))
}

// Start boots every map actor, SSE client, the periodic topology pass,
// the license validator, the connection-monitor bridge, and the admin
// server, all bound to ctx.
func (a *App) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	a.cancel = cancel

	a.License.Start(ctx)

	for id, actor := range a.registry.All("map") {
		go func(id string, actor *mapactor.Actor) {
			if err := actor.Start(ctx); err != nil {
				logger.ComponentLogger("app").Errorw("map actor failed to start", "map_id", id, "error", err)
			}
		}(id, actor)
	}

	for id, client := range a.sseClients {
		go func(id string, client *sse.Client) {
			if err := client.Run(ctx); err != nil && ctx.Err() == nil {
				logger.ComponentLogger("app").Warnw("sse client exited", "map_id", id, "error", err)
			}
		}(id, client)
	}

	go a.topologyLoop(ctx)
	go a.connmonBridgeLoop(ctx)

	return a.Admin.Start(ctx)
}

// Stop shuts down the admin server and license validator, cancels every
// background loop, waits for map actors to exit, and closes the store.
func (a *App) Stop(ctx context.Context) error {
	if err := a.Admin.Stop(ctx); err != nil {
		logger.ComponentLogger("app").Warnw("admin server shutdown error", "error", err)
	}
	a.License.Stop()
	if a.cancel != nil {
		a.cancel()
	}
	for _, actor := range a.registry.All("map") {
		actor.Stop()
	}
	return a.db.Close()
}

func (a *App) topologyLoop(ctx context.Context) {
	ticker := time.NewTicker(topologyInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.Pass.Run(ctx, a.maps.All())
		}
	}
}

// connmonBridgeLoop polls each SSE client's connection state into the
// connection monitor, since sse.Client has no push-based observer hook.
func (a *App) connmonBridgeLoop(ctx context.Context) {
	ticker := time.NewTicker(connmonPollInterval)
	defer ticker.Stop()
	last := make(map[string]sse.State, len(a.sseClients))
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for mapID, client := range a.sseClients {
				connID := a.sseConnIDs[mapID]
				state := client.State()
				if last[mapID] == state {
					continue
				}
				last[mapID] = state
				_ = a.Monitor.Transition(connID, sseStateToConnMon(state))
			}
		}
	}
}

func sseStateToConnMon(s sse.State) connmon.Status {
	switch s {
	case sse.StateConnected:
		return connmon.StatusConnected
	case sse.StateConnecting:
		return connmon.StatusConnecting
	case sse.StateReconnecting:
		return connmon.StatusReconnecting
	case sse.StateDisconnected:
		return connmon.StatusDisconnected
	default: // sse.StateFailed
		return connmon.StatusFailed
	}
}

// RawClient exposes the underlying *http.Client for callers (none yet in
// this package) that need it outside the middleware chain.
func (a *App) RawClient() *http.Client { return a.httpClient.RawClient() }
