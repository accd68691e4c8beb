// Package license implements the long-lived license validation actor: on
// boot it performs an initial validation, then refreshes on a schedule,
// backing off exponentially on rate-limit or error responses. Callers read
// the cached state through Validate or State; the actor never raises to
// them — a failed or timed-out validation degrades to a safe invalid
// state instead of propagating an error.
package license

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/wanderer-industries/topologyd/errors"
	"github.com/wanderer-industries/topologyd/httpclient"
	"github.com/wanderer-industries/topologyd/logger"
	"github.com/wanderer-industries/topologyd/model"
	"go.uber.org/zap"
)

// validateTimeout bounds a single validation call end to end.
const validateTimeout = 5 * time.Second

// Config describes how the validator reaches the license manager.
type Config struct {
	LicenseKey           string
	ManagerAPIKey        string
	ManagerAPIURL        string
	Product              string
	RefreshInterval      time.Duration // default 1h
	DevMode              bool          // true when LicenseKey or ManagerAPIKey is absent
}

// Store persists the last-known license state across restarts.
type Store interface {
	SaveLicenseState(state model.LicenseState) error
	LoadLicenseState() (model.LicenseState, bool, error)
}

// Validator is the license actor.
type Validator struct {
	cfg    Config
	client *httpclient.Client
	store  Store
	log    *zap.SugaredLogger

	mu    sync.Mutex
	state model.LicenseState

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a Validator. store may be nil to skip persistence (tests).
func New(cfg Config, client *httpclient.Client, store Store) *Validator {
	if cfg.RefreshInterval <= 0 {
		cfg.RefreshInterval = time.Hour
	}
	if cfg.Product == "" {
		cfg.Product = "wanderer_notifier"
	}
	if cfg.LicenseKey == "" || cfg.ManagerAPIKey == "" {
		cfg.DevMode = true
	}

	v := &Validator{
		cfg:    cfg,
		client: client,
		store:  store,
		log:    logger.ComponentLogger("license"),
		state:  model.LicenseState{BackoffMultiplier: 1},
	}

	if store != nil {
		if prior, ok, err := store.LoadLicenseState(); err == nil && ok {
			v.state = prior
		}
	}

	return v
}

// Start performs an initial validation and launches the refresh loop,
// returning once the initial validation completes.
func (v *Validator) Start(ctx context.Context) {
	v.ctx, v.cancel = context.WithCancel(ctx)
	v.Validate(v.ctx, true)

	v.wg.Add(1)
	go v.refreshLoop()
}

// Stop halts the refresh loop and waits for it to exit.
func (v *Validator) Stop() {
	if v.cancel != nil {
		v.cancel()
	}
	v.wg.Wait()
}

// State returns a copy of the current cached license state.
func (v *Validator) State() model.LicenseState {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.state
}

// refreshLoop re-validates on cfg.RefreshInterval, scaled by the current
// backoff multiplier after a rate-limit or error response.
func (v *Validator) refreshLoop() {
	defer v.wg.Done()

	for {
		v.mu.Lock()
		interval := v.cfg.RefreshInterval * time.Duration(v.state.BackoffMultiplier)
		v.mu.Unlock()

		select {
		case <-v.ctx.Done():
			return
		case <-time.After(interval):
			v.Validate(v.ctx, true)
		}
	}
}

// Validate returns the cached state unless forceRefresh is set, in which
// case it performs a fresh validation call first.
func (v *Validator) Validate(ctx context.Context, forceRefresh bool) model.LicenseState {
	if !forceRefresh {
		return v.State()
	}

	if v.cfg.DevMode {
		return v.setState(model.LicenseState{
			Valid:             true,
			BotAssigned:       true,
			LastValidated:     time.Now(),
			BackoffMultiplier: 1,
		})
	}

	callCtx, cancel := context.WithTimeout(ctx, validateTimeout)
	defer cancel()

	result, err := v.callValidate(callCtx)
	if err != nil {
		if errors.Is(err, errors.ErrRateLimited) {
			return v.setState(v.rateLimitedState(err))
		}
		return v.setState(v.errorState(err))
	}
	return v.setState(result)
}

func (v *Validator) callValidate(ctx context.Context) (model.LicenseState, error) {
	body, err := marshalValidateRequest(v.cfg.LicenseKey, v.cfg.Product)
	if err != nil {
		return model.LicenseState{}, errors.Wrap(err, "license: encoding request")
	}

	req := httpclient.Request{
		Method:  http.MethodPost,
		URL:     v.cfg.ManagerAPIURL + "/validate_bot",
		Service: httpclient.ServiceLicense.Name,
		Headers: map[string]string{"Content-Type": "application/json"},
		Body:    body,
	}
	auth := httpclient.Auth{Type: httpclient.AuthBearer, Token: v.cfg.ManagerAPIKey}

	resp, err := v.client.Do(ctx, req, auth)
	if err != nil {
		return model.LicenseState{}, err
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		return model.LicenseState{}, errors.Mark(errors.Newf("license: rate limited (status %d)", resp.StatusCode), errors.ErrRateLimited)
	}
	if resp.StatusCode >= 400 {
		return model.LicenseState{}, errors.Newf("license: validate_bot returned status %d: %s", resp.StatusCode, string(resp.Body))
	}

	return decodeValidateResponse(resp.Body)
}

// rateLimitedState preserves the previous valid/details and doubles the
// backoff multiplier, capped at model.MaxBackoffMultiplier.
func (v *Validator) rateLimitedState(cause error) model.LicenseState {
	v.mu.Lock()
	defer v.mu.Unlock()
	next := v.state
	next.Error = "rate_limited"
	next.ErrorMessage = cause.Error()
	next.LastValidated = time.Now()
	next.BackoffMultiplier = doubleBackoff(v.state.BackoffMultiplier)
	return next
}

// errorState marks the license invalid and doubles the backoff multiplier.
func (v *Validator) errorState(cause error) model.LicenseState {
	v.mu.Lock()
	defer v.mu.Unlock()
	return model.LicenseState{
		Valid:             false,
		BotAssigned:       false,
		Error:             "validation_error",
		ErrorMessage:      cause.Error(),
		LastValidated:     time.Now(),
		NotificationCounts: v.state.NotificationCounts,
		BackoffMultiplier: doubleBackoff(v.state.BackoffMultiplier),
	}
}

func doubleBackoff(current int) int {
	if current <= 0 {
		current = 1
	}
	next := current * 2
	if next > model.MaxBackoffMultiplier {
		next = model.MaxBackoffMultiplier
	}
	return next
}

func (v *Validator) setState(state model.LicenseState) model.LicenseState {
	v.mu.Lock()
	v.state = state
	v.mu.Unlock()

	if v.store != nil {
		if err := v.store.SaveLicenseState(state); err != nil {
			v.log.Warnw("failed to persist license state", "error", err)
		}
	}

	if state.Valid && !state.BotAssigned {
		v.log.Warnw("license valid but bot not assigned")
	}
	if !state.Valid {
		v.log.Warnw("license invalid", "error", state.Error, "error_message", state.ErrorMessage)
	}

	return state
}
