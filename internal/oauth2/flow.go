package oauth2

import (
	"context"
	"crypto/subtle"
	"sync"
	"time"

	"github.com/lucsky/cuid"

	"credential-manager/internal/common/errors"
	"credential-manager/internal/common/logging"
)

// FlowState is a step of an authorization flow.
type FlowState string

const (
	FlowIdle             FlowState = "idle"
	FlowAuthURLIssued    FlowState = "auth_url_issued"
	FlowListenerStarted  FlowState = "listener_started"
	FlowBindFailed       FlowState = "bind_failed"
	FlowCallbackReceived FlowState = "callback_received"
	FlowNoCallback       FlowState = "no_callback"
	FlowStateVerified    FlowState = "state_verified"
	FlowStateMismatch    FlowState = "state_mismatch"
	FlowExchangeInFlight FlowState = "exchange_in_flight"
	FlowPersisted        FlowState = "persisted"
	FlowExchangeFailed   FlowState = "exchange_failed"
)

// Terminal reports whether no further transition follows s.
func (s FlowState) Terminal() bool {
	switch s {
	case FlowBindFailed, FlowNoCallback, FlowStateMismatch, FlowPersisted, FlowExchangeFailed:
		return true
	}
	return false
}

// Flow is the in-memory record of one authorization attempt. It is never
// persisted and the expected state value is not part of it.
type Flow struct {
	ID           string    `json:"id"`
	CredentialID int64     `json:"credential_id"`
	State        FlowState `json:"state"`
	CallbackAddr string    `json:"callback_addr,omitempty"`
	Error        string    `json:"error,omitempty"`
	StartedAt    time.Time `json:"started_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// FlowConfig locates the loopback listener each flow starts.
type FlowConfig struct {
	CallbackAddr    string
	CallbackPath    string
	CallbackTimeout time.Duration
}

// Orchestrator starts authorization flows. The consent URL is returned to the
// caller while the listener and the exchange run in the background; their
// failures are only logged.
type Orchestrator struct {
	generator *URLGenerator
	exchanger *Exchanger
	config    FlowConfig
	logger    logging.Logger

	mu      sync.Mutex
	current *Flow
	wg      sync.WaitGroup
}

func NewOrchestrator(generator *URLGenerator, exchanger *Exchanger, config FlowConfig, logger logging.Logger) *Orchestrator {
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	return &Orchestrator{
		generator: generator,
		exchanger: exchanger,
		config:    config,
		logger:    logger.WithFields(logging.String("component", "flow_orchestrator")),
	}
}

// StartOAuthFlow issues the consent URL for the credential and starts the
// callback listener. It returns once the listener is bound, so a bind error
// reaches the caller; everything after that is reported through logs only.
func (o *Orchestrator) StartOAuthFlow(ctx context.Context, credentialID int64) (string, error) {
	flow := &Flow{
		ID:           cuid.New(),
		CredentialID: credentialID,
		State:        FlowIdle,
		StartedAt:    time.Now().UTC(),
	}
	flow.UpdatedAt = flow.StartedAt

	ctx = logging.ContextWithCredentialID(logging.ContextWithFlowID(ctx, flow.ID), credentialID)
	logger := o.logger.WithContext(ctx)

	authURL, expectedState, err := o.generator.GenerateAuthURL(ctx, credentialID)
	if err != nil {
		return "", err
	}

	o.transition(logger, flow, FlowAuthURLIssued, nil)

	// A flow that cannot bind is only logged, so the outstanding flow holding
	// the port stays visible through CurrentFlow.
	listener := NewCallbackListener(o.config.CallbackAddr, o.config.CallbackPath, o.config.CallbackTimeout, logger)
	if err := listener.Listen(); err != nil {
		o.transition(logger, flow, FlowBindFailed, err)
		return "", err
	}
	o.mu.Lock()
	flow.CallbackAddr = listener.Addr()
	o.current = flow
	o.mu.Unlock()
	o.transition(logger, flow, FlowListenerStarted, nil)

	background := context.WithoutCancel(ctx)
	handoff := make(chan CallbackResult, 1)

	o.wg.Add(2)
	go func() {
		defer o.wg.Done()
		listener.Serve(background, handoff)
	}()
	go func() {
		defer o.wg.Done()
		o.awaitCallback(background, logger, flow, expectedState, handoff)
	}()

	return authURL, nil
}

func (o *Orchestrator) awaitCallback(ctx context.Context, logger logging.Logger, flow *Flow, expectedState string, handoff <-chan CallbackResult) {
	result, ok := <-handoff
	if !ok {
		o.transition(logger, flow, FlowNoCallback, errors.NoCallbackError())
		return
	}
	o.transition(logger, flow, FlowCallbackReceived, nil)

	if subtle.ConstantTimeCompare([]byte(result.State), []byte(expectedState)) != 1 {
		o.transition(logger, flow, FlowStateMismatch, errors.StateMismatchError())
		return
	}
	o.transition(logger, flow, FlowStateVerified, nil)

	o.transition(logger, flow, FlowExchangeInFlight, nil)
	if _, err := o.exchanger.ExchangeCodeAndSaveToken(ctx, result.Code, flow.CredentialID); err != nil {
		o.transition(logger, flow, FlowExchangeFailed, err)
		return
	}
	o.transition(logger, flow, FlowPersisted, nil)
}

func (o *Orchestrator) transition(logger logging.Logger, flow *Flow, state FlowState, cause error) {
	o.mu.Lock()
	from := flow.State
	flow.State = state
	flow.UpdatedAt = time.Now().UTC()
	if cause != nil {
		flow.Error = cause.Error()
	}
	o.mu.Unlock()

	fields := []logging.Field{
		logging.String("from", string(from)),
		logging.String("to", string(state)),
	}
	switch {
	case cause != nil:
		logger.Error("OAuth flow failed", cause, fields...)
	case state.Terminal():
		logger.Info("OAuth flow completed", fields...)
	default:
		logger.Debug("OAuth flow transition", fields...)
	}
}

// CurrentFlow returns a copy of the most recent flow, if any.
func (o *Orchestrator) CurrentFlow() (Flow, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.current == nil {
		return Flow{}, false
	}
	return *o.current, true
}

// Wait blocks until every background task started so far has finished.
func (o *Orchestrator) Wait() {
	o.wg.Wait()
}
