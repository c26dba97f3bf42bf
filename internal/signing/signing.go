// Package signing coordinates signature sessions against an asynchronous
// external signing provider.
//
// A session tracks one party's signing attempt from provider order creation
// until the signature is durably recorded. Sessions live in process memory;
// the durable outcome is the signature row, so a lost session only costs the
// caller a restart of the signing flow.
package signing

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/renteasy/renteasy/internal/contract"
	apperrors "github.com/renteasy/renteasy/internal/platform/errors"
	"github.com/renteasy/renteasy/internal/platform/metrics"
	"github.com/renteasy/renteasy/internal/storage"
)

// OrderStatus is the provider-side state of a signing order.
type OrderStatus string

const (
	// OrderPending indicates the provider is still waiting for the signer.
	OrderPending OrderStatus = "pending"
	// OrderComplete indicates the provider finished the order successfully.
	OrderComplete OrderStatus = "complete"
)

// Provider is the external signing provider boundary.
type Provider interface {
	// StartOrder opens a signing order for the party and returns its order
	// reference.
	StartOrder(ctx context.Context, contractID, userID string) (string, error)
	// CheckOrder reports the current status of an order.
	CheckOrder(ctx context.Context, orderRef string) (OrderStatus, error)
}

// State is the lifecycle state of a signing session.
type State string

const (
	// StateInitiating marks a session whose provider order is being opened.
	StateInitiating State = "initiating"
	// StatePending marks a session waiting on the provider.
	StatePending State = "pending"
	// StateComplete marks a session whose signature was durably recorded.
	StateComplete State = "complete"
	// StateFailed marks a session abandoned after provider timeout.
	StateFailed State = "failed"
)

// Session tracks one signing attempt.
type Session struct {
	OrderRef   string
	ContractID string
	UserID     string
	State      State
	StartedAt  time.Time
	UpdatedAt  time.Time
}

const (
	defaultPollInterval       = 2 * time.Second
	defaultMaxSessionDuration = 3 * time.Minute
)

// CoordinatorConfig wires a Coordinator's dependencies.
type CoordinatorConfig struct {
	Provider Provider
	Store    storage.ContractStore
	Logger   *zap.Logger
	Metrics  *metrics.Metrics
	Now      func() time.Time
	// PollInterval is the delay between provider checks in Await.
	PollInterval time.Duration
	// MaxSessionDuration bounds how long Await waits before failing a session.
	MaxSessionDuration time.Duration
}

// Coordinator drives signing sessions from order creation to recorded
// signature.
type Coordinator struct {
	provider     Provider
	store        storage.ContractStore
	logger       *zap.Logger
	metrics      *metrics.Metrics
	now          func() time.Time
	pollInterval time.Duration
	maxDuration  time.Duration

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewCoordinator creates a signing coordinator.
func NewCoordinator(cfg CoordinatorConfig) (*Coordinator, error) {
	if cfg.Provider == nil {
		return nil, fmt.Errorf("signing provider is required")
	}
	if cfg.Store == nil {
		return nil, fmt.Errorf("contract store is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaultPollInterval
	}
	if cfg.MaxSessionDuration <= 0 {
		cfg.MaxSessionDuration = defaultMaxSessionDuration
	}
	return &Coordinator{
		provider:     cfg.Provider,
		store:        cfg.Store,
		logger:       cfg.Logger,
		metrics:      cfg.Metrics,
		now:          cfg.Now,
		pollInterval: cfg.PollInterval,
		maxDuration:  cfg.MaxSessionDuration,
		sessions:     make(map[string]*Session),
	}, nil
}

// Start opens a signing session for userID on contractID.
//
// The eligibility guard runs before any provider call, so an ineligible
// caller never creates a provider order.
func (c *Coordinator) Start(ctx context.Context, contractID, userID string) (Session, error) {
	rental, err := c.store.GetContract(ctx, contractID)
	if err != nil {
		return Session{}, mapStoreError(err)
	}
	parties, err := c.store.GetParties(ctx, contractID)
	if err != nil {
		return Session{}, mapStoreError(err)
	}
	if err := contract.SigningGuard(rental, parties, userID); err != nil {
		c.incSession("not_allowed")
		return Session{}, err
	}

	orderRef, err := c.provider.StartOrder(ctx, contractID, userID)
	if err != nil {
		return Session{}, apperrors.Wrap(apperrors.CodeProviderUnavailable, "start signing order", err)
	}

	startedAt := c.now().UTC()
	session := Session{
		OrderRef:   orderRef,
		ContractID: contractID,
		UserID:     userID,
		State:      StatePending,
		StartedAt:  startedAt,
		UpdatedAt:  startedAt,
	}
	c.mu.Lock()
	c.pruneLocked(startedAt)
	c.sessions[orderRef] = &session
	c.mu.Unlock()
	c.incSession("started")
	c.logger.Info("signing session started",
		zap.String("order_ref", orderRef),
		zap.String("contract_id", contractID),
	)
	return session, nil
}

// PollOnce checks the provider once and records the signature when the order
// completed. A session already in a terminal state is returned unchanged, so
// duplicate polls after completion are benign.
func (c *Coordinator) PollOnce(ctx context.Context, orderRef string) (Session, error) {
	session, ok := c.lookup(orderRef)
	if !ok {
		return Session{}, apperrors.New(apperrors.CodeNotFound, "signing session not found")
	}
	if session.State == StateComplete || session.State == StateFailed {
		return session, nil
	}

	status, err := c.provider.CheckOrder(ctx, orderRef)
	if err != nil {
		c.incPoll("error")
		return Session{}, apperrors.Wrap(apperrors.CodeProviderUnavailable, "check signing order", err)
	}
	if status != OrderComplete {
		c.incPoll("pending")
		return c.setState(orderRef, StatePending), nil
	}
	c.incPoll("complete")

	result, err := c.store.SetPartySignature(ctx, session.ContractID, session.UserID, c.now().UTC())
	if err != nil {
		return Session{}, mapStoreError(err)
	}
	if c.metrics != nil {
		if !result.AlreadySigned {
			c.metrics.SignaturesRecorded.Inc()
		}
		if result.Promoted {
			c.metrics.ContractsSigned.Inc()
		}
	}
	c.incSession("complete")
	c.logger.Info("signature recorded",
		zap.String("order_ref", orderRef),
		zap.String("contract_id", session.ContractID),
		zap.Bool("both_signed", result.BothSigned),
	)
	return c.setState(orderRef, StateComplete), nil
}

// Await polls the provider until the session completes or the session
// duration bound expires. Provider errors are logged and retried; everything
// else aborts the wait.
func (c *Coordinator) Await(ctx context.Context, orderRef string) (Session, error) {
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()
	deadline := time.NewTimer(c.maxDuration)
	defer deadline.Stop()

	for {
		session, err := c.PollOnce(ctx, orderRef)
		switch {
		case err == nil:
			if session.State == StateComplete || session.State == StateFailed {
				return session, nil
			}
		case apperrors.IsCode(err, apperrors.CodeProviderUnavailable):
			c.logger.Warn("signing provider poll failed",
				zap.String("order_ref", orderRef),
				zap.Error(err),
			)
		default:
			return Session{}, err
		}

		select {
		case <-ctx.Done():
			return Session{}, ctx.Err()
		case <-deadline.C:
			failed := c.setState(orderRef, StateFailed)
			c.incSession("failed")
			return failed, apperrors.New(apperrors.CodeProviderTimeout, "signing session timed out")
		case <-ticker.C:
		}
	}
}

// Cancel drops a session. The provider order is left to expire on its own;
// an unsigned party can always start a fresh session.
func (c *Coordinator) Cancel(orderRef string) error {
	c.mu.Lock()
	_, ok := c.sessions[orderRef]
	delete(c.sessions, orderRef)
	c.mu.Unlock()
	if !ok {
		return apperrors.New(apperrors.CodeNotFound, "signing session not found")
	}
	c.incSession("cancelled")
	return nil
}

// pruneLocked evicts sessions idle past the session duration bound, keeping
// the map bounded in a long-lived process. Terminal sessions stay visible to
// late polls until then. Caller holds c.mu.
func (c *Coordinator) pruneLocked(now time.Time) {
	for ref, session := range c.sessions {
		if now.Sub(session.UpdatedAt) > c.maxDuration {
			delete(c.sessions, ref)
		}
	}
}

func (c *Coordinator) lookup(orderRef string) (Session, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	session, ok := c.sessions[orderRef]
	if !ok {
		return Session{}, false
	}
	return *session, true
}

func (c *Coordinator) setState(orderRef string, state State) Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	session, ok := c.sessions[orderRef]
	if !ok {
		return Session{OrderRef: orderRef, State: state}
	}
	session.State = state
	session.UpdatedAt = c.now().UTC()
	return *session
}

func (c *Coordinator) incSession(state string) {
	if c.metrics != nil {
		c.metrics.SigningSessions.WithLabelValues(state).Inc()
	}
}

func (c *Coordinator) incPoll(result string) {
	if c.metrics != nil {
		c.metrics.ProviderPolls.WithLabelValues(result).Inc()
	}
}

func mapStoreError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, storage.ErrNotFound) {
		return apperrors.New(apperrors.CodeNotFound, "contract not found")
	}
	return err
}
