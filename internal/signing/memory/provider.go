// Package memory provides an in-process signing provider for development and
// tests. Orders complete on their own after a fixed delay, mimicking a signer
// approving in their authenticator app.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/renteasy/renteasy/internal/platform/id"
	"github.com/renteasy/renteasy/internal/signing"
)

type order struct {
	contractID string
	userID     string
	startedAt  time.Time
	forced     bool
}

// Provider is an in-process signing provider.
type Provider struct {
	delay time.Duration
	now   func() time.Time
	newID func() (string, error)

	mu     sync.Mutex
	orders map[string]*order
}

// NewProvider creates a provider whose orders complete after delay.
func NewProvider(delay time.Duration) *Provider {
	return &Provider{
		delay:  delay,
		now:    time.Now,
		newID:  id.NewID,
		orders: make(map[string]*order),
	}
}

// NewProviderWithClock creates a provider with an injected clock.
func NewProviderWithClock(delay time.Duration, now func() time.Time) *Provider {
	p := NewProvider(delay)
	if now != nil {
		p.now = now
	}
	return p
}

// StartOrder opens a signing order and returns its reference.
func (p *Provider) StartOrder(_ context.Context, contractID, userID string) (string, error) {
	orderRef, err := p.newID()
	if err != nil {
		return "", fmt.Errorf("generate order ref: %w", err)
	}
	p.mu.Lock()
	p.orders[orderRef] = &order{
		contractID: contractID,
		userID:     userID,
		startedAt:  p.now(),
	}
	p.mu.Unlock()
	return orderRef, nil
}

// CheckOrder reports whether the order's completion delay has elapsed.
func (p *Provider) CheckOrder(_ context.Context, orderRef string) (signing.OrderStatus, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	ord, ok := p.orders[orderRef]
	if !ok {
		return "", fmt.Errorf("unknown order %q", orderRef)
	}
	if ord.forced || p.now().Sub(ord.startedAt) >= p.delay {
		return signing.OrderComplete, nil
	}
	return signing.OrderPending, nil
}

// CompleteNow forces an order to complete on the next check.
func (p *Provider) CompleteNow(orderRef string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if ord, ok := p.orders[orderRef]; ok {
		ord.forced = true
	}
}
