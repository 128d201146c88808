// Package portfolio tracks per-currency balances and provides the scoped
// lock sizing calls hold while they read balances and submit orders.
package portfolio

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

var (
	// ErrLockTimeout is returned when the scoped lock cannot be acquired
	// before the caller's context expires. Callers must surface it: skipping
	// a lock failure silently could double-spend.
	ErrLockTimeout = errors.New("portfolio lock acquisition timed out")

	ErrInsufficientFunds = errors.New("insufficient funds")
)

// Balance is one currency's holdings split by availability.
type Balance struct {
	Free float64
	Used float64
}

func (b Balance) Total() float64 {
	return b.Free + b.Used
}

// Portfolio is safe for concurrent use. Individual reads and reserves are
// guarded by an internal mutex; callers that need a consistent
// read-then-reserve sequence (a sizing call) additionally hold the scoped
// lock from Acquire so no other sizing call observes a half-spent balance.
type Portfolio struct {
	mu       sync.RWMutex
	balances map[string]Balance

	session chan struct{}
}

func New(initial map[string]float64) *Portfolio {
	p := &Portfolio{
		balances: make(map[string]Balance, len(initial)),
		session:  make(chan struct{}, 1),
	}
	for code, free := range initial {
		p.balances[code] = Balance{Free: free}
	}
	return p
}

// Acquire takes the scoped sizing lock. The returned release function must
// be called on every exit path. Returns ErrLockTimeout when ctx expires
// first.
func (p *Portfolio) Acquire(ctx context.Context) (func(), error) {
	select {
	case p.session <- struct{}{}:
		return func() { <-p.session }, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %v", ErrLockTimeout, ctx.Err())
	}
}

// Free returns the available balance for a currency code.
func (p *Portfolio) Free(code string) float64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.balances[code].Free
}

// Balance returns the full balance entry for a currency code.
func (p *Portfolio) Balance(code string) Balance {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.balances[code]
}

// Snapshot copies all balances, for reporting surfaces.
func (p *Portfolio) Snapshot() map[string]Balance {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make(map[string]Balance, len(p.balances))
	for code, bal := range p.balances {
		out[code] = bal
	}
	return out
}

// Reserve moves qty from free to used, the commitment made when an order is
// submitted. Fails with ErrInsufficientFunds when free < qty; balances are
// untouched on failure.
func (p *Portfolio) Reserve(code string, qty float64) error {
	if qty < 0 {
		return fmt.Errorf("reserve %s: negative quantity %v", code, qty)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	bal := p.balances[code]
	if bal.Free < qty {
		return fmt.Errorf("%w: %s free %v < %v", ErrInsufficientFunds, code, bal.Free, qty)
	}
	bal.Free -= qty
	bal.Used += qty
	p.balances[code] = bal
	return nil
}

// Release moves qty back from used to free, e.g. when an order is cancelled.
func (p *Portfolio) Release(code string, qty float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	bal := p.balances[code]
	if qty > bal.Used {
		qty = bal.Used
	}
	bal.Used -= qty
	bal.Free += qty
	p.balances[code] = bal
}

// Deposit credits qty to the free balance.
func (p *Portfolio) Deposit(code string, qty float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	bal := p.balances[code]
	bal.Free += qty
	p.balances[code] = bal
}

// Spend removes qty from the used balance once the matching order fills.
func (p *Portfolio) Spend(code string, qty float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	bal := p.balances[code]
	if qty > bal.Used {
		qty = bal.Used
	}
	bal.Used -= qty
	p.balances[code] = bal
}
