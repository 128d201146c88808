// Package trader turns sized order specs into committed orders: it reserves
// the funds, submits (or simulates) the order, and persists the result.
package trader

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"marlin/internal/logger"
	"marlin/internal/order"
	"marlin/internal/pkg/symbol"
	"marlin/internal/portfolio"
	"marlin/internal/store/gormstore"
	"marlin/internal/store/model"
)

// Submitter places an order on a real exchange. The paper trader has none.
type Submitter interface {
	SubmitOrder(ctx context.Context, spec *order.Spec) error
}

type Options struct {
	// Risk in (0, 1]: how aggressively sizing should lean into signals.
	Risk float64
	// Simulated runs in paper mode: market orders settle instantly against
	// the in-memory portfolio, nothing reaches an exchange.
	Simulated bool
	Store     *gormstore.OrderStore // optional
	Submitter Submitter             // required unless Simulated
}

type Trader struct {
	risk      float64
	simulated bool
	store     *gormstore.OrderStore
	submit    Submitter
}

func New(opts Options) (*Trader, error) {
	if opts.Risk <= 0 || opts.Risk > 1 {
		return nil, fmt.Errorf("trader: risk %v outside (0, 1]", opts.Risk)
	}
	if !opts.Simulated && opts.Submitter == nil {
		return nil, errors.New("trader: live mode requires a submitter")
	}
	return &Trader{
		risk:      opts.Risk,
		simulated: opts.Simulated,
		store:     opts.Store,
		submit:    opts.Submitter,
	}, nil
}

func (t *Trader) Risk() float64 { return t.risk }

func (t *Trader) Simulated() bool { return t.simulated }

// CreateOrder commits one order spec: funds move from free to used before
// anything is submitted so a failure can release them cleanly. Linked stop
// orders reserve nothing, they close the same position as the order they
// are attached to.
func (t *Trader) CreateOrder(ctx context.Context, spec *order.Spec, pf *portfolio.Portfolio) (*order.Spec, error) {
	if spec == nil {
		return nil, errors.New("order cannot be nil")
	}
	if spec.Quantity <= 0 {
		return nil, fmt.Errorf("order quantity %v must be positive", spec.Quantity)
	}
	if !spec.Type.IsMarket() && spec.Price <= 0 {
		return nil, fmt.Errorf("%s order needs a positive price, got %v", spec.Type, spec.Price)
	}
	base, quote := symbol.Split(spec.Symbol)
	if base == "" || quote == "" {
		return nil, fmt.Errorf("unparseable symbol %q", spec.Symbol)
	}

	if spec.ID == "" {
		spec.ID = uuid.NewString()
	}
	if spec.CreatedAt.IsZero() {
		spec.CreatedAt = time.Now()
	}

	currency, reserved := reservation(spec, base, quote)
	if reserved > 0 {
		if err := pf.Reserve(currency, reserved); err != nil {
			return nil, fmt.Errorf("reserve funds for %s: %w", spec.Type, err)
		}
	}

	status := model.OrderStatusOpen
	if t.simulated {
		if spec.Type.IsMarket() {
			t.settleMarket(spec, pf, base, quote, currency, reserved)
			status = model.OrderStatusFilled
		}
	} else if err := t.submit.SubmitOrder(ctx, spec); err != nil {
		if reserved > 0 {
			pf.Release(currency, reserved)
		}
		return nil, fmt.Errorf("submit %s %s: %w", spec.Type, spec.Symbol, err)
	}

	t.persist(ctx, spec, status)
	logger.Infof("created %s order %s: %s qty=%v price=%v",
		modeName(t.simulated), spec.ID, spec.Type, spec.Quantity, spec.Price)
	return spec, nil
}

// reservation returns which currency an order locks up and how much.
// Buys lock the quote currency by cost, sells lock the base by quantity.
func reservation(spec *order.Spec, base, quote string) (string, float64) {
	if spec.LinkedTo != nil {
		return "", 0
	}
	if spec.Type.IsBuy() {
		return quote, spec.Cost()
	}
	return base, spec.Quantity
}

// settleMarket fills a simulated market order instantly at its reference
// price: the reserved funds leave the portfolio and the proceeds arrive.
func (t *Trader) settleMarket(spec *order.Spec, pf *portfolio.Portfolio, base, quote, currency string, reserved float64) {
	pf.Spend(currency, reserved)
	if spec.Type.IsBuy() {
		pf.Deposit(base, spec.Quantity)
	} else {
		pf.Deposit(quote, spec.Cost())
	}
}

func (t *Trader) persist(ctx context.Context, spec *order.Spec, status model.OrderStatus) {
	if t.store == nil {
		return
	}
	if err := t.store.Save(ctx, spec, status, t.simulated); err != nil {
		logger.Warnf("persist order %s failed: %v", spec.ID, err)
	}
}

func modeName(simulated bool) string {
	if simulated {
		return "simulated"
	}
	return "live"
}
