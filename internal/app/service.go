package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"marlin/internal/decision"
	"marlin/internal/exchange"
	"marlin/internal/logger"
	"marlin/internal/notifier"
	"marlin/internal/order"
	"marlin/internal/portfolio"
	"marlin/internal/sizing"
	"marlin/internal/store/journal"
	"marlin/internal/trader"
)

// Service runs one sizing pass per incoming evaluation: derive the state,
// check preconditions, take the portfolio lock, size and submit, record the
// outcome. It is the only component allowed to call the engine.
type Service struct {
	exch        exchange.Exchange
	trd         *trader.Trader
	pf          *portfolio.Portfolio
	tracker     *decision.Tracker
	journal     *journal.Journal // optional
	notify      notifier.TextNotifier
	lockTimeout time.Duration

	mu     sync.RWMutex
	engine *sizing.Engine
}

type ServiceConfig struct {
	Exchange    exchange.Exchange
	Trader      *trader.Trader
	Portfolio   *portfolio.Portfolio
	Tuning      sizing.Tuning
	Journal     *journal.Journal
	Notifier    notifier.TextNotifier
	LockTimeout time.Duration
}

func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Exchange == nil || cfg.Trader == nil || cfg.Portfolio == nil {
		return nil, errors.New("service requires exchange, trader and portfolio")
	}
	if err := cfg.Tuning.Validate(); err != nil {
		return nil, err
	}
	if cfg.Notifier == nil {
		cfg.Notifier = notifier.Nop{}
	}
	if cfg.LockTimeout <= 0 {
		cfg.LockTimeout = 30 * time.Second
	}
	return &Service{
		exch:        cfg.Exchange,
		trd:         cfg.Trader,
		pf:          cfg.Portfolio,
		tracker:     decision.NewTracker(),
		journal:     cfg.Journal,
		notify:      cfg.Notifier,
		lockTimeout: cfg.LockTimeout,
		engine:      sizing.NewEngine(cfg.Tuning),
	}, nil
}

// UpdateTuning swaps the engine for one built on the new tuning. Invalid
// tunings are rejected, the running engine stays.
func (s *Service) UpdateTuning(tuning sizing.Tuning) error {
	if err := tuning.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	s.engine = sizing.NewEngine(tuning)
	s.mu.Unlock()
	logger.Infof("sizing tuning updated")
	return nil
}

func (s *Service) currentEngine() *sizing.Engine {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.engine
}

// HandleSignal converts one evaluation into orders. A state that did not
// change, a neutral state, or preconditions that fail all resolve to an
// empty (non-nil) slice: nothing to do is a normal outcome.
func (s *Service) HandleSignal(ctx context.Context, sym string, evaluation float64) ([]*order.Spec, error) {
	risk := s.trd.Risk()
	state := decision.StateFor(evaluation, risk)
	if !state.Known() {
		return nil, fmt.Errorf("no state for evaluation %v at risk %v", evaluation, risk)
	}
	if !s.tracker.Update(sym, state) {
		s.record(ctx, sym, state, evaluation, risk, nil, journal.OutcomeNoOp)
		return []*order.Spec{}, nil
	}
	logger.Infof("%s entered state %s (eval=%v risk=%v)", sym, state, evaluation, risk)

	ok, err := sizing.CanCreateOrder(ctx, sym, s.exch, state, s.pf)
	if err != nil {
		s.record(ctx, sym, state, evaluation, risk, nil, journal.OutcomeError)
		return nil, err
	}
	if !ok {
		logger.Infof("%s: not enough funds for state %s, skipping", sym, state)
		s.record(ctx, sym, state, evaluation, risk, nil, journal.OutcomeNoFunds)
		return []*order.Spec{}, nil
	}

	lockCtx, cancel := context.WithTimeout(ctx, s.lockTimeout)
	release, err := s.pf.Acquire(lockCtx)
	cancel()
	if err != nil {
		return nil, err
	}
	defer release()

	specs, err := s.sizeWithRetry(ctx, evaluation, sym, state)
	switch {
	case err != nil:
		outcome := journal.OutcomeError
		if errors.Is(err, portfolio.ErrInsufficientFunds) {
			outcome = journal.OutcomeNoFunds
		}
		// specs may hold orders that went out before the failure; the
		// journal records what was actually submitted.
		s.record(ctx, sym, state, evaluation, risk, specs, outcome)
		return specs, err
	case specs == nil:
		// the engine contained a market data failure
		s.record(ctx, sym, state, evaluation, risk, nil, journal.OutcomeNoMarket)
		return []*order.Spec{}, nil
	case len(specs) == 0:
		s.record(ctx, sym, state, evaluation, risk, nil, journal.OutcomeNoOp)
		return specs, nil
	}

	s.record(ctx, sym, state, evaluation, risk, specs, journal.OutcomeCreated)
	msg := notifier.OrderMessage(sym, state.String(), specs)
	go func() {
		if err := s.notify.SendText(msg); err != nil {
			logger.Warnf("order notification failed: %v", err)
		}
	}()
	return specs, nil
}

// sizeWithRetry gives a sizing call failing on insufficient funds one second
// chance: the first attempt may have raced a fill that freed or consumed
// funds, and the engine re-reads balances on entry.
func (s *Service) sizeWithRetry(ctx context.Context, evaluation float64, sym string, state decision.State) ([]*order.Spec, error) {
	engine := s.currentEngine()
	specs, err := engine.CreateNewOrder(ctx, evaluation, sym, s.exch, s.trd, s.pf, state)
	if err == nil || !errors.Is(err, portfolio.ErrInsufficientFunds) {
		return specs, err
	}
	logger.Warnf("sizing %s hit insufficient funds, retrying once: %v", sym, err)
	retried, err := engine.CreateNewOrder(ctx, evaluation, sym, s.exch, s.trd, s.pf, state)
	// orders the first attempt got out before running dry stay on the record
	return append(specs, retried...), err
}

func (s *Service) record(ctx context.Context, sym string, state decision.State,
	evaluation, risk float64, specs []*order.Spec, outcome string) {

	if s.journal == nil {
		return
	}
	entry := journal.Entry{
		Symbol:     sym,
		State:      state.String(),
		Evaluation: evaluation,
		Risk:       risk,
		OrderCount: len(specs),
		Outcome:    outcome,
	}
	if len(specs) > 0 {
		entry.ReferencePrice = specs[0].Price
	}
	if err := s.journal.Append(ctx, entry); err != nil {
		logger.Warnf("journal append failed: %v", err)
	}
}
