package execution

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"options_go/internal/domain"
	"options_go/internal/strategy"
)

var (
	// ErrInvalidAction is returned for actions with a non-positive quantity or price.
	ErrInvalidAction = errors.New("invalid hedge action")

	// ErrInsufficientBalance is returned when a buy would take cash below the credit limit.
	ErrInsufficientBalance = errors.New("insufficient balance")
)

// Fill is one executed hedge trade.
type Fill struct {
	ActionID uuid.UUID       `json:"action_id"`
	Symbol   string          `json:"symbol"`
	Side     string          `json:"side"`
	Qty      decimal.Decimal `json:"qty"`
	Price    decimal.Decimal `json:"price"`
	Fee      decimal.Decimal `json:"fee"`
	Ts       time.Time       `json:"ts"`
}

// PaperExecution fills hedge actions immediately at the action price.
// Cash may go negative down to the credit limit; hedging a short gamma book borrows.
type PaperExecution struct {
	mu      sync.Mutex
	feeRate decimal.Decimal
	credit  decimal.Decimal
	cash    decimal.Decimal
	fees    decimal.Decimal
	units   map[string]decimal.Decimal
	fills   []Fill
}

// NewPaperExecution creates an empty account. feeRate is charged on notional (0.001 = 10bp).
func NewPaperExecution(feeRate float64) *PaperExecution {
	return &PaperExecution{
		feeRate: decimal.NewFromFloat(feeRate),
		units:   make(map[string]decimal.Decimal),
	}
}

// WithCreditLimit lets cash go down to -limit. Zero (the default) means unlimited.
func (p *PaperExecution) WithCreditLimit(limit float64) *PaperExecution {
	p.credit = decimal.NewFromFloat(limit)
	return p
}

// Deposit adds cash.
func (p *PaperExecution) Deposit(amount float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cash = p.cash.Add(decimal.NewFromFloat(amount))
}

// Execute fills a hedge action.
func (p *PaperExecution) Execute(ctx context.Context, a strategy.Action) error {
	if !(a.Qty > 0) || !(a.Price > 0) {
		return fmt.Errorf("%w: qty=%v price=%v", ErrInvalidAction, a.Qty, a.Price)
	}
	qty := decimal.NewFromFloat(a.Qty)
	price := decimal.NewFromFloat(a.Price)
	notional := qty.Mul(price)
	fee := notional.Mul(p.feeRate)

	p.mu.Lock()
	defer p.mu.Unlock()

	switch a.Type {
	case strategy.ActionBuy:
		after := p.cash.Sub(notional).Sub(fee)
		if p.credit.IsPositive() && after.LessThan(p.credit.Neg()) {
			return fmt.Errorf("%w: need %s, have %s", ErrInsufficientBalance, notional.Add(fee), p.cash.Add(p.credit))
		}
		p.cash = after
		p.units[a.Symbol] = p.units[a.Symbol].Add(qty)
	case strategy.ActionSell:
		p.cash = p.cash.Add(notional).Sub(fee)
		p.units[a.Symbol] = p.units[a.Symbol].Sub(qty)
	default:
		return fmt.Errorf("%w: type %s", ErrInvalidAction, a.Type)
	}

	p.fees = p.fees.Add(fee)
	p.fills = append(p.fills, Fill{
		ActionID: a.ID,
		Symbol:   a.Symbol,
		Side:     a.Type.String(),
		Qty:      qty,
		Price:    price,
		Fee:      fee,
		Ts:       time.Now(),
	})
	return nil
}

// Units returns the underlying held for symbol.
func (p *PaperExecution) Units(symbol string) decimal.Decimal {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.units[symbol]
}

// Cash returns the cash balance.
func (p *PaperExecution) Cash() decimal.Decimal {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cash
}

// Fills returns a copy of every fill so far.
func (p *PaperExecution) Fills() []Fill {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Fill(nil), p.fills...)
}

// Account marks the symbol's hedge at spot.
func (p *PaperExecution) Account(symbol string, spot float64) domain.HedgeAccount {
	p.mu.Lock()
	defer p.mu.Unlock()
	units := p.units[symbol]
	return domain.HedgeAccount{
		Units:  units,
		Cash:   p.cash,
		Fees:   p.fees,
		Equity: p.cash.Add(units.Mul(decimal.NewFromFloat(spot))),
		Fills:  len(p.fills),
	}
}
