// Package order derives and tracks the four-order set (two scaled entries,
// a shared take-profit, a shared stop-loss) that the order manager opens for
// every confirmed CHoCH Signal, and manages the resulting position's
// fill lifecycle.
package order

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/chochsentinel/sentinel/model"
	"github.com/chochsentinel/sentinel/tools/log"
)

// Broker is the order-placement surface Manager drives. exchange.BinanceFutures
// implements it; a demo/paper implementation can substitute it in tests or
// when DEMO_TRADING is set.
type Broker interface {
	CreateOrderLimit(side model.SideType, pair string, quantity, limit float64) (model.Order, error)
	CreateOrderMarket(side model.SideType, pair string, quantity float64) (model.Order, error)
	CreateReduceOnlyOrder(pair string, side model.SideType, role model.OrderRole, triggerPrice float64) (model.Order, error)
	Cancel(order model.Order) error
	Position(pair string) (asset, quote float64, err error)
}

// PositionStatus is the lifecycle state of one CHoCH-derived order set.
type PositionStatus string

const (
	PositionPending      PositionStatus = "PENDING"
	PositionEntry1Filled PositionStatus = "ENTRY1_FILLED"
	PositionEntry2Filled PositionStatus = "ENTRY2_FILLED"
	PositionBothFilled   PositionStatus = "BOTH_FILLED"
	PositionClosed       PositionStatus = "CLOSED"
)

// PositionSet is the four orders derived from one Signal, plus the fill
// bookkeeping needed to compute the volume-weighted entry and final P&L.
type PositionSet struct {
	Symbol    string
	Timeframe string
	Direction model.Direction

	Entry1 model.Order
	Entry2 model.Order
	TP     model.Order
	SL     model.Order

	Status PositionStatus

	filledQuantity float64
	filledNotional float64

	CreatedAt time.Time
	ClosedAt  time.Time
	ClosedBy  model.OrderRole
	PnL       float64
}

// avgEntryPrice is the volume-weighted entry price across whichever entries
// have filled so far.
func (p *PositionSet) avgEntryPrice() float64 {
	if p.filledQuantity == 0 {
		return 0
	}
	return p.filledNotional / p.filledQuantity
}

// Manager derives and tracks the four-order-set lifecycle for every
// (symbol, timeframe) that has an open or pending CHoCH position. OnSignal
// opens new positions and OnOrderUpdate applies fills; the Manager does not
// subscribe to the order feed itself.
type Manager struct {
	mtx sync.Mutex
	ctx context.Context

	broker Broker
	feed   *Feed

	// PositionSize is the quote-currency notional allocated to one full
	// (both-entries-filled) position; Leverage multiplies it before the
	// per-entry quantity is derived.
	PositionSize float64
	Leverage     float64
	// Demo records the four orders in memory as paper orders (status NEW)
	// instead of placing them with the live broker, per the DEMO_TRADING
	// toggle.
	Demo bool

	positions map[string]*PositionSet
}

// NewManager returns a ready-to-use Manager. feed may be nil if no other
// component needs to observe individual order placements.
func NewManager(ctx context.Context, broker Broker, feed *Feed, positionSize, leverage float64, demo bool) *Manager {
	return &Manager{
		ctx:          ctx,
		broker:       broker,
		feed:         feed,
		PositionSize: positionSize,
		Leverage:     leverage,
		Demo:         demo,
		positions:    make(map[string]*PositionSet),
	}
}

func positionKey(symbol, timeframe string) string { return symbol + "|" + timeframe }

// sidesFor returns the entry side and the opposite close side for a
// direction: long entries buy and close by selling; short entries sell and
// close by buying.
func sidesFor(dir model.Direction) (entry, close model.SideType) {
	if dir == model.SignalLong || dir == model.DirectionUp {
		return model.SideTypeBuy, model.SideTypeSell
	}
	return model.SideTypeSell, model.SideTypeBuy
}

// tpAlreadyPassed reports whether markPrice has already reached tp in the
// direction that would make the whole set worthless to open.
func tpAlreadyPassed(dir model.Direction, markPrice, tp float64) bool {
	if dir == model.SignalLong || dir == model.DirectionUp {
		return markPrice >= tp
	}
	return markPrice <= tp
}

func paperOrder(pair string, side model.SideType, role model.OrderRole, quantity, price float64) model.Order {
	return model.Order{
		Pair:      pair,
		Side:      side,
		Type:      model.OrderTypeLimit,
		Status:    model.OrderStatusTypeNew,
		Price:     price,
		Quantity:  quantity,
		Role:      role,
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}
}

// OnSignal derives and places the four-order set for sig. A prior open
// position for the same (symbol, timeframe) is force-closed at market
// first, per the resolved forced-close-on-new-signal rule.
func (m *Manager) OnSignal(sig model.Signal) error {
	m.mtx.Lock()
	defer m.mtx.Unlock()

	k := positionKey(sig.Symbol, sig.Timeframe)
	if prior, ok := m.positions[k]; ok && prior.Status != PositionClosed {
		if err := m.forceClose(prior); err != nil {
			log.Error("order/manager: force-close prior position: ", err)
		}
	}

	quantity := (m.PositionSize * m.Leverage / 2) / sig.Entry1Price
	entrySide, closeSide := sidesFor(sig.Direction)

	if markPrice, _, err := m.broker.Position(sig.Symbol); err == nil {
		if tpAlreadyPassed(sig.Direction, markPrice, sig.TPPrice) {
			log.Infof("order/manager: skipping %s %s set, mark price already past TP", sig.Symbol, sig.Timeframe)
			return nil
		}
	}

	set := &PositionSet{
		Symbol:    sig.Symbol,
		Timeframe: sig.Timeframe,
		Direction: sig.Direction,
		Status:    PositionPending,
		CreatedAt: time.Now().UTC(),
	}

	if m.Demo {
		set.Entry1 = paperOrder(sig.Symbol, entrySide, model.OrderRoleEntry1, quantity, sig.Entry1Price)
		set.Entry2 = paperOrder(sig.Symbol, entrySide, model.OrderRoleEntry2, quantity, sig.Entry2Price)
		set.TP = paperOrder(sig.Symbol, closeSide, model.OrderRoleTakeProfit, 0, sig.TPPrice)
		set.SL = paperOrder(sig.Symbol, closeSide, model.OrderRoleStopLoss, 0, sig.SLPrice)
		m.positions[k] = set
		return nil
	}

	entry1, err := m.broker.CreateOrderLimit(entrySide, sig.Symbol, quantity, sig.Entry1Price)
	if err != nil {
		return fmt.Errorf("order/manager: entry1: %w", err)
	}
	entry1.Role = model.OrderRoleEntry1
	set.Entry1 = entry1

	entry2, err := m.broker.CreateOrderLimit(entrySide, sig.Symbol, quantity, sig.Entry2Price)
	if err != nil {
		_ = m.broker.Cancel(entry1)
		return fmt.Errorf("order/manager: entry2: %w", err)
	}
	entry2.Role = model.OrderRoleEntry2
	set.Entry2 = entry2

	tp, err := m.broker.CreateReduceOnlyOrder(sig.Symbol, closeSide, model.OrderRoleTakeProfit, sig.TPPrice)
	if err != nil {
		_ = m.broker.Cancel(entry1)
		_ = m.broker.Cancel(entry2)
		return fmt.Errorf("order/manager: tp: %w", err)
	}
	set.TP = tp

	sl, err := m.broker.CreateReduceOnlyOrder(sig.Symbol, closeSide, model.OrderRoleStopLoss, sig.SLPrice)
	if err != nil {
		_ = m.broker.Cancel(entry1)
		_ = m.broker.Cancel(entry2)
		_ = m.broker.Cancel(tp)
		return fmt.Errorf("order/manager: sl: %w", err)
	}
	set.SL = sl

	m.positions[k] = set
	if m.feed != nil {
		go m.feed.Publish(entry1, true)
		go m.feed.Publish(entry2, true)
	}
	return nil
}

// forceClose cancels every open sibling order and, if any entry quantity is
// already filled, closes it at market.
func (m *Manager) forceClose(set *PositionSet) error {
	_ = m.broker.Cancel(set.Entry1)
	_ = m.broker.Cancel(set.Entry2)
	_ = m.broker.Cancel(set.TP)
	_ = m.broker.Cancel(set.SL)

	if set.filledQuantity > 0 {
		_, closeSide := sidesFor(set.Direction)
		if _, err := m.broker.CreateOrderMarket(closeSide, set.Symbol, set.filledQuantity); err != nil {
			return err
		}
	}

	set.Status = PositionClosed
	set.ClosedAt = time.Now().UTC()
	return nil
}

// OnOrderUpdate advances a position's lifecycle in response to an order
// status change (entry fills, TP/SL fills).
func (m *Manager) OnOrderUpdate(o model.Order) {
	m.mtx.Lock()
	defer m.mtx.Unlock()

	set := m.findBySymbol(o.Pair)
	if set == nil || set.Status == PositionClosed {
		return
	}

	switch o.Role {
	case model.OrderRoleEntry1, model.OrderRoleEntry2:
		if o.Status != model.OrderStatusTypeFilled {
			return
		}
		set.filledQuantity += o.Quantity
		set.filledNotional += o.Quantity * o.Price
		switch set.Status {
		case PositionPending:
			if o.Role == model.OrderRoleEntry1 {
				set.Status = PositionEntry1Filled
			} else {
				set.Status = PositionEntry2Filled
			}
		case PositionEntry1Filled, PositionEntry2Filled:
			set.Status = PositionBothFilled
		}

	case model.OrderRoleTakeProfit, model.OrderRoleStopLoss:
		if o.Status != model.OrderStatusTypeFilled {
			return
		}
		sibling := set.SL
		if o.Role == model.OrderRoleStopLoss {
			sibling = set.TP
		}
		_ = m.broker.Cancel(sibling)

		set.Status = PositionClosed
		set.ClosedAt = time.Now().UTC()
		set.ClosedBy = o.Role
		avg := set.avgEntryPrice()
		if avg != 0 {
			if set.Direction == model.SignalLong || set.Direction == model.DirectionUp {
				set.PnL = (o.Price - avg) * set.filledQuantity
			} else {
				set.PnL = (avg - o.Price) * set.filledQuantity
			}
		}
		log.Infof("[POSITION CLOSED] %s %s by %s, pnl=%.4f", set.Symbol, set.Timeframe, o.Role, set.PnL)
	}
}

func (m *Manager) findBySymbol(pair string) *PositionSet {
	for _, set := range m.positions {
		if set.Symbol == pair && set.Status != PositionClosed {
			return set
		}
	}
	return nil
}

// Position returns the tracked order set for (symbol, timeframe), if any.
func (m *Manager) Position(symbol, timeframe string) (*PositionSet, bool) {
	m.mtx.Lock()
	defer m.mtx.Unlock()
	set, ok := m.positions[positionKey(symbol, timeframe)]
	return set, ok
}

// Positions returns every tracked position, keyed by symbol|timeframe.
func (m *Manager) Positions() map[string]*PositionSet {
	m.mtx.Lock()
	defer m.mtx.Unlock()
	out := make(map[string]*PositionSet, len(m.positions))
	for k, v := range m.positions {
		out[k] = v
	}
	return out
}
