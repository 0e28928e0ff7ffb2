// Package broker - paper.go implements the paper-trading broker simulator.
//
// The paper broker fills market orders immediately at the last seeded
// quote and resting stop orders the first time a fed price crosses the
// trigger. It uses the same Broker interface as a live adapter so engine
// logic is identical between dryRun and live modes (spec §6: "dryRun: ...
// Position Store still updates from a synthetic fill simulator").
package broker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/nitinkhare/intradaytrader/internal/marketdata"
)

// PaperBroker simulates broker execution over an in-memory bar/quote feed.
type PaperBroker struct {
	mu        sync.Mutex
	account   Account
	positions map[string]Position // symbol -> position
	orders    map[string]*paperOrder
	quotes    map[string]Quote
	bars      map[string][]marketdata.Bar
	calendar  Calendar
}

type paperOrder struct {
	req    OrderRequest
	status OrderStatusResult
}

// NewPaperBroker creates a paper broker seeded with startingEquity.
func NewPaperBroker(startingEquity float64) *PaperBroker {
	return &PaperBroker{
		account: Account{
			Equity:      startingEquity,
			LastEquity:  startingEquity,
			BuyingPower: startingEquity,
			Cash:        startingEquity,
		},
		positions: make(map[string]Position),
		orders:    make(map[string]*paperOrder),
		quotes:    make(map[string]Quote),
		bars:      make(map[string][]marketdata.Bar),
	}
}

// SeedQuote sets the current tradable price for symbol and triggers any
// resting stop order that price now crosses.
func (pb *PaperBroker) SeedQuote(symbol string, q Quote) {
	pb.mu.Lock()
	defer pb.mu.Unlock()
	pb.quotes[symbol] = q
	pb.checkRestingStops(symbol, q.Last)
}

// SeedBars installs the bar history GetBars/Bars returns for symbol.
func (pb *PaperBroker) SeedBars(symbol string, bars []marketdata.Bar) {
	pb.mu.Lock()
	defer pb.mu.Unlock()
	pb.bars[symbol] = bars
}

// SeedCalendar installs the holiday calendar MarketCalendar returns.
func (pb *PaperBroker) SeedCalendar(cal Calendar) {
	pb.mu.Lock()
	defer pb.mu.Unlock()
	pb.calendar = cal
}

func (pb *PaperBroker) Account(_ context.Context) (Account, error) {
	pb.mu.Lock()
	defer pb.mu.Unlock()
	return pb.account, nil
}

func (pb *PaperBroker) Positions(_ context.Context) ([]Position, error) {
	pb.mu.Lock()
	defer pb.mu.Unlock()
	out := make([]Position, 0, len(pb.positions))
	for _, p := range pb.positions {
		out = append(out, p)
	}
	return out, nil
}

func (pb *PaperBroker) Bars(_ context.Context, symbol string, _ marketdata.Resolution, lookback int) ([]marketdata.Bar, error) {
	pb.mu.Lock()
	defer pb.mu.Unlock()
	bars := pb.bars[symbol]
	if len(bars) < marketdata.MinLookback {
		return nil, &marketdata.NoDataError{Symbol: symbol, Got: len(bars), Required: marketdata.MinLookback}
	}
	if lookback > 0 && lookback < len(bars) {
		bars = bars[len(bars)-lookback:]
	}
	out := make([]marketdata.Bar, len(bars))
	copy(out, bars)
	return out, nil
}

func (pb *PaperBroker) Quote(_ context.Context, symbol string) (Quote, error) {
	pb.mu.Lock()
	defer pb.mu.Unlock()
	q, ok := pb.quotes[symbol]
	if !ok {
		return Quote{}, fmt.Errorf("paper broker: no quote seeded for %s", symbol)
	}
	return q, nil
}

// SubmitOrder fills market orders immediately at the last seeded quote and
// registers stop orders to be triggered by a later SeedQuote crossing
// StopPrice. Resubmitting an already-known ClientOrderId returns the
// existing order's id without duplicating the fill (spec §4.8 idempotency).
func (pb *PaperBroker) SubmitOrder(_ context.Context, req OrderRequest) (string, error) {
	pb.mu.Lock()
	defer pb.mu.Unlock()

	if existing, ok := pb.orders[req.ClientOrderId]; ok {
		return existing.status.OrderId, nil
	}

	order := &paperOrder{req: req, status: OrderStatusResult{OrderId: req.ClientOrderId, Ts: time.Now()}}
	pb.orders[req.ClientOrderId] = order

	switch req.Type {
	case OrderTypeMarket:
		q, ok := pb.quotes[req.Symbol]
		if !ok {
			order.status.Status = OrderStatusRejected
			order.status.Message = "no quote available to fill market order"
			return order.status.OrderId, nil
		}
		pb.fill(order, q.Last, req.Qty)
	case OrderTypeStop:
		order.status.Status = OrderStatusOpen
		if q, ok := pb.quotes[req.Symbol]; ok {
			pb.tryTriggerStop(order, q.Last)
		}
	default:
		order.status.Status = OrderStatusRejected
		order.status.Message = fmt.Sprintf("unsupported order type %q", req.Type)
	}

	return order.status.OrderId, nil
}

func (pb *PaperBroker) CancelOrder(_ context.Context, orderId string) error {
	pb.mu.Lock()
	defer pb.mu.Unlock()
	order, ok := pb.orders[orderId]
	if !ok {
		return fmt.Errorf("paper broker: order %s not found", orderId)
	}
	if order.status.Status == OrderStatusFilled {
		return fmt.Errorf("paper broker: order %s already filled", orderId)
	}
	order.status.Status = OrderStatusCancelled
	return nil
}

func (pb *PaperBroker) Order(_ context.Context, orderId string) (OrderStatusResult, error) {
	pb.mu.Lock()
	defer pb.mu.Unlock()
	order, ok := pb.orders[orderId]
	if !ok {
		return OrderStatusResult{}, fmt.Errorf("paper broker: order %s not found", orderId)
	}
	return order.status, nil
}

func (pb *PaperBroker) MarketCalendar(_ context.Context) (Calendar, error) {
	pb.mu.Lock()
	defer pb.mu.Unlock()
	return pb.calendar, nil
}

// checkRestingStops triggers any open stop order on symbol whose
// StopPrice the new price crosses.
func (pb *PaperBroker) checkRestingStops(symbol string, price float64) {
	for _, order := range pb.orders {
		if order.req.Symbol != symbol || order.status.Status != OrderStatusOpen {
			continue
		}
		pb.tryTriggerStop(order, price)
	}
}

func (pb *PaperBroker) tryTriggerStop(order *paperOrder, price float64) {
	req := order.req
	triggered := (req.Side == OrderSideSell && price <= req.StopPrice) ||
		(req.Side == OrderSideBuy && price >= req.StopPrice)
	if !triggered {
		return
	}
	pb.fill(order, price, req.Qty)
}

func (pb *PaperBroker) fill(order *paperOrder, price float64, qty int) {
	req := order.req
	pos := pb.positions[req.Symbol]
	signedQty := qty
	if req.Side == OrderSideSell {
		signedQty = -qty
	}

	if pos.Qty == 0 {
		pos = Position{Symbol: req.Symbol, Qty: signedQty, AvgEntryPrice: price, CurrentPrice: price}
	} else if sameSign(pos.Qty, signedQty) {
		totalQty := pos.Qty + signedQty
		pos.AvgEntryPrice = (pos.AvgEntryPrice*absF(pos.Qty) + price*absF(signedQty)) / absF(totalQty)
		pos.Qty = totalQty
	} else {
		pos.Qty += signedQty
		pos.CurrentPrice = price
		if pos.Qty == 0 {
			delete(pb.positions, req.Symbol)
			order.status.Status = OrderStatusFilled
			order.status.FilledQty = qty
			order.status.AvgFillPrice = price
			order.status.Message = "paper fill"
			order.status.Ts = time.Now()
			return
		}
	}
	pb.positions[req.Symbol] = pos

	order.status.Status = OrderStatusFilled
	order.status.FilledQty = qty
	order.status.AvgFillPrice = price
	order.status.Message = "paper fill"
	order.status.Ts = time.Now()
}

func sameSign(a, b int) bool {
	return (a >= 0 && b >= 0) || (a < 0 && b < 0)
}

func absF(n int) float64 {
	if n < 0 {
		return float64(-n)
	}
	return float64(n)
}
