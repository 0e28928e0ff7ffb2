// Package broker defines the broker abstraction layer (spec §6).
//
// Design rules (from spec):
//   - Only one broker is active at a time.
//   - No strategy, confidence, or risk logic inside broker.
//   - Broker APIs are used only for execution and account state.
//   - Implementations must be stateless — all durable state lives in
//     internal/storage and internal/position, not here.
package broker

import (
	"context"
	"fmt"
	"time"

	"github.com/nitinkhare/intradaytrader/internal/marketdata"
)

// OrderSide is the direction of a submitted order.
type OrderSide string

const (
	OrderSideBuy  OrderSide = "BUY"
	OrderSideSell OrderSide = "SELL"
)

// OrderType is market or stop, per spec §6 (`type ∈ {market, stop}`).
type OrderType string

const (
	OrderTypeMarket OrderType = "MARKET"
	OrderTypeStop   OrderType = "STOP"
)

// TimeInForce constrains how long a resting order remains workable.
type TimeInForce string

const (
	TIFDay TimeInForce = "DAY"
	TIFGTC TimeInForce = "GTC"
)

// OrderStatus is the lifecycle state of a submitted order.
type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "PENDING"
	OrderStatusOpen      OrderStatus = "OPEN"
	OrderStatusFilled    OrderStatus = "FILLED"
	OrderStatusPartial   OrderStatus = "PARTIALLY_FILLED"
	OrderStatusCancelled OrderStatus = "CANCELLED"
	OrderStatusRejected  OrderStatus = "REJECTED"
)

// OrderRequest is what the Order Manager submits to the broker.
// ClientOrderId is caller-generated and must be idempotent: resubmitting
// the same id must not duplicate the order (spec §4.8).
type OrderRequest struct {
	ClientOrderId string
	Symbol        string
	Qty           int
	Side          OrderSide
	Type          OrderType
	StopPrice     float64 // required when Type == OrderTypeStop
	TIF           TimeInForce
}

// OrderStatusResult is the broker's current view of a submitted order.
type OrderStatusResult struct {
	OrderId      string
	Status       OrderStatus
	FilledQty    int
	AvgFillPrice float64
	Message      string
	Ts           time.Time
}

// Account is the broker-reported account snapshot (spec §6).
type Account struct {
	Equity        float64
	LastEquity    float64
	BuyingPower   float64
	Cash          float64
	DayTradeCount int
}

// Position is the broker's view of one open position, signed by direction
// (spec §6: "+long, −short").
type Position struct {
	Symbol        string
	Qty           int // signed: +long, -short
	AvgEntryPrice float64
	CurrentPrice  float64
	UnrealizedPnL float64
}

// Quote is the latest bid/ask/last for a symbol.
type Quote struct {
	Bid  float64
	Ask  float64
	Last float64
	Ts   time.Time
}

// Calendar is the broker-supplied holiday calendar, consumed by
// internal/clock (spec §4.1: "holiday calendar is supplied by the broker
// adapter").
type Calendar struct {
	Open     time.Time
	Close    time.Time
	Holidays []time.Time
}

// Broker is the only contract between the trading engine and a broker
// implementation (spec §6). Implementations must be stateless — all state
// lives in internal/storage / internal/position.
type Broker interface {
	Account(ctx context.Context) (Account, error)
	Positions(ctx context.Context) ([]Position, error)
	Bars(ctx context.Context, symbol string, res marketdata.Resolution, lookback int) ([]marketdata.Bar, error)
	Quote(ctx context.Context, symbol string) (Quote, error)
	SubmitOrder(ctx context.Context, req OrderRequest) (string, error)
	CancelOrder(ctx context.Context, orderId string) error
	Order(ctx context.Context, orderId string) (OrderStatusResult, error)
	MarketCalendar(ctx context.Context) (Calendar, error)
}

// Registry maps broker names to their factory functions; new broker
// implementations register themselves here via an init() func.
var Registry = map[string]func(configJSON []byte) (Broker, error){}

// New creates a broker instance by name using the registry.
func New(name string, configJSON []byte) (Broker, error) {
	factory, ok := Registry[name]
	if !ok {
		return nil, fmt.Errorf("broker: unknown broker %q, registered: %v", name, registeredNames())
	}
	return factory(configJSON)
}

func registeredNames() []string {
	names := make([]string, 0, len(Registry))
	for name := range Registry {
		names = append(names, name)
	}
	return names
}
