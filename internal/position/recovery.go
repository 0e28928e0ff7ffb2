package position

import (
	"context"
	"fmt"
	"time"

	"github.com/nitinkhare/intradaytrader/internal/policy"
	"github.com/nitinkhare/intradaytrader/internal/trailstop"
)

// BrokerPosition is the subset of the broker's reported position state
// needed for reconciliation and recovery (spec §6: qty signed, +long/-short).
type BrokerPosition struct {
	Symbol       string
	Qty          int // signed: +long, -short
	AvgEntryPrice float64
}

// CurrentPriceFunc fetches the live price for symbol during recovery.
type CurrentPriceFunc func(ctx context.Context, symbol string) (float64, error)

// Recovery holds the outcome of a startup reconciliation pass.
type Recovery struct {
	Rehydrated []string // symbols restored from persistence
	Phantoms   []string // internal-only, deleted (no broker position)
	Orphans    []string // broker-only, reconstructed fresh
}

// Recover rehydrates the Manager from persistence, then cross-checks
// against the broker's reported positions (spec §4.8/§4.10/§4.11).
//
// Three cases:
//   - Persisted AND broker-reported: rehydrate, re-arm trailing from the
//     current price (never reset highs/lows to entry).
//   - Persisted but NOT broker-reported: phantom. Delete internal record,
//     no close order is ever sent for it.
//   - Broker-reported but NOT persisted: orphan. Reconstruct a fresh
//     Position the same way, using the policy table and current price.
func (m *Manager) Recover(ctx context.Context, brokerPositions []BrokerPosition, policies *policy.Table, currentPrice CurrentPriceFunc, now time.Time) (Recovery, error) {
	persisted, err := m.store.LoadOpenPositions(ctx)
	if err != nil {
		return Recovery{}, fmt.Errorf("position: recovery load failed: %w", err)
	}

	brokerBySymbol := make(map[string]BrokerPosition, len(brokerPositions))
	for _, bp := range brokerPositions {
		brokerBySymbol[bp.Symbol] = bp
	}

	var result Recovery

	for symbol, data := range persisted {
		bp, hasBroker := brokerBySymbol[symbol]
		if !hasBroker {
			m.mu.Lock()
			delete(m.positions, symbol)
			m.mu.Unlock()
			if err := m.store.DeleteOpenPosition(ctx, symbol); err != nil {
				return result, fmt.Errorf("position: phantom delete failed for %s: %w", symbol, err)
			}
			result.Phantoms = append(result.Phantoms, symbol)
			continue
		}

		stored, err := m.codec.Decode(data)
		if err != nil {
			return result, fmt.Errorf("position: decode failed for %s: %w", symbol, err)
		}

		price, err := currentPrice(ctx, symbol)
		if err != nil {
			return result, fmt.Errorf("position: current price lookup failed for %s: %w", symbol, err)
		}

		rearmed, err := rearmFromCurrentPrice(stored, price)
		if err != nil {
			return result, fmt.Errorf("position: rearm failed for %s: %w", symbol, err)
		}

		m.mu.Lock()
		m.positions[symbol] = rearmed
		m.mu.Unlock()
		if err := m.writeThrough(ctx, rearmed); err != nil {
			return result, err
		}

		delete(brokerBySymbol, symbol)
		result.Rehydrated = append(result.Rehydrated, symbol)
	}

	// Whatever remains in brokerBySymbol is broker-only: an orphan.
	for symbol, bp := range brokerBySymbol {
		pol := policies.Get(symbol)
		side := SideLong
		qty := bp.Qty
		if bp.Qty < 0 {
			side = SideShort
			qty = -bp.Qty
		}

		price, err := currentPrice(ctx, symbol)
		if err != nil {
			return result, fmt.Errorf("position: current price lookup failed for orphan %s: %w", symbol, err)
		}

		recovered := &Position{
			Symbol:     symbol,
			Side:       side,
			Qty:        qty,
			EntryPrice: bp.AvgEntryPrice,
			EntryTs:    now,
			Policy:     pol,
		}
		rearmed, err := rearmFromCurrentPrice(recovered, price)
		if err != nil {
			return result, fmt.Errorf("position: orphan rearm failed for %s: %w", symbol, err)
		}

		m.mu.Lock()
		m.positions[symbol] = rearmed
		m.mu.Unlock()
		if err := m.writeThrough(ctx, rearmed); err != nil {
			return result, err
		}
		result.Orphans = append(result.Orphans, symbol)
	}

	return result, nil
}

func rearmFromCurrentPrice(p *Position, currentPrice float64) (*Position, error) {
	side := trailstop.SideLong
	if p.Side == SideShort {
		side = trailstop.SideShort
	}
	params := trailstop.Params{
		EntryPrice:         p.EntryPrice,
		Side:               side,
		StopPct:            p.Policy.StopPct,
		TargetPct:          p.Policy.TargetPct,
		TrailActivationPct: p.Policy.TrailActivationPct,
		TrailDistancePct:   p.Policy.TrailDistancePct,
	}
	machine, err := trailstop.Rearm(params, currentPrice)
	if err != nil {
		return nil, err
	}
	p.Trail = machine
	return p, nil
}
