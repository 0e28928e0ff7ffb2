package broker

import (
	"context"
	"testing"
	"time"

	"github.com/nitinkhare/intradaytrader/internal/marketdata"
)

func TestPaperBroker_InitialAccount(t *testing.T) {
	pb := NewPaperBroker(500000)
	ctx := context.Background()

	acct, err := pb.Account(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if acct.Equity != 500000 {
		t.Errorf("expected 500000, got %.2f", acct.Equity)
	}
}

func TestPaperBroker_MarketBuyFillsAtSeededQuote(t *testing.T) {
	pb := NewPaperBroker(500000)
	ctx := context.Background()
	pb.SeedQuote("SOFI", Quote{Last: 24.0, Ts: time.Now()})

	orderId, err := pb.SubmitOrder(ctx, OrderRequest{
		ClientOrderId: "entry-1", Symbol: "SOFI", Qty: 100, Side: OrderSideBuy, Type: OrderTypeMarket,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	status, err := pb.Order(ctx, orderId)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if status.Status != OrderStatusFilled {
		t.Errorf("expected FILLED, got %s", status.Status)
	}
	if status.FilledQty != 100 || status.AvgFillPrice != 24.0 {
		t.Errorf("unexpected fill: %+v", status)
	}

	positions, _ := pb.Positions(ctx)
	if len(positions) != 1 || positions[0].Qty != 100 {
		t.Fatalf("expected one long position of 100, got %+v", positions)
	}
}

func TestPaperBroker_SubmitOrderIsIdempotentOnClientOrderId(t *testing.T) {
	pb := NewPaperBroker(500000)
	ctx := context.Background()
	pb.SeedQuote("SOFI", Quote{Last: 24.0, Ts: time.Now()})

	id1, _ := pb.SubmitOrder(ctx, OrderRequest{ClientOrderId: "entry-1", Symbol: "SOFI", Qty: 100, Side: OrderSideBuy, Type: OrderTypeMarket})
	id2, _ := pb.SubmitOrder(ctx, OrderRequest{ClientOrderId: "entry-1", Symbol: "SOFI", Qty: 100, Side: OrderSideBuy, Type: OrderTypeMarket})

	if id1 != id2 {
		t.Fatalf("resubmitting the same client order id must return the same order, got %s and %s", id1, id2)
	}
	positions, _ := pb.Positions(ctx)
	if len(positions) != 1 || positions[0].Qty != 100 {
		t.Fatalf("resubmission must not duplicate the fill, got %+v", positions)
	}
}

func TestPaperBroker_StopOrderTriggersOnPriceCross(t *testing.T) {
	pb := NewPaperBroker(500000)
	ctx := context.Background()
	pb.SeedQuote("SOFI", Quote{Last: 24.0, Ts: time.Now()})
	pb.SubmitOrder(ctx, OrderRequest{ClientOrderId: "entry-1", Symbol: "SOFI", Qty: 100, Side: OrderSideBuy, Type: OrderTypeMarket})

	stopId, err := pb.SubmitOrder(ctx, OrderRequest{
		ClientOrderId: "stop-1", Symbol: "SOFI", Qty: 100, Side: OrderSideSell, Type: OrderTypeStop, StopPrice: 23.5,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	status, _ := pb.Order(ctx, stopId)
	if status.Status != OrderStatusOpen {
		t.Fatalf("expected stop to rest OPEN before price crosses, got %s", status.Status)
	}

	pb.SeedQuote("SOFI", Quote{Last: 23.4, Ts: time.Now()})

	status, _ = pb.Order(ctx, stopId)
	if status.Status != OrderStatusFilled {
		t.Errorf("expected stop to fill once price crossed, got %s", status.Status)
	}
	positions, _ := pb.Positions(ctx)
	if len(positions) != 0 {
		t.Errorf("position should be flat after stop fill, got %+v", positions)
	}
}

func TestPaperBroker_BarsReturnsNoDataErrorBelowMinLookback(t *testing.T) {
	pb := NewPaperBroker(500000)
	ctx := context.Background()

	_, err := pb.Bars(ctx, "SOFI", marketdata.Resolution15m, 50)
	if err == nil {
		t.Fatal("expected NoDataError with no bars seeded")
	}
	var nde *marketdata.NoDataError
	if !asNoDataError(err, &nde) {
		t.Errorf("expected *marketdata.NoDataError, got %T: %v", err, err)
	}
}

func asNoDataError(err error, target **marketdata.NoDataError) bool {
	nde, ok := err.(*marketdata.NoDataError)
	if ok {
		*target = nde
	}
	return ok
}

func TestPaperBroker_CancelOrderPreventsLaterFill(t *testing.T) {
	pb := NewPaperBroker(500000)
	ctx := context.Background()
	pb.SeedQuote("SOFI", Quote{Last: 24.0, Ts: time.Now()})
	pb.SubmitOrder(ctx, OrderRequest{ClientOrderId: "entry-1", Symbol: "SOFI", Qty: 100, Side: OrderSideBuy, Type: OrderTypeMarket})

	stopId, _ := pb.SubmitOrder(ctx, OrderRequest{ClientOrderId: "stop-1", Symbol: "SOFI", Qty: 100, Side: OrderSideSell, Type: OrderTypeStop, StopPrice: 23.5})
	if err := pb.CancelOrder(ctx, stopId); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	pb.SeedQuote("SOFI", Quote{Last: 23.0, Ts: time.Now()})

	status, _ := pb.Order(ctx, stopId)
	if status.Status != OrderStatusCancelled {
		t.Errorf("a cancelled stop must not fill on a later price cross, got %s", status.Status)
	}
}
