package broker

import (
	"math"
	"reflect"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"grid-backtest/internal/model"
)

// ─── helpers ──────────────────────────────────────────────────────────────────

var (
	btcusd = model.NewSpotMarket("BTC", "USD")
	ethusd = model.NewSpotMarket("ETH", "USD")
	t0     = time.Date(2022, 1, 1, 0, 0, 0, 0, time.UTC)
)

func newBroker(balances map[string]float64) (*Simulated, *model.Wallet) {
	w := model.NewWallet(balances)
	return NewSimulated(w, zerolog.Nop()), w
}

func limit(b *Simulated, side model.Side, qty, price float64) *model.Order {
	return b.CreateOrder(model.OrderRequest{
		Market: btcusd, Qty: qty, Side: side, Type: model.TypeLimit, LimitPrice: price, Timestamp: t0,
	})
}

func market(b *Simulated, side model.Side, qty float64) *model.Order {
	return b.CreateOrder(model.OrderRequest{Market: btcusd, Qty: qty, Side: side, Type: model.TypeMarket, Timestamp: t0})
}

func isOpen(b *Simulated, o *model.Order) bool {
	for _, cur := range b.OpenOrders() {
		if cur == o {
			return true
		}
	}
	return false
}

func isFilled(b *Simulated, o *model.Order) bool {
	for _, cur := range b.FilledOrders() {
		if cur == o {
			return true
		}
	}
	return false
}

// recorder captures notifications and optionally reacts to them.
type recorder struct {
	fills  []model.Fill
	orders []*model.Order
	react  func(o *model.Order, f model.Fill)
}

func (r *recorder) OnOrderFilled(o *model.Order, f model.Fill) {
	r.orders = append(r.orders, o)
	r.fills = append(r.fills, f)
	if r.react != nil {
		r.react(o, f)
	}
}

// ─── CreateOrder / CancelOrder ───────────────────────────────────────────────

func TestCreateOrderAssignsIncreasingIDs(t *testing.T) {
	b, _ := newBroker(nil)

	o1 := market(b, model.SideBuy, 1)
	o2 := market(b, model.SideBuy, 1)

	if o1.ID != 1 || o2.ID != 2 {
		t.Errorf("ids: want 1 and 2, got %d and %d", o1.ID, o2.ID)
	}
	if !isOpen(b, o1) || !isOpen(b, o2) {
		t.Error("new orders must be open")
	}
	if len(b.FilledOrders()) != 0 {
		t.Errorf("no orders should be filled, got %d", len(b.FilledOrders()))
	}

	// a second engine owns its own counter
	other, _ := newBroker(nil)
	if o := market(other, model.SideBuy, 1); o.ID != 1 {
		t.Errorf("fresh engine should start at id 1, got %d", o.ID)
	}
}

func TestCancelOrder(t *testing.T) {
	b, _ := newBroker(nil)
	o := market(b, model.SideBuy, 1)

	if !b.CancelOrder(o.ID) {
		t.Fatal("CancelOrder on open order should succeed")
	}
	if isOpen(b, o) {
		t.Error("order still open after cancel")
	}

	// unknown and repeated ids are a no-op
	if b.CancelOrder(100) {
		t.Error("CancelOrder(100) should report false")
	}
	if b.CancelOrder(o.ID) {
		t.Error("second cancel should report false")
	}
}

func TestCancelAllOnlyTouchesMarket(t *testing.T) {
	b, _ := newBroker(nil)
	limit(b, model.SideBuy, 1, 90)
	limit(b, model.SideSell, 1, 110)
	eth := b.CreateOrder(model.OrderRequest{Market: ethusd, Qty: 1, Side: model.SideBuy, Type: model.TypeLimit, LimitPrice: 10})

	if n := b.CancelAll(btcusd); n != 2 {
		t.Errorf("CancelAll: want 2 canceled, got %d", n)
	}
	open := b.OpenOrders()
	if len(open) != 1 || open[0] != eth {
		t.Errorf("only the ETH order should remain, got %v", open)
	}
}

// ─── OnPriceChanged ───────────────────────────────────────────────────────────

func TestMarketOrdersFillAtPrice(t *testing.T) {
	b, w := newBroker(map[string]float64{"USD": 1000, "BTC": 1})
	buy := market(b, model.SideBuy, 1)
	sell := market(b, model.SideSell, 1)

	b.OnPriceChanged(btcusd, 1, t0)

	for _, o := range []*model.Order{buy, sell} {
		if isOpen(b, o) || !isFilled(b, o) {
			t.Errorf("order %d should have moved to filled", o.ID)
		}
		if len(o.Fills) != 1 || o.Fills[0].Price != 1 {
			t.Errorf("order %d: want one fill at 1, got %+v", o.ID, o.Fills)
		}
	}
	if w.Balance("USD") != 1000 || w.Balance("BTC") != 1 {
		t.Errorf("buy and sell of equal size should net out, got %s", w)
	}
}

func TestLimitBuy(t *testing.T) {
	b, _ := newBroker(map[string]float64{"USD": 1000})
	o := limit(b, model.SideBuy, 1, 100)

	// price above limit: not executed
	b.OnPriceChanged(btcusd, 200, t0)
	if !isOpen(b, o) || isFilled(b, o) {
		t.Fatal("limit buy must not fill above its limit")
	}

	// price below limit: executed at the event price
	b.OnPriceChanged(btcusd, 50, t0)
	if isOpen(b, o) || !isFilled(b, o) {
		t.Fatal("limit buy must fill below its limit")
	}
	if o.Fills[0].Price != 50 {
		t.Errorf("fill price: want 50, got %v", o.Fills[0].Price)
	}
}

func TestLimitSell(t *testing.T) {
	b, _ := newBroker(map[string]float64{"BTC": 1})
	o := limit(b, model.SideSell, 1, 100)

	b.OnPriceChanged(btcusd, 50, t0)
	if !isOpen(b, o) {
		t.Fatal("limit sell must not fill below its limit")
	}

	b.OnPriceChanged(btcusd, 150, t0)
	if !isFilled(b, o) {
		t.Fatal("limit sell must fill above its limit")
	}
}

// The fill boundary is inclusive: touching the limit price executes.
func TestLimitOrderTouchFills(t *testing.T) {
	b, _ := newBroker(map[string]float64{"USD": 1000, "BTC": 1})
	buy := limit(b, model.SideBuy, 1, 100)
	sell := limit(b, model.SideSell, 1, 120)

	b.OnPriceChanged(btcusd, 100, t0)
	if !isFilled(b, buy) {
		t.Error("buy at 100 should fill when price touches 100")
	}
	b.OnPriceChanged(btcusd, 120, t0)
	if !isFilled(b, sell) {
		t.Error("sell at 120 should fill when price touches 120")
	}
}

func TestOtherMarketsStayOpenInOrder(t *testing.T) {
	b, _ := newBroker(nil)
	e1 := b.CreateOrder(model.OrderRequest{Market: ethusd, Qty: 1, Side: model.SideBuy, Type: model.TypeMarket})
	x := limit(b, model.SideBuy, 1, 10)
	e2 := b.CreateOrder(model.OrderRequest{Market: ethusd, Qty: 1, Side: model.SideSell, Type: model.TypeMarket})

	b.OnPriceChanged(btcusd, 100, t0)

	want := []*model.Order{e1, x, e2}
	if got := b.OpenOrders(); !reflect.DeepEqual(got, want) {
		t.Errorf("open orders: want %v, got %v", want, got)
	}
}

func TestUnknownOrderTypeIsSkipped(t *testing.T) {
	b, _ := newBroker(nil)
	o := b.CreateOrder(model.OrderRequest{Market: btcusd, Qty: 1, Side: model.SideBuy, Type: model.OrderType("STOP")})

	b.OnPriceChanged(btcusd, 1, t0)

	if !isOpen(b, o) || len(o.Fills) != 0 {
		t.Error("unknown order type should be left untouched")
	}
}

func TestNotificationsAfterEventInFillOrder(t *testing.T) {
	b, _ := newBroker(map[string]float64{"USD": 1000, "BTC": 10})
	o1 := limit(b, model.SideBuy, 1, 100)
	o2 := limit(b, model.SideSell, 2, 90)
	limit(b, model.SideBuy, 1, 80) // does not fill

	var walletAtFirst float64
	rec := &recorder{}
	rec.react = func(o *model.Order, f model.Fill) {
		if len(rec.orders) == 1 {
			// both fills are already settled when the first notification arrives
			walletAtFirst = b.wallet.Balance("BTC")
		}
	}
	b.AddListener(rec)

	b.OnPriceChanged(btcusd, 95, t0)

	if len(rec.orders) != 2 || rec.orders[0] != o1 || rec.orders[1] != o2 {
		t.Fatalf("want notifications for orders 1 then 2, got %v", rec.orders)
	}
	if walletAtFirst != 9 {
		t.Errorf("BTC at first notification: want 9, got %v", walletAtFirst)
	}
}

func TestOrdersCreatedDuringNotificationWaitForNextEvent(t *testing.T) {
	b, _ := newBroker(map[string]float64{"USD": 1000})
	limit(b, model.SideBuy, 1, 100)

	var created *model.Order
	rec := &recorder{}
	rec.react = func(o *model.Order, f model.Fill) {
		if created == nil {
			created = market(b, model.SideBuy, 1)
		}
	}
	b.AddListener(rec)

	b.OnPriceChanged(btcusd, 100, t0)
	if created == nil || !isOpen(b, created) {
		t.Fatal("order created by listener must stay open for the current event")
	}

	b.OnPriceChanged(btcusd, 101, t0.Add(time.Minute))
	if !isFilled(b, created) {
		t.Error("order created by listener should fill on the next event")
	}
}

func TestRemoveListener(t *testing.T) {
	b, _ := newBroker(nil)
	rec := &recorder{}
	b.AddListener(rec)
	b.RemoveListener(rec)

	market(b, model.SideBuy, 1)
	b.OnPriceChanged(btcusd, 1, t0)

	if len(rec.fills) != 0 {
		t.Errorf("removed listener got %d notifications", len(rec.fills))
	}
}

// ─── determinism & conservation ──────────────────────────────────────────────

func TestReplayIsDeterministic(t *testing.T) {
	prices := []float64{100, 95, 90, 105, 120, 85, 100}
	run := func() ([]model.Fill, map[string]float64) {
		b, w := newBroker(map[string]float64{"USD": 1000, "BTC": 1})
		limit(b, model.SideBuy, 0.5, 92)
		limit(b, model.SideSell, 0.5, 110)
		limit(b, model.SideBuy, 0.25, 86)
		market(b, model.SideSell, 0.1)
		rec := &recorder{}
		b.AddListener(rec)
		for i, p := range prices {
			b.OnPriceChanged(btcusd, p, t0.Add(time.Duration(i)*time.Minute))
		}
		return rec.fills, w.Snapshot()
	}

	fills1, bal1 := run()
	fills2, bal2 := run()
	if !reflect.DeepEqual(fills1, fills2) {
		t.Errorf("fills differ between replays:\n%v\n%v", fills1, fills2)
	}
	if !reflect.DeepEqual(bal1, bal2) {
		t.Errorf("balances differ between replays: %v vs %v", bal1, bal2)
	}
	if len(fills1) != 4 {
		t.Errorf("want 4 fills, got %d", len(fills1))
	}
}

func TestFillsConserveValue(t *testing.T) {
	b, w := newBroker(map[string]float64{"USD": 1000, "BTC": 2})
	limit(b, model.SideBuy, 1.5, 100)
	limit(b, model.SideSell, 0.7, 100)

	before := w.Value(btcusd, 97)
	b.OnPriceChanged(btcusd, 97, t0)
	after := w.Value(btcusd, 97)

	if math.Abs(before-after) > 1e-9 {
		t.Errorf("value at fill price changed: %v -> %v", before, after)
	}
}

// ─── CandidateOrders ──────────────────────────────────────────────────────────

func TestCandidateOrders(t *testing.T) {
	b, _ := newBroker(nil)
	m := market(b, model.SideBuy, 1)
	buyIn := limit(b, model.SideBuy, 1, 95)
	limit(b, model.SideBuy, 1, 80) // below the range
	sellIn := limit(b, model.SideSell, 1, 105)
	limit(b, model.SideSell, 1, 130) // above the range
	buyAbove := limit(b, model.SideBuy, 1, 125)

	for _, dir := range [][2]float64{{120, 90}, {90, 120}} {
		got := b.CandidateOrders(dir[0], dir[1])
		want := []*model.Order{m, buyIn, sellIn, buyAbove}
		if !reflect.DeepEqual(got, want) {
			t.Errorf("CandidateOrders(%v, %v): want %v, got %v", dir[0], dir[1], want, got)
		}
	}
}
