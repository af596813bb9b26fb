package orders_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/easonhq/eason/internal/catalog"
	"github.com/easonhq/eason/internal/logging"
	"github.com/easonhq/eason/internal/orders"
)

// fakeStore implements both engine ports with the same all-or-nothing
// reservation semantics as the Postgres repo.
type fakeStore struct {
	mu       sync.Mutex
	products map[uuid.UUID]catalog.Product
	orders   []*orders.Order
	failWith error
}

func newFakeStore(ps ...catalog.Product) *fakeStore {
	s := &fakeStore{products: make(map[uuid.UUID]catalog.Product)}
	for _, p := range ps {
		s.products[p.ID] = p
	}
	return s
}

func (s *fakeStore) GetProduct(_ context.Context, id uuid.UUID) (catalog.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[id]
	if !ok {
		return catalog.Product{}, catalog.ErrNotFound
	}
	return p, nil
}

func (s *fakeStore) CreateReserving(_ context.Context, o *orders.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWith != nil {
		return s.failWith
	}
	for _, it := range o.Items {
		p, ok := s.products[it.ProductID]
		if !ok {
			return &orders.ProductNotFoundError{ProductID: it.ProductID}
		}
		if p.Stock < it.Qty {
			return &orders.InsufficientStockError{
				ProductID: it.ProductID,
				Name:      p.Name,
				Available: p.Stock,
				Requested: it.Qty,
			}
		}
	}
	for _, it := range o.Items {
		p := s.products[it.ProductID]
		p.Stock -= it.Qty
		s.products[it.ProductID] = p
	}
	s.orders = append(s.orders, o)
	return nil
}

func (s *fakeStore) stock(id uuid.UUID) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.products[id].Stock
}

func (s *fakeStore) orderCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.orders)
}

type capturedEvent struct {
	key   []byte
	value []byte
}

type fakePublisher struct {
	mu     sync.Mutex
	events []capturedEvent
}

func (p *fakePublisher) Publish(key, value []byte, _ ...kafkago.Header) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, capturedEvent{key: key, value: value})
}

func product(name string, wholesalerCents int64, stock int) catalog.Product {
	return catalog.Product{
		ID:                   uuid.New(),
		Name:                 name,
		BaseCostCents:        wholesalerCents / 2,
		WholesalerPriceCents: wholesalerCents,
		Stock:                stock,
	}
}

func newEngine(store *fakeStore, pub orders.Publisher) *orders.Engine {
	return orders.NewEngine(logging.New("test"), store, store, pub, "test")
}

func validInput(items ...orders.CartItem) orders.PlaceOrderInput {
	return orders.PlaceOrderInput{
		Items:           items,
		ShippingAddress: "12 Market Street",
		Phone:           "08123456789",
	}
}

func TestPlaceOrder(t *testing.T) {
	ctx := context.Background()
	buyer := uuid.New()

	t.Run("order snapshots wholesaler price and debits stock", func(t *testing.T) {
		p := product("Rice 5kg", 100, 10)
		store := newFakeStore(p)
		eng := newEngine(store, nil)

		res, err := eng.PlaceOrder(ctx, buyer, validInput(orders.CartItem{ProductID: p.ID, Quantity: 3}))
		require.NoError(t, err)

		assert.Equal(t, int64(300), res.TotalCents)
		assert.Equal(t, orders.StatusPending, res.Status)
		assert.False(t, res.CreatedAt.IsZero())
		assert.Equal(t, 7, store.stock(p.ID))

		require.Equal(t, 1, store.orderCount())
		o := store.orders[0]
		require.Len(t, o.Items, 1)
		assert.Equal(t, 3, o.Items[0].Qty)
		assert.Equal(t, int64(100), o.Items[0].PriceCents)
		assert.Equal(t, orders.PaymentPending, o.PaymentStatus)
		assert.Equal(t, o.TotalCents, o.Total())
	})

	t.Run("empty cart fails before any lookup", func(t *testing.T) {
		store := newFakeStore()
		eng := newEngine(store, nil)

		_, err := eng.PlaceOrder(ctx, buyer, validInput())
		assert.ErrorIs(t, err, orders.ErrEmptyCart)
		assert.Equal(t, 0, store.orderCount())
	})

	t.Run("missing shipping info", func(t *testing.T) {
		p := product("Rice 5kg", 100, 10)
		eng := newEngine(newFakeStore(p), nil)

		in := validInput(orders.CartItem{ProductID: p.ID, Quantity: 1})
		in.ShippingAddress = "   "
		_, err := eng.PlaceOrder(ctx, buyer, in)
		assert.ErrorIs(t, err, orders.ErrMissingShippingInfo)

		in = validInput(orders.CartItem{ProductID: p.ID, Quantity: 1})
		in.Phone = ""
		_, err = eng.PlaceOrder(ctx, buyer, in)
		assert.ErrorIs(t, err, orders.ErrMissingShippingInfo)
	})

	t.Run("unknown product fails the whole order", func(t *testing.T) {
		store := newFakeStore()
		eng := newEngine(store, nil)

		missing := uuid.New()
		_, err := eng.PlaceOrder(ctx, buyer, validInput(orders.CartItem{ProductID: missing, Quantity: 1}))

		var pnf *orders.ProductNotFoundError
		require.ErrorAs(t, err, &pnf)
		assert.Equal(t, missing, pnf.ProductID)
	})

	t.Run("invalid quantity", func(t *testing.T) {
		p := product("Rice 5kg", 100, 10)
		eng := newEngine(newFakeStore(p), nil)

		_, err := eng.PlaceOrder(ctx, buyer, validInput(orders.CartItem{ProductID: p.ID, Quantity: 0}))
		var iq *orders.InvalidQuantityError
		assert.ErrorAs(t, err, &iq)
	})

	t.Run("requesting more than stock fails and leaves stock unchanged", func(t *testing.T) {
		p := product("Rice 5kg", 100, 10)
		store := newFakeStore(p)
		eng := newEngine(store, nil)

		_, err := eng.PlaceOrder(ctx, buyer, validInput(orders.CartItem{ProductID: p.ID, Quantity: 11}))

		var ins *orders.InsufficientStockError
		require.ErrorAs(t, err, &ins)
		assert.Equal(t, "Rice 5kg", ins.Name)
		assert.Equal(t, 10, ins.Available)
		assert.Equal(t, 11, ins.Requested)
		assert.Equal(t, 10, store.stock(p.ID))
		assert.Equal(t, 0, store.orderCount())
	})

	t.Run("boundary: quantity equal to stock drains it to zero", func(t *testing.T) {
		p := product("Rice 5kg", 100, 10)
		store := newFakeStore(p)
		eng := newEngine(store, nil)

		_, err := eng.PlaceOrder(ctx, buyer, validInput(orders.CartItem{ProductID: p.ID, Quantity: 10}))
		require.NoError(t, err)
		assert.Equal(t, 0, store.stock(p.ID))

		_, err = eng.PlaceOrder(ctx, buyer, validInput(orders.CartItem{ProductID: p.ID, Quantity: 1}))
		var ins *orders.InsufficientStockError
		assert.ErrorAs(t, err, &ins)
	})

	t.Run("all-or-nothing: second item failing leaves first untouched", func(t *testing.T) {
		p1 := product("Rice 5kg", 100, 10)
		p2 := product("Flour 1kg", 50, 2)
		store := newFakeStore(p1, p2)
		eng := newEngine(store, nil)

		_, err := eng.PlaceOrder(ctx, buyer, validInput(
			orders.CartItem{ProductID: p1.ID, Quantity: 3},
			orders.CartItem{ProductID: p2.ID, Quantity: 5},
		))

		var ins *orders.InsufficientStockError
		require.ErrorAs(t, err, &ins)
		assert.Equal(t, p2.ID, ins.ProductID)
		assert.Equal(t, 10, store.stock(p1.ID))
		assert.Equal(t, 2, store.stock(p2.ID))
		assert.Equal(t, 0, store.orderCount())
	})

	t.Run("multi-item total is the exact sum over items", func(t *testing.T) {
		p1 := product("Rice 5kg", 125, 10)
		p2 := product("Flour 1kg", 60, 10)
		store := newFakeStore(p1, p2)
		eng := newEngine(store, nil)

		res, err := eng.PlaceOrder(ctx, buyer, validInput(
			orders.CartItem{ProductID: p1.ID, Quantity: 4},
			orders.CartItem{ProductID: p2.ID, Quantity: 2},
		))
		require.NoError(t, err)
		assert.Equal(t, int64(4*125+2*60), res.TotalCents)

		o := store.orders[0]
		assert.Equal(t, o.TotalCents, o.Total())
	})

	t.Run("storage failure surfaces without a result", func(t *testing.T) {
		p := product("Rice 5kg", 100, 10)
		store := newFakeStore(p)
		store.failWith = errors.New("connection reset")
		eng := newEngine(store, nil)

		_, err := eng.PlaceOrder(ctx, buyer, validInput(orders.CartItem{ProductID: p.ID, Quantity: 1}))
		assert.Error(t, err)
		assert.Equal(t, 0, store.orderCount())
	})
}

// Two concurrent orders over the same product must not oversell: with
// stock 10 and two requests of 6, exactly one succeeds and stock ends
// at 4, never below zero.
func TestPlaceOrderConcurrentStock(t *testing.T) {
	ctx := context.Background()
	p := product("Rice 5kg", 100, 10)
	store := newFakeStore(p)
	eng := newEngine(store, nil)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = eng.PlaceOrder(ctx, uuid.New(), validInput(orders.CartItem{ProductID: p.ID, Quantity: 6}))
		}(i)
	}
	wg.Wait()

	var okCount, stockErrCount int
	for _, err := range errs {
		if err == nil {
			okCount++
			continue
		}
		var ins *orders.InsufficientStockError
		require.ErrorAs(t, err, &ins)
		stockErrCount++
	}
	assert.Equal(t, 1, okCount)
	assert.Equal(t, 1, stockErrCount)
	assert.Equal(t, 4, store.stock(p.ID))
	assert.Equal(t, 1, store.orderCount())
}

func TestPlaceOrderPublishesCreatedEvent(t *testing.T) {
	ctx := context.Background()
	p := product("Rice 5kg", 100, 10)
	store := newFakeStore(p)
	pub := &fakePublisher{}
	eng := newEngine(store, pub)

	res, err := eng.PlaceOrder(ctx, uuid.New(), validInput(orders.CartItem{ProductID: p.ID, Quantity: 2}))
	require.NoError(t, err)

	require.Len(t, pub.events, 1)
	ev := pub.events[0]
	assert.Equal(t, res.OrderID.String(), string(ev.key))

	var env orders.Envelope
	require.NoError(t, json.Unmarshal(ev.value, &env))
	assert.Equal(t, orders.EventOrderCreated, env.EventType)
	assert.Equal(t, res.OrderID.String(), env.CorrelationID)

	var payload orders.OrderCreatedPayload
	require.NoError(t, json.Unmarshal(env.Payload, &payload))
	assert.Equal(t, res.OrderID, payload.OrderID)
	assert.Equal(t, int64(200), payload.TotalCents)
	require.Len(t, payload.Items, 1)
	assert.Equal(t, 2, payload.Items[0].Qty)
}
