package orders

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"

	"github.com/easonhq/eason/internal/catalog"
	kafkax "github.com/easonhq/eason/internal/kafka"
	"github.com/easonhq/eason/internal/users"
)

// CatalogStore is the read side the engine validates carts against.
type CatalogStore interface {
	GetProduct(ctx context.Context, id uuid.UUID) (catalog.Product, error)
}

// OrderStore persists orders. CreateReserving must atomically write the
// order and debit stock for every item, or change nothing at all; a
// shortage detected during the commit surfaces as
// *InsufficientStockError.
type OrderStore interface {
	CreateReserving(ctx context.Context, o *Order) error
}

// Publisher matches the async kafka producer.
type Publisher interface {
	Publish(key, value []byte, headers ...kafkago.Header)
}

// Engine converts carts into committed orders while debiting matching
// stock. One instance serves all requests; each PlaceOrder call is
// independent.
type Engine struct {
	log      *slog.Logger
	catalog  CatalogStore
	orders   OrderStore
	producer Publisher // optional
	service  string
}

func NewEngine(log *slog.Logger, cat CatalogStore, store OrderStore, producer Publisher, service string) *Engine {
	return &Engine{log: log, catalog: cat, orders: store, producer: producer, service: service}
}

type PlaceOrderInput struct {
	Items           []CartItem
	ShippingAddress string
	Phone           string
	Notes           string
}

type OrderResult struct {
	OrderID    uuid.UUID `json:"orderId"`
	TotalCents int64     `json:"totalAmount"`
	Status     Status    `json:"status"`
	CreatedAt  time.Time `json:"createdAt"`
}

// PlaceOrder validates the cart in submission order, prices every item
// at the wholesaler-to-retailer rate and commits order plus stock
// decrements atomically. The first validation failure aborts the whole
// request before anything is written.
func (e *Engine) PlaceOrder(ctx context.Context, callerID uuid.UUID, in PlaceOrderInput) (OrderResult, error) {
	if len(in.Items) == 0 {
		return OrderResult{}, ErrEmptyCart
	}
	addr := strings.TrimSpace(in.ShippingAddress)
	phone := strings.TrimSpace(in.Phone)
	if addr == "" || phone == "" {
		return OrderResult{}, ErrMissingShippingInfo
	}

	items := make([]OrderItem, 0, len(in.Items))
	var total int64
	for _, ci := range in.Items {
		if ci.Quantity < 1 {
			return OrderResult{}, &InvalidQuantityError{ProductID: ci.ProductID, Quantity: ci.Quantity}
		}
		p, err := e.catalog.GetProduct(ctx, ci.ProductID)
		if errors.Is(err, catalog.ErrNotFound) {
			return OrderResult{}, &ProductNotFoundError{ProductID: ci.ProductID}
		}
		if err != nil {
			return OrderResult{}, fmt.Errorf("load product %s: %w", ci.ProductID, err)
		}
		if p.Stock < ci.Quantity {
			return OrderResult{}, &InsufficientStockError{
				ProductID: p.ID,
				Name:      p.Name,
				Available: p.Stock,
				Requested: ci.Quantity,
			}
		}

		// The snapshotted price is always what the purchaser owes:
		// the wholesaler-to-retailer rate, independent of display
		// pricing.
		price := *catalog.ResolvePrice(p, users.RoleRetailer).PurchasePriceCents
		items = append(items, OrderItem{ProductID: p.ID, Qty: ci.Quantity, PriceCents: price})
		total += price * int64(ci.Quantity)
	}

	now := time.Now().UTC()
	o := &Order{
		ID:              uuid.New(),
		UserID:          callerID,
		Items:           items,
		TotalCents:      total,
		Status:          StatusPending,
		PaymentStatus:   PaymentPending,
		ShippingAddress: addr,
		Phone:           phone,
		Notes:           strings.TrimSpace(in.Notes),
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	// The store re-checks stock with conditional decrements inside one
	// transaction, so a concurrent order that won the race surfaces
	// here as InsufficientStockError with nothing written.
	if err := e.orders.CreateReserving(ctx, o); err != nil {
		return OrderResult{}, err
	}

	e.publishCreated(o)

	return OrderResult{
		OrderID:    o.ID,
		TotalCents: o.TotalCents,
		Status:     o.Status,
		CreatedAt:  o.CreatedAt,
	}, nil
}

func (e *Engine) publishCreated(o *Order) {
	if e.producer == nil {
		return
	}
	itemQty := make([]ItemQty, 0, len(o.Items))
	for _, it := range o.Items {
		itemQty = append(itemQty, ItemQty{ProductID: it.ProductID, Qty: it.Qty})
	}
	ev := Envelope{
		EventID:       uuid.NewString(),
		EventType:     EventOrderCreated,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      e.service,
		CorrelationID: o.ID.String(),
		Payload: kafkax.MustMarshal(OrderCreatedPayload{
			OrderID:    o.ID,
			UserID:     o.UserID,
			Items:      itemQty,
			TotalCents: o.TotalCents,
			Status:     o.Status,
		}),
	}
	e.producer.Publish(PartitionKey(o.ID), kafkax.MustMarshal(ev),
		kafkago.Header{Key: "x-event-type", Value: []byte(EventOrderCreated)},
		kafkago.Header{Key: "x-event-version", Value: []byte("1")},
	)
}
