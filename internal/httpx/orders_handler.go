package httpx

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"

	"github.com/easonhq/eason/internal/auth"
	kafkax "github.com/easonhq/eason/internal/kafka"
	"github.com/easonhq/eason/internal/orders"
	"github.com/easonhq/eason/internal/redisx"
	"github.com/easonhq/eason/internal/users"
)

// OrderPlacer is implemented by the reservation engine.
type OrderPlacer interface {
	PlaceOrder(ctx context.Context, callerID uuid.UUID, in orders.PlaceOrderInput) (orders.OrderResult, error)
}

// OrderReader is the read/update side backed by the orders repo.
type OrderReader interface {
	ListByUser(ctx context.Context, userID uuid.UUID) ([]orders.Order, error)
	ListAll(ctx context.Context) ([]orders.Order, error)
	GetByID(ctx context.Context, id uuid.UUID) (orders.Order, error)
	GetStatus(ctx context.Context, id uuid.UUID) (orders.Status, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, to orders.Status) (orders.Status, error)
}

type OrdersHandler struct {
	Engine   OrderPlacer
	Repo     OrderReader
	Redis    *redis.Client
	Producer orders.Publisher
	Tokens   *auth.Tokens
	Log      *slog.Logger
	Service  string
}

func (h *OrdersHandler) Register(r chi.Router) {
	r.Route("/api/orders", func(r chi.Router) {
		r.Use(h.Tokens.Require)
		r.Post("/", h.createOrder)
		r.Get("/my-orders", h.myOrders)
		r.Get("/{id}/status", h.getStatus)
		r.Group(func(r chi.Router) {
			r.Use(auth.RequireRole(users.RoleAdmin, users.RoleWholesaler))
			r.Get("/", h.listAll)
			r.Put("/{id}/status", h.updateStatus)
		})
	})
}

type createOrderReq struct {
	Items           []orders.CartItem `json:"items"`
	ShippingAddress string            `json:"shippingAddress"`
	Phone           string            `json:"phone"`
	Notes           string            `json:"notes"`
}

func (h *OrdersHandler) createOrder(w http.ResponseWriter, r *http.Request) {
	id, _ := auth.FromContext(r.Context())

	var req createOrderReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid json")
		return
	}

	res, err := h.Engine.PlaceOrder(r.Context(), id.UserID, orders.PlaceOrderInput{
		Items:           req.Items,
		ShippingAddress: req.ShippingAddress,
		Phone:           req.Phone,
		Notes:           req.Notes,
	})
	if err != nil {
		writeError(w, h.Log, err)
		return
	}

	h.cacheStatus(r.Context(), res.OrderID, res.Status)

	writeJSON(w, http.StatusCreated, map[string]any{
		"message": "Order created successfully",
		"order":   res,
	})
}

func (h *OrdersHandler) myOrders(w http.ResponseWriter, r *http.Request) {
	id, _ := auth.FromContext(r.Context())
	out, err := h.Repo.ListByUser(r.Context(), id.UserID)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *OrdersHandler) listAll(w http.ResponseWriter, r *http.Request) {
	out, err := h.Repo.ListAll(r.Context())
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *OrdersHandler) getStatus(w http.ResponseWriter, r *http.Request) {
	orderID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid order id")
		return
	}
	caller, _ := auth.FromContext(r.Context())

	// staff may read any order's status straight from the cache
	staff := caller.Role == users.RoleAdmin || caller.Role == users.RoleWholesaler
	if staff && h.Redis != nil {
		key := fmt.Sprintf(redisx.KeyOrderStatus, orderID)
		if s, err := h.Redis.Get(r.Context(), key).Result(); err == nil && s != "" {
			writeJSON(w, http.StatusOK, json.RawMessage(s))
			return
		}
	}

	if !staff {
		o, err := h.Repo.GetByID(r.Context(), orderID)
		if err != nil {
			writeError(w, h.Log, err)
			return
		}
		if o.UserID != caller.UserID {
			writeMessage(w, http.StatusForbidden, "access denied")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"status": o.Status})
		return
	}

	status, err := h.Repo.GetStatus(r.Context(), orderID)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	h.cacheStatus(r.Context(), orderID, status)
	writeJSON(w, http.StatusOK, map[string]any{"status": status})
}

type updateStatusReq struct {
	Status string `json:"status"`
}

func (h *OrdersHandler) updateStatus(w http.ResponseWriter, r *http.Request) {
	orderID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid order id")
		return
	}
	var req updateStatusReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid json")
		return
	}
	to, err := orders.ParseStatus(req.Status)
	if err != nil {
		writeMessage(w, http.StatusBadRequest, err.Error())
		return
	}

	from, err := h.Repo.UpdateStatus(r.Context(), orderID, to)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}

	h.cacheStatus(r.Context(), orderID, to)
	h.publishStatusChanged(orderID, from, to)
	h.Log.Info("order status updated", "order_id", orderID, "from", from, "to", to)

	writeJSON(w, http.StatusOK, map[string]any{"orderId": orderID, "status": to})
}

func (h *OrdersHandler) cacheStatus(ctx context.Context, orderID uuid.UUID, st orders.Status) {
	if h.Redis == nil {
		return
	}
	key := fmt.Sprintf(redisx.KeyOrderStatus, orderID)
	body, _ := json.Marshal(map[string]any{"status": st})
	_ = h.Redis.Set(ctx, key, body, redisx.TTLStatusCache).Err()
}

func (h *OrdersHandler) publishStatusChanged(orderID uuid.UUID, from, to orders.Status) {
	if h.Producer == nil {
		return
	}
	ev := orders.Envelope{
		EventID:       uuid.NewString(),
		EventType:     orders.EventStatusChanged,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      h.Service,
		CorrelationID: orderID.String(),
		Payload: kafkax.MustMarshal(orders.StatusChangedPayload{
			OrderID: orderID,
			From:    from,
			To:      to,
		}),
	}
	h.Producer.Publish(orders.PartitionKey(orderID), kafkax.MustMarshal(ev),
		kafkago.Header{Key: "x-event-type", Value: []byte(orders.EventStatusChanged)},
		kafkago.Header{Key: "x-event-version", Value: []byte("1")},
	)
}
