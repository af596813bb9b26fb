package ordercache

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"

	kafkax "github.com/easonhq/eason/internal/kafka"
	"github.com/easonhq/eason/internal/orders"
	"github.com/easonhq/eason/internal/redisx"
)

// Service mirrors order lifecycle events into the Redis status cache so
// status reads stay off the database.
type Service struct {
	Redis       *redis.Client
	Log         *slog.Logger
	ServiceName string
}

// Handle is installed as the consumer handler for both order topics.
func (s *Service) Handle(ctx context.Context, m kafkago.Message) error {
	var env orders.Envelope
	if err := json.Unmarshal(m.Value, &env); err != nil {
		return err
	}

	// dedup by event id; consumer groups redeliver on rebalance
	dkey := fmt.Sprintf(redisx.KeyDedup, s.ServiceName, env.EventID)
	if seen, _ := redisx.Exists(ctx, s.Redis, dkey); seen {
		return nil
	}
	_ = s.Redis.Set(ctx, dkey, "1", redisx.TTLDedup).Err()

	switch env.EventType {
	case orders.EventOrderCreated:
		p, err := kafkax.UnwrapPayload[orders.OrderCreatedPayload](env.Payload)
		if err != nil {
			return err
		}
		s.cacheStatus(ctx, p.OrderID.String(), p.Status)
		s.Log.Info("order created", "order_id", p.OrderID, "total_cents", p.TotalCents, "items", len(p.Items))
	case orders.EventStatusChanged:
		p, err := kafkax.UnwrapPayload[orders.StatusChangedPayload](env.Payload)
		if err != nil {
			return err
		}
		s.cacheStatus(ctx, p.OrderID.String(), p.To)
		s.Log.Info("order status changed", "order_id", p.OrderID, "from", p.From, "to", p.To)
	default:
		// unknown event types are skipped, not retried
	}
	return nil
}

func (s *Service) cacheStatus(ctx context.Context, orderID string, st orders.Status) {
	key := fmt.Sprintf(redisx.KeyOrderStatus, orderID)
	body, _ := json.Marshal(map[string]any{"status": st})
	if err := s.Redis.Set(ctx, key, body, redisx.TTLStatusCache).Err(); err != nil {
		s.Log.Error("status cache write failed", "order_id", orderID, "err", err)
	}
}
