package tasks

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"
)

// Task type names routed through the settlement queue.
const (
	TypeCouponSettle   = "settlement:coupon"
	TypeDeliveryAssign = "settlement:delivery"
)

// CouponSettlePayload asks the worker to redeem a coupon against an order.
type CouponSettlePayload struct {
	TenantID   string `json:"tenantId"`
	CouponID   string `json:"couponId"`
	OrderID    string `json:"orderId"`
	CustomerID string `json:"customerId,omitempty"`
	Amount     int64  `json:"amount"`
}

// DeliveryAssignPayload asks the worker to route an order to a delivery area.
type DeliveryAssignPayload struct {
	TenantID string `json:"tenantId"`
	OrderID  string `json:"orderId"`
	Pincode  string `json:"pincode"`
}

// Enqueuer hands post-settlement work to the background queue. Side effects
// never run on the settlement request path.
type Enqueuer struct {
	Client *asynq.Client
	Queue  string
	Log    zerolog.Logger
}

// EnqueueCouponSettle schedules the coupon redemption side effect.
func (e *Enqueuer) EnqueueCouponSettle(p CouponSettlePayload) error {
	return e.enqueue(TypeCouponSettle, p)
}

// EnqueueDeliveryAssign schedules the delivery-area assignment side effect.
func (e *Enqueuer) EnqueueDeliveryAssign(p DeliveryAssignPayload) error {
	return e.enqueue(TypeDeliveryAssign, p)
}

func (e *Enqueuer) enqueue(taskType string, payload any) error {
	if e == nil || e.Client == nil {
		return errors.New("task enqueuer not configured")
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", taskType, err)
	}
	task := asynq.NewTask(taskType, raw)
	opts := []asynq.Option{asynq.MaxRetry(5)}
	if e.Queue != "" {
		opts = append(opts, asynq.Queue(e.Queue))
	}
	info, err := e.Client.Enqueue(task, opts...)
	if err != nil {
		return fmt.Errorf("enqueue %s: %w", taskType, err)
	}
	e.Log.Debug().Str("task", taskType).Str("task_id", info.ID).Msg("side effect enqueued")
	return nil
}
