package gateway

import (
	"context"
	"errors"
	"fmt"

	"github.com/zrupay/zrugate/internal/metrics"
	"github.com/zrupay/zrugate/internal/redact"
	"github.com/zrupay/zrugate/internal/zru"
	"golang.org/x/exp/slog"
)

const (
	notePaymentCompleted = "ZRU payment completed"
	notePaymentCancelled = "ZRU payment cancelled"

	maxLoggedText = 64
)

// Reconciler applies decoded notifications to local orders. It never calls
// the payment API, so replaying a notification only touches the store.
type Reconciler struct {
	store   OrderStore
	config  *Config
	logger  *slog.Logger
	metrics *metrics.Metrics
}

func NewReconciler(store OrderStore, config *Config, logger *slog.Logger, mx *metrics.Metrics) *Reconciler {
	if config == nil {
		config = DefaultConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Reconciler{
		store:   store,
		config:  config,
		logger:  logger.With(slog.String("component", "reconciler")),
		metrics: mx,
	}
}

// Apply moves the order of n according to its status: D records the payment
// once, C fails the order, anything else is ignored.
func (r *Reconciler) Apply(ctx context.Context, n *zru.Notification) error {
	outcome, err := r.apply(ctx, n)
	if err != nil {
		outcome = "error"
	}
	r.metrics.Notification(n.Type(), n.Status(), outcome)
	return err
}

func (r *Reconciler) apply(ctx context.Context, n *zru.Notification) (string, error) {
	logger := r.logger.With(
		slog.Int64("order_id", n.OrderID()),
		slog.String("type", n.Type()),
		slog.String("status", n.Status()),
		slog.String("action", redact.Text(n.Action(), maxLoggedText)),
		slog.String("sale_action", redact.Text(n.SaleAction(), maxLoggedText)),
	)

	switch n.Status() {
	case zru.StatusDone:
		return r.applyDone(ctx, n, logger)
	case zru.StatusCancelled:
		if err := r.store.MarkFailed(ctx, n.OrderID(), notePaymentCancelled); err != nil {
			return "", fmt.Errorf("marking order %d failed: %w", n.OrderID(), err)
		}
		logger.Info("order failed by cancellation")
		return "failed", nil
	default:
		logger.Debug("notification status ignored")
		return "ignored", nil
	}
}

func (r *Reconciler) applyDone(ctx context.Context, n *zru.Notification, logger *slog.Logger) (string, error) {
	id := n.OrderID()

	order, err := r.store.GetOrder(ctx, id)
	if err != nil {
		return "", fmt.Errorf("getting order %d: %w", id, err)
	}
	if order.IsPaid() {
		logger.Info("order already paid, skipping", slog.String("order_status", string(order.Status)))
		return "duplicate", nil
	}

	gw := n.GatewayMeta()
	notes := []struct{ prefix, value string }{
		{"ZRU Sale ID: ", n.SaleID()},
		{"ZRU Charge ID: ", n.ChargeID()},
		{"ZRU Gateway Code: ", gw.Code},
		{"ZRU Gateway ID: ", gw.Identification},
		{"ZRU Gateway Authorization Code: ", gw.AuthCode},
	}
	if err := r.store.AppendNote(ctx, id, notePaymentCompleted); err != nil {
		return "", fmt.Errorf("annotating order %d: %w", id, err)
	}
	for _, note := range notes {
		if note.value == "" {
			continue
		}
		if err := r.store.AppendNote(ctx, id, note.prefix+note.value); err != nil {
			return "", fmt.Errorf("annotating order %d: %w", id, err)
		}
	}

	err = r.store.MarkPaid(ctx, id, n.SaleID())
	if errors.Is(err, ErrAlreadyPaid) {
		logger.Info("order paid concurrently, skipping")
		return "duplicate", nil
	}
	if err != nil {
		return "", fmt.Errorf("marking order %d paid: %w", id, err)
	}

	if r.config.SetCompleted {
		if err := r.store.SetCompleted(ctx, id); err != nil {
			return "", fmt.Errorf("completing order %d: %w", id, err)
		}
	}

	logger.Info("order paid", slog.String("sale_id", n.SaleID()))
	return "paid", nil
}
